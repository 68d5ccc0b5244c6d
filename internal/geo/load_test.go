package geo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const riverside = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"NAME": "Riverside", "STUSPS": "CA", "ALAND": 18000, "AWATER": 2000},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
    },
    {
      "type": "Feature",
      "id": "06071",
      "properties": {"NAME": "San Bernardino", "ALAND": "5000", "AWATER": "0"},
      "geometry": {"type": "Polygon", "coordinates": [[[2,2],[3,2],[3,3],[2,3],[2,2]]]}
    }
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "counties.geojson", riverside)

	c, err := Load(path, "counties")
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	f := c.Features[0]
	assert.Equal(t, "counties/0", f.ID)
	assert.Equal(t, "counties", f.Layer)
	assert.Equal(t, "Riverside", f.Name)
	assert.Equal(t, "CA", f.STUSPS)
	assert.Equal(t, 18000.0, f.ALand)
	assert.Equal(t, 2000.0, f.AWater)
	assert.Equal(t, 20000.0, f.TotalArea())

	g := c.Features[1]
	assert.Equal(t, "counties/06071", g.ID)
	assert.False(t, g.HasStusps())
	assert.Equal(t, 5000.0, g.ALand, "numeric strings are accepted")
}

func TestLoadReprojects(t *testing.T) {
	path := writeFile(t, "square.geojson", riverside)

	c, err := Load(path, "x")
	require.NoError(t, err)

	f := c.Features[0]
	poly, ok := f.Projected.(orb.Polygon)
	require.True(t, ok)
	assert.InDelta(t, 0, poly[0][0][0], 1e-6)
	assert.InDelta(t, 0, poly[0][0][1], 1e-6)
	// one degree of longitude at the equator
	assert.InDelta(t, 111319.49, poly[0][1][0], 0.1)

	src, ok := f.Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Equal(t, 1.0, src[0][1][0], "source geometry keeps WGS84")

	assert.True(t, c.Bound.Contains(f.Bound.Center()))
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    error
	}{
		{"malformed json", `{"type": "FeatureCollection", "features": [`, ErrMalformed},
		{"not a collection", `{"type": "Feature", "properties": {}, "geometry": null}`, ErrSchema},
		{"missing name", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"ALAND":1,"AWATER":1},"geometry":{"type":"Point","coordinates":[0,0]}}]}`, ErrSchema},
		{"bad area", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"NAME":"x","ALAND":"lots","AWATER":1},"geometry":{"type":"Point","coordinates":[0,0]}}]}`, ErrSchema},
		{"nan area", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"NAME":"x","ALAND":"NaN","AWATER":1},"geometry":{"type":"Point","coordinates":[0,0]}}]}`, ErrSchema},
		{"infinite area", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"NAME":"x","ALAND":1,"AWATER":"Inf"},"geometry":{"type":"Point","coordinates":[0,0]}}]}`, ErrSchema},
		{"negative area", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"NAME":"x","ALAND":-10,"AWATER":5},"geometry":{"type":"Point","coordinates":[0,0]}}]}`, ErrSchema},
		{"missing water", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"NAME":"x","ALAND":1},"geometry":{"type":"Point","coordinates":[0,0]}}]}`, ErrSchema},
		{"no geometry", `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"NAME":"x","ALAND":1,"AWATER":1},"geometry":null}]}`, ErrSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.geojson", tt.content)
			_, err := Load(path, "bad")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, path, le.Path)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.geojson")
	_, err := Load(path, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "missing.geojson")
}

func TestLoadEmptyCollection(t *testing.T) {
	path := writeFile(t, "empty.geojson", `{"type":"FeatureCollection","features":[]}`)
	c, err := Load(path, "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestFeatureGeoJSONIsACopy(t *testing.T) {
	c, err := Parse([]byte(riverside), "mem", "counties")
	require.NoError(t, err)

	f := c.Features[0]
	gf := f.GeoJSON()
	gf.Geometry.(orb.Polygon)[0][0][0] = 99
	gf.Properties["NAME"] = "changed"

	assert.Equal(t, 0.0, f.Geometry.(orb.Polygon)[0][0][0])
	assert.Equal(t, "Riverside", f.Props["NAME"])
	assert.Equal(t, "counties/0", gf.ID)
}
