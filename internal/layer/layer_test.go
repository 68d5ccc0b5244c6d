package layer

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-census/internal/geo"
)

func feature(layer, name string) *geo.Feature {
	return &geo.Feature{
		ID:       layer + "/" + name,
		Layer:    layer,
		Name:     name,
		Props:    map[string]any{"NAME": name},
		Geometry: orb.Point{1, 2},
	}
}

func zoom(z float64) *float64 { return &z }

func TestBuild(t *testing.T) {
	c := &geo.Collection{Layer: "states", Features: []*geo.Feature{feature("states", "Ohio")}}

	l, err := Build("states", c, nil, WithTitle("U.S. states"), WithZoomRange(nil, zoom(6)))
	require.NoError(t, err)
	assert.Equal(t, "U.S. states", l.Title)
	assert.Len(t, l.Features, 1)
	assert.Equal(t, "Ohio", l.Style(l.Features[0]).Label)
}

func TestBuildRejectsForeignFeature(t *testing.T) {
	c := &geo.Collection{Features: []*geo.Feature{feature("counties", "Riverside")}}
	_, err := Build("states", c, nil)
	assert.Error(t, err)
}

func TestBuildRejectsEmptyZoomRange(t *testing.T) {
	_, err := Build("states", &geo.Collection{}, nil, WithZoomRange(zoom(6), zoom(6)))
	assert.Error(t, err)
}

func TestVisible(t *testing.T) {
	tests := []struct {
		name     string
		min, max *float64
		zoom     float64
		want     bool
	}{
		{"open range", nil, nil, 3, true},
		{"below min", zoom(6), nil, 5.9, false},
		{"at min", zoom(6), nil, 6, true},
		{"at max is excluded", nil, zoom(6), 6, false},
		{"below max", nil, zoom(6), 5.99, true},
		{"inside", zoom(4), zoom(8), 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Layer{MinZoom: tt.min, MaxZoom: tt.max}
			assert.Equal(t, tt.want, l.Visible(tt.zoom))
		})
	}
}

func TestStyleIsFreshPerCall(t *testing.T) {
	a, b := feature("x", "A"), feature("x", "B")

	sa := DefaultStyle(a)
	sb := DefaultStyle(b)
	assert.Equal(t, "A", sa.Label, "styling B must not relabel A")
	assert.Equal(t, "B", sb.Label)
	assert.Equal(t, DefaultFill, sa.Fill)

	h := HighlightStyle(a)
	assert.Equal(t, HighlightColor, h.Fill)
	assert.Equal(t, HighlightColor, h.Stroke)
	assert.Equal(t, 3.0, h.TextStrokeWidth)
}

func TestLabeledDefaults(t *testing.T) {
	s := Labeled("", "#123456")(feature("x", "A"))
	assert.Equal(t, DefaultFill, s.Fill)
	assert.Equal(t, "#123456", s.Stroke)
}

func TestFeatureCollectionCarriesStyle(t *testing.T) {
	c := &geo.Collection{Features: []*geo.Feature{feature("states", "Ohio")}}
	l, err := Build("states", c, Labeled("#fff", "#000"))
	require.NoError(t, err)

	fc := l.FeatureCollection()
	require.Len(t, fc.Features, 1)
	s, ok := fc.Features[0].Properties["style"].(Style)
	require.True(t, ok)
	assert.Equal(t, "#fff", s.Fill)
	assert.Equal(t, "Ohio", s.Label)
}

func TestOverlay(t *testing.T) {
	o := NewOverlay()
	a, b := feature("x", "A"), feature("x", "B")

	o.Add(a)
	o.Add(a)
	o.Add(nil)
	assert.Equal(t, 1, o.Len())
	assert.True(t, o.Contains(a))

	o.Add(b)
	o.Remove(a)
	assert.Equal(t, []*geo.Feature{b}, o.Features())

	o.Remove(a)
	assert.Equal(t, 1, o.Len())

	fc := o.FeatureCollection()
	require.Len(t, fc.Features, 1)
	assert.Equal(t, HighlightColor, fc.Features[0].Properties["style"].(Style).Fill)
}
