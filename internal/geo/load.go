package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// Load error kinds. Match them with errors.Is.
var (
	ErrNotFound  = errors.New("dataset not found")
	ErrMalformed = errors.New("malformed geojson")
	ErrSchema    = errors.New("schema mismatch")
)

// LoadError reports a dataset that could not be loaded.
type LoadError struct {
	Path string
	Kind error // ErrNotFound, ErrMalformed or ErrSchema
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("load %s: %v", e.Path, e.Kind)
	}
	return fmt.Sprintf("load %s: %v: %v", e.Path, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Load reads the GeoJSON FeatureCollection at path and tags every feature
// with layer. Geometries are reprojected to Web Mercator for hit testing.
func Load(path, layer string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &LoadError{Path: path, Kind: ErrNotFound}
		}
		return nil, &LoadError{Path: path, Kind: ErrNotFound, Err: err}
	}
	return Parse(data, path, layer)
}

// Parse is Load for bytes already in memory. path is only used in errors.
func Parse(data []byte, path, layer string) (*Collection, error) {
	if !json.Valid(data) {
		return nil, &LoadError{Path: path, Kind: ErrMalformed, Err: errors.New("invalid json")}
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &LoadError{Path: path, Kind: ErrSchema, Err: err}
	}
	if head.Type != "FeatureCollection" {
		return nil, &LoadError{Path: path, Kind: ErrSchema, Err: fmt.Errorf("type %q, want FeatureCollection", head.Type)}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &LoadError{Path: path, Kind: ErrMalformed, Err: err}
	}

	c := &Collection{
		Layer:    layer,
		Path:     path,
		Features: make([]*Feature, 0, len(fc.Features)),
	}
	for i, gf := range fc.Features {
		f, err := newFeature(gf, layer, i)
		if err != nil {
			return nil, &LoadError{Path: path, Kind: ErrSchema, Err: err}
		}
		if i == 0 {
			c.Bound = f.Bound
		} else {
			c.Bound = c.Bound.Union(f.Bound)
		}
		c.Features = append(c.Features, f)
	}
	return c, nil
}

func newFeature(gf *geojson.Feature, layer string, index int) (*Feature, error) {
	if gf.Geometry == nil {
		return nil, fmt.Errorf("feature %d: missing geometry", index)
	}

	name, ok := gf.Properties[PropName].(string)
	if !ok {
		return nil, fmt.Errorf("feature %d: %s must be a string", index, PropName)
	}
	aland, err := number(gf.Properties, PropALand)
	if err != nil {
		return nil, fmt.Errorf("feature %d (%s): %w", index, name, err)
	}
	awater, err := number(gf.Properties, PropAWater)
	if err != nil {
		return nil, fmt.Errorf("feature %d (%s): %w", index, name, err)
	}

	id := fmt.Sprintf("%s/%d", layer, index)
	if gf.ID != nil {
		id = fmt.Sprintf("%s/%v", layer, gf.ID)
	}

	projected := project.Geometry(orb.Clone(gf.Geometry), project.WGS84.ToMercator)

	return &Feature{
		ID:        id,
		Layer:     layer,
		Name:      name,
		STUSPS:    gf.Properties.MustString(PropStusps, ""),
		ALand:     aland,
		AWater:    awater,
		Props:     gf.Properties.Clone(),
		Geometry:  gf.Geometry,
		Projected: projected,
		Bound:     projected.Bound(),
	}, nil
}

// number reads a numeric attribute. TIGER exports are not consistent about
// quoting area fields, so numeric strings are accepted too.
// Areas must be finite and non-negative.
func number(props geojson.Properties, key string) (float64, error) {
	var n float64
	switch v := props[key].(type) {
	case float64:
		n = v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%s %q is not numeric", key, v)
		}
		n = f
	case nil:
		return 0, fmt.Errorf("missing %s", key)
	default:
		return 0, fmt.Errorf("%s has type %T, want number", key, v)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%s %v is not finite", key, n)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s %v is negative", key, n)
	}
	return n, nil
}
