// Package layer wraps feature collections into styled, zoom-scoped layers
// and provides the overlay layer used for highlighting.
package layer

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-census/internal/geo"
)

// Layer is a named, ordered group of features with a style and an optional
// visibility range [MinZoom, MaxZoom).
type Layer struct {
	ID       string
	Title    string
	Features []*geo.Feature
	Style    StyleFunc

	MinZoom *float64
	MaxZoom *float64
}

// Option configures a Layer in Build.
type Option func(*Layer)

// WithZoomRange limits visibility to [min, max). Nil leaves a side open.
func WithZoomRange(minZoom, maxZoom *float64) Option {
	return func(l *Layer) {
		l.MinZoom = minZoom
		l.MaxZoom = maxZoom
	}
}

// WithTitle sets the display name.
func WithTitle(title string) Option {
	return func(l *Layer) {
		if title != "" {
			l.Title = title
		}
	}
}

// Build wraps c into a layer. Every feature must already be tagged with id,
// since a feature belongs to exactly one source layer.
func Build(id string, c *geo.Collection, style StyleFunc, opts ...Option) (*Layer, error) {
	if style == nil {
		style = DefaultStyle
	}
	for _, f := range c.Features {
		if f.Layer != id {
			return nil, fmt.Errorf("feature %s belongs to layer %q, not %q", f.ID, f.Layer, id)
		}
	}

	l := &Layer{
		ID:       id,
		Title:    id,
		Features: c.Features,
		Style:    style,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.MinZoom != nil && l.MaxZoom != nil && *l.MinZoom >= *l.MaxZoom {
		return nil, fmt.Errorf("layer %q: empty zoom range [%g, %g)", id, *l.MinZoom, *l.MaxZoom)
	}
	return l, nil
}

// Visible reports whether the layer is drawn at zoom.
func (l *Layer) Visible(zoom float64) bool {
	if l.MinZoom != nil && zoom < *l.MinZoom {
		return false
	}
	if l.MaxZoom != nil && zoom >= *l.MaxZoom {
		return false
	}
	return true
}

// FeatureCollection exports the layer as WGS84 GeoJSON with each feature's
// evaluated style under the "style" property.
func (l *Layer) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range l.Features {
		fc.Append(styled(f, l.Style))
	}
	return fc
}

func styled(f *geo.Feature, style StyleFunc) *geojson.Feature {
	gf := f.GeoJSON()
	gf.Properties["style"] = style(f)
	return gf
}
