package mapview

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/plat-census/internal/geo"
	"github.com/joeblew999/plat-census/internal/layer"
)

// BaseLayer is the raster tile layer drawn under the datasets.
type BaseLayer struct {
	Name        string `json:"name" doc:"Base layer name" example:"osm"`
	URLTemplate string `json:"urlTemplate" doc:"XYZ tile URL template"`
	Attribution string `json:"attribution" doc:"Attribution HTML"`
}

// OSM is the default base layer.
var OSM = BaseLayer{
	Name:        "osm",
	URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
	Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
}

// Host composes a base layer and the dataset layers, bottom first. It is
// immutable after New and safe for concurrent reads.
type Host struct {
	base   BaseLayer
	layers []*layer.Layer
	byID   map[string]*layer.Layer
}

// New creates a host. Layer IDs must be unique.
func New(base BaseLayer, layers ...*layer.Layer) (*Host, error) {
	h := &Host{
		base:   base,
		layers: layers,
		byID:   make(map[string]*layer.Layer, len(layers)),
	}
	for _, l := range layers {
		if _, dup := h.byID[l.ID]; dup {
			return nil, fmt.Errorf("duplicate layer %q", l.ID)
		}
		h.byID[l.ID] = l
	}
	return h, nil
}

// BaseLayer returns the base tile layer.
func (h *Host) BaseLayer() BaseLayer {
	return h.base
}

// Layers returns the dataset layers in draw order.
func (h *Host) Layers() []*layer.Layer {
	return h.layers
}

// Layer returns a dataset layer by ID.
func (h *Host) Layer(id string) (*layer.Layer, bool) {
	l, ok := h.byID[id]
	return l, ok
}

// ForEachFeatureAtPixel returns the topmost feature under px, or nil. The
// last layer is on top, and within a layer the last feature drawn wins.
// Layers hidden at the view's zoom are skipped.
func (h *Host) ForEachFeatureAtPixel(view View, px Pixel) *geo.Feature {
	return h.FeatureAt(view.Coordinate(px), view.Zoom)
}

// FeatureAt is the hit test for a Web Mercator coordinate at zoom.
func (h *Host) FeatureAt(pt orb.Point, zoom float64) *geo.Feature {
	for i := len(h.layers) - 1; i >= 0; i-- {
		l := h.layers[i]
		if !l.Visible(zoom) {
			continue
		}
		for j := len(l.Features) - 1; j >= 0; j-- {
			f := l.Features[j]
			if contains(f, pt) {
				return f
			}
		}
	}
	return nil
}

func contains(f *geo.Feature, pt orb.Point) bool {
	if !f.Bound.Contains(pt) {
		return false
	}
	switch g := f.Projected.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	case orb.Collection:
		for _, sub := range g {
			if contains(&geo.Feature{Projected: sub, Bound: sub.Bound()}, pt) {
				return true
			}
		}
	}
	return false
}
