package layer

import (
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-census/internal/geo"
)

// Overlay is a normally-empty layer holding the features to emphasize.
// It tracks features by identity and never owns them. Not safe for
// concurrent use.
type Overlay struct {
	features []*geo.Feature
	style    StyleFunc
}

// NewOverlay returns an empty overlay drawn with HighlightStyle.
func NewOverlay() *Overlay {
	return &Overlay{style: HighlightStyle}
}

// Add appends f unless it is already present.
func (o *Overlay) Add(f *geo.Feature) {
	if f == nil || o.Contains(f) {
		return
	}
	o.features = append(o.features, f)
}

// Remove drops f if present.
func (o *Overlay) Remove(f *geo.Feature) {
	for i, cur := range o.features {
		if cur == f {
			o.features = append(o.features[:i], o.features[i+1:]...)
			return
		}
	}
}

// Contains reports whether f is in the overlay.
func (o *Overlay) Contains(f *geo.Feature) bool {
	for _, cur := range o.features {
		if cur == f {
			return true
		}
	}
	return false
}

// Len returns the number of features in the overlay.
func (o *Overlay) Len() int {
	return len(o.features)
}

// Features returns a copy of the overlay contents.
func (o *Overlay) Features() []*geo.Feature {
	out := make([]*geo.Feature, len(o.features))
	copy(out, o.features)
	return out
}

// FeatureCollection exports the overlay as styled GeoJSON.
func (o *Overlay) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range o.features {
		fc.Append(styled(f, o.style))
	}
	return fc
}
