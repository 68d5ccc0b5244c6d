// Package geo loads census boundary datasets (states, counties, places, ZCTAs)
// from GeoJSON into immutable in-memory features.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Census attribute keys carried by TIGER/Line GeoJSON exports.
const (
	PropName   = "NAME"
	PropStusps = "STUSPS"
	PropALand  = "ALAND"
	PropAWater = "AWATER"
)

// Feature is one geographic entity. It is created by the loader and never
// mutated afterwards; callers must treat every field as read-only.
type Feature struct {
	ID     string
	Layer  string
	Name   string
	STUSPS string
	ALand  float64 // square meters
	AWater float64 // square meters

	Props     geojson.Properties
	Geometry  orb.Geometry // WGS84, as read from the file
	Projected orb.Geometry // Web Mercator (EPSG:3857)
	Bound     orb.Bound    // of Projected
}

// HasStusps reports whether the feature carries a state abbreviation.
func (f *Feature) HasStusps() bool {
	return f.STUSPS != ""
}

// TotalArea returns ALAND + AWATER.
func (f *Feature) TotalArea() float64 {
	return f.ALand + f.AWater
}

// GeoJSON returns the feature as a WGS84 GeoJSON feature. The geometry is
// cloned so encoders that clip or project in place cannot touch the original.
func (f *Feature) GeoJSON() *geojson.Feature {
	gf := geojson.NewFeature(orb.Clone(f.Geometry))
	gf.ID = f.ID
	for k, v := range f.Props {
		gf.Properties[k] = v
	}
	return gf
}

// Collection is the parsed content of one dataset file.
type Collection struct {
	Layer    string
	Path     string
	Features []*Feature
	Bound    orb.Bound // union of feature bounds, Web Mercator
}

// Len returns the number of features.
func (c *Collection) Len() int {
	return len(c.Features)
}
