// Package mapview is the map host: it composes the base tile layer with the
// dataset layers and resolves screen pixels to features.
package mapview

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	earthRadius = 6378137.0
	tileSize    = 256.0
)

// Pixel is a screen position relative to the map element's top-left corner.
type Pixel struct {
	X float64
	Y float64
}

// View is the visible window of the map.
type View struct {
	Center orb.Point // Web Mercator
	Zoom   float64
	Width  float64 // pixels
	Height float64 // pixels
}

// Resolution returns map units (meters) per pixel at the view's zoom.
func (v View) Resolution() float64 {
	return 2 * math.Pi * earthRadius / (tileSize * math.Pow(2, v.Zoom))
}

// Coordinate converts a pixel to a Web Mercator coordinate. Screen y grows
// downward, map y grows northward.
func (v View) Coordinate(px Pixel) orb.Point {
	res := v.Resolution()
	return orb.Point{
		v.Center[0] + (px.X-v.Width/2)*res,
		v.Center[1] - (px.Y-v.Height/2)*res,
	}
}

// LonLat converts a pixel to WGS84.
func (v View) LonLat(px Pixel) orb.Point {
	return project.Point(v.Coordinate(px), project.Mercator.ToWGS84)
}

// ViewAt returns a 1x1 view centered on a WGS84 point, so that pixel (0.5,
// 0.5) resolves to exactly that point at any zoom.
func ViewAt(lonLat orb.Point, zoom float64) View {
	return View{
		Center: project.Point(lonLat, project.WGS84.ToMercator),
		Zoom:   zoom,
		Width:  1,
		Height: 1,
	}
}

// EventType names the pointer events the host emits.
type EventType string

const (
	PointerMove EventType = "pointermove"
	Click       EventType = "click"
)

// Event is one pointer event from the map surface.
type Event struct {
	Type     EventType
	Pixel    Pixel
	Dragging bool
	View     View
}
