// Package highlight tracks the single feature emphasized on the map and the
// info line shown for it.
//
// A Controller has two states: Idle (nothing highlighted) and
// Highlighted(feature). Only OnPointerMove and OnClick drive it. The overlay
// always holds exactly the highlighted feature, or nothing.
//
// A Controller is not safe for concurrent use; callers serialize events.
package highlight

import (
	"github.com/joeblew999/plat-census/internal/geo"
	"github.com/joeblew999/plat-census/internal/layer"
	"github.com/joeblew999/plat-census/internal/mapview"
)

// HitTester resolves the topmost feature under a pixel.
type HitTester interface {
	ForEachFeatureAtPixel(view mapview.View, px mapview.Pixel) *geo.Feature
}

// InfoOn selects which events write the info line.
type InfoOn string

const (
	// InfoOnClick writes the info line on click only.
	InfoOnClick InfoOn = "click"
	// InfoOnHover also writes it on every pointer move.
	InfoOnHover InfoOn = "hover"
)

// Valid reports whether p is a known policy.
func (p InfoOn) Valid() bool {
	return p == InfoOnClick || p == InfoOnHover
}

// Update describes what one event changed.
type Update struct {
	Highlight        *geo.Feature
	HighlightChanged bool
	Info             string
	InfoChanged      bool
}

// Controller owns the highlight state and its overlay layer. It never
// touches the dataset layers.
type Controller struct {
	host    HitTester
	overlay *layer.Overlay
	infoOn  InfoOn

	current *geo.Feature
	info    string
}

// Option configures a Controller.
type Option func(*Controller)

// WithInfoOn sets the info policy. Unknown values are ignored.
func WithInfoOn(p InfoOn) Option {
	return func(c *Controller) {
		if p.Valid() {
			c.infoOn = p
		}
	}
}

// New returns an Idle controller. overlay must be empty and used by no one
// else.
func New(host HitTester, overlay *layer.Overlay, opts ...Option) *Controller {
	c := &Controller{
		host:    host,
		overlay: overlay,
		infoOn:  InfoOnClick,
		info:    Placeholder,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnPointerMove highlights the feature under the pointer. Events raised
// while the map is being dragged are ignored.
func (c *Controller) OnPointerMove(ev mapview.Event) Update {
	if ev.Dragging {
		return Update{Highlight: c.current, Info: c.info}
	}
	f := c.host.ForEachFeatureAtPixel(ev.View, ev.Pixel)
	u := Update{HighlightChanged: c.setHighlight(f)}
	if c.infoOn == InfoOnHover || f == nil {
		u.InfoChanged = c.renderInfo(f)
	}
	u.Highlight, u.Info = c.current, c.info
	return u
}

// OnClick highlights the feature under the pointer and writes its info line.
func (c *Controller) OnClick(ev mapview.Event) Update {
	f := c.host.ForEachFeatureAtPixel(ev.View, ev.Pixel)
	u := Update{HighlightChanged: c.setHighlight(f)}
	u.InfoChanged = c.renderInfo(f)
	u.Highlight, u.Info = c.current, c.info
	return u
}

// Handle dispatches ev by type.
func (c *Controller) Handle(ev mapview.Event) Update {
	if ev.Type == mapview.Click {
		return c.OnClick(ev)
	}
	return c.OnPointerMove(ev)
}

// State returns the highlighted feature, or nil when Idle.
func (c *Controller) State() *geo.Feature {
	return c.current
}

// Info returns the current info line.
func (c *Controller) Info() string {
	return c.info
}

// Overlay returns the overlay layer.
func (c *Controller) Overlay() *layer.Overlay {
	return c.overlay
}

// InfoOn returns the info policy in effect.
func (c *Controller) InfoOn() InfoOn {
	return c.infoOn
}

// setHighlight makes f the only overlay member. Identity with the current
// feature is a no-op. It reports whether anything changed.
func (c *Controller) setHighlight(f *geo.Feature) bool {
	if f == c.current {
		return false
	}
	if c.current != nil {
		c.overlay.Remove(c.current)
	}
	if f != nil {
		c.overlay.Add(f)
	}
	c.current = f
	return true
}

func (c *Controller) renderInfo(f *geo.Feature) bool {
	text := RenderInfo(f)
	if text == c.info {
		return false
	}
	c.info = text
	return true
}
