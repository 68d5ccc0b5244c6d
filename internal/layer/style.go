package layer

import "github.com/joeblew999/plat-census/internal/geo"

// Style is the visual descriptor for one feature. Style functions return a
// new value on every call; nothing is shared between features.
type Style struct {
	Fill            string  `json:"fill" doc:"Fill color (CSS)"`
	Stroke          string  `json:"stroke" doc:"Stroke color (CSS)"`
	StrokeWidth     float64 `json:"strokeWidth" doc:"Stroke width in pixels"`
	Label           string  `json:"label,omitempty" doc:"Label text"`
	Font            string  `json:"font,omitempty" doc:"Label font (CSS)"`
	TextFill        string  `json:"textFill,omitempty" doc:"Label color (CSS)"`
	TextStroke      string  `json:"textStroke,omitempty" doc:"Label halo color (CSS)"`
	TextStrokeWidth float64 `json:"textStrokeWidth,omitempty" doc:"Label halo width"`
}

// StyleFunc maps a feature to its style. It must be pure and cheap: it runs
// for every feature on every render.
type StyleFunc func(*geo.Feature) Style

const (
	DefaultFill    = "rgba(12, 147, 255, 0.2)"
	DefaultStroke  = "rgba(12, 147, 255, 0.2)"
	HighlightColor = "rgba(192, 0, 4, 0.2)"

	labelFont = "14px Calibri, sans-serif"
)

// Labeled returns a StyleFunc using fill and stroke with the feature's NAME
// as label. Empty colors fall back to the defaults.
func Labeled(fill, stroke string) StyleFunc {
	if fill == "" {
		fill = DefaultFill
	}
	if stroke == "" {
		stroke = DefaultStroke
	}
	return func(f *geo.Feature) Style {
		return Style{
			Fill:            fill,
			Stroke:          stroke,
			StrokeWidth:     1,
			Label:           f.Name,
			Font:            labelFont,
			TextFill:        "#000000",
			TextStroke:      "#ffffff",
			TextStrokeWidth: 3,
		}
	}
}

// DefaultStyle is the style for dataset layers without explicit colors.
var DefaultStyle = Labeled(DefaultFill, DefaultStroke)

// HighlightStyle is the style for the overlay layer.
var HighlightStyle = Labeled(HighlightColor, HighlightColor)
