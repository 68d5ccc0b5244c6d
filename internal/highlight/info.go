package highlight

import (
	"math"
	"strconv"

	"github.com/joeblew999/plat-census/internal/geo"
)

// Placeholder is the info line when nothing is selected: a non-breaking
// space, so the info element keeps its height.
const Placeholder = "\u00a0"

// NotAvailable replaces both percentages when a feature has no usable area.
const NotAvailable = "N/A"

// RenderInfo formats "<NAME> (<STUSPS>): <land>% land, <water>% water".
// The parenthesized abbreviation is omitted when the feature has none, and
// both percentages read N/A unless both areas are finite and non-negative
// with a positive sum.
func RenderInfo(f *geo.Feature) string {
	if f == nil {
		return Placeholder
	}

	land, water := NotAvailable, NotAvailable
	if usable(f.ALand, f.AWater) {
		total := f.TotalArea()
		land = percent(f.ALand, total)
		water = percent(f.AWater, total)
	}

	label := f.Name
	if f.HasStusps() {
		label += " (" + f.STUSPS + ")"
	}
	return label + ": " + land + "% land, " + water + "% water"
}

func usable(land, water float64) bool {
	for _, v := range []float64{land, water} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	total := land + water
	return total > 0 && !math.IsInf(total, 0)
}

func percent(part, total float64) string {
	return strconv.FormatFloat(part*100/total, 'f', 1, 64)
}
