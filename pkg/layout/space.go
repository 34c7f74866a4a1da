package layout

import (
	"math"
	"slices"

	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/ratio"
)

// VisualSpace is the share of the page a visual covers, in percent.
func VisualSpace(v models.Visual) float64 {
	w := ratio.ToPercent(v.Width)
	h := ratio.ToPercent(v.Height)
	return clamp(w*h/100, 0, 100)
}

// PushDown is how far a visual pushes text down from its top edge, in percent.
func PushDown(v models.Visual) float64 {
	h := ratio.ToPercent(v.Height)
	return math.Max(0, math.Min(v.Y+h, 100)-v.Y)
}

// PageAvailableSpace is the vertical share of the page left for text.
//
// It starts from the content band between the top and bottom margins and
// subtracts the union of the visuals' vertical extents inside that band, so
// overlapping visuals are only counted once. The result is in [0, 100-top-bottom].
func PageAvailableSpace(visuals []models.Visual, margins models.Margins) float64 {
	top := clamp(margins.Top, 0, 100)
	bottom := 100 - clamp(margins.Bottom, 0, 100)
	band := math.Max(0, bottom-top)
	if len(visuals) == 0 || band == 0 {
		return band
	}

	type span struct{ from, to float64 }
	spans := make([]span, 0, len(visuals))
	for _, v := range visuals {
		from := math.Max(v.Y, top)
		to := math.Min(v.Y+PushDown(v), bottom)
		if to > from {
			spans = append(spans, span{from, to})
		}
	}
	slices.SortFunc(spans, func(a, b span) int {
		switch {
		case a.from < b.from:
			return -1
		case a.from > b.from:
			return 1
		}
		return 0
	})

	covered := 0.0
	cursor := top
	for _, s := range spans {
		if s.to <= cursor {
			continue
		}
		covered += s.to - math.Max(s.from, cursor)
		cursor = s.to
	}
	return clamp(band-covered, 0, band)
}

// AvailableLines is how many text lines of lineHeight fit into availableSpace percent.
func AvailableLines(lineHeight string, availableSpace float64) int {
	pct := ratio.LineHeightToPercent(lineHeight)
	if pct <= 0 || availableSpace <= 0 {
		return 0
	}
	return int(math.Floor(availableSpace/pct + epsilon))
}

// ValidateVisualPosition clamps a visual's position so that it stays on the page.
func ValidateVisualPosition(v models.Visual) (x, y float64) {
	maxX := 100 - ratio.ToPercent(v.Width)
	maxY := 100 - ratio.ToPercent(v.Height)
	return clamp(v.X, 0, maxX), clamp(v.Y, 0, maxY)
}

// epsilon absorbs float error before flooring.
const epsilon = 1e-9

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
