// Package ratio converts the symbolic fractions used by the flat plan
// ("1/4", "full", "1/50") into percentages.
//
// Every conversion is total: malformed input degrades to 100% and is logged
// through the package logger so it can be diagnosed later.
package ratio

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/flatplan/flatplan.go/pkg/logger"
)

// Full is the size ratio covering the whole page.
const Full = "full"

// SizeRatio is a visual width or height.
type SizeRatio = string

// Size ratios offered for visuals.
const (
	Tenth   SizeRatio = "1/10"
	Eighth  SizeRatio = "1/8"
	Sixth   SizeRatio = "1/6"
	Quarter SizeRatio = "1/4"
	Third   SizeRatio = "1/3"
	Half    SizeRatio = "1/2"
)

// SizeRatios lists the selectable visual sizes, smallest first.
var SizeRatios = []SizeRatio{Tenth, Eighth, Sixth, Quarter, Third, Half, Full}

// LineHeights lists the selectable line heights, densest first.
var LineHeights = []string{"1/300", "1/250", "1/200", "1/150", "1/100", "1/75", "1/50", "1/25", "1/10"}

var pkgLogger atomic.Pointer[logger.Logger]

// SetLogger installs the logger used to report malformed ratios.
func SetLogger(l logger.Logger) {
	l = logger.OrNop(l)
	pkgLogger.Store(&l)
}

func log() logger.Logger {
	if l := pkgLogger.Load(); l != nil {
		return *l
	}
	return logger.Nop()
}

// Fraction parses "N/D" into N/D. "full" is 1. It reports false for anything
// else, including non-positive parts and non-finite results.
func Fraction(r string) (float64, bool) {
	r = strings.TrimSpace(r)
	if r == Full {
		return 1, true
	}
	num, den, ok := strings.Cut(r, "/")
	if !ok || strings.Contains(den, "/") {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil {
		return 0, false
	}
	if n <= 0 || d <= 0 || math.IsInf(n, 0) || math.IsInf(d, 0) {
		return 0, false
	}
	f := n / d
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToPercent maps a size ratio to a percentage in [0,100].
func ToPercent(r string) float64 {
	f, ok := Fraction(r)
	if !ok {
		log().Warn("malformed size ratio, using full size", "ratio", r)
		return 100
	}
	return clamp(f*100, 0, 100)
}

// LineHeightToPercent maps a line height ratio to the percentage of the page
// height one line takes.
func LineHeightToPercent(lineHeight string) float64 {
	f, ok := Fraction(lineHeight)
	if !ok || lineHeight == Full {
		log().Warn("malformed line height, using full size", "line_height", lineHeight)
		return 100
	}
	return clamp(f*100, 0, 100)
}

// Denominator returns D of "N/D", or 0 when lineHeight does not parse.
func Denominator(lineHeight string) float64 {
	_, den, ok := strings.Cut(lineHeight, "/")
	if !ok {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil || d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
		return 0
	}
	return d
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
