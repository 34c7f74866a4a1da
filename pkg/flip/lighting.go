package flip

import (
	"math"
	"strconv"
	"strings"

	"github.com/flatplan/flatplan.go/pkg/constants"
)

// LightingPoints are the offsets, in strips, at which lighting is sampled
// across one strip. They map to gradient stops at 0, 25, 50, 75 and 100%.
var LightingPoints = [5]float64{-0.5, -0.25, 0, 0.25, 0.5}

var stopOffsets = [5]float64{0, 0.25, 0.5, 0.75, 1}

// Lighting is the shading overlay of one strip: a black diffuse gradient and
// a white specular gradient, as alpha values at each sample point.
type Lighting struct {
	Diffuse     [5]float64
	Specular    [5]float64
	HasDiffuse  bool
	HasSpecular bool
}

// Stop is one color stop of a lighting gradient. Channels are in [0,1].
type Stop struct {
	Offset     float64
	R, G, B, A float64
}

// ComputeLighting shades a strip rotated by rot degrees whose neighbours differ
// by dRotate degrees.
func ComputeLighting(rot, dRotate float64, opts Options) Lighting {
	var l Lighting
	if opts.Ambient < 1 {
		l.HasDiffuse = true
		blackness := 1 - opts.Ambient
		for i, d := range LightingPoints {
			l.Diffuse[i] = (1 - cosDeg(rot-dRotate*d)) * blackness
		}
	}
	if opts.Gloss > 0 {
		l.HasSpecular = true
		for i, d := range LightingPoints {
			a := math.Pow(cosDeg(rot+constants.FlipSpecularDeg-dRotate*d), constants.FlipSpecularPow)
			b := math.Pow(cosDeg(rot-constants.FlipSpecularDeg-dRotate*d), constants.FlipSpecularPow)
			l.Specular[i] = math.Max(a, b) * opts.Gloss
		}
	}
	return l
}

// Stops returns the diffuse and specular gradients as color stops.
func (l Lighting) Stops() (diffuse, specular []Stop) {
	if l.HasDiffuse {
		diffuse = make([]Stop, len(stopOffsets))
		for i, off := range stopOffsets {
			diffuse[i] = Stop{Offset: off, A: clamp01(l.Diffuse[i])}
		}
	}
	if l.HasSpecular {
		specular = make([]Stop, len(stopOffsets))
		for i, off := range stopOffsets {
			specular[i] = Stop{Offset: off, R: 1, G: 1, B: 1, A: clamp01(l.Specular[i])}
		}
	}
	return diffuse, specular
}

// CSS renders the overlay as a comma separated list of linear-gradient() values.
func (l Lighting) CSS() string {
	var gradients []string
	if l.HasDiffuse {
		gradients = append(gradients, gradient("0, 0, 0", l.Diffuse))
	}
	if l.HasSpecular {
		gradients = append(gradients, gradient("255, 255, 255", l.Specular))
	}
	return strings.Join(gradients, ",")
}

func gradient(rgb string, alpha [5]float64) string {
	var b strings.Builder
	b.WriteString("linear-gradient(to right")
	for i, a := range alpha {
		b.WriteString(", rgba(")
		b.WriteString(rgb)
		b.WriteString(", ")
		b.WriteString(formatAlpha(a))
		b.WriteByte(')')
		if i > 0 && i < len(alpha)-1 {
			b.WriteByte(' ')
			b.WriteString(strconv.Itoa(int(stopOffsets[i] * 100)))
			b.WriteByte('%')
		}
	}
	b.WriteByte(')')
	return b.String()
}

func formatAlpha(v float64) string {
	if math.Abs(v) < 1e-12 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cosDeg(deg float64) float64 {
	return math.Cos(deg / 180 * math.Pi)
}
