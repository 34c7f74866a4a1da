// Package flip computes the strips of a 3D page turn and drives the turn
// from drags or programmatic flips.
//
// A turning page is cut into vertical strips. Each strip gets a CSS-style
// transform, a background offset into the page image and a lighting overlay.
// Polygons is a pure function of the view, the current page, the direction and
// the progress, so a frame can be rendered anywhere: in a browser through the
// CSS strings, or rasterized by the preview package.
package flip

import (
	"fmt"
	"math"
	"strconv"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/matrix"
)

// Direction is the way pages turn.
type Direction string

const (
	None  Direction = ""
	Left  Direction = "left"
	Right Direction = "right"
)

// Face is the side of the turning leaf a strip belongs to.
type Face string

const (
	Front Face = "front"
	Back  Face = "back"
)

// View is the size of the page area in pixels.
type View struct {
	Width  float64
	Height float64
}

// Options tune the strip geometry and the lighting.
type Options struct {
	Strips      int
	Ambient     float64
	Gloss       float64
	Perspective float64
}

// DefaultOptions returns the stock strip count, lighting and perspective.
func DefaultOptions() Options {
	return Options{
		Strips:      constants.FlipStrips,
		Ambient:     constants.FlipAmbient,
		Gloss:       constants.FlipGloss,
		Perspective: constants.FlipPerspective,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Strips < 2 {
		o.Strips = d.Strips
	}
	if o.Perspective <= 0 {
		o.Perspective = d.Perspective
	}
	return o
}

// Polygon is one strip of the turning leaf.
type Polygon struct {
	Key       string
	PageIndex int
	Face      Face
	Index     int
	Matrix    matrix.Matrix
	// BackgroundPosition is the horizontal offset into the page image, in percent.
	BackgroundPosition float64
	Width              float64
	Height             float64
	Lighting           Lighting
	ZIndex             int
	Depth              float64
}

// Transform is the strip's CSS transform value.
func (p Polygon) Transform() string {
	return p.Matrix.String()
}

// BackgroundPositionCSS is the strip's CSS background-position value.
func (p Polygon) BackgroundPositionCSS() string {
	return strconv.FormatFloat(p.BackgroundPosition, 'f', -1, 64) + "% 0px"
}

// Polygons returns the strips of the front face followed by the strips of the
// back face. It returns nil when no turn is in progress or the view is empty.
func Polygons(view View, opts Options, currentPage int, dir Direction, progress float64) []Polygon {
	if (dir != Left && dir != Right) || view.Width <= 0 || view.Height <= 0 {
		return nil
	}
	opts = opts.withDefaults()
	progress = clamp01(progress)

	out := make([]Polygon, 0, 2*opts.Strips)
	out = append(out, facePolygons(view, opts, currentPage, dir, progress, Front)...)
	out = append(out, facePolygons(view, opts, currentPage, dir, progress, Back)...)
	return out
}

// PageRotation is the Y rotation of the whole face in degrees. The leaf stays
// flat for the first half of the turn and swings over during the second.
func PageRotation(dir Direction, face Face, progress float64) float64 {
	rotation := 0.0
	if progress > 0.5 {
		rotation = -(progress - 0.5) * 2 * 180
	}
	if dir == Left {
		rotation = -rotation
	}
	if face == Back {
		rotation += 180
	}
	return rotation
}

// Theta is the arc the leaf is bent through, in radians. It peaks at π at half way.
func Theta(progress float64) float64 {
	if progress < 0.5 {
		return progress * 2 * math.Pi
	}
	return (1 - (progress-0.5)*2) * math.Pi
}

func facePolygons(view View, opts Options, currentPage int, dir Direction, progress float64, face Face) []Polygon {
	w := view.Width
	n := opts.Strips

	var pageX float64
	originRight := false
	switch {
	case dir == Left && face == Back, dir == Right && face == Front:
		pageX = w / 2
	default:
		originRight = true
	}

	page := matrix.NewStack().
		Translate(w/2, 0).
		Perspective(opts.Perspective).
		Translate(-w/2, 0).
		Translate(pageX, 0)

	pageRotation := PageRotation(dir, face, progress)
	if pageRotation != 0 {
		if originRight {
			page = page.Translate(w, 0)
		}
		page = page.RotateY(pageRotation)
		if originRight {
			page = page.Translate(-w, 0)
		}
	}

	theta := Theta(progress)
	radius := w / nonZero(theta)

	dRadian := theta / float64(n)
	rotate := dRadian / 2 / math.Pi * 180
	dRotate := dRadian / math.Pi * 180
	if originRight {
		rotate = -theta/math.Pi*180 + dRotate/2
	}
	if face == Back {
		rotate = -rotate
	}

	pageIndex := pageIndexFor(currentPage, dir, face)

	out := make([]Polygon, n)
	radian := 0.0
	for i := 0; i < n; i++ {
		rad := radian
		if originRight {
			rad = theta - radian
		}
		x := math.Sin(rad) * radius
		z := (1 - math.Cos(rad)) * radius
		depth := z
		if face == Back {
			depth = -z * constants.FlipBackDepthFactor
		}
		tx := x
		if originRight {
			tx = w - x
		}

		out[i] = Polygon{
			Key:                fmt.Sprintf("%s%d", face, i),
			PageIndex:          pageIndex,
			Face:               face,
			Index:              i,
			Matrix:             page.Translate3d(tx, 0, depth).RotateY(-rotate).Matrix(),
			BackgroundPosition: float64(i) / float64(n-1) * 100,
			Width:              w / float64(n),
			Height:             view.Height,
			Lighting:           ComputeLighting(pageRotation-rotate, dRotate, opts),
			ZIndex:             int(math.Abs(math.Round(depth))),
			Depth:              depth,
		}

		radian += dRadian
		rotate += dRotate
	}
	return out
}

func pageIndexFor(currentPage int, dir Direction, face Face) int {
	if dir == Left {
		if face == Front {
			return currentPage - 2
		}
		return currentPage - 1
	}
	if face == Front {
		return currentPage + 1
	}
	return currentPage + 2
}

// Opacity of the turning leaf: opaque until 70% progress, then fading to 0 at 100%.
func Opacity(progress float64) float64 {
	progress = clamp01(progress)
	start := constants.FlipFadeStart
	if progress > start {
		return math.Max(0, 1-(progress-start)/(1-start))
	}
	return 1
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1e-9
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
