// Package preview rasterizes a page-turn frame to PNG.
//
// Strips are projected through their transforms, sorted back to front and
// filled with the paper color, then with the diffuse and specular gradients of
// their lighting. Strips facing away from the viewer are culled.
package preview

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/gogpu/gg"

	"github.com/flatplan/flatplan.go/pkg/flip"
)

// Options control the output image.
type Options struct {
	// Padding is added around the spread on every side, in pixels.
	Padding    float64
	Background gg.RGBA
	FrontPaper gg.RGBA
	BackPaper  gg.RGBA
}

// DefaultOptions is a dark backdrop with white paper.
func DefaultOptions() Options {
	return Options{
		Padding:    20,
		Background: gg.Hex("#1F2937"),
		FrontPaper: gg.RGBA{R: 1, G: 1, B: 1, A: 1},
		BackPaper:  gg.Hex("#F3F4F6"),
	}
}

// Size is the pixel size of the image Render produces for view.
func Size(view flip.View, opts Options) (int, int) {
	w := int(math.Ceil(2*view.Width + 2*opts.Padding))
	h := int(math.Ceil(view.Height + 2*opts.Padding))
	return max(w, 1), max(h, 1)
}

type projected struct {
	poly    flip.Polygon
	corners [4][2]float64
	depth   float64
}

// Render draws frame and writes it to w as PNG.
func Render(w io.Writer, frame flip.Frame, opts Options) error {
	cw, ch := Size(frame.View, opts)
	dc := gg.NewContext(cw, ch)
	defer dc.Close()

	dc.ClearWithColor(opts.Background)

	strips := project(frame.Polygons, opts.Padding)
	for _, s := range strips {
		paper := opts.FrontPaper
		if s.poly.Face == flip.Back {
			paper = opts.BackPaper
		}
		if err := fillQuad(dc, s.corners, gg.Solid(paper)); err != nil {
			return fmt.Errorf("fill strip %s: %w", s.poly.Key, err)
		}

		diffuse, specular := s.poly.Lighting.Stops()
		for _, stops := range [][]flip.Stop{diffuse, specular} {
			if len(stops) == 0 {
				continue
			}
			if err := fillQuad(dc, s.corners, gradient(s.corners, stops)); err != nil {
				return fmt.Errorf("shade strip %s: %w", s.poly.Key, err)
			}
		}
	}

	return dc.EncodePNG(w)
}

// project maps every strip to screen space, drops back-facing strips and
// orders the rest from far to near.
func project(polys []flip.Polygon, pad float64) []projected {
	out := make([]projected, 0, len(polys))
	for _, p := range polys {
		local := [4][2]float64{{0, 0}, {p.Width, 0}, {p.Width, p.Height}, {0, p.Height}}
		var s projected
		s.poly = p
		for i, c := range local {
			x, y, z := p.Matrix.TransformPoint(c[0], c[1], 0)
			s.corners[i] = [2]float64{x + pad, y + pad}
			s.depth += z / 4
		}
		if signedArea(s.corners) <= 0 {
			continue
		}
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b projected) int {
		return cmp.Compare(a.depth, b.depth)
	})
	return out
}

func signedArea(q [4][2]float64) float64 {
	var a float64
	for i := range q {
		j := (i + 1) % len(q)
		a += q[i][0]*q[j][1] - q[j][0]*q[i][1]
	}
	return a / 2
}

func fillQuad(dc *gg.Context, q [4][2]float64, brush gg.Brush) error {
	dc.SetFillBrush(brush)
	dc.MoveTo(q[0][0], q[0][1])
	for _, c := range q[1:] {
		dc.LineTo(c[0], c[1])
	}
	dc.ClosePath()
	return dc.Fill()
}

// gradient runs along the strip's projected top edge.
func gradient(q [4][2]float64, stops []flip.Stop) gg.Brush {
	g := gg.NewLinearGradientBrush(q[0][0], q[0][1], q[1][0], q[1][1])
	for _, s := range stops {
		g.AddColorStop(s.Offset, gg.RGBA2(s.R, s.G, s.B, s.A))
	}
	return g
}
