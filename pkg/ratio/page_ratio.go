package ratio

import "fmt"

// PageRatio is a named page aspect preset, width over height.
type PageRatio struct {
	Name        string
	Value       string
	Description string
}

// Page ratio presets.
var (
	A4     = PageRatio{Name: "A4 (ISO 216)", Value: "1/1.4142", Description: "Standard international paper size ratio"}
	Book   = PageRatio{Name: "2:3", Value: "1/1.5", Description: "Classic book and magazine ratio"}
	Golden = PageRatio{Name: "Golden Ratio", Value: "1/1.6180", Description: "Aesthetically pleasing proportions"}
	Tall   = PageRatio{Name: "1:√3", Value: "1/1.7321", Description: "Tall elegant format"}
)

// PageRatios returns the presets in display order.
func PageRatios() []PageRatio {
	return []PageRatio{A4, Book, Golden, Tall}
}

// ParsePageRatio looks a preset up by value or name.
func ParsePageRatio(s string) (PageRatio, error) {
	for _, p := range PageRatios() {
		if p.Value == s || p.Name == s {
			return p, nil
		}
	}
	return PageRatio{}, fmt.Errorf("unknown page ratio %q", s)
}

// Height returns the page height for width under this ratio.
func (p PageRatio) Height(width float64) float64 {
	f, ok := Fraction(p.Value)
	if !ok {
		return width
	}
	return width / f
}
