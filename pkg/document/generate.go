package document

import (
	"fmt"
	"strings"

	"github.com/flatplan/flatplan.go/internal/rand"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/ratio"
)

// Kind selects the sample article Generate builds.
type Kind string

const (
	Regular  Kind = "regular"
	Cover    Kind = "cover"
	FullPage Kind = "full-page"
)

// ParseKind accepts the kind names used on the command line.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Regular, Cover, FullPage:
		return k, nil
	case "":
		return Regular, nil
	}
	return "", fmt.Errorf("unknown article kind %q", s)
}

var (
	sampleTitles = []string{
		"The Future of Technology",
		"A Journey Through Time",
		"Understanding Modern Art",
		"The Science Behind Dreams",
		"Exploring Ancient Civilizations",
		"The Power of Innovation",
		"Nature's Hidden Secrets",
		"The Evolution of Music",
		"Digital Transformation",
		"Sustainable Living",
	}
	sampleURLs = []string{
		"https://example.com/tech-future",
		"https://example.com/time-travel",
		"https://example.com/modern-art",
		"https://example.com/dream-science",
		"https://example.com/ancient-civilizations",
		"https://example.com/innovation",
		"https://example.com/nature-secrets",
		"https://example.com/music-evolution",
		"https://example.com/digital-transformation",
		"https://example.com/sustainable-living",
	}
	coverTitles = []string{
		"The Innovation Issue",
		"Future Forward",
		"Design & Technology",
		"The Art of Science",
		"Nature's Wonders",
		"Urban Living",
		"Digital Revolution",
		"Creative Minds",
	}
	visualTitles      = []string{"Main Photo", "Illustration", "Infographic", "Portrait", "Diagram", "Chart"}
	sampleLineHeights = []string{"1/100", "1/75", "1/50", "1/25"}
)

// Generate builds a sample article of kind. Tags are drawn from tags, or from
// the default catalogue when it is empty. The article has no id and no start
// page; AddArticle assigns both.
func Generate(kind Kind, tags []models.Tag, rnd rand.Source) models.Article {
	if rnd == nil {
		rnd = rand.Default()
	}
	if len(tags) == 0 {
		tags = models.DefaultTags()
	}
	switch kind {
	case Cover:
		return fullPageArticle(pick(rnd, coverTitles), "Cover Image", tags, rnd)
	case FullPage:
		return fullPageArticle("Full Page Photo", "Full Page Image", tags, rnd)
	}

	a := models.Article{
		Title:      pick(rnd, sampleTitles),
		Tags:       pickTags(rnd, tags),
		WordCount:  rnd.IntN(2000) + 500,
		Columns:    rnd.IntN(3) + 1,
		LineHeight: pick(rnd, sampleLineHeights),
		Visuals:    []models.Visual{},
	}
	if rnd.Float64() > 0.5 {
		a.URL = pick(rnd, sampleURLs)
	}
	for range rnd.IntN(3) {
		a.Visuals = append(a.Visuals, sampleVisual(rnd))
	}
	return a
}

func fullPageArticle(title, visualTitle string, tags []models.Tag, rnd rand.Source) models.Article {
	return models.Article{
		Title:      title,
		Tags:       []models.Tag{tags[rnd.IntN(len(tags))]},
		Columns:    1,
		LineHeight: "1/50",
		IsLocked:   true,
		Visuals: []models.Visual{{
			ID:     rand.NewShortID(9),
			Title:  visualTitle,
			Type:   models.VisualImage,
			Width:  ratio.Full,
			Height: ratio.Full,
			Page:   1,
			URL:    fmt.Sprintf("https://picsum.photos/seed/%d/1200/1600", rnd.IntN(1000)),
		}},
	}
}

func sampleVisual(rnd rand.Source) models.Visual {
	// every size but full
	sizes := ratio.SizeRatios[:len(ratio.SizeRatios)-1]
	v := models.Visual{
		ID:     rand.NewShortID(9),
		Title:  pick(rnd, visualTitles),
		Type:   models.VisualImage,
		Width:  pick(rnd, sizes),
		Height: pick(rnd, sizes),
		X:      float64(rnd.IntN(60)),
		Y:      float64(rnd.IntN(60)),
		Page:   1,
	}
	if rnd.Float64() > 0.5 {
		v.Type = models.VisualIllustration
	}
	if rnd.Float64() > 0.5 {
		v.URL = fmt.Sprintf("https://picsum.photos/seed/%d/800/600", rnd.IntN(1000))
	}
	return v
}

func pickTags(rnd rand.Source, tags []models.Tag) []models.Tag {
	n := rnd.IntN(min(3, len(tags))) + 1
	idx := make([]int, len(tags))
	for i := range idx {
		idx[i] = i
	}
	for i := len(idx) - 1; i > 0; i-- {
		j := rnd.IntN(i + 1)
		idx[i], idx[j] = idx[j], idx[i]
	}
	out := make([]models.Tag, n)
	for i := range out {
		out[i] = tags[idx[i]]
	}
	return out
}

func pick[T any](rnd rand.Source, from []T) T {
	return from[rnd.IntN(len(from))]
}
