package models

import "slices"

// VisualType is the kind of visual block placed on a page.
type VisualType string

const (
	VisualImage        VisualType = "image"
	VisualIllustration VisualType = "illustration"
)

// Tag labels an article's editorial status.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Margins are page margins in percent of the page.
type Margins struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Visual is an image or illustration positioned on one of an article's pages.
//
// X and Y are percentages of the page. Page is 1-based within the article.
// SpaceOccupied is derived: width% × height% / 100.
type Visual struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Type          VisualType `json:"type"`
	Width         string     `json:"width"`
	Height        string     `json:"height"`
	X             float64    `json:"x"`
	Y             float64    `json:"y"`
	Page          int        `json:"page"`
	URL           string     `json:"url,omitempty"`
	SpaceOccupied float64    `json:"spaceOccupied"`
}

// ArticlePage is the derived content of one page of an article.
type ArticlePage struct {
	PageNumber     int      `json:"pageNumber"`
	Visuals        []Visual `json:"visuals"`
	AvailableSpace float64  `json:"availableSpace"`
	WordCount      int      `json:"wordCount"`
}

// Article is one entry of the flat plan.
//
// PageCount, WordsPerPage and Pages are derived by the layout engine.
// StartPage is derived from the reading order.
type Article struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	URL          string        `json:"url,omitempty"`
	Tags         []Tag         `json:"tags"`
	WordCount    int           `json:"wordCount"`
	PageCount    int           `json:"pageCount"`
	Columns      int           `json:"columns"`
	StartPage    int           `json:"startPage"`
	WordsPerPage int           `json:"wordsPerPage"`
	LineHeight   string        `json:"lineHeight"`
	IsLocked     bool          `json:"isLocked"`
	Visuals      []Visual      `json:"visuals"`
	Pages        []ArticlePage `json:"pages"`
}

// EndPage is the last magazine page the article occupies.
func (a *Article) EndPage() int {
	return a.StartPage + max(a.PageCount, 1) - 1
}

// Visual returns the visual with id.
func (a *Article) Visual(id string) (Visual, bool) {
	for _, v := range a.Visuals {
		if v.ID == id {
			return v, true
		}
	}
	return Visual{}, false
}

// Clone returns a deep copy.
func (a Article) Clone() Article {
	out := a
	out.Tags = slices.Clone(a.Tags)
	out.Visuals = slices.Clone(a.Visuals)
	if a.Pages != nil {
		out.Pages = make([]ArticlePage, len(a.Pages))
		for i, p := range a.Pages {
			p.Visuals = slices.Clone(p.Visuals)
			out.Pages[i] = p
		}
	}
	return out
}

// CloneArticles deep-copies a list of articles.
func CloneArticles(in []Article) []Article {
	if in == nil {
		return nil
	}
	out := make([]Article, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}

// DefaultTags is the status catalogue a new magazine starts with.
func DefaultTags() []Tag {
	return []Tag{
		{ID: "todo", Name: "To Do", Color: "#EF4444"},
		{ID: "in-progress", Name: "In Progress", Color: "#F59E0B"},
		{ID: "to-review", Name: "To Review", Color: "#3B82F6"},
		{ID: "done", Name: "Done", Color: "#10B981"},
	}
}
