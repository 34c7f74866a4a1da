// Package share turns a magazine into something another client can open:
// a relay share blob, an inline URL payload, and the share link itself.
package share

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/flatplan/flatplan.go/pkg/models"
)

// Magazine is the part of a document that travels with a share.
type Magazine struct {
	Articles        []models.Article       `json:"articles"`
	ZoomLevel       models.ZoomLevel       `json:"zoomLevel"`
	ShowList        bool                   `json:"showList"`
	Title           string                 `json:"title"`
	IssueNumber     string                 `json:"issueNumber"`
	PublicationDate string                 `json:"publicationDate"`
	PageRatio       string                 `json:"pageRatio"`
	Pages           int                    `json:"pages,omitempty"`
	PageMargins     map[int]models.Margins `json:"pageMargins,omitempty"`
	Tags            []models.Tag           `json:"tags,omitempty"`
}

// State is the shared payload.
type State struct {
	Magazine Magazine `json:"magazine"`
}

// FromDocument captures what a share needs from d.
func FromDocument(d models.Document) State {
	d = d.Clone()
	return State{Magazine: Magazine{
		Articles:        d.Articles,
		ZoomLevel:       d.ZoomLevel,
		ShowList:        d.ShowList,
		Title:           d.Settings.Title,
		IssueNumber:     d.Settings.IssueNumber,
		PublicationDate: d.Settings.PublicationDate,
		PageRatio:       d.Settings.PageRatio,
		Pages:           d.Pages,
		PageMargins:     d.PageMargins,
		Tags:            d.Tags,
	}}
}

// Document expands s into a full document. Fields the share does not carry
// keep their defaults.
func (s State) Document() models.Document {
	m := s.Magazine
	d := models.NewDocument()
	d.Articles = models.CloneArticles(m.Articles)
	if m.ZoomLevel != "" {
		d.ZoomLevel = m.ZoomLevel
	}
	d.ShowList = m.ShowList
	if m.Title != "" {
		d.Settings.Title = m.Title
	}
	if m.IssueNumber != "" {
		d.Settings.IssueNumber = m.IssueNumber
	}
	if m.PublicationDate != "" {
		d.Settings.PublicationDate = m.PublicationDate
	}
	if m.PageRatio != "" {
		d.Settings.PageRatio = m.PageRatio
	}
	if m.Pages > 0 {
		d.Pages = m.Pages
	}
	for page, margins := range m.PageMargins {
		d.PageMargins[page] = margins
	}
	if len(m.Tags) > 0 {
		d.Tags = append([]models.Tag(nil), m.Tags...)
	}
	return d
}

// MarshalBlob encodes s as the opaque blob stored by a relay.
func MarshalBlob(s State) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode share state: %w", err)
	}
	return b, nil
}

// UnmarshalBlob decodes a relay blob.
func UnmarshalBlob(b []byte) (State, error) {
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return State{}, fmt.Errorf("decode share state: %w", err)
	}
	return s, nil
}
