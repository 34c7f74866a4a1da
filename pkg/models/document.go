package models

import (
	"maps"
	"slices"
	"time"

	"github.com/flatplan/flatplan.go/pkg/constants"
)

// ZoomLevel is how many spreads the plan view shows.
type ZoomLevel string

const (
	ZoomAll  ZoomLevel = "all"
	ZoomFour ZoomLevel = "4"
	ZoomTwo  ZoomLevel = "2"
	ZoomOne  ZoomLevel = "1"
)

// Settings is the magazine's masthead metadata.
type Settings struct {
	Title           string `json:"title"`
	IssueNumber     string `json:"issueNumber"`
	PublicationDate string `json:"publicationDate"`
	PageRatio       string `json:"pageRatio"`
}

// Sharing holds the share flags of a document.
type Sharing struct {
	IsShared  bool   `json:"isShared"`
	AllowEdit bool   `json:"allowEdit"`
	ShareID   string `json:"shareId,omitempty"`
}

// Document is the full state of one magazine.
type Document struct {
	Articles    []Article       `json:"articles"`
	Pages       int             `json:"pages"`
	PageMargins map[int]Margins `json:"pageMargins"`
	ZoomLevel   ZoomLevel       `json:"zoomLevel"`
	ShowList    bool            `json:"showList"`
	Settings    Settings        `json:"settings"`
	Sharing     Sharing         `json:"sharing"`
	Tags        []Tag           `json:"tags"`
}

// NewDocument returns an empty magazine with the default settings.
func NewDocument() Document {
	return Document{
		Articles:    []Article{},
		Pages:       constants.DefaultPages,
		PageMargins: map[int]Margins{},
		ZoomLevel:   ZoomLevel(constants.DefaultZoomLevel),
		ShowList:    constants.DefaultShowList,
		Settings: Settings{
			Title:       constants.DefaultTitle,
			IssueNumber: constants.DefaultIssueNumber,
			PageRatio:   constants.DefaultPageRatio,
		},
		Sharing: Sharing{AllowEdit: true},
		Tags:    DefaultTags(),
	}
}

// DefaultMargins is the margin applied to pages without an override.
func DefaultMargins() Margins {
	m := constants.DefaultMargin
	return Margins{Top: m, Right: m, Bottom: m, Left: m}
}

// MarginsFor returns the margins of magazine page n.
func (d *Document) MarginsFor(n int) Margins {
	if m, ok := d.PageMargins[n]; ok {
		return m
	}
	return DefaultMargins()
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := d
	out.Articles = CloneArticles(d.Articles)
	out.PageMargins = maps.Clone(d.PageMargins)
	out.Tags = slices.Clone(d.Tags)
	return out
}

// Snapshot is the part of a document that history records and restores.
type Snapshot struct {
	Articles    []Article       `json:"articles"`
	Pages       int             `json:"pages"`
	PageMargins map[int]Margins `json:"pageMargins"`
	Settings    Settings        `json:"settings"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Articles:    CloneArticles(s.Articles),
		Pages:       s.Pages,
		PageMargins: maps.Clone(s.PageMargins),
		Settings:    s.Settings,
	}
}

// HistoryEntry is a snapshot plus what produced it.
type HistoryEntry struct {
	Snapshot    Snapshot  `json:"snapshot"`
	Description string    `json:"description"`
	User        *User     `json:"user,omitempty"`
	At          time.Time `json:"at"`
}
