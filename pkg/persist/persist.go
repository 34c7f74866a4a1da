// Package persist keeps magazines on this machine between sessions.
//
// A Store holds one record per magazine: its settings for listing plus the
// full document and undo history. Memory is the in-process Store; the
// sqlitestore package keeps them in a SQLite file.
package persist

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/maruel/natural"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/document"
	"github.com/flatplan/flatplan.go/pkg/models"
)

// Magazine is a stored magazine.
type Magazine struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	IssueNumber     string         `json:"issueNumber"`
	PublicationDate string         `json:"publicationDate"`
	PageRatio       string         `json:"pageRatio"`
	IsShared        bool           `json:"isShared"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	State           document.Saved `json:"state"`
}

// Store is where magazines live.
type Store interface {
	// List returns every magazine ordered by title, then id.
	List(ctx context.Context) ([]Magazine, error)
	Get(ctx context.Context, id string) (Magazine, error)
	// Create stores an empty magazine with the given settings. Blank settings
	// take the defaults.
	Create(ctx context.Context, settings models.Settings) (Magazine, error)
	// Save replaces the state of magazine id.
	Save(ctx context.Context, id string, state document.Saved) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewID derives a magazine id from its title: a slug plus a short random
// suffix so that equal titles do not collide.
func NewID(title string) string {
	s := slug.Make(title)
	if s == "" {
		s = "magazine"
	}
	return s + "-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// New builds the record for a fresh magazine.
func New(settings models.Settings, now time.Time) Magazine {
	doc := models.NewDocument()
	if settings.Title != "" {
		doc.Settings.Title = settings.Title
	}
	if settings.IssueNumber != "" {
		doc.Settings.IssueNumber = settings.IssueNumber
	}
	if settings.PublicationDate != "" {
		doc.Settings.PublicationDate = settings.PublicationDate
	}
	if settings.PageRatio != "" {
		doc.Settings.PageRatio = settings.PageRatio
	}
	if doc.Settings.PublicationDate == "" {
		doc.Settings.PublicationDate = now.Format(time.DateOnly)
	}

	m := Magazine{ID: NewID(doc.Settings.Title), CreatedAt: now}
	m.Apply(document.Saved{Document: doc}, now)
	return m
}

// Apply installs state and refreshes the listing fields from it.
func (m *Magazine) Apply(state document.Saved, now time.Time) {
	m.State = state
	s := state.Document.Settings
	m.Title = s.Title
	m.IssueNumber = s.IssueNumber
	m.PublicationDate = s.PublicationDate
	m.PageRatio = s.PageRatio
	m.IsShared = state.Document.Sharing.IsShared
	m.UpdatedAt = now
}

// Sort orders magazines naturally by title ("Issue 2" before "Issue 10"),
// then by id.
func Sort(ms []Magazine) {
	slices.SortFunc(ms, func(a, b Magazine) int {
		if a.Title != b.Title {
			if natural.Less(a.Title, b.Title) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", constants.ErrMagazineNotFound, id)
}
