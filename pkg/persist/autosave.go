package persist

import (
	"context"
	"sync"

	"github.com/flatplan/flatplan.go/pkg/document"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
)

// Autosaver writes a document to its Store after every change.
type Autosaver struct {
	store  Store
	id     string
	logger logger.Logger

	mu      sync.Mutex
	saves   int
	lastErr error
}

// NewAutosaver saves into magazine id of store.
func NewAutosaver(store Store, id string, log logger.Logger) *Autosaver {
	return &Autosaver{store: store, id: id, logger: logger.OrNop(log)}
}

// Attach starts saving d on every change.
func (a *Autosaver) Attach(d *document.Document) {
	d.OnChange(func(models.Document) {
		_ = a.Save(context.Background(), d)
	})
}

// Save writes d now.
func (a *Autosaver) Save(ctx context.Context, d *document.Document) error {
	err := a.store.Save(ctx, a.id, d.Saved())

	a.mu.Lock()
	a.saves++
	a.lastErr = err
	a.mu.Unlock()

	if err != nil {
		a.logger.Warn("autosave failed", "magazine_id", a.id, "error", err)
		return err
	}
	a.logger.Debug("magazine saved", "magazine_id", a.id)
	return nil
}

// Saves is how many saves were attempted.
func (a *Autosaver) Saves() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

// Err is the outcome of the last save.
func (a *Autosaver) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}
