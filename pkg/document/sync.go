package document

import (
	"context"
	"fmt"
	"time"

	"github.com/flatplan/flatplan.go/pkg/models"
)

// SyncState replaces the magazine with state received from a share. Sharing
// flags stay as they are and the history starts over.
func (d *Document) SyncState(ctx context.Context, state models.Document) {
	d.mu.Lock()
	sharing := d.state.Sharing
	tags := d.state.Tags
	d.state = state.Clone()
	d.state.Sharing = sharing
	if len(d.state.Tags) == 0 {
		d.state.Tags = tags
	}
	normalize(&d.state)
	d.relayoutLocked()
	d.history.Clear()
	d.lastLocal = map[string]time.Time{}
	st, fns := d.state.Clone(), d.listenersLocked()
	d.mu.Unlock()

	d.logger.Debug("state synced", "articles", len(st.Articles), "pages", st.Pages)
	notify(fns, st)
}

// ApplySnapshot installs a full snapshot, as sent by a peer after an undo.
func (d *Document) ApplySnapshot(ctx context.Context, s models.Snapshot, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "update magazine"); err != nil {
			return Change{}, "", false, err
		}
		d.restoreLocked(s)
		return Change{Kind: MagazineUpdated}, "Updated magazine", true, nil
	})
}

// Reset returns to an empty magazine with default settings and no history.
func (d *Document) Reset() {
	d.mu.Lock()
	d.state = models.NewDocument()
	d.history.Clear()
	d.lastLocal = map[string]time.Time{}
	st, fns := d.state.Clone(), d.listenersLocked()
	d.mu.Unlock()
	notify(fns, st)
}

// Undo restores the state before the last change and announces the result.
// It reports false when there is nothing to undo or this client may not edit.
func (d *Document) Undo(ctx context.Context) bool {
	return d.travel(ctx, "undo", func(current models.Snapshot) (models.Snapshot, bool) {
		return d.history.Undo(current)
	})
}

// Redo re-applies the last undone change and announces the result.
func (d *Document) Redo(ctx context.Context) bool {
	return d.travel(ctx, "redo", func(current models.Snapshot) (models.Snapshot, bool) {
		return d.history.Redo(current)
	})
}

// JumpToHistory restores past entry i. An invalid index is a no-op.
func (d *Document) JumpToHistory(ctx context.Context, i int) bool {
	return d.travel(ctx, fmt.Sprintf("jump to %d", i), func(current models.Snapshot) (models.Snapshot, bool) {
		return d.history.Jump(current, i)
	})
}

func (d *Document) travel(ctx context.Context, what string, step func(models.Snapshot) (models.Snapshot, bool)) bool {
	d.mu.Lock()
	if err := d.checkEditLocked(LocalChange(), what); err != nil {
		d.mu.Unlock()
		return false
	}
	target, ok := step(d.snapshotLocked())
	if !ok {
		d.mu.Unlock()
		return false
	}
	d.restoreLocked(target)
	s := d.snapshotLocked()
	st, fns := d.state.Clone(), d.listenersLocked()
	b := d.broadcaster
	d.mu.Unlock()

	d.logger.Debug("history "+what, "articles", len(s.Articles))
	notify(fns, st)
	d.publish(ctx, b, Change{Kind: MagazineUpdated, Snapshot: &s})
	return true
}
