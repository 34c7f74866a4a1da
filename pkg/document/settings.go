package document

import (
	"context"
	"slices"

	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/ratio"
)

// UpdateSettings replaces the masthead settings. An unknown page ratio keeps
// the current one.
func (d *Document) UpdateSettings(ctx context.Context, s models.Settings, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "update settings"); err != nil {
			return Change{}, "", false, err
		}
		if s.PageRatio == "" {
			s.PageRatio = st.Settings.PageRatio
		} else if _, err := ratio.ParsePageRatio(s.PageRatio); err != nil {
			d.logger.Warn("unknown page ratio, keeping current", "page_ratio", s.PageRatio, "error", err)
			s.PageRatio = st.Settings.PageRatio
		}
		if s == st.Settings {
			return Change{}, "", false, nil
		}
		st.Settings = s
		return Change{Kind: MagazineUpdated}, "Updated magazine settings", true, nil
	})
}

// SetZoomLevel changes the view zoom. View state is not part of history.
func (d *Document) SetZoomLevel(z models.ZoomLevel) {
	d.setView(func(st *models.Document) { st.ZoomLevel = z })
}

// SetShowList toggles the article list. View state is not part of history.
func (d *Document) SetShowList(show bool) {
	d.setView(func(st *models.Document) { st.ShowList = show })
}

func (d *Document) setView(fn func(*models.Document)) {
	d.mu.Lock()
	fn(&d.state)
	st, fns := d.state.Clone(), d.listenersLocked()
	d.mu.Unlock()
	notify(fns, st)
}

// SetShareStatus updates the share flags. A local change on a shared magazine
// tells peers the new edit permission.
func (d *Document) SetShareStatus(ctx context.Context, s models.Sharing, opts ApplyOptions) {
	d.mu.Lock()
	d.state.Sharing = s
	st, fns := d.state.Clone(), d.listenersLocked()
	b := d.broadcaster
	d.mu.Unlock()

	notify(fns, st)
	if opts.shouldBroadcast() && s.IsShared {
		d.publish(ctx, b, Change{Kind: ShareStateUpdated, AllowEdit: s.AllowEdit})
	}
}

// AllowEdit reports whether this client may edit.
func (d *Document) AllowEdit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Sharing.AllowEdit
}

// AddTag adds a status tag to the catalogue, replacing one with the same id.
func (d *Document) AddTag(t models.Tag) {
	d.setView(func(st *models.Document) {
		if i := tagIndex(st.Tags, t.ID); i >= 0 {
			st.Tags[i] = t
			return
		}
		st.Tags = append(st.Tags, t)
	})
}

// UpdateTag changes a catalogue tag and every article tagged with it.
func (d *Document) UpdateTag(t models.Tag) {
	d.setView(func(st *models.Document) {
		if i := tagIndex(st.Tags, t.ID); i >= 0 {
			st.Tags[i] = t
		}
		for ai := range st.Articles {
			if i := tagIndex(st.Articles[ai].Tags, t.ID); i >= 0 {
				st.Articles[ai].Tags[i] = t
			}
		}
	})
}

// DeleteTag removes a tag from the catalogue. Articles keep their copy.
func (d *Document) DeleteTag(id string) {
	d.setView(func(st *models.Document) {
		st.Tags = slices.DeleteFunc(st.Tags, func(t models.Tag) bool { return t.ID == id })
	})
}

func tagIndex(tags []models.Tag, id string) int {
	return slices.IndexFunc(tags, func(t models.Tag) bool { return t.ID == id })
}
