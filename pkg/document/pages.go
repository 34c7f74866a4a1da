package document

import (
	"context"
	"fmt"

	"github.com/flatplan/flatplan.go/pkg/layout"
	"github.com/flatplan/flatplan.go/pkg/models"
)

// AddPage appends an empty page.
func (d *Document) AddPage(ctx context.Context, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "add page"); err != nil {
			return Change{}, "", false, err
		}
		st.Pages++
		return Change{Kind: MagazineUpdated}, fmt.Sprintf("Added page: %d", st.Pages), true, nil
	})
}

// RemovePage drops the last page. It never removes a page an article occupies
// and never goes below one page.
func (d *Document) RemovePage(ctx context.Context, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "remove page"); err != nil {
			return Change{}, "", false, err
		}
		floor := max(1, layout.RequiredMagazinePages(st.Articles))
		if st.Pages <= floor {
			return Change{}, "", false, nil
		}
		st.Pages--
		return Change{Kind: MagazineUpdated}, fmt.Sprintf("Removed page: %d", st.Pages+1), true, nil
	})
}

// SetPages sets the total page count, raised as needed to fit the articles.
func (d *Document) SetPages(ctx context.Context, n int, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "set pages"); err != nil {
			return Change{}, "", false, err
		}
		n = max(n, 1, layout.RequiredMagazinePages(st.Articles))
		if n == st.Pages {
			return Change{}, "", false, nil
		}
		st.Pages = n
		return Change{Kind: MagazineUpdated}, fmt.Sprintf("Set pages to %d", n), true, nil
	})
}

// UpdatePageMargin overrides the margins of one magazine page.
func (d *Document) UpdatePageMargin(ctx context.Context, page int, m models.Margins, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "update page margins"); err != nil {
			return Change{}, "", false, err
		}
		if page < 1 {
			return Change{}, "", false, fmt.Errorf("page %d out of range", page)
		}
		st.PageMargins[page] = m
		return Change{Kind: MagazineUpdated}, fmt.Sprintf("Updated margins for page %d", page), true, nil
	})
}

// UpdateAllMargins sets the same margins on every page of the magazine.
func (d *Document) UpdateAllMargins(ctx context.Context, m models.Margins, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "update all margins"); err != nil {
			return Change{}, "", false, err
		}
		for p := 1; p <= st.Pages; p++ {
			st.PageMargins[p] = m
		}
		return Change{Kind: MagazineUpdated}, "Updated all page margins", true, nil
	})
}

// UpdateArticleMargins sets margins on every page the article spans.
func (d *Document) UpdateArticleMargins(ctx context.Context, articleID string, m models.Margins, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "update article margins"); err != nil {
			return Change{}, "", false, err
		}
		i := d.indexLocked(articleID)
		if i < 0 {
			return Change{}, "", false, nil
		}
		a := st.Articles[i]
		for p := a.StartPage; p <= a.EndPage(); p++ {
			st.PageMargins[p] = m
		}
		return Change{Kind: MagazineUpdated}, "Updated margins for article: " + a.Title, true, nil
	})
}
