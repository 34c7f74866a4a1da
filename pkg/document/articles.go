package document

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/layout"
	"github.com/flatplan/flatplan.go/pkg/models"
)

const defaultArticleTitle = "New Article"

// AddArticle appends a to the flat plan and returns it as laid out. Missing
// fields take defaults; the start page follows the current last article.
func (d *Document) AddArticle(ctx context.Context, a models.Article, opts ApplyOptions) (models.Article, error) {
	a = withArticleDefaults(a)
	var added models.Article
	err := d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "add article"); err != nil {
			return Change{}, "", false, err
		}
		if d.indexLocked(a.ID) >= 0 {
			if opts.Origin == Remote {
				// a peer re-announcing an article we already hold
				d.logger.Debug("remote add for existing article, updating", "article_id", a.ID)
				st.Articles[d.indexLocked(a.ID)] = a.Clone()
				return Change{Kind: ArticleUpdated, Article: &a}, "Updated article " + a.Title, true, nil
			}
			return Change{}, "", false, fmt.Errorf("%w: article %s", constants.ErrIDInUse, a.ID)
		}
		if n := len(st.Articles); n > 0 {
			last := st.Articles[n-1]
			a.StartPage = last.StartPage + last.PageCount
		}
		st.Articles = append(st.Articles, a.Clone())
		return Change{Kind: ArticleAdded, Article: &a}, "Added article: " + a.Title, true, nil
	})
	if err != nil {
		return models.Article{}, err
	}
	added, _ = d.Article(a.ID)
	return added, nil
}

func withArticleDefaults(a models.Article) models.Article {
	a = a.Clone()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Title == "" {
		a.Title = defaultArticleTitle
	}
	if a.Columns == 0 {
		a.Columns = constants.DefaultColumns
	}
	if a.LineHeight == "" {
		a.LineHeight = constants.DefaultLineHeight
	}
	if a.StartPage < 1 {
		a.StartPage = constants.DefaultStartPage
	}
	if a.Tags == nil {
		a.Tags = []models.Tag{}
	}
	if a.Visuals == nil {
		a.Visuals = []models.Visual{}
	}
	for i := range a.Visuals {
		if a.Visuals[i].ID == "" {
			a.Visuals[i].ID = uuid.NewString()
		}
	}
	return a
}

// UpdateArticle replaces the article with the same id. Concurrent edits
// resolve last-writer-wins: the most recently applied version replaces the
// whole article.
func (d *Document) UpdateArticle(ctx context.Context, a models.Article, opts ApplyOptions) error {
	a = withArticleDefaults(a)
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "update article"); err != nil {
			return Change{}, "", false, err
		}
		i := d.indexLocked(a.ID)
		if i < 0 {
			return Change{}, "", false, fmt.Errorf("%w: %s", constants.ErrArticleNotFound, a.ID)
		}
		if opts.Origin == Remote {
			d.noteClobberLocked(a.ID, opts)
		}
		st.Articles[i] = a.Clone()
		return Change{Kind: ArticleUpdated, Article: &a}, "Updated article " + a.Title, true, nil
	})
}

func (d *Document) noteClobberLocked(id string, opts ApplyOptions) {
	local, ok := d.lastLocal[id]
	if !ok || opts.At.IsZero() || !opts.At.Before(local) {
		return
	}
	var by string
	if opts.User != nil {
		by = opts.User.ID
	}
	d.logger.Debug("remote write replaces newer local edit",
		"article_id", id, "local_at", local, "remote_at", opts.At, "user", by)
}

// DeleteArticle removes the article with id. Later articles move up.
func (d *Document) DeleteArticle(ctx context.Context, id string, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "delete article"); err != nil {
			return Change{}, "", false, err
		}
		i := d.indexLocked(id)
		if i < 0 {
			if opts.Origin == Remote {
				return Change{}, "", false, nil
			}
			return Change{}, "", false, fmt.Errorf("%w: %s", constants.ErrArticleNotFound, id)
		}
		title := st.Articles[i].Title
		st.Articles = slices.Delete(st.Articles, i, i+1)
		delete(d.lastLocal, id)
		return Change{Kind: ArticleDeleted, ArticleID: id}, "Deleted article " + title, true, nil
	})
}

// Reorder puts the articles in the order of ids. Unknown ids are skipped and
// articles not named keep their relative order after the named ones.
func (d *Document) Reorder(ctx context.Context, ids []string, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "reorder articles"); err != nil {
			return Change{}, "", false, err
		}
		next := make([]models.Article, 0, len(st.Articles))
		taken := make(map[string]bool, len(ids))
		for _, id := range ids {
			if i := d.indexLocked(id); i >= 0 && !taken[id] {
				next = append(next, st.Articles[i])
				taken[id] = true
			}
		}
		for _, a := range st.Articles {
			if !taken[a.ID] {
				next = append(next, a)
			}
		}
		if sameOrder(st.Articles, next) {
			return Change{}, "", false, nil
		}
		st.Articles = next
		return Change{Kind: ArticlesReordered}, "Reordered articles", true, nil
	})
}

// Move moves the article at index from to index to.
func (d *Document) Move(ctx context.Context, from, to int, opts ApplyOptions) error {
	d.mu.Lock()
	n := len(d.state.Articles)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		d.mu.Unlock()
		return nil
	}
	ids := make([]string, n)
	for i, a := range d.state.Articles {
		ids[i] = a.ID
	}
	d.mu.Unlock()

	id := ids[from]
	ids = slices.Delete(ids, from, from+1)
	ids = slices.Insert(ids, to, id)
	return d.Reorder(ctx, ids, opts)
}

// ReplaceArticles installs a full ordered article list, the form a peer's
// reorder arrives in.
func (d *Document) ReplaceArticles(ctx context.Context, articles []models.Article, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "reorder articles"); err != nil {
			return Change{}, "", false, err
		}
		next := make([]models.Article, len(articles))
		for i, a := range articles {
			next[i] = withArticleDefaults(a)
		}
		st.Articles = next
		return Change{Kind: ArticlesReordered}, "Reordered articles", true, nil
	})
}

// MoveVisual places a visual at (x, y) on page of its article. The position is
// clamped to the page. Moves smaller than the position epsilon and moves on a
// locked article are ignored.
func (d *Document) MoveVisual(ctx context.Context, articleID, visualID string, x, y float64, page int, opts ApplyOptions) error {
	return d.mutate(ctx, opts, func(st *models.Document) (Change, string, bool, error) {
		if err := d.checkEditLocked(opts, "move visual"); err != nil {
			return Change{}, "", false, err
		}
		i := d.indexLocked(articleID)
		if i < 0 {
			return Change{}, "", false, fmt.Errorf("%w: %s", constants.ErrArticleNotFound, articleID)
		}
		a := &st.Articles[i]
		if a.IsLocked {
			d.logger.Debug("visual move on locked article ignored", "article_id", articleID, "visual_id", visualID)
			return Change{}, "", false, nil
		}
		j := slices.IndexFunc(a.Visuals, func(v models.Visual) bool { return v.ID == visualID })
		if j < 0 {
			return Change{}, "", false, fmt.Errorf("%w: visual %s", constants.ErrArticleNotFound, visualID)
		}

		v := a.Visuals[j]
		v.X, v.Y, v.Page = x, y, max(page, 1)
		v.X, v.Y = layout.ValidateVisualPosition(v)
		old := a.Visuals[j]
		if math.Abs(old.X-v.X) < constants.PositionEpsilon &&
			math.Abs(old.Y-v.Y) < constants.PositionEpsilon && old.Page == v.Page {
			return Change{}, "", false, nil
		}
		a.Visuals[j] = v
		updated := a.Clone()
		return Change{Kind: ArticleUpdated, Article: &updated}, "Moved visual in " + a.Title, true, nil
	})
}

func sameOrder(a, b []models.Article) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
