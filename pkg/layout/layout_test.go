package layout_test

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/flatplan/flatplan.go/contrib/testenv"
	"github.com/flatplan/flatplan.go/pkg/layout"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func article(words, columns int, lineHeight string, visuals ...models.Visual) models.Article {
	return models.Article{
		ID:         "a1",
		Title:      "Test",
		WordCount:  words,
		Columns:    columns,
		LineHeight: lineHeight,
		StartPage:  1,
		Visuals:    visuals,
	}
}

func noMargins(int) models.Margins { return models.Margins{} }

func TestWordsPerPage(t *testing.T) {
	assert.Equal(t, 100, layout.WordsPerPage("1/100", 1, 100))
	assert.Equal(t, 200, layout.WordsPerPage("1/50", 1, 100))
	assert.Equal(t, 600, layout.WordsPerPage("1/50", 3, 100))
	assert.Equal(t, 180, layout.WordsPerPage("1/50", 1, 90))
	assert.Equal(t, 0, layout.WordsPerPage("1/50", 1, 0))
	// columns are clamped to 1..3
	assert.Equal(t, 600, layout.WordsPerPage("1/50", 9, 100))
	assert.Equal(t, 200, layout.WordsPerPage("1/50", 0, 100))
	// an unparsable line height counts as 1/1
	assert.Equal(t, 10000, layout.WordsPerPage("bogus", 1, 100))
}

func TestRequiredPages(t *testing.T) {
	assert.Equal(t, 1, layout.RequiredPages(nil))
	assert.Equal(t, 1, layout.RequiredPages([]models.Visual{{Page: 0}}))
	assert.Equal(t, 3, layout.RequiredPages([]models.Visual{{Page: 1}, {Page: 3}, {Page: 2}}))
}

func TestPushDownAndVisualSpace(t *testing.T) {
	v := models.Visual{Width: "1/2", Height: "1/4", Y: 10}
	assert.InDelta(t, 12.5, layout.VisualSpace(v), 1e-9)
	assert.InDelta(t, 25, layout.PushDown(v), 1e-9)

	v.Y = 90
	assert.InDelta(t, 10, layout.PushDown(v), 1e-9)

	v.Y = 120
	assert.InDelta(t, 0, layout.PushDown(v), 1e-9)
}

func TestPageAvailableSpace(t *testing.T) {
	m := models.Margins{Top: 5, Bottom: 5}

	t.Run("empty page", func(t *testing.T) {
		assert.InDelta(t, 90, layout.PageAvailableSpace(nil, m), 1e-9)
	})

	t.Run("single visual", func(t *testing.T) {
		v := models.Visual{Width: "full", Height: "1/4", Y: 10}
		assert.InDelta(t, 65, layout.PageAvailableSpace([]models.Visual{v}, m), 1e-9)
	})

	t.Run("overlap counted once", func(t *testing.T) {
		a := models.Visual{Width: "1/2", Height: "1/4", Y: 10}
		b := models.Visual{Width: "1/2", Height: "1/4", X: 50, Y: 20}
		assert.InDelta(t, 55, layout.PageAvailableSpace([]models.Visual{a, b}, m), 1e-9)
	})

	t.Run("full page", func(t *testing.T) {
		v := models.Visual{Width: "full", Height: "full"}
		assert.InDelta(t, 0, layout.PageAvailableSpace([]models.Visual{v}, m), 1e-9)
	})

	t.Run("margins larger than page", func(t *testing.T) {
		assert.InDelta(t, 0, layout.PageAvailableSpace(nil, models.Margins{Top: 60, Bottom: 60}), 1e-9)
	})

	t.Run("visual in margin ignored", func(t *testing.T) {
		v := models.Visual{Width: "full", Height: "1/25", Y: 0}
		assert.InDelta(t, 90, layout.PageAvailableSpace([]models.Visual{v}, m), 1e-9)
	})
}

func TestAvailableLines(t *testing.T) {
	assert.Equal(t, 90, layout.AvailableLines("1/100", 90))
	assert.Equal(t, 45, layout.AvailableLines("1/50", 90))
	assert.Equal(t, 0, layout.AvailableLines("1/50", 0))
}

func TestDistributeWords(t *testing.T) {
	pages := []models.ArticlePage{
		{PageNumber: 1, AvailableSpace: 90},
		{PageNumber: 2, AvailableSpace: 45},
		{PageNumber: 3, AvailableSpace: 90},
	}
	out := layout.DistributeWords(300, pages, "1/50", 1)
	require.Len(t, out, 3)
	assert.Equal(t, 180, out[0].WordCount)
	assert.Equal(t, 90, out[1].WordCount)
	assert.Equal(t, 30, out[2].WordCount)
	// input untouched
	assert.Zero(t, pages[0].WordCount)
}

func TestRecompute(t *testing.T) {
	t.Run("pages follow words", func(t *testing.T) {
		a := layout.Recompute(article(3000, 1, "1/50"), layout.DefaultMargins)
		assert.Equal(t, 200, a.WordsPerPage)
		assert.GreaterOrEqual(t, a.PageCount, 2)
		assert.Len(t, a.Pages, a.PageCount)
	})

	t.Run("more columns never add pages", func(t *testing.T) {
		one := layout.Recompute(article(3000, 1, "1/50"), layout.DefaultMargins)
		three := layout.Recompute(article(3000, 3, "1/50"), layout.DefaultMargins)
		assert.LessOrEqual(t, three.PageCount, one.PageCount)
	})

	t.Run("visuals extend page count", func(t *testing.T) {
		a := layout.Recompute(article(10, 1, "1/100", models.Visual{ID: "v", Width: "1/2", Height: "1/2", Page: 3}), layout.DefaultMargins)
		assert.Equal(t, 3, a.PageCount)
		require.Len(t, a.Pages, 3)
		assert.Len(t, a.Pages[2].Visuals, 1)
		assert.InDelta(t, 25, a.Visuals[0].SpaceOccupied, 1e-9)
	})

	t.Run("zero words", func(t *testing.T) {
		a := layout.Recompute(article(0, 1, "1/100"), layout.DefaultMargins)
		assert.Equal(t, 1, a.PageCount)
		assert.Zero(t, a.Pages[0].WordCount)
	})

	t.Run("negative words", func(t *testing.T) {
		a := layout.Recompute(article(-50, 1, "1/100"), layout.DefaultMargins)
		assert.Equal(t, 0, a.WordCount)
		assert.Equal(t, 1, a.PageCount)
	})

	t.Run("idempotent", func(t *testing.T) {
		in := article(2500, 2, "1/75",
			models.Visual{ID: "v1", Width: "1/3", Height: "1/4", Y: 20, Page: 1},
			models.Visual{ID: "v2", Width: "full", Height: "full", Page: 2},
		)
		once := layout.Recompute(in, layout.DefaultMargins)
		twice := layout.Recompute(once, layout.DefaultMargins)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("Recompute not idempotent (-once +twice):\n%s", diff)
		}
	})

	t.Run("locked keeps page count", func(t *testing.T) {
		a := layout.Recompute(article(100, 1, "1/100"), layout.DefaultMargins)
		require.Equal(t, 1, a.PageCount)

		a.IsLocked = true
		a.WordCount = 1000
		locked := layout.Recompute(a, layout.DefaultMargins)
		assert.Equal(t, 1, locked.PageCount)
		require.Len(t, locked.Pages, 1)
		assert.LessOrEqual(t, locked.Pages[0].WordCount, locked.WordsPerPage)

		locked.Visuals = []models.Visual{{ID: "v", Width: "1/2", Height: "1/2", Page: 3}}
		grown := layout.Recompute(locked, layout.DefaultMargins)
		assert.Equal(t, 3, grown.PageCount, "visuals still get their pages")
		assert.InDelta(t, 25, grown.Visuals[0].SpaceOccupied, 1e-9)

		grown.IsLocked = false
		assert.Equal(t, 10, layout.Recompute(grown, layout.DefaultMargins).PageCount)
	})

	t.Run("input untouched", func(t *testing.T) {
		in := article(100, 1, "1/100", models.Visual{ID: "v", Width: "1/2", Height: "1/2"})
		_ = layout.Recompute(in, nil)
		assert.Zero(t, in.Visuals[0].SpaceOccupied)
		assert.Nil(t, in.Pages)
	})
}

func TestRecomputeBounds(t *testing.T) {
	for _, lh := range []string{"1/300", "1/100", "1/50", "1/25", "1/10"} {
		for cols := 1; cols <= 3; cols++ {
			for _, words := range []int{0, 1, 499, 5000, 20000} {
				t.Run(fmt.Sprintf("%s/%d/%d", lh, cols, words), func(t *testing.T) {
					a := layout.Recompute(article(words, cols, lh,
						models.Visual{ID: "v", Width: "1/2", Height: "1/3", Y: 40, Page: 2},
					), layout.DefaultMargins)
					assert.GreaterOrEqual(t, a.PageCount, 2)
					sum := 0
					for _, p := range a.Pages {
						assert.GreaterOrEqual(t, p.AvailableSpace, 0.0)
						assert.LessOrEqual(t, p.AvailableSpace, 100.0)
						assert.GreaterOrEqual(t, p.WordCount, 0)
						sum += p.WordCount
					}
					assert.LessOrEqual(t, sum, a.WordCount)
				})
			}
		}
	}
}

func TestPlan(t *testing.T) {
	in := []models.Article{
		article(100, 1, "1/100"),
		article(350, 1, "1/100"),
		article(10, 1, "1/100", models.Visual{ID: "v", Width: "full", Height: "full", Page: 2}),
	}
	out := layout.Plan(in, noMargins)
	require.Len(t, out, 3)

	assert.Equal(t, 1, out[0].StartPage)
	assert.Equal(t, 1, out[0].PageCount)
	assert.Equal(t, 2, out[1].StartPage)
	assert.Equal(t, 4, out[1].PageCount)
	assert.Equal(t, 6, out[2].StartPage)
	assert.Equal(t, 2, out[2].PageCount)

	assert.Equal(t, 7, layout.RequiredMagazinePages(out))
	assert.Equal(t, 0, layout.RequiredMagazinePages(nil))

	i, ok := layout.ArticleAt(out, 4)
	require.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = layout.ArticleAt(out, 8)
	assert.False(t, ok)
}

func TestFullPage(t *testing.T) {
	a := layout.Recompute(article(0, 1, "1/100",
		models.Visual{ID: "cover", Width: "full", Height: "full", Page: 1},
	), layout.DefaultMargins)

	assert.True(t, layout.IsFullBleed(a))
	assert.True(t, layout.IsCurrentPageFull(a, 1))
	assert.False(t, layout.IsCurrentPageFull(a, 2))
	assert.Equal(t, 0, layout.LinesForPage(a, 1))

	b := layout.Recompute(article(100, 1, "1/100"), layout.DefaultMargins)
	assert.False(t, layout.IsFullBleed(b))
	assert.Equal(t, 90, layout.LinesForPage(b, 1))
}

func TestPageAtMissingIsLogged(t *testing.T) {
	l, rec := testenv.NewLogger()
	layout.SetLogger(l)
	t.Cleanup(func() { layout.SetLogger(nil) })

	a := layout.Recompute(article(10, 1, "1/100"), nil)
	_, ok := layout.PageAt(a, 1)
	assert.True(t, ok)

	_, ok = layout.PageAt(a, 5)
	assert.False(t, ok)
	e, found := rec.Find(slog.LevelWarn, "no page data")
	require.True(t, found)
	assert.Equal(t, int64(5), e.Attrs["page"])
	assert.Equal(t, 0, layout.LinesForPage(a, 5))
}

func TestValidateVisualPosition(t *testing.T) {
	x, y := layout.ValidateVisualPosition(models.Visual{Width: "1/2", Height: "1/4", X: 80, Y: -5})
	assert.InDelta(t, 50, x, 1e-9)
	assert.InDelta(t, 0, y, 1e-9)

	x, y = layout.ValidateVisualPosition(models.Visual{Width: "full", Height: "full", X: 10, Y: 10})
	assert.Zero(t, x)
	assert.Zero(t, y)

	x, y = layout.ValidateVisualPosition(models.Visual{Width: "1/4", Height: "1/4", X: 30, Y: 70})
	assert.InDelta(t, 30, x, 1e-9)
	assert.InDelta(t, 70, y, 1e-9)
}
