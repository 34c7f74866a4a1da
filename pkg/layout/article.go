package layout

import (
	"sync/atomic"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/ratio"
)

// MarginFunc returns the margins of an absolute magazine page.
type MarginFunc func(page int) models.Margins

// DefaultMargins applies the default margin to every page.
func DefaultMargins(int) models.Margins {
	return models.DefaultMargins()
}

var pkgLogger atomic.Pointer[logger.Logger]

// SetLogger installs the logger used to report missing pages.
func SetLogger(l logger.Logger) {
	l = logger.OrNop(l)
	pkgLogger.Store(&l)
}

func log() logger.Logger {
	if l := pkgLogger.Load(); l != nil {
		return *l
	}
	return logger.Nop()
}

// Recompute re-derives an article's words per page, page count, pages and
// per-page word distribution. pageCount is the larger of the pages needed for
// the words and the pages needed for the visuals. A locked article keeps its
// page count, growing only to hold its visuals, and its words fill the pages
// it already has.
func Recompute(a models.Article, margins MarginFunc) models.Article {
	if margins == nil {
		margins = DefaultMargins
	}
	out := a.Clone()
	out.WordCount = max(out.WordCount, 0)
	out.Columns = ClampColumns(out.Columns)
	out.StartPage = max(out.StartPage, 1)
	if out.LineHeight == "" {
		out.LineHeight = constants.DefaultLineHeight
	}
	for i := range out.Visuals {
		out.Visuals[i] = normalizeVisual(out.Visuals[i])
	}

	out.WordsPerPage = WordsPerPage(out.LineHeight, out.Columns, constants.BaseWordsPerPage)
	if out.IsLocked {
		out.PageCount = max(out.PageCount, RequiredPages(out.Visuals))
	} else {
		out.PageCount = max(PagesForWords(out.WordCount, out.WordsPerPage), RequiredPages(out.Visuals))
	}

	pages := make([]models.ArticlePage, out.PageCount)
	for i := range pages {
		n := i + 1
		var onPage []models.Visual
		for _, v := range out.Visuals {
			if v.Page == n {
				onPage = append(onPage, v)
			}
		}
		pages[i] = models.ArticlePage{
			PageNumber:     n,
			Visuals:        onPage,
			AvailableSpace: PageAvailableSpace(onPage, margins(out.StartPage+i)),
		}
	}
	out.Pages = DistributeWords(out.WordCount, pages, out.LineHeight, out.Columns)
	return out
}

func normalizeVisual(v models.Visual) models.Visual {
	v.Page = max(v.Page, 1)
	if v.Type == "" {
		v.Type = models.VisualImage
	}
	if v.Width == "" {
		v.Width = ratio.Full
	}
	if v.Height == "" {
		v.Height = ratio.Full
	}
	v.SpaceOccupied = VisualSpace(v)
	return v
}

// Plan assigns start pages in reading order and recomputes every article.
// The first article starts on page 1 and each following article starts right
// after the previous one ends.
func Plan(articles []models.Article, margins MarginFunc) []models.Article {
	out := make([]models.Article, len(articles))
	next := 1
	for i, a := range articles {
		a.StartPage = next
		out[i] = Recompute(a, margins)
		next = out[i].StartPage + out[i].PageCount
	}
	return out
}

// RequiredMagazinePages is the last magazine page any article occupies, 0 for no articles.
func RequiredMagazinePages(articles []models.Article) int {
	last := 0
	for i := range articles {
		last = max(last, articles[i].EndPage())
	}
	return last
}

// IsPageFull reports whether a full-width, full-height visual sits on page
// (relative to the article). Such a page shows no text.
func IsPageFull(a models.Article, page int) bool {
	for _, v := range a.Visuals {
		if v.Page == page && v.Width == ratio.Full && v.Height == ratio.Full {
			return true
		}
	}
	return false
}

// IsCurrentPageFull is IsPageFull for the page currently being rendered.
func IsCurrentPageFull(a models.Article, currentPage int) bool {
	return IsPageFull(a, currentPage)
}

// IsFullBleed reports whether the article opens with a full-page visual.
func IsFullBleed(a models.Article) bool {
	return IsPageFull(a, 1)
}

// PageAt returns the derived page n of the article. A missing page is logged
// and reported as absent so that the caller renders nothing for it.
func PageAt(a models.Article, n int) (models.ArticlePage, bool) {
	for _, p := range a.Pages {
		if p.PageNumber == n {
			return p, true
		}
	}
	log().Warn("no page data found for article", "article_id", a.ID, "page", n)
	return models.ArticlePage{}, false
}

// LinesForPage is how many text lines page n of the article shows.
func LinesForPage(a models.Article, n int) int {
	if IsPageFull(a, n) {
		return 0
	}
	p, ok := PageAt(a, n)
	if !ok {
		return 0
	}
	return AvailableLines(a.LineHeight, p.AvailableSpace)
}

// ArticleAt returns the index of the article occupying magazine page n.
func ArticleAt(articles []models.Article, n int) (int, bool) {
	for i := range articles {
		if n >= articles[i].StartPage && n <= articles[i].EndPage() {
			return i, true
		}
	}
	return -1, false
}
