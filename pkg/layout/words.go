package layout

import (
	"math"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/models"
	"github.com/flatplan/flatplan.go/pkg/ratio"
)

// ClampColumns limits a column count to the supported 1..3.
func ClampColumns(columns int) int {
	return min(max(columns, constants.MinColumns), constants.MaxColumns)
}

// WordsPerPage is the word capacity of a page: floor(base × lineHeight%) × columns,
// where lineHeight% is the percentage of "1/den". A line height that does not
// parse counts as "1/1".
func WordsPerPage(lineHeight string, columns int, base float64) int {
	pct := 100.0
	if den := ratio.Denominator(lineHeight); den > 0 {
		pct = clamp(100/den, 0, 100)
	}
	if base <= 0 {
		return 0
	}
	return int(math.Floor(base*pct+epsilon)) * ClampColumns(columns)
}

// RequiredPages is the page count implied by visual placement. It is never below 1.
func RequiredPages(visuals []models.Visual) int {
	pages := 1
	for _, v := range visuals {
		pages = max(pages, v.Page)
	}
	return pages
}

// PagesForWords is how many pages wordCount needs at wordsPerPage. It is never below 1.
func PagesForWords(wordCount, wordsPerPage int) int {
	if wordCount <= 0 || wordsPerPage <= 0 {
		return 1
	}
	return max(1, (wordCount+wordsPerPage-1)/wordsPerPage)
}

// DistributeWords fills pages in order with up to each page's capacity,
// derived from its available space, until totalWords is used up. The last
// page may be under-filled and no page is over-filled.
func DistributeWords(totalWords int, pages []models.ArticlePage, lineHeight string, columns int) []models.ArticlePage {
	remaining := max(totalWords, 0)
	out := make([]models.ArticlePage, len(pages))
	for i, p := range pages {
		capacity := WordsPerPage(lineHeight, columns, p.AvailableSpace)
		p.WordCount = min(remaining, capacity)
		remaining -= p.WordCount
		out[i] = p
	}
	return out
}
