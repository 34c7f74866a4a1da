package collab

import (
	"math"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/models"
)

// Changed reports whether next differs from prev in a way peers need to see.
// Visual positions count only when they moved by more than PositionEpsilon.
func Changed(prev, next models.Article) bool {
	if prev.Title != next.Title ||
		prev.WordCount != next.WordCount ||
		prev.PageCount != next.PageCount ||
		prev.Columns != next.Columns ||
		prev.LineHeight != next.LineHeight ||
		prev.IsLocked != next.IsLocked {
		return true
	}
	if !sameTags(prev.Tags, next.Tags) {
		return true
	}
	if visualsChanged(prev.Visuals, next.Visuals) {
		return true
	}
	return pagesChanged(prev.Pages, next.Pages)
}

func sameTags(a, b []models.Tag) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func visualsChanged(prev, next []models.Visual) bool {
	if len(prev) != len(next) {
		return true
	}
	byID := make(map[string]models.Visual, len(prev))
	for _, v := range prev {
		byID[v.ID] = v
	}
	for _, v := range next {
		old, ok := byID[v.ID]
		if !ok {
			return true
		}
		if moved(old.X, v.X) || moved(old.Y, v.Y) || old.Page != v.Page {
			return true
		}
		if old.Width != v.Width || old.Height != v.Height || old.URL != v.URL || old.Title != v.Title {
			return true
		}
	}
	return false
}

func pagesChanged(prev, next []models.ArticlePage) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		p, n := prev[i], next[i]
		if p.PageNumber != n.PageNumber || p.WordCount != n.WordCount || len(p.Visuals) != len(n.Visuals) {
			return true
		}
		if moved(p.AvailableSpace, n.AvailableSpace) {
			return true
		}
	}
	return false
}

func moved(a, b float64) bool {
	return math.Abs(a-b) > constants.PositionEpsilon
}
