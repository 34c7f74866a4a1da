package share

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/flatplan/flatplan.go/pkg/constants"
)

// Link points at a shared magazine, either by relay share id or with the
// state inlined in the URL.
type Link struct {
	// Base is the scheme and host the link is built on, e.g. https://flatplan.app.
	Base    string
	ShareID string
	// Inline is the encoded payload produced by Encode.
	Inline    string
	AllowEdit bool
}

// IsInline reports whether the link carries the state itself.
func (l Link) IsInline() bool {
	return l.ShareID == "" && l.Inline != ""
}

// Build renders the link as a URL: /share/{id}?edit=1 for relay shares and
// /share?data=...&edit=1 for inline ones.
func Build(l Link) string {
	base := strings.TrimRight(l.Base, "/")
	q := url.Values{}
	if l.AllowEdit {
		q.Set("edit", "1")
	} else {
		q.Set("edit", "0")
	}
	if l.ShareID != "" {
		return base + "/share/" + url.PathEscape(l.ShareID) + "?" + q.Encode()
	}
	q.Set("data", l.Inline)
	return base + "/share?" + q.Encode()
}

// Parse reads a URL produced by Build.
func Parse(raw string) (Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("%w: %v", constants.ErrInvalidShareURL, err)
	}

	l := Link{AllowEdit: u.Query().Get("edit") == "1"}
	if u.Scheme != "" {
		l.Base = u.Scheme + "://" + u.Host
	}

	path := strings.TrimRight(u.Path, "/")
	switch {
	case path == "/share":
		l.Inline = u.Query().Get("data")
		if l.Inline == "" {
			return Link{}, fmt.Errorf("%w: missing data", constants.ErrInvalidShareURL)
		}
	case strings.HasPrefix(path, "/share/"):
		id, err := url.PathUnescape(strings.TrimPrefix(path, "/share/"))
		if err != nil || id == "" || strings.Contains(id, "/") {
			return Link{}, fmt.Errorf("%w: bad share id in %q", constants.ErrInvalidShareURL, u.Path)
		}
		l.ShareID = id
	default:
		return Link{}, fmt.Errorf("%w: unexpected path %q", constants.ErrInvalidShareURL, u.Path)
	}
	return l, nil
}
