// Package testenv holds helpers shared by flatplan tests.
package testenv

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/flatplan/flatplan.go/pkg/logger"
)

// Entry is one captured log record.
type Entry struct {
	Index   int
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// String renders the entry without a timestamp so that output is deterministic.
func (e Entry) String() string {
	if len(e.Attrs) == 0 {
		return fmt.Sprintf("[%d] %s: %s", e.Index, e.Level, e.Message)
	}
	keys := sortedKeys(e.Attrs)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Attrs[k]))
	}
	return fmt.Sprintf("[%d] %s: %s %s", e.Index, e.Level, e.Message, strings.Join(parts, ", "))
}

type journal struct {
	mu      sync.Mutex
	entries []Entry
}

// RecordHandler is a slog.Handler that keeps every record in memory
// so that tests can assert on soft failures that are only logged.
type RecordHandler struct {
	j           *journal
	attrs       []slog.Attr
	groups      []string
	ignoreDebug bool
}

// RecordHandlerOption configures a RecordHandler.
type RecordHandlerOption func(*RecordHandler)

// WithIgnoreDebug drops DEBUG records.
func WithIgnoreDebug() RecordHandlerOption {
	return func(h *RecordHandler) {
		h.ignoreDebug = true
	}
}

func NewRecordHandler(opts ...RecordHandlerOption) *RecordHandler {
	h := &RecordHandler{j: &journal{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewLogger returns a logger.Logger backed by a fresh RecordHandler.
func NewLogger(opts ...RecordHandlerOption) (logger.Logger, *RecordHandler) {
	h := NewRecordHandler(opts...)
	return logger.New(h), h
}

func (h *RecordHandler) Enabled(_ context.Context, level slog.Level) bool {
	return !(h.ignoreDebug && level == slog.LevelDebug)
}

//nolint:gocritic
func (h *RecordHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	for _, a := range h.attrs {
		flatten(attrs, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(attrs, prefix, a)
		return true
	})

	h.j.mu.Lock()
	defer h.j.mu.Unlock()
	h.j.entries = append(h.j.entries, Entry{
		Index:   len(h.j.entries),
		Level:   r.Level,
		Message: r.Message,
		Attrs:   attrs,
	})
	return nil
}

func flatten(dst map[string]any, prefix string, a slog.Attr) {
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			flatten(dst, prefix+a.Key+".", ga)
		}
		return
	}
	dst[prefix+a.Key] = a.Value.Any()
}

func (h *RecordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	for _, a := range attrs {
		next = append(next, slog.Attr{Key: prefix + a.Key, Value: a.Value})
	}
	return &RecordHandler{j: h.j, attrs: next, groups: h.groups, ignoreDebug: h.ignoreDebug}
}

func (h *RecordHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &RecordHandler{
		j:           h.j,
		attrs:       h.attrs,
		groups:      append(h.groups[:len(h.groups):len(h.groups)], name),
		ignoreDebug: h.ignoreDebug,
	}
}

// Entries returns a copy of everything recorded so far.
func (h *RecordHandler) Entries() []Entry {
	h.j.mu.Lock()
	defer h.j.mu.Unlock()
	out := make([]Entry, len(h.j.entries))
	copy(out, h.j.entries)
	return out
}

// Find returns the first entry at level whose message starts with prefix.
func (h *RecordHandler) Find(level slog.Level, prefix string) (Entry, bool) {
	for _, e := range h.Entries() {
		if e.Level == level && strings.HasPrefix(e.Message, prefix) {
			return e, true
		}
	}
	return Entry{}, false
}

// Count returns how many entries were recorded at level.
func (h *RecordHandler) Count(level slog.Level) int {
	n := 0
	for _, e := range h.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

func (h *RecordHandler) Reset() {
	h.j.mu.Lock()
	h.j.entries = nil
	h.j.mu.Unlock()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
