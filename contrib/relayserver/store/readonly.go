package store

import (
	"context"
	"fmt"

	"github.com/flatplan/flatplan.go/pkg/constants"
)

// ReadOnlyStore wraps a Store and refuses new shares while isReadOnly
// reports true. Existing shares stay readable.
//
// The state is read on every call, so a server can be switched into and out of
// read-only mode, e.g. around a database maintenance window, without
// rebuilding its store.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore wraps s.
func NewReadOnlyStore(s Store, isReadOnly func() bool) *ReadOnlyStore {
	return &ReadOnlyStore{Store: s, isReadOnly: isReadOnly}
}

// Unwrap returns the wrapped store.
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) Create(ctx context.Context, blob []byte) (Share, error) {
	if r.isReadOnly() {
		return Share{}, fmt.Errorf("%w: new shares are disabled", constants.ErrReadOnly)
	}
	return r.Store.Create(ctx, blob)
}
