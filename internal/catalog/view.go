package catalog

import (
	"context"
	"sync"
	"time"
)

// Loader fetches the full row set of one view.
type Loader[T any] func(ctx context.Context) ([]T, error)

// View is a read model holding the last successfully fetched rows of a table.
// A failed fetch never clears it.
type View[T any] struct {
	name string
	load Loader[T]
	now  func() time.Time

	mu        sync.RWMutex
	rows      []T
	loaded    bool
	fetchedAt time.Time
}

func NewView[T any](name string, load func(ctx context.Context) ([]T, error)) *View[T] {
	return &View[T]{name: name, load: load, now: time.Now}
}

func (v *View[T]) Name() string {
	return v.name
}

// Rows returns a copy of the current rows.
func (v *View[T]) Rows() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]T, len(v.rows))
	copy(out, v.rows)
	return out
}

// Loaded reports whether at least one fetch has been committed.
func (v *View[T]) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loaded
}

func (v *View[T]) FetchedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fetchedAt
}

// Find returns the first row matching match.
func (v *View[T]) Find(match func(T) bool) (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, row := range v.rows {
		if match(row) {
			return row, true
		}
	}
	var zero T
	return zero, false
}

// Replace installs rows as the view's full contents.
func (v *View[T]) Replace(rows []T) {
	next := make([]T, len(rows))
	copy(next, rows)
	v.mu.Lock()
	v.rows = next
	v.loaded = true
	v.fetchedAt = v.now()
	v.mu.Unlock()
}

// Refetch loads the rows and returns the commit that installs them. It has
// the shape of realtime.RefetchFunc.
func (v *View[T]) Refetch(ctx context.Context) (func(), error) {
	rows, err := v.load(ctx)
	if err != nil {
		return nil, err
	}
	return func() { v.Replace(rows) }, nil
}
