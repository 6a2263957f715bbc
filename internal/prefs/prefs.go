// Package prefs persists the category tree expand state outside the tree,
// so it survives refetches and restarts.
package prefs

import (
	"context"

	"github.com/jask/finledger/internal/category"
)

// Store loads and saves the expand state of one user.
type Store interface {
	Load(ctx context.Context) (category.ExpandState, error)
	Save(ctx context.Context, state category.ExpandState) error
}

// open returns only the expanded ids; collapsed is the default.
func open(state category.ExpandState) []int64 {
	var ids []int64
	for id, on := range state {
		if on {
			ids = append(ids, id)
		}
	}
	return ids
}
