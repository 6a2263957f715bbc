package service

import (
	"context"
	"maps"

	"go.uber.org/zap"

	"github.com/jask/finledger/internal/category"
	"github.com/jask/finledger/internal/ledger"
	"github.com/jask/finledger/internal/prefs"
)

// CategoryView keeps the category tree and its expand state in step with
// the cached category list.
type CategoryView struct {
	Prefs prefs.Store
	Log   *zap.Logger

	tree  *category.Tree
	state category.ExpandState
}

func NewCategoryView(store prefs.Store, log *zap.Logger) *CategoryView {
	if log == nil {
		log = zap.NewNop()
	}
	return &CategoryView{Prefs: store, Log: log}
}

// Rebuild builds the tree from a fresh category list. Ids that disappeared
// drop out of the expand state; the first call loads it from Prefs.
func (v *CategoryView) Rebuild(ctx context.Context, cats []ledger.Category) *category.Tree {
	if v.state == nil {
		v.state = category.ExpandState{}
		if v.Prefs != nil {
			state, err := v.Prefs.Load(ctx)
			if err != nil {
				v.Log.Warn("load expand state", zap.Error(err))
			} else {
				v.state = state
			}
		}
	}
	prev := len(v.state)
	v.tree, v.state = category.Build(cats, v.state)
	if len(v.state) != prev {
		v.save(ctx)
	}
	return v.tree
}

// Toggle flips one category open or closed and persists the result.
func (v *CategoryView) Toggle(ctx context.Context, id int64) {
	if v.tree == nil || v.tree.Find(id) == nil {
		return
	}
	v.state.Toggle(id)
	v.save(ctx)
}

func (v *CategoryView) save(ctx context.Context) {
	if v.Prefs == nil {
		return
	}
	if err := v.Prefs.Save(ctx, v.state); err != nil {
		v.Log.Warn("save expand state", zap.Error(err))
	}
}

func (v *CategoryView) Tree() *category.Tree { return v.tree }

func (v *CategoryView) State() category.ExpandState { return maps.Clone(v.state) }

// Rows lists the visible rows.
func (v *CategoryView) Rows() []category.Row {
	if v.tree == nil {
		return nil
	}
	return v.tree.Visible(v.state)
}

// Editable reports whether id can be edited in the current expand state.
func (v *CategoryView) Editable(id int64) bool {
	return v.tree != nil && v.tree.Editable(id, v.state)
}
