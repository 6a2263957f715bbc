package category

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/finledger/internal/ledger"
)

func ptr(v int64) *int64 { return &v }

func flat() []ledger.Category {
	return []ledger.Category{
		{ID: 1, Name: "Expense", Level: 0, Type: ledger.TypeExpense},
		{ID: 5, Name: "Home", Level: 1, Type: ledger.TypeExpense, ParentID: ptr(1)},
		{ID: 7, Name: "Food", Level: 1, Type: ledger.TypeExpense, ParentID: ptr(1)},
		{ID: 8, Name: "Groceries", Level: 2, Type: ledger.TypeExpense, ParentID: ptr(7)},
		{ID: 9, Name: "Organic", Level: 3, Type: ledger.TypeExpense, ParentID: ptr(8)},
		{ID: 10, Name: "Dining", Level: 2, Type: ledger.TypeExpense, ParentID: ptr(7)},
		{ID: 2, Name: "Income", Level: 0, Type: ledger.TypeIncome},
		{ID: 20, Name: "Salary", Level: 1, Type: ledger.TypeIncome, ParentID: ptr(2)},
		{ID: 3, Name: "Correction", Level: 0, Type: ledger.TypeCorrection},
		{ID: 30, Name: "Hidden", Level: 1, Type: ledger.TypeCorrection, ParentID: ptr(3)},
	}
}

func TestBuildShape(t *testing.T) {
	tree, _ := Build(flat(), nil)

	require.Len(t, tree.Roots, 2)
	require.Equal(t, "Expense", tree.Roots[0].Category.Name)
	require.Equal(t, "Income", tree.Roots[1].Category.Name)

	food := tree.Find(7)
	require.NotNil(t, food)
	require.Len(t, food.Children, 2)
	require.Equal(t, int64(8), food.Children[0].Category.ID)
	require.Len(t, food.Children[0].Children, 1)
	require.Equal(t, int64(10), food.Children[1].Category.ID)

	require.Nil(t, tree.Find(3))
	require.Nil(t, tree.Find(30))
	require.Equal(t, 8, tree.Len())
}

func TestExpandStateSurvivesSiblingDeletion(t *testing.T) {
	_, state := Build(flat(), ExpandState{7: true, 1: true})

	var without []ledger.Category
	for _, c := range flat() {
		if c.ID != 5 {
			without = append(without, c)
		}
	}
	tree, next := Build(without, state)
	require.True(t, next[7])
	require.True(t, next[1])
	require.NotNil(t, tree.Find(7))
}

func TestStaleIdsAreDropped(t *testing.T) {
	_, next := Build(flat(), ExpandState{7: true, 99: true, 8: false})
	require.Equal(t, ExpandState{7: true}, next)
}

func TestVisibleFollowsExpansion(t *testing.T) {
	tree, _ := Build(flat(), nil)
	require.Len(t, tree.Visible(ExpandState{}), 2)

	rows := tree.Visible(ExpandState{1: true, 7: true})
	var names []string
	for _, r := range rows {
		names = append(names, r.Node.Category.Name)
	}
	require.Equal(t, []string{"Expense", "Home", "Food", "Groceries", "Dining", "Income"}, names)
	require.Equal(t, 2, rows[3].Depth)
}

func TestEditable(t *testing.T) {
	tree, _ := Build(flat(), nil)
	tests := []struct {
		name     string
		selected int64
		state    ExpandState
		want     bool
	}{
		{"type root", 1, ExpandState{1: true}, false},
		{"top level", 7, ExpandState{}, true},
		{"collapsed parent", 8, ExpandState{}, false},
		{"expanded parent", 8, ExpandState{7: true}, true},
		{"collapsed grandparent", 9, ExpandState{8: true}, false},
		{"whole chain open", 9, ExpandState{7: true, 8: true}, true},
		{"unknown", 99, ExpandState{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tree.Editable(tt.selected, tt.state))
		})
	}
}

func TestToggle(t *testing.T) {
	s := ExpandState{}
	s.Toggle(7)
	require.True(t, s[7])
	s.Toggle(7)
	require.NotContains(t, s, int64(7))
}
