// Package category turns the flat, depth-first category list into a forest
// and keeps the expand state of its nodes across rebuilds.
package category

import "github.com/jask/finledger/internal/ledger"

// Node is a category with its children.
type Node struct {
	Category ledger.Category
	Children []*Node
}

// ExpandState maps category id to whether its node is open. Missing ids are
// collapsed.
type ExpandState map[int64]bool

// Tree is a forest of category nodes indexed by id.
type Tree struct {
	Roots []*Node
	byID  map[int64]*Node
}

// Build converts a depth-first ordered list into a forest and carries the
// previous expand state over to the new nodes. Ids no longer present are
// dropped. The correction root and everything below it are not shown.
func Build(flat []ledger.Category, prev ExpandState) (*Tree, ExpandState) {
	t := &Tree{byID: map[int64]*Node{}}
	if len(flat) > 0 {
		t.Roots, _ = t.descend(flat, 0, flat[0].Level)
	}
	next := ExpandState{}
	for id, open := range prev {
		if _, ok := t.byID[id]; ok && open {
			next[id] = true
		}
	}
	return t, next
}

// descend reads siblings at level starting at i; a deeper entry starts the
// subtree of the sibling before it.
func (t *Tree) descend(flat []ledger.Category, i, level int) ([]*Node, int) {
	var nodes []*Node
	for i < len(flat) && flat[i].Level >= level {
		if flat[i].Level > level {
			children, j := t.descend(flat, i, flat[i].Level)
			if len(nodes) == 0 {
				nodes = append(nodes, children...)
			} else {
				last := nodes[len(nodes)-1]
				last.Children = append(last.Children, children...)
			}
			i = j
			continue
		}
		c := flat[i]
		i++
		if c.Level == 0 && c.Type == ledger.TypeCorrection {
			for i < len(flat) && flat[i].Level > c.Level {
				i++
			}
			continue
		}
		n := &Node{Category: c}
		t.byID[c.ID] = n
		nodes = append(nodes, n)
	}
	return nodes, i
}

func (t *Tree) Find(id int64) *Node {
	return t.byID[id]
}

func (t *Tree) Len() int {
	return len(t.byID)
}

// Row is a node as it appears in the visible, expanded outline.
type Row struct {
	Node  *Node
	Depth int
}

// Visible lists the nodes reachable through expanded parents, depth first.
func (t *Tree) Visible(state ExpandState) []Row {
	var rows []Row
	var walk func(nodes []*Node, depth int)
	walk = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			rows = append(rows, Row{Node: n, Depth: depth})
			if state[n.Category.ID] {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(t.Roots, 0)
	return rows
}

// Editable reports whether the selected category can be edited: it must not
// be a type root and every ancestor with children must be expanded, so the
// node is visible.
func (t *Tree) Editable(selected int64, state ExpandState) bool {
	parent := selected
	for parent > int64(ledger.TypeCorrection) {
		n := t.Find(parent)
		if n == nil {
			return false
		}
		if parent != selected && len(n.Children) > 0 && !state[parent] {
			return false
		}
		if n.Category.ParentID == nil {
			parent = int64(ledger.TypeExpense)
		} else {
			parent = *n.Category.ParentID
		}
	}
	return selected > int64(ledger.TypeCorrection)
}

// Toggle flips the expand state of id.
func (s ExpandState) Toggle(id int64) {
	if s[id] {
		delete(s, id)
		return
	}
	s[id] = true
}
