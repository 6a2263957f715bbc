package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
)

// Catalog edits the category tree and the categorization rules.
type Catalog interface {
	CreateCategory(ctx context.Context, parentID int64, name string) (Category, error)
	// UpdateCategory renames c.ID and moves it under c.ParentID.
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	// DeleteCategory removes a leaf. Transactions using it become
	// uncategorized and rules pointing at it are dropped.
	DeleteCategory(ctx context.Context, id int64) error
	CreateRule(ctx context.Context, r Rule) (Rule, error)
	UpdateRule(ctx context.Context, r Rule) (Rule, error)
	DeleteRule(ctx context.Context, id int64) error
}

// IsRoot reports whether id is one of the per-type root categories.
func IsRoot(id int64) bool {
	return id >= int64(TypeExpense) && id <= int64(TypeCorrection)
}

// ArrangeCategories orders cats depth first and fills Level and FullName.
// Roots sort by id; siblings keep their order in cats. Entries whose parent
// is missing are dropped.
func ArrangeCategories(cats []Category) []Category {
	children := map[int64][]Category{}
	var roots []Category
	for _, c := range cats {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], c)
	}
	slices.SortStableFunc(roots, func(a, b Category) int { return cmp.Compare(a.ID, b.ID) })

	out := make([]Category, 0, len(cats))
	var walk func(nodes []Category, level int, trail []string)
	walk = func(nodes []Category, level int, trail []string) {
		for _, c := range nodes {
			c.Level = level
			path := trail
			if level > 0 {
				path = append(slices.Clip(trail), c.Name)
			}
			c.FullName = c.Name
			if len(path) > 0 {
				c.FullName = strings.Join(path, " / ")
			}
			out = append(out, c)
			walk(children[c.ID], level+1, path)
		}
	}
	walk(roots, 0, nil)
	return out
}

// CheckCategory validates a new category (c.ID == 0) or an edit of an
// existing one and returns the type it takes from its parent. An edit may
// move a category only within its own type and never below itself.
func CheckCategory(ix CategoryIndex, c Category) (TxType, error) {
	if strings.TrimSpace(c.Name) == "" {
		return 0, fmt.Errorf("%w: category name is required", ErrValidation)
	}
	if c.ParentID == nil {
		return 0, fmt.Errorf("%w: category parent is required", ErrValidation)
	}
	parent, ok := ix[*c.ParentID]
	if !ok {
		return 0, fmt.Errorf("%w: category %d", ErrNotFound, *c.ParentID)
	}
	if parent.Type == TypeCorrection {
		return 0, fmt.Errorf("%w: corrections have no subcategories", ErrValidation)
	}
	if c.ID == 0 {
		return parent.Type, nil
	}
	cur, ok := ix[c.ID]
	if !ok {
		return 0, fmt.Errorf("%w: category %d", ErrNotFound, c.ID)
	}
	if IsRoot(c.ID) {
		return 0, fmt.Errorf("%w: root categories cannot be edited", ErrValidation)
	}
	if parent.Type != cur.Type {
		return 0, fmt.Errorf("%w: category %d cannot change type", ErrValidation, c.ID)
	}
	if ix.Within(*c.ParentID, c.ID) {
		return 0, fmt.Errorf("%w: category %d cannot move below itself", ErrValidation, c.ID)
	}
	return cur.Type, nil
}

// CheckDeletable reports why id cannot be deleted, if it cannot.
func CheckDeletable(ix CategoryIndex, id int64) error {
	if IsRoot(id) {
		return fmt.Errorf("%w: root categories cannot be deleted", ErrValidation)
	}
	if _, ok := ix[id]; !ok {
		return fmt.Errorf("%w: category %d", ErrNotFound, id)
	}
	for _, c := range ix {
		if c.ParentID != nil && *c.ParentID == id {
			return fmt.Errorf("%w: category %d has children", ErrValidation, id)
		}
	}
	return nil
}

// CheckRule validates a rule against the category tree.
func CheckRule(ix CategoryIndex, r Rule) error {
	if r.Condition < PartyEquals || r.Condition > CategoryNameContains {
		return fmt.Errorf("%w: unknown rule condition %d", ErrValidation, r.Condition)
	}
	if strings.TrimSpace(r.Value) == "" {
		return fmt.Errorf("%w: rule value is required", ErrValidation)
	}
	c, ok := ix[r.CategoryID]
	if !ok {
		return fmt.Errorf("%w: category %d", ErrNotFound, r.CategoryID)
	}
	if c.Type == TypeCorrection {
		return fmt.Errorf("%w: rules cannot assign the correction category", ErrValidation)
	}
	return nil
}

// uncategorize clears t's category when it is id.
func (t *Transaction) uncategorize(id int64) bool {
	switch b := t.Body.(type) {
	case *Expense:
		if b.CategoryID == id {
			b.CategoryID = 0
			return true
		}
	case *Income:
		if b.CategoryID == id {
			b.CategoryID = 0
			return true
		}
	}
	return false
}
