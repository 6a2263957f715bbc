package service

import (
	"context"
	"fmt"

	"github.com/jask/finledger/internal/category"
	"github.com/jask/finledger/internal/ledger"
)

// CatalogService edits categories and rules, then reloads them into the
// cache and rebuilds the category tree. Only categories visible in the tree
// can be edited.
type CatalogService struct {
	Ledger  *LedgerService
	Catalog ledger.Catalog
	View    *CategoryView
}

func NewCatalogService(ls *LedgerService, catalog ledger.Catalog, view *CategoryView) *CatalogService {
	return &CatalogService{Ledger: ls, Catalog: catalog, View: view}
}

func (s *CatalogService) editable(id int64) error {
	if !s.View.Editable(id) {
		return fmt.Errorf("%w: category %d is not editable", ledger.ErrValidation, id)
	}
	return nil
}

func (s *CatalogService) current(id int64) (ledger.Category, error) {
	for _, c := range s.Ledger.Cache.State().Categories {
		if c.ID == id {
			return c, nil
		}
	}
	return ledger.Category{}, fmt.Errorf("%w: category %d", ledger.ErrNotFound, id)
}

// reload brings the cache and the tree up to date. A failed reload is
// handled like any failed read; the edit itself already succeeded.
func (s *CatalogService) reload(ctx context.Context) *category.Tree {
	if err := s.Ledger.Cache.ReloadCatalog(ctx); err != nil {
		_ = s.Ledger.Handle("reload catalog", err)
	}
	return s.View.Rebuild(ctx, s.Ledger.Cache.State().Categories)
}

// CreateCategory adds a category under a type root or an editable category.
func (s *CatalogService) CreateCategory(ctx context.Context, parentID int64, name string) (ledger.Category, error) {
	if !ledger.IsRoot(parentID) {
		if err := s.editable(parentID); err != nil {
			return ledger.Category{}, err
		}
	}
	c, err := s.Catalog.CreateCategory(ctx, parentID, name)
	if err != nil {
		return ledger.Category{}, s.Ledger.Handle("create category", err)
	}
	s.reload(ctx)
	return c, nil
}

func (s *CatalogService) RenameCategory(ctx context.Context, id int64, name string) (ledger.Category, error) {
	if err := s.editable(id); err != nil {
		return ledger.Category{}, err
	}
	cur, err := s.current(id)
	if err != nil {
		return ledger.Category{}, err
	}
	cur.Name = name
	return s.update(ctx, cur)
}

func (s *CatalogService) MoveCategory(ctx context.Context, id, parentID int64) (ledger.Category, error) {
	if err := s.editable(id); err != nil {
		return ledger.Category{}, err
	}
	cur, err := s.current(id)
	if err != nil {
		return ledger.Category{}, err
	}
	cur.ParentID = &parentID
	return s.update(ctx, cur)
}

func (s *CatalogService) update(ctx context.Context, c ledger.Category) (ledger.Category, error) {
	stored, err := s.Catalog.UpdateCategory(ctx, c)
	if err != nil {
		return ledger.Category{}, s.Ledger.Handle("update category", err)
	}
	s.reload(ctx)
	return stored, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.editable(id); err != nil {
		return err
	}
	if err := s.Catalog.DeleteCategory(ctx, id); err != nil {
		return s.Ledger.Handle("delete category", err)
	}
	s.reload(ctx)
	return nil
}

func (s *CatalogService) CreateRule(ctx context.Context, r ledger.Rule) (ledger.Rule, error) {
	stored, err := s.Catalog.CreateRule(ctx, r)
	if err != nil {
		return ledger.Rule{}, s.Ledger.Handle("create rule", err)
	}
	s.reload(ctx)
	return stored, nil
}

func (s *CatalogService) UpdateRule(ctx context.Context, r ledger.Rule) (ledger.Rule, error) {
	stored, err := s.Catalog.UpdateRule(ctx, r)
	if err != nil {
		return ledger.Rule{}, s.Ledger.Handle("update rule", err)
	}
	s.reload(ctx)
	return stored, nil
}

func (s *CatalogService) DeleteRule(ctx context.Context, id int64) error {
	if err := s.Catalog.DeleteRule(ctx, id); err != nil {
		return s.Ledger.Handle("delete rule", err)
	}
	s.reload(ctx)
	return nil
}
