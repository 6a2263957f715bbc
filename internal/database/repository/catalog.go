package repository

import (
	"context"
	"fmt"

	"github.com/jask/finledger/internal/ledger"
)

var _ ledger.Catalog = (*Store)(nil)

func (s *Store) category(ctx context.Context, id int64) (ledger.Category, error) {
	ix, err := s.categoryIndex(ctx)
	if err != nil {
		return ledger.Category{}, err
	}
	c, ok := ix[id]
	if !ok {
		return ledger.Category{}, fmt.Errorf("%w: category %d", ledger.ErrNotFound, id)
	}
	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, parentID int64, name string) (ledger.Category, error) {
	ix, err := s.categoryIndex(ctx)
	if err != nil {
		return ledger.Category{}, err
	}
	if _, err := ledger.CheckCategory(ix, ledger.Category{Name: name, ParentID: &parentID}); err != nil {
		return ledger.Category{}, err
	}
	id, err := s.CategoryRepo.Create(ctx, parentID, name)
	if err != nil {
		return ledger.Category{}, err
	}
	return s.category(ctx, id)
}

func (s *Store) UpdateCategory(ctx context.Context, c ledger.Category) (ledger.Category, error) {
	ix, err := s.categoryIndex(ctx)
	if err != nil {
		return ledger.Category{}, err
	}
	if _, err := ledger.CheckCategory(ix, c); err != nil {
		return ledger.Category{}, err
	}
	if err := s.CategoryRepo.Update(ctx, c.ID, *c.ParentID, c.Name); err != nil {
		return ledger.Category{}, err
	}
	return s.category(ctx, c.ID)
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	ix, err := s.categoryIndex(ctx)
	if err != nil {
		return err
	}
	if err := ledger.CheckDeletable(ix, id); err != nil {
		return err
	}
	return s.CategoryRepo.Delete(ctx, id)
}

func (s *Store) CreateRule(ctx context.Context, r ledger.Rule) (ledger.Rule, error) {
	ix, err := s.categoryIndex(ctx)
	if err != nil {
		return ledger.Rule{}, err
	}
	if err := ledger.CheckRule(ix, r); err != nil {
		return ledger.Rule{}, err
	}
	if r.ID, err = s.RuleRepo.Create(ctx, r); err != nil {
		return ledger.Rule{}, err
	}
	return r, nil
}

func (s *Store) UpdateRule(ctx context.Context, r ledger.Rule) (ledger.Rule, error) {
	ix, err := s.categoryIndex(ctx)
	if err != nil {
		return ledger.Rule{}, err
	}
	if err := ledger.CheckRule(ix, r); err != nil {
		return ledger.Rule{}, err
	}
	if err := s.RuleRepo.Update(ctx, r); err != nil {
		return ledger.Rule{}, err
	}
	return r, nil
}

func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	return s.RuleRepo.Delete(ctx, id)
}
