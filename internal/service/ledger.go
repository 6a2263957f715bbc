package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jask/finledger/internal/ledger"
)

// LedgerService sends mutations to the source and patches the cache with the
// confirmed result. It never retries.
type LedgerService struct {
	Cache   *ledger.Cache
	Mutator ledger.Mutator
	Log     *zap.Logger
	// OnSessionExpired runs before the cache is reset on ErrUnauthorized.
	OnSessionExpired func()
}

func NewLedgerService(cache *ledger.Cache, mutator ledger.Mutator, log *zap.Logger) *LedgerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerService{Cache: cache, Mutator: mutator, Log: log}
}

// Handle classifies a failed operation and tears the session down when the
// source rejected it. It returns err wrapped with op.
func (s *LedgerService) Handle(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := Classify(err)
	s.Log.Warn("ledger operation failed", zap.String("op", op), zap.Stringer("kind", kind), zap.Error(err))
	switch kind {
	case KindUnauthorized:
		if s.OnSessionExpired != nil {
			s.OnSessionExpired()
		}
		s.Cache.Reset()
	case KindForbidden:
		s.Cache.Reset()
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Load starts a session.
func (s *LedgerService) Load(ctx context.Context) error {
	return s.Handle("load", s.Cache.Init(ctx))
}

func (s *LedgerService) Create(ctx context.Context, t ledger.Transaction) (ledger.Transaction, error) {
	stored, err := s.Mutator.CreateTransaction(ctx, t)
	if err != nil {
		return ledger.Transaction{}, s.Handle("create transaction", err)
	}
	s.settle(ctx, s.Cache.ApplyMutation(stored, false), stored)
	return stored, nil
}

// Update replaces old, the value the caller last saw, with t.
func (s *LedgerService) Update(ctx context.Context, old, t ledger.Transaction) (ledger.Transaction, error) {
	t.ID = old.ID
	stored, err := s.Mutator.UpdateTransaction(ctx, t)
	if err != nil {
		return ledger.Transaction{}, s.Handle("update transaction", err)
	}
	s.settle(ctx, s.Cache.ApplyUpdate(old, stored), old, stored)
	return stored, nil
}

func (s *LedgerService) Delete(ctx context.Context, id int64) (ledger.Transaction, error) {
	old, err := s.Mutator.DeleteTransaction(ctx, id)
	if err != nil {
		return ledger.Transaction{}, s.Handle("delete transaction", err)
	}
	s.settle(ctx, s.Cache.ApplyMutation(old, true), old)
	return old, nil
}

// settle follows a patched mutation. A patch that was not exact is replaced
// by a refresh, which also brings the category totals.
func (s *LedgerService) settle(ctx context.Context, exact bool, txs ...ledger.Transaction) {
	if exact {
		s.refreshSums(ctx, txs...)
		return
	}
	if err := s.Cache.Refresh(ctx); err != nil {
		_ = s.Handle("refresh after mutation", err)
	}
}

// refreshSums refetches category totals unless only transfers changed. The
// mutation itself already succeeded, so a failure is only logged.
func (s *LedgerService) refreshSums(ctx context.Context, txs ...ledger.Transaction) {
	for _, t := range txs {
		if t.Type() == ledger.TypeTransfer {
			continue
		}
		if err := s.Cache.RefreshCategorySums(ctx); err != nil {
			_ = s.Handle("refresh category sums", err)
		}
		return
	}
}
