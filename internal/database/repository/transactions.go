package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/finledger/internal/ledger"
)

// TransactionFilters narrows a listing. Subtree holds the category ids a
// category filter expands to.
type TransactionFilters struct {
	Query   ledger.Query
	Subtree []int64
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const selectTransaction = `
SELECT t.id, t.opdate, t.type,
       t.account_id, t.debit, a.currency, a.scale,
       t.recipient_id, t.credit, r.currency, r.scale,
       t.category_id, t.party, t.details
FROM transactions t
LEFT JOIN accounts a ON a.id = t.account_id
LEFT JOIN accounts r ON r.id = t.recipient_id
LEFT JOIN categories c ON c.id = t.category_id`

func scanTransaction(s scanner) (ledger.Transaction, error) {
	var (
		f                            ledger.Flat
		typ                          ledger.TxType
		opdate                       string
		accountID, recipientID       sql.NullInt64
		debit, credit                decimal.NullDecimal
		accountCur, recipientCur     sql.NullString
		accountScale, recipientScale sql.NullInt32
		categoryID                   sql.NullInt64
	)
	if err := s.Scan(&f.ID, &opdate, &typ,
		&accountID, &debit, &accountCur, &accountScale,
		&recipientID, &credit, &recipientCur, &recipientScale,
		&categoryID, &f.Party, &f.Details); err != nil {
		return ledger.Transaction{}, err
	}
	var err error
	if f.Opdate, err = parseOpdate(opdate); err != nil {
		return ledger.Transaction{}, err
	}
	f.Type = &typ
	if accountID.Valid {
		f.AccountID = &accountID.Int64
		f.Debit = &debit.Decimal
		f.AccountCurrency, f.AccountScale = accountCur.String, accountScale.Int32
	}
	if recipientID.Valid {
		f.RecipientID = &recipientID.Int64
		f.Credit = &credit.Decimal
		f.RecipientCurrency, f.RecipientScale = recipientCur.String, recipientScale.Int32
	}
	if categoryID.Valid {
		f.CategoryID = &categoryID.Int64
	}
	t, err := f.Transaction(nil)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("transaction %d: %w", f.ID, err)
	}
	return t, nil
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// List returns matching transactions newest first. A limit <= 0 returns all.
func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters, offset, limit int) ([]ledger.Transaction, error) {
	var where []string
	var args []any
	q := f.Query

	if len(q.AccountIDs) > 0 {
		ph := placeholders(len(q.AccountIDs))
		where = append(where, "(t.account_id IN ("+ph+") OR t.recipient_id IN ("+ph+"))")
		args = append(args, int64Args(q.AccountIDs)...)
		args = append(args, int64Args(q.AccountIDs)...)
	}
	from, until := q.Range.Bounds(time.UTC)
	if !from.IsZero() {
		where = append(where, "t.opdate >= ?")
		args = append(args, formatOpdate(from))
	}
	if !until.IsZero() {
		where = append(where, "t.opdate < ?")
		args = append(args, formatOpdate(until))
	}
	if q.Currency != "" {
		where = append(where, "(a.currency = ? OR r.currency = ?)")
		args = append(args, q.Currency, q.Currency)
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		where = append(where, "(lower(t.party) LIKE ? OR lower(t.details) LIKE ? OR lower(COALESCE(c.name, '')) LIKE ?)")
		args = append(args, like, like, like)
	}
	if q.CategoryID != nil {
		switch id := *q.CategoryID; id {
		case ledger.NoCategoryExpense:
			where = append(where, "t.type = ? AND t.category_id IS NULL")
			args = append(args, ledger.TypeExpense)
		case ledger.NoCategoryIncome:
			where = append(where, "t.type = ? AND t.category_id IS NULL")
			args = append(args, ledger.TypeIncome)
		case int64(ledger.TypeTransfer), int64(ledger.TypeExpense), int64(ledger.TypeIncome), int64(ledger.TypeCorrection):
			where = append(where, "t.type = ?")
			args = append(args, id)
		default:
			if len(f.Subtree) == 0 {
				return nil, nil
			}
			where = append(where, "t.category_id IN ("+placeholders(len(f.Subtree))+")")
			args = append(args, int64Args(f.Subtree)...)
		}
	}

	query := selectTransaction
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.opdate DESC, t.id DESC"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	return queryTransactions(ctx, r.db, query, args...)
}

// History returns every transaction touching the accounts, oldest first.
// No accounts means the whole ledger.
func (r *TransactionRepo) History(ctx context.Context, accountIDs []int64) ([]ledger.Transaction, error) {
	query := selectTransaction
	var args []any
	if len(accountIDs) > 0 {
		ph := placeholders(len(accountIDs))
		query += " WHERE t.account_id IN (" + ph + ") OR t.recipient_id IN (" + ph + ")"
		args = append(int64Args(accountIDs), int64Args(accountIDs)...)
	}
	query += " ORDER BY t.opdate, t.id"
	return queryTransactions(ctx, r.db, query, args...)
}

func (r *TransactionRepo) Get(ctx context.Context, q querier, id int64) (ledger.Transaction, error) {
	t, err := scanTransaction(q.QueryRowContext(ctx, selectTransaction+" WHERE t.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Transaction{}, fmt.Errorf("%w: transaction %d", ledger.ErrNotFound, id)
	}
	return t, err
}

// LaterCorrections returns corrections on the accounts dated after t.
func (r *TransactionRepo) LaterCorrections(ctx context.Context, q querier, t *ledger.Transaction) ([]ledger.Transaction, error) {
	var ids []int64
	for _, l := range t.Legs() {
		ids = append(ids, l.AccountID)
	}
	ph := placeholders(len(ids))
	opdate := formatOpdate(t.Opdate)
	query := selectTransaction + `
	WHERE t.type = ? AND (t.account_id IN (` + ph + `) OR t.recipient_id IN (` + ph + `))
	AND (t.opdate > ? OR (t.opdate = ? AND t.id > ?))
	ORDER BY t.opdate, t.id`
	args := []any{ledger.TypeCorrection}
	args = append(args, int64Args(ids)...)
	args = append(args, int64Args(ids)...)
	args = append(args, opdate, opdate, t.ID)
	return queryTransactions(ctx, q, query, args...)
}

func rowValues(t *ledger.Transaction) []any {
	var accountID, recipientID, categoryID sql.NullInt64
	var debit, credit decimal.NullDecimal
	if l := t.AccountLeg(); l != nil {
		accountID = sql.NullInt64{Int64: l.AccountID, Valid: true}
		debit = decimal.NullDecimal{Decimal: l.Amount, Valid: true}
	}
	if l := t.RecipientLeg(); l != nil {
		recipientID = sql.NullInt64{Int64: l.AccountID, Valid: true}
		credit = decimal.NullDecimal{Decimal: l.Amount, Valid: true}
	}
	if c := t.CategoryID(); c != 0 {
		categoryID = sql.NullInt64{Int64: c, Valid: true}
	}
	return []any{formatOpdate(t.Opdate), t.Type(), accountID, debit, recipientID, credit, categoryID, t.Party, t.Details}
}

func (r *TransactionRepo) Insert(ctx context.Context, q querier, t *ledger.Transaction) (int64, error) {
	res, err := q.ExecContext(ctx, `
	INSERT INTO transactions(opdate, type, account_id, debit, recipient_id, credit, category_id, party, details)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, rowValues(t)...)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return res.LastInsertId()
}

func (r *TransactionRepo) Update(ctx context.Context, q querier, t *ledger.Transaction) error {
	args := append(rowValues(t), t.ID)
	res, err := q.ExecContext(ctx, `
	UPDATE transactions SET opdate = ?, type = ?, account_id = ?, debit = ?, recipient_id = ?, credit = ?,
	 category_id = ?, party = ?, details = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: transaction %d", ledger.ErrNotFound, t.ID)
	}
	return nil
}

func (r *TransactionRepo) Delete(ctx context.Context, q querier, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	return err
}
