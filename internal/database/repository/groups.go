package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jask/finledger/internal/ledger"
)

// GroupRepo handles groups, their accounts and permissions.
type GroupRepo struct {
	db *sql.DB
}

func NewGroupRepo(db *sql.DB) *GroupRepo { return &GroupRepo{db: db} }

// CreateGroup adds a group owned by g.OwnerID.
func (r *GroupRepo) CreateGroup(ctx context.Context, g ledger.Group) (int64, error) {
	if g.OwnerID <= 0 {
		return 0, fmt.Errorf("%w: group owner is required", ledger.ErrValidation)
	}
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO groups(full_name, owner_id, position)
	VALUES (?, ?, (SELECT COUNT(*) FROM groups WHERE owner_id = ?));
	`, g.FullName, g.OwnerID, g.OwnerID)
	if err != nil {
		return 0, fmt.Errorf("insert group: %w", err)
	}
	return res.LastInsertId()
}

func (r *GroupRepo) CreateAccount(ctx context.Context, a ledger.Account) (int64, error) {
	if a.Scale <= 0 {
		a.Scale = 2
	}
	res, err := r.db.ExecContext(ctx, `
	INSERT INTO accounts(group_id, name, currency, chain, scale, start_balance, position)
	VALUES (?, ?, ?, ?, ?, ?, (SELECT COUNT(*) FROM accounts WHERE group_id = ?));
	`, a.GroupID, a.Name, a.Currency, a.Chain, a.Scale, a.StartBalance, a.GroupID)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}
	return res.LastInsertId()
}

// Grant gives a user access to a group.
func (r *GroupRepo) Grant(ctx context.Context, groupID int64, p ledger.Permission) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO permissions(group_id, user_id, login, access) VALUES (?, ?, ?, ?)
	ON CONFLICT(group_id, user_id) DO UPDATE SET login=excluded.login, access=excluded.access;
	`, groupID, p.UserID, p.Login, p.Access)
	return err
}

func (r *GroupRepo) DeleteAccount(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE accounts SET deleted = 1 WHERE id = ?`, id)
	return err
}

// visibleGroups selects the groups a user owns or was granted access to.
const visibleGroups = `(g.owner_id = ? OR EXISTS (SELECT 1 FROM permissions p WHERE p.group_id = g.id AND p.user_id = ?))`

// List returns the live groups userID can see, in display order, with their
// accounts and the ownership flags as seen by that user. Account balances
// are left nil.
func (r *GroupRepo) List(ctx context.Context, userID int64) ([]ledger.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT g.id, g.full_name, g.owner_id, g.deleted
	FROM groups g WHERE g.deleted = 0 AND `+visibleGroups+`
	ORDER BY g.owner_id = ? DESC, g.position, g.id`, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	var groups []ledger.Group
	index := map[int64]int{}
	for rows.Next() {
		var g ledger.Group
		if err := rows.Scan(&g.ID, &g.FullName, &g.OwnerID, &g.Deleted); err != nil {
			rows.Close()
			return nil, err
		}
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	accounts, err := r.accounts(ctx, r.db, "")
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if i, ok := index[a.GroupID]; ok {
			groups[i].Accounts = append(groups[i].Accounts, a)
		}
	}
	prows, err := r.db.QueryContext(ctx, `SELECT group_id, user_id, login, access FROM permissions ORDER BY group_id, login`)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var groupID int64
		var p ledger.Permission
		if err := prows.Scan(&groupID, &p.UserID, &p.Login, &p.Access); err != nil {
			return nil, err
		}
		if i, ok := index[groupID]; ok {
			groups[i].Permissions = append(groups[i].Permissions, p)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}
	for i := range groups {
		flagOwnership(&groups[i], userID)
		nameAccounts(&groups[i])
	}
	return groups, nil
}

// flagOwnership sets the ownership flags for userID. A group with an admin
// grant is co-owned by its owner and the admins; a group userID neither owns
// nor administers is shared with them.
func flagOwnership(g *ledger.Group, userID int64) {
	admins, admin := false, false
	for _, p := range g.Permissions {
		if p.Access == ledger.Admin {
			admins = true
			admin = admin || p.UserID == userID
		}
	}
	own := g.OwnerID == userID
	g.IsOwner = own && !admins
	g.IsCoowner = admins && (own || admin)
	g.IsShared = !own && !admin
}

// nameAccounts sets full names: the group name alone for a single account,
// otherwise the group name followed by the account name or its currency.
func nameAccounts(g *ledger.Group) {
	live := 0
	for _, a := range g.Accounts {
		if !a.Deleted {
			live++
		}
	}
	for i := range g.Accounts {
		a := &g.Accounts[i]
		if live <= 1 {
			a.FullName = g.FullName
			continue
		}
		suffix := strings.TrimSpace(a.Name)
		if suffix == "" {
			suffix = a.Currency
		}
		a.FullName = g.FullName + " " + suffix
	}
}

func (r *GroupRepo) accounts(ctx context.Context, q querier, where string, args ...any) ([]ledger.Account, error) {
	query := `SELECT id, group_id, name, currency, chain, scale, start_balance, deleted FROM accounts`
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY group_id, position, id"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAccount(s scanner) (ledger.Account, error) {
	var a ledger.Account
	var start decimal.Decimal
	if err := s.Scan(&a.ID, &a.GroupID, &a.Name, &a.Currency, &a.Chain, &a.Scale, &start, &a.Deleted); err != nil {
		return ledger.Account{}, err
	}
	a.StartBalance = start
	return a, nil
}

// Account looks a live account up inside q.
func (r *GroupRepo) Account(ctx context.Context, q querier, id int64) (ledger.Account, error) {
	accounts, err := r.accounts(ctx, q, "id = ? AND deleted = 0", id)
	if err != nil {
		return ledger.Account{}, err
	}
	if len(accounts) == 0 {
		return ledger.Account{}, fmt.Errorf("%w: account %d", ledger.ErrNotFound, id)
	}
	return accounts[0], nil
}

// StartBalances returns the opening balance of every account.
func (r *GroupRepo) StartBalances(ctx context.Context) (map[int64]decimal.Decimal, error) {
	accounts, err := r.accounts(ctx, r.db, "")
	if err != nil {
		return nil, err
	}
	out := make(map[int64]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		out[a.ID] = a.StartBalance
	}
	return out, nil
}

// VisibleAccounts returns the ids of every account, deleted ones included,
// in groups userID can see.
func (r *GroupRepo) VisibleAccounts(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT a.id FROM accounts a JOIN groups g ON g.id = a.group_id
	WHERE g.deleted = 0 AND `+visibleGroups+` ORDER BY a.id`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Access returns the user's access to the group owning the account. The
// owner has admin access; anyone else needs a grant.
func (r *GroupRepo) Access(ctx context.Context, q querier, accountID, userID int64) (ledger.Access, error) {
	var groupID, ownerID int64
	err := q.QueryRowContext(ctx, `
	SELECT g.id, g.owner_id FROM accounts a JOIN groups g ON g.id = a.group_id WHERE a.id = ?`,
		accountID).Scan(&groupID, &ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: account %d", ledger.ErrNotFound, accountID)
	}
	if err != nil {
		return 0, err
	}
	if ownerID == userID {
		return ledger.Admin, nil
	}
	var access ledger.Access
	err = q.QueryRowContext(ctx, `SELECT access FROM permissions WHERE group_id = ? AND user_id = ?`, groupID, userID).Scan(&access)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: account %d", ledger.ErrForbidden, accountID)
	}
	return access, err
}
