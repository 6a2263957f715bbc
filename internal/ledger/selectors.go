package ledger

import (
	"slices"

	"github.com/jask/finledger/internal/money"
)

// Chip is one entry of the account filter as shown to the user: a whole
// group or a single account.
type Chip struct {
	Name       string
	AccountIDs []int64
}

func allAccounts(s *State) []Account {
	var out []Account
	for _, g := range s.Groups {
		if g.Deleted {
			continue
		}
		for _, a := range g.Accounts {
			if !a.Deleted {
				out = append(out, a)
			}
		}
	}
	return out
}

func selectedAccounts(s *State) []Account {
	var out []Account
	for _, a := range allAccounts(s) {
		if slices.Contains(s.Filter.AccountIDs, a.ID) {
			out = append(out, a)
		}
	}
	return out
}

func currencies(accounts []Account) []string {
	var out []string
	for _, a := range accounts {
		if !slices.Contains(out, a.Currency) {
			out = append(out, a.Currency)
		}
	}
	slices.Sort(out)
	return out
}

// AllAccounts flattens the live accounts of every live group.
func (c *Cache) AllAccounts() []Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return allAccounts(&c.state)
}

func (c *Cache) SelectedAccounts() []Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return selectedAccounts(&c.state)
}

// scope is the selected accounts, or all of them when none are selected.
func scope(s *State) []Account {
	if len(s.Filter.AccountIDs) == 0 {
		return allAccounts(s)
	}
	return selectedAccounts(s)
}

// Total sums the balances of the accounts in scope per currency.
func (c *Cache) Total() []money.Amount {
	c.mu.Lock()
	defer c.mu.Unlock()
	totals := money.Totals{}
	for _, a := range scope(&c.state) {
		if a.Balance != nil {
			totals.Add(money.New(*a.Balance, a.Currency, a.Scale))
		}
	}
	return totals.Sorted()
}

// Currencies lists the currencies of the accounts in scope.
func (c *Cache) Currencies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return currencies(scope(&c.state))
}

// Filters collapses the account selection into chips: a fully selected group
// becomes one chip, otherwise each selected account gets its own.
func (c *Cache) Filters() []Chip {
	c.mu.Lock()
	defer c.mu.Unlock()
	selected := c.state.Filter.AccountIDs
	var chips []Chip
	for _, g := range c.state.Groups {
		if g.Deleted {
			continue
		}
		var live, picked []Account
		for _, a := range g.Accounts {
			if a.Deleted {
				continue
			}
			live = append(live, a)
			if slices.Contains(selected, a.ID) {
				picked = append(picked, a)
			}
		}
		if len(picked) == 0 {
			continue
		}
		if len(picked) == len(live) {
			ids := make([]int64, len(picked))
			for i, a := range picked {
				ids[i] = a.ID
			}
			chips = append(chips, Chip{Name: g.FullName, AccountIDs: ids})
			continue
		}
		for _, a := range picked {
			chips = append(chips, Chip{Name: a.FullName, AccountIDs: []int64{a.ID}})
		}
	}
	return chips
}
