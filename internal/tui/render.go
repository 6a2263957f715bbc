package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/jask/finledger/internal/category"
	"github.com/jask/finledger/internal/ledger"
	"github.com/jask/finledger/internal/money"
)

func (a *App) View() string {
	var body string
	switch a.state {
	case viewTransactions:
		body = a.renderTransactions()
	case viewCategories:
		body = a.renderCategories()
	case viewImport:
		body = a.renderImport()
	default:
		body = a.renderDashboard()
	}
	if a.modal != modalNone {
		body += "\n\n" + a.renderModal()
	}
	if a.status != "" {
		body += "\n" + a.status
	}
	return body
}

func (a *App) renderFilters() string {
	f := a.snap.Filter
	chips := []string{f.Range.Label}
	for _, c := range a.cache().Filters() {
		chips = append(chips, c.Name)
	}
	if f.Currency != "" {
		chips = append(chips, f.Currency)
	}
	if f.CategoryID != nil {
		chips = append(chips, a.catName[*f.CategoryID])
	}
	if f.Search != "" {
		chips = append(chips, "\""+f.Search+"\"")
	}
	rendered := make([]string, len(chips))
	for i, c := range chips {
		rendered[i] = chipStyle.Render(c)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, rendered...)
}

func joinAmounts(amounts []money.Amount) string {
	if len(amounts) == 0 {
		return "-"
	}
	parts := make([]string, len(amounts))
	for i, am := range amounts {
		parts[i] = am.Round().String()
	}
	return strings.Join(parts, ", ")
}

func (a *App) renderDashboard() string {
	title := titleStyle.Render("Finledger - " + a.snap.Filter.Range.Label)
	out := title + "\n" + a.renderFilters() + "\n"
	out += "Balance: " + joinAmounts(a.cache().Total()) + "\n\n"

	out += "Accounts\n"
	for _, g := range a.snap.Groups {
		if g.Deleted {
			continue
		}
		owner := ""
		switch {
		case g.IsShared:
			owner = dimStyle.Render(" (shared)")
		case g.IsCoowner:
			owner = dimStyle.Render(" (co-owned)")
		}
		out += fmt.Sprintf("  %s%s\n", g.FullName, owner)
		for _, acc := range g.Accounts {
			if acc.Deleted {
				continue
			}
			bal := "-"
			if acc.Balance != nil {
				bal = money.New(*acc.Balance, acc.Currency, acc.Scale).String()
			}
			out += fmt.Sprintf("    %-20s %16s\n", acc.Name, bal)
		}
	}

	out += "\nPeriod\n"
	if len(a.snap.Summary) == 0 {
		out += "  no transactions\n"
	}
	for _, s := range a.snap.Summary {
		in := money.New(s.Credit, s.Currency, s.Scale)
		spent := money.New(s.Debit, s.Currency, s.Scale)
		out += fmt.Sprintf("  %s  in %s  out %s\n", s.Currency, creditStyle.Render(in.String()), debitStyle.Render(spent.String()))
	}

	out += "\nTop spending\n"
	for i, cs := range a.snap.CategorySums.Expense {
		if i == 5 {
			break
		}
		out += fmt.Sprintf("  %-24s %s\n", cs.Name, joinAmounts(cs.Amounts))
	}
	out += "[t] Transactions  [c] Categories  [i] Import CSV  [[/]] Prev/Next  [p] Preset  [a] Account  [f] Currency  [/] Search  [0] Clear  [q] Quit"
	return out
}

func (a *App) renderTransactions() string {
	title := titleStyle.Render("Transactions - " + a.snap.Filter.Range.Label)
	out := title + "\n" + a.renderFilters() + "\n"
	if len(a.snap.Window) == 0 {
		out += "No transactions.\n"
	}
	for i, v := range a.snap.Window {
		marker := " "
		if i == a.txCursor {
			marker = cursorStyle.Render("▶")
		}
		amount := creditStyle.Render(v.Amount.String())
		if v.Amount.Value.IsNegative() {
			amount = debitStyle.Render(v.Amount.String())
		}
		bal := ""
		if v.Balance != nil {
			bal = money.New(v.Balance.Value, v.Amount.Currency, v.Amount.Scale).String()
		}
		out += fmt.Sprintf("%s %s  %-28s  %16s  %16s  %s\n", marker, v.Tx.Opdate.In(a.tz).Format(a.dateFormat), describe(v.Tx), amount, bal, a.categoryLabel(v.Tx))
	}
	if !a.snap.Loaded {
		out += dimStyle.Render("  more below") + "\n"
	}
	out += "[d] Dashboard  [c] Categories  [x] Delete  [[/]] Prev/Next  [p] Preset  [a] Account  [f] Currency  [/] Search  [0] Clear  [r] Reload  [q] Quit"
	return out
}

func describe(t ledger.Transaction) string {
	s := t.Party
	if s == "" {
		s = t.Details
	}
	if r := []rune(s); len(r) > 28 {
		s = string(r[:27]) + "…"
	}
	return s
}

func (a *App) categoryLabel(t ledger.Transaction) string {
	if t.Type() == ledger.TypeTransfer {
		return "Transfer"
	}
	id := t.CategoryID()
	if name, ok := a.catName[id]; ok {
		pos, ok := a.catPos[id]
		if !ok {
			pos = -1
		}
		return categoryStyle(pos).Render(name)
	}
	return dimStyle.Render("Uncategorized")
}

// categoryTree renders the expanded outline, marking the cursor row.
func (a *App) categoryTree() string {
	view := a.services.Categories
	t := view.Tree()
	if t == nil {
		return "No categories."
	}
	rows := view.Rows()
	var cursor int64 = -1
	if a.catCursor < len(rows) {
		cursor = rows[a.catCursor].Node.Category.ID
	}
	sums := map[int64][]money.Amount{}
	for _, cs := range slices.Concat(a.snap.CategorySums.Expense, a.snap.CategorySums.Income) {
		sums[cs.CategoryID] = cs.Amounts
	}
	state := view.State()
	label := func(n *category.Node) string {
		name := n.Category.Name
		if n.Category.ID == cursor {
			name = cursorStyle.Render("▶ " + name)
		} else if pos, ok := a.catPos[n.Category.ID]; ok {
			name = categoryStyle(pos).Render(name)
		}
		if len(n.Children) > 0 && !state[n.Category.ID] {
			name += " +"
		}
		if am, ok := sums[n.Category.ID]; ok {
			name += dimStyle.Render("  " + joinAmounts(am))
		}
		return name
	}
	var add func(parent *tree.Tree, nodes []*category.Node)
	add = func(parent *tree.Tree, nodes []*category.Node) {
		for _, n := range nodes {
			if len(n.Children) > 0 && state[n.Category.ID] {
				sub := tree.Root(label(n))
				add(sub, n.Children)
				parent.Child(sub)
				continue
			}
			parent.Child(label(n))
		}
	}
	root := tree.New().Enumerator(tree.RoundedEnumerator)
	add(root, t.Roots)
	return root.String()
}

func (a *App) renderCategories() string {
	title := titleStyle.Render("Categories")
	out := title + "\n" + a.categoryTree() + "\n"
	out += "[space] Expand/Collapse  [enter] Filter  [n] New  [e] Rename  [x] Delete  [d] Dashboard  [t] Transactions  [q] Quit"
	return out
}

func (a *App) renderImport() string {
	title := titleStyle.Render("Import CSV")
	target := "none (select one with [a] first)"
	if ids := a.snap.Filter.AccountIDs; len(ids) == 1 {
		for _, acc := range a.cache().AllAccounts() {
			if acc.ID == ids[0] {
				target = fmt.Sprintf("%s (%s)", acc.FullName, acc.Currency)
			}
		}
	}
	body := fmt.Sprintf("CSV path: %s\nAccount: %s\nType a path and press Enter to import. Files named ANZ* use the bank's headerless export.\n[enter] Import  [esc] Back", a.importPath, target)
	if a.lastImport != nil {
		body += fmt.Sprintf("\nLast import: %d imported, %d skipped, %d errors", a.lastImport.Imported, a.lastImport.Skipped, len(a.lastImport.Errors))
		if len(a.lastImport.Errors) > 0 {
			body += "\nFirst error: " + a.lastImport.Errors[0].Error()
			if len(a.lastImport.Errors) > 1 {
				body += fmt.Sprintf(" (+%d more)", len(a.lastImport.Errors)-1)
			}
		}
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalConfirmDelete:
		v := a.selected()
		if v == nil {
			return ""
		}
		return titleStyle.Render("Delete transaction?") + fmt.Sprintf("\n%s  %s\n[y] Yes  [n] No", describe(v.Tx), v.Amount.String())
	case modalSearch:
		return titleStyle.Render("Search") + fmt.Sprintf("\n%s\n[enter] Apply  [esc] Cancel", a.inputBuffer)
	case modalNewCategory:
		return titleStyle.Render("New category under "+a.catName[a.catTarget]) + fmt.Sprintf("\n%s\n[enter] Save  [esc] Cancel", a.inputBuffer)
	case modalRenameCategory:
		return titleStyle.Render("Rename "+a.catName[a.catTarget]) + fmt.Sprintf("\n%s\n[enter] Save  [esc] Cancel", a.inputBuffer)
	case modalDeleteCategory:
		return titleStyle.Render("Delete "+a.catName[a.catTarget]+"?") + "\nTransactions keep no category and its rules are removed.\n[y] Yes  [n] No"
	}
	return ""
}
