package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/finledger/internal/config"
	"github.com/jask/finledger/internal/daterange"
	"github.com/jask/finledger/internal/ledger"
	"github.com/jask/finledger/internal/service"
)

// App ties together views.
type App struct {
	ctx        context.Context
	services   Services
	cfg        config.Config
	state      appState
	modal      modalState
	snap       ledger.State
	catName    map[int64]string
	catPos     map[int64]int
	txCursor   int
	catCursor  int
	status     string
	tz         *time.Location
	today      func() time.Time
	dateFormat string
	expired    bool

	inputBuffer string
	// catTarget is the category a category modal acts on.
	catTarget int64

	// import flow
	importPath string
	lastImport *service.IngestResult
}

type Services struct {
	Ledger     *service.LedgerService
	Categories *service.CategoryView
	Catalog    *service.CatalogService
	Ingest     *service.IngestService
}

type appState string

const (
	viewDashboard    appState = "dashboard"
	viewTransactions appState = "transactions"
	viewCategories   appState = "categories"
	viewImport       appState = "import"
)

type modalState string

const (
	modalNone           modalState = ""
	modalConfirmDelete  modalState = "confirmDelete"
	modalSearch         modalState = "search"
	modalNewCategory    modalState = "newCategory"
	modalRenameCategory modalState = "renameCategory"
	modalDeleteCategory modalState = "deleteCategory"
)

// messages
type refreshedMsg struct{ status string }
type errMsg struct{ error }
type statusMsg string
type ingestDoneMsg struct{ Result service.IngestResult }

func New(ctx context.Context, cfg config.Config, services Services, tz *time.Location) *App {
	if tz == nil {
		tz = time.Local
	}
	if services.Categories == nil {
		services.Categories = service.NewCategoryView(nil, services.Ledger.Log)
	}
	return &App{
		ctx:        ctx,
		services:   services,
		cfg:        cfg,
		state:      viewDashboard,
		tz:         tz,
		today:      func() time.Time { return daterange.Today(tz) },
		dateFormat: cfg.UI.DateFormat,
		catName:    map[int64]string{},
		importPath: "statement.csv",
	}
}

// Expired reports whether the program stopped because the session ended.
func (a *App) Expired() bool { return a.expired }

func (a *App) cache() *ledger.Cache { return a.services.Ledger.Cache }

func (a *App) Init() tea.Cmd {
	return func() tea.Msg {
		if err := a.services.Ledger.Load(a.ctx); err != nil {
			return errMsg{err}
		}
		return refreshedMsg{}
	}
}

// fetch runs one cache operation off the update loop.
func (a *App) fetch(op, status string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(a.ctx); err != nil {
			return errMsg{a.services.Ledger.Handle(op, err)}
		}
		return refreshedMsg{status: status}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		if a.state == viewImport {
			return a.handleImportKey(m)
		}
		if a.state == viewCategories {
			if model, cmd, ok := a.handleCategoryKey(m); ok {
				return model, cmd
			}
		}
		switch m.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		case "d":
			a.state = viewDashboard
		case "t":
			a.state = viewTransactions
		case "c":
			a.state = viewCategories
		case "i":
			a.state = viewImport
			a.status = ""
		case "up", "k":
			if a.state == viewTransactions {
				return a, a.moveCursor(-1)
			}
		case "down", "j":
			if a.state == viewTransactions {
				return a, a.moveCursor(1)
			}
		case "[":
			return a, a.stepRange(-1)
		case "]":
			return a, a.stepRange(1)
		case "p":
			return a, a.cyclePreset()
		case "f":
			return a, a.cycleCurrency()
		case "a":
			return a, a.cycleAccount()
		case "0":
			return a, a.clearFilters()
		case "/":
			a.modal = modalSearch
			a.inputBuffer = a.snap.Filter.Search
		case "x":
			if a.state == viewTransactions && a.selected() != nil {
				a.modal = modalConfirmDelete
			}
		case "r":
			a.status = "reloading..."
			return a, a.Init()
		}
	case refreshedMsg:
		a.sync()
		if m.status != "" {
			a.status = m.status
		}
	case statusMsg:
		a.status = string(m)
	case errMsg:
		if service.Classify(m.error) == service.KindUnauthorized {
			a.expired = true
			return a, tea.Quit
		}
		a.sync()
		a.status = service.Message(m.error)
	case ingestDoneMsg:
		a.lastImport = &m.Result
		summary := fmt.Sprintf("imported %d, skipped %d", m.Result.Imported, m.Result.Skipped)
		if len(m.Result.Errors) > 0 {
			summary += fmt.Sprintf(", errors %d (see import view)", len(m.Result.Errors))
		}
		a.sync()
		a.status = summary
		a.state = viewTransactions
	}
	return a, nil
}

// sync takes a fresh snapshot of the cache and re-derives the view state.
func (a *App) sync() {
	a.snap = a.cache().State()
	a.services.Categories.Rebuild(a.ctx, a.snap.Categories)
	a.catName = make(map[int64]string, len(a.snap.Categories))
	a.catPos = make(map[int64]int, len(a.snap.Categories))
	pos := -1
	for _, c := range a.snap.Categories {
		a.catName[c.ID] = c.FullName
		if c.Level == 1 {
			pos++
		}
		if c.Level >= 1 {
			a.catPos[c.ID] = pos
		}
	}
	a.txCursor = 0
	if a.snap.Selected != nil {
		for i, v := range a.snap.Window {
			if v.Tx.ID == *a.snap.Selected {
				a.txCursor = i
				break
			}
		}
	}
	if rows := a.services.Categories.Rows(); a.catCursor >= len(rows) {
		a.catCursor = max(len(rows)-1, 0)
	}
}

func (a *App) selected() *ledger.TransactionView {
	if a.txCursor < 0 || a.txCursor >= len(a.snap.Window) {
		return nil
	}
	return &a.snap.Window[a.txCursor]
}

// moveCursor selects the neighbouring transaction and pulls the next page
// once the cursor reaches the end of a partial window.
func (a *App) moveCursor(delta int) tea.Cmd {
	if len(a.snap.Window) == 0 {
		return nil
	}
	i := min(max(a.txCursor+delta, 0), len(a.snap.Window)-1)
	a.txCursor = i
	id := a.snap.Window[i].Tx.ID
	a.cache().Select(&id)
	a.snap.Selected = &id
	if i == len(a.snap.Window)-1 && !a.snap.Loaded {
		a.status = "loading more..."
		return a.fetch("load more", "", a.cache().LoadMore)
	}
	return nil
}

func (a *App) stepRange(dir int) tea.Cmd {
	r, today := a.snap.Filter.Range, a.today()
	next := r.Prev()
	if dir > 0 {
		if !r.HasNext(today) {
			a.status = "already at the latest " + r.Kind.String()
			return nil
		}
		next = r.Next(today)
	} else if !r.HasPrev() {
		a.status = r.Label + " cannot be stepped"
		return nil
	}
	return a.setRange(next)
}

var presets = []func(time.Time) daterange.Range{
	daterange.CurrentMonth,
	daterange.CurrentYear,
	daterange.Last30,
	daterange.Last90,
	daterange.LastYear,
	func(time.Time) daterange.Range { return daterange.All() },
}

func (a *App) cyclePreset() tea.Cmd {
	today := a.today()
	next := 0
	for i, p := range presets {
		if p(today).Same(a.snap.Filter.Range) {
			next = (i + 1) % len(presets)
			break
		}
	}
	return a.setRange(presets[next](today))
}

func (a *App) setRange(r daterange.Range) tea.Cmd {
	a.status = "loading " + r.Label + "..."
	return a.fetch("set range", r.Label, func(ctx context.Context) error {
		return a.cache().SetRange(ctx, r)
	})
}

// cycleCurrency steps through no currency filter and each currency in scope.
func (a *App) cycleCurrency() tea.Cmd {
	options := append([]string{""}, a.cache().Currencies()...)
	next := options[0]
	for i, c := range options {
		if c == a.snap.Filter.Currency {
			next = options[(i+1)%len(options)]
			break
		}
	}
	return a.fetch("set currency", "", func(ctx context.Context) error {
		return a.cache().SetCurrency(ctx, next)
	})
}

// cycleAccount steps the account selection through every single account and
// back to all of them.
func (a *App) cycleAccount() tea.Cmd {
	accounts := a.cache().AllAccounts()
	var next []int64
	switch ids := a.snap.Filter.AccountIDs; {
	case len(ids) == 0 && len(accounts) > 0:
		next = []int64{accounts[0].ID}
	case len(ids) == 1:
		for i, acc := range accounts {
			if acc.ID == ids[0] && i+1 < len(accounts) {
				next = []int64{accounts[i+1].ID}
			}
		}
	}
	return a.fetch("select accounts", "", func(ctx context.Context) error {
		return a.cache().SetAccounts(ctx, next)
	})
}

func (a *App) clearFilters() tea.Cmd {
	return a.fetch("clear filters", "filters cleared", func(ctx context.Context) error {
		c := a.cache()
		if err := c.SetAccounts(ctx, nil); err != nil {
			return err
		}
		if err := c.SetCurrency(ctx, ""); err != nil {
			return err
		}
		if err := c.SetCategory(ctx, nil); err != nil {
			return err
		}
		return c.SetSearch(ctx, "")
	})
}

func (a *App) deleteCmd(id int64) tea.Cmd {
	return func() tea.Msg {
		// Delete already classified and wrapped the error
		if _, err := a.services.Ledger.Delete(a.ctx, id); err != nil {
			return errMsg{err}
		}
		return refreshedMsg{status: "deleted"}
	}
}

func (a *App) ingestCmd(path string) tea.Cmd {
	var account int64
	if ids := a.snap.Filter.AccountIDs; len(ids) == 1 {
		account = ids[0]
	}
	if a.services.Ingest != nil {
		a.services.Ingest.Matcher = service.NewRuleMatcher(a.snap.Rules, a.snap.Categories)
	}
	return func() tea.Msg {
		if account == 0 {
			return statusMsg("select a single account with [a] before importing")
		}
		if a.services.Ingest == nil {
			return statusMsg("import not configured")
		}
		f, err := os.Open(path)
		if err != nil {
			return statusMsg("open csv: " + err.Error())
		}
		defer f.Close()
		importer := a.services.Ingest.ImportCSV
		if strings.HasPrefix(strings.ToUpper(filepath.Base(path)), "ANZ") {
			importer = a.services.Ingest.ImportANZSimple
		}
		res, err := importer(a.ctx, f, account, a.tz)
		if err != nil {
			return errMsg{err}
		}
		return ingestDoneMsg{Result: res}
	}
}

func (a *App) handleCategoryKey(m tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	rows := a.services.Categories.Rows()
	switch m.String() {
	case "up", "k":
		if a.catCursor > 0 {
			a.catCursor--
		}
	case "down", "j":
		if a.catCursor < len(rows)-1 {
			a.catCursor++
		}
	case " ", "right", "left":
		if a.catCursor < len(rows) {
			a.services.Categories.Toggle(a.ctx, rows[a.catCursor].Node.Category.ID)
		}
	case "n", "e", "x":
		if a.catCursor >= len(rows) || a.services.Catalog == nil {
			return a, nil, true
		}
		c := rows[a.catCursor].Node.Category
		a.catTarget = c.ID
		switch m.String() {
		case "n":
			a.modal, a.inputBuffer = modalNewCategory, ""
		case "e":
			a.modal, a.inputBuffer = modalRenameCategory, c.Name
		default:
			a.modal = modalDeleteCategory
		}
	case "enter":
		if a.catCursor >= len(rows) {
			return a, nil, true
		}
		c := rows[a.catCursor].Node.Category
		id := c.ID
		a.state = viewTransactions
		return a, a.fetch("set category", c.FullName, func(ctx context.Context) error {
			return a.cache().SetCategory(ctx, &id)
		}), true
	default:
		return a, nil, false
	}
	return a, nil, true
}

func (a *App) handleImportKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	}
	switch m.Type {
	case tea.KeyEsc:
		a.state = viewDashboard
		a.status = ""
	case tea.KeyEnter:
		path := strings.TrimSpace(a.importPath)
		if path == "" {
			a.status = "enter a CSV path"
			return a, nil
		}
		a.status = "importing..."
		return a, a.ingestCmd(path)
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		if len(a.importPath) > 0 {
			a.importPath = a.importPath[:len(a.importPath)-1]
		}
	case tea.KeySpace:
		a.importPath += " "
	case tea.KeyRunes:
		a.importPath += string(m.Runes)
	}
	return a, nil
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalConfirmDelete:
		switch m.String() {
		case "y":
			a.modal = modalNone
			if v := a.selected(); v != nil {
				a.status = "deleting..."
				return a, a.deleteCmd(v.Tx.ID)
			}
		case "n", "esc":
			a.modal = modalNone
		}
	case modalSearch:
		switch m.Type {
		case tea.KeyEsc:
			a.modal = modalNone
		case tea.KeyEnter:
			a.modal = modalNone
			search := strings.TrimSpace(a.inputBuffer)
			return a, a.fetch("search", "", func(ctx context.Context) error {
				return a.cache().SetSearch(ctx, search)
			})
		default:
			a.typeInto(m)
		}
	case modalNewCategory, modalRenameCategory:
		switch m.Type {
		case tea.KeyEsc:
			a.modal = modalNone
		case tea.KeyEnter:
			op, id, name := a.modal, a.catTarget, strings.TrimSpace(a.inputBuffer)
			a.modal = modalNone
			if op == modalNewCategory {
				return a, a.catalogCmd("category added", func(ctx context.Context) error {
					_, err := a.services.Catalog.CreateCategory(ctx, id, name)
					return err
				})
			}
			return a, a.catalogCmd("category renamed", func(ctx context.Context) error {
				_, err := a.services.Catalog.RenameCategory(ctx, id, name)
				return err
			})
		default:
			a.typeInto(m)
		}
	case modalDeleteCategory:
		switch m.String() {
		case "y":
			a.modal = modalNone
			id := a.catTarget
			return a, a.catalogCmd("category deleted", func(ctx context.Context) error {
				return a.services.Catalog.DeleteCategory(ctx, id)
			})
		case "n", "esc":
			a.modal = modalNone
		}
	}
	return a, nil
}

// typeInto edits the modal input line.
func (a *App) typeInto(m tea.KeyMsg) {
	switch m.Type {
	case tea.KeyBackspace, tea.KeyCtrlH:
		if len(a.inputBuffer) > 0 {
			a.inputBuffer = a.inputBuffer[:len(a.inputBuffer)-1]
		}
	case tea.KeySpace:
		a.inputBuffer += " "
	case tea.KeyRunes:
		a.inputBuffer += string(m.Runes)
	}
}

// catalogCmd runs a catalog edit. The catalog service has already handled
// any error by the time it returns.
func (a *App) catalogCmd(status string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(a.ctx); err != nil {
			return errMsg{err}
		}
		return refreshedMsg{status: status}
	}
}
