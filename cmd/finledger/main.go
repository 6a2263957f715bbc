package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jask/finledger/internal/config"
	"github.com/jask/finledger/internal/database"
	"github.com/jask/finledger/internal/database/repository"
	"github.com/jask/finledger/internal/daterange"
	"github.com/jask/finledger/internal/ledger"
	"github.com/jask/finledger/internal/logger"
	"github.com/jask/finledger/internal/prefs"
	"github.com/jask/finledger/internal/remote"
	"github.com/jask/finledger/internal/service"
	"github.com/jask/finledger/internal/tui"
)

// source is what the client reads from and writes to.
type source interface {
	ledger.Source
	ledger.Mutator
	ledger.Catalog
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.LoadViper()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logPath := cfg.Log.File
	if logPath == "" {
		logPath = filepath.Join(filepath.Dir(cfg.Database.Path), "finledger.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		log.Fatalf("mkdir log dir: %v", err)
	}
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	zl, err := logger.ToFileAt(level, logPath)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	src, closeSrc, err := openSource(ctx, cfg, zl)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer closeSrc()

	loc := cfg.UI.Location()
	cache := ledger.New(src, ledger.Options{
		PageSize: cfg.Ledger.PageSize,
		Log:      zl,
		Today:    func() time.Time { return daterange.Today(loc) },
	})
	ledgerSvc := service.NewLedgerService(cache, src, zl)
	ledgerSvc.OnSessionExpired = func() { zl.Warn("session expired", zap.Int64("user", cfg.API.UserID)) }

	store, closePrefs := openPrefs(ctx, cfg, zl)
	defer closePrefs()

	config.Watch(v, func(next config.Config, e fsnotify.Event, err error) {
		if err != nil {
			zl.Warn("ignoring config change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if lvl, err := logger.ParseLevel(next.Log.Level); err == nil {
			level.SetLevel(lvl.Level())
		}
		cache.SetPageSize(next.Ledger.PageSize)
		zl.Info("config reloaded", zap.String("level", next.Log.Level), zap.Int("page_size", next.Ledger.PageSize))
	})

	categories := service.NewCategoryView(store, zl)
	app := tui.New(ctx, cfg, tui.Services{
		Ledger:     ledgerSvc,
		Categories: categories,
		Catalog:    service.NewCatalogService(ledgerSvc, src, categories),
		Ingest:     &service.IngestService{Ledger: ledgerSvc},
	}, loc)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
	if app.Expired() {
		fmt.Fprintln(os.Stderr, "Session expired, please sign in again")
		os.Exit(1)
	}
}

// openSource connects to the server when api.url is set and otherwise opens
// the local database.
func openSource(ctx context.Context, cfg config.Config, zl *zap.Logger) (source, func(), error) {
	if cfg.API.URL != "" {
		zl.Info("using remote ledger", zap.String("url", cfg.API.URL), zap.Int64("user", cfg.API.UserID))
		return remote.New(cfg.API.URL, cfg.API.UserID, zl), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.Migrations); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := database.SeedDefaults(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("seed defaults: %w", err)
	}
	zl.Info("using local ledger", zap.String("path", cfg.Database.Path))
	return repository.NewStore(db, cfg.API.UserID), func() { db.Close() }, nil
}

// openPrefs falls back to the file store when redis is unreachable.
func openPrefs(ctx context.Context, cfg config.Config, zl *zap.Logger) (prefs.Store, func()) {
	if cfg.Prefs.Backend == "redis" {
		rs, err := prefs.NewRedisStore(ctx, cfg.Prefs.RedisURL, cfg.API.UserID)
		if err == nil {
			return rs, func() { rs.Close() }
		}
		zl.Warn("redis prefs unavailable, using file", zap.Error(err))
	}
	path, err := prefs.DefaultPath()
	if err != nil {
		zl.Warn("no prefs location, expand state is not kept", zap.Error(err))
		return nil, func() {}
	}
	return prefs.NewFileStore(path), func() {}
}
