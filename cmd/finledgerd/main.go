package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jask/finledger/internal/api"
	"github.com/jask/finledger/internal/config"
	"github.com/jask/finledger/internal/database"
	"github.com/jask/finledger/internal/database/repository"
	"github.com/jask/finledger/internal/logger"
	"github.com/jask/finledger/internal/service"
	"github.com/jask/finledger/internal/testdata"
)

func main() {
	migrateCmd := flag.Bool("migrate", false, "Run database migrations and seed default categories, then exit")
	seedDemoCmd := flag.Bool("seed-demo", false, "Seed a demo ledger for api.user_id, then exit")
	resetCmd := flag.Bool("reset", false, "Delete all ledger data, keeping the schema, then exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		zl.Fatal("mkdir db dir", zap.Error(err))
	}
	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.Migrations); err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		zl.Fatal("open db", zap.Error(err))
	}
	defer db.Close()
	if err := database.SeedDefaults(ctx, db); err != nil {
		zl.Fatal("seed defaults", zap.Error(err))
	}

	base := repository.NewStore(db, cfg.API.UserID)
	switch {
	case *migrateCmd:
		zl.Info("migration completed", zap.String("path", cfg.Database.Path))
		return
	case *resetCmd:
		m := &service.MaintenanceService{DB: db}
		if err := m.Reset(ctx); err != nil {
			zl.Fatal("reset", zap.Error(err))
		}
		zl.Info("ledger reset")
		return
	case *seedDemoCmd:
		res, err := testdata.Seed(ctx, base, time.Now().UTC(), time.Now().UnixNano())
		if err != nil {
			zl.Fatal("seed demo", zap.Error(err))
		}
		zl.Info("demo ledger seeded",
			zap.Int("groups", res.Groups),
			zap.Int("accounts", res.Accounts),
			zap.Int("transactions", res.Transactions))
		return
	}

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(func(userID int64) api.Store {
		return base.For(userID)
	}, zl)

	srv := &http.Server{Addr: cfg.API.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		zl.Info("server starting", zap.String("addr", cfg.API.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		zl.Warn("shutdown", zap.Error(err))
	}
	zl.Info("server stopped")
}
