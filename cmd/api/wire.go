package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"

	"github.com/bryanwahyu/palmview/internal/config"
	"github.com/bryanwahyu/palmview/internal/domain/history"
	"github.com/bryanwahyu/palmview/internal/domain/property"
	"github.com/bryanwahyu/palmview/internal/domain/session"
	"github.com/bryanwahyu/palmview/internal/infra/ai/gemini"
	"github.com/bryanwahyu/palmview/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/palmview/internal/infra/db/mysql"
	"github.com/bryanwahyu/palmview/internal/infra/db/postgres"
	"github.com/bryanwahyu/palmview/internal/infra/db/sqlite"
	"github.com/bryanwahyu/palmview/internal/infra/statestore"
	minioStore "github.com/bryanwahyu/palmview/internal/infra/storage"
	"github.com/bryanwahyu/palmview/internal/middleware"
)

// deps holds everything built from config; Close releases it in reverse.
type deps struct {
	Extractor property.Extractor
	States    session.Store
	History   history.Repository
	Archive   property.Archive
	Checkers  map[string]middleware.HealthChecker

	closers []func() error
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			log.Printf("close error: %v", err)
		}
	}
}

func wire(ctx context.Context, cfg *config.Config) (*deps, error) {
	d := &deps{Checkers: map[string]middleware.HealthChecker{}}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	ex, err := buildExtractor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	d.Extractor = ex

	switch cfg.Session.Driver {
	case "redis":
		rs := statestore.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Session.TTL)
		d.closers = append(d.closers, rs.Close)
		if err := rs.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis connect error: %w", err)
		}
		d.States = rs
		d.Checkers["redis"] = &middleware.RedisHealthChecker{Client: rs.Rdb}
	default:
		mem := statestore.NewMemory(cfg.Session.TTL)
		go mem.RunSweeper(ctx, cfg.Session.SweepInterval)
		d.States = mem
	}

	if cfg.History.Driver != "" {
		db, err := openHistoryDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, db.Close)
		d.Checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
		switch cfg.History.Driver {
		case "mysql":
			d.History = mysqlp.NewHistoryRepository(db)
		case "postgres":
			d.History = postgres.NewHistoryRepository(db)
		case "sqlite":
			d.History = sqlite.NewHistoryRepository(db)
		}
	}

	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("minio init error: %w", err)
		}
		d.Archive = store
		d.Checkers["minio"] = middleware.CheckFunc(store.Ping)
	}

	ok = true
	return d, nil
}

func buildExtractor(ctx context.Context, cfg *config.Config) (property.Extractor, error) {
	if cfg.AI.APIKey == "" {
		log.Printf("warning: ai.apiKey is empty provider=%s; every analysis will fail", cfg.AI.Provider)
	}
	// the client timeout is the only deadline on a provider call
	hc := &http.Client{Timeout: cfg.AI.Timeout}

	switch cfg.AI.Provider {
	case "openai":
		return openai.NewClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL, hc), nil
	default:
		c, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:     cfg.AI.APIKey,
			Model:      cfg.AI.Model,
			BaseURL:    cfg.AI.BaseURL,
			HTTPClient: hc,
		})
		if err != nil && cfg.AI.APIKey == "" {
			// keep serving; each analysis reports the failure like any provider error
			return unconfigured{err}, nil
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// unconfigured fails every analysis with the client construction error.
type unconfigured struct{ err error }

func (u unconfigured) Analyze(context.Context, string) (property.Details, error) {
	return property.Details{}, property.NewExtractionError(property.KindGeneric, u.err)
}

func openHistoryDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	switch cfg.History.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect error: %w", err)
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("mysql migrate error: %w", err)
		}
		return db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect error: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("postgres migrate error: %w", err)
		}
		return db, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite open error: %w", err)
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown history driver %q", cfg.History.Driver)
}
