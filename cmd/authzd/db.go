package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/goliatone/go-authz"
	"github.com/goliatone/go-persistence-bun"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

//go:embed data/fixtures/*.yml
var fixturesFS embed.FS

// demo accounts loaded from data/fixtures
var (
	seedAdminID  = uuid.MustParse("7d3c1f6e-8c1a-4a52-9d8e-3a0f5b2c9e01")
	seedProID    = uuid.MustParse("0b9e2a47-51d3-4e78-a6c4-8f1d2e3b4c02")
	seedFreeID   = uuid.MustParse("5f6a7b8c-9d0e-4f1a-8b2c-3d4e5f6a7b03")
	seedLapsedID = uuid.MustParse("c1d2e3f4-a5b6-4c7d-8e9f-0a1b2c3d4e04")
)

var seedUsers = []uuid.UUID{seedAdminID, seedProID, seedFreeID, seedLapsedID}

var registerModels sync.Once

type dbSetup struct {
	migrate bool
	seed    bool
}

func openSQL(driver, dsn string) (*sql.DB, schema.Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3", "":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, nil, err
		}
		sqldb.SetMaxOpenConns(1)
		return sqldb, sqlitedialect.New(), nil
	case "postgres", "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, nil, err
		}
		return sqldb, pgdialect.New(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// openDB builds the persistence client over cfg and returns its bun handle.
// With migrate the schema is created; with seed the demo fixtures are
// reloaded into truncated tables.
func openDB(ctx context.Context, cfg databaseConfig, setup dbSetup, logger authz.Logger) (*bun.DB, error) {
	sqldb, dialect, err := openSQL(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	registerModels.Do(func() {
		persistence.RegisterModel((*authz.User)(nil))
		persistence.RegisterModel((*authz.SubscriptionRecord)(nil))
		persistence.RegisterModel((*authz.EntitlementRecord)(nil))
		persistence.RegisterModel((*authz.UsageCounter)(nil))
	})

	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		sqldb.Close()
		return nil, err
	}
	db := client.DB()

	if setup.migrate || setup.seed {
		if err := authz.CreateSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("schema ready driver=%s", cfg.Driver)
	}

	if setup.seed {
		client.RegisterFixtures(fixturesFS).AddOptions(persistence.WithTrucateTables())
		if err := client.Seed(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("seed fixtures: %w", err)
		}
		logger.Info("seeded %d demo accounts", len(seedUsers))
	}

	return db, nil
}
