package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/staffloop/intel-cli/internal/runlog"
	"github.com/staffloop/intel-cli/internal/store"
	"github.com/staffloop/intel-cli/pkg/graphmail"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "intel.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initRunLog shares the store's connection; the run log never opens its
// own.
func initRunLog(st store.Store) (runlog.Log, error) {
	switch s := st.(type) {
	case *store.PostgresStore:
		return runlog.NewPostgres(s.DB()), nil
	case interface{ DB() *sql.DB }:
		return runlog.NewSQLite(s.DB()), nil
	default:
		return nil, eris.Errorf("unsupported store type %T for run log", st)
	}
}

func initProvider() *graphmail.Client {
	tokenURL := cfg.Provider.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.Provider.TenantID)
	}
	return graphmail.New(graphmail.Options{
		BaseURL:      cfg.Provider.BaseURL,
		TokenURL:     tokenURL,
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		Scope:        cfg.Provider.Scope,
		RatePerSec:   cfg.Provider.RatePerSec,
		Timeout:      time.Duration(cfg.Provider.TimeoutSecs) * time.Second,
	})
}
