package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/soaringjerry/psymetrics/internal/api"
	"github.com/soaringjerry/psymetrics/internal/config"
	dbstore "github.com/soaringjerry/psymetrics/internal/db"
)

// openStore builds the configured report store. The returned close func is
// never nil.
func openStore(cfg config.StorageConfig, logger *zap.Logger) (api.Store, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := dbstore.Open(cfg.SQLitePath, cfg.MigrationsDir, logger.Named("sqlite"))
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		logger.Info("using sqlite report store", zap.String("path", cfg.SQLitePath))
		return store, store.Close, nil
	case "memory", "":
		logger.Info("using in-memory report store")
		return api.NewMemoryStore(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
