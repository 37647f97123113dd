package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cgrafmuller/triphappy-clustering/internal/cluster"
)

// initStore opens the configured store backend. The returned close function
// is safe to call once, after all store use is finished.
func initStore(ctx context.Context) (cluster.Store, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "clusters.db"
		}
		s, err := cluster.NewSQLite(dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		s, err := cluster.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
