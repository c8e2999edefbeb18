package main

import (
	"context"
	"fmt"

	"github.com/chazu/instancegraph/pkg/config"
	"github.com/chazu/instancegraph/pkg/store"
	"github.com/chazu/instancegraph/pkg/store/httpstore"
	"github.com/chazu/instancegraph/pkg/store/s3store"
	"github.com/chazu/instancegraph/pkg/store/sqlstore"
)

// openStore builds the payload store selected by cfg. S3 credentials come
// from the default AWS chain.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case store.DriverMemory:
		return store.NewMemory(), nil
	case store.DriverSQLite:
		return sqlstore.OpenSQLite(ctx, cfg.Path)
	case store.DriverPostgres:
		return sqlstore.OpenPostgres(ctx, cfg.DSN)
	case store.DriverS3:
		return s3store.New(ctx, s3store.Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			Endpoint:  cfg.Endpoint,
			PathStyle: cfg.PathStyle,
			Prefix:    cfg.Prefix,
		})
	case store.DriverHTTP:
		return httpstore.NewClient(cfg.URL, nil)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
