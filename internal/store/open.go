// Package store selects the relation source a rollup run reads from.
package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"genorollup/internal/config"
	"genorollup/internal/infra/persistence/memory"
	"genorollup/internal/infra/persistence/postgres"
	"genorollup/internal/infra/persistence/sqlite"
	"genorollup/internal/infra/persistence/sqlstore"
	"genorollup/internal/logger"
	"genorollup/internal/rollup"
	"genorollup/pkg/domain"
)

// Source is a rollup relation source that holds a connection.
type Source interface {
	rollup.Source
	Close() error
}

// Open opens the source named by cfg.Storage.Driver.
//
//	postgres: the production MGI database at storage.postgres_dsn
//	sqlite:   a local schema copy at storage.sqlite_path
//	memory:   a JSON snapshot at storage.snapshot_path
func Open(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (Source, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	sentinel := domain.Key(cfg.Rollup.SentinelTermKey)
	opts := sqlstore.Options{
		AnnotationType: cfg.Selector().AnnotationType,
		SentinelTerm:   sentinel,
		Vocabulary:     cfg.Vocabulary,
		ChunkSize:      cfg.Rollup.QueryChunkSize,
		Logger:         log.Named("sqlstore"),
	}

	var (
		src Source
		err error
	)
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		src, err = postgres.Open(ctx, cfg.Storage.PostgresDSN, opts)
	case config.DriverSQLite:
		src, err = sqlite.Open(ctx, cfg.Storage.SQLitePath, opts)
	case config.DriverMemory:
		src, err = memory.Open(cfg.Storage.SnapshotPath, sentinel)
	default:
		return nil, errors.Newf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s source", cfg.Storage.Driver)
	}
	log.Infow("source opened", logger.FieldDriver, cfg.Storage.Driver, "annotation_type", cfg.Rollup.AnnotationType)
	return src, nil
}
