package render

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"wawbook/config"
)

// OpenStore builds the configured job store backend.
func OpenStore(ctx context.Context, cfg *config.QueueConfig, log *zap.Logger) (JobStore, error) {
	switch cfg.Backend {
	case config.QueueBackendSqlite:
		log.Debug("Opening job queue", zap.Stringer("backend", cfg.Backend), zap.String("path", cfg.Path))
		return NewSqliteStore(cfg.Path)
	case config.QueueBackendPostgres:
		log.Debug("Opening job queue", zap.Stringer("backend", cfg.Backend), zap.String("host", cfg.Postgres.Host))
		return NewPostgresStore(ctx, &cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported job queue backend %s", cfg.Backend)
	}
}
