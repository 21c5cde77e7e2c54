package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// PoolConfig sizes the connection pool. PingTimeout bounds the startup
// reachability check and SlowQuery sets the threshold for slow query logs;
// zero values leave the driver defaults and disable slow query logging.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	SlowQuery       time.Duration
}

// Open connects to Postgres through the pgx stdlib driver and wraps the pool
// in a bun DB. The database must answer a ping before Open returns.
func Open(ctx context.Context, databaseURL string, pool PoolConfig, log *slog.Logger) (*bun.DB, error) {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}

	pingCtx := ctx
	if pool.PingTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, pool.PingTimeout)
		defer cancel()
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := bun.NewDB(sqlDB, pgdialect.New())
	if log != nil {
		db.AddQueryHook(newQueryLogHook(log, pool.SlowQuery))
	}
	return db, nil
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// queryLogHook reports failed and slow statements. Query text is left out so
// patient data never reaches the logs.
type queryLogHook struct {
	log  *slog.Logger
	slow time.Duration
}

func newQueryLogHook(log *slog.Logger, slow time.Duration) queryLogHook {
	return queryLogHook{log: log.With(slog.String("component", "store.postgres")), slow: slow}
}

func (h queryLogHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogHook) AfterQuery(ctx context.Context, e *bun.QueryEvent) {
	elapsed := time.Since(e.StartTime)
	switch {
	case e.Err != nil && !errors.Is(e.Err, sql.ErrNoRows):
		h.log.LogAttrs(ctx, slog.LevelWarn, "query failed",
			slog.String("operation", e.Operation()),
			slog.Duration("elapsed", elapsed),
			slog.Any("err", mapError(e.Err)),
		)
	case h.slow > 0 && elapsed >= h.slow:
		h.log.LogAttrs(ctx, slog.LevelWarn, "slow query",
			slog.String("operation", e.Operation()),
			slog.Duration("elapsed", elapsed),
		)
	}
}
