// Package database opens the PostgreSQL pool behind the state mirror and the
// prompt overrides and ties it to the command lifecycle.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/plugpep/pkg/lifecycle"
)

const pingInterval = 250 * time.Millisecond

// System is an open connection pool managed by the lifecycle coordinator.
type System interface {
	// Connection returns the pool.
	Connection() *sql.DB
	// Start registers the readiness probe and the close hook.
	Start(lc *lifecycle.Coordinator) error
}

type postgres struct {
	conn    *sql.DB
	host    string
	timeout time.Duration
	logger  *slog.Logger
}

// New opens the pool described by cfg. sql.Open only validates the DSN;
// the first connection is made by the readiness probe registered in Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	conn, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &postgres{
		conn:    conn,
		host:    cfg.Host,
		timeout: cfg.ConnTimeoutDuration(),
		logger:  logger.With("system", "database"),
	}, nil
}

func (p *postgres) Connection() *sql.DB {
	return p.conn
}

func (p *postgres) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		if err := p.awaitReady(lc.Context()); err != nil {
			p.logger.Error("database not reachable", "host", p.host, "error", err)
			lc.Fail(fmt.Errorf("%w: %w", ErrNotReady, err))
			return
		}
		p.logger.Debug("database ready", "host", p.host)
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := p.conn.Close(); err != nil {
			p.logger.Error("database close failed", "error", err)
			return
		}
		p.logger.Debug("database closed")
	})

	return nil
}

// awaitReady pings until the server answers or the connect timeout elapses.
// A database container that is still booting refuses the first attempts.
func (p *postgres) awaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		err := p.conn.PingContext(ctx)
		if err == nil {
			return nil
		}
		p.logger.Debug("database ping failed", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("after %d attempts: %w", attempt, err)
		case <-ticker.C:
		}
	}
}
