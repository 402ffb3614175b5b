package cli

import (
	"context"
	"database/sql"
	"io"
	"log"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/badge"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/config"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/db"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/metrics"
	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/service"
	sqlitestore "github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/store/sqlite"
)

// app is the persistence graph shared by every command.
type app struct {
	cfg     config.Config
	logger  *log.Logger
	clock   service.Clock
	metrics *metrics.Metrics

	conn   *sql.DB
	writer *db.Worker
	store  *sqlitestore.Store

	events *service.EventStore
	toggle *service.ToggleResolver
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, "portunus-monitor ", log.LstdFlags|log.LUTC)
}

func openApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, err
	}

	writer := db.NewWorker(conn)
	st := sqlitestore.New(conn, writer)
	clock := service.SystemClock()
	m := metrics.New()

	return &app{
		cfg:     cfg,
		logger:  logger,
		clock:   clock,
		metrics: m,
		conn:    conn,
		writer:  writer,
		store:   st,
		events: service.NewEventStore(service.EventStoreDeps{
			Identities: st,
			Events:     st,
			Badges:     badge.NewQRGenerator(cfg.BadgeDir),
			Clock:      clock,
			Logger:     logger,
			Metrics:    m,
		}),
		toggle: service.NewToggleResolver(st),
	}, nil
}

// Close drains queued writes before closing the database.
func (a *app) Close() {
	a.writer.Close()
	if err := a.conn.Close(); err != nil {
		a.logger.Printf("db close: %v", err)
	}
}
