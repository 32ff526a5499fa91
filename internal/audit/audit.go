// Package audit is a SQLite-backed connection lifecycle event log.
// Every accepted and closed connection, tagged with its correlation
// ID, is recorded for later inspection with Recent. The admin API
// does not expose these records.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/duskrelay/duskrelay/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Event is one connection lifecycle record.
type Event struct {
	ID            int64
	CorrelationID string
	Protocol      string
	RemoteAddr    string
	Target        string
	Kind          string
	Detail        string
	OccurredAt    time.Time
}

// Log wraps a SQLite database holding connection events.
type Log struct {
	conn *sql.DB
	log  *slog.Logger
}

// Open opens or creates a SQLite database at path and runs pending
// migrations.
func Open(path string) (*Log, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	l := &Log{conn: conn, log: logging.For("audit")}
	if err := l.runMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("audit: run migrations: %w", err)
	}
	return l, nil
}

func (l *Log) runMigrations() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	dbDriver, err := sqlite.WithInstance(l.conn, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.conn.Close()
}

// Record inserts ev, stamping OccurredAt with the current time. Write
// failures are logged, not returned, so a struggling audit log never
// takes down a proxied connection.
func (l *Log) Record(ctx context.Context, ev Event) {
	_, err := l.conn.ExecContext(ctx,
		`INSERT INTO connection_events (correlation_id, protocol, remote_addr, target, kind, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.CorrelationID, ev.Protocol, ev.RemoteAddr, ev.Target, ev.Kind, ev.Detail, time.Now().UTC(),
	)
	if err != nil {
		l.log.Warn("failed to record connection event", "err", err, "kind", ev.Kind)
	}
}

// Recent returns the most recent limit events, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := l.conn.QueryContext(ctx,
		`SELECT id, correlation_id, protocol, remote_addr, target, kind, detail, occurred_at
		 FROM connection_events ORDER BY occurred_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.CorrelationID, &ev.Protocol, &ev.RemoteAddr, &ev.Target, &ev.Kind, &ev.Detail, &ev.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
