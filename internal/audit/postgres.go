package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresWriter persists decision events to a PostgreSQL table.
type PostgresWriter struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresWriter runs pending migrations and returns a writer backed
// by the given database handle. The caller keeps ownership of db.
func NewPostgresWriter(db *sql.DB) (*PostgresWriter, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &PostgresWriter{db: db, timeout: 5 * time.Second}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Write inserts a single event. Only decision events are persisted;
// system events are silently skipped.
func (w *PostgresWriter) Write(event interface{}) error {
	ev, ok := event.(*DecisionEvent)
	if !ok {
		if v, isValue := event.(DecisionEvent); isValue {
			ev = &v
			ok = true
		}
	}
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	const query = `
		INSERT INTO authz_decision_log (
			id, event_type, request_id, tenant_id, user_id,
			policy, permission, effect, category, reason,
			duration_us, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := w.db.ExecContext(ctx, query,
		ev.EventID,
		ev.EventType,
		nullString(ev.RequestID),
		nullString(ev.TenantID),
		nullString(ev.UserID),
		nullString(ev.Policy),
		nullString(ev.Permission),
		ev.Effect,
		nullString(ev.Category),
		ev.Reason,
		ev.DurationUs,
		ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert decision event: %w", err)
	}

	return nil
}

// Close releases nothing; the database handle is owned by the caller.
func (w *PostgresWriter) Close() error {
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
