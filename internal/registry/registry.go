// Package registry keeps an audit log of issued passes in PostgreSQL.
//
// The registry is an observer, not a participant: a pass that fails to
// record is still a valid, fully signed pass, so write failures are logged
// and swallowed by the caller.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"walletpass/internal/common/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS issued_passes (
	id            BIGSERIAL PRIMARY KEY,
	serial_number TEXT        NOT NULL,
	manifest_sha1 TEXT        NOT NULL,
	archive_bytes BIGINT      NOT NULL,
	issued_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS issued_passes_serial_idx ON issued_passes (serial_number);
`

// IssuanceRecord describes one generated pass.
type IssuanceRecord struct {
	SerialNumber string
	ManifestSHA1 string
	ArchiveBytes int
	IssuedAt     time.Time
}

// Store wraps the SQL database connection.
type Store struct {
	db *sql.DB
}

// New opens a PostgreSQL connection pool for the issuance registry.
func New(cfg config.RegistryConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping tests the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the issuance table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

// RecordIssuance appends one issued pass to the audit log.
func (s *Store) RecordIssuance(ctx context.Context, rec IssuanceRecord) error {
	issuedAt := rec.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}

	const query = `INSERT INTO issued_passes (serial_number, manifest_sha1, archive_bytes, issued_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, rec.SerialNumber, rec.ManifestSHA1, rec.ArchiveBytes, issuedAt); err != nil {
		return fmt.Errorf("record issuance for %s: %w", rec.SerialNumber, err)
	}
	return nil
}

// CountForSerial reports how many passes have been issued for a serial.
func (s *Store) CountForSerial(ctx context.Context, serial string) (int, error) {
	const query = `SELECT COUNT(*) FROM issued_passes WHERE serial_number = $1`
	var count int
	if err := s.db.QueryRowContext(ctx, query, serial).Scan(&count); err != nil {
		return 0, fmt.Errorf("count issuances for %s: %w", serial, err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
