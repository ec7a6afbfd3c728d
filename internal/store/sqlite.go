package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/ppiankov/adjudex/internal/model"
)

// ExpectedSchemaVersion is the schema version the store needs
const ExpectedSchemaVersion = 2

// Migration is one schema step
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS dossiers (
					claim_id TEXT NOT NULL,
					version INTEGER NOT NULL,
					dossier_id TEXT NOT NULL,
					decision TEXT NOT NULL,
					payout REAL NOT NULL,
					payload TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					PRIMARY KEY (claim_id, version)
				)
			`)
			return err
		},
	},
	{
		Version:     2,
		Description: "Index dossiers by decision and config version",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE dossiers ADD COLUMN config_version TEXT NOT NULL DEFAULT ''`,
				`CREATE INDEX IF NOT EXISTS idx_dossiers_decision ON dossiers(decision)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// SQLiteStore persists dossiers in a SQLite database
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes version assignment
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Migrate applies pending schema migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}
	return nil
}

// Save implements DecisionStore
func (s *SQLiteStore) Save(ctx context.Context, d *model.Dossier) (int, error) {
	if err := validate(d); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM dossiers WHERE claim_id = ?`, d.ClaimID).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest version: %w", err)
	}

	// The caller's dossier only learns its version once the row is committed
	stored := *d
	stored.Version = current + 1
	payload, err := json.Marshal(&stored)
	if err != nil {
		return 0, fmt.Errorf("failed to encode dossier: %w", err)
	}

	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO dossiers (claim_id, version, dossier_id, decision, payout, payload, created_at, config_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ClaimID, stored.Version, d.ID, string(d.Verdict.Decision), d.Verdict.Payout, string(payload), createdAt, d.ConfigVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to insert dossier: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit dossier: %w", err)
	}
	d.Version = stored.Version
	return d.Version, nil
}

// Get implements DecisionStore
func (s *SQLiteStore) Get(ctx context.Context, claimID string, version int) (*model.Dossier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM dossiers WHERE claim_id = ? AND version = ?`, claimID, version)
	d, err := scanDossier(row)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s v%d: %w", claimID, version, ErrNotFound)
	}
	return d, err
}

// Latest implements DecisionStore
func (s *SQLiteStore) Latest(ctx context.Context, claimID string) (*model.Dossier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM dossiers WHERE claim_id = ? ORDER BY version DESC LIMIT 1`, claimID)
	d, err := scanDossier(row)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", claimID, ErrNotFound)
	}
	return d, err
}

// List implements DecisionStore
func (s *SQLiteStore) List(ctx context.Context, claimID string) ([]model.Dossier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM dossiers WHERE claim_id = ? ORDER BY version ASC`, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dossiers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Dossier
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan dossier: %w", err)
		}
		d, err := decode([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dossiers: %w", err)
	}
	return out, nil
}

// Close implements DecisionStore
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanDossier(row *sql.Row) (*model.Dossier, error) {
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan dossier: %w", err)
	}
	return decode([]byte(payload))
}
