package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"Symposium/model"
	"Symposium/repo/migrations"

	_ "modernc.org/sqlite"
)

const migrationTable = "schema_migrations"

// SQLiteStore persists registrations in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path and applies pending migrations
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error pinging sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) SaveRegistration(ctx context.Context, r model.Registration) error {
	if r.ID == "" {
		return model.ErrRegistrationIDMissing
	}
	f := r.Form
	_, err := s.db.ExecContext(ctx, `
INSERT INTO registrations (
    id, name, email, phone, college, department, year, event,
    team_name, team_size, experience, created_at,
    registrant_notified, admin_notified, delivery_error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, f.Name, f.Email, f.Phone, f.College, f.Department, f.Year, f.Event,
		f.TeamName, f.TeamSize, f.Experience, r.CreatedAt.UTC().UnixMilli(),
		r.Delivery.RegistrantNotified, r.Delivery.AdminNotified, r.Delivery.Error,
	)
	if err != nil {
		return fmt.Errorf("error saving registration: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateDelivery(ctx context.Context, id string, d model.Delivery) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE registrations
SET registrant_notified = ?, admin_notified = ?, delivery_error = ?
WHERE id = ?`, d.RegistrantNotified, d.AdminNotified, d.Error, id)
	if err != nil {
		return fmt.Errorf("error updating delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating delivery: %w", err)
	}
	if n == 0 {
		return model.ErrRegistrationNotFound
	}
	return nil
}

const selectRegistration = `
SELECT id, name, email, phone, college, department, year, event,
       team_name, team_size, experience, created_at,
       registrant_notified, admin_notified, delivery_error
FROM registrations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (model.Registration, error) {
	var (
		r       model.Registration
		created int64
	)
	err := row.Scan(
		&r.ID, &r.Form.Name, &r.Form.Email, &r.Form.Phone, &r.Form.College,
		&r.Form.Department, &r.Form.Year, &r.Form.Event, &r.Form.TeamName,
		&r.Form.TeamSize, &r.Form.Experience, &created,
		&r.Delivery.RegistrantNotified, &r.Delivery.AdminNotified, &r.Delivery.Error,
	)
	if err != nil {
		return model.Registration{}, err
	}
	r.CreatedAt = unixMilli(created)
	return r, nil
}

func (s *SQLiteStore) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	r, err := scanRegistration(s.db.QueryRowContext(ctx, selectRegistration+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading registration: %w", err)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRegistrations(ctx context.Context) ([]model.Registration, error) {
	rows, err := s.db.QueryContext(ctx, selectRegistration+` ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("error listing registrations: %w", err)
	}
	defer rows.Close()

	var out []model.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning registration: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error listing registrations: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SummarizeByEvent(ctx context.Context) ([]model.EventSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event, COUNT(*) FROM registrations GROUP BY event`)
	if err != nil {
		return nil, fmt.Errorf("error summarizing registrations: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			event string
			n     int
		)
		if err := rows.Scan(&event, &n); err != nil {
			return nil, fmt.Errorf("error scanning summary: %w", err)
		}
		counts[event] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error summarizing registrations: %w", err)
	}
	return summarize(counts), nil
}

// applyMigrations runs every embedded .sql file at most once, in name order.
func applyMigrations(db *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		var applied int
		if err := db.QueryRow(`SELECT COUNT(*) FROM `+migrationTable+` WHERE name = ?`, file).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`, file, time.Now().UTC().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}
