package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cardspend/internal/core"
	"cardspend/internal/subscriptions"

	_ "modernc.org/sqlite"
)

// CatalogRepository keeps the subscription catalog in SQLite. Entry order is
// preserved through the position column because matching precedence depends
// on it.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(dbPath string) (*CatalogRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &CatalogRepository{db: db}, nil
}

func (r *CatalogRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database is reachable.
func (r *CatalogRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load implements subscriptions.Source.
func (r *CatalogRepository) Load(ctx context.Context) (subscriptions.Catalog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, expected_amount, cycle, tolerance, category, note
		FROM subscriptions
		ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var (
		cat subscriptions.Catalog
		ids []int64
	)
	for rows.Next() {
		var (
			id                  int64
			e                   subscriptions.Entry
			expected, tolerance string
			cycle               string
		)
		if err := rows.Scan(&id, &e.Name, &expected, &cycle, &tolerance, &e.Category, &e.Note); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		if e.ExpectedAmount, err = core.ParseAmount(expected); err != nil {
			return nil, fmt.Errorf("subscription %s: %w", e.Name, err)
		}
		if e.Tolerance, err = core.ParseAmount(tolerance); err != nil {
			return nil, fmt.Errorf("subscription %s: %w", e.Name, err)
		}
		if e.Cycle, err = subscriptions.ParseCycle(cycle); err != nil {
			return nil, fmt.Errorf("subscription %s: %w", e.Name, err)
		}
		cat = append(cat, e)
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}

	patterns, err := r.loadPatterns(ctx)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		cat[i].Patterns = patterns[id]
	}

	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("stored catalog: %w", err)
	}

	slog.DebugContext(ctx, "Catalog loaded from SQLite", "entries", len(cat))
	return cat, nil
}

func (r *CatalogRepository) loadPatterns(ctx context.Context) (map[int64][]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT subscription_id, pattern
		FROM subscription_patterns
		ORDER BY subscription_id, position`)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]string)
	for rows.Next() {
		var (
			id      int64
			pattern string
		)
		if err := rows.Scan(&id, &pattern); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out[id] = append(out[id], pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patterns: %w", err)
	}
	return out, nil
}

// Replace validates cat and swaps it in for the stored catalog in one
// transaction.
func (r *CatalogRepository) Replace(ctx context.Context, cat subscriptions.Catalog) error {
	if err := cat.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscription_patterns`); err != nil {
		return fmt.Errorf("clear patterns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions`); err != nil {
		return fmt.Errorf("clear subscriptions: %w", err)
	}

	for pos, e := range cat {
		if err := insertEntry(ctx, tx, pos, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog: %w", err)
	}

	slog.InfoContext(ctx, "Catalog replaced in SQLite", "entries", len(cat))
	return nil
}

// Add appends one entry after the existing ones.
func (r *CatalogRepository) Add(ctx context.Context, e subscriptions.Entry) error {
	existing, err := r.Load(ctx)
	if err != nil {
		return err
	}
	if err := append(existing, e).Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM subscriptions`).Scan(&next); err != nil {
		return fmt.Errorf("next position: %w", err)
	}
	if err := insertEntry(ctx, tx, next, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entry: %w", err)
	}

	slog.InfoContext(ctx, "Subscription added", "name", e.Name, "position", next)
	return nil
}

// Delete removes an entry by name, case-insensitively. It reports whether a
// row was removed.
func (r *CatalogRepository) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM subscription_patterns
		WHERE subscription_id IN (SELECT id FROM subscriptions WHERE name = ?)`, name); err != nil {
		return false, fmt.Errorf("delete patterns of %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete subscription %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return n > 0, nil
}

func insertEntry(ctx context.Context, tx *sql.Tx, pos int, e subscriptions.Entry) error {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO subscriptions (position, name, expected_amount, cycle, tolerance, category, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pos, e.Name, e.ExpectedAmount.Decimal().String(), string(e.Cycle),
		e.Tolerance.Decimal().String(), e.Category, e.Note)
	if err != nil {
		return fmt.Errorf("insert subscription %s: %w", e.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("subscription id: %w", err)
	}
	for i, p := range e.Patterns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subscription_patterns (subscription_id, position, pattern)
			VALUES (?, ?, ?)`, id, i, p); err != nil {
			return fmt.Errorf("insert pattern for %s: %w", e.Name, err)
		}
	}
	return nil
}
