package migrations

import (
	"context"
	"embed"
	"sort"
	"strings"

	ierr "github.com/linearclockworks/shopify-serial--webhook/internal/errors"
	"github.com/linearclockworks/shopify-serial--webhook/internal/logger"
	"github.com/linearclockworks/shopify-serial--webhook/internal/postgres"
)

//go:embed *.sql
var migrationFiles embed.FS

const advisoryLockID int64 = 720415503

const ensureTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Names returns the embedded migration files in apply order
func Names() ([]string, error) {
	entries, err := migrationFiles.ReadDir(".")
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to read embedded migrations").Mark(ierr.ErrSystem)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Pending returns the migrations not yet recorded in schema_migrations
func Pending(ctx context.Context, db *postgres.DB) ([]string, error) {
	names, err := Names()
	if err != nil {
		return nil, err
	}

	q := db.GetQuerier(ctx)
	if _, err := q.ExecContext(ctx, ensureTableSQL); err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to ensure schema_migrations").Mark(ierr.ErrDatabase)
	}

	var applied []string
	if err := q.SelectContext(ctx, &applied, `SELECT name FROM schema_migrations`); err != nil {
		return nil, ierr.WithError(err).WithHint("Failed to list applied migrations").Mark(ierr.ErrDatabase)
	}
	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	pending := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := done[name]; !ok {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

// Apply runs embedded SQL migrations in filename order. Each migration runs in its own
// transaction holding a transaction-scoped advisory lock, so concurrent starts are safe.
func Apply(ctx context.Context, db *postgres.DB, log *logger.Logger) error {
	names, err := Names()
	if err != nil {
		return err
	}

	if _, err := db.GetQuerier(ctx).ExecContext(ctx, ensureTableSQL); err != nil {
		return ierr.WithError(err).WithHint("Failed to ensure schema_migrations").Mark(ierr.ErrDatabase)
	}

	for _, name := range names {
		err := db.WithTx(ctx, func(ctx context.Context) error {
			q := db.GetQuerier(ctx)
			if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockID); err != nil {
				return ierr.WithError(err).WithHint("Failed to acquire migration lock").Mark(ierr.ErrDatabase)
			}

			var applied bool
			if err := q.GetContext(ctx, &applied, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name); err != nil {
				return ierr.WithError(err).WithHintf("Failed to check migration %s", name).Mark(ierr.ErrDatabase)
			}
			if applied {
				return nil
			}

			sqlBytes, err := migrationFiles.ReadFile(name)
			if err != nil {
				return ierr.WithError(err).WithHintf("Failed to read migration %s", name).Mark(ierr.ErrSystem)
			}
			if stmt := strings.TrimSpace(string(sqlBytes)); stmt != "" {
				if _, err := q.ExecContext(ctx, stmt); err != nil {
					return ierr.WithError(err).WithHintf("Failed to execute migration %s", name).Mark(ierr.ErrDatabase)
				}
			}
			if _, err := q.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
				return ierr.WithError(err).WithHintf("Failed to record migration %s", name).Mark(ierr.ErrDatabase)
			}

			log.Infow("applied migration", "name", name)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
