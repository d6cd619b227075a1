// Package sqlite opens the rollup relation source on a SQLite copy of the
// MGI schema subset. It backs local runs and end-to-end tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"genorollup/internal/infra/persistence/sqlstore"
)

const defaultDriver = "sqlite"

//go:embed schema.sql
var schema string

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OpenDB opens the database file at path, creating parent directories.
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite: path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "create dirs")
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, path+"?_pragma=busy_timeout(5000)")
	openMu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// One connection serializes the concurrent lookup queries.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	return db, nil
}

// Open opens path and returns a Source reading it with "?" placeholders.
func Open(ctx context.Context, path string, opts sqlstore.Options) (*sqlstore.Store, error) {
	db, err := OpenDB(ctx, path)
	if err != nil {
		return nil, err
	}
	store, err := sqlstore.New(db, sqlstore.DialectSQLite, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// ApplySchema creates the rollup tables when they do not exist.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range statements(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "apply schema: %s", firstLine(stmt))
		}
	}
	return nil
}

func statements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
