package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"genorollup/pkg/domain"
)

// Dialect selects the bind placeholder style.
type Dialect int

const (
	// DialectSQLite binds with "?".
	DialectSQLite Dialect = iota
	// DialectPostgres binds with "$n".
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites "?" placeholders for the dialect. Queries never contain a
// literal question mark.
func rebind(d Dialect, query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// inList returns a "?, ?, ..." list of n placeholders.
func inList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// chunks splits keys into runs of at most size.
func chunks(keys []domain.Key, size int) [][]domain.Key {
	if size <= 0 {
		size = len(keys)
	}
	var out [][]domain.Key
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}

type scanFunc func(rows *sql.Rows) error

// query runs one statement and hands each row to scan.
func (s *Store) query(ctx context.Context, name, stmt string, args []any, scan scanFunc) error {
	rows, err := s.db.QueryContext(ctx, rebind(s.dialect, stmt), args...)
	if err != nil {
		return errors.Wrapf(err, "query %s", name)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return errors.Wrapf(err, "scan %s", name)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrapf(err, "iterate %s", name)
	}
	return nil
}

// queryIn runs stmt once per chunk of keys. stmt carries a single %s verb
// where the IN list goes; leading args bind before the list.
func (s *Store) queryIn(ctx context.Context, name, stmt string, leading []any, keys []domain.Key, scan scanFunc) error {
	for _, chunk := range chunks(keys, s.chunkSize) {
		args := make([]any, 0, len(leading)+len(chunk))
		args = append(args, leading...)
		for _, k := range chunk {
			args = append(args, int64(k))
		}
		q := strings.Replace(stmt, "%s", inList(len(chunk)), 1)
		if err := s.query(ctx, name, q, args, scan); err != nil {
			return err
		}
	}
	return nil
}

// keySet collects distinct non-null keys.
type keySet map[domain.Key]struct{}

func (k keySet) add(key domain.Key) {
	if !key.IsNull() {
		k[key] = struct{}{}
	}
}

func (k keySet) sorted() []domain.Key {
	out := make([]domain.Key, 0, len(k))
	for key := range k {
		out = append(out, key)
	}
	return domain.SortKeys(out)
}

func nullKey(v sql.NullInt64) domain.Key {
	if !v.Valid {
		return 0
	}
	return domain.Key(v.Int64)
}
