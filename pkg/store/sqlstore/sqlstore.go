// Package sqlstore keeps payloads in a single SQL table. SQLite (pure Go,
// modernc.org/sqlite) and PostgreSQL (pgx) are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/chazu/instancegraph/pkg/store"
)

type dialect struct {
	driver  store.Driver
	sqlName string
	blob    string
}

func (d dialect) ph(i int) string {
	if d.driver == store.DriverPostgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

var (
	sqlite   = dialect{driver: store.DriverSQLite, sqlName: "sqlite", blob: "BLOB"}
	postgres = dialect{driver: store.DriverPostgres, sqlName: "pgx", blob: "BYTEA"}
)

// Store implements store.Store on database/sql.
type Store struct {
	db *sql.DB
	d  dialect
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "instancegraph.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("sqlstore: create dirs: %w", err)
		}
	}
	db, err := sql.Open(sqlite.sqlName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
	}
	// One connection: an in-memory database is per connection and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)
	return open(ctx, db, sqlite)
}

// OpenPostgres connects to dsn through pgx.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("sqlstore: postgres dsn required")
	}
	db, err := sql.Open(postgres.sqlName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping postgres: %w", err)
	}
	return open(ctx, db, postgres)
}

func open(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS payloads (
		key TEXT PRIMARY KEY,
		content_type TEXT NOT NULL,
		data %s NOT NULL,
		updated_at BIGINT NOT NULL
	)`, d.blob)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: create payloads table: %w", err)
	}
	return &Store{db: db, d: d}, nil
}

func (s *Store) Driver() store.Driver { return s.d.driver }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (store.Info, error) {
	if err := store.ValidateKey(key); err != nil {
		return store.Info{}, err
	}
	if data == nil {
		data = []byte{}
	}
	now := time.Now().UTC()
	q := fmt.Sprintf(`INSERT INTO payloads (key, content_type, data, updated_at) VALUES (%s, %s, %s, %s)
		ON CONFLICT (key) DO UPDATE SET content_type = excluded.content_type, data = excluded.data, updated_at = excluded.updated_at`,
		s.d.ph(1), s.d.ph(2), s.d.ph(3), s.d.ph(4))
	if _, err := s.db.ExecContext(ctx, q, key, contentType, data, now.UnixNano()); err != nil {
		return store.Info{}, fmt.Errorf("sqlstore: put %s: %w", key, err)
	}
	return store.Info{Key: key, Size: int64(len(data)), ContentType: contentType, UpdatedAt: now}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, store.Info, error) {
	q := fmt.Sprintf(`SELECT content_type, data, updated_at FROM payloads WHERE key = %s`, s.d.ph(1))
	var (
		info    = store.Info{Key: key}
		data    []byte
		updated int64
	)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&info.ContentType, &data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.Info{}, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	if err != nil {
		return nil, store.Info{}, fmt.Errorf("sqlstore: get %s: %w", key, err)
	}
	info.Size = int64(len(data))
	info.UpdatedAt = time.Unix(0, updated).UTC()
	return data, info, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM payloads WHERE key = %s`, s.d.ph(1))
	res, err := s.db.ExecContext(ctx, q, key)
	if err != nil {
		return fmt.Errorf("sqlstore: delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: delete %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]store.Info, error) {
	q := fmt.Sprintf(`SELECT key, content_type, length(data), updated_at FROM payloads
		WHERE substr(key, 1, %s) = %s ORDER BY key`, s.d.ph(1), s.d.ph(2))
	rows, err := s.db.QueryContext(ctx, q, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Info
	for rows.Next() {
		var (
			info    store.Info
			updated int64
		)
		if err := rows.Scan(&info.Key, &info.ContentType, &info.Size, &updated); err != nil {
			return nil, fmt.Errorf("sqlstore: scan: %w", err)
		}
		info.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}
