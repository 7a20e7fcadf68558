package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"maml/internal/config"
	"maml/internal/logging"
)

// dialect captures the SQL differences between SQLite and Postgres.
type dialect struct {
	name        string
	schema      []string
	placeholder func(n int) string
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			doc_key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, doc_key)
		)`,
		`CREATE TABLE IF NOT EXISTS list_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			doc_key TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_list_items_key ON list_items(collection, doc_key, id)`,
	},
	placeholder: func(int) string { return "?" },
}

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			doc_key TEXT NOT NULL,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, doc_key)
		)`,
		`CREATE TABLE IF NOT EXISTS list_items (
			id BIGSERIAL PRIMARY KEY,
			collection TEXT NOT NULL,
			doc_key TEXT NOT NULL,
			value JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_list_items_key ON list_items(collection, doc_key, id)`,
	},
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
}

// bind rewrites ? placeholders for the dialect.
func (d dialect) bind(query string) string {
	if d.name == "sqlite" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString(d.placeholder(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// SQLStore implements DocumentStore on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore opens (creating if needed) a SQLite database at path.
func NewSQLiteStore(path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and writes serialized.
	db.SetMaxOpenConns(1)
	return newSQLStore(context.Background(), db, sqliteDialect)
}

// NewPostgresStore connects through the pgx stdlib driver.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig, connMaxLifetime time.Duration) (*SQLStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("store: postgres DSN is required")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return newSQLStore(ctx, db, postgresDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize %s schema: %w", d.name, err)
		}
	}
	logging.Store("Opened %s document store", d.name)
	return s, nil
}

func (s *SQLStore) q(query string) string { return s.dialect.bind(query) }

// Get implements DocumentStore.
func (s *SQLStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT value FROM documents WHERE collection = ? AND doc_key = ?`),
		collection, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	return []byte(value), nil
}

// Put implements DocumentStore.
func (s *SQLStore) Put(ctx context.Context, collection, key string, doc []byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	if err := checkJSON(doc); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO documents (collection, doc_key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, doc_key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`),
		collection, key, string(doc))
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, key, err)
	}
	logging.StoreDebug("%s: put %s/%s", s.dialect.name, collection, key)
	return nil
}

// Delete implements DocumentStore.
func (s *SQLStore) Delete(ctx context.Context, collection, key string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM documents WHERE collection = ? AND doc_key = ?`), collection, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// Keys implements DocumentStore.
func (s *SQLStore) Keys(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT doc_key FROM documents WHERE collection = ? ORDER BY doc_key`), collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Append implements DocumentStore.
func (s *SQLStore) Append(ctx context.Context, collection, key string, item []byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	if err := checkJSON(item); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO list_items (collection, doc_key, value) VALUES (?, ?, ?)`),
		collection, key, string(item))
	if err != nil {
		return fmt.Errorf("failed to append %s/%s: %w", collection, key, err)
	}
	logging.StoreDebug("%s: append %s/%s", s.dialect.name, collection, key)
	return nil
}

// List implements DocumentStore.
func (s *SQLStore) List(ctx context.Context, collection, key string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT value FROM list_items WHERE collection = ? AND doc_key = ? ORDER BY id`), collection, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", collection, key, err)
	}
	defer rows.Close()

	items := [][]byte{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		items = append(items, []byte(v))
	}
	return items, rows.Err()
}

// SetList implements DocumentStore.
func (s *SQLStore) SetList(ctx context.Context, collection, key string, items [][]byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	for _, it := range items {
		if err := checkJSON(it); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM list_items WHERE collection = ? AND doc_key = ?`), collection, key); err != nil {
		return fmt.Errorf("failed to clear %s/%s: %w", collection, key, err)
	}
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO list_items (collection, doc_key, value) VALUES (?, ?, ?)`),
			collection, key, string(it)); err != nil {
			return fmt.Errorf("failed to insert into %s/%s: %w", collection, key, err)
		}
	}
	return tx.Commit()
}

// Close implements DocumentStore.
func (s *SQLStore) Close() error { return s.db.Close() }
