package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"sublet-scraper/models"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore keeps the seen set in a single database file. The table layout
// matches databases created by earlier versions of the tool.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

func NewSQLiteStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storeErr("open", fmt.Errorf("could not create data dir: %w", err))
	}

	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, storeErr("open", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, storeErr("open", fmt.Errorf("failed to open %s: %w", path, err))
	}

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	const createTable = `
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT,
		timestamp TEXT
	)`

	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return storeErr("ensure schema", err)
	}

	// a table created by someone else must still have our columns
	if _, err := s.db.ExecContext(ctx, `SELECT id, url, timestamp FROM listings LIMIT 0`); err != nil {
		return storeErr("ensure schema", fmt.Errorf("unexpected listings table layout: %w", err))
	}

	_, err := s.db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS ux_listings_url ON listings(url)`)
	if err == nil {
		return nil
	}
	if !isConstraint(err) {
		return storeErr("ensure schema", err)
	}

	// Old databases may already hold repeated urls. Keep them, index without
	// uniqueness, and rely on Record's transaction for new rows.
	s.logger.Warn("Existing database has repeated urls, using a non-unique index", zap.String("path", s.path))
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_listings_url ON listings(url)`); err != nil {
		return storeErr("ensure schema", err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM listings WHERE url = ?)`, url).Scan(&exists)
	if err != nil {
		return false, storeErr("exists", err)
	}
	return exists, nil
}

func (s *SQLiteStore) Record(ctx context.Context, url string, firstSeen time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("record", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM listings WHERE url = ?)`, url).Scan(&exists); err != nil {
		return storeErr("record", err)
	}
	if exists {
		return ErrDuplicateKey
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO listings (url, timestamp) VALUES (?, ?)`, url, formatTimestamp(firstSeen))
	if err != nil {
		if isConstraint(err) {
			return ErrDuplicateKey
		}
		return storeErr("record", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("record", err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]models.SeenEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, timestamp FROM listings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, storeErr("recent", err)
	}
	return scanEntries(rows, "recent")
}

func (s *SQLiteStore) All(ctx context.Context) ([]models.SeenEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, timestamp FROM listings ORDER BY id`)
	if err != nil {
		return nil, storeErr("all", err)
	}
	return scanEntries(rows, "all")
}

func scanEntries(rows *sql.Rows, op string) ([]models.SeenEntry, error) {
	defer rows.Close()

	var entries []models.SeenEntry
	for rows.Next() {
		var (
			id      int64
			url, ts sql.NullString
		)
		if err := rows.Scan(&id, &url, &ts); err != nil {
			return nil, storeErr(op, err)
		}
		entries = append(entries, models.SeenEntry{
			ID:        id,
			URL:       url.String,
			FirstSeen: parseTimestamp(ts.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return entries, nil
}

// sqliteDSN builds a URI filename so '?' and '#' in the path are not taken as
// connection options.
func sqliteDSN(path string) string {
	return "file:" + (&url.URL{Path: filepath.ToSlash(path)}).EscapedPath() + "?_busy_timeout=5000"
}

func isConstraint(err error) bool {
	var sqErr sqlite3.Error
	return errors.As(err, &sqErr) && sqErr.Code == sqlite3.ErrConstraint
}
