package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sublet-scraper/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps the seen set in a shared Postgres database.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, storeErr("open", fmt.Errorf("failed to create postgres pool: %w", err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storeErr("open", fmt.Errorf("failed to connect postgres: %w", err))
	}

	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	sql := `
	CREATE TABLE IF NOT EXISTS listings (
		id BIGSERIAL PRIMARY KEY,
		url TEXT NOT NULL,
		"timestamp" TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS ux_listings_url ON listings(url);
	`

	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return storeErr("ensure schema", err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM listings WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, storeErr("exists", err)
	}
	return exists, nil
}

func (s *PostgresStore) Record(ctx context.Context, url string, firstSeen time.Time) error {
	var inserted bool
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO listings (url, "timestamp") VALUES ($1, $2) ON CONFLICT (url) DO NOTHING`,
			url, formatTimestamp(firstSeen),
		)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateKey
		}
		return storeErr("record", err)
	}
	if !inserted {
		return ErrDuplicateKey
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]models.SeenEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, url, "timestamp" FROM listings ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, storeErr("recent", err)
	}
	return collectEntries(rows, "recent")
}

func (s *PostgresStore) All(ctx context.Context) ([]models.SeenEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, url, "timestamp" FROM listings ORDER BY id`)
	if err != nil {
		return nil, storeErr("all", err)
	}
	return collectEntries(rows, "all")
}

func collectEntries(rows pgx.Rows, op string) ([]models.SeenEntry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SeenEntry, error) {
		var (
			e  models.SeenEntry
			ts string
		)
		if err := row.Scan(&e.ID, &e.URL, &ts); err != nil {
			return e, err
		}
		e.FirstSeen = parseTimestamp(ts)
		return e, nil
	})
	if err != nil {
		return nil, storeErr(op, err)
	}
	return entries, nil
}
