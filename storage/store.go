package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sublet-scraper/config"
	"sublet-scraper/models"

	"go.uber.org/zap"
)

// ErrDuplicateKey is returned by Record when the URL was already seen.
var ErrDuplicateKey = errors.New("listing url already recorded")

// StoreError wraps any failure of the backing database. It is fatal to a run.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Store is the persisted set of listing URLs already shown to the operator.
// Entries are only ever inserted.
type Store interface {
	// EnsureSchema creates the listings table and its url index if missing.
	EnsureSchema(ctx context.Context) error
	Exists(ctx context.Context, url string) (bool, error)
	// Record inserts url with its first-seen time, or returns ErrDuplicateKey.
	Record(ctx context.Context, url string, firstSeen time.Time) error
	Count(ctx context.Context) (int64, error)
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]models.SeenEntry, error)
	// All returns every entry in insertion order.
	All(ctx context.Context) ([]models.SeenEntry, error)
	Close() error
}

// Open picks Postgres when a DSN is configured and the SQLite file in the
// working directory otherwise.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	if cfg.PostgresDSN != "" {
		return NewPostgresStore(ctx, cfg.PostgresDSN, logger)
	}
	return NewSQLiteStore(ctx, cfg.DBPath(), logger)
}

func formatTimestamp(t time.Time) string {
	return t.Local().Format(models.TimestampLayout)
}

// parseTimestamp tolerates rows written by older tools; unparsable values
// come back as the zero time.
func parseTimestamp(s string) time.Time {
	t, err := time.ParseInLocation(models.TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
