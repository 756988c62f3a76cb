package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Options configure the portal's sqlite connection. Zero values fall back to
// defaults sized for a single-node deployment: the portal's write load is a
// handful of approval actions per minute, so a small pool is plenty.
type Options struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

const defaultPath = "data/portal.db"

// Open opens (creating if necessary) the portal database file. WAL mode keeps
// readers unblocked while an approval transaction is writing, the busy
// timeout absorbs short writer contention instead of surfacing SQLITE_BUSY,
// and foreign keys are enforced so request rows cannot outlive their creator.
func Open(opts Options, logger *zap.Logger) (*sql.DB, error) {
	if opts.Path == "" {
		opts.Path = defaultPath
	}
	if dir := filepath.Dir(opts.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")

	db, err := sql.Open("sqlite3", "file:"+opts.Path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Sqlite database opened", zap.String("path", opts.Path))
	return db, nil
}
