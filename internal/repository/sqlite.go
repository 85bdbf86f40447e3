package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opensource-finance/heron/internal/domain"
	_ "modernc.org/sqlite"
)

const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"

// openSQLite opens the pure Go modernc driver, creating the database's parent
// directory if needed. ":memory:" gives a private database pinned to a single
// connection, since each new connection would see an empty one.
func openSQLite(cfg domain.RepositoryConfig) (*sql.DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "./heron.db"
	}

	dsn := "file::memory:?_pragma=foreign_keys(ON)"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
			}
		}
		dsn = "file:" + path + "?" + sqlitePragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
