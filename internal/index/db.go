// Package index keeps a SQLite index of the media files in a directory and
// serves it as a page source.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/logging"
	"github.com/tagview/tagview/internal/pathutil"
)

var (
	// ErrNotDirectory is returned when the indexed path is not a directory.
	ErrNotDirectory = errors.New("index: not a directory")

	// ErrInvalidSort is returned for a sort field outside the whitelist.
	ErrInvalidSort = errors.New("index: invalid sort field")

	// ErrInvalidRating is returned for ratings outside 0..5.
	ErrInvalidRating = errors.New("index: rating must be between 0 and 5")

	// ErrNotFound is returned when a file is not in the index.
	ErrNotFound = errors.New("index: file not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS images (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	file_name TEXT NOT NULL UNIQUE,
	width     INTEGER NOT NULL DEFAULT 0,
	height    INTEGER NOT NULL DEFAULT 0,
	is_video  INTEGER NOT NULL DEFAULT 0,
	size      INTEGER NOT NULL DEFAULT 0,
	mtime     REAL NOT NULL DEFAULT 0,
	rating    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_images_mtime ON images(mtime);
`

// DB is an open dataset index. Count and LoadPage make it a pagestore.Source.
type DB struct {
	db     *sql.DB
	dir    string
	path   string
	logger *logging.Logger

	mu     sync.RWMutex
	sort   Sort
	filter string
}

// Open opens or creates the index inside dir. A database that cannot be
// initialized is deleted and recreated once.
func Open(dir string, logger *logging.Logger) (*DB, error) {
	logger = logging.OrNop(logger).Component("index")

	resolved, err := pathutil.ResolveAbsolutePath(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	dir = resolved

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}

	path := filepath.Join(dir, constants.IndexDBName)
	db, err := openAt(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("index unusable, recreating")
		removeDatabase(path)
		db, err = openAt(path)
		if err != nil {
			return nil, fmt.Errorf("open index %s: %w", path, err)
		}
	}

	d := &DB{
		db:     db,
		dir:    dir,
		path:   path,
		logger: logger,
		sort:   DefaultSort(),
	}
	logger.Debug().Str("path", path).Msg("index opened")
	return d, nil
}

func openAt(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(db *sql.DB) error {
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var stored string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'version'`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read version: %w", err)
	}

	want := strconv.Itoa(constants.IndexSchemaVersion)
	if stored == want {
		return nil
	}
	// Cached dimensions from another schema version are not trusted.
	if _, err := db.ExecContext(ctx, `DELETE FROM images`); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`, want); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	return nil
}

func removeDatabase(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_ = os.Remove(p)
	}
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Dir returns the indexed directory.
func (d *DB) Dir() string {
	return d.dir
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}
