// Package sqlite persists the watchlist, the bot configuration, and the
// append-only signal history. The dedup pass is the sole writer of signal
// history; command handlers read it.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	Path string // database file path, e.g. "data/signals.db"
}

// Store is a single-writer SQLite store with WAL journaling.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database, enables WAL mode, creates the schema,
// and seeds default configuration and watchlist rows.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; one pass at a time touches the database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite seed: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.Path)
	return &Store{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS watchlist (
			ticker   TEXT PRIMARY KEY,
			name     TEXT,
			added_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS config (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS signal_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker      TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			price       REAL NOT NULL,
			rpp_score   REAL NOT NULL,
			created_at  INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_signal_history_ticker
			ON signal_history (ticker, created_at DESC);
	`)
	return err
}

func seedDefaults(db *sql.DB) error {
	defaults := [][2]string{
		{keyCheckInterval, "900"},
		{keyBuyThreshold, "10"},
		{keySellThreshold, "90"},
		{keyCooldownHours, "24"},
		{keyPriceChangePct, "5"},
	}
	for _, kv := range defaults {
		if _, err := db.Exec(
			`INSERT OR IGNORE INTO config (key, value) VALUES (?, ?)`,
			kv[0], kv[1],
		); err != nil {
			return err
		}
	}

	watchlist := [][2]string{
		{"NVDA", "Nvidia"},
		{"GOOGL", "Google"},
		{"ASML", "ASML"},
		{"AAPL", "Apple"},
		{"AMZN", "Amazon"},
		{"ADS.DE", "Adidas"},
		{"V", "Visa"},
		{"KO", "Coca-Cola"},
	}
	for _, wl := range watchlist {
		if _, err := db.Exec(
			`INSERT OR IGNORE INTO watchlist (ticker, name) VALUES (?, ?)`,
			wl[0], wl[1],
		); err != nil {
			return err
		}
	}
	return nil
}
