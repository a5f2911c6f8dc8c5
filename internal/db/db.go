// ABOUTME: Database connection management and initialization
// ABOUTME: Handles SQLite connection, XDG paths, and migrations

package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

func InitDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	// Use 0700 (owner only) for privacy - listening habits are personal data
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite locks the whole database on write; a single connection keeps
	// concurrent import batches from tripping SQLITE_BUSY. Fetches still run
	// in parallel, only the writes serialize.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func GetDefaultDBPath() string {
	return filepath.Join(getDataDir(), "podkeep", "podkeep.db")
}

func getDataDir() string {
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		return dataDir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share")
}

func runMigrations(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		api_key TEXT UNIQUE NOT NULL,
		notify_on_new_episodes BOOLEAN DEFAULT FALSE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS podcasts (
		id TEXT PRIMARY KEY,
		rss_url TEXT UNIQUE NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		image_url TEXT,
		author TEXT,
		last_fetched_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		podcast_id TEXT NOT NULL,
		guid TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		audio_url TEXT NOT NULL,
		duration_seconds INTEGER,
		published_at DATETIME NOT NULL,
		archived BOOLEAN DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (podcast_id) REFERENCES podcasts(id) ON DELETE CASCADE,
		UNIQUE(podcast_id, guid)
	);

	CREATE INDEX IF NOT EXISTS idx_episodes_podcast_id ON episodes(podcast_id);
	CREATE INDEX IF NOT EXISTS idx_episodes_archived ON episodes(archived);
	CREATE INDEX IF NOT EXISTS idx_episodes_published_at ON episodes(published_at);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		podcast_id TEXT NOT NULL,
		notifications_enabled BOOLEAN DEFAULT FALSE,
		subscribed_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (podcast_id) REFERENCES podcasts(id) ON DELETE CASCADE,
		UNIQUE(user_id, podcast_id)
	);

	CREATE INDEX IF NOT EXISTS idx_subscriptions_user_id ON subscriptions(user_id);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_podcast_id ON subscriptions(podcast_id);

	CREATE TABLE IF NOT EXISTS listened_marks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		episode_id TEXT NOT NULL,
		listened_at DATETIME NOT NULL,
		position_seconds INTEGER DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (episode_id) REFERENCES episodes(id) ON DELETE CASCADE,
		UNIQUE(user_id, episode_id)
	);

	CREATE INDEX IF NOT EXISTS idx_listened_marks_user_id ON listened_marks(user_id);

	CREATE TABLE IF NOT EXISTS import_jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total INTEGER NOT NULL,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed_titles TEXT NOT NULL DEFAULT '[]',
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_import_jobs_user_id ON import_jobs(user_id);
	`
	_, err := db.Exec(schema)
	return err
}
