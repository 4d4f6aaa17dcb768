// Package history persists completed downloads so the library survives
// restarts and the UI can show what has already been fetched.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

var ErrEntryNotFound = errors.New("history entry not found")

// DB wraps the Postgres connection.
type DB struct {
	*sql.DB
}

// New opens a Postgres connection and verifies it.
func New(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db}, nil
}

// Migrate creates the history schema.
func (db *DB) Migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS download_history (
		id BIGSERIAL PRIMARY KEY,
		task_id UUID NOT NULL,
		track_id VARCHAR(64) NOT NULL,
		title VARCHAR(512) NOT NULL,
		artist VARCHAR(512),
		album VARCHAR(512),
		filename VARCHAR(1024) NOT NULL,
		quality VARCHAR(16) NOT NULL,
		storage VARCHAR(16) NOT NULL,
		completed_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_download_history_track_id ON download_history(track_id);
	CREATE INDEX IF NOT EXISTS idx_download_history_completed_at ON download_history(completed_at);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Entry is one completed download.
type Entry struct {
	ID          int64          `json:"id"`
	TaskID      string         `json:"task_id"`
	TrackID     string         `json:"track_id"`
	Title       string         `json:"title"`
	Artist      sql.NullString `json:"-"`
	Album       sql.NullString `json:"-"`
	Filename    string         `json:"filename"`
	Quality     string         `json:"quality"`
	Storage     string         `json:"storage"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Repository records and lists completed downloads.
type Repository struct {
	db *DB
}

// NewRepository creates a Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Record inserts a completed download.
func (r *Repository) Record(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO download_history (task_id, track_id, title, artist, album, filename, quality, storage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, completed_at
	`
	err := r.db.QueryRowContext(ctx, query,
		e.TaskID, e.TrackID, e.Title, e.Artist, e.Album, e.Filename, e.Quality, e.Storage,
	).Scan(&e.ID, &e.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}

// List returns the most recent completed downloads.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Entry, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM download_history`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, task_id, track_id, title, artist, album, filename, quality, storage, completed_at
		FROM download_history
		ORDER BY completed_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		err := rows.Scan(
			&e.ID, &e.TaskID, &e.TrackID, &e.Title, &e.Artist, &e.Album,
			&e.Filename, &e.Quality, &e.Storage, &e.CompletedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// LatestForTrack returns the most recent completed download of a track.
func (r *Repository) LatestForTrack(ctx context.Context, trackID string) (*Entry, error) {
	query := `
		SELECT id, task_id, track_id, title, artist, album, filename, quality, storage, completed_at
		FROM download_history
		WHERE track_id = $1
		ORDER BY completed_at DESC
		LIMIT 1
	`
	var e Entry
	err := r.db.QueryRowContext(ctx, query, trackID).Scan(
		&e.ID, &e.TaskID, &e.TrackID, &e.Title, &e.Artist, &e.Album,
		&e.Filename, &e.Quality, &e.Storage, &e.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}
