// Package storage holds the durable state shared across runs: selection
// history plus the image, place and post dedup stores.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// History list kinds. Each kind is an independent bounded FIFO.
const (
	HistorySource = "source"
	HistoryRegion = "region"
	HistorySeries = "series"
	HistoryTitle  = "title"
)

type ImageRecord struct {
	URL       string
	Phash     uint64
	CreatedAt time.Time
}

type PostRecord struct {
	Title     string
	Embedding []float32
	CreatedAt time.Time
}

// Store wraps the SQLite database backing all durable state.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS images (
		id         INTEGER PRIMARY KEY,
		url        TEXT UNIQUE NOT NULL,
		phash      TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_images_phash ON images(phash);

	CREATE TABLE IF NOT EXISTS places (
		id         INTEGER PRIMARY KEY,
		title_norm TEXT NOT NULL,
		source     TEXT NOT NULL,
		region     TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(title_norm, source)
	);
	CREATE INDEX IF NOT EXISTS idx_places_title ON places(title_norm);

	CREATE TABLE IF NOT EXISTS posts (
		id         INTEGER PRIMARY KEY,
		title      TEXT NOT NULL,
		embedding  TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		id         INTEGER PRIMARY KEY,
		kind       TEXT NOT NULL,
		value      TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_kind ON history(kind, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecentHistory returns up to n most recent values of a kind, oldest first.
func (s *Store) RecentHistory(ctx context.Context, kind string, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT value FROM (
			SELECT id, value FROM history WHERE kind = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, kind, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// AppendHistory appends a value to a history list and truncates the list
// from the front so that at most keep entries remain.
func (s *Store) AppendHistory(ctx context.Context, kind, value string, keep int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history (kind, value, created_at) VALUES (?, ?, ?)`,
		kind, value, now); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM history WHERE kind = ? AND id NOT IN (
			SELECT id FROM history WHERE kind = ? ORDER BY id DESC LIMIT ?
		)`, kind, kind, keep); err != nil {
		return fmt.Errorf("truncate history: %w", err)
	}

	return tx.Commit()
}

// TryAddImage records an accepted image. The insert and the uniqueness check
// are one statement so overlapping runs cannot both accept the same URL:
// a conflicting insert affects zero rows and is reported as a duplicate.
func (s *Store) TryAddImage(ctx context.Context, url string, phash uint64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO images (url, phash, created_at) VALUES (?, ?, ?)
		ON CONFLICT(url) DO NOTHING`,
		url, formatPhash(phash), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("insert image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasImageURL reports whether a URL is already recorded.
func (s *Store) HasImageURL(ctx context.Context, url string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM images WHERE url = ?`, url).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ImageHashes returns every stored perceptual hash.
func (s *Store) ImageHashes(ctx context.Context) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT phash FROM images ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []uint64
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		h, err := parsePhash(raw)
		if err != nil {
			continue // unreadable rows never block resolution
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// HasPlace reports whether a place was already used in a published article.
func (s *Store) HasPlace(ctx context.Context, titleNorm, source string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM places WHERE title_norm = ? AND source = ?`,
		titleNorm, source).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddPlace records a used place; returns false when it was already present.
func (s *Store) AddPlace(ctx context.Context, titleNorm, source, region string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO places (title_norm, source, region, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(title_norm, source) DO NOTHING`,
		titleNorm, source, region, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("insert place: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddPost appends a published article record.
func (s *Store) AddPost(ctx context.Context, title string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO posts (title, embedding, created_at) VALUES (?, ?, ?)`,
		title, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// Posts returns every published article record, oldest first.
func (s *Store) Posts(ctx context.Context) ([]PostRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, embedding, created_at FROM posts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []PostRecord
	for rows.Next() {
		var p PostRecord
		var embJSON, createdAt string
		if err := rows.Scan(&p.Title, &embJSON, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(embJSON), &p.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshal embedding for %q: %w", p.Title, err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// NormalizeTitle produces the stable key used by the place store.
func NormalizeTitle(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	return strings.Join(strings.Fields(t), " ")
}

func formatPhash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

func parsePhash(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}
