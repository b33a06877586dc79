// Package store provides SQLite-backed persistence for Cookie Sentinel:
// the human review queue, the activity log, and banner counters.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cookiesentinel/internal/logging"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ReviewStatus is the lifecycle state of a review item.
type ReviewStatus string

const (
	ReviewPending ReviewStatus = "pending"
	ReviewDecided ReviewStatus = "decided"
	ReviewApplied ReviewStatus = "applied"
)

// Decision is a human verdict on a review item.
type Decision string

const (
	DecisionDelete Decision = "delete"
	DecisionKeep   Decision = "keep"
)

// ReviewItem is a low-confidence classification awaiting a human verdict.
type ReviewItem struct {
	ID         string
	Name       string
	Domain     string
	Category   string
	Confidence float64
	Reasoning  string
	Status     ReviewStatus
	Decision   Decision
	CreatedAt  time.Time
	DecidedAt  time.Time
}

// ActivityEntry is one row of the append-only activity log.
type ActivityEntry struct {
	ID        int64
	Mode      string // "normal" or "incognito"
	Action    string // manifest_detected, banner_handled, cookies_deleted, tcf_detected
	Domain    string
	Detail    string
	CreatedAt time.Time
}

// Activity log retention per mode.
const activityCap = 1000

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies
// migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("database opened at %s", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS review_items (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	domain      TEXT NOT NULL,
	category    TEXT NOT NULL,
	confidence  REAL NOT NULL,
	reasoning   TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	decision    TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	decided_at  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_review_status ON review_items(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_review_pending_unique
	ON review_items(name, domain) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS activity_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	mode        TEXT NOT NULL,
	action      TEXT NOT NULL,
	domain      TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_activity_mode ON activity_log(mode, id DESC);

CREATE TABLE IF NOT EXISTS banner_counts (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	day       TEXT NOT NULL,
	today     INTEGER NOT NULL DEFAULT 0,
	lifetime  INTEGER NOT NULL DEFAULT 0
);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// =============================================================================
// REVIEW QUEUE
// =============================================================================

// EnqueueReview appends a pending review item. A (name, domain) pair that is
// already pending is left untouched and its existing item is returned.
func (s *Store) EnqueueReview(item ReviewItem) (ReviewItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.Status = ReviewPending

	_, err := s.db.Exec(`
		INSERT INTO review_items (id, name, domain, category, confidence, reasoning, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)
		ON CONFLICT(name, domain) WHERE status = 'pending' DO NOTHING`,
		item.ID, item.Name, item.Domain, item.Category, item.Confidence,
		item.Reasoning, item.CreatedAt.UnixMilli())
	if err != nil {
		return ReviewItem{}, fmt.Errorf("enqueue review: %w", err)
	}

	// The insert may have been a no-op; return whatever is pending.
	existing, err := s.pendingByKey(item.Name, item.Domain)
	if err != nil {
		return ReviewItem{}, err
	}
	return existing, nil
}

func (s *Store) pendingByKey(name, domain string) (ReviewItem, error) {
	row := s.db.QueryRow(`
		SELECT id, name, domain, category, confidence, reasoning, status, decision, created_at, decided_at
		FROM review_items WHERE name = ? AND domain = ? AND status = 'pending'`,
		name, domain)
	return scanReviewItem(row)
}

// GetReviewItem fetches one item by id.
func (s *Store) GetReviewItem(id string) (ReviewItem, error) {
	row := s.db.QueryRow(`
		SELECT id, name, domain, category, confidence, reasoning, status, decision, created_at, decided_at
		FROM review_items WHERE id = ?`, id)
	return scanReviewItem(row)
}

// PendingReviewItems lists all pending items, oldest first.
func (s *Store) PendingReviewItems() ([]ReviewItem, error) {
	rows, err := s.db.Query(`
		SELECT id, name, domain, category, confidence, reasoning, status, decision, created_at, decided_at
		FROM review_items WHERE status = 'pending' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var items []ReviewItem
	for rows.Next() {
		item, err := scanReviewItemRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// PendingReviewCount returns the number of pending items.
func (s *Store) PendingReviewCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM review_items WHERE status = 'pending'`).Scan(&n)
	return n, err
}

// DecideReviewItem records a verdict on a pending item and returns the
// updated row. Deciding a non-pending or unknown item returns ErrNotFound.
func (s *Store) DecideReviewItem(id string, decision Decision) (ReviewItem, error) {
	if decision != DecisionDelete && decision != DecisionKeep {
		return ReviewItem{}, fmt.Errorf("invalid decision %q", decision)
	}

	res, err := s.db.Exec(`
		UPDATE review_items SET status = 'decided', decision = ?, decided_at = ?
		WHERE id = ? AND status = 'pending'`,
		decision, time.Now().UnixMilli(), id)
	if err != nil {
		return ReviewItem{}, fmt.Errorf("decide review: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ReviewItem{}, ErrNotFound
	}
	return s.GetReviewItem(id)
}

// UnappliedDeletions lists delete verdicts that have not been enforced yet,
// oldest decision first.
func (s *Store) UnappliedDeletions() ([]ReviewItem, error) {
	rows, err := s.db.Query(`
		SELECT id, name, domain, category, confidence, reasoning, status, decision, created_at, decided_at
		FROM review_items WHERE status = 'decided' AND decision = 'delete'
		ORDER BY decided_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list unapplied deletions: %w", err)
	}
	defer rows.Close()

	var items []ReviewItem
	for rows.Next() {
		item, err := scanReviewItemRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkReviewApplied transitions a decided item to applied once its verdict
// has been enforced.
func (s *Store) MarkReviewApplied(id string) error {
	res, err := s.db.Exec(`
		UPDATE review_items SET status = 'applied' WHERE id = ? AND status = 'decided'`, id)
	if err != nil {
		return fmt.Errorf("mark applied: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReviewItem(row *sql.Row) (ReviewItem, error) {
	var item ReviewItem
	var created, decided int64
	err := row.Scan(&item.ID, &item.Name, &item.Domain, &item.Category,
		&item.Confidence, &item.Reasoning, &item.Status, &item.Decision,
		&created, &decided)
	if errors.Is(err, sql.ErrNoRows) {
		return ReviewItem{}, ErrNotFound
	}
	if err != nil {
		return ReviewItem{}, err
	}
	item.CreatedAt = time.UnixMilli(created)
	if decided > 0 {
		item.DecidedAt = time.UnixMilli(decided)
	}
	return item, nil
}

func scanReviewItemRows(rows *sql.Rows) (ReviewItem, error) {
	var item ReviewItem
	var created, decided int64
	err := rows.Scan(&item.ID, &item.Name, &item.Domain, &item.Category,
		&item.Confidence, &item.Reasoning, &item.Status, &item.Decision,
		&created, &decided)
	if err != nil {
		return ReviewItem{}, err
	}
	item.CreatedAt = time.UnixMilli(created)
	if decided > 0 {
		item.DecidedAt = time.UnixMilli(decided)
	}
	return item, nil
}

// =============================================================================
// ACTIVITY LOG
// =============================================================================

// AppendActivity records one activity entry and trims the per-mode log to
// the retention cap, dropping the oldest rows.
func (s *Store) AppendActivity(entry ActivityEntry) error {
	if entry.Mode == "" {
		entry.Mode = "normal"
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO activity_log (mode, action, domain, detail, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.Mode, entry.Action, entry.Domain, entry.Detail, entry.CreatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}

	if _, err := tx.Exec(`
		DELETE FROM activity_log WHERE mode = ? AND id NOT IN (
			SELECT id FROM activity_log WHERE mode = ? ORDER BY id DESC LIMIT ?
		)`, entry.Mode, entry.Mode, activityCap); err != nil {
		return fmt.Errorf("trim activity: %w", err)
	}

	return tx.Commit()
}

// ListActivity returns up to limit entries for mode, newest first.
// limit <= 0 means the full retained log.
func (s *Store) ListActivity(mode string, limit int) ([]ActivityEntry, error) {
	if mode == "" {
		mode = "normal"
	}
	if limit <= 0 || limit > activityCap {
		limit = activityCap
	}

	rows, err := s.db.Query(`
		SELECT id, mode, action, domain, detail, created_at
		FROM activity_log WHERE mode = ? ORDER BY id DESC LIMIT ?`, mode, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []ActivityEntry
	for rows.Next() {
		var e ActivityEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.Mode, &e.Action, &e.Domain, &e.Detail, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// BANNER COUNTERS
// =============================================================================

// BannerCounts holds the banner resolution counters.
type BannerCounts struct {
	Today    int
	Lifetime int
}

// IncrementBannerCount bumps both counters, resetting the daily count when
// the stored day is not today.
func (s *Store) IncrementBannerCount() (BannerCounts, error) {
	return s.incrementBannerCountAt(time.Now())
}

func (s *Store) incrementBannerCountAt(now time.Time) (BannerCounts, error) {
	day := now.Format("2006-01-02")

	tx, err := s.db.Begin()
	if err != nil {
		return BannerCounts{}, err
	}
	defer tx.Rollback()

	var storedDay string
	var counts BannerCounts
	err = tx.QueryRow(`SELECT day, today, lifetime FROM banner_counts WHERE id = 1`).
		Scan(&storedDay, &counts.Today, &counts.Lifetime)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		counts = BannerCounts{Today: 1, Lifetime: 1}
		if _, err := tx.Exec(`INSERT INTO banner_counts (id, day, today, lifetime) VALUES (1, ?, 1, 1)`, day); err != nil {
			return BannerCounts{}, err
		}
	case err != nil:
		return BannerCounts{}, err
	default:
		if storedDay != day {
			counts.Today = 0
		}
		counts.Today++
		counts.Lifetime++
		if _, err := tx.Exec(`UPDATE banner_counts SET day = ?, today = ?, lifetime = ? WHERE id = 1`,
			day, counts.Today, counts.Lifetime); err != nil {
			return BannerCounts{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return BannerCounts{}, err
	}
	return counts, nil
}

// GetBannerCounts reads the counters, applying the day rollover without
// incrementing.
func (s *Store) GetBannerCounts() (BannerCounts, error) {
	var storedDay string
	var counts BannerCounts
	err := s.db.QueryRow(`SELECT day, today, lifetime FROM banner_counts WHERE id = 1`).
		Scan(&storedDay, &counts.Today, &counts.Lifetime)
	if errors.Is(err, sql.ErrNoRows) {
		return BannerCounts{}, nil
	}
	if err != nil {
		return BannerCounts{}, err
	}
	if storedDay != time.Now().Format("2006-01-02") {
		counts.Today = 0
	}
	return counts, nil
}
