package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fetch_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reference TEXT NOT NULL,
		local_path TEXT,
		checksum TEXT,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		detail TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_reference ON fetch_ledger(reference);
	CREATE INDEX IF NOT EXISTS idx_ledger_created ON fetch_ledger(created_at);

	CREATE TABLE IF NOT EXISTS search_logs (
		id TEXT PRIMARY KEY,
		query_text TEXT NOT NULL,
		search_type TEXT NOT NULL,
		result_count INTEGER NOT NULL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_search_created ON search_logs(created_at);
	CREATE INDEX IF NOT EXISTS idx_search_type ON search_logs(search_type);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// AppendFetch records one fetch attempt. The ledger is append-only:
// re-fetches add rows rather than updating old ones.
func (c *Client) AppendFetch(entry *models.FetchLedgerEntry) error {
	query := `
		INSERT INTO fetch_ledger (reference, local_path, checksum, status, attempts, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		entry.Reference,
		entry.LocalPath,
		entry.Checksum,
		string(entry.Status),
		entry.Attempts,
		entry.Detail,
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to append fetch ledger entry: %w", err)
	}

	logger.Debug("Fetch recorded",
		zap.String("reference", entry.Reference),
		zap.String("status", string(entry.Status)),
	)

	return nil
}

// LastFetch returns the most recent ledger row for a reference, or nil
// when the reference has never been fetched.
func (c *Client) LastFetch(reference string) (*models.FetchLedgerEntry, error) {
	query := `
		SELECT id, reference, local_path, checksum, status, attempts, detail, created_at
		FROM fetch_ledger
		WHERE reference = ?
		ORDER BY id DESC
		LIMIT 1
	`

	var entry models.FetchLedgerEntry
	var status string
	var createdAt int64

	err := c.db.QueryRow(query, reference).Scan(
		&entry.ID,
		&entry.Reference,
		&entry.LocalPath,
		&entry.Checksum,
		&status,
		&entry.Attempts,
		&entry.Detail,
		&createdAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last fetch: %w", err)
	}

	entry.Status = models.FetchStatus(status)
	entry.CreatedAt = time.Unix(createdAt, 0)

	return &entry, nil
}

func (c *Client) InsertSearchLog(entry *models.SearchLogEntry) error {
	query := `
		INSERT INTO search_logs (id, query_text, search_type, result_count, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		entry.ID,
		entry.Query,
		entry.SearchType,
		entry.ResultCount,
		entry.LatencyMS,
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert search log: %w", err)
	}

	return nil
}

func (c *Client) CountSearches() (int64, error) {
	var count int64
	err := c.db.QueryRow(`SELECT COUNT(*) FROM search_logs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count searches: %w", err)
	}
	return count, nil
}

// RecentSearches returns the latest logged queries, newest first.
func (c *Client) RecentSearches(limit int) ([]models.SearchLogEntry, error) {
	query := `
		SELECT id, query_text, search_type, result_count, latency_ms, created_at
		FROM search_logs
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent searches: %w", err)
	}
	defer rows.Close()

	var entries []models.SearchLogEntry
	for rows.Next() {
		var e models.SearchLogEntry
		var createdAt int64

		err := rows.Scan(&e.ID, &e.Query, &e.SearchType, &e.ResultCount, &e.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
