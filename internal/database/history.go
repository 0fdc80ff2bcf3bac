package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/cssfinder/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "cssfinder.db"

// HistoryDB is the SQLite store for recorded searches.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, ErrNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file, mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the path of the database file.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS searches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_url TEXT NOT NULL,
		page_limit INTEGER NOT NULL,
		same_domain INTEGER NOT NULL,
		kind TEXT NOT NULL,
		value TEXT NOT NULL,
		pages_crawled INTEGER NOT NULL,
		total_matches INTEGER NOT NULL,
		cached INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_searches_start_url ON searches(start_url);
	CREATE INDEX IF NOT EXISTS idx_searches_timestamp ON searches(timestamp);

	CREATE TABLE IF NOT EXISTS search_pages (
		search_id INTEGER NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
		page_url TEXT NOT NULL,
		match_count INTEGER NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (search_id, page_url)
	);

	CREATE TABLE IF NOT EXISTS pages (
		url TEXT PRIMARY KEY,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		raw_hash TEXT,
		elements INTEGER,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// ErrNotFound is returned when the database file does not exist and
// creation is disabled.
var ErrNotFound = errors.New("history database not found")

// PageCount is the number of matches found on one page.
type PageCount struct {
	URL   string `json:"url"`
	Count int    `json:"count"`
}

// SearchRecord is one recorded search.
type SearchRecord struct {
	ID           int64          `json:"id"`
	Crawl        model.CrawlKey `json:"crawl"`
	Query        model.Query    `json:"query"`
	PagesCrawled int            `json:"pages_crawled"`
	TotalMatches int            `json:"total_matches"`
	Cached       bool           `json:"cached"`
	Timestamp    time.Time      `json:"timestamp"`

	// Pages is only filled by GetSearch.
	Pages []PageCount `json:"pages,omitempty"`
}

// NewSearchRecord summarizes a search over result.
func NewSearchRecord(result *model.CrawlResult, q model.Query, records []model.MatchRecord, cached bool) *SearchRecord {
	rec := &SearchRecord{
		Crawl:        result.Key(),
		Query:        q,
		PagesCrawled: result.Len(),
		Cached:       cached,
		Pages:        make([]PageCount, 0, len(records)),
	}
	for _, r := range records {
		rec.TotalMatches += r.Count
		rec.Pages = append(rec.Pages, PageCount{URL: r.PageURL, Count: r.Count})
	}
	return rec
}

// InsertSearch stores a search and its per-page counts in one transaction
// and returns the new row ID.
func (h *HistoryDB) InsertSearch(ctx context.Context, rec *SearchRecord) (int64, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO searches (start_url, page_limit, same_domain, kind, value, pages_crawled, total_matches, cached)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Crawl.StartURL,
		rec.Crawl.PageLimit,
		rec.Crawl.SameDomainOnly,
		string(rec.Query.Kind),
		rec.Query.Value,
		rec.PagesCrawled,
		rec.TotalMatches,
		rec.Cached,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert search: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read search id: %w", err)
	}

	for i, p := range rec.Pages {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO search_pages (search_id, page_url, match_count, position)
		VALUES (?, ?, ?, ?)
		`, id, p.URL, p.Count, i); err != nil {
			return 0, fmt.Errorf("failed to insert search page: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit search: %w", err)
	}
	rec.ID = id
	return id, nil
}

// ListSearches returns the most recent searches, newest first.
// A limit of zero or less returns every search.
func (h *HistoryDB) ListSearches(ctx context.Context, limit int) ([]SearchRecord, error) {
	query := `
	SELECT id, start_url, page_limit, same_domain, kind, value, pages_crawled, total_matches, cached, timestamp
	FROM searches
	ORDER BY id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	var results []SearchRecord
	for rows.Next() {
		rec, err := scanSearch(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

// GetSearch retrieves a search with its per-page counts.
// It returns nil without error when no search has the given ID.
func (h *HistoryDB) GetSearch(ctx context.Context, id int64) (*SearchRecord, error) {
	row := h.db.QueryRowContext(ctx, `
	SELECT id, start_url, page_limit, same_domain, kind, value, pages_crawled, total_matches, cached, timestamp
	FROM searches
	WHERE id = ?
	`, id)
	rec, err := scanSearch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := h.db.QueryContext(ctx, `
	SELECT page_url, match_count FROM search_pages
	WHERE search_id = ?
	ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get search pages: %w", err)
	}
	defer rows.Close()

	rec.Pages = []PageCount{}
	for rows.Next() {
		var p PageCount
		if err := rows.Scan(&p.URL, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan search page: %w", err)
		}
		rec.Pages = append(rec.Pages, p)
	}
	return rec, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSearch(s rowScanner) (*SearchRecord, error) {
	var rec SearchRecord
	var kind, timestamp string
	err := s.Scan(
		&rec.ID,
		&rec.Crawl.StartURL,
		&rec.Crawl.PageLimit,
		&rec.Crawl.SameDomainOnly,
		&kind,
		&rec.Query.Value,
		&rec.PagesCrawled,
		&rec.TotalMatches,
		&rec.Cached,
		&timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan search: %w", err)
	}
	rec.Query.Kind = model.SearchKind(kind)
	rec.Timestamp = parseTimestamp(timestamp)
	return &rec, nil
}

// PageSnapshot is the stored metadata of the last fetch of a page.
type PageSnapshot struct {
	URL         string
	StatusCode  int
	ContentType string
	Title       string
	RawHash     string
	Elements    int
	Timestamp   time.Time
}

// UpsertPages stores the metadata of every page of a crawl result,
// replacing older snapshots of the same URLs.
func (h *HistoryDB) UpsertPages(ctx context.Context, pages []*model.PageRecord) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range pages {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO pages (url, status_code, content_type, title, raw_hash, elements)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			status_code = excluded.status_code,
			content_type = excluded.content_type,
			title = excluded.title,
			raw_hash = excluded.raw_hash,
			elements = excluded.elements,
			timestamp = CURRENT_TIMESTAMP
		`, p.URL, p.StatusCode, p.ContentType, p.Title, p.Hash, len(p.Elements)); err != nil {
			return fmt.Errorf("failed to upsert page %s: %w", p.URL, err)
		}
	}
	return tx.Commit()
}

// GetPage retrieves the stored snapshot of a page.
// It returns nil without error when the page was never stored.
func (h *HistoryDB) GetPage(ctx context.Context, url string) (*PageSnapshot, error) {
	var snap PageSnapshot
	var timestamp string
	err := h.db.QueryRowContext(ctx, `
	SELECT url, status_code, content_type, title, raw_hash, elements, timestamp
	FROM pages
	WHERE url = ?
	`, url).Scan(
		&snap.URL,
		&snap.StatusCode,
		&snap.ContentType,
		&snap.Title,
		&snap.RawHash,
		&snap.Elements,
		&timestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	snap.Timestamp = parseTimestamp(timestamp)
	return &snap, nil
}

// ChangedPages returns the URLs of pages whose content hash differs from
// the stored snapshot. Pages never stored before are not reported.
func (h *HistoryDB) ChangedPages(ctx context.Context, pages []*model.PageRecord) ([]string, error) {
	var changed []string
	for _, p := range pages {
		snap, err := h.GetPage(ctx, p.URL)
		if err != nil {
			return nil, err
		}
		if snap != nil && snap.RawHash != p.Hash {
			changed = append(changed, p.URL)
		}
	}
	return changed, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known format and returns the zero time if none
// matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
