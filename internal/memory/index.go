package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Index is a full-text index over journal entries. The markdown files stay
// the source of truth; Rebuild replaces the index contents wholesale.
type Index struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenIndex(dbPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := idx.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (idx *Index) Close() error {
	if idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

func (idx *Index) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entry_date TEXT NOT NULL,
			tag TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_tag ON entries(tag, entry_date)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			details,
			content,
			content='entries',
			content_rowid='id',
			tokenize='unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS entries_ai AFTER INSERT ON entries BEGIN
			INSERT INTO entries_fts(rowid, details, content) VALUES (new.id, new.details, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS entries_ad AFTER DELETE ON entries BEGIN
			INSERT INTO entries_fts(entries_fts, rowid, details, content) VALUES('delete', old.id, old.details, old.content);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := idx.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Rebuild replaces every indexed entry with entries.
func (idx *Index) Rebuild(entries []Entry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO entries (entry_date, tag, details, content, source) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(e.Date, e.Tag, e.Details, e.Content, e.Source); err != nil {
			return fmt.Errorf("index entry: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns the number of indexed entries.
func (idx *Index) Count() (int, error) {
	var n int
	if err := idx.db.QueryRow(`SELECT COUNT(1) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Search runs an FTS5 query over entry details and text, best match
// first. An empty tag searches every tag.
func (idx *Index) Search(query, tag string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	rows, err := idx.db.Query(`
		SELECT e.entry_date, e.tag, e.details, e.content, e.source
		FROM entries e
		JOIN entries_fts f ON e.id = f.rowid
		WHERE entries_fts MATCH ?
		  AND (? = '' OR e.tag = ?)
		ORDER BY bm25(entries_fts), e.entry_date DESC
		LIMIT ?
	`, query, tag, strings.ToUpper(tag), limit)
	if err != nil {
		return nil, fmt.Errorf("search fts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Date, &e.Tag, &e.Details, &e.Content, &e.Source); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// IndexJournal rebuilds idx from every daily file in j, archived files
// excluded.
func IndexJournal(j *Journal, idx *Index) (int, error) {
	entries, err := j.Extract(0, "")
	if err != nil {
		return 0, err
	}
	if err := idx.Rebuild(entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
