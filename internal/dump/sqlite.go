package dump

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"callfuzz/internal/caller"
	"callfuzz/internal/logging"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite driver names.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// SQLiteSink stores cases in a SQLite database.
type SQLiteSink struct {
	db      *sql.DB
	dbPath  string
	session string
	mu      sync.Mutex
}

// NewSQLiteSink creates or opens the case database. Driver is DriverModernc
// (the default when empty) or DriverCgo.
func NewSQLiteSink(dbPath, driver, session string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open(driverName(driver), dsn(driver, dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{db: db, dbPath: dbPath, session: session}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Dump("opened case database %s (driver %s)", dbPath, driverName(driver))
	return s, nil
}

func driverName(driver string) string {
	if driver == DriverCgo {
		return DriverCgo
	}
	return DriverModernc
}

func dsn(driver, path string) string {
	if driver == DriverCgo {
		return path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Path returns the database file path.
func (s *SQLiteSink) Path() string { return s.dbPath }

// Close closes the database connection.
func (s *SQLiteSink) Close() error { return s.db.Close() }

func (s *SQLiteSink) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL,
		seq INTEGER NOT NULL,
		session TEXT,
		target TEXT NOT NULL,
		document TEXT NOT NULL,
		source TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(key, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_cases_session ON cases(session);
	CREATE INDEX IF NOT EXISTS idx_cases_target ON cases(target);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteSink) Store(c caller.Caller) (Ref, error) {
	cs := NewCase(s.session, c)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq) + 1, 0) FROM cases WHERE key = ?`, cs.Key).Scan(&cs.Seq); err != nil {
		return Ref{}, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	doc, err := cs.Marshal()
	if err != nil {
		return Ref{}, fmt.Errorf("failed to encode case: %w", err)
	}

	res, err := tx.Exec(`INSERT INTO cases (key, seq, session, target, document, source) VALUES (?, ?, ?, ?, ?, ?)`,
		cs.Key, cs.Seq, cs.Session, cs.Target, string(doc), cs.Source)
	if err != nil {
		return Ref{}, fmt.Errorf("failed to insert case: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Ref{}, fmt.Errorf("failed to commit case: %w", err)
	}

	id, _ := res.LastInsertId()
	return Ref{Key: cs.Key, Seq: cs.Seq, Location: fmt.Sprintf("%s#%d", s.dbPath, id)}, nil
}

// Count returns the number of stored cases.
func (s *SQLiteSink) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cases`).Scan(&n)
	return n, err
}

// Load returns the stored cases, optionally restricted to one session, in
// insertion order.
func (s *SQLiteSink) Load(session string) ([]Case, error) {
	query := `SELECT document FROM cases ORDER BY id`
	args := []any{}
	if session != "" {
		query = `SELECT document FROM cases WHERE session = ? ORDER BY id`
		args = append(args, session)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cs, err := UnmarshalCase([]byte(doc))
		if err != nil {
			return nil, err
		}
		cases = append(cases, cs)
	}
	return cases, rows.Err()
}
