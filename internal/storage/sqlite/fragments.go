package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yegors/liveblog/pkg/logger"
)

// Open opens (or creates) the SQLite database at the given path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

// FragmentStorage handles storage of transcript fragments. Summary cards are
// deliberately not persisted; only the raw transcript survives the session
// for later retrieval.
type FragmentStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewFragmentStorage creates a new SQLite fragment storage
func NewFragmentStorage(db *sql.DB, logger *logger.Logger) (*FragmentStorage, error) {
	storage := &FragmentStorage{
		db:     db,
		logger: logger.Named("sqlite-fragments"),
	}

	if err := storage.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize fragment storage: %w", err)
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *FragmentStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcript_fragments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			content TEXT NOT NULL,
			confidence REAL NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcript_fragments table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_fragments_session ON transcript_fragments(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_fragments_session_seq ON transcript_fragments(session_id, seq)`,
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create fragment index: %w", err)
		}
	}

	return nil
}

// StoreFragment stores one transcript fragment
func (s *FragmentStorage) StoreFragment(record *FragmentRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO transcript_fragments
		(session_id, seq, content, confidence, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		record.SessionID,
		record.Seq,
		record.Content,
		record.Confidence,
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fragment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetFragmentsBySession returns a session's fragments in append order.
func (s *FragmentStorage) GetFragmentsBySession(sessionID string) ([]*FragmentRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, seq, content, confidence, created_at
		FROM transcript_fragments
		WHERE session_id = ?
		ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query fragments by session: %w", err)
	}
	defer rows.Close()

	return s.scanFragmentRows(rows)
}

func (s *FragmentStorage) scanFragmentRows(rows *sql.Rows) ([]*FragmentRecord, error) {
	var records []*FragmentRecord
	for rows.Next() {
		record := &FragmentRecord{}
		var createdAt string
		if err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.Seq,
			&record.Content,
			&record.Confidence,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fragment row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse fragment timestamp: %w", err)
		}
		record.CreatedAt = ts
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fragment rows: %w", err)
	}
	return records, nil
}
