package adapters

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "github.com/tursodatabase/go-libsql"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// LibSQLTranscriptStore archives conversation turns in a LibSQL database.
type LibSQLTranscriptStore struct {
	db *sql.DB
}

// NewLibSQLTranscriptStore creates a transcript store over an already
// migrated database. Use OpenArchive to get one.
func NewLibSQLTranscriptStore(db *sql.DB) *LibSQLTranscriptStore {
	return &LibSQLTranscriptStore{db: db}
}

// OpenArchive opens (or creates) the archive database at the given DSN and
// runs the embedded goose migrations.
func OpenArchive(dsn string) (*sql.DB, error) {
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run archive migrations: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal_mode: %w", err)
	}

	return db, nil
}

// SaveTurn inserts or replaces one turn. Replaying a turn ID overwrites the
// previous row, so placeholder replacement re-archives cleanly.
func (s *LibSQLTranscriptStore) SaveTurn(ctx context.Context, rec ports.TurnRecord) error {
	query := `
		INSERT OR REPLACE INTO transcript_turns (session_id, turn_id, role, content, analysis, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.SessionID, rec.TurnID, rec.Role, rec.Content, rec.Analysis, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// LoadSession returns a session's archived turns in chronological order.
func (s *LibSQLTranscriptStore) LoadSession(ctx context.Context, sessionID string) ([]ports.TurnRecord, error) {
	query := `
		SELECT session_id, turn_id, role, content, analysis, created_at
		FROM transcript_turns
		WHERE session_id = ?
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var recs []ports.TurnRecord
	for rows.Next() {
		var rec ports.TurnRecord
		if err := rows.Scan(&rec.SessionID, &rec.TurnID, &rec.Role, &rec.Content, &rec.Analysis, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return recs, nil
}

var _ ports.TranscriptStore = (*LibSQLTranscriptStore)(nil)
