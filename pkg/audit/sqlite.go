package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteSink persists audit events to a SQLite database file. The audit
// trail is append-only; nothing in this package deletes events.
type SQLiteSink struct {
	db         *sql.DB
	mu         sync.Mutex
	closeOnce  sync.Once
	appendStmt *sql.Stmt
	listStmt   *sql.Stmt
}

// NewSQLiteSink opens (creating if necessary) the audit database at dbPath.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// Single writer; the recorder worker is the only appender.
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{db: db}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare audit statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteSink) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		environment TEXT NOT NULL,
		flag_key TEXT NOT NULL DEFAULT '',
		tenant_id TEXT NOT NULL DEFAULT '',
		actor TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_events(created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_flag_key ON audit_events(flag_key);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteSink) prepareStatements() error {
	var err error

	s.appendStmt, err = s.db.Prepare(`
		INSERT INTO audit_events (id, action, environment, flag_key, tenant_id, actor, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare append statement: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT id, action, environment, flag_key, tenant_id, actor, detail, created_at
		FROM audit_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	return nil
}

// Append persists one event.
func (s *SQLiteSink) Append(ctx context.Context, event *Event) error {
	if event == nil || event.ID == "" {
		return fmt.Errorf("event with an ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.appendStmt.ExecContext(ctx,
		event.ID,
		string(event.Action),
		event.Environment,
		event.FlagKey,
		event.TenantID,
		event.Actor,
		event.Detail,
		event.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// List returns up to limit events, newest first.
func (s *SQLiteSink) List(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.listStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var (
			event     Event
			action    string
			createdAt int64
		)
		if err := rows.Scan(&event.ID, &action, &event.Environment, &event.FlagKey,
			&event.TenantID, &event.Actor, &event.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		event.Action = Action(action)
		event.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &event)
	}
	return out, rows.Err()
}

// Close closes the database and prepared statements.
func (s *SQLiteSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.appendStmt != nil {
			s.appendStmt.Close()
		}
		if s.listStmt != nil {
			s.listStmt.Close()
		}
		err = s.db.Close()
	})
	return err
}
