package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"lantern-hq/lantern/pkg/flags"
)

// SQLiteStore implements Store using SQLite for persistence. It provides
// durable storage suitable for single-instance deployments where flag state
// must survive restarts.
//
// SQLiteStore uses a write-ahead log (WAL) for better concurrent read
// performance. Every table carries an environment column and the store only
// ever reads or writes rows for the environment it was constructed with.
type SQLiteStore struct {
	db          *sql.DB
	environment string
	mu          sync.RWMutex
	closeOnce   sync.Once

	// prepared statements for the hot read path
	getFlagStmt        *sql.Stmt
	getOverrideStmt    *sql.Stmt
	getKillSwitchStmt  *sql.Stmt
	insertFlagStmt     *sql.Stmt
	upsertOverrideStmt *sql.Stmt
	deleteOverrideStmt *sql.Stmt
	upsertSwitchStmt   *sql.Stmt
	listFlagsStmt      *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// Environment is the environment this store is bound to.
	Environment string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a SQLite-backed store with default settings.
func NewSQLiteStore(dbPath, environment string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{
		DBPath:      dbPath,
		Environment: environment,
		BusyTimeout: 5 * time.Second,
	})
}

// NewSQLiteStoreWithConfig creates a SQLite-backed store with custom
// configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Environment == "" {
		return nil, fmt.Errorf("environment cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	db, err := sql.Open("sqlite", sqliteDSN(cfg.DBPath, cfg.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:          db,
		environment: cfg.Environment,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return s, nil
}

// sqliteDSN builds the connection string with WAL mode and a busy timeout.
// The driver only applies pragmas given in _pragma=name(value) form; other
// parameter spellings are silently ignored.
func sqliteDSN(dbPath string, busyTimeout time.Duration) string {
	return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		dbPath, busyTimeout.Milliseconds())
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS flags (
		environment TEXT NOT NULL,
		flag_key TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		default_enabled INTEGER NOT NULL DEFAULT 0,
		owner TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		expires_at INTEGER,
		PRIMARY KEY (environment, flag_key)
	);

	CREATE TABLE IF NOT EXISTS tenant_overrides (
		environment TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		flag_key TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		updated_by TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (environment, tenant_id, flag_key)
	);

	CREATE TABLE IF NOT EXISTS kill_switches (
		environment TEXT NOT NULL,
		flag_key TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		activated_at INTEGER NOT NULL,
		activated_by TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (environment, flag_key)
	);

	CREATE INDEX IF NOT EXISTS idx_flags_expires_at ON flags(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.getFlagStmt, err = s.db.Prepare(`
		SELECT flag_key, description, default_enabled, owner, created_at, expires_at
		FROM flags
		WHERE environment = ? AND flag_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get flag statement: %w", err)
	}

	s.getOverrideStmt, err = s.db.Prepare(`
		SELECT tenant_id, flag_key, enabled, updated_at, updated_by
		FROM tenant_overrides
		WHERE environment = ? AND tenant_id = ? AND flag_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get override statement: %w", err)
	}

	s.getKillSwitchStmt, err = s.db.Prepare(`
		SELECT flag_key, enabled, reason, activated_at, activated_by
		FROM kill_switches
		WHERE environment = ? AND flag_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get kill-switch statement: %w", err)
	}

	s.insertFlagStmt, err = s.db.Prepare(`
		INSERT INTO flags (environment, flag_key, description, default_enabled, owner, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert flag statement: %w", err)
	}

	s.upsertOverrideStmt, err = s.db.Prepare(`
		INSERT INTO tenant_overrides (environment, tenant_id, flag_key, enabled, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (environment, tenant_id, flag_key) DO UPDATE SET
			enabled = excluded.enabled,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert override statement: %w", err)
	}

	s.deleteOverrideStmt, err = s.db.Prepare(`
		DELETE FROM tenant_overrides
		WHERE environment = ? AND tenant_id = ? AND flag_key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete override statement: %w", err)
	}

	s.upsertSwitchStmt, err = s.db.Prepare(`
		INSERT INTO kill_switches (environment, flag_key, enabled, reason, activated_at, activated_by)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (environment, flag_key) DO UPDATE SET
			enabled = excluded.enabled,
			reason = excluded.reason,
			activated_at = excluded.activated_at,
			activated_by = excluded.activated_by
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert kill-switch statement: %w", err)
	}

	s.listFlagsStmt, err = s.db.Prepare(`
		SELECT flag_key, description, default_enabled, owner, created_at, expires_at
		FROM flags
		WHERE environment = ?
		ORDER BY flag_key
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list flags statement: %w", err)
	}

	return nil
}

// GetFlag returns the flag with the given key.
func (s *SQLiteStore) GetFlag(ctx context.Context, flagKey string) (*flags.Flag, error) {
	if flagKey == "" {
		return nil, newError("GetFlag", s.environment, "", flagKey,
			fmt.Errorf("flag key cannot be empty: %w", ErrValidation))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	flag, err := scanFlag(s.getFlagStmt.QueryRowContext(ctx, s.environment, flagKey))
	if err != nil {
		return nil, newError("GetFlag", s.environment, "", flagKey, classifySQLite(err))
	}
	return flag, nil
}

// GetTenantOverride returns the override for (tenantID, flagKey).
func (s *SQLiteStore) GetTenantOverride(ctx context.Context, tenantID, flagKey string) (*flags.TenantOverride, error) {
	if tenantID == "" || flagKey == "" {
		return nil, newError("GetTenantOverride", s.environment, tenantID, flagKey,
			fmt.Errorf("tenant ID and flag key are required: %w", ErrValidation))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		ov        flags.TenantOverride
		enabled   int
		updatedAt int64
	)
	err := s.getOverrideStmt.QueryRowContext(ctx, s.environment, tenantID, flagKey).
		Scan(&ov.TenantID, &ov.FlagKey, &enabled, &updatedAt, &ov.UpdatedBy)
	if err != nil {
		return nil, newError("GetTenantOverride", s.environment, tenantID, flagKey, classifySQLite(err))
	}
	ov.Enabled = enabled != 0
	ov.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &ov, nil
}

// GetKillSwitch returns the kill-switch scoped to flagKey; an empty flagKey
// selects the global switch.
func (s *SQLiteStore) GetKillSwitch(ctx context.Context, flagKey string) (*flags.KillSwitch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		ks          flags.KillSwitch
		enabled     int
		activatedAt int64
	)
	err := s.getKillSwitchStmt.QueryRowContext(ctx, s.environment, flagKey).
		Scan(&ks.FlagKey, &enabled, &ks.Reason, &activatedAt, &ks.ActivatedBy)
	if err != nil {
		return nil, newError("GetKillSwitch", s.environment, "", flagKey, classifySQLite(err))
	}
	ks.Enabled = enabled != 0
	ks.ActivatedAt = time.Unix(activatedAt, 0).UTC()
	return &ks, nil
}

// CreateFlag persists a new flag, failing if the key already exists.
func (s *SQLiteStore) CreateFlag(ctx context.Context, flag *flags.Flag) error {
	if flag == nil || flag.Key == "" {
		return newError("CreateFlag", s.environment, "", "",
			fmt.Errorf("flag with a non-empty key is required: %w", ErrValidation))
	}

	createdAt := flag.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.insertFlagStmt.ExecContext(ctx,
		s.environment,
		flag.Key,
		flag.Description,
		boolToInt(flag.DefaultEnabled),
		flag.Owner,
		createdAt.Unix(),
		nullableUnix(flag.ExpiresAt),
	)
	if err != nil {
		return newError("CreateFlag", s.environment, "", flag.Key, classifySQLite(err))
	}
	return nil
}

// UpdateFlag applies a partial update to an existing flag. The read and
// write run in one transaction; across transactions the semantics remain
// last-writer-wins since no version token is carried.
func (s *SQLiteStore) UpdateFlag(ctx context.Context, flagKey string, update flags.FlagUpdate) error {
	if flagKey == "" {
		return newError("UpdateFlag", s.environment, "", flagKey,
			fmt.Errorf("flag key cannot be empty: %w", ErrValidation))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newError("UpdateFlag", s.environment, "", flagKey, classifySQLite(err))
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT flag_key, description, default_enabled, owner, created_at, expires_at
		FROM flags
		WHERE environment = ? AND flag_key = ?
	`, s.environment, flagKey)

	flag, err := scanFlag(row)
	if err != nil {
		return newError("UpdateFlag", s.environment, "", flagKey, classifySQLite(err))
	}

	applyUpdate(flag, update)

	_, err = tx.ExecContext(ctx, `
		UPDATE flags
		SET description = ?, default_enabled = ?, owner = ?, expires_at = ?
		WHERE environment = ? AND flag_key = ?
	`,
		flag.Description,
		boolToInt(flag.DefaultEnabled),
		flag.Owner,
		nullableUnix(flag.ExpiresAt),
		s.environment,
		flagKey,
	)
	if err != nil {
		return newError("UpdateFlag", s.environment, "", flagKey, classifySQLite(err))
	}

	if err := tx.Commit(); err != nil {
		return newError("UpdateFlag", s.environment, "", flagKey, classifySQLite(err))
	}
	return nil
}

// SetTenantOverride upserts the override for (tenantID, flagKey).
func (s *SQLiteStore) SetTenantOverride(ctx context.Context, tenantID, flagKey string, enabled bool, actor string) error {
	if tenantID == "" || flagKey == "" {
		return newError("SetTenantOverride", s.environment, tenantID, flagKey,
			fmt.Errorf("tenant ID and flag key are required: %w", ErrValidation))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.upsertOverrideStmt.ExecContext(ctx,
		s.environment, tenantID, flagKey, boolToInt(enabled), time.Now().UTC().Unix(), actor)
	if err != nil {
		return newError("SetTenantOverride", s.environment, tenantID, flagKey, classifySQLite(err))
	}
	return nil
}

// DeleteTenantOverride removes the override for (tenantID, flagKey).
func (s *SQLiteStore) DeleteTenantOverride(ctx context.Context, tenantID, flagKey string) error {
	if tenantID == "" || flagKey == "" {
		return newError("DeleteTenantOverride", s.environment, tenantID, flagKey,
			fmt.Errorf("tenant ID and flag key are required: %w", ErrValidation))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.deleteOverrideStmt.ExecContext(ctx, s.environment, tenantID, flagKey)
	if err != nil {
		return newError("DeleteTenantOverride", s.environment, tenantID, flagKey, classifySQLite(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return newError("DeleteTenantOverride", s.environment, tenantID, flagKey,
			fmt.Errorf("override (%s, %s): %w", tenantID, flagKey, ErrNotFound))
	}
	return nil
}

// SetKillSwitch upserts the kill-switch scoped to flagKey (empty for global).
func (s *SQLiteStore) SetKillSwitch(ctx context.Context, flagKey string, enabled bool, reason, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.upsertSwitchStmt.ExecContext(ctx,
		s.environment, flagKey, boolToInt(enabled), reason, time.Now().UTC().Unix(), actor)
	if err != nil {
		return newError("SetKillSwitch", s.environment, "", flagKey, classifySQLite(err))
	}
	return nil
}

// ListFlags returns every flag in the environment.
func (s *SQLiteStore) ListFlags(ctx context.Context) ([]*flags.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.listFlagsStmt.QueryContext(ctx, s.environment)
	if err != nil {
		return nil, newError("ListFlags", s.environment, "", "", classifySQLite(err))
	}
	defer rows.Close()

	var out []*flags.Flag
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, newError("ListFlags", s.environment, "", "", classifySQLite(err))
		}
		out = append(out, flag)
	}
	if err := rows.Err(); err != nil {
		return nil, newError("ListFlags", s.environment, "", "", classifySQLite(err))
	}
	return out, nil
}

// BatchGetFlags returns the subset of the requested flags that exist.
func (s *SQLiteStore) BatchGetFlags(ctx context.Context, flagKeys []string) (map[string]*flags.Flag, error) {
	out := make(map[string]*flags.Flag, len(flagKeys))
	for _, key := range flagKeys {
		flag, err := s.GetFlag(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[key] = flag
	}
	return out, nil
}

// Close closes the database and all prepared statements.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{
			s.getFlagStmt, s.getOverrideStmt, s.getKillSwitchStmt,
			s.insertFlagStmt, s.upsertOverrideStmt, s.deleteOverrideStmt,
			s.upsertSwitchStmt, s.listFlagsStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanFlag reads one flag row.
func scanFlag(row rowScanner) (*flags.Flag, error) {
	var (
		flag      flags.Flag
		enabled   int
		createdAt int64
		expiresAt sql.NullInt64
	)
	err := row.Scan(&flag.Key, &flag.Description, &enabled, &flag.Owner, &createdAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	flag.DefaultEnabled = enabled != 0
	flag.CreatedAt = time.Unix(createdAt, 0).UTC()
	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0).UTC()
		flag.ExpiresAt = &t
	}
	return &flag, nil
}

// classifySQLite wraps driver errors with the matching sentinel so Classify
// sees a uniform taxonomy regardless of backend.
func classifySQLite(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint"):
		return fmt.Errorf("%v: %w", err, ErrConditionalCheckFailed)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "busy"):
		return fmt.Errorf("%v: %w", err, ErrThrottled)
	case strings.Contains(msg, "no such table"), strings.Contains(msg, "unable to open"):
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	case strings.Contains(msg, "readonly"), strings.Contains(msg, "permission denied"):
		return fmt.Errorf("%v: %w", err, ErrAccessDenied)
	default:
		return err
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
