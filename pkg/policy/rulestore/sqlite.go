package rulestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/obutuz/swarmshield-sub004/pkg/policy"
	"github.com/obutuz/swarmshield-sub004/pkg/policy/detection"
)

// SQLiteBackend implements Backend on SQLite. Rule configuration documents
// are stored as JSON text and are only validated when the orchestrator
// compiles them, so a malformed row degrades that one rule.
type SQLiteBackend struct {
	db        *sql.DB
	dbPath    string
	closeOnce sync.Once
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend opens (and if needed creates) a rule database.
func NewSQLiteBackend(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{db: db, dbPath: cfg.DBPath}
	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return backend, nil
}

func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS policy_rules (
		id TEXT NOT NULL,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		rule_type TEXT NOT NULL,
		action TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		enabled INTEGER NOT NULL DEFAULT 1,
		config TEXT NOT NULL DEFAULT '{}',
		filters TEXT NOT NULL DEFAULT '{}',
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (workspace_id, id),
		UNIQUE (workspace_id, name)
	);

	CREATE TABLE IF NOT EXISTS detection_rules (
		id TEXT NOT NULL,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		detection_type TEXT NOT NULL,
		pattern TEXT NOT NULL DEFAULT '',
		keywords TEXT NOT NULL DEFAULT '[]',
		severity TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		enabled INTEGER NOT NULL DEFAULT 1,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (workspace_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_policy_rules_workspace ON policy_rules(workspace_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ListWorkspaces implements Backend.
func (s *SQLiteBackend) ListWorkspaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workspace_id FROM policy_rules
		UNION
		SELECT workspace_id FROM detection_rules
		ORDER BY 1`)
	if err != nil {
		return nil, &StorageError{Op: "list workspaces", Cause: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ws string
		if err := rows.Scan(&ws); err != nil {
			return nil, &StorageError{Op: "list workspaces", Cause: err}
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// ListPolicyRules implements Backend.
func (s *SQLiteBackend) ListPolicyRules(ctx context.Context, workspaceID string) ([]*policy.PolicyRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, rule_type, action, priority, enabled, config, filters, updated_at
		FROM policy_rules WHERE workspace_id = ? ORDER BY name`, workspaceID)
	if err != nil {
		return nil, &StorageError{Op: "list policy rules", Cause: err}
	}
	defer rows.Close()

	var out []*policy.PolicyRule
	for rows.Next() {
		var (
			r          policy.PolicyRule
			enabled    int
			config     string
			filters    string
			updatedAt  int64
			ruleType   string
			actionName string
		)
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Name, &ruleType, &actionName, &r.Priority, &enabled, &config, &filters, &updatedAt); err != nil {
			return nil, &StorageError{Op: "list policy rules", Cause: err}
		}
		r.RuleType = policy.RuleType(ruleType)
		r.Action = policy.Action(actionName)
		r.Enabled = enabled != 0
		r.UpdatedAt = time.Unix(0, updatedAt).UTC()

		// A corrupt document leaves Config nil; the rule then fails validation
		// at compile time and never violates.
		if err := decodeJSON(config, &r.Config); err != nil {
			r.Config = nil
		}
		_ = decodeJSON(filters, &r.Filters)

		out = append(out, &r)
	}
	return out, rows.Err()
}

// ListDetectionRules implements Backend.
func (s *SQLiteBackend) ListDetectionRules(ctx context.Context, workspaceID string) ([]*detection.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, name, detection_type, pattern, keywords, severity, category, enabled, updated_at
		FROM detection_rules WHERE workspace_id = ? ORDER BY id`, workspaceID)
	if err != nil {
		return nil, &StorageError{Op: "list detection rules", Cause: err}
	}
	defer rows.Close()

	var out []*detection.Rule
	for rows.Next() {
		var (
			r         detection.Rule
			dtype     string
			keywords  string
			enabled   int
			updatedAt int64
		)
		if err := rows.Scan(&r.ID, &r.WorkspaceID, &r.Name, &dtype, &r.Pattern, &keywords, &r.Severity, &r.Category, &enabled, &updatedAt); err != nil {
			return nil, &StorageError{Op: "list detection rules", Cause: err}
		}
		r.DetectionType = detection.DetectionType(dtype)
		r.Enabled = enabled != 0
		r.UpdatedAt = time.Unix(0, updatedAt).UTC()
		_ = decodeJSON(keywords, &r.Keywords)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// SavePolicyRule implements Backend.
func (s *SQLiteBackend) SavePolicyRule(ctx context.Context, rule *policy.PolicyRule) error {
	if err := validatePolicyRule(rule); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.UpdatedAt = time.Now().UTC()

	config, err := json.Marshal(rule.Config)
	if err != nil {
		return fmt.Errorf("%w: config is not JSON-encodable: %v", ErrInvalidRule, err)
	}
	filters, err := json.Marshal(rule.Filters)
	if err != nil {
		return fmt.Errorf("%w: filters are not JSON-encodable: %v", ErrInvalidRule, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "save policy rule", Cause: err}
	}
	defer tx.Rollback()

	// Name uniqueness: a different rule holding the name is replaced.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM policy_rules WHERE workspace_id = ? AND name = ? AND id <> ?`,
		rule.WorkspaceID, rule.Name, rule.ID); err != nil {
		return &StorageError{Op: "save policy rule", Cause: err}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO policy_rules (id, workspace_id, name, rule_type, action, priority, enabled, config, filters, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, id) DO UPDATE SET
			name = excluded.name,
			rule_type = excluded.rule_type,
			action = excluded.action,
			priority = excluded.priority,
			enabled = excluded.enabled,
			config = excluded.config,
			filters = excluded.filters,
			updated_at = excluded.updated_at`,
		rule.ID, rule.WorkspaceID, rule.Name, string(rule.RuleType), string(rule.Action),
		rule.Priority, boolToInt(rule.Enabled), string(config), string(filters), rule.UpdatedAt.UnixNano(),
	); err != nil {
		return &StorageError{Op: "save policy rule", Cause: err}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "save policy rule", Cause: err}
	}
	return nil
}

// SaveDetectionRule implements Backend.
func (s *SQLiteBackend) SaveDetectionRule(ctx context.Context, rule *detection.Rule) error {
	if err := validateDetectionRule(rule); err != nil {
		return err
	}
	rule.UpdatedAt = time.Now().UTC()

	keywords, err := json.Marshal(rule.Keywords)
	if err != nil {
		return fmt.Errorf("%w: keywords are not JSON-encodable: %v", ErrInvalidRule, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO detection_rules (id, workspace_id, name, detection_type, pattern, keywords, severity, category, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (workspace_id, id) DO UPDATE SET
			name = excluded.name,
			detection_type = excluded.detection_type,
			pattern = excluded.pattern,
			keywords = excluded.keywords,
			severity = excluded.severity,
			category = excluded.category,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		rule.ID, rule.WorkspaceID, rule.Name, string(rule.DetectionType), rule.Pattern, string(keywords),
		rule.Severity, rule.Category, boolToInt(rule.Enabled), rule.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return &StorageError{Op: "save detection rule", Cause: err}
	}
	return nil
}

// DeletePolicyRule implements Backend.
func (s *SQLiteBackend) DeletePolicyRule(ctx context.Context, workspaceID, ruleID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM policy_rules WHERE workspace_id = ? AND id = ?`, workspaceID, ruleID)
	if err != nil {
		return &StorageError{Op: "delete policy rule", Cause: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: "delete policy rule", Cause: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Backend.
func (s *SQLiteBackend) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return errors.New("empty document")
	}
	return json.Unmarshal([]byte(s), v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
