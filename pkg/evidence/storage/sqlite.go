package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/obutuz/swarmshield-sub004/pkg/evidence"
	"github.com/obutuz/swarmshield-sub004/pkg/evidence/query"
	"github.com/obutuz/swarmshield-sub004/pkg/policy"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// WALMode enables write-ahead logging so queries do not block the
	// recorder. Default: true
	WALMode bool

	// BusyTimeout is how long a connection waits on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/verdicts.db",
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

const recordColumns = `id, event_id, workspace_id, agent_id, event_type, source_ip,
	action, violations, rules_evaluated, short_circuited, duration_ns,
	content_hash, content_size, evaluated_at, recorded_at`

// SQLiteStorage implements evidence.Storage on SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the database and applies the
// schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 4
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "evidence.storage.sqlite")

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", config.Path, config.BusyTimeout.Milliseconds())
	if config.WALMode {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStorage{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return evidence.NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return evidence.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return evidence.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return evidence.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Store persists a verdict record.
func (s *SQLiteStorage) Store(ctx context.Context, record *evidence.VerdictRecord) error {
	violations := record.Violations
	if violations == nil {
		violations = []policy.Violation{}
	}
	encoded, err := json.Marshal(violations)
	if err != nil {
		return evidence.NewStorageError("sqlite", "store", fmt.Errorf("failed to encode violations: %w", err))
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verdicts (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, nullable(record.EventID), record.WorkspaceID, nullable(record.AgentID),
		nullable(record.EventType), nullable(record.SourceIP),
		string(record.Action), string(encoded), record.RulesEvaluated, record.ShortCircuited,
		int64(record.Duration), nullable(record.ContentHash), record.ContentSize,
		record.EvaluatedAt.UnixNano(), record.RecordedAt.UnixNano(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return evidence.NewStorageError("sqlite", "store", fmt.Errorf("%w: %s", evidence.ErrDuplicateRecord, record.ID))
		}
		return evidence.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns matching records.
func (s *SQLiteStorage) Query(ctx context.Context, q *evidence.Query) ([]*evidence.VerdictRecord, error) {
	if err := query.Validate(q); err != nil {
		return nil, err
	}
	applied := *q
	query.ApplyDefaults(&applied)

	where, args := buildWhereClause(&applied)
	stmt := "SELECT " + recordColumns + " FROM verdicts" + where +
		" ORDER BY recorded_at " + strings.ToUpper(applied.SortOrder) + ", id " + strings.ToUpper(applied.SortOrder) +
		" LIMIT ? OFFSET ?"
	args = append(args, applied.Limit, applied.Offset)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := make([]*evidence.VerdictRecord, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, evidence.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, evidence.NewStorageError("sqlite", "query", err)
	}
	return records, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, q *evidence.Query) (int64, error) {
	if err := query.Validate(q); err != nil {
		return 0, err
	}
	where, args := buildWhereClause(q)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM verdicts"+where, args...).Scan(&count); err != nil {
		return 0, evidence.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes matching records. Pagination is ignored.
func (s *SQLiteStorage) Delete(ctx context.Context, q *evidence.Query) (int64, error) {
	if err := query.Validate(q); err != nil {
		return 0, err
	}
	where, args := buildWhereClause(q)

	result, err := s.db.ExecContext(ctx, "DELETE FROM verdicts"+where, args...)
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, evidence.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return evidence.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

// buildWhereClause returns " WHERE ..." (or "") and its arguments.
func buildWhereClause(q *evidence.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.StartTime != nil {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "recorded_at < ?")
		args = append(args, q.EndTime.UnixNano())
	}
	if q.WorkspaceID != "" {
		conditions = append(conditions, "workspace_id = ?")
		args = append(args, q.WorkspaceID)
	}
	if q.AgentID != "" {
		conditions = append(conditions, "agent_id = ?")
		args = append(args, q.AgentID)
	}
	if q.EventID != "" {
		conditions = append(conditions, "event_id = ?")
		args = append(args, q.EventID)
	}
	if q.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, string(q.Action))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*evidence.VerdictRecord, error) {
	var (
		record                                      evidence.VerdictRecord
		eventID, agentID, eventType, sourceIP, hash sql.NullString
		action, violations                          string
		durationNs, evaluatedAt, recordedAt         int64
	)
	err := rows.Scan(
		&record.ID, &eventID, &record.WorkspaceID, &agentID, &eventType, &sourceIP,
		&action, &violations, &record.RulesEvaluated, &record.ShortCircuited, &durationNs,
		&hash, &record.ContentSize, &evaluatedAt, &recordedAt,
	)
	if err != nil {
		return nil, err
	}

	record.EventID = eventID.String
	record.AgentID = agentID.String
	record.EventType = eventType.String
	record.SourceIP = sourceIP.String
	record.ContentHash = hash.String
	record.Action = policy.Action(action)
	record.Duration = time.Duration(durationNs)
	record.EvaluatedAt = time.Unix(0, evaluatedAt).UTC()
	record.RecordedAt = time.Unix(0, recordedAt).UTC()

	if err := json.Unmarshal([]byte(violations), &record.Violations); err != nil {
		return nil, fmt.Errorf("failed to decode violations of %s: %w", record.ID, err)
	}
	return &record, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
