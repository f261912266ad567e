// ABOUTME: Postgres-backed ExecutionRepository/TaskExecutionRepository/WorkflowVersionRepository
// ABOUTME: built on an sqlx.DB-wrapped repository shape, with JSONB columns for Input/Output/Resource

package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	// Driver registration. "pgx" is the default connection path (pgx/v5's
	// native stdlib adapter); "postgres" (lib/pq) is kept available for
	// environments standardized on the classic driver, selected by DriverName.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/ritualflow/engine/pkg/types"
)

// Open connects to dsn using the named SQL driver ("pgx" or "postgres") and
// wraps it in a Store. Callers should call Migrate on the returned *sql.DB
// before first use.
func Open(driverName, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &Store{db: db}, nil
}

// Store implements the execution, task-execution, and version repositories
// against a Postgres database.
type Store struct {
	db *sqlx.DB
}

// DB exposes the underlying *sql.DB, e.g. for Migrate or graceful Close.
func (s *Store) DB() *sql.DB { return s.db.DB }

type executionRow struct {
	ID                string         `db:"id"`
	WorkflowName      string         `db:"workflow_name"`
	WorkflowVersion   string         `db:"workflow_version"`
	ParentExecutionID string         `db:"parent_execution_id"`
	Status            string         `db:"status"`
	Input             []byte         `db:"input"`
	Output            sql.NullString `db:"output"`
	Error             string         `db:"error"`
	StartedAt         sql.NullTime   `db:"started_at"`
	FinishedAt        sql.NullTime   `db:"finished_at"`
}

func (r *executionRow) toRecord() (*types.ExecutionRecord, error) {
	rec := &types.ExecutionRecord{
		ID:                r.ID,
		WorkflowName:      r.WorkflowName,
		WorkflowVersion:   r.WorkflowVersion,
		ParentExecutionID: r.ParentExecutionID,
		Status:            types.ExecutionStatus(r.Status),
		Error:             r.Error,
		StartedAt:         r.StartedAt.Time,
	}
	if len(r.Input) > 0 {
		if err := json.Unmarshal(r.Input, &rec.Input); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
	}
	if r.Output.Valid {
		if err := json.Unmarshal([]byte(r.Output.String), &rec.Output); err != nil {
			return nil, fmt.Errorf("decode output: %w", err)
		}
	}
	if r.FinishedAt.Valid {
		rec.FinishedAt = &r.FinishedAt.Time
	}
	return rec, nil
}

// SaveExecution upserts one ExecutionRecord by ID.
func (s *Store) SaveExecution(rec *types.ExecutionRecord) error {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return types.NewPersistenceError("SaveExecution", "marshal input", err)
	}
	var output []byte
	if rec.Output != nil {
		if output, err = json.Marshal(rec.Output); err != nil {
			return types.NewPersistenceError("SaveExecution", "marshal output", err)
		}
	}

	const q = `
		INSERT INTO executions (id, workflow_name, workflow_version, parent_execution_id, status, input, output, error, started_at, finished_at)
		VALUES (:id, :workflow_name, :workflow_version, :parent_execution_id, :status, :input, :output, :error, :started_at, :finished_at)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			output = EXCLUDED.output,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at`

	_, err = s.db.NamedExec(q, map[string]any{
		"id":                  rec.ID,
		"workflow_name":       rec.WorkflowName,
		"workflow_version":    rec.WorkflowVersion,
		"parent_execution_id": rec.ParentExecutionID,
		"status":              string(rec.Status),
		"input":               input,
		"output":              output,
		"error":               rec.Error,
		"started_at":          rec.StartedAt,
		"finished_at":         rec.FinishedAt,
	})
	if err != nil {
		return types.NewPersistenceError("SaveExecution", "upsert execution", err)
	}
	return nil
}

// GetExecution fetches one ExecutionRecord by ID.
func (s *Store) GetExecution(id string) (*types.ExecutionRecord, error) {
	var row executionRow
	err := s.db.Get(&row, `SELECT id, workflow_name, workflow_version, parent_execution_id, status, input, output, error, started_at, finished_at FROM executions WHERE id = $1`, id)
	if err != nil {
		return nil, types.NewPersistenceError("GetExecution", "execution not found: "+id, err)
	}
	return row.toRecord()
}

// ListExecutions returns every ExecutionRecord for workflowName, newest
// first; an empty workflowName lists across all workflows.
func (s *Store) ListExecutions(workflowName string) ([]*types.ExecutionRecord, error) {
	var rows []executionRow
	var err error
	if workflowName == "" {
		err = s.db.Select(&rows, `SELECT id, workflow_name, workflow_version, parent_execution_id, status, input, output, error, started_at, finished_at FROM executions ORDER BY started_at DESC`)
	} else {
		err = s.db.Select(&rows, `SELECT id, workflow_name, workflow_version, parent_execution_id, status, input, output, error, started_at, finished_at FROM executions WHERE workflow_name = $1 ORDER BY started_at DESC`, workflowName)
	}
	if err != nil {
		return nil, types.NewPersistenceError("ListExecutions", "query executions", err)
	}

	out := make([]*types.ExecutionRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, types.NewPersistenceError("ListExecutions", "decode execution row", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

type taskExecutionRow struct {
	ID          string         `db:"id"`
	ExecutionID string         `db:"execution_id"`
	TaskID      string         `db:"task_id"`
	TaskRef     string         `db:"task_ref"`
	Status      string         `db:"status"`
	Attempt     int            `db:"attempt"`
	Input       sql.NullString `db:"input"`
	Output      sql.NullString `db:"output"`
	Error       string         `db:"error"`
	StartedAt   sql.NullTime   `db:"started_at"`
	FinishedAt  sql.NullTime   `db:"finished_at"`
}

func (r *taskExecutionRow) toRecord() (*types.TaskExecutionRecord, error) {
	rec := &types.TaskExecutionRecord{
		ID:          r.ID,
		ExecutionID: r.ExecutionID,
		TaskID:      r.TaskID,
		TaskRef:     r.TaskRef,
		Status:      types.TaskStatus(r.Status),
		Attempt:     r.Attempt,
		Error:       r.Error,
		StartedAt:   r.StartedAt.Time,
	}
	if r.Input.Valid {
		if err := json.Unmarshal([]byte(r.Input.String), &rec.Input); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
	}
	if r.Output.Valid {
		if err := json.Unmarshal([]byte(r.Output.String), &rec.Output); err != nil {
			return nil, fmt.Errorf("decode output: %w", err)
		}
	}
	if r.FinishedAt.Valid {
		rec.FinishedAt = &r.FinishedAt.Time
	}
	return rec, nil
}

// SaveTaskExecution inserts one TaskExecutionRecord.
func (s *Store) SaveTaskExecution(rec *types.TaskExecutionRecord) error {
	var input, output []byte
	var err error
	if rec.Input != nil {
		if input, err = json.Marshal(rec.Input); err != nil {
			return types.NewPersistenceError("SaveTaskExecution", "marshal input", err)
		}
	}
	if rec.Output != nil {
		if output, err = json.Marshal(rec.Output); err != nil {
			return types.NewPersistenceError("SaveTaskExecution", "marshal output", err)
		}
	}

	const q = `
		INSERT INTO task_executions (id, execution_id, task_id, task_ref, status, attempt, input, output, error, started_at, finished_at)
		VALUES (:id, :execution_id, :task_id, :task_ref, :status, :attempt, :input, :output, :error, :started_at, :finished_at)`

	_, err = s.db.NamedExec(q, map[string]any{
		"id":           rec.ID,
		"execution_id": rec.ExecutionID,
		"task_id":      rec.TaskID,
		"task_ref":     rec.TaskRef,
		"status":       string(rec.Status),
		"attempt":      rec.Attempt,
		"input":        input,
		"output":       output,
		"error":        rec.Error,
		"started_at":   rec.StartedAt,
		"finished_at":  rec.FinishedAt,
	})
	if err != nil {
		return types.NewPersistenceError("SaveTaskExecution", "insert task execution", err)
	}
	return nil
}

// ListTaskExecutions returns every TaskExecutionRecord for one execution, in
// scheduling order.
func (s *Store) ListTaskExecutions(executionID string) ([]*types.TaskExecutionRecord, error) {
	var rows []taskExecutionRow
	err := s.db.Select(&rows, `SELECT id, execution_id, task_id, task_ref, status, attempt, input, output, error, started_at, finished_at FROM task_executions WHERE execution_id = $1 ORDER BY seq`, executionID)
	if err != nil {
		return nil, types.NewPersistenceError("ListTaskExecutions", "query task executions", err)
	}

	out := make([]*types.TaskExecutionRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			return nil, types.NewPersistenceError("ListTaskExecutions", "decode task execution row", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

type workflowVersionRow struct {
	WorkflowName string    `db:"workflow_name"`
	Hash         string    `db:"hash"`
	Resource     []byte    `db:"resource"`
	CreatedAt    sql.NullTime `db:"created_at"`
}

func (r *workflowVersionRow) toVersion() (*types.WorkflowVersion, error) {
	v := &types.WorkflowVersion{WorkflowName: r.WorkflowName, Hash: r.Hash, CreatedAt: r.CreatedAt.Time}
	if err := json.Unmarshal(r.Resource, &v.Resource); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	return v, nil
}

// SaveVersion inserts one WorkflowVersion (idempotent on the
// workflow_name/hash primary key, matching content-hash semantics: the same
// content always maps to the same row).
func (s *Store) SaveVersion(v *types.WorkflowVersion) error {
	resource, err := json.Marshal(v.Resource)
	if err != nil {
		return types.NewPersistenceError("SaveVersion", "marshal resource", err)
	}
	const q = `
		INSERT INTO workflow_versions (workflow_name, hash, resource, created_at)
		VALUES (:workflow_name, :hash, :resource, :created_at)
		ON CONFLICT (workflow_name, hash) DO NOTHING`
	_, err = s.db.NamedExec(q, map[string]any{
		"workflow_name": v.WorkflowName,
		"hash":          v.Hash,
		"resource":      resource,
		"created_at":    v.CreatedAt,
	})
	if err != nil {
		return types.NewPersistenceError("SaveVersion", "insert version", err)
	}
	return nil
}

// GetVersion fetches one WorkflowVersion by workflow name and content hash.
func (s *Store) GetVersion(workflowName, hash string) (*types.WorkflowVersion, error) {
	var row workflowVersionRow
	err := s.db.Get(&row, `SELECT workflow_name, hash, resource, created_at FROM workflow_versions WHERE workflow_name = $1 AND hash = $2`, workflowName, hash)
	if err != nil {
		return nil, types.NewPersistenceError("GetVersion", "version not found: "+workflowName+"@"+hash, err)
	}
	return row.toVersion()
}

// ListVersions returns every stored WorkflowVersion for workflowName, oldest
// first.
func (s *Store) ListVersions(workflowName string) ([]*types.WorkflowVersion, error) {
	var rows []workflowVersionRow
	err := s.db.Select(&rows, `SELECT workflow_name, hash, resource, created_at FROM workflow_versions WHERE workflow_name = $1 ORDER BY created_at ASC`, workflowName)
	if err != nil {
		return nil, types.NewPersistenceError("ListVersions", "query versions", err)
	}
	out := make([]*types.WorkflowVersion, 0, len(rows))
	for i := range rows {
		v, err := rows[i].toVersion()
		if err != nil {
			return nil, types.NewPersistenceError("ListVersions", "decode version row", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// LatestVersion returns the most recently created WorkflowVersion for
// workflowName.
func (s *Store) LatestVersion(workflowName string) (*types.WorkflowVersion, error) {
	var row workflowVersionRow
	err := s.db.Get(&row, `SELECT workflow_name, hash, resource, created_at FROM workflow_versions WHERE workflow_name = $1 ORDER BY created_at DESC LIMIT 1`, workflowName)
	if err != nil {
		return nil, types.NewPersistenceError("LatestVersion", "no versions recorded for "+workflowName, err)
	}
	return row.toVersion()
}
