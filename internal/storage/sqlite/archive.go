// Package sqlite archives finished orchestrations in an SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AltairaLabs/agent-router/internal/orchestrator"
)

// ErrNotFound is returned when no archived task matches
var ErrNotFound = errors.New("archived task not found")

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id       TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	task_type     TEXT NOT NULL,
	primary_agent TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME NOT NULL,
	result_json   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_session ON tasks(session_id, finished_at);

CREATE TABLE IF NOT EXISTS outcomes (
	task_id  TEXT NOT NULL REFERENCES tasks(task_id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	agent    TEXT NOT NULL,
	role     TEXT NOT NULL,
	status   TEXT NOT NULL,
	attempts INTEGER NOT NULL,
	error    TEXT,
	PRIMARY KEY (task_id, position)
);
CREATE INDEX IF NOT EXISTS idx_outcomes_agent ON outcomes(agent, status);
`

// Archive stores finished orchestrations. It implements orchestrator.Archiver.
type Archive struct {
	conn *sql.DB
	path string
}

// Open opens or creates the archive at path, creating parent directories.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	return &Archive{conn: conn, path: path}, nil
}

// Path returns the database file path
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database
func (a *Archive) Close() error {
	return a.conn.Close()
}

// Archive records a finished orchestration, replacing any previous record of the task
func (a *Archive) Archive(ctx context.Context, result *orchestrator.Result) error {
	blob, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	tx, err := a.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM outcomes WHERE task_id = ?`, result.TaskID); err != nil {
		return fmt.Errorf("clear outcomes: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO tasks
			(task_id, session_id, task_type, primary_agent, status, started_at, finished_at, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.TaskID,
		result.SessionID,
		string(result.Decision.TaskType),
		string(result.Decision.Primary),
		string(result.Status),
		result.StartedAt.UTC(),
		result.FinishedAt.UTC(),
		string(blob),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	for i, o := range result.Outcomes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO outcomes (task_id, position, agent, role, status, attempts, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			result.TaskID, i, string(o.Agent), o.Role, string(o.Status), o.Attempts, nullString(o.Error),
		)
		if err != nil {
			return fmt.Errorf("insert outcome %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Get returns the archived result of a task
func (a *Archive) Get(ctx context.Context, taskID string) (*orchestrator.Result, error) {
	var blob string
	err := a.conn.QueryRowContext(ctx, `SELECT result_json FROM tasks WHERE task_id = ?`, taskID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return decode(blob)
}

// ListBySession returns the most recent archived results of a session, newest first
func (a *Archive) ListBySession(ctx context.Context, sessionID string, limit int) ([]*orchestrator.Result, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := a.conn.QueryContext(ctx, `
		SELECT result_json FROM tasks
		WHERE session_id = ?
		ORDER BY finished_at DESC, task_id
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query session tasks: %w", err)
	}
	defer rows.Close()

	var out []*orchestrator.Result
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		r, err := decode(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FailureCounts returns how many rejected outcomes each agent has accumulated
func (a *Archive) FailureCounts(ctx context.Context) (map[string]int, error) {
	rows, err := a.conn.QueryContext(ctx, `
		SELECT agent, COUNT(*) FROM outcomes
		WHERE status = ?
		GROUP BY agent`, string(orchestrator.Rejected))
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var agent string
		var n int
		if err := rows.Scan(&agent, &n); err != nil {
			return nil, fmt.Errorf("scan failures: %w", err)
		}
		counts[agent] = n
	}
	return counts, rows.Err()
}

func decode(blob string) (*orchestrator.Result, error) {
	var r orchestrator.Result
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	r.Decision.EstimatedDuration = time.Duration(r.Decision.EstimatedSeconds) * time.Second
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
