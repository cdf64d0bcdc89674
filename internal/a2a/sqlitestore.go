package a2a

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Compile-time interface check.
var _ TaskStore = (*SQLiteTaskStore)(nil)

// SQLiteTaskStore is a TaskStore backed by an SQLite database, so a stage's
// task history survives restarts. Each task is stored as a JSON document
// alongside the columns List filters on.
type SQLiteTaskStore struct {
	conn *sql.DB
	mu   sync.Mutex // serializes read-modify-write in Update
}

const taskSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	context_id TEXT NOT NULL,
	state      TEXT NOT NULL,
	body       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_context ON tasks(context_id);
`

// OpenSQLiteTaskStore opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway store.
func OpenSQLiteTaskStore(path string) (*SQLiteTaskStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	conn.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if _, err := conn.Exec(taskSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create tasks table: %w", err)
	}

	return &SQLiteTaskStore{conn: conn}, nil
}

// Close closes the database connection.
func (s *SQLiteTaskStore) Close() error {
	return s.conn.Close()
}

// Create inserts a new task.
func (s *SQLiteTaskStore) Create(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO tasks (id, context_id, state, body) VALUES (?, ?, ?, ?)`,
		task.ID, task.ContextID, string(task.Status.State), string(body))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("task %q already exists", task.ID)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Get loads the task with the given ID.
func (s *SQLiteTaskStore) Get(ctx context.Context, id string) (*Task, error) {
	return getTask(ctx, s.conn, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTask(ctx context.Context, q queryer, id string) (*Task, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM tasks WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %q: %w", id, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	var t Task
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return nil, fmt.Errorf("decode task %q: %w", id, err)
	}
	return &t, nil
}

// Update loads the task, applies fn, and writes it back in one transaction.
func (s *SQLiteTaskStore) Update(ctx context.Context, id string, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := getTask(ctx, tx, id)
	if err != nil {
		return err
	}
	fn(t)

	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET context_id = ?, state = ?, body = ? WHERE id = ?`,
		t.ContextID, string(t.Status.State), string(body), id); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return tx.Commit()
}

// List returns tasks in insertion order with the same filter and pagination
// semantics as MemoryTaskStore.List.
func (s *SQLiteTaskStore) List(ctx context.Context, filter ListTasksRequest) (*ListTasksResponse, error) {
	where := []string{"1=1"}
	var args []any
	if filter.ContextID != "" {
		where = append(where, "context_id = ?")
		args = append(args, filter.ContextID)
	}
	if filter.Status != "" {
		where = append(where, "state = ?")
		args = append(args, filter.Status)
	}
	cond := strings.Join(where, " AND ")

	var totalSize int
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE `+cond, args...).Scan(&totalSize); err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}

	var after int64
	if filter.PageToken != "" {
		err := s.conn.QueryRowContext(ctx,
			`SELECT seq FROM tasks WHERE id = ?`, filter.PageToken).Scan(&after)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invalid page token %q", filter.PageToken)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve page token: %w", err)
		}
	}

	query := `SELECT body FROM tasks WHERE ` + cond + ` AND seq > ? ORDER BY seq`
	pageArgs := append(append([]any{}, args...), after)
	if filter.PageSize > 0 {
		// Fetch one extra row to learn whether another page follows.
		query += ` LIMIT ?`
		pageArgs = append(pageArgs, filter.PageSize+1)
	}

	rows, err := s.conn.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		var t Task
		if err := json.Unmarshal([]byte(body), &t); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var next string
	if filter.PageSize > 0 && len(tasks) > filter.PageSize {
		tasks = tasks[:filter.PageSize]
		next = tasks[len(tasks)-1].ID
	}

	return &ListTasksResponse{
		Tasks:         tasks,
		TotalSize:     totalSize,
		NextPageToken: next,
	}, nil
}
