/*
 * Copyright 2025 Scholarsys Labs.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/tasks"
)

const uniqueViolationCode = "23505"

// The status literals in these statements mirror models.TaskStatus; the
// NOT IN lists are the terminal set.
const (
	insertTaskSQL = `
INSERT INTO agent_tasks (
	task_id,
	agent_id,
	user_id,
	input,
	status,
	attempts,
	cancel_requested,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`

	getTaskSQL = `
SELECT task_id,
       agent_id,
       user_id,
       input,
       status,
       result,
       error,
       error_kind,
       attempts,
       cancel_requested,
       created_at,
       started_at,
       finished_at
FROM agent_tasks
WHERE task_id = $1`

	claimTaskSQL = `
UPDATE agent_tasks
SET status = 'processing', started_at = $2
WHERE task_id = $1 AND status = 'pending'`

	finishTaskSQL = `
UPDATE agent_tasks
SET status = $2,
    result = COALESCE($3, result),
    error = $4,
    error_kind = $5,
    attempts = CASE WHEN $6 > 0 THEN $6 ELSE attempts END,
    finished_at = $7
WHERE task_id = $1 AND status IN ('pending', 'processing')`

	markCancelRequestedSQL = `
UPDATE agent_tasks
SET cancel_requested = TRUE
WHERE task_id = $1 AND status NOT IN ('completed', 'failed', 'timed_out', 'cancelled')`

	listTasksByStatusSQL = `
SELECT task_id,
       agent_id,
       user_id,
       input,
       status,
       result,
       error,
       error_kind,
       attempts,
       cancel_requested,
       created_at,
       started_at,
       finished_at
FROM agent_tasks
WHERE ($1 = '' OR agent_id = $1) AND status = $2
ORDER BY created_at
LIMIT $3`

	deleteFinishedBeforeSQL = `
DELETE FROM agent_tasks
WHERE finished_at IS NOT NULL AND finished_at < $1`
)

var errTaskIDRequired = errors.New("task id is required")

// TaskStore is the Postgres implementation of tasks.Store. Claim and finish
// are conditional UPDATEs, so the contract's single-winner and
// immutable-terminal guarantees hold across processes.
type TaskStore struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

var _ tasks.Store = (*TaskStore)(nil)

// NewTaskStore builds a task store over pool.
func NewTaskStore(pool *pgxpool.Pool, log logger.Logger) *TaskStore {
	return &TaskStore{
		pool:   pool,
		logger: log.WithComponent("taskstore"),
	}
}

// Create stores a new task row.
func (s *TaskStore) Create(ctx context.Context, task *models.AgentTask) error {
	args, err := buildInsertTaskArgs(task)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, insertTaskSQL, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: %s", tasks.ErrTaskExists, task.TaskID)
		}

		return fmt.Errorf("%w task: %w", ErrFailedToInsert, err)
	}

	return nil
}

// Get returns the task record.
func (s *TaskStore) Get(ctx context.Context, taskID string) (*models.AgentTask, error) {
	task, err := scanAgentTask(s.pool.QueryRow(ctx, getTaskSQL, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", tasks.ErrTaskNotFound, taskID)
		}

		return nil, fmt.Errorf("%w task: %w", ErrFailedToQuery, err)
	}

	return task, nil
}

// TransitionToProcessing claims a PENDING task. The conditional UPDATE admits
// exactly one winner.
func (s *TaskStore) TransitionToProcessing(ctx context.Context, taskID string, startedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, claimTaskSQL, taskID, startedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("%w claim task: %w", ErrFailedToQuery, err)
	}

	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Zero rows means claimed already, terminal, or missing; only the last
	// is an error.
	if _, err := s.Get(ctx, taskID); err != nil {
		return false, err
	}

	return false, nil
}

// Finish moves a non-terminal task into outcome.Status.
func (s *TaskStore) Finish(ctx context.Context, taskID string, outcome tasks.Outcome) error {
	if !outcome.Status.IsTerminal() {
		return fmt.Errorf("finish requires a terminal status, got %q", outcome.Status)
	}

	tag, err := s.pool.Exec(ctx, finishTaskSQL,
		taskID,
		string(outcome.Status),
		normalizeRawJSON(outcome.Result),
		outcome.Error,
		string(outcome.ErrorKind),
		outcome.Attempts,
		sanitizeTime(outcome.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("%w finish task: %w", ErrFailedToQuery, err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	task, err := s.Get(ctx, taskID)
	if err != nil {
		return err
	}

	return fmt.Errorf("%w: %s is %s", tasks.ErrTaskAlreadyTerminal, taskID, task.Status)
}

// MarkCancelRequested flags a running task for cooperative cancellation.
// Flagging a terminal task is a no-op.
func (s *TaskStore) MarkCancelRequested(ctx context.Context, taskID string) error {
	tag, err := s.pool.Exec(ctx, markCancelRequestedSQL, taskID)
	if err != nil {
		return fmt.Errorf("%w mark cancel: %w", ErrFailedToQuery, err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = s.Get(ctx, taskID)

	return err
}

// ListByStatus returns tasks in the given status ordered by creation time,
// oldest first. An empty agentID matches every agent; limit <= 0 means no
// limit.
func (s *TaskStore) ListByStatus(ctx context.Context, agentID string, status models.TaskStatus, limit int) ([]*models.AgentTask, error) {
	rows, err := s.pool.Query(ctx, listTasksByStatusSQL, agentID, string(status), nullableLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w tasks by status: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var out []*models.AgentTask

	for rows.Next() {
		task, err := scanAgentTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%w task row: %w", ErrFailedToScan, err)
		}

		out = append(out, task)
	}

	return out, rows.Err()
}

// DeleteOlderThan removes terminal tasks that finished before cutoff.
func (s *TaskStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteFinishedBeforeSQL, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w delete finished tasks: %w", ErrFailedToQuery, err)
	}

	return tag.RowsAffected(), nil
}

func buildInsertTaskArgs(task *models.AgentTask) ([]interface{}, error) {
	if task == nil || task.TaskID == "" {
		return nil, errTaskIDRequired
	}

	status := task.Status
	if status == "" {
		status = models.TaskStatusPending
	}

	return []interface{}{
		task.TaskID,
		task.AgentID,
		task.UserID,
		normalizeRawJSON(task.Input),
		string(status),
		task.Attempts,
		task.CancelRequested,
		sanitizeTime(task.CreatedAt),
	}, nil
}

func scanAgentTask(row pgx.Row) (*models.AgentTask, error) {
	var (
		task      models.AgentTask
		status    string
		errorKind string
	)

	err := row.Scan(
		&task.TaskID,
		&task.AgentID,
		&task.UserID,
		&task.Input,
		&status,
		&task.Result,
		&task.Error,
		&errorKind,
		&task.Attempts,
		&task.CancelRequested,
		&task.CreatedAt,
		&task.StartedAt,
		&task.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = models.TaskStatus(status)
	task.ErrorKind = models.ErrorKind(errorKind)

	return &task, nil
}

func nullableLimit(limit int) interface{} {
	if limit <= 0 {
		return nil
	}

	return limit
}
