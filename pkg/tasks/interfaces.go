package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/scholarsys/paperscout/pkg/models"
)

//go:generate mockgen -destination=mock_tasks.go -package=tasks github.com/scholarsys/paperscout/pkg/tasks Store,CostService

// Store contract errors. Every implementation returns these sentinels so
// callers can branch with errors.Is.
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskExists          = errors.New("task already exists")
	ErrTaskAlreadyTerminal = errors.New("task already in a terminal state")
)

// Outcome is the terminal disposition of one task run.
type Outcome struct {
	Status     models.TaskStatus
	Result     json.RawMessage
	Error      string
	ErrorKind  models.ErrorKind
	Attempts   int
	FinishedAt time.Time
}

// Store persists agent tasks. Status transitions must be linearizable:
// concurrent TransitionToProcessing calls on one task admit exactly one
// winner, and terminal states are immutable.
type Store interface {
	Create(ctx context.Context, task *models.AgentTask) error
	Get(ctx context.Context, taskID string) (*models.AgentTask, error)

	// TransitionToProcessing claims a PENDING task. It returns false when
	// the task was already claimed or is terminal.
	TransitionToProcessing(ctx context.Context, taskID string, startedAt time.Time) (bool, error)

	// Finish moves a non-terminal task into outcome.Status. Finishing an
	// already terminal task returns ErrTaskAlreadyTerminal.
	Finish(ctx context.Context, taskID string, outcome Outcome) error

	MarkCancelRequested(ctx context.Context, taskID string) error
	ListByStatus(ctx context.Context, agentID string, status models.TaskStatus, limit int) ([]*models.AgentTask, error)

	// DeleteOlderThan removes terminal tasks finished before cutoff and
	// reports how many rows went away.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CostService meters task execution. Charge runs before a task's first
// attempt and blocks the run when it fails; Record closes the loop after a
// terminal success.
type CostService interface {
	Charge(ctx context.Context, operationType, userID string) error
	Record(ctx context.Context, operationType, userID string, costUnits int, taskID string) error
}
