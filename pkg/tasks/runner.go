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

// Package tasks is the durable substrate every discovery run executes in:
// create a PENDING record, claim it exactly once, run the task body under a
// deadline with transient-only retries, and land in exactly one terminal
// state. The substrate never imports the orchestration layers above it; the
// work arrives as a plain function.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

const (
	// DefaultTaskTimeout bounds one run end to end, retries included.
	DefaultTaskTimeout = 10 * time.Minute

	// DefaultMaxAttempts caps how many times a task body runs per task.
	DefaultMaxAttempts = 3

	// DefaultCostUnits is recorded per completed task when the config does
	// not say otherwise.
	DefaultCostUnits = 1

	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMultiplier      = 2
	retryJitter          = 0.25

	awaitInitialInterval = 50 * time.Millisecond
	awaitMaxInterval     = time.Second
)

var errTaskStillRunning = errors.New("task still running")

// TaskFunc is the unit of work a task executes. The context carries the
// per-task deadline and is cancelled when the task is cancelled.
type TaskFunc func(ctx context.Context) (json.RawMessage, error)

// Config shapes how a Runner executes tasks.
type Config struct {
	// OperationType is the billing operation reported to the cost service.
	OperationType string `json:"operation_type"`
	// CostUnits is the amount recorded per completed task.
	CostUnits int `json:"cost_units"`
	// TaskTimeout bounds one run, retries and waits included.
	TaskTimeout time.Duration `json:"task_timeout"`
	// MaxAttempts caps task body executions within one run.
	MaxAttempts uint `json:"max_attempts"`
}

func (c Config) withDefaults() Config {
	if c.OperationType == "" {
		c.OperationType = "agent_task"
	}

	if c.CostUnits <= 0 {
		c.CostUnits = DefaultCostUnits
	}

	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}

	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}

	return c
}

// Runner drives tasks through their lifecycle. It is safe for concurrent
// use; concurrent Run calls on the same task admit exactly one executor.
type Runner struct {
	store        Store
	costs        CostService
	metrics      Metrics
	logger       logger.Logger
	config       Config
	now          func() time.Time
	retryInitial time.Duration

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// WithRetryInterval overrides the base retry delay. Intended for tests.
func WithRetryInterval(initial time.Duration) RunnerOption {
	return func(r *Runner) {
		r.retryInitial = initial
	}
}

// NewRunner builds a runner over the given store. costs may be nil, which
// disables metering; metrics may be nil, which disables collection.
func NewRunner(store Store, costs CostService, m Metrics, log logger.Logger, config Config, opts ...RunnerOption) *Runner {
	if m == nil {
		m = &NoOpMetrics{}
	}

	r := &Runner{
		store:        store,
		costs:        costs,
		metrics:      m,
		logger:       log.WithComponent("tasks"),
		config:       config.withDefaults(),
		now:          time.Now,
		retryInitial: retryInitialInterval,
		running:      make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Create stores a new PENDING task and returns its id.
func (r *Runner) Create(ctx context.Context, agentID, userID string, input json.RawMessage) (string, error) {
	task := &models.AgentTask{
		TaskID:    uuid.NewString(),
		AgentID:   agentID,
		UserID:    userID,
		Input:     input,
		Status:    models.TaskStatusPending,
		CreatedAt: r.now(),
	}

	if err := r.store.Create(ctx, task); err != nil {
		return "", err
	}

	r.metrics.RecordTaskCreated(agentID)

	r.logger.Debug().
		Str("task_id", task.TaskID).
		Str("agent_id", agentID).
		Str("user_id", userID).
		Msg("Task created")

	return task.TaskID, nil
}

// Run claims taskID and executes fn under the runner's retry policy and
// timeout. It is idempotent by task id: when the task was already claimed,
// the current record is returned and fn never runs. Errors from fn become
// terminal task states; only scheduler faults (store failures, unknown
// tasks) surface as errors.
func (r *Runner) Run(ctx context.Context, taskID string, fn TaskFunc) (*models.AgentTask, error) {
	claimedAt := r.now()

	claimed, err := r.store.TransitionToProcessing(ctx, taskID, claimedAt)
	if err != nil {
		return nil, err
	}

	task, err := r.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !claimed {
		r.logger.Debug().
			Str("task_id", taskID).
			Str("status", string(task.Status)).
			Msg("Task already claimed, returning current state")

		return task, nil
	}

	r.metrics.RecordTaskStarted(task.AgentID, claimedAt.Sub(task.CreatedAt))

	if r.costs != nil {
		if chargeErr := r.costs.Charge(ctx, r.config.OperationType, task.UserID); chargeErr != nil {
			kind := models.KindOf(chargeErr)

			r.logger.Warn().
				Str("task_id", taskID).
				Str("user_id", task.UserID).
				Str("error_kind", string(kind)).
				Err(chargeErr).
				Msg("Charge refused, task will not run")

			return r.finish(ctx, task, Outcome{
				Status:     models.TaskStatusFailed,
				Error:      chargeErr.Error(),
				ErrorKind:  kind,
				FinishedAt: r.now(),
			})
		}
	}

	return r.finish(ctx, task, r.execute(ctx, task, fn))
}

// execute runs fn with retries until success, a fatal error, exhaustion,
// cancellation, or the task deadline.
func (r *Runner) execute(ctx context.Context, task *models.AgentTask, fn TaskFunc) Outcome {
	runCtx, cancel := context.WithTimeout(ctx, r.config.TaskTimeout)
	defer cancel()

	r.trackRunning(task.TaskID, cancel)
	defer r.untrackRunning(task.TaskID)

	attempts := 0

	operation := func() (json.RawMessage, error) {
		attempts++
		if attempts > 1 {
			r.metrics.RecordTaskRetry(task.AgentID)

			r.logger.Debug().
				Str("task_id", task.TaskID).
				Int("attempt", attempts).
				Msg("Retrying task")
		}

		// A cancel may land between the claim and the run context being
		// registered; the flag catches what the signal missed.
		if current, getErr := r.store.Get(runCtx, task.TaskID); getErr == nil && current.CancelRequested {
			return nil, backoff.Permanent(context.Canceled)
		}

		out, fnErr := fn(runCtx)
		if fnErr == nil {
			return out, nil
		}

		if ctxErr := runCtx.Err(); ctxErr != nil {
			return nil, backoff.Permanent(ctxErr)
		}

		if !models.KindOf(fnErr).Transient() {
			return nil, backoff.Permanent(fnErr)
		}

		return nil, fnErr
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.retryInitial
	bo.MaxInterval = retryMaxInterval
	bo.Multiplier = retryMultiplier
	bo.RandomizationFactor = retryJitter

	result, runErr := backoff.Retry(runCtx, operation,
		backoff.WithBackOff(bo), backoff.WithMaxTries(r.config.MaxAttempts))

	outcome := Outcome{Attempts: attempts, FinishedAt: r.now()}

	switch {
	case runErr == nil:
		outcome.Status = models.TaskStatusCompleted
		outcome.Result = result
	case errors.Is(runErr, context.DeadlineExceeded):
		outcome.Status = models.TaskStatusTimedOut
		outcome.Error = fmt.Sprintf("task timed out after %s", r.config.TaskTimeout)
		outcome.ErrorKind = models.ErrorKindTimeout
	case errors.Is(runErr, context.Canceled):
		outcome.Status = models.TaskStatusCancelled
		outcome.Error = "task cancelled"
		outcome.ErrorKind = models.ErrorKindCancelled
	default:
		outcome.Status = models.TaskStatusFailed
		outcome.Error = runErr.Error()
		outcome.ErrorKind = models.KindOf(runErr)
	}

	return outcome
}

// finish records the terminal state. The write uses a context that survives
// caller cancellation so a cancelled run still lands its terminal row.
func (r *Runner) finish(ctx context.Context, task *models.AgentTask, outcome Outcome) (*models.AgentTask, error) {
	finishCtx := context.WithoutCancel(ctx)

	if err := r.store.Finish(finishCtx, task.TaskID, outcome); err != nil {
		// Somebody else finished it first, e.g. a hard cancel racing the
		// run. Their terminal state wins.
		if errors.Is(err, ErrTaskAlreadyTerminal) {
			return r.store.Get(finishCtx, task.TaskID)
		}

		return nil, err
	}

	started := task.CreatedAt
	if task.StartedAt != nil {
		started = *task.StartedAt
	}

	runFor := outcome.FinishedAt.Sub(started)

	switch outcome.Status {
	case models.TaskStatusCompleted:
		r.metrics.RecordTaskCompleted(task.AgentID, runFor)

		if r.costs != nil {
			if err := r.costs.Record(finishCtx, r.config.OperationType, task.UserID, r.config.CostUnits, task.TaskID); err != nil {
				r.logger.Warn().
					Str("task_id", task.TaskID).
					Err(err).
					Msg("Failed to record task cost")
			}
		}
	case models.TaskStatusFailed:
		r.metrics.RecordTaskFailed(task.AgentID, outcome.ErrorKind, runFor)
	case models.TaskStatusTimedOut:
		r.metrics.RecordTaskTimedOut(task.AgentID, runFor)
	case models.TaskStatusCancelled:
		r.metrics.RecordTaskCancelled(task.AgentID)
	}

	return r.store.Get(finishCtx, task.TaskID)
}

// Cancel stops a task. PENDING tasks become CANCELLED immediately.
// PROCESSING tasks are flagged and their run context cancelled; the runner
// records the terminal state when it observes the cancellation. Cancelling
// a terminal task is a no-op.
func (r *Runner) Cancel(ctx context.Context, taskID string) error {
	task, err := r.store.Get(ctx, taskID)
	if err != nil {
		return err
	}

	switch {
	case task.Status.IsTerminal():
		return nil
	case task.Status == models.TaskStatusPending:
		err := r.store.Finish(ctx, taskID, Outcome{
			Status:     models.TaskStatusCancelled,
			Error:      "cancelled before start",
			ErrorKind:  models.ErrorKindCancelled,
			FinishedAt: r.now(),
		})
		if err != nil {
			if errors.Is(err, ErrTaskAlreadyTerminal) {
				return nil
			}

			return err
		}

		r.metrics.RecordTaskCancelled(task.AgentID)

		r.logger.Info().Str("task_id", taskID).Msg("Pending task cancelled")

		return nil
	default:
		if err := r.store.MarkCancelRequested(ctx, taskID); err != nil {
			return err
		}

		r.signalCancel(taskID)

		r.logger.Info().Str("task_id", taskID).Msg("Cancellation requested for running task")

		return nil
	}
}

// Status returns the task's current lifecycle state.
func (r *Runner) Status(ctx context.Context, taskID string) (models.TaskStatus, error) {
	task, err := r.store.Get(ctx, taskID)
	if err != nil {
		return "", err
	}

	return task.Status, nil
}

// Task returns the current task record.
func (r *Runner) Task(ctx context.Context, taskID string) (*models.AgentTask, error) {
	return r.store.Get(ctx, taskID)
}

// Await blocks until the task reaches a terminal state or ctx expires.
func (r *Runner) Await(ctx context.Context, taskID string) (*models.AgentTask, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = awaitInitialInterval
	bo.MaxInterval = awaitMaxInterval

	operation := func() (*models.AgentTask, error) {
		task, err := r.store.Get(ctx, taskID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		if !task.Status.IsTerminal() {
			return nil, errTaskStillRunning
		}

		return task, nil
	}

	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo))
}

func (r *Runner) trackRunning(taskID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.running[taskID] = cancel
}

func (r *Runner) untrackRunning(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.running, taskID)
}

func (r *Runner) signalCancel(taskID string) {
	r.mu.Lock()
	cancel, ok := r.running[taskID]
	r.mu.Unlock()

	if ok {
		cancel()
	}
}
