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

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/scholarsys/paperscout/pkg/models"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments. One mutex serializes all transitions, which satisfies the
// Store contract's linearizability requirement.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*models.AgentTask
}

// NewMemoryStore creates an empty in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*models.AgentTask)}
}

// Create stores task. The caller keeps ownership of the passed record.
func (s *MemoryStore) Create(_ context.Context, task *models.AgentTask) error {
	if task == nil || task.TaskID == "" {
		return errors.New("task id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.TaskID]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.TaskID)
	}

	clone := task.Clone()
	if clone.Status == "" {
		clone.Status = models.TaskStatusPending
	}

	s.tasks[task.TaskID] = clone

	return nil
}

// Get returns a copy of the task.
func (s *MemoryStore) Get(_ context.Context, taskID string) (*models.AgentTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	return task.Clone(), nil
}

// TransitionToProcessing claims a PENDING task. Exactly one concurrent
// caller wins; everybody else gets false.
func (s *MemoryStore) TransitionToProcessing(_ context.Context, taskID string, startedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if task.Status != models.TaskStatusPending {
		return false, nil
	}

	task.Status = models.TaskStatusProcessing
	at := startedAt
	task.StartedAt = &at

	return true, nil
}

// Finish moves a non-terminal task into outcome.Status.
func (s *MemoryStore) Finish(_ context.Context, taskID string, outcome Outcome) error {
	if !outcome.Status.IsTerminal() {
		return fmt.Errorf("finish requires a terminal status, got %q", outcome.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if task.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTaskAlreadyTerminal, taskID, task.Status)
	}

	task.Status = outcome.Status
	task.Error = outcome.Error
	task.ErrorKind = outcome.ErrorKind

	if outcome.Result != nil {
		task.Result = append(json.RawMessage(nil), outcome.Result...)
	}

	if outcome.Attempts > 0 {
		task.Attempts = outcome.Attempts
	}

	at := outcome.FinishedAt
	task.FinishedAt = &at

	return nil
}

// MarkCancelRequested flags a running task for cooperative cancellation.
// Flagging a terminal task is a no-op.
func (s *MemoryStore) MarkCancelRequested(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	if !task.Status.IsTerminal() {
		task.CancelRequested = true
	}

	return nil
}

// ListByStatus returns tasks in the given status ordered by creation time,
// oldest first. An empty agentID matches every agent; limit <= 0 means no
// limit.
func (s *MemoryStore) ListByStatus(_ context.Context, agentID string, status models.TaskStatus, limit int) ([]*models.AgentTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AgentTask

	for _, task := range s.tasks {
		if agentID != "" && task.AgentID != agentID {
			continue
		}

		if task.Status != status {
			continue
		}

		out = append(out, task.Clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// DeleteOlderThan removes terminal tasks that finished before cutoff.
func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64

	for id, task := range s.tasks {
		if !task.Status.IsTerminal() || task.FinishedAt == nil {
			continue
		}

		if task.FinishedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}

	return removed, nil
}
