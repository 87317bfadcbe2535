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

package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of an AgentTask. A task moves
// PENDING -> PROCESSING exactly once and then to exactly one terminal state.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusTimedOut   TaskStatus = "timed_out"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether the status is final. Terminal states are
// immutable.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusTimedOut, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// AgentTask is the durable record for one asynchronous unit of work.
type AgentTask struct {
	TaskID          string          `json:"task_id"`
	AgentID         string          `json:"agent_id"`
	UserID          string          `json:"user_id"`
	Input           json.RawMessage `json:"input,omitempty"`
	Status          TaskStatus      `json:"status"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	ErrorKind       ErrorKind       `json:"error_kind,omitempty"`
	Attempts        int             `json:"attempts"`
	CancelRequested bool            `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	FinishedAt      *time.Time      `json:"finished_at,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *AgentTask) Clone() *AgentTask {
	if t == nil {
		return nil
	}

	clone := *t

	if t.Input != nil {
		clone.Input = append(json.RawMessage(nil), t.Input...)
	}

	if t.Result != nil {
		clone.Result = append(json.RawMessage(nil), t.Result...)
	}

	if t.StartedAt != nil {
		at := *t.StartedAt
		clone.StartedAt = &at
	}

	if t.FinishedAt != nil {
		at := *t.FinishedAt
		clone.FinishedAt = &at
	}

	return &clone
}
