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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarsys/paperscout/pkg/models"
)

func pendingTask(id string, createdAt time.Time) *models.AgentTask {
	return &models.AgentTask{
		TaskID:    id,
		AgentID:   "related-paper-discovery",
		UserID:    "user-1",
		Input:     json.RawMessage(`{"paper_id":"p1"}`),
		Status:    models.TaskStatusPending,
		CreatedAt: createdAt,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	created := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, pendingTask("t1", created)))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, got.Status)
	assert.Equal(t, "user-1", got.UserID)
	assert.JSONEq(t, `{"paper_id":"p1"}`, string(got.Input))

	// The returned record is a copy; mutations never reach the store.
	got.Status = models.TaskStatusCompleted

	again, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, again.Status)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, pendingTask("t1", time.Now())))

	err := store.Create(ctx, pendingTask("t1", time.Now()))
	assert.ErrorIs(t, err, ErrTaskExists)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestMemoryStore_TransitionToProcessing_SingleWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, pendingTask("t1", time.Now())))

	const contenders = 8

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)

	for range contenders {
		wg.Add(1)

		go func() {
			defer wg.Done()

			claimed, err := store.TransitionToProcessing(ctx, "t1", time.Now())
			assert.NoError(t, err)

			if claimed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one caller claims the task")

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProcessing, got.Status)
	assert.NotNil(t, got.StartedAt)
}

func TestMemoryStore_Finish_TerminalIsImmutable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	finished := time.Date(2025, time.June, 1, 10, 5, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, pendingTask("t1", time.Now())))

	claimed, err := store.TransitionToProcessing(ctx, "t1", time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	outcome := Outcome{
		Status:     models.TaskStatusCompleted,
		Result:     json.RawMessage(`{"papers":3}`),
		Attempts:   2,
		FinishedAt: finished,
	}
	require.NoError(t, store.Finish(ctx, "t1", outcome))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.JSONEq(t, `{"papers":3}`, string(got.Result))
	assert.Equal(t, 2, got.Attempts)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.Equal(finished))

	err = store.Finish(ctx, "t1", Outcome{Status: models.TaskStatusFailed, FinishedAt: finished})
	assert.ErrorIs(t, err, ErrTaskAlreadyTerminal)

	// A second claim on a terminal task never succeeds either.
	claimed, err = store.TransitionToProcessing(ctx, "t1", time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestMemoryStore_Finish_RequiresTerminalStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, pendingTask("t1", time.Now())))

	err := store.Finish(ctx, "t1", Outcome{Status: models.TaskStatusProcessing, FinishedAt: time.Now()})
	assert.Error(t, err)
}

func TestMemoryStore_Finish_CancelsPendingDirectly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, pendingTask("t1", time.Now())))

	outcome := Outcome{
		Status:     models.TaskStatusCancelled,
		Error:      "cancelled before start",
		ErrorKind:  models.ErrorKindCancelled,
		FinishedAt: time.Now(),
	}
	require.NoError(t, store.Finish(ctx, "t1", outcome))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, got.Status)
	assert.Nil(t, got.StartedAt, "a pending task cancelled before start never ran")
}

func TestMemoryStore_MarkCancelRequested(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, pendingTask("t1", time.Now())))

	_, err := store.TransitionToProcessing(ctx, "t1", time.Now())
	require.NoError(t, err)

	require.NoError(t, store.MarkCancelRequested(ctx, "t1"))

	got, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.CancelRequested)

	require.NoError(t, store.Finish(ctx, "t1", Outcome{
		Status: models.TaskStatusCancelled, FinishedAt: time.Now(),
	}))

	// Flagging a terminal task is a silent no-op.
	assert.NoError(t, store.MarkCancelRequested(ctx, "t1"))
}

func TestMemoryStore_ListByStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"t1", "t2", "t3"} {
		task := pendingTask(id, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Create(ctx, task))
	}

	other := pendingTask("t4", base)
	other.AgentID = "another-agent"
	require.NoError(t, store.Create(ctx, other))

	_, err := store.TransitionToProcessing(ctx, "t2", time.Now())
	require.NoError(t, err)

	pending, err := store.ListByStatus(ctx, "related-paper-discovery", models.TaskStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "t1", pending[0].TaskID, "oldest first")
	assert.Equal(t, "t3", pending[1].TaskID)

	limited, err := store.ListByStatus(ctx, "related-paper-discovery", models.TaskStatusPending, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "t1", limited[0].TaskID)

	all, err := store.ListByStatus(ctx, "", models.TaskStatusPending, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3, "empty agent id matches every agent")
}

func TestMemoryStore_DeleteOlderThan(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	finishAt := func(id string, at time.Time) {
		_, err := store.TransitionToProcessing(ctx, id, at.Add(-time.Minute))
		require.NoError(t, err)
		require.NoError(t, store.Finish(ctx, id, Outcome{
			Status: models.TaskStatusCompleted, FinishedAt: at,
		}))
	}

	require.NoError(t, store.Create(ctx, pendingTask("old", now.Add(-9*24*time.Hour))))
	require.NoError(t, store.Create(ctx, pendingTask("fresh", now.Add(-time.Hour))))
	require.NoError(t, store.Create(ctx, pendingTask("running", now.Add(-9*24*time.Hour))))

	finishAt("old", now.Add(-8*24*time.Hour))
	finishAt("fresh", now.Add(-30*time.Minute))

	_, err := store.TransitionToProcessing(ctx, "running", now.Add(-9*24*time.Hour))
	require.NoError(t, err)

	removed, err := store.DeleteOlderThan(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = store.Get(ctx, "fresh")
	assert.NoError(t, err)

	_, err = store.Get(ctx, "running")
	assert.NoError(t, err, "non-terminal tasks survive any cutoff")
}
