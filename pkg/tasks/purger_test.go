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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

func TestPurger_PurgeOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

	complete := func(id string, finishedAt time.Time) {
		require.NoError(t, store.Create(ctx, pendingTask(id, finishedAt.Add(-time.Minute))))
		_, err := store.TransitionToProcessing(ctx, id, finishedAt.Add(-30*time.Second))
		require.NoError(t, err)
		require.NoError(t, store.Finish(ctx, id, Outcome{
			Status: models.TaskStatusCompleted, FinishedAt: finishedAt,
		}))
	}

	complete("expired", now.Add(-8*24*time.Hour))
	complete("recent", now.Add(-time.Hour))

	metrics := NewInMemoryMetrics(logger.NewTestLogger())
	purger := NewPurger(store, metrics, logger.NewTestLogger(),
		PurgerConfig{Retention: 7 * 24 * time.Hour},
		WithPurgerClock(func() time.Time { return now }))

	removed, err := purger.PurgeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = store.Get(ctx, "expired")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = store.Get(ctx, "recent")
	assert.NoError(t, err)

	maintenance := metrics.GetMetrics()["maintenance"].(map[string]interface{})
	assert.Equal(t, int64(1), maintenance["purged"])
}

func TestPurger_RecoverOrphans(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

	startProcessing := func(id string, startedAt time.Time) {
		require.NoError(t, store.Create(ctx, pendingTask(id, startedAt.Add(-time.Minute))))
		_, err := store.TransitionToProcessing(ctx, id, startedAt)
		require.NoError(t, err)
	}

	startProcessing("orphan", now.Add(-20*time.Minute))
	startProcessing("live", now.Add(-2*time.Minute))
	require.NoError(t, store.Create(ctx, pendingTask("queued", now)))

	purger := NewPurger(store, nil, logger.NewTestLogger(),
		PurgerConfig{AgentID: "related-paper-discovery", RunTimeout: 10 * time.Minute},
		WithPurgerClock(func() time.Time { return now }))

	recovered, err := purger.RecoverOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	orphan, err := store.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusTimedOut, orphan.Status)
	assert.Equal(t, models.ErrorKindTimeout, orphan.ErrorKind)
	assert.Contains(t, orphan.Error, "orphaned")

	live, err := store.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProcessing, live.Status, "recent runs are left alone")

	queued, err := store.Get(ctx, "queued")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, queued.Status)
}

func TestPurger_StartSweepsOnInterval(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	ancient := time.Now().Add(-200 * 24 * time.Hour)

	require.NoError(t, store.Create(ctx, pendingTask("stale", ancient)))
	_, err := store.TransitionToProcessing(ctx, "stale", ancient)
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, "stale", Outcome{
		Status: models.TaskStatusCompleted, FinishedAt: ancient,
	}))

	purger := NewPurger(store, nil, logger.NewTestLogger(), PurgerConfig{Interval: 10 * time.Millisecond})

	sweepCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	purger.Start(sweepCtx)

	_, err = store.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
