package upload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telemat/jiraload/db"
	"github.com/telemat/jiraload/errors"
	apptesting "github.com/telemat/jiraload/internal/testing"
)

func newTestStatusStore(t *testing.T) *StatusStore {
	t.Helper()
	conn := apptesting.CreateTestDB(t)
	log := zaptest.NewLogger(t).Sugar()
	require.NoError(t, db.Migrate(conn, log))
	return NewStatusStore(conn, log)
}

func TestStatusStartAndFinish(t *testing.T) {
	store := newTestStatusStore(t)
	ctx := context.Background()

	status, err := store.Start(ctx, 1, "fdaugan", ModeFull)
	require.NoError(t, err)
	assert.NotEmpty(t, status.ID)
	assert.Equal(t, 0, status.Step)
	assert.True(t, status.Running())

	require.NoError(t, store.NextStep(ctx, status))
	require.NoError(t, store.NextStep(ctx, status))
	assert.Equal(t, 2, status.Step)

	require.NoError(t, store.Finish(ctx, status, false))
	assert.False(t, status.Running())

	loaded, err := store.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, status.ID, loaded.ID)
	assert.Equal(t, 2, loaded.Step)
	assert.Equal(t, ModeFull, loaded.Mode)
	assert.False(t, loaded.Failed)
	assert.False(t, loaded.Running())
}

func TestStatusStartLocked(t *testing.T) {
	store := newTestStatusStore(t)
	ctx := context.Background()

	running, err := store.Start(ctx, 1, "fdaugan", ModeSyntax)
	require.NoError(t, err)

	_, err = store.Start(ctx, 1, "alocquet", ModeSyntax)
	require.Error(t, err)
	var concurrency *ConcurrencyError
	require.ErrorAs(t, err, &concurrency)
	assert.Equal(t, int64(1), concurrency.Subscription)

	// Another subscription is not affected by the lock.
	other, err := store.Start(ctx, 2, "alocquet", ModeSyntax)
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, other, false))

	// Finishing releases the lock, even on failure.
	require.NoError(t, store.Finish(ctx, running, true))
	next, err := store.Start(ctx, 1, "alocquet", ModeSyntax)
	require.NoError(t, err)
	assert.NotEqual(t, running.ID, next.ID)
}

func TestStatusPersistsCounters(t *testing.T) {
	store := newTestStatusStore(t)
	ctx := context.Background()

	status, err := store.Start(ctx, 1, "fdaugan", ModePreview)
	require.NoError(t, err)
	setIntPtr(&status.Changes, 6)
	setIntPtr(&status.Issues, 2)
	setIntPtr(&status.MinIssue, 2)
	setIntPtr(&status.MaxIssue, 12)
	version := "6.0.1"
	status.JiraVersion = &version
	require.NoError(t, store.Finish(ctx, status, false))

	loaded, err := store.Latest(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, loaded.Changes)
	assert.Equal(t, 6, *loaded.Changes)
	assert.Equal(t, 2, *loaded.Issues)
	assert.Equal(t, 2, *loaded.MinIssue)
	assert.Equal(t, 12, *loaded.MaxIssue)
	assert.Equal(t, "6.0.1", *loaded.JiraVersion)
	assert.Nil(t, loaded.Labels)
	assert.Nil(t, loaded.Synchronized)
}

func TestStatusLatestNotFound(t *testing.T) {
	store := newTestStatusStore(t)

	_, err := store.Latest(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStatusBySubscription(t *testing.T) {
	store := newTestStatusStore(t)
	ctx := context.Background()

	first, err := store.Start(ctx, 1, "fdaugan", ModeSyntax)
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, first, true))
	second, err := store.Start(ctx, 1, "fdaugan", ModeFull)
	require.NoError(t, err)
	require.NoError(t, store.Finish(ctx, second, false))

	runs, err := store.BySubscription(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.True(t, runs[1].Failed)
}
