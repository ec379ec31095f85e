package subscription

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

func newTestStore(t *testing.T) *Store {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	conn := apptesting.CreateTestDB(t)
	require.NoError(t, db.Migrate(conn, log))
	return NewStore(conn, log)
}

func sample() *Subscription {
	return &Subscription{
		Name:      "mda-prod",
		DSN:       "jira:secret@tcp(db.example.org:3306)/jiradb",
		URL:       "https://jira.example.org",
		Project:   10074,
		Pkey:      "MDA",
		AdminUser: "admin",
	}
}

func TestCreateAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sub := sample()
	require.NoError(t, s.Create(ctx, sub))
	assert.NotZero(t, sub.ID)

	byName, err := s.ByName(ctx, "mda-prod")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, byName.ID)
	assert.Equal(t, "MDA", byName.Pkey)
	assert.Equal(t, 10074, byName.Project)

	byID, err := s.ByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "mda-prod", byID.Name)
}

func TestLookupMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ByName(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestCreateDuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, sample()))
	assert.Error(t, s.Create(ctx, sample()))
}

func TestListAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := sample()
	require.NoError(t, s.Create(ctx, first))
	second := sample()
	second.Name = "mda-staging"
	require.NoError(t, s.Create(ctx, second))

	subs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "mda-prod", subs[0].Name)

	require.NoError(t, s.Delete(ctx, "mda-prod"))
	subs, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	err = s.Delete(ctx, "mda-prod")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
