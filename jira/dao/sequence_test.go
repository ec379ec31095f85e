package dao

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apptesting "github.com/telemat/jiraload/internal/testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := apptesting.CreateTrackerDB(t)
	return New(db, zaptest.NewLogger(t).Sugar())
}

func seqValue(t *testing.T, s *Store, name string) int {
	t.Helper()
	var v int
	require.NoError(t, s.db.QueryRow(
		"SELECT SEQ_ID FROM SEQUENCE_VALUE_ITEM WHERE SEQ_NAME = ?", name).Scan(&v))
	return v
}

func TestReserveFreshSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start, err := s.Reserve(ctx, "Issue", 2000)
	require.NoError(t, err)

	// A fresh counter is seeded at 10000, so the range starts on the next
	// block boundary and the counter lands past the rounded-up amount.
	assert.Equal(t, 10100, start)
	assert.Equal(t, 12100, seqValue(t, s, "Issue"))
}

func TestReserveExistingSequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.db.Exec("INSERT INTO SEQUENCE_VALUE_ITEM (SEQ_NAME,SEQ_ID) values('Issue', 10350)")
	require.NoError(t, err)

	start, err := s.Reserve(ctx, "Issue", 10)
	require.NoError(t, err)

	assert.Equal(t, 10400, start)
	assert.Equal(t, 10500, seqValue(t, s, "Issue"))
}

func TestReserveBlockBoundary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.db.Exec("INSERT INTO SEQUENCE_VALUE_ITEM (SEQ_NAME,SEQ_ID) values('Issue', 10200)")
	require.NoError(t, err)

	// The counter sitting exactly on a boundary still yields the NEXT block.
	start, err := s.Reserve(ctx, "Issue", 100)
	require.NoError(t, err)

	assert.Equal(t, 10300, start)
	assert.Equal(t, 10400, seqValue(t, s, "Issue"))
}

func TestReserveZeroAmount(t *testing.T) {
	s := newTestStore(t)

	start, err := s.Reserve(context.Background(), "Issue", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, start)

	// Nothing was reserved, not even the seed row.
	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM SEQUENCE_VALUE_ITEM").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestReserveSuccessiveRangesDisjoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Reserve(ctx, "Issue", 42)
	require.NoError(t, err)
	second, err := s.Reserve(ctx, "Issue", 42)
	require.NoError(t, err)

	assert.Equal(t, 10100, first)
	assert.GreaterOrEqual(t, second, first+42)
}

func TestReserveIndependentSequences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	issue, err := s.Reserve(ctx, "Issue", 10)
	require.NoError(t, err)
	entry, err := s.Reserve(ctx, "OSWorkflowEntry", 10)
	require.NoError(t, err)

	assert.Equal(t, issue, entry)
	assert.Equal(t, 10200, seqValue(t, s, "Issue"))
	assert.Equal(t, 10200, seqValue(t, s, "OSWorkflowEntry"))
}
