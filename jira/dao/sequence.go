package dao

import (
	"context"
	"database/sql"

	"github.com/telemat/jiraload/errors"
)

const (
	// sequenceSeed is the initial counter for a sequence the tracker has
	// never used, high enough to clear its own bootstrap identifiers.
	sequenceSeed = 10000

	// sequenceBlock is the allocation granularity. Reservations start on a
	// fresh block boundary so concurrent tracker-side inserts within the
	// current block cannot collide with imported rows.
	sequenceBlock = 100

	// maxReserveAttempts bounds the compare-and-swap retry loop.
	maxReserveAttempts = 50
)

// Reserve allocates amount identifiers from the named sequence and returns
// the first one. The reserved range starts on the next block boundary
// strictly above the current counter and the counter advances by whole
// blocks, so other writers bumping the same sequence are detected by the
// conditional update and retried. amount of zero reserves nothing.
func (s *Store) Reserve(ctx context.Context, name string, amount int) (int, error) {
	if amount == 0 {
		return 0, nil
	}
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		current, err := s.currentSequence(ctx, name)
		if err != nil {
			return 0, err
		}
		start := (current/sequenceBlock + 1) * sequenceBlock
		next := start + (amount+sequenceBlock-1)/sequenceBlock*sequenceBlock

		res, err := s.db.ExecContext(ctx,
			"UPDATE SEQUENCE_VALUE_ITEM SET SEQ_ID = ? WHERE SEQ_NAME = ? AND SEQ_ID = ?",
			next, name, current)
		if err != nil {
			return 0, errors.Wrapf(err, "reserve sequence %s", name)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, errors.Wrapf(err, "reserve sequence %s", name)
		}
		if affected == 1 {
			return start, nil
		}
		s.log.Debugw("sequence moved under us, retrying", "sequence", name, "attempt", attempt)
	}
	return 0, errors.Newf("could not reserve %d identifiers from sequence %s after %d attempts",
		amount, name, maxReserveAttempts)
}

// currentSequence reads the counter, seeding it when the sequence does not
// exist yet. A lost seeding race falls back to reading the winner's value.
func (s *Store) currentSequence(ctx context.Context, name string) (int, error) {
	var current int
	err := s.db.QueryRowContext(ctx,
		"SELECT SEQ_ID FROM SEQUENCE_VALUE_ITEM WHERE SEQ_NAME = ?", name).Scan(&current)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, errors.Wrapf(err, "read sequence %s", name)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO SEQUENCE_VALUE_ITEM (SEQ_NAME,SEQ_ID) values(?,?)", name, sequenceSeed); err != nil {
		err = s.db.QueryRowContext(ctx,
			"SELECT SEQ_ID FROM SEQUENCE_VALUE_ITEM WHERE SEQ_NAME = ?", name).Scan(&current)
		if err != nil {
			return 0, errors.Wrapf(err, "seed sequence %s", name)
		}
		return current, nil
	}
	return sequenceSeed, nil
}
