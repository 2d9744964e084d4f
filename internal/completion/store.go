// Package completion remembers which assignments a user has marked as done.
// Marks are local to this server; Moodle never sees them.
package completion

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/freekieb7/go-duedate/internal/database"
	apperrors "github.com/freekieb7/go-duedate/internal/errors"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db database.Database) *Store {
	return &Store{
		db:  db.DB,
		now: time.Now,
	}
}

// Toggle flips the mark of eventID for owner and returns the new state.
func (s *Store) Toggle(ctx context.Context, owner string, eventID int64) (bool, error) {
	if owner == "" {
		return false, apperrors.ValidationError("owner is required", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, apperrors.DatabaseError("starting completion transaction failed", err)
	}
	defer tx.Rollback()

	completed := true
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tbl_completion (owner, event_id, completed_at) VALUES (?, ?, ?);`,
		owner, eventID, s.now().UTC().Unix(),
	); err != nil {
		if !database.IsUniqueViolation(err) {
			return false, apperrors.DatabaseError("storing completion failed", err)
		}

		// Already marked, so this toggle clears it.
		if _, err := tx.ExecContext(ctx, `DELETE FROM tbl_completion WHERE owner = ? AND event_id = ?;`, owner, eventID); err != nil {
			return false, apperrors.DatabaseError("removing completion failed", err)
		}
		completed = false
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.DatabaseError("committing completion failed", err)
	}

	return completed, nil
}

// Completed returns the set of event ids owner has marked as done.
func (s *Store) Completed(ctx context.Context, owner string) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_id FROM tbl_completion WHERE owner = ?;`, owner)
	if err != nil {
		return nil, apperrors.DatabaseError("listing completions failed", err)
	}
	defer rows.Close()

	completed := make(map[int64]bool)
	for rows.Next() {
		var eventID int64
		if err := rows.Scan(&eventID); err != nil {
			return nil, apperrors.DatabaseError("reading completion failed", err)
		}
		completed[eventID] = true
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError(fmt.Sprintf("listing completions for %s failed", owner), err)
	}
	return completed, nil
}
