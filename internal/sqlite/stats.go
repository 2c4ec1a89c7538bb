package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rtodo/rtodo/pkg/types"
)

// Stats counts todos by status. Overdue counts open todos whose due date
// has passed.
func (s *Store) Stats(ctx context.Context) (*types.Stats, error) {
	var st types.Stats
	now := s.now()
	err := s.withDB(func(db *sqlx.DB) error {
		return db.GetContext(ctx, &st, `
			SELECT COUNT(*) AS total,
			       COALESCE(SUM(CASE WHEN status = 0 THEN 1 ELSE 0 END), 0) AS todo,
			       COALESCE(SUM(CASE WHEN status = 1 THEN 1 ELSE 0 END), 0) AS in_progress,
			       COALESCE(SUM(CASE WHEN status = 2 THEN 1 ELSE 0 END), 0) AS done,
			       COALESCE(SUM(CASE WHEN status != 2 AND due_date IS NOT NULL AND due_date < ? THEN 1 ELSE 0 END), 0) AS overdue
			FROM todos`, now)
	})
	if err != nil {
		return nil, fmt.Errorf("todo stats: %w", err)
	}
	return &st, nil
}
