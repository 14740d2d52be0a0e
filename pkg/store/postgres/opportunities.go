package postgres

import (
	"context"
	"time"

	"github.com/jordanlanch/leadrouter/pkg/models"
)

// ClosedWonRevenue sums closed-won opportunity amounts per owner since
// the given time. Ties break on owner id so the top-performer pick stays
// deterministic.
func (s *Store) ClosedWonRevenue(ctx context.Context, ownerIDs []int, since time.Time) ([]models.OwnerRevenue, error) {
	rows, err := s.db.QueryContext(ctx, `
		select owner_id, sum(amount_cents) as total
		from opportunities
		where status = 'closed_won' and closed_at >= $1 and owner_id = any($2)
		group by owner_id
		order by total desc, owner_id`,
		since, ownerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OwnerRevenue
	for rows.Next() {
		var r models.OwnerRevenue
		if err := rows.Scan(&r.OwnerID, &r.TotalCents); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
