package postgres

import (
	"context"
	"time"
)

// IncrementDailyCount bumps the user's counter for the given UTC day.
// The upsert is a single atomic statement, so concurrent assignments
// never lose an increment.
func (s *Store) IncrementDailyCount(ctx context.Context, userID int, day time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		insert into quota_records(user_id, day, assigned_count)
		values ($1,$2,1)
		on conflict (user_id, day) do update
		set assigned_count = quota_records.assigned_count + 1`,
		userID, day)
	return err
}

func (s *Store) DailyCounts(ctx context.Context, userIDs []int, day time.Time) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		select user_id, assigned_count
		from quota_records
		where day=$1 and user_id = any($2)`,
		day, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]int, len(userIDs))
	for rows.Next() {
		var userID, count int
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, err
		}
		out[userID] = count
	}
	return out, rows.Err()
}

// PurgeBefore deletes counters older than the given day and reports how
// many rows went away. Run from the retention cron job.
func (s *Store) PurgeBefore(ctx context.Context, day time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from quota_records where day < $1`, day)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
