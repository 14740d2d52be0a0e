package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

const userColumns = `id, organization_id, name, email, role, reports_to_id, daily_lead_quota, is_active, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Name, &u.Email, &u.Role,
		&u.ReportsToID, &u.DailyLeadQuota, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id int) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return u, err
}

func (s *Store) ListActiveUsers(ctx context.Context, orgID int, f domain.UserFilter) ([]*models.User, error) {
	// Order by id keeps round-robin cursor math deterministic.
	query := `select ` + userColumns + ` from users where organization_id=$1 and is_active`
	args := []any{orgID}
	if f.Role != "" {
		args = append(args, f.Role)
		query += ` and role=$2`
	}
	if f.ReportsToID != nil {
		args = append(args, *f.ReportsToID)
		if f.Role != "" {
			query += ` and reports_to_id=$3`
		} else {
			query += ` and reports_to_id=$2`
		}
	}
	query += ` order by id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveAdmins(ctx context.Context, orgID int) ([]*models.User, error) {
	return s.ListActiveUsers(ctx, orgID, domain.UserFilter{Role: models.RoleAdmin})
}
