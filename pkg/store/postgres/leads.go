package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/models"
)

func (s *Store) GetLead(ctx context.Context, id int) (*models.Lead, error) {
	var (
		l      models.Lead
		fields []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, name, source, score, fields, assigned_to, created_at, updated_at
		from leads where id=$1`, id).
		Scan(&l.ID, &l.OrganizationID, &l.Name, &l.Source, &l.Score, &fields, &l.AssignedTo, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &l.Fields); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

func (s *Store) CreateLead(ctx context.Context, lead *models.Lead) error {
	fields, err := json.Marshal(lead.Fields)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `
		insert into leads(organization_id, name, source, score, fields, created_at, updated_at)
		values ($1,$2,$3,$4,$5,now(),now())
		returning id, created_at, updated_at`,
		lead.OrganizationID, lead.Name, lead.Source, lead.Score, fields).
		Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
}

func (s *Store) SetAssignee(ctx context.Context, leadID, userID int) error {
	res, err := s.db.ExecContext(ctx,
		`update leads set assigned_to=$2, updated_at=now() where id=$1`, leadID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
