package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
)

const policyColumns = `id, name, type, spec, level, cooldown, created_at, updated_at, deleted_at`

func (s *sqlStore) CreatePolicy(ctx context.Context, p *models.Policy) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Spec == nil {
		p.Spec = models.JSONMap{}
	}
	query := s.rebind(`INSERT INTO policy (id, name, type, spec, level, cooldown, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)`)
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.Type, p.Spec, p.Level, p.Cooldown, p.CreatedAt, p.UpdatedAt)
	return err
}

func scanPolicy(row interface{ Scan(...interface{}) error }) (*models.Policy, error) {
	var p models.Policy
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Spec, &p.Level, &p.Cooldown, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	return &p, err
}

func (s *sqlStore) GetPolicy(ctx context.Context, id string) (*models.Policy, error) {
	query := s.rebind(`SELECT ` + policyColumns + ` FROM policy WHERE id = ? AND deleted_at IS NULL`)
	p, err := scanPolicy(s.db.QueryRowxContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("policy", id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *sqlStore) ListPolicies(ctx context.Context, opts ListOptions) ([]*models.Policy, error) {
	query := "SELECT " + policyColumns + " FROM policy WHERE 1=1"
	if !opts.ShowDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += orderAndLimit(opts, "created_at")
	rows, err := s.db.QueryxContext(ctx, s.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePolicyName renames a policy; spec/level/cooldown stay immutable.
func (s *sqlStore) UpdatePolicyName(ctx context.Context, p *models.Policy) error {
	p.UpdatedAt = time.Now().UTC()
	query := s.rebind(`UPDATE policy SET name=?, updated_at=? WHERE id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, p.Name, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "policy", p.ID)
}

// CountPolicyBindings counts live bindings of policyID across all clusters.
func (s *sqlStore) CountPolicyBindings(ctx context.Context, policyID string) (int, error) {
	var n int
	query := s.rebind(`SELECT COUNT(*) FROM cluster_policy WHERE policy_id = ? AND deleted_at IS NULL`)
	err := s.db.GetContext(ctx, &n, query, policyID)
	return n, err
}

func (s *sqlStore) SoftDeletePolicy(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := s.rebind(`UPDATE policy SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "policy", id)
}
