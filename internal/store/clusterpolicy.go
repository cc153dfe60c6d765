package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/clustermgr/engine/internal/models"
)

const clusterPolicyColumns = `cluster_id, policy_id, priority, level, cooldown, enabled, data, created_at, updated_at, deleted_at`

func (s *sqlStore) CreateClusterPolicy(ctx context.Context, b *models.ClusterPolicy) error {
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	if b.Data == nil {
		b.Data = models.JSONMap{}
	}
	query := s.rebind(`INSERT INTO cluster_policy
		(cluster_id, policy_id, priority, level, cooldown, enabled, data, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	_, err := s.db.ExecContext(ctx, query, b.ClusterID, b.PolicyID, b.Priority, b.Level, b.Cooldown,
		b.Enabled, b.Data, b.CreatedAt, b.UpdatedAt)
	return err
}

func scanClusterPolicy(row interface{ Scan(...interface{}) error }) (*models.ClusterPolicy, error) {
	var b models.ClusterPolicy
	err := row.Scan(&b.ClusterID, &b.PolicyID, &b.Priority, &b.Level, &b.Cooldown, &b.Enabled,
		&b.Data, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt)
	return &b, err
}

func (s *sqlStore) GetClusterPolicy(ctx context.Context, clusterID, policyID string) (*models.ClusterPolicy, error) {
	query := s.rebind(`SELECT ` + clusterPolicyColumns + ` FROM cluster_policy
		WHERE cluster_id=? AND policy_id=? AND deleted_at IS NULL`)
	b, err := scanClusterPolicy(s.db.QueryRowxContext(ctx, query, clusterID, policyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewPolicyBindingNotFound(clusterID, policyID)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *sqlStore) ListClusterPolicies(ctx context.Context, clusterID string) ([]*models.ClusterPolicy, error) {
	query := s.rebind(`SELECT ` + clusterPolicyColumns + ` FROM cluster_policy
		WHERE cluster_id=? AND deleted_at IS NULL ORDER BY priority ASC, created_at ASC`)
	rows, err := s.db.QueryxContext(ctx, query, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ClusterPolicy
	for rows.Next() {
		b, err := scanClusterPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *sqlStore) UpdateClusterPolicy(ctx context.Context, b *models.ClusterPolicy) error {
	b.UpdatedAt = time.Now().UTC()
	query := s.rebind(`UPDATE cluster_policy SET priority=?, level=?, cooldown=?, enabled=?, data=?, updated_at=?
		WHERE cluster_id=? AND policy_id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, b.Priority, b.Level, b.Cooldown, b.Enabled, b.Data,
		b.UpdatedAt, b.ClusterID, b.PolicyID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NewPolicyBindingNotFound(b.ClusterID, b.PolicyID)
	}
	return nil
}

func (s *sqlStore) DeleteClusterPolicy(ctx context.Context, clusterID, policyID string) error {
	now := time.Now().UTC()
	query := s.rebind(`UPDATE cluster_policy SET deleted_at=?, updated_at=?
		WHERE cluster_id=? AND policy_id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, now, now, clusterID, policyID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NewPolicyBindingNotFound(clusterID, policyID)
	}
	return nil
}
