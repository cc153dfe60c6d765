package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
)

func (s *sqlStore) CreateCluster(ctx context.Context, c *models.Cluster) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Metadata == nil {
		c.Metadata = models.JSONMap{}
	}
	if c.Data == nil {
		c.Data = models.JSONMap{}
	}
	query := s.rebind(`INSERT INTO cluster
		(id, name, profile_id, parent_id, desired_capacity, min_size, max_size, timeout,
		 metadata, status, status_reason, owner_user, owner_project, owner_domain, data,
		 created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.ProfileID, c.ParentID, c.DesiredCapacity, c.MinSize, c.MaxSize, c.Timeout,
		c.Metadata, c.Status, c.StatusReason, c.Owner.User, c.Owner.Project, c.Owner.Domain, c.Data,
		c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *sqlStore) GetCluster(ctx context.Context, id string) (*models.Cluster, error) {
	var c models.Cluster
	query := s.rebind(`SELECT id, name, profile_id, parent_id, desired_capacity, min_size, max_size,
		timeout, metadata, status, status_reason, owner_user, owner_project, owner_domain, data,
		created_at, updated_at, deleted_at FROM cluster WHERE id = ? AND deleted_at IS NULL`)
	err := s.db.QueryRowxContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.ProfileID, &c.ParentID, &c.DesiredCapacity, &c.MinSize, &c.MaxSize,
		&c.Timeout, &c.Metadata, &c.Status, &c.StatusReason, &c.Owner.User, &c.Owner.Project, &c.Owner.Domain,
		&c.Data, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("cluster", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *sqlStore) ListClusters(ctx context.Context, opts ListOptions) ([]*models.Cluster, error) {
	query := "SELECT id, name, profile_id, parent_id, desired_capacity, min_size, max_size, " +
		"timeout, metadata, status, status_reason, owner_user, owner_project, owner_domain, data, " +
		"created_at, updated_at, deleted_at FROM cluster WHERE 1=1"
	args := []interface{}{}
	if !opts.ShowDeleted {
		query += " AND deleted_at IS NULL"
	}
	if opts.ProjectSafe != "" {
		query += " AND owner_project = ?"
		args = append(args, opts.ProjectSafe)
	}
	for _, col := range []string{"name", "status", "profile_id"} {
		if v := opts.Filters[col]; v != "" {
			query += " AND " + col + " = ?"
			args = append(args, v)
		}
	}
	query += orderAndLimit(opts, "created_at")
	rows, err := s.db.QueryxContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Cluster
	for rows.Next() {
		var c models.Cluster
		if err := rows.Scan(&c.ID, &c.Name, &c.ProfileID, &c.ParentID, &c.DesiredCapacity, &c.MinSize,
			&c.MaxSize, &c.Timeout, &c.Metadata, &c.Status, &c.StatusReason, &c.Owner.User,
			&c.Owner.Project, &c.Owner.Domain, &c.Data, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *sqlStore) UpdateCluster(ctx context.Context, c *models.Cluster) error {
	c.UpdatedAt = time.Now().UTC()
	query := s.rebind(`UPDATE cluster SET name=?, profile_id=?, parent_id=?, desired_capacity=?,
		min_size=?, max_size=?, timeout=?, metadata=?, status=?, status_reason=?, data=?, updated_at=?
		WHERE id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, c.Name, c.ProfileID, c.ParentID, c.DesiredCapacity,
		c.MinSize, c.MaxSize, c.Timeout, c.Metadata, c.Status, c.StatusReason, c.Data, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "cluster", c.ID)
}

func (s *sqlStore) SoftDeleteCluster(ctx context.Context, id string) error {
	query := s.rebind(`UPDATE cluster SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`)
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "cluster", id)
}

func (s *sqlStore) CountActiveNodesByCluster(ctx context.Context, clusterID string) (int, error) {
	var n int
	query := s.rebind(`SELECT COUNT(*) FROM node WHERE cluster_id=? AND deleted_at IS NULL AND status != ?`)
	err := s.db.GetContext(ctx, &n, query, clusterID, models.NodeDeleting)
	return n, err
}

func (s *sqlStore) CountAttachedPolicies(ctx context.Context, clusterID string) (int, error) {
	var n int
	query := s.rebind(`SELECT COUNT(*) FROM cluster_policy WHERE cluster_id=? AND deleted_at IS NULL`)
	err := s.db.GetContext(ctx, &n, query, clusterID)
	return n, err
}
