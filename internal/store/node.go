package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
)

func (s *sqlStore) CreateNode(ctx context.Context, n *models.Node) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	if n.Data == nil {
		n.Data = models.JSONMap{}
	}
	query := s.rebind(`INSERT INTO node
		(id, name, profile_id, cluster_id, role, index_, status, status_reason, physical_id, data,
		 created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	_, err := s.db.ExecContext(ctx, query, n.ID, n.Name, n.ProfileID, n.ClusterID, n.Role, n.Index,
		n.Status, n.StatusReason, n.PhysicalID, n.Data, n.CreatedAt, n.UpdatedAt)
	return err
}

func scanNode(row interface{ Scan(...interface{}) error }) (*models.Node, error) {
	var n models.Node
	err := row.Scan(&n.ID, &n.Name, &n.ProfileID, &n.ClusterID, &n.Role, &n.Index, &n.Status,
		&n.StatusReason, &n.PhysicalID, &n.Data, &n.CreatedAt, &n.UpdatedAt, &n.DeletedAt)
	return &n, err
}

const nodeColumns = `id, name, profile_id, cluster_id, role, index_, status, status_reason, physical_id, data, created_at, updated_at, deleted_at`

func (s *sqlStore) GetNode(ctx context.Context, id string) (*models.Node, error) {
	query := s.rebind(`SELECT ` + nodeColumns + ` FROM node WHERE id = ? AND deleted_at IS NULL`)
	n, err := scanNode(s.db.QueryRowxContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("node", id)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *sqlStore) ListNodes(ctx context.Context, opts ListOptions) ([]*models.Node, error) {
	query := "SELECT " + nodeColumns + " FROM node WHERE 1=1"
	args := []interface{}{}
	if !opts.ShowDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += orderAndLimit(opts, "created_at")
	rows, err := s.db.QueryxContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *sqlStore) ListNodesByCluster(ctx context.Context, clusterID string) ([]*models.Node, error) {
	query := s.rebind(`SELECT ` + nodeColumns + ` FROM node WHERE cluster_id = ? AND deleted_at IS NULL ORDER BY index_ ASC`)
	rows, err := s.db.QueryxContext(ctx, query, clusterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *sqlStore) UpdateNode(ctx context.Context, n *models.Node) error {
	n.UpdatedAt = time.Now().UTC()
	query := s.rebind(`UPDATE node SET name=?, profile_id=?, cluster_id=?, role=?, index_=?, status=?,
		status_reason=?, physical_id=?, data=?, updated_at=? WHERE id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, n.Name, n.ProfileID, n.ClusterID, n.Role, n.Index,
		n.Status, n.StatusReason, n.PhysicalID, n.Data, n.UpdatedAt, n.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "node", n.ID)
}

func (s *sqlStore) SoftDeleteNode(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := s.rebind(`UPDATE node SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "node", id)
}

// NextNodeIndex returns a dense, monotonic 1-based index for the next member of
// clusterID: one past the current maximum, ignoring gaps left by removed nodes.
func (s *sqlStore) NextNodeIndex(ctx context.Context, clusterID string) (int, error) {
	var max sql.NullInt64
	query := s.rebind(`SELECT MAX(index_) FROM node WHERE cluster_id = ?`)
	if err := s.db.GetContext(ctx, &max, query, clusterID); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}
