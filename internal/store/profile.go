package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
)

const profileColumns = `id, name, type, version, spec, permission, metadata, created_at, updated_at, deleted_at`

func (s *sqlStore) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Spec == nil {
		p.Spec = models.JSONMap{}
	}
	if p.Metadata == nil {
		p.Metadata = models.JSONMap{}
	}
	query := s.rebind(`INSERT INTO profile (id, name, type, version, spec, permission, metadata, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	_, err := s.db.ExecContext(ctx, query, p.ID, p.Name, p.Type, p.Version, p.Spec, p.Permission,
		p.Metadata, p.CreatedAt, p.UpdatedAt)
	return err
}

func scanProfile(row interface{ Scan(...interface{}) error }) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.Name, &p.Type, &p.Version, &p.Spec, &p.Permission, &p.Metadata,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	return &p, err
}

func (s *sqlStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	query := s.rebind(`SELECT ` + profileColumns + ` FROM profile WHERE id = ? AND deleted_at IS NULL`)
	p, err := scanProfile(s.db.QueryRowxContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("profile", id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *sqlStore) ListProfiles(ctx context.Context, opts ListOptions) ([]*models.Profile, error) {
	query := "SELECT " + profileColumns + " FROM profile WHERE 1=1"
	if !opts.ShowDeleted {
		query += " AND deleted_at IS NULL"
	}
	query += orderAndLimit(opts, "created_at")
	rows, err := s.db.QueryxContext(ctx, s.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProfileMetadata updates the mutable fields only (name/permission/metadata);
// Spec is immutable after creation; a spec change must CreateProfile a new row.
func (s *sqlStore) UpdateProfileMetadata(ctx context.Context, p *models.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	query := s.rebind(`UPDATE profile SET name=?, permission=?, metadata=?, updated_at=?
		WHERE id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, p.Name, p.Permission, p.Metadata, p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "profile", p.ID)
}

func (s *sqlStore) SoftDeleteProfile(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := s.rebind(`UPDATE profile SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`)
	res, err := s.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res, "profile", id)
}
