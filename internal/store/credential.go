package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clustermgr/engine/internal/models"
)

func (s *sqlStore) CreateCredential(ctx context.Context, c *models.Credential) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Data == nil {
		c.Data = models.JSONMap{}
	}
	query := s.rebind(`INSERT INTO credential
		(id, name, type, owner_user, owner_project, owner_domain, data, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.Type, c.Owner.User, c.Owner.Project,
		c.Owner.Domain, c.Data, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *sqlStore) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	var c models.Credential
	query := s.rebind(`SELECT id, name, type, owner_user, owner_project, owner_domain, data, created_at, updated_at, deleted_at
		FROM credential WHERE id = ? AND deleted_at IS NULL`)
	err := s.db.QueryRowxContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Type, &c.Owner.User,
		&c.Owner.Project, &c.Owner.Domain, &c.Data, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound("credential", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
