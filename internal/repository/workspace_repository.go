package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/harborview/dms-storage-api/internal/models"
)

// WorkspaceRepository persists the workspace hierarchy and memberships.
type WorkspaceRepository struct {
	db *sqlx.DB
}

// NewWorkspaceRepository constructs the repository.
func NewWorkspaceRepository(db *sqlx.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

const workspaceColumns = `id, name, slug, type, parent_id, published, created_at, deleted_at`

// Create inserts a workspace.
func (r *WorkspaceRepository) Create(ctx context.Context, ws *models.Workspace) error {
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	ws.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO workspaces (id, name, slug, type, parent_id, published, created_at, deleted_at)
VALUES (:id, :name, :slug, :type, :parent_id, :published, :created_at, :deleted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ws); err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

// GetByID fetches a workspace including soft-deleted rows.
func (r *WorkspaceRepository) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	query := fmt.Sprintf(`SELECT %s FROM workspaces WHERE id = $1`, workspaceColumns)
	var ws models.Workspace
	if err := r.db.GetContext(ctx, &ws, query, id); err != nil {
		return nil, err
	}
	return &ws, nil
}

// GrantAccess records a user's membership, replacing an existing grant.
func (r *WorkspaceRepository) GrantAccess(ctx context.Context, access *models.WorkspaceAccess) error {
	if access.ID == "" {
		access.ID = uuid.NewString()
	}
	access.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO workspace_access (id, workspace_id, user_id, role, granted_by, expires_at, created_at)
VALUES (:id, :workspace_id, :user_id, :role, :granted_by, :expires_at, :created_at)
ON CONFLICT (workspace_id, user_id)
DO UPDATE SET role = EXCLUDED.role, granted_by = EXCLUDED.granted_by,
              expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, access); err != nil {
		return fmt.Errorf("grant workspace access: %w", err)
	}
	return nil
}

// GetAccess returns a user's membership row, if any.
func (r *WorkspaceRepository) GetAccess(ctx context.Context, workspaceID, userID string) (*models.WorkspaceAccess, error) {
	const query = `SELECT id, workspace_id, user_id, role, granted_by, expires_at, created_at
FROM workspace_access WHERE workspace_id = $1 AND user_id = $2`
	var access models.WorkspaceAccess
	if err := r.db.GetContext(ctx, &access, query, workspaceID, userID); err != nil {
		return nil, err
	}
	return &access, nil
}

// ListUserWorkspaceIDs returns every workspace the user belongs to,
// excluding lapsed grants.
func (r *WorkspaceRepository) ListUserWorkspaceIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT workspace_id FROM workspace_access
WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > $2)`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("list user workspaces: %w", err)
	}
	return ids, nil
}
