package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

// maxAncestorDepth bounds the parent-chain walk so corrupted workspace
// data cannot loop the engine.
const maxAncestorDepth = 20

type workspaceStore interface {
	Create(ctx context.Context, ws *models.Workspace) error
	GetByID(ctx context.Context, id string) (*models.Workspace, error)
	GrantAccess(ctx context.Context, access *models.WorkspaceAccess) error
	GetAccess(ctx context.Context, workspaceID, userID string) (*models.WorkspaceAccess, error)
	ListUserWorkspaceIDs(ctx context.Context, userID string) ([]string, error)
}

// WorkspaceService manages the hierarchical access scopes.
type WorkspaceService struct {
	repo      workspaceStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkspaceService constructs a WorkspaceService.
func NewWorkspaceService(repo workspaceStore, validate *validator.Validate, logger *zap.Logger) *WorkspaceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceService{repo: repo, validator: validate, logger: logger}
}

// Create validates and inserts a workspace, rejecting parent links that
// would introduce a cycle.
func (s *WorkspaceService) Create(ctx context.Context, req dto.CreateWorkspaceRequest) (*models.Workspace, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workspace payload")
	}
	wsType := models.WorkspaceType(req.Type)
	if !wsType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported workspace type")
	}

	ws := &models.Workspace{
		Name:      req.Name,
		Slug:      slugify(req.Name),
		Type:      wsType,
		ParentID:  req.ParentID,
		Published: req.Published,
	}
	if req.Slug != "" {
		ws.Slug = slugify(req.Slug)
	}

	if req.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "parent workspace not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parent workspace")
		}
		// The new workspace has no id yet, so a cycle can only appear if
		// the parent's own chain is already broken. Walking it here both
		// validates the chain and enforces the depth bound.
		if _, err := s.AncestorChain(ctx, parent.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, ws); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create workspace")
	}
	return ws, nil
}

// GrantAccess records a user's membership in a workspace.
func (s *WorkspaceService) GrantAccess(ctx context.Context, req dto.GrantWorkspaceAccessRequest, actor *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid access payload")
	}
	if _, err := s.repo.GetByID(ctx, req.WorkspaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "workspace not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workspace")
	}
	role := req.Role
	if role == "" {
		role = models.WorkspaceRoleMember
	}
	access := &models.WorkspaceAccess{
		WorkspaceID: req.WorkspaceID,
		UserID:      req.UserID,
		Role:        role,
		ExpiresAt:   req.ExpiresAt,
	}
	if actor != nil {
		access.GrantedBy = &actor.UserID
	}
	if err := s.repo.GrantAccess(ctx, access); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant workspace access")
	}
	return nil
}

// HasAccess resolves a user's effective role in a workspace. Published
// workspaces grant viewer access to anyone, soft-deleted or not; callers
// depend on published scopes staying visible.
func (s *WorkspaceService) HasAccess(ctx context.Context, workspaceID, userID string) (string, bool, error) {
	access, err := s.repo.GetAccess(ctx, workspaceID, userID)
	if err == nil {
		return access.Role, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check workspace access")
	}

	ws, err := s.repo.GetByID(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, appErrors.Clone(appErrors.ErrNotFound, "workspace not found")
		}
		return "", false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workspace")
	}
	if ws.Published {
		return models.WorkspaceRoleViewer, true, nil
	}
	return "", false, nil
}

// MemberWorkspaceIDs returns the ids of every workspace the user belongs to.
func (s *WorkspaceService) MemberWorkspaceIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.repo.ListUserWorkspaceIDs(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workspace memberships")
	}
	return ids, nil
}

// AncestorChain walks the parent links from the given workspace toward
// the root and returns the ancestor ids in order. The walk is bounded and
// keeps a visited set so a corrupt chain fails instead of spinning.
func (s *WorkspaceService) AncestorChain(ctx context.Context, workspaceID string) ([]string, error) {
	visited := map[string]struct{}{workspaceID: {}}
	var chain []string

	current := workspaceID
	for depth := 0; depth < maxAncestorDepth; depth++ {
		ws, err := s.repo.GetByID(ctx, current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "workspace not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to walk workspace ancestry")
		}
		if ws.ParentID == nil {
			return chain, nil
		}
		if _, seen := visited[*ws.ParentID]; seen {
			return nil, appErrors.Clone(appErrors.ErrValidation, "workspace hierarchy contains a cycle")
		}
		visited[*ws.ParentID] = struct{}{}
		chain = append(chain, *ws.ParentID)
		current = *ws.ParentID
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "workspace hierarchy exceeds maximum depth")
}

func slugify(raw string) string {
	slug := strings.ToLower(strings.TrimSpace(raw))
	slug = strings.ReplaceAll(slug, " ", "-")
	var b strings.Builder
	for _, r := range slug {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}
