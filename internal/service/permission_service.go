package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

type permissionStore interface {
	Upsert(ctx context.Context, entry *models.PermissionEntry) error
	ListByFile(ctx context.Context, fileID string) ([]models.PermissionEntry, error)
	DeleteByFile(ctx context.Context, fileID string) error
}

type permissionFileReader interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
}

type workspaceResolver interface {
	MemberWorkspaceIDs(ctx context.Context, userID string) ([]string, error)
	AncestorChain(ctx context.Context, workspaceID string) ([]string, error)
}

// PermissionService resolves owner/group/world access with hierarchical
// group inheritance.
type PermissionService struct {
	repo       permissionStore
	files      permissionFileReader
	workspaces workspaceResolver
	logger     *zap.Logger
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(repo permissionStore, files permissionFileReader, workspaces workspaceResolver, logger *zap.Logger) *PermissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionService{repo: repo, files: files, workspaces: workspaces, logger: logger}
}

// CanAccess resolves whether the caller holds the requested bit on the
// file. Resolution order: admin, public-read, owner, group (with
// ancestor inheritance consulted only when the direct membership match
// fails), world, deny. Absent entries count as all bits unset.
func (s *PermissionService) CanAccess(ctx context.Context, fileID string, claims *models.JWTClaims, bit models.PermissionBit) (bool, error) {
	if !bit.Valid() {
		return false, appErrors.Clone(appErrors.ErrValidation, "unsupported permission bit")
	}
	if claims != nil && claims.IsAdmin {
		return true, nil
	}

	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}

	if bit == models.BitRead && file.IsPublic {
		return true, nil
	}
	if claims == nil {
		return false, nil
	}

	entries, err := s.repo.ListByFile(ctx, fileID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permissions")
	}

	now := time.Now().UTC()
	var memberIDs []string
	memberLoaded := false
	memberOf := func(workspaceID string) (bool, error) {
		if !memberLoaded {
			ids, err := s.workspaces.MemberWorkspaceIDs(ctx, claims.UserID)
			if err != nil {
				return false, err
			}
			memberIDs = ids
			memberLoaded = true
		}
		for _, id := range memberIDs {
			if id == workspaceID {
				return true, nil
			}
		}
		return false, nil
	}

	var world *models.PermissionEntry
	for i := range entries {
		entry := &entries[i]
		if entry.Expired(now) {
			continue
		}
		switch entry.Type {
		case models.PermissionOwner:
			if entry.Subject != nil && *entry.Subject == claims.UserID && entry.HasBit(bit) {
				return true, nil
			}
		case models.PermissionGroup:
			if entry.Subject == nil || !entry.HasBit(bit) {
				continue
			}
			direct, err := memberOf(*entry.Subject)
			if err != nil {
				return false, err
			}
			if direct {
				return true, nil
			}
			if !entry.InheritToChildren {
				continue
			}
			ancestors, err := s.workspaces.AncestorChain(ctx, *entry.Subject)
			if err != nil {
				// A broken hierarchy must not grant access.
				s.logger.Warn("ancestor walk failed during permission check",
					zap.String("file_id", fileID), zap.String("workspace_id", *entry.Subject), zap.Error(err))
				continue
			}
			for _, ancestor := range ancestors {
				ok, err := memberOf(ancestor)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
		case models.PermissionWorld:
			world = entry
		}
	}

	if world != nil && world.HasBit(bit) {
		return true, nil
	}
	return false, nil
}

// RequireOwner ensures the caller may administer the file's permission
// entries. Admins, the file's creator, and the subject of an unexpired
// owner entry qualify.
func (s *PermissionService) RequireOwner(ctx context.Context, fileID string, claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if claims.IsAdmin || file.CreatedBy == claims.UserID {
		return nil
	}
	entries, err := s.repo.ListByFile(ctx, fileID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permissions")
	}
	now := time.Now().UTC()
	for i := range entries {
		entry := &entries[i]
		if entry.Type == models.PermissionOwner && !entry.Expired(now) &&
			entry.Subject != nil && *entry.Subject == claims.UserID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrPermissionDenied, "only the owner may manage permissions")
}

// SetOwner writes the file's single owner entry.
func (s *PermissionService) SetOwner(ctx context.Context, fileID, userID string, req dto.PermissionBitsRequest, claims *models.JWTClaims) error {
	if err := s.RequireOwner(ctx, fileID, claims); err != nil {
		return err
	}
	entry := &models.PermissionEntry{
		FileID:     fileID,
		Type:       models.PermissionOwner,
		Subject:    &userID,
		CanRead:    req.Read,
		CanWrite:   req.Write,
		CanExecute: req.Execute,
		ExpiresAt:  req.ExpiresAt,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set owner permission")
	}
	return nil
}

// GrantGroup writes a group entry for one workspace.
func (s *PermissionService) GrantGroup(ctx context.Context, fileID, workspaceID string, req dto.PermissionBitsRequest, inherit bool, claims *models.JWTClaims) error {
	if err := s.RequireOwner(ctx, fileID, claims); err != nil {
		return err
	}
	if _, err := s.workspaces.AncestorChain(ctx, workspaceID); err != nil {
		return err
	}
	entry := &models.PermissionEntry{
		FileID:            fileID,
		Type:              models.PermissionGroup,
		Subject:           &workspaceID,
		CanRead:           req.Read,
		CanWrite:          req.Write,
		CanExecute:        req.Execute,
		InheritToChildren: inherit,
		ExpiresAt:         req.ExpiresAt,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant group permission")
	}
	return nil
}

// SetWorld writes the file's single world entry.
func (s *PermissionService) SetWorld(ctx context.Context, fileID string, req dto.PermissionBitsRequest, claims *models.JWTClaims) error {
	if err := s.RequireOwner(ctx, fileID, claims); err != nil {
		return err
	}
	entry := &models.PermissionEntry{
		FileID:     fileID,
		Type:       models.PermissionWorld,
		CanRead:    req.Read,
		CanWrite:   req.Write,
		CanExecute: req.Execute,
		ExpiresAt:  req.ExpiresAt,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set world permission")
	}
	return nil
}

// ListByFile returns the file's permission entries.
func (s *PermissionService) ListByFile(ctx context.Context, fileID string) ([]models.PermissionEntry, error) {
	entries, err := s.repo.ListByFile(ctx, fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permissions")
	}
	return entries, nil
}

// DeleteByFile drops every permission entry of a file, used on hard delete.
func (s *PermissionService) DeleteByFile(ctx context.Context, fileID string) error {
	if err := s.repo.DeleteByFile(ctx, fileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop permissions")
	}
	return nil
}
