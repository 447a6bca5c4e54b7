package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

type protectionStore interface {
	FindRuleByTrigger(ctx context.Context, trigger string) (*models.ProtectionRule, error)
	AppendLog(ctx context.Context, entry *models.ProtectionLogEntry) error
	ListLogByFile(ctx context.Context, fileID string) ([]models.ProtectionLogEntry, error)
}

type protectionFileStore interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
	SetProtection(ctx context.Context, fileID string, level models.ProtectionLevel, overrideCap *string) error
}

type protectionAccessChecker interface {
	CanAccess(ctx context.Context, fileID string, claims *models.JWTClaims, bit models.PermissionBit) (bool, error)
}

// ProtectionService layers document protection on top of the rwx model.
// Normal permission checks run first; protection adds a second gate.
type ProtectionService struct {
	repo        protectionStore
	files       protectionFileStore
	permissions protectionAccessChecker
	logger      *zap.Logger
}

// NewProtectionService constructs a ProtectionService.
func NewProtectionService(repo protectionStore, files protectionFileStore, permissions protectionAccessChecker, logger *zap.Logger) *ProtectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProtectionService{repo: repo, files: files, permissions: permissions, logger: logger}
}

// CheckAction reports whether the protection level permits the action for
// this caller. The caller passes when unprotected, when the level allows
// the action, or when it holds the file's override capability.
func (s *ProtectionService) CheckAction(file *models.File, action models.ProtectedAction, claims *models.JWTClaims) error {
	if file == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	if allowed := protectionAllows(file.Protection, action); allowed {
		return nil
	}
	if holdsOverride(file, claims) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrPermissionDenied, "document is protected against "+string(action))
}

// Protect sets a protection level and appends the audit record.
func (s *ProtectionService) Protect(ctx context.Context, fileID string, level models.ProtectionLevel, overrideCap string, actor *models.JWTClaims, reason string) error {
	if !level.Valid() || level == models.ProtectionNone {
		return appErrors.Clone(appErrors.ErrValidation, "unsupported protection level")
	}
	if err := s.requireWrite(ctx, fileID, actor); err != nil {
		return err
	}
	if _, err := s.requireFile(ctx, fileID); err != nil {
		return err
	}
	var capPtr *string
	if overrideCap != "" {
		capPtr = &overrideCap
	}
	if err := s.files.SetProtection(ctx, fileID, level, capPtr); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to protect document")
	}
	s.appendLog(ctx, fileID, models.ProtectionActionProtect, level, actor, reason)
	return nil
}

// Unprotect clears the protection level and appends the audit record.
func (s *ProtectionService) Unprotect(ctx context.Context, fileID string, actor *models.JWTClaims, reason string) error {
	if err := s.requireWrite(ctx, fileID, actor); err != nil {
		return err
	}
	if _, err := s.requireFile(ctx, fileID); err != nil {
		return err
	}
	if err := s.files.SetProtection(ctx, fileID, models.ProtectionNone, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unprotect document")
	}
	s.appendLog(ctx, fileID, models.ProtectionActionUnprotect, models.ProtectionNone, actor, reason)
	return nil
}

// RecordOverride audits a caller exercising its override capability.
func (s *ProtectionService) RecordOverride(ctx context.Context, fileID string, actor *models.JWTClaims, reason string) error {
	file, err := s.requireFile(ctx, fileID)
	if err != nil {
		return err
	}
	if !holdsOverride(file, actor) {
		return appErrors.Clone(appErrors.ErrPermissionDenied, "caller does not hold the override capability")
	}
	s.appendLog(ctx, fileID, models.ProtectionActionOverride, file.Protection, actor, reason)
	return nil
}

// ApplyStatusRule protects a file automatically when its external status
// matches a configured trigger. A missing rule is not an error.
func (s *ProtectionService) ApplyStatusRule(ctx context.Context, fileID, statusValue string, actor *models.JWTClaims) error {
	rule, err := s.repo.FindRuleByTrigger(ctx, statusValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load protection rule")
	}
	return s.Protect(ctx, fileID, rule.Level, rule.OverrideCap, actor, "status rule: "+statusValue)
}

// History returns the file's protection audit trail.
func (s *ProtectionService) History(ctx context.Context, fileID string, claims *models.JWTClaims) ([]models.ProtectionLogEntry, error) {
	ok, err := s.permissions.CanAccess(ctx, fileID, claims, models.BitRead)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "read access denied")
	}
	entries, err := s.repo.ListLogByFile(ctx, fileID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list protection log")
	}
	return entries, nil
}

func (s *ProtectionService) requireWrite(ctx context.Context, fileID string, claims *models.JWTClaims) error {
	ok, err := s.permissions.CanAccess(ctx, fileID, claims, models.BitWrite)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrPermissionDenied, "write access denied")
	}
	return nil
}

func (s *ProtectionService) requireFile(ctx context.Context, fileID string) (*models.File, error) {
	file, err := s.files.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	return file, nil
}

func (s *ProtectionService) appendLog(ctx context.Context, fileID, action string, level models.ProtectionLevel, actor *models.JWTClaims, reason string) {
	entry := &models.ProtectionLogEntry{
		FileID: fileID,
		Action: action,
		Level:  level,
	}
	if actor != nil {
		entry.ActorID = actor.UserID
	}
	if reason != "" {
		entry.Reason = &reason
	}
	if err := s.repo.AppendLog(ctx, entry); err != nil {
		s.logger.Warn("failed to append protection log", zap.String("file_id", fileID), zap.Error(err))
	}
}

func protectionAllows(level models.ProtectionLevel, action models.ProtectedAction) bool {
	switch level {
	case models.ProtectionNone, "":
		return true
	case models.ProtectionEditOnly:
		return action == models.ActionDelete
	case models.ProtectionReplaceOnly:
		return action == models.ActionReplace
	case models.ProtectionFull:
		return false
	}
	return false
}

func holdsOverride(file *models.File, claims *models.JWTClaims) bool {
	if claims == nil {
		return false
	}
	if claims.IsAdmin {
		return true
	}
	if file.OverrideCap == nil {
		return false
	}
	for _, capability := range claims.Capabilities {
		if capability == *file.OverrideCap {
			return true
		}
	}
	return false
}
