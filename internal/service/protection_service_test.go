package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

type protectionStoreStub struct {
	rules map[string]*models.ProtectionRule
	log   []models.ProtectionLogEntry
}

func (p *protectionStoreStub) FindRuleByTrigger(ctx context.Context, trigger string) (*models.ProtectionRule, error) {
	rule, ok := p.rules[trigger]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *rule
	return &copy, nil
}

func (p *protectionStoreStub) AppendLog(ctx context.Context, entry *models.ProtectionLogEntry) error {
	p.log = append(p.log, *entry)
	return nil
}

func (p *protectionStoreStub) ListLogByFile(ctx context.Context, fileID string) ([]models.ProtectionLogEntry, error) {
	var result []models.ProtectionLogEntry
	for _, entry := range p.log {
		if entry.FileID == fileID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type protectionFileStoreStub struct {
	files map[string]*models.File
}

func (f *protectionFileStoreStub) GetByID(ctx context.Context, id string) (*models.File, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *file
	return &copy, nil
}

func (f *protectionFileStoreStub) SetProtection(ctx context.Context, fileID string, level models.ProtectionLevel, overrideCap *string) error {
	if file, ok := f.files[fileID]; ok {
		file.Protection = level
		file.OverrideCap = overrideCap
	}
	return nil
}

func TestProtectionCheckActionLevels(t *testing.T) {
	cases := []struct {
		level   models.ProtectionLevel
		action  models.ProtectedAction
		allowed bool
	}{
		{models.ProtectionNone, models.ActionEdit, true},
		{models.ProtectionNone, models.ActionReplace, true},
		{models.ProtectionNone, models.ActionDelete, true},
		{"", models.ActionDelete, true},
		{models.ProtectionEditOnly, models.ActionEdit, false},
		{models.ProtectionEditOnly, models.ActionReplace, false},
		{models.ProtectionEditOnly, models.ActionDelete, true},
		{models.ProtectionReplaceOnly, models.ActionEdit, false},
		{models.ProtectionReplaceOnly, models.ActionReplace, true},
		{models.ProtectionReplaceOnly, models.ActionDelete, false},
		{models.ProtectionFull, models.ActionEdit, false},
		{models.ProtectionFull, models.ActionReplace, false},
		{models.ProtectionFull, models.ActionDelete, false},
	}

	svc := NewProtectionService(&protectionStoreStub{}, &protectionFileStoreStub{}, &accessCheckerStub{}, nil)
	for _, tc := range cases {
		file := &models.File{ID: "file-1", Protection: tc.level}
		err := svc.CheckAction(file, tc.action, &models.JWTClaims{UserID: "alice"})
		if tc.allowed {
			require.NoError(t, err, "%s/%s", tc.level, tc.action)
		} else {
			require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied), "%s/%s", tc.level, tc.action)
		}
	}
}

func TestProtectionCheckActionOverride(t *testing.T) {
	svc := NewProtectionService(&protectionStoreStub{}, &protectionFileStoreStub{}, &accessCheckerStub{}, nil)
	capability := "legal_hold_release"
	file := &models.File{ID: "file-1", Protection: models.ProtectionFull, OverrideCap: &capability}

	// Admins bypass any protection level.
	err := svc.CheckAction(file, models.ActionDelete, &models.JWTClaims{UserID: "root", IsAdmin: true})
	require.NoError(t, err)

	// A matching capability unlocks the action.
	err = svc.CheckAction(file, models.ActionDelete, &models.JWTClaims{UserID: "bob", Capabilities: []string{"legal_hold_release"}})
	require.NoError(t, err)

	// A different capability does not.
	err = svc.CheckAction(file, models.ActionDelete, &models.JWTClaims{UserID: "bob", Capabilities: []string{"billing"}})
	require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	// Anonymous callers never hold an override.
	err = svc.CheckAction(file, models.ActionDelete, nil)
	require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))
}

func TestProtectionProtectRejectsInvalidLevel(t *testing.T) {
	files := &protectionFileStoreStub{files: map[string]*models.File{"file-1": {ID: "file-1"}}}
	svc := NewProtectionService(&protectionStoreStub{}, files, &accessCheckerStub{}, nil)

	err := svc.Protect(context.Background(), "file-1", models.ProtectionNone, "", nil, "")
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))

	err = svc.Protect(context.Background(), "file-1", models.ProtectionLevel("frozen"), "", nil, "")
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestProtectionProtectAndUnprotect(t *testing.T) {
	files := &protectionFileStoreStub{files: map[string]*models.File{"file-1": {ID: "file-1"}}}
	store := &protectionStoreStub{}
	svc := NewProtectionService(store, files, &accessCheckerStub{}, nil)
	actor := &models.JWTClaims{UserID: "alice"}

	err := svc.Protect(context.Background(), "file-1", models.ProtectionFull, "legal_hold_release", actor, "litigation hold")
	require.NoError(t, err)
	require.Equal(t, models.ProtectionFull, files.files["file-1"].Protection)
	require.NotNil(t, files.files["file-1"].OverrideCap)
	require.Equal(t, "legal_hold_release", *files.files["file-1"].OverrideCap)

	err = svc.Unprotect(context.Background(), "file-1", actor, "hold lifted")
	require.NoError(t, err)
	require.Equal(t, models.ProtectionNone, files.files["file-1"].Protection)
	require.Nil(t, files.files["file-1"].OverrideCap)

	history, err := svc.History(context.Background(), "file-1", actor)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, models.ProtectionActionProtect, history[0].Action)
	require.Equal(t, "alice", history[0].ActorID)
	require.NotNil(t, history[0].Reason)
	require.Equal(t, "litigation hold", *history[0].Reason)
	require.Equal(t, models.ProtectionActionUnprotect, history[1].Action)
}

func TestProtectionMutationsDeniedWithoutWrite(t *testing.T) {
	files := &protectionFileStoreStub{files: map[string]*models.File{"file-1": {ID: "file-1"}}}
	store := &protectionStoreStub{}
	svc := NewProtectionService(store, files, &accessCheckerStub{denyWrite: true}, nil)
	stranger := &models.JWTClaims{UserID: "mallory"}

	err := svc.Protect(context.Background(), "file-1", models.ProtectionFull, "", stranger, "hostile hold")
	require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))
	require.Equal(t, models.ProtectionLevel(""), files.files["file-1"].Protection)

	err = svc.Unprotect(context.Background(), "file-1", stranger, "hostile lift")
	require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))
	require.Empty(t, store.log)
}

func TestProtectionHistoryDeniedWithoutRead(t *testing.T) {
	svc := NewProtectionService(&protectionStoreStub{}, &protectionFileStoreStub{}, &accessCheckerStub{denyRead: true}, nil)

	_, err := svc.History(context.Background(), "file-1", &models.JWTClaims{UserID: "mallory"})
	require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))
}

func TestProtectionProtectUnknownFile(t *testing.T) {
	svc := NewProtectionService(&protectionStoreStub{}, &protectionFileStoreStub{}, &accessCheckerStub{}, nil)

	err := svc.Protect(context.Background(), "missing", models.ProtectionFull, "", nil, "")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestProtectionRecordOverrideRequiresCapability(t *testing.T) {
	capability := "legal_hold_release"
	files := &protectionFileStoreStub{files: map[string]*models.File{
		"file-1": {ID: "file-1", Protection: models.ProtectionFull, OverrideCap: &capability},
	}}
	store := &protectionStoreStub{}
	svc := NewProtectionService(store, files, &accessCheckerStub{}, nil)

	err := svc.RecordOverride(context.Background(), "file-1", &models.JWTClaims{UserID: "bob"}, "urgent delete")
	require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))
	require.Empty(t, store.log)

	err = svc.RecordOverride(context.Background(), "file-1", &models.JWTClaims{UserID: "bob", Capabilities: []string{"legal_hold_release"}}, "urgent delete")
	require.NoError(t, err)
	require.Len(t, store.log, 1)
	require.Equal(t, models.ProtectionActionOverride, store.log[0].Action)
	require.Equal(t, models.ProtectionFull, store.log[0].Level)
}

func TestProtectionApplyStatusRule(t *testing.T) {
	files := &protectionFileStoreStub{files: map[string]*models.File{"file-1": {ID: "file-1"}}}
	store := &protectionStoreStub{rules: map[string]*models.ProtectionRule{
		"approved": {Trigger: "approved", Level: models.ProtectionReplaceOnly, OverrideCap: "records_admin"},
	}}
	svc := NewProtectionService(store, files, &accessCheckerStub{}, nil)

	// No rule for the status means no change at all.
	err := svc.ApplyStatusRule(context.Background(), "file-1", "draft", nil)
	require.NoError(t, err)
	require.Equal(t, models.ProtectionLevel(""), files.files["file-1"].Protection)

	err = svc.ApplyStatusRule(context.Background(), "file-1", "approved", &models.JWTClaims{UserID: "alice"})
	require.NoError(t, err)
	require.Equal(t, models.ProtectionReplaceOnly, files.files["file-1"].Protection)

	history, err := svc.History(context.Background(), "file-1", &models.JWTClaims{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].Reason)
	require.Equal(t, "status rule: approved", *history[0].Reason)
}
