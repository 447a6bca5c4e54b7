package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

type permissionRepoStub struct {
	entries map[string][]models.PermissionEntry
	deleted []string
}

func newPermissionRepoStub() *permissionRepoStub {
	return &permissionRepoStub{entries: make(map[string][]models.PermissionEntry)}
}

func (p *permissionRepoStub) Upsert(ctx context.Context, entry *models.PermissionEntry) error {
	for i := range p.entries[entry.FileID] {
		existing := &p.entries[entry.FileID][i]
		sameSubject := (existing.Subject == nil && entry.Subject == nil) ||
			(existing.Subject != nil && entry.Subject != nil && *existing.Subject == *entry.Subject)
		if existing.Type == entry.Type && sameSubject {
			p.entries[entry.FileID][i] = *entry
			return nil
		}
	}
	p.entries[entry.FileID] = append(p.entries[entry.FileID], *entry)
	return nil
}

func (p *permissionRepoStub) ListByFile(ctx context.Context, fileID string) ([]models.PermissionEntry, error) {
	return p.entries[fileID], nil
}

func (p *permissionRepoStub) DeleteByFile(ctx context.Context, fileID string) error {
	p.deleted = append(p.deleted, fileID)
	delete(p.entries, fileID)
	return nil
}

type fileReaderStub struct {
	files map[string]*models.File
}

func newFileReaderStub(files ...*models.File) *fileReaderStub {
	stub := &fileReaderStub{files: make(map[string]*models.File)}
	for _, f := range files {
		stub.files[f.ID] = f
	}
	return stub
}

func (f *fileReaderStub) GetByID(ctx context.Context, id string) (*models.File, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *file
	return &copy, nil
}

type workspaceResolverStub struct {
	memberships map[string][]string
	ancestors   map[string][]string
}

func (w *workspaceResolverStub) MemberWorkspaceIDs(ctx context.Context, userID string) ([]string, error) {
	return w.memberships[userID], nil
}

func (w *workspaceResolverStub) AncestorChain(ctx context.Context, workspaceID string) ([]string, error) {
	return w.ancestors[workspaceID], nil
}

func subject(value string) *string {
	return &value
}

func TestPermissionCanAccessOwner(t *testing.T) {
	file := &models.File{ID: "file-1", CreatedBy: "alice"}
	repo := newPermissionRepoStub()
	repo.entries["file-1"] = []models.PermissionEntry{
		{FileID: "file-1", Type: models.PermissionOwner, Subject: subject("alice"), CanRead: true, CanWrite: true, CanExecute: true},
	}
	svc := NewPermissionService(repo, newFileReaderStub(file), &workspaceResolverStub{}, nil)

	ok, err := svc.CanAccess(context.Background(), "file-1", &models.JWTClaims{UserID: "alice"}, models.BitWrite)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.CanAccess(context.Background(), "file-1", &models.JWTClaims{UserID: "bob"}, models.BitWrite)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPermissionCanAccessGroupMembership(t *testing.T) {
	file := &models.File{ID: "file-1"}
	repo := newPermissionRepoStub()
	repo.entries["file-1"] = []models.PermissionEntry{
		{FileID: "file-1", Type: models.PermissionGroup, Subject: subject("ws-board"), CanRead: true},
	}
	resolver := &workspaceResolverStub{
		memberships: map[string][]string{"bob": {"ws-board"}},
	}
	svc := NewPermissionService(repo, newFileReaderStub(file), resolver, nil)

	ok, err := svc.CanAccess(context.Background(), "file-1", &models.JWTClaims{UserID: "bob"}, models.BitRead)
	require.NoError(t, err)
	require.True(t, ok)

	// The bit must be set on the entry, membership alone is not enough.
	ok, err = svc.CanAccess(context.Background(), "file-1", &models.JWTClaims{UserID: "bob"}, models.BitWrite)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPermissionCanAccessAncestorInheritance(t *testing.T) {
	file := &models.File{ID: "file-1"}
	repo := newPermissionRepoStub()
	repo.entries["file-1"] = []models.PermissionEntry{
		{FileID: "file-1", Type: models.PermissionGroup, Subject: subject("ws-child"), CanRead: true, InheritToChildren: true},
	}
	resolver := &workspaceResolverStub{
		memberships: map[string][]string{"carol": {"ws-parent"}},
		ancestors:   map[string][]string{"ws-child": {"ws-parent", "ws-root"}},
	}
	svc := NewPermissionService(repo, newFileReaderStub(file), resolver, nil)

	// Carol belongs to an ancestor of the granted workspace.
	ok, err := svc.CanAccess(context.Background(), "file-1", &models.JWTClaims{UserID: "carol"}, models.BitRead)
	require.NoError(t, err)
	require.True(t, ok)

	// Without InheritToChildren the ancestor walk never happens.
	repo.entries["file-1"][0].InheritToChildren = false
	ok, err = svc.CanAccess(context.Background(), "file-1", &models.JWTClaims{UserID: "carol"}, models.BitRead)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPermissionCanAccessExpiredEntry(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	file := &models.File{ID: "file-1"}
	repo := newPermissionRepoStub()
	repo.entries["file-1"] = []models.PermissionEntry{
		{FileID: "file-1", Type: models.PermissionOwner, Subject: subject("alice"), CanRead: true, ExpiresAt: &past},
	}
	svc := NewPermissionService(repo, newFileReaderStub(file), &workspaceResolverStub{}, nil)

	ok, err := svc.CanAccess(context.Background(), "file-1", &models.JWTClaims{UserID: "alice"}, models.BitRead)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPermissionCanAccessWorldFallback(t *testing.T) {
	file := &models.File{ID: "file-1"}
	repo := newPermissionRepoStub()
	repo.entries["file-1"] = []models.PermissionEntry{
		{FileID: "file-1", Type: models.PermissionOwner, Subject: subject("alice"), CanRead: true, CanWrite: true},
		{FileID: "file-1", Type: models.PermissionWorld, CanRead: true},
	}
	svc := NewPermissionService(repo, newFileReaderStub(file), &workspaceResolverStub{}, nil)

	// A stranger falls through to the world entry.
	ok, err := svc.CanAccess(context.Background(), "file-1", &models.JWTClaims{UserID: "mallory"}, models.BitRead)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.CanAccess(context.Background(), "file-1", &models.JWTClaims{UserID: "mallory"}, models.BitWrite)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPermissionCanAccessPublicRead(t *testing.T) {
	file := &models.File{ID: "file-1", IsPublic: true}
	svc := NewPermissionService(newPermissionRepoStub(), newFileReaderStub(file), &workspaceResolverStub{}, nil)

	// Public files are readable without any claims.
	ok, err := svc.CanAccess(context.Background(), "file-1", nil, models.BitRead)
	require.NoError(t, err)
	require.True(t, ok)

	// But never writable anonymously.
	ok, err = svc.CanAccess(context.Background(), "file-1", nil, models.BitWrite)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPermissionCanAccessAdminBypass(t *testing.T) {
	svc := NewPermissionService(newPermissionRepoStub(), newFileReaderStub(), &workspaceResolverStub{}, nil)

	ok, err := svc.CanAccess(context.Background(), "missing", &models.JWTClaims{UserID: "root", IsAdmin: true}, models.BitExecute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPermissionCanAccessUnknownFile(t *testing.T) {
	svc := NewPermissionService(newPermissionRepoStub(), newFileReaderStub(), &workspaceResolverStub{}, nil)

	_, err := svc.CanAccess(context.Background(), "missing", &models.JWTClaims{UserID: "alice"}, models.BitRead)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestPermissionSetOwnerUpserts(t *testing.T) {
	file := &models.File{ID: "file-1", CreatedBy: "alice"}
	repo := newPermissionRepoStub()
	svc := NewPermissionService(repo, newFileReaderStub(file), &workspaceResolverStub{}, nil)
	creator := &models.JWTClaims{UserID: "alice"}

	err := svc.SetOwner(context.Background(), "file-1", "alice", dto.PermissionBitsRequest{Read: true, Write: true, Execute: true}, creator)
	require.NoError(t, err)
	require.Len(t, repo.entries["file-1"], 1)
	require.Equal(t, models.PermissionOwner, repo.entries["file-1"][0].Type)

	// A second call replaces the existing owner entry rather than adding one.
	err = svc.SetOwner(context.Background(), "file-1", "alice", dto.PermissionBitsRequest{Read: true}, creator)
	require.NoError(t, err)
	require.Len(t, repo.entries["file-1"], 1)
	require.False(t, repo.entries["file-1"][0].CanWrite)
}

func TestPermissionMutationsRequireOwner(t *testing.T) {
	file := &models.File{ID: "file-1", CreatedBy: "alice"}
	repo := newPermissionRepoStub()
	repo.entries["file-1"] = []models.PermissionEntry{
		{FileID: "file-1", Type: models.PermissionOwner, Subject: subject("alice"), CanRead: true, CanWrite: true},
	}
	svc := NewPermissionService(repo, newFileReaderStub(file), &workspaceResolverStub{}, nil)
	stranger := &models.JWTClaims{UserID: "mallory"}
	bits := dto.PermissionBitsRequest{Read: true, Write: true}

	err := svc.SetOwner(context.Background(), "file-1", "mallory", bits, stranger)
	require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	err = svc.GrantGroup(context.Background(), "file-1", "ws-board", bits, false, stranger)
	require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	err = svc.SetWorld(context.Background(), "file-1", bits, stranger)
	require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))

	// Nothing was written.
	require.Len(t, repo.entries["file-1"], 1)
	require.Equal(t, "alice", *repo.entries["file-1"][0].Subject)

	// Anonymous callers are rejected outright.
	err = svc.SetWorld(context.Background(), "file-1", bits, nil)
	require.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	// Admins and the owner entry's subject both pass.
	err = svc.SetWorld(context.Background(), "file-1", bits, &models.JWTClaims{UserID: "root", IsAdmin: true})
	require.NoError(t, err)
	err = svc.GrantGroup(context.Background(), "file-1", "ws-board", bits, false, &models.JWTClaims{UserID: "alice"})
	require.NoError(t, err)
}

func TestPermissionRequireOwnerHonoursOwnerEntry(t *testing.T) {
	// Ownership can be handed over: the entry's subject qualifies even
	// when it is not the file's creator.
	file := &models.File{ID: "file-1", CreatedBy: "alice"}
	repo := newPermissionRepoStub()
	repo.entries["file-1"] = []models.PermissionEntry{
		{FileID: "file-1", Type: models.PermissionOwner, Subject: subject("bob"), CanRead: true, CanWrite: true},
	}
	svc := NewPermissionService(repo, newFileReaderStub(file), &workspaceResolverStub{}, nil)

	err := svc.RequireOwner(context.Background(), "file-1", &models.JWTClaims{UserID: "bob"})
	require.NoError(t, err)

	// An expired owner entry no longer qualifies.
	past := time.Now().Add(-time.Hour)
	repo.entries["file-1"][0].ExpiresAt = &past
	err = svc.RequireOwner(context.Background(), "file-1", &models.JWTClaims{UserID: "bob"})
	require.True(t, appErrors.Is(err, appErrors.ErrPermissionDenied))
}
