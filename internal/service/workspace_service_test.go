package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborview/dms-storage-api/internal/dto"
	"github.com/harborview/dms-storage-api/internal/models"
	appErrors "github.com/harborview/dms-storage-api/pkg/errors"
)

type workspaceStoreStub struct {
	workspaces map[string]*models.Workspace
	access     map[string]*models.WorkspaceAccess
	seq        int
}

func newWorkspaceStoreStub() *workspaceStoreStub {
	return &workspaceStoreStub{
		workspaces: make(map[string]*models.Workspace),
		access:     make(map[string]*models.WorkspaceAccess),
	}
}

func (w *workspaceStoreStub) add(id string, parentID *string, published bool) {
	w.workspaces[id] = &models.Workspace{ID: id, Name: id, Type: models.WorkspaceGroup, ParentID: parentID, Published: published}
}

func (w *workspaceStoreStub) Create(ctx context.Context, ws *models.Workspace) error {
	w.seq++
	ws.ID = fmt.Sprintf("ws-%d", w.seq)
	copy := *ws
	w.workspaces[ws.ID] = &copy
	return nil
}

func (w *workspaceStoreStub) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	ws, ok := w.workspaces[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *ws
	return &copy, nil
}

func (w *workspaceStoreStub) GrantAccess(ctx context.Context, access *models.WorkspaceAccess) error {
	copy := *access
	w.access[access.WorkspaceID+"/"+access.UserID] = &copy
	return nil
}

func (w *workspaceStoreStub) GetAccess(ctx context.Context, workspaceID, userID string) (*models.WorkspaceAccess, error) {
	access, ok := w.access[workspaceID+"/"+userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *access
	return &copy, nil
}

func (w *workspaceStoreStub) ListUserWorkspaceIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for _, access := range w.access {
		if access.UserID == userID {
			ids = append(ids, access.WorkspaceID)
		}
	}
	return ids, nil
}

func TestWorkspaceCreateSlugifiesName(t *testing.T) {
	store := newWorkspaceStoreStub()
	svc := NewWorkspaceService(store, nil, nil)

	ws, err := svc.Create(context.Background(), dto.CreateWorkspaceRequest{Name: "Finance Committee 2026!", Type: "committee"})
	require.NoError(t, err)
	require.Equal(t, "finance-committee-2026", ws.Slug)
	require.Equal(t, models.WorkspaceCommittee, ws.Type)
}

func TestWorkspaceCreateRejectsUnknownType(t *testing.T) {
	svc := NewWorkspaceService(newWorkspaceStoreStub(), nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateWorkspaceRequest{Name: "X", Type: "guild"})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestWorkspaceCreateUnderMissingParent(t *testing.T) {
	svc := NewWorkspaceService(newWorkspaceStoreStub(), nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateWorkspaceRequest{Name: "Child", Type: "group", ParentID: subject("ws-404")})
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestWorkspaceCreateRejectsCyclicParentChain(t *testing.T) {
	store := newWorkspaceStoreStub()
	// ws-a and ws-b point at each other.
	store.add("ws-a", subject("ws-b"), false)
	store.add("ws-b", subject("ws-a"), false)
	svc := NewWorkspaceService(store, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateWorkspaceRequest{Name: "Child", Type: "group", ParentID: subject("ws-a")})
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestWorkspaceAncestorChain(t *testing.T) {
	store := newWorkspaceStoreStub()
	store.add("ws-root", nil, false)
	store.add("ws-mid", subject("ws-root"), false)
	store.add("ws-leaf", subject("ws-mid"), false)
	svc := NewWorkspaceService(store, nil, nil)

	chain, err := svc.AncestorChain(context.Background(), "ws-leaf")
	require.NoError(t, err)
	require.Equal(t, []string{"ws-mid", "ws-root"}, chain)

	chain, err = svc.AncestorChain(context.Background(), "ws-root")
	require.NoError(t, err)
	require.Empty(t, chain)
}

func TestWorkspaceAncestorChainDepthBound(t *testing.T) {
	store := newWorkspaceStoreStub()
	store.add("ws-0", nil, false)
	for i := 1; i <= maxAncestorDepth+1; i++ {
		parent := fmt.Sprintf("ws-%d", i-1)
		store.add(fmt.Sprintf("ws-%d", i), &parent, false)
	}
	svc := NewWorkspaceService(store, nil, nil)

	_, err := svc.AncestorChain(context.Background(), fmt.Sprintf("ws-%d", maxAncestorDepth+1))
	require.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestWorkspaceGrantAccessDefaultsRole(t *testing.T) {
	store := newWorkspaceStoreStub()
	store.add("ws-board", nil, false)
	svc := NewWorkspaceService(store, nil, nil)

	err := svc.GrantAccess(context.Background(), dto.GrantWorkspaceAccessRequest{WorkspaceID: "ws-board", UserID: "bob"}, &models.JWTClaims{UserID: "alice"})
	require.NoError(t, err)

	access := store.access["ws-board/bob"]
	require.NotNil(t, access)
	require.Equal(t, models.WorkspaceRoleMember, access.Role)
	require.NotNil(t, access.GrantedBy)
	require.Equal(t, "alice", *access.GrantedBy)
}

func TestWorkspaceGrantAccessUnknownWorkspace(t *testing.T) {
	svc := NewWorkspaceService(newWorkspaceStoreStub(), nil, nil)

	err := svc.GrantAccess(context.Background(), dto.GrantWorkspaceAccessRequest{WorkspaceID: "ws-404", UserID: "bob"}, nil)
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestWorkspaceHasAccess(t *testing.T) {
	store := newWorkspaceStoreStub()
	store.add("ws-private", nil, false)
	store.add("ws-public", nil, true)
	store.access["ws-private/bob"] = &models.WorkspaceAccess{WorkspaceID: "ws-private", UserID: "bob", Role: models.WorkspaceRoleAdmin}
	svc := NewWorkspaceService(store, nil, nil)

	role, ok, err := svc.HasAccess(context.Background(), "ws-private", "bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.WorkspaceRoleAdmin, role)

	// Strangers are kept out of private workspaces.
	_, ok, err = svc.HasAccess(context.Background(), "ws-private", "mallory")
	require.NoError(t, err)
	require.False(t, ok)

	// Published workspaces admit anyone as a viewer.
	role, ok, err = svc.HasAccess(context.Background(), "ws-public", "mallory")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, models.WorkspaceRoleViewer, role)
}

func TestWorkspaceHasAccessUnknownWorkspace(t *testing.T) {
	svc := NewWorkspaceService(newWorkspaceStoreStub(), nil, nil)

	_, _, err := svc.HasAccess(context.Background(), "ws-404", "bob")
	require.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
