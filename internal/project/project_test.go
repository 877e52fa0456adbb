package project

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/db/dbtest"
	"github.com/clickstudio/click/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ws    = "ws-1"
	owner = "user-1"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(dbtest.Open(t), 1024)
}

func statusOf(err error) int {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func state(s string) json.RawMessage {
	return json.RawMessage(`{"timeline":"` + s + `"}`)
}

func TestCreateGetList(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	p, err := s.Create(ctx, ws, owner, CreateOpts{Name: "  Launch video ", FolderID: "f1"})
	require.NoError(t, err)
	assert.Equal(t, "Launch video", p.Name)
	assert.Equal(t, 0, p.Version)

	blank, err := s.Create(ctx, ws, owner, CreateOpts{EditorState: state("a")})
	require.NoError(t, err)
	assert.Equal(t, DefaultName, blank.Name)
	assert.Equal(t, 1, blank.Version)
	assert.Equal(t, HashState(state("a")), blank.StateHash)

	_, err = s.Create(ctx, "other-ws", owner, CreateOpts{Name: "not mine"})
	require.NoError(t, err)

	got, err := s.Get(ctx, ws, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = s.Get(ctx, "other-ws", p.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	all, err := s.List(ctx, ws, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, item := range all {
		assert.Empty(t, item.EditorState, "list omits editor state")
	}

	inFolder, err := s.List(ctx, ws, ListFilters{FolderID: "f1"})
	require.NoError(t, err)
	assert.Len(t, inFolder, 1)
}

func TestCreate_RejectsInvalidState(t *testing.T) {
	s := newTestService(t)
	_, err := s.Create(context.Background(), ws, owner, CreateOpts{EditorState: json.RawMessage(`{not json`)})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestUpdateDelete(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()
	p, err := s.Create(ctx, ws, owner, CreateOpts{Name: "Draft"})
	require.NoError(t, err)

	name := "Final cut"
	folder := "f2"
	p, err = s.Update(ctx, ws, p.ID, UpdateOpts{Name: &name, FolderID: &folder})
	require.NoError(t, err)
	assert.Equal(t, "Final cut", p.Name)
	assert.Equal(t, "f2", p.FolderID)

	empty := "  "
	_, err = s.Update(ctx, ws, p.ID, UpdateOpts{Name: &empty})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	require.NoError(t, s.Delete(ctx, ws, p.ID))
	_, err = s.Get(ctx, ws, p.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
	assert.Equal(t, http.StatusNotFound, statusOf(s.Delete(ctx, ws, p.ID)))
}

func TestAutosave_CreatesOnFirstSave(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	res, err := s.Autosave(ctx, owner, ws, AutosaveRequest{Name: "From editor", State: state("v1")})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 1, res.Version)
	require.NotNil(t, res.SavedAt)

	p, err := s.Get(ctx, ws, res.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "From editor", p.Name)
	assert.Equal(t, owner, p.OwnerID)
	assert.JSONEq(t, string(state("v1")), p.EditorState)
}

func TestAutosave_UpsertsByContentID(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	first, err := s.Autosave(ctx, owner, ws, AutosaveRequest{ContentID: "c1", State: state("v1")})
	require.NoError(t, err)
	second, err := s.Autosave(ctx, owner, ws, AutosaveRequest{ContentID: "c1", State: state("v2")})
	require.NoError(t, err)

	assert.Equal(t, first.ProjectID, second.ProjectID)
	assert.False(t, second.Created)
	assert.Equal(t, 2, second.Version)

	// Same content in another workspace is a different project.
	other, err := s.Autosave(ctx, owner, "ws-2", AutosaveRequest{ContentID: "c1", State: state("v1")})
	require.NoError(t, err)
	assert.NotEqual(t, first.ProjectID, other.ProjectID)
}

func TestAutosave_ReturnedVersionIsStored(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	res, err := s.Autosave(ctx, owner, ws, AutosaveRequest{State: state("v1")})
	require.NoError(t, err)
	id := res.ProjectID

	// A client that echoes the returned version never conflicts with itself.
	for i, v := range []string{"v2", "v3", "v4"} {
		res, err = s.Autosave(ctx, owner, ws, AutosaveRequest{ProjectID: id, BaseVersion: res.Version, State: state(v)})
		require.NoError(t, err, "save %d", i+2)
		assert.Equal(t, i+2, res.Version)

		p, err := s.Get(ctx, ws, id)
		require.NoError(t, err)
		assert.Equal(t, res.Version, p.Version, "stored version after save %d", i+2)
	}

	restored, err := s.Restore(ctx, ws, id, 1)
	require.NoError(t, err)
	p, err := s.Get(ctx, ws, id)
	require.NoError(t, err)
	assert.Equal(t, p.Version, restored.Version)
	assert.Equal(t, 5, p.Version)
}

func TestAutosave_UnchangedIsNoop(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	res, err := s.Autosave(ctx, owner, ws, AutosaveRequest{State: state("same")})
	require.NoError(t, err)

	again, err := s.Autosave(ctx, owner, ws, AutosaveRequest{ProjectID: res.ProjectID, State: state("same")})
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
	assert.Equal(t, 1, again.Version)

	snaps, err := s.Snapshots(ctx, ws, res.ProjectID)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestAutosave_RotatesSnapshots(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	res, err := s.Autosave(ctx, owner, ws, AutosaveRequest{State: state("v1")})
	require.NoError(t, err)
	id := res.ProjectID

	for _, v := range []string{"v2", "v3", "v4"} {
		_, err := s.Autosave(ctx, owner, ws, AutosaveRequest{ProjectID: id, State: state(v)})
		require.NoError(t, err)
	}

	p, err := s.Get(ctx, ws, id)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Version)
	assert.JSONEq(t, string(state("v4")), p.EditorState)

	snaps, err := s.Snapshots(ctx, ws, id)
	require.NoError(t, err)
	require.Len(t, snaps, SnapshotSlots)

	bySlot := map[int]models.ProjectSnapshot{}
	for _, sn := range snaps {
		bySlot[sn.Slot] = sn
	}
	// Slots alternate: version 3 went to slot 1, version 2 to slot 0.
	assert.Equal(t, 3, bySlot[1].Version)
	assert.JSONEq(t, string(state("v3")), bySlot[1].EditorState)
	assert.Equal(t, 2, bySlot[0].Version)
	assert.JSONEq(t, string(state("v2")), bySlot[0].EditorState)
}

func TestAutosave_TooLarge(t *testing.T) {
	s := newTestService(t)
	big := json.RawMessage(`"` + strings.Repeat("x", 2048) + `"`)
	_, err := s.Autosave(context.Background(), owner, ws, AutosaveRequest{State: big})
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusOf(err))
}

func TestAutosave_Errors(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Autosave(ctx, owner, ws, AutosaveRequest{})
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	_, err = s.Autosave(ctx, owner, ws, AutosaveRequest{ProjectID: "missing", State: state("x")})
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	res, err := s.Autosave(ctx, owner, ws, AutosaveRequest{State: state("v1")})
	require.NoError(t, err)
	_, err = s.Autosave(ctx, owner, ws, AutosaveRequest{ProjectID: res.ProjectID, State: state("v2"), BaseVersion: 7})
	assert.Equal(t, http.StatusConflict, statusOf(err))

	_, err = s.Autosave(ctx, owner, "ws-2", AutosaveRequest{ProjectID: res.ProjectID, State: state("v2")})
	assert.Equal(t, http.StatusNotFound, statusOf(err), "autosave is workspace scoped")
}

func TestRestore(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	res, err := s.Autosave(ctx, owner, ws, AutosaveRequest{State: state("v1")})
	require.NoError(t, err)
	id := res.ProjectID
	_, err = s.Autosave(ctx, owner, ws, AutosaveRequest{ProjectID: id, State: state("v2")})
	require.NoError(t, err)

	// v1 is in slot 1 (version 1 % 2).
	p, err := s.Restore(ctx, ws, id, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Version)
	assert.JSONEq(t, string(state("v1")), p.EditorState)

	// The replaced v2 state is kept in slot 0.
	snaps, err := s.Snapshots(ctx, ws, id)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.JSONEq(t, string(state("v2")), snaps[0].EditorState)

	_, err = s.Restore(ctx, ws, id, 2)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	fresh, err := s.Create(ctx, ws, owner, CreateOpts{EditorState: state("only")})
	require.NoError(t, err)
	_, err = s.Restore(ctx, ws, fresh.ID, 0)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}
