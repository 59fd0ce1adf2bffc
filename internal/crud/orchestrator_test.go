package crud_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/secpi-console/internal/crud"
	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/flash"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/gateway/gatewaytest"
)

const zoneFields = `{
	"id": {"name": "ID", "visible": ["list"]},
	"name": {"name": "Name", "visible": ["list", "add", "update"]},
	"description": {"name": "Description", "visible": ["list", "add", "update"]}
}`

// zoneServer is an in-memory zones collection behind a fake transport.
type zoneServer struct {
	mu      sync.Mutex
	items   []map[string]any
	nextID  int
	refuse  map[string]bool
	lists   int
	payload []map[string]any
}

func newZoneServer(transport *gatewaytest.Transport, items ...map[string]any) *zoneServer {
	s := &zoneServer{items: items, nextID: 100, refuse: map[string]bool{}}

	transport.Handle("/zones/fieldList", func(map[string]any) (*gateway.Envelope, error) {
		return &gateway.Envelope{Status: gateway.StatusSuccess, Data: json.RawMessage(zoneFields)}, nil
	})
	transport.Handle("/zones/list", func(map[string]any) (*gateway.Envelope, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.lists++

		return gatewaytest.Success(append([]map[string]any{}, s.items...), ""), nil
	})
	transport.Handle("/zones/add", func(p map[string]any) (*gateway.Envelope, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.payload = append(s.payload, p)

		if name, _ := p["name"].(string); s.refuse[name] {
			return gatewaytest.Failure("Error while adding zone: " + name), nil
		}

		s.nextID++
		item := map[string]any{"id": s.nextID}
		for k, v := range p {
			item[k] = v
		}

		s.items = append(s.items, item)

		return gatewaytest.Success(nil, "Added zone"), nil
	})
	transport.Handle("/zones/update", func(p map[string]any) (*gateway.Envelope, error) {
		if name, _ := p["name"].(string); s.refuse[name] {
			return gatewaytest.Failure("Error while updating zone"), nil
		}

		return gatewaytest.Success(nil, "Updated zone"), nil
	})
	transport.Handle("/zones/delete", func(map[string]any) (*gateway.Envelope, error) {
		return gatewaytest.Success(nil, "Deleted zone"), nil
	})

	return s
}

func (s *zoneServer) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lists
}

func (s *zoneServer) addPayloads() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]map[string]any(nil), s.payload...)
}

func newOrchestrator(t *testing.T, items ...map[string]any) (
	*crud.Orchestrator, *zoneServer, *flash.Center,
) {
	t.Helper()

	gw, transport, center := gatewaytest.NewGateway(t)
	server := newZoneServer(transport, items...)

	o, err := crud.New(entity.Zone, gw, center)
	require.NoError(t, err)
	require.NoError(t, o.Load(context.Background()))

	return o, server, center
}

// TestNew_Preconditions fails construction on programmer errors.
func TestNew_Preconditions(t *testing.T) {
	t.Parallel()

	gw, _, center := gatewaytest.NewGateway(t)

	_, err := crud.New(entity.Class(200), gw, center)
	require.ErrorIs(t, err, crud.ErrUnknownClass)

	_, err = crud.New(entity.Zone, nil, center)
	require.ErrorIs(t, err, crud.ErrGatewayRequired)

	_, err = crud.New(entity.Zone, gw, nil)
	require.ErrorIs(t, err, crud.ErrCenterRequired)
}

// TestScenario_CreateOnEmptyList adds a zone and refreshes the list.
func TestScenario_CreateOnEmptyList(t *testing.T) {
	t.Parallel()

	o, _, center := newOrchestrator(t)
	require.Zero(t, o.Store().Len())

	require.NoError(t, o.ShowNew(context.Background()))

	d, ok := o.Dialog().(*crud.EditDialog)
	require.True(t, ok)
	require.Equal(t, crud.EditKindCreating, d.Kind)
	require.True(t, d.Inserting())
	require.Len(t, d.Fields, 2)

	require.NoError(t, o.SetField("name", "Front Door"))
	require.NoError(t, o.SaveEdit(context.Background()))

	require.Equal(t, 1, o.Store().Len())
	require.Nil(t, o.Dialog())
	require.False(t, o.Loading())
	require.Equal(t, []string{"Added zone"}, gatewaytest.Texts(center))
	require.Equal(t, []flash.Severity{flash.SeverityInfo}, gatewaytest.Severities(center))
}

// TestScenario_CancelEditKeepsSource discards the buffer.
func TestScenario_CancelEditKeepsSource(t *testing.T) {
	t.Parallel()

	o, _, _ := newOrchestrator(t, map[string]any{"id": 5, "name": "Zone A"})

	require.NoError(t, o.ShowEdit(context.Background(), 0))
	require.NoError(t, o.SetField("name", "Zone B"))

	d, ok := o.Dialog().(*crud.EditDialog)
	require.True(t, ok)
	require.Equal(t, "Zone B", d.Buffer["name"])

	o.CancelEdit()

	require.Nil(t, o.Dialog())
	require.Equal(t, []entity.Entity{{"id": float64(5), "name": "Zone A"}}, o.Store().Items())
}

// TestSaveEdit_UpdateSplicesInPlace replaces the edited entity without a refresh.
func TestSaveEdit_UpdateSplicesInPlace(t *testing.T) {
	t.Parallel()

	o, server, center := newOrchestrator(t,
		map[string]any{"id": 1, "name": "Hall"},
		map[string]any{"id": 2, "name": "Garage"},
	)
	lists := server.listCalls()

	require.NoError(t, o.ShowEdit(context.Background(), 1))
	require.NoError(t, o.SetField("name", "Workshop"))
	require.NoError(t, o.SaveEdit(context.Background()))

	require.Equal(t, lists, server.listCalls())
	require.Equal(t, []entity.Entity{
		{"id": float64(1), "name": "Hall"},
		{"id": float64(2), "name": "Workshop"},
	}, o.Store().Items())
	require.Equal(t, []string{"Updated zone"}, gatewaytest.Texts(center))
}

// TestSaveEdit_FailureKeepsDialog leaves the session open and clears loading.
func TestSaveEdit_FailureKeepsDialog(t *testing.T) {
	t.Parallel()

	o, server, center := newOrchestrator(t, map[string]any{"id": 1, "name": "Hall"})
	server.refuse["Bad"] = true

	require.NoError(t, o.ShowEdit(context.Background(), 0))
	require.NoError(t, o.SetField("name", "Bad"))

	err := o.SaveEdit(context.Background())
	require.ErrorIs(t, err, gateway.ErrApplication)

	d, ok := o.Dialog().(*crud.EditDialog)
	require.True(t, ok)
	require.Equal(t, "Bad", d.Buffer["name"])
	require.False(t, o.Loading())
	require.Equal(t, "Hall", o.Store().Items()[0]["name"])
	require.Equal(t, 1, center.Len())
}

// TestCopy_SeedsWithoutID adds a copy as a new entity.
func TestCopy_SeedsWithoutID(t *testing.T) {
	t.Parallel()

	o, server, _ := newOrchestrator(t, map[string]any{"id": 1, "name": "Hall", "description": "ground floor"})

	require.NoError(t, o.Copy(context.Background(), 0))

	d, ok := o.Dialog().(*crud.EditDialog)
	require.True(t, ok)
	require.Equal(t, crud.EditKindCopying, d.Kind)
	require.Equal(t, entity.Entity{"name": "Hall", "description": "ground floor"}, d.Buffer)

	require.NoError(t, o.SaveEdit(context.Background()))
	require.Equal(t, 2, o.Store().Len())
	require.Equal(t, []map[string]any{{"name": "Hall", "description": "ground floor"}}, server.addPayloads())
}

// TestDelete_SplicesOut removes the confirmed target.
func TestDelete_SplicesOut(t *testing.T) {
	t.Parallel()

	o, _, center := newOrchestrator(t,
		map[string]any{"id": 1, "name": "Hall"},
		map[string]any{"id": 2, "name": "Garage"},
	)

	require.NoError(t, o.ShowDelete(context.Background(), 0))
	require.Equal(t, &crud.DeleteDialog{Index: 0, ID: 1}, o.Dialog())

	o.CancelDelete()
	require.Nil(t, o.Dialog())
	require.ErrorIs(t, o.Delete(context.Background()), crud.ErrNoDialog)

	require.NoError(t, o.ShowDelete(context.Background(), 0))
	require.NoError(t, o.Delete(context.Background()))

	require.Equal(t, []entity.Entity{{"id": float64(2), "name": "Garage"}}, o.Store().Items())
	require.Equal(t, []string{"Deleted zone"}, gatewaytest.Texts(center))
}

// TestOpen_ForceClosesPrevious keeps a single open dialog.
func TestOpen_ForceClosesPrevious(t *testing.T) {
	t.Parallel()

	o, _, _ := newOrchestrator(t, map[string]any{"id": 1, "name": "Hall"})

	require.NoError(t, o.ShowEdit(context.Background(), 0))
	require.NoError(t, o.ShowDelete(context.Background(), 0))

	_, ok := o.Dialog().(*crud.DeleteDialog)
	require.True(t, ok)

	require.ErrorIs(t, o.SaveEdit(context.Background()), crud.ErrNoDialog)
	require.ErrorIs(t, o.SetField("name", "x"), crud.ErrNoDialog)

	// Cancelling a different kind leaves the open dialog alone.
	o.CancelEdit()
	require.NotNil(t, o.Dialog())
}

// TestEditGuard refuses locked workflows with one warning each.
func TestEditGuard(t *testing.T) {
	t.Parallel()

	gw, transport, center := gatewaytest.NewGateway(t)
	newZoneServer(transport, map[string]any{"id": 1, "name": "Hall"})

	allowed := false
	o, err := crud.New(entity.Zone, gw, center, crud.WithEditGuard(crud.EditGuardFunc(func() bool { return allowed })))
	require.NoError(t, err)
	require.NoError(t, o.Load(context.Background()))
	require.False(t, o.EditAllowed())

	require.ErrorIs(t, o.ShowNew(context.Background()), crud.ErrEditLocked)
	require.ErrorIs(t, o.ShowEdit(context.Background(), 0), crud.ErrEditLocked)
	require.ErrorIs(t, o.ShowDelete(context.Background(), 0), crud.ErrEditLocked)

	_, err = o.Import(context.Background(), "[]")
	require.ErrorIs(t, err, crud.ErrEditLocked)

	require.Nil(t, o.Dialog())
	require.Equal(t, 4, center.Len())
	require.Equal(t, crud.LockedText, center.Messages()[0].Text)

	// Export stays available.
	_, err = o.ExportTable(context.Background())
	require.NoError(t, err)

	allowed = true
	require.NoError(t, o.ShowNew(context.Background()))
}

// TestExport_Envelope renders tagged records.
func TestExport_Envelope(t *testing.T) {
	t.Parallel()

	o, _, _ := newOrchestrator(t,
		map[string]any{"id": 1, "name": "Hall"},
		map[string]any{"id": 2, "name": "Garage"},
	)

	text, err := o.Export(context.Background(), 1)
	require.NoError(t, err)
	require.JSONEq(t, `[{"type": "zones", "data": {"id": 2, "name": "Garage"}}]`, text)
	require.Equal(t, &crud.ExportDialog{Text: text}, o.Dialog())

	o.CancelExport()
	require.Nil(t, o.Dialog())

	_, err = o.Export(context.Background(), 7)
	require.Error(t, err)
}

// TestScenario_ImportPartialFailure counts failures toward completion.
func TestScenario_ImportPartialFailure(t *testing.T) {
	t.Parallel()

	o, server, center := newOrchestrator(t)
	server.refuse["Back Door"] = true
	lists := server.listCalls()

	require.NoError(t, o.ShowImport(context.Background()))

	batch, err := o.Import(context.Background(), `[
		{"type": "zones", "data": {"name": "Front Door"}},
		{"type": "zones", "data": {"name": "Back Door"}}
	]`)
	require.NoError(t, err)
	require.Nil(t, o.Dialog())
	require.Equal(t, 2, batch.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := batch.Wait(ctx)
	require.NoError(t, err)

	require.Equal(t, 2, result.Completed())
	require.Equal(t, 1, result.Succeeded)
	require.Equal(t, 1, result.Failed)
	require.NoError(t, result.RefreshErr)
	require.Len(t, result.Failures(), 1)
	require.Equal(t, 1, result.Failures()[0].Index)
	require.ErrorIs(t, result.Failures()[0].Err, gateway.ErrApplication)
	require.Equal(t, "Added zone", result.Items[0].Message)

	require.Equal(t, lists+1, server.listCalls())
	require.Equal(t, 1, o.Store().Len())
	require.ElementsMatch(t, []flash.Severity{flash.SeverityInfo, flash.SeverityError}, gatewaytest.Severities(center))
}

// TestImport_RoundTrip replays an export into an empty store.
func TestImport_RoundTrip(t *testing.T) {
	t.Parallel()

	source, _, _ := newOrchestrator(t,
		map[string]any{"id": 3, "name": "Hall", "description": "ground floor"},
		map[string]any{"id": 4, "name": "Garage", "description": ""},
	)

	text, err := source.ExportTable(context.Background())
	require.NoError(t, err)

	target, server, _ := newOrchestrator(t)

	batch, err := target.Import(context.Background(), text)
	require.NoError(t, err)

	result, err := batch.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)

	require.ElementsMatch(t, []map[string]any{
		{"name": "Hall", "description": "ground floor"},
		{"name": "Garage", "description": ""},
	}, server.addPayloads())
	require.Equal(t, 2, target.Store().Len())
}

// TestImport_SkipsIncompleteAndUnknown handles malformed records.
func TestImport_SkipsIncompleteAndUnknown(t *testing.T) {
	t.Parallel()

	o, server, center := newOrchestrator(t)

	batch, err := o.Import(context.Background(), `[
		{"type": "zones"},
		{"data": {"name": "Orphan"}},
		{"type": "gadgets", "data": {"name": "Toaster"}}
	]`)
	require.NoError(t, err)

	result, err := batch.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Completed())
	require.ErrorIs(t, result.Items[0].Err, entity.ErrUnknownClass)
	require.Empty(t, server.addPayloads())
	require.Equal(t, []string{`Unknown import type "gadgets"!`}, gatewaytest.Texts(center))

	_, err = o.Import(context.Background(), `{"type": "zones"}`)
	require.Error(t, err)

	_, err = o.Import(context.Background(), `not json`)
	require.Error(t, err)
	require.Equal(t, 3, center.Len())

	empty, err := o.Import(context.Background(), `[]`)
	require.NoError(t, err)

	select {
	case <-empty.Done():
	default:
		t.Fatalf("empty batch should resolve immediately, settled %d", empty.Settled())
	}
}
