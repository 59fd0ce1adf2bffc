package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/gateway/gatewaytest"
	"github.com/oshokin/secpi-console/internal/store"
)

// recorder collects change notifications.
type recorder struct {
	mu        sync.Mutex
	snapshots [][]entity.Entity
}

func (r *recorder) record(items []entity.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots = append(r.snapshots, items)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.snapshots)
}

// TestRefresh_Idempotent emits no change when the server data is unchanged.
func TestRefresh_Idempotent(t *testing.T) {
	t.Parallel()

	gw, transport, _ := gatewaytest.NewGateway(t)
	transport.Succeed("/zones/list", []map[string]any{{"id": 5, "name": "Zone A"}}, "")

	s := store.New(entity.Zone, gw)

	var rec recorder
	s.Subscribe(rec.record)

	changed, err := s.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, changed)

	first := s.Items()

	changed, err = s.Refresh(context.Background())
	require.NoError(t, err)
	require.False(t, changed)

	require.Equal(t, first, s.Items())
	require.Equal(t, 1, rec.count())
}

// TestRefresh_EmptyListIsAChange notifies on the first empty result only.
func TestRefresh_EmptyListIsAChange(t *testing.T) {
	t.Parallel()

	gw, transport, _ := gatewaytest.NewGateway(t)
	transport.Succeed("/zones/list", []any{}, "")

	s := store.New(entity.Zone, gw)

	var rec recorder
	s.Subscribe(rec.record)

	_, err := s.Refresh(context.Background())
	require.NoError(t, err)
	_, err = s.Refresh(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, rec.count())
	require.Zero(t, s.Len())
}

// TestRefresh_SendsQuery posts filter and sort to a custom path.
func TestRefresh_SendsQuery(t *testing.T) {
	t.Parallel()

	gw, transport, _ := gatewaytest.NewGateway(t)
	transport.Succeed("/alarms/list", []any{}, "")

	s := store.New(entity.Alarm, gw, store.WithFilter("ack==0"), store.WithSort("-id"))
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	require.Equal(t, []gatewaytest.Call{{
		Path:    "/alarms/list",
		Payload: map[string]any{"filter": "ack==0", "sort": "-id"},
	}}, transport.Calls())

	custom := store.New(entity.Setup, gw, store.WithPath("/alarms/list"))
	_, err = custom.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]any{}, transport.Calls()[1].Payload)
}

// TestRefresh_FailureKeepsItems leaves the held sequence and clears loading.
func TestRefresh_FailureKeepsItems(t *testing.T) {
	t.Parallel()

	gw, transport, center := gatewaytest.NewGateway(t)
	transport.Succeed("/zones/list", []map[string]any{{"id": 1}}, "")

	s := store.New(entity.Zone, gw)
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	transport.Refuse("/zones/list", "boom")

	_, err = s.Refresh(context.Background())
	require.ErrorIs(t, err, gateway.ErrApplication)
	require.Equal(t, 1, s.Len())
	require.False(t, s.Loading())
	require.Equal(t, 1, center.Len())
}

// TestItems_AreCopies isolates callers from the held sequence.
func TestItems_AreCopies(t *testing.T) {
	t.Parallel()

	gw, transport, _ := gatewaytest.NewGateway(t)
	transport.Succeed("/zones/list", []map[string]any{{"id": 5, "name": "Zone A"}}, "")

	s := store.New(entity.Zone, gw)
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	items := s.Items()
	items[0]["name"] = "Zone B"

	got, err := s.At(0)
	require.NoError(t, err)
	require.Equal(t, "Zone A", got["name"])

	got["name"] = "Zone C"
	require.Equal(t, "Zone A", s.Items()[0]["name"])
}

// TestReplaceAndRemove mutate locally and notify.
func TestReplaceAndRemove(t *testing.T) {
	t.Parallel()

	gw, transport, _ := gatewaytest.NewGateway(t)
	transport.Succeed("/zones/list", []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}}, "")

	s := store.New(entity.Zone, gw)
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)

	var rec recorder
	unsubscribe := s.Subscribe(rec.record)

	require.NoError(t, s.ReplaceAt(1, entity.Entity{"id": float64(2), "name": "Garage"}))
	require.NoError(t, s.RemoveAt(0))
	require.Equal(t, 2, rec.count())

	require.Equal(t, []entity.Entity{
		{"id": float64(2), "name": "Garage"},
		{"id": float64(3)},
	}, s.Items())

	require.ErrorIs(t, s.RemoveAt(2), store.ErrIndexOutOfRange)
	require.ErrorIs(t, s.ReplaceAt(-1, entity.Entity{}), store.ErrIndexOutOfRange)
	_, err = s.At(5)
	require.ErrorIs(t, err, store.ErrIndexOutOfRange)

	unsubscribe()
	require.NoError(t, s.RemoveAt(0))
	require.Equal(t, 2, rec.count())

	// The server still holds three entries, so the next refresh differs again.
	changed, err := s.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, 3, s.Len())
}
