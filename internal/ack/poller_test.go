package ack_test

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/secpi-console/internal/ack"
	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/flash"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/gateway/gatewaytest"
)

func threeAlarms() []map[string]any {
	return []map[string]any{
		{"id": 1, "message": "Door opened", "ack": 0},
		{"id": 2, "message": "Motion", "ack": 0},
		{"id": 3, "message": "Window", "ack": 0},
	}
}

func newPoller(t *testing.T, opts ...ack.Option) (*ack.Poller, *gatewaytest.Transport, *flash.Center) {
	t.Helper()

	gw, transport, center := gatewaytest.NewGateway(t)
	transport.Succeed("/alarms/list", threeAlarms(), "")

	p, err := ack.New(entity.Alarm, gw, center, opts...)
	require.NoError(t, err)
	require.NoError(t, p.FetchData(context.Background()))
	require.Len(t, p.Entries(), 3)

	return p, transport, center
}

// TestFetchData_SendsFilter asks for unacknowledged entries only.
func TestFetchData_SendsFilter(t *testing.T) {
	t.Parallel()

	_, transport, _ := newPoller(t, ack.WithSort("-id"))

	require.Equal(t, []gatewaytest.Call{{
		Path:    "/alarms/list",
		Payload: map[string]any{"filter": "ack==0", "sort": "-id"},
	}}, transport.Calls())
}

// TestAck_SplicesOut removes the acknowledged entry locally.
func TestAck_SplicesOut(t *testing.T) {
	t.Parallel()

	p, transport, center := newPoller(t)
	transport.Succeed("/alarms/ack", nil, "Acknowledged alarm")

	require.NoError(t, p.Ack(context.Background(), 1))

	entries := p.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, float64(1), entries[0]["id"])
	require.Equal(t, float64(3), entries[1]["id"])
	require.Equal(t, map[string]any{"id": float64(2)}, transport.CallsTo("/alarms/ack")[0].Payload)
	require.Equal(t, []string{"Acknowledged alarm"}, gatewaytest.Texts(center))
	require.Len(t, transport.CallsTo("/alarms/list"), 1)
}

// TestAck_RequiresIdentifier refuses entries without an id and calls nothing.
func TestAck_RequiresIdentifier(t *testing.T) {
	t.Parallel()

	gw, transport, center := gatewaytest.NewGateway(t)
	transport.Succeed("/alarms/list", []map[string]any{{"message": "Orphan", "ack": 0}}, "")

	p, err := ack.New(entity.Alarm, gw, center)
	require.NoError(t, err)
	require.NoError(t, p.FetchData(context.Background()))

	require.ErrorIs(t, p.Ack(context.Background(), 0), ack.ErrNoIdentifier)
	require.Empty(t, transport.CallsTo("/alarms/ack"))
	require.Len(t, p.Entries(), 1)
}

// TestScenario_BulkAckFailure keeps every entry and flashes once.
func TestScenario_BulkAckFailure(t *testing.T) {
	t.Parallel()

	p, transport, center := newPoller(t)
	transport.Refuse("/alarms/ackAll", "Database locked")

	err := p.AckAll(context.Background())
	require.ErrorIs(t, err, gateway.ErrApplication)

	require.Len(t, p.Entries(), 3)
	require.Equal(t, []string{"Database locked"}, gatewaytest.Texts(center))
	require.Equal(t, []flash.Severity{flash.SeverityError}, gatewaytest.Severities(center))
}

// TestAckAll_Bulk flashes the server message and refreshes.
func TestAckAll_Bulk(t *testing.T) {
	t.Parallel()

	p, transport, center := newPoller(t)
	transport.Handle("/alarms/ackAll", func(map[string]any) (*gateway.Envelope, error) {
		transport.Succeed("/alarms/list", []any{}, "")

		return gatewaytest.Success(nil, "Acknowledged all alarms"), nil
	})

	require.NoError(t, p.AckAll(context.Background()))
	require.Empty(t, p.Entries())
	require.Equal(t, []string{"Acknowledged all alarms"}, gatewaytest.Texts(center))
	require.Equal(t, map[string]any{}, transport.CallsTo("/alarms/ackAll")[0].Payload)
}

// TestAckAll_PerItem acknowledges each entry and reports the count locally.
func TestAckAll_PerItem(t *testing.T) {
	t.Parallel()

	p, transport, center := newPoller(t, ack.WithoutBulkAck())
	transport.Succeed("/alarms/ack", nil, "Acknowledged alarm")

	require.NoError(t, p.AckAll(context.Background()))

	require.Len(t, transport.CallsTo("/alarms/ack"), 3)
	require.Empty(t, transport.CallsTo("/alarms/ackAll"))
	require.Len(t, transport.CallsTo("/alarms/list"), 2)
	require.Equal(t, []string{"Acknowledged 3 entries!"}, gatewaytest.Texts(center))
}

// TestToggleRefresh polls on the interval and stops cleanly.
func TestToggleRefresh(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		gw, transport, center := gatewaytest.NewGateway(t)
		transport.Succeed("/logs/list", []any{}, "")

		p, err := ack.New(entity.Log, gw, center)
		require.NoError(t, err)
		require.False(t, p.Refreshing())

		p.ToggleRefresh(context.Background())
		require.True(t, p.Refreshing())
		require.Equal(t, []string{ack.StartedText}, gatewaytest.Texts(center))

		// Starting twice keeps one loop and one flash.
		p.Start(context.Background())
		require.Equal(t, 1, center.Len())

		time.Sleep(flash.ShortDuration + time.Millisecond)
		synctest.Wait()
		require.Zero(t, center.Len())

		time.Sleep(ack.DefaultInterval - flash.ShortDuration)
		synctest.Wait()
		require.Len(t, transport.CallsTo("/logs/list"), 1)

		time.Sleep(ack.DefaultInterval)
		synctest.Wait()
		require.Len(t, transport.CallsTo("/logs/list"), 2)

		p.ToggleRefresh(context.Background())
		require.False(t, p.Refreshing())
		require.Equal(t, []string{ack.StoppedText}, gatewaytest.Texts(center))

		time.Sleep(3 * ack.DefaultInterval)
		synctest.Wait()
		require.Len(t, transport.CallsTo("/logs/list"), 2)
		require.Zero(t, center.Len())

		p.Stop()
		require.Zero(t, center.Len())
	})
}
