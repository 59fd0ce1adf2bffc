package badge_test

import (
	"context"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/secpi-console/internal/badge"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/gateway/gatewaytest"
)

// TestRefresh sums both classes.
func TestRefresh(t *testing.T) {
	t.Parallel()

	gw, transport, _ := gatewaytest.NewGateway(t)
	transport.Succeed("/alarms/list", []map[string]any{{"id": 1}, {"id": 2}}, "")
	transport.Succeed("/logs/list", []map[string]any{{"id": 9}}, "")

	c := badge.New(gw)

	total, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, 3, c.Count())
	require.Equal(t, map[string]any{"filter": "ack==0"}, transport.CallsTo("/logs/list")[0].Payload)
}

// TestRefresh_PartialFailure counts what loaded and reports the rest.
func TestRefresh_PartialFailure(t *testing.T) {
	t.Parallel()

	gw, transport, _ := gatewaytest.NewGateway(t)
	transport.Succeed("/alarms/list", []map[string]any{{"id": 1}}, "")

	total, err := badge.New(gw).Refresh(context.Background())
	require.ErrorIs(t, err, gateway.ErrTransport)
	require.Equal(t, 1, total)
}

// TestRun follows the schedule until cancelled.
func TestRun(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		gw, transport, _ := gatewaytest.NewGateway(t)
		transport.Succeed("/alarms/list", []any{}, "")
		transport.Succeed("/logs/list", []any{}, "")

		var refreshes atomic.Int32

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)

		go func() {
			errCh <- badge.New(gw).Run(ctx, "@every 30s", func(int) { refreshes.Add(1) })
		}()

		synctest.Wait()
		require.Equal(t, int32(1), refreshes.Load())

		time.Sleep(61 * time.Second)
		synctest.Wait()
		require.Equal(t, int32(3), refreshes.Load())

		cancel()
		require.NoError(t, <-errCh)
	})
}

// TestRun_BadSchedule rejects unparsable schedules.
func TestRun_BadSchedule(t *testing.T) {
	t.Parallel()

	gw, _, _ := gatewaytest.NewGateway(t)

	err := badge.New(gw).Run(context.Background(), "every now and then", nil)
	require.Error(t, err)
}
