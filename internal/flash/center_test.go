package flash

import (
	"slices"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestCenter creates a center that does not write logs.
func newTestCenter() *Center {
	return NewCenter(WithLogger(zap.NewNop().Sugar()))
}

// ids extracts message ids from a snapshot.
func ids(messages []Message) []ID {
	result := make([]ID, 0, len(messages))
	for _, m := range messages {
		result = append(result, m.ID)
	}

	return result
}

// TestPost_ExpiresAfterDuration checks that each message lives exactly its own duration.
func TestPost_ExpiresAfterDuration(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := newTestCenter()

		short := c.Post("short", SeverityInfo, 1*time.Second)
		long := c.Post("long", SeverityWarn, 3*time.Second)
		def := c.Post("default", SeverityError, 0)

		require.Equal(t, []ID{short, long, def}, ids(c.Messages()))

		time.Sleep(1*time.Second + time.Millisecond)
		synctest.Wait()
		require.Equal(t, []ID{long, def}, ids(c.Messages()))

		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.Equal(t, []ID{def}, ids(c.Messages()))

		time.Sleep(2 * time.Second)
		synctest.Wait()
		require.Zero(t, c.Len())
	})
}

// TestPost_IDsIncrease ensures ids are strictly increasing and never reused.
func TestPost_IDsIncrease(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := newTestCenter()

		var previous ID

		for range 20 {
			id := c.Post("x", SeverityInfo, time.Millisecond)
			require.Greater(t, id, previous)
			previous = id

			c.Remove(id)
		}

		// Removed messages never come back.
		time.Sleep(time.Second)
		synctest.Wait()
		require.Zero(t, c.Len())
	})
}

// TestPost_ConcurrentKeepsIDOrder checks that concurrent posts are stored in id order.
func TestPost_ConcurrentKeepsIDOrder(t *testing.T) {
	t.Parallel()

	c := NewCenter(WithLogger(zap.NewNop().Sugar()), WithDefaultDuration(time.Hour))

	var wg sync.WaitGroup

	for range 64 {
		wg.Go(func() {
			c.Post("import", SeverityError, 0)
		})
	}

	wg.Wait()

	got := ids(c.Messages())
	require.Len(t, got, 64)
	require.True(t, slices.IsSorted(got), "ids out of order: %v", got)
}

// TestPin_SurvivesTimer verifies a pinned message outlives its timer
// and that unpinning removes it after the grace period.
func TestPin_SurvivesTimer(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := newTestCenter()

		id := c.Post("pinned", SeverityInfo, time.Second)
		c.Pin(id)

		time.Sleep(10 * time.Second)
		synctest.Wait()

		msg, ok := c.Get(id)
		require.True(t, ok)
		require.True(t, msg.Pinned)
		require.True(t, msg.ExpiresAt.IsZero())

		c.Unpin(id)

		time.Sleep(GraceDuration - time.Millisecond)
		synctest.Wait()
		require.Equal(t, 1, c.Len())

		time.Sleep(2 * time.Millisecond)
		synctest.Wait()
		require.Zero(t, c.Len())
	})
}

// TestUnpin_RepinBeforeGrace keeps a message that is pinned again during the grace period.
func TestUnpin_RepinBeforeGrace(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := newTestCenter()

		id := c.Post("flip", SeverityInfo, time.Second)
		c.TogglePin(id)
		c.TogglePin(id)

		time.Sleep(GraceDuration / 2)
		c.TogglePin(id)

		time.Sleep(5 * time.Second)
		synctest.Wait()

		_, ok := c.Get(id)
		require.True(t, ok)
	})
}

// TestHover_CancelsAndRearms checks Enter suspends removal and Leave re-arms the grace timer.
func TestHover_CancelsAndRearms(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := newTestCenter()

		id := c.Post("hover me", SeverityInfo, time.Second)
		c.Enter(id)

		time.Sleep(time.Minute)
		synctest.Wait()
		require.Equal(t, 1, c.Len())

		c.Leave(id)

		time.Sleep(GraceDuration + time.Millisecond)
		synctest.Wait()
		require.Zero(t, c.Len())
	})
}

// TestHover_PinnedLeaveKeepsMessage ensures leaving a pinned message does not schedule removal.
func TestHover_PinnedLeaveKeepsMessage(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := newTestCenter()

		id := c.Post("keep", SeverityWarn, time.Second)
		c.Enter(id)
		c.Pin(id)
		c.Leave(id)

		time.Sleep(time.Minute)
		synctest.Wait()
		require.Equal(t, 1, c.Len())

		// Unpinning while hovered does not arm a timer.
		c.Enter(id)
		c.Unpin(id)

		time.Sleep(time.Minute)
		synctest.Wait()
		require.Equal(t, 1, c.Len())
	})
}

// TestCancelTimer_UnknownAndRemoveIdempotent covers no-op paths.
func TestCancelTimer_UnknownAndRemoveIdempotent(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := newTestCenter()

		c.CancelTimer(ID(1 << 60))
		c.Pin(ID(1 << 60))
		c.Unpin(ID(1 << 60))
		c.TogglePin(ID(1 << 60))

		id := c.Post("cancel", SeverityInfo, time.Second)
		c.CancelTimer(id)

		time.Sleep(time.Minute)
		synctest.Wait()
		require.Equal(t, 1, c.Len())

		c.Remove(id)
		c.Remove(id)
		require.Zero(t, c.Len())
	})
}

// TestReportTransportFailure posts the fixed-format error.
func TestReportTransportFailure(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := newTestCenter()

		id := c.ReportTransportFailure(502)

		msg, ok := c.Get(id)
		require.True(t, ok)
		require.Equal(t, "Error with status 502 while retrieving data!", msg.Text)
		require.Equal(t, SeverityError, msg.Severity)
	})
}

// TestSubscribe delivers events in order and stops after unsubscribe.
func TestSubscribe(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		c := newTestCenter()

		var (
			mu    sync.Mutex
			kinds []EventKind
		)

		unsubscribe := c.Subscribe(func(evt Event) {
			mu.Lock()
			kinds = append(kinds, evt.Kind)
			mu.Unlock()
		})

		id := c.Post("observed", SeverityInfo, time.Second)
		c.Pin(id)
		c.Remove(id)

		unsubscribe()
		c.Post("unobserved", SeverityInfo, time.Second)

		time.Sleep(2 * time.Second)
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []EventKind{EventPosted, EventUpdated, EventRemoved}, kinds)
	})
}
