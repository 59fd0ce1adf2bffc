// Package badge counts the unacknowledged alarms and logs shown in the navigation badge.
package badge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/logger"
)

// DefaultSchedule refreshes the badge twice a minute.
const DefaultSchedule = "@every 30s"

// unacknowledged is the list filter of unread entries.
const unacknowledged = "ack==0"

// Counter keeps the number of unread alarms and logs.
type Counter struct {
	caller  gateway.Caller
	classes []entity.Class

	mu    sync.RWMutex
	count int
}

// New creates a counter over alarms and logs.
func New(caller gateway.Caller) *Counter {
	return &Counter{
		caller:  caller,
		classes: []entity.Class{entity.Alarm, entity.Log},
	}
}

// Count returns the last computed total.
func (c *Counter) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.count
}

// Refresh recomputes the total. Classes that fail to load count as zero.
func (c *Counter) Refresh(ctx context.Context) (int, error) {
	var (
		total int
		errs  []error
	)

	for _, class := range c.classes {
		res, err := c.caller.Call(ctx, class.Endpoint(entity.OpList), map[string]any{"filter": unacknowledged})
		if err != nil {
			errs = append(errs, fmt.Errorf("count %s: %w", class.Collection(), err))

			continue
		}

		var items []entity.Entity
		if err = res.Decode(&items); err != nil {
			errs = append(errs, fmt.Errorf("count %s: %w", class.Collection(), err))

			continue
		}

		total += len(items)
	}

	c.mu.Lock()
	c.count = total
	c.mu.Unlock()

	logger.DebugKV(ctx, "Unread badge refreshed", "count", total)

	return total, errors.Join(errs...)
}

// Run refreshes immediately and then on every activation of schedule until ctx ends.
// onChange, when not nil, receives the total after each refresh.
func (c *Counter) Run(ctx context.Context, schedule string, onChange func(int)) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("parse badge schedule %q: %w", schedule, err)
	}

	c.tick(ctx, onChange)

	for {
		now := time.Now()

		timer := time.NewTimer(spec.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()

			return nil
		case <-timer.C:
			c.tick(ctx, onChange)
		}
	}
}

func (c *Counter) tick(ctx context.Context, onChange func(int)) {
	total, err := c.Refresh(ctx)
	if err != nil {
		logger.WarnKV(ctx, "Unread badge refresh failed", "error", err)
	}

	if onChange != nil {
		onChange(total)
	}
}
