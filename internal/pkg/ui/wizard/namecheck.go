package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// nameCheckDelay is how long the rename field has to stay unchanged before
// the service is asked about it.
const nameCheckDelay = 300 * time.Millisecond

// nameChecker debounces availability lookups for the rename field. Replies
// for text that was edited in the meantime are dropped.
type nameChecker struct {
	clock  clock.Clock
	delay  time.Duration
	lookup func(ctx context.Context, name string) (bool, error)

	mu     sync.Mutex
	latest string
	timer  *clock.Timer
}

func newNameChecker(clk clock.Clock, delay time.Duration, lookup func(context.Context, string) (bool, error)) *nameChecker {
	return &nameChecker{
		clock:  clk,
		delay:  delay,
		lookup: lookup,
	}
}

// Changed records name as the current text and schedules a lookup for it,
// replacing any lookup not started yet. reply runs on a background goroutine
// and only when name is still current after the lookup.
func (c *nameChecker) Changed(ctx context.Context, name string, reply func(name string, available bool, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest = name

	if c.timer != nil {
		c.timer.Stop()
	}

	c.timer = c.clock.AfterFunc(c.delay, func() {
		if !c.Current(name) || ctx.Err() != nil {
			return
		}

		available, err := c.lookup(ctx, name)

		if !c.Current(name) {
			return
		}

		reply(name, available, err)
	})
}

// Current reports whether name is still the text of the field.
func (c *nameChecker) Current(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.latest == name
}

// Stop cancels a pending lookup.
func (c *nameChecker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
