package critical

import (
	"sync"
	"sync/atomic"
)

// Handler is an interrupt service routine.
type Handler func()

// Core models one core with a single interrupt line on a hosted system.
//
// The goroutine that enters critical sections on the core is the core's
// thread of execution. Raise may be called from any goroutine; the handler
// is queued and runs on the core's goroutine the next time interrupts are
// enabled, either by Restore or by Poll. Handlers run with interrupts
// masked and do not nest.
type Core struct {
	state     atomic.Uint32
	inHandler atomic.Bool
	delivered atomic.Int64

	mu      sync.Mutex // guards pending
	pending []Handler
}

// NewCore returns a core with interrupts enabled and nothing pending.
func NewCore() *Core {
	return &Core{}
}

// Disable implements Controller.
func (c *Core) Disable() State {
	return State(c.state.Swap(uint32(Disabled)))
}

// Restore implements Controller. Restoring Enabled delivers pending
// interrupts before it returns.
func (c *Core) Restore(s State) {
	c.state.Store(uint32(s))
	if s == Enabled {
		c.deliver()
	}
}

// Raise pends h. It is safe to call from any goroutine.
func (c *Core) Raise(h Handler) {
	c.mu.Lock()
	c.pending = append(c.pending, h)
	c.mu.Unlock()
}

// Poll delivers pending interrupts if they are enabled and returns how many
// ran. It stands in for the points where real hardware would take an
// interrupt between instructions.
func (c *Core) Poll() int {
	if c.Masked() {
		return 0
	}
	return c.deliver()
}

// Masked reports whether interrupts are currently disabled.
func (c *Core) Masked() bool {
	return State(c.state.Load()) == Disabled
}

// InHandler reports whether an interrupt handler is running.
func (c *Core) InHandler() bool { return c.inHandler.Load() }

// Pending returns the number of interrupts waiting for delivery.
func (c *Core) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Delivered returns the number of handlers run so far.
func (c *Core) Delivered() int64 { return c.delivered.Load() }

func (c *Core) deliver() int {
	if c.inHandler.Load() {
		return 0
	}
	n := 0
	for {
		h := c.pop()
		if h == nil {
			return n
		}
		c.state.Store(uint32(Disabled))
		c.inHandler.Store(true)
		h()
		c.inHandler.Store(false)
		c.state.Store(uint32(Enabled))
		c.delivered.Add(1)
		n++
	}
}

func (c *Core) pop() Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	h := c.pending[0]
	c.pending[0] = nil
	c.pending = c.pending[1:]
	return h
}
