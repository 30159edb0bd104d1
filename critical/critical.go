package critical

// State is the interrupt mask state of a core.
type State uint8

const (
	// Enabled means interrupts are delivered.
	Enabled State = iota
	// Disabled means interrupts stay pending.
	Disabled
)

func (s State) String() string {
	switch s {
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Controller masks and unmasks interrupts.
type Controller interface {
	// Disable masks interrupts and returns the state before the call.
	Disable() State
	// Restore puts back a state returned by Disable.
	Restore(State)
}

// Guard is an entered critical section.
type Guard struct {
	c      Controller
	prior  State
	active bool
}

// Enter masks interrupts on c until Exit is called.
func Enter(c Controller) *Guard {
	return &Guard{c: c, prior: c.Disable(), active: true}
}

// Exit restores the mask state seen by Enter. Calling it again does nothing.
func (g *Guard) Exit() {
	if !g.active {
		return
	}
	g.active = false
	g.c.Restore(g.prior)
}

// Prior returns the mask state that was current when the guard was entered.
func (g *Guard) Prior() State { return g.prior }

// With runs fn inside a critical section on c.
func With(c Controller, fn func()) {
	g := Enter(c)
	defer g.Exit()
	fn()
}

// Mutex holds a value that is only reachable with interrupts masked.
//
// It does not block: on a single core masking interrupts is enough to
// exclude every other context.
type Mutex[T any] struct {
	c Controller
	v T
}

// NewMutex wraps v behind the interrupt mask of c.
func NewMutex[T any](c Controller, v T) *Mutex[T] {
	return &Mutex[T]{c: c, v: v}
}

// Lock calls fn with the value inside a critical section.
func (m *Mutex[T]) Lock(fn func(*T)) {
	g := Enter(m.c)
	defer g.Exit()
	fn(&m.v)
}

// Controller returns the controller the mutex masks.
func (m *Mutex[T]) Controller() Controller { return m.c }

// Nop is a Controller for code that never runs alongside interrupt
// handlers. It tracks the nominal state so nesting stays observable.
type Nop struct {
	state State
}

// Disable implements Controller.
func (n *Nop) Disable() State {
	prior := n.state
	n.state = Disabled
	return prior
}

// Restore implements Controller.
func (n *Nop) Restore(s State) { n.state = s }

// State returns the current nominal state.
func (n *Nop) State() State { return n.state }
