// Package critical provides interrupt-masking critical sections for a single
// core whose only source of preemption is interrupts.
//
// A critical section masks interrupts on entry and restores the previous
// mask state on exit, so sections nest: an inner Exit never re-enables
// interrupts that an outer section disabled.
//
// # Controllers
//
// The mask itself is behind the Controller interface. Core is a hosted
// model of one core with an interrupt line: interrupts raised from any
// goroutine stay pending while masked and their handlers run on the core's
// goroutine as soon as interrupts are enabled again.
//
// # Usage
//
//	g := critical.Enter(core)
//	defer g.Exit()
//
// or, for state that must only be touched with interrupts masked:
//
//	m := critical.NewMutex(core, counters{})
//	m.Lock(func(c *counters) { c.n++ })
package critical
