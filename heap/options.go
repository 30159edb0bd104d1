package heap

import (
	"log/slog"
	"os"

	"github.com/joshuapare/mcuheap/critical"
)

// EnvChecked turns on contract checks for heaps built with DefaultOptions.
const EnvChecked = "MCUHEAP_CHECKED"

// Options configures a Heap.
type Options struct {
	// Interrupts masks interrupts around every heap mutation. Nil selects a
	// critical.Nop, for heaps never touched from interrupt handlers.
	Interrupts critical.Controller

	// Logger receives init, extend and failure records. Nil selects the
	// package logger of internal/logger at the time of each call.
	Logger *slog.Logger

	// Checked validates pointers and layouts passed to Deallocate and
	// panics with *ContractViolation on misuse.
	Checked bool
}

// DefaultOptions returns the options used by Default: no interrupt
// controller, the package logger, and checks enabled when MCUHEAP_CHECKED
// is set to a true value.
func DefaultOptions() Options {
	return Options{Checked: envBool(EnvChecked)}
}

func envBool(name string) bool {
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	default:
		return false
	}
}
