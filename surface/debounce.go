package surface

import (
	"time"

	"github.com/bep/debounce"
)

// Input coalescing windows. Pan deltas arrive per animation frame; search
// keystrokes are slower but fetches are more expensive.
const (
	PanDebounce    = 150 * time.Millisecond
	SearchDebounce = 350 * time.Millisecond
)

// Debouncer coalesces a burst of inputs into one trailing call. Each Call
// cancels the previously scheduled function and schedules the new one; the
// surface operation it triggers is unaffected by how it was scheduled.
type Debouncer struct {
	call func(func())
}

// NewDebouncer creates a Debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{call: debounce.New(window)}
}

// Call schedules fn to run after the quiet window, replacing any previously
// scheduled function.
func (d *Debouncer) Call(fn func()) {
	d.call(fn)
}
