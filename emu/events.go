package emu

// EmulationEvents is a bitflag set the controller accumulates during a
// frame and the caller drains with Take, modeled on original_source's
// events.rs EmulationEvents type (supplemented into this port: the
// distilled spec never named it, but it is how a host learns a fast-load
// trigger or breakpoint fired without polling PC every T-state).
type EmulationEvents uint32

const (
	EventTapeFastLoadTrigger EmulationEvents = 1 << iota
	EventPCBreakpoint
)

// Take returns the events accumulated so far and clears them.
func (e *EmulationEvents) Take() EmulationEvents {
	v := *e
	*e = 0
	return v
}

func (e *EmulationEvents) set(flag EmulationEvents) {
	*e |= flag
}

func (e EmulationEvents) Has(flag EmulationEvents) bool {
	return e&flag != 0
}

// instantFlag is the edge-triggered "take" latch original_source's
// instantflag.rs describes: set once, read-and-cleared exactly once.
// Used for the tape fast-load trigger, where the caller must see the edge even if it polls less often than
// the edge occurs.
type instantFlag struct {
	v bool
}

// Pick reads and clears the flag.
func (f *instantFlag) Pick() bool {
	v := f.v
	f.v = false
	return v
}

// Peek reads the flag without clearing it.
func (f *instantFlag) Peek() bool { return f.v }

func (f *instantFlag) Set() { f.v = true }
