package emu

// TapeSource is the pulse-level contract a loaded tape image (TAP/TZX,
// decoded elsewhere by the tapefile package) must satisfy, modeled on
// original_source's tape/empty.rs TapeImpl trait: the core only ever
// needs "what level is the EAR line at this T-state" plus transport
// controls, never format details.
type TapeSource interface {
	// CurrentBit returns the EAR line level (bit 6 of port 0xFE) at the
	// given tape-relative T-state, and whether the tape has more data
	// after this point.
	CurrentBit(tstates uint64) (level bool, more bool)
	// FastLoadBlock returns the next data block for ROM fast-load
	// interception, or ok=false if the tape isn't positioned at a block
	// boundary a fast loader could consume directly.
	FastLoadBlock() (data []uint8, isHeader bool, ok bool)
	Rewind()
}

// Tape drives a TapeSource and implements the ROM fast-load trap: when
// the CPU's PC lands on 0x0556 (the standard ROM's LD-BYTES routine,
// reached from both LOAD and VERIFY) with tape playback active, the
// controller can short-circuit thousands of real T-states of bit-banging
// by handing the ROM's register convention the whole block directly.
type Tape struct {
	source TapeSource
	tstates uint64
	playing bool
}

func NewTape() *Tape { return &Tape{} }

func (t *Tape) Load(src TapeSource) {
	t.source = src
	t.tstates = 0
	t.playing = false
}

func (t *Tape) Play()   { t.playing = t.source != nil }
func (t *Tape) Stop()   { t.playing = false }
func (t *Tape) Rewind() {
	t.tstates = 0
	if t.source != nil {
		t.source.Rewind()
	}
}
func (t *Tape) Playing() bool { return t.playing }

// EarBit reports the current EAR input level for port 0xFE bit 6, and
// advances the tape's internal clock by the given T-states.
func (t *Tape) EarBit(tstates int) bool {
	if !t.playing || t.source == nil {
		return false
	}
	t.tstates += uint64(tstates)
	level, more := t.source.CurrentBit(t.tstates)
	if !more {
		t.playing = false
	}
	return level
}

// FastLoadTrapAddr is the standard 48K/128K ROM entry point for the
// tape-block loader (LD-BYTES), the interception point §4.5 names.
const FastLoadTrapAddr = 0x0556

// FastLoadExitAddr is where LD-BYTES returns control once the trap has
// finished loading (or failed) a block, letting the controller resume
// normal instruction execution past the routine it skipped.
const FastLoadExitAddr = 0x05E0
