package emu

import "testing"

type fakeBitSource struct {
	level bool
	more  bool
}

func (f *fakeBitSource) CurrentBit(tstates uint64) (bool, bool) { return f.level, f.more }
func (f *fakeBitSource) FastLoadBlock() ([]uint8, bool, bool)   { return nil, false, false }
func (f *fakeBitSource) Rewind()                                {}

func TestTape_EarBitAdvancesClockAndReflectsLevel(t *testing.T) {
	src := &fakeBitSource{level: true, more: true}
	tape := NewTape()
	tape.Load(src)
	tape.Play()

	if !tape.EarBit(10) {
		t.Error("expected EAR bit high, matching the fake source's level")
	}
	if tape.tstates != 10 {
		t.Errorf("expected tape clock to advance by the T-states given, got %d", tape.tstates)
	}

	tape.EarBit(5)
	if tape.tstates != 15 {
		t.Errorf("expected tape clock to accumulate across calls, got %d", tape.tstates)
	}
}

func TestTape_EarBitStopsPlayingWhenSourceExhausted(t *testing.T) {
	src := &fakeBitSource{level: false, more: false}
	tape := NewTape()
	tape.Load(src)
	tape.Play()

	tape.EarBit(1)
	if tape.Playing() {
		t.Error("expected tape to stop once the source reports no more data")
	}
}

// TestController_EarBitReflectsInPort0xFEBit6 guards against port 0xFE's
// bit 6 getting stuck high: it must clear, not just set, per the tape's
// actual EAR level.
func TestController_EarBitReflectsInPort0xFEBit6(t *testing.T) {
	var rom [0x4000]uint8
	mem := NewMemory48K(rom)
	ctrl := NewController(Machine48K, mem)

	ctrl.tape.Load(&fakeBitSource{level: true, more: true})
	ctrl.tape.Play()
	if v := ctrl.ReadPort(0xFEFE, 4); v&0x40 == 0 {
		t.Error("expected bit 6 set when the tape EAR level is high")
	}

	ctrl.tape.Load(&fakeBitSource{level: false, more: true})
	ctrl.tape.Play()
	if v := ctrl.ReadPort(0xFEFE, 4); v&0x40 != 0 {
		t.Error("expected bit 6 clear when the tape EAR level is low")
	}
}

// TestController_EarBitAdvancesByRealElapsedTime guards against the EAR
// poll always charging 0 T-states, which would freeze pulse playback.
func TestController_EarBitAdvancesByRealElapsedTime(t *testing.T) {
	var rom [0x4000]uint8
	mem := NewMemory48K(rom)
	ctrl := NewController(Machine48K, mem)
	src := &fakeBitSource{level: false, more: true}
	ctrl.tape.Load(src)
	ctrl.tape.Play()

	ctrl.ReadPort(0xFEFE, 4)
	ctrl.ReadMem(0, 4) // burn some T-states between polls
	ctrl.ReadMem(0, 4)
	ctrl.ReadPort(0xFEFE, 4)

	if ctrl.tape.tstates == 0 {
		t.Error("expected the tape clock to have advanced across port reads")
	}
}

type fakeFastLoadSource struct {
	block []uint8
	ok    bool
}

func (f *fakeFastLoadSource) CurrentBit(tstates uint64) (bool, bool) { return false, true }
func (f *fakeFastLoadSource) FastLoadBlock() ([]uint8, bool, bool)   { return f.block, false, f.ok }
func (f *fakeFastLoadSource) Rewind()                                {}

func newTestEmulatorWithTape(src TapeSource) *Emulator {
	var rom [0x4000]uint8
	mem := NewMemory48K(rom)
	e := &Emulator{settings: Settings{Machine: Machine48K}, ctrl: NewController(Machine48K, mem)}
	e.ctrl.tape.Load(src)
	e.ctrl.tape.Play()
	return e
}

// buildBlock assembles a flag+payload+checksum TAP-style block the way
// the real ROM's LD-BYTES checksums it: XOR of the flag and every
// payload byte.
func buildBlock(flag uint8, payload []uint8) []uint8 {
	checksum := flag
	for _, b := range payload {
		checksum ^= b
	}
	block := make([]uint8, 0, len(payload)+2)
	block = append(block, flag)
	block = append(block, payload...)
	block = append(block, checksum)
	return block
}

func TestEmulator_AttemptFastLoadCopiesPayloadAndSetsCarryOnMatch(t *testing.T) {
	payload := []uint8{0x11, 0x22, 0x33}
	flag := uint8(0xFF)
	block := buildBlock(flag, payload)

	e := newTestEmulatorWithTape(&fakeFastLoadSource{block: block, ok: true})
	r := &e.ctrl.cpu.Reg
	r.SetA(flag)
	r.DE.SetU16(uint16(len(payload)))
	r.IX = 0xC000
	r.SetF(0)

	if !e.attemptFastLoad(e.ctrl) {
		t.Fatal("expected fast load to trigger given a valid block")
	}
	for i, want := range payload {
		if got := e.ctrl.mem.ReadByte(0xC000 + uint16(i)); got != want {
			t.Errorf("payload[%d]: expected 0x%02X at (IX+%d), got 0x%02X", i, want, i, got)
		}
	}
	if !r.FlagSet(FlagC) {
		t.Error("expected carry set when the flag byte and checksum both match")
	}
	if r.PC != FastLoadExitAddr {
		t.Errorf("expected PC redirected to FastLoadExitAddr, got 0x%04X", r.PC)
	}
	if r.DE.U16() != 0 {
		t.Errorf("expected DE zeroed after a completed transfer, got %d", r.DE.U16())
	}
	if r.IX != 0xC000+uint16(len(payload)) {
		t.Errorf("expected IX advanced past the payload, got 0x%04X", r.IX)
	}
}

func TestEmulator_AttemptFastLoadClearsCarryOnChecksumMismatch(t *testing.T) {
	payload := []uint8{0x11, 0x22}
	flag := uint8(0xFF)
	block := buildBlock(flag, payload)
	block[len(block)-1] ^= 0xFF // corrupt the trailing checksum byte

	e := newTestEmulatorWithTape(&fakeFastLoadSource{block: block, ok: true})
	r := &e.ctrl.cpu.Reg
	r.SetA(flag)
	r.DE.SetU16(uint16(len(payload)))
	r.IX = 0xC000
	r.SetF(FlagC)

	e.attemptFastLoad(e.ctrl)
	if r.FlagSet(FlagC) {
		t.Error("expected carry cleared when the checksum doesn't match")
	}
}

func TestEmulator_AttemptFastLoadClearsCarryOnFlagMismatch(t *testing.T) {
	payload := []uint8{0x11, 0x22}
	block := buildBlock(0xFF, payload)

	e := newTestEmulatorWithTape(&fakeFastLoadSource{block: block, ok: true})
	r := &e.ctrl.cpu.Reg
	r.SetA(0x00) // expects a header block, tape offers a data block
	r.DE.SetU16(uint16(len(payload)))
	r.IX = 0xC000
	r.SetF(FlagC)

	e.attemptFastLoad(e.ctrl)
	if r.FlagSet(FlagC) {
		t.Error("expected carry cleared when the flag byte doesn't match A")
	}
}

func TestEmulator_AttemptFastLoadSkipsFlagByteWhenCopyingPayload(t *testing.T) {
	// A flag byte left in the copied payload would shift every following
	// byte by one; make sure (IX) lands on payload[0], not the flag.
	payload := []uint8{0xAB, 0xCD}
	flag := uint8(0x00)
	block := buildBlock(flag, payload)

	e := newTestEmulatorWithTape(&fakeFastLoadSource{block: block, ok: true})
	r := &e.ctrl.cpu.Reg
	r.SetA(flag)
	r.DE.SetU16(uint16(len(payload)))
	r.IX = 0xD000

	e.attemptFastLoad(e.ctrl)
	if got := e.ctrl.mem.ReadByte(0xD000); got != 0xAB {
		t.Errorf("expected the flag byte skipped and payload[0]=0xAB at (IX), got 0x%02X", got)
	}
}
