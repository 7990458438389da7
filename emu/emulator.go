package emu

import (
	"encoding/binary"
	"hash/crc32"
)

// Emulator is the facade the rest of the module (romloader, snapshot,
// tapefile, cli) drives: one machine instance, its controller, and the
// save-state serializer, mirroring the shape of the teacher's
// EmulatorBase (one struct owning CPU+mem+video+sound+io, with
// Serialize/Deserialize hung directly off it).
type Emulator struct {
	settings Settings
	ctrl     *Controller

	fastLoadFlag instantFlag
}

// New constructs an Emulator per Settings, loading a system ROM from
// rom (if non-nil) or, when Settings.LoadDefaultROM is set, from the
// embedded fallback images.
func New(settings Settings, rom ROMProvider) (*Emulator, error) {
	if settings.SampleRate <= 0 {
		settings.SampleRate = 44100
	}

	var mem *Memory
	switch settings.Machine {
	case Machine128K:
		page0, page1, err := load128ROM(settings, rom)
		if err != nil {
			return nil, err
		}
		mem = NewMemory128K(page0, page1)
	default:
		page, err := load48ROM(settings, rom)
		if err != nil {
			return nil, err
		}
		mem = NewMemory48K(page)
	}

	e := &Emulator{
		settings: settings,
		ctrl:     NewController(settings.Machine, mem),
	}
	if settings.FastLoad {
		e.ctrl.fastLoadHook = e.attemptFastLoad
	}
	if settings.AutoloadTape {
		e.typeLoadCommand()
	}
	return e, nil
}

// typeLoadCommand runs enough frames for the ROM's cold-start self-test
// and copyright screen to finish, then synthesizes the keystrokes for
// LOAD "" + ENTER on the real keyboard matrix, leaving the machine
// sitting at the tape-loading prompt with no further user input needed.
// original_source's autoload::tape module reaches the same end state by
// applying a prebaked SNA snapshot; driving the keyboard matrix gets
// there without needing to embed a binary blob this port has no access to.
func (e *Emulator) typeLoadCommand() {
	const settleFrames = 50
	for i := 0; i < settleFrames; i++ {
		e.ctrl.EmulateFrame()
	}

	press := func(keys ...ZXKey) {
		for _, k := range keys {
			e.ctrl.Input().SetKey(k, true)
		}
		for i := 0; i < 5; i++ {
			e.ctrl.EmulateFrame()
		}
		for _, k := range keys {
			e.ctrl.Input().SetKey(k, false)
		}
		for i := 0; i < 3; i++ {
			e.ctrl.EmulateFrame()
		}
	}

	press(KeyJ)              // LOAD keyword
	press(KeySymShift, KeyP) // opening quote
	press(KeySymShift, KeyP) // closing quote
	press(KeyEnter)
}

func load48ROM(s Settings, rom ROMProvider) ([0x4000]uint8, error) {
	var out [0x4000]uint8
	if rom != nil {
		data, err := rom.ROM48()
		if err != nil {
			return out, err
		}
		if len(data) != len(out) {
			return out, ErrInvalidConfiguration
		}
		copy(out[:], data)
		return out, nil
	}
	if s.LoadDefaultROM {
		return LoadDefaultROM(Machine48K)
	}
	return out, ErrInvalidConfiguration
}

func load128ROM(s Settings, rom ROMProvider) ([0x4000]uint8, [0x4000]uint8, error) {
	var p0, p1 [0x4000]uint8
	if rom != nil {
		d0, err := rom.ROM128(0)
		if err != nil {
			return p0, p1, err
		}
		d1, err := rom.ROM128(1)
		if err != nil {
			return p0, p1, err
		}
		if len(d0) != len(p0) || len(d1) != len(p1) {
			return p0, p1, ErrInvalidConfiguration
		}
		copy(p0[:], d0)
		copy(p1[:], d1)
		return p0, p1, nil
	}
	if s.LoadDefaultROM {
		a, err := LoadDefaultROM(Machine128K)
		if err != nil {
			return p0, p1, err
		}
		b, err := LoadDefaultROM(Machine48K)
		if err != nil {
			return p0, p1, err
		}
		return a, b, nil
	}
	return p0, p1, ErrInvalidConfiguration
}

// EmulateFrames runs exactly n whole video frames and returns the final
// frame's pixel buffer.
func (e *Emulator) EmulateFrames(n int) *Framebuffer {
	var fb *Framebuffer
	for i := 0; i < n; i++ {
		fb = e.ctrl.EmulateFrame()
	}
	if e.ctrl.events.Has(EventTapeFastLoadTrigger) {
		e.fastLoadFlag.Set()
	}
	return fb
}

// TakeEvents drains the accumulated emulation events since the last call.
func (e *Emulator) TakeEvents() EmulationEvents { return e.ctrl.TakeEvents() }

// SetBreakpoint arms a PC breakpoint: TakeEvents reports EventPCBreakpoint
// once the CPU reaches addr.
func (e *Emulator) SetBreakpoint(addr uint16) { e.ctrl.SetBreakpoint(addr) }

// ClearBreakpoint disarms the breakpoint set by SetBreakpoint.
func (e *Emulator) ClearBreakpoint() { e.ctrl.ClearBreakpoint() }

// SendKey updates one keyboard matrix key's state.
func (e *Emulator) SendKey(k ZXKey, down bool) { e.ctrl.Input().SetKey(k, down) }

// SendKempston updates the Kempston joystick state.
func (e *Emulator) SendKempston(bits KempstonKey, down bool) {
	e.ctrl.Input().SetKempston(bits, down)
}

// LoadTape installs a decoded tape image for playback.
func (e *Emulator) LoadTape(src TapeSource) { e.ctrl.Tape().Load(src) }
func (e *Emulator) PlayTape()               { e.ctrl.Tape().Play() }
func (e *Emulator) StopTape()               { e.ctrl.Tape().Stop() }
func (e *Emulator) RewindTape()             { e.ctrl.Tape().Rewind() }

// ScreenBuffer returns the most recently rendered frame.
func (e *Emulator) ScreenBuffer() *Framebuffer { return e.ctrl.ula.frame }

// SoundSamples returns and clears the AY+beeper samples generated since
// the last call, pre-mixed to mono.
func (e *Emulator) SoundSamples() []float32 {
	tone := e.ctrl.AY().TakeBuffer()
	beep := e.ctrl.Beeper().TakeBuffer()
	n := len(tone)
	if len(beep) > n {
		n = len(beep)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var t, b float32
		if i < len(tone) {
			t = tone[i]
		}
		if i < len(beep) {
			b = beep[i]
		}
		out[i] = t*0.6 + b*0.4
	}
	return out
}

// SnapshotState is the machine-agnostic register/memory payload a
// decoded snapshot (SNA/Z80/SZX, decoded by the snapshot package) hands
// to ApplySnapshot. It deliberately mirrors snapshot.DecodedState's
// fields rather than importing that package, since snapshot already
// imports emu for its error sentinels.
type SnapshotState struct {
	AF, BC, DE, HL             uint16
	AFalt, BCalt, DEalt, HLalt uint16
	IX, IY                     uint16
	SP, PC                     uint16
	I, R                       uint8
	IFF1, IFF2                 bool
	IM                         uint8
	Border                     uint8
	PagingPort                 uint8
	Pages                      map[int][0x4000]uint8
}

// ApplySnapshot loads a decoded snapshot's registers and RAM pages into
// the running machine, applying the 128K paging port last (it may itself
// depend on RAM contents for any mapper-specific latch, though the
// Spectrum's is stateless).
func (e *Emulator) ApplySnapshot(s *SnapshotState) error {
	r := &e.ctrl.cpu.Reg
	r.AF.SetU16(s.AF)
	r.BC.SetU16(s.BC)
	r.DE.SetU16(s.DE)
	r.HL.SetU16(s.HL)
	r.AFalt.SetU16(s.AFalt)
	r.BCalt.SetU16(s.BCalt)
	r.DEalt.SetU16(s.DEalt)
	r.HLalt.SetU16(s.HLalt)
	r.IX = s.IX
	r.IY = s.IY
	r.SP = s.SP
	r.PC = s.PC
	r.I = s.I
	r.R = s.R
	r.IFF1 = s.IFF1
	r.IFF2 = s.IFF2
	r.IM = s.IM

	for bank, page := range s.Pages {
		if bank < 0 || bank > 7 {
			continue
		}
		e.ctrl.mem.ram[bank] = page
	}
	e.ctrl.ula.SetBorder(s.Border)
	if e.settings.Machine == Machine128K {
		e.ctrl.mem.WritePagingPort(s.PagingPort)
	}
	return nil
}

// attemptFastLoad implements §4.5/§4.5.1's ROM fast-load trap: when PC is
// at FastLoadTrapAddr and the tape is positioned at a block boundary, it
// replays the standard LD-BYTES routine's own logic against the raw
// block (flag byte, then DE data bytes, then a trailing checksum byte)
// instead of bit-banging it: the flag byte is compared against A, the DE
// bytes are copied into (IX).. while XOR-accumulating a checksum seeded
// with the flag byte, and the final checksum byte decides whether carry
// comes back set (success) or clear (mismatch) — exactly what the real
// routine leaves in F before returning to FastLoadExitAddr.
func (e *Emulator) attemptFastLoad(c *Controller) bool {
	block, _, ok := c.tape.source.FastLoadBlock()
	if !ok || len(block) < 2 {
		return false
	}

	reg := &c.cpu.Reg
	length := reg.DE.U16()
	dest := reg.IX
	flag := block[0]
	if int(length) > len(block)-2 {
		return false
	}

	if flag != reg.A() {
		reg.SetF(reg.F() &^ FlagC)
		reg.PC = FastLoadExitAddr
		return true
	}

	checksum := flag
	for i := uint16(0); i < length; i++ {
		b := block[1+i]
		c.mem.WriteByte(dest+i, b)
		checksum ^= b
	}
	trailer := block[1+length]

	reg.DE.SetU16(0)
	reg.IX = dest + length
	if flag == reg.A() && checksum == trailer {
		reg.SetF(reg.F() | FlagC)
	} else {
		reg.SetF(reg.F() &^ FlagC)
	}
	reg.PC = FastLoadExitAddr
	return true
}

// Save-state format: a fixed magic/version header followed by raw
// register/memory dumps and a trailing CRC32, the same shape as the
// teacher's Serialize/Deserialize (stateMagic/stateVersion/header CRC),
// adapted to this machine's register/memory layout.
const (
	stateMagic   = "GOZXSTATE1\x00\x00"
	stateVersion = 1
)

// SerializeSize reports the exact byte length Serialize will produce.
func (e *Emulator) SerializeSize() int {
	memSize := 8 * 0x4000
	if e.settings.Machine == Machine48K {
		memSize = 3 * 0x4000
	}
	return len(stateMagic) + 2 + 4 + 4 + cpuStateSize + memSize + 4
}

// cpuStateSize: 8 register pairs (AF/BC/DE/HL + shadow set) at 2 bytes
// each, 5 plain 16-bit registers (IX/IY/SP/PC/MEMPTR), 6 single bytes
// (I/R/IFF1/IFF2/IM/Halted).
const cpuStateSize = 8*2 + 5*2 + 6

func (e *Emulator) Serialize() []byte {
	buf := make([]byte, e.SerializeSize())
	off := 0
	copy(buf[off:], stateMagic)
	off += len(stateMagic)
	binary.LittleEndian.PutUint16(buf[off:], stateVersion)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], uint32(e.settings.Machine))
	off += 4
	off += 4 // reserved

	off = e.serializeCPU(buf, off)
	off = e.serializeMemory(buf, off)

	sum := crc32.ChecksumIEEE(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:], sum)
	return buf
}

func (e *Emulator) serializeCPU(buf []byte, off int) int {
	r := &e.ctrl.cpu.Reg
	putPair := func(p RegPair) {
		buf[off] = p.Hi
		buf[off+1] = p.Lo
		off += 2
	}
	putPair(r.AF)
	putPair(r.BC)
	putPair(r.DE)
	putPair(r.HL)
	putPair(r.AFalt)
	putPair(r.BCalt)
	putPair(r.DEalt)
	putPair(r.HLalt)
	binary.LittleEndian.PutUint16(buf[off:], r.IX)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], r.IY)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], r.SP)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], r.PC)
	off += 2
	binary.LittleEndian.PutUint16(buf[off:], r.MEMPTR)
	off += 2
	buf[off] = r.I
	off++
	buf[off] = r.R
	off++
	buf[off] = boolByte(r.IFF1)
	off++
	buf[off] = boolByte(r.IFF2)
	off++
	buf[off] = r.IM
	off++
	buf[off] = boolByte(r.Halted)
	off++
	return off
}

func (e *Emulator) serializeMemory(buf []byte, off int) int {
	mem := e.ctrl.mem
	for i := range mem.ram {
		if e.settings.Machine == Machine48K && (i != 0 && i != 2 && i != 5) {
			continue
		}
		copy(buf[off:], mem.ram[i][:])
		off += 0x4000
	}
	return off
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Deserialize restores state previously produced by Serialize, verifying
// magic, version and trailing CRC32 before touching any machine state.
func (e *Emulator) Deserialize(data []byte) error {
	if len(data) != e.SerializeSize() {
		return ErrUnexpectedEOF
	}
	if string(data[:len(stateMagic)]) != stateMagic {
		return ErrInvalidConfiguration
	}
	if binary.LittleEndian.Uint16(data[len(stateMagic):]) != stateVersion {
		return ErrInvalidConfiguration
	}
	sum := binary.LittleEndian.Uint32(data[len(data)-4:])
	if crc32.ChecksumIEEE(data[:len(data)-4]) != sum {
		return ErrInvalidConfiguration
	}

	off := len(stateMagic)
	off += 2 // version
	off += 4 // machine
	off += 4 // reserved

	off = e.deserializeCPU(data, off)
	e.deserializeMemory(data, off)
	return nil
}

func (e *Emulator) deserializeCPU(data []byte, off int) int {
	r := &e.ctrl.cpu.Reg
	getPair := func() RegPair {
		p := RegPair{Hi: data[off], Lo: data[off+1]}
		off += 2
		return p
	}
	r.AF = getPair()
	r.BC = getPair()
	r.DE = getPair()
	r.HL = getPair()
	r.AFalt = getPair()
	r.BCalt = getPair()
	r.DEalt = getPair()
	r.HLalt = getPair()
	r.IX = binary.LittleEndian.Uint16(data[off:])
	off += 2
	r.IY = binary.LittleEndian.Uint16(data[off:])
	off += 2
	r.SP = binary.LittleEndian.Uint16(data[off:])
	off += 2
	r.PC = binary.LittleEndian.Uint16(data[off:])
	off += 2
	r.MEMPTR = binary.LittleEndian.Uint16(data[off:])
	off += 2
	r.I = data[off]
	off++
	r.R = data[off]
	off++
	r.IFF1 = data[off] != 0
	off++
	r.IFF2 = data[off] != 0
	off++
	r.IM = data[off]
	off++
	r.Halted = data[off] != 0
	off++
	return off
}

func (e *Emulator) deserializeMemory(data []byte, off int) {
	mem := e.ctrl.mem
	for i := range mem.ram {
		if e.settings.Machine == Machine48K && (i != 0 && i != 2 && i != 5) {
			continue
		}
		copy(mem.ram[i][:], data[off:off+0x4000])
		off += 0x4000
	}
}
