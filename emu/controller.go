package emu

// Controller wires the CPU to memory, the ULA, sound and input, and
// drives the per-scanline interleaving loop, playing the role the
// teacher's EmulatorBase.runScanlines plays for its console: advance the
// CPU in small bursts, render one scanline's worth of pixels, generate
// that scanline's worth of audio, then move to the next line in an exact
// repeating cadence for the whole frame.
type Controller struct {
	cpu   *CPU
	mem   *Memory
	ula   *ULA
	ay    *AY
	beeper *Beeper
	input *Input
	tape  *Tape

	machine MachineType
	timing  MachineTiming

	frameT int   // T-state within the current frame
	totalT int64 // T-state count since power-on, never reset by EmulateFrame
	tapeLastT  int64
	pagingPort uint8

	events EmulationEvents

	fastLoadHook   func(c *Controller) bool
	breakpointAddr uint16
	breakpointSet  bool
}

// SetBreakpoint arms a PC breakpoint: EmulateFrame reports
// EventPCBreakpoint the next time the CPU reaches addr.
func (c *Controller) SetBreakpoint(addr uint16) {
	c.breakpointAddr = addr
	c.breakpointSet = true
}

// ClearBreakpoint disarms the PC breakpoint set by SetBreakpoint.
func (c *Controller) ClearBreakpoint() { c.breakpointSet = false }

func NewController(machine MachineType, mem *Memory) *Controller {
	return &Controller{
		cpu:     NewCPU(),
		mem:     mem,
		ula:     NewULA(machine),
		ay:      NewAY(),
		beeper:  NewBeeper(),
		input:   NewInput(),
		tape:    NewTape(),
		machine: machine,
		timing:  TimingFor(machine),
	}
}

func (c *Controller) CPU() *CPU       { return c.cpu }
func (c *Controller) Memory() *Memory { return c.mem }
func (c *Controller) Input() *Input   { return c.input }
func (c *Controller) Tape() *Tape     { return c.tape }
func (c *Controller) AY() *AY         { return c.ay }
func (c *Controller) Beeper() *Beeper { return c.beeper }

// Bus implementation -------------------------------------------------

// advance charges baseT T-states to both the per-frame clock the CPU/ULA
// schedule against and the power-on-relative clock the tape needs to
// measure real elapsed time across frame boundaries.
func (c *Controller) advance(baseT int) {
	c.frameT += baseT
	c.totalT += int64(baseT)
}

func (c *Controller) ReadMem(addr uint16, baseT int) uint8 {
	c.applyContention(addr, baseT)
	v := c.mem.ReadByte(addr)
	c.advance(baseT)
	if c.cpu.PC() == FastLoadTrapAddr && c.tape.Playing() && c.fastLoadHook != nil {
		if c.fastLoadHook(c) {
			c.events.set(EventTapeFastLoadTrigger)
		}
	}
	return v
}

func (c *Controller) WriteMem(addr uint16, val uint8, baseT int) {
	c.applyContention(addr, baseT)
	c.mem.WriteByte(addr, val)
	c.advance(baseT)
}

func (c *Controller) ReadPort(addr uint16, baseT int) uint8 {
	c.applyPortContention(addr, baseT)
	c.advance(baseT)

	if addr&0x01 == 0 {
		v := c.input.ReadKeyboard(uint8(addr >> 8))
		elapsed := c.totalT - c.tapeLastT
		c.tapeLastT = c.totalT
		if c.tape.EarBit(int(elapsed)) {
			v |= 0x40
		} else {
			v &^= 0x40
		}
		return v
	}
	switch addr & 0xFF {
	case 0x1F:
		return c.input.ReadKempston()
	}
	if addr&0xC002 == 0xC000 {
		return c.ay.ReadData()
	}
	return c.ula.FloatingBusByte(c.frameT, c.mem.ScreenBytes())
}

func (c *Controller) WritePort(addr uint16, val uint8, baseT int) {
	c.applyPortContention(addr, baseT)
	c.advance(baseT)

	if addr&0x01 == 0 {
		c.ula.SetBorder(val)
		c.beeper.Write(val)
		return
	}
	if c.machine == Machine128K && addr&0x8002 == 0 {
		c.pagingPort = val
		c.mem.WritePagingPort(val)
		return
	}
	switch addr & 0xC002 {
	case 0xC000:
		c.ay.Latch(val)
	case 0x8000:
		c.ay.WriteData(val)
	}
}

func (c *Controller) AckInt(baseT int) uint8 {
	c.advance(baseT)
	return 0xFF
}

func (c *Controller) Now() int { return c.frameT }

func (c *Controller) applyContention(addr uint16, baseT int) {
	if !c.mem.IsContended(addr) {
		return
	}
	delay := c.ula.ContentionDelay(c.frameT)
	c.advance(delay)
}

func (c *Controller) applyPortContention(addr uint16, baseT int) {
	// ULA-decoded ports (even addr, or any port on a contended page) incur
	// the same per-T delay as contended memory.
	if addr&0x01 == 0 || c.mem.IsContended(addr) {
		delay := c.ula.ContentionDelay(c.frameT)
		c.advance(delay)
	}
}

// EmulateFrame runs exactly one video frame: it raises the maskable
// interrupt at the top, steps the CPU instruction-by-instruction,
// rendering and mixing audio one scanline at a time as each line's
// T-state budget is reached, the same granularity the teacher's
// runScanlines uses.
func (c *Controller) EmulateFrame() *Framebuffer {
	c.frameT = 0
	c.cpu.RequestInterrupt()

	for line := 0; line < c.timing.ScanlinesPerFrame; line++ {
		target := (line + 1) * c.timing.TStatesPerLine
		for c.frameT < target {
			c.cpu.Step(c)
			if c.breakpointSet && c.cpu.PC() == c.breakpointAddr {
				c.events.set(EventPCBreakpoint)
			}
		}
		displayLine := line - c.timing.DisplayStartLine
		if displayLine >= 0 && displayLine < displayH {
			c.ula.RenderScanline(displayLine, c.mem.ScreenBytes())
		}
		lineT := c.timing.TStatesPerLine
		c.ay.GenerateSamples(lineT)
		c.beeper.GenerateSamples(lineT)
	}

	return c.ula.EndFrame()
}

// TakeEvents drains accumulated emulation events.
func (c *Controller) TakeEvents() EmulationEvents { return c.events.Take() }
