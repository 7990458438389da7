package emu

// CPU is the from-scratch Z80 interpreter. It fetches, decodes and
// executes one instruction (one prefix chain) per Step call, driving the
// bus with exact per-access T-state counts per §4.1. Built in the
// teacher's structural idiom (a cycle-returning Step over a Bus-like
// interface) but as an original interpreter: see DESIGN.md for why the
// teacher's koron-go/z80 dependency could not be reused here.
type CPU struct {
	Reg Registers

	nmiPending bool
	intPending bool
	afterEI    bool // one-instruction EI delay

	// indexMode selects which 16-bit index register (HL, IX or
	// IY) the current instruction's r[6]/rp[2] slots resolve to.
	indexMode indexKind
	dispValid bool
	disp      int8
}

type indexKind int

const (
	indexHL indexKind = iota
	indexIX
	indexIY
)

// NewCPU returns a CPU in its power-on state: PC=0, SP=AF=0xFFFF, I=R=0,
// IFF1=IFF2=0, IM=0, per §4.1.
func NewCPU() *CPU {
	c := &CPU{}
	c.Reg.SP = 0xFFFF
	c.Reg.AF.SetU16(0xFFFF)
	return c
}

// Reset applies the reset (not power-on) state: SP/AF are left as they
// are, matching the spec's resolution of the Z80 manual's ambiguity here.
func (c *CPU) Reset() {
	c.Reg.Reset()
	c.nmiPending = false
	c.intPending = false
	c.afterEI = false
}

// RequestInterrupt latches a pending maskable interrupt.
func (c *CPU) RequestInterrupt() { c.intPending = true }

// RequestNMI latches a pending non-maskable interrupt.
func (c *CPU) RequestNMI() { c.nmiPending = true }

// PC reports the current program counter (for debugging/tape fast-load
// trigger detection).
func (c *CPU) PC() uint16 { return c.Reg.PC }

// Step executes exactly one instruction (or services one pending
// interrupt) and returns the number of T-states it consumed.
func (c *CPU) Step(bus Bus) int {
	before := bus.Now()

	if c.serviceInterrupts(bus) {
		return bus.Now() - before
	}

	if c.Reg.Halted {
		// HALT executes NOPs internally: still an M1 fetch/refresh cycle.
		c.Reg.IncR(1)
		bus.ReadMem(c.Reg.PC, 4)
		return bus.Now() - before
	}

	c.indexMode = indexHL
	c.dispValid = false
	c.execOne(bus)

	return bus.Now() - before
}

// RunUntil executes whole instructions until the bus reports a T-state
// count at or beyond deadline.
func (c *CPU) RunUntil(bus Bus, deadline int) {
	for bus.Now() < deadline {
		c.Step(bus)
	}
}

// serviceInterrupts implements §4.1's interrupt-handling rules. Returns
// true if it consumed the Step call by servicing an NMI or INT; a halted
// CPU with nothing to service gets false, and Step's HALT branch runs.
func (c *CPU) serviceInterrupts(bus Bus) bool {
	if c.nmiPending {
		c.nmiPending = false
		c.Reg.Halted = false
		c.Reg.IFF2 = c.Reg.IFF1
		c.Reg.IFF1 = false
		c.Reg.IncR(1)
		bus.ReadMem(c.Reg.PC, 5) // internal decision cycle, keyed to PC
		c.push16(bus, c.Reg.PC, 3)
		c.Reg.PC = 0x0066
		return true
	}

	if c.intPending && c.Reg.IFF1 && !c.afterEI {
		c.intPending = false
		c.Reg.Halted = false
		c.Reg.IFF1 = false
		c.Reg.IFF2 = false
		c.Reg.IncR(1)

		switch c.Reg.IM {
		case 2:
			ack := bus.AckInt(7)
			vecAddr := (uint16(c.Reg.I) << 8) | uint16(ack&0xFE)
			lo := bus.ReadMem(vecAddr, 3)
			hi := bus.ReadMem(vecAddr+1, 3)
			c.push16(bus, c.Reg.PC, 3)
			c.Reg.PC = uint16(hi)<<8 | uint16(lo)
			c.Reg.MEMPTR = c.Reg.PC
		default: // IM0 and IM1 both execute RST 38h on the Spectrum.
			bus.AckInt(7)
			c.push16(bus, c.Reg.PC, 3)
			c.Reg.PC = 0x0038
			c.Reg.MEMPTR = c.Reg.PC
		}
		return true
	}

	if c.afterEI {
		c.afterEI = false
	}

	if c.Reg.Halted {
		return false // handled by caller's HALT branch
	}

	return false
}

// fetch8 reads the next opcode/operand byte at PC and advances PC. M1
// fetches (isM1) cost 4 T and increment R; operand fetches cost 3 and
// don't touch R.
func (c *CPU) fetch8(bus Bus, isM1 bool) uint8 {
	addr := c.Reg.PC
	c.Reg.PC++
	if isM1 {
		c.Reg.IncR(1)
		return bus.ReadMem(addr, 4)
	}
	return bus.ReadMem(addr, 3)
}

func (c *CPU) fetch16(bus Bus) uint16 {
	lo := c.fetch8(bus, false)
	hi := c.fetch8(bus, false)
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) push16(bus Bus, v uint16, baseT int) {
	c.Reg.SP--
	bus.WriteMem(c.Reg.SP, uint8(v>>8), baseT)
	c.Reg.SP--
	bus.WriteMem(c.Reg.SP, uint8(v), baseT)
}

func (c *CPU) pop16(bus Bus, baseT int) uint16 {
	lo := bus.ReadMem(c.Reg.SP, baseT)
	c.Reg.SP++
	hi := bus.ReadMem(c.Reg.SP, baseT)
	c.Reg.SP++
	return uint16(hi)<<8 | uint16(lo)
}

// indexReg returns the 16-bit register currently standing in for HL
// (HL, IX, or IY, depending on an active DD/FD prefix).
func (c *CPU) indexReg() uint16 {
	switch c.indexMode {
	case indexIX:
		return c.Reg.IX
	case indexIY:
		return c.Reg.IY
	default:
		return c.Reg.HL.U16()
	}
}

func (c *CPU) setIndexReg(v uint16) {
	switch c.indexMode {
	case indexIX:
		c.Reg.IX = v
	case indexIY:
		c.Reg.IY = v
	default:
		c.Reg.HL.SetU16(v)
	}
}

// effAddr computes the effective address for r[6]/(HL)-coded operands:
// plain HL when unindexed, or IX/IY+d (fetching and caching d on first
// use) when a DD/FD prefix is active. The first resolution per
// instruction also charges the 5 T-states of internal address-compute
// delay real hardware inserts between reading d and the following
// memory access; later calls within the same instruction (a read then
// a write of the same operand) reuse the cached displacement and don't
// repeat either charge.
func (c *CPU) effAddr(bus Bus) uint16 {
	if c.indexMode == indexHL {
		return c.Reg.HL.U16()
	}
	if !c.dispValid {
		c.disp = int8(c.fetch8(bus, false))
		c.dispValid = true
		bus.ReadMem(c.Reg.PC, 5)
	}
	addr := uint16(int32(c.indexReg()) + int32(c.disp))
	c.Reg.MEMPTR = addr
	return addr
}

// reg8 returns the value of the y/z-coded 8-bit register (0=B,1=C,2=D,
// 3=E,4=H,5=L,6=(HL)/(IX+d)/(IY+d),7=A), applying IX/IY substitution for
// H/L per the undocumented DD/FD behavior, and reading through the bus
// (with contention) for code 6.
func (c *CPU) reg8(bus Bus, idx uint8, memCost int) uint8 {
	switch idx {
	case 0:
		return c.Reg.BC.Hi
	case 1:
		return c.Reg.BC.Lo
	case 2:
		return c.Reg.DE.Hi
	case 3:
		return c.Reg.DE.Lo
	case 4:
		return c.indexHiLo(true)
	case 5:
		return c.indexHiLo(false)
	case 6:
		return bus.ReadMem(c.effAddr(bus), memCost)
	default:
		return c.Reg.AF.Hi
	}
}

func (c *CPU) setReg8(bus Bus, idx uint8, v uint8, memCost int) {
	switch idx {
	case 0:
		c.Reg.BC.Hi = v
	case 1:
		c.Reg.BC.Lo = v
	case 2:
		c.Reg.DE.Hi = v
	case 3:
		c.Reg.DE.Lo = v
	case 4:
		c.setIndexHiLo(true, v)
	case 5:
		c.setIndexHiLo(false, v)
	case 6:
		bus.WriteMem(c.effAddr(bus), v, memCost)
	default:
		c.Reg.AF.Hi = v
	}
}

func (c *CPU) indexHiLo(hi bool) uint8 {
	switch c.indexMode {
	case indexIX:
		if hi {
			return uint8(c.Reg.IX >> 8)
		}
		return uint8(c.Reg.IX)
	case indexIY:
		if hi {
			return uint8(c.Reg.IY >> 8)
		}
		return uint8(c.Reg.IY)
	default:
		if hi {
			return c.Reg.HL.Hi
		}
		return c.Reg.HL.Lo
	}
}

func (c *CPU) setIndexHiLo(hi bool, v uint8) {
	switch c.indexMode {
	case indexIX:
		if hi {
			c.Reg.IX = uint16(v)<<8 | (c.Reg.IX & 0xFF)
		} else {
			c.Reg.IX = (c.Reg.IX &^ 0xFF) | uint16(v)
		}
	case indexIY:
		if hi {
			c.Reg.IY = uint16(v)<<8 | (c.Reg.IY & 0xFF)
		} else {
			c.Reg.IY = (c.Reg.IY &^ 0xFF) | uint16(v)
		}
	default:
		if hi {
			c.Reg.HL.Hi = v
		} else {
			c.Reg.HL.Lo = v
		}
	}
}

// reg16sp returns the p-coded 16-bit register for instructions using the
// SP-terminated set (BC,DE,HL/IX/IY,SP).
func (c *CPU) reg16sp(p uint8) uint16 {
	switch p {
	case 0:
		return c.Reg.BC.U16()
	case 1:
		return c.Reg.DE.U16()
	case 2:
		return c.indexReg()
	default:
		return c.Reg.SP
	}
}

func (c *CPU) setReg16sp(p uint8, v uint16) {
	switch p {
	case 0:
		c.Reg.BC.SetU16(v)
	case 1:
		c.Reg.DE.SetU16(v)
	case 2:
		c.setIndexReg(v)
	default:
		c.Reg.SP = v
	}
}

// reg16af returns the p-coded 16-bit register for the AF-terminated set
// (BC,DE,HL/IX/IY,AF), used by PUSH/POP.
func (c *CPU) reg16af(p uint8) uint16 {
	switch p {
	case 0:
		return c.Reg.BC.U16()
	case 1:
		return c.Reg.DE.U16()
	case 2:
		return c.indexReg()
	default:
		return c.Reg.AF.U16()
	}
}

func (c *CPU) setReg16af(p uint8, v uint16) {
	switch p {
	case 0:
		c.Reg.BC.SetU16(v)
	case 1:
		c.Reg.DE.SetU16(v)
	case 2:
		c.setIndexReg(v)
	default:
		c.Reg.AF.SetU16(v)
	}
}

func condTrue(r *Registers, code uint8) bool {
	switch code {
	case 0:
		return !r.FlagSet(FlagZ)
	case 1:
		return r.FlagSet(FlagZ)
	case 2:
		return !r.FlagSet(FlagC)
	case 3:
		return r.FlagSet(FlagC)
	case 4:
		return !r.FlagSet(FlagPV)
	case 5:
		return r.FlagSet(FlagPV)
	case 6:
		return !r.FlagSet(FlagS)
	default:
		return r.FlagSet(FlagS)
	}
}
