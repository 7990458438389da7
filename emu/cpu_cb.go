package emu

// execCB dispatches the plain CB-prefixed table (rotate/shift/BIT/RES/SET
// on an unindexed register or (HL)), decoded via x/y/z exactly like the
// main table.
func (c *CPU) execCB(bus Bus, op uint8) {
	x := op >> 6
	y := (op >> 3) & 7
	z := op & 7

	v := c.reg8(bus, z, 4)

	switch x {
	case 0:
		r, f := rotShift(y, v, c.Reg.F())
		c.Reg.SetF(f)
		c.setReg8(bus, z, r, 3)
	case 1:
		memptrHi := uint8(c.Reg.MEMPTR >> 8)
		c.Reg.SetF(bitFlags(v, y, memptrHi, z == 6))
	case 2:
		r := v &^ (1 << y)
		c.setReg8(bus, z, r, 3)
	default:
		r := v | (1 << y)
		c.setReg8(bus, z, r, 3)
	}
}

// execIndexedCB dispatches DD CB d op / FD CB d op. z is always effectively
// (IX+d)/(IY+d): the undocumented "copy" behavior writes non-BIT results
// back to both memory and the named 8-bit register whenever z != 6, per
// §4.1's documented quirk list.
func (c *CPU) execIndexedCB(bus Bus, op uint8) {
	x := op >> 6
	y := (op >> 3) & 7
	z := op & 7

	addr := uint16(int32(c.indexReg()) + int32(c.disp))
	c.Reg.MEMPTR = addr
	// The read access is charged 6 T-states: the 3 T-state read plus 3
	// T-states of internal address-compute delay.
	v := bus.ReadMem(addr, 6)

	switch x {
	case 0:
		r, f := rotShift(y, v, c.Reg.F())
		c.Reg.SetF(f)
		bus.WriteMem(addr, r, 3)
		if z != 6 {
			c.setReg8NoIndex(z, r)
		}
	case 1:
		memptrHi := uint8(c.Reg.MEMPTR >> 8)
		c.Reg.SetF(bitFlags(v, y, memptrHi, true))
	case 2:
		r := v &^ (1 << y)
		bus.WriteMem(addr, r, 3)
		if z != 6 {
			c.setReg8NoIndex(z, r)
		}
	default:
		r := v | (1 << y)
		bus.WriteMem(addr, r, 3)
		if z != 6 {
			c.setReg8NoIndex(z, r)
		}
	}
}

func rotShift(y uint8, v uint8, carryIn uint8) (uint8, uint8) {
	switch y {
	case 0:
		return rlc8(v)
	case 1:
		return rrc8(v)
	case 2:
		return rl8(v, carryIn)
	case 3:
		return rr8(v, carryIn)
	case 4:
		return sla8(v)
	case 5:
		return sra8(v)
	case 6:
		return sll8(v)
	default:
		return srl8(v)
	}
}

// setReg8NoIndex writes the z-coded plain register (B,C,D,E,H,L,-,A),
// deliberately bypassing IX/IY substitution: the DDCB/FDCB "copy" target
// is always the unindexed H/L pair even when an index prefix is active.
func (c *CPU) setReg8NoIndex(z uint8, v uint8) {
	switch z {
	case 0:
		c.Reg.BC.Hi = v
	case 1:
		c.Reg.BC.Lo = v
	case 2:
		c.Reg.DE.Hi = v
	case 3:
		c.Reg.DE.Lo = v
	case 4:
		c.Reg.HL.Hi = v
	case 5:
		c.Reg.HL.Lo = v
	case 7:
		c.Reg.AF.Hi = v
	}
}
