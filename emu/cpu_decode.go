package emu

// execOne fetches and executes one full instruction, including any
// DD/FD/CB/ED prefix chain. Each prefix byte is its own M1 cycle (4 T,
// one R increment); an undocumented run of several DD/FD bytes just
// keeps re-selecting the active index register, matching "the subsequent
// byte executes normally and the prefix only adds 4 T-states and one
// R-increment" from §4.1.
func (c *CPU) execOne(bus Bus) {
	op := c.fetch8M1(bus)

	for op == 0xDD || op == 0xFD {
		if op == 0xDD {
			c.indexMode = indexIX
		} else {
			c.indexMode = indexIY
		}
		c.dispValid = false
		op = c.fetch8M1(bus)
	}

	switch op {
	case 0xCB:
		if c.indexMode == indexHL {
			sub := c.fetch8M1(bus)
			c.execCB(bus, sub)
		} else {
			// DD CB d op / FD CB d op: displacement precedes the opcode
			// byte; neither is an M1 cycle (only the DD/FD and CB bytes
			// fetched above were).
			c.disp = int8(c.fetch8(bus, false))
			c.dispValid = true
			sub := c.fetch8(bus, false)
			c.execIndexedCB(bus, sub)
		}
	case 0xED:
		sub := c.fetch8M1(bus)
		c.execED(bus, sub)
	default:
		c.execMain(bus, op)
	}
}

func (c *CPU) fetch8M1(bus Bus) uint8 {
	addr := c.Reg.PC
	c.Reg.PC++
	c.Reg.IncR(1)
	return bus.ReadMem(addr, 4)
}

// execMain dispatches the unprefixed opcode table, decoded via the
// canonical x,y,z,p,q octal split (§4.1).
func (c *CPU) execMain(bus Bus, op uint8) {
	x := op >> 6
	y := (op >> 3) & 7
	z := op & 7
	p := y >> 1
	q := y & 1

	switch x {
	case 0:
		c.execMainX0(bus, y, z, p, q)
	case 1:
		c.execMainX1(bus, y, z)
	case 2:
		c.execALU(bus, y, c.reg8(bus, z, 3))
	default:
		c.execMainX3(bus, y, z, p, q)
	}
}

func (c *CPU) execMainX0(bus Bus, y, z, p, q uint8) {
	switch z {
	case 0:
		switch y {
		case 0:
			// NOP
		case 1:
			c.Reg.ExchangeAF()
		case 2:
			// DJNZ's opcode fetch is one T-state longer than a plain M1.
			bus.ReadMem(c.Reg.PC, 1)
			d := int8(c.fetch8(bus, false))
			b := c.Reg.BC.Hi - 1
			c.Reg.BC.Hi = b
			if b != 0 {
				bus.ReadMem(c.Reg.PC-1, 5)
				c.Reg.PC = uint16(int32(c.Reg.PC) + int32(d))
				c.Reg.MEMPTR = c.Reg.PC
			}
		case 3:
			d := int8(c.fetch8(bus, false))
			c.Reg.PC = uint16(int32(c.Reg.PC) + int32(d))
			c.Reg.MEMPTR = c.Reg.PC
		default: // JR cc,d (y=4..7, cc = y-4)
			d := int8(c.fetch8(bus, false))
			if condTrue(&c.Reg, y-4) {
				bus.ReadMem(c.Reg.PC-1, 5)
				c.Reg.PC = uint16(int32(c.Reg.PC) + int32(d))
				c.Reg.MEMPTR = c.Reg.PC
			}
		}
	case 1:
		if q == 0 {
			v := c.fetch16(bus)
			c.setReg16sp(p, v)
		} else {
			hl := c.indexReg()
			bus.ReadMem(c.Reg.PC, 7) // internal cycles for the 16-bit add
			r, f := add16(hl, c.reg16sp(p), c.Reg.F())
			c.setIndexReg(r)
			c.Reg.SetF(f)
			c.Reg.MEMPTR = hl + 1
		}
	case 2:
		c.execIndirectLoad(bus, y)
	case 3:
		if q == 0 {
			c.setReg16sp(p, c.reg16sp(p)+1)
		} else {
			c.setReg16sp(p, c.reg16sp(p)-1)
		}
		bus.ReadMem(c.Reg.PC, 2)
	case 4:
		v := c.reg8(bus, y, 4)
		r, f := inc8(v, c.Reg.F())
		c.setReg8(bus, y, r, 3)
		c.Reg.SetF(f)
	case 5:
		v := c.reg8(bus, y, 4)
		r, f := dec8(v, c.Reg.F())
		c.setReg8(bus, y, r, 3)
		c.Reg.SetF(f)
	case 6:
		if y == 6 {
			// The displacement byte (when indexed) precedes the immediate
			// operand in the instruction stream, so the effective address
			// must be resolved before the operand is fetched.
			addr := c.effAddr(bus)
			n := c.fetch8(bus, false)
			bus.WriteMem(addr, n, 3)
		} else {
			n := c.fetch8(bus, false)
			c.setReg8(bus, y, n, 3)
		}
	default: // z==7: RLCA/RRCA/RLA/RRA/DAA/CPL/SCF/CCF
		c.execAccumOp(y)
	}
}

func (c *CPU) execMainX1(bus Bus, y, z uint8) {
	if y == 6 && z == 6 {
		// HALT
		c.Reg.Halted = true
		return
	}
	v := c.reg8(bus, z, 3)
	c.setReg8(bus, y, v, 3)
}

func (c *CPU) execMainX3(bus Bus, y, z, p, q uint8) {
	switch z {
	case 0:
		if condTrue(&c.Reg, y) {
			c.Reg.PC = c.pop16(bus, 3)
			c.Reg.MEMPTR = c.Reg.PC
		}
	case 1:
		if q == 0 {
			c.setReg16af(p, c.pop16(bus, 3))
		} else {
			switch p {
			case 0:
				c.Reg.PC = c.pop16(bus, 3)
				c.Reg.MEMPTR = c.Reg.PC
			case 1:
				c.Reg.Exx()
			case 2:
				c.Reg.PC = c.indexReg()
			default:
				c.Reg.SP = c.indexReg()
			}
		}
	case 2:
		nn := c.fetch16(bus)
		if condTrue(&c.Reg, y) {
			c.Reg.PC = nn
		}
		c.Reg.MEMPTR = nn
	case 3:
		switch y {
		case 0:
			nn := c.fetch16(bus)
			c.Reg.PC = nn
			c.Reg.MEMPTR = nn
		case 1:
			// handled by execCB via prefix dispatch
		case 2:
			n := c.fetch8(bus, false)
			port := uint16(c.Reg.AF.Hi)<<8 | uint16(n)
			bus.WritePort(port, c.Reg.AF.Hi, 4)
			c.Reg.MEMPTR = (uint16(c.Reg.AF.Hi) << 8) | uint16(n+1)
		case 3:
			n := c.fetch8(bus, false)
			port := uint16(c.Reg.AF.Hi)<<8 | uint16(n)
			c.Reg.AF.Hi = bus.ReadPort(port, 4)
			c.Reg.MEMPTR = port + 1
		case 4:
			hl := c.indexReg()
			v := bus.ReadMem(c.Reg.SP, 3)
			v2 := bus.ReadMem(c.Reg.SP+1, 4)
			old := v
			old2 := v2
			bus.WriteMem(c.Reg.SP+1, uint8(hl>>8), 5)
			bus.WriteMem(c.Reg.SP, uint8(hl), 3)
			c.setIndexReg(uint16(old2)<<8 | uint16(old))
			c.Reg.MEMPTR = c.indexReg()
		case 5:
			c.Reg.DE, c.Reg.HL = c.Reg.HL, c.Reg.DE
		case 6:
			c.Reg.IFF1 = false
			c.Reg.IFF2 = false
		default:
			c.Reg.IFF1 = true
			c.Reg.IFF2 = true
			c.afterEI = true
		}
	case 4:
		nn := c.fetch16(bus)
		if condTrue(&c.Reg, y) {
			bus.ReadMem(c.Reg.SP, 1)
			c.push16(bus, c.Reg.PC, 3)
			c.Reg.PC = nn
		}
		c.Reg.MEMPTR = nn
	case 5:
		if q == 0 {
			bus.ReadMem(c.Reg.SP, 1)
			c.push16(bus, c.reg16af(p), 3)
		} else {
			switch p {
			case 0:
				nn := c.fetch16(bus)
				bus.ReadMem(c.Reg.SP, 1)
				c.push16(bus, c.Reg.PC, 3)
				c.Reg.PC = nn
				c.Reg.MEMPTR = nn
			default:
				// handled by DD/FD/ED dispatch before reaching here
			}
		}
	case 6:
		n := c.fetch8(bus, false)
		c.execALU(bus, y, n)
	default:
		bus.ReadMem(c.Reg.SP, 1)
		c.push16(bus, c.Reg.PC, 3)
		c.Reg.PC = uint16(y) * 8
		c.Reg.MEMPTR = c.Reg.PC
	}
}

// execIndirectLoad handles the eight z==2 opcodes: LD (BC/DE),A / LD
// A,(BC/DE) and LD (nn),HL / LD HL,(nn) / LD (nn),A / LD A,(nn), whose
// p/q-coded table the octal split doesn't fully cover generically.
func (c *CPU) execIndirectLoad(bus Bus, y uint8) {
	switch y {
	case 0:
		bus.WriteMem(c.Reg.BC.U16(), c.Reg.AF.Hi, 3)
		c.Reg.MEMPTR = (uint16(c.Reg.AF.Hi) << 8) | ((c.Reg.BC.U16() + 1) & 0xFF)
	case 1:
		addr := c.Reg.BC.U16()
		c.Reg.AF.Hi = bus.ReadMem(addr, 3)
		c.Reg.MEMPTR = addr + 1
	case 2:
		bus.WriteMem(c.Reg.DE.U16(), c.Reg.AF.Hi, 3)
		c.Reg.MEMPTR = (uint16(c.Reg.AF.Hi) << 8) | ((c.Reg.DE.U16() + 1) & 0xFF)
	case 3:
		addr := c.Reg.DE.U16()
		c.Reg.AF.Hi = bus.ReadMem(addr, 3)
		c.Reg.MEMPTR = addr + 1
	case 4:
		nn := c.fetch16(bus)
		hl := c.indexReg()
		bus.WriteMem(nn, uint8(hl), 3)
		bus.WriteMem(nn+1, uint8(hl>>8), 3)
		c.Reg.MEMPTR = nn + 1
	case 5:
		nn := c.fetch16(bus)
		lo := bus.ReadMem(nn, 3)
		hi := bus.ReadMem(nn+1, 3)
		c.setIndexReg(uint16(hi)<<8 | uint16(lo))
		c.Reg.MEMPTR = nn + 1
	case 6:
		nn := c.fetch16(bus)
		bus.WriteMem(nn, c.Reg.AF.Hi, 3)
		c.Reg.MEMPTR = (uint16(c.Reg.AF.Hi) << 8) | ((nn + 1) & 0xFF)
	default:
		nn := c.fetch16(bus)
		c.Reg.AF.Hi = bus.ReadMem(nn, 3)
		c.Reg.MEMPTR = nn + 1
	}
}

func (c *CPU) execAccumOp(y uint8) {
	switch y {
	case 0:
		r, carry := rlc8(c.Reg.AF.Hi)
		c.Reg.AF.Hi = r
		c.Reg.SetF((c.Reg.F() &^ (FlagS | FlagZ | FlagPV)) | (carry & FlagC) | (r & (FlagF5 | FlagF3)))
	case 1:
		r, carry := rrc8(c.Reg.AF.Hi)
		c.Reg.AF.Hi = r
		c.Reg.SetF((c.Reg.F() &^ (FlagS | FlagZ | FlagPV)) | (carry & FlagC) | (r & (FlagF5 | FlagF3)))
	case 2:
		r, carry := rl8(c.Reg.AF.Hi, c.Reg.F())
		c.Reg.AF.Hi = r
		c.Reg.SetF((c.Reg.F() &^ (FlagS | FlagZ | FlagPV)) | (carry & FlagC) | (r & (FlagF5 | FlagF3)))
	case 3:
		r, carry := rr8(c.Reg.AF.Hi, c.Reg.F())
		c.Reg.AF.Hi = r
		c.Reg.SetF((c.Reg.F() &^ (FlagS | FlagZ | FlagPV)) | (carry & FlagC) | (r & (FlagF5 | FlagF3)))
	case 4:
		c.execDAA()
	case 5:
		a := c.Reg.AF.Hi
		c.Reg.AF.Hi = ^a
		c.Reg.SetF((c.Reg.F() & (FlagS | FlagZ | FlagPV | FlagC)) | FlagH | FlagN | (c.Reg.AF.Hi & (FlagF5 | FlagF3)))
	case 6:
		f := (c.Reg.F() &^ (FlagN | FlagH | FlagF5 | FlagF3)) | FlagC
		f |= ((c.Reg.Q ^ c.Reg.F()) | c.Reg.AF.Hi) & (FlagF5 | FlagF3)
		c.Reg.SetF(f)
	default:
		newC := uint8(0)
		if !c.Reg.FlagSet(FlagC) {
			newC = FlagC
		}
		h := uint8(0)
		if c.Reg.FlagSet(FlagC) {
			h = FlagH
		}
		f := (c.Reg.F() &^ (FlagN | FlagH | FlagC | FlagF5 | FlagF3)) | newC | h
		f |= ((c.Reg.Q ^ c.Reg.F()) | c.Reg.AF.Hi) & (FlagF5 | FlagF3)
		c.Reg.SetF(f)
	}
}

func (c *CPU) execDAA() {
	a := c.Reg.AF.Hi
	f := c.Reg.F()
	correction := uint8(0)
	carry := f&FlagC != 0
	half := f&FlagH != 0
	sub := f&FlagN != 0

	if half || a&0x0F > 9 {
		correction |= 0x06
	}
	if carry || a > 0x99 {
		correction |= 0x60
		carry = true
	}

	var result uint8
	var newHalf bool
	if sub {
		result = a - correction
		newHalf = half && (a&0x0F) < 6
	} else {
		result = a + correction
		newHalf = (a & 0x0F) > 9
	}

	nf := szf53(result) | (f & FlagN)
	if newHalf {
		nf |= FlagH
	}
	if parityTable[result] {
		nf |= FlagPV
	}
	if carry {
		nf |= FlagC
	}
	c.Reg.AF.Hi = result
	c.Reg.SetF(nf)
}

// execALU applies the y-coded ALU operation (ADD/ADC/SUB/SBC/AND/XOR/OR/CP)
// to A and the given operand.
func (c *CPU) execALU(bus Bus, y uint8, operand uint8) {
	a := c.Reg.AF.Hi
	switch y {
	case 0:
		r, f := add8(a, operand, 0)
		c.Reg.AF.Hi = r
		c.Reg.SetF(f)
	case 1:
		r, f := add8(a, operand, c.Reg.F()&FlagC)
		c.Reg.AF.Hi = r
		c.Reg.SetF(f)
	case 2:
		r, f := sub8(a, operand, 0)
		c.Reg.AF.Hi = r
		c.Reg.SetF(f)
	case 3:
		r, f := sub8(a, operand, c.Reg.F()&FlagC)
		c.Reg.AF.Hi = r
		c.Reg.SetF(f)
	case 4:
		r, f := and8(a, operand)
		c.Reg.AF.Hi = r
		c.Reg.SetF(f)
	case 5:
		r, f := xor8(a, operand)
		c.Reg.AF.Hi = r
		c.Reg.SetF(f)
	case 6:
		r, f := or8(a, operand)
		c.Reg.AF.Hi = r
		c.Reg.SetF(f)
	default:
		c.Reg.SetF(cp8(a, operand))
	}
}
