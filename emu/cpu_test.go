package emu

import "testing"

// loadProgram writes bytes starting at address 0 on a fresh NopBus/CPU pair.
func loadProgram(t *testing.T, code ...uint8) (*CPU, *NopBus) {
	t.Helper()
	c := NewCPU()
	c.Reg.PC = 0
	bus := &NopBus{}
	copy(bus.Mem[:], code)
	return c, bus
}

func TestCPU_NOPTiming(t *testing.T) {
	c, bus := loadProgram(t, 0x00)
	t0 := bus.Now()
	c.Step(bus)
	if got := bus.Now() - t0; got != 4 {
		t.Errorf("NOP: expected 4 T-states, got %d", got)
	}
	if c.Reg.PC != 1 {
		t.Errorf("NOP: expected PC=1, got %d", c.Reg.PC)
	}
}

func TestCPU_BaseOpcodeTiming(t *testing.T) {
	cases := []struct {
		name   string
		code   []uint8
		cycles int
	}{
		{"LD BC,nn", []uint8{0x01, 0x34, 0x12}, 10},
		{"LD (BC),A", []uint8{0x02}, 7},
		{"INC BC", []uint8{0x03}, 6},
		{"INC B", []uint8{0x04}, 4},
		{"DEC B", []uint8{0x05}, 4},
		{"LD B,n", []uint8{0x06, 0x42}, 7},
		{"RLCA", []uint8{0x07}, 4},
		{"EX AF,AF'", []uint8{0x08}, 4},
		{"ADD HL,BC", []uint8{0x09}, 11},
		{"LD A,(BC)", []uint8{0x0A}, 7},
		{"LD (HL),n", []uint8{0x36, 0x55}, 10},
		{"HALT", []uint8{0x76}, 4},
		{"RET", []uint8{0xC9}, 10},
		{"JP nn", []uint8{0xC3, 0x00, 0x10}, 10},
		{"CALL nn", []uint8{0xCD, 0x00, 0x10}, 17},
		{"RST 00h", []uint8{0xC7}, 11},
		{"PUSH BC", []uint8{0xC5}, 11},
		{"POP BC", []uint8{0xC1}, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, bus := loadProgram(t, tc.code...)
			c.Reg.SP = 0xDFF0
			t0 := bus.Now()
			c.Step(bus)
			if got := bus.Now() - t0; got != tc.cycles {
				t.Errorf("%s: expected %d T-states, got %d", tc.name, tc.cycles, got)
			}
		})
	}
}

func TestCPU_CBPrefixTiming(t *testing.T) {
	cases := []struct {
		name   string
		op     uint8
		cycles int
	}{
		{"RLC B", 0x00, 8},
		{"RLC (HL)", 0x06, 15},
		{"BIT 0,B", 0x40, 8},
		{"BIT 0,(HL)", 0x46, 12},
		{"SET 0,B", 0xC0, 8},
		{"SET 0,(HL)", 0xC6, 15},
		{"RES 0,B", 0x80, 8},
		{"RES 0,(HL)", 0x86, 15},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, bus := loadProgram(t, 0xCB, tc.op)
			c.Reg.HL.SetU16(0xC000)
			t0 := bus.Now()
			c.Step(bus)
			if got := bus.Now() - t0; got != tc.cycles {
				t.Errorf("CB 0x%02X: expected %d T-states, got %d", tc.op, tc.cycles, got)
			}
		})
	}
}

func TestCPU_IndexedPrefixTiming(t *testing.T) {
	cases := []struct {
		name   string
		prefix uint8
		code   []uint8
		cycles int
	}{
		{"ADD IX,BC", 0xDD, []uint8{0x09}, 15},
		{"LD IX,nn", 0xDD, []uint8{0x21, 0x00, 0x00}, 14},
		{"INC IX", 0xDD, []uint8{0x23}, 10},
		{"INC (IX+d)", 0xDD, []uint8{0x34, 0x00}, 23},
		{"LD (IX+d),n", 0xDD, []uint8{0x36, 0x00, 0x00}, 22},
		{"POP IX", 0xDD, []uint8{0xE1}, 14},
		{"PUSH IX", 0xDD, []uint8{0xE5}, 15},
		{"JP (IX)", 0xDD, []uint8{0xE9}, 8},
		{"ADD IY,BC", 0xFD, []uint8{0x09}, 15},
		{"INC IY", 0xFD, []uint8{0x23}, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			full := append([]uint8{tc.prefix}, tc.code...)
			c, bus := loadProgram(t, full...)
			c.Reg.SP = 0xDFF0
			t0 := bus.Now()
			c.Step(bus)
			if got := bus.Now() - t0; got != tc.cycles {
				t.Errorf("%s: expected %d T-states, got %d", tc.name, tc.cycles, got)
			}
		})
	}
}

func TestCPU_DDCBCopyQuirk(t *testing.T) {
	// DD CB d <RLC op targeting B (z=0)>: the result must land in both
	// (IX+d) and the plain B register, never IXH/IXL.
	c, bus := loadProgram(t, 0xDD, 0xCB, 0x02, 0x00)
	c.Reg.IX = 0xC000
	bus.Mem[0xC002] = 0x80 // will RLC to 0x01 with carry

	c.Step(bus)

	if bus.Mem[0xC002] != 0x01 {
		t.Errorf("expected memory at (IX+2) updated to 0x01, got 0x%02X", bus.Mem[0xC002])
	}
	if c.Reg.BC.Hi != 0x01 {
		t.Errorf("expected B copy updated to 0x01, got 0x%02X", c.Reg.BC.Hi)
	}
}

func TestCPU_EDBlockTiming(t *testing.T) {
	cases := []struct {
		name   string
		op     uint8
		cycles int
	}{
		{"LDI", 0xA0, 16},
		{"CPI", 0xA1, 16},
		{"INI", 0xA2, 16},
		{"OUTI", 0xA3, 16},
		{"LDD", 0xA8, 16},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, bus := loadProgram(t, 0xED, tc.op)
			c.Reg.HL.SetU16(0xC000)
			c.Reg.DE.SetU16(0xC100)
			c.Reg.BC.SetU16(0x0001)
			t0 := bus.Now()
			c.Step(bus)
			if got := bus.Now() - t0; got != tc.cycles {
				t.Errorf("ED 0x%02X: expected %d T-states, got %d", tc.op, tc.cycles, got)
			}
		})
	}
}

func TestCPU_LDIRRepeatsUntilBCZero(t *testing.T) {
	c, bus := loadProgram(t, 0xED, 0xB0) // LDIR
	c.Reg.HL.SetU16(0xC000)
	c.Reg.DE.SetU16(0xC100)
	c.Reg.BC.SetU16(3)
	bus.Mem[0xC000] = 0x11
	bus.Mem[0xC001] = 0x22
	bus.Mem[0xC002] = 0x33

	for c.Reg.BC.U16() != 0 {
		c.Step(bus)
	}

	if bus.Mem[0xC100] != 0x11 || bus.Mem[0xC101] != 0x22 || bus.Mem[0xC102] != 0x33 {
		t.Errorf("LDIR: expected block copied, got %v", bus.Mem[0xC100:0xC103])
	}
	if c.Reg.PC != 2 {
		t.Errorf("LDIR: expected PC to land after the instruction once BC=0, got %d", c.Reg.PC)
	}
}

func TestCPU_JRConditional(t *testing.T) {
	cases := []struct {
		name        string
		op          uint8
		setZ        bool
		takenCycles int
	}{
		{"JR NZ,d (Z clear, taken)", 0x20, false, 12},
		{"JR NZ,d (Z set, not taken)", 0x20, true, 7},
		{"JR Z,d (Z set, taken)", 0x28, true, 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, bus := loadProgram(t, tc.op, 0x10)
			if tc.setZ {
				c.Reg.AF.Lo |= FlagZ
			} else {
				c.Reg.AF.Lo &^= FlagZ
			}
			t0 := bus.Now()
			c.Step(bus)
			if got := bus.Now() - t0; got != tc.takenCycles {
				t.Errorf("%s: expected %d T-states, got %d", tc.name, tc.takenCycles, got)
			}
		})
	}
}

func TestCPU_DJNZ(t *testing.T) {
	c, bus := loadProgram(t, 0x10, 0x10) // DJNZ +16
	c.Reg.BC.Hi = 2
	t0 := bus.Now()
	c.Step(bus)
	if got := bus.Now() - t0; got != 13 {
		t.Errorf("DJNZ taken: expected 13 T-states, got %d", got)
	}
	if c.Reg.PC != 0x12 {
		t.Errorf("DJNZ taken: expected PC=0x12, got 0x%04X", c.Reg.PC)
	}
}

func TestCPU_RRegisterWraps7Bits(t *testing.T) {
	c, bus := loadProgram(t, 0x00, 0x00)
	c.Reg.R = 0x7F
	c.Step(bus)
	if c.Reg.R != 0x00 {
		t.Errorf("R after wrap: expected 0x00 (bit 7 stays clear, low 7 bits wrap to 0), got 0x%02X", c.Reg.R)
	}
	c.Reg.R = 0xFF
	c.Step(bus)
	if c.Reg.R != 0x80 {
		t.Errorf("R with bit 7 set: expected 0x80, got 0x%02X", c.Reg.R)
	}
}

func TestCPU_EIDelaysInterruptByOneInstruction(t *testing.T) {
	c, bus := loadProgram(t, 0xFB, 0x00, 0x00) // EI, NOP, NOP
	bus.Mem[0x38] = 0xC9                       // RET, so the handler returns immediately
	c.Reg.IM = 1
	c.Reg.SP = 0xDFF0

	c.Step(bus) // EI
	c.RequestInterrupt()

	t0 := bus.Now()
	c.Step(bus) // should execute the NOP, not service the interrupt yet
	if got := bus.Now() - t0; got != 4 {
		t.Errorf("instruction immediately after EI: expected a plain 4T NOP, got %d T-states", got)
	}
	if c.Reg.PC != 2 {
		t.Errorf("expected PC=2 (past the NOP), got %d", c.Reg.PC)
	}

	t0 = bus.Now()
	c.Step(bus) // now the interrupt should be serviced
	if got := bus.Now() - t0; got != 13 {
		t.Errorf("interrupt one instruction after EI: expected IM1 13T response, got %d", got)
	}
}

func TestCPU_IM1InterruptResponse(t *testing.T) {
	c, bus := loadProgram(t, 0x00)
	bus.Mem[0x38] = 0xC9
	c.Reg.IM = 1
	c.Reg.IFF1 = true
	c.Reg.SP = 0xDFF0
	c.RequestInterrupt()

	t0 := bus.Now()
	c.Step(bus)
	if got := bus.Now() - t0; got != 13 {
		t.Errorf("IM1 interrupt: expected 13 T-states, got %d", got)
	}
	if c.Reg.PC != 0x0038 {
		t.Errorf("IM1 interrupt: expected PC=0x0038, got 0x%04X", c.Reg.PC)
	}
	if c.Reg.IFF1 {
		t.Error("IFF1 should be cleared after servicing the interrupt")
	}
}

func TestCPU_NMIResponse(t *testing.T) {
	c, bus := loadProgram(t, 0x00)
	bus.Mem[0x66] = 0xC9
	c.Reg.SP = 0xDFF0
	c.Reg.IFF1 = true
	c.RequestNMI()

	t0 := bus.Now()
	c.Step(bus)
	if got := bus.Now() - t0; got != 11 {
		t.Errorf("NMI: expected 11 T-states, got %d", got)
	}
	if c.Reg.PC != 0x0066 {
		t.Errorf("NMI: expected PC=0x0066, got 0x%04X", c.Reg.PC)
	}
	if !c.Reg.IFF2 {
		t.Error("NMI should preserve IFF1 into IFF2")
	}
	if c.Reg.IFF1 {
		t.Error("NMI should clear IFF1")
	}
}

func TestCPU_HALTRunsInternalNOPs(t *testing.T) {
	c, bus := loadProgram(t, 0x76) // HALT
	c.Step(bus)
	if !c.Reg.Halted {
		t.Fatal("expected CPU to be halted")
	}
	pc := c.Reg.PC
	t0 := bus.Now()
	c.Step(bus)
	if got := bus.Now() - t0; got != 4 {
		t.Errorf("halted step: expected 4 T-states, got %d", got)
	}
	if c.Reg.PC != pc {
		t.Errorf("halted step: PC should not advance, was %d now %d", pc, c.Reg.PC)
	}
}

func TestCPU_DAAAfterBCDAdd(t *testing.T) {
	// 0x15 + 0x27 = 0x3C raw; DAA should correct to 0x42 (15+27=42 BCD).
	c, bus := loadProgram(t, 0xC6, 0x27, 0x27) // ADD A,0x27 ; DAA
	c.Reg.AF.Hi = 0x15
	c.Step(bus) // ADD
	c.Step(bus) // DAA
	if c.Reg.AF.Hi != 0x42 {
		t.Errorf("DAA: expected 0x42, got 0x%02X", c.Reg.AF.Hi)
	}
}

func TestCPU_X3Z1Q1Family(t *testing.T) {
	// Opcodes 0xC9/0xD9/0xE9/0xF9 share the z=1,q=1 slot but decode to
	// four entirely different operations keyed on p; a transcription
	// error here silently swaps their semantics rather than just their
	// timing, so each is checked for behavior, not just cycle count.
	t.Run("RET", func(t *testing.T) {
		c, bus := loadProgram(t, 0xC9)
		c.Reg.SP = 0xDFF0
		bus.Mem[0xDFF0] = 0x34
		bus.Mem[0xDFF1] = 0x12
		c.Step(bus)
		if c.Reg.PC != 0x1234 {
			t.Errorf("RET: expected PC=0x1234, got 0x%04X", c.Reg.PC)
		}
		if c.Reg.SP != 0xDFF2 {
			t.Errorf("RET: expected SP=0xDFF2, got 0x%04X", c.Reg.SP)
		}
	})

	t.Run("EXX", func(t *testing.T) {
		c, bus := loadProgram(t, 0xD9)
		c.Reg.BC.SetU16(0x1111)
		c.Reg.BCalt.SetU16(0x2222)
		c.Step(bus)
		if c.Reg.BC.U16() != 0x2222 {
			t.Errorf("EXX: expected BC swapped to 0x2222, got 0x%04X", c.Reg.BC.U16())
		}
		if c.Reg.IFF1 {
			t.Error("EXX must not touch interrupt state")
		}
	})

	t.Run("JP (HL)", func(t *testing.T) {
		c, bus := loadProgram(t, 0xE9)
		c.Reg.HL.SetU16(0x8000)
		c.Step(bus)
		if c.Reg.PC != 0x8000 {
			t.Errorf("JP (HL): expected PC=0x8000, got 0x%04X", c.Reg.PC)
		}
	})

	t.Run("JP (IX)", func(t *testing.T) {
		c, bus := loadProgram(t, 0xDD, 0xE9)
		c.Reg.IX = 0x9000
		c.Step(bus)
		if c.Reg.PC != 0x9000 {
			t.Errorf("JP (IX): expected PC=0x9000, got 0x%04X", c.Reg.PC)
		}
	})

	t.Run("LD SP,HL", func(t *testing.T) {
		c, bus := loadProgram(t, 0xF9)
		c.Reg.HL.SetU16(0x5678)
		c.Step(bus)
		if c.Reg.SP != 0x5678 {
			t.Errorf("LD SP,HL: expected SP=0x5678, got 0x%04X", c.Reg.SP)
		}
	})

	t.Run("LD SP,IX", func(t *testing.T) {
		c, bus := loadProgram(t, 0xDD, 0xF9)
		c.Reg.IX = 0xABCD
		c.Step(bus)
		if c.Reg.SP != 0xABCD {
			t.Errorf("LD SP,IX: expected SP=0xABCD, got 0x%04X", c.Reg.SP)
		}
	})
}

func TestCPU_16BitAddTiming(t *testing.T) {
	cases := []struct {
		name   string
		code   []uint8
		cycles int
	}{
		{"ADD HL,BC", []uint8{0x09}, 11},
		{"ADC HL,BC", []uint8{0xED, 0x4A}, 15},
		{"SBC HL,BC", []uint8{0xED, 0x42}, 15},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, bus := loadProgram(t, tc.code...)
			t0 := bus.Now()
			c.Step(bus)
			if got := bus.Now() - t0; got != tc.cycles {
				t.Errorf("%s: expected %d T-states, got %d", tc.name, tc.cycles, got)
			}
		})
	}
}

func TestCPU_EXSPHLTiming(t *testing.T) {
	cases := []struct {
		name    string
		code    []uint8
		indexed bool
		cycles  int
	}{
		{"EX (SP),HL", []uint8{0xE3}, false, 19},
		{"EX (SP),IX", []uint8{0xDD, 0xE3}, true, 23},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, bus := loadProgram(t, tc.code...)
			c.Reg.SP = 0xDFF0
			c.Reg.HL.SetU16(0x1111)
			c.Reg.IX = 0x2222
			t0 := bus.Now()
			c.Step(bus)
			if got := bus.Now() - t0; got != tc.cycles {
				t.Errorf("%s: expected %d T-states, got %d", tc.name, tc.cycles, got)
			}
		})
	}
}

func TestCPU_SCFFlagQuirk(t *testing.T) {
	// SCF sets carry unconditionally and derives F5/F3 from (Q^F)|A.
	c, bus := loadProgram(t, 0x37) // SCF
	c.Reg.AF.Hi = 0xFF
	c.Reg.AF.Lo = 0
	c.Reg.Q = 0
	c.Step(bus)
	if !c.Reg.FlagSet(FlagC) {
		t.Error("SCF should set carry")
	}
	if c.Reg.FlagSet(FlagN) || c.Reg.FlagSet(FlagH) {
		t.Error("SCF should clear N and H")
	}
}
