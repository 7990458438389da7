package emu

// Flag bit positions within F, per the documented Zilog Z80 layout.
const (
	FlagC  uint8 = 1 << 0 // carry
	FlagN  uint8 = 1 << 1 // add/subtract
	FlagPV uint8 = 1 << 2 // parity/overflow
	FlagF3 uint8 = 1 << 3 // undocumented, bit 3 of result
	FlagH  uint8 = 1 << 4 // half carry
	FlagF5 uint8 = 1 << 5 // undocumented, bit 5 of result
	FlagZ  uint8 = 1 << 6 // zero
	FlagS  uint8 = 1 << 7 // sign
)

// RegPair is a 16-bit register pair addressable as two 8-bit halves, the
// shape the teacher's save-state code assumes (AF.U16()/SetU16()) so flags
// can be read as a plain byte without masking a combined register.
type RegPair struct {
	Hi, Lo uint8
}

func (p RegPair) U16() uint16 { return uint16(p.Hi)<<8 | uint16(p.Lo) }

func (p *RegPair) SetU16(v uint16) {
	p.Hi = uint8(v >> 8)
	p.Lo = uint8(v)
}

// Registers is the Z80 register file: main and alternate sets, index
// registers, the interrupt and refresh registers, the two interrupt
// flip-flops, the interrupt mode, and the two undocumented-behavior
// registers Q and MEMPTR (WZ).
type Registers struct {
	AF, BC, DE, HL RegPair
	AFalt, BCalt, DEalt, HLalt RegPair

	IX, IY uint16
	SP, PC uint16

	I, R uint8 // R's bit 7 is sticky; only bits 0-6 increment on M1

	IFF1, IFF2 bool
	IM         uint8 // 0, 1, or 2

	Halted bool

	// Q holds the value of F immediately after the last instruction that
	// affects flags, and 0 after one that doesn't. SCF/CCF derive F5/F3
	// from (Q XOR F) OR A, the documented NMOS quirk.
	Q uint8

	// MEMPTR (WZ): internal 16-bit register whose high byte leaks into
	// BIT n,(HL)'s F5/F3 and which every memory-operand instruction
	// updates per the published rules.
	MEMPTR uint16
}

func (r *Registers) A() uint8   { return r.AF.Hi }
func (r *Registers) SetA(v uint8) { r.AF.Hi = v }
func (r *Registers) F() uint8   { return r.AF.Lo }
func (r *Registers) SetF(v uint8) { r.AF.Lo = v; r.Q = v }

// ClearQ resets Q to 0 as every non-flag-affecting instruction does.
func (r *Registers) ClearQ() { r.Q = 0 }

func (r *Registers) FlagSet(mask uint8) bool { return r.AF.Lo&mask != 0 }

// IncR advances the refresh register by n (1 per M1 fetch, plus 1 per
// prefix byte), preserving bit 7.
func (r *Registers) IncR(n uint8) {
	r.R = (r.R & 0x80) | ((r.R + n) & 0x7F)
}

// ExchangeAF swaps AF with AF' (the EX AF,AF' instruction).
func (r *Registers) ExchangeAF() {
	r.AF, r.AFalt = r.AFalt, r.AF
}

// Exx swaps BC/DE/HL with their alternates.
func (r *Registers) Exx() {
	r.BC, r.BCalt = r.BCalt, r.BC
	r.DE, r.DEalt = r.DEalt, r.DE
	r.HL, r.HLalt = r.HLalt, r.HL
}

// Reset implements the power-on/reset state from §4.1: PC=0, I=R=0,
// IFF1=IFF2=0, IM=0. SP/AF are left untouched on reset (the caller sets
// SP=AF=0xFFFF once, at construction, for power-on).
func (r *Registers) Reset() {
	r.PC = 0
	r.I = 0
	r.R = 0
	r.IFF1 = false
	r.IFF2 = false
	r.IM = 0
	r.Halted = false
	r.Q = 0
}
