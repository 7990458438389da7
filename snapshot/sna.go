package snapshot

import "github.com/user-none/gozx/emu"

// DecodeSNA decodes the .SNA format: a fixed 27-byte register header
// followed by a flat 48KB RAM dump (bank 5, then 2, then 0) and,
// for 128K captures, an extended trailer with PC, the paging-port value,
// and the remaining five RAM banks.
func DecodeSNA(data []byte) (*DecodedState, error) {
	if len(data) < 27+0xC000 {
		return nil, emu.ErrUnexpectedEOF
	}

	s := &DecodedState{Pages: map[int][0x4000]uint8{}}

	s.I = data[0]
	s.HLalt = le16(data[1:])
	s.DEalt = le16(data[3:])
	s.BCalt = le16(data[5:])
	s.AFalt = le16(data[7:])
	s.HL = le16(data[9:])
	s.DE = le16(data[11:])
	s.BC = le16(data[13:])
	s.IY = le16(data[15:])
	s.IX = le16(data[17:])
	s.IFF2 = data[19]&0x04 != 0
	s.IFF1 = s.IFF2
	s.R = data[20]
	s.AF = le16(data[21:])
	s.SP = le16(data[23:])
	s.IM = data[25]
	s.Border = data[26] & 0x07

	off := 27
	var bank5, bank2, bank0 [0x4000]uint8
	copy(bank5[:], data[off:off+0x4000])
	off += 0x4000
	copy(bank2[:], data[off:off+0x4000])
	off += 0x4000
	copy(bank0[:], data[off:off+0x4000])
	off += 0x4000
	s.Pages[5] = bank5
	s.Pages[2] = bank2
	s.Pages[0] = bank0

	if len(data) == 27+0xC000 {
		// 48K format: PC is popped off the stack by the loader's RETN
		// trick, not stored in the header.
		s.Machine = "48K"
		lo, hi := readAtSP(s.SP, bank5, bank2, bank0)
		s.PC = uint16(hi)<<8 | uint16(lo)
		s.SP += 2
		return s, nil
	}

	if len(data) < off+4 {
		return nil, emu.ErrUnexpectedEOF
	}
	s.Machine = "128K"
	s.PC = le16(data[off:])
	s.PagingPort = data[off+2]
	off += 4

	for off+0x4000 <= len(data) {
		var page [0x4000]uint8
		copy(page[:], data[off:off+0x4000])
		off += 0x4000
		bank := pagedBankFor(len(s.Pages))
		s.Pages[bank] = page
	}

	return s, nil
}

// pagedBankFor maps the Nth trailing 128K page block (after the fixed
// 5/2/0 triad) to its real bank number: the format writes banks
// 1,3,4,6,7 in that fixed order, skipping the three already captured.
func pagedBankFor(alreadyLoaded int) int {
	order := []int{1, 3, 4, 6, 7}
	idx := alreadyLoaded - 3
	if idx < 0 || idx >= len(order) {
		return -1
	}
	return order[idx]
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

// readAtSP resolves the word at the stack pointer within whichever of
// the three fixed 48K banks it falls in, for the RETN-trick PC recovery.
func readAtSP(sp uint16, bank5, bank2, bank0 [0x4000]uint8) (uint8, uint8) {
	read := func(addr uint16) uint8 {
		switch addr >> 14 {
		case 1:
			return bank5[addr&0x3FFF]
		case 2:
			return bank2[addr&0x3FFF]
		case 3:
			return bank0[addr&0x3FFF]
		default:
			return 0
		}
	}
	return read(sp), read(sp + 1)
}
