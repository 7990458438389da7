package snapshot

import "github.com/user-none/gozx/emu"

// DecodeZ80 decodes the .Z80 format (versions 1, 2 and 3): a 30-byte
// base header, optionally followed by a version-identifying extended
// header and a sequence of (length-prefixed, RLE-compressed or raw)
// memory page blocks.
func DecodeZ80(data []byte) (*DecodedState, error) {
	if len(data) < 30 {
		return nil, emu.ErrUnexpectedEOF
	}

	s := &DecodedState{Pages: map[int][0x4000]uint8{}}

	s.AF = uint16(data[0])<<8 | uint16(data[1])
	s.BC = le16(data[2:])
	s.HL = le16(data[4:])
	pc := le16(data[6:])
	s.SP = le16(data[8:])
	s.I = data[10]
	s.R = (data[11] & 0x7F) | ((data[12] & 0x01) << 7)
	flags12 := data[12]
	compressed := flags12&0x20 != 0 && pc != 0

	s.DE = le16(data[13:])
	s.BCalt = le16(data[15:])
	s.DEalt = le16(data[17:])
	s.HLalt = le16(data[19:])
	s.AFalt = uint16(data[21])<<8 | uint16(data[22])
	s.IY = le16(data[23:])
	s.IX = le16(data[25:])
	s.IFF1 = data[27] != 0
	s.IFF2 = data[28] != 0
	s.IM = data[29] & 0x03
	s.Border = (flags12 >> 1) & 0x07

	if pc != 0 {
		// Version 1: PC is in the base header; memory follows directly
		// (48K only), optionally whole-block RLE compressed.
		s.Machine = "48K"
		s.PC = pc
		mem := data[30:]
		if compressed {
			mem = unRLE(mem, 0xC000)
		}
		return splitFlat48(s, mem)
	}

	// Version 2/3: an extended header block gives the real PC and
	// identifies the hardware mode; memory follows as discrete
	// length-prefixed, per-page blocks.
	if len(data) < 32 {
		return nil, emu.ErrUnexpectedEOF
	}
	extLen := int(le16(data[30:]))
	ext := data[32 : 32+extLen]
	if len(ext) < 2 {
		return nil, emu.ErrUnexpectedEOF
	}
	s.PC = le16(ext[0:])
	hwMode := ext[2]
	if hwMode >= 3 {
		s.Machine = "128K"
		if len(ext) > 3 {
			s.PagingPort = ext[3]
		}
	} else {
		s.Machine = "48K"
	}

	off := 32 + extLen
	for off+3 <= len(data) {
		blockLen := int(le16(data[off:]))
		pageNum := data[off+2]
		off += 3
		var raw []byte
		if blockLen == 0xFFFF {
			// 0xFFFF signals 16384 bytes of literal, uncompressed data.
			if off+0x4000 > len(data) {
				return nil, emu.ErrUnexpectedEOF
			}
			raw = data[off : off+0x4000]
			off += 0x4000
		} else {
			if off+blockLen > len(data) {
				return nil, emu.ErrUnexpectedEOF
			}
			chunk := data[off : off+blockLen]
			off += blockLen
			raw = unRLE(chunk, 0x4000)
		}
		bank, ok := z80PageToBank(s.Machine, pageNum)
		if !ok {
			continue
		}
		var page [0x4000]uint8
		copy(page[:], raw)
		s.Pages[bank] = page
	}

	return s, nil
}

// z80PageToBank maps the Z80 format's page-number encoding (which
// differs between 48K and 128K captures) to a real RAM bank number.
func z80PageToBank(machine string, page uint8) (int, bool) {
	if machine == "128K" {
		if page < 3 || page > 10 {
			return 0, false
		}
		return int(page - 3), true
	}
	switch page {
	case 4:
		return 2, true
	case 5:
		return 0, true
	case 8:
		return 5, true
	default:
		return 0, false
	}
}

func splitFlat48(s *DecodedState, mem []byte) (*DecodedState, error) {
	if len(mem) < 0xC000 {
		return nil, emu.ErrUnexpectedEOF
	}
	var bank5, bank2, bank0 [0x4000]uint8
	copy(bank5[:], mem[0:0x4000])
	copy(bank2[:], mem[0x4000:0x8000])
	copy(bank0[:], mem[0x8000:0xC000])
	s.Pages[5] = bank5
	s.Pages[2] = bank2
	s.Pages[0] = bank0
	return s, nil
}

// unRLE decodes the Z80 format's byte-oriented RLE scheme: ED ED <count>
// <value> expands to <count> copies of <value>; any other byte is
// literal. Output is truncated or zero-padded to exactly want bytes.
func unRLE(data []byte, want int) []byte {
	out := make([]byte, 0, want)
	for i := 0; i < len(data) && len(out) < want; {
		if i+1 < len(data) && data[i] == 0xED && data[i+1] == 0xED {
			count := int(data[i+2])
			value := data[i+3]
			for j := 0; j < count; j++ {
				out = append(out, value)
			}
			i += 4
			continue
		}
		out = append(out, data[i])
		i++
	}
	for len(out) < want {
		out = append(out, 0)
	}
	return out[:want]
}
