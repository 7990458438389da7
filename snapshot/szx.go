package snapshot

import "github.com/user-none/gozx/emu"

// DecodeSZX decodes the .SZX format: an 8-byte file header ("ZXST",
// major, minor, machine-id, flags) followed by a sequence of
// four-byte-tagged, length-prefixed chunks. Only the chunks needed to
// resume emulation (Z80 registers, RAM pages, the 128K paging state) are
// interpreted; unrecognized chunks are skipped, matching the format's
// own forward-compatibility design.
func DecodeSZX(data []byte) (*DecodedState, error) {
	if len(data) < 8 || string(data[0:4]) != "ZXST" {
		return nil, emu.ErrUnsupportedSnapshot
	}

	machineID := data[6]
	s := &DecodedState{Pages: map[int][0x4000]uint8{}}
	if machineID >= 2 {
		s.Machine = "128K"
	} else {
		s.Machine = "48K"
	}

	off := 8
	for off+8 <= len(data) {
		tag := string(data[off : off+4])
		size := int(le32(data[off+4:]))
		off += 8
		if off+size > len(data) {
			return nil, emu.ErrUnexpectedEOF
		}
		chunk := data[off : off+size]
		off += size

		switch tag {
		case "Z80R":
			decodeSZXZ80R(s, chunk)
		case "RAMP":
			decodeSZXRAMP(s, chunk)
		case "SPCR":
			if len(chunk) > 0 {
				s.Border = chunk[0] & 0x07
			}
			if len(chunk) > 1 {
				s.PagingPort = chunk[1]
			}
		}
	}

	return s, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// decodeSZXZ80R parses the ZXSTZ80REGS chunk: a flat, fixed-layout dump
// of every CPU register in file order.
func decodeSZXZ80R(s *DecodedState, c []byte) {
	if len(c) < 37 {
		return
	}
	s.AF = le16(c[0:])
	s.BC = le16(c[2:])
	s.DE = le16(c[4:])
	s.HL = le16(c[6:])
	s.AFalt = le16(c[8:])
	s.BCalt = le16(c[10:])
	s.DEalt = le16(c[12:])
	s.HLalt = le16(c[14:])
	s.IX = le16(c[16:])
	s.IY = le16(c[18:])
	s.SP = le16(c[20:])
	s.PC = le16(c[22:])
	s.I = c[24]
	s.R = c[25]
	s.IFF1 = c[26] != 0
	s.IFF2 = c[27] != 0
	s.IM = c[28]
}

// decodeSZXRAMP parses one ZXSTRAMPAGE chunk: a 2-byte flags field, a
// 1-byte page number, then either 0x4000 raw bytes or (if the
// compression flag is set) a zlib stream. Only uncompressed pages are
// decoded; a compressed page is skipped and its bank is left unset.
func decodeSZXRAMP(s *DecodedState, c []byte) {
	if len(c) < 3 {
		return
	}
	flags := le16(c[0:])
	pageNum := c[2]
	compressed := flags&0x01 != 0
	if compressed {
		return
	}
	payload := c[3:]
	if len(payload) < 0x4000 {
		return
	}
	var page [0x4000]uint8
	copy(page[:], payload[:0x4000])
	s.Pages[int(pageNum)] = page
}
