// Package tapefile decodes TAP and TZX tape images into a Deck the emu
// package's Tape player can consume through the emu.TapeSource
// interface: a flat, precomputed pulse train for realistic playback, and
// the original block list for the ROM fast-load trap to hand over
// directly.
package tapefile

import "github.com/user-none/gozx/emu"

// Block is one length-prefixed data block, the unit both TAP and the
// common TZX block types (0x10 standard speed, 0x11 turbo speed) encode.
type Block struct {
	Data       []byte
	IsHeader   bool // flag byte 0x00, by ROM convention
	PauseAfter int  // milliseconds of silence the format specifies after this block
}

// pulse is one run of a constant EAR line level.
type pulse struct {
	level    bool
	duration uint32 // T-states
}

// Deck is a decoded tape image: its block list (for fast-load) and a
// flattened pulse train (for realistic bit-banged playback).
type Deck struct {
	Blocks []Block

	pulses   []pulse
	cursor   int
	cursorT  uint64 // tstates at start of pulses[cursor]
	blockIdx int
}

// Standard ROM loader timing constants, in T-states at 3.5MHz, per the
// well-known de facto tape encoding every TAP/TZX standard-speed block
// follows.
const (
	pilotPulseLen  = 2168
	pilotHeaderLen = 8063
	pilotDataLen   = 3223
	syncPulse1Len  = 667
	syncPulse2Len  = 735
	bit0PulseLen   = 855
	bit1PulseLen   = 1710
)

// DecodeTAP decodes a .TAP image: a flat sequence of 2-byte
// length-prefixed blocks with no block-type markers of their own.
func DecodeTAP(data []byte) (*Deck, error) {
	var blocks []Block
	off := 0
	for off+2 <= len(data) {
		length := int(data[off]) | int(data[off+1])<<8
		off += 2
		if off+length > len(data) {
			return nil, emu.ErrUnexpectedEOF
		}
		payload := data[off : off+length]
		off += length
		isHeader := length > 0 && payload[0] == 0x00
		blocks = append(blocks, Block{Data: payload, IsHeader: isHeader, PauseAfter: 1000})
	}
	return buildDeck(blocks), nil
}

// DecodeTZX decodes a .TZX image, interpreting the "standard speed data"
// (0x10) and "turbo speed data" (0x11) block types directly and skipping
// the pure tone, pause, group start/end, text description and archive
// info blocks by their declared length. Any other block type (pulse
// sequence, direct recording, CSW, generalized data and the rest) ends
// decoding: the blocks read before it are returned, with no error.
func DecodeTZX(data []byte) (*Deck, error) {
	if len(data) < 10 || string(data[0:7]) != "ZXTape!" {
		return nil, emu.ErrUnsupportedSnapshot
	}
	var blocks []Block
	off := 10
	for off < len(data) {
		id := data[off]
		off++
		switch id {
		case 0x10:
			if off+4 > len(data) {
				return nil, emu.ErrUnexpectedEOF
			}
			pause := int(data[off]) | int(data[off+1])<<8
			length := int(data[off+2]) | int(data[off+3])<<8
			off += 4
			if off+length > len(data) {
				return nil, emu.ErrUnexpectedEOF
			}
			payload := data[off : off+length]
			off += length
			blocks = append(blocks, Block{Data: payload, IsHeader: length > 0 && payload[0] == 0x00, PauseAfter: pause})
		case 0x11:
			if off+0x12 > len(data) {
				return nil, emu.ErrUnexpectedEOF
			}
			length := int(data[off+0x0F]) | int(data[off+0x10])<<8 | int(data[off+0x11])<<16
			pause := int(data[off+0x0D]) | int(data[off+0x0E])<<8
			off += 0x12
			if off+length > len(data) {
				return nil, emu.ErrUnexpectedEOF
			}
			payload := data[off : off+length]
			off += length
			blocks = append(blocks, Block{Data: payload, IsHeader: length > 0 && payload[0] == 0x00, PauseAfter: pause})
		default:
			skip, ok := tzxSkipLength(id, data[off:])
			if !ok {
				return buildDeck(blocks), nil // give up gracefully on anything we can't size
			}
			off += skip
		}
	}
	return buildDeck(blocks), nil
}

// tzxSkipLength returns how many bytes (after the ID byte) to skip for
// block types this player doesn't interpret, for the common
// length-prefixed shapes; unsupported variable shapes return ok=false.
func tzxSkipLength(id uint8, rest []byte) (int, bool) {
	switch id {
	case 0x12: // pure tone
		return 4, len(rest) >= 4
	case 0x20: // pause / stop the tape
		return 2, len(rest) >= 2
	case 0x21: // group start
		if len(rest) < 1 {
			return 0, false
		}
		return 1 + int(rest[0]), len(rest) >= 1+int(rest[0])
	case 0x22: // group end
		return 0, true
	case 0x30: // text description
		if len(rest) < 1 {
			return 0, false
		}
		return 1 + int(rest[0]), len(rest) >= 1+int(rest[0])
	case 0x32: // archive info
		if len(rest) < 2 {
			return 0, false
		}
		n := int(rest[0]) | int(rest[1])<<8
		return 2 + n, len(rest) >= 2+n
	default:
		return 0, false
	}
}

func buildDeck(blocks []Block) *Deck {
	d := &Deck{Blocks: blocks}
	d.rebuild()
	return d
}

func (d *Deck) rebuild() {
	d.pulses = d.pulses[:0]
	for _, b := range d.Blocks {
		pilotLen := pilotDataLen
		if b.IsHeader {
			pilotLen = pilotHeaderLen
		}
		for i := 0; i < pilotLen; i++ {
			d.pulses = append(d.pulses, pulse{level: i%2 == 0, duration: pilotPulseLen})
		}
		d.pulses = append(d.pulses, pulse{level: true, duration: syncPulse1Len})
		d.pulses = append(d.pulses, pulse{level: false, duration: syncPulse2Len})

		level := true
		for _, byteVal := range b.Data {
			for bit := 7; bit >= 0; bit-- {
				set := byteVal&(1<<uint(bit)) != 0
				plen := uint32(bit0PulseLen)
				if set {
					plen = bit1PulseLen
				}
				level = !level
				d.pulses = append(d.pulses, pulse{level: level, duration: plen})
				level = !level
				d.pulses = append(d.pulses, pulse{level: level, duration: plen})
			}
		}
		if b.PauseAfter > 0 {
			d.pulses = append(d.pulses, pulse{level: false, duration: uint32(b.PauseAfter) * 3500})
		}
	}
	d.cursor = 0
	d.cursorT = 0
}

// CurrentBit implements emu.TapeSource: it advances a monotonic cursor
// over the flattened pulse train (tape playback never rewinds except via
// Rewind) and reports the EAR level at tstates plus whether data remains.
func (d *Deck) CurrentBit(tstates uint64) (bool, bool) {
	for d.cursor < len(d.pulses) {
		p := d.pulses[d.cursor]
		end := d.cursorT + uint64(p.duration)
		if tstates < end {
			return p.level, true
		}
		d.cursorT = end
		d.cursor++
	}
	return false, false
}

// FastLoadBlock returns the tape's next undelivered block whole, for the
// ROM fast-load trap, and advances the block cursor past it. The pulse
// cursor CurrentBit reads from is not moved, so playback and fast-load
// each keep their own position on the tape.
func (d *Deck) FastLoadBlock() ([]byte, bool, bool) {
	if d.blockIdx >= len(d.Blocks) {
		return nil, false, false
	}
	b := d.Blocks[d.blockIdx]
	d.blockIdx++
	return b.Data, b.IsHeader, true
}

// Rewind resets both the pulse cursor and the fast-load block cursor to
// the start of the tape.
func (d *Deck) Rewind() {
	d.cursor = 0
	d.cursorT = 0
	d.blockIdx = 0
}
