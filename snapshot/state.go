// Package snapshot decodes the SNA, Z80 and SZX snapshot formats into a
// machine-agnostic DecodedState the emu package can apply to a fresh
// Emulator, the way the teacher's own save-state Deserialize rehydrates
// a running instance from a byte blob — except these formats come from
// other emulators and tools, not from this module's own Serialize.
package snapshot

// DecodedState is the format-independent result of decoding any
// supported snapshot: register file, border colour, machine type, and
// one RAM page per bank actually present in the file.
type DecodedState struct {
	Machine string // "48K" or "128K"

	AF, BC, DE, HL         uint16
	AFalt, BCalt, DEalt, HLalt uint16
	IX, IY                 uint16
	SP, PC                 uint16
	I, R                   uint8
	IFF1, IFF2             bool
	IM                     uint8

	Border uint8

	// Pages holds each 16KB RAM bank present in the file, keyed by bank
	// number (0-7 for 128K; 5, 2, 0 for 48K, following the real
	// hardware's fixed bank wiring).
	Pages map[int][0x4000]uint8

	// PagingPort is the last value written to port 0x7FFD, for 128K
	// snapshots; zero/ignored for 48K.
	PagingPort uint8
}
