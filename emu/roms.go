package emu

import "embed"

// embeddedROMs would normally hold the 48K/128K system ROM images via
// go:embed, the way the teacher's romloader bundles no system firmware
// of its own (SMS carts supply their own). Sinclair/Amstrad's ROM
// images cannot be redistributed with this module, so the embed
// directory here is intentionally left without binaries: LoadDefaultROM
// degrades to ErrInvalidConfiguration instead of panicking when asked for
// a ROM that was never embedded, and callers are expected to supply their
// own dump via romloader instead.
//
//go:embed roms/*.rom
var embeddedROMs embed.FS

// LoadDefaultROM returns the named machine's embedded system ROM, or
// ErrInvalidConfiguration if this build was not shipped with one.
func LoadDefaultROM(machine MachineType) ([0x4000]uint8, error) {
	var out [0x4000]uint8
	name := "roms/48.rom"
	if machine == Machine128K {
		name = "roms/128-0.rom"
	}
	data, err := embeddedROMs.ReadFile(name)
	if err != nil || len(data) != len(out) {
		return out, ErrInvalidConfiguration
	}
	copy(out[:], data)
	return out, nil
}
