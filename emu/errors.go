package emu

import "errors"

// Sentinel errors returned by the emulator facade, following the
// teacher's plain-sentinel-error idiom (romloader.ErrNoSMSFile and
// friends) rather than a custom error hierarchy.
var (
	ErrUnexpectedEOF        = errors.New("emu: unexpected end of data")
	ErrInvalidConfiguration = errors.New("emu: invalid configuration")
	ErrNoTapeLoaded         = errors.New("emu: no tape loaded")
	ErrUnsupportedSnapshot  = errors.New("emu: unsupported snapshot format")
)
