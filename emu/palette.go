package emu

// DefaultPalette maps the 16 ULA colour indices (0-7 normal, 8-15 bright)
// to RGBA, supplemented from original_source's palette.rs — the
// distilled spec describes the colour attribute format but not the
// concrete RGB values a renderer needs.
var DefaultPalette = [16][4]uint8{
	{0x00, 0x00, 0x00, 0xFF}, // black
	{0x00, 0x00, 0xCD, 0xFF}, // blue
	{0xCD, 0x00, 0x00, 0xFF}, // red
	{0xCD, 0x00, 0xCD, 0xFF}, // magenta
	{0x00, 0xCD, 0x00, 0xFF}, // green
	{0x00, 0xCD, 0xCD, 0xFF}, // cyan
	{0xCD, 0xCD, 0x00, 0xFF}, // yellow
	{0xCD, 0xCD, 0xCD, 0xFF}, // white
	{0x00, 0x00, 0x00, 0xFF}, // bright black
	{0x00, 0x00, 0xFF, 0xFF}, // bright blue
	{0xFF, 0x00, 0x00, 0xFF}, // bright red
	{0xFF, 0x00, 0xFF, 0xFF}, // bright magenta
	{0x00, 0xFF, 0x00, 0xFF}, // bright green
	{0x00, 0xFF, 0xFF, 0xFF}, // bright cyan
	{0xFF, 0xFF, 0x00, 0xFF}, // bright yellow
	{0xFF, 0xFF, 0xFF, 0xFF}, // bright white
}
