package emu

// MachineType selects the ZX Spectrum model timing profile, playing the
// role the teacher's Region (NTSC/PAL) enum plays for its console: it
// fixes the frame geometry the controller schedules around.
type MachineType int

const (
	Machine48K MachineType = iota
	Machine128K
)

// MachineTiming mirrors the teacher's RegionTiming: the handful of
// constants a frame scheduler needs, looked up once per machine and
// never recomputed per frame.
type MachineTiming struct {
	CPUClockHz       int
	ScanlinesPerFrame int
	TStatesPerLine   int
	TStatesPerFrame  int
	FirstPixelT      int // T-state of the first visible pixel on a line
	InterruptLength  int // T-states the ULA holds /INT low
	DisplayStartLine int // first frame line of the 64-border/192-display/border layout
}

var timing48K = MachineTiming{
	CPUClockHz:        3500000,
	ScanlinesPerFrame: 312,
	TStatesPerLine:    224,
	TStatesPerFrame:   312 * 224,
	FirstPixelT:       24,
	InterruptLength:   32,
	DisplayStartLine:  64,
}

var timing128K = MachineTiming{
	CPUClockHz:        3546900,
	ScanlinesPerFrame: 311,
	TStatesPerLine:    228,
	TStatesPerFrame:   311 * 228,
	FirstPixelT:       24,
	InterruptLength:   36,
	DisplayStartLine:  63,
}

// TimingFor returns the fixed timing profile for a machine type.
func TimingFor(m MachineType) MachineTiming {
	if m == Machine128K {
		return timing128K
	}
	return timing48K
}

func (m MachineType) String() string {
	if m == Machine128K {
		return "128K"
	}
	return "48K"
}
