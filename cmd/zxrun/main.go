// Command zxrun is a minimal standalone ZX Spectrum runner: point it at
// a ROM/snapshot/tape file and it boots straight into a window, the same
// direct-emulator-mode path the teacher's main.go takes when given a ROM
// path (the full achievements/library UI the teacher falls back to
// without a path is out of this module's scope).
package main

import (
	"flag"
	"log"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/user-none/gozx/cli"
	"github.com/user-none/gozx/emu"
	"github.com/user-none/gozx/romloader"
	"github.com/user-none/gozx/snapshot"
	"github.com/user-none/gozx/tapefile"
)

func main() {
	romPath := flag.String("rom", "", "system ROM file (.rom); required unless -default-rom is set")
	defaultROM := flag.Bool("default-rom", false, "boot the embedded default ROM instead of -rom")
	machineFlag := flag.String("machine", "48k", "machine: 48k or 128k")
	loadPath := flag.String("load", "", "snapshot (.sna/.z80/.szx) or tape (.tap/.tzx) to load at boot")
	fastLoad := flag.Bool("fast-load", true, "intercept the ROM tape loader for instant loading")
	flag.Parse()

	machine := emu.Machine48K
	if strings.EqualFold(*machineFlag, "128k") {
		machine = emu.Machine128K
	}

	settings := emu.Settings{
		Machine:        machine,
		SoundEnabled:   true,
		SampleRate:     44100,
		LoadDefaultROM: *defaultROM,
		FastLoad:       *fastLoad,
	}

	var provider emu.ROMProvider
	if *romPath != "" {
		asset, err := romloader.LoadAsset(*romPath)
		if err != nil {
			log.Fatalf("zxrun: loading ROM: %v", err)
		}
		provider = singleROMProvider{data: asset.Data, machine: machine}
	}

	e, err := emu.New(settings, provider)
	if err != nil {
		log.Fatalf("zxrun: %v", err)
	}

	if *loadPath != "" {
		if err := loadAsset(e, *loadPath); err != nil {
			log.Fatalf("zxrun: loading %s: %v", *loadPath, err)
		}
	}

	runner, err := cli.NewRunner(e, settings.SampleRate)
	if err != nil {
		log.Fatalf("zxrun: %v", err)
	}
	defer runner.Close()

	ebiten.SetWindowSize(704, 576)
	ebiten.SetWindowTitle("zxrun")
	if err := ebiten.RunGame(runner); err != nil {
		log.Fatal(err)
	}
}

// singleROMProvider hands the same user-supplied dump back for whichever
// page the emulator asks for, which is correct for a 48K boot (one
// image) and a reasonable degrade for 128K given only one file (both
// pages end up identical, which is wrong for real 128K firmware but
// lets -rom work without requiring two separate files).
type singleROMProvider struct {
	data    []byte
	machine emu.MachineType
}

func (p singleROMProvider) ROM48() ([]byte, error) { return p.data, nil }
func (p singleROMProvider) ROM128(page int) ([]byte, error) { return p.data, nil }

func loadAsset(e *emu.Emulator, path string) error {
	asset, err := romloader.LoadAsset(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tap":
		deck, err := tapefile.DecodeTAP(asset.Data)
		if err != nil {
			return err
		}
		e.LoadTape(deck)
		e.PlayTape()
	case ".tzx":
		deck, err := tapefile.DecodeTZX(asset.Data)
		if err != nil {
			return err
		}
		e.LoadTape(deck)
		e.PlayTape()
	case ".sna":
		state, err := snapshot.DecodeSNA(asset.Data)
		if err != nil {
			return err
		}
		return applySnapshot(e, state)
	case ".z80":
		state, err := snapshot.DecodeZ80(asset.Data)
		if err != nil {
			return err
		}
		return applySnapshot(e, state)
	case ".szx":
		state, err := snapshot.DecodeSZX(asset.Data)
		if err != nil {
			return err
		}
		return applySnapshot(e, state)
	}
	return nil
}

func applySnapshot(e *emu.Emulator, s *snapshot.DecodedState) error {
	pages := make(map[int][0x4000]uint8, len(s.Pages))
	for k, v := range s.Pages {
		pages[k] = v
	}
	return e.ApplySnapshot(&emu.SnapshotState{
		AF: s.AF, BC: s.BC, DE: s.DE, HL: s.HL,
		AFalt: s.AFalt, BCalt: s.BCalt, DEalt: s.DEalt, HLalt: s.HLalt,
		IX: s.IX, IY: s.IY, SP: s.SP, PC: s.PC,
		I: s.I, R: s.R, IFF1: s.IFF1, IFF2: s.IFF2, IM: s.IM,
		Border: s.Border, PagingPort: s.PagingPort, Pages: pages,
	})
}
