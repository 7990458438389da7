// Package cli provides a minimal standalone runner: an ebiten.Game that
// polls keyboard/gamepad input, steps the emulator one frame per Update,
// and presents the framebuffer, the same division of responsibility as
// the teacher's cli.Runner (the frontend polls input; the emulator
// itself never touches an input API).
package cli

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/user-none/gozx/emu"
)

// Runner wraps an *emu.Emulator for windowed play.
type Runner struct {
	emulator    *emu.Emulator
	audioPlayer *AudioPlayer
	img         *ebiten.Image
}

func NewRunner(e *emu.Emulator, sampleRate int) (*Runner, error) {
	player, err := NewAudioPlayer(sampleRate)
	if err != nil {
		return nil, err
	}
	return &Runner{emulator: e, audioPlayer: player}, nil
}

func (r *Runner) Close() {
	if r.audioPlayer != nil {
		r.audioPlayer.Close()
		r.audioPlayer = nil
	}
}

// Update implements ebiten.Game.
func (r *Runner) Update() error {
	if !ebiten.IsFocused() {
		return nil
	}

	r.pollInput()
	fb := r.emulator.EmulateFrames(1)
	r.audioPlayer.QueueSamples(r.emulator.SoundSamples())
	r.updateImage(fb)

	return nil
}

func (r *Runner) updateImage(fb *emu.Framebuffer) {
	if r.img == nil || r.img.Bounds().Dx() != fb.Width || r.img.Bounds().Dy() != fb.Height {
		r.img = ebiten.NewImage(fb.Width, fb.Height)
	}
	pix := make([]byte, fb.Width*fb.Height*4)
	for i, idx := range fb.Pix {
		c := emu.DefaultPalette[idx&0x0F]
		pix[i*4] = c[0]
		pix[i*4+1] = c[1]
		pix[i*4+2] = c[2]
		pix[i*4+3] = c[3]
	}
	r.img.WritePixels(pix)
}

// Draw implements ebiten.Game.
func (r *Runner) Draw(screen *ebiten.Image) {
	if r.img == nil {
		return
	}
	screen.DrawImage(r.img, nil)
}

// Layout implements ebiten.Game.
func (r *Runner) Layout(outsideWidth, outsideHeight int) (int, int) {
	if r.img == nil {
		return 352, 288
	}
	return r.img.Bounds().Dx(), r.img.Bounds().Dy()
}

// pollInput maps a fixed set of host keys onto the ZX keyboard matrix
// plus the Kempston joystick, and the arrow keys/gamepad d-pad onto
// Kempston directions the way many real games expect a joystick.
func (r *Runner) pollInput() {
	keymap := []struct {
		host ebiten.Key
		zx   emu.ZXKey
	}{
		{ebiten.KeyQ, emu.KeyQ}, {ebiten.KeyW, emu.KeyW}, {ebiten.KeyE, emu.KeyE},
		{ebiten.KeyR, emu.KeyR}, {ebiten.KeyT, emu.KeyT}, {ebiten.KeyY, emu.KeyY},
		{ebiten.KeyU, emu.KeyU}, {ebiten.KeyI, emu.KeyI}, {ebiten.KeyO, emu.KeyO},
		{ebiten.KeyP, emu.KeyP},
		{ebiten.KeyA, emu.KeyA}, {ebiten.KeyS, emu.KeyS}, {ebiten.KeyD, emu.KeyD},
		{ebiten.KeyF, emu.KeyF}, {ebiten.KeyG, emu.KeyG}, {ebiten.KeyH, emu.KeyH},
		{ebiten.KeyJ, emu.KeyJ}, {ebiten.KeyK, emu.KeyK}, {ebiten.KeyL, emu.KeyL},
		{ebiten.KeyEnter, emu.KeyEnter},
		{ebiten.KeyZ, emu.KeyZ}, {ebiten.KeyX, emu.KeyX}, {ebiten.KeyC, emu.KeyC},
		{ebiten.KeyV, emu.KeyV}, {ebiten.KeyB, emu.KeyB}, {ebiten.KeyN, emu.KeyN},
		{ebiten.KeyM, emu.KeyM},
		{ebiten.KeyShift, emu.KeyShift},
		{ebiten.KeySpace, emu.KeySpace},
		{ebiten.Key0, emu.Key0}, {ebiten.Key1, emu.Key1}, {ebiten.Key2, emu.Key2},
		{ebiten.Key3, emu.Key3}, {ebiten.Key4, emu.Key4}, {ebiten.Key5, emu.Key5},
		{ebiten.Key6, emu.Key6}, {ebiten.Key7, emu.Key7}, {ebiten.Key8, emu.Key8},
		{ebiten.Key9, emu.Key9},
	}
	for _, k := range keymap {
		r.emulator.SendKey(k.zx, ebiten.IsKeyPressed(k.host))
	}
	r.emulator.SendKey(emu.KeySymShift, ebiten.IsKeyPressed(ebiten.KeyAlt))

	up := ebiten.IsKeyPressed(ebiten.KeyArrowUp)
	down := ebiten.IsKeyPressed(ebiten.KeyArrowDown)
	left := ebiten.IsKeyPressed(ebiten.KeyArrowLeft)
	right := ebiten.IsKeyPressed(ebiten.KeyArrowRight)
	fire := ebiten.IsKeyPressed(ebiten.KeyControlRight)

	for _, id := range ebiten.AppendGamepadIDs(nil) {
		if !ebiten.IsStandardGamepadLayoutAvailable(id) {
			continue
		}
		if ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonLeftTop) {
			up = true
		}
		if ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonLeftBottom) {
			down = true
		}
		if ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonLeftLeft) {
			left = true
		}
		if ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonLeftRight) {
			right = true
		}
		if ebiten.IsStandardGamepadButtonPressed(id, ebiten.StandardGamepadButtonRightBottom) {
			fire = true
		}
		const deadzone = 0.5
		if ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickHorizontal) < -deadzone {
			left = true
		}
		if ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickHorizontal) > deadzone {
			right = true
		}
		if ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickVertical) < -deadzone {
			up = true
		}
		if ebiten.StandardGamepadAxisValue(id, ebiten.StandardGamepadAxisLeftStickVertical) > deadzone {
			down = true
		}
	}

	r.emulator.SendKempston(emu.KempstonUp, up)
	r.emulator.SendKempston(emu.KempstonDown, down)
	r.emulator.SendKempston(emu.KempstonLeft, left)
	r.emulator.SendKempston(emu.KempstonRight, right)
	r.emulator.SendKempston(emu.KempstonFire, fire)

	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		r.emulator.RewindTape()
		r.emulator.PlayTape()
	}
}
