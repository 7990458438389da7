package cli

import (
	"bytes"
	"io"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// audioStream is an io.Reader ebiten/v2/audio pulls PCM from, fed by
// QueueSamples from the emulation loop. Used instead of the teacher's
// SDL3-backed AudioPlayer: ebiten/v2/audio is already a direct
// dependency and needs no platform-specific dynamic-library loading for
// a minimal standalone runner.
type audioStream struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *audioStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() == 0 {
		// Starve silently rather than block: hand the player a full
		// buffer of silence, not EOF.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	return s.buf.Read(p)
}

func (s *audioStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// AudioPlayer turns mono float32 samples in [-1,1] into stereo 16-bit PCM
// and queues them on an ebiten audio player.
type AudioPlayer struct {
	stream *audioStream
	player *audio.Player
}

func NewAudioPlayer(sampleRate int) (*AudioPlayer, error) {
	ctx := audio.NewContext(sampleRate)
	s := &audioStream{}
	p, err := ctx.NewPlayer(s)
	if err != nil {
		return nil, err
	}
	p.Play()
	return &AudioPlayer{stream: s, player: p}, nil
}

func (a *AudioPlayer) QueueSamples(samples []float32) {
	buf := make([]byte, len(samples)*4)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		iv := int16(v * 32767)
		buf[i*4] = byte(iv)
		buf[i*4+1] = byte(iv >> 8)
		buf[i*4+2] = byte(iv)
		buf[i*4+3] = byte(iv >> 8)
	}
	a.stream.Write(buf)
}

func (a *AudioPlayer) Close() error {
	return a.player.Close()
}

var _ io.Reader = (*audioStream)(nil)
