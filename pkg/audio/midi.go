package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/sinshu/go-meltysynth/meltysynth"
)

// SampleRate is the audio sample rate shared by every player.
const SampleRate = 44100

var (
	// ErrNoSoundFont is returned when MIDI playback is requested without a SoundFont.
	ErrNoSoundFont = errors.New("SoundFont file is required for MIDI playback")

	// ErrSoundFontNotFound is returned when the SoundFont file cannot be found.
	ErrSoundFontNotFound = errors.New("SoundFont file not found")

	// ErrMIDIInvalidFormat is returned when a MIDI file cannot be parsed.
	ErrMIDIInvalidFormat = errors.New("invalid MIDI file format")
)

// MIDIStream renders the sequencer into 16-bit stereo PCM for Ebitengine.
type MIDIStream struct {
	sequencer   *meltysynth.MidiFileSequencer
	sampleCount int64
	stopped     bool
	mu          sync.Mutex
}

// Read implements io.Reader.
func (s *MIDIStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.sequencer == nil {
		clear(p)
		return len(p), nil
	}

	// 16-bit stereo = 4 bytes per frame
	frames := len(p) / 4
	if frames == 0 {
		return 0, nil
	}

	left := make([]float32, frames)
	right := make([]float32, frames)
	s.sequencer.Render(left, right)
	s.sampleCount += int64(frames)

	for i := range frames {
		l := int16(clamp(left[i], -1, 1) * 32767)
		r := int16(clamp(right[i], -1, 1) * 32767)
		binary.LittleEndian.PutUint16(p[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(r))
	}
	return frames * 4, nil
}

// Stop makes Read return silence.
func (s *MIDIStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

// Position returns how much audio has been rendered.
func (s *MIDIStream) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.sampleCount) * time.Second / SampleRate
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MIDIPlayer plays one Standard MIDI File at a time through a software
// synthesizer. Starting a new file stops the previous one.
type MIDIPlayer struct {
	synth *meltysynth.Synthesizer

	audioCtx *audio.Context
	player   *audio.Player
	stream   *MIDIStream

	playing  bool
	looping  bool
	muted    bool
	duration time.Duration
	current  string

	mu sync.Mutex
}

// NewMIDIPlayer creates a MIDI player that synthesizes with soundFont.
func NewMIDIPlayer(soundFont *meltysynth.SoundFont, audioCtx *audio.Context) (*MIDIPlayer, error) {
	if soundFont == nil {
		return nil, ErrNoSoundFont
	}
	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}
	return &MIDIPlayer{
		synth:    synth,
		audioCtx: audioCtx,
	}, nil
}

// Play parses data and starts it, replacing whatever was playing.
func (mp *MIDIPlayer) Play(name string, data []byte, loop bool) error {
	midi, err := meltysynth.NewMidiFile(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMIDIInvalidFormat, name, err)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.stopInternal()

	sequencer := meltysynth.NewMidiFileSequencer(mp.synth)
	sequencer.Play(midi, loop)

	mp.stream = &MIDIStream{sequencer: sequencer}
	player, err := mp.audioCtx.NewPlayer(mp.stream)
	if err != nil {
		return fmt.Errorf("failed to create audio player: %w", err)
	}
	mp.player = player
	if mp.muted {
		mp.player.SetVolume(0)
	}
	mp.player.Play()

	mp.playing = true
	mp.looping = loop
	mp.duration = midi.GetLength()
	mp.current = name
	return nil
}

// Stop stops the current MIDI playback.
func (mp *MIDIPlayer) Stop() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.stopInternal()
}

// Must be called with mp.mu held.
func (mp *MIDIPlayer) stopInternal() {
	if mp.stream != nil {
		mp.stream.Stop()
	}
	if mp.player != nil {
		mp.player.Close()
		mp.player = nil
	}
	mp.stream = nil
	mp.playing = false
	mp.current = ""
}

// IsPlaying reports whether a file is playing.
func (mp *MIDIPlayer) IsPlaying() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.playing
}

// Current returns the name of the file playing, or "".
func (mp *MIDIPlayer) Current() string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.current
}

// SetMuted silences playback without stopping the sequencer.
func (mp *MIDIPlayer) SetMuted(muted bool) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.muted = muted
	if mp.player != nil {
		if muted {
			mp.player.SetVolume(0)
		} else {
			mp.player.SetVolume(1)
		}
	}
}

// Update marks a non-looping file finished once its length has been rendered.
func (mp *MIDIPlayer) Update() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if !mp.playing || mp.looping || mp.stream == nil {
		return
	}
	if mp.stream.Position() >= mp.duration {
		mp.stopInternal()
	}
}
