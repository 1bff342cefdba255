// Package audio plays the sounds scripts ask for. WAV files go through
// Ebitengine's audio package; MIDI files are rendered by go-meltysynth with a
// SoundFont. Files are looked up case-insensitively in the game directory.
package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/zurustar/scenevm/pkg/fileutil"
	"github.com/zurustar/scenevm/pkg/logger"
)

// ErrSoundNotFound is returned when a sound file does not exist.
var ErrSoundNotFound = errors.New("sound file not found")

// DefaultExtension is appended to sound names given without one.
const DefaultExtension = ".wav"

// System dispatches sounds to the WAV or MIDI player by file extension.
// It satisfies the engine's SoundPlayer.
type System struct {
	fsys     fileutil.FileSystem
	audioCtx *audio.Context
	wav      *WAVPlayer
	midi     *MIDIPlayer // nil without a SoundFont

	soundFontPath string
	muted         bool
	log           *slog.Logger

	mu sync.Mutex
}

// Option is a functional option for configuring the System.
type Option func(*System)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *System) {
		s.log = log
	}
}

// WithContext uses an existing audio context. Ebitengine allows one per process.
func WithContext(ctx *audio.Context) Option {
	return func(s *System) {
		s.audioCtx = ctx
	}
}

// WithSoundFont enables MIDI playback with the SoundFont at path, read through
// the game FileSystem.
func WithSoundFont(path string) Option {
	return func(s *System) {
		s.soundFontPath = path
	}
}

// WithMuted starts the system muted.
func WithMuted(muted bool) Option {
	return func(s *System) {
		s.muted = muted
	}
}

// NewSystem creates the players. A SoundFont that cannot be loaded is an error;
// without WithSoundFont, MIDI sounds fail with ErrNoSoundFont when played.
func NewSystem(fsys fileutil.FileSystem, opts ...Option) (*System, error) {
	s := &System{
		fsys: fsys,
		log:  logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.audioCtx == nil {
		s.audioCtx = audio.CurrentContext()
	}
	if s.audioCtx == nil {
		s.audioCtx = audio.NewContext(SampleRate)
	}

	s.wav = NewWAVPlayer(s.audioCtx)
	if s.soundFontPath != "" {
		sf, err := LoadSoundFontFS(fsys, s.soundFontPath)
		if err != nil {
			return nil, err
		}
		if s.midi, err = NewMIDIPlayer(sf, s.audioCtx); err != nil {
			return nil, err
		}
		s.log.Info("SoundFont loaded", "path", s.soundFontPath)
	}
	s.setMuted(s.muted)
	return s, nil
}

// IsMIDI reports whether name is played by the MIDI player.
func IsMIDI(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".mid", ".midi":
		return true
	}
	return false
}

// Play starts the named sound. Looping sounds repeat until Stop.
func (s *System) Play(name string, loop bool) error {
	file := strings.ReplaceAll(name, "\\", "/")
	if path.Ext(file) == "" {
		file += DefaultExtension
	}

	data, err := s.fsys.ReadFile(file)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSoundNotFound, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug("playing sound", "name", name, "file", file, "loop", loop)
	if IsMIDI(file) {
		if s.midi == nil {
			return ErrNoSoundFont
		}
		return s.midi.Play(file, data, loop)
	}
	return s.wav.Play(file, data, loop)
}

// Stop silences everything that is playing.
func (s *System) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wav.StopAll()
	if s.midi != nil {
		s.midi.Stop()
	}
}

// SetMuted mutes or unmutes all output. Playback state is unaffected.
func (s *System) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setMuted(muted)
}

func (s *System) setMuted(muted bool) {
	s.muted = muted
	s.wav.SetMuted(muted)
	if s.midi != nil {
		s.midi.SetMuted(muted)
	}
}

// IsMuted returns whether the audio system is muted.
func (s *System) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// HasMIDI reports whether a SoundFont was loaded.
func (s *System) HasMIDI() bool {
	return s.midi != nil
}

// Update releases finished players. Call it once per frame.
func (s *System) Update() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wav.Update()
	if s.midi != nil {
		s.midi.Update()
	}
}

// Close stops all playback.
func (s *System) Close() {
	s.Stop()
}
