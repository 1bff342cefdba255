package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// ErrWAVInvalidFormat is returned when a WAV file cannot be decoded.
var ErrWAVInvalidFormat = errors.New("invalid WAV file format")

// WAVPlayer plays decoded WAV data. Any number of one-shot sounds may overlap;
// Ebitengine mixes them. Looped sounds keep playing until StopAll.
type WAVPlayer struct {
	audioCtx *audio.Context

	players []*audio.Player
	muted   bool

	mu sync.Mutex
}

// NewWAVPlayer creates a WAV player on audioCtx.
func NewWAVPlayer(audioCtx *audio.Context) *WAVPlayer {
	return &WAVPlayer{
		audioCtx: audioCtx,
		players:  make([]*audio.Player, 0),
	}
}

// Play decodes data and starts it. name is only used in errors.
func (wp *WAVPlayer) Play(name string, data []byte, loop bool) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	wp.cleanupFinishedPlayers()

	stream, err := wav.DecodeWithSampleRate(SampleRate, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWAVInvalidFormat, name, err)
	}

	var player *audio.Player
	if loop {
		player, err = wp.audioCtx.NewPlayer(audio.NewInfiniteLoop(stream, stream.Length()))
	} else {
		player, err = wp.audioCtx.NewPlayer(stream)
	}
	if err != nil {
		return fmt.Errorf("failed to create audio player: %w", err)
	}

	if wp.muted {
		player.SetVolume(0)
	}
	player.Play()
	wp.players = append(wp.players, player)
	return nil
}

// SetMuted silences current and future sounds.
func (wp *WAVPlayer) SetMuted(muted bool) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	wp.muted = muted
	for _, player := range wp.players {
		if muted {
			player.SetVolume(0)
		} else {
			player.SetVolume(1)
		}
	}
}

// IsMuted returns whether the WAV player is muted.
func (wp *WAVPlayer) IsMuted() bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.muted
}

// StopAll stops all active WAV playback.
func (wp *WAVPlayer) StopAll() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	for _, player := range wp.players {
		player.Close()
	}
	wp.players = make([]*audio.Player, 0)
}

// ActiveCount returns the number of sounds still playing.
func (wp *WAVPlayer) ActiveCount() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	wp.cleanupFinishedPlayers()
	return len(wp.players)
}

// Update releases players that have finished.
func (wp *WAVPlayer) Update() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.cleanupFinishedPlayers()
}

// Must be called with wp.mu held.
func (wp *WAVPlayer) cleanupFinishedPlayers() {
	active := wp.players[:0]
	for _, player := range wp.players {
		if player.IsPlaying() {
			active = append(active, player)
		} else {
			player.Close()
		}
	}
	wp.players = active
}
