package engine

import "github.com/zurustar/scenevm/pkg/savegame"

// SoundPlayer plays the sounds scripts ask for. audio.System implements it.
type SoundPlayer interface {
	// Play starts the named sound. A looping sound repeats until Stop.
	Play(name string, loop bool) error
	// Stop silences everything.
	Stop()
}

// Saver persists snapshots in numbered slots. savegame.Store implements it.
type Saver interface {
	Save(slot int, snap *savegame.Snapshot) error
	Load(slot int) (*savegame.Snapshot, error)
}

// updater is implemented by sound players that need a per-tick call.
type updater interface {
	Update()
}

// nopSound is used when audio is disabled or the host is headless.
type nopSound struct{}

func (nopSound) Play(string, bool) error { return nil }
func (nopSound) Stop()                   {}
