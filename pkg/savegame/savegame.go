// Package savegame stores game state snapshots as canonical CBOR files, one
// file per numbered slot.
package savegame

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// Version is written into every snapshot. Files with another version are rejected.
const Version = 1

var (
	// ErrVersion is returned for snapshots written by an incompatible version.
	ErrVersion = errors.New("unsupported save version")
	// ErrNoSave is returned when a slot holds no snapshot.
	ErrNoSave = errors.New("no saved game in slot")
	// ErrSlot is returned for negative slot numbers.
	ErrSlot = errors.New("invalid save slot")
)

// Snapshot is the persistent part of the game state.
type Snapshot struct {
	Version   int              `cbor:"1,keyasint"`
	Setting   string           `cbor:"2,keyasint"`
	Mode      int64            `cbor:"3,keyasint"`
	Flags     map[string]int64 `cbor:"4,keyasint,omitempty"`
	Inventory []string         `cbor:"5,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("savegame: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal encodes s. A zero Version is stamped with the current one.
func Marshal(s *Snapshot) ([]byte, error) {
	if s.Version == 0 {
		s.Version = Version
	}
	return encMode.Marshal(s)
}

// Unmarshal decodes a snapshot and checks its version.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("savegame: unmarshal snapshot: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("%w: %d (want %d)", ErrVersion, s.Version, Version)
	}
	return &s, nil
}

// SlotPath returns the file a slot is stored in.
func SlotPath(dir string, slot int) string {
	return filepath.Join(dir, fmt.Sprintf("slot%02d.sav", slot))
}

// Save writes snap into slot under dir, creating dir if needed.
func Save(dir string, slot int, snap *Snapshot) error {
	if slot < 0 {
		return fmt.Errorf("%w: %d", ErrSlot, slot)
	}
	data, err := Marshal(snap)
	if err != nil {
		return fmt.Errorf("savegame: marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("savegame: %w", err)
	}

	// 書き込み途中のファイルを残さないよう一時ファイル経由で置き換える
	path := SlotPath(dir, slot)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("savegame: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("savegame: %w", err)
	}
	return nil
}

// Load reads the snapshot in slot under dir.
func Load(dir string, slot int) (*Snapshot, error) {
	if slot < 0 {
		return nil, fmt.Errorf("%w: %d", ErrSlot, slot)
	}
	data, err := os.ReadFile(SlotPath(dir, slot))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w %d", ErrNoSave, slot)
		}
		return nil, fmt.Errorf("savegame: %w", err)
	}
	return Unmarshal(data)
}

// Store saves into a fixed directory.
type Store struct {
	Dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Save writes snap into slot.
func (s *Store) Save(slot int, snap *Snapshot) error {
	return Save(s.Dir, slot, snap)
}

// Load reads the snapshot in slot.
func (s *Store) Load(slot int) (*Snapshot, error) {
	return Load(s.Dir, slot)
}
