package savegame

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func sample() *Snapshot {
	return &Snapshot{
		Setting:   "kitchen",
		Mode:      2,
		Flags:     map[string]int64{"doorOpen": 1, "lampOn": 0, "coins": 12},
		Inventory: []string{"key", "letter"},
	}
}

func TestSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saves")
	store := NewStore(dir)

	if err := store.Save(3, sample()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(3)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := sample()
	want.Version = Version
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
	if _, err := os.Stat(SlotPath(dir, 3) + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	if err := Save(dir, 0, sample()); err != nil {
		t.Fatal(err)
	}
	next := sample()
	next.Setting = "cellar"
	if err := Save(dir, 0, next); err != nil {
		t.Fatal(err)
	}
	got, err := Load(dir, 0)
	if err != nil || got.Setting != "cellar" {
		t.Errorf("Load() = %+v, %v", got, err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	old, err := encMode.Marshal(&Snapshot{Version: Version + 1, Setting: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(SlotPath(dir, 1), old, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(SlotPath(dir, 2), []byte{0xff, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		slot int
		want error
	}{
		{"empty slot", 0, ErrNoSave},
		{"other version", 1, ErrVersion},
		{"negative slot", -1, ErrSlot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(dir, tt.slot)
			if !errors.Is(err, tt.want) {
				t.Errorf("Load(%d) error = %v, want %v", tt.slot, err, tt.want)
			}
		})
	}

	if _, err := Load(dir, 2); err == nil {
		t.Error("corrupt file should fail to load")
	}
}

func TestSaveRejectsNegativeSlot(t *testing.T) {
	if err := Save(t.TempDir(), -2, sample()); !errors.Is(err, ErrSlot) {
		t.Errorf("Save(-2) error = %v, want ErrSlot", err)
	}
}

func TestMarshalIsCanonical(t *testing.T) {
	a, err := Marshal(sample())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		b, err := Marshal(sample())
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a, b) {
			t.Fatal("encoding of equal snapshots differs")
		}
	}
}
