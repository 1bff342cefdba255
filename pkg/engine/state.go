package engine

import (
	"image"
	"slices"
)

// Exit is a clickable area that leads to another setting.
type Exit struct {
	Target string
	Cursor string
	Area   image.Rectangle
}

// Bitmap is an image drawn over the background.
type Bitmap struct {
	Name string
	At   image.Point
}

type timer struct {
	due    int64
	target string
}

// Scene is a copy of what the front-end needs to draw a frame.
type Scene struct {
	Tick       int64
	Setting    string
	Mode       int64
	Background string
	Bitmaps    []Bitmap
	Exits      []Exit
	Inventory  []string
}

// state is owned by the Engine and guarded by its mutex. Builtins touch it
// only while a setting runs inside Tick, with the mutex already held.
type state struct {
	tick       int64
	setting    string // setting that ran last
	pending    string // setting to run on the next tick
	mode       int64
	background string
	bitmaps    []Bitmap
	exits      []Exit
	inventory  []string
	timers     []timer
	quit       bool
}

// enterScene drops everything that belongs to the previous setting.
// The background stays until a setting replaces it.
func (s *state) enterScene(name string) {
	s.setting = name
	s.exits = nil
	s.bitmaps = nil
	s.timers = nil
}

// dueTimers removes the timers that are due at the current tick and returns
// their targets in the order they were scheduled.
func (s *state) dueTimers() []string {
	var fired []string
	kept := s.timers[:0]
	for _, t := range s.timers {
		if t.due <= s.tick {
			fired = append(fired, t.target)
		} else {
			kept = append(kept, t)
		}
	}
	s.timers = kept
	return fired
}

func (s *state) addItem(item string) bool {
	if slices.Contains(s.inventory, item) {
		return false
	}
	s.inventory = append(s.inventory, item)
	return true
}

func (s *state) removeItem(item string) bool {
	i := slices.Index(s.inventory, item)
	if i < 0 {
		return false
	}
	s.inventory = slices.Delete(s.inventory, i, i+1)
	return true
}

// exitAt returns the first exit whose area contains p. Exits registered
// earlier win over later ones.
func (s *state) exitAt(p image.Point) (Exit, bool) {
	for _, e := range s.exits {
		if p.In(e.Area) {
			return e, true
		}
	}
	return Exit{}, false
}

func (s *state) scene() Scene {
	return Scene{
		Tick:       s.tick,
		Setting:    s.setting,
		Mode:       s.mode,
		Background: s.background,
		Bitmaps:    slices.Clone(s.bitmaps),
		Exits:      slices.Clone(s.exits),
		Inventory:  slices.Clone(s.inventory),
	}
}
