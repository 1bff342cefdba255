package engine

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/zurustar/scenevm/pkg/builtin"
	"github.com/zurustar/scenevm/pkg/savegame"
	"github.com/zurustar/scenevm/pkg/symbol"
)

// ErrNoSaver is returned by SaveGame and LoadGame when saving is not configured.
var ErrNoSaver = errors.New("saving is not configured")

var none = symbol.Value{}

func (e *Engine) registerNatives() {
	r := e.natives
	r.RegisterWithArity("goto", 1, 1, e.builtinGoto)
	r.RegisterWithArity("ChgMode", 2, 2, e.builtinChgMode)
	r.RegisterWithArity("SetFlag", 2, 2, e.builtinSetFlag)
	r.RegisterWithArity("Timer", 2, 2, e.builtinTimer)
	r.RegisterWithArity("Exit", 3, 3, e.builtinExit)
	r.RegisterWithArity("Sound", 1, 1, e.builtinSound)
	r.RegisterWithArity("LoopedSound", 1, 1, e.builtinLoopedSound)
	r.RegisterWithArity("StopSound", 0, 0, e.builtinStopSound)
	r.RegisterWithArity("Background", 1, 1, e.builtinBackground)
	r.RegisterWithArity("Bitmap", 3, 3, e.builtinBitmap)
	r.RegisterWithArity("Inventory", 1, 1, e.builtinInventory)
	r.RegisterWithArity("RemoveInventory", 1, 1, e.builtinRemoveInventory)
	r.RegisterWithArity("HasInventory", 1, 1, e.builtinHasInventory)
	r.RegisterWithArity("SaveGame", 1, 1, e.builtinSaveGame)
	r.RegisterWithArity("LoadGame", 1, 1, e.builtinLoadGame)
	r.RegisterWithArity("Quit", 0, 0, e.builtinQuit)
}

// target resolves argument i to a setting of the loaded image.
func (e *Engine) target(args builtin.Args, i int) (string, error) {
	name, err := args.Setting(i)
	if err != nil {
		return "", err
	}
	if _, ok := e.image.Setting(name); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	return name, nil
}

// goto(setting)
func (e *Engine) builtinGoto(args builtin.Args) (symbol.Value, error) {
	name, err := e.target(args, 0)
	if err != nil {
		return none, err
	}
	e.state.pending = name
	return none, nil
}

// ChgMode(mode, setting)
func (e *Engine) builtinChgMode(args builtin.Args) (symbol.Value, error) {
	mode, err := args.Number(0)
	if err != nil {
		return none, err
	}
	name, err := e.target(args, 1)
	if err != nil {
		return none, err
	}
	e.log.Debug("mode changed", "from", e.state.mode, "to", mode)
	e.state.mode = mode
	e.state.pending = name
	return none, nil
}

// SetFlag(flag, value)
func (e *Engine) builtinSetFlag(args builtin.Args) (symbol.Value, error) {
	flag, err := args.Flag(0)
	if err != nil {
		return none, err
	}
	n, err := args.Number(1)
	if err != nil {
		return none, err
	}
	return none, flag.Set(symbol.Number(n))
}

// Timer(seconds, setting)
func (e *Engine) builtinTimer(args builtin.Args) (symbol.Value, error) {
	secs, err := args.Number(0)
	if err != nil {
		return none, err
	}
	if secs < 0 {
		return none, &builtin.ArgError{Index: 0, Want: "seconds >= 0", Got: fmt.Sprint(secs)}
	}
	name, err := e.target(args, 1)
	if err != nil {
		return none, err
	}
	due := e.state.tick + secs*int64(e.tps)
	e.state.timers = append(e.state.timers, timer{due: due, target: name})
	e.log.Debug("timer scheduled", "seconds", secs, "due", due, "target", name)
	return none, nil
}

// Exit(target, cursor, rect)
func (e *Engine) builtinExit(args builtin.Args) (symbol.Value, error) {
	name, err := e.target(args, 0)
	if err != nil {
		return none, err
	}
	cursor, err := args.String(1)
	if err != nil {
		return none, err
	}
	area, err := args.Rect(2)
	if err != nil {
		return none, err
	}
	e.state.exits = append(e.state.exits, Exit{Target: name, Cursor: cursor, Area: area})
	return none, nil
}

func (e *Engine) playSound(args builtin.Args, loop bool) (symbol.Value, error) {
	name, err := args.String(0)
	if err != nil {
		return none, err
	}
	if name == "" {
		e.sound.Stop()
		return none, nil
	}
	// 音が鳴らなくてもゲームは続行する
	if err := e.sound.Play(name, loop); err != nil {
		e.log.Warn("sound failed", "name", name, "error", err)
	}
	return none, nil
}

// Sound(name); an empty name stops all sound.
func (e *Engine) builtinSound(args builtin.Args) (symbol.Value, error) {
	return e.playSound(args, false)
}

// LoopedSound(name)
func (e *Engine) builtinLoopedSound(args builtin.Args) (symbol.Value, error) {
	return e.playSound(args, true)
}

// StopSound()
func (e *Engine) builtinStopSound(builtin.Args) (symbol.Value, error) {
	e.sound.Stop()
	return none, nil
}

// Background(name)
func (e *Engine) builtinBackground(args builtin.Args) (symbol.Value, error) {
	name, err := args.String(0)
	if err != nil {
		return none, err
	}
	e.state.background = name
	return none, nil
}

// Bitmap(name, x, y)
func (e *Engine) builtinBitmap(args builtin.Args) (symbol.Value, error) {
	name, err := args.String(0)
	if err != nil {
		return none, err
	}
	x, err := args.Number(1)
	if err != nil {
		return none, err
	}
	y, err := args.Number(2)
	if err != nil {
		return none, err
	}
	e.state.bitmaps = append(e.state.bitmaps, Bitmap{Name: name, At: image.Pt(int(x), int(y))})
	return none, nil
}

// Inventory(item)
func (e *Engine) builtinInventory(args builtin.Args) (symbol.Value, error) {
	item, err := args.String(0)
	if err != nil {
		return none, err
	}
	if !e.state.addItem(item) {
		e.log.Debug("item already held", "item", item)
	}
	return none, nil
}

// RemoveInventory(item)
func (e *Engine) builtinRemoveInventory(args builtin.Args) (symbol.Value, error) {
	item, err := args.String(0)
	if err != nil {
		return none, err
	}
	e.state.removeItem(item)
	return none, nil
}

// HasInventory(item) returns 1 when the item is held.
func (e *Engine) builtinHasInventory(args builtin.Args) (symbol.Value, error) {
	item, err := args.String(0)
	if err != nil {
		return none, err
	}
	return symbol.Bool(slices.Contains(e.state.inventory, item)), nil
}

func (e *Engine) slot(args builtin.Args) (int, error) {
	if e.saver == nil {
		return 0, ErrNoSaver
	}
	n, err := args.Number(0)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SaveGame(slot)
func (e *Engine) builtinSaveGame(args builtin.Args) (symbol.Value, error) {
	slot, err := e.slot(args)
	if err != nil {
		return none, err
	}
	snap := e.snapshot()
	if err := e.saver.Save(slot, snap); err != nil {
		return none, err
	}
	e.log.Info("game saved", "slot", slot, "setting", snap.Setting)
	return none, nil
}

// LoadGame(slot)
func (e *Engine) builtinLoadGame(args builtin.Args) (symbol.Value, error) {
	slot, err := e.slot(args)
	if err != nil {
		return none, err
	}
	snap, err := e.saver.Load(slot)
	if err != nil {
		return none, err
	}
	if err := e.restore(snap); err != nil {
		return none, err
	}
	e.log.Info("game loaded", "slot", slot, "setting", snap.Setting)
	return none, nil
}

// Quit()
func (e *Engine) builtinQuit(builtin.Args) (symbol.Value, error) {
	e.state.quit = true
	return none, nil
}

// snapshot captures the persistent state. Must be called with e.mu held.
func (e *Engine) snapshot() *savegame.Snapshot {
	flags := make(map[string]int64)
	for _, f := range e.image.Table.Flags() {
		flags[f.Name] = f.Value.Num
	}
	return &savegame.Snapshot{
		Version:   savegame.Version,
		Setting:   e.state.setting,
		Mode:      e.state.mode,
		Flags:     flags,
		Inventory: slices.Clone(e.state.inventory),
	}
}

// restore replaces the persistent state and schedules the saved setting.
// Must be called with e.mu held.
func (e *Engine) restore(snap *savegame.Snapshot) error {
	if _, ok := e.image.Setting(snap.Setting); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, snap.Setting)
	}

	table := e.image.Table
	table.ResetFlags()
	for name, v := range snap.Flags {
		sym, ok := table.Named(name)
		if !ok || sym.Kind != symbol.FlagSymbol {
			e.log.Warn("saved flag no longer exists", "flag", name)
			continue
		}
		if err := sym.Set(symbol.Number(v)); err != nil {
			return err
		}
	}
	e.state.mode = snap.Mode
	e.state.inventory = slices.Clone(snap.Inventory)
	e.state.pending = snap.Setting
	return nil
}
