// Package engine is the reference host for compiled settings. It keeps the
// scene state (current setting, exits, inventory, timers, what to draw),
// provides the builtins scripts call, and runs at most one setting per tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zurustar/scenevm/pkg/builtin"
	"github.com/zurustar/scenevm/pkg/logger"
	"github.com/zurustar/scenevm/pkg/opcode"
	"github.com/zurustar/scenevm/pkg/vm"
)

// DefaultTicksPerSecond is the tick rate used when none is configured.
const DefaultTicksPerSecond = 60

var (
	// ErrTerminated is returned when the engine is terminated.
	ErrTerminated = errors.New("engine terminated")
	// ErrUnknownSetting is returned for a setting name the image does not hold.
	ErrUnknownSetting = errors.New("unknown setting")
	// ErrNotLoaded is returned when Start is called before Load.
	ErrNotLoaded = errors.New("no compiled image loaded")
)

// Engine drives compiled settings.
type Engine struct {
	natives *builtin.Registry
	image   *opcode.Image
	vm      *vm.VM

	sound SoundPlayer
	saver Saver
	log   *slog.Logger

	tps       int
	seed      int64
	headless  bool
	timeout   time.Duration
	startTime time.Time

	terminated atomic.Bool

	mu    sync.Mutex
	state state
}

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithSoundPlayer sets the sound collaborator. Without one sounds are ignored.
func WithSoundPlayer(p SoundPlayer) Option {
	return func(e *Engine) {
		e.sound = p
	}
}

// WithSaver sets the save game collaborator. Without one SaveGame and
// LoadGame fail.
func WithSaver(s Saver) Option {
	return func(e *Engine) {
		e.saver = s
	}
}

// WithTicksPerSecond sets the tick rate Timer and Run use.
func WithTicksPerSecond(tps int) Option {
	return func(e *Engine) {
		if tps > 0 {
			e.tps = tps
		}
	}
}

// WithSeed seeds random(N%). 0 seeds from the clock.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithHeadless makes the engine stop once nothing can happen without input.
func WithHeadless(headless bool) Option {
	return func(e *Engine) {
		e.headless = headless
	}
}

// WithTimeout terminates the engine after d. 0 means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New creates an engine with its builtins registered. Call Load before Start.
func New(opts ...Option) *Engine {
	e := &Engine{
		natives: builtin.NewRegistry(),
		sound:   nopSound{},
		log:     logger.GetLogger(),
		tps:     DefaultTicksPerSecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.registerNatives()
	return e
}

// Registry returns the builtins. The compiler uses it to check call arity.
func (e *Engine) Registry() *builtin.Registry {
	return e.natives
}

// Load installs a compiled image and resets the game state.
func (e *Engine) Load(img *opcode.Image) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.image = img
	e.vm = vm.New(img.Table, e.natives, vm.WithLogger(e.log), vm.WithSeed(e.seed))
	e.state = state{}
	e.log.Info("image loaded", "settings", len(img.Order), "symbols", img.Table.Len())
}

// Start schedules the first setting. An empty name starts the first setting
// in source order.
func (e *Engine) Start(setting string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.image == nil {
		return ErrNotLoaded
	}
	if setting == "" {
		if len(e.image.Order) == 0 {
			return fmt.Errorf("%w: image has no settings", ErrUnknownSetting)
		}
		setting = e.image.Order[0]
	}
	if _, ok := e.image.Setting(setting); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, setting)
	}

	e.state.pending = setting
	e.startTime = time.Now()
	e.terminated.Store(false)
	e.log.Info("engine started", "setting", setting, "tps", e.tps)
	return nil
}

// Terminate sets the termination flag.
func (e *Engine) Terminate() {
	if !e.terminated.Swap(true) {
		e.log.Info("engine termination requested")
	}
}

// IsTerminated returns whether the engine has been terminated.
func (e *Engine) IsTerminated() bool {
	return e.terminated.Load()
}

// CheckTermination reports whether the engine should stop, terminating it
// when the timeout has passed.
func (e *Engine) CheckTermination() bool {
	if e.terminated.Load() {
		return true
	}
	if e.timeout > 0 && !e.startTime.IsZero() {
		if elapsed := time.Since(e.startTime); elapsed >= e.timeout {
			e.log.Info("timeout exceeded", "elapsed", elapsed)
			e.Terminate()
			return true
		}
	}
	return false
}

// Tick advances the clock by one tick: due timers fire, and a pending
// setting, if any, runs to completion. A runtime error terminates the engine
// and is returned.
func (e *Engine) Tick() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.vm == nil {
		return ErrNotLoaded
	}
	if u, ok := e.sound.(updater); ok {
		u.Update()
	}

	e.state.tick++
	for _, target := range e.state.dueTimers() {
		e.log.Debug("timer fired", "tick", e.state.tick, "target", target)
		e.state.pending = target
	}

	if e.state.pending == "" {
		if e.headless && len(e.state.timers) == 0 {
			e.log.Info("nothing left to run without input")
			e.Terminate()
		}
		return nil
	}

	name := e.state.pending
	e.state.pending = ""
	prog, ok := e.image.Setting(name)
	if !ok {
		e.Terminate()
		return fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}

	e.state.enterScene(name)
	e.log.Info("entering setting", "setting", name, "tick", e.state.tick)
	if err := e.vm.Run(prog); err != nil {
		e.Terminate()
		return err
	}
	if e.state.quit {
		e.Terminate()
	}
	return nil
}

// Update performs one tick for a game loop. It returns ErrTerminated once the
// engine has stopped.
func (e *Engine) Update() error {
	if e.CheckTermination() {
		return ErrTerminated
	}
	if err := e.Tick(); err != nil {
		return err
	}
	if e.CheckTermination() {
		return ErrTerminated
	}
	return nil
}

// Run ticks at the configured rate until the engine terminates, the context
// is cancelled or a runtime error occurs. Termination is not an error.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(e.tps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := e.Update(); err != nil {
				if errors.Is(err, ErrTerminated) {
					return nil
				}
				return err
			}
		}
	}
}

// Click makes the target of the first exit under (x, y) pending. It reports
// whether an exit was hit.
func (e *Engine) Click(x, y int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	exit, ok := e.state.exitAt(image.Pt(x, y))
	if !ok {
		return false
	}
	e.log.Debug("exit clicked", "x", x, "y", y, "target", exit.Target)
	e.state.pending = exit.Target
	return true
}

// ExitAt returns the exit under (x, y).
func (e *Engine) ExitAt(x, y int) (Exit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.exitAt(image.Pt(x, y))
}

// Scene returns a copy of the drawable state.
func (e *Engine) Scene() Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.scene()
}

// Pending returns the setting that will run on the next tick, or "".
func (e *Engine) Pending() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.pending
}

// TicksPerSecond returns the configured tick rate.
func (e *Engine) TicksPerSecond() int {
	return e.tps
}

// Shutdown stops all sound.
func (e *Engine) Shutdown() {
	e.sound.Stop()
	e.log.Info("engine shutdown")
}
