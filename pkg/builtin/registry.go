// Package builtin maps function names used in scripts to native handlers.
package builtin

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/zurustar/scenevm/pkg/logger"
	"github.com/zurustar/scenevm/pkg/symbol"
)

// ErrUnknownFunction is returned by Call for names nobody registered.
var ErrUnknownFunction = errors.New("unknown function")

// Handler implements one builtin. The returned value is pushed for the
// caller; handlers with nothing to report return symbol.Value{}, which is
// the number 0.
type Handler func(args Args) (symbol.Value, error)

// Variadic as a maximum means there is no upper bound on the argument count.
const Variadic = -1

type entry struct {
	handler Handler
	min     int
	max     int
}

// Registry is a name to handler table. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]entry
	log   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]entry),
		log:   logger.GetLogger(),
	}
}

// Register installs h under name with no argument-count constraint.
// A later registration of the same name replaces the earlier one.
func (r *Registry) Register(name string, h Handler) {
	r.RegisterWithArity(name, 0, Variadic, h)
}

// RegisterWithArity installs h under name. Calls with fewer than min or more
// than max arguments fail before h runs; max may be Variadic.
func (r *Registry) RegisterWithArity(name string, min, max int, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		r.log.Debug("builtin replaced", "function", name)
	}
	r.funcs[name] = entry{handler: h, min: min, max: max}
}

// Arity reports the declared argument range of name.
func (r *Registry) Arity(name string) (min, max int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.funcs[name]
	return e.min, e.max, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes the handler registered under name.
func (r *Registry) Call(name string, args Args) (symbol.Value, error) {
	r.mu.RLock()
	e, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return symbol.Value{}, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}

	if len(args) < e.min || (e.max != Variadic && len(args) > e.max) {
		return symbol.Value{}, &ArgError{Func: name, Index: -1, Want: countRange(e.min, e.max), Got: fmt.Sprintf("%d arguments", len(args))}
	}

	r.log.Debug("builtin call", "function", name, "args", args.Describe())
	v, err := e.handler(args)
	if err != nil {
		var ae *ArgError
		if errors.As(err, &ae) && ae.Func == "" {
			ae.Func = name
			return symbol.Value{}, err
		}
		return symbol.Value{}, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func countRange(min, max int) string {
	switch {
	case max == Variadic:
		return fmt.Sprintf("at least %d arguments", min)
	case min == max:
		return fmt.Sprintf("%d arguments", min)
	default:
		return fmt.Sprintf("%d to %d arguments", min, max)
	}
}
