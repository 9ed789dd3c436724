package wire

import (
	"fmt"
	"sync"

	"github.com/roach88/idlc/internal/value"
)

// PackFunc converts a value to its custom string carrier.
type PackFunc func(v value.Value) (string, error)

// ParseFunc converts a custom string carrier back to a value.
type ParseFunc func(s string) (value.Value, error)

// Hooks maps the function names of custom codec attributes
// (<format>.pack / <format>.parse) to implementations. Every format
// carries the custom representation as one string.
type Hooks struct {
	mu    sync.RWMutex
	pack  map[string]PackFunc
	parse map[string]ParseFunc
}

// NewHooks creates an empty registry.
func NewHooks() *Hooks {
	return &Hooks{
		pack:  make(map[string]PackFunc),
		parse: make(map[string]ParseFunc),
	}
}

// Register binds a pack function and a parse function.
func (h *Hooks) Register(packName string, pack PackFunc, parseName string, parse ParseFunc) *Hooks {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pack[packName] = pack
	h.parse[parseName] = parse
	return h
}

func (h *Hooks) packFunc(name string) (PackFunc, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.pack[name]
	if !ok {
		return nil, fmt.Errorf("no pack hook registered as %q", name)
	}
	return fn, nil
}

func (h *Hooks) parseFunc(name string) (ParseFunc, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.parse[name]
	if !ok {
		return nil, fmt.Errorf("no parse hook registered as %q", name)
	}
	return fn, nil
}
