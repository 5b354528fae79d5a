// Package input adapts platform input hooks into pointer and keyboard
// callbacks. Adapters never block inside a callback; they hand each raw event
// to the registered function and return.
package input

import "sync"

// Click is a pointer press.
type Click struct {
	Button string
	X      int
	Y      int
}

// Source is a platform input hook. Callbacks must be registered before Start.
// Stop blocks until no further callback can fire.
type Source interface {
	Name() string
	OnClick(func(Click))
	OnKeyPress(func(Key))
	OnKeyRelease(func(Key))
	Start() error
	Stop() error
}

// handlers stores registered callbacks for embedding in adapters.
type handlers struct {
	mu      sync.RWMutex
	click   func(Click)
	press   func(Key)
	release func(Key)
}

func (h *handlers) OnClick(fn func(Click)) {
	h.mu.Lock()
	h.click = fn
	h.mu.Unlock()
}

func (h *handlers) OnKeyPress(fn func(Key)) {
	h.mu.Lock()
	h.press = fn
	h.mu.Unlock()
}

func (h *handlers) OnKeyRelease(fn func(Key)) {
	h.mu.Lock()
	h.release = fn
	h.mu.Unlock()
}

func (h *handlers) emitClick(c Click) {
	h.mu.RLock()
	fn := h.click
	h.mu.RUnlock()
	if fn != nil {
		fn(c)
	}
}

func (h *handlers) emitPress(k Key) {
	h.mu.RLock()
	fn := h.press
	h.mu.RUnlock()
	if fn != nil {
		fn(k)
	}
}

func (h *handlers) emitRelease(k Key) {
	h.mu.RLock()
	fn := h.release
	h.mu.RUnlock()
	if fn != nil {
		fn(k)
	}
}
