package handler

import (
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/personify-ai/chat-platform/internal/apperr"
)

// Registry maps named operations to their handlers. Operations are registered
// once at startup and dispatched by name; there is no runtime reflection.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]http.HandlerFunc
}

// NewRegistry creates an empty operation registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]http.HandlerFunc)}
}

// Register binds an operation name to a handler. Last registration wins.
func (reg *Registry) Register(name string, h http.HandlerFunc) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.ops[name] = h
}

// Operations returns the registered operation names, sorted.
func (reg *Registry) Operations() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.ops))
	for name := range reg.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch handles POST /api/v1/ops/{operation}.
func (reg *Registry) Dispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "operation")

	reg.mu.RLock()
	h, ok := reg.ops[name]
	reg.mu.RUnlock()

	if !ok {
		writeError(w, http.StatusNotFound, apperr.CodeValidation, "endpoint not found")
		return
	}
	h(w, r)
}
