package api

import (
	"fmt"
	"slices"
	"sync"

	lua "github.com/yuin/gopher-lua"

	plua "github.com/dshills/piecebuf/internal/plugin/lua"
)

// AggregateModule is the require name of the table holding every module.
const AggregateModule = "piecebuf"

// Version is reported as piecebuf.version to scripts.
const Version = "1.0.0"

// Module represents a Lua API module that can be registered with the plugin system.
type Module interface {
	// Name returns the module name (e.g., "buf").
	Name() string

	// Functions returns the module's Lua functions by name.
	Functions() map[string]lua.LGFunction
}

// Registry manages API modules and their registration.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates a new API registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]Module),
	}
}

// Register adds a module to the registry.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if mod.Name() == AggregateModule {
		return fmt.Errorf("module name %q is reserved", mod.Name())
	}
	if _, exists := r.modules[mod.Name()]; exists {
		return fmt.Errorf("module %q already registered", mod.Name())
	}

	r.modules[mod.Name()] = mod
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mod, ok := r.modules[name]
	return mod, ok
}

// List returns all registered module names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// InjectAll installs every module into state, then the aggregate module.
func (r *Registry) InjectAll(state *plua.State) error {
	if state.IsClosed() {
		return plua.ErrStateClosed
	}

	names := r.List()
	for _, name := range names {
		mod, _ := r.Get(name)
		state.RegisterModule(name, mod.Functions())
	}

	state.PreloadModule(AggregateModule, func(L *lua.LState) int {
		tbl := L.NewTable()
		for _, name := range names {
			L.SetField(tbl, name, L.GetGlobal(name))
		}
		L.SetField(tbl, "version", lua.LString(Version))
		L.Push(tbl)
		return 1
	})
	return nil
}
