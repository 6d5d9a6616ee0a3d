package lua

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// safeModules are the built-in modules require may return.
var safeModules = []string{"string", "table", "math"}

// Sandbox restricts Lua execution to safe operations and meters host calls.
type Sandbox struct {
	L *lua.LState

	instructionLimit int64
	instructionCount atomic.Int64
	exceeded         atomic.Bool

	output io.Writer

	mu      sync.RWMutex
	allowed map[string]bool
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState, instructionLimit int64, output io.Writer) *Sandbox {
	s := &Sandbox{
		L:                L,
		instructionLimit: instructionLimit,
		output:           output,
		allowed:          make(map[string]bool),
	}
	for _, name := range safeModules {
		s.allowed[name] = true
	}
	return s
}

// Install sets up the sandbox restrictions.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "module"} {
		s.L.SetGlobal(name, lua.LNil)
	}
	s.installSafePrint()
	s.installSafeRequire()
}

// installSafePrint routes print to the sandbox output.
func (s *Sandbox) installSafePrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		if s.output != nil {
			_, _ = io.WriteString(s.output, strings.Join(parts, "\t")+"\n")
		}
		return 0
	}))
}

// installSafeRequire clears the disk search paths and wraps require so
// only allowed modules resolve.
func (s *Sandbox) installSafeRequire() {
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	originalRequire := s.L.GetGlobal("require")
	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if !s.IsAllowed(name) {
			L.RaiseError("module %q is not available", name)
			return 0
		}
		L.Push(originalRequire)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return 1
	}))
}

// Allow lets require resolve name. The module itself must be preloaded.
func (s *Sandbox) Allow(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowed[name] = true
}

// IsAllowed reports whether require may load name.
func (s *Sandbox) IsAllowed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowed[name]
}

// ResetInstructionCount resets the counter before an execution.
func (s *Sandbox) ResetInstructionCount() {
	s.instructionCount.Store(0)
	s.exceeded.Store(false)
}

// InstructionCount returns the current instruction count.
func (s *Sandbox) InstructionCount() int64 {
	return s.instructionCount.Load()
}

// IncrementInstructions adds to the instruction count and returns true if limit exceeded.
func (s *Sandbox) IncrementInstructions(n int64) bool {
	count := s.instructionCount.Add(n)
	if s.instructionLimit <= 0 || count <= s.instructionLimit {
		return false
	}
	s.exceeded.Store(true)
	return true
}

// Charge meters a host call and raises a Lua error once the budget is
// spent. The error unwinds through pcall-free scripts to the State.
func (s *Sandbox) Charge(L *lua.LState, n int64) {
	if s.IncrementInstructions(n) {
		L.RaiseError("%s", ErrInstructionLimit.Error())
	}
}

// Exceeded reports whether the current execution ran out of budget.
func (s *Sandbox) Exceeded() bool {
	return s.exceeded.Load()
}
