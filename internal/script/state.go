package script

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds a single load or handler call.
const DefaultTimeout = 5 * time.Second

// State wraps a sandboxed gopher-lua state.
//
// gopher-lua's LState is not goroutine-safe; every entry point takes mu, so a
// State can be shared by handlers dispatched from several goroutines.
type State struct {
	mu      sync.Mutex
	L       *lua.LState
	timeout time.Duration
	closed  bool
}

// NewState creates a sandboxed Lua state. A non-positive timeout disables the
// per-call deadline.
func NewState(timeout time.Duration) *State {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibraries(L)
	installSandbox(L)

	return &State{L: L, timeout: timeout}
}

// openSafeLibraries opens only libraries without file, process or debug access.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	return s.do(func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a chunk of Lua source.
func (s *State) DoString(code string) error {
	return s.do(func() error {
		return s.L.DoString(code)
	})
}

func (s *State) do(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	defer s.withDeadline()()
	return recovered(fn)
}

// call invokes fn with args and returns up to nret results. The state must
// be locked by the caller.
func (s *State) call(fn *lua.LFunction, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	if s.closed {
		return nil, ErrStateClosed
	}
	defer s.withDeadline()()

	top := s.L.GetTop()
	err := recovered(func() error {
		return s.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...)
	})
	if err != nil {
		s.L.SetTop(top)
		return nil, err
	}

	out := make([]lua.LValue, nret)
	for i := 0; i < nret; i++ {
		out[i] = s.L.Get(top + i + 1)
	}
	s.L.SetTop(top)
	return out, nil
}

// withDeadline attaches the per-call timeout and returns its release func.
func (s *State) withDeadline() func() {
	if s.timeout <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.L.SetContext(ctx)
	return func() {
		s.L.RemoveContext()
		cancel()
	}
}

// Close releases the Lua state. Later calls fail with ErrStateClosed.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.L.Close()
}

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}
