package script

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/actionroute/internal/dispatcher/handler"
)

// luaHandler invokes a Lua function registered by a script.
type luaHandler struct {
	script *Script
	action string
	fn     *lua.LFunction
}

func (sc *Script) newHandler(action string, fn *lua.LFunction) *luaHandler {
	return &luaHandler{script: sc, action: action, fn: fn}
}

// Handle implements handler.Handler.
func (h *luaHandler) Handle(params handler.Params) (any, error) {
	st := h.script.state
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.closed {
		return nil, ErrStateClosed
	}

	ret, err := st.call(h.fn, 2, paramsTable(st.L, params))
	if err != nil {
		if errors.Is(err, ErrStateClosed) {
			return nil, err
		}
		return nil, h.fail(luaMessage(err).Error())
	}

	value, msg := ret[0], ret[1]
	if value == lua.LNil && msg != lua.LNil {
		return nil, h.fail(msg.String())
	}
	return toGo(value), nil
}

func (h *luaHandler) fail(msg string) error {
	return &HandlerError{Script: h.script.name, Action: h.action, Message: msg}
}

// Describe implements handler.Describer.
func (h *luaHandler) Describe() string {
	return fmt.Sprintf("lua:%s", h.script.name)
}
