package handler_test

import (
	"errors"
	"testing"

	"github.com/dshills/actionroute/internal/dispatcher/handler"
)

func TestHandlerFunc(t *testing.T) {
	called := false
	fn := handler.NewHandlerFunc(func(params handler.Params) (any, error) {
		called = true
		return params.String("username"), nil
	})

	got, err := fn.Handle(handler.Params{"username": "john"})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !called {
		t.Error("expected handler func to be called")
	}
	if got != "john" {
		t.Errorf("Handle() = %v, want john", got)
	}
}

func TestHandlerFuncNil(t *testing.T) {
	fn := &handler.HandlerFunc{}
	if _, err := fn.Handle(nil); !errors.Is(err, handler.ErrNilFunc) {
		t.Errorf("expected ErrNilFunc, got %v", err)
	}
}

func TestHandlerFuncIdentity(t *testing.T) {
	f := func(handler.Params) (any, error) { return nil, nil }
	a := handler.NewHandlerFunc(f)
	b := handler.NewHandlerFunc(f)

	var ha, hb handler.Handler = a, b
	if ha == hb {
		t.Error("expected distinct handler values")
	}
	if ha != handler.Handler(a) {
		t.Error("expected handler to equal itself")
	}
}

func TestFailingPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := handler.Failing("test", boom).Handle(nil)
	if err != boom {
		t.Errorf("expected the exact error value, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		h    handler.Handler
		want string
	}{
		{"nil", nil, "<nil>"},
		{"func", handler.NewHandlerFunc(nil), "func"},
		{"named", handler.Static("manifest:routes.yaml#2", "ok"), "manifest:routes.yaml#2"},
		{"plain", plainHandler{}, "handler_test.plainHandler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.Describe(tt.h); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

type plainHandler struct{}

func (plainHandler) Handle(handler.Params) (any, error) { return nil, nil }

func TestNewParamsExplicitKeysWin(t *testing.T) {
	ctx := struct{ Role string }{"admin"}

	p := handler.NewParams(ctx, handler.Params{"username": "john"})
	if p.Context() != ctx {
		t.Errorf("Context() = %v, want %v", p.Context(), ctx)
	}
	if p.String("username") != "john" {
		t.Errorf("username = %q", p.String("username"))
	}

	p = handler.NewParams(ctx, handler.Params{handler.ContextKey: "override"})
	if p.Context() != "override" {
		t.Errorf("explicit context_object should win, got %v", p.Context())
	}
}

func TestParamsAccessors(t *testing.T) {
	p := handler.Params{
		"s":   "text",
		"i":   7,
		"i64": int64(8),
		"f":   9.0,
		"b":   true,
	}

	if p.String("s") != "text" || p.String("i") != "" {
		t.Error("String() mismatch")
	}
	if p.Int("i") != 7 || p.Int("i64") != 8 || p.Int("f") != 9 || p.Int("s") != 0 {
		t.Error("Int() mismatch")
	}
	if !p.Bool("b") || p.Bool("missing") {
		t.Error("Bool() mismatch")
	}

	var nilParams handler.Params
	if _, ok := nilParams.Get("x"); ok {
		t.Error("Get() on nil params reported a value")
	}
}
