package app

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tidwall/gjson"

	"github.com/dshills/actionroute/internal/dispatcher"
	"github.com/dshills/actionroute/internal/dispatcher/execctx"
	"github.com/dshills/actionroute/internal/dispatcher/handler"
)

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"id":[1],"action":"go","context":{"role":"admin"},"params":{"n":2,"tags":["a"]}}`))
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}
	want := Request{
		ID:      "[1]",
		Action:  "go",
		Context: execctx.JSON(`{"role":"admin"}`),
		Params:  handler.Params{"n": 2.0, "tags": []any{"a"}},
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Errorf("DecodeRequest() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	tests := []string{
		`[]`,
		`{"action": 3}`,
		`{"action": "a", "params": [1]}`,
		`{"action": "a", "context": 1}`,
		`not json`,
	}
	for _, in := range tests {
		if _, err := DecodeRequest([]byte(in)); !errors.Is(err, ErrBadRequest) {
			t.Errorf("DecodeRequest(%s) error = %v, want ErrBadRequest", in, err)
		}
	}
}

func TestEncodeResponse(t *testing.T) {
	tests := []struct {
		name   string
		result any
		err    error
		want   string
	}{
		{name: "nil result", want: `{"action":"a","result":null,"kind":"ok"}`},
		{name: "map result", result: map[string]any{"n": 1}, want: `{"action":"a","result":{"n":1},"kind":"ok"}`},
		{name: "cancelled", err: dispatcher.ErrActionCancelled, want: `{"action":"a","error":"dispatcher: action cancelled by hook","kind":"cancelled"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(EncodeResponse(Request{Action: "a"}, tt.result, tt.err))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("EncodeResponse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncodeResponseFallsBackToText(t *testing.T) {
	got := EncodeResponse(Request{Action: "a"}, make(chan int), nil)
	if r := gjson.GetBytes(got, "result"); r.Type != gjson.String || !strings.HasPrefix(r.String(), "0x") {
		t.Errorf("EncodeResponse() = %s, want the result rendered as text", got)
	}
	if k := gjson.GetBytes(got, "kind").String(); k != KindOK {
		t.Errorf("kind = %q, want ok", k)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, KindOK},
		{ErrBadRequest, KindBadRequest},
		{dispatcher.ErrInvalidAction, KindInvalidAction},
		{&dispatcher.InvalidDimensionError{Dimension: "x"}, KindInvalidDimension},
		{&dispatcher.HandlerNotFoundError{Action: "a"}, KindNotFound},
		{dispatcher.ErrActionCancelled, KindCancelled},
		{errors.New("boom"), KindHandlerError},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
