package app

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/actionroute/internal/dispatcher"
	"github.com/dshills/actionroute/internal/dispatcher/execctx"
	"github.com/dshills/actionroute/internal/dispatcher/handler"
)

// Response kinds reported by serve.
const (
	KindOK               = "ok"
	KindBadRequest       = "bad_request"
	KindInvalidAction    = "invalid_action"
	KindInvalidDimension = "invalid_dimension"
	KindNotFound         = "not_found"
	KindCancelled        = "cancelled"
	KindHandlerError     = "handler_error"
)

// Request is one decoded serve request.
type Request struct {
	// ID is the raw JSON id, echoed back verbatim. Empty when absent.
	ID      string
	Action  string
	Context any
	Params  handler.Params
}

// DecodeRequest decodes a request line:
//
//	{"id": 1, "action": "create_user", "context": {"role": "admin"}, "params": {"username": "alice"}}
//
// The context object is kept as an execctx.JSON so dimensions are read
// straight from the raw bytes.
func DecodeRequest(line []byte) (Request, error) {
	var req Request
	if !gjson.ValidBytes(line) {
		return req, fmt.Errorf("%w: invalid JSON", ErrBadRequest)
	}
	root := gjson.ParseBytes(line)
	if !root.IsObject() {
		return req, fmt.Errorf("%w: request must be a JSON object", ErrBadRequest)
	}

	if id := root.Get("id"); id.Exists() {
		req.ID = id.Raw
	}

	action := root.Get("action")
	if action.Exists() && action.Type != gjson.String {
		return req, fmt.Errorf("%w: action must be a string", ErrBadRequest)
	}
	req.Action = action.String()

	switch ctx := root.Get("context"); {
	case !ctx.Exists() || ctx.Type == gjson.Null:
	case ctx.IsObject():
		req.Context = execctx.JSON(ctx.Raw)
	default:
		return req, fmt.Errorf("%w: context must be an object", ErrBadRequest)
	}

	switch params := root.Get("params"); {
	case !params.Exists() || params.Type == gjson.Null:
	case params.IsObject():
		req.Params = handler.Params(params.Value().(map[string]any))
	default:
		return req, fmt.Errorf("%w: params must be an object", ErrBadRequest)
	}

	return req, nil
}

// EncodeResponse renders the response line for a dispatch outcome.
func EncodeResponse(req Request, result any, err error) []byte {
	out := []byte(`{}`)
	if req.ID != "" {
		out, _ = sjson.SetRawBytes(out, "id", []byte(req.ID))
	}
	out, _ = sjson.SetBytes(out, "action", req.Action)

	if err != nil {
		out, _ = sjson.SetBytes(out, "error", err.Error())
		out, _ = sjson.SetBytes(out, "kind", ErrorKind(err))
		return out
	}

	withResult, serr := sjson.SetBytes(out, "result", result)
	if serr != nil {
		withResult, _ = sjson.SetBytes(out, "result", fmt.Sprint(result))
	}
	out, _ = sjson.SetBytes(withResult, "kind", KindOK)
	return out
}

// ErrorKind classifies a dispatch error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	case errors.Is(err, dispatcher.ErrInvalidAction):
		return KindInvalidAction
	case errors.Is(err, dispatcher.ErrInvalidDimension):
		return KindInvalidDimension
	case errors.Is(err, dispatcher.ErrHandlerNotFound):
		return KindNotFound
	case errors.Is(err, dispatcher.ErrActionCancelled):
		return KindCancelled
	default:
		return KindHandlerError
	}
}
