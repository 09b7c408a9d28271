package execctx

import (
	"github.com/tidwall/gjson"
)

// JSON is a dispatch context holding a raw JSON object. Dimension names are
// matched literally against top-level keys, so characters such as '.', '*'
// or '|' carry no path meaning.
type JSON []byte

// ParseJSON validates data and wraps it as a JSON context.
func ParseJSON(data []byte) (JSON, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, ErrNotObject
	}
	return JSON(data), nil
}

// DimensionValue implements DimensionSource. Missing, null, false, zero and
// empty values are not exposed; other values use their JSON text, with
// strings unquoted.
func (j JSON) DimensionValue(name string) (string, bool) {
	var (
		r     gjson.Result
		found bool
	)
	gjson.ParseBytes(j).ForEach(func(k, v gjson.Result) bool {
		if k.String() == name {
			r, found = v, true
			return false
		}
		return true
	})
	if !found || !truthy(r) {
		return "", false
	}
	return r.String(), true
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		if r.IsArray() {
			return len(r.Array()) > 0
		}
		return len(r.Map()) > 0
	}
	return true
}

// Value decodes the context into Go values (map[string]any for objects).
func (j JSON) Value() any {
	return gjson.ParseBytes(j).Value()
}
