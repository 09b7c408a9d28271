package handler

// ContextKey is the Params key holding the dispatch context value.
const ContextKey = "context_object"

// Params is the single argument passed to a handler: the dispatch context
// under ContextKey merged with the caller's extra parameters.
type Params map[string]any

// NewParams merges {ContextKey: ctx} with extra. Keys present in extra win,
// including an explicit ContextKey.
func NewParams(ctx any, extra Params) Params {
	p := make(Params, len(extra)+1)
	p[ContextKey] = ctx
	for k, v := range extra {
		p[k] = v
	}
	return p
}

// Context returns the dispatch context value.
func (p Params) Context() any {
	return p[ContextKey]
}

// Get retrieves a parameter.
func (p Params) Get(key string) (any, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p[key]
	return v, ok
}

// String retrieves a string parameter, or "".
func (p Params) String(key string) string {
	if v, ok := p.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int retrieves an integer parameter, or 0.
func (p Params) Int(key string) int {
	if v, ok := p.Get(key); ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// Bool retrieves a boolean parameter, or false.
func (p Params) Bool(key string) bool {
	if v, ok := p.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}
