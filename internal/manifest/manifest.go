// Package manifest loads static route declarations from YAML files.
//
//	routes:
//	  - action: create_user
//	    scope: {role: admin}
//	    respond: "admin create"
//	globals:
//	  - action: ping
//	    respond: pong
//
// Every entry registers a handler that returns its respond value, or one that
// fails with its error message.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/actionroute/internal/dispatcher/handler"
	"github.com/dshills/actionroute/internal/dispatcher/scope"
)

// ErrInvalid is wrapped by every manifest validation error.
var ErrInvalid = errors.New("manifest: invalid")

// Registrar receives manifest routes. *dispatcher.Dispatcher satisfies it.
type Registrar interface {
	Register(action string, h handler.Handler, s scope.Scope) error
	RegisterGlobal(action string, h handler.Handler) error
	Dimensions() scope.Dimensions
}

// Manifest is a parsed route manifest.
type Manifest struct {
	Path    string  `yaml:"-"`
	Routes  []Entry `yaml:"routes"`
	Globals []Entry `yaml:"globals"`
}

// Entry declares one route.
type Entry struct {
	Action  string            `yaml:"action"`
	Scope   map[string]string `yaml:"scope"`
	Respond yaml.Node         `yaml:"respond"`
	Error   string            `yaml:"error"`

	// Line is the entry's line in the source file.
	Line int `yaml:"-"`
}

var entryKeys = map[string]bool{"action": true, "scope": true, "respond": true, "error": true}

// UnmarshalYAML records the entry's line and rejects unknown keys.
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.MappingNode {
		for i := 0; i < len(value.Content)-1; i += 2 {
			if k := value.Content[i]; !entryKeys[k.Value] {
				return fmt.Errorf("line %d: unknown entry key %q", k.Line, k.Value)
			}
		}
	}
	type plain Entry
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*e = Entry(p)
	e.Line = value.Line
	return nil
}

// HasResponse reports whether the entry declares a respond value.
func (e *Entry) HasResponse() bool {
	return e.Respond.Kind != 0
}

// Response decodes the respond value.
func (e *Entry) Response() (any, error) {
	if !e.HasResponse() {
		return nil, nil
	}
	var v any
	if err := e.Respond.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// EntryError reports an invalid manifest entry.
type EntryError struct {
	Path    string
	Line    int
	Action  string
	Message string
}

// Error implements error.
func (e *EntryError) Error() string {
	return fmt.Sprintf("manifest %s:%d: %s: %s", e.Path, e.Line, e.Action, e.Message)
}

// Unwrap returns ErrInvalid.
func (e *EntryError) Unwrap() error {
	return ErrInvalid
}

// LoadFile reads and parses the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse parses manifest data. Unknown keys are rejected. name is used in
// error messages and handler descriptions.
func Parse(name string, data []byte) (*Manifest, error) {
	m := &Manifest{Path: name}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("manifest %s: %w", name, err)
	}
	m.Path = name

	for i := range m.Routes {
		if err := m.check(&m.Routes[i], false); err != nil {
			return nil, err
		}
	}
	for i := range m.Globals {
		if err := m.check(&m.Globals[i], true); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manifest) check(e *Entry, global bool) error {
	fail := func(msg string) error {
		return &EntryError{Path: m.Path, Line: e.Line, Action: e.Action, Message: msg}
	}
	switch {
	case e.Action == "":
		return fail("action must be provided")
	case e.HasResponse() && e.Error != "":
		return fail("respond and error are mutually exclusive")
	case !e.HasResponse() && e.Error == "":
		return fail("one of respond or error must be provided")
	case global && len(e.Scope) > 0:
		return fail("globals do not take a scope")
	}
	if _, err := e.Response(); err != nil {
		return fail(err.Error())
	}
	return nil
}

// Len returns the number of declared routes.
func (m *Manifest) Len() int {
	return len(m.Routes) + len(m.Globals)
}

// Apply registers every entry with r. Scopes are checked against r's
// dimensions first, so an invalid manifest registers nothing.
func (m *Manifest) Apply(r Registrar) error {
	dims := r.Dimensions()
	for i := range m.Routes {
		e := &m.Routes[i]
		if name, ok := dims.Unknown(e.Scope); ok {
			return &EntryError{
				Path:    m.Path,
				Line:    e.Line,
				Action:  e.Action,
				Message: fmt.Sprintf("invalid dimension %q (available: %v)", name, dims.Names()),
			}
		}
	}

	for i := range m.Globals {
		e := &m.Globals[i]
		if err := r.RegisterGlobal(e.Action, m.handler(e)); err != nil {
			return fmt.Errorf("manifest %s:%d: %w", m.Path, e.Line, err)
		}
	}
	for i := range m.Routes {
		e := &m.Routes[i]
		if err := r.Register(e.Action, m.handler(e), scope.Scope(e.Scope)); err != nil {
			return fmt.Errorf("manifest %s:%d: %w", m.Path, e.Line, err)
		}
	}
	return nil
}

func (m *Manifest) handler(e *Entry) handler.Handler {
	desc := fmt.Sprintf("manifest:%s:%d", m.Path, e.Line)
	if e.Error != "" {
		return handler.Failing(desc, errors.New(e.Error))
	}
	v, _ := e.Response()
	return handler.Static(desc, v)
}
