package saga

import (
	"encoding/json"
	"maps"
)

// Prober describes itself into a ProbeScope without executing anything.
// Pipes, filters and registries are probers.
type Prober interface {
	Probe(s *ProbeScope)
}

// ProbeScope is a node in a pipeline description. Values are set with Add
// and child scopes are created with CreateScope; children sharing a key are
// rendered as an array in creation order.
type ProbeScope struct {
	values   map[string]any
	keys     []string
	children map[string][]*ProbeScope
}

// NewProbeScope returns an empty root scope.
func NewProbeScope() *ProbeScope {
	return &ProbeScope{
		values:   make(map[string]any),
		children: make(map[string][]*ProbeScope),
	}
}

// Probe renders p into a new root scope.
//
// Example:
//
//	doc, _ := saga.Probe(pipe).JSON()
//	fmt.Println(string(doc))
func Probe(p Prober) *ProbeScope {
	s := NewProbeScope()
	p.Probe(s)
	return s
}

// Add sets key to value, replacing any earlier value.
func (s *ProbeScope) Add(key string, value any) *ProbeScope {
	s.values[key] = value
	return s
}

// CreateScope appends a child scope under key.
func (s *ProbeScope) CreateScope(key string) *ProbeScope {
	child := NewProbeScope()
	if _, ok := s.children[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.children[key] = append(s.children[key], child)
	return child
}

// CreateFilterScope appends a child under "filters" tagged with filterType.
func (s *ProbeScope) CreateFilterScope(filterType string) *ProbeScope {
	return s.CreateScope("filters").Add("filterType", filterType)
}

// Value returns the value stored under key.
func (s *ProbeScope) Value(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Scopes returns the child scopes created under key.
func (s *ProbeScope) Scopes(key string) []*ProbeScope {
	return s.children[key]
}

// MarshalJSON renders the scope as a JSON object. Keys are sorted, so the
// output is stable for identical pipelines.
func (s *ProbeScope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.values)+len(s.keys))
	maps.Copy(out, s.values)
	for _, k := range s.keys {
		out[k] = s.children[k]
	}
	return json.Marshal(out)
}

// JSON renders the scope.
func (s *ProbeScope) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// View renders the scope and returns a queryable View over it.
func (s *ProbeScope) View() (View, error) {
	raw, err := s.JSON()
	if err != nil {
		return View{}, err
	}
	return ParseView(raw)
}
