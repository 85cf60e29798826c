package saga

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when a rendered description is not valid JSON.
var ErrInvalidJSON = errors.New("saga: invalid JSON")

// View is a queryable probe document. Paths use gjson syntax, e.g.
// "pipe.0.filters.1.method", or "pipe.0.filters.#.filterType" to collect a
// field across an array.
type View struct {
	doc gjson.Result
}

// ParseView returns a View over a document rendered by ProbeScope.JSON, for
// tooling that receives descriptions out of process.
func ParseView(raw []byte) (View, error) {
	if !gjson.ValidBytes(raw) {
		return View{}, ErrInvalidJSON
	}
	return View{doc: gjson.ParseBytes(raw)}, nil
}

// HasField reports whether path exists.
func (v View) HasField(path string) bool {
	return v.doc.Get(path).Exists()
}

// GetString returns the string at path. It reports false for missing
// paths and non-string values.
func (v View) GetString(path string) (string, bool) {
	r := v.doc.Get(path)
	if r.Type != gjson.String {
		return "", false
	}
	return r.Str, true
}

// GetBytes returns the raw JSON at path, quotes included for strings.
func (v View) GetBytes(path string) ([]byte, bool) {
	r := v.doc.Get(path)
	if !r.Exists() {
		return nil, false
	}
	return []byte(r.Raw), true
}

// Strings returns every string selected by path. Non-string values are
// skipped.
func (v View) Strings(path string) []string {
	var out []string
	r := v.doc.Get(path)
	if !r.IsArray() {
		if r.Type == gjson.String {
			out = append(out, r.Str)
		}
		return out
	}
	r.ForEach(func(_, item gjson.Result) bool {
		if item.Type == gjson.String {
			out = append(out, item.Str)
		}
		return true
	})
	return out
}
