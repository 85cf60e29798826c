package saga

import "slices"

// Predicate tests a View. Tooling composes predicates to assert on pipeline
// topology, e.g. that an order pipe initiates on OrderSubmitted.
type Predicate func(v View) bool

// Match reports whether the predicate holds for v.
func (p Predicate) Match(v View) bool {
	return p(v)
}

// Match probes p and reports whether pred holds for the rendered
// description. Neither handlers nor continuations are invoked.
func Match(p Prober, pred Predicate) bool {
	v, err := Probe(p).View()
	if err != nil {
		return false
	}
	return pred(v)
}

// HasFields holds when every path exists.
func HasFields(paths ...string) Predicate {
	return func(v View) bool {
		for _, p := range paths {
			if !v.HasField(p) {
				return false
			}
		}
		return true
	}
}

// FieldEquals holds when path is a string equal to value.
func FieldEquals(path, value string) Predicate {
	return func(v View) bool {
		s, ok := v.GetString(path)
		return ok && s == value
	}
}

// Contains holds when any string selected by path equals value. Use it with
// "#" queries over filter arrays.
func Contains(path, value string) Predicate {
	return func(v View) bool {
		return slices.Contains(v.Strings(path), value)
	}
}

// And holds when all of ps hold. An empty And always holds.
func And(ps ...Predicate) Predicate {
	return func(v View) bool {
		for _, p := range ps {
			if !p(v) {
				return false
			}
		}
		return true
	}
}

// Or holds when any of ps holds.
func Or(ps ...Predicate) Predicate {
	return func(v View) bool {
		return slices.ContainsFunc(ps, func(p Predicate) bool { return p(v) })
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(v View) bool { return !p(v) }
}
