package compiler

import (
	"fmt"
	"reflect"

	"github.com/roach88/genfut/internal/abi"
)

// MismatchError reports two backend models that disagree on the ABI.
type MismatchError struct {
	Previous abi.Backend
	Current  abi.Backend
	List     string // "array types" or "entry points"
	Index    int    // first differing position
	Detail   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("backends %s and %s disagree on %s at index %d: %s",
		e.Previous, e.Current, e.List, e.Index, e.Detail)
}

// Equivalence folds backend models one at a time, comparing each new model
// with the one added before it. The first model added is the canonical one.
type Equivalence struct {
	canonical *abi.Model
	previous  *abi.Model
}

// Add compares m with the previously added model. On mismatch the fold
// state is left unchanged.
func (q *Equivalence) Add(m *abi.Model) error {
	if q.previous != nil {
		if err := compareModels(q.previous, m); err != nil {
			return err
		}
	}
	if q.canonical == nil {
		q.canonical = m
	}
	q.previous = m
	return nil
}

// Canonical returns the first model added, or nil if none was.
func (q *Equivalence) Canonical() *abi.Model {
	return q.canonical
}

// CheckEquivalent folds models in order and returns the canonical one.
func CheckEquivalent(models ...*abi.Model) (*abi.Model, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("no models to compare")
	}
	var q Equivalence
	for _, m := range models {
		if err := q.Add(m); err != nil {
			return nil, err
		}
	}
	return q.Canonical(), nil
}

func compareModels(prev, cur *abi.Model) error {
	mismatch := func(list string, i int, format string, args ...any) error {
		return &MismatchError{
			Previous: prev.Backend,
			Current:  cur.Backend,
			List:     list,
			Index:    i,
			Detail:   fmt.Sprintf(format, args...),
		}
	}

	for i := 0; i < max(len(prev.ArrayTypes), len(cur.ArrayTypes)); i++ {
		switch {
		case i >= len(prev.ArrayTypes):
			return mismatch("array types", i, "%s declares extra array type %s", cur.Backend, cur.ArrayTypes[i].Name)
		case i >= len(cur.ArrayTypes):
			return mismatch("array types", i, "%s is missing array type %s", cur.Backend, prev.ArrayTypes[i].Name)
		case prev.ArrayTypes[i] != cur.ArrayTypes[i]:
			return mismatch("array types", i, "%s vs %s", describeArray(prev.ArrayTypes[i]), describeArray(cur.ArrayTypes[i]))
		}
	}

	for i := 0; i < max(len(prev.EntryPoints), len(cur.EntryPoints)); i++ {
		switch {
		case i >= len(prev.EntryPoints):
			return mismatch("entry points", i, "%s declares extra entry point %s", cur.Backend, cur.EntryPoints[i].Name)
		case i >= len(cur.EntryPoints):
			return mismatch("entry points", i, "%s is missing entry point %s", cur.Backend, prev.EntryPoints[i].Name)
		}
		a, b := prev.EntryPoints[i], cur.EntryPoints[i]
		if a.Name != b.Name {
			return mismatch("entry points", i, "entry point %s vs %s", a.Name, b.Name)
		}
		if !reflect.DeepEqual(a.Params, b.Params) {
			return mismatch("entry points", i, "entry point %s: %s", a.Name, paramDiff(a.Params, b.Params))
		}
	}
	return nil
}

func describeArray(a abi.ArrayType) string {
	return fmt.Sprintf("%s (%s, rank %d)", a.Name, a.Element, a.Rank)
}

func paramDiff(a, b []abi.Param) string {
	if len(a) != len(b) {
		return fmt.Sprintf("%d parameters vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			return fmt.Sprintf("parameter %d: %q (%s %s) vs %q (%s %s)",
				i, a[i].Name, a[i].Direction, a[i].CType, b[i].Name, b[i].Direction, b[i].CType)
		}
	}
	return "parameters differ"
}
