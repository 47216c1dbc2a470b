package abi

import (
	"fmt"
	"strings"
)

// ContextType is the C type of the context parameter every entry point takes first.
const ContextType = "futhark_context"

// ArrayType describes one opaque N-dimensional array handle type.
type ArrayType struct {
	Name    string      `json:"name"`    // e.g. "futhark_i32_2d"
	Element ElementType `json:"element"` // element kind
	Rank    int         `json:"rank"`    // number of dimensions, >= 1
}

// Suffix returns the part of the name shared by the array's C functions,
// e.g. "i32_2d" for futhark_new_i32_2d.
func (a ArrayType) Suffix() string {
	return strings.TrimPrefix(a.Name, "futhark_")
}

// GoName returns the exported Go type name, e.g. "ArrayI32_2D".
func (a ArrayType) GoName() string {
	return fmt.Sprintf("Array%s_%dD", strings.ToUpper(string(a.Element[:1]))+string(a.Element[1:]), a.Rank)
}

// Direction is the data flow direction of a parameter.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// ParamKind classifies what a parameter refers to.
type ParamKind string

const (
	KindScalar  ParamKind = "scalar"
	KindArray   ParamKind = "array"
	KindContext ParamKind = "context"
)

// Param describes one classified entry point parameter.
type Param struct {
	Name      string      `json:"name"`
	Direction Direction   `json:"direction"`
	Kind      ParamKind   `json:"kind"`
	CType     string      `json:"c_type"`               // normalized C type text
	Element   ElementType `json:"element,omitempty"`    // scalars and arrays
	ArrayType string      `json:"array_type,omitempty"` // arrays only
}

// EntryPoint describes one exported entry point.
// Params[0] is always the context parameter.
type EntryPoint struct {
	Name   string  `json:"name"`
	Params []Param `json:"params"`
}

// UserParams returns the parameters after the context parameter.
func (e EntryPoint) UserParams() []Param {
	if len(e.Params) == 0 || e.Params[0].Kind != KindContext {
		return e.Params
	}
	return e.Params[1:]
}

// Inputs returns the in-parameters in order, excluding the context.
func (e EntryPoint) Inputs() []Param {
	return e.filter(In)
}

// Outputs returns the out-parameters in order.
func (e EntryPoint) Outputs() []Param {
	return e.filter(Out)
}

func (e EntryPoint) filter(d Direction) []Param {
	var out []Param
	for _, p := range e.UserParams() {
		if p.Direction == d {
			out = append(out, p)
		}
	}
	return out
}

// CName returns the raw C symbol of the entry point.
func (e EntryPoint) CName() string {
	return "futhark_entry_" + e.Name
}

// Model is the ABI of one backend's generated library.
type Model struct {
	Backend     Backend      `json:"backend"`
	ArrayTypes  []ArrayType  `json:"array_types"`
	EntryPoints []EntryPoint `json:"entry_points"`
}

// ArrayType looks up an array type by name.
func (m *Model) ArrayType(name string) (ArrayType, bool) {
	for _, a := range m.ArrayTypes {
		if a.Name == name {
			return a, true
		}
	}
	return ArrayType{}, false
}
