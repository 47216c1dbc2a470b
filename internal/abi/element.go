package abi

import "fmt"

// ElementType is the element kind of a scalar or array value.
type ElementType string

// Supported element types.
const (
	I8   ElementType = "i8"
	I16  ElementType = "i16"
	I32  ElementType = "i32"
	I64  ElementType = "i64"
	U8   ElementType = "u8"
	U16  ElementType = "u16"
	U32  ElementType = "u32"
	U64  ElementType = "u64"
	F16  ElementType = "f16"
	F32  ElementType = "f32"
	F64  ElementType = "f64"
	Bool ElementType = "bool"
)

// elementInfo is one row of the element mapping table.
type elementInfo struct {
	ctype  string // C type used by the generated header
	gotype string // Go host type in generated code
	cgo    string // cgo spelling of ctype
}

// elementTable is authoritative: no implicit widening or truncation.
var elementTable = map[ElementType]elementInfo{
	I8:   {"int8_t", "int8", "C.int8_t"},
	I16:  {"int16_t", "int16", "C.int16_t"},
	I32:  {"int32_t", "int32", "C.int32_t"},
	I64:  {"int64_t", "int64", "C.int64_t"},
	U8:   {"uint8_t", "uint8", "C.uint8_t"},
	U16:  {"uint16_t", "uint16", "C.uint16_t"},
	U32:  {"uint32_t", "uint32", "C.uint32_t"},
	U64:  {"uint64_t", "uint64", "C.uint64_t"},
	F16:  {"uint16_t", "fut.Float16", "C.uint16_t"},
	F32:  {"float", "float32", "C.float"},
	F64:  {"double", "float64", "C.double"},
	Bool: {"bool", "bool", "C.bool"},
}

// elementOrder lists element types in table order.
var elementOrder = []ElementType{I8, I16, I32, I64, U8, U16, U32, U64, F16, F32, F64, Bool}

// Elements returns all supported element types in a stable order.
func Elements() []ElementType {
	out := make([]ElementType, len(elementOrder))
	copy(out, elementOrder)
	return out
}

// ParseElement maps an element token such as "i32" to its ElementType.
func ParseElement(token string) (ElementType, error) {
	e := ElementType(token)
	if _, ok := elementTable[e]; !ok {
		return "", fmt.Errorf("unrecognized element type %q", token)
	}
	return e, nil
}

// ElementForCType maps a scalar C type from a prototype to its ElementType.
// uint16_t always maps to U16: headers do not distinguish f16 scalars.
func ElementForCType(ctype string) (ElementType, bool) {
	for _, e := range elementOrder {
		if e == F16 {
			continue
		}
		if elementTable[e].ctype == ctype {
			return e, true
		}
	}
	return "", false
}

// Valid reports whether e is in the element table.
func (e ElementType) Valid() bool {
	_, ok := elementTable[e]
	return ok
}

// CType returns the C type of e.
func (e ElementType) CType() string { return elementTable[e].ctype }

// GoType returns the Go host type of e as spelled in generated code.
func (e ElementType) GoType() string { return elementTable[e].gotype }

// CgoType returns the cgo spelling of e's C type.
func (e ElementType) CgoType() string { return elementTable[e].cgo }
