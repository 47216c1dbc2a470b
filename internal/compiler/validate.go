package compiler

import (
	"fmt"
	"go/token"

	"github.com/roach88/genfut/internal/abi"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrNilModel = "E100" // nil model

	// Array type errors (E101-E109)
	ErrInvalidRank      = "E101" // rank must be >= 1
	ErrInvalidElement   = "E102" // element not in the element table
	ErrDuplicateArray   = "E103" // duplicate array type name
	ErrArrayNameMissing = "E104" // empty array type name

	// Entry point errors (E110-E119)
	ErrNoEntryPoints    = "E110" // at least one entry point required
	ErrContextNotFirst  = "E111" // first param must be the context
	ErrUnknownArrayRef  = "E112" // array param references unknown type
	ErrDuplicateEntry   = "E113" // duplicate entry point name
	ErrDuplicateParam   = "E114" // duplicate parameter name
	ErrInvalidEntryName = "E115" // entry name is not a C identifier
	ErrInvalidDirection = "E116" // unknown direction or kind
	ErrElementMismatch  = "E117" // array param element differs from its type
)

// ValidationError represents one model invariant violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a model against the ABI invariants.
// Returns all errors found (does not fail-fast).
func Validate(m *abi.Model) []ValidationError {
	if m == nil {
		return []ValidationError{{Field: "model", Message: "model is nil", Code: ErrNilModel}}
	}

	var errs []ValidationError
	arrays := make(map[string]abi.ArrayType, len(m.ArrayTypes))

	for i, a := range m.ArrayTypes {
		field := fmt.Sprintf("array_types[%d]", i)
		if a.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "array type name is required", Code: ErrArrayNameMissing})
		}
		if _, dup := arrays[a.Name]; dup {
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate array type: %q", a.Name), Code: ErrDuplicateArray})
		}
		arrays[a.Name] = a
		if a.Rank < 1 {
			errs = append(errs, ValidationError{Field: field + ".rank", Message: fmt.Sprintf("rank must be at least 1, got %d", a.Rank), Code: ErrInvalidRank})
		}
		if !a.Element.Valid() {
			errs = append(errs, ValidationError{Field: field + ".element", Message: fmt.Sprintf("unrecognized element type %q", a.Element), Code: ErrInvalidElement})
		}
	}

	if len(m.EntryPoints) == 0 {
		errs = append(errs, ValidationError{Field: "entry_points", Message: "at least one entry point is required", Code: ErrNoEntryPoints})
	}

	entries := make(map[string]bool, len(m.EntryPoints))
	for i, e := range m.EntryPoints {
		field := fmt.Sprintf("entry_points[%d]", i)
		if !isCIdent(e.Name) {
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("invalid entry point name %q", e.Name), Code: ErrInvalidEntryName})
		}
		if entries[e.Name] {
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate entry point: %q", e.Name), Code: ErrDuplicateEntry})
		}
		entries[e.Name] = true
		errs = append(errs, validateParams(field, e, arrays)...)
	}

	return errs
}

func validateParams(field string, e abi.EntryPoint, arrays map[string]abi.ArrayType) []ValidationError {
	var errs []ValidationError

	if len(e.Params) == 0 || e.Params[0].Kind != abi.KindContext {
		errs = append(errs, ValidationError{Field: field + ".params[0]", Message: fmt.Sprintf("entry point %q must take the context first", e.Name), Code: ErrContextNotFirst})
	}

	names := make(map[string]bool, len(e.Params))
	for j, p := range e.Params {
		pf := fmt.Sprintf("%s.params[%d]", field, j)
		if names[p.Name] {
			errs = append(errs, ValidationError{Field: pf + ".name", Message: fmt.Sprintf("duplicate parameter name %q", p.Name), Code: ErrDuplicateParam})
		}
		names[p.Name] = true

		if p.Direction != abi.In && p.Direction != abi.Out {
			errs = append(errs, ValidationError{Field: pf + ".direction", Message: fmt.Sprintf("invalid direction %q", p.Direction), Code: ErrInvalidDirection})
		}

		switch p.Kind {
		case abi.KindContext:
			if j != 0 {
				errs = append(errs, ValidationError{Field: pf, Message: "context parameter may only appear first", Code: ErrContextNotFirst})
			}
		case abi.KindScalar:
			if !p.Element.Valid() {
				errs = append(errs, ValidationError{Field: pf + ".element", Message: fmt.Sprintf("unrecognized element type %q", p.Element), Code: ErrInvalidElement})
			}
		case abi.KindArray:
			at, ok := arrays[p.ArrayType]
			if !ok {
				errs = append(errs, ValidationError{Field: pf + ".array_type", Message: fmt.Sprintf("unknown array type %q", p.ArrayType), Code: ErrUnknownArrayRef})
			} else if at.Element != p.Element {
				errs = append(errs, ValidationError{Field: pf + ".element", Message: fmt.Sprintf("element %q does not match array type %s (%s)", p.Element, at.Name, at.Element), Code: ErrElementMismatch})
			}
		default:
			errs = append(errs, ValidationError{Field: pf + ".kind", Message: fmt.Sprintf("invalid kind %q", p.Kind), Code: ErrInvalidDirection})
		}
	}
	return errs
}

// isCIdent reports whether s is a valid C identifier. Go's identifier rules
// are a superset for ASCII, so restrict to ASCII first.
func isCIdent(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return token.IsIdentifier(s) || (s != "" && token.Lookup(s).IsKeyword())
}
