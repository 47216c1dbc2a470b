package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/genfut/internal/abi"
	"github.com/roach88/genfut/internal/header"
)

// BuildModel turns scanned declarations into the ABI model of one backend.
//
// Array types get their rank from the name's _<digits>d suffix and their
// element from the remaining identifier. Entry point parameters are
// classified from their C type text:
//
//	struct T **x        out array
//	[const] struct T *x in array
//	[const] C x         in scalar
//	C *x                out scalar
//
// Anything else, including unknown element tokens and opaque types, is an error.
func BuildModel(backend abi.Backend, decls *header.Declarations) (*abi.Model, error) {
	m := &abi.Model{Backend: backend}

	for _, d := range decls.ArrayTypes {
		at, err := parseArrayType(d.Name)
		if err != nil {
			err.File, err.Line = decls.File, d.Line
			return nil, err
		}
		if _, dup := m.ArrayType(at.Name); dup {
			return nil, &CompileError{Field: "array", Message: fmt.Sprintf("duplicate array type %q", at.Name), File: decls.File, Line: d.Line}
		}
		m.ArrayTypes = append(m.ArrayTypes, at)
	}

	seen := make(map[string]bool, len(decls.EntryPoints))
	for _, d := range decls.EntryPoints {
		if seen[d.Name] {
			return nil, &CompileError{Field: "entry", Message: fmt.Sprintf("duplicate entry point %q", d.Name), File: decls.File, Line: d.Line}
		}
		seen[d.Name] = true

		ep, err := buildEntryPoint(m, d)
		if err != nil {
			err.File = decls.File
			return nil, err
		}
		m.EntryPoints = append(m.EntryPoints, *ep)
	}

	return m, nil
}

// parseArrayType decodes a name such as futhark_i32_2d.
func parseArrayType(name string) (abi.ArrayType, *CompileError) {
	prefix, digits, ok := header.SplitRankSuffix(name)
	if !ok {
		return abi.ArrayType{}, &CompileError{Field: "rank", Message: fmt.Sprintf("array type %q has no rank suffix", name)}
	}
	rank, err := strconv.Atoi(digits)
	if err != nil || rank < 1 {
		return abi.ArrayType{}, &CompileError{Field: "rank", Message: fmt.Sprintf("array type %q has invalid rank %q", name, digits)}
	}
	token := strings.TrimPrefix(prefix, "futhark_")
	elem, err := abi.ParseElement(token)
	if err != nil {
		return abi.ArrayType{}, &CompileError{Field: "element", Message: fmt.Sprintf("array type %q: %v", name, err)}
	}
	return abi.ArrayType{Name: name, Element: elem, Rank: rank}, nil
}

func buildEntryPoint(m *abi.Model, d header.EntryDecl) (*abi.EntryPoint, *CompileError) {
	ctx := paramShape(d.Context)
	ep := &abi.EntryPoint{
		Name: d.Name,
		Params: []abi.Param{{
			Name:      ctx.name,
			Direction: abi.In,
			Kind:      abi.KindContext,
			CType:     ctx.ctype(),
		}},
	}

	names := map[string]bool{ctx.name: true}
	for _, raw := range d.Params {
		p, err := classify(m, paramShape(raw))
		if err != nil {
			err.Line = raw.Line
			err.Message = fmt.Sprintf("entry point %q: parameter %q: %s", d.Name, raw.Text, err.Message)
			return nil, err
		}
		if names[p.Name] {
			return nil, &CompileError{Field: "param", Line: raw.Line, Message: fmt.Sprintf("entry point %q: duplicate parameter name %q", d.Name, p.Name)}
		}
		names[p.Name] = true
		ep.Params = append(ep.Params, p)
	}
	return ep, nil
}

// shape is the decoded form of [const] [struct] <type> [*]* <ident>.
type shape struct {
	isConst  bool
	isStruct bool
	typ      string
	stars    int
	name     string
}

func paramShape(raw header.RawParam) shape {
	var s shape
	toks := raw.Tokens
	i := 0
	if toks[i].Text == "const" {
		s.isConst = true
		i++
	}
	if toks[i].Text == "struct" {
		s.isStruct = true
		i++
	}
	s.typ = toks[i].Text
	for i++; i < len(toks) && toks[i].Kind == header.TokenStar; i++ {
		s.stars++
	}
	s.name = toks[len(toks)-1].Text
	return s
}

// ctype renders the normalized C type text, e.g. "const struct futhark_i32_1d *".
func (s shape) ctype() string {
	var b strings.Builder
	if s.isConst {
		b.WriteString("const ")
	}
	if s.isStruct {
		b.WriteString("struct ")
	}
	b.WriteString(s.typ)
	if s.stars > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Repeat("*", s.stars))
	}
	return b.String()
}

func classify(m *abi.Model, s shape) (abi.Param, *CompileError) {
	p := abi.Param{Name: s.name, CType: s.ctype()}

	if s.isStruct {
		if s.typ == abi.ContextType {
			return p, &CompileError{Field: "param", Message: "context parameter must come first and only once"}
		}
		at, ok := m.ArrayType(s.typ)
		if !ok {
			return p, &CompileError{Field: "param", Message: fmt.Sprintf("unrecognized opaque type %q", s.typ)}
		}
		p.Kind = abi.KindArray
		p.Element = at.Element
		p.ArrayType = at.Name
		switch {
		case s.stars == 2 && !s.isConst:
			p.Direction = abi.Out
		case s.stars == 1:
			p.Direction = abi.In
		default:
			return p, &CompileError{Field: "param", Message: fmt.Sprintf("array parameter must be %s * (in) or %s ** (out)", s.typ, s.typ)}
		}
		return p, nil
	}

	elem, ok := abi.ElementForCType(s.typ)
	if !ok {
		return p, &CompileError{Field: "element", Message: fmt.Sprintf("unrecognized scalar type %q", s.typ)}
	}
	p.Kind = abi.KindScalar
	p.Element = elem
	switch {
	case s.stars == 0:
		p.Direction = abi.In
	case s.stars == 1 && !s.isConst:
		p.Direction = abi.Out
	default:
		return p, &CompileError{Field: "param", Message: "scalar parameter must be a value (in) or a non-const single pointer (out)"}
	}
	return p, nil
}
