package synth

import (
	"fmt"

	"github.com/roach88/genfut/internal/abi"
)

// arrayView is the template data for one array type.
type arrayView struct {
	Name     string // futhark_i32_2d
	Suffix   string // i32_2d
	Rank     int
	GoName   string // ArrayI32_2D
	Backend  string // arrayI32_2DBackend
	CStruct  string // C.struct_futhark_i32_2d
	CElem    string // C.int32_t
	GoElem   string // int32
	Dims     []string
	RankWord string
}

// paramView is the template data for one entry point parameter.
type paramView struct {
	abi.Param
	GoName  string // Go parameter name, inputs only
	GoType  string
	Local   string // local holding the C value
	CgoType string // cgo spelling of the local's type
	Array  *arrayView
}

func (p paramView) IsArray() bool { return p.Kind == abi.KindArray }

// Arg is the expression passed to the C entry point.
func (p paramView) Arg() string {
	switch {
	case p.Direction == abi.Out:
		return "&" + p.Local
	case p.IsArray():
		return p.Local
	default:
		return fmt.Sprintf("%s(%s)", p.CgoType, p.GoName)
	}
}

// Result converts the out local to its Go value.
func (p paramView) Result() string {
	if p.IsArray() {
		return fmt.Sprintf("wrap%s(ctx, %s)", p.Array.GoName, p.Local)
	}
	return fmt.Sprintf("%s(%s)", p.GoType, p.Local)
}

// Zero is the zero value of the Go type.
func (p paramView) Zero() string {
	switch {
	case p.IsArray():
		return "nil"
	case p.Element == abi.Bool:
		return "false"
	default:
		return "0"
	}
}

// entryView is the template data for one entry point.
type entryView struct {
	Name    string // entry point name
	CName   string // futhark_entry_<name>
	GoName  string
	Params  []paramView // in header order, excluding the context
	Inputs  []paramView
	Outputs []paramView
}

// Results is the result list of the Go function.
func (e entryView) Results() string {
	if len(e.Outputs) == 0 {
		return "error"
	}
	s := "("
	for _, p := range e.Outputs {
		s += p.GoType + ", "
	}
	return s + "error)"
}

// Zeros is the comma-terminated list of zero results, e.g. "nil, 0, ".
func (e entryView) Zeros() string {
	var s string
	for _, p := range e.Outputs {
		s += p.Zero() + ", "
	}
	return s
}

// ArrayOutputs returns the out-parameters that hold array handles.
func (e entryView) ArrayOutputs() []paramView {
	var out []paramView
	for _, p := range e.Outputs {
		if p.IsArray() {
			out = append(out, p)
		}
	}
	return out
}

var rankWords = []string{"", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

func newArrayView(a abi.ArrayType) *arrayView {
	v := &arrayView{
		Name:     a.Name,
		Suffix:   a.Suffix(),
		Rank:     a.Rank,
		GoName:   a.GoName(),
		CStruct:  "C.struct_" + a.Name,
		CElem:    a.Element.CgoType(),
		GoElem:   a.Element.GoType(),
		RankWord: fmt.Sprintf("%d", a.Rank),
	}
	v.Backend = "a" + v.GoName[1:] + "Backend"
	if a.Rank < len(rankWords) {
		v.RankWord = rankWords[a.Rank]
	}
	for i := 0; i < a.Rank; i++ {
		v.Dims = append(v.Dims, fmt.Sprintf("dim%d", i))
	}
	return v
}

// reservedGoNames are package-level identifiers the generated package
// declares outside entries.go.
var reservedGoNames = []string{"Context", "NewContext"}

// localNames are identifiers generated entry functions declare themselves.
var localNames = []string{"ctx", "err", "status", "C", "fmt", "fut", "unsafe"}

func buildViews(m *abi.Model) ([]*arrayView, []entryView, error) {
	arrays := make([]*arrayView, 0, len(m.ArrayTypes))
	byName := make(map[string]*arrayView, len(m.ArrayTypes))
	pkg := newNamer(reservedGoNames...)
	for _, a := range m.ArrayTypes {
		v := newArrayView(a)
		pkg.used[v.GoName] = true
		pkg.used["New"+v.GoName] = true
		arrays = append(arrays, v)
		byName[a.Name] = v
	}

	entries := make([]entryView, 0, len(m.EntryPoints))
	for _, e := range m.EntryPoints {
		ev := entryView{
			Name:   e.Name,
			CName:  e.CName(),
			GoName: pkg.claim(exportedName(e.Name), "Entry"),
		}

		scope := newNamer(localNames...)
		ps := e.UserParams()
		ev.Params = make([]paramView, len(ps))
		for i, p := range ps {
			ev.Params[i].Param = p
			if p.Direction == abi.In {
				ev.Params[i].GoName = scope.claim(p.Name, "Arg")
			}
		}
		for i, p := range ps {
			pv := &ev.Params[i]
			pv.Local = scope.claim("c"+title.String(p.Name), "Val")
			switch p.Kind {
			case abi.KindArray:
				av, ok := byName[p.ArrayType]
				if !ok {
					return nil, nil, fmt.Errorf("entry point %s: parameter %s: unknown array type %s", e.Name, p.Name, p.ArrayType)
				}
				pv.Array = av
				pv.GoType = "*" + av.GoName
				pv.CgoType = "*" + av.CStruct
			case abi.KindScalar:
				pv.GoType = p.Element.GoType()
				pv.CgoType = p.Element.CgoType()
			default:
				return nil, nil, fmt.Errorf("entry point %s: parameter %s: unexpected kind %s", e.Name, p.Name, p.Kind)
			}
			if p.Direction == abi.In {
				ev.Inputs = append(ev.Inputs, *pv)
			} else {
				ev.Outputs = append(ev.Outputs, *pv)
			}
		}
		entries = append(entries, ev)
	}
	return arrays, entries, nil
}
