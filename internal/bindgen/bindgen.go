// Package bindgen produces the raw cgo binding file for one backend.
//
// The raw bindings are deliberately thin: cgo itself translates the header,
// so the file only carries the build constraint, the compiler flags that
// locate the backend's header and system includes, and the #include. When
// verification is enabled the header is first translated with a real C
// front end and the declared futhark_ functions are listed in the file.
package bindgen

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/roach88/genfut/internal/abi"
)

// Generator produces the raw binding file for one backend.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// Request describes one binding file.
type Request struct {
	Backend    abi.Backend
	Active     []abi.Backend // all active backends, in processing order
	Package    string
	Header     string // path to lib_<backend>/a.h
	IncludeDir string // system include directory, empty for none
}

// FileName returns the name of the binding file for b.
func FileName(b abi.Backend) string {
	return "bindings_" + string(b) + ".go"
}

// RenderError reports a binding template that failed to execute.
type RenderError struct {
	File string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.File, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// CgoGenerator emits cgo preamble bindings.
type CgoGenerator struct {
	// Verify translates the header with a C front end before emitting.
	Verify bool
}

var bindingsTmpl = template.Must(template.New("bindings").Parse(`// Code generated by genfut {{.Version}}. DO NOT EDIT.

{{if .Constraint}}//go:build {{.Constraint}}

{{end}}package {{.Package}}

// #cgo CFLAGS: -I${SRCDIR}/{{.Dir}}
{{- range .IncludeFlags}}
// #cgo {{.}}
{{- end}}
// #include "a.h"
import "C"
{{if .Functions}}
// Raw declarations verified in {{.Dir}}/a.h:
//
{{- range .Functions}}
//	{{.}}
{{- end}}
{{end}}`))

type bindingsData struct {
	Version      string
	Constraint   string
	Package      string
	Dir          string
	IncludeFlags []string
	Functions    []string
}

// Generate implements Generator.
func (g CgoGenerator) Generate(ctx context.Context, req Request) ([]byte, error) {
	data := bindingsData{
		Version:    abi.GeneratorVersion,
		Constraint: abi.BuildConstraint(req.Active, req.Backend),
		Package:    req.Package,
		Dir:        req.Backend.Dir(),
	}
	if req.IncludeDir != "" {
		data.IncludeFlags = append(data.IncludeFlags, includeFlag(req.Backend, req.IncludeDir))
	}

	if g.Verify {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fns, err := Declarations(req.Header, req.IncludeDir)
		if err != nil {
			return nil, err
		}
		data.Functions = fns
	}

	var buf bytes.Buffer
	if err := bindingsTmpl.Execute(&buf, data); err != nil {
		return nil, &RenderError{File: FileName(req.Backend), Err: err}
	}
	return buf.Bytes(), nil
}

// includeFlag returns the cgo directive body adding dir to the include path.
// OpenCL on darwin comes from the system framework, so its include directory
// is skipped there.
func includeFlag(b abi.Backend, dir string) string {
	dir = filepath.ToSlash(dir)
	if b == abi.BackendOpenCL {
		return "!darwin CFLAGS: -I" + dir
	}
	return "CFLAGS: -I" + dir
}
