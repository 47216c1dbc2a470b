// Package synth renders the typed Go wrapper files of a generated package
// from a canonical ABI model.
package synth

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"mvdan.cc/gofumpt/format"

	"github.com/roach88/genfut/internal/abi"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// DefaultLangVersion is the Go version generated code is formatted for.
const DefaultLangVersion = "go1.22"

// Options configures synthesis.
type Options struct {
	Package     string // Go package name of the generated library
	Module      string // module path, used for import grouping
	LangVersion string // defaults to DefaultLangVersion
}

// File is one rendered source file.
type File struct {
	Name string
	Data []byte
}

type fileData struct {
	Version  string
	Package  string
	Runtime  string
	Arrays   []*arrayView
	Entries  []entryView
	NeedsFmt bool
	NeedsFut bool
}

// Synthesize renders entries.go and, when the model declares array types,
// arrays.go. Output is formatted and deterministic for a given model.
func Synthesize(m *abi.Model, opts Options) ([]File, error) {
	if opts.Package == "" {
		return nil, fmt.Errorf("synthesize: package name is required")
	}
	arrays, entries, err := buildViews(m)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	data := fileData{
		Version: abi.GeneratorVersion,
		Package: opts.Package,
		Runtime: abi.RuntimeImport,
		Arrays:  arrays,
		Entries: entries,
	}
	for _, e := range entries {
		for _, p := range e.Inputs {
			if p.IsArray() {
				data.NeedsFmt = true
			}
		}
		for _, p := range e.Params {
			if p.Kind == abi.KindScalar && p.Element == abi.F16 {
				data.NeedsFut = true
			}
		}
	}

	var files []File
	if len(arrays) > 0 {
		f, err := render("arrays.go", data, opts)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	f, err := render("entries.go", data, opts)
	if err != nil {
		return nil, err
	}
	return append(files, f), nil
}

func render(name string, data fileData, opts Options) (File, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return File{}, fmt.Errorf("render %s: %w", name, err)
	}
	src, err := Format(buf.Bytes(), opts)
	if err != nil {
		return File{}, fmt.Errorf("render %s: %w", name, err)
	}
	return File{Name: name, Data: src}, nil
}

// Format formats Go source with gofumpt.
func Format(src []byte, opts Options) ([]byte, error) {
	lang := opts.LangVersion
	if lang == "" {
		lang = DefaultLangVersion
	}
	return format.Source(src, format.Options{LangVersion: lang, ModulePath: opts.Module})
}
