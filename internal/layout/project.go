package layout

import (
	"bytes"
	"embed"
	"fmt"
	"go/token"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/roach88/genfut/internal/abi"
	"github.com/roach88/genfut/internal/synth"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("layout").Funcs(template.FuncMap{
	"comment": comment,
}).ParseFS(templateFS, "templates/*.tmpl"))

// GoVersion is the go directive written to generated go.mod files.
const GoVersion = "1.22"

// Project describes the generated package's metadata and link setup.
type Project struct {
	Name        string // library name, also the output directory
	Package     string // Go package name
	Module      string // Go module path
	Kernel      string // path to the kernel source
	Author      string
	Version     string
	License     string
	Description string
	Backends    []abi.Backend          // active backends, in processing order
	LibDirs     map[abi.Backend]string // accelerator library search paths
}

// Manifest is the manifest.yaml document.
type Manifest struct {
	Name           string   `yaml:"name"`
	Module         string   `yaml:"module"`
	Version        string   `yaml:"version"`
	Author         string   `yaml:"author"`
	License        string   `yaml:"license"`
	Description    string   `yaml:"description"`
	Backends       []string `yaml:"backends"`
	Fingerprint    string   `yaml:"abi_fingerprint"`
	RunID          string   `yaml:"run_id,omitempty"`
	FutharkVersion string   `yaml:"futhark_version,omitempty"`
	Generator      string   `yaml:"generator"`
}

// NewManifest fills a manifest from the project.
func (p Project) NewManifest(fingerprint, runID, futharkVersion string) Manifest {
	backends := make([]string, len(p.Backends))
	for i, b := range p.Backends {
		backends[i] = string(b)
	}
	return Manifest{
		Name:           p.Name,
		Module:         p.Module,
		Version:        p.Version,
		Author:         p.Author,
		License:        p.License,
		Description:    p.Description,
		Backends:       backends,
		Fingerprint:    fingerprint,
		RunID:          runID,
		FutharkVersion: futharkVersion,
		Generator:      "genfut " + abi.GeneratorVersion,
	}
}

// MarshalManifest encodes m as YAML.
func MarshalManifest(m Manifest) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// LinkFileName returns the name of the file that compiles b's C source.
func LinkFileName(b abi.Backend) string {
	return "link_" + string(b) + ".go"
}

// Boilerplate renders go.mod, doc.go, context.go and one link file per
// backend. Go files are formatted.
func Boilerplate(p Project) ([]synth.File, error) {
	opts := synth.Options{Package: p.Package, Module: p.Module}
	base := map[string]any{
		"Version":        abi.GeneratorVersion,
		"Package":        p.Package,
		"Module":         p.Module,
		"Runtime":        abi.RuntimeImport,
		"RuntimeModule":  abi.RuntimeModule,
		"RuntimeVersion": abi.GeneratorVersion,
		"GoVersion":      GoVersion,
		"Name":           p.Name,
		"Kernel":         filepath.Base(p.Kernel),
		"Description":    p.Description,
		"LibVersion":     p.Version,
		"License":        p.License,
		"Author":         p.Author,
		"Backends":       p.Backends,
	}

	var files []synth.File
	mod, err := execute("go.mod.tmpl", base)
	if err != nil {
		return nil, err
	}
	files = append(files, synth.File{Name: "go.mod", Data: mod})

	for _, name := range []string{"doc.go", "context.go"} {
		f, err := renderGo(name, name+".tmpl", base, opts)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	for _, b := range p.Backends {
		data := map[string]any{
			"Version":    abi.GeneratorVersion,
			"Package":    p.Package,
			"Constraint": abi.BuildConstraint(p.Backends, b),
			"Dir":        b.Dir(),
			"LDFlags":    linkFlags(b, p.LibDirs[b]),
		}
		f, err := renderGo(LinkFileName(b), "link.go.tmpl", data, opts)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// linkFlags returns the cgo directive bodies that link b's runtime
// libraries. The sequential backend only needs libm.
func linkFlags(b abi.Backend, libDir string) []string {
	search := ""
	if libDir != "" {
		search = "-L" + filepath.ToSlash(libDir) + " "
	}
	switch b {
	case abi.BackendCUDA:
		return []string{"LDFLAGS: " + search + "-lcuda -lnvrtc -lm"}
	case abi.BackendOpenCL:
		return []string{
			"!darwin LDFLAGS: " + search + "-lOpenCL -lm",
			"darwin LDFLAGS: -framework OpenCL",
		}
	default:
		return []string{"LDFLAGS: -lm"}
	}
}

func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", strings.TrimSuffix(name, ".tmpl"), err)
	}
	return buf.Bytes(), nil
}

func renderGo(file, tmpl string, data any, opts synth.Options) (synth.File, error) {
	src, err := execute(tmpl, data)
	if err != nil {
		return synth.File{}, err
	}
	formatted, err := synth.Format(src, opts)
	if err != nil {
		return synth.File{}, fmt.Errorf("format %s: %w", file, err)
	}
	return synth.File{Name: file, Data: formatted}, nil
}

// comment renders free text as // comment lines.
func comment(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "//"
	}
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		l = strings.TrimRight(l, " \t\r")
		if l == "" {
			lines[i] = "//"
		} else {
			lines[i] = "// " + l
		}
	}
	return strings.Join(lines, "\n")
}

// PackageName derives a Go package name from a library name:
// lower-cased, with characters other than letters and digits removed.
// Names that cannot be imported as a library package (empty, leading
// digit, a keyword, main) get a "lib" prefix.
func PackageName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	pkg := b.String()
	if pkg == "" || (pkg[0] >= '0' && pkg[0] <= '9') || token.IsKeyword(pkg) || pkg == "main" {
		pkg = "lib" + pkg
	}
	return pkg
}
