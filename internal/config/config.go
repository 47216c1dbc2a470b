// Package config resolves the generator's settings.
//
// Settings are layered: built-in defaults, then an optional YAML or CUE
// file, then command-line flags. The result is validated once and treated
// as immutable by the pipeline.
package config

import (
	"fmt"
	"strings"

	"github.com/roach88/genfut/internal/abi"
	"github.com/roach88/genfut/internal/aot"
)

// Default values.
const (
	DefaultLicense     = "MIT"
	DefaultAuthor      = "Name <name@example.com>"
	DefaultVersion     = "0.1.0"
	DefaultDescription = "Go interface to Futhark library"
	DefaultOut         = "."
	DefaultLedger      = ".genfut/ledger.db"

	DefaultCUDAInclude   = "/opt/cuda/include"
	DefaultCUDALib       = "/opt/cuda/lib64"
	DefaultOpenCLInclude = "/usr/include"
	DefaultOpenCLLib     = "/usr/lib"
)

// Accelerator holds include and library search paths for one accelerator
// backend.
type Accelerator struct {
	Include string
	Lib     string
}

// Config is the resolved generator configuration.
type Config struct {
	Name        string // library name and output directory
	Kernel      string // path to the .fut source
	Module      string // Go module path; defaults to Name
	License     string
	Author      string
	Version     string
	Description string
	Backends    []abi.Backend
	CUDA        Accelerator
	OpenCL      Accelerator
	Out         string
	Compiler    string

	SkipCompile   bool // reuse headers already present under the output
	VerifyHeaders bool
	Ledger        string
	NoLedger      bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		License:     DefaultLicense,
		Author:      DefaultAuthor,
		Version:     DefaultVersion,
		Description: DefaultDescription,
		Backends:    []abi.Backend{abi.BackendC},
		CUDA:        Accelerator{Include: DefaultCUDAInclude, Lib: DefaultCUDALib},
		OpenCL:      Accelerator{Include: DefaultOpenCLInclude, Lib: DefaultOpenCLLib},
		Out:         DefaultOut,
		Compiler:    aot.DefaultTool,
		Ledger:      DefaultLedger,
	}
}

// ModulePath returns the Go module path of the generated package.
func (c Config) ModulePath() string {
	if c.Module != "" {
		return c.Module
	}
	return c.Name
}

// IncludeDir returns the system include directory for b, empty for the
// sequential backend.
func (c Config) IncludeDir(b abi.Backend) string {
	switch b {
	case abi.BackendCUDA:
		return c.CUDA.Include
	case abi.BackendOpenCL:
		return c.OpenCL.Include
	}
	return ""
}

// LibDir returns the library search directory for b, empty for the
// sequential backend.
func (c Config) LibDir(b abi.Backend) string {
	switch b {
	case abi.BackendCUDA:
		return c.CUDA.Lib
	case abi.BackendOpenCL:
		return c.OpenCL.Lib
	}
	return ""
}

// SetBackends parses names and stores them in processing order.
func (c *Config) SetBackends(names []string) error {
	bs := make([]abi.Backend, 0, len(names))
	for _, n := range names {
		b, err := abi.ParseBackend(n)
		if err != nil {
			return &Error{Field: "backends", Message: err.Error()}
		}
		bs = append(bs, b)
	}
	c.Backends = abi.OrderBackends(bs)
	return nil
}

// Validate checks that c is complete.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return &Error{Field: "name", Message: "library name is required"}
	case strings.ContainsAny(c.Name, `/\`):
		return &Error{Field: "name", Message: fmt.Sprintf("library name %q must not contain a path separator", c.Name)}
	case strings.TrimSpace(c.Kernel) == "":
		return &Error{Field: "kernel", Message: "kernel source path is required"}
	case len(c.Backends) == 0:
		return &Error{Field: "backends", Message: "at least one backend is required"}
	case c.Out == "":
		return &Error{Field: "out", Message: "output directory is required"}
	case !c.NoLedger && c.Ledger == "":
		return &Error{Field: "ledger", Message: "ledger path is required unless the ledger is disabled"}
	}
	for _, b := range c.Backends {
		if b.Subcommand() == "" {
			return &Error{Field: "backends", Message: fmt.Sprintf("unknown backend %q", b)}
		}
	}
	return nil
}

// Error reports an invalid configuration value or file.
type Error struct {
	File    string
	Line    int
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		if e.Message != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }
