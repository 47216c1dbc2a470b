package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/genfut/internal/abi"
	"github.com/roach88/genfut/internal/aot"
)

// FakeCompiler stands in for the futhark executable. Compile writes the
// configured header for the requested backend, plus an empty C source, to
// the request directory.
type FakeCompiler struct {
	Headers     map[abi.Backend]string
	VersionText string

	// Failures injected per step. Keys are "pkg sync", "version" or a
	// backend name.
	Fail map[string]error

	Calls []string
}

// NewFakeCompiler returns a fake that emits hdr for every backend.
func NewFakeCompiler(hdr string) *FakeCompiler {
	return &FakeCompiler{
		Headers: map[abi.Backend]string{
			abi.BackendC:      hdr,
			abi.BackendCUDA:   hdr,
			abi.BackendOpenCL: hdr,
		},
		VersionText: "Futhark 0.25.13",
		Fail:        map[string]error{},
	}
}

// PkgSync implements aot.Compiler.
func (f *FakeCompiler) PkgSync(_ context.Context, dir string) error {
	f.Calls = append(f.Calls, "pkg sync "+dir)
	return f.Fail["pkg sync"]
}

// Version implements aot.Compiler.
func (f *FakeCompiler) Version(context.Context) (string, error) {
	f.Calls = append(f.Calls, "--version")
	if err := f.Fail["version"]; err != nil {
		return "", err
	}
	return f.VersionText, nil
}

// Compile implements aot.Compiler.
func (f *FakeCompiler) Compile(_ context.Context, req aot.Request) (*aot.Result, error) {
	f.Calls = append(f.Calls, fmt.Sprintf("%s --library -o %s %s", req.Backend.Subcommand(), req.Prefix(), req.Kernel))
	if err := f.Fail[string(req.Backend)]; err != nil {
		return nil, err
	}
	hdr, ok := f.Headers[req.Backend]
	if !ok {
		return nil, fmt.Errorf("fake compiler: no header for %s", req.Backend)
	}
	res := aot.ResultFor(req.Dir)
	if err := os.MkdirAll(filepath.Dir(res.Header), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(res.Header, []byte(hdr), 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(res.Source, []byte("#include \"a.h\"\n"), 0o644); err != nil {
		return nil, err
	}
	return res, nil
}

var _ aot.Compiler = (*FakeCompiler)(nil)
