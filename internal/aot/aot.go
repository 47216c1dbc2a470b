// Package aot invokes the Futhark ahead-of-time compiler.
//
// Each invocation blocks until the subprocess exits. Its stdout and stderr
// are buffered and replayed to the configured writers afterwards, so output
// from consecutive backends never interleaves.
package aot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/genfut/internal/abi"
)

// DefaultTool is the compiler executable looked up on PATH.
const DefaultTool = "futhark"

// Compiler is the interface the pipeline uses to drive the AOT compiler.
type Compiler interface {
	// PkgSync fetches the kernel's package dependencies in dir.
	PkgSync(ctx context.Context, dir string) error
	// Version returns the compiler's --version output.
	Version(ctx context.Context) (string, error)
	// Compile builds one backend library and returns the produced files.
	Compile(ctx context.Context, req Request) (*Result, error)
}

// Request describes one backend compilation.
type Request struct {
	Backend abi.Backend
	Kernel  string // path to the .fut source
	Dir     string // output directory, normally <out>/lib_<backend>
}

// Prefix is the output prefix passed to -o; the compiler appends .h and .c.
func (r Request) Prefix() string {
	return filepath.Join(r.Dir, "a")
}

// Result holds the paths the compiler produced.
type Result struct {
	Header string
	Source string
}

// ResultFor returns the conventional output paths under dir.
func ResultFor(dir string) *Result {
	return &Result{
		Header: filepath.Join(dir, "a.h"),
		Source: filepath.Join(dir, "a.c"),
	}
}

// ExecError reports a compiler invocation that could not start or exited
// with a non-zero status.
type ExecError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += "\n" + strings.TrimRight(e.Stderr, "\n")
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// NotFound reports whether the tool could not be located.
func (e *ExecError) NotFound() bool {
	return errors.Is(e.Err, exec.ErrNotFound)
}

// Futhark runs the real futhark executable.
type Futhark struct {
	tool   string
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

// Option configures a Futhark compiler.
type Option func(*Futhark)

// WithOutput sets where buffered subprocess output is replayed.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(f *Futhark) {
		f.stdout = stdout
		f.stderr = stderr
	}
}

// WithLogger sets the logger for invocation tracing.
func WithLogger(l *zap.Logger) Option {
	return func(f *Futhark) { f.logger = l }
}

// NewFuthark returns a compiler that runs tool, or DefaultTool if empty.
func NewFuthark(tool string, opts ...Option) *Futhark {
	if tool == "" {
		tool = DefaultTool
	}
	f := &Futhark{
		tool:   tool,
		stdout: io.Discard,
		stderr: io.Discard,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PkgSync runs "futhark pkg sync" in dir.
func (f *Futhark) PkgSync(ctx context.Context, dir string) error {
	_, err := f.run(ctx, dir, "pkg", "sync")
	return err
}

// Version runs "futhark --version" and returns its trimmed stdout.
func (f *Futhark) Version(ctx context.Context) (string, error) {
	out, err := f.run(ctx, "", "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Compile runs "futhark <subcommand> --library -o <dir>/a <kernel>".
func (f *Futhark) Compile(ctx context.Context, req Request) (*Result, error) {
	sub := req.Backend.Subcommand()
	if sub == "" {
		return nil, fmt.Errorf("compile: unknown backend %q", req.Backend)
	}
	if _, err := f.run(ctx, "", sub, "--library", "-o", req.Prefix(), req.Kernel); err != nil {
		return nil, err
	}
	return ResultFor(req.Dir), nil
}

// run executes the tool, replays its output and returns stdout.
func (f *Futhark) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, f.tool, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.logger.Debug("running compiler", zap.String("tool", f.tool), zap.Strings("args", args), zap.String("dir", dir))
	err := cmd.Run()

	// Replay after exit so consecutive invocations never interleave.
	_, _ = f.stdout.Write(stdout.Bytes())
	_, _ = f.stderr.Write(stderr.Bytes())

	if err != nil {
		return nil, &ExecError{Tool: f.tool, Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}
