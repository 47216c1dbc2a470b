package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/genfut/internal/abi"
	"github.com/roach88/genfut/internal/config"
	"github.com/roach88/genfut/internal/pipeline"
	"github.com/roach88/genfut/internal/testutil"
)

// WorkDir is the placeholder that replaces the scratch directory in traces.
const WorkDir = "$WORK"

// Result is the outcome of running one scenario.
type Result struct {
	// Trace lists the compiler invocations with the scratch directory
	// replaced by WorkDir.
	Trace []string

	// Model is the canonical model. Nil when the run failed.
	Model *abi.Model

	// Files are the written files relative to the library root, or nil
	// when the run failed.
	Files []string

	// Err is the pipeline failure, if any.
	Err error
}

// Kind names the failure kind, or "" for a successful run.
func (r *Result) Kind() string {
	if r.Err == nil {
		return ""
	}
	return pipeline.KindOf(r.Err).String()
}

// Harness runs scenarios in scratch directories.
type Harness struct {
	logger  *zap.Logger
	keepDir bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the pipeline. Defaults to a no-op
// logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// KeepWorkDir leaves scratch directories behind for inspection.
func KeepWorkDir() Option {
	return func(h *Harness) { h.keepDir = true }
}

// New returns a harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes s with a fresh harness.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	return New().Run(ctx, s)
}

// Run executes s. The returned error reports a harness failure; a pipeline
// failure is recorded in Result.Err.
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	work, err := os.MkdirTemp("", "genfut-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	if !h.keepDir {
		defer os.RemoveAll(work)
	}
	// The trace must not depend on symlinks in the temp path.
	if resolved, err := filepath.EvalSymlinks(work); err == nil {
		work = resolved
	}

	cfg, err := h.config(s, work)
	if err != nil {
		return nil, err
	}
	fc, err := h.compiler(s)
	if err != nil {
		return nil, err
	}

	clock := testutil.NewDeterministicClock()
	p := pipeline.New(cfg,
		pipeline.WithCompiler(fc),
		pipeline.WithRunIDs(testutil.NewSequentialRunIDs(s.Name)),
		pipeline.WithClock(clock.Now),
		pipeline.WithLogger(h.logger.With(zap.String("scenario", s.Name))),
	)

	res := &Result{}
	out, runErr := p.Run(ctx)
	for _, call := range fc.Calls {
		res.Trace = append(res.Trace, strings.ReplaceAll(call, work, WorkDir))
	}
	if runErr != nil {
		res.Err = runErr
		return res, nil
	}
	res.Model = out.Model
	res.Files = out.Files
	return res, nil
}

// config writes the kernel into work and builds the generation config.
func (h *Harness) config(s *Scenario, work string) (config.Config, error) {
	kernel := filepath.Join(work, "src", s.Kernel)
	if err := os.MkdirAll(filepath.Dir(kernel), 0o755); err != nil {
		return config.Config{}, err
	}
	if err := os.WriteFile(kernel, []byte("-- "+s.Name+"\n"), 0o644); err != nil {
		return config.Config{}, fmt.Errorf("failed to write kernel: %w", err)
	}

	cfg := config.Default()
	cfg.Name = s.Library
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(s.Kernel, filepath.Ext(s.Kernel))
	}
	cfg.Kernel = kernel
	cfg.Out = filepath.Join(work, "out")
	cfg.NoLedger = true
	cfg.SkipCompile = s.SkipCompile
	if err := cfg.SetBackends(s.Backends); err != nil {
		return config.Config{}, err
	}

	// With compilation skipped the headers must already be in place.
	if s.SkipCompile {
		for _, b := range cfg.Backends {
			src, err := h.header(s, b)
			if err != nil {
				return config.Config{}, err
			}
			dir := filepath.Join(cfg.Out, cfg.Name, b.Dir())
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return config.Config{}, err
			}
			if err := os.WriteFile(filepath.Join(dir, "a.h"), []byte(src), 0o644); err != nil {
				return config.Config{}, err
			}
		}
	}
	return cfg, nil
}

func (h *Harness) compiler(s *Scenario) (*testutil.FakeCompiler, error) {
	fc := testutil.NewFakeCompiler("")
	fc.Headers = make(map[abi.Backend]string, len(s.Backends))
	for _, name := range s.Backends {
		b := abi.Backend(name)
		src, err := h.header(s, b)
		if err != nil {
			return nil, err
		}
		fc.Headers[b] = src
	}
	for step, msg := range s.Fail {
		if b, err := abi.ParseBackend(step); err == nil {
			step = string(b)
		}
		fc.Fail[step] = errors.New(msg)
	}
	return fc, nil
}

func (h *Harness) header(s *Scenario, b abi.Backend) (string, error) {
	p, ok := s.HeaderPath(b)
	if !ok {
		return "", fmt.Errorf("scenario %s: no header for backend %s", s.Name, b)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("failed to read header: %w", err)
	}
	return string(data), nil
}

func validKind(name string) bool {
	for k := pipeline.KindInternal; k <= pipeline.KindLedger; k++ {
		if k.String() == name {
			return true
		}
	}
	return false
}
