// Package pipeline drives one generate run end to end.
//
// For every active backend, in processing order, the AOT compiler builds the
// kernel into lib_<backend>/, the header is scanned into an ABI model and the
// model is checked against the previous backend's. Once all backends agree,
// raw bindings are emitted per backend and the typed wrapper is synthesized
// once from the canonical model. Any failure aborts the run.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/genfut/internal/abi"
	"github.com/roach88/genfut/internal/aot"
	"github.com/roach88/genfut/internal/bindgen"
	"github.com/roach88/genfut/internal/compiler"
	"github.com/roach88/genfut/internal/config"
	"github.com/roach88/genfut/internal/header"
	"github.com/roach88/genfut/internal/layout"
	"github.com/roach88/genfut/internal/store"
	"github.com/roach88/genfut/internal/synth"
)

// Output file names at the library root.
const (
	VersionFile  = "futhark-version.txt"
	ManifestFile = "manifest.yaml"
)

// Ledger records runs. *store.Store implements it.
type Ledger interface {
	LatestRun(ctx context.Context, name string) (*store.Run, error)
	RecordRun(ctx context.Context, run store.Run) error
}

// Pipeline runs the generator for one configuration.
type Pipeline struct {
	cfg      config.Config
	compiler aot.Compiler
	bindings bindgen.Generator
	ledger   Ledger
	ids      store.RunIDGenerator
	now      func() time.Time
	logger   *zap.Logger
	stdout   io.Writer
	stderr   io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithCompiler replaces the futhark executable.
func WithCompiler(c aot.Compiler) Option {
	return func(p *Pipeline) { p.compiler = c }
}

// WithBindingGenerator replaces the raw binding generator.
func WithBindingGenerator(g bindgen.Generator) Option {
	return func(p *Pipeline) { p.bindings = g }
}

// WithLedger records runs in l instead of opening the configured ledger.
func WithLedger(l Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithRunIDs sets the run id generator.
func WithRunIDs(g store.RunIDGenerator) Option {
	return func(p *Pipeline) { p.ids = g }
}

// WithClock sets the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the logger. Defaults to Logger().
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithOutput sets where the default compiler replays each invocation's
// buffered output. Ignored when WithCompiler is given.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(p *Pipeline) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// New returns a pipeline for cfg.
func New(cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		bindings: bindgen.CgoGenerator{Verify: cfg.VerifyHeaders},
		ids:      store.UUIDv7Generator{},
		now:      time.Now,
		logger:   Logger(),
		stdout:   io.Discard,
		stderr:   io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.compiler == nil {
		p.compiler = aot.NewFuthark(cfg.Compiler,
			aot.WithLogger(p.logger),
			aot.WithOutput(p.stdout, p.stderr))
	}
	return p
}

// Result describes a completed run.
type Result struct {
	Root           string // library root directory
	Model          *abi.Model
	Fingerprint    string
	RunID          string // empty when the ledger is disabled
	FutharkVersion string
	Files          []string // written files, relative to Root
	Drift          *Drift
}

// Drift reports a canonical ABI that differs from the last recorded run of
// the same library.
type Drift struct {
	PreviousRun         string `json:"previous_run"`
	PreviousFingerprint string `json:"previous_fingerprint"`
}

// backendOutput is what one backend contributes to the run.
type backendOutput struct {
	backend    abi.Backend
	header     string
	headerHash string
	model      *abi.Model
}

// Run executes the pipeline.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := p.logger.With(zap.String("library", cfg.Name))

	w := layout.NewWriter(cfg.Out, cfg.Name)
	if err := w.MkdirAll(); err != nil {
		return nil, &Error{Kind: KindFilesystem, Op: "prepare output", Err: err}
	}
	if _, err := os.Stat(cfg.Kernel); err != nil {
		return nil, &Error{Kind: KindFilesystem, Op: "read kernel", Err: err}
	}

	res := &Result{Root: w.Root()}
	if !cfg.SkipCompile {
		version, err := p.prepareCompiler(ctx, w)
		if err != nil {
			return nil, err
		}
		res.FutharkVersion = version
		res.Files = append(res.Files, VersionFile)
	}

	var (
		eq      compiler.Equivalence
		outputs []backendOutput
	)
	for _, b := range cfg.Backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := p.processBackend(ctx, w, b)
		if err != nil {
			return nil, err
		}
		if err := eq.Add(out.model); err != nil {
			return nil, &Error{Kind: KindConsistency, Backend: b, Op: "check equivalence", Err: err}
		}
		log.Info("backend processed",
			zap.String("backend", string(b)),
			zap.Int("array_types", len(out.model.ArrayTypes)),
			zap.Int("entry_points", len(out.model.EntryPoints)))
		outputs = append(outputs, *out)
		res.Files = append(res.Files, filepath.Join(b.Dir(), "a.fut"))
	}
	res.Model = eq.Canonical()

	pkg := layout.PackageName(cfg.Name)
	for _, out := range outputs {
		src, err := p.bindings.Generate(ctx, bindgen.Request{
			Backend:    out.backend,
			Active:     cfg.Backends,
			Package:    pkg,
			Header:     out.header,
			IncludeDir: cfg.IncludeDir(out.backend),
		})
		if err != nil {
			return nil, &Error{Kind: bindingKind(err), Backend: out.backend, Op: "generate bindings", Err: err}
		}
		name := bindgen.FileName(out.backend)
		if err := w.WriteFile(name, src); err != nil {
			return nil, &Error{Kind: KindFilesystem, Backend: out.backend, Op: "write bindings", Err: err}
		}
		res.Files = append(res.Files, name)
	}

	project := p.project(pkg)
	files, err := synth.Synthesize(res.Model, synth.Options{Package: pkg, Module: project.Module})
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: "synthesize wrapper", Err: err}
	}
	boilerplate, err := layout.Boilerplate(project)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: "render boilerplate", Err: err}
	}
	for _, f := range append(files, boilerplate...) {
		if err := w.WriteFile(f.Name, f.Data); err != nil {
			return nil, &Error{Kind: KindFilesystem, Op: "write package", Err: err}
		}
		res.Files = append(res.Files, f.Name)
	}

	res.Fingerprint, err = abi.Fingerprint(res.Model)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: "fingerprint", Err: err}
	}

	ledger, closeLedger, err := p.openLedger()
	if err != nil {
		return nil, err
	}
	defer closeLedger()
	if ledger != nil {
		res.RunID = p.ids.Generate()
		drift, err := p.checkDrift(ctx, ledger, res.Fingerprint)
		if err != nil {
			return nil, err
		}
		res.Drift = drift
	}

	manifest, err := layout.MarshalManifest(project.NewManifest(res.Fingerprint, res.RunID, res.FutharkVersion))
	if err != nil {
		return nil, &Error{Kind: KindInternal, Op: "write manifest", Err: err}
	}
	if err := w.WriteFile(ManifestFile, manifest); err != nil {
		return nil, &Error{Kind: KindFilesystem, Op: "write manifest", Err: err}
	}
	res.Files = append(res.Files, ManifestFile)

	if ledger != nil {
		if err := ledger.RecordRun(ctx, p.run(res, outputs)); err != nil {
			return nil, &Error{Kind: KindLedger, Op: "record run", Err: err}
		}
	}

	log.Info("library generated",
		zap.String("root", res.Root),
		zap.String("fingerprint", res.Fingerprint),
		zap.Int("files", len(res.Files)))
	return res, nil
}

// prepareCompiler syncs the kernel's package dependencies and records the
// compiler version.
func (p *Pipeline) prepareCompiler(ctx context.Context, w *layout.Writer) (string, error) {
	if err := p.compiler.PkgSync(ctx, filepath.Dir(p.cfg.Kernel)); err != nil {
		return "", &Error{Kind: KindEnvironment, Op: "pkg sync", Err: err}
	}
	version, err := p.compiler.Version(ctx)
	if err != nil {
		return "", &Error{Kind: KindEnvironment, Op: "query compiler version", Err: err}
	}
	if err := w.WriteFile(VersionFile, []byte(version+"\n")); err != nil {
		return "", &Error{Kind: KindFilesystem, Op: "write compiler version", Err: err}
	}
	return version, nil
}

// processBackend compiles (unless skipped), copies the kernel and builds
// the backend's validated model.
func (p *Pipeline) processBackend(ctx context.Context, w *layout.Writer, b abi.Backend) (*backendOutput, error) {
	if err := w.MkdirAll(b.Dir()); err != nil {
		return nil, &Error{Kind: KindFilesystem, Backend: b, Op: "prepare output", Err: err}
	}

	result := aot.ResultFor(w.Path(b.Dir()))
	if !p.cfg.SkipCompile {
		var err error
		result, err = p.compiler.Compile(ctx, aot.Request{Backend: b, Kernel: p.cfg.Kernel, Dir: w.Path(b.Dir())})
		if err != nil {
			return nil, &Error{Kind: KindEnvironment, Backend: b, Op: "compile", Err: err}
		}
	}

	if err := w.CopyFile(p.cfg.Kernel, filepath.Join(b.Dir(), "a.fut")); err != nil {
		return nil, &Error{Kind: KindFilesystem, Backend: b, Op: "copy kernel", Err: err}
	}

	src, err := os.ReadFile(result.Header)
	if err != nil {
		return nil, &Error{Kind: KindFilesystem, Backend: b, Op: "read header", Err: err}
	}
	decls, err := header.Scan(result.Header, string(src))
	if err != nil {
		return nil, &Error{Kind: KindParse, Backend: b, Op: "scan header", Err: err}
	}
	m, err := compiler.BuildModel(b, decls)
	if err != nil {
		return nil, &Error{Kind: KindParse, Backend: b, Op: "build model", Err: err}
	}
	if verrs := compiler.Validate(m); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return nil, &Error{Kind: KindParse, Backend: b, Op: "validate model", Err: errors.Join(errs...)}
	}

	sum := sha256.Sum256(src)
	return &backendOutput{
		backend:    b,
		header:     result.Header,
		headerHash: hex.EncodeToString(sum[:]),
		model:      m,
	}, nil
}

func (p *Pipeline) project(pkg string) layout.Project {
	libDirs := make(map[abi.Backend]string, len(p.cfg.Backends))
	for _, b := range p.cfg.Backends {
		if dir := p.cfg.LibDir(b); dir != "" {
			libDirs[b] = dir
		}
	}
	return layout.Project{
		Name:        p.cfg.Name,
		Package:     pkg,
		Module:      p.cfg.ModulePath(),
		Kernel:      p.cfg.Kernel,
		Author:      p.cfg.Author,
		Version:     p.cfg.Version,
		License:     p.cfg.License,
		Description: p.cfg.Description,
		Backends:    p.cfg.Backends,
		LibDirs:     libDirs,
	}
}

// openLedger returns the ledger to record in, or nil when disabled.
func (p *Pipeline) openLedger() (Ledger, func(), error) {
	if p.ledger != nil {
		return p.ledger, func() {}, nil
	}
	if p.cfg.NoLedger {
		return nil, func() {}, nil
	}
	s, err := store.Open(p.cfg.Ledger)
	if err != nil {
		return nil, nil, &Error{Kind: KindLedger, Op: "open ledger", Err: err}
	}
	return s, func() {
		if err := s.Close(); err != nil {
			p.logger.Warn("closing ledger", zap.Error(err))
		}
	}, nil
}

func (p *Pipeline) checkDrift(ctx context.Context, ledger Ledger, fingerprint string) (*Drift, error) {
	prev, err := ledger.LatestRun(ctx, p.cfg.Name)
	if errors.Is(err, store.ErrRunNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Kind: KindLedger, Op: "read ledger", Err: err}
	}
	if prev.Fingerprint == fingerprint {
		return nil, nil
	}
	p.logger.Warn("ABI changed since last run",
		zap.String("library", p.cfg.Name),
		zap.String("previous_run", prev.ID),
		zap.String("previous_fingerprint", prev.Fingerprint),
		zap.String("fingerprint", fingerprint))
	return &Drift{PreviousRun: prev.ID, PreviousFingerprint: prev.Fingerprint}, nil
}

func (p *Pipeline) run(res *Result, outputs []backendOutput) store.Run {
	backends := make([]store.BackendRecord, len(outputs))
	for i, out := range outputs {
		backends[i] = store.BackendRecord{Backend: string(out.backend), HeaderSHA256: out.headerHash}
	}
	return store.Run{
		ID:               res.RunID,
		Name:             p.cfg.Name,
		Module:           p.cfg.ModulePath(),
		Kernel:           p.cfg.Kernel,
		Fingerprint:      res.Fingerprint,
		FutharkVersion:   res.FutharkVersion,
		GeneratorVersion: abi.GeneratorVersion,
		ArrayTypes:       len(res.Model.ArrayTypes),
		EntryPoints:      len(res.Model.EntryPoints),
		SkipCompile:      p.cfg.SkipCompile,
		CreatedAt:        p.now(),
		Backends:         backends,
	}
}

// bindingKind classifies a binding generator failure. A header the C front
// end rejects is a parse failure and a template that fails to render is a
// generator bug. Anything else, such as a host without a C toolchain to
// probe, is an environment failure.
func bindingKind(err error) Kind {
	var ve *bindgen.VerifyError
	if errors.As(err, &ve) {
		return KindParse
	}
	var re *bindgen.RenderError
	if errors.As(err, &re) {
		return KindInternal
	}
	return KindEnvironment
}
