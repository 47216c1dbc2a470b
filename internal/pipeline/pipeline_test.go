package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genfut/internal/abi"
	"github.com/roach88/genfut/internal/bindgen"
	"github.com/roach88/genfut/internal/config"
	"github.com/roach88/genfut/internal/store"
	"github.com/roach88/genfut/internal/testutil"
)

// testConfig returns a config generating "matmul" into a temp directory
// with the ledger alongside.
func testConfig(t *testing.T, backends ...abi.Backend) config.Config {
	t.Helper()
	dir := t.TempDir()
	kernel := filepath.Join(dir, "src", "matmul.fut")
	require.NoError(t, os.MkdirAll(filepath.Dir(kernel), 0o755))
	require.NoError(t, os.WriteFile(kernel, []byte("entry matmul [n][m][p] (a: [n][m]f32) (b: [m][p]f32) = a\n"), 0o644))

	cfg := config.Default()
	cfg.Name = "matmul"
	cfg.Kernel = kernel
	cfg.Out = filepath.Join(dir, "out")
	cfg.Ledger = filepath.Join(dir, ".genfut", "ledger.db")
	if len(backends) > 0 {
		cfg.Backends = backends
	}
	return cfg
}

func newTestPipeline(cfg config.Config, fc *testutil.FakeCompiler, opts ...Option) *Pipeline {
	clock := testutil.NewDeterministicClock()
	base := []Option{
		WithCompiler(fc),
		WithRunIDs(testutil.NewSequentialRunIDs("")),
		WithClock(clock.Now),
	}
	return New(cfg, append(base, opts...)...)
}

func TestRun_GeneratesPackage(t *testing.T) {
	cfg := testConfig(t, abi.BackendC, abi.BackendCUDA)
	fc := testutil.NewFakeCompiler(testutil.MatmulHeader())

	res, err := newTestPipeline(cfg, fc).Run(context.Background())
	require.NoError(t, err)

	root := filepath.Join(cfg.Out, "matmul")
	assert.Equal(t, root, res.Root)
	assert.Equal(t, "Futhark 0.25.13", res.FutharkVersion)
	assert.Equal(t, "run-0001", res.RunID)
	assert.Nil(t, res.Drift)
	require.NotNil(t, res.Model)
	assert.Equal(t, abi.BackendC, res.Model.Backend, "first backend is canonical")
	assert.Len(t, res.Model.EntryPoints, 3)
	assert.Equal(t, abi.MustFingerprint(res.Model), res.Fingerprint)

	for _, name := range []string{
		VersionFile,
		"lib_sequential_c/a.h",
		"lib_sequential_c/a.c",
		"lib_sequential_c/a.fut",
		"lib_cuda/a.h",
		"lib_cuda/a.fut",
		"bindings_sequential_c.go",
		"bindings_cuda.go",
		"link_sequential_c.go",
		"link_cuda.go",
		"arrays.go",
		"entries.go",
		"context.go",
		"doc.go",
		"go.mod",
		ManifestFile,
	} {
		assert.FileExists(t, filepath.Join(root, name))
	}
	assert.Contains(t, res.Files, "entries.go")
	assert.Contains(t, res.Files, filepath.Join("lib_cuda", "a.fut"))

	version, err := os.ReadFile(filepath.Join(root, VersionFile))
	require.NoError(t, err)
	assert.Equal(t, "Futhark 0.25.13\n", string(version))

	manifest, err := os.ReadFile(filepath.Join(root, ManifestFile))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), "abi_fingerprint: ")
	assert.Contains(t, string(manifest), res.Fingerprint)
	assert.Contains(t, string(manifest), "run_id: run-0001")

	kernelDir := filepath.Dir(cfg.Kernel)
	require.Len(t, fc.Calls, 4)
	assert.Equal(t, "pkg sync "+kernelDir, fc.Calls[0])
	assert.Equal(t, "--version", fc.Calls[1])
	assert.True(t, strings.HasPrefix(fc.Calls[2], "c --library -o "))
	assert.True(t, strings.HasPrefix(fc.Calls[3], "cuda --library -o "))

	bindings, err := os.ReadFile(filepath.Join(root, "bindings_cuda.go"))
	require.NoError(t, err)
	assert.Contains(t, string(bindings), "//go:build futhark_cuda")
	assert.Contains(t, string(bindings), "-I/opt/cuda/include")
}

func TestRun_RecordsLedger(t *testing.T) {
	cfg := testConfig(t)
	fc := testutil.NewFakeCompiler(testutil.MatmulHeader())

	res, err := newTestPipeline(cfg, fc).Run(context.Background())
	require.NoError(t, err)

	s, err := store.Open(cfg.Ledger)
	require.NoError(t, err)
	defer s.Close()

	run, err := s.LatestRun(context.Background(), "matmul")
	require.NoError(t, err)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, res.Fingerprint, run.Fingerprint)
	assert.Equal(t, 2, run.ArrayTypes)
	assert.Equal(t, 3, run.EntryPoints)
	assert.True(t, testutil.Epoch.Equal(run.CreatedAt))
	require.Len(t, run.Backends, 1)
	assert.Equal(t, "sequential_c", run.Backends[0].Backend)
	assert.Len(t, run.Backends[0].HeaderSHA256, 64)
}

func TestRun_DetectsDrift(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	_, err := New(cfg, WithCompiler(testutil.NewFakeCompiler(testutil.AddHeader())),
		WithRunIDs(testutil.NewSequentialRunIDs("first"))).Run(ctx)
	require.NoError(t, err)

	same, err := New(cfg, WithCompiler(testutil.NewFakeCompiler(testutil.AddHeader())),
		WithRunIDs(testutil.NewSequentialRunIDs("second"))).Run(ctx)
	require.NoError(t, err)
	assert.Nil(t, same.Drift)

	changed, err := New(cfg, WithCompiler(testutil.NewFakeCompiler(testutil.MatmulHeader())),
		WithRunIDs(testutil.NewSequentialRunIDs("third"))).Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, changed.Drift)
	assert.Equal(t, "second-0001", changed.Drift.PreviousRun)
	assert.Equal(t, same.Fingerprint, changed.Drift.PreviousFingerprint)
}

func TestRun_NoLedger(t *testing.T) {
	cfg := testConfig(t)
	cfg.NoLedger = true
	fc := testutil.NewFakeCompiler(testutil.AddHeader())

	res, err := newTestPipeline(cfg, fc).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.RunID)
	assert.NoFileExists(t, cfg.Ledger)

	manifest, err := os.ReadFile(filepath.Join(res.Root, ManifestFile))
	require.NoError(t, err)
	assert.NotContains(t, string(manifest), "run_id")
}

func TestRun_ContextOnlyEntryNoArrays(t *testing.T) {
	cfg := testConfig(t)
	hdr := testutil.NewHeader().Entry("init", "").String()

	res, err := newTestPipeline(cfg, testutil.NewFakeCompiler(hdr)).Run(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(res.Root, "arrays.go"))
	assert.FileExists(t, filepath.Join(res.Root, "entries.go"))
}

func TestRun_ConsistencyMismatchAborts(t *testing.T) {
	cfg := testConfig(t, abi.BackendC, abi.BackendCUDA, abi.BackendOpenCL)
	fc := testutil.NewFakeCompiler(testutil.MatmulHeader())
	fc.Headers[abi.BackendCUDA] = testutil.AddHeader()

	_, err := newTestPipeline(cfg, fc).Run(context.Background())
	require.Error(t, err)

	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindConsistency, pe.Kind)
	assert.Equal(t, abi.BackendCUDA, pe.Backend)
	assert.Contains(t, err.Error(), "sequential_c")

	for _, call := range fc.Calls {
		assert.False(t, strings.HasPrefix(call, "opencl "), "processing stops at the mismatch")
	}
	root := filepath.Join(cfg.Out, "matmul")
	assert.NoFileExists(t, filepath.Join(root, "bindings_sequential_c.go"))
	assert.NoFileExists(t, filepath.Join(root, "entries.go"))
	assert.NoFileExists(t, cfg.Ledger)
}

func TestRun_ParseError(t *testing.T) {
	cfg := testConfig(t)
	fc := testutil.NewFakeCompiler("#pragma once\nstruct futhark_context;\n")

	_, err := newTestPipeline(cfg, fc).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
	assert.Contains(t, err.Error(), "scan header")
}

func TestRun_ModelError(t *testing.T) {
	cfg := testConfig(t)
	hdr := testutil.NewHeader().Entry("bad", "struct futhark_opaque_state *in0").String()

	_, err := newTestPipeline(cfg, testutil.NewFakeCompiler(hdr)).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindParse, KindOf(err))
}

func TestRun_CompilerFailures(t *testing.T) {
	tests := []struct {
		step string
		op   string
	}{
		{"pkg sync", "pkg sync"},
		{"version", "query compiler version"},
		{"sequential_c", "compile"},
	}
	for _, tt := range tests {
		t.Run(tt.step, func(t *testing.T) {
			cfg := testConfig(t)
			fc := testutil.NewFakeCompiler(testutil.AddHeader())
			fc.Fail[tt.step] = errors.New("exit status 1")

			_, err := newTestPipeline(cfg, fc).Run(context.Background())
			var pe *Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, KindEnvironment, pe.Kind)
			assert.Equal(t, tt.op, pe.Op)
		})
	}
}

// failingBindings is a binding generator that always returns err.
type failingBindings struct{ err error }

func (g failingBindings) Generate(context.Context, bindgen.Request) ([]byte, error) {
	return nil, g.err
}

func TestRun_BindingFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"rejected header", &bindgen.VerifyError{Header: "a.h", Err: errors.New("syntax error")}, KindParse},
		{"template", &bindgen.RenderError{File: "bindings_sequential_c.go", Err: errors.New("bad field")}, KindInternal},
		{"no host C compiler", &bindgen.ConfigError{Err: errors.New("exec: \"cc\": executable file not found")}, KindEnvironment},
		{"tool failure", errors.New("binding tool exited 127"), KindEnvironment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			fc := testutil.NewFakeCompiler(testutil.AddHeader())

			_, err := newTestPipeline(cfg, fc, WithBindingGenerator(failingBindings{tt.err})).Run(context.Background())
			var pe *Error
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, "generate bindings", pe.Op)
			assert.Equal(t, abi.BackendC, pe.Backend)
		})
	}
}

func TestRun_MissingKernel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Kernel = filepath.Join(t.TempDir(), "missing.fut")
	fc := testutil.NewFakeCompiler(testutil.AddHeader())

	_, err := newTestPipeline(cfg, fc).Run(context.Background())
	assert.Equal(t, KindFilesystem, KindOf(err))
	assert.Empty(t, fc.Calls)
}

func TestRun_SkipCompile(t *testing.T) {
	cfg := testConfig(t)
	cfg.SkipCompile = true
	hdr := filepath.Join(cfg.Out, "matmul", "lib_sequential_c", "a.h")
	require.NoError(t, os.MkdirAll(filepath.Dir(hdr), 0o755))
	require.NoError(t, os.WriteFile(hdr, []byte(testutil.MatmulHeader()), 0o644))
	fc := testutil.NewFakeCompiler("")

	res, err := newTestPipeline(cfg, fc).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fc.Calls)
	assert.Empty(t, res.FutharkVersion)
	assert.NoFileExists(t, filepath.Join(res.Root, VersionFile))
	assert.FileExists(t, filepath.Join(res.Root, "lib_sequential_c", "a.fut"))

	s, err := store.Open(cfg.Ledger)
	require.NoError(t, err)
	defer s.Close()
	run, err := s.LatestRun(context.Background(), "matmul")
	require.NoError(t, err)
	assert.True(t, run.SkipCompile)
}

func TestRun_SkipCompileMissingHeader(t *testing.T) {
	cfg := testConfig(t)
	cfg.SkipCompile = true

	_, err := newTestPipeline(cfg, testutil.NewFakeCompiler("")).Run(context.Background())
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindFilesystem, pe.Kind)
	assert.Equal(t, "read header", pe.Op)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Name = ""

	_, err := newTestPipeline(cfg, testutil.NewFakeCompiler("")).Run(context.Background())
	var ce *config.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "name", ce.Field)
}

type failingLedger struct {
	latestErr error
	recordErr error
}

func (l failingLedger) LatestRun(context.Context, string) (*store.Run, error) {
	if l.latestErr != nil {
		return nil, l.latestErr
	}
	return nil, store.ErrRunNotFound
}

func (l failingLedger) RecordRun(context.Context, store.Run) error { return l.recordErr }

func TestRun_LedgerFailures(t *testing.T) {
	for _, l := range []failingLedger{
		{latestErr: errors.New("disk I/O error")},
		{recordErr: errors.New("database is locked")},
	} {
		cfg := testConfig(t)
		_, err := newTestPipeline(cfg, testutil.NewFakeCompiler(testutil.AddHeader()), WithLedger(l)).Run(context.Background())
		assert.Equal(t, KindLedger, KindOf(err))
	}
}

func TestRun_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPipeline(cfg, testutil.NewFakeCompiler(testutil.AddHeader())).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
