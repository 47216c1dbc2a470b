package bindgen

import (
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"modernc.org/cc/v4"

	"github.com/roach88/genfut/internal/abi"
	"github.com/roach88/genfut/internal/testutil"
)

func generate(t *testing.T, g Generator, req Request) string {
	t.Helper()
	out, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	_, err = parser.ParseFile(token.NewFileSet(), FileName(req.Backend), out, parser.ParseComments)
	require.NoError(t, err, "bindings must parse:\n%s", out)
	return string(out)
}

func TestGenerateSingleBackend(t *testing.T) {
	src := generate(t, CgoGenerator{}, Request{
		Backend: abi.BackendC,
		Active:  []abi.Backend{abi.BackendC},
		Package: "kernel",
	})

	assert.NotContains(t, src, "//go:build", "a single backend needs no constraint")
	assert.Contains(t, src, "package kernel")
	assert.Contains(t, src, "// #cgo CFLAGS: -I${SRCDIR}/lib_sequential_c\n// #include \"a.h\"\nimport \"C\"")
}

func TestGenerateConstraints(t *testing.T) {
	active := []abi.Backend{abi.BackendC, abi.BackendCUDA, abi.BackendOpenCL}

	c := generate(t, CgoGenerator{}, Request{Backend: abi.BackendC, Active: active, Package: "kernel"})
	assert.Contains(t, c, "//go:build !futhark_cuda && !futhark_opencl\n")

	cuda := generate(t, CgoGenerator{}, Request{Backend: abi.BackendCUDA, Active: active, Package: "kernel", IncludeDir: "/opt/cuda/include"})
	assert.Contains(t, cuda, "//go:build futhark_cuda\n")
	assert.Contains(t, cuda, "// #cgo CFLAGS: -I${SRCDIR}/lib_cuda\n// #cgo CFLAGS: -I/opt/cuda/include\n")

	cl := generate(t, CgoGenerator{}, Request{Backend: abi.BackendOpenCL, Active: active, Package: "kernel", IncludeDir: "/usr/include"})
	assert.Contains(t, cl, "//go:build futhark_opencl\n")
	assert.Contains(t, cl, "// #cgo !darwin CFLAGS: -I/usr/include\n")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "bindings_cuda.go", FileName(abi.BackendCUDA))
}

func TestDeclarations(t *testing.T) {
	if _, err := cc.NewConfig("", ""); err != nil {
		t.Skipf("no host C compiler configuration: %v", err)
	}
	dir := t.TempDir()
	header := filepath.Join(dir, "a.h")
	require.NoError(t, os.WriteFile(header, []byte(testutil.MatmulHeader()), 0o644))

	fns, err := Declarations(header, "")
	require.NoError(t, err)
	assert.Contains(t, fns, "futhark_entry_matmul")
	assert.Contains(t, fns, "futhark_new_f32_2d")
	assert.Contains(t, fns, "futhark_context_new")
	assert.IsIncreasing(t, fns)

	src := generate(t, CgoGenerator{Verify: true}, Request{
		Backend: abi.BackendC,
		Active:  []abi.Backend{abi.BackendC},
		Package: "kernel",
		Header:  header,
	})
	assert.Contains(t, src, "// Raw declarations verified in lib_sequential_c/a.h:")
	assert.Contains(t, src, "//\tfuthark_entry_sum\n")
}

func TestDeclarationsMissingHeader(t *testing.T) {
	if _, err := cc.NewConfig("", ""); err != nil {
		t.Skipf("no host C compiler configuration: %v", err)
	}
	_, err := Declarations(filepath.Join(t.TempDir(), "missing.h"), "")
	var ve *VerifyError
	require.ErrorAs(t, err, &ve)
}
