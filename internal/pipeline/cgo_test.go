package pipeline

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/genfut/internal/config"
	"github.com/roach88/genfut/internal/testutil"
)

// kernelHeader declares one array type and three entry points: a scalar
// add, an array-to-array double, and fail, which writes both outputs and
// then reports a program error.
func kernelHeader() string {
	return testutil.NewHeader().
		Array("i32", 2).
		Entry("add", "int32_t *out0, const int32_t in0, const int32_t in1").
		Entry("double", "struct futhark_i32_2d **out0, const struct futhark_i32_2d *in0").
		Entry("fail", "struct futhark_i32_2d **out0, int32_t *out1, const struct futhark_i32_2d *in0").
		String()
}

// kernelSource implements kernelHeader in plain C and counts live arrays.
const kernelSource = `#include <stdlib.h>
#include <string.h>
#include "a.h"

struct futhark_context_config { int debugging; };
struct futhark_context { char *error; };
struct futhark_i32_2d { int64_t shape[2]; int32_t *data; };

static int live_arrays = 0;

int kernel_live_arrays(void) { return live_arrays; }

struct futhark_context_config *futhark_context_config_new(void) {
	return calloc(1, sizeof(struct futhark_context_config));
}
void futhark_context_config_free(struct futhark_context_config *cfg) { free(cfg); }
void futhark_context_config_set_debugging(struct futhark_context_config *cfg, int flag) { cfg->debugging = flag; }
struct futhark_context *futhark_context_new(struct futhark_context_config *cfg) {
	(void)cfg;
	return calloc(1, sizeof(struct futhark_context));
}
void futhark_context_free(struct futhark_context *ctx) { free(ctx->error); free(ctx); }
int futhark_context_sync(struct futhark_context *ctx) { (void)ctx; return 0; }
char *futhark_context_get_error(struct futhark_context *ctx) {
	char *msg = ctx->error;
	ctx->error = NULL;
	return msg;
}

static struct futhark_i32_2d *alloc_i32_2d(const int32_t *data, int64_t dim0, int64_t dim1) {
	struct futhark_i32_2d *arr = malloc(sizeof *arr);
	size_t n = (size_t)(dim0 * dim1);
	arr->shape[0] = dim0;
	arr->shape[1] = dim1;
	arr->data = malloc(n * sizeof(int32_t) + 1);
	if (n > 0) memcpy(arr->data, data, n * sizeof(int32_t));
	live_arrays++;
	return arr;
}

struct futhark_i32_2d *futhark_new_i32_2d(struct futhark_context *ctx, const int32_t *data, int64_t dim0, int64_t dim1) {
	(void)ctx;
	return alloc_i32_2d(data, dim0, dim1);
}
int futhark_free_i32_2d(struct futhark_context *ctx, struct futhark_i32_2d *arr) {
	(void)ctx;
	free(arr->data);
	free(arr);
	live_arrays--;
	return 0;
}
int futhark_values_i32_2d(struct futhark_context *ctx, struct futhark_i32_2d *arr, int32_t *data) {
	(void)ctx;
	size_t n = (size_t)(arr->shape[0] * arr->shape[1]);
	if (n > 0) memcpy(data, arr->data, n * sizeof(int32_t));
	return 0;
}
const int64_t *futhark_shape_i32_2d(struct futhark_context *ctx, struct futhark_i32_2d *arr) {
	(void)ctx;
	return arr->shape;
}

int futhark_entry_add(struct futhark_context *ctx, int32_t *out0, const int32_t in0, const int32_t in1) {
	(void)ctx;
	*out0 = in0 + in1;
	return 0;
}
int futhark_entry_double(struct futhark_context *ctx, struct futhark_i32_2d **out0, const struct futhark_i32_2d *in0) {
	(void)ctx;
	struct futhark_i32_2d *out = alloc_i32_2d(in0->data, in0->shape[0], in0->shape[1]);
	for (int64_t i = 0; i < in0->shape[0] * in0->shape[1]; i++) out->data[i] *= 2;
	*out0 = out;
	return 0;
}
int futhark_entry_fail(struct futhark_context *ctx, struct futhark_i32_2d **out0, int32_t *out1, const struct futhark_i32_2d *in0) {
	*out0 = alloc_i32_2d(in0->data, in0->shape[0], in0->shape[1]);
	*out1 = 7;
	ctx->error = strdup("boom");
	return 2;
}
`

// liveSource exposes the C live array counter to the package's tests.
const liveSource = `package cgokernel

// int kernel_live_arrays(void);
import "C"

func liveArrays() int { return int(C.kernel_live_arrays()) }
`

const kernelTest = `package cgokernel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genfut/fut"
)

func TestGeneratedPackage(t *testing.T) {
	ctx, err := NewContext()
	require.NoError(t, err)
	defer ctx.Free()

	sum, err := Add(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(5), sum)

	arr, err := NewArrayI32_2D(ctx, []int32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	shape, err := arr.Shape()
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, shape)
	values, err := arr.Values()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, values)

	doubled, err := Double(ctx, arr)
	require.NoError(t, err)
	values, err = doubled.Values()
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 4, 6, 8, 10, 12}, values)
	require.Equal(t, 2, liveArrays())

	out0, out1, err := Fail(ctx, arr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	var ee *fut.EntryError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, fut.StatusProgramError, ee.Status)
	assert.Nil(t, out0)
	assert.Zero(t, out1)
	assert.Equal(t, 2, liveArrays(), "failed entry must release its array output")

	require.NoError(t, doubled.Free())
	require.NoError(t, arr.Free())
	require.NoError(t, arr.Free())
	assert.Equal(t, 0, liveArrays())

	_, err = arr.Values()
	assert.ErrorIs(t, err, fut.ErrReleased)
	_, err = (&ArrayI32_2D{}).Shape()
	assert.ErrorIs(t, err, fut.ErrNilArray)
	_, err = Double(ctx, &ArrayI32_2D{})
	assert.ErrorIs(t, err, fut.ErrNilArray)
}
`

// requireCgo skips unless the go tool and a C compiler are available.
func requireCgo(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds a cgo package")
	}
	goTool, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go tool not found")
	}
	out, err := exec.Command(goTool, "env", "CC").Output()
	if err != nil {
		t.Skip("go env CC failed")
	}
	cc := strings.Fields(strings.TrimSpace(string(out)))
	if len(cc) == 0 {
		t.Skip("no C compiler configured")
	}
	if _, err := exec.LookPath(cc[0]); err != nil {
		t.Skipf("C compiler %q not found", cc[0])
	}
	return goTool
}

func TestRun_GeneratedPackageBuildsAndRuns(t *testing.T) {
	goTool := requireCgo(t)

	// The generated package must live inside this module so it resolves
	// the runtime package without a separate go.mod.
	work, err := os.MkdirTemp(".", "cgokernel-")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(work) })
	work, err = filepath.Abs(work)
	require.NoError(t, err)

	kernel := filepath.Join(work, "kernel.fut")
	require.NoError(t, os.WriteFile(kernel, []byte("entry add (x: i32) (y: i32) = x + y\n"), 0o644))
	root := filepath.Join(work, "cgokernel")
	lib := filepath.Join(root, "lib_sequential_c")
	require.NoError(t, os.MkdirAll(lib, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "a.h"), []byte(kernelHeader()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "a.c"), []byte(kernelSource), 0o644))

	cfg := config.Default()
	cfg.Name = "cgokernel"
	cfg.Kernel = kernel
	cfg.Out = work
	cfg.SkipCompile = true
	cfg.NoLedger = true

	res, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, root, res.Root)

	// Built as a package of this module, not as its own.
	require.NoError(t, os.Remove(filepath.Join(root, "go.mod")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "live.go"), []byte(liveSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "kernel_test.go"), []byte(kernelTest), 0o644))

	cmd := exec.Command(goTool, "test", "-count=1", ".")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "go test of the generated package failed:\n%s", out)
}
