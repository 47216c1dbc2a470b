package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/genfut/internal/testutil"
)

func testRun(id, name, fingerprint string, clock *testutil.DeterministicClock) Run {
	return Run{
		ID:               id,
		Name:             name,
		Module:           "example.com/" + name,
		Kernel:           name + ".fut",
		Fingerprint:      fingerprint,
		FutharkVersion:   "Futhark 0.25.13",
		GeneratorVersion: "0.1.0",
		ArrayTypes:       2,
		EntryPoints:      3,
		CreatedAt:        clock.Now(),
		Backends: []BackendRecord{
			{Backend: "sequential_c", HeaderSHA256: "aaa"},
			{Backend: "cuda", HeaderSHA256: "bbb"},
		},
	}
}

func TestRecordRun_LatestRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock()
	ids := testutil.NewSequentialRunIDs("")

	first := testRun(ids.Generate(), "matmul", "fp1", clock)
	second := testRun(ids.Generate(), "matmul", "fp2", clock)
	second.SkipCompile = true
	other := testRun(ids.Generate(), "add", "fp3", clock)

	require.NoError(t, s.RecordRun(ctx, first))
	require.NoError(t, s.RecordRun(ctx, second))
	require.NoError(t, s.RecordRun(ctx, other))

	latest, err := s.LatestRun(ctx, "matmul")
	require.NoError(t, err)
	assert.Equal(t, "run-0002", latest.ID)
	assert.Equal(t, "fp2", latest.Fingerprint)
	assert.True(t, latest.SkipCompile)
	assert.True(t, testutil.Epoch.Add(time.Second).Equal(latest.CreatedAt), "created_at %v", latest.CreatedAt)
	assert.Equal(t, second.Backends, latest.Backends)
	assert.Equal(t, 2, latest.ArrayTypes)
	assert.Equal(t, 3, latest.EntryPoints)
	assert.Equal(t, "Futhark 0.25.13", latest.FutharkVersion)
	assert.Positive(t, latest.Seq)
}

func TestLatestRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.LatestRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestRecordRun_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock()

	require.NoError(t, s.RecordRun(ctx, testRun("same", "matmul", "fp1", clock)))
	err := s.RecordRun(ctx, testRun("same", "matmul", "fp2", clock))
	require.Error(t, err)

	// The failed transaction left nothing behind.
	runs, err := s.ListRuns(ctx, "matmul", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "fp1", runs[0].Fingerprint)
}

func TestRecordRun_EmptyID(t *testing.T) {
	s := createTestStore(t)
	err := s.RecordRun(context.Background(), Run{Name: "matmul"})
	assert.Error(t, err)
}

func TestListRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	clock := testutil.NewDeterministicClock()
	ids := testutil.NewSequentialRunIDs("")

	for _, name := range []string{"matmul", "add", "matmul", "matmul"} {
		require.NoError(t, s.RecordRun(ctx, testRun(ids.Generate(), name, "fp", clock)))
	}

	all, err := s.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "run-0004", all[0].ID, "newest first")
	assert.Equal(t, "run-0001", all[3].ID)

	matmul, err := s.ListRuns(ctx, "matmul", 0)
	require.NoError(t, err)
	require.Len(t, matmul, 3)
	for _, r := range matmul {
		assert.Equal(t, "matmul", r.Name)
		assert.Len(t, r.Backends, 2)
	}

	limited, err := s.ListRuns(ctx, "matmul", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-0004", limited[0].ID)
	assert.Equal(t, "run-0003", limited[1].ID)
}

func TestListRuns_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	runs, err := s.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestUUIDv7Generator(t *testing.T) {
	var gen RunIDGenerator = UUIDv7Generator{}
	a := gen.Generate()
	b := gen.Generate()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}
