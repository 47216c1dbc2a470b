package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes body to a scenario file next to a header named a.h.
func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.h"), []byte("// header\n"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: basic
description: one backend
kernel: k.fut
backends: [c]
headers:
  c: a.h
fail:
  c: boom
expect:
  error: environment
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "basic", s.Name)
	assert.Equal(t, []string{"sequential_c"}, s.Backends, "backend names are canonicalized")

	p, ok := s.HeaderPath("sequential_c")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "a.h"), p)
	assert.Equal(t, "environment", s.Expect.Error)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "unknown field",
			body:    "name: x\ndescription: d\nkernel: k.fut\nbackends: [c]\nheaders: {c: a.h}\nexpects: {}\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			body:    "description: d\nkernel: k.fut\nbackends: [c]\nheaders: {c: a.h}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			body:    "name: x\nkernel: k.fut\nbackends: [c]\nheaders: {c: a.h}\n",
			wantErr: "description is required",
		},
		{
			name:    "missing kernel",
			body:    "name: x\ndescription: d\nbackends: [c]\nheaders: {c: a.h}\n",
			wantErr: "kernel is required",
		},
		{
			name:    "no backends",
			body:    "name: x\ndescription: d\nkernel: k.fut\nheaders: {c: a.h}\n",
			wantErr: "backends list is required",
		},
		{
			name:    "unknown backend",
			body:    "name: x\ndescription: d\nkernel: k.fut\nbackends: [metal]\nheaders: {c: a.h}\n",
			wantErr: "backends[0]",
		},
		{
			name:    "duplicate backend",
			body:    "name: x\ndescription: d\nkernel: k.fut\nbackends: [c, sequential_c]\nheaders: {c: a.h}\n",
			wantErr: "duplicate backend",
		},
		{
			name:    "missing header",
			body:    "name: x\ndescription: d\nkernel: k.fut\nbackends: [c, cuda]\nheaders: {c: a.h}\n",
			wantErr: `no header for backend "cuda"`,
		},
		{
			name:    "header file not found",
			body:    "name: x\ndescription: d\nkernel: k.fut\nbackends: [c]\nheaders: {c: missing.h}\n",
			wantErr: "headers:",
		},
		{
			name:    "unknown fail step",
			body:    "name: x\ndescription: d\nkernel: k.fut\nbackends: [c]\nheaders: {c: a.h}\nfail: {link: boom}\n",
			wantErr: `unknown step "link"`,
		},
		{
			name:    "unknown error kind",
			body:    "name: x\ndescription: d\nkernel: k.fut\nbackends: [c]\nheaders: {c: a.h}\nexpect: {error: timeout}\n",
			wantErr: `unknown failure kind "timeout"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarios_SortedByFileName(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.Name
	}
	assert.Equal(t, []string{
		"backend_mismatch",
		"compiler_failure",
		"matmul_all_backends",
		"no_entry_points",
		"skip_compile",
	}, names)
}
