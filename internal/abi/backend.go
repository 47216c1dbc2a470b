package abi

import (
	"fmt"
	"strings"
)

// Backend identifies one compute target's code generation and linking mode.
type Backend string

// Known backends, in processing order.
const (
	BackendC      Backend = "sequential_c"
	BackendCUDA   Backend = "cuda"
	BackendOpenCL Backend = "opencl"
)

var backendOrder = []Backend{BackendC, BackendCUDA, BackendOpenCL}

var backendSubcommands = map[Backend]string{
	BackendC:      "c",
	BackendCUDA:   "cuda",
	BackendOpenCL: "opencl",
}

// ParseBackend accepts a backend name or its compiler subcommand ("c").
func ParseBackend(s string) (Backend, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, b := range backendOrder {
		if string(b) == s || backendSubcommands[b] == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q: must be one of %v", s, backendOrder)
}

// OrderBackends deduplicates bs and sorts it into processing order.
func OrderBackends(bs []Backend) []Backend {
	seen := make(map[Backend]bool, len(bs))
	for _, b := range bs {
		seen[b] = true
	}
	var out []Backend
	for _, b := range backendOrder {
		if seen[b] {
			out = append(out, b)
		}
	}
	return out
}

// Subcommand returns the AOT compiler subcommand for b.
func (b Backend) Subcommand() string { return backendSubcommands[b] }

// Dir returns the per-backend output directory name.
func (b Backend) Dir() string { return "lib_" + string(b) }

// Tag returns the Go build tag selecting b in a generated package.
func (b Backend) Tag() string { return "futhark_" + string(b) }

// BuildConstraint returns the //go:build expression for b's files given the
// active backends. The first active backend is the default and is selected
// when none of the other tags is set.
func BuildConstraint(active []Backend, b Backend) string {
	if len(active) == 0 || active[0] != b {
		return b.Tag()
	}
	var others []string
	for _, o := range active[1:] {
		others = append(others, "!"+o.Tag())
	}
	return strings.Join(others, " && ")
}
