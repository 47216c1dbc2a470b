package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/genfut/internal/abi"
)

// Scenario defines one generation run and what it should produce.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Library is the generated library name. Defaults to the kernel's
	// base name without extension.
	Library string `yaml:"library,omitempty"`

	// Kernel is the kernel file name written into the scratch directory.
	Kernel string `yaml:"kernel"`

	// Backends lists backend names in any order. The pipeline processes
	// them in canonical order.
	Backends []string `yaml:"backends"`

	// Headers maps a backend name to the header file the fake compiler
	// emits for it. Paths are relative to the scenario file.
	Headers map[string]string `yaml:"headers"`

	// Fail maps a compiler step ("pkg sync", "version" or a backend name)
	// to an injected error message.
	Fail map[string]string `yaml:"fail,omitempty"`

	SkipCompile bool `yaml:"skip_compile,omitempty"`

	Expect Expect `yaml:"expect"`

	dir string
}

// Expect holds the outcome a scenario asserts. Unset fields are not checked.
type Expect struct {
	// Error is the expected failure kind ("parse", "consistency", ...).
	// Empty means the run must succeed.
	Error string `yaml:"error,omitempty"`

	ArrayTypes  []string `yaml:"array_types,omitempty"`
	EntryPoints []string `yaml:"entry_points,omitempty"`

	// Files must all exist under the library root. Subset match.
	Files []string `yaml:"files,omitempty"`

	// Calls must appear in the compiler trace in this order. Intervening
	// calls are allowed.
	Calls []string `yaml:"calls,omitempty"`
}

// LoadScenario reads and validates a scenario YAML file. Unknown fields
// are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	s.dir = filepath.Dir(path)

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// HeaderPath resolves the header file configured for backend b.
func (s *Scenario) HeaderPath(b abi.Backend) (string, bool) {
	p, ok := s.Headers[string(b)]
	if !ok {
		return "", false
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.dir, p)
	}
	return p, true
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Kernel == "" {
		return fmt.Errorf("kernel is required")
	}
	if len(s.Backends) == 0 {
		return fmt.Errorf("backends list is required and must be non-empty")
	}

	headers := make(map[string]string, len(s.Headers))
	for name, p := range s.Headers {
		b, err := abi.ParseBackend(name)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		headers[string(b)] = p
	}
	s.Headers = headers

	seen := make(map[abi.Backend]bool, len(s.Backends))
	for i, name := range s.Backends {
		b, err := abi.ParseBackend(name)
		if err != nil {
			return fmt.Errorf("backends[%d]: %w", i, err)
		}
		if seen[b] {
			return fmt.Errorf("backends[%d]: duplicate backend %q", i, name)
		}
		seen[b] = true
		s.Backends[i] = string(b)

		p, ok := s.HeaderPath(b)
		if !ok {
			return fmt.Errorf("headers: no header for backend %q", b)
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("headers: %w", err)
		}
	}

	for step := range s.Fail {
		if step == "pkg sync" || step == "version" {
			continue
		}
		if _, err := abi.ParseBackend(step); err != nil {
			return fmt.Errorf("fail: unknown step %q", step)
		}
	}

	if s.Expect.Error != "" && !validKind(s.Expect.Error) {
		return fmt.Errorf("expect.error: unknown failure kind %q", s.Expect.Error)
	}
	return nil
}
