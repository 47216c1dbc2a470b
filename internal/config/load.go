package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// fileSettings mirrors the config file. Pointer fields distinguish an
// absent key from a zero value, so only keys present in the file override
// the defaults.
type fileSettings struct {
	Name          *string            `yaml:"name" json:"name"`
	Kernel        *string            `yaml:"kernel" json:"kernel"`
	Module        *string            `yaml:"module" json:"module"`
	License       *string            `yaml:"license" json:"license"`
	Author        *string            `yaml:"author" json:"author"`
	Version       *string            `yaml:"version" json:"version"`
	Description   *string            `yaml:"description" json:"description"`
	Backends      []string           `yaml:"backends" json:"backends"`
	CUDA          *acceleratorConfig `yaml:"cuda" json:"cuda"`
	OpenCL        *acceleratorConfig `yaml:"opencl" json:"opencl"`
	Out           *string            `yaml:"out" json:"out"`
	Compiler      *string            `yaml:"compiler" json:"compiler"`
	SkipCompile   *bool              `yaml:"skip_compile" json:"skip_compile"`
	VerifyHeaders *bool              `yaml:"verify_headers" json:"verify_headers"`
	Ledger        *string            `yaml:"ledger" json:"ledger"`
	NoLedger      *bool              `yaml:"no_ledger" json:"no_ledger"`
}

type acceleratorConfig struct {
	Include *string `yaml:"include" json:"include"`
	Lib     *string `yaml:"lib" json:"lib"`
}

// LoadFile reads a YAML (.yaml, .yml) or CUE (.cue) file and applies its
// keys on top of cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{File: path, Message: "reading config", Err: err}
	}
	var fs *fileSettings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		fs, err = decodeYAML(path, data)
	case ".cue":
		fs, err = decodeCUE(path, data)
	default:
		return &Error{File: path, Message: "unsupported config format (want .yaml, .yml or .cue)"}
	}
	if err != nil {
		return err
	}
	return fs.apply(cfg)
}

func decodeYAML(path string, data []byte) (*fileSettings, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fs fileSettings
	if err := dec.Decode(&fs); err != nil {
		if errors.Is(err, io.EOF) {
			return &fs, nil
		}
		return nil, &Error{File: path, Message: "decoding YAML", Err: err}
	}
	return &fs, nil
}

func decodeCUE(path string, data []byte) (*fileSettings, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, cueError(path, err)
	}
	v = schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(path, err)
	}

	var fs fileSettings
	if err := v.Decode(&fs); err != nil {
		return nil, cueError(path, err)
	}
	return &fs, nil
}

// cueError converts the first CUE error to an Error carrying its position.
func cueError(path string, err error) error {
	ce := &Error{File: path, Err: err}
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		first := errs[0]
		if pos := first.Position(); pos.IsValid() {
			ce.Line = pos.Line()
		}
		format, args := first.Msg()
		ce.Message = fmt.Sprintf(format, args...)
		if p := first.Path(); len(p) > 0 {
			ce.Field = strings.Join(p, ".")
		}
		ce.Err = nil
	}
	return ce
}

func (fs *fileSettings) apply(cfg *Config) error {
	setString(&cfg.Name, fs.Name)
	setString(&cfg.Kernel, fs.Kernel)
	setString(&cfg.Module, fs.Module)
	setString(&cfg.License, fs.License)
	setString(&cfg.Author, fs.Author)
	setString(&cfg.Version, fs.Version)
	setString(&cfg.Description, fs.Description)
	setString(&cfg.Out, fs.Out)
	setString(&cfg.Compiler, fs.Compiler)
	setString(&cfg.Ledger, fs.Ledger)
	setBool(&cfg.SkipCompile, fs.SkipCompile)
	setBool(&cfg.VerifyHeaders, fs.VerifyHeaders)
	setBool(&cfg.NoLedger, fs.NoLedger)
	if fs.CUDA != nil {
		setString(&cfg.CUDA.Include, fs.CUDA.Include)
		setString(&cfg.CUDA.Lib, fs.CUDA.Lib)
	}
	if fs.OpenCL != nil {
		setString(&cfg.OpenCL.Include, fs.OpenCL.Include)
		setString(&cfg.OpenCL.Lib, fs.OpenCL.Lib)
	}
	if fs.Backends != nil {
		return cfg.SetBackends(fs.Backends)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
