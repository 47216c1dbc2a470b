package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/genfut/internal/config"
	"github.com/roach88/genfut/internal/pipeline"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	ConfigFile string

	license       string
	author        string
	version       string
	description   string
	backends      []string
	cudaInclude   string
	cudaLib       string
	openclInclude string
	openclLib     string
	out           string
	module        string
	compiler      string
	skipCompile   bool
	verifyHeaders bool
	ledger        string
	noLedger      bool

	pipelineOpts []pipeline.Option
}

// GenerateSummary is the generate command's result payload.
type GenerateSummary struct {
	Name           string          `json:"name"`
	Root           string          `json:"root"`
	Backends       []string        `json:"backends"`
	ArrayTypes     int             `json:"array_types"`
	EntryPoints    int             `json:"entry_points"`
	Fingerprint    string          `json:"fingerprint"`
	RunID          string          `json:"run_id,omitempty"`
	FutharkVersion string          `json:"futhark_version,omitempty"`
	Files          []string        `json:"files"`
	Drift          *pipeline.Drift `json:"drift,omitempty"`
}

// NewGenerateCommand creates the generate command. Pipeline options are
// passed through to every run.
func NewGenerateCommand(rootOpts *RootOptions, pipelineOpts ...pipeline.Option) *cobra.Command {
	return newGenerateCommand(&GenerateOptions{RootOptions: rootOpts, pipelineOpts: pipelineOpts})
}

func newGenerateCommand(opts *GenerateOptions) *cobra.Command {
	def := config.Default()

	cmd := &cobra.Command{
		Use:   "generate [name] [kernel.fut]",
		Short: "Compile a Futhark kernel and generate its Go package",
		Long: `Compile a Futhark kernel with the AOT compiler for each requested backend
and generate a Go package wrapping the resulting library.

The package is written to <out>/<name>. Every backend must expose the same
API; a mismatch aborts the run before any Go code is written.

Settings come from built-in defaults, then --config, then flags. The name and
kernel may be given in the config file instead of as arguments.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.ConfigFile, "config", "", "config file (.yaml, .yml or .cue)")
	f.StringVar(&opts.license, "license", def.License, "license of the generated package")
	f.StringVar(&opts.author, "author", def.Author, "author of the generated package")
	f.StringVar(&opts.version, "version", def.Version, "version of the generated package")
	f.StringVar(&opts.description, "description", def.Description, "description of the generated package")
	f.StringSliceVar(&opts.backends, "backend", []string{string(def.Backends[0])}, "backend to build (sequential_c, cuda, opencl); repeatable")
	f.StringVar(&opts.cudaInclude, "cuda-include", def.CUDA.Include, "CUDA include directory")
	f.StringVar(&opts.cudaLib, "cuda-lib", def.CUDA.Lib, "CUDA library directory")
	f.StringVar(&opts.openclInclude, "opencl-include", def.OpenCL.Include, "OpenCL include directory")
	f.StringVar(&opts.openclLib, "opencl-lib", def.OpenCL.Lib, "OpenCL library directory")
	f.StringVarP(&opts.out, "out", "o", def.Out, "output directory")
	f.StringVar(&opts.module, "module", "", "Go module path of the generated package (default: name)")
	f.StringVar(&opts.compiler, "compiler", def.Compiler, "Futhark compiler executable")
	f.BoolVar(&opts.skipCompile, "skip-compile", false, "reuse headers already present under the output directory")
	f.BoolVar(&opts.verifyHeaders, "verify-headers", false, "check headers with a C front end before emitting bindings")
	f.StringVar(&opts.ledger, "ledger", def.Ledger, "generation ledger database")
	f.BoolVar(&opts.noLedger, "no-ledger", false, "do not record the run")

	return cmd
}

func runGenerate(opts *GenerateOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.resolve(cmd.Flags(), args)
	if err != nil {
		return fail(formatter, "invalid configuration", err)
	}
	formatter.VerboseLog("Generating %s from %s for %v", cfg.Name, cfg.Kernel, cfg.Backends)

	// Compiler output goes to stderr so JSON on stdout stays parseable.
	pipeOpts := append([]pipeline.Option{
		pipeline.WithOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr()),
	}, opts.pipelineOpts...)
	res, err := pipeline.New(cfg, pipeOpts...).Run(cmd.Context())
	if err != nil {
		return fail(formatter, "generate failed", err)
	}

	summary := GenerateSummary{
		Name:           cfg.Name,
		Root:           res.Root,
		ArrayTypes:     len(res.Model.ArrayTypes),
		EntryPoints:    len(res.Model.EntryPoints),
		Fingerprint:    res.Fingerprint,
		RunID:          res.RunID,
		FutharkVersion: res.FutharkVersion,
		Files:          res.Files,
		Drift:          res.Drift,
	}
	for _, b := range cfg.Backends {
		summary.Backends = append(summary.Backends, string(b))
	}

	if opts.Format == "json" {
		return formatter.Success(summary)
	}
	formatter.Done("Generated %s in %s", summary.Name, summary.Root)
	formatter.Detail("backends:     %v", summary.Backends)
	formatter.Detail("array types:  %d", summary.ArrayTypes)
	formatter.Detail("entry points: %d", summary.EntryPoints)
	formatter.Detail("fingerprint:  %s", summary.Fingerprint)
	if summary.RunID != "" {
		formatter.Detail("run:          %s", summary.RunID)
	}
	if res.Drift != nil {
		formatter.Warn("ABI changed since run %s (was %s)", res.Drift.PreviousRun, shortHash(res.Drift.PreviousFingerprint))
	}
	for _, f := range summary.Files {
		formatter.VerboseLog("wrote %s", f)
	}
	return nil
}

// resolve layers defaults, the config file, positional arguments and
// changed flags, then validates the result.
func (opts *GenerateOptions) resolve(flags *pflag.FlagSet, args []string) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		if err := config.LoadFile(opts.ConfigFile, &cfg); err != nil {
			return cfg, err
		}
	}
	if len(args) > 0 {
		cfg.Name = args[0]
	}
	if len(args) > 1 {
		cfg.Kernel = args[1]
	}

	stringFlags := []struct {
		flag string
		dst  *string
		val  string
	}{
		{"license", &cfg.License, opts.license},
		{"author", &cfg.Author, opts.author},
		{"version", &cfg.Version, opts.version},
		{"description", &cfg.Description, opts.description},
		{"cuda-include", &cfg.CUDA.Include, opts.cudaInclude},
		{"cuda-lib", &cfg.CUDA.Lib, opts.cudaLib},
		{"opencl-include", &cfg.OpenCL.Include, opts.openclInclude},
		{"opencl-lib", &cfg.OpenCL.Lib, opts.openclLib},
		{"out", &cfg.Out, opts.out},
		{"module", &cfg.Module, opts.module},
		{"compiler", &cfg.Compiler, opts.compiler},
		{"ledger", &cfg.Ledger, opts.ledger},
	}
	for _, s := range stringFlags {
		if flags.Changed(s.flag) {
			*s.dst = s.val
		}
	}
	boolFlags := []struct {
		flag string
		dst  *bool
		val  bool
	}{
		{"skip-compile", &cfg.SkipCompile, opts.skipCompile},
		{"verify-headers", &cfg.VerifyHeaders, opts.verifyHeaders},
		{"no-ledger", &cfg.NoLedger, opts.noLedger},
	}
	for _, b := range boolFlags {
		if flags.Changed(b.flag) {
			*b.dst = b.val
		}
	}
	if flags.Changed("backend") {
		if err := cfg.SetBackends(opts.backends); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.Validate()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
