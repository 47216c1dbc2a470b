package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/genfut/internal/abi"
	"github.com/roach88/genfut/internal/compiler"
	"github.com/roach88/genfut/internal/config"
	"github.com/roach88/genfut/internal/header"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Backends []string
}

// InspectResult is the inspect command's result payload.
type InspectResult struct {
	Headers     []string   `json:"headers"`
	Model       *abi.Model `json:"model"`
	Fingerprint string     `json:"fingerprint"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <header>...",
		Short: "Show the API model of generated Futhark headers",
		Long: `Scan one or more headers produced by the Futhark compiler and print the
API model: array types and entry points with their classified parameters.

With several headers, each is labelled with a backend (by default in
processing order: sequential_c, cuda, opencl) and the models are checked for
equivalence exactly as generate does.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Backends, "backend", nil, "backend of each header, in argument order")

	return cmd
}

func runInspect(opts *InspectOptions, headers []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	backends, err := inspectBackends(opts.Backends, len(headers))
	if err != nil {
		return fail(formatter, "invalid arguments", err)
	}

	var eq compiler.Equivalence
	for i, path := range headers {
		formatter.VerboseLog("Scanning %s as %s", path, backends[i])
		decls, err := header.ScanFile(path)
		if err != nil {
			return fail(formatter, "inspect failed", err)
		}
		m, err := compiler.BuildModel(backends[i], decls)
		if err != nil {
			return fail(formatter, "inspect failed", err)
		}
		if verrs := compiler.Validate(m); len(verrs) > 0 {
			return fail(formatter, "inspect failed", verrs[0])
		}
		if err := eq.Add(m); err != nil {
			return fail(formatter, "inspect failed", err)
		}
	}

	model := eq.Canonical()
	result := InspectResult{Headers: headers, Model: model, Fingerprint: abi.MustFingerprint(model)}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	renderModel(formatter.Writer, model)
	if len(headers) > 1 {
		formatter.Done("%d headers agree", len(headers))
	}
	formatter.Detail("fingerprint: %s", result.Fingerprint)
	return nil
}

// inspectBackends labels n headers. Explicit labels must cover every header.
func inspectBackends(names []string, n int) ([]abi.Backend, error) {
	if len(names) == 0 {
		order := []abi.Backend{abi.BackendC, abi.BackendCUDA, abi.BackendOpenCL}
		if n > len(order) {
			return nil, &config.Error{Field: "backend", Message: fmt.Sprintf("%d headers given; label them with --backend", n)}
		}
		return order[:n], nil
	}
	if len(names) != n {
		return nil, &config.Error{Field: "backend", Message: fmt.Sprintf("%d backends given for %d headers", len(names), n)}
	}
	out := make([]abi.Backend, n)
	for i, name := range names {
		b, err := abi.ParseBackend(name)
		if err != nil {
			return nil, &config.Error{Field: "backend", Message: err.Error()}
		}
		out[i] = b
	}
	return out, nil
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func renderModel(w io.Writer, m *abi.Model) {
	if len(m.ArrayTypes) > 0 {
		table := newTable(w, []string{"ARRAY TYPE", "ELEMENT", "RANK", "GO TYPE"})
		for _, a := range m.ArrayTypes {
			table.Append([]string{a.Name, string(a.Element), fmt.Sprint(a.Rank), a.GoName()})
		}
		table.Render()
		fmt.Fprintln(w)
	}

	table := newTable(w, []string{"ENTRY POINT", "INPUTS", "OUTPUTS"})
	for _, e := range m.EntryPoints {
		table.Append([]string{e.Name, describeParams(e.Inputs()), describeParams(e.Outputs())})
	}
	table.Render()
}

func describeParams(ps []abi.Param) string {
	if len(ps) == 0 {
		return "-"
	}
	parts := make([]string, len(ps))
	for i, p := range ps {
		typ := string(p.Element)
		if p.Kind == abi.KindArray {
			typ = p.ArrayType
		}
		parts[i] = p.Name + " " + typ
	}
	return strings.Join(parts, ", ")
}
