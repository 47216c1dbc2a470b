package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/genfut/internal/config"
	"github.com/roach88/genfut/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Ledger string
	Limit  int
}

// HistoryEntry is one run in the history command's payload.
type HistoryEntry struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Module         string    `json:"module"`
	Fingerprint    string    `json:"fingerprint"`
	FutharkVersion string    `json:"futhark_version,omitempty"`
	Backends       []string  `json:"backends"`
	ArrayTypes     int       `json:"array_types"`
	EntryPoints    int       `json:"entry_points"`
	SkipCompile    bool      `json:"skip_compile"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [name]",
		Short: "List recorded generate runs",
		Long: `List the runs recorded in the generation ledger, newest first.

With a name, only runs of that library are shown.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runHistory(opts, name, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Ledger, "ledger", config.DefaultLedger, "generation ledger database")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, name string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Check the ledger exists; Open would create an empty one.
	if _, err := os.Stat(opts.Ledger); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeLedger, fmt.Sprintf("ledger not found: %s", opts.Ledger), nil)
		return NewExitError(ExitCommandError, "ledger not found")
	}

	s, err := store.Open(opts.Ledger)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
		return WrapExitError(ExitFailure, "open ledger", err)
	}
	defer s.Close()

	runs, err := s.ListRuns(cmd.Context(), name, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeLedger, err.Error(), nil)
		return WrapExitError(ExitFailure, "list runs", err)
	}

	entries := make([]HistoryEntry, len(runs))
	for i, r := range runs {
		entries[i] = HistoryEntry{
			ID:             r.ID,
			Name:           r.Name,
			Module:         r.Module,
			Fingerprint:    r.Fingerprint,
			FutharkVersion: r.FutharkVersion,
			ArrayTypes:     r.ArrayTypes,
			EntryPoints:    r.EntryPoints,
			SkipCompile:    r.SkipCompile,
			CreatedAt:      r.CreatedAt,
		}
		for _, b := range r.Backends {
			entries[i].Backends = append(entries[i].Backends, b.Backend)
		}
	}

	if opts.Format == "json" {
		return formatter.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}

	table := newTable(formatter.Writer, []string{"RUN", "NAME", "CREATED", "BACKENDS", "ENTRIES", "FINGERPRINT"})
	for _, e := range entries {
		table.Append([]string{
			e.ID,
			e.Name,
			e.CreatedAt.Local().Format(time.DateTime),
			strings.Join(e.Backends, ","),
			fmt.Sprint(e.EntryPoints),
			shortHash(e.Fingerprint),
		})
	}
	table.Render()
	return nil
}
