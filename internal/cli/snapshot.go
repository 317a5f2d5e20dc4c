package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"strata/internal/core"
	"strata/internal/infra/persistence/memory"
)

// NewExportCommand writes the store state as a JSON snapshot.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the store state as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, func(_ context.Context, svc *core.Service) error {
				snap := svc.Export()
				if output == "" {
					return opts.output().Success(snap)
				}
				data, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return WrapExitError(ExitCommandError, "write snapshot", err)
				}
				return opts.output().Success(map[string]any{
					"path":        output,
					"transaction": uint64(snap.Transaction),
					"resources":   len(snap.Resources),
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the snapshot to a file instead of stdout")
	return cmd
}

// NewImportCommand replaces the store state with a JSON snapshot.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the store state with a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "read snapshot", err)
			}
			var snap memory.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return WrapExitError(ExitCommandError, "parse snapshot", err)
			}
			return opts.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				if err := svc.Import(ctx, snap); err != nil {
					return err
				}
				return opts.output().Success(map[string]any{
					"transaction": uint64(svc.Transaction()),
					"resources":   len(snap.Resources),
				})
			})
		},
	}
}
