// Package cli implements the strata command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"strata/internal/config"
	"strata/internal/core"
	"strata/internal/logging"
)

// RootOptions holds global flags and the writers commands print to.
type RootOptions struct {
	ConfigPath string
	Trace      bool
	Out        io.Writer
	Err        io.Writer

	// started is set once argument and flag validation passed.
	started bool
}

// NewRootCommand creates the root command for the strata CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Out: os.Stdout, Err: os.Stderr})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strata",
		Short: "strata - versioned workspace and collection store",
		Long: `strata manages a tree of workspaces and collections in a versioned
object-graph store. Every successful write advances the store transaction;
deleted resources remain readable as tombstones.

The storage backend is selected with --config or STRATA_* environment
variables (STRATA_STORAGE_DRIVER=memory|sqlite|postgres|redis|blob).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.Out = cmd.OutOrStdout()
			opts.Err = cmd.ErrOrStderr()
			opts.started = true
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", os.Getenv("STRATA_CONFIG"), "path to strata YAML config")
	cmd.PersistentFlags().BoolVar(&opts.Trace, "trace", false, "write a JSON trace span per operation to stderr")

	cmd.AddCommand(NewTxCommand(opts))
	cmd.AddCommand(NewWorkspaceCommand(opts))
	cmd.AddCommand(NewCollectionCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewChildrenCommand(opts))
	cmd.AddCommand(NewParentCommand(opts))
	cmd.AddCommand(NewLinksCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{Out: stdout, Err: stderr}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		if !opts.started {
			// usage errors: unknown command, bad flags or argument count
			err = WrapExitError(ExitCommandError, "usage", err)
		}
		out := &OutputFormatter{Writer: stdout}
		_ = out.Error(err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// openService loads configuration and opens the configured backend.
func (o *RootOptions) openService(ctx context.Context) (*core.Service, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	logger, err := logging.New(o.Err, cfg.Log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configure logging", err)
	}
	store, err := core.OpenPersistentStore(ctx, cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("open %s store", cfg.Storage.Driver), err)
	}
	svcOpts := []core.Option{core.WithLogger(logger)}
	if o.Trace {
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(o.Err)))
	}
	return core.NewService(store, svcOpts...), nil
}

// withService opens the service, runs fn and closes the service.
func (o *RootOptions) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *core.Service) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := o.openService(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "close store", cerr)
		}
	}()
	return fn(ctx, svc)
}

func (o *RootOptions) output() *OutputFormatter {
	return &OutputFormatter{Writer: o.Out}
}
