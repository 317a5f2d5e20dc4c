package cli

import (
	"context"

	"github.com/spf13/cobra"

	"strata/internal/core"
	"strata/pkg/domain"
)

// NewWorkspaceCommand creates the workspace command group.
func NewWorkspaceCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Create and delete workspaces",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create a root workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				ws, err := svc.CreateWorkspace(ctx)
				if err != nil {
					return err
				}
				return opts.output().Success(viewOf(ws.Resource))
			})
		},
	})
	cmd.AddCommand(newDeleteCommand(opts, domain.TypeWorkspace))
	return cmd
}

// NewCollectionCommand creates the collection command group.
func NewCollectionCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Create and delete collections",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <parent-id>",
		Short: "Create a collection under a workspace or collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parentID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				c, err := svc.CreateCollectionUnder(ctx, parentID)
				if err != nil {
					return err
				}
				return opts.output().Success(viewOf(c.Resource))
			})
		},
	})
	cmd.AddCommand(newDeleteCommand(opts, domain.TypeCollection))
	return cmd
}

func newDeleteCommand(opts *RootOptions, t domain.ResourceType) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + t.String(),
		Long: `Delete tombstones the resource. Without --recursive a resource with
live children is refused; with it the whole subtree is deleted in one
transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(ctx context.Context, svc *core.Service) error {
				_, live := svc.FindOfType(id, t)
				_, dead := svc.FindTombstoneOfType(id, t)
				if !live && !dead {
					return domain.NotFoundError{ID: id, Type: t}
				}
				r, err := svc.DeleteByID(ctx, id, recursive)
				if err != nil {
					return err
				}
				return opts.output().Success(viewOf(r))
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete the whole subtree")
	return cmd
}
