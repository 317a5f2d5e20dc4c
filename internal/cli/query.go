package cli

import (
	"context"

	"github.com/spf13/cobra"

	"strata/internal/core"
	"strata/pkg/domain"
)

// NewTxCommand prints the current transaction.
func NewTxCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tx",
		Short: "Print the current store transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, func(_ context.Context, svc *core.Service) error {
				tx := svc.Transaction()
				return opts.output().Success(map[string]any{"transaction": uint64(tx), "label": tx.String()})
			})
		},
	}
}

// NewShowCommand prints the current record of a resource, live or deleted.
func NewShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the current record of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(_ context.Context, svc *core.Service) error {
				if r, ok := svc.Find(id); ok {
					return opts.output().Success(viewOf(r))
				}
				if r, ok := svc.FindTombstone(id); ok {
					return opts.output().Success(viewOf(r))
				}
				return domain.NotFoundError{ID: id}
			})
		},
	}
}

// NewChildrenCommand lists the live collections under a container.
func NewChildrenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "children <id>",
		Short: "List the live collections directly under a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(_ context.Context, svc *core.Service) error {
				r, ok := svc.Find(id)
				if !ok {
					return domain.NotFoundError{ID: id}
				}
				parent, err := domain.ContainerOf(r)
				if err != nil {
					return err
				}
				children := svc.ChildCollections(parent)
				views := make([]ResourceView, 0, len(children))
				for _, c := range children {
					views = append(views, viewOf(c.Resource))
				}
				return opts.output().Success(views)
			})
		},
	}
}

// NewParentCommand prints the live parent of a collection.
func NewParentCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parent <id>",
		Short: "Show the live parent of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(_ context.Context, svc *core.Service) error {
				c, ok := svc.FindCollection(id)
				if !ok {
					return domain.NotFoundError{ID: id, Type: domain.TypeCollection}
				}
				parent, err := svc.Parent(c)
				if err != nil {
					return err
				}
				return opts.output().Success(viewOf(parent.Snapshot()))
			})
		},
	}
}

// NewLinksCommand prints every link touching a resource.
func NewLinksCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "links <id>",
		Short: "List links from and to a resource, live and dead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withService(cmd, func(_ context.Context, svc *core.Service) error {
				return opts.output().Success(map[string][]LinkView{
					"from": linkViews(svc.LinksFrom(id)),
					"to":   linkViews(svc.LinksTo(id)),
				})
			})
		},
	}
}
