package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/service/console"
)

// errAckTarget is returned when ack gets neither an id nor --all.
var errAckTarget = errors.New("either an id or --all must be given")

func newAckCommand() *cobra.Command {
	var all bool

	c := &cobra.Command{
		Use:   "ack <alarms|logs> [id]",
		Short: "Acknowledge alarms or log entries.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			class, id, err := classArgs(args)
			if err != nil {
				return err
			}

			if id == 0 && !all {
				return errAckTarget
			}

			return run(func(ctx context.Context, s *console.Session) error {
				return s.Ack(ctx, class, id, all)
			})
		},
	}

	c.Flags().BoolVarP(&all, "all", "a", false, "acknowledge every unacknowledged entry")

	return c
}

func newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <alarms|logs>",
		Short: "Follow unacknowledged alarms or log entries.",
		Long: `Print the unacknowledged entries every time they change.

The list is refreshed at the poll_interval of the configuration file until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			class, _, err := classArgs(args)
			if err != nil {
				return err
			}

			return run(func(ctx context.Context, s *console.Session) error {
				return s.Watch(ctx, class)
			})
		},
	}
}

func newBadgeCommand() *cobra.Command {
	var follow bool

	c := &cobra.Command{
		Use:   "badge",
		Short: "Print the number of unacknowledged alarms and log entries.",
		Long: `Print the number of unacknowledged alarms and log entries.

With --follow the count is refreshed on the badge_schedule of the configuration file
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(func(ctx context.Context, s *console.Session) error {
				return s.Badge(ctx, follow)
			})
		},
	}

	c.Flags().BoolVarP(&follow, "follow", "f", false, "keep refreshing until interrupted")

	return c
}

func newSetupsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setups",
		Short: "Show which setup is active.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(func(ctx context.Context, s *console.Session) error {
				return s.Setups(ctx)
			})
		},
	}
}

func newActivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <setup-id>",
		Short: "Arm a setup.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return run(func(ctx context.Context, s *console.Session) error {
				return s.Activate(ctx, id)
			})
		},
	}
}

func newDeactivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <setup-id>",
		Short: "Disarm a setup.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return run(func(ctx context.Context, s *console.Session) error {
				return s.Deactivate(ctx, id)
			})
		},
	}
}

func newRelateCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "relate",
		Short: "Manage setups-zones and workers-actions associations.",
	}

	c.AddCommand(
		&cobra.Command{
			Use:   "list <left> <right>",
			Short: "List associations, e.g. relate list setups zones.",
			Args:  cobra.ExactArgs(2),
			RunE: func(_ *cobra.Command, args []string) error {
				rel, err := entity.ParseRelation(args[0], args[1])
				if err != nil {
					return err
				}

				return run(func(ctx context.Context, s *console.Session) error {
					return s.Relations(ctx, rel)
				})
			},
		},
		linkCommand("add", "Associate two entities, e.g. relate add setups zones 1 2.",
			(*console.Session).Relate),
		linkCommand("delete", "Remove an association, e.g. relate delete setups zones 1 2.",
			(*console.Session).Unrelate),
	)

	return c
}

func linkCommand(
	name, short string,
	action func(s *console.Session, ctx context.Context, rel entity.Relation, leftID, rightID int64) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <left> <right> <left-id> <right-id>",
		Short: short,
		Args:  cobra.ExactArgs(4), //nolint:mnd // Two class names and two ids.
		RunE: func(_ *cobra.Command, args []string) error {
			rel, err := entity.ParseRelation(args[0], args[1])
			if err != nil {
				return err
			}

			leftID, err := parseID(args[2])
			if err != nil {
				return err
			}

			rightID, err := parseID(args[3])
			if err != nil {
				return err
			}

			return run(func(ctx context.Context, s *console.Session) error {
				return action(s, ctx, rel, leftID, rightID)
			})
		},
	}
}
