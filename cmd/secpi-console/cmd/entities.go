package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/service/console"
)

var (
	// errInvalidID is returned for ids that are not positive integers.
	errInvalidID = errors.New("invalid id")
	// errImportFailed is returned when some records of an import were refused.
	errImportFailed = errors.New("import incomplete")
)

// classArgs parses the class name and the optional id of an entity command.
func classArgs(args []string) (entity.Class, int64, error) {
	class, err := entity.ParseClass(args[0])
	if err != nil {
		return 0, 0, err
	}

	if len(args) < 2 {
		return class, 0, nil
	}

	id, err := parseID(args[1])
	if err != nil {
		return 0, 0, err
	}

	return class, id, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, s)
	}

	return id, nil
}

func newListCommand() *cobra.Command {
	var filter, sort string

	c := &cobra.Command{
		Use:   "list <class>",
		Short: "List the entities of a class.",
		Long: `List the entities of a class as a table of its list fields.

The filter is a boolean expression over the record, e.g. "active_state==1";
the sort key is a field name, prefixed with "-" for descending order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			class, _, err := classArgs(args)
			if err != nil {
				return err
			}

			return run(func(ctx context.Context, s *console.Session) error {
				return s.List(ctx, class, filter, sort)
			})
		},
	}

	c.Flags().StringVarP(&filter, "filter", "f", "", "filter expression")
	c.Flags().StringVarP(&sort, "sort", "s", "", "sort key")

	return c
}

func newFieldsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fields <class>",
		Short: "Show the field descriptors of a class.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			class, _, err := classArgs(args)
			if err != nil {
				return err
			}

			return run(func(ctx context.Context, s *console.Session) error {
				return s.Fields(ctx, class)
			})
		},
	}
}

// editCommand builds add, update and copy: they differ in arity and action.
func editCommand(
	use, short string,
	args cobra.PositionalArgs,
	action func(ctx context.Context, s *console.Session, class entity.Class, id int64, values map[string]any) error,
) *cobra.Command {
	var assignments []string

	c := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(_ *cobra.Command, args []string) error {
			class, id, err := classArgs(args)
			if err != nil {
				return err
			}

			values, err := console.ParseAssignments(assignments)
			if err != nil {
				return err
			}

			return run(func(ctx context.Context, s *console.Session) error {
				return action(ctx, s, class, id, values)
			})
		},
	}

	c.Flags().StringArrayVar(&assignments, "set", nil, "field assignment key=value (repeatable)")

	return c
}

func newAddCommand() *cobra.Command {
	return editCommand("add <class> --set key=value...", "Add an entity.", cobra.ExactArgs(1),
		func(ctx context.Context, s *console.Session, class entity.Class, _ int64, values map[string]any) error {
			return s.Add(ctx, class, values)
		})
}

func newUpdateCommand() *cobra.Command {
	return editCommand("update <class> <id> --set key=value...", "Update fields of an entity.", cobra.ExactArgs(2),
		func(ctx context.Context, s *console.Session, class entity.Class, id int64, values map[string]any) error {
			return s.Update(ctx, class, id, values)
		})
}

func newCopyCommand() *cobra.Command {
	return editCommand("copy <class> <id> [--set key=value...]", "Add a copy of an entity.", cobra.ExactArgs(2),
		func(ctx context.Context, s *console.Session, class entity.Class, id int64, values map[string]any) error {
			return s.Copy(ctx, class, id, values)
		})
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <class> <id>",
		Short: "Delete an entity.",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			class, id, err := classArgs(args)
			if err != nil {
				return err
			}

			return run(func(ctx context.Context, s *console.Session) error {
				return s.Delete(ctx, class, id)
			})
		},
	}
}

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <class> [id]",
		Short: "Print entities as import-ready JSON.",
		Long:  "Print one entity, or every entity of the class when no id is given, as import-ready JSON.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			class, id, err := classArgs(args)
			if err != nil {
				return err
			}

			return run(func(ctx context.Context, s *console.Session) error {
				return s.Export(ctx, class, id)
			})
		},
	}
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <class> [file]",
		Short: "Add every record of an export.",
		Long: `Add every record of an export read from file, or from stdin when no file or "-" is given.

Records are added to the class named by their own type; the class argument selects
the list that is refreshed and shown afterwards.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			class, err := entity.ParseClass(args[0])
			if err != nil {
				return err
			}

			var data []byte

			if len(args) < 2 || args[1] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(filepath.Clean(args[1]))
			}

			if err != nil {
				return fmt.Errorf("read import data: %w", err)
			}

			return run(func(ctx context.Context, s *console.Session) error {
				result, err := s.Import(ctx, class, string(data))
				if err != nil {
					return err
				}

				if result.Failed > 0 {
					return fmt.Errorf("%w: %d of %d records failed", errImportFailed, result.Failed, result.Completed())
				}

				return nil
			})
		},
	}
}
