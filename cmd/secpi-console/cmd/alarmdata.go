package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oshokin/secpi-console/internal/service/console"
)

func newAlarmDataCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "alarmdata",
		Short: "Browse the files captured for each alarm.",
	}

	c.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List alarm folders.",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return run(func(ctx context.Context, s *console.Session) error {
					return s.AlarmData(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "files <folder>",
			Short: "List the files of an alarm folder.",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				return run(func(ctx context.Context, s *console.Session) error {
					return s.AlarmFiles(ctx, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "extract <folder> <archive>",
			Short: "Unpack an archive inside its alarm folder.",
			Args:  cobra.ExactArgs(2), //nolint:mnd // Folder and archive.
			RunE: func(_ *cobra.Command, args []string) error {
				return run(func(ctx context.Context, s *console.Session) error {
					return s.ExtractAlarmFile(ctx, args[0], args[1])
				})
			},
		},
		newDownloadCommand(),
	)

	return c
}

func newDownloadCommand() *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "download <folder> <file>",
		Short: "Save an alarm file locally.",
		Long: `Save an alarm file locally, by default under its own name in the current directory.

Use --output - to write the file to stdout.`,
		Args: cobra.ExactArgs(2), //nolint:mnd // Folder and file.
		RunE: func(_ *cobra.Command, args []string) error {
			folder, name := args[0], args[1]

			target := output
			if target == "" {
				target = filepath.Base(name)
			}

			return run(func(ctx context.Context, s *console.Session) error {
				if target == "-" {
					_, err := s.DownloadAlarmFile(ctx, folder, name, os.Stdout)

					return err
				}

				return downloadTo(ctx, s, folder, name, target)
			})
		},
	}

	c.Flags().StringVarP(&output, "output", "o", "", "destination path, - for stdout")

	return c
}

func downloadTo(ctx context.Context, s *console.Session, folder, name, target string) (err error) {
	f, err := os.Create(filepath.Clean(target))
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, f.Close())
	}()

	n, err := s.DownloadAlarmFile(ctx, folder, name, f)
	if err != nil {
		_ = os.Remove(target)

		return err
	}

	_, err = fmt.Fprintf(os.Stdout, "Saved %d bytes to %s\n", n, target)

	return err
}
