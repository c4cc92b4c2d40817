package cli

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tagview/tagview/internal/index"
	"github.com/tagview/tagview/internal/progress"
)

// newIndexCmd creates the 'index' command.
func newIndexCmd() *cobra.Command {
	var recursive, hidden, noProgress bool

	cmd := &cobra.Command{
		Use:   "index <dir>",
		Short: "Scan a directory into its dataset index",
		Long: `Scan a directory of images and videos into <dir>/.tagview_index.db.

Image dimensions are read from file headers (PNG, JPEG, GIF, BMP, TIFF, WebP).
Files whose modification time is unchanged keep their stored dimensions, so
rescans are cheap. Videos are indexed without dimensions.

Examples:
  tagview index ~/Pictures/dataset
  tagview index ./frames --recursive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()

			db, err := index.Open(args[0], logger)
			if err != nil {
				return err
			}
			defer db.Close()

			var reporter progress.Reporter = progress.NewNoOpProgress()
			if !noProgress && isTerminal(cmd.ErrOrStderr()) {
				reporter = progress.NewCLIProgress()
			}

			res, err := db.Scan(GetContext(), index.ScanOptions{
				Recursive:     recursive,
				IncludeHidden: hidden,
				Progress:      reporter,
			})
			if err != nil {
				return fmt.Errorf("scan failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Indexed "+db.Dir()))
			fmt.Fprintln(out, renderTable(out, []string{"Files", "Added", "Updated", "Unchanged", "Removed", "Unreadable", "Time"}, [][]string{{
				humanize.Comma(int64(res.Total)),
				strconv.Itoa(res.Added),
				strconv.Itoa(res.Updated),
				strconv.Itoa(res.Unchanged),
				strconv.Itoa(res.Removed),
				strconv.Itoa(res.Failed),
				res.Elapsed.Round(1e6).String(),
			}}))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Include subdirectories")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Include hidden files and directories")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

// newStatsCmd creates the 'stats' command.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <dir>",
		Short: "Summarize a dataset index",
		Long: `Show item counts, total size and an aspect ratio histogram for the index
in <dir>. Run 'tagview index <dir>' first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := index.Open(args[0], GetLogger())
			if err != nil {
				return err
			}
			defer db.Close()

			s, err := db.Stats(GetContext())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Index "+db.Path()))
			fmt.Fprintln(out, renderTable(out, []string{"Metric", "Value"}, [][]string{
				{"Items", humanize.Comma(int64(s.Total))},
				{"Videos", humanize.Comma(int64(s.Videos))},
				{"Size", humanize.Bytes(uint64(s.Bytes))},
				{"Portrait (< 0.9)", humanize.Comma(int64(s.Portrait))},
				{"Square (0.9 - 1.1)", humanize.Comma(int64(s.Square))},
				{"Landscape (1.1 - 2)", humanize.Comma(int64(s.Landscape))},
				{"Wide (>= 2)", humanize.Comma(int64(s.Wide))},
				{"Unknown size", humanize.Comma(int64(s.Unknown))},
			}))
			return nil
		},
	}
}
