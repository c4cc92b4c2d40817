package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tagview/tagview/internal/config"
	"github.com/tagview/tagview/internal/constants"
	"github.com/tagview/tagview/internal/index"
	"github.com/tagview/tagview/internal/layout"
	"github.com/tagview/tagview/internal/logging"
	"github.com/tagview/tagview/internal/pagestore"
	"github.com/tagview/tagview/internal/remote"
	"github.com/tagview/tagview/internal/resources"
	"github.com/tagview/tagview/internal/retry"
	"github.com/tagview/tagview/internal/sim"
	"github.com/tagview/tagview/internal/view"
)

type simulateFlags struct {
	source      string
	dir         string
	url         string
	items       int
	seed        int64
	viewport    string
	columnWidth int
	scrollTo    []float64
	dragTo      []float64
	zoom        []int
	filter      string
	sortBy      string
	strict      bool
}

// newSimulateCmd creates the 'simulate' command.
func newSimulateCmd() *cobra.Command {
	f := &simulateFlags{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the layout engine headlessly and report each pass",
		Long: `Open a virtual list over a dataset, apply scripted viewport actions and
print the settled layout after each one.

Sources:
  memory  - generated rows (--items, --seed)
  index   - a directory index built by 'tagview index' (--dir)
  remote  - an HTTP page API (--url, or base_url in engine.conf)

Actions run in this order: --scroll-to fractions, --drag-to fractions,
then --zoom column widths.

Examples:
  tagview simulate --items 250000 --scroll-to 0.5 --drag-to 1
  tagview simulate --source index --dir ~/Pictures --zoom 150,300
  tagview simulate --source remote --url http://localhost:8080/api/sets/1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.source, "source", "memory", "Dataset source: memory, index or remote")
	cmd.Flags().StringVar(&f.dir, "dir", "", "Indexed directory (index source)")
	cmd.Flags().StringVar(&f.url, "url", "", "Page API base URL (remote source)")
	cmd.Flags().IntVar(&f.items, "items", 100000, "Number of generated items (memory source)")
	cmd.Flags().Int64Var(&f.seed, "seed", 1, "Generator seed (memory source)")
	cmd.Flags().StringVar(&f.viewport, "viewport", "1280x800", "Viewport size WIDTHxHEIGHT")
	cmd.Flags().IntVar(&f.columnWidth, "column-width", 0, "Column width (default from engine.conf)")
	cmd.Flags().Float64SliceVar(&f.scrollTo, "scroll-to", nil, "Scroll to these fractions of the range")
	cmd.Flags().Float64SliceVar(&f.dragTo, "drag-to", nil, "Drag the scrollbar and release at these fractions")
	cmd.Flags().IntSliceVar(&f.zoom, "zoom", nil, "Change the column width to these values")
	cmd.Flags().StringVar(&f.filter, "filter", "", "File name filter (index source)")
	cmd.Flags().StringVar(&f.sortBy, "sort", "", "Sort field, optionally prefixed with - for descending (index source)")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "Always lay out the buffered window only")
	return cmd
}

func runSimulate(cmd *cobra.Command, f *simulateFlags) error {
	logger := GetLogger()
	ec := GetEngineConfig()
	if err := ec.Validate(); err != nil {
		return fmt.Errorf("invalid engine.conf: %w", err)
	}

	width, height, err := parseViewport(f.viewport)
	if err != nil {
		return err
	}

	src, closeSrc, err := openSource(f, ec, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	rm := resources.NewManager(resources.Config{
		LoadWorkers:      ec.Paging.LoadWorkers,
		MaxResidentPages: ec.Paging.MaxResidentPages,
	})

	cache, err := layout.NewCache(ec.Cache.MemoryEntries, ec.Cache.Dir, logger)
	if err != nil {
		return fmt.Errorf("layout cache: %w", err)
	}

	vc := view.ConfigFromEngine(ec)
	vc.Cache = cache
	if f.columnWidth > 0 {
		vc.ColumnWidth = f.columnWidth
	}
	if f.strict {
		vc.Policy.Strict = true
	}
	if f.source == "index" {
		vc.DatasetKey = "index:" + f.dir + ":" + f.sortBy + ":" + f.filter
	}

	opts := sim.Options{
		View: vc,
		Store: pagestore.Config{
			PageSize:    ec.Paging.PageSize,
			Workers:     rm.LoadWorkers(),
			MaxResident: rm.ResidentPages(),
			Retry: retry.Config{
				MaxRetries:     ec.Paging.LoadMaxRetries,
				InitialDelay:   constants.LoadRetryInitialDelay,
				MaxDelay:       constants.LoadRetryMaxDelay,
				AttemptTimeout: ec.Paging.LoadTimeout,
			},
		},
		Width:  width,
		Height: height,
		Logger: logger,
	}
	for _, v := range f.scrollTo {
		opts.Steps = append(opts.Steps, sim.Step{Kind: sim.StepScroll, Value: v})
	}
	for _, v := range f.dragTo {
		opts.Steps = append(opts.Steps, sim.Step{Kind: sim.StepDrag, Value: v})
	}
	for _, v := range f.zoom {
		opts.Steps = append(opts.Steps, sim.Step{Kind: sim.StepZoom, Value: float64(v)})
	}

	logger.Info().
		Str("source", f.source).
		Int("workers", rm.LoadWorkers()).
		Int("resident_pages", rm.ResidentPages()).
		Int("steps", len(opts.Steps)).
		Msg("starting simulation")

	report, err := sim.Run(GetContext(), src, opts)
	if report != nil {
		printReport(cmd, report)
	}
	return err
}

func openSource(f *simulateFlags, ec *config.EngineConfig, logger *logging.Logger) (pagestore.Source, func(), error) {
	noop := func() {}
	switch f.source {
	case "memory":
		if f.items < 0 {
			return nil, noop, fmt.Errorf("--items must not be negative")
		}
		return pagestore.NewMemorySource(pagestore.GenerateRows(f.items, f.seed)), noop, nil

	case "index":
		if f.dir == "" {
			return nil, noop, fmt.Errorf("--dir is required for the index source")
		}
		db, err := index.Open(f.dir, logger)
		if err != nil {
			return nil, noop, err
		}
		if f.sortBy != "" {
			s := index.Sort{Field: strings.TrimPrefix(f.sortBy, "-"), Desc: strings.HasPrefix(f.sortBy, "-")}
			if err := db.SetSort(s); err != nil {
				db.Close()
				return nil, noop, err
			}
		}
		db.SetFilter(f.filter)
		return db, func() { db.Close() }, nil

	case "remote":
		rc := ec.Remote
		if f.url != "" {
			rc.BaseURL = f.url
		}
		if rc.BaseURL == "" {
			return nil, noop, fmt.Errorf("--url or [remote] base_url is required for the remote source")
		}
		src, err := remote.NewFromConfig(rc, logger)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown source %q (memory, index, remote)", f.source)
	}
}

func parseViewport(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid viewport %q, want WIDTHxHEIGHT", s)
	}
	width, err1 := strconv.Atoi(strings.TrimSpace(w))
	height, err2 := strconv.Atoi(strings.TrimSpace(h))
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport %q, want WIDTHxHEIGHT", s)
	}
	return width, height, nil
}

func printReport(cmd *cobra.Command, report *sim.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Session "+report.Session))

	rows := make([][]string, 0, len(report.Snapshots))
	for _, s := range report.Snapshots {
		mode := "window"
		if s.FullLayout {
			mode = "full"
		}
		rows = append(rows, []string{
			s.Step.String(),
			strconv.FormatUint(s.Generation, 10),
			fmt.Sprintf("%d-%d", s.StartPage, s.EndPage),
			mode,
			humanize.Comma(int64(s.Items)),
			strconv.Itoa(s.Visible),
			humanize.Comma(int64(s.TotalHeight)),
			fmt.Sprintf("%s/%s", humanize.Comma(int64(s.ScrollValue)), humanize.Comma(int64(s.ScrollMax))),
			strconv.FormatFloat(s.AvgRow, 'f', 1, 64),
			s.Elapsed.Round(1e6).String(),
		})
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Step", "Gen", "Pages", "Mode", "Placed", "Visible", "Height", "Scroll", "Avg row", "Time"}, rows))

	if len(report.Events) == 0 {
		return
	}
	evRows := make([][]string, 0, len(report.Events)+1)
	for t, c := range report.Events {
		evRows = append(evRows, []string{string(t), humanize.Comma(int64(c))})
	}
	sort.Slice(evRows, func(i, j int) bool { return evRows[i][0] < evRows[j][0] })
	if report.Dropped > 0 {
		evRows = append(evRows, []string{"dropped", humanize.Comma(report.Dropped)})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Event", "Count"}, evRows))
}
