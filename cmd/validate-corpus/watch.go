package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/corpuscheck/pkg/config"
	"github.com/jingkaihe/corpuscheck/pkg/logger"
	"github.com/jingkaihe/corpuscheck/pkg/presenter"
	"github.com/jingkaihe/corpuscheck/pkg/report"
	"github.com/jingkaihe/corpuscheck/pkg/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [rootPath]",
	Short: "Re-validate the corpus whenever a document changes",
	Long: `Validate the corpus once, then keep watching the root directory and re-validate
whenever a Markdown document is created, changed or removed. After each run only the
problems that appeared or disappeared are printed, as a unified diff.

If --json is set, the JSON report file is rewritten after every run.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, _ []string) {
		cfg, ok := requireConfig()
		if !ok {
			return
		}

		if err := runWatch(cmd.Context(), cfg, cmd.OutOrStdout()); err != nil {
			fail(err, "Failed to watch corpus")
		}
	},
}

func init() {
	watchCmd.Flags().DurationP("debounce", "d", config.DefaultDebounce, "Quiet period after a change before re-validating")
}

func runWatch(ctx context.Context, cfg *config.Config, out io.Writer) error {
	w, err := watch.New(ctx, cfg.Root,
		watch.WithInclude(cfg.Include...),
		watch.WithExclude(cfg.Exclude...),
		watch.WithDebounce(cfg.Watch.Debounce),
	)
	if err != nil {
		return err
	}

	previous, err := buildReport(ctx, cfg)
	if err != nil {
		w.Close()
		return err
	}
	if err := saveAndPrint(previous, cfg, out); err != nil {
		w.Close()
		return err
	}

	presenter.Info("Watching for changes... Press Ctrl+C to stop")

	return w.Run(ctx, func(ctx context.Context, changed []string) {
		if next := revalidate(ctx, cfg, out, previous, changed); next != nil {
			previous = next
		}
	})
}

// revalidate rebuilds the report after a change and prints the problems that
// appeared or disappeared since previous. It returns nil when the corpus
// could not be validated.
func revalidate(ctx context.Context, cfg *config.Config, out io.Writer, previous *report.Report, changed []string) *report.Report {
	presenter.Separator()
	presenter.Section("Change detected")
	presenter.Info(strings.Join(changed, "\n"))

	next, err := buildReport(ctx, cfg)
	if err != nil {
		presenter.Error(err, "Failed to validate corpus")
		return nil
	}
	if cfg.Output.JSON != "" {
		if err := next.SaveJSON(cfg.Output.JSON); err != nil {
			presenter.Error(err, "Failed to save JSON report")
		}
	}

	if diff := report.Diff(previous, next); diff != "" {
		if !presenter.IsQuiet() {
			fmt.Fprint(out, diff)
		}
	} else {
		presenter.Info("No change in problems")
	}
	presenter.ShowSummary(next.Summary())

	logger.G(ctx).WithField("changed", len(changed)).WithField("problems", next.Summary().Problems()).Info("Re-validated corpus")
	return next
}

func saveAndPrint(r *report.Report, cfg *config.Config, out io.Writer) error {
	if cfg.Output.JSON != "" {
		if err := r.SaveJSON(cfg.Output.JSON); err != nil {
			return err
		}
	}
	return printReport(r, cfg.Format(), out)
}
