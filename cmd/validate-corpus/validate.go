package main

import (
	"context"
	"io"

	"github.com/jingkaihe/corpuscheck/pkg/config"
	"github.com/jingkaihe/corpuscheck/pkg/corpus"
	"github.com/jingkaihe/corpuscheck/pkg/logger"
	"github.com/jingkaihe/corpuscheck/pkg/presenter"
	"github.com/jingkaihe/corpuscheck/pkg/report"
	"github.com/jingkaihe/corpuscheck/pkg/validate"
)

// buildReport loads the corpus and runs every enabled rule over it
func buildReport(ctx context.Context, cfg *config.Config) (*report.Report, error) {
	c, err := corpus.LoadCorpus(ctx, cfg.Root, cfg.LoaderOptions()...)
	if err != nil {
		return nil, err
	}

	v, err := validate.NewValidator(cfg.ValidatorOptions()...)
	if err != nil {
		return nil, err
	}

	return report.New(c, v.Run(ctx, c)), nil
}

// runValidate builds the report, saves the JSON copy when requested, and only
// then prints it. It returns the process exit code.
func runValidate(ctx context.Context, cfg *config.Config, out io.Writer) (int, error) {
	r, err := buildReport(ctx, cfg)
	if err != nil {
		return exitFailure, err
	}

	if cfg.Output.JSON != "" {
		if err := r.SaveJSON(cfg.Output.JSON); err != nil {
			return exitFailure, err
		}
		logger.G(ctx).WithField("path", cfg.Output.JSON).Debug("Saved JSON report")
	}

	if err := printReport(r, cfg.Format(), out); err != nil {
		return exitFailure, err
	}

	logger.G(ctx).WithField("exit_code", r.ExitCode()).Info("Validation finished")
	return r.ExitCode(), nil
}

func printReport(r *report.Report, format report.Format, out io.Writer) error {
	if presenter.IsQuiet() {
		return nil
	}
	if err := r.Write(out, format); err != nil {
		return err
	}
	if format == report.FormatTable {
		presenter.ShowSummary(r.Summary())
	}
	return nil
}
