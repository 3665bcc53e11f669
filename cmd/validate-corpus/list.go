package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/corpuscheck/pkg/config"
	"github.com/jingkaihe/corpuscheck/pkg/corpus"
	"github.com/jingkaihe/corpuscheck/pkg/presenter"
)

var listCmd = &cobra.Command{
	Use:   "list [rootPath]",
	Short: "List the documents of a corpus",
	Long: `List every loaded document with its kind, frontmatter name and number of outbound links.

Examples:
  validate-corpus list
  validate-corpus list ./skills --kind skill
  validate-corpus list --kind agent,reference`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, _ []string) {
		cfg, ok := requireConfig()
		if !ok {
			return
		}

		kinds, _ := cmd.Flags().GetStringSlice("kind")
		if err := runList(cmd.Context(), cfg, kinds, cmd.OutOrStdout()); err != nil {
			fail(err, "Failed to list documents")
		}
	},
}

func init() {
	listCmd.Flags().StringSliceP("kind", "k", nil, "Only list documents of these kinds (skill, agent, reference)")
}

func parseKinds(names []string) ([]corpus.Kind, error) {
	kinds := make([]corpus.Kind, 0, len(names))
	for _, name := range names {
		k, ok := corpus.ParseKind(name)
		if !ok {
			return nil, errors.Errorf("unknown document kind '%s', expected skill, agent or reference", name)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func runList(ctx context.Context, cfg *config.Config, kindNames []string, out io.Writer) error {
	kinds, err := parseKinds(kindNames)
	if err != nil {
		return err
	}

	c, err := corpus.LoadCorpus(ctx, cfg.Root, cfg.LoaderOptions()...)
	if err != nil {
		return err
	}

	for _, e := range c.Errors {
		presenter.Warning(e.Error())
	}

	records := c.Filter(kinds...)
	if len(records) == 0 {
		presenter.Info("No documents found")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("PATH", "KIND", "NAME", "LINKS")

	for _, r := range records {
		name := r.Name()
		if name == "" {
			name = "-"
		}
		t.Row(r.Path, string(r.Kind), name, strconv.Itoa(len(r.OutboundLinks)))
	}

	_, err = fmt.Fprintln(out, t.Render())
	return errors.Wrap(err, "failed to write document list")
}
