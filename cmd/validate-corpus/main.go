package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jingkaihe/corpuscheck/pkg/config"
	"github.com/jingkaihe/corpuscheck/pkg/corpus"
	"github.com/jingkaihe/corpuscheck/pkg/logger"
	"github.com/jingkaihe/corpuscheck/pkg/presenter"
	"github.com/jingkaihe/corpuscheck/pkg/report"
)

// exitFailure is the exit code used when the corpus could not be validated at
// all. Otherwise the exit code is the report's: 0 when clean, 1 with problems.
const exitFailure = 2

var (
	exitCode int
	current  *config.Config
)

// flagKeys maps command-line flags onto their configuration keys
var flagKeys = map[string]string{
	"include":          "include",
	"exclude":          "exclude",
	"workers":          "workers",
	"read-timeout":     "read_timeout",
	"read-retries":     "read_retries",
	"ignore-link":      "link_ignore",
	"check-cycles":     "checks.cycles",
	"check-duplicates": "checks.duplicate_names",
	"format":           "output.format",
	"json":             "output.json",
	"quiet":            "output.quiet",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"debounce":         "watch.debounce",
	"tracing-enabled":  "tracing.enabled",
	"tracing-sampler":  "tracing.sampler",
	"tracing-ratio":    "tracing.ratio",
}

var rootCmd = &cobra.Command{
	Use:   "validate-corpus [rootPath]",
	Short: "Validate a corpus of Markdown skills, agents and reference documents",
	Long: `validate-corpus loads every Markdown document under a root directory, classifies it
as a skill, an agent or a reference document, and reports missing frontmatter fields
and links that do not resolve to another document in the corpus.

The root directory is taken from the first argument, then CORPUS_ROOT, then the
config file, and defaults to the current directory.

Exit codes: 0 when no problems were found, 1 when load errors or issues were found,
2 when the corpus could not be validated at all.`,
	Args:              cobra.MaximumNArgs(1),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		shutdownTracing(cmd.Context())
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cfg, ok := requireConfig()
		if !ok {
			return
		}

		code, err := runValidate(cmd.Context(), cfg, cmd.OutOrStdout())
		if err != nil {
			fail(err, "Failed to validate corpus")
			return
		}
		exitCode = code
	},
}

func init() {
	defaults := viper.New()
	config.SetDefaults(defaults)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default is ./.validate-corpus.yaml or $HOME/.validate-corpus.yaml)")
	flags.StringSlice("include", corpus.DefaultInclude, "Glob patterns of files to load, relative to the root")
	flags.StringSlice("exclude", corpus.DefaultExclude, "Glob patterns of files and directories to skip")
	flags.Int("workers", defaults.GetInt("workers"), "Number of files read concurrently")
	flags.Duration("read-timeout", corpus.DefaultReadTimeout, "Maximum time to wait for a single file read")
	flags.Int("read-retries", corpus.DefaultReadRetries, "Attempts made for a file read that fails transiently")
	flags.StringSlice("ignore-link", nil, "Glob patterns of link targets that are never reported as broken")
	flags.Bool("check-cycles", false, "Report documents that reference each other in a cycle")
	flags.Bool("check-duplicates", false, "Report skills or agents that share a name")
	flags.StringP("format", "f", string(report.FormatTable), "Output format (table, json, yaml)")
	flags.String("json", "", "Also write the JSON report to this file")
	flags.BoolP("quiet", "q", false, "Only print errors; rely on the exit code")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", defaults.GetString("log.format"), "Log format (fmt, text, json)")

	rootCmd.AddCommand(withTracing(listCmd))
	rootCmd.AddCommand(withTracing(watchCmd))
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
	withTracing(rootCmd)
}

// setup reads configuration for the command being run, configures logging
// and tracing, and tags the command context with a fresh run_id
func setup(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	v, err := config.NewViper(configFile)
	if err != nil {
		return err
	}
	bindFlags(v, cmd.Flags())

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Root = args[0]
	}

	if err := logger.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	presenter.SetQuiet(cfg.Output.Quiet)

	ctx := logger.WithFields(cmd.Context(), logrus.Fields{
		"run_id":  uuid.NewString(),
		"command": cmd.Name(),
	})

	if err := initTracing(ctx, cfg); err != nil {
		return errors.Wrap(err, "failed to initialize tracing")
	}

	current = cfg
	cmd.SetContext(ctx)
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// requireConfig returns the validated configuration of the running command,
// reporting every invalid setting when validation fails
func requireConfig() (*config.Config, bool) {
	if current == nil {
		fail(errors.New("configuration was not loaded"), "Invalid configuration")
		return nil, false
	}
	if err := current.Validate(); err != nil {
		fail(err, "Invalid configuration")
		return nil, false
	}
	return current, true
}

func fail(err error, context string) {
	presenter.Error(err, context)
	exitCode = exitFailure
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		presenter.Error(err, "validate-corpus failed")
		os.Exit(exitFailure)
	}
	os.Exit(exitCode)
}
