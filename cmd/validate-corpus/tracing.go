package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jingkaihe/corpuscheck/pkg/config"
	"github.com/jingkaihe/corpuscheck/pkg/logger"
	"github.com/jingkaihe/corpuscheck/pkg/telemetry"
	"github.com/jingkaihe/corpuscheck/pkg/version"
)

var (
	tracer         = telemetry.Tracer("corpuscheck.cli")
	tracerShutdown func(context.Context) error
)

// initTracing initializes the OpenTelemetry tracing system
func initTracing(ctx context.Context, cfg *config.Config) error {
	shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry(version.Get().Version))
	if err != nil {
		return err
	}
	tracerShutdown = shutdown
	return nil
}

// shutdownTracing flushes pending spans
func shutdownTracing(ctx context.Context) {
	if tracerShutdown == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := tracerShutdown(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("Failed to flush traces")
	}
	tracerShutdown = nil
}

// withTracing wraps a Cobra command with tracing
func withTracing(cmd *cobra.Command) *cobra.Command {
	originalRun := cmd.Run

	cmd.Run = func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		attrs := []attribute.KeyValue{
			attribute.String("command.name", cmd.Name()),
			attribute.String("command.path", cmd.CommandPath()),
			attribute.Int("args.count", len(args)),
		}
		cmd.Flags().Visit(func(flag *pflag.Flag) {
			attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
		})

		ctx, span := tracer.Start(ctx, "cli.command", trace.WithAttributes(attrs...))
		defer span.End()

		cmd.SetContext(ctx)
		originalRun(cmd, args)

		span.SetAttributes(attribute.Int("exit.code", exitCode))
		if exitCode == exitFailure {
			span.SetStatus(codes.Error, "command failed")
			return
		}
		span.SetStatus(codes.Ok, "")
	}

	return cmd
}

func init() {
	rootCmd.PersistentFlags().Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	rootCmd.PersistentFlags().String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	rootCmd.PersistentFlags().Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")
}
