package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/openjobspec/attempt/internal/attempt"
	"github.com/openjobspec/attempt/internal/cli"
	"github.com/openjobspec/attempt/internal/clock"
	"github.com/openjobspec/attempt/internal/config"
	"github.com/openjobspec/attempt/internal/core"
	"github.com/openjobspec/attempt/internal/logging"
	"github.com/openjobspec/attempt/internal/metrics"
	"github.com/openjobspec/attempt/internal/report"
	"github.com/openjobspec/attempt/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := cli.Parse(args)
	if errors.Is(err, cli.ErrHelp) {
		cli.Usage(stdout)
		return core.ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n\nFor more information, try '--help'.\n", err)
		return core.ExitUsage
	}

	cfg := config.LoadConfig()
	runID := core.NewRunID()

	logger := logging.New(stderr, opts.Verbose, opts.Quiet, logging.ParseFormat(cfg.LogFormat)).With("run_id", runID)
	slog.SetDefault(logger)

	ctx := context.Background()

	// Initialize OpenTelemetry (opt-in via ATTEMPT_OTEL_ENABLED or OTEL_EXPORTER_OTLP_ENDPOINT)
	otelShutdown, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    "attempt",
		ServiceVersion: version,
		Enabled:        cfg.OTelEnabled,
		Endpoint:       cfg.OTelEndpoint,
	})
	if err != nil {
		logger.Error("failed to initialize OpenTelemetry", "error", err)
		return core.ExitIOError
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	metrics.Init(version, string(opts.Backoff.Type))

	runner := attempt.New(clock.Real{}, attempt.ProcSpawner{Stdout: stdout, Stderr: stderr})
	runner.SetLogger(logger)

	summary, err := runner.Run(ctx, opts.RunConfig(runID))
	if err != nil {
		logger.Error(fmt.Sprintf("Failed: %v", err))
		if hint := core.Hint(err); hint != "" {
			logger.Warn(hint)
		}
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics textfile", "path", cfg.MetricsFile, "error", err)
		}
	}

	if cfg.ReportingEnabled() {
		if err := publish(ctx, cfg, summary, opts.Backoff.Type); err != nil {
			logger.Warn("failed to report run", "error", err)
		}
	}

	return summary.ExitCode()
}

// publish sends the run record to every configured sink.
func publish(ctx context.Context, cfg config.Config, summary attempt.Summary, strategy core.BackoffType) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.ReportTimeout)
	defer cancel()

	awsCfg, err := buildAWSConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("configuring AWS: %w", err)
	}

	var sinks report.Multi
	if cfg.ReportQueueURL != "" {
		sinks = append(sinks, report.NewSQSSink(sqs.NewFromConfig(awsCfg), cfg.ReportQueueURL))
	}
	if cfg.ReportTable != "" {
		sinks = append(sinks, report.NewDynamoDBSink(dynamodb.NewFromConfig(awsCfg), cfg.ReportTable))
	}

	host, _ := os.Hostname()
	return sinks.Report(ctx, report.FromSummary(summary, string(strategy), host))
}

func buildAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	// For LocalStack or custom endpoints
	if cfg.AWSEndpointURL != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.AWSEndpointURL,
					HostnameImmutable: true,
					PartitionID:       "aws",
				}, nil
			},
		)
		opts = append(opts,
			awsconfig.WithEndpointResolverWithOptions(customResolver),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")),
		)
	}

	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
