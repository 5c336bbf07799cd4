// Command authflow-demo wires the engine against real infrastructure: a
// Postgres credential store, Redis verification state, and Mailgun delivery.
// Configuration comes from the environment (see the config package), and
// engine counters are exported through the OpenTelemetry bridge onto a
// Prometheus-style stdout dump on shutdown.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	authflow "github.com/rkhondokar/authflow"
	"github.com/rkhondokar/authflow/config"
	"github.com/rkhondokar/authflow/gormstore"
	"github.com/rkhondokar/authflow/mail"
	otelexport "github.com/rkhondokar/authflow/metrics/export/otel"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := gormstore.Open(settings.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     settings.RedisAddr,
		Password: settings.RedisPassword,
		DB:       settings.RedisDB,
	})
	defer rdb.Close()

	var mailer mail.Mailer = mail.Discard{}
	if settings.MailgunAPIKey != "" {
		mailer = mail.NewMailgun(settings.MailgunDomain, settings.MailgunAPIKey, settings.MailgunAPIBase)
	} else {
		logger.Warn("MAILGUN_API_KEY not set, verification emails are discarded")
	}

	engine, err := authflow.New().
		WithConfig(settings.AuthConfig()).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithMailer(mailer, settings.EmailFrom).
		WithLogger(logger).
		WithAuditSink(authflow.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	exporter, err := otelexport.NewExporter(provider.Meter("authflow"), engine)
	if err != nil {
		return fmt.Errorf("metrics exporter: %w", err)
	}
	defer exporter.Close()

	logger.Info("engine ready", slog.Int("port", settings.ServerPort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	// Final counter dump before exit.
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err == nil {
		dumpCounters(logger, rm)
	}

	logger.Info("shutting down")
	return nil
}

func dumpCounters(logger *slog.Logger, rm metricdata.ResourceMetrics) {
	counters := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				counters[m.Name] += dp.Value
			}
		}
	}
	if encoded, err := json.Marshal(counters); err == nil {
		logger.Info("final counters", slog.String("counters", string(encoded)))
	}
}
