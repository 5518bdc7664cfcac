package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"ecomfp/internal/config"
	"ecomfp/internal/extract"
	"ecomfp/internal/infrastructure"
	"ecomfp/internal/pipeline"
	"ecomfp/internal/store"
	"ecomfp/internal/transform"
	"ecomfp/pkg/contracts"
)

func main() {
	dataset := flag.String("data", config.DefaultDatasetPath, "dataset to download (owner/name)")
	version := flag.Int("version", 1, "feature group version to publish to")
	cacheDir := flag.String("cache", "", "raw data cache directory (defaults to configured path)")
	flag.Parse()

	if err := run(*dataset, *version, *cacheDir); err != nil {
		slog.Error("Pipeline run failed", "error", err)
		os.Exit(1)
	}
}

func run(dataset string, version int, cacheDir string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cacheDir != "" {
		cfg.Paths.CacheDir = cacheDir
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer infrastructure.CloseLogFile()

	logger.Info(contracts.GetFullVersionString())

	ctx := context.Background()

	providers, err := infrastructure.InitializeOTel(cfg.Observability, logger)
	if err != nil {
		return err
	}
	defer providers.Shutdown(ctx)

	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	source := extract.NewSource(cfg.Source.BaseURL, cfg.Source.RequestsPerSecond, cfg.Source.Burst)
	extractor := extract.NewExtractor(source, dataset, cfg.Paths.CacheDir, logger)

	publisher := store.NewClient(
		cfg.FeatureStore.BaseURL,
		cfg.FeatureStore.APIKey,
		cfg.FeatureStore.Project,
		cfg.FeatureStore.GroupName,
		cfg.FeatureStore.Description,
		logger,
	)

	var offline pipeline.OfflineSink
	if cfg.OfflineStore.DSN != "" {
		offlineStore, err := store.NewOfflineStore(cfg.OfflineStore.DSN, cfg.OfflineStore.Table, logger)
		if err != nil {
			return err
		}
		defer offlineStore.Close()
		offline = offlineStore
	}

	runner := pipeline.NewRunner(pipeline.Options{
		Extractor: extractor,
		Publisher: publisher,
		Offline:   offline,
		Transform: transform.Options{
			Countries:     cfg.Transform.Countries,
			DeriveCodes:   cfg.Transform.DeriveCodes,
			IQRMultiplier: cfg.Transform.IQRMultiplier,
		},
		MetadataPath: cfg.MetadataPath(),
		Tracer:       providers.Tracer,
		Metrics:      metrics,
		Logger:       logger,
	})

	metadata, err := runner.Run(ctx, version)
	if err != nil {
		return err
	}

	logger.Info("Run metadata written",
		slog.String("run_id", metadata.RunID),
		slog.String("path", cfg.MetadataPath()))
	return nil
}
