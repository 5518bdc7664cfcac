// Package pipeline orchestrates a full run: extract, transform, validate,
// publish, persist run metadata.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "ecomfp/internal/errors"
	"ecomfp/internal/extract"
	"ecomfp/internal/infrastructure"
	"ecomfp/internal/transform"
	"ecomfp/internal/validation"
	"ecomfp/pkg/contracts/domain"
)

// Extractor produces the raw transactions for a run.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.Transaction, *extract.Metadata, error)
}

// Publisher pushes a validated table to the feature store.
type Publisher interface {
	Publish(ctx context.Context, table *domain.FeatureTable, version int) (*domain.FeatureGroup, error)
}

// OfflineSink mirrors published rows into an offline store.
type OfflineSink interface {
	Append(ctx context.Context, runID string, version int, table *domain.FeatureTable) error
}

// Runner executes pipeline runs.
type Runner struct {
	extractor Extractor
	publisher Publisher
	offline   OfflineSink
	suite     validation.Suite
	opts      transform.Options

	metadataPath string
	tracer       trace.Tracer
	metrics      *infrastructure.PipelineMetrics
	logger       *slog.Logger
}

// Options configures the runner's fixed collaborators. Offline may be nil.
type Options struct {
	Extractor    Extractor
	Publisher    Publisher
	Offline      OfflineSink
	Transform    transform.Options
	MetadataPath string
	Tracer       trace.Tracer
	Metrics      *infrastructure.PipelineMetrics
	Logger       *slog.Logger
}

// NewRunner wires a runner from its collaborators.
func NewRunner(opts Options) *Runner {
	return &Runner{
		extractor:    opts.Extractor,
		publisher:    opts.Publisher,
		offline:      opts.Offline,
		suite:        validation.BuildSuite(),
		opts:         opts.Transform,
		metadataPath: opts.MetadataPath,
		tracer:       opts.Tracer,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
}

// Run executes one pipeline run targeting the given feature group version.
// Validation failure stops the run before anything reaches the store. The
// metadata side file is written only for successful runs.
func (r *Runner) Run(ctx context.Context, version int) (*domain.RunMetadata, error) {
	runID := uuid.NewString()
	ctx = infrastructure.WithRunID(ctx, runID)
	startedAt := time.Now().UTC()

	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.Int("feature_group_version", version),
		))
	defer span.End()

	r.logger.InfoContext(ctx, "pipeline run started",
		slog.Int("feature_group_version", version))

	transactions, meta, err := r.extract(ctx)
	if err != nil {
		return nil, r.fail(ctx, "extract", err)
	}

	result, err := r.transform(ctx, transactions)
	if err != nil {
		return nil, r.fail(ctx, "transform", err)
	}

	if err := r.validate(ctx, result.Table); err != nil {
		return nil, r.fail(ctx, "validate", err)
	}

	if err := r.publish(ctx, result.Table, runID, version); err != nil {
		return nil, r.fail(ctx, "publish", err)
	}

	metadata := &domain.RunMetadata{
		RunID:               runID,
		DatasetPath:         meta.DataPath,
		UniqueInvoiceDates:  meta.UniqueInvoiceDates,
		FeatureGroupVersion: version,
		StartedAt:           startedAt,
		FinishedAt:          time.Now().UTC(),
	}

	if err := r.writeMetadata(metadata); err != nil {
		return nil, r.fail(ctx, "metadata", err)
	}

	r.logger.InfoContext(ctx, "pipeline run finished",
		slog.Int("rows_published", result.Table.NumRows()),
		slog.String("duration", metadata.FinishedAt.Sub(startedAt).String()))

	return metadata, nil
}

func (r *Runner) extract(ctx context.Context) ([]domain.Transaction, *extract.Metadata, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.extract")
	defer span.End()
	start := time.Now()

	transactions, meta, err := r.extractor.Extract(ctx)
	infrastructure.RecordStageDuration(ctx, r.metrics, "extract", time.Since(start), err == nil)
	if err != nil {
		return nil, nil, err
	}

	if r.metrics != nil {
		r.metrics.RowsExtracted.Add(ctx, int64(len(transactions)))
	}
	r.logger.InfoContext(ctx, "extracted transactions",
		slog.Int("rows", len(transactions)),
		slog.String("data_path", meta.DataPath))

	return transactions, meta, nil
}

func (r *Runner) transform(ctx context.Context, transactions []domain.Transaction) (*transform.Result, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.transform")
	defer span.End()
	start := time.Now()

	result, err := transform.Run(transactions, r.opts)
	infrastructure.RecordStageDuration(ctx, r.metrics, "transform", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	var outliers, interpolated int
	for _, s := range result.Stats {
		outliers += s.OutliersRemoved
		interpolated += s.DaysInterpolated
	}

	if r.metrics != nil {
		r.metrics.RowsFiltered.Add(ctx, int64(result.RowsFiltered))
		r.metrics.OutliersRemoved.Add(ctx, int64(outliers))
		r.metrics.DaysInterpolated.Add(ctx, int64(interpolated))
	}
	r.logger.InfoContext(ctx, "transformed transactions",
		slog.Int("rows_filtered", result.RowsFiltered),
		slog.Int("outliers_removed", outliers),
		slog.Int("days_interpolated", interpolated),
		slog.Int("feature_rows", result.Table.NumRows()))

	return result, nil
}

func (r *Runner) validate(ctx context.Context, table *domain.FeatureTable) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.validate")
	defer span.End()
	start := time.Now()

	err := r.suite.Check(table)
	infrastructure.RecordStageDuration(ctx, r.metrics, "validate", time.Since(start), err == nil)
	if err != nil {
		failed := apperrors.FailedRules(err)
		if r.metrics != nil {
			r.metrics.ValidationFailures.Add(ctx, int64(len(failed)))
		}
		r.logger.ErrorContext(ctx, "candidate table failed validation",
			slog.Any("failed_rules", failed))
		return err
	}

	return nil
}

func (r *Runner) publish(ctx context.Context, table *domain.FeatureTable, runID string, version int) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.publish")
	defer span.End()
	start := time.Now()

	group, err := r.publisher.Publish(ctx, table, version)
	infrastructure.RecordStageDuration(ctx, r.metrics, "publish", time.Since(start), err == nil)
	if err != nil {
		return err
	}

	if r.metrics != nil {
		r.metrics.RowsPublished.Add(ctx, int64(table.NumRows()))
	}
	r.logger.InfoContext(ctx, "published feature table",
		slog.String("group", group.Name),
		slog.Int("version", group.Version),
		slog.Int("rows", table.NumRows()))

	if r.offline != nil {
		if err := r.offline.Append(ctx, runID, version, table); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) writeMetadata(metadata *domain.RunMetadata) error {
	if r.metadataPath == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(r.metadataPath), 0755); err != nil {
		return apperrors.NewPublicationError("failed to create metadata directory", err)
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return apperrors.NewPublicationError("failed to encode run metadata", err)
	}

	if err := os.WriteFile(r.metadataPath, data, 0644); err != nil {
		return apperrors.NewPublicationError("failed to write run metadata", err)
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, stage string, err error) error {
	infrastructure.RecordError(ctx, err)
	r.logger.ErrorContext(ctx, "pipeline run failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()))
	return err
}
