// Package extract acquires the raw retail transactions: it downloads and
// unpacks the dataset archive, caches it on disk and parses it into typed
// transactions.
package extract

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "ecomfp/internal/errors"
	"ecomfp/pkg/contracts/domain"
)

// Metadata summarizes what was extracted, for the run metadata side file.
type Metadata struct {
	DataPath           string
	UniqueInvoiceDates int
	RowsSkipped        int
}

// Extractor reads raw transactions from the local cache, downloading the
// dataset first when the cache is cold.
type Extractor struct {
	source   *Source
	dataset  string
	cacheDir string
	logger   *slog.Logger
}

// NewExtractor creates an extractor that caches under cacheDir.
func NewExtractor(source *Source, dataset, cacheDir string, logger *slog.Logger) *Extractor {
	return &Extractor{
		source:   source,
		dataset:  dataset,
		cacheDir: cacheDir,
		logger:   logger,
	}
}

// Extract returns the raw transactions. A populated cache is used as-is; an
// empty or unparseable cached file is purged before the error surfaces, so
// the next run starts from a clean download.
func (e *Extractor) Extract(ctx context.Context) ([]domain.Transaction, *Metadata, error) {
	path, err := e.cachedFile()
	if err != nil {
		return nil, nil, err
	}

	if path == "" {
		e.logger.InfoContext(ctx, "cache is cold, downloading dataset",
			slog.String("dataset", e.dataset))
		files, err := e.source.Download(ctx, e.dataset, e.cacheDir)
		if err != nil {
			return nil, nil, err
		}
		path = pickDataFile(files)
		if path == "" {
			return nil, nil, apperrors.NewSourceUnavailableError(
				"downloaded archive contains no csv or xlsx file", nil)
		}
	} else {
		e.logger.InfoContext(ctx, "using cached dataset", slog.String("path", path))
	}

	result, err := ReadFile(path)
	if err != nil {
		e.purge(ctx, path)
		return nil, nil, err
	}

	if len(result.Transactions) == 0 {
		e.purge(ctx, path)
		return nil, nil, apperrors.NewEmptyCacheError(path)
	}

	if result.RowsSkipped > 0 {
		e.logger.WarnContext(ctx, "skipped malformed rows",
			slog.Int("rows_skipped", result.RowsSkipped))
	}

	meta := &Metadata{
		DataPath:           path,
		UniqueInvoiceDates: countUniqueDates(result.Transactions),
		RowsSkipped:        result.RowsSkipped,
	}

	return result.Transactions, meta, nil
}

// cachedFile returns the cached data file, or "" when the cache is cold.
func (e *Extractor) cachedFile() (string, error) {
	entries, err := os.ReadDir(e.cacheDir)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewSourceUnavailableError("failed to read cache directory", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(e.cacheDir, entry.Name()))
	}

	return pickDataFile(files), nil
}

// purge removes a cached file that turned out to be unusable.
func (e *Extractor) purge(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		e.logger.WarnContext(ctx, "failed to purge cached file",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	e.logger.InfoContext(ctx, "purged unusable cached file", slog.String("path", path))
}

// pickDataFile chooses the data file among unpacked cache entries, CSV
// before XLSX, alphabetical within a format.
func pickDataFile(files []string) string {
	sort.Strings(files)
	for _, ext := range []string{".csv", ".xlsx"} {
		for _, f := range files {
			if strings.EqualFold(filepath.Ext(f), ext) {
				return f
			}
		}
	}
	return ""
}

// countUniqueDates counts distinct invoice timestamps at full date+time
// granularity; two invoices on the same day at different times count twice.
func countUniqueDates(transactions []domain.Transaction) int {
	seen := make(map[time.Time]struct{})
	for _, txn := range transactions {
		seen[txn.InvoiceDate] = struct{}{}
	}
	return len(seen)
}
