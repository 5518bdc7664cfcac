package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ecomfp/internal/errors"
	"ecomfp/pkg/contracts/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func zipWithFile(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func datasetServer(t *testing.T, archive []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExtractDownloadsWhenCacheCold(t *testing.T) {
	server := datasetServer(t, zipWithFile(t, "data.csv", sampleCSV))
	cacheDir := filepath.Join(t.TempDir(), "cache")

	source := NewSource(server.URL, 100, 1)
	extractor := NewExtractor(source, "carrie1/ecommerce-data", cacheDir, discardLogger())

	transactions, meta, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	assert.Len(t, transactions, 3)
	assert.Equal(t, filepath.Join(cacheDir, "data.csv"), meta.DataPath)
	// 8:26 appears twice and 8:45 once: two distinct timestamps
	assert.Equal(t, 2, meta.UniqueInvoiceDates)

	// the unpacked file stays cached for the next run
	_, statErr := os.Stat(meta.DataPath)
	assert.NoError(t, statErr)
}

func TestExtractUsesWarmCache(t *testing.T) {
	cacheDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "data.csv"), []byte(sampleCSV), 0644))

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	source := NewSource(server.URL, 100, 1)
	extractor := NewExtractor(source, "carrie1/ecommerce-data", cacheDir, discardLogger())

	transactions, _, err := extractor.Extract(context.Background())
	require.NoError(t, err)

	assert.Len(t, transactions, 3)
	assert.Zero(t, requests)
}

func TestExtractEmptyCachePurgesAndFails(t *testing.T) {
	cacheDir := t.TempDir()
	path := filepath.Join(cacheDir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("InvoiceNo,InvoiceDate,UnitPrice,Country\n"), 0644))

	source := NewSource("http://localhost:1", 100, 1)
	extractor := NewExtractor(source, "carrie1/ecommerce-data", cacheDir, discardLogger())

	_, _, err := extractor.Extract(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeEmptyCache))

	// the useless file is gone, so a rerun starts from a fresh download
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractCorruptCachePurgesAndFails(t *testing.T) {
	cacheDir := t.TempDir()
	path := filepath.Join(cacheDir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("InvoiceNo,Description\n536365,LANTERN\n"), 0644))

	source := NewSource("http://localhost:1", 100, 1)
	extractor := NewExtractor(source, "carrie1/ecommerce-data", cacheDir, discardLogger())

	_, _, err := extractor.Extract(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractSourceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewSource(server.URL, 100, 1)
	extractor := NewExtractor(source, "carrie1/ecommerce-data", t.TempDir(), discardLogger())

	_, _, err := extractor.Extract(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
}

func TestExtractArchiveWithoutDataFile(t *testing.T) {
	server := datasetServer(t, zipWithFile(t, "readme.txt", "no data here"))

	source := NewSource(server.URL, 100, 1)
	extractor := NewExtractor(source, "carrie1/ecommerce-data", t.TempDir(), discardLogger())

	_, _, err := extractor.Extract(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
}

func TestSourceHasNoInternalTimeout(t *testing.T) {
	source := NewSource("http://localhost:1", 1, 1)
	assert.Zero(t, source.client.Timeout)
}

func TestDownloadHonorsContextCancellation(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	source := NewSource(server.URL, 100, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	_, err := source.Download(ctx, "carrie1/ecommerce-data", t.TempDir())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSourceUnavailable))
}

func TestCountUniqueDatesIsTimestampGranular(t *testing.T) {
	at := func(hour, min int) domain.Transaction {
		return domain.Transaction{
			InvoiceID:   "536365",
			InvoiceDate: time.Date(2011, time.December, 1, hour, min, 0, 0, time.UTC),
			UnitPrice:   1,
			Country:     "United Kingdom",
		}
	}

	// same calendar day, different times: both count
	assert.Equal(t, 2, countUniqueDates([]domain.Transaction{at(8, 26), at(8, 45)}))
	// identical timestamps collapse to one
	assert.Equal(t, 1, countUniqueDates([]domain.Transaction{at(8, 26), at(8, 26)}))
	assert.Zero(t, countUniqueDates(nil))
}

func TestPickDataFile(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		expected string
	}{
		{
			name:     "csv preferred over xlsx",
			files:    []string{"cache/data.xlsx", "cache/data.csv"},
			expected: "cache/data.csv",
		},
		{
			name:     "xlsx when no csv",
			files:    []string{"cache/readme.txt", "cache/data.xlsx"},
			expected: "cache/data.xlsx",
		},
		{
			name:     "nothing usable",
			files:    []string{"cache/readme.txt"},
			expected: "",
		},
		{
			name:     "empty",
			files:    nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pickDataFile(tt.files))
		})
	}
}
