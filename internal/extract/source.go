package extract

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	apperrors "ecomfp/internal/errors"
)

// Source downloads dataset archives over HTTP and unpacks them into the
// local cache. Requests are rate limited so repeated runs stay polite to the
// upstream host.
type Source struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewSource creates a download source for the given base URL. The client
// carries no internal timeout; callers bound the download through the
// request context.
func NewSource(baseURL string, requestsPerSecond float64, burst int) *Source {
	return &Source{
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Download fetches the dataset archive and unpacks it into destDir,
// returning the paths of the unpacked files.
func (s *Source) Download(ctx context.Context, dataset, destDir string) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewSourceUnavailableError("download aborted", err)
	}

	url := s.baseURL + "/" + dataset

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError("failed to build download request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(fmt.Sprintf("failed to download %s", dataset), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewSourceUnavailableError(
			fmt.Sprintf("download of %s failed with status %d", dataset, resp.StatusCode), nil)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, apperrors.NewSourceUnavailableError("failed to create cache directory", err)
	}

	archivePath := filepath.Join(destDir, "dataset.zip")
	if err := writeFile(archivePath, resp.Body); err != nil {
		return nil, apperrors.NewSourceUnavailableError("failed to store downloaded archive", err)
	}
	defer os.Remove(archivePath)

	files, err := unpackArchive(archivePath, destDir)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError("failed to unpack downloaded archive", err)
	}
	if len(files) == 0 {
		return nil, apperrors.NewSourceUnavailableError("downloaded archive contains no data files", nil)
	}

	return files, nil
}

func writeFile(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, r)
	return err
}

// unpackArchive extracts a zip archive flat into dest, skipping directory
// entries and anything that would escape dest.
func unpackArchive(src, dest string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var files []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		name := filepath.Base(f.Name)
		if name == "." || name == ".." || name == "" {
			continue
		}
		path := filepath.Join(dest, name)

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}

		outFile, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			rc.Close()
			return nil, err
		}

		_, err = io.Copy(outFile, rc)
		outFile.Close()
		rc.Close()

		if err != nil {
			return nil, err
		}

		files = append(files, path)
	}

	return files, nil
}
