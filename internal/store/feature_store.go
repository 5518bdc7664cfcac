// Package store publishes the validated feature table: a REST client for
// the feature store and an optional Postgres offline sink.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	apperrors "ecomfp/internal/errors"
	"ecomfp/pkg/contracts/domain"
	"ecomfp/pkg/contracts/featurestore"
)

// featureDescriptions documents each column of the published group.
var featureDescriptions = map[string]string{
	"id":           "ID of observation",
	"invoice_date": "Datetime interval in UTC when the data was observed.",
	"country":      "Country's origin",
	"total_price":  "Total price at that day",
}

// Client talks to the feature store's REST API.
type Client struct {
	baseURL     string
	apiKey      string
	project     string
	groupName   string
	description string
	client      *http.Client
	logger      *slog.Logger
}

// NewClient creates a feature store client for one project and group. The
// client carries no internal timeout; callers bound requests through the
// context.
func NewClient(baseURL, apiKey, project, groupName, description string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		project:     project,
		groupName:   groupName,
		description: description,
		client:      &http.Client{},
		logger:      logger,
	}
}

// Publish pushes the table to the feature store: create or fetch the group
// at the requested version, append the rows without overwriting, document
// every feature and recompute statistics. Any step failing aborts with a
// publication error.
func (c *Client) Publish(ctx context.Context, table *domain.FeatureTable, version int) (*domain.FeatureGroup, error) {
	group, err := c.GetOrCreateFeatureGroup(ctx, version)
	if err != nil {
		return nil, err
	}

	inserted, err := c.InsertRows(ctx, version, table)
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "inserted feature rows",
		slog.String("group", c.groupName),
		slog.Int("version", version),
		slog.Int("rows", inserted))

	for _, column := range table.Columns() {
		description, ok := featureDescriptions[column]
		if !ok {
			continue
		}
		if err := c.UpdateFeatureDescription(ctx, version, column, description); err != nil {
			return nil, err
		}
	}

	stats, err := c.ComputeStatistics(ctx, version)
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "computed feature statistics",
		slog.Int("row_count", stats.RowCount),
		slog.Int("features", len(stats.Features)))

	group.RowCount += inserted
	return group, nil
}

// GetOrCreateFeatureGroup ensures the feature group exists at the given
// version and returns it.
func (c *Client) GetOrCreateFeatureGroup(ctx context.Context, version int) (*domain.FeatureGroup, error) {
	req := featurestore.CreateGroupRequest{
		Name:          c.groupName,
		Version:       version,
		Description:   c.description,
		PrimaryKey:    []string{"id"},
		EventTime:     "invoice_date",
		OnlineEnabled: false,
	}

	var resp featurestore.GroupResponse
	path := fmt.Sprintf("/api/v1/projects/%s/feature-groups", c.project)
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, apperrors.NewPublicationError("failed to create feature group", err)
	}

	return &domain.FeatureGroup{
		ID:            resp.ID,
		Name:          resp.Name,
		Version:       resp.Version,
		Description:   resp.Description,
		PrimaryKey:    resp.PrimaryKey,
		EventTime:     resp.EventTime,
		OnlineEnabled: resp.OnlineEnabled,
		RowCount:      resp.RowCount,
		CreatedAt:     resp.CreatedAt,
	}, nil
}

// InsertRows appends the table's rows to the group. Overwrite stays false so
// re-running a version never silently discards earlier data.
func (c *Client) InsertRows(ctx context.Context, version int, table *domain.FeatureTable) (int, error) {
	rows := make([]featurestore.FeatureRow, len(table.Rows))
	for i, r := range table.Rows {
		rows[i] = featurestore.FeatureRow{
			ID:          r.ID,
			InvoiceDate: r.InvoiceDate,
			Country:     int8(r.Country),
			TotalPrice:  r.TotalPrice,
		}
	}

	req := featurestore.InsertRowsRequest{
		Columns:   table.Columns(),
		Overwrite: false,
		Rows:      rows,
	}

	var resp featurestore.InsertRowsResponse
	path := c.groupPath(version) + "/rows"
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return 0, apperrors.NewPublicationError("failed to insert feature rows", err)
	}

	return resp.Inserted, nil
}

// UpdateFeatureDescription sets the description of one feature.
func (c *Client) UpdateFeatureDescription(ctx context.Context, version int, feature, description string) error {
	req := featurestore.UpdateFeatureRequest{Description: description}
	path := c.groupPath(version) + "/features/" + feature
	if err := c.do(ctx, http.MethodPut, path, req, nil); err != nil {
		return apperrors.NewPublicationError(
			fmt.Sprintf("failed to update description of feature %q", feature), err)
	}
	return nil
}

// ComputeStatistics asks the store to recompute group statistics with
// histograms and correlations enabled.
func (c *Client) ComputeStatistics(ctx context.Context, version int) (*featurestore.Statistics, error) {
	req := featurestore.StatisticsRequest{
		Enabled:      true,
		Histograms:   true,
		Correlations: true,
	}

	var resp featurestore.Statistics
	path := c.groupPath(version) + "/statistics"
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, apperrors.NewPublicationError("failed to compute statistics", err)
	}
	return &resp, nil
}

func (c *Client) groupPath(version int) string {
	return fmt.Sprintf("/api/v1/projects/%s/feature-groups/%s/versions/%d",
		c.project, c.groupName, version)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s returned status %d: %s",
			method, path, resp.StatusCode, readErrorMessage(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func readErrorMessage(r io.Reader) string {
	var envelope featurestore.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return "no error detail"
}
