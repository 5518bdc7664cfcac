// Package featurestore defines the wire contracts of the feature store API,
// shared by the pipeline's client and the local development server.
package featurestore

import "time"

// CreateGroupRequest asks the store to create a feature group, or return the
// existing one when name and version already exist.
type CreateGroupRequest struct {
	Name          string   `json:"name"`
	Version       int      `json:"version"`
	Description   string   `json:"description"`
	PrimaryKey    []string `json:"primary_key"`
	EventTime     string   `json:"event_time"`
	OnlineEnabled bool     `json:"online_enabled"`
}

// GroupResponse describes a feature group as the store knows it.
type GroupResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Version       int       `json:"version"`
	Description   string    `json:"description"`
	PrimaryKey    []string  `json:"primary_key"`
	EventTime     string    `json:"event_time"`
	OnlineEnabled bool      `json:"online_enabled"`
	RowCount      int       `json:"row_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// FeatureRow is one row of the daily feature table on the wire.
type FeatureRow struct {
	ID          int64     `json:"id"`
	InvoiceDate time.Time `json:"invoice_date"`
	Country     int8      `json:"country"`
	TotalPrice  float64   `json:"total_price"`
}

// InsertRowsRequest appends rows to a feature group. Overwrite false means
// rows accumulate across versions of the same group.
type InsertRowsRequest struct {
	Columns   []string     `json:"columns"`
	Overwrite bool         `json:"overwrite"`
	Rows      []FeatureRow `json:"rows"`
}

// InsertRowsResponse reports how many rows the store accepted.
type InsertRowsResponse struct {
	Inserted int `json:"inserted"`
	RowCount int `json:"row_count"`
}

// UpdateFeatureRequest sets the human description of one feature.
type UpdateFeatureRequest struct {
	Description string `json:"description"`
}

// StatisticsRequest configures the statistics computation.
type StatisticsRequest struct {
	Enabled      bool `json:"enabled"`
	Histograms   bool `json:"histograms"`
	Correlations bool `json:"correlations"`
}

// HistogramBin is one bucket of a feature histogram.
type HistogramBin struct {
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Count      int     `json:"count"`
}

// FeatureStatistics summarizes one numeric feature.
type FeatureStatistics struct {
	Min       float64        `json:"min"`
	Max       float64        `json:"max"`
	Mean      float64        `json:"mean"`
	Stddev    float64        `json:"stddev"`
	Histogram []HistogramBin `json:"histogram,omitempty"`
}

// Statistics is the full statistics report of a feature group.
type Statistics struct {
	ComputedAt   time.Time                     `json:"computed_at"`
	RowCount     int                           `json:"row_count"`
	Features     map[string]FeatureStatistics  `json:"features"`
	Correlations map[string]map[string]float64 `json:"correlations,omitempty"`
}

// ErrorResponse is the store's error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
