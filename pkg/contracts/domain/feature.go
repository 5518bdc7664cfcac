package domain

import (
	"math"
	"time"
)

// CountryCode is the integer encoding of a retained country name.
// It is stored as an 8-bit signed integer in the published table.
type CountryCode int8

// Transaction represents a single retail transaction line after parsing.
// Source columns that carry no signal for the daily feature set (stock code,
// description, customer id, quantity) are dropped at parse time.
type Transaction struct {
	InvoiceID   string    `json:"invoice_id"`
	InvoiceDate time.Time `json:"invoice_date"`
	UnitPrice   float64   `json:"total_price"`
	Country     string    `json:"country"`
}

// DailyFeature is one published row: the outlier-adjusted, gap-filled total
// price for one country on one calendar day (midnight UTC).
type DailyFeature struct {
	ID          int64       `json:"id"`
	InvoiceDate time.Time   `json:"invoice_date"`
	Country     CountryCode `json:"country"`
	TotalPrice  float64     `json:"total_price"`
}

// FeatureColumns is the published column order of the daily feature table.
var FeatureColumns = []string{"id", "invoice_date", "country", "total_price"}

// FeatureTable is the candidate table handed to validation and publication.
// The column list is carried explicitly so validation can reject tables whose
// shape diverges from the declared contract.
type FeatureTable struct {
	columns []string
	Rows    []DailyFeature
}

// NewFeatureTable builds a table with the canonical 4-column layout.
func NewFeatureTable(rows []DailyFeature) *FeatureTable {
	cols := make([]string, len(FeatureColumns))
	copy(cols, FeatureColumns)
	return &FeatureTable{columns: cols, Rows: rows}
}

// NewFeatureTableWithColumns builds a table with an explicit column layout.
// Used by validation tests to model malformed candidates.
func NewFeatureTableWithColumns(columns []string, rows []DailyFeature) *FeatureTable {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &FeatureTable{columns: cols, Rows: rows}
}

// Columns returns the ordered column names.
func (t *FeatureTable) Columns() []string {
	cols := make([]string, len(t.columns))
	copy(cols, t.columns)
	return cols
}

// NumRows returns the number of rows in the table.
func (t *FeatureTable) NumRows() int {
	return len(t.Rows)
}

// ColumnType returns the storage type of a declared column, or "" for
// columns outside the contract.
func (t *FeatureTable) ColumnType(name string) string {
	switch name {
	case "id":
		return "int64"
	case "invoice_date":
		return "timestamp"
	case "country":
		return "int8"
	case "total_price":
		return "float64"
	default:
		return ""
	}
}

// IsNull reports whether the named column is missing for the given row.
// Dates are null when zero, prices when NaN; id and country are value types
// and can never be null.
func (t *FeatureTable) IsNull(column string, row int) bool {
	r := t.Rows[row]
	switch column {
	case "invoice_date":
		return r.InvoiceDate.IsZero()
	case "total_price":
		return math.IsNaN(r.TotalPrice)
	default:
		return false
	}
}

// FeatureGroup is the handle returned by the feature store for a named,
// versioned table construct.
type FeatureGroup struct {
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

// RunMetadata is the audit record of one pipeline run. The JSON keys match
// the metadata side file consumed by downstream tooling.
type RunMetadata struct {
	RunID               string    `json:"run_id"`
	DatasetPath         string    `json:"data_path"`
	UniqueInvoiceDates  int       `json:"num_unique_samples_per_time_series"`
	FeatureGroupVersion int       `json:"feature_group_version"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}
