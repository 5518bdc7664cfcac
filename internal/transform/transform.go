// Package transform turns raw retail transactions into the per-country
// daily feature table: country filtering and encoding, invoice-day
// aggregation, IQR outlier removal and daily resampling with
// interpolation. All steps are pure; inputs are never mutated.
package transform

import (
	"ecomfp/pkg/contracts/domain"
)

// Options configures a transform run.
type Options struct {
	// Countries to keep, in code order. Position in the list is the
	// country's int8 code unless DeriveCodes is set.
	Countries []string

	// DeriveCodes numbers countries by first appearance in the data
	// instead of by list position.
	DeriveCodes bool

	// IQRMultiplier widens the outlier acceptance interval. The pipeline
	// default is 3.
	IQRMultiplier float64
}

// Result is the output of a full transform run.
type Result struct {
	Table    *domain.FeatureTable
	Encoding *Encoding
	Stats    []SeriesStats

	RowsIn       int
	RowsFiltered int
}

// Run executes the full transform: filter to allowed countries, encode
// country codes, aggregate per day and build the resampled feature table.
func Run(transactions []domain.Transaction, opts Options) (*Result, error) {
	filtered := FilterCountries(transactions, opts.Countries)

	var (
		enc *Encoding
		err error
	)
	if opts.DeriveCodes {
		enc, err = FirstSeenCodes(filtered)
	} else {
		enc, err = EnumeratedCodes(opts.Countries)
	}
	if err != nil {
		return nil, err
	}

	table, stats := BuildFeatureTable(filtered, enc, opts.IQRMultiplier)

	return &Result{
		Table:        table,
		Encoding:     enc,
		Stats:        stats,
		RowsIn:       len(transactions),
		RowsFiltered: len(transactions) - len(filtered),
	}, nil
}
