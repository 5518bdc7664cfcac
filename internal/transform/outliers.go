package transform

import (
	"math"
	"sort"
	"time"
)

// DayTotal is the summed price for one calendar day of one country.
type DayTotal struct {
	Date  time.Time
	Total float64
}

// Bounds is the acceptance interval produced by the IQR rule.
type Bounds struct {
	Lower float64
	Upper float64
}

// Quantile returns the p-quantile of values using linear interpolation
// between the surrounding order statistics (index = p*(n-1)). This matches
// the convention used by the upstream aggregation the feature table is
// reconciled against.
func Quantile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	index := p * float64(n-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// IQRBounds computes the acceptance interval [Q1 - m*IQR, Q3 + m*IQR] for a
// series. The pipeline uses m=3, a wide multiplier that only rejects extreme
// outliers rather than the conventional 1.5x mild-outlier bound.
func IQRBounds(values []float64, multiplier float64) Bounds {
	q1 := Quantile(values, 0.25)
	q3 := Quantile(values, 0.75)
	iqr := q3 - q1

	return Bounds{
		Lower: q1 - multiplier*iqr,
		Upper: q3 + multiplier*iqr,
	}
}

// Contains reports whether v lies inside the acceptance interval. Values on
// the bounds are kept; only values strictly outside are outliers.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}

// RemoveOutliers drops days whose total lies strictly outside the IQR bounds
// of the series. The bounds are computed once over the full input; removal is
// a single pass, never an iterative re-trim. Dropped days become gaps that the
// daily resample later fills by interpolation. Series too short for a
// meaningful spread (fewer than 4 values) still get well-defined, if
// degenerate, bounds, which typically keep every value.
func RemoveOutliers(days []DayTotal, multiplier float64) (kept []DayTotal, removed int) {
	if len(days) == 0 {
		return nil, 0
	}

	values := make([]float64, len(days))
	for i, d := range days {
		values[i] = d.Total
	}

	bounds := IQRBounds(values, multiplier)

	kept = make([]DayTotal, 0, len(days))
	for _, d := range days {
		if bounds.Contains(d.Total) {
			kept = append(kept, d)
		} else {
			removed++
		}
	}

	return kept, removed
}
