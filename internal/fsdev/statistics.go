package fsdev

import (
	"math"
	"time"

	"ecomfp/pkg/contracts/featurestore"
)

const histogramBins = 10

// numericColumns are the features statistics are computed over; the event
// time column is not numeric.
var numericColumns = []string{"id", "country", "total_price"}

func computeStatistics(rows []featurestore.FeatureRow, req featurestore.StatisticsRequest) *featurestore.Statistics {
	stats := &featurestore.Statistics{
		ComputedAt: time.Now().UTC(),
		RowCount:   len(rows),
		Features:   make(map[string]featurestore.FeatureStatistics),
	}
	if len(rows) == 0 {
		return stats
	}

	series := make(map[string][]float64, len(numericColumns))
	for _, column := range numericColumns {
		series[column] = columnValues(rows, column)
	}

	for _, column := range numericColumns {
		fs := summarize(series[column])
		if req.Histograms {
			fs.Histogram = histogram(series[column])
		}
		stats.Features[column] = fs
	}

	if req.Correlations {
		stats.Correlations = make(map[string]map[string]float64, len(numericColumns))
		for _, a := range numericColumns {
			stats.Correlations[a] = make(map[string]float64, len(numericColumns))
			for _, b := range numericColumns {
				stats.Correlations[a][b] = pearson(series[a], series[b])
			}
		}
	}

	return stats
}

func columnValues(rows []featurestore.FeatureRow, column string) []float64 {
	values := make([]float64, len(rows))
	for i, r := range rows {
		switch column {
		case "id":
			values[i] = float64(r.ID)
		case "country":
			values[i] = float64(r.Country)
		case "total_price":
			values[i] = r.TotalPrice
		}
	}
	return values
}

func summarize(values []float64) featurestore.FeatureStatistics {
	min, max := values[0], values[0]
	var sum float64
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}

	return featurestore.FeatureStatistics{
		Min:    min,
		Max:    max,
		Mean:   mean,
		Stddev: math.Sqrt(sq / float64(len(values))),
	}
}

func histogram(values []float64) []featurestore.HistogramBin {
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if min == max {
		return []featurestore.HistogramBin{{LowerBound: min, UpperBound: max, Count: len(values)}}
	}

	width := (max - min) / histogramBins
	bins := make([]featurestore.HistogramBin, histogramBins)
	for i := range bins {
		bins[i] = featurestore.HistogramBin{
			LowerBound: min + float64(i)*width,
			UpperBound: min + float64(i+1)*width,
		}
	}

	for _, v := range values {
		idx := int((v - min) / width)
		if idx >= histogramBins {
			idx = histogramBins - 1
		}
		bins[idx].Count++
	}

	return bins
}

// pearson computes the Pearson correlation coefficient of two equal-length
// series. Zero-variance series correlate as 0 rather than NaN so the result
// stays JSON-encodable.
func pearson(a, b []float64) float64 {
	n := float64(len(a))

	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/n, sumB/n

	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
