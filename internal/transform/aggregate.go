package transform

import (
	"math"
	"sort"
	"time"

	"ecomfp/pkg/contracts/domain"
)

// SeriesStats records what the aggregation did to one country's series.
type SeriesStats struct {
	Country          domain.CountryCode
	ObservedDays     int
	OutliersRemoved  int
	DaysInterpolated int
	SeriesLength     int
}

// aggregateDays sums transaction totals per calendar day. Rows belonging to
// the same invoice are first summed into one invoice total, then invoice
// totals are summed per day; the intermediate invoice grouping makes the
// per-day total independent of how line items are ordered in the source.
func aggregateDays(transactions []domain.Transaction) []DayTotal {
	type invoiceKey struct {
		day     time.Time
		invoice string
	}

	invoiceTotals := make(map[invoiceKey]float64)
	for _, txn := range transactions {
		key := invoiceKey{day: truncateToDay(txn.InvoiceDate), invoice: txn.InvoiceID}
		invoiceTotals[key] += txn.UnitPrice
	}

	// sum invoices in a fixed order so float accumulation is reproducible
	keys := make([]invoiceKey, 0, len(invoiceTotals))
	for key := range invoiceTotals {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].day.Equal(keys[j].day) {
			return keys[i].day.Before(keys[j].day)
		}
		return keys[i].invoice < keys[j].invoice
	})

	var days []DayTotal
	for _, key := range keys {
		if n := len(days); n > 0 && days[n-1].Date.Equal(key.day) {
			days[n-1].Total += invoiceTotals[key]
			continue
		}
		days = append(days, DayTotal{Date: key.day, Total: invoiceTotals[key]})
	}

	return days
}

// resampleDaily expands a sparse, sorted day series to one row per calendar
// day over [start, end]. Missing interior days get linearly interpolated
// totals; days before the first or after the last observation take the
// nearest observed value, never an extrapolated one. Every total is rounded
// to the nearest integer amount, halves to even (interpolating an odd gap
// lands on exact halves, so the tie rule is visible in published totals).
func resampleDaily(days []DayTotal, start, end time.Time) (series []DayTotal, interpolated int) {
	if len(days) == 0 {
		return nil, 0
	}

	span := int(end.Sub(start).Hours()/24) + 1
	series = make([]DayTotal, 0, span)

	next := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for next < len(days) && days[next].Date.Before(day) {
			next++
		}

		var total float64
		switch {
		case next < len(days) && days[next].Date.Equal(day):
			total = days[next].Total
		case next == 0:
			total = days[0].Total
			interpolated++
		case next == len(days):
			total = days[len(days)-1].Total
			interpolated++
		default:
			prev, succ := days[next-1], days[next]
			gap := succ.Date.Sub(prev.Date).Hours() / 24
			offset := day.Sub(prev.Date).Hours() / 24
			total = prev.Total + (succ.Total-prev.Total)*offset/gap
			interpolated++
		}

		series = append(series, DayTotal{Date: day, Total: math.RoundToEven(total)})
	}

	return series, interpolated
}

// BuildFeatureTable turns filtered, encoded transactions into the final
// per-country daily feature table. Each country's series is aggregated,
// outlier-trimmed and resampled over the span of its own observed days as
// they were before trimming, so removing an outlier never shrinks the
// series, it only converts that day into an interpolated one. Countries are
// emitted in ascending code order with dense row IDs 0..N-1 across the
// whole table.
func BuildFeatureTable(transactions []domain.Transaction, enc *Encoding, iqrMultiplier float64) (*domain.FeatureTable, []SeriesStats) {
	byCountry := make(map[domain.CountryCode][]domain.Transaction)
	for _, txn := range transactions {
		code, ok := enc.Code(txn.Country)
		if !ok {
			continue
		}
		byCountry[code] = append(byCountry[code], txn)
	}

	codes := make([]domain.CountryCode, 0, len(byCountry))
	for code := range byCountry {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	table := domain.NewFeatureTable(nil)
	stats := make([]SeriesStats, 0, len(codes))
	var nextID int64

	for _, code := range codes {
		days := aggregateDays(byCountry[code])
		if len(days) == 0 {
			continue
		}
		start, end := days[0].Date, days[len(days)-1].Date

		kept, removed := RemoveOutliers(days, iqrMultiplier)
		series, interpolated := resampleDaily(kept, start, end)

		for _, d := range series {
			table.Rows = append(table.Rows, domain.DailyFeature{
				ID:          nextID,
				InvoiceDate: d.Date,
				Country:     code,
				TotalPrice:  d.Total,
			})
			nextID++
		}

		stats = append(stats, SeriesStats{
			Country:          code,
			ObservedDays:     len(days),
			OutliersRemoved:  removed,
			DaysInterpolated: interpolated,
			SeriesLength:     len(series),
		})
	}

	return table, stats
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
