package transform

import (
	"math"

	"ecomfp/internal/errors"
	"ecomfp/pkg/contracts/domain"
)

// Encoding maps country names to their stable int8 codes. The mapping is
// fixed per pipeline run; downstream consumers rely on the code column
// staying within int8 range.
type Encoding struct {
	codes map[string]domain.CountryCode
	order []string
}

// EnumeratedCodes builds the encoding from a configured country list: the
// code of each country is its position in the list. This makes codes stable
// across runs regardless of which country appears first in the data.
func EnumeratedCodes(countries []string) (*Encoding, error) {
	enc := &Encoding{
		codes: make(map[string]domain.CountryCode, len(countries)),
		order: make([]string, 0, len(countries)),
	}
	for _, name := range countries {
		if _, seen := enc.codes[name]; seen {
			continue
		}
		// codes stay dense even when the list carries duplicates
		next := len(enc.order)
		if next > math.MaxInt8 {
			return nil, errors.NewEncodingRangeError(next+1, math.MaxInt8+1)
		}
		enc.codes[name] = domain.CountryCode(next)
		enc.order = append(enc.order, name)
	}

	return enc, nil
}

// FirstSeenCodes derives the encoding from the transactions themselves:
// countries are numbered in order of first appearance. Run-dependent, kept
// for parity with ad-hoc explorations of the same dataset.
func FirstSeenCodes(transactions []domain.Transaction) (*Encoding, error) {
	enc := &Encoding{codes: make(map[string]domain.CountryCode)}

	for _, txn := range transactions {
		if _, seen := enc.codes[txn.Country]; seen {
			continue
		}
		next := len(enc.order)
		if next > math.MaxInt8 {
			return nil, errors.NewEncodingRangeError(next+1, math.MaxInt8+1)
		}
		enc.codes[txn.Country] = domain.CountryCode(next)
		enc.order = append(enc.order, txn.Country)
	}

	return enc, nil
}

// Code returns the int8 code for a country name.
func (e *Encoding) Code(country string) (domain.CountryCode, bool) {
	c, ok := e.codes[country]
	return c, ok
}

// Countries returns the encoded country names in ascending code order.
func (e *Encoding) Countries() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// FilterCountries keeps only transactions whose country is in the allow
// list. Matching is exact, including case; the source data uses canonical
// country names. The input is never mutated.
func FilterCountries(transactions []domain.Transaction, allowed []string) []domain.Transaction {
	allow := make(map[string]struct{}, len(allowed))
	for _, c := range allowed {
		allow[c] = struct{}{}
	}

	kept := make([]domain.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if _, ok := allow[txn.Country]; ok {
			kept = append(kept, txn)
		}
	}
	return kept
}
