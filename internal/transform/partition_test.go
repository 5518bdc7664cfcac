package transform

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ecomfp/internal/errors"
	"ecomfp/pkg/contracts/domain"
)

func txn(invoice, country string, day int, price float64) domain.Transaction {
	return domain.Transaction{
		InvoiceID:   invoice,
		InvoiceDate: time.Date(2011, time.December, day, 10, 30, 0, 0, time.UTC),
		UnitPrice:   price,
		Country:     country,
	}
}

func TestFilterCountries(t *testing.T) {
	transactions := []domain.Transaction{
		txn("536365", "United Kingdom", 1, 2.55),
		txn("536366", "Spain", 1, 3.39),
		txn("536367", "France", 2, 1.85),
		txn("536368", "united kingdom", 2, 4.25),
		txn("536369", "Germany", 3, 7.65),
	}

	kept := FilterCountries(transactions, []string{"United Kingdom", "France", "Germany"})

	require.Len(t, kept, 3)
	assert.Equal(t, "United Kingdom", kept[0].Country)
	assert.Equal(t, "France", kept[1].Country)
	assert.Equal(t, "Germany", kept[2].Country)

	// case differs from the canonical name, so it is not a match
	for _, k := range kept {
		assert.NotEqual(t, "united kingdom", k.Country)
	}
}

func TestFilterCountriesDoesNotMutateInput(t *testing.T) {
	transactions := []domain.Transaction{
		txn("536365", "United Kingdom", 1, 2.55),
		txn("536366", "Spain", 1, 3.39),
	}

	FilterCountries(transactions, []string{"United Kingdom"})

	assert.Equal(t, "United Kingdom", transactions[0].Country)
	assert.Equal(t, "Spain", transactions[1].Country)
}

func TestEnumeratedCodes(t *testing.T) {
	enc, err := EnumeratedCodes([]string{"United Kingdom", "France", "Germany"})
	require.NoError(t, err)

	uk, ok := enc.Code("United Kingdom")
	require.True(t, ok)
	assert.Equal(t, domain.CountryCode(0), uk)

	fr, ok := enc.Code("France")
	require.True(t, ok)
	assert.Equal(t, domain.CountryCode(1), fr)

	de, ok := enc.Code("Germany")
	require.True(t, ok)
	assert.Equal(t, domain.CountryCode(2), de)

	_, ok = enc.Code("Spain")
	assert.False(t, ok)

	assert.Equal(t, []string{"United Kingdom", "France", "Germany"}, enc.Countries())
}

func TestEnumeratedCodesDeduplicatesWithoutGaps(t *testing.T) {
	enc, err := EnumeratedCodes([]string{"United Kingdom", "United Kingdom", "France"})
	require.NoError(t, err)

	uk, ok := enc.Code("United Kingdom")
	require.True(t, ok)
	assert.Equal(t, domain.CountryCode(0), uk)

	// France takes the next dense code, not its list position
	fr, ok := enc.Code("France")
	require.True(t, ok)
	assert.Equal(t, domain.CountryCode(1), fr)

	assert.Equal(t, []string{"United Kingdom", "France"}, enc.Countries())
}

func TestEnumeratedCodesTooManyCountries(t *testing.T) {
	countries := make([]string, 129)
	for i := range countries {
		countries[i] = fmt.Sprintf("Country %d", i)
	}

	_, err := EnumeratedCodes(countries)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeEncodingRange))

	// the limit applies to distinct names, not raw list length
	countries[len(countries)-1] = "Country 0"
	_, err = EnumeratedCodes(countries)
	assert.NoError(t, err)
}

func TestFirstSeenCodes(t *testing.T) {
	transactions := []domain.Transaction{
		txn("536365", "France", 1, 2.55),
		txn("536366", "United Kingdom", 1, 3.39),
		txn("536367", "France", 2, 1.85),
		txn("536368", "Germany", 3, 7.65),
	}

	enc, err := FirstSeenCodes(transactions)
	require.NoError(t, err)

	fr, _ := enc.Code("France")
	uk, _ := enc.Code("United Kingdom")
	de, _ := enc.Code("Germany")

	assert.Equal(t, domain.CountryCode(0), fr)
	assert.Equal(t, domain.CountryCode(1), uk)
	assert.Equal(t, domain.CountryCode(2), de)
	assert.Equal(t, []string{"France", "United Kingdom", "Germany"}, enc.Countries())
}

func TestFirstSeenCodesTooManyCountries(t *testing.T) {
	transactions := make([]domain.Transaction, 129)
	for i := range transactions {
		transactions[i] = txn("536365", fmt.Sprintf("Country %d", i), 1, 1)
	}

	_, err := FirstSeenCodes(transactions)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeEncodingRange))
}
