package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NewAppError(ErrTypeEmptyCache, "no rows", nil),
			want: "[EMPTY_CACHE] no rows",
		},
		{
			name: "with cause",
			err:  NewAppError(ErrTypeSourceUnavailable, "download failed", errors.New("connection refused")),
			want: "[SOURCE_UNAVAILABLE] download failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewSourceUnavailableError("fetch failed", cause)

	assert.True(t, errors.Is(err, cause))

	wrapped := fmt.Errorf("stage extract: %w", err)
	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeSourceUnavailable, appErr.Type)
}

func TestIsType(t *testing.T) {
	err := NewEmptyCacheError("/tmp/data.csv")

	assert.True(t, IsType(err, ErrTypeEmptyCache))
	assert.False(t, IsType(err, ErrTypePublication))
	assert.False(t, IsType(errors.New("plain"), ErrTypeEmptyCache))

	wrapped := fmt.Errorf("run aborted: %w", err)
	assert.True(t, IsType(wrapped, ErrTypeEmptyCache))
}

func TestNewEncodingRangeError(t *testing.T) {
	err := NewEncodingRangeError(200, 128)

	assert.Equal(t, ErrTypeEncodingRange, err.Type)
	assert.Equal(t, 200, err.Context["distinct"])
	assert.Equal(t, 128, err.Context["max"])
	assert.Contains(t, err.Error(), "200 distinct countries")
}

func TestSchemaViolationFailedRules(t *testing.T) {
	rules := []string{"column_count", "total_price_min"}
	err := NewSchemaViolationError(rules)

	assert.Equal(t, rules, FailedRules(err))
	assert.Equal(t, rules, FailedRules(fmt.Errorf("gate: %w", err)))
	assert.Nil(t, FailedRules(NewPublicationError("rejected", nil)))
	assert.Nil(t, FailedRules(errors.New("plain")))
}

func TestWithContext(t *testing.T) {
	err := NewPublicationError("insert rejected", nil).
		WithContext("feature_group", "e_commerce_data").
		WithContext("version", 2)

	assert.Equal(t, "e_commerce_data", err.Context["feature_group"])
	assert.Equal(t, 2, err.Context["version"])
}
