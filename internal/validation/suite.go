// Package validation gates publication behind a declarative expectation
// suite evaluated against the candidate feature table. Rules are data, not
// code paths: the suite can be serialized, logged and extended without
// touching the evaluator.
package validation

import (
	"fmt"
	"sort"

	"ecomfp/internal/errors"
	"ecomfp/pkg/contracts/domain"
)

// RuleKind identifies the check a rule performs.
type RuleKind string

const (
	// KindColumnsOrdered expects the table's columns to match an exact
	// ordered list.
	KindColumnsOrdered RuleKind = "columns_ordered"

	// KindColumnCount expects an exact number of columns.
	KindColumnCount RuleKind = "column_count"

	// KindNotNull expects a column to hold no null values.
	KindNotNull RuleKind = "not_null"

	// KindDistinctInSet expects every distinct value of a column to come
	// from a fixed set.
	KindDistinctInSet RuleKind = "distinct_in_set"

	// KindColumnType expects a column to carry a specific storage type.
	KindColumnType RuleKind = "column_type"

	// KindMin expects every value of a numeric column to be at least a
	// threshold.
	KindMin RuleKind = "min"
)

// Rule is one expectation against the candidate table.
type Rule struct {
	Name    string    `json:"name"`
	Kind    RuleKind  `json:"kind"`
	Column  string    `json:"column,omitempty"`
	Columns []string  `json:"columns,omitempty"`
	Count   int       `json:"count,omitempty"`
	Type    string    `json:"type,omitempty"`
	Set     []float64 `json:"set,omitempty"`
	Min     float64   `json:"min,omitempty"`
}

// Suite is an ordered list of rules. All rules are always evaluated; the
// suite never short-circuits on the first failure, so a single run reports
// every violation at once.
type Suite struct {
	Name  string `json:"name"`
	Rules []Rule `json:"rules"`
}

// Failure describes one rule the table did not satisfy.
type Failure struct {
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// BuildSuite returns the expectation suite for the e-commerce feature table.
func BuildSuite() Suite {
	return Suite{
		Name: "e_commerce_features",
		Rules: []Rule{
			{
				Name:    "expect_table_columns_to_match_ordered_list",
				Kind:    KindColumnsOrdered,
				Columns: []string{"id", "invoice_date", "country", "total_price"},
			},
			{
				Name:  "expect_table_column_count_to_equal",
				Kind:  KindColumnCount,
				Count: 4,
			},
			{
				Name:   "expect_invoice_date_values_to_not_be_null",
				Kind:   KindNotNull,
				Column: "invoice_date",
			},
			{
				Name:   "expect_total_price_values_to_not_be_null",
				Kind:   KindNotNull,
				Column: "total_price",
			},
			{
				Name:   "expect_country_distinct_values_to_be_in_set",
				Kind:   KindDistinctInSet,
				Column: "country",
				Set:    []float64{0, 1, 2},
			},
			{
				Name:   "expect_country_values_to_be_of_type_int8",
				Kind:   KindColumnType,
				Column: "country",
				Type:   "int8",
			},
			{
				Name:   "expect_total_price_values_to_be_of_type_float64",
				Kind:   KindColumnType,
				Column: "total_price",
				Type:   "float64",
			},
			{
				Name:   "expect_total_price_min_to_be_at_least",
				Kind:   KindMin,
				Column: "total_price",
				Min:    0,
			},
		},
	}
}

// Evaluate runs every rule against the table and returns all failures.
func (s Suite) Evaluate(table *domain.FeatureTable) []Failure {
	var failures []Failure
	for _, rule := range s.Rules {
		if detail, ok := evaluate(rule, table); !ok {
			failures = append(failures, Failure{Rule: rule.Name, Detail: detail})
		}
	}
	return failures
}

// Check evaluates the suite and converts any failures into a schema
// violation error carrying the failed rule names.
func (s Suite) Check(table *domain.FeatureTable) error {
	failures := s.Evaluate(table)
	if len(failures) == 0 {
		return nil
	}
	names := make([]string, len(failures))
	for i, f := range failures {
		names[i] = f.Rule
	}
	return errors.NewSchemaViolationError(names)
}

func evaluate(rule Rule, table *domain.FeatureTable) (detail string, ok bool) {
	switch rule.Kind {
	case KindColumnsOrdered:
		columns := table.Columns()
		if len(columns) != len(rule.Columns) {
			return fmt.Sprintf("expected columns %v, got %v", rule.Columns, columns), false
		}
		for i, name := range rule.Columns {
			if columns[i] != name {
				return fmt.Sprintf("expected columns %v, got %v", rule.Columns, columns), false
			}
		}
		return "", true

	case KindColumnCount:
		if n := len(table.Columns()); n != rule.Count {
			return fmt.Sprintf("expected %d columns, got %d", rule.Count, n), false
		}
		return "", true

	case KindNotNull:
		for row := 0; row < table.NumRows(); row++ {
			if table.IsNull(rule.Column, row) {
				return fmt.Sprintf("column %q is null at row %d", rule.Column, row), false
			}
		}
		return "", true

	case KindDistinctInSet:
		allowed := make(map[float64]struct{}, len(rule.Set))
		for _, v := range rule.Set {
			allowed[v] = struct{}{}
		}
		distinct := distinctValues(rule.Column, table)
		for _, v := range distinct {
			if _, in := allowed[v]; !in {
				return fmt.Sprintf("column %q has value %v outside allowed set %v", rule.Column, v, rule.Set), false
			}
		}
		return "", true

	case KindColumnType:
		if got := table.ColumnType(rule.Column); got != rule.Type {
			return fmt.Sprintf("column %q has type %q, expected %q", rule.Column, got, rule.Type), false
		}
		return "", true

	case KindMin:
		for row := 0; row < table.NumRows(); row++ {
			v, valid := numericValue(rule.Column, table, row)
			if !valid {
				continue
			}
			if v < rule.Min {
				return fmt.Sprintf("column %q has value %v below minimum %v at row %d", rule.Column, v, rule.Min, row), false
			}
		}
		return "", true

	default:
		return fmt.Sprintf("unknown rule kind %q", rule.Kind), false
	}
}

func distinctValues(column string, table *domain.FeatureTable) []float64 {
	seen := make(map[float64]struct{})
	for row := 0; row < table.NumRows(); row++ {
		if v, ok := numericValue(column, table, row); ok {
			seen[v] = struct{}{}
		}
	}
	values := make([]float64, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Float64s(values)
	return values
}

func numericValue(column string, table *domain.FeatureTable, row int) (float64, bool) {
	r := table.Rows[row]
	switch column {
	case "id":
		return float64(r.ID), true
	case "country":
		return float64(r.Country), true
	case "total_price":
		return r.TotalPrice, true
	default:
		return 0, false
	}
}
