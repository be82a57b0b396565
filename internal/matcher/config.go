// Package matcher pairs customs declarations with financial-institution
// records that describe the same underlying transaction.
//
// Two records are related when all of the following hold:
//   - the entity strings are equal (exact, case and whitespace sensitive)
//   - the currency codes are equal
//   - the dates are equal, or within DateToleranceDays when a window is set
//   - the products are equal or one contains the other
//
// Matching is many-to-many. Every qualifying pair is emitted and compared
// independently downstream, so ambiguity surfaces as several discrepancies
// instead of being resolved silently.
//
// Example usage:
//
//	engine := matcher.NewMatchingEngine(matcher.DefaultMatchingConfig())
//	result := engine.Match(customs, financial)
//	for _, pair := range result.Pairs {
//		// compare pair.Customs with pair.Financial
//	}
package matcher

import (
	"fmt"
)

// MaxDateToleranceDays bounds the optional date window
const MaxDateToleranceDays = 30

// MatchingConfig holds configuration parameters for record matching
type MatchingConfig struct {
	// DateToleranceDays widens date equality to a window of whole days.
	// Zero keeps exact string equality on the ISO date.
	DateToleranceDays int `json:"date_tolerance_days"`

	// UseIndex narrows candidates by entity and currency before applying
	// the full predicate. Disabling it falls back to the pairwise scan; the
	// emitted pairs are identical either way.
	UseIndex bool `json:"use_index"`
}

// DefaultMatchingConfig returns the exact-date configuration
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		DateToleranceDays: 0,
		UseIndex:          true,
	}
}

// RelaxedMatchingConfig accepts dates up to three days apart
func RelaxedMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		DateToleranceDays: 3,
		UseIndex:          true,
	}
}

// Validate validates the matching configuration
func (c *MatchingConfig) Validate() error {
	if c.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative, got %d", c.DateToleranceDays)
	}
	if c.DateToleranceDays > MaxDateToleranceDays {
		return fmt.Errorf("date tolerance days cannot exceed %d, got %d", MaxDateToleranceDays, c.DateToleranceDays)
	}
	return nil
}

// Clone creates a copy of the configuration
func (c *MatchingConfig) Clone() *MatchingConfig {
	clone := *c
	return &clone
}
