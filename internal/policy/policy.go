// Package policy holds the single threshold table shared by every stage of
// the reconciliation pipeline: discrepancy tolerance, severity cutoffs, the
// high-value review threshold and the list of monitored banks.
//
// All comparisons run on decimal values so that boundaries such as "exactly
// 2% apart" or "exactly 50%" behave the same regardless of float rounding.
//
// Example usage:
//
//	thresholds := policy.DefaultThresholds()
//	thresholds.MonitoredBanks = []string{"Offshore Trust"}
//
//	pct := policy.PercentageDifference(customs.Amount, financial.Amount)
//	if thresholds.ExceedsTolerance(pct) {
//		severity := thresholds.Severity(pct)
//	}
package policy

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fx-compliance-engine/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Thresholds is the named constant table injected into the matcher,
// detector and classifier
type Thresholds struct {
	// TolerancePercent is the largest relative difference that is not a
	// discrepancy. The comparison is strict: a difference equal to the
	// tolerance passes.
	TolerancePercent decimal.Decimal `json:"tolerance_percent"`

	// SeverityHighPercent and SeverityMediumPercent are inclusive lower
	// bounds: exactly 50 is high, exactly 20 is medium.
	SeverityHighPercent   decimal.Decimal `json:"severity_high_percent"`
	SeverityMediumPercent decimal.Decimal `json:"severity_medium_percent"`

	// HighValue flags any record whose amount is strictly greater
	HighValue decimal.Decimal `json:"high_value"`

	// MonitoredBanks puts records facilitated by these banks into pending.
	// Names are compared exactly.
	MonitoredBanks []string `json:"monitored_banks"`
}

// DefaultThresholds returns the production defaults
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		TolerancePercent:      decimal.NewFromInt(2),
		SeverityHighPercent:   decimal.NewFromInt(50),
		SeverityMediumPercent: decimal.NewFromInt(20),
		HighValue:             decimal.NewFromInt(50000),
		MonitoredBanks:        []string{},
	}
}

// StrictThresholds returns a table with zero tolerance and lower cutoffs,
// for audits where any divergence must surface
func StrictThresholds() *Thresholds {
	return &Thresholds{
		TolerancePercent:      decimal.Zero,
		SeverityHighPercent:   decimal.NewFromInt(25),
		SeverityMediumPercent: decimal.NewFromInt(10),
		HighValue:             decimal.NewFromInt(10000),
		MonitoredBanks:        []string{},
	}
}

// Validate validates the threshold table
func (t *Thresholds) Validate() error {
	if t.TolerancePercent.IsNegative() || t.TolerancePercent.GreaterThan(hundred) {
		return fmt.Errorf("tolerance percent must be between 0 and 100, got %s", t.TolerancePercent)
	}

	if t.SeverityMediumPercent.IsNegative() {
		return fmt.Errorf("medium severity percent cannot be negative, got %s", t.SeverityMediumPercent)
	}

	if t.SeverityHighPercent.LessThanOrEqual(t.SeverityMediumPercent) {
		return fmt.Errorf("high severity percent (%s) must be greater than medium severity percent (%s)",
			t.SeverityHighPercent, t.SeverityMediumPercent)
	}

	if t.HighValue.IsNegative() {
		return fmt.Errorf("high value threshold cannot be negative, got %s", t.HighValue)
	}

	for i, bank := range t.MonitoredBanks {
		if strings.TrimSpace(bank) == "" {
			return fmt.Errorf("monitored bank at index %d is empty", i)
		}
	}

	return nil
}

// Clone creates a deep copy of the table
func (t *Thresholds) Clone() *Thresholds {
	c := *t
	c.MonitoredBanks = append([]string(nil), t.MonitoredBanks...)
	return &c
}

// ExceedsTolerance reports whether pct is strictly above the tolerance
func (t *Thresholds) ExceedsTolerance(pct decimal.Decimal) bool {
	return pct.GreaterThan(t.TolerancePercent)
}

// IsHighValue reports whether amount is strictly above the review threshold
func (t *Thresholds) IsHighValue(amount decimal.Decimal) bool {
	return amount.GreaterThan(t.HighValue)
}

// IsMonitoredBank reports whether bank is on the monitored list
func (t *Thresholds) IsMonitoredBank(bank string) bool {
	for _, b := range t.MonitoredBanks {
		if b == bank {
			return true
		}
	}
	return false
}

// Severity maps a percentage difference to its band using inclusive lower
// bounds
func (t *Thresholds) Severity(pct decimal.Decimal) models.Severity {
	switch {
	case pct.GreaterThanOrEqual(t.SeverityHighPercent):
		return models.SeverityHigh
	case pct.GreaterThanOrEqual(t.SeverityMediumPercent):
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// PercentageDifference returns |a-b| / min(a,b) * 100, or zero when the
// smaller value is zero. The result is symmetric in a and b.
func PercentageDifference(a, b decimal.Decimal) decimal.Decimal {
	smaller := decimal.Min(a, b)
	if !smaller.IsPositive() {
		return decimal.Zero
	}
	return a.Sub(b).Abs().Div(smaller).Mul(hundred)
}
