// Package discrepancy compares matched customs and financial records field
// by field and emits a DiscrepancyRecord for every field whose relative
// difference exceeds the configured tolerance.
package discrepancy

import (
	"github.com/shopspring/decimal"

	"fx-compliance-engine/internal/matcher"
	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/policy"
)

var hundred = decimal.NewFromInt(100)

// Config controls optional detector output
type Config struct {
	// ReportUnmatched emits an unmatched discrepancy for every record that
	// found no counterpart
	ReportUnmatched bool `json:"report_unmatched"`
}

// Detector applies the total, quantity and price checks
type Detector struct {
	thresholds *policy.Thresholds
	config     Config
}

// NewDetector creates a detector. A nil threshold table uses defaults.
func NewDetector(thresholds *policy.Thresholds, config Config) *Detector {
	if thresholds == nil {
		thresholds = policy.DefaultThresholds()
	}
	return &Detector{thresholds: thresholds.Clone(), config: config}
}

// Detect runs every check over every pair and, when configured, reports
// the unmatched records. Output order follows pair order, and within a
// pair total, quantity, price.
func (d *Detector) Detect(result *matcher.MatchResult) []*models.DiscrepancyRecord {
	out := []*models.DiscrepancyRecord{}
	if result == nil {
		return out
	}

	for _, pair := range result.Pairs {
		out = append(out, d.DetectPair(pair.Customs, pair.Financial)...)
	}

	if d.config.ReportUnmatched {
		for _, c := range result.UnmatchedCustoms {
			out = append(out, d.unmatched(c, nil))
		}
		for _, f := range result.UnmatchedFinancial {
			out = append(out, d.unmatched(nil, f))
		}
	}

	return out
}

// DetectPair compares one customs record with one financial record
func (d *Detector) DetectPair(customs, financial *models.TransactionRecord) []*models.DiscrepancyRecord {
	var out []*models.DiscrepancyRecord
	confidence := MatchConfidence(customs, financial)

	emit := func(kind models.DiscrepancyType, cv, fv decimal.Decimal, flight bool) {
		pct := policy.PercentageDifference(cv, fv)
		if !d.thresholds.ExceedsTolerance(pct) {
			return
		}
		c := confidence
		out = append(out, &models.DiscrepancyRecord{
			Customs:                customs,
			Financial:              financial,
			Type:                   kind,
			CustomsValue:           cv,
			FinancialValue:         fv,
			PercentageDifference:   pct.InexactFloat64(),
			PotentialCapitalFlight: flight,
			Severity:               d.thresholds.Severity(pct),
			MatchConfidence:        &c,
			ResolutionStatus:       models.ResolutionUnresolved,
		})
	}

	emit(models.DiscrepancyTotal, customs.Amount, financial.Amount,
		financial.Amount.GreaterThan(customs.Amount))

	if customs.HasQuantityAndPrice() && financial.HasQuantityAndPrice() {
		emit(models.DiscrepancyQuantity, customs.Quantity.Decimal, financial.Quantity.Decimal,
			financial.Quantity.Decimal.LessThan(customs.Quantity.Decimal))
	}

	if customs.UnitPrice.Valid && financial.UnitPrice.Valid {
		emit(models.DiscrepancyPrice, customs.UnitPrice.Decimal, financial.UnitPrice.Decimal,
			financial.UnitPrice.Decimal.GreaterThan(customs.UnitPrice.Decimal))
	}

	return out
}

// unmatched describes a record with no counterpart. A financial record with
// no customs declaration is value that never passed inspection, so it is
// marked as potential capital flight.
func (d *Detector) unmatched(customs, financial *models.TransactionRecord) *models.DiscrepancyRecord {
	rec := &models.DiscrepancyRecord{
		Customs:          customs,
		Financial:        financial,
		Type:             models.DiscrepancyUnmatched,
		CustomsValue:     decimal.Zero,
		FinancialValue:   decimal.Zero,
		Severity:         models.SeverityMedium,
		ResolutionStatus: models.ResolutionUnresolved,
	}

	present := customs
	if customs != nil {
		rec.CustomsValue = customs.Amount
	} else {
		present = financial
		rec.FinancialValue = financial.Amount
		rec.PotentialCapitalFlight = true
	}

	if d.thresholds.IsHighValue(present.Amount) {
		rec.Severity = models.SeverityHigh
	}
	return rec
}

// MatchConfidence scores how closely two matched records agree: 100 minus
// the mean percentage difference over the fields both sides supply (amount
// always, quantity when both carry quantity and unit price, unit price when
// both carry it), clamped to [0, 100] and rounded to two decimals.
func MatchConfidence(customs, financial *models.TransactionRecord) float64 {
	diffs := []decimal.Decimal{policy.PercentageDifference(customs.Amount, financial.Amount)}

	if customs.HasQuantityAndPrice() && financial.HasQuantityAndPrice() {
		diffs = append(diffs, policy.PercentageDifference(customs.Quantity.Decimal, financial.Quantity.Decimal))
	}
	if customs.UnitPrice.Valid && financial.UnitPrice.Valid {
		diffs = append(diffs, policy.PercentageDifference(customs.UnitPrice.Decimal, financial.UnitPrice.Decimal))
	}

	sum := decimal.Zero
	for _, diff := range diffs {
		sum = sum.Add(diff)
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(diffs))))

	score := hundred.Sub(mean)
	if score.IsNegative() {
		score = decimal.Zero
	}
	if score.GreaterThan(hundred) {
		score = hundred
	}
	return score.Round(2).InexactFloat64()
}
