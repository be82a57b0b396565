// Package compliance assigns a compliance status to every transaction record
// and aggregates the classified set into a ComplianceAnalysis.
//
// Classification is a computed view: the classifier never mutates its input
// and ignores any status the input carries. Each pass returns fresh copies.
package compliance

import (
	"fmt"

	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/policy"
)

// HighValueReason is the flag reason for records above the review threshold
const HighValueReason = "High value transaction requires additional review"

// Classification is the result of one classifier pass
type Classification struct {
	// Records are classified copies in input order
	Records []*models.TransactionRecord
	// Discrepancies are copies whose sides point at the classified records
	Discrepancies []*models.DiscrepancyRecord

	classified map[*models.TransactionRecord]*models.TransactionRecord
}

// ClassifiedOf returns the classified copy of an input record
func (c *Classification) ClassifiedOf(original *models.TransactionRecord) (*models.TransactionRecord, bool) {
	r, ok := c.classified[original]
	return r, ok
}

// Classifier applies the threshold table to records and discrepancies
type Classifier struct {
	thresholds *policy.Thresholds
}

// NewClassifier creates a classifier. A nil threshold table uses defaults.
func NewClassifier(thresholds *policy.Thresholds) *Classifier {
	if thresholds == nil {
		thresholds = policy.DefaultThresholds()
	}
	return &Classifier{thresholds: thresholds.Clone()}
}

// ClassifyRecord returns a copy of r with the base status applied. The first
// matching rule wins: high value, monitored bank, compliant.
func (c *Classifier) ClassifyRecord(r *models.TransactionRecord) *models.TransactionRecord {
	out := r.Clone()
	out.FlagReason = ""

	switch {
	case c.thresholds.IsHighValue(r.Amount):
		out.Status = models.StatusFlagged
		out.FlagReason = HighValueReason
	case c.thresholds.IsMonitoredBank(r.Bank):
		out.Status = models.StatusPending
	default:
		out.Status = models.StatusCompliant
	}
	return out
}

// Classify classifies every record, then flags every record that takes part
// in a discrepancy. When a record takes part in several, the one with the
// largest percentage difference supplies the reason; ties keep detection
// order.
func (c *Classifier) Classify(records []*models.TransactionRecord, discrepancies []*models.DiscrepancyRecord) *Classification {
	result := &Classification{
		Records:       make([]*models.TransactionRecord, 0, len(records)),
		Discrepancies: make([]*models.DiscrepancyRecord, 0, len(discrepancies)),
		classified:    make(map[*models.TransactionRecord]*models.TransactionRecord, len(records)),
	}

	for _, r := range records {
		if r == nil {
			continue
		}
		classified := c.ClassifyRecord(r)
		result.classified[r] = classified
		result.Records = append(result.Records, classified)
	}

	lookup := func(original *models.TransactionRecord) *models.TransactionRecord {
		if original == nil {
			return nil
		}
		if classified, ok := result.classified[original]; ok {
			return classified
		}
		classified := c.ClassifyRecord(original)
		result.classified[original] = classified
		return classified
	}

	worst := make(map[*models.TransactionRecord]*models.DiscrepancyRecord)
	consider := func(side *models.TransactionRecord, d *models.DiscrepancyRecord) {
		if side == nil {
			return
		}
		if current, ok := worst[side]; !ok || d.PercentageDifference > current.PercentageDifference {
			worst[side] = d
		}
	}

	for _, d := range discrepancies {
		if d == nil {
			continue
		}
		copied := *d
		copied.Customs = lookup(d.Customs)
		copied.Financial = lookup(d.Financial)
		result.Discrepancies = append(result.Discrepancies, &copied)

		consider(copied.Customs, &copied)
		consider(copied.Financial, &copied)
	}

	for record, d := range worst {
		record.Status = models.StatusFlagged
		record.FlagReason = DiscrepancyReason(d, record == d.Customs)
	}

	return result
}

// DiscrepancyReason words the flag reason from the point of view of one
// side, stating which side reported the higher value
func DiscrepancyReason(d *models.DiscrepancyRecord, customsSide bool) string {
	if d.Type == models.DiscrepancyUnmatched {
		if customsSide {
			return "No matching financial record found for this customs declaration."
		}
		reason := "No matching customs declaration found for this financial record."
		if d.PotentialCapitalFlight {
			reason += " Potential capital flight detected."
		}
		return reason
	}

	own, other, otherName := d.CustomsValue, d.FinancialValue, "financial"
	if !customsSide {
		own, other, otherName = d.FinancialValue, d.CustomsValue, "customs"
	}

	direction := "higher"
	if own.LessThan(other) {
		direction = "lower"
	}

	reason := fmt.Sprintf("Data discrepancy: %s value %s than %s data by %.2f%%",
		d.Type, direction, otherName, d.PercentageDifference)
	if !customsSide && d.PotentialCapitalFlight {
		reason += " Potential capital flight detected."
	}
	return reason
}
