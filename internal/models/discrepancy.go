package models

import (
	"github.com/shopspring/decimal"
)

// DiscrepancyType names the field that disagrees between two records
type DiscrepancyType string

const (
	DiscrepancyPrice    DiscrepancyType = "price"
	DiscrepancyQuantity DiscrepancyType = "quantity"
	DiscrepancyTotal    DiscrepancyType = "total"
	// DiscrepancyUnmatched marks a record with no counterpart on the other side
	DiscrepancyUnmatched DiscrepancyType = "unmatched"
)

// Severity is the risk band of a discrepancy
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ResolutionStatus tracks analyst progress on a discrepancy
type ResolutionStatus string

const (
	ResolutionUnresolved    ResolutionStatus = "unresolved"
	ResolutionInvestigating ResolutionStatus = "investigating"
	ResolutionResolved      ResolutionStatus = "resolved"
)

// IsValid checks if the resolution status is one of the three known states
func (s ResolutionStatus) IsValid() bool {
	switch s {
	case ResolutionUnresolved, ResolutionInvestigating, ResolutionResolved:
		return true
	}
	return false
}

// DiscrepancyRecord is a detected mismatch between a customs record and a
// financial record believed to describe the same transaction. One side is
// nil for unmatched records.
type DiscrepancyRecord struct {
	Customs   *TransactionRecord `json:"customs,omitempty"`
	Financial *TransactionRecord `json:"financial,omitempty"`

	Type                   DiscrepancyType `json:"discrepancyType"`
	CustomsValue           decimal.Decimal `json:"customsValue"`
	FinancialValue         decimal.Decimal `json:"financialValue"`
	PercentageDifference   float64         `json:"percentageDifference"`
	PotentialCapitalFlight bool            `json:"potentialCapitalFlight"`
	Severity               Severity        `json:"severity"`
	MatchConfidence        *float64        `json:"matchConfidence,omitempty"`

	ResolutionStatus ResolutionStatus `json:"resolutionStatus"`
	Annotations      string           `json:"annotations,omitempty"`
}

// Primary returns the customs side when present, otherwise the financial side
func (d *DiscrepancyRecord) Primary() *TransactionRecord {
	if d.Customs != nil {
		return d.Customs
	}
	return d.Financial
}

// Entity returns the entity both sides share
func (d *DiscrepancyRecord) Entity() string {
	if p := d.Primary(); p != nil {
		return p.Entity
	}
	return ""
}

// Date returns the date of the primary side
func (d *DiscrepancyRecord) Date() string {
	if p := d.Primary(); p != nil {
		return p.Date
	}
	return ""
}

// IsUnmatched reports whether only one side is present
func (d *DiscrepancyRecord) IsUnmatched() bool {
	return d.Customs == nil || d.Financial == nil
}
