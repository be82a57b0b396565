// Package models defines the records exchanged between the reconciliation
// stages: transaction declarations from customs and financial institutions
// and the discrepancies detected between them.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO 8601 calendar date layout used by every record
const DateLayout = "2006-01-02"

// TransactionType represents the direction of a declared transaction
type TransactionType string

const (
	// TransactionTypeImport represents goods entering the jurisdiction
	TransactionTypeImport TransactionType = "import"
	// TransactionTypeExport represents goods leaving the jurisdiction
	TransactionTypeExport TransactionType = "export"
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeImport || t == TransactionTypeExport
}

// ParseTransactionType accepts the type case-insensitively
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid transaction type: %q", s)
	}
	return t, nil
}

// Source identifies where a record was reported from
type Source string

const (
	SourceCustoms   Source = "customs"
	SourceFinancial Source = "financial"
	SourceManual    Source = "manual"
	SourceImported  Source = "imported"
)

// IsValid checks if the source is valid
func (s Source) IsValid() bool {
	switch s {
	case SourceCustoms, SourceFinancial, SourceManual, SourceImported:
		return true
	}
	return false
}

// ParseSource accepts the source case-insensitively
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	if !src.IsValid() {
		return "", fmt.Errorf("invalid source: %q", s)
	}
	return src, nil
}

// ComplianceStatus is the classifier verdict for a record
type ComplianceStatus string

const (
	StatusPending   ComplianceStatus = "pending"
	StatusCompliant ComplianceStatus = "compliant"
	StatusFlagged   ComplianceStatus = "flagged"
)

// TransactionRecord is one declared transaction from either source.
//
// Status and FlagReason are classifier output. Callers never supply them as
// input; the classifier ignores whatever values they carry.
type TransactionRecord struct {
	ID        string              `json:"id"`
	Date      string              `json:"date"`
	Entity    string              `json:"entity"`
	Type      TransactionType     `json:"type"`
	Currency  string              `json:"currency"`
	Amount    decimal.Decimal     `json:"amount"`
	Quantity  decimal.NullDecimal `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unitPrice"`
	Product   string              `json:"product"`
	Bank      string              `json:"bank"`
	Source    Source              `json:"source"`

	Status     ComplianceStatus `json:"status,omitempty"`
	FlagReason string           `json:"flagReason,omitempty"`
}

// Validate checks the fields an ingestion surface must guarantee before the
// record reaches the reconciliation core
func (t *TransactionRecord) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}

	if strings.TrimSpace(t.Entity) == "" {
		return fmt.Errorf("transaction %s: entity cannot be empty", t.ID)
	}

	if _, err := t.ParsedDate(); err != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, err)
	}

	if !t.Type.IsValid() {
		return fmt.Errorf("transaction %s: invalid transaction type: %s", t.ID, t.Type)
	}

	if !t.Source.IsValid() {
		return fmt.Errorf("transaction %s: invalid source: %s", t.ID, t.Source)
	}

	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction %s: amount cannot be negative", t.ID)
	}

	if t.Quantity.Valid && t.Quantity.Decimal.IsNegative() {
		return fmt.Errorf("transaction %s: quantity cannot be negative", t.ID)
	}

	if t.UnitPrice.Valid && t.UnitPrice.Decimal.IsNegative() {
		return fmt.Errorf("transaction %s: unit price cannot be negative", t.ID)
	}

	return nil
}

// ParsedDate parses Date as an ISO calendar date
func (t *TransactionRecord) ParsedDate() (time.Time, error) {
	d, err := time.Parse(DateLayout, t.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", t.Date)
	}
	return d, nil
}

// HasQuantityAndPrice reports whether both optional line fields are present
func (t *TransactionRecord) HasQuantityAndPrice() bool {
	return t.Quantity.Valid && t.UnitPrice.Valid
}

// IsCustoms reports whether the record came from a customs declaration
func (t *TransactionRecord) IsCustoms() bool {
	return t.Source == SourceCustoms
}

// IsFinancial reports whether the record came from a financial institution
func (t *TransactionRecord) IsFinancial() bool {
	return t.Source == SourceFinancial
}

// Clone returns a copy of the record. Decimal values are immutable so a
// shallow copy is sufficient.
func (t *TransactionRecord) Clone() *TransactionRecord {
	c := *t
	return &c
}

// String returns a string representation of the TransactionRecord
func (t *TransactionRecord) String() string {
	return fmt.Sprintf("TransactionRecord{ID: %s, Source: %s, Entity: %s, Date: %s, Amount: %s %s}",
		t.ID, t.Source, t.Entity, t.Date, t.Amount.String(), t.Currency)
}
