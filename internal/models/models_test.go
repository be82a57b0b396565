package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func validRecord() *TransactionRecord {
	return &TransactionRecord{
		ID:        "C-1",
		Date:      "2023-05-15",
		Entity:    "Acme",
		Type:      TransactionTypeImport,
		Currency:  "USD",
		Amount:    decimal.NewFromInt(85000),
		Quantity:  decimal.NewNullDecimal(decimal.NewFromInt(2000)),
		UnitPrice: decimal.NewNullDecimal(decimal.RequireFromString("42.5")),
		Product:   "Widgets",
		Bank:      "First Bank",
		Source:    SourceCustoms,
	}
}

func TestTransactionType_IsValid(t *testing.T) {
	tests := []struct {
		txType TransactionType
		valid  bool
	}{
		{TransactionTypeImport, true},
		{TransactionTypeExport, true},
		{"IMPORT", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.txType), func(t *testing.T) {
			if got := tt.txType.IsValid(); got != tt.valid {
				t.Errorf("TransactionType.IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestParseEnums(t *testing.T) {
	if typ, err := ParseTransactionType(" Export "); err != nil || typ != TransactionTypeExport {
		t.Errorf("ParseTransactionType() = %v, %v", typ, err)
	}
	if _, err := ParseTransactionType("transit"); err == nil {
		t.Error("expected error for unknown type")
	}
	if src, err := ParseSource("FINANCIAL"); err != nil || src != SourceFinancial {
		t.Errorf("ParseSource() = %v, %v", src, err)
	}
	if _, err := ParseSource("bank"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestTransactionRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *TransactionRecord)
		wantErr string
	}{
		{"valid", func(r *TransactionRecord) {}, ""},
		{"empty id", func(r *TransactionRecord) { r.ID = " " }, "ID cannot be empty"},
		{"empty entity", func(r *TransactionRecord) { r.Entity = "" }, "entity"},
		{"bad date", func(r *TransactionRecord) { r.Date = "15/05/2023" }, "invalid date"},
		{"bad type", func(r *TransactionRecord) { r.Type = "transit" }, "transaction type"},
		{"bad source", func(r *TransactionRecord) { r.Source = "bank" }, "source"},
		{"negative amount", func(r *TransactionRecord) { r.Amount = decimal.NewFromInt(-1) }, "amount"},
		{"negative quantity", func(r *TransactionRecord) {
			r.Quantity = decimal.NewNullDecimal(decimal.NewFromInt(-5))
		}, "quantity"},
		{"negative unit price", func(r *TransactionRecord) {
			r.UnitPrice = decimal.NewNullDecimal(decimal.NewFromInt(-5))
		}, "unit price"},
		{"zero amount allowed", func(r *TransactionRecord) { r.Amount = decimal.Zero }, ""},
		{"missing optional fields", func(r *TransactionRecord) {
			r.Quantity = decimal.NullDecimal{}
			r.UnitPrice = decimal.NullDecimal{}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTransactionRecord_Clone(t *testing.T) {
	r := validRecord()
	c := r.Clone()
	c.Status = StatusFlagged
	c.FlagReason = "x"

	if r.Status != "" || r.FlagReason != "" {
		t.Error("mutating the clone changed the original")
	}
	if !c.Amount.Equal(r.Amount) || c.ID != r.ID {
		t.Error("clone lost field values")
	}
}

func TestTransactionRecord_JSON(t *testing.T) {
	payload := `{"id":"F-1","date":"2023-05-15","entity":"Acme","type":"import","currency":"USD",
		"amount":65000,"unitPrice":"19","product":"Widgets","bank":"First Bank","source":"financial"}`

	var r TransactionRecord
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.Amount.Equal(decimal.NewFromInt(65000)) {
		t.Errorf("expected amount 65000, got %s", r.Amount)
	}
	if r.Quantity.Valid {
		t.Error("absent quantity should be invalid")
	}
	if !r.UnitPrice.Valid || !r.UnitPrice.Decimal.Equal(decimal.NewFromInt(19)) {
		t.Errorf("expected unit price 19, got %+v", r.UnitPrice)
	}
	if r.HasQuantityAndPrice() {
		t.Error("HasQuantityAndPrice should be false without quantity")
	}
	if !r.IsFinancial() || r.IsCustoms() {
		t.Error("unexpected source helpers result")
	}
}

func TestDiscrepancyRecord_Accessors(t *testing.T) {
	customs := validRecord()
	financial := validRecord()
	financial.ID = "F-1"
	financial.Source = SourceFinancial
	financial.Date = "2023-05-16"

	d := &DiscrepancyRecord{Customs: customs, Financial: financial}
	if d.Primary() != customs || d.Entity() != "Acme" || d.Date() != "2023-05-15" {
		t.Error("expected customs side to be primary")
	}
	if d.IsUnmatched() {
		t.Error("pair should not be unmatched")
	}

	only := &DiscrepancyRecord{Financial: financial, Type: DiscrepancyUnmatched}
	if only.Primary() != financial || only.Date() != "2023-05-16" || !only.IsUnmatched() {
		t.Error("expected financial side to be primary when customs is absent")
	}

	empty := &DiscrepancyRecord{}
	if empty.Entity() != "" || empty.Date() != "" {
		t.Error("empty discrepancy should have empty accessors")
	}
}

func TestResolutionStatus_IsValid(t *testing.T) {
	for _, s := range []ResolutionStatus{ResolutionUnresolved, ResolutionInvestigating, ResolutionResolved} {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if ResolutionStatus("closed").IsValid() {
		t.Error("closed should be invalid")
	}
}
