package parsers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/pkg/errors"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func newCustomsParser(t *testing.T) *RecordParser {
	t.Helper()
	parser, err := NewRecordParser(DefaultRecordParserConfig(models.SourceCustoms))
	if err != nil {
		t.Fatalf("NewRecordParser() error = %v", err)
	}
	return parser
}

func TestRecordParser_ParseCSV(t *testing.T) {
	input := `id,date,entity,type,currency,amount,quantity,unit_price,product,bank
C1,2024-03-01,Acme Ltd,import,usd,"10,000.00",100,100,Steel coils,First Bank
C2,2024-03-02,Beta Co,EXPORT,EUR,$2500,,,Coffee,

C3,2024-03-03,Gamma,import,USD,750,ten,7.5,Tea,Second Bank
`
	parser := newCustomsParser(t)
	records, stats, err := parser.ParseCSV(context.Background(), strings.NewReader(input), "customs.csv")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if stats.RecordsValid != 3 || stats.HasErrors() {
		t.Errorf("Unexpected stats: %s", stats)
	}
	if stats.Warnings != 1 {
		t.Errorf("Expected 1 warning for malformed quantity, got %d", stats.Warnings)
	}

	first := records[0]
	if first.Currency != "USD" {
		t.Errorf("Expected currency to be upper-cased, got %s", first.Currency)
	}
	if !first.Amount.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Expected amount 10000, got %s", first.Amount)
	}
	if !first.HasQuantityAndPrice() {
		t.Error("Expected quantity and unit price to be present")
	}
	if first.Source != models.SourceCustoms {
		t.Errorf("Expected default source customs, got %s", first.Source)
	}

	if records[1].Type != models.TransactionTypeExport {
		t.Errorf("Expected export type, got %s", records[1].Type)
	}
	if records[1].Quantity.Valid {
		t.Error("Expected empty quantity to be absent")
	}

	if records[2].Quantity.Valid {
		t.Error("Expected malformed quantity to be treated as absent")
	}
	if !records[2].UnitPrice.Valid {
		t.Error("Expected unit price to be present")
	}
}

func TestRecordParser_InvalidRowsSkipped(t *testing.T) {
	tests := []struct {
		name  string
		row   string
		field string
	}{
		{"bad amount", "X1,2024-03-01,Acme,import,USD,abc", ColumnAmount},
		{"bad type", "X1,2024-03-01,Acme,transfer,USD,10", ColumnType},
		{"missing entity", "X1,2024-03-01,,import,USD,10", ColumnEntity},
		{"bad date", "X1,01/03/2024,Acme,import,USD,10", ""},
		{"negative amount", "X1,2024-03-01,Acme,import,USD,-10", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := "id,date,entity,type,currency,amount\n" + tt.row + "\nOK1,2024-03-01,Acme,import,USD,10\n"
			records, stats, err := newCustomsParser(t).ParseCSV(context.Background(), strings.NewReader(input), "in.csv")
			if err != nil {
				t.Fatalf("ParseCSV() error = %v", err)
			}
			if len(records) != 1 || records[0].ID != "OK1" {
				t.Fatalf("Expected only the valid row, got %d records", len(records))
			}
			if len(stats.Errors) != 1 {
				t.Fatalf("Expected 1 row error, got %d", len(stats.Errors))
			}
			if stats.Errors[0].Line != 2 {
				t.Errorf("Expected error on line 2, got %d", stats.Errors[0].Line)
			}
			if stats.Errors[0].Field != tt.field {
				t.Errorf("Expected error field %q, got %q", tt.field, stats.Errors[0].Field)
			}
		})
	}
}

func TestRecordParser_FailOnInvalidRow(t *testing.T) {
	config := DefaultRecordParserConfig(models.SourceFinancial)
	config.FailOnInvalidRow = true
	parser, err := NewRecordParser(config)
	if err != nil {
		t.Fatalf("NewRecordParser() error = %v", err)
	}

	input := "id,date,entity,type,currency,amount\nF1,2024-03-01,Acme,import,USD,oops\n"
	_, _, err = parser.ParseCSV(context.Background(), strings.NewReader(input), "in.csv")
	if !errors.IsCategory(err, errors.CategoryParse) {
		t.Fatalf("Expected parse error, got %v", err)
	}
}

func TestRecordParser_HeaderAliasesAndSourceColumn(t *testing.T) {
	config := DefaultRecordParserConfig(models.SourceImported)
	config.ColumnAliases = map[string][]string{ColumnEntity: {"counterparty"}}
	parser, err := NewRecordParser(config)
	if err != nil {
		t.Fatalf("NewRecordParser() error = %v", err)
	}

	input := "Transaction ID,Date,Counterparty,Direction,CCY,Value,Unit Price,Source\n" +
		"T1,2024-03-01,Acme,import,USD,10,2,financial\n" +
		"T2,2024-03-01,Acme,import,USD,10,2,\n"
	records, _, err := parser.ParseCSV(context.Background(), strings.NewReader(input), "in.csv")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Source != models.SourceFinancial {
		t.Errorf("Expected source column to win, got %s", records[0].Source)
	}
	if records[1].Source != models.SourceImported {
		t.Errorf("Expected default source for empty cell, got %s", records[1].Source)
	}
	if records[0].Entity != "Acme" {
		t.Errorf("Expected configured alias to map entity, got %q", records[0].Entity)
	}
	if !records[0].UnitPrice.Valid {
		t.Error("Expected 'Unit Price' header to map to unit price")
	}
}

func TestRecordParser_MissingColumns(t *testing.T) {
	input := "id,date,entity,amount\nC1,2024-03-01,Acme,10\n"
	_, _, err := newCustomsParser(t).ParseCSV(context.Background(), strings.NewReader(input), "in.csv")
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("Expected AppError, got %v", err)
	}
	if appErr.Code != errors.CodeMissingColumn {
		t.Errorf("Expected missing column code, got %s", appErr.Code)
	}
}

func TestRecordParser_EmptyInput(t *testing.T) {
	_, _, err := newCustomsParser(t).ParseCSV(context.Background(), strings.NewReader(""), "empty.csv")
	if !errors.IsCategory(err, errors.CategoryValidation) {
		t.Errorf("Expected validation error for empty file, got %v", err)
	}
}

func TestRecordParser_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := "id,date,entity,type,currency,amount\nC1,2024-03-01,Acme,import,USD,10\n"
	_, _, err := newCustomsParser(t).ParseCSV(ctx, strings.NewReader(input), "in.csv")
	if err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestRecordParser_ParseFile(t *testing.T) {
	parser := newCustomsParser(t)

	t.Run("csv", func(t *testing.T) {
		path := writeTempFile(t, "customs.csv", "id,date,entity,type,currency,amount\nC1,2024-03-01,Acme,import,USD,10\n")
		records, stats, err := parser.ParseFile(context.Background(), path)
		if err != nil {
			t.Fatalf("ParseFile() error = %v", err)
		}
		if len(records) != 1 || stats.File != path {
			t.Errorf("Unexpected result: %d records, stats %s", len(records), stats)
		}
	})

	t.Run("json", func(t *testing.T) {
		path := writeTempFile(t, "customs.json", `[
			{"id":"C1","date":"2024-03-01","entity":"Acme","type":"import","currency":"usd","amount":"10.50","quantity":null,"unitPrice":null,"product":"Tea","bank":"","source":"","status":"flagged"},
			{"id":"C2","date":"bad","entity":"Acme","type":"import","currency":"USD","amount":1}
		]`)
		records, stats, err := parser.ParseFile(context.Background(), path)
		if err != nil {
			t.Fatalf("ParseFile() error = %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 valid record, got %d", len(records))
		}
		if len(stats.Errors) != 1 {
			t.Errorf("Expected 1 error, got %d", len(stats.Errors))
		}
		r := records[0]
		if r.Source != models.SourceCustoms || r.Currency != "USD" || r.Status != "" {
			t.Errorf("Expected normalized record, got %s status=%q", r, r.Status)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeTempFile(t, "broken.json", `{"id":`)
		_, _, err := parser.ParseFile(context.Background(), path)
		if !errors.IsCategory(err, errors.CategoryParse) {
			t.Errorf("Expected parse error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := parser.ParseFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
		appErr, ok := errors.AsAppError(err)
		if !ok || appErr.Code != errors.CodeFileNotFound {
			t.Errorf("Expected file not found error, got %v", err)
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		path := writeTempFile(t, "latin1.csv", "id,date,entity,type,currency,amount\nC1,2024-03-01,Caf\xe9,import,USD,10\n")
		_, _, err := parser.ParseFile(context.Background(), path)
		if !errors.IsCategory(err, errors.CategoryParse) {
			t.Errorf("Expected encoding parse error, got %v", err)
		}
	})
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1250.50", "1250.5", false},
		{"1,250.50", "1250.5", false},
		{" $99 ", "99", false},
		{"€1 000", "1000", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestRecordParserConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *RecordParserConfig
		wantErr bool
	}{
		{"default", DefaultRecordParserConfig(models.SourceCustoms), false},
		{"bad source", &RecordParserConfig{DefaultSource: "ledger", Delimiter: ','}, true},
		{"quote delimiter", &RecordParserConfig{DefaultSource: models.SourceCustoms, Delimiter: '"'}, true},
		{"zero delimiter", &RecordParserConfig{DefaultSource: models.SourceCustoms}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
