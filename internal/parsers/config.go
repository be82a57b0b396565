package parsers

import (
	"fmt"

	"fx-compliance-engine/internal/models"
)

// RecordParserConfig controls how transaction records are read
type RecordParserConfig struct {
	// DefaultSource applies to rows without a source column or value
	DefaultSource models.Source `json:"default_source"`
	// Delimiter separates CSV fields
	Delimiter rune `json:"delimiter"`
	// FailOnInvalidRow aborts the parse at the first rejected row instead of
	// skipping it
	FailOnInvalidRow bool `json:"fail_on_invalid_row"`
	// ColumnAliases adds header names per canonical column
	ColumnAliases map[string][]string `json:"column_aliases,omitempty"`
}

// Canonical column names
const (
	ColumnID        = "id"
	ColumnDate      = "date"
	ColumnEntity    = "entity"
	ColumnType      = "type"
	ColumnCurrency  = "currency"
	ColumnAmount    = "amount"
	ColumnQuantity  = "quantity"
	ColumnUnitPrice = "unit_price"
	ColumnProduct   = "product"
	ColumnBank      = "bank"
	ColumnSource    = "source"
)

var builtinAliases = map[string][]string{
	ColumnID:        {"id", "transaction_id", "reference"},
	ColumnDate:      {"date", "transaction_date"},
	ColumnEntity:    {"entity", "company", "importer_exporter"},
	ColumnType:      {"type", "transaction_type", "direction"},
	ColumnCurrency:  {"currency", "ccy"},
	ColumnAmount:    {"amount", "total", "value"},
	ColumnQuantity:  {"quantity", "qty"},
	ColumnUnitPrice: {"unit_price", "unitprice", "price"},
	ColumnProduct:   {"product", "description", "goods"},
	ColumnBank:      {"bank", "financial_institution"},
	ColumnSource:    {"source"},
}

var requiredColumns = []string{ColumnID, ColumnDate, ColumnEntity, ColumnType, ColumnCurrency, ColumnAmount}

// DefaultRecordParserConfig returns the configuration for files from source
func DefaultRecordParserConfig(source models.Source) *RecordParserConfig {
	return &RecordParserConfig{
		DefaultSource: source,
		Delimiter:     ',',
	}
}

// Validate validates the parser configuration
func (c *RecordParserConfig) Validate() error {
	if c.DefaultSource != "" && !c.DefaultSource.IsValid() {
		return fmt.Errorf("invalid default source: %s", c.DefaultSource)
	}
	if c.Delimiter == 0 || c.Delimiter == '"' || c.Delimiter == '\n' || c.Delimiter == '\r' {
		return fmt.Errorf("invalid delimiter: %q", c.Delimiter)
	}
	return nil
}

// Aliases returns the header names accepted for a canonical column
func (c *RecordParserConfig) Aliases(column string) []string {
	return append(append([]string(nil), c.ColumnAliases[column]...), builtinAliases[column]...)
}
