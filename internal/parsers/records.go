package parsers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

// RecordParser reads TransactionRecords from CSV or JSON input
type RecordParser struct {
	*BaseParser
	config *RecordParserConfig
}

// NewRecordParser creates a RecordParser
func NewRecordParser(config *RecordParserConfig) (*RecordParser, error) {
	if config == nil {
		config = DefaultRecordParserConfig(models.SourceImported)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parser", config, err)
	}

	parseConfig := DefaultParseConfig()
	parseConfig.Delimiter = config.Delimiter

	return &RecordParser{
		BaseParser: NewBaseParser(parseConfig),
		config:     config,
	}, nil
}

// ParseFile parses path, choosing JSON for a .json extension and CSV otherwise
func (rp *RecordParser) ParseFile(ctx context.Context, path string) ([]*models.TransactionRecord, *ParseStats, error) {
	file, err := rp.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return rp.ParseJSON(ctx, file, path)
	}
	return rp.ParseCSV(ctx, file, path)
}

// ParseCSV parses CSV rows from r. name identifies the input in errors.
func (rp *RecordParser) ParseCSV(ctx context.Context, r io.Reader, name string) ([]*models.TransactionRecord, *ParseStats, error) {
	pc := NewParseContext(ctx, name)
	stats := NewParseStats(name)
	reader := rp.NewReader(r)

	required := make(map[string][]string, len(requiredColumns))
	for _, column := range requiredColumns {
		required[column] = rp.config.Aliases(column)
	}
	if err := rp.ReadHeaders(reader, pc, required); err != nil {
		return nil, nil, err
	}
	stats.TotalLines = 1

	var records []*models.TransactionRecord
	for {
		row, err := rp.ReadRecord(reader, pc)
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.IsCategory(err, errors.CategoryInternal) {
				return nil, nil, err
			}
			stats.TotalLines = pc.LineNumber
			perr := &ParseError{Line: pc.LineNumber, Message: "malformed CSV row", Err: err}
			if rp.config.FailOnInvalidRow {
				return nil, nil, errors.ParseError(errors.CodeInvalidFormat, name, pc.LineNumber, "", "", err)
			}
			stats.AddError(perr)
			continue
		}
		stats.TotalLines = pc.LineNumber
		stats.RecordsParsed++

		record, warnings, perr := rp.recordFromRow(row, pc)
		stats.Warnings += warnings
		if perr != nil {
			if rp.config.FailOnInvalidRow {
				return nil, nil, errors.ParseError(errors.CodeInvalidData, name, perr.Line, perr.Field, perr.Value, perr)
			}
			stats.AddError(perr)
			continue
		}

		stats.RecordsValid++
		records = append(records, record)
	}

	rp.logCompletion(stats)
	return records, stats, nil
}

func (rp *RecordParser) recordFromRow(row []string, pc *ParseContext) (*models.TransactionRecord, int, *ParseError) {
	field := func(column string) string {
		return FieldValue(row, pc, rp.config.Aliases(column)...)
	}
	rowError := func(column, value, message string, err error) *ParseError {
		return &ParseError{Line: pc.LineNumber, Field: column, Value: value, Message: message, Err: err}
	}

	record := &models.TransactionRecord{
		ID:       field(ColumnID),
		Date:     field(ColumnDate),
		Entity:   field(ColumnEntity),
		Currency: strings.ToUpper(field(ColumnCurrency)),
		Product:  field(ColumnProduct),
		Bank:     field(ColumnBank),
		Source:   rp.config.DefaultSource,
	}

	for _, column := range []string{ColumnID, ColumnDate, ColumnEntity, ColumnCurrency} {
		if field(column) == "" {
			return nil, 0, rowError(column, "", "required field is empty", nil)
		}
	}

	rawType := field(ColumnType)
	txType, err := models.ParseTransactionType(rawType)
	if err != nil {
		return nil, 0, rowError(ColumnType, rawType, "invalid transaction type", err)
	}
	record.Type = txType

	if rawSource := field(ColumnSource); rawSource != "" {
		source, err := models.ParseSource(rawSource)
		if err != nil {
			return nil, 0, rowError(ColumnSource, rawSource, "invalid source", err)
		}
		record.Source = source
	}

	rawAmount := field(ColumnAmount)
	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return nil, 0, rowError(ColumnAmount, rawAmount, "invalid amount", err)
	}
	record.Amount = amount

	warnings := 0
	record.Quantity, warnings = rp.optionalDecimal(field(ColumnQuantity), warnings)
	record.UnitPrice, warnings = rp.optionalDecimal(field(ColumnUnitPrice), warnings)

	if err := record.Validate(); err != nil {
		return nil, warnings, rowError("", "", err.Error(), err)
	}
	return record, warnings, nil
}

// optionalDecimal treats empty or malformed values as absent, counting the
// malformed ones as warnings
func (rp *RecordParser) optionalDecimal(raw string, warnings int) (decimal.NullDecimal, int) {
	if raw == "" {
		return decimal.NullDecimal{}, warnings
	}
	d, err := ParseAmount(raw)
	if err != nil {
		return decimal.NullDecimal{}, warnings + 1
	}
	return decimal.NewNullDecimal(d), warnings
}

// ParseJSON decodes a JSON array of records from r
func (rp *RecordParser) ParseJSON(ctx context.Context, r io.Reader, name string) ([]*models.TransactionRecord, *ParseStats, error) {
	var raw []*models.TransactionRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, name, 0, "", "", err).
			WithSuggestion("the file must contain a JSON array of transaction records")
	}

	stats := NewParseStats(name)
	stats.TotalLines = len(raw)
	records := make([]*models.TransactionRecord, 0, len(raw))
	for i, record := range raw {
		if ctx != nil && ctx.Err() != nil {
			return nil, nil, errors.InternalError(errors.CodeUnexpectedError, "json_parsing", ctx.Err())
		}
		stats.RecordsParsed++
		if record == nil {
			stats.AddError(&ParseError{Line: i + 1, Message: "null record"})
			continue
		}
		if record.Source == "" {
			record.Source = rp.config.DefaultSource
		}
		record.Currency = strings.ToUpper(strings.TrimSpace(record.Currency))
		record.Status = ""
		record.FlagReason = ""
		if err := record.Validate(); err != nil {
			perr := &ParseError{Line: i + 1, Message: err.Error(), Err: err}
			if rp.config.FailOnInvalidRow {
				return nil, nil, errors.ParseError(errors.CodeInvalidData, name, i+1, "", record.ID, err)
			}
			stats.AddError(perr)
			continue
		}
		stats.RecordsValid++
		records = append(records, record)
	}

	rp.logCompletion(stats)
	return records, stats, nil
}

func (rp *RecordParser) logCompletion(stats *ParseStats) {
	log := rp.logger.WithFields(logger.Fields{
		"file":          stats.File,
		"records_valid": stats.RecordsValid,
		"errors":        len(stats.Errors),
		"warnings":      stats.Warnings,
	})
	log.Info("parsed transaction records")
	if stats.HasErrors() {
		log.WithField("samples", stats.SampleErrors(5)).Warn("skipped invalid rows")
	}
}

// ParseAmount parses a decimal amount, accepting thousands separators and a
// leading currency symbol
func ParseAmount(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.TrimLeft(cleaned, "$€£¥")
	cleaned = strings.NewReplacer(",", "", " ", "").Replace(cleaned)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", value, err)
	}
	return d, nil
}
