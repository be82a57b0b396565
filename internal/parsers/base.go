// Package parsers reads customs and financial transaction records from CSV
// or JSON files.
//
// Rows that fail to parse or validate are skipped and reported through
// ParseStats so a single bad line never blocks a reconciliation pass.
// Optional numeric columns (quantity, unit price) that are empty or
// malformed are treated as absent.
//
// Example usage:
//
//	parser, err := parsers.NewRecordParser(parsers.DefaultRecordParserConfig(models.SourceCustoms))
//	records, stats, err := parser.ParseFile(ctx, "customs.csv")
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

// ParseError describes one rejected row
type ParseError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d (%s='%s'): %s", e.Line, e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseConfig holds CSV reader settings
type ParseConfig struct {
	Delimiter        rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	ValidateEncoding bool
}

// DefaultParseConfig returns comma-separated UTF-8 settings
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}
}

// BaseParser provides the CSV plumbing shared by record parsers
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a BaseParser
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	return &BaseParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("parser"),
	}
}

// ParseContext holds state during one parse
type ParseContext struct {
	File       string
	LineNumber int
	Headers    []string
	headerMap  map[string]int
	ctx        context.Context
}

// NewParseContext creates a parsing context
func NewParseContext(ctx context.Context, file string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{File: file, headerMap: make(map[string]int), ctx: ctx}
}

// IsCancelled reports whether the context was cancelled
func (pc *ParseContext) IsCancelled() bool {
	return pc.ctx.Err() != nil
}

// ColumnIndex finds the first of names among the headers, ignoring case,
// spaces and underscores. It returns -1 when none is present.
func (pc *ParseContext) ColumnIndex(names ...string) int {
	for _, name := range names {
		if idx, ok := pc.headerMap[normalizeHeader(name)]; ok {
			return idx
		}
	}
	return -1
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(h)
}

// OpenFile opens path for reading, mapping OS errors to input errors
func (bp *BaseParser) OpenFile(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, errors.InputError(errors.CodeFileNotFound, path, err)
		case os.IsPermission(err):
			return nil, errors.InputError(errors.CodeFilePermission, path, err)
		default:
			return nil, errors.InputError(errors.CodeFileCorrupted, path, err)
		}
	}

	if bp.config.ValidateEncoding {
		if err := validateEncoding(file, path); err != nil {
			file.Close()
			return nil, err
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			file.Close()
			return nil, errors.InputError(errors.CodeFileCorrupted, path, err)
		}
	}

	return file, nil
}

// validateEncoding checks the first lines for valid UTF-8
func validateEncoding(r io.Reader, path string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; scanner.Scan() && line <= 100; line++ {
		if !utf8.Valid(scanner.Bytes()) {
			return errors.ParseError(errors.CodeInvalidFormat, path, line, "encoding", "",
				fmt.Errorf("invalid UTF-8 encoding detected")).
				WithSuggestion("save the file in UTF-8 encoding and try again")
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.InputError(errors.CodeFileCorrupted, path, err)
	}
	return nil
}

// NewReader wraps r in a configured csv.Reader
func (bp *BaseParser) NewReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = bp.config.Delimiter
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1
	return reader
}

// ReadHeaders reads the header row and checks that every required column
// (given as alias groups) is present
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, pc *ParseContext, required map[string][]string) error {
	headers, err := reader.Read()
	if err == io.EOF {
		return errors.ValidationError(errors.CodeMissingField, "file_content", "empty", nil).
			WithSuggestion("ensure the file contains a header row and data rows").
			WithContext("file", pc.File)
	}
	if err != nil {
		return errors.ParseError(errors.CodeInvalidFormat, pc.File, 1, "headers", "", err)
	}

	pc.LineNumber = 1
	pc.Headers = make([]string, len(headers))
	for i, h := range headers {
		pc.Headers[i] = strings.TrimSpace(h)
		key := normalizeHeader(h)
		if _, dup := pc.headerMap[key]; !dup {
			pc.headerMap[key] = i
		}
	}

	var missing []string
	for column, aliases := range required {
		if pc.ColumnIndex(aliases...) == -1 {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return errors.ParseError(errors.CodeMissingColumn, pc.File, 1, strings.Join(missing, ", "), "", nil).
			WithSuggestion(fmt.Sprintf("available headers: %s", strings.Join(pc.Headers, ", ")))
	}

	bp.logger.WithFields(logger.Fields{"file": pc.File, "headers": pc.Headers}).Debug("read headers")
	return nil
}

// ReadRecord returns the next non-empty row, or io.EOF
func (bp *BaseParser) ReadRecord(reader *csv.Reader, pc *ParseContext) ([]string, error) {
	for {
		if pc.IsCancelled() {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "csv_parsing", pc.ctx.Err())
		}

		record, err := reader.Read()
		if err != nil {
			if err != io.EOF {
				pc.LineNumber++
			}
			return nil, err
		}
		pc.LineNumber++

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}
		return record, nil
	}
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// FieldValue returns the trimmed value of the first present alias, or ""
func FieldValue(record []string, pc *ParseContext, aliases ...string) string {
	idx := pc.ColumnIndex(aliases...)
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	File          string        `json:"file"`
	TotalLines    int           `json:"total_lines"`
	RecordsParsed int           `json:"records_parsed"`
	RecordsValid  int           `json:"records_valid"`
	Warnings      int           `json:"warnings"`
	Errors        []*ParseError `json:"-"`
}

// NewParseStats creates empty statistics for file
func NewParseStats(file string) *ParseStats {
	return &ParseStats{File: file, Errors: make([]*ParseError, 0)}
}

// AddError records a rejected row
func (ps *ParseStats) AddError(err *ParseError) {
	ps.Errors = append(ps.Errors, err)
}

// HasErrors returns true if any row was rejected
func (ps *ParseStats) HasErrors() bool {
	return len(ps.Errors) > 0
}

// String returns a human-readable summary
func (ps *ParseStats) String() string {
	return fmt.Sprintf("%s: %d lines, %d records (%d valid), %d errors, %d warnings",
		ps.File, ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, len(ps.Errors), ps.Warnings)
}

// SampleErrors returns up to max error messages for logging
func (ps *ParseStats) SampleErrors(max int) []string {
	limit := len(ps.Errors)
	if max > 0 && max < limit {
		limit = max
	}
	samples := make([]string, 0, limit)
	for _, err := range ps.Errors[:limit] {
		samples = append(samples, err.Error())
	}
	return samples
}
