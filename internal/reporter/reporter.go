// Package reporter renders compliance analyses for terminals, programs and
// spreadsheets.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: the analysis and pass summary for programmatic consumption
//   - CSV: one export row per classified transaction
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(reporter.DefaultReportConfig())
//	err = generator.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/penalty"
	"fx-compliance-engine/internal/reconciler"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeTransactions  bool `json:"include_transactions"`
	IncludeFlagged       bool `json:"include_flagged"`
	IncludeDiscrepancies bool `json:"include_discrepancies"`
	IncludeUnmatched     bool `json:"include_unmatched"`
	IncludeParseStats    bool `json:"include_parse_stats"`

	// MaxListItems truncates console lists; 0 prints everything
	MaxListItems int `json:"max_list_items"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		IncludeTransactions:  false,
		IncludeFlagged:       true,
		IncludeDiscrepancies: true,
		IncludeUnmatched:     true,
		IncludeParseStats:    true,
		MaxListItems:         10,
		CSVDelimiter:         ',',
		CSVHeaders:           true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative, got %d", c.MaxListItems)
	}
	return nil
}

// ReportGenerator generates compliance reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// GenerateReport writes a report of result to writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	if result == nil || result.Analysis == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return WriteCSV(writer, rg.csvHeaders(TransactionHeaders), TransactionRows(result.Analysis.Transactions), rg.config.CSVDelimiter)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// GenerateDiscrepancyCSV writes the discrepancy export rows of result
func (rg *ReportGenerator) GenerateDiscrepancyCSV(result *reconciler.ReconciliationResult, writer io.Writer) error {
	if result == nil || result.Analysis == nil {
		return fmt.Errorf("reconciliation result cannot be nil")
	}
	return WriteCSV(writer, rg.csvHeaders(DiscrepancyHeaders), DiscrepancyRows(result.Analysis.DataDiscrepancies), rg.config.CSVDelimiter)
}

func (rg *ReportGenerator) csvHeaders(headers []string) []string {
	if !rg.config.CSVHeaders {
		return nil
	}
	return headers
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	analysis := result.Analysis

	fmt.Fprintf(writer, "FX COMPLIANCE REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	if result.Summary != nil {
		fmt.Fprintf(writer, "Processing Duration: %v\n", result.Summary.ProcessingDuration)
	}
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Transactions:    %d\n", analysis.TotalTransactions)
	fmt.Fprintf(writer, "Compliant:       %d\n", analysis.CompliantCount)
	fmt.Fprintf(writer, "Pending:         %d\n", analysis.PendingCount)
	fmt.Fprintf(writer, "Flagged:         %d\n", analysis.FlaggedCount)
	fmt.Fprintf(writer, "Compliance Rate: %.1f%%\n", analysis.ComplianceRate)
	if s := result.Summary; s != nil {
		fmt.Fprintf(writer, "\nRecords: customs %d, financial %d, other %d", s.CustomsRecords, s.FinancialRecords, s.OtherRecords)
		if s.FilteredRecords > 0 {
			fmt.Fprintf(writer, ", filtered %d", s.FilteredRecords)
		}
		fmt.Fprintf(writer, "\nMatched pairs: %d (ambiguous customs records: %d)\n", s.Pairs, s.AmbiguousCustoms)
	}
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== STATUS DISTRIBUTION ===\n")
	for _, share := range analysis.StatusDistribution {
		fmt.Fprintf(writer, "%-10s %3d%%\n", share.Name+":", share.Value)
	}
	fmt.Fprintf(writer, "\n")

	if len(analysis.ComplianceByBank) > 0 {
		fmt.Fprintf(writer, "=== COMPLIANCE BY BANK ===\n")
		for _, g := range analysis.ComplianceByBank {
			fmt.Fprintf(writer, "  %-30s %d/%d (%d%%)\n", g.Name, g.Compliant, g.Total, g.Rate)
		}
		fmt.Fprintf(writer, "\n")
	}

	if len(analysis.ComplianceByType) > 0 {
		fmt.Fprintf(writer, "=== COMPLIANCE BY TYPE ===\n")
		for _, g := range analysis.ComplianceByType {
			fmt.Fprintf(writer, "  %-30s %d/%d (%d%%)\n", g.Name, g.Compliant, g.Total, g.Rate)
		}
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeFlagged && len(analysis.FlaggedTransactions) > 0 {
		fmt.Fprintf(writer, "=== FLAGGED TRANSACTIONS ===\n")
		rg.printTransactionList(analysis.FlaggedTransactions, writer, true)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeDiscrepancies && analysis.HasDiscrepancies() {
		fmt.Fprintf(writer, "=== DISCREPANCIES ===\n")
		rg.printDiscrepancies(analysis.DataDiscrepancies, writer)
	}

	if rg.config.IncludeUnmatched {
		if len(analysis.UnmatchedCustoms) > 0 {
			fmt.Fprintf(writer, "=== UNMATCHED CUSTOMS DECLARATIONS ===\n")
			rg.printTransactionList(analysis.UnmatchedCustoms, writer, false)
			fmt.Fprintf(writer, "\n")
		}
		if len(analysis.UnmatchedFinancial) > 0 {
			fmt.Fprintf(writer, "=== UNMATCHED FINANCIAL RECORDS ===\n")
			rg.printTransactionList(analysis.UnmatchedFinancial, writer, false)
			fmt.Fprintf(writer, "\n")
		}
	}

	if rg.config.IncludeTransactions && len(analysis.Transactions) > 0 {
		fmt.Fprintf(writer, "=== ALL TRANSACTIONS ===\n")
		rg.printTransactionList(analysis.Transactions, writer, false)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeParseStats && len(result.ParseStats) > 0 {
		fmt.Fprintf(writer, "=== INPUT FILES ===\n")
		files := make([]string, 0, len(result.ParseStats))
		for file := range result.ParseStats {
			files = append(files, file)
		}
		sort.Strings(files)
		for _, file := range files {
			fmt.Fprintf(writer, "  %s\n", result.ParseStats[file])
		}
	}

	return nil
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.ReconciliationResult, writer io.Writer) error {
	output := map[string]interface{}{
		"analysis":     result.Analysis,
		"summary":      result.Summary,
		"processed_at": result.ProcessedAt,
	}
	if rg.config.IncludeParseStats && len(result.ParseStats) > 0 {
		output["parse_stats"] = result.ParseStats
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func (rg *ReportGenerator) printDiscrepancies(discrepancies []*models.DiscrepancyRecord, writer io.Writer) {
	fmt.Fprintf(writer, "Total Discrepancies Found: %d\n\n", len(discrepancies))

	groups := make(map[models.Severity][]*models.DiscrepancyRecord)
	for _, d := range discrepancies {
		groups[d.Severity] = append(groups[d.Severity], d)
	}

	for _, severity := range []models.Severity{models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
		group := groups[severity]
		if len(group) == 0 {
			continue
		}

		fmt.Fprintf(writer, "%s Severity (%d):\n", strings.ToUpper(string(severity)), len(group))
		for _, d := range group {
			fmt.Fprintf(writer, "  - %s %s %s: customs %s, financial %s (%.2f%%)",
				d.Entity(), d.Date(), d.Type,
				d.CustomsValue.StringFixed(2), d.FinancialValue.StringFixed(2), d.PercentageDifference)
			if d.PotentialCapitalFlight {
				fmt.Fprintf(writer, " [capital flight]")
			}
			if d.ResolutionStatus != "" && d.ResolutionStatus != models.ResolutionUnresolved {
				fmt.Fprintf(writer, " [%s]", d.ResolutionStatus)
			}
			fmt.Fprintf(writer, "\n")
		}
		fmt.Fprintf(writer, "\n")
	}
}

func (rg *ReportGenerator) printTransactionList(records []*models.TransactionRecord, writer io.Writer, withReason bool) {
	for i, r := range records {
		if rg.config.MaxListItems > 0 && i >= rg.config.MaxListItems {
			fmt.Fprintf(writer, "  ... and %d more\n", len(records)-i)
			break
		}
		fmt.Fprintf(writer, "  %d. %s %s %s %s %s %s",
			i+1, r.ID, r.Date, r.Entity, r.Type, r.Amount.StringFixed(2), r.Currency)
		if withReason && r.FlagReason != "" {
			fmt.Fprintf(writer, " - %s", r.FlagReason)
		}
		fmt.Fprintf(writer, "\n")
	}
}

// GeneratePenaltyReport writes a penalty breakdown in the configured format.
// CSV output is a single header and value row.
func (rg *ReportGenerator) GeneratePenaltyReport(tx *models.TransactionRecord, result penalty.Result, writer io.Writer) error {
	switch rg.config.Format {
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]interface{}{
			"transaction": tx,
			"penalty":     result,
		})
	case FormatCSV:
		return WriteCSV(writer, rg.csvHeaders(PenaltyHeaders), []PenaltyRow{NewPenaltyRow(tx, result)}, rg.config.CSVDelimiter)
	default:
		fmt.Fprintf(writer, "PENALTY ASSESSMENT\n")
		if tx != nil {
			fmt.Fprintf(writer, "Transaction:        %s (%s %s)\n", tx.ID, tx.Amount.StringFixed(2), tx.Currency)
		}
		fmt.Fprintf(writer, "Days Late:          %d\n", result.DaysLate)
		fmt.Fprintf(writer, "Outstanding Amount: %s\n", result.OutstandingAmount.StringFixed(2))
		fmt.Fprintf(writer, "Penalty Amount:     %s\n", result.PenaltyAmount.StringFixed(2))
		fmt.Fprintf(writer, "Interest Amount:    %s\n", result.InterestAmount.StringFixed(2))
		fmt.Fprintf(writer, "Total Due:          %s\n", result.TotalDue.StringFixed(2))
		if result.Overpayment.IsPositive() {
			fmt.Fprintf(writer, "Overpayment:        %s\n", result.Overpayment.StringFixed(2))
		}
		return nil
	}
}

// PenaltyRow is the flat export shape of a penalty assessment
type PenaltyRow struct {
	ID                string `json:"id"`
	Currency          string `json:"currency"`
	DaysLate          string `json:"daysLate"`
	OutstandingAmount string `json:"outstandingAmount"`
	PenaltyAmount     string `json:"penaltyAmount"`
	InterestAmount    string `json:"interestAmount"`
	TotalDue          string `json:"totalDue"`
}

// PenaltyHeaders lists the CSV columns of a PenaltyRow
var PenaltyHeaders = []string{"id", "currency", "daysLate", "outstandingAmount", "penaltyAmount", "interestAmount", "totalDue"}

// NewPenaltyRow maps a penalty result to an export row
func NewPenaltyRow(tx *models.TransactionRecord, result penalty.Result) PenaltyRow {
	row := PenaltyRow{
		DaysLate:          fmt.Sprintf("%d", result.DaysLate),
		OutstandingAmount: result.OutstandingAmount.StringFixed(2),
		PenaltyAmount:     result.PenaltyAmount.StringFixed(2),
		InterestAmount:    result.InterestAmount.StringFixed(2),
		TotalDue:          result.TotalDue.StringFixed(2),
	}
	if tx != nil {
		row.ID = tx.ID
		row.Currency = tx.Currency
	}
	return row
}

// Values returns the row in PenaltyHeaders order
func (r PenaltyRow) Values() []string {
	return []string{r.ID, r.Currency, r.DaysLate, r.OutstandingAmount, r.PenaltyAmount, r.InterestAmount, r.TotalDue}
}
