package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fx-compliance-engine/cmd/fxcompliance/config"
	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/reconciler"
	"fx-compliance-engine/internal/reporter"
	"fx-compliance-engine/internal/resolution"
	apperrors "fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

// Flags for the analyze command
var (
	customsFiles     []string
	financialFiles   []string
	combinedFiles    []string
	outputFormat     string
	outputFile       string
	discrepancyFile  string
	startDate        string
	endDate          string
	failOnInvalidRow bool
	analyzeActor     string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Reconcile customs declarations with financial records",
	Long: `Analyze pairs customs declarations with financial-institution records,
detects value, quantity and price discrepancies, classifies every record and
prints a compliance report.

Input files are CSV or JSON (by extension). Customs and financial files default
their rows to that source; combined files carry a source column.

Examples:
  # Basic analysis
  fxcompliance analyze --customs customs.csv --financial bank.csv

  # Combined file, one quarter, JSON report
  fxcompliance analyze --combined records.csv --start-date 2023-04-01 --end-date 2023-06-30 \
    --output-format json --output-file report.json

  # Three-day date window, unmatched records reported as discrepancies
  fxcompliance analyze --customs customs.csv --financial bank.csv \
    --date-tolerance 3 --report-unmatched --discrepancies-csv discrepancies.csv`,

	PreRunE: validateAnalyzeFlags,
	RunE:    runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	flags := analyzeCmd.Flags()

	// Input flags
	flags.StringSliceVar(&customsFiles, "customs", []string{}, "customs declaration files (CSV or JSON)")
	flags.StringSliceVar(&financialFiles, "financial", []string{}, "financial institution record files (CSV or JSON)")
	flags.StringSliceVar(&combinedFiles, "combined", []string{}, "files mixing sources, tagged by a source column")
	flags.BoolVar(&failOnInvalidRow, "fail-on-invalid-row", false, "abort on the first malformed row instead of skipping it")

	// Output flags
	flags.StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	flags.StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	flags.StringVar(&discrepancyFile, "discrepancies-csv", "", "also export discrepancies to this CSV file")

	// Date filtering flags
	flags.StringVar(&startDate, "start-date", "", "filter start date (YYYY-MM-DD)")
	flags.StringVar(&endDate, "end-date", "", "filter end date (YYYY-MM-DD)")

	// Policy flags
	flags.Int("date-tolerance", 0, "date matching window in days (0 = exact date)")
	flags.Bool("report-unmatched", false, "report records without a counterpart as discrepancies")
	flags.StringSlice("monitored-banks", []string{}, "banks whose records are held for review")

	flags.StringVar(&analyzeActor, "actor", "cli", "actor recorded in the audit trail")

	viper.BindPFlag(config.KeyDateToleranceDays, flags.Lookup("date-tolerance"))
	viper.BindPFlag(config.KeyReportUnmatched, flags.Lookup("report-unmatched"))
	viper.BindPFlag(config.KeyMonitoredBanks, flags.Lookup("monitored-banks"))
}

func validateAnalyzeFlags(cmd *cobra.Command, args []string) error {
	if len(customsFiles)+len(financialFiles)+len(combinedFiles) == 0 {
		return apperrors.ConfigurationError(apperrors.CodeMissingConfig, "input files", nil, nil).
			WithSuggestion("pass --customs and --financial, or --combined")
	}

	for _, group := range []struct {
		files       []string
		description string
	}{
		{customsFiles, "customs file"},
		{financialFiles, "financial file"},
		{combinedFiles, "combined file"},
	} {
		for _, file := range group.files {
			if err := validateFileExists(file, group.description); err != nil {
				return err
			}
		}
	}

	if _, err := config.ReportConfig(outputFormat); err != nil {
		return err
	}

	if _, err := parseDateRange(startDate, endDate); err != nil {
		return err
	}

	for _, path := range []string{outputFile, discrepancyFile} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return apperrors.InputError(apperrors.CodeFileNotFound, dir, err).
				WithSuggestion("create the output directory first")
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingConfig, description, nil, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return apperrors.InputError(apperrors.CodeFileNotFound, filePath, err).
			WithContext("description", description)
	}
	if err != nil {
		return apperrors.InputError(apperrors.CodeFilePermission, filePath, err)
	}
	if info.IsDir() {
		return apperrors.InputError(apperrors.CodeFileCorrupted, filePath,
			fmt.Errorf("%s is a directory, expected a file", description))
	}
	return nil
}

func parseDateRange(start, end string) (*reconciler.DateRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}

	dr := &reconciler.DateRange{}
	for _, bound := range []struct {
		name   string
		value  string
		target **time.Time
	}{
		{"start-date", start, &dr.Start},
		{"end-date", end, &dr.End},
	} {
		if bound.value == "" {
			continue
		}
		t, err := time.Parse(models.DateLayout, bound.value)
		if err != nil {
			return nil, apperrors.ValidationError(apperrors.CodeInvalidDate, bound.name, bound.value, err)
		}
		*bound.target = &t
	}

	if err := dr.Validate(); err != nil {
		return nil, apperrors.ValidationError(apperrors.CodeOutOfRange, "date range", start+" to "+end, err)
	}
	return dr, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	log := logger.GetGlobalLogger().WithComponent("analyze")

	dateRange, err := parseDateRange(startDate, endDate)
	if err != nil {
		return err
	}

	state, err := openState(appConfig, log)
	if err != nil {
		return err
	}
	defer state.Close()

	service, err := reconciler.NewReconciliationService(
		appConfig.ReconcilerConfig(),
		reconciler.WithTracker(state.tracker),
		reconciler.WithLogger(log),
	)
	if err != nil {
		return err
	}

	result, err := service.ProcessFiles(ctx, &reconciler.ReconciliationRequest{
		CustomsFiles:     customsFiles,
		FinancialFiles:   financialFiles,
		CombinedFiles:    combinedFiles,
		DateRange:        dateRange,
		FailOnInvalidRow: failOnInvalidRow,
	})
	if err != nil {
		return err
	}

	if state.audit != nil {
		entry := resolution.AuditEntry{
			Actor:  analyzeActor,
			Action: resolution.ActionAnalysisRun,
			Module: resolution.ModuleReconciliation,
			Detail: fmt.Sprintf("analyzed %d transactions: %d flagged, %d discrepancies",
				result.Analysis.TotalTransactions, result.Analysis.FlaggedCount, result.Summary.Discrepancies),
		}
		if err := state.audit.Record(ctx, entry); err != nil {
			log.WithError(err).Warn("failed to record audit entry")
		}
	}

	reportConfig, err := config.ReportConfig(outputFormat)
	if err != nil {
		return err
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	output := cmd.OutOrStdout()
	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return apperrors.InputError(apperrors.CodeFilePermission, outputFile, err)
		}
		defer file.Close()
		output = file
	}

	if err := generator.GenerateReportSafely(result, output); err != nil {
		return err
	}

	if discrepancyFile != "" {
		if err := writeDiscrepancyCSV(result, reportConfig, discrepancyFile); err != nil {
			return err
		}
	}

	log.WithFields(logger.Fields{
		"transactions":  result.Analysis.TotalTransactions,
		"flagged":       result.Analysis.FlaggedCount,
		"discrepancies": result.Summary.Discrepancies,
		"duration":      result.Summary.ProcessingDuration.String(),
	}).Info("analysis completed")

	return nil
}

func writeDiscrepancyCSV(result *reconciler.ReconciliationResult, reportConfig *reporter.ReportConfig, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return apperrors.InputError(apperrors.CodeFilePermission, path, err)
	}
	defer file.Close()

	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}
	if err := generator.GenerateDiscrepancyCSV(result, file); err != nil {
		return apperrors.WrapIfNeeded(err, apperrors.CategoryInternal, apperrors.CodeUnexpectedError, "write discrepancy export")
	}
	return nil
}
