package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fx-compliance-engine/internal/reconciler"
	"fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging and fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report_config", config, err).
			WithSuggestion("check the report format (console, json or csv)")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely validates inputs, generates the report and falls back
// to console output, then to a backup file, when the first attempt fails
func (srg *SafeReportGenerator) GenerateReportSafely(result *reconciler.ReconciliationResult, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": writerDescription(writer),
	}).Debug("starting report generation")

	if result == nil || result.Analysis == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil).
			WithSuggestion("run an analysis before generating a report")
	}
	if writer == nil {
		return errors.ValidationError(errors.CodeMissingField, "writer", nil, nil)
	}

	err := srg.GenerateReport(result, writer)
	if err == nil {
		return nil
	}
	srg.logger.WithError(err).Warn("report generation failed, attempting fallback")

	if srg.config.Format != FormatConsole {
		if fallbackErr := srg.formatFallback(result, writer, err); fallbackErr == nil {
			return nil
		}
	}

	if file, ok := writer.(*os.File); ok && isFileError(err) {
		return srg.outputFallback(result, file, err)
	}

	return errors.InternalError(errors.CodeProcessingError, "report_generation", err).
		WithSuggestion("check the output destination and report format settings")
}

func (srg *SafeReportGenerator) formatFallback(result *reconciler.ReconciliationResult, writer io.Writer, originalErr error) error {
	config := *srg.config
	config.Format = FormatConsole
	fallback, err := NewReportGenerator(&config)
	if err != nil {
		return err
	}

	fmt.Fprintf(writer, "NOTE: report generated in console format after an error with %s output: %v\n\n", srg.config.Format, originalErr)
	if err := fallback.GenerateReport(result, writer); err != nil {
		return err
	}
	srg.logger.WithField("fallback_format", FormatConsole).Info("report generated using format fallback")
	return nil
}

func (srg *SafeReportGenerator) outputFallback(result *reconciler.ReconciliationResult, file *os.File, originalErr error) error {
	backupPath := backupPath(file.Name())
	backup, err := os.Create(backupPath)
	if err != nil {
		return errors.InternalError(errors.CodeProcessingError, "report_output_fallback",
			fmt.Errorf("primary=%v, backup=%v", originalErr, err))
	}
	defer backup.Close()

	if err := srg.GenerateReport(result, backup); err != nil {
		return errors.InternalError(errors.CodeProcessingError, "report_output_fallback",
			fmt.Errorf("primary=%v, backup=%v", originalErr, err))
	}

	srg.logger.WithFields(logger.Fields{
		"original_file": file.Name(),
		"backup_file":   backupPath,
	}).Warn("report saved to backup location")
	return nil
}

func backupPath(originalPath string) string {
	ext := filepath.Ext(originalPath)
	return strings.TrimSuffix(originalPath, ext) + "_backup" + ext
}

func isFileError(err error) bool {
	if os.IsPermission(err) || os.IsNotExist(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") || strings.Contains(msg, "bad file descriptor")
}

func writerDescription(writer io.Writer) string {
	if f, ok := writer.(*os.File); ok && f.Name() != "" {
		return "file:" + f.Name()
	}
	return fmt.Sprintf("writer:%T", writer)
}
