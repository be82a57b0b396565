package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	out     io.Writer
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		out:     os.Stderr,
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints err and returns the exit code for it
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("command failed")

	if appErr, ok := errors.AsAppError(err); ok {
		return h.handleAppError(appErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleAppError(err *errors.AppError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	if help := categoryHelp(err.Category); help != "" {
		fmt.Fprintf(h.out, "\n%s\n", help)
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.ExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if os.IsNotExist(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}
	if os.IsPermission(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	// Flag and argument errors from cobra land here.
	fmt.Fprintf(h.out, "Error: %v\n", err)
	if strings.Contains(err.Error(), "flag") || strings.Contains(err.Error(), "unknown command") {
		fmt.Fprintf(h.out, "Run 'fxcompliance --help' for usage.\n")
	}
	return 1
}

func categoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryInput:
		return `File error help:
• Check that the file exists and is readable
• Verify the path (use absolute paths if needed)`

	case errors.CategoryParse:
		return `Parse error help:
• Files need a header row with id, date, entity, type, currency and amount columns
• Dates use YYYY-MM-DD and files must be UTF-8
• JSON input is an array of transaction records`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required fields have values
• type is import or export; source is customs, financial, manual or imported
• Amounts, quantities and prices cannot be negative`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check command-line flags and FXCOMPLIANCE_* environment variables
• Verify configuration file syntax if using --config`

	case errors.CategoryStorage:
		return `Storage error help:
• Check that the --state-db file is writable and not locked by another process`

	default:
		return ""
	}
}
