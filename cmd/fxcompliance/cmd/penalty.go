package cmd

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fx-compliance-engine/cmd/fxcompliance/config"
	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/penalty"
	"fx-compliance-engine/internal/reporter"
	apperrors "fx-compliance-engine/pkg/errors"
)

// Flags for the penalty command
var (
	penaltyID           string
	penaltyCurrency     string
	penaltyAmount       string
	penaltyReceived     string
	penaltyDaysLate     int
	penaltyDueDate      string
	penaltyReceivedDate string
	penaltyFormat       string
)

// penaltyCmd represents the penalty command
var penaltyCmd = &cobra.Command{
	Use:   "penalty",
	Short: "Compute the penalty and interest owed on a late settlement",
	Long: `Penalty computes the outstanding balance of a transaction, the flat
penalty on it and simple daily interest for the days the settlement was late.

Lateness comes either from --days-late or from --due-date and --received-date.

Examples:
  fxcompliance penalty --amount 10000 --received 4000 --days-late 10
  fxcompliance penalty --id T-1 --amount 10000 --received 4000 \
    --due-date 2023-06-01 --received-date 2023-06-11 --output-format json`,

	RunE: runPenalty,
}

func init() {
	rootCmd.AddCommand(penaltyCmd)

	flags := penaltyCmd.Flags()
	flags.StringVar(&penaltyID, "id", "", "transaction id shown in the report")
	flags.StringVar(&penaltyCurrency, "currency", "USD", "transaction currency")
	flags.StringVar(&penaltyAmount, "amount", "", "transaction amount (required)")
	flags.StringVar(&penaltyReceived, "received", "0", "amount received so far")
	flags.IntVar(&penaltyDaysLate, "days-late", -1, "days the settlement is late")
	flags.StringVar(&penaltyDueDate, "due-date", "", "settlement due date (YYYY-MM-DD)")
	flags.StringVar(&penaltyReceivedDate, "received-date", "", "date the funds arrived (YYYY-MM-DD)")
	flags.StringVarP(&penaltyFormat, "output-format", "f", "console", "output format: console, json, csv")

	penaltyCmd.MarkFlagRequired("amount")
}

func runPenalty(cmd *cobra.Command, args []string) error {
	amount, err := parseMoney("amount", penaltyAmount)
	if err != nil {
		return err
	}
	received, err := parseMoney("received", penaltyReceived)
	if err != nil {
		return err
	}

	tx := &models.TransactionRecord{
		ID:       penaltyID,
		Currency: strings.ToUpper(penaltyCurrency),
		Amount:   amount,
	}
	calculator := penalty.NewCalculator(appConfig.Penalty)

	var result penalty.Result
	switch {
	case penaltyDueDate != "" || penaltyReceivedDate != "":
		due, err := parseRequiredDate("due-date", penaltyDueDate)
		if err != nil {
			return err
		}
		receivedOn, err := parseRequiredDate("received-date", penaltyReceivedDate)
		if err != nil {
			return err
		}
		result = calculator.Assess(tx, due, receivedOn, received)
	case penaltyDaysLate >= 0:
		result = calculator.ForDaysLate(tx, penaltyDaysLate, received)
	default:
		return apperrors.ConfigurationError(apperrors.CodeMissingConfig, "days-late", nil, nil).
			WithSuggestion("pass --days-late, or --due-date together with --received-date")
	}

	reportConfig, err := config.ReportConfig(penaltyFormat)
	if err != nil {
		return err
	}
	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return err
	}
	return generator.GeneratePenaltyReport(tx, result, cmd.OutOrStdout())
}

func parseMoney(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, apperrors.ValidationError(apperrors.CodeInvalidAmount, field, value, err)
	}
	if d.IsNegative() {
		return decimal.Zero, apperrors.ValidationError(apperrors.CodeInvalidAmount, field, value, nil)
	}
	return d, nil
}

func parseRequiredDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apperrors.ValidationError(apperrors.CodeMissingField, field, value, nil)
	}
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, apperrors.ValidationError(apperrors.CodeInvalidDate, field, value, err)
	}
	return t, nil
}
