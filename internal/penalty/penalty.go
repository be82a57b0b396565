// Package penalty computes the outstanding balance, flat penalty and simple
// daily interest owed on a late or partial settlement.
package penalty

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fx-compliance-engine/internal/models"
)

// Config holds the penalty rates
type Config struct {
	// Rate is the flat penalty as a fraction of the outstanding amount
	Rate decimal.Decimal `json:"rate"`
	// DailyInterestRate is simple, non-compounding interest per day late
	DailyInterestRate decimal.Decimal `json:"daily_interest_rate"`
	// ClampOverpayment floors the outstanding amount at zero and reports
	// the excess separately as Overpayment
	ClampOverpayment bool `json:"clamp_overpayment"`
}

// DefaultConfig returns a 100% flat penalty and 5% daily interest
func DefaultConfig() Config {
	return Config{
		Rate:              decimal.NewFromInt(1),
		DailyInterestRate: decimal.RequireFromString("0.05"),
		ClampOverpayment:  true,
	}
}

// Validate validates the rates
func (c Config) Validate() error {
	if c.Rate.IsNegative() {
		return fmt.Errorf("penalty rate cannot be negative, got %s", c.Rate)
	}
	if c.DailyInterestRate.IsNegative() {
		return fmt.Errorf("daily interest rate cannot be negative, got %s", c.DailyInterestRate)
	}
	return nil
}

// Result is computed on demand and never stored
type Result struct {
	DaysLate          int             `json:"daysLate"`
	OutstandingAmount decimal.Decimal `json:"outstandingAmount"`
	PenaltyAmount     decimal.Decimal `json:"penaltyAmount"`
	InterestAmount    decimal.Decimal `json:"interestAmount"`
	TotalDue          decimal.Decimal `json:"totalDue"`
	Overpayment       decimal.Decimal `json:"overpayment"`
}

// Calculator applies a penalty configuration
type Calculator struct {
	config Config
}

// NewCalculator creates a calculator
func NewCalculator(config Config) *Calculator {
	return &Calculator{config: config}
}

// Calculate computes the penalty for a settlement received daysLate days
// after it was due. It performs no date arithmetic and applies no floor on
// daysLate; callers short-circuit on-time payments, see Assess.
func (c *Calculator) Calculate(tx *models.TransactionRecord, daysLate int, received decimal.Decimal) Result {
	outstanding := tx.Amount.Sub(received)
	overpayment := decimal.Zero
	if c.config.ClampOverpayment && outstanding.IsNegative() {
		overpayment = outstanding.Neg()
		outstanding = decimal.Zero
	}

	penalty := outstanding.Mul(c.config.Rate)
	interest := outstanding.Mul(c.config.DailyInterestRate).Mul(decimal.NewFromInt(int64(daysLate)))

	return Result{
		DaysLate:          daysLate,
		OutstandingAmount: outstanding,
		PenaltyAmount:     penalty,
		InterestAmount:    interest,
		TotalDue:          outstanding.Add(penalty).Add(interest),
		Overpayment:       overpayment,
	}
}

// Assess is the caller-side wrapper: it derives days late from the due and
// receipt dates, then applies ForDaysLate.
func (c *Calculator) Assess(tx *models.TransactionRecord, due, receivedOn time.Time, received decimal.Decimal) Result {
	return c.ForDaysLate(tx, DaysBetween(due, receivedOn), received)
}

// ForDaysLate returns the bare outstanding balance when payment was on time
// or early, and the full Calculate result otherwise.
func (c *Calculator) ForDaysLate(tx *models.TransactionRecord, daysLate int, received decimal.Decimal) Result {
	if daysLate > 0 {
		return c.Calculate(tx, daysLate, received)
	}

	result := c.Calculate(tx, 0, received)
	result.PenaltyAmount = decimal.Zero
	result.InterestAmount = decimal.Zero
	result.TotalDue = result.OutstandingAmount
	return result
}

// DaysBetween counts whole calendar days from due to receivedOn. The result
// is negative when receivedOn is earlier.
func DaysBetween(due, receivedOn time.Time) int {
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	r := time.Date(receivedOn.Year(), receivedOn.Month(), receivedOn.Day(), 0, 0, 0, 0, time.UTC)
	return int(r.Sub(d).Hours() / 24)
}
