// Package config turns viper settings into the typed configurations of the
// engine packages. Every key has a default registered by SetDefaults, so a
// missing config file runs with production defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"fx-compliance-engine/internal/discrepancy"
	"fx-compliance-engine/internal/matcher"
	"fx-compliance-engine/internal/penalty"
	"fx-compliance-engine/internal/policy"
	"fx-compliance-engine/internal/reconciler"
	"fx-compliance-engine/internal/reporter"
	apperrors "fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

// Viper keys
const (
	KeyTolerancePercent      = "thresholds.tolerance_percent"
	KeySeverityHighPercent   = "thresholds.severity_high_percent"
	KeySeverityMediumPercent = "thresholds.severity_medium_percent"
	KeyHighValue             = "thresholds.high_value"
	KeyMonitoredBanks        = "thresholds.monitored_banks"

	KeyDateToleranceDays = "matching.date_tolerance_days"
	KeyReportUnmatched   = "matching.report_unmatched"

	KeyPenaltyRate       = "penalty.rate"
	KeyDailyInterestRate = "penalty.daily_interest_rate"
	KeyClampOverpayment  = "penalty.clamp_overpayment"

	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
	KeyLogOutput     = "log.output"
	KeyLogFile       = "log.file"
	KeyLogMaxSize    = "log.max_size"
	KeyLogMaxBackups = "log.max_backups"
	KeyLogMaxAge     = "log.max_age"
	KeyLogCompress   = "log.compress"
	KeyAuditFile     = "log.audit_file"

	KeyStateDB    = "state.db"
	KeyServerAddr = "server.addr"
)

// Config is the complete application configuration
type Config struct {
	Thresholds *policy.Thresholds
	Matching   *matcher.MatchingConfig
	Detector   discrepancy.Config
	Penalty    penalty.Config
	Log        *logger.Config
	Audit      logger.AuditConfig

	// StateDB is the SQLite path for resolution state and the audit log.
	// Empty keeps state in memory for the lifetime of the process.
	StateDB    string
	ServerAddr string
}

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	thresholds := policy.DefaultThresholds()
	v.SetDefault(KeyTolerancePercent, thresholds.TolerancePercent.String())
	v.SetDefault(KeySeverityHighPercent, thresholds.SeverityHighPercent.String())
	v.SetDefault(KeySeverityMediumPercent, thresholds.SeverityMediumPercent.String())
	v.SetDefault(KeyHighValue, thresholds.HighValue.String())
	v.SetDefault(KeyMonitoredBanks, []string{})

	matching := matcher.DefaultMatchingConfig()
	v.SetDefault(KeyDateToleranceDays, matching.DateToleranceDays)
	v.SetDefault(KeyReportUnmatched, false)

	rates := penalty.DefaultConfig()
	v.SetDefault(KeyPenaltyRate, rates.Rate.String())
	v.SetDefault(KeyDailyInterestRate, rates.DailyInterestRate.String())
	v.SetDefault(KeyClampOverpayment, rates.ClampOverpayment)

	logs := logger.DefaultConfig()
	v.SetDefault(KeyLogLevel, string(logs.Level))
	v.SetDefault(KeyLogFormat, string(logs.Format))
	v.SetDefault(KeyLogOutput, string(logs.Output))
	v.SetDefault(KeyLogFile, "logs/fxcompliance.log")
	v.SetDefault(KeyLogMaxSize, 100)
	v.SetDefault(KeyLogMaxBackups, 5)
	v.SetDefault(KeyLogMaxAge, 30)
	v.SetDefault(KeyLogCompress, true)
	v.SetDefault(KeyAuditFile, "")

	v.SetDefault(KeyStateDB, "")
	v.SetDefault(KeyServerAddr, ":8080")
}

// Load reads and validates the configuration held by v
func Load(v *viper.Viper) (*Config, error) {
	thresholds, err := loadThresholds(v)
	if err != nil {
		return nil, err
	}

	matching := matcher.DefaultMatchingConfig()
	matching.DateToleranceDays = v.GetInt(KeyDateToleranceDays)
	if err := matching.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, KeyDateToleranceDays, matching.DateToleranceDays, err)
	}

	rates, err := loadPenalty(v)
	if err != nil {
		return nil, err
	}

	logConfig := &logger.Config{
		Level:      logger.Level(strings.ToLower(v.GetString(KeyLogLevel))),
		Format:     logger.Format(strings.ToLower(v.GetString(KeyLogFormat))),
		Output:     logger.Output(strings.ToLower(v.GetString(KeyLogOutput))),
		File:       v.GetString(KeyLogFile),
		MaxSize:    v.GetInt(KeyLogMaxSize),
		MaxBackups: v.GetInt(KeyLogMaxBackups),
		MaxAge:     v.GetInt(KeyLogMaxAge),
		Compress:   v.GetBool(KeyLogCompress),
	}
	if err := logConfig.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "log", logConfig.Level, err)
	}

	return &Config{
		Thresholds: thresholds,
		Matching:   matching,
		Detector:   discrepancy.Config{ReportUnmatched: v.GetBool(KeyReportUnmatched)},
		Penalty:    rates,
		Log:        logConfig,
		Audit: logger.AuditConfig{
			File:       v.GetString(KeyAuditFile),
			MaxSize:    logConfig.MaxSize,
			MaxBackups: logConfig.MaxBackups,
			MaxAge:     logConfig.MaxAge,
			Compress:   logConfig.Compress,
		},
		StateDB:    strings.TrimSpace(v.GetString(KeyStateDB)),
		ServerAddr: v.GetString(KeyServerAddr),
	}, nil
}

func loadThresholds(v *viper.Viper) (*policy.Thresholds, error) {
	thresholds := policy.DefaultThresholds()

	fields := []struct {
		key    string
		target *decimal.Decimal
	}{
		{KeyTolerancePercent, &thresholds.TolerancePercent},
		{KeySeverityHighPercent, &thresholds.SeverityHighPercent},
		{KeySeverityMediumPercent, &thresholds.SeverityMediumPercent},
		{KeyHighValue, &thresholds.HighValue},
	}
	for _, f := range fields {
		d, err := decimalValue(v, f.key)
		if err != nil {
			return nil, err
		}
		*f.target = d
	}
	thresholds.MonitoredBanks = stringList(v, KeyMonitoredBanks)

	if err := thresholds.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "thresholds", nil, err)
	}
	return thresholds, nil
}

// stringList reads a list setting. A plain string, as environment variables
// deliver it, is split on commas like the matching flag.
func stringList(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringSlice(key)
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loadPenalty(v *viper.Viper) (penalty.Config, error) {
	rates := penalty.DefaultConfig()

	rate, err := decimalValue(v, KeyPenaltyRate)
	if err != nil {
		return rates, err
	}
	interest, err := decimalValue(v, KeyDailyInterestRate)
	if err != nil {
		return rates, err
	}
	rates.Rate = rate
	rates.DailyInterestRate = interest
	rates.ClampOverpayment = v.GetBool(KeyClampOverpayment)

	if err := rates.Validate(); err != nil {
		return rates, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "penalty", nil, err)
	}
	return rates, nil
}

func decimalValue(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, key, raw,
			fmt.Errorf("expected a decimal number: %w", err))
	}
	return d, nil
}

// ReconcilerConfig builds the service configuration
func (c *Config) ReconcilerConfig() *reconciler.Config {
	rc := reconciler.DefaultConfig()
	rc.Thresholds = c.Thresholds.Clone()
	rc.Matching = c.Matching.Clone()
	rc.Detector = c.Detector
	return rc
}

// ReportConfig creates a report configuration for the specified output format
func ReportConfig(format string) (*reporter.ReportConfig, error) {
	rc := reporter.DefaultReportConfig()
	rc.Format = reporter.OutputFormat(strings.ToLower(format))

	switch rc.Format {
	case reporter.FormatConsole:
	case reporter.FormatJSON:
		rc.IncludeTransactions = true
	case reporter.FormatCSV:
		// CSV is one row per transaction
		rc.IncludeTransactions = true
		rc.IncludeParseStats = false
	default:
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "format", format,
			fmt.Errorf("valid formats: console, json, csv"))
	}
	return rc, nil
}
