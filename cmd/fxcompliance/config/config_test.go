package config

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"fx-compliance-engine/internal/reporter"
	apperrors "fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"tolerance", cfg.Thresholds.TolerancePercent, "2"},
		{"high", cfg.Thresholds.SeverityHighPercent, "50"},
		{"medium", cfg.Thresholds.SeverityMediumPercent, "20"},
		{"high value", cfg.Thresholds.HighValue, "50000"},
		{"penalty rate", cfg.Penalty.Rate, "1"},
		{"daily interest", cfg.Penalty.DailyInterestRate, "0.05"},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if !c.got.Equal(decimal.RequireFromString(c.want)) {
				t.Errorf("expected %s, got %s", c.want, c.got)
			}
		})
	}

	if len(cfg.Thresholds.MonitoredBanks) != 0 {
		t.Errorf("expected no monitored banks, got %v", cfg.Thresholds.MonitoredBanks)
	}
	if cfg.Matching.DateToleranceDays != 0 {
		t.Errorf("expected exact date matching, got %d days", cfg.Matching.DateToleranceDays)
	}
	if cfg.Detector.ReportUnmatched {
		t.Error("expected unmatched reporting to be off")
	}
	if !cfg.Penalty.ClampOverpayment {
		t.Error("expected overpayment clamping to be on")
	}
	if cfg.Log.Level != logger.InfoLevel || cfg.Log.Output != logger.StderrOutput {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.StateDB != "" {
		t.Errorf("expected in-memory state, got %q", cfg.StateDB)
	}
	if cfg.ServerAddr != ":8080" {
		t.Errorf("expected :8080, got %q", cfg.ServerAddr)
	}
}

func TestLoad_Overrides(t *testing.T) {
	v := newViper()
	v.Set(KeyTolerancePercent, 5)
	v.Set(KeyHighValue, "100000.50")
	v.Set(KeyMonitoredBanks, []string{"Offshore Trust", "Island Bank"})
	v.Set(KeyDateToleranceDays, 3)
	v.Set(KeyReportUnmatched, true)
	v.Set(KeyPenaltyRate, "0.5")
	v.Set(KeyClampOverpayment, false)
	v.Set(KeyLogLevel, "DEBUG")
	v.Set(KeyLogFormat, "json")
	v.Set(KeyAuditFile, "logs/audit.log")
	v.Set(KeyStateDB, " state.db ")

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Thresholds.TolerancePercent.Equal(decimal.NewFromInt(5)) {
		t.Errorf("expected tolerance 5, got %s", cfg.Thresholds.TolerancePercent)
	}
	if !cfg.Thresholds.HighValue.Equal(decimal.RequireFromString("100000.50")) {
		t.Errorf("expected high value 100000.50, got %s", cfg.Thresholds.HighValue)
	}
	if !cfg.Thresholds.IsMonitoredBank("Island Bank") {
		t.Errorf("expected Island Bank to be monitored, got %v", cfg.Thresholds.MonitoredBanks)
	}
	if cfg.Matching.DateToleranceDays != 3 || !cfg.Detector.ReportUnmatched {
		t.Errorf("unexpected matching settings: %+v %+v", cfg.Matching, cfg.Detector)
	}
	if !cfg.Penalty.Rate.Equal(decimal.RequireFromString("0.5")) || cfg.Penalty.ClampOverpayment {
		t.Errorf("unexpected penalty config: %+v", cfg.Penalty)
	}
	if cfg.Log.Level != logger.DebugLevel || cfg.Log.Format != logger.JSONFormat {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Audit.File != "logs/audit.log" || cfg.Audit.MaxBackups != 5 {
		t.Errorf("unexpected audit config: %+v", cfg.Audit)
	}
	if cfg.StateDB != "state.db" {
		t.Errorf("expected trimmed state path, got %q", cfg.StateDB)
	}

	rc := cfg.ReconcilerConfig()
	if err := rc.Validate(); err != nil {
		t.Errorf("reconciler config should be valid: %v", err)
	}
	rc.Thresholds.MonitoredBanks[0] = "changed"
	if cfg.Thresholds.MonitoredBanks[0] != "Offshore Trust" {
		t.Error("reconciler config should not share the threshold table")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   interface{}
		setting string
	}{
		{"non numeric tolerance", KeyTolerancePercent, "two", KeyTolerancePercent},
		{"tolerance above 100", KeyTolerancePercent, 150, "thresholds"},
		{"medium above high", KeySeverityMediumPercent, 60, "thresholds"},
		{"empty monitored bank", KeyMonitoredBanks, []string{" "}, "thresholds"},
		{"negative window", KeyDateToleranceDays, -1, KeyDateToleranceDays},
		{"window too wide", KeyDateToleranceDays, 31, KeyDateToleranceDays},
		{"negative penalty", KeyPenaltyRate, "-1", "penalty"},
		{"bad interest", KeyDailyInterestRate, "5%", KeyDailyInterestRate},
		{"bad log level", KeyLogLevel, "fatal", "log"},
		{"bad log output", KeyLogOutput, "syslog", "log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			v.Set(tt.key, tt.value)

			_, err := Load(v)
			if err == nil {
				t.Fatal("expected an error")
			}
			appErr, ok := apperrors.AsAppError(err)
			if !ok || appErr.Category != apperrors.CategoryConfiguration {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if appErr.Context["setting"] != tt.setting {
				t.Errorf("expected setting %q, got %v", tt.setting, appErr.Context["setting"])
			}
		})
	}
}

func TestReportConfig(t *testing.T) {
	tests := []struct {
		format           string
		wantFormat       reporter.OutputFormat
		wantTransactions bool
		wantErr          bool
	}{
		{"console", reporter.FormatConsole, false, false},
		{"JSON", reporter.FormatJSON, true, false},
		{"csv", reporter.FormatCSV, true, false},
		{"xml", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rc, err := ReportConfig(tt.format)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "xml") {
					t.Errorf("expected error naming the format, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReportConfig() error = %v", err)
			}
			if rc.Format != tt.wantFormat || rc.IncludeTransactions != tt.wantTransactions {
				t.Errorf("unexpected config: %+v", rc)
			}
			if err := rc.Validate(); err != nil {
				t.Errorf("report config should be valid: %v", err)
			}
		})
	}
}

func TestLoad_MonitoredBanksFromEnv(t *testing.T) {
	t.Setenv("FXCOMPLIANCE_THRESHOLDS_MONITORED_BANKS", "Offshore Trust, Harbor Bank,")

	v := newViper()
	v.SetEnvPrefix("FXCOMPLIANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{"Offshore Trust", "Harbor Bank"}
	got := cfg.Thresholds.MonitoredBanks
	if len(got) != len(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bank %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if !cfg.Thresholds.IsMonitoredBank("Offshore Trust") {
		t.Error("expected Offshore Trust to be monitored")
	}
}

func TestLoad_MonitoredBanksList(t *testing.T) {
	v := newViper()
	v.Set(KeyMonitoredBanks, []string{"Offshore Trust", "Harbor Bank"})

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Thresholds.MonitoredBanks) != 2 || !cfg.Thresholds.IsMonitoredBank("Harbor Bank") {
		t.Errorf("unexpected monitored banks %q", cfg.Thresholds.MonitoredBanks)
	}
}
