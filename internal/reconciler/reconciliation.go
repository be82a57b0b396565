// Package reconciler runs the full compliance pipeline over a set of
// transaction records: split by source, match, detect discrepancies,
// classify, reattach saved resolution state and aggregate.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"fx-compliance-engine/internal/compliance"
	"fx-compliance-engine/internal/discrepancy"
	"fx-compliance-engine/internal/matcher"
	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/parsers"
	"fx-compliance-engine/internal/policy"
	"fx-compliance-engine/internal/resolution"
	"fx-compliance-engine/pkg/errors"
	"fx-compliance-engine/pkg/logger"
)

// Config holds configuration options for the reconciliation service
type Config struct {
	Thresholds *policy.Thresholds
	Matching   *matcher.MatchingConfig
	Detector   discrepancy.Config

	// ValidateInputs rejects a pass when any record fails validation
	ValidateInputs bool

	// MaxConcurrentFiles bounds parallel file parsing
	MaxConcurrentFiles int
}

// DefaultConfig returns a default configuration for the reconciliation service
func DefaultConfig() *Config {
	return &Config{
		Thresholds:         policy.DefaultThresholds(),
		Matching:           matcher.DefaultMatchingConfig(),
		ValidateInputs:     true,
		MaxConcurrentFiles: 4,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Thresholds == nil {
		return fmt.Errorf("thresholds are required")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching configuration: %w", err)
	}
	if c.MaxConcurrentFiles <= 0 {
		return fmt.Errorf("max concurrent files must be positive, got %d", c.MaxConcurrentFiles)
	}
	return nil
}

// MetricsRecorder observes completed passes
type MetricsRecorder interface {
	ObserveReconciliation(summary *ResultSummary, analysis *compliance.ComplianceAnalysis)
}

// ReconciliationResult contains the complete results of one pass
type ReconciliationResult struct {
	Analysis    *compliance.ComplianceAnalysis `json:"analysis"`
	Summary     *ResultSummary                 `json:"summary"`
	ParseStats  map[string]*parsers.ParseStats `json:"parse_stats,omitempty"`
	ProcessedAt time.Time                      `json:"processed_at"`
}

// ResultSummary provides a high-level overview of a pass
type ResultSummary struct {
	CustomsRecords   int `json:"customs_records"`
	FinancialRecords int `json:"financial_records"`
	OtherRecords     int `json:"other_records"`
	FilteredRecords  int `json:"filtered_records"`

	Pairs              int `json:"pairs"`
	UnmatchedCustoms   int `json:"unmatched_customs"`
	UnmatchedFinancial int `json:"unmatched_financial"`
	AmbiguousCustoms   int `json:"ambiguous_customs"`

	Discrepancies        int `json:"discrepancies"`
	HighSeverity         int `json:"high_severity"`
	CapitalFlightSignals int `json:"capital_flight_signals"`
	RestoredResolutions  int `json:"restored_resolutions"`

	ProcessingDuration time.Duration `json:"processing_duration"`
	DateRange          *DateRange    `json:"date_range,omitempty"`
}

// DateRange restricts a pass to records dated within [Start, End]
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Validate checks the range bounds
func (r *DateRange) Validate() error {
	if r != nil && r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return fmt.Errorf("start date must be before end date")
	}
	return nil
}

// Contains reports whether the record date falls within the range.
// Records with unparseable dates are kept so validation can report them.
func (r *DateRange) Contains(record *models.TransactionRecord) bool {
	if r == nil {
		return true
	}
	date, err := record.ParsedDate()
	if err != nil {
		return true
	}
	if r.Start != nil && date.Before(*r.Start) {
		return false
	}
	if r.End != nil && date.After(*r.End) {
		return false
	}
	return true
}

// ReconciliationService orchestrates the complete reconciliation process
type ReconciliationService struct {
	matcher    matcher.Matcher
	detector   *discrepancy.Detector
	classifier *compliance.Classifier
	tracker    *resolution.Tracker
	metrics    MetricsRecorder
	config     *Config
	logger     logger.Logger
}

// Option customizes a ReconciliationService
type Option func(*ReconciliationService)

// WithTracker reattaches saved resolution state on every pass
func WithTracker(tracker *resolution.Tracker) Option {
	return func(rs *ReconciliationService) { rs.tracker = tracker }
}

// WithMetrics reports every completed pass to recorder
func WithMetrics(recorder MetricsRecorder) Option {
	return func(rs *ReconciliationService) { rs.metrics = recorder }
}

// WithMatcher replaces the default string-predicate matcher
func WithMatcher(m matcher.Matcher) Option {
	return func(rs *ReconciliationService) { rs.matcher = m }
}

// WithLogger sets the service logger
func WithLogger(log logger.Logger) Option {
	return func(rs *ReconciliationService) { rs.logger = log }
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(config *Config, opts ...Option) (*ReconciliationService, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciliation", nil, err)
	}

	rs := &ReconciliationService{
		matcher:    matcher.NewMatchingEngine(config.Matching),
		detector:   discrepancy.NewDetector(config.Thresholds, config.Detector),
		classifier: compliance.NewClassifier(config.Thresholds),
		config:     config,
		logger:     logger.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(rs)
	}
	rs.logger = rs.logger.WithComponent("reconciler")
	return rs, nil
}

// GetConfiguration returns the current configuration
func (rs *ReconciliationService) GetConfiguration() *Config {
	return rs.config
}

// Analyze runs a pass over one combined list tagged by source. Records whose
// source is neither customs nor financial are classified but never matched.
func (rs *ReconciliationService) Analyze(ctx context.Context, records []*models.TransactionRecord, dateRange *DateRange) (*ReconciliationResult, error) {
	return rs.process(ctx, records, dateRange)
}

// AnalyzeSets runs a pass over separate customs and financial lists
func (rs *ReconciliationService) AnalyzeSets(ctx context.Context, customs, financial []*models.TransactionRecord, dateRange *DateRange) (*ReconciliationResult, error) {
	records := make([]*models.TransactionRecord, 0, len(customs)+len(financial))
	records = append(records, customs...)
	records = append(records, financial...)
	return rs.process(ctx, records, dateRange)
}

func (rs *ReconciliationService) process(ctx context.Context, records []*models.TransactionRecord, dateRange *DateRange) (*ReconciliationResult, error) {
	if err := dateRange.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeOutOfRange, "date_range", "", err)
	}

	op := logger.NewOperationLogger("reconciliation", rs.logger).
		WithField("records", len(records))
	startTime := time.Now()

	summary := &ResultSummary{DateRange: dateRange}

	// Step 1: filter and validate
	op.Step("filter")
	filtered := make([]*models.TransactionRecord, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if !dateRange.Contains(r) {
			summary.FilteredRecords++
			continue
		}
		if rs.config.ValidateInputs {
			if err := r.Validate(); err != nil {
				appErr := errors.ValidationError(errors.CodeInvalidData, "record", r.ID, err)
				op.Error(appErr, "reconciliation aborted")
				return nil, appErr
			}
		}
		filtered = append(filtered, r)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.ReconciliationError(errors.CodeProcessingError, "filter", err)
	}

	// Step 2: match
	op.Step("match")
	customs, financial, other := matcher.Partition(filtered)
	summary.CustomsRecords = len(customs)
	summary.FinancialRecords = len(financial)
	summary.OtherRecords = len(other)

	matches := rs.matcher.Match(customs, financial)
	summary.Pairs = len(matches.Pairs)
	summary.UnmatchedCustoms = len(matches.UnmatchedCustoms)
	summary.UnmatchedFinancial = len(matches.UnmatchedFinancial)
	summary.AmbiguousCustoms = matches.Summary.AmbiguousCustoms

	if err := ctx.Err(); err != nil {
		return nil, errors.ReconciliationError(errors.CodeProcessingError, "match", err)
	}

	// Step 3: detect
	op.Step("detect")
	discrepancies := rs.detector.Detect(matches)

	// Step 4: classify
	op.Step("classify")
	classification := rs.classifier.Classify(filtered, discrepancies)

	// Step 5: merge saved resolution state
	if rs.tracker != nil {
		op.Step("merge_resolutions")
		snapshot, err := rs.tracker.Snapshot(ctx)
		if err != nil {
			wrapped := errors.WrapIfNeeded(err, errors.CategoryStorage, errors.CodeStorageUnavailable, "failed to load resolution state")
			op.Error(wrapped, "reconciliation aborted")
			return nil, wrapped
		}
		summary.RestoredResolutions = resolution.Merge(classification.Discrepancies, snapshot)
	} else {
		resolution.Merge(classification.Discrepancies, nil)
	}

	// Step 6: aggregate
	op.Step("aggregate")
	analysis := compliance.Analyze(classification)
	analysis.UnmatchedCustoms = classifiedList(classification, matches.UnmatchedCustoms)
	analysis.UnmatchedFinancial = classifiedList(classification, matches.UnmatchedFinancial)

	for _, d := range classification.Discrepancies {
		summary.Discrepancies++
		if d.Severity == models.SeverityHigh {
			summary.HighSeverity++
		}
		if d.PotentialCapitalFlight {
			summary.CapitalFlightSignals++
		}
	}
	summary.ProcessingDuration = time.Since(startTime)

	if rs.metrics != nil {
		rs.metrics.ObserveReconciliation(summary, analysis)
	}

	op.WithField("pairs", summary.Pairs).
		WithField("discrepancies", summary.Discrepancies).
		WithField("flagged", analysis.FlaggedCount).
		Success("reconciliation completed")

	return &ReconciliationResult{
		Analysis:    analysis,
		Summary:     summary,
		ProcessedAt: startTime,
	}, nil
}

// classifiedList maps input records to their classified copies
func classifiedList(c *compliance.Classification, records []*models.TransactionRecord) []*models.TransactionRecord {
	if len(records) == 0 {
		return nil
	}
	out := make([]*models.TransactionRecord, 0, len(records))
	for _, r := range records {
		if classified, ok := c.ClassifiedOf(r); ok {
			out = append(out, classified)
		}
	}
	return out
}
