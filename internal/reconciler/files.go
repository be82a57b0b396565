package reconciler

import (
	"context"
	"fmt"
	"sync"

	"fx-compliance-engine/internal/models"
	"fx-compliance-engine/internal/parsers"
	"fx-compliance-engine/pkg/errors"
)

// ReconciliationRequest describes a file-based pass. Customs and financial
// files default their rows to that source; combined files must carry a
// source column.
type ReconciliationRequest struct {
	CustomsFiles   []string
	FinancialFiles []string
	CombinedFiles  []string
	DateRange      *DateRange
	// FailOnInvalidRow aborts instead of skipping rows that fail to parse
	FailOnInvalidRow bool
}

// Validate validates the reconciliation request
func (r *ReconciliationRequest) Validate() error {
	if len(r.CustomsFiles)+len(r.FinancialFiles)+len(r.CombinedFiles) == 0 {
		return fmt.Errorf("at least one input file is required")
	}
	return r.DateRange.Validate()
}

type fileJob struct {
	index  int
	path   string
	source models.Source
}

type fileOutcome struct {
	records []*models.TransactionRecord
	stats   *parsers.ParseStats
	err     error
}

// ProcessFiles parses every file in the request and runs one pass over the
// combined records. Records keep request order: customs files, financial
// files, combined files.
func (rs *ReconciliationService) ProcessFiles(ctx context.Context, request *ReconciliationRequest) (*ReconciliationResult, error) {
	if err := request.Validate(); err != nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", "", err)
	}

	var jobs []fileJob
	add := func(paths []string, source models.Source) {
		for _, p := range paths {
			jobs = append(jobs, fileJob{index: len(jobs), path: p, source: source})
		}
	}
	add(request.CustomsFiles, models.SourceCustoms)
	add(request.FinancialFiles, models.SourceFinancial)
	add(request.CombinedFiles, models.SourceImported)

	outcomes := rs.parseFiles(ctx, jobs, request.FailOnInvalidRow)

	var records []*models.TransactionRecord
	allStats := make(map[string]*parsers.ParseStats, len(jobs))
	for i, outcome := range outcomes {
		if outcome.err != nil {
			return nil, errors.WrapIfNeeded(outcome.err, errors.CategoryInput, errors.CodeFileCorrupted,
				fmt.Sprintf("failed to parse %s", jobs[i].path))
		}
		records = append(records, outcome.records...)
		allStats[jobs[i].path] = outcome.stats
	}

	result, err := rs.process(ctx, records, request.DateRange)
	if err != nil {
		return nil, err
	}
	result.ParseStats = allStats
	return result, nil
}

// parseFiles parses jobs concurrently, bounded by MaxConcurrentFiles
func (rs *ReconciliationService) parseFiles(ctx context.Context, jobs []fileJob, failOnInvalidRow bool) []fileOutcome {
	outcomes := make([]fileOutcome, len(jobs))
	semaphore := make(chan struct{}, rs.config.MaxConcurrentFiles)
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		go func(job fileJob) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			config := parsers.DefaultRecordParserConfig(job.source)
			config.FailOnInvalidRow = failOnInvalidRow
			parser, err := parsers.NewRecordParser(config)
			if err != nil {
				outcomes[job.index] = fileOutcome{err: err}
				return
			}

			records, stats, err := parser.ParseFile(ctx, job.path)
			outcomes[job.index] = fileOutcome{records: records, stats: stats, err: err}
			if err == nil && stats.HasErrors() {
				rs.logger.WithField("file", job.path).
					WithField("errors", len(stats.Errors)).
					Warn("input file contained invalid rows")
			}
		}(job)
	}

	wg.Wait()
	return outcomes
}
