package matcher

import (
	"strings"

	"fx-compliance-engine/internal/models"
)

// Matcher is the contract downstream stages depend on. A canonical-ID join
// can replace the string predicate behind it without touching consumers.
type Matcher interface {
	AreRelated(a, b *models.TransactionRecord) bool
	Match(customs, financial []*models.TransactionRecord) *MatchResult
}

// Pair is one customs record matched with one financial record
type Pair struct {
	Customs   *models.TransactionRecord `json:"customs"`
	Financial *models.TransactionRecord `json:"financial"`
}

// MatchResult contains every qualifying pair plus the records that found
// no counterpart
type MatchResult struct {
	Pairs              []Pair                      `json:"pairs"`
	UnmatchedCustoms   []*models.TransactionRecord `json:"unmatched_customs"`
	UnmatchedFinancial []*models.TransactionRecord `json:"unmatched_financial"`
	Summary            MatchSummary                `json:"summary"`
}

// MatchSummary provides counts for a matching pass
type MatchSummary struct {
	CustomsRecords     int `json:"customs_records"`
	FinancialRecords   int `json:"financial_records"`
	Pairs              int `json:"pairs"`
	MatchedCustoms     int `json:"matched_customs"`
	MatchedFinancial   int `json:"matched_financial"`
	AmbiguousCustoms   int `json:"ambiguous_customs"`
	AmbiguousFinancial int `json:"ambiguous_financial"`
}

// MatchingEngine implements Matcher with the string predicate
type MatchingEngine struct {
	config *MatchingConfig
}

// NewMatchingEngine creates a matching engine. A nil config uses defaults.
func NewMatchingEngine(config *MatchingConfig) *MatchingEngine {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	return &MatchingEngine{config: config.Clone()}
}

// Config returns a copy of the engine configuration
func (me *MatchingEngine) Config() *MatchingConfig {
	return me.config.Clone()
}

// AreRelated reports whether a and b describe the same transaction. The
// predicate is symmetric.
func (me *MatchingEngine) AreRelated(a, b *models.TransactionRecord) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Entity == b.Entity &&
		a.Currency == b.Currency &&
		me.datesRelated(a, b) &&
		productsSimilar(a.Product, b.Product)
}

// Match pairs every customs record with every related financial record.
// Pairs are ordered by customs input order, then financial input order.
func (me *MatchingEngine) Match(customs, financial []*models.TransactionRecord) *MatchResult {
	result := &MatchResult{
		Pairs:              []Pair{},
		UnmatchedCustoms:   []*models.TransactionRecord{},
		UnmatchedFinancial: []*models.TransactionRecord{},
	}

	var index *RecordIndex
	if me.config.UseIndex {
		index = NewRecordIndex(financial)
	}

	financialHits := make(map[*models.TransactionRecord]int)
	for _, c := range customs {
		if c == nil {
			continue
		}
		result.Summary.CustomsRecords++

		candidates := financial
		if index != nil {
			candidates = index.Candidates(c)
		}

		hits := 0
		for _, f := range candidates {
			if !me.AreRelated(c, f) {
				continue
			}
			result.Pairs = append(result.Pairs, Pair{Customs: c, Financial: f})
			financialHits[f]++
			hits++
		}

		switch {
		case hits == 0:
			result.UnmatchedCustoms = append(result.UnmatchedCustoms, c)
		case hits > 1:
			result.Summary.AmbiguousCustoms++
		}
		if hits > 0 {
			result.Summary.MatchedCustoms++
		}
	}

	for _, f := range financial {
		if f == nil {
			continue
		}
		result.Summary.FinancialRecords++
		switch n := financialHits[f]; {
		case n == 0:
			result.UnmatchedFinancial = append(result.UnmatchedFinancial, f)
		case n > 1:
			result.Summary.AmbiguousFinancial++
			result.Summary.MatchedFinancial++
		default:
			result.Summary.MatchedFinancial++
		}
	}

	result.Summary.Pairs = len(result.Pairs)
	return result
}

// datesRelated compares ISO dates exactly, or within the configured window.
// Dates that fail to parse fall back to exact string equality.
func (me *MatchingEngine) datesRelated(a, b *models.TransactionRecord) bool {
	if a.Date == b.Date {
		return true
	}
	if me.config.DateToleranceDays == 0 {
		return false
	}

	da, errA := a.ParsedDate()
	db, errB := b.ParsedDate()
	if errA != nil || errB != nil {
		return false
	}

	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days <= me.config.DateToleranceDays
}

// productsSimilar accepts equal products or containment in either direction.
// An empty product is contained in every string and so always matches.
func productsSimilar(a, b string) bool {
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// Partition splits a combined list by source. Records from other sources
// (manual, imported) never take part in matching.
func Partition(records []*models.TransactionRecord) (customs, financial, other []*models.TransactionRecord) {
	customs = []*models.TransactionRecord{}
	financial = []*models.TransactionRecord{}
	other = []*models.TransactionRecord{}
	for _, r := range records {
		if r == nil {
			continue
		}
		switch r.Source {
		case models.SourceCustoms:
			customs = append(customs, r)
		case models.SourceFinancial:
			financial = append(financial, r)
		default:
			other = append(other, r)
		}
	}
	return customs, financial, other
}
