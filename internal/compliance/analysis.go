package compliance

import (
	"math"

	"fx-compliance-engine/internal/models"
)

// Status distribution display colors
const (
	ColorCompliant = "#10B981"
	ColorPending   = "#F59E0B"
	ColorFlagged   = "#EF4444"
)

// UnspecifiedBank labels records that name no bank
const UnspecifiedBank = "Unspecified"

// ComplianceAnalysis is the aggregated output of one reconciliation pass
type ComplianceAnalysis struct {
	TotalTransactions int `json:"totalTransactions"`
	CompliantCount    int `json:"compliantCount"`
	FlaggedCount      int `json:"flaggedCount"`
	PendingCount      int `json:"pendingCount"`

	// ComplianceRate is compliant / total * 100, unrounded; 0 when empty
	ComplianceRate float64 `json:"complianceRate"`

	ComplianceByBank   []GroupCompliance `json:"complianceByBank"`
	ComplianceByType   []GroupCompliance `json:"complianceByType"`
	StatusDistribution []StatusShare     `json:"statusDistribution"`

	FlaggedTransactions []*models.TransactionRecord `json:"flaggedTransactions"`
	Transactions        []*models.TransactionRecord `json:"transactions"`

	// DataDiscrepancies is nil, and omitted from JSON, when nothing was
	// detected. Callers branch on presence.
	DataDiscrepancies []*models.DiscrepancyRecord `json:"dataDiscrepancies,omitempty"`

	UnmatchedCustoms   []*models.TransactionRecord `json:"unmatchedCustoms,omitempty"`
	UnmatchedFinancial []*models.TransactionRecord `json:"unmatchedFinancial,omitempty"`
}

// GroupCompliance is the compliance rate of one bank or transaction type
type GroupCompliance struct {
	Name      string `json:"name"`
	Total     int    `json:"total"`
	Compliant int    `json:"compliant"`
	Rate      int    `json:"rate"`
}

// StatusShare is one slice of the status distribution
type StatusShare struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// HasDiscrepancies reports whether any discrepancy was detected
func (a *ComplianceAnalysis) HasDiscrepancies() bool {
	return a.DataDiscrepancies != nil
}

// Analyze aggregates a classification. Groups appear in first-seen order.
func Analyze(c *Classification) *ComplianceAnalysis {
	analysis := &ComplianceAnalysis{
		ComplianceByBank:    []GroupCompliance{},
		ComplianceByType:    []GroupCompliance{},
		FlaggedTransactions: []*models.TransactionRecord{},
		Transactions:        []*models.TransactionRecord{},
	}

	banks := newGrouping()
	types := newGrouping()

	for _, r := range c.Records {
		analysis.Transactions = append(analysis.Transactions, r)
		analysis.TotalTransactions++

		compliant := r.Status == models.StatusCompliant
		switch r.Status {
		case models.StatusCompliant:
			analysis.CompliantCount++
		case models.StatusFlagged:
			analysis.FlaggedCount++
			analysis.FlaggedTransactions = append(analysis.FlaggedTransactions, r)
		case models.StatusPending:
			analysis.PendingCount++
		}

		bank := r.Bank
		if bank == "" {
			bank = UnspecifiedBank
		}
		banks.add(bank, compliant)
		types.add(TypeLabel(r.Type), compliant)
	}

	if analysis.TotalTransactions > 0 {
		analysis.ComplianceRate = percent(analysis.CompliantCount, analysis.TotalTransactions)
	}

	analysis.ComplianceByBank = banks.results()
	analysis.ComplianceByType = types.results()
	analysis.StatusDistribution = []StatusShare{
		{Name: "Compliant", Value: roundedPercent(analysis.CompliantCount, analysis.TotalTransactions), Color: ColorCompliant},
		{Name: "Pending", Value: roundedPercent(analysis.PendingCount, analysis.TotalTransactions), Color: ColorPending},
		{Name: "Flagged", Value: roundedPercent(analysis.FlaggedCount, analysis.TotalTransactions), Color: ColorFlagged},
	}

	if len(c.Discrepancies) > 0 {
		analysis.DataDiscrepancies = c.Discrepancies
	}

	return analysis
}

// TypeLabel returns the plural display label of a transaction type
func TypeLabel(t models.TransactionType) string {
	switch t {
	case models.TransactionTypeImport:
		return "Imports"
	case models.TransactionTypeExport:
		return "Exports"
	default:
		return string(t)
	}
}

type grouping struct {
	order  []string
	groups map[string]*GroupCompliance
}

func newGrouping() *grouping {
	return &grouping{groups: make(map[string]*GroupCompliance)}
}

func (g *grouping) add(name string, compliant bool) {
	group, ok := g.groups[name]
	if !ok {
		group = &GroupCompliance{Name: name}
		g.groups[name] = group
		g.order = append(g.order, name)
	}
	group.Total++
	if compliant {
		group.Compliant++
	}
}

func (g *grouping) results() []GroupCompliance {
	out := make([]GroupCompliance, 0, len(g.order))
	for _, name := range g.order {
		group := *g.groups[name]
		group.Rate = roundedPercent(group.Compliant, group.Total)
		out = append(out, group)
	}
	return out
}

func percent(part, total int) float64 {
	return float64(part) / float64(total) * 100
}

func roundedPercent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(percent(part, total)))
}
