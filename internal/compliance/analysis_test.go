package compliance

import (
	"encoding/json"
	"strings"
	"testing"

	"fx-compliance-engine/internal/discrepancy"
	"fx-compliance-engine/internal/models"
)

func TestAnalyze_Empty(t *testing.T) {
	analysis := Analyze(NewClassifier(nil).Classify(nil, nil))

	if analysis.TotalTransactions != 0 || analysis.ComplianceRate != 0 {
		t.Errorf("expected empty analysis, got %+v", analysis)
	}
	if analysis.HasDiscrepancies() {
		t.Error("empty analysis has no discrepancies")
	}
	for _, share := range analysis.StatusDistribution {
		if share.Value != 0 {
			t.Errorf("expected zero share for %s, got %d", share.Name, share.Value)
		}
	}
}

func TestAnalyze_Aggregates(t *testing.T) {
	records := []*models.TransactionRecord{
		rec("1", models.SourceManual, "1000", "First Bank"),
		rec("2", models.SourceManual, "1000", "First Bank"),
		rec("3", models.SourceManual, "60000", "First Bank"),
		rec("4", models.SourceManual, "1000", "Offshore Trust"),
		rec("5", models.SourceManual, "1000", ""),
	}
	records[3].Type = models.TransactionTypeExport
	records[4].Type = models.TransactionTypeExport

	analysis := Analyze(NewClassifier(thresholdsWithMonitored("Offshore Trust")).Classify(records, nil))

	if analysis.TotalTransactions != 5 || analysis.CompliantCount != 3 || analysis.FlaggedCount != 1 || analysis.PendingCount != 1 {
		t.Errorf("unexpected counts %+v", analysis)
	}
	if analysis.ComplianceRate != 60 {
		t.Errorf("expected rate 60, got %f", analysis.ComplianceRate)
	}
	if len(analysis.FlaggedTransactions) != 1 || analysis.FlaggedTransactions[0].ID != "3" {
		t.Errorf("unexpected flagged list %v", analysis.FlaggedTransactions)
	}

	wantBanks := []GroupCompliance{
		{Name: "First Bank", Total: 3, Compliant: 2, Rate: 67},
		{Name: "Offshore Trust", Total: 1, Compliant: 0, Rate: 0},
		{Name: UnspecifiedBank, Total: 1, Compliant: 1, Rate: 100},
	}
	if len(analysis.ComplianceByBank) != len(wantBanks) {
		t.Fatalf("expected %d bank groups, got %d", len(wantBanks), len(analysis.ComplianceByBank))
	}
	for i, want := range wantBanks {
		if analysis.ComplianceByBank[i] != want {
			t.Errorf("bank group %d = %+v, want %+v", i, analysis.ComplianceByBank[i], want)
		}
	}

	wantTypes := []GroupCompliance{
		{Name: "Imports", Total: 3, Compliant: 2, Rate: 67},
		{Name: "Exports", Total: 2, Compliant: 1, Rate: 50},
	}
	for i, want := range wantTypes {
		if analysis.ComplianceByType[i] != want {
			t.Errorf("type group %d = %+v, want %+v", i, analysis.ComplianceByType[i], want)
		}
	}

	wantShares := []StatusShare{
		{Name: "Compliant", Value: 60, Color: ColorCompliant},
		{Name: "Pending", Value: 20, Color: ColorPending},
		{Name: "Flagged", Value: 20, Color: ColorFlagged},
	}
	for i, want := range wantShares {
		if analysis.StatusDistribution[i] != want {
			t.Errorf("share %d = %+v, want %+v", i, analysis.StatusDistribution[i], want)
		}
	}
}

func TestAnalyze_RateBounds(t *testing.T) {
	sets := [][]*models.TransactionRecord{
		{rec("1", models.SourceManual, "1", "A")},
		{rec("1", models.SourceManual, "90000", "A")},
		{rec("1", models.SourceManual, "90000", "A"), rec("2", models.SourceManual, "5", "B")},
	}
	for i, set := range sets {
		analysis := Analyze(NewClassifier(nil).Classify(set, nil))
		if analysis.ComplianceRate < 0 || analysis.ComplianceRate > 100 {
			t.Errorf("set %d: rate %f out of bounds", i, analysis.ComplianceRate)
		}
	}
}

func TestAnalyze_DiscrepanciesOmittedWhenNone(t *testing.T) {
	analysis := Analyze(NewClassifier(nil).Classify([]*models.TransactionRecord{rec("1", models.SourceManual, "1", "A")}, nil))

	data, err := json.Marshal(analysis)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "dataDiscrepancies") {
		t.Errorf("dataDiscrepancies must be omitted, got %s", data)
	}

	customs := rec("C1", models.SourceCustoms, "85000", "A")
	financial := rec("F1", models.SourceFinancial, "65000", "A")
	found := discrepancy.NewDetector(nil, discrepancy.Config{}).DetectPair(customs, financial)
	withFindings := Analyze(NewClassifier(nil).Classify([]*models.TransactionRecord{customs, financial}, found))

	if !withFindings.HasDiscrepancies() || len(withFindings.DataDiscrepancies) != 1 {
		t.Errorf("expected one discrepancy, got %v", withFindings.DataDiscrepancies)
	}
}

func TestTypeLabel(t *testing.T) {
	if TypeLabel(models.TransactionTypeImport) != "Imports" || TypeLabel(models.TransactionTypeExport) != "Exports" {
		t.Error("unexpected type labels")
	}
}
