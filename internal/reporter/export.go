package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"fx-compliance-engine/internal/models"
)

// TransactionRow is the flat export shape of a TransactionRecord. Field
// names are stable for spreadsheet and PDF writers.
type TransactionRow struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	Entity     string `json:"entity"`
	Type       string `json:"type"`
	Currency   string `json:"currency"`
	Amount     string `json:"amount"`
	Quantity   string `json:"quantity"`
	UnitPrice  string `json:"unitPrice"`
	Product    string `json:"product"`
	Bank       string `json:"bank"`
	Source     string `json:"source"`
	Status     string `json:"status"`
	FlagReason string `json:"flagReason"`
}

// TransactionHeaders lists the CSV columns of a TransactionRow
var TransactionHeaders = []string{
	"id", "date", "entity", "type", "currency", "amount", "quantity",
	"unitPrice", "product", "bank", "source", "status", "flagReason",
}

// Values returns the row in TransactionHeaders order
func (r TransactionRow) Values() []string {
	return []string{
		r.ID, r.Date, r.Entity, r.Type, r.Currency, r.Amount, r.Quantity,
		r.UnitPrice, r.Product, r.Bank, r.Source, r.Status, r.FlagReason,
	}
}

// TransactionRows maps records to export rows
func TransactionRows(records []*models.TransactionRecord) []TransactionRow {
	rows := make([]TransactionRow, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		row := TransactionRow{
			ID:         r.ID,
			Date:       r.Date,
			Entity:     r.Entity,
			Type:       string(r.Type),
			Currency:   r.Currency,
			Amount:     r.Amount.StringFixed(2),
			Product:    r.Product,
			Bank:       r.Bank,
			Source:     string(r.Source),
			Status:     string(r.Status),
			FlagReason: r.FlagReason,
		}
		if r.Quantity.Valid {
			row.Quantity = r.Quantity.Decimal.String()
		}
		if r.UnitPrice.Valid {
			row.UnitPrice = r.UnitPrice.Decimal.String()
		}
		rows = append(rows, row)
	}
	return rows
}

// DiscrepancyRow is the flat export shape of a DiscrepancyRecord
type DiscrepancyRow struct {
	Entity                 string `json:"entity"`
	Date                   string `json:"date"`
	DiscrepancyType        string `json:"discrepancyType"`
	CustomsID              string `json:"customsId"`
	FinancialID            string `json:"financialId"`
	CustomsValue           string `json:"customsValue"`
	FinancialValue         string `json:"financialValue"`
	PercentageDifference   string `json:"percentageDifference"`
	Severity               string `json:"severity"`
	PotentialCapitalFlight string `json:"potentialCapitalFlight"`
	MatchConfidence        string `json:"matchConfidence"`
	ResolutionStatus       string `json:"resolutionStatus"`
	Annotations            string `json:"annotations"`
}

// DiscrepancyHeaders lists the CSV columns of a DiscrepancyRow
var DiscrepancyHeaders = []string{
	"entity", "date", "discrepancyType", "customsId", "financialId",
	"customsValue", "financialValue", "percentageDifference", "severity",
	"potentialCapitalFlight", "matchConfidence", "resolutionStatus", "annotations",
}

// Values returns the row in DiscrepancyHeaders order
func (r DiscrepancyRow) Values() []string {
	return []string{
		r.Entity, r.Date, r.DiscrepancyType, r.CustomsID, r.FinancialID,
		r.CustomsValue, r.FinancialValue, r.PercentageDifference, r.Severity,
		r.PotentialCapitalFlight, r.MatchConfidence, r.ResolutionStatus, r.Annotations,
	}
}

// DiscrepancyRows maps discrepancies to export rows
func DiscrepancyRows(discrepancies []*models.DiscrepancyRecord) []DiscrepancyRow {
	rows := make([]DiscrepancyRow, 0, len(discrepancies))
	for _, d := range discrepancies {
		if d == nil {
			continue
		}
		row := DiscrepancyRow{
			Entity:                 d.Entity(),
			Date:                   d.Date(),
			DiscrepancyType:        string(d.Type),
			CustomsValue:           d.CustomsValue.StringFixed(2),
			FinancialValue:         d.FinancialValue.StringFixed(2),
			PercentageDifference:   strconv.FormatFloat(d.PercentageDifference, 'f', 2, 64),
			Severity:               string(d.Severity),
			PotentialCapitalFlight: strconv.FormatBool(d.PotentialCapitalFlight),
			ResolutionStatus:       string(d.ResolutionStatus),
			Annotations:            d.Annotations,
		}
		if d.Customs != nil {
			row.CustomsID = d.Customs.ID
		}
		if d.Financial != nil {
			row.FinancialID = d.Financial.ID
		}
		if d.MatchConfidence != nil {
			row.MatchConfidence = strconv.FormatFloat(*d.MatchConfidence, 'f', 2, 64)
		}
		rows = append(rows, row)
	}
	return rows
}

type valuer interface {
	Values() []string
}

// WriteCSV writes header then one line per row
func WriteCSV[R valuer](writer io.Writer, headers []string, rows []R, delimiter rune) error {
	csvWriter := csv.NewWriter(writer)
	if delimiter != 0 {
		csvWriter.Comma = delimiter
	}

	if headers != nil {
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, row := range rows {
		if err := csvWriter.Write(row.Values()); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
