package matcher

import (
	"fx-compliance-engine/internal/models"
)

// RecordIndex groups records by entity and currency, the two fields the
// match predicate compares exactly
type RecordIndex struct {
	buckets map[indexKey][]*models.TransactionRecord
	records []*models.TransactionRecord
}

type indexKey struct {
	entity   string
	currency string
}

// IndexStats describes the shape of a built index
type IndexStats struct {
	Records int `json:"records"`
	Buckets int `json:"buckets"`
	Largest int `json:"largest_bucket"`
}

// NewRecordIndex indexes records, preserving input order inside each bucket
func NewRecordIndex(records []*models.TransactionRecord) *RecordIndex {
	index := &RecordIndex{
		buckets: make(map[indexKey][]*models.TransactionRecord),
	}
	for _, r := range records {
		index.Add(r)
	}
	return index
}

// Add appends a record to the index
func (ri *RecordIndex) Add(r *models.TransactionRecord) {
	if r == nil {
		return
	}
	key := indexKey{entity: r.Entity, currency: r.Currency}
	ri.buckets[key] = append(ri.buckets[key], r)
	ri.records = append(ri.records, r)
}

// Candidates returns the records sharing entity and currency with r
func (ri *RecordIndex) Candidates(r *models.TransactionRecord) []*models.TransactionRecord {
	return ri.buckets[indexKey{entity: r.Entity, currency: r.Currency}]
}

// All returns every indexed record in insertion order
func (ri *RecordIndex) All() []*models.TransactionRecord {
	return ri.records
}

// Stats returns index statistics
func (ri *RecordIndex) Stats() IndexStats {
	stats := IndexStats{Records: len(ri.records), Buckets: len(ri.buckets)}
	for _, bucket := range ri.buckets {
		if len(bucket) > stats.Largest {
			stats.Largest = len(bucket)
		}
	}
	return stats
}
