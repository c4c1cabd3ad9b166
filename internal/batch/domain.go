package batch

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultListPerPage bounds batch listings when the caller gives no page size.
const DefaultListPerPage = 20

// Status enumerates the batch lifecycle states.
type Status string

const (
	// StatusProcessing marks a batch whose rows are still being stored.
	StatusProcessing Status = "PROCESSING"
	// StatusProcessed marks a batch visible to queries.
	StatusProcessed Status = "PROCESSED"
	// StatusFailed marks a batch permanently excluded after an ingestion error.
	StatusFailed Status = "FAILED"
)

// Category is the closed set of normalized product categories.
type Category string

const (
	CategoryRawMaterial   Category = "RAW_MATERIAL"
	CategoryFinishedGoods Category = "FINISHED_GOODS"
	CategoryPackaging     Category = "PACKAGING"
	CategorySpareParts    Category = "SPARE_PARTS"
	CategoryConsumables   Category = "CONSUMABLES"
	CategoryOther         Category = "OTHER"
)

// Categories lists every valid category token.
var Categories = []Category{
	CategoryRawMaterial,
	CategoryFinishedGoods,
	CategoryPackaging,
	CategorySpareParts,
	CategoryConsumables,
	CategoryOther,
}

// ParseCategory validates a category token.
func ParseCategory(raw string) (Category, error) {
	for _, c := range Categories {
		if string(c) == raw {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

// Batch models one ingested upload.
type Batch struct {
	ID        uuid.UUID
	FileName  string
	Status    Status
	RowCount  int
	CreatedAt time.Time
}

// Reading is one explicitly reported quantity for a calendar date. Dates the
// source did not report are never materialized; absence and explicit zero are
// distinct because averaging divides by the count of present readings.
type Reading struct {
	Date     time.Time
	Quantity float64
}

// SnapshotRow is one SKU snapshot inside a batch, as handed over by the
// ingestion collaborator with spreadsheet parsing already done.
type SnapshotRow struct {
	Item       string
	Warehouse  string
	ItemGroup  string
	Category   Category
	CBMPerUnit float64
	// IsTotalRow marks the synthetic pre-summed aggregate row present in
	// source files. Such rows are excluded from every per-SKU aggregation.
	IsTotalRow bool
	Readings   []Reading
}

var (
	// ErrBatchNotFound indicates the referenced batch does not exist.
	ErrBatchNotFound = errors.New("batch: not found")
	// ErrNoProcessedBatches indicates no processed batch matches the query scope.
	ErrNoProcessedBatches = errors.New("batch: no processed batches")
	// ErrUnknownCategory indicates a category token outside the closed enum.
	ErrUnknownCategory = errors.New("batch: unknown category")
	// ErrEmptyBatch indicates an ingestion request without rows.
	ErrEmptyBatch = errors.New("batch: no rows to ingest")
)
