package compliance

import (
	"time"

	"github.com/ukydev/fleet-compliance/internal/models"
)

// Statistics aggregates derived statuses and outstanding balances over one
// owner's documents.
type Statistics struct {
	Total                int     `json:"total"`
	Active               int     `json:"active"`
	ExpiringSoon         int     `json:"expiring_soon"`
	Expired              int     `json:"expired"`
	Pending              int     `json:"pending"`
	PendingPaymentCount  int     `json:"pending_payment_count"`
	PendingPaymentAmount float64 `json:"pending_payment_amount"`
}

// ComputeStatistics folds DeriveStatus over a record set with a single as-of
// snapshot, so the aggregate counts can never disagree with the per-record
// status badges computed for the same response.
func ComputeStatistics(docs []models.Document, asOf time.Time) (Statistics, error) {
	var stats Statistics
	for i := range docs {
		doc := &docs[i]
		status, err := DeriveStatus(doc, asOf)
		if err != nil {
			return Statistics{}, err
		}
		stats.Total++
		switch status {
		case models.StatusActive, models.StatusCleared:
			stats.Active++
		case models.StatusExpiringSoon:
			stats.ExpiringSoon++
		case models.StatusExpired:
			stats.Expired++
		case models.StatusPending:
			stats.Pending++
		}
		if doc.Balance > 0 {
			stats.PendingPaymentCount++
			stats.PendingPaymentAmount += doc.Balance
		}
	}
	return stats, nil
}
