package compliance

import (
	"fmt"
	"time"

	"github.com/ukydev/fleet-compliance/internal/dateutil"
	"github.com/ukydev/fleet-compliance/internal/models"
)

// DeriveWindowStatus classifies a validity window against an as-of date.
// A document is valid through valid_to inclusive; expiry starts the day
// after. Within thresholdDays of valid_to it counts as expiring_soon.
func DeriveWindowStatus(validTo, asOf time.Time, thresholdDays int) models.Status {
	remaining := dateutil.DaysBetween(asOf, validTo)
	switch {
	case remaining < 0:
		return models.StatusExpired
	case remaining <= thresholdDays:
		return models.StatusExpiringSoon
	default:
		return models.StatusActive
	}
}

// DeriveStatus computes the compliance status of a document as of the given
// date. Time-bound types are classified by their validity window; NOC has no
// window and is classified by outstanding balance only.
func DeriveStatus(doc *models.Document, asOf time.Time) (models.Status, error) {
	rule, ok := models.RuleFor(doc.Type)
	if !ok {
		return "", fmt.Errorf("unknown document type %q", doc.Type)
	}

	if !rule.HasValidityWindow {
		if doc.Balance > 0 {
			return models.StatusPending, nil
		}
		return models.StatusCleared, nil
	}

	validTo, err := dateutil.Parse(doc.ValidTo)
	if err != nil {
		return "", err
	}
	return DeriveWindowStatus(validTo, dateutil.Midnight(asOf), rule.ExpiringSoonThresholdDays), nil
}

// ValidToFor computes the valid_to date for a fresh document of the given
// type: valid_from plus the type's fixed duration, minus one day, so the
// window ends the day before the anniversary.
func ValidToFor(docType models.DocumentType, validFrom time.Time) (time.Time, bool) {
	rule, ok := models.RuleFor(docType)
	if !ok || !rule.HasValidityWindow {
		return time.Time{}, false
	}
	return dateutil.AddDuration(validFrom, rule.DurationUnit, rule.DurationAmount).AddDate(0, 0, -1), true
}
