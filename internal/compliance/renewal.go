package compliance

import (
	"fmt"
	"time"

	"github.com/ukydev/fleet-compliance/internal/dateutil"
	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RenewalReason explains why a renewal was rejected.
type RenewalReason string

const (
	ReasonAlreadyRenewed RenewalReason = "already_renewed"
	ReasonNotYetEligible RenewalReason = "not_yet_eligible"
)

// RenewalNotAllowedError is returned when a document cannot be used as a
// renewal predecessor.
type RenewalNotAllowedError struct {
	Reason RenewalReason
}

func (e *RenewalNotAllowedError) Error() string {
	return fmt.Sprintf("renewal not allowed: %s", e.Reason)
}

// RenewalInput carries the caller-supplied fields for a successor document.
// ValidFrom is optional; it defaults to the as-of date.
type RenewalInput struct {
	ValidFrom   string
	TotalFee    float64
	Paid        float64
	Provider    string
	ReferenceNo string
	Notes       string
}

// StateOf returns the explicit renewability of a document: renewed once used
// as a predecessor, renewable when its derived status is expiring_soon or
// expired, not_renewable_yet otherwise. NOC records have no validity window
// and are never renewable.
func StateOf(doc *models.Document, asOf time.Time) (models.RenewalState, error) {
	if doc.IsRenewed {
		return models.RenewalStateRenewed, nil
	}
	status, err := DeriveStatus(doc, asOf)
	if err != nil {
		return "", err
	}
	if status == models.StatusExpiringSoon || status == models.StatusExpired {
		return models.RenewalStateRenewable, nil
	}
	return models.RenewalStateNotYet, nil
}

// Renew builds the successor for an expiring or expired document and marks
// the predecessor as renewed, linking it to the successor. The predecessor's
// own window and status are left untouched; it stays visible as history.
// Callers must persist both documents in one transaction so the link is
// never observable half-applied.
func Renew(predecessor *models.Document, input RenewalInput, asOf time.Time) (*models.Document, error) {
	if predecessor.IsRenewed {
		return nil, &RenewalNotAllowedError{Reason: ReasonAlreadyRenewed}
	}

	state, err := StateOf(predecessor, asOf)
	if err != nil {
		return nil, err
	}
	if state != models.RenewalStateRenewable {
		return nil, &RenewalNotAllowedError{Reason: ReasonNotYetEligible}
	}

	validFromStr := input.ValidFrom
	if validFromStr == "" {
		validFromStr = dateutil.Format(dateutil.Midnight(asOf))
	}
	validFrom, err := dateutil.Parse(validFromStr)
	if err != nil {
		return nil, err
	}
	validTo, ok := ValidToFor(predecessor.Type, validFrom)
	if !ok {
		return nil, &RenewalNotAllowedError{Reason: ReasonNotYetEligible}
	}

	provider := input.Provider
	if provider == "" {
		provider = predecessor.Provider
	}

	successor := &models.Document{
		ID:            primitive.NewObjectID(),
		OwnerID:       predecessor.OwnerID,
		Type:          predecessor.Type,
		VehicleNumber: predecessor.VehicleNumber,
		Provider:      provider,
		ReferenceNo:   input.ReferenceNo,
		ValidFrom:     dateutil.Format(validFrom),
		ValidTo:       dateutil.Format(validTo),
		Notes:         input.Notes,
	}
	if _, err := ApplyPayment(successor, FieldTotalFee, input.TotalFee); err != nil {
		return nil, err
	}
	if _, err := ApplyPayment(successor, FieldPaid, input.Paid); err != nil {
		return nil, err
	}

	predecessor.IsRenewed = true
	predecessor.RenewedIntoID = &successor.ID
	return successor, nil
}
