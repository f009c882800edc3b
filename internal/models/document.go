package models

import (
	"strings"
	"time"

	"github.com/ukydev/fleet-compliance/internal/dateutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentType identifies the kind of compliance document.
type DocumentType string

const (
	DocumentInsurance       DocumentType = "insurance"
	DocumentPUC             DocumentType = "puc"
	DocumentNOC             DocumentType = "noc"
	DocumentCgPermit        DocumentType = "cg_permit"
	DocumentTemporaryPermit DocumentType = "temporary_permit"
)

// Status is the derived compliance status of a document. Documents with a
// validity window use the time-based labels; NOC records use the
// payment-based labels instead.
type Status string

const (
	StatusActive       Status = "active"
	StatusExpiringSoon Status = "expiring_soon"
	StatusExpired      Status = "expired"
	StatusPending      Status = "pending"
	StatusCleared      Status = "cleared"
)

// RenewalState is the explicit renewability of a document.
type RenewalState string

const (
	RenewalStateNotYet    RenewalState = "not_renewable_yet"
	RenewalStateRenewable RenewalState = "renewable"
	RenewalStateRenewed   RenewalState = "renewed"
)

// TypeRule captures the per-type lifecycle parameters: how long a fresh
// document stays valid and how close to expiry it starts counting as
// expiring_soon. NOC is not time-bound and has no validity window.
type TypeRule struct {
	DurationUnit              dateutil.DurationUnit
	DurationAmount            int
	ExpiringSoonThresholdDays int
	HasValidityWindow         bool
}

var typeRules = map[DocumentType]TypeRule{
	DocumentInsurance:       {DurationUnit: dateutil.UnitYears, DurationAmount: 1, ExpiringSoonThresholdDays: 30, HasValidityWindow: true},
	DocumentPUC:             {DurationUnit: dateutil.UnitMonths, DurationAmount: 6, ExpiringSoonThresholdDays: 30, HasValidityWindow: true},
	DocumentCgPermit:        {DurationUnit: dateutil.UnitMonths, DurationAmount: 3, ExpiringSoonThresholdDays: 30, HasValidityWindow: true},
	DocumentTemporaryPermit: {DurationUnit: dateutil.UnitMonths, DurationAmount: 4, ExpiringSoonThresholdDays: 15, HasValidityWindow: true},
	DocumentNOC:             {HasValidityWindow: false},
}

// RuleFor returns the lifecycle rule for a document type.
func RuleFor(t DocumentType) (TypeRule, bool) {
	rule, ok := typeRules[t]
	return rule, ok
}

// IsValidDocumentType checks if a document type is known.
func IsValidDocumentType(t DocumentType) bool {
	_, ok := typeRules[t]
	return ok
}

// FeeItem is one line of a NOC fee breakup. The items are informational;
// callers are responsible for keeping total_fee in line with the sum.
type FeeItem struct {
	Name   string  `bson:"name" json:"name"`
	Amount float64 `bson:"amount" json:"amount"`
}

// Document represents a regulatory compliance document for a vehicle.
type Document struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OwnerID       string              `bson:"owner_id" json:"owner_id"`
	Type          DocumentType        `bson:"document_type" json:"document_type"`
	VehicleNumber string              `bson:"vehicle_number" json:"vehicle_number"`
	Provider      string              `bson:"provider,omitempty" json:"provider,omitempty"`           // insurer / issuing authority
	ReferenceNo   string              `bson:"reference_no,omitempty" json:"reference_no,omitempty"`   // policy / certificate / permit number
	ValidFrom     string              `bson:"valid_from,omitempty" json:"valid_from,omitempty"`       // DD-MM-YYYY
	ValidTo       string              `bson:"valid_to,omitempty" json:"valid_to,omitempty"`           // DD-MM-YYYY
	TotalFee      float64             `bson:"total_fee" json:"total_fee"`
	Paid          float64             `bson:"paid" json:"paid"`
	Balance       float64             `bson:"balance" json:"balance"`
	IsRenewed     bool                `bson:"is_renewed" json:"is_renewed"`
	RenewedIntoID *primitive.ObjectID `bson:"renewed_into_id,omitempty" json:"renewed_into_id,omitempty"`
	FeeBreakup    []FeeItem           `bson:"fee_breakup,omitempty" json:"fee_breakup,omitempty"` // NOC only
	Notes         string              `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt     time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updated_at"`
}

// NormalizeVehicleNumber uppercases a registration number and strips
// spacing so "cg04 ab 1234" and "CG04AB1234" store identically.
func NormalizeVehicleNumber(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}
