package compliance

import (
	"errors"
	"fmt"
	"math"

	"github.com/ukydev/fleet-compliance/internal/models"
)

// amountEpsilon absorbs float64 rounding when comparing currency amounts.
// Paid plus a balance computed as total-paid can differ from the total by a
// few ULPs for ordinary fractional inputs.
const amountEpsilon = 1e-6

var (
	ErrNoPendingPayment    = errors.New("document has no pending payment")
	ErrPaymentInvariant    = errors.New("payment invariant violated")
	ErrUnknownPaymentField = errors.New("unknown payment field")
)

// PaymentField selects which fee field ApplyPayment mutates.
type PaymentField string

const (
	FieldTotalFee PaymentField = "total_fee"
	FieldPaid     PaymentField = "paid"
)

// ApplyPayment applies an edit to one of the document's fee fields and
// recomputes the balance so that total_fee = paid + balance always holds.
// Negative inputs clamp to zero and paid clamps to total_fee. The returned
// flag reports whether a paid input exceeded the total, so the caller can
// warn the user without losing the edit.
func ApplyPayment(doc *models.Document, field PaymentField, value float64) (bool, error) {
	exceeded := false

	switch field {
	case FieldTotalFee:
		if value < 0 {
			value = 0
		}
		doc.TotalFee = value
		if doc.Paid > doc.TotalFee {
			doc.Paid = doc.TotalFee
		}
		doc.Balance = doc.TotalFee - doc.Paid
	case FieldPaid:
		if value < 0 {
			value = 0
		}
		if value > doc.TotalFee {
			value = doc.TotalFee
			exceeded = true
		}
		doc.Paid = value
		doc.Balance = doc.TotalFee - doc.Paid
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownPaymentField, field)
	}

	if err := checkPaymentInvariant(doc); err != nil {
		return false, err
	}
	return exceeded, nil
}

// MarkAsPaid settles the outstanding balance in one step. It rejects
// documents that are already fully paid.
func MarkAsPaid(doc *models.Document) error {
	if doc.Balance == 0 {
		return ErrNoPendingPayment
	}
	doc.Paid = doc.TotalFee
	doc.Balance = 0
	return checkPaymentInvariant(doc)
}

func checkPaymentInvariant(doc *models.Document) error {
	if doc.TotalFee < 0 || doc.Paid < 0 || doc.Balance < 0 {
		return fmt.Errorf("%w: negative amount (total=%.2f paid=%.2f balance=%.2f)",
			ErrPaymentInvariant, doc.TotalFee, doc.Paid, doc.Balance)
	}
	if doc.Paid > doc.TotalFee {
		return fmt.Errorf("%w: paid %.2f exceeds total %.2f", ErrPaymentInvariant, doc.Paid, doc.TotalFee)
	}
	if math.Abs(doc.TotalFee-(doc.Paid+doc.Balance)) > amountEpsilon {
		return fmt.Errorf("%w: total %.2f != paid %.2f + balance %.2f",
			ErrPaymentInvariant, doc.TotalFee, doc.Paid, doc.Balance)
	}
	return nil
}
