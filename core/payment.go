package core

import "time"

// =============================================================================
// PAYMENT - A recorded payment against one invoice
// =============================================================================

type PaymentMethod string

const (
	PayTransfer PaymentMethod = "TRANSFER"
	PayCash     PaymentMethod = "CASH"
	PayCard     PaymentMethod = "CARD"
)

func (m PaymentMethod) Valid() bool {
	return m == PayTransfer || m == PayCash || m == PayCard
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentRejected PaymentStatus = "REJECTED"
)

// Payment records money received against an invoice. Payments are recorded,
// not processed: there is no gateway integration.
type Payment struct {
	ID        string
	InvoiceID string
	Amount    Money
	Date      time.Time
	Method    PaymentMethod
	Status    PaymentStatus

	ApprovedBy string
	Notes      string

	CreatedAt time.Time
}
