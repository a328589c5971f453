/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through Handler.validate before touching domain logic. Amounts
  travel as JSON numbers and are converted to core.Money at the boundary.

SEE ALSO:
  - handlers.go: Uses these types
  - core: Domain model these map from
*/
package api

import (
	"time"

	"github.com/hidrosur/billing-engine/core"
)

// =============================================================================
// CUSTOMER TYPES
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Class                 string    `json:"class"`
	Zone                  string    `json:"zone,omitempty"`
	Active                bool      `json:"active"`
	ServiceState          string    `json:"service_state"`
	HasActiveDebtNotice   bool      `json:"has_active_debt_notice"`
	HasActiveCutoffNotice bool      `json:"has_active_cutoff_notice"`
	ServiceCut            bool      `json:"service_cut"`
	DebtNoticeAt          *string   `json:"debt_notice_at,omitempty"`
	CutoffNoticeAt        *string   `json:"cutoff_notice_at,omitempty"`
	CutoffAt              *string   `json:"cutoff_at,omitempty"`
	LastReconnectionAt    *string   `json:"last_reconnection_at,omitempty"`
	Meter                 *MeterDTO `json:"meter,omitempty"`
	CreatedAt             string    `json:"created_at,omitempty"`
}

// MeterDTO represents a customer's active meter.
type MeterDTO struct {
	ID             string  `json:"id"`
	Serial         string  `json:"serial"`
	InitialReading float64 `json:"initial_reading"`
	InstalledAt    string  `json:"installed_at"`
}

// CreateCustomerRequest is the request to register a customer.
type CreateCustomerRequest struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Class string `json:"class" validate:"required,oneof=RESIDENTIAL PUBLIC_ENTITY"`
	Zone  string `json:"zone"`

	// Optional meter installed at registration.
	MeterSerial    string  `json:"meter_serial"`
	InitialReading float64 `json:"initial_reading" validate:"gte=0"`
}

// SubmitReadingRequest records a meter reading for a billing month.
type SubmitReadingRequest struct {
	Value float64 `json:"value" validate:"gte=0"`
	Month int     `json:"month" validate:"required,min=1,max=12"`
	Year  int     `json:"year" validate:"required,min=2000,max=2100"`
}

// DebtDTO reports a customer's outstanding overdue debt.
type DebtDTO struct {
	CustomerID   string  `json:"customer_id"`
	TotalDebt    float64 `json:"total_debt"`
	OverdueCount int     `json:"overdue_count"`
}

// StateChangeDTO is one service-state transition.
type StateChangeDTO struct {
	FromState string `json:"from_state"`
	NewState  string `json:"new_state"`
	At        string `json:"at"`
	Reason    string `json:"reason,omitempty"`
	Automatic bool   `json:"automatic"`
	Actor     string `json:"actor,omitempty"`
}

// =============================================================================
// INVOICE TYPES
// =============================================================================

// InvoiceDTO represents an invoice with its frozen breakdown.
type InvoiceDTO struct {
	ID                  string         `json:"id"`
	CustomerID          string         `json:"customer_id"`
	Period              string         `json:"period"`
	Consumption         float64        `json:"consumption"`
	HasMeter            bool           `json:"has_meter"`
	BaseFee             float64        `json:"base_fee"`
	ConsumptionAmount   float64        `json:"consumption_amount"`
	Subtotal            float64        `json:"subtotal"`
	ExtraChargesTotal   float64        `json:"extra_charges_total"`
	InstallmentAmount   float64        `json:"installment_amount"`
	InstallmentNumber   *int           `json:"installment_number,omitempty"`
	Total               float64        `json:"total"`
	Breakdown           []TierLineDTO  `json:"breakdown"`
	DueDate             string         `json:"due_date"`
	Status              string         `json:"status"`
	ServiceStateAtIssue string         `json:"service_state_at_issue"`
	PaidAt              *string        `json:"paid_at,omitempty"`
}

// TierLineDTO is one row of the frozen consumption breakdown.
type TierLineDTO struct {
	TierFrom float64  `json:"tier_from"`
	TierTo   *float64 `json:"tier_to,omitempty"`
	Volume   float64  `json:"volume"`
	Price    float64  `json:"price"`
	Subtotal float64  `json:"subtotal"`
}

// InvoiceChargeDTO is one extra charge applied to an invoice.
type InvoiceChargeDTO struct {
	ChargeCode string  `json:"charge_code"`
	Name       string  `json:"name,omitempty"`
	Amount     float64 `json:"amount"`
	Automatic  bool    `json:"automatic"`
	AppliedAt  string  `json:"applied_at"`
}

// GenerateInvoiceRequest generates one customer's invoice for a period.
type GenerateInvoiceRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Month      int    `json:"month" validate:"required,min=1,max=12"`
	Year       int    `json:"year" validate:"required,min=2000,max=2100"`
}

// GenerateBulkRequest generates invoices for every active customer.
type GenerateBulkRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=2100"`
}

// BulkResultDTO summarizes a bulk generation run.
type BulkResultDTO struct {
	Generated int               `json:"generated"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Errors    []BulkErrorDTO    `json:"errors,omitempty"`
}

// BulkErrorDTO is one per-customer failure in a bulk run.
type BulkErrorDTO struct {
	CustomerID string `json:"customer_id"`
	Error      string `json:"error"`
}

// =============================================================================
// PAYMENT TYPES
// =============================================================================

// SettleRequest records and settles a payment in one step.
type SettleRequest struct {
	InvoiceID string  `json:"invoice_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required,oneof=TRANSFER CASH CARD"`
	Actor     string  `json:"actor"`
}

// BeginPaymentRequest opens a pending payment for later approval.
type BeginPaymentRequest struct {
	InvoiceID string  `json:"invoice_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required,oneof=TRANSFER CASH CARD"`
	Notes     string  `json:"notes"`
}

// ApprovePaymentRequest confirms a pending payment.
type ApprovePaymentRequest struct {
	Approver string `json:"approver"`
}

// RejectPaymentRequest rejects a pending payment.
type RejectPaymentRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// PaymentDTO represents a recorded payment.
type PaymentDTO struct {
	ID         string  `json:"id"`
	InvoiceID  string  `json:"invoice_id"`
	Amount     float64 `json:"amount"`
	Date       string  `json:"date"`
	Method     string  `json:"method"`
	Status     string  `json:"status"`
	ApprovedBy string  `json:"approved_by,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

// SettlementDTO is the outcome of a successful settlement.
type SettlementDTO struct {
	InvoiceID        string  `json:"invoice_id"`
	PaymentID        string  `json:"payment_id"`
	SurchargeApplied bool    `json:"surcharge_applied"`
	Surcharge        float64 `json:"surcharge"`
	RequiredTotal    float64 `json:"required_total"`
	PaidAt           string  `json:"paid_at"`
	Regularized      bool    `json:"regularized"`
}

// =============================================================================
// COLLECTIONS / RECONNECTION TYPES
// =============================================================================

// SweepResultDTO summarizes a collections sweep.
type SweepResultDTO struct {
	Evaluated     int            `json:"evaluated"`
	Advanced      int            `json:"advanced"`
	MarkedOverdue int            `json:"marked_overdue"`
	Failed        int            `json:"failed"`
	Errors        []BulkErrorDTO `json:"errors,omitempty"`
}

// RegularizeRequest manually returns a customer to ACTIVE.
type RegularizeRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// ReconnectRequest restores service for a CUTOFF customer.
type ReconnectRequest struct {
	PayInFull        bool   `json:"pay_in_full"`
	InstallmentCount int    `json:"installment_count" validate:"min=0,max=60"`
	Actor            string `json:"actor"`
}

// ReconnectionDTO is the outcome of a reconnection.
type ReconnectionDTO struct {
	CustomerID  string   `json:"customer_id"`
	Reconnected bool     `json:"reconnected"`
	PlanCreated bool     `json:"plan_created"`
	AmountDue   float64  `json:"amount_due"`
	Plan        *PlanDTO `json:"plan,omitempty"`
}

// PlanDTO represents a reconnection installment plan.
type PlanDTO struct {
	ID                string           `json:"id"`
	CustomerID        string           `json:"customer_id"`
	Fee               float64          `json:"fee"`
	InstallmentCount  int              `json:"installment_count"`
	InstallmentAmount float64          `json:"installment_amount"`
	Status            string           `json:"status"`
	Installments      []InstallmentDTO `json:"installments"`
}

// InstallmentDTO is one scheduled share of the reconnection fee.
type InstallmentDTO struct {
	Number    int     `json:"number"`
	Amount    float64 `json:"amount"`
	InvoiceID *string `json:"invoice_id,omitempty"`
	DueDate   string  `json:"due_date"`
	PaidAt    *string `json:"paid_at,omitempty"`
	Status    string  `json:"status"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// ScheduleDTO mirrors the active tariff schedule with its full catalog.
type ScheduleDTO struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	ValidFrom string       `json:"valid_from"`
	Concepts  []ConceptDTO `json:"concepts"`
	Tiers     []TierDTO    `json:"tiers"`
	Charges   []ChargeDTO  `json:"charges"`
}

type ConceptDTO struct {
	Code      string   `json:"code"`
	Class     string   `json:"class"`
	Amount    float64  `json:"amount"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type TierDTO struct {
	Class string   `json:"class"`
	From  float64  `json:"from"`
	To    *float64 `json:"to,omitempty"`
	Price float64  `json:"price"`
}

type ChargeDTO struct {
	Code   string  `json:"code"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Mode   string  `json:"mode"`
}

func toScheduleDTO(s *core.TariffSchedule) ScheduleDTO {
	dto := ScheduleDTO{
		ID:        s.ID,
		Name:      s.Name,
		ValidFrom: s.ValidFrom.Format("2006-01-02"),
		Concepts:  make([]ConceptDTO, len(s.Concepts)),
		Tiers:     make([]TierDTO, len(s.Tiers)),
		Charges:   make([]ChargeDTO, len(s.Charges)),
	}
	for i, c := range s.Concepts {
		dto.Concepts[i] = ConceptDTO{
			Code:   c.Code,
			Class:  string(c.Class),
			Amount: c.Amount.Float64(),
		}
		if c.Threshold != nil {
			v, _ := c.Threshold.Float64()
			dto.Concepts[i].Threshold = &v
		}
	}
	for i, t := range s.Tiers {
		from, _ := t.FromVol.Float64()
		dto.Tiers[i] = TierDTO{
			Class: string(t.Class),
			From:  from,
			Price: t.Price.Float64(),
		}
		if t.ToVol != nil {
			v, _ := t.ToVol.Float64()
			dto.Tiers[i].To = &v
		}
	}
	for i, c := range s.Charges {
		dto.Charges[i] = ChargeDTO{
			Code:   c.Code,
			Name:   c.Name,
			Amount: c.Amount.Float64(),
			Mode:   string(c.Mode),
		}
	}
	return dto
}

// ConfigDTO mirrors the service-state configuration.
type ConfigDTO struct {
	MonthsBeforeDebtNotice int     `json:"months_before_debt_notice"`
	DebtNoticeFee          float64 `json:"debt_notice_fee"`
	DaysBeforeCutoffNotice int     `json:"days_before_cutoff_notice"`
	CutoffNoticeFee        float64 `json:"cutoff_notice_fee"`
	DaysBeforeCutoff       int     `json:"days_before_cutoff"`
	ReconnectionFee        float64 `json:"reconnection_fee"`
	MaxInstallments        int     `json:"max_installments"`
	MoraSurcharge          float64 `json:"mora_surcharge"`
	MoraEnabled            bool    `json:"mora_enabled"`
}

// UpdateConfigRequest replaces the active configuration.
type UpdateConfigRequest struct {
	MonthsBeforeDebtNotice int     `json:"months_before_debt_notice" validate:"required,min=1"`
	DebtNoticeFee          float64 `json:"debt_notice_fee" validate:"gte=0"`
	DaysBeforeCutoffNotice int     `json:"days_before_cutoff_notice" validate:"required,min=1"`
	CutoffNoticeFee        float64 `json:"cutoff_notice_fee" validate:"gte=0"`
	DaysBeforeCutoff       int     `json:"days_before_cutoff" validate:"required,min=1"`
	ReconnectionFee        float64 `json:"reconnection_fee" validate:"gte=0"`
	MaxInstallments        int     `json:"max_installments" validate:"required,min=1"`
	MoraSurcharge          float64 `json:"mora_surcharge" validate:"gte=0"`
	MoraEnabled            bool    `json:"mora_enabled"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`

	// Amount carries the exact figure for payment-related failures:
	// the outstanding debt or the required total.
	Amount *float64 `json:"amount,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toCustomerDTO(c *core.Customer) CustomerDTO {
	dto := CustomerDTO{
		ID:                    c.ID,
		Name:                  c.Name,
		Class:                 string(c.Class),
		Zone:                  c.Zone,
		Active:                c.Active,
		ServiceState:          string(c.ServiceState),
		HasActiveDebtNotice:   c.HasActiveDebtNotice,
		HasActiveCutoffNotice: c.HasActiveCutoffNotice,
		ServiceCut:            c.ServiceCut,
		DebtNoticeAt:          fmtTimePtr(c.DebtNoticeAt),
		CutoffNoticeAt:        fmtTimePtr(c.CutoffNoticeAt),
		CutoffAt:              fmtTimePtr(c.CutoffAt),
		LastReconnectionAt:    fmtTimePtr(c.LastReconnectionAt),
		CreatedAt:             c.CreatedAt.Format(time.RFC3339),
	}
	if c.Meter != nil {
		initial, _ := c.Meter.InitialReading.Float64()
		dto.Meter = &MeterDTO{
			ID:             c.Meter.ID,
			Serial:         c.Meter.Serial,
			InitialReading: initial,
			InstalledAt:    c.Meter.InstalledAt.Format(time.RFC3339),
		}
	}
	return dto
}

func toInvoiceDTO(inv *core.Invoice) InvoiceDTO {
	consumption, _ := inv.Consumption.Float64()
	dto := InvoiceDTO{
		ID:                  inv.ID,
		CustomerID:          inv.CustomerID,
		Period:              inv.Period.String(),
		Consumption:         consumption,
		HasMeter:            inv.HasMeter,
		BaseFee:             inv.BaseFee.Float64(),
		ConsumptionAmount:   inv.ConsumptionAmount.Float64(),
		Subtotal:            inv.Subtotal.Float64(),
		ExtraChargesTotal:   inv.ExtraChargesTotal.Float64(),
		InstallmentAmount:   inv.InstallmentAmount.Float64(),
		InstallmentNumber:   inv.InstallmentNumber,
		Total:               inv.Total.Float64(),
		Breakdown:           make([]TierLineDTO, len(inv.Breakdown)),
		DueDate:             inv.DueDate.Format("2006-01-02"),
		Status:              string(inv.Status),
		ServiceStateAtIssue: string(inv.ServiceStateAtIssue),
		PaidAt:              fmtTimePtr(inv.PaidAt),
	}
	for i, line := range inv.Breakdown {
		from, _ := line.TierFrom.Float64()
		volume, _ := line.Volume.Float64()
		l := TierLineDTO{
			TierFrom: from,
			Volume:   volume,
			Price:    line.Price.Float64(),
			Subtotal: line.Subtotal.Float64(),
		}
		if line.TierTo != nil {
			to, _ := line.TierTo.Float64()
			l.TierTo = &to
		}
		dto.Breakdown[i] = l
	}
	return dto
}

func toPaymentDTO(p *core.Payment) PaymentDTO {
	return PaymentDTO{
		ID:         p.ID,
		InvoiceID:  p.InvoiceID,
		Amount:     p.Amount.Float64(),
		Date:       p.Date.Format(time.RFC3339),
		Method:     string(p.Method),
		Status:     string(p.Status),
		ApprovedBy: p.ApprovedBy,
		Notes:      p.Notes,
	}
}

func toPlanDTO(p *core.ReconnectionPlan) *PlanDTO {
	if p == nil {
		return nil
	}
	dto := &PlanDTO{
		ID:                p.ID,
		CustomerID:        p.CustomerID,
		Fee:               p.Fee.Float64(),
		InstallmentCount:  p.InstallmentCount,
		InstallmentAmount: p.InstallmentAmount.Float64(),
		Status:            string(p.Status),
		Installments:      make([]InstallmentDTO, len(p.Installments)),
	}
	for i, inst := range p.Installments {
		dto.Installments[i] = InstallmentDTO{
			Number:    inst.Number,
			Amount:    inst.Amount.Float64(),
			InvoiceID: inst.InvoiceID,
			DueDate:   inst.DueDate.Format("2006-01-02"),
			PaidAt:    fmtTimePtr(inst.PaidAt),
			Status:    string(inst.Status),
		}
	}
	return dto
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
