/*
handlers.go - HTTP API handlers for the billing engine

PURPOSE:
  Exposes the billing and collections engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Customers:
    GET    /api/customers                  List active customers
    POST   /api/customers                  Register customer (optional meter)
    GET    /api/customers/{id}             Get customer details
    GET    /api/customers/{id}/invoices    Invoice history
    GET    /api/customers/{id}/debt        Outstanding overdue debt
    GET    /api/customers/{id}/history     Service-state transitions
    GET    /api/customers/{id}/plan        Active reconnection plan
    POST   /api/customers/{id}/readings    Record a meter reading
    POST   /api/customers/{id}/regularize  Manual return to ACTIVE
    POST   /api/customers/{id}/reconnect   Reconnect a CUTOFF customer

  Invoices:
    POST   /api/invoices/generate          Generate one invoice
    POST   /api/invoices/generate-bulk     Generate for all active customers
    GET    /api/invoices/{id}              Get invoice with breakdown
    GET    /api/invoices/{id}/charges      Extra charges on the invoice
    GET    /api/invoices/{id}/payments     Payments recorded on the invoice
    POST   /api/invoices/{id}/regenerate   Force regeneration (unpaid only)

  Payments:
    POST   /api/payments                   Settle a payment in one step
    POST   /api/payments/begin             Open a pending payment
    POST   /api/payments/{id}/approve      Approve and settle
    POST   /api/payments/{id}/reject       Reject, invoice returns to PENDING

  Collections:
    POST   /api/collections/sweep          Run the delinquency sweep now

  Admin:
    GET    /api/admin/config               Active service-state config
    PUT    /api/admin/config               Replace the config
    GET    /api/admin/tariff               Active tariff schedule

ERROR HANDLING:
  Domain errors map to HTTP statuses via the core error taxonomy:
  - 400: Validation errors, invalid input
  - 402: Outstanding debt / insufficient payment (exact amount included)
  - 404: Record not found
  - 409: Operation not permitted in current state
  - 500: Missing configuration, internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hidrosur/billing-engine/collections"
	"github.com/hidrosur/billing-engine/core"
	"github.com/hidrosur/billing-engine/invoicing"
	"github.com/hidrosur/billing-engine/payments"
	"github.com/hidrosur/billing-engine/reconnection"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     core.Store
	Generator *invoicing.Generator
	Machine   *collections.Machine
	Manager   *reconnection.Manager
	Settler   *payments.Settler

	validate *validator.Validate
}

// NewHandler wires the handler with the store and services.
func NewHandler(store core.Store, gen *invoicing.Generator, machine *collections.Machine,
	manager *reconnection.Manager, settler *payments.Settler) *Handler {
	return &Handler{
		Store:     store,
		Generator: gen,
		Machine:   machine,
		Manager:   manager,
		Settler:   settler,
		validate:  validator.New(),
	}
}

// decodeValid decodes the JSON body into dst and runs struct validation.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns active customers, optionally filtered by class
// (?class=RESIDENTIAL or ?class=PUBLIC_ENTITY).
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListActiveCustomers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}

	if class := r.URL.Query().Get("class"); class != "" {
		want := core.CustomerClass(class)
		if !want.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown customer class", nil)
			return
		}
		filtered := customers[:0]
		for _, c := range customers {
			if c.Class == want {
				filtered = append(filtered, c)
			}
		}
		customers = filtered
	}

	dtos := make([]CustomerDTO, len(customers))
	for i := range customers {
		dtos[i] = toCustomerDTO(&customers[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cust, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get customer", err)
		return
	}
	if cust == nil {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(cust))
}

// CreateCustomer registers a customer, optionally with a meter.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	now := time.Now()
	cust := core.Customer{
		ID:           req.ID,
		Name:         req.Name,
		Class:        core.CustomerClass(req.Class),
		Zone:         req.Zone,
		Active:       true,
		ServiceState: core.StateActive,
		CreatedAt:    now,
	}

	err := h.Store.WithTx(r.Context(), func(tx core.Store) error {
		if err := tx.SaveCustomer(r.Context(), cust); err != nil {
			return err
		}
		if req.MeterSerial == "" {
			return nil
		}
		return tx.SaveMeter(r.Context(), core.Meter{
			ID:             uuid.NewString(),
			CustomerID:     cust.ID,
			Serial:         req.MeterSerial,
			InitialReading: decimal.NewFromFloat(req.InitialReading),
			InstalledAt:    now,
			Active:         true,
		})
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create customer", err)
		return
	}

	created, err := h.Store.GetCustomer(r.Context(), cust.ID)
	if err != nil || created == nil {
		writeError(w, http.StatusInternalServerError, "Failed to load customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(created))
}

// SubmitReading records a meter reading for the customer's active meter.
func (h *Handler) SubmitReading(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SubmitReadingRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	cust, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get customer", err)
		return
	}
	if cust == nil {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}
	if cust.Meter == nil {
		writeError(w, http.StatusConflict, "Customer has no active meter", nil)
		return
	}

	reading := core.Reading{
		ID:      uuid.NewString(),
		MeterID: cust.Meter.ID,
		Value:   decimal.NewFromFloat(req.Value),
		Month:   time.Month(req.Month),
		Year:    req.Year,
		TakenAt: time.Now(),
	}
	if err := h.Store.SaveReading(r.Context(), reading); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save reading", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": reading.ID})
}

// GetCustomerInvoices returns the customer's invoice history.
func (h *Handler) GetCustomerInvoices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	invoices, err := h.Store.InvoicesByCustomer(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}
	dtos := make([]InvoiceDTO, len(invoices))
	for i := range invoices {
		dtos[i] = toInvoiceDTO(&invoices[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomerDebt returns the customer's outstanding overdue debt.
func (h *Handler) GetCustomerDebt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	debt, err := h.Machine.TotalDebt(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute debt", err)
		return
	}
	count, err := h.Store.CountOverdue(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count overdue", err)
		return
	}
	writeJSON(w, http.StatusOK, DebtDTO{
		CustomerID:   id,
		TotalDebt:    debt.Float64(),
		OverdueCount: count,
	})
}

// GetCustomerHistory returns the customer's service-state transitions.
func (h *Handler) GetCustomerHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	history, err := h.Machine.History(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get history", err)
		return
	}
	dtos := make([]StateChangeDTO, len(history))
	for i, sc := range history {
		dtos[i] = StateChangeDTO{
			FromState: string(sc.FromState),
			NewState:  string(sc.NewState),
			At:        sc.At.Format(time.RFC3339),
			Reason:    sc.Reason,
			Automatic: sc.Automatic,
			Actor:     sc.Actor,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomerPlan returns the customer's active reconnection plan.
func (h *Handler) GetCustomerPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	plan, err := h.Store.ActivePlan(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "No active reconnection plan", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// RegularizeCustomer manually returns a customer to ACTIVE. Refused while
// overdue debt remains.
func (h *Handler) RegularizeCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RegularizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Machine.Regularize(r.Context(), id, req.Reason, req.Actor); err != nil {
		writeDomainError(w, err)
		return
	}

	cust, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil || cust == nil {
		writeError(w, http.StatusInternalServerError, "Failed to load customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(cust))
}

// ReconnectCustomer restores service for a CUTOFF customer, paying the
// reconnection fee in full or via an installment plan.
func (h *Handler) ReconnectCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ReconnectRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.Manager.Process(r.Context(), id, req.PayInFull, req.InstallmentCount, req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconnectionDTO{
		CustomerID:  result.CustomerID,
		Reconnected: result.Reconnected,
		PlanCreated: result.PlanCreated,
		AmountDue:   result.AmountDue.Float64(),
		Plan:        toPlanDTO(result.Plan),
	})
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// GenerateInvoice generates (or returns the existing) invoice for one
// customer and period.
func (h *Handler) GenerateInvoice(w http.ResponseWriter, r *http.Request) {
	var req GenerateInvoiceRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	inv, err := h.Generator.GenerateMonthly(r.Context(), req.CustomerID, time.Month(req.Month), req.Year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// GenerateBulk generates the period's invoices for every active customer.
func (h *Handler) GenerateBulk(w http.ResponseWriter, r *http.Request) {
	var req GenerateBulkRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.Generator.GenerateForAllActive(r.Context(), time.Month(req.Month), req.Year)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkResultDTO(result))
}

// GetInvoice returns an invoice with its frozen breakdown.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.Store.GetInvoice(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get invoice", err)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// GetInvoiceCharges lists the extra charges applied to an invoice.
func (h *Handler) GetInvoiceCharges(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	charges, err := h.Store.InvoiceCharges(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list charges", err)
		return
	}
	dtos := make([]InvoiceChargeDTO, len(charges))
	for i, c := range charges {
		dtos[i] = InvoiceChargeDTO{
			ChargeCode: c.ChargeCode,
			Name:       c.Name,
			Amount:     c.Amount.Float64(),
			Automatic:  c.Automatic,
			AppliedAt:  c.AppliedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetInvoicePayments lists the payments recorded on an invoice.
func (h *Handler) GetInvoicePayments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	pays, err := h.Store.PaymentsByInvoice(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, len(pays))
	for i := range pays {
		dtos[i] = toPaymentDTO(&pays[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RegenerateInvoice discards and rebuilds an unpaid invoice.
func (h *Handler) RegenerateInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.Generator.ForceRegenerate(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// SettlePayment records and settles a payment in one step.
func (h *Handler) SettlePayment(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.Settler.Settle(r.Context(), req.InvoiceID, core.NewMoney(req.Amount),
		time.Now(), core.PaymentMethod(req.Method), req.Actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(result))
}

// BeginPayment opens a pending payment for later approval.
func (h *Handler) BeginPayment(w http.ResponseWriter, r *http.Request) {
	var req BeginPaymentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	payment, err := h.Settler.Begin(r.Context(), req.InvoiceID, core.NewMoney(req.Amount),
		core.PaymentMethod(req.Method), req.Notes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// ApprovePayment approves a pending payment and settles the invoice.
func (h *Handler) ApprovePayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ApprovePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Settler.Approve(r.Context(), id, req.Approver)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(result))
}

// RejectPayment rejects a pending payment; the invoice returns to PENDING.
func (h *Handler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req RejectPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Settler.Reject(r.Context(), id, req.Reason, req.Actor); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// =============================================================================
// COLLECTIONS HANDLERS
// =============================================================================

// RunSweep runs the delinquency sweep immediately.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Machine.Sweep(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := SweepResultDTO{
		Evaluated:     result.Evaluated,
		Advanced:      result.Advanced,
		MarkedOverdue: result.MarkedOverdue,
		Failed:        result.Failed,
	}
	for _, e := range result.Errors {
		dto.Errors = append(dto.Errors, BulkErrorDTO{CustomerID: e.CustomerID, Error: e.Err.Error()})
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// GetTariff returns the active tariff schedule with its full catalog.
func (h *Handler) GetTariff(w http.ResponseWriter, r *http.Request) {
	sched, err := h.Store.ActiveSchedule(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get tariff", err)
		return
	}
	if sched == nil {
		writeError(w, http.StatusNotFound, "No active tariff schedule", nil)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(sched))
}

// GetConfig returns the active service-state configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Store.ActiveConfig(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get config", err)
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "No active configuration", nil)
		return
	}
	writeJSON(w, http.StatusOK, toConfigDTO(cfg))
}

// UpdateConfig replaces the active service-state configuration.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	cfg := core.ServiceStateConfig{
		ID:                     "default",
		MonthsBeforeDebtNotice: req.MonthsBeforeDebtNotice,
		DebtNoticeFee:          core.NewMoney(req.DebtNoticeFee),
		DaysBeforeCutoffNotice: req.DaysBeforeCutoffNotice,
		CutoffNoticeFee:        core.NewMoney(req.CutoffNoticeFee),
		DaysBeforeCutoff:       req.DaysBeforeCutoff,
		ReconnectionFee:        core.NewMoney(req.ReconnectionFee),
		MaxInstallments:        req.MaxInstallments,
		MoraSurcharge:          core.NewMoney(req.MoraSurcharge),
		MoraEnabled:            req.MoraEnabled,
		Active:                 true,
	}
	if err := h.Store.SaveConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save config", err)
		return
	}
	writeJSON(w, http.StatusOK, toConfigDTO(&cfg))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the core error taxonomy to HTTP statuses and
// attaches the exact amount for payment-related failures.
func writeDomainError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var ode *core.OutstandingDebtError
	var ipe *core.InsufficientPaymentError

	switch {
	case errors.As(err, &ipe):
		required := ipe.Required.Float64()
		resp.Code = "INSUFFICIENT_PAYMENT"
		resp.Amount = &required
		writeJSON(w, http.StatusPaymentRequired, resp)
	case errors.As(err, &ode):
		owed := ode.Owed.Float64()
		resp.Code = "OUTSTANDING_DEBT"
		resp.Amount = &owed
		writeJSON(w, http.StatusPaymentRequired, resp)
	case core.IsNotFound(err):
		resp.Code = "NOT_FOUND"
		writeJSON(w, http.StatusNotFound, resp)
	case errors.Is(err, core.ErrInvalidState):
		resp.Code = "INVALID_STATE"
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, core.ErrValidation):
		resp.Code = "VALIDATION"
		writeJSON(w, http.StatusBadRequest, resp)
	case core.IsConfiguration(err):
		resp.Code = "CONFIGURATION"
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func toBulkResultDTO(result invoicing.BulkResult) BulkResultDTO {
	dto := BulkResultDTO{
		Generated: result.Generated,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
	}
	for _, e := range result.Errors {
		dto.Errors = append(dto.Errors, BulkErrorDTO{CustomerID: e.CustomerID, Error: e.Err.Error()})
	}
	return dto
}

func toSettlementDTO(result payments.SettlementResult) SettlementDTO {
	return SettlementDTO{
		InvoiceID:        result.InvoiceID,
		PaymentID:        result.PaymentID,
		SurchargeApplied: result.SurchargeApplied,
		Surcharge:        result.Surcharge.Float64(),
		RequiredTotal:    result.RequiredTotal.Float64(),
		PaidAt:           result.PaidAt.Format(time.RFC3339),
		Regularized:      result.Regularized,
	}
}

func toConfigDTO(cfg *core.ServiceStateConfig) ConfigDTO {
	return ConfigDTO{
		MonthsBeforeDebtNotice: cfg.MonthsBeforeDebtNotice,
		DebtNoticeFee:          cfg.DebtNoticeFee.Float64(),
		DaysBeforeCutoffNotice: cfg.DaysBeforeCutoffNotice,
		CutoffNoticeFee:        cfg.CutoffNoticeFee.Float64(),
		DaysBeforeCutoff:       cfg.DaysBeforeCutoff,
		ReconnectionFee:        cfg.ReconnectionFee.Float64(),
		MaxInstallments:        cfg.MaxInstallments,
		MoraSurcharge:          cfg.MoraSurcharge.Float64(),
		MoraEnabled:            cfg.MoraEnabled,
	}
}
