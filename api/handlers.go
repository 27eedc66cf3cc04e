/*
handlers.go - HTTP API handlers for the loan engine

PURPOSE:
  Exposes the loan book via REST API. Handles HTTP request/response, JSON
  serialization, business-bound validation, and delegates everything else to
  the bank and loan packages.

ENDPOINTS:
  Loans:
    GET    /api/loans                    List all loans
    POST   /api/loans                    Open a loan
    GET    /api/loans/{id}               Get loan details
    GET    /api/loans/{id}/schedule      Schedule with penalties as of today
    GET    /api/loans/{id}/payments      Payment audit log
    POST   /api/loans/{id}/payments      Make a payment

  Admin:
    POST   /api/admin/sweep              Trigger a penalty sweep now

BUSINESS BOUNDS:
  The engine validates only structural preconditions. Product limits
  (principal 10,000 - 5,000,000; term 6 - 60 months) belong to this layer
  and are enforced before the engine is invoked.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, rejected engine calls
  - 404: Loan not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Periodic penalty sweep
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/loan-engine/bank"
	"github.com/warp/loan-engine/loan"
)

// Business policy bounds enforced at the API boundary.
var (
	minPrincipal = decimal.NewFromInt(10_000)
	maxPrincipal = decimal.NewFromInt(5_000_000)
)

const (
	minTermMonths = 6
	maxTermMonths = 60
)

// defaultAnnualRate applies when a create request omits the rate.
var defaultAnnualRate = decimal.NewFromFloat(12.5)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Book *bank.Book
	Log  *logrus.Logger
}

// NewHandler creates a new handler around the loan book.
func NewHandler(book *bank.Book, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{Book: book, Log: log}
}

// =============================================================================
// LOAN HANDLERS
// =============================================================================

// CreateLoan opens a new loan and generates its schedule.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "amount must be a decimal number")
		return
	}
	if amount.LessThan(minPrincipal) || amount.GreaterThan(maxPrincipal) {
		h.respondError(w, http.StatusBadRequest, "amount must be between 10000 and 5000000")
		return
	}
	if req.TermMonths < minTermMonths || req.TermMonths > maxTermMonths {
		h.respondError(w, http.StatusBadRequest, "term_months must be between 6 and 60")
		return
	}

	rate := defaultAnnualRate
	if req.AnnualRate != "" {
		if rate, err = decimal.NewFromString(req.AnnualRate); err != nil {
			h.respondError(w, http.StatusBadRequest, "annual_rate must be a decimal number")
			return
		}
	}

	startDate := loan.Today()
	if req.StartDate != "" {
		if startDate, err = loan.ParseDate(req.StartDate); err != nil {
			h.respondError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
	}

	l, _, err := h.Book.Open(r.Context(), bank.OpenRequest{
		Principal:         amount,
		TermMonths:        req.TermMonths,
		AnnualRatePercent: rate,
		StartDate:         startDate,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, toLoanDTO(l))
}

// ListLoans returns all loan accounts.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Book.List(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	dtos := make([]LoanDTO, 0, len(loans))
	for i := range loans {
		dtos = append(dtos, toLoanDTO(&loans[i]))
	}
	h.respondJSON(w, http.StatusOK, dtos)
}

// GetLoan returns one loan account.
func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loanID(w, r)
	if !ok {
		return
	}
	l, err := h.Book.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toLoanDTO(l))
}

// GetSchedule returns a loan's schedule with penalties current as of today.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loanID(w, r)
	if !ok {
		return
	}

	l, err := h.Book.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	schedule, err := h.Book.ScheduleOf(r.Context(), id, loan.Today())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	resp := ScheduleResponse{
		Loan:        toLoanDTO(l),
		Outstanding: schedule.Outstanding().StringFixed(2),
		Settled:     schedule.IsSettled(),
	}
	for i := range schedule.Installments {
		resp.Installments = append(resp.Installments, toInstallmentDTO(&schedule.Installments[i]))
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// MakePayment allocates a payment against a loan.
func (h *Handler) MakePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loanID(w, r)
	if !ok {
		return
	}

	var req MakePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "amount must be a decimal number")
		return
	}

	result, err := h.Book.MakePayment(r.Context(), id, amount, loan.Today())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toPaymentResponse(result))
}

// ListPayments returns a loan's payment audit log.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.loanID(w, r)
	if !ok {
		return
	}
	payments, err := h.Book.Payments(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	dtos := make([]PaymentRecordDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, PaymentRecordDTO{
			ID:          p.ID,
			Amount:      p.Amount.StringFixed(2),
			PenaltyPaid: p.PenaltyPaid.StringFixed(2),
			PaidAt:      p.PaidAt.String(),
		})
	}
	h.respondJSON(w, http.StatusOK, dtos)
}

// TriggerSweep runs a penalty sweep immediately (admin/debug).
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	asOf := loan.Today()
	changed, err := h.Book.SweepPenalties(r.Context(), asOf)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, SweepResponse{
		AsOf:         asOf.String(),
		LoansChanged: changed,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loanID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "loan id must be an integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Log.WithError(err).Error("failed to encode response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps engine and store errors onto HTTP status codes.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bank.ErrLoanNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case loan.IsClientError(err):
		h.respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.WithError(err).Error("internal error")
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}
