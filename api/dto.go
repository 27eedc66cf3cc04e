/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All amounts are JSON strings holding exact decimal values ("23653.39"),
  never floats. Binary floating point would reintroduce the rounding drift
  the engine is built to avoid.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/loan-engine/bank"
	"github.com/warp/loan-engine/loan"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateLoanRequest opens a new loan. Rate defaults to 12.5% and start date
// to today when omitted.
type CreateLoanRequest struct {
	Amount     string `json:"amount"`
	TermMonths int    `json:"term_months"`
	AnnualRate string `json:"annual_rate,omitempty"`
	StartDate  string `json:"start_date,omitempty"`
}

// MakePaymentRequest applies a payment against a loan.
type MakePaymentRequest struct {
	Amount string `json:"amount"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// LoanDTO represents a loan account in API responses.
type LoanDTO struct {
	ID             int64  `json:"id"`
	Principal      string `json:"principal"`
	TermMonths     int    `json:"term_months"`
	AnnualRate     string `json:"annual_rate"`
	MonthlyPayment string `json:"monthly_payment"`
	TotalAmount    string `json:"total_amount"`
	StartDate      string `json:"start_date"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// InstallmentDTO is one schedule row in API responses.
type InstallmentDTO struct {
	Sequence         int    `json:"sequence"`
	DueDate          string `json:"due_date"`
	Amount           string `json:"amount"`
	Principal        string `json:"principal"`
	Interest         string `json:"interest"`
	RemainingBalance string `json:"remaining_balance"`
	Status           string `json:"status"`
	PaidAmount       string `json:"paid_amount"`
	PaidDate         string `json:"paid_date,omitempty"`
	Penalty          string `json:"penalty"`
	PenaltyDays      int    `json:"penalty_days"`
	TotalDue         string `json:"total_due"`
}

// ScheduleResponse is a loan's full schedule with summary figures.
type ScheduleResponse struct {
	Loan         LoanDTO          `json:"loan"`
	Installments []InstallmentDTO `json:"installments"`
	Outstanding  string           `json:"outstanding"`
	Settled      bool             `json:"settled"`
}

// PaymentOutcomeDTO describes what a payment did to one installment.
type PaymentOutcomeDTO struct {
	Sequence     int    `json:"sequence"`
	Status       string `json:"status"`
	Applied      string `json:"applied"`
	PaidAmount   string `json:"paid_amount"`
	RemainingDue string `json:"remaining_due"`
	SettledOn    string `json:"settled_on,omitempty"`
}

// PaymentResponse is the confirmation for an allocated payment.
type PaymentResponse struct {
	Message         string              `json:"message"`
	Amount          string              `json:"amount"`
	Applied         string              `json:"applied"`
	PenaltyPaid     string              `json:"penalty_paid"`
	SurplusApplied  string              `json:"surplus_applied"`
	SurplusReturned string              `json:"surplus_returned"`
	Settled         bool                `json:"settled"`
	Installments    []PaymentOutcomeDTO `json:"installments"`
}

// PaymentRecordDTO is one entry of the payment audit log.
type PaymentRecordDTO struct {
	ID          int64  `json:"id"`
	Amount      string `json:"amount"`
	PenaltyPaid string `json:"penalty_paid"`
	PaidAt      string `json:"paid_at"`
}

// SweepResponse reports a manual penalty sweep.
type SweepResponse struct {
	AsOf         string `json:"as_of"`
	LoansChanged int    `json:"loans_changed"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toLoanDTO(l *bank.Loan) LoanDTO {
	return LoanDTO{
		ID:             l.ID,
		Principal:      l.Principal.StringFixed(2),
		TermMonths:     l.TermMonths,
		AnnualRate:     l.AnnualRatePercent.String(),
		MonthlyPayment: l.MonthlyPayment.StringFixed(2),
		TotalAmount:    l.TotalAmount.StringFixed(2),
		StartDate:      l.StartDate.String(),
		Status:         string(l.Status),
		CreatedAt:      l.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toInstallmentDTO(inst *loan.Installment) InstallmentDTO {
	dto := InstallmentDTO{
		Sequence:         inst.Sequence,
		DueDate:          inst.DueDate.String(),
		Amount:           inst.Amount.StringFixed(2),
		Principal:        inst.Principal.StringFixed(2),
		Interest:         inst.Interest.StringFixed(2),
		RemainingBalance: inst.RemainingBalance.StringFixed(2),
		Status:           string(inst.Status),
		PaidAmount:       inst.PaidAmount.StringFixed(2),
		Penalty:          inst.Penalty.StringFixed(2),
		PenaltyDays:      inst.PenaltyDays,
		TotalDue:         inst.TotalDue().StringFixed(2),
	}
	if inst.PaidDate != nil {
		dto.PaidDate = inst.PaidDate.String()
	}
	return dto
}

func toPaymentResponse(result *loan.AllocationResult) PaymentResponse {
	resp := PaymentResponse{
		Message:         result.Message(),
		Amount:          result.Amount.StringFixed(2),
		Applied:         result.Applied.StringFixed(2),
		PenaltyPaid:     result.PenaltyPaid.StringFixed(2),
		SurplusApplied:  result.SurplusApplied.StringFixed(2),
		SurplusReturned: result.SurplusReturned.StringFixed(2),
		Settled:         result.Settled,
	}
	for _, o := range result.Touched {
		dto := PaymentOutcomeDTO{
			Sequence:     o.Sequence,
			Status:       string(o.Status),
			Applied:      o.Applied.StringFixed(2),
			PaidAmount:   o.PaidAmount.StringFixed(2),
			RemainingDue: o.RemainingDue.StringFixed(2),
		}
		if o.SettledOn != nil {
			dto.SettledOn = o.SettledOn.String()
		}
		resp.Installments = append(resp.Installments, dto)
	}
	return resp
}
