/*
Package loan provides the amortization, penalty, and payment-allocation engine
for fixed-rate annuity loans.

PURPOSE:
  This package contains the only non-trivial numeric and state-transition
  logic in the system: building an amortization schedule from loan terms,
  accruing daily penalties on overdue installments, and applying incoming
  payments against outstanding obligations oldest-first.

KEY CONCEPTS IN THIS FILE (types.go):
  - Terms: The immutable parameters a schedule is generated from
  - Installment: One dated obligation within a schedule
  - Schedule: The ordered sequence of installments for a single loan

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Explicit state: A Schedule is a plain value owned by its caller.
     No package-level state; every operation takes the schedule it works on.
  3. Derived penalties: Penalty is always recomputable from (due date,
     evaluation date, outstanding amount). Stored penalty fields are a cache,
     not an independent source of truth.
  4. No I/O: All operations are in-memory transformations. Persistence and
     per-loan locking belong to the bank package.

USAGE:
  terms := loan.Terms{
      Principal:         decimal.NewFromInt(500000),
      TermMonths:        24,
      AnnualRatePercent: decimal.NewFromFloat(12.5),
      StartDate:         loan.NewDate(2025, time.March, 14),
  }
  schedule, err := loan.Generate(terms)
  loan.AccruePenalties(schedule, loan.Today())
  result, err := loan.Allocate(schedule, decimal.NewFromInt(25000), loan.Today())

SEE ALSO:
  - calculator.go: Schedule generation (annuity formula)
  - penalty.go: Daily penalty accrual on overdue installments
  - allocator.go: Oldest-first payment waterfall
*/
package loan

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// TERMS - Parameters a schedule is generated from
// =============================================================================

// Terms holds the parameters of a fixed-rate annuity loan. Terms are
// immutable once a schedule has been generated; a rate change means
// generating a new schedule, never mutating an existing one.
type Terms struct {
	Principal         decimal.Decimal
	TermMonths        int
	AnnualRatePercent decimal.Decimal
	StartDate         Date
}

// =============================================================================
// INSTALLMENT - One dated obligation
// =============================================================================

type InstallmentStatus string

const (
	StatusPending       InstallmentStatus = "pending"
	StatusPartiallyPaid InstallmentStatus = "partially_paid"
	StatusPaid          InstallmentStatus = "paid" // terminal
)

// Installment is one scheduled obligation within a loan's schedule.
//
// Amount, Principal, and Interest are fixed at generation time, except that
// the payment allocator may reduce Amount and Principal of the final unpaid
// installment when a prepayment surplus is applied.
//
// Penalty and PenaltyDays are derived state maintained by AccruePenalties:
// zero while the installment is not overdue or already paid.
type Installment struct {
	Sequence         int // 1-based, contiguous, strictly increasing with due date
	DueDate          Date
	Amount           decimal.Decimal // scheduled payment (principal + interest)
	Principal        decimal.Decimal
	Interest         decimal.Decimal
	RemainingBalance decimal.Decimal // balance after this installment is paid on schedule

	Status      InstallmentStatus
	PaidAmount  decimal.Decimal
	PaidDate    *Date // set only when Status becomes paid
	Penalty     decimal.Decimal
	PenaltyDays int
}

// Outstanding returns the scheduled amount still owed on this installment,
// ignoring penalty. Never negative.
func (i *Installment) Outstanding() decimal.Decimal {
	out := i.Amount.Sub(i.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// TotalDue returns scheduled amount plus accrued penalty minus what has
// already been paid toward this installment. May be non-positive when a prior
// partial payment fully covers the obligation.
func (i *Installment) TotalDue() decimal.Decimal {
	return i.Amount.Add(i.Penalty).Sub(i.PaidAmount)
}

// =============================================================================
// SCHEDULE - Ordered installments for one loan
// =============================================================================

// Schedule is the ordered sequence of installments for a single loan. It is
// owned exclusively by the loan it was generated for; regenerating a schedule
// discards the previous one.
type Schedule struct {
	Installments []Installment
}

// MonthlyPayment returns the level annuity payment the schedule was built
// with. The final installment may differ due to rounding.
func (s *Schedule) MonthlyPayment() decimal.Decimal {
	if len(s.Installments) == 0 {
		return decimal.Zero
	}
	return s.Installments[0].Amount
}

// TotalAmount returns the sum of all scheduled payments.
func (s *Schedule) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range s.Installments {
		total = total.Add(s.Installments[i].Amount)
	}
	return total
}

// Outstanding returns the sum of TotalDue over all unpaid installments.
// Negative per-installment balances (overcovered by partial payments) do not
// reduce the total.
func (s *Schedule) Outstanding() decimal.Decimal {
	total := decimal.Zero
	for i := range s.Installments {
		inst := &s.Installments[i]
		if inst.Status == StatusPaid {
			continue
		}
		if due := inst.TotalDue(); due.IsPositive() {
			total = total.Add(due)
		}
	}
	return total
}

// IsSettled reports whether every installment is paid. A settled schedule is
// the loan-closure state.
func (s *Schedule) IsSettled() bool {
	for i := range s.Installments {
		if s.Installments[i].Status != StatusPaid {
			return false
		}
	}
	return len(s.Installments) > 0
}

// NextDue returns the first unpaid installment, or nil if the schedule is
// settled.
func (s *Schedule) NextDue() *Installment {
	for i := range s.Installments {
		if s.Installments[i].Status != StatusPaid {
			return &s.Installments[i]
		}
	}
	return nil
}

// lastUnpaid returns the final installment not yet paid, or nil.
func (s *Schedule) lastUnpaid() *Installment {
	for i := len(s.Installments) - 1; i >= 0; i-- {
		if s.Installments[i].Status != StatusPaid {
			return &s.Installments[i]
		}
	}
	return nil
}
