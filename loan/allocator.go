/*
allocator.go - Oldest-first payment waterfall

PURPOSE:
  Applies an incoming payment against outstanding installments in strict
  due-date order. Each installment must be fully satisfied (scheduled amount
  plus accrued penalty) before any money reaches the next one; funds are
  never allocated out of order, even when a later installment carries a
  larger penalty.

RULES:
  - A payment exactly equal to an installment's total due closes it (paid,
    never partially_paid).
  - A shortfall becomes a partial payment on the first uncovered installment
    and stops the walk; later installments are untouched that call.
  - Surplus left after every obligation is covered reduces the scheduled
    amount and principal of the last unpaid installment, clamped so neither
    goes negative. Whatever cannot be applied is reported back to the payer
    as change, never silently discarded.
  - Rejected calls (non-positive amount, empty schedule) leave the schedule
    completely unmodified.

The allocator does not recompute penalties itself. Callers run
AccruePenalties before allocation (so totals are current) and after it
(outstanding amounts changed).
*/
package loan

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// InstallmentOutcome describes what a single allocation call did to one
// installment.
type InstallmentOutcome struct {
	Sequence     int
	Status       InstallmentStatus
	Applied      decimal.Decimal // portion of this payment applied here
	PaidAmount   decimal.Decimal // cumulative paid after this call
	RemainingDue decimal.Decimal // total due still open on this installment
	SettledOn    *Date           // set when this call closed the installment
}

// AllocationResult is the structured outcome of one payment, sufficient for
// the caller to render a human-readable confirmation.
type AllocationResult struct {
	Amount          decimal.Decimal // the incoming payment
	Applied         decimal.Decimal // portion consumed by the waterfall
	PenaltyPaid     decimal.Decimal // penalties covered by installments closed this call
	Touched         []InstallmentOutcome
	SurplusApplied  decimal.Decimal // surplus used to reduce the final obligation
	SurplusReturned decimal.Decimal // surplus that could not be applied (change)
	Settled         bool            // schedule fully settled after this call
}

// Message renders a payment confirmation for the payer.
func (r *AllocationResult) Message() string {
	var b strings.Builder

	closed := 0
	for _, o := range r.Touched {
		if o.SettledOn != nil {
			closed++
		}
	}
	switch {
	case closed == 1:
		fmt.Fprintf(&b, "Payment accepted: installment #%d settled in full.", r.Touched[0].Sequence)
	case closed > 1:
		fmt.Fprintf(&b, "Payment accepted: %d installments settled in full.", closed)
	default:
		b.WriteString("Payment accepted.")
	}

	if last := len(r.Touched) - 1; last >= 0 && r.Touched[last].SettledOn == nil {
		o := r.Touched[last]
		fmt.Fprintf(&b, " %s paid toward installment #%d, %s still due.",
			o.Applied.StringFixed(2), o.Sequence, o.RemainingDue.StringFixed(2))
	}

	if r.SurplusApplied.IsPositive() {
		fmt.Fprintf(&b, " Overpayment of %s applied against the final installment.",
			r.SurplusApplied.StringFixed(2))
	}
	if r.SurplusReturned.IsPositive() {
		fmt.Fprintf(&b, " Change returned: %s.", r.SurplusReturned.StringFixed(2))
	}
	if r.Settled {
		b.WriteString(" The loan is fully repaid.")
	}
	return b.String()
}

// =============================================================================
// ALLOCATION
// =============================================================================

// Allocate applies amount against the schedule as of the given date, mutating
// installment state in place. Penalties are read as stored; run
// AccruePenalties first for current figures.
func Allocate(s *Schedule, amount decimal.Decimal, asOf Date) (*AllocationResult, error) {
	if s == nil || len(s.Installments) == 0 {
		return nil, ErrNoActiveSchedule
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	result := &AllocationResult{
		Amount:          amount,
		Applied:         decimal.Zero,
		PenaltyPaid:     decimal.Zero,
		SurplusApplied:  decimal.Zero,
		SurplusReturned: decimal.Zero,
	}
	remaining := amount

	for idx := range s.Installments {
		inst := &s.Installments[idx]
		if inst.Status == StatusPaid {
			continue
		}

		totalDue := inst.TotalDue()
		if totalDue.LessThanOrEqual(decimal.Zero) {
			// Already covered by an earlier partial payment plus a penalty
			// that has since shrunk to zero.
			continue
		}

		if remaining.GreaterThanOrEqual(totalDue) {
			// Full settlement of this installment.
			settled := asOf
			inst.Status = StatusPaid
			inst.PaidAmount = inst.Amount.Add(inst.Penalty)
			inst.PaidDate = &settled
			remaining = remaining.Sub(totalDue)

			result.PenaltyPaid = result.PenaltyPaid.Add(inst.Penalty)
			result.Touched = append(result.Touched, InstallmentOutcome{
				Sequence:     inst.Sequence,
				Status:       StatusPaid,
				Applied:      totalDue,
				PaidAmount:   inst.PaidAmount,
				RemainingDue: decimal.Zero,
				SettledOn:    &settled,
			})
			continue
		}

		// Shortfall: partial payment, walk stops here.
		inst.PaidAmount = inst.PaidAmount.Add(remaining)
		inst.Status = StatusPartiallyPaid
		result.Touched = append(result.Touched, InstallmentOutcome{
			Sequence:     inst.Sequence,
			Status:       StatusPartiallyPaid,
			Applied:      remaining,
			PaidAmount:   inst.PaidAmount,
			RemainingDue: totalDue.Sub(remaining),
		})
		remaining = decimal.Zero
		break
	}

	result.Applied = amount.Sub(remaining)

	if remaining.IsPositive() {
		remaining = applySurplus(s, remaining, result)
		result.SurplusReturned = remaining
	}

	result.Settled = s.IsSettled()
	return result, nil
}

// applySurplus reduces the last unpaid installment's scheduled amount and
// principal portion by the surplus, clamped at the principal portion so
// neither field can go negative. Returns the unapplied remainder.
func applySurplus(s *Schedule, surplus decimal.Decimal, result *AllocationResult) decimal.Decimal {
	target := s.lastUnpaid()
	if target == nil {
		return surplus
	}

	reduction := surplus
	if reduction.GreaterThan(target.Principal) {
		reduction = target.Principal
	}
	if !reduction.IsPositive() {
		return surplus
	}

	target.Amount = target.Amount.Sub(reduction)
	target.Principal = target.Principal.Sub(reduction)
	result.SurplusApplied = reduction
	return surplus.Sub(reduction)
}
