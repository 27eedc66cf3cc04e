/*
penalty.go - Daily penalty accrual on overdue installments

PURPOSE:
  Recomputes the penalty for every unpaid, overdue installment as of an
  evaluation date. Penalty is simple (non-compounding) daily interest on the
  amount still owed:

      penalty = outstanding * 0.001 * days_overdue

  Outstanding is the scheduled amount minus what has already been paid toward
  the installment, so penalty shrinks as partial payments land.

INVARIANTS:
  - Installments due on or after the evaluation date carry zero penalty.
  - Paid installments carry zero penalty.
  - Idempotent: a second call with the same evaluation date changes nothing.
  - Safe to run before and after payment allocation; it is always a pure
    function of (due date, evaluation date, outstanding amount).

CHANGE SIGNALLING:
  Stored penalty fields are only rewritten when the recomputed value differs
  from the stored one beyond a one-cent tolerance. The returned bool tells the
  caller whether anything actually changed, so downstream persistence and
  notifications can be skipped on no-op sweeps.
*/
package loan

import "github.com/shopspring/decimal"

// DailyPenaltyRate is the flat per-day penalty rate (0.1%) applied to the
// outstanding amount of an overdue installment.
var DailyPenaltyRate = decimal.NewFromFloat(0.001)

// AccruePenalties recomputes penalties across the schedule as of the given
// date, mutating it in place. Returns true if any installment changed.
func AccruePenalties(s *Schedule, asOf Date) bool {
	if s == nil {
		return false
	}

	changed := false
	for idx := range s.Installments {
		inst := &s.Installments[idx]

		if inst.Status == StatusPaid || !inst.DueDate.Before(asOf) {
			// Not overdue (or settled): any stale penalty is cleared.
			if !inst.Penalty.IsZero() || inst.PenaltyDays != 0 {
				inst.Penalty = decimal.Zero
				inst.PenaltyDays = 0
				changed = true
			}
			continue
		}

		days := DaysBetween(inst.DueDate, asOf)
		penalty := inst.Outstanding().
			Mul(DailyPenaltyRate).
			Mul(decimal.NewFromInt(int64(days))).
			Round(2)

		if penalty.Sub(inst.Penalty).Abs().GreaterThan(centEpsilon) {
			inst.Penalty = penalty
			inst.PenaltyDays = days
			changed = true
		}
	}
	return changed
}
