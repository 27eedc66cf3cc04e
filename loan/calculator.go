/*
calculator.go - Amortization schedule generation

PURPOSE:
  Pure function from loan terms to an ordered schedule of dated installments.

ALGORITHM:
  Monthly rate r = annual rate / 100 / 12. Level payment for r > 0:

      P = principal * r * (1+r)^n / ((1+r)^n - 1)

  For r == 0 the payment is a straight principal / n split. The schedule walk
  keeps the balance in exact decimal cents: per-period interest is balance * r
  rounded to cents, principal is the payment remainder, and the final
  installment's principal portion clamps to whatever balance remains so the
  loan retires at exactly zero.

DUE DATE POLICY:
  Every installment falls on a fixed billing day (the 28th) of consecutive
  months, starting one month after the loan's start date. Fixing the day
  before advancing months means months with fewer days can never drift the
  schedule. Day 28 exists in every month.

NUMERIC SEMANTICS:
  The level payment itself is computed through float64 for the power term and
  converted back to decimal once, rounded to cents. All monetary accumulation
  after that point is exact decimal arithmetic, so rounding error cannot
  compound across iterations.

SEE ALSO:
  - types.go: Terms, Installment, Schedule
  - penalty.go: Accrual over the generated schedule
*/
package loan

import (
	"math"

	"github.com/shopspring/decimal"
)

// BillingDay is the fixed day of month every installment falls due on.
const BillingDay = 28

// centEpsilon is the residual-balance threshold below which the walk snaps
// the balance to exactly zero, so floating residue never survives as
// fractional debt.
var centEpsilon = decimal.NewFromFloat(0.01)

// Generate builds the amortization schedule for the given terms.
//
// Preconditions: principal > 0, term >= 1 month, rate >= 0, start date set.
// Violations return an InvalidTermsError and no schedule.
func Generate(terms Terms) (*Schedule, error) {
	if err := validateTerms(terms); err != nil {
		return nil, err
	}

	n := terms.TermMonths
	monthlyRate := terms.AnnualRatePercent.Div(decimal.NewFromInt(1200))
	payment := levelPayment(terms.Principal, monthlyRate, n)

	firstDue := NewDate(terms.StartDate.Year(), terms.StartDate.Month(), BillingDay)

	installments := make([]Installment, 0, n)
	balance := terms.Principal

	for i := 1; i <= n; i++ {
		interest := balance.Mul(monthlyRate).Round(2)
		principal := payment.Sub(interest)

		// Rounding can push the last principal portion past the remaining
		// balance; clamp so the loan fully retires.
		if i == n || principal.GreaterThan(balance) {
			principal = balance
		}

		balance = balance.Sub(principal)
		if balance.LessThan(centEpsilon) {
			balance = decimal.Zero
		}

		installments = append(installments, Installment{
			Sequence:         i,
			DueDate:          firstDue.AddMonths(i),
			Amount:           principal.Add(interest),
			Principal:        principal,
			Interest:         interest,
			RemainingBalance: balance,
			Status:           StatusPending,
			PaidAmount:       decimal.Zero,
			Penalty:          decimal.Zero,
		})
	}

	return &Schedule{Installments: installments}, nil
}

// levelPayment computes the fixed annuity payment, rounded to cents.
func levelPayment(principal, monthlyRate decimal.Decimal, termMonths int) decimal.Decimal {
	if monthlyRate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(termMonths))).Round(2)
	}

	// The power term goes through float64; exact decimal arithmetic resumes
	// once the level payment is fixed.
	r, _ := monthlyRate.Float64()
	p, _ := principal.Float64()
	factor := math.Pow(1+r, float64(termMonths))
	return decimal.NewFromFloat(p * r * factor / (factor - 1)).Round(2)
}

func validateTerms(terms Terms) error {
	switch {
	case terms.Principal.LessThanOrEqual(decimal.Zero):
		return &InvalidTermsError{Field: "principal", Reason: "must be positive"}
	case terms.TermMonths < 1:
		return &InvalidTermsError{Field: "term_months", Reason: "must be at least 1"}
	case terms.AnnualRatePercent.IsNegative():
		return &InvalidTermsError{Field: "annual_rate", Reason: "must not be negative"}
	case terms.StartDate.IsZero():
		return &InvalidTermsError{Field: "start_date", Reason: "must be set"}
	}
	return nil
}
