/*
book.go - Loan operations with per-loan mutual exclusion

PURPOSE:
  The Book is the single entry point for anything that touches a loan's
  schedule. Every operation follows the same shape: acquire the loan's lock,
  load the schedule snapshot, run the pure engine on it, persist the result.

LOCKING:
  One mutex per loan ID, created on first use. Penalty accrual and payment
  allocation on the same loan are serialized; different loans proceed in
  parallel. There is no global lock: the periodic penalty sweep takes each
  loan's lock in turn.

PAYMENT FLOW:
  1. Accrue penalties as of the payment date (totals must be current)
  2. Allocate the payment through the waterfall
  3. Accrue again (outstanding amounts changed, penalties shrink)
  4. Persist schedule + payment audit record
  5. Close the loan if the schedule is now fully settled
*/
package bank

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/loan-engine/loan"
)

// Book coordinates all schedule mutation, one lock per loan.
type Book struct {
	store Store
	log   *logrus.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewBook(store Store, log *logrus.Logger) *Book {
	if log == nil {
		log = logrus.New()
	}
	return &Book{
		store: store,
		log:   log,
		locks: make(map[int64]*sync.Mutex),
	}
}

// lockFor returns the mutex guarding one loan's schedule state.
func (b *Book) lockFor(loanID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[loanID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[loanID] = l
	}
	return l
}

// =============================================================================
// OPERATIONS
// =============================================================================

// OpenRequest carries the accepted terms for a new loan. Business policy
// bounds are validated at the API boundary before this point; Open only
// enforces the engine's structural preconditions.
type OpenRequest struct {
	Principal         decimal.Decimal
	TermMonths        int
	AnnualRatePercent decimal.Decimal
	StartDate         loan.Date
}

// Open generates the amortization schedule for the given terms and persists
// the new loan with it.
func (b *Book) Open(ctx context.Context, req OpenRequest) (*Loan, *loan.Schedule, error) {
	schedule, err := loan.Generate(loan.Terms{
		Principal:         req.Principal,
		TermMonths:        req.TermMonths,
		AnnualRatePercent: req.AnnualRatePercent,
		StartDate:         req.StartDate,
	})
	if err != nil {
		return nil, nil, err
	}

	l := &Loan{
		Principal:         req.Principal,
		TermMonths:        req.TermMonths,
		AnnualRatePercent: req.AnnualRatePercent,
		MonthlyPayment:    schedule.MonthlyPayment(),
		TotalAmount:       schedule.TotalAmount(),
		StartDate:         req.StartDate,
		Status:            LoanActive,
	}
	if err := b.store.CreateLoan(ctx, l); err != nil {
		return nil, nil, err
	}
	if err := b.store.SaveSchedule(ctx, l.ID, schedule); err != nil {
		return nil, nil, err
	}

	b.log.WithFields(logrus.Fields{
		"loan_id":         l.ID,
		"principal":       l.Principal.StringFixed(2),
		"term_months":     l.TermMonths,
		"monthly_payment": l.MonthlyPayment.StringFixed(2),
	}).Info("loan opened")

	return l, schedule, nil
}

// Get returns the loan record.
func (b *Book) Get(ctx context.Context, loanID int64) (*Loan, error) {
	return b.store.GetLoan(ctx, loanID)
}

// List returns all loans.
func (b *Book) List(ctx context.Context) ([]Loan, error) {
	return b.store.ListLoans(ctx)
}

// Payments returns the payment audit log for a loan.
func (b *Book) Payments(ctx context.Context, loanID int64) ([]Payment, error) {
	if _, err := b.store.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	return b.store.ListPayments(ctx, loanID)
}

// ScheduleOf returns a loan's schedule with penalties current as of the
// given date. A changed schedule is persisted before returning, so readers
// always observe the same figures the next writer will.
func (b *Book) ScheduleOf(ctx context.Context, loanID int64, asOf loan.Date) (*loan.Schedule, error) {
	lock := b.lockFor(loanID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := b.store.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}
	schedule, err := b.store.LoadSchedule(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if len(schedule.Installments) == 0 {
		return nil, loan.ErrNoActiveSchedule
	}

	if loan.AccruePenalties(schedule, asOf) {
		if err := b.store.SaveSchedule(ctx, loanID, schedule); err != nil {
			return nil, err
		}
	}
	return schedule, nil
}

// MakePayment allocates a payment against a loan's schedule as of the given
// date. On success the mutated schedule and a payment audit record are
// persisted, and the loan is closed if fully settled. On any rejected call
// nothing is persisted.
func (b *Book) MakePayment(ctx context.Context, loanID int64, amount decimal.Decimal, asOf loan.Date) (*loan.AllocationResult, error) {
	lock := b.lockFor(loanID)
	lock.Lock()
	defer lock.Unlock()

	l, err := b.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	schedule, err := b.store.LoadSchedule(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if len(schedule.Installments) == 0 {
		return nil, loan.ErrNoActiveSchedule
	}

	loan.AccruePenalties(schedule, asOf)
	result, err := loan.Allocate(schedule, amount, asOf)
	if err != nil {
		return nil, err
	}
	loan.AccruePenalties(schedule, asOf)

	if err := b.store.SaveSchedule(ctx, loanID, schedule); err != nil {
		return nil, err
	}
	if err := b.store.RecordPayment(ctx, &Payment{
		LoanID:      loanID,
		Amount:      amount,
		PenaltyPaid: result.PenaltyPaid,
		PaidAt:      asOf,
	}); err != nil {
		return nil, err
	}

	if result.Settled && l.Status == LoanActive {
		if err := b.store.SetLoanStatus(ctx, loanID, LoanClosed); err != nil {
			return nil, err
		}
		b.log.WithField("loan_id", loanID).Info("loan closed")
	}

	b.log.WithFields(logrus.Fields{
		"loan_id": loanID,
		"amount":  amount.StringFixed(2),
		"applied": result.Applied.StringFixed(2),
		"settled": result.Settled,
	}).Info("payment allocated")

	return result, nil
}

// SweepPenalties re-accrues penalties for every active loan as of the given
// date, taking each loan's lock in turn. Only changed schedules are written
// back. Returns how many loans changed.
//
// The sweep is idempotent for a fixed date, so missed or repeated runs are
// harmless.
func (b *Book) SweepPenalties(ctx context.Context, asOf loan.Date) (int, error) {
	loans, err := b.store.ListActiveLoans(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range loans {
		id := loans[i].ID
		if err := b.sweepOne(ctx, id, asOf, &changed); err != nil {
			// One broken loan must not starve the rest of the sweep.
			b.log.WithError(err).WithField("loan_id", id).Warn("penalty sweep failed for loan")
		}
	}
	return changed, nil
}

func (b *Book) sweepOne(ctx context.Context, loanID int64, asOf loan.Date, changed *int) error {
	lock := b.lockFor(loanID)
	lock.Lock()
	defer lock.Unlock()

	schedule, err := b.store.LoadSchedule(ctx, loanID)
	if err != nil {
		return err
	}
	if len(schedule.Installments) == 0 {
		return nil
	}
	if loan.AccruePenalties(schedule, asOf) {
		if err := b.store.SaveSchedule(ctx, loanID, schedule); err != nil {
			return err
		}
		*changed++
	}
	return nil
}
