package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-engine/bank"
	"github.com/warp/loan-engine/loan"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testLoan() *bank.Loan {
	return &bank.Loan{
		Principal:         dec("500000"),
		TermMonths:        24,
		AnnualRatePercent: dec("12.5"),
		MonthlyPayment:    dec("23653.36"),
		TotalAmount:       dec("567680.64"),
		StartDate:         loan.NewDate(2025, time.June, 1),
		Status:            bank.LoanActive,
	}
}

// =============================================================================
// LOAN TESTS
// =============================================================================

func TestStore_CreateAndGetLoan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := testLoan()
	require.NoError(t, s.CreateLoan(ctx, l))
	assert.NotZero(t, l.ID)
	assert.False(t, l.CreatedAt.IsZero())

	got, err := s.GetLoan(ctx, l.ID)
	require.NoError(t, err)

	assert.Equal(t, l.ID, got.ID)
	assert.True(t, got.Principal.Equal(l.Principal))
	assert.Equal(t, 24, got.TermMonths)
	assert.True(t, got.AnnualRatePercent.Equal(dec("12.5")))
	assert.True(t, got.MonthlyPayment.Equal(l.MonthlyPayment))
	assert.True(t, got.TotalAmount.Equal(l.TotalAmount))
	assert.True(t, got.StartDate.Equal(l.StartDate))
	assert.Equal(t, bank.LoanActive, got.Status)
}

func TestStore_GetLoanNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetLoan(context.Background(), 999)
	assert.ErrorIs(t, err, bank.ErrLoanNotFound)
}

func TestStore_ListLoansAndActiveFilter(t *testing.T) {
	// GIVEN: Two loans, one of which gets closed
	// THEN: ListLoans returns both in id order; ListActiveLoans drops the
	//       closed one

	s := newTestStore(t)
	ctx := context.Background()

	first := testLoan()
	second := testLoan()
	require.NoError(t, s.CreateLoan(ctx, first))
	require.NoError(t, s.CreateLoan(ctx, second))
	require.NoError(t, s.SetLoanStatus(ctx, first.ID, bank.LoanClosed))

	all, err := s.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, bank.LoanClosed, all[0].Status)
	assert.Equal(t, second.ID, all[1].ID)

	active, err := s.ListActiveLoans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestStore_SetLoanStatusNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.SetLoanStatus(context.Background(), 999, bank.LoanClosed)
	assert.ErrorIs(t, err, bank.ErrLoanNotFound)
}

// =============================================================================
// SCHEDULE TESTS
// =============================================================================

func TestStore_ScheduleRoundTrip(t *testing.T) {
	// GIVEN: A generated schedule with one installment mutated to a paid
	//        state carrying penalty figures
	// THEN: Every field round-trips exactly, decimals included

	s := newTestStore(t)
	ctx := context.Background()

	l := testLoan()
	require.NoError(t, s.CreateLoan(ctx, l))

	sched, err := loan.Generate(loan.Terms{
		Principal:         l.Principal,
		TermMonths:        l.TermMonths,
		AnnualRatePercent: l.AnnualRatePercent,
		StartDate:         l.StartDate,
	})
	require.NoError(t, err)

	paidOn := loan.NewDate(2025, time.August, 5)
	sched.Installments[0].Status = loan.StatusPaid
	sched.Installments[0].PaidAmount = sched.Installments[0].Amount.Add(dec("189.23"))
	sched.Installments[0].PaidDate = &paidOn
	sched.Installments[1].Status = loan.StatusPartiallyPaid
	sched.Installments[1].PaidAmount = dec("100.50")
	sched.Installments[1].Penalty = dec("23.65")
	sched.Installments[1].PenaltyDays = 1

	require.NoError(t, s.SaveSchedule(ctx, l.ID, sched))

	got, err := s.LoadSchedule(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, got.Installments, len(sched.Installments))

	for i := range sched.Installments {
		want, have := &sched.Installments[i], &got.Installments[i]
		assert.Equal(t, want.Sequence, have.Sequence)
		assert.True(t, have.DueDate.Equal(want.DueDate))
		assert.True(t, have.Amount.Equal(want.Amount), "amount %d", i)
		assert.True(t, have.Principal.Equal(want.Principal), "principal %d", i)
		assert.True(t, have.Interest.Equal(want.Interest), "interest %d", i)
		assert.True(t, have.RemainingBalance.Equal(want.RemainingBalance), "balance %d", i)
		assert.Equal(t, want.Status, have.Status)
		assert.True(t, have.PaidAmount.Equal(want.PaidAmount), "paid %d", i)
		assert.True(t, have.Penalty.Equal(want.Penalty), "penalty %d", i)
		assert.Equal(t, want.PenaltyDays, have.PenaltyDays)
	}

	require.NotNil(t, got.Installments[0].PaidDate)
	assert.True(t, got.Installments[0].PaidDate.Equal(paidOn))
	assert.Nil(t, got.Installments[1].PaidDate)
}

func TestStore_SaveScheduleReplaces(t *testing.T) {
	// Saving twice leaves exactly one set of rows, not an accumulation.
	s := newTestStore(t)
	ctx := context.Background()

	l := testLoan()
	require.NoError(t, s.CreateLoan(ctx, l))

	sched, err := loan.Generate(loan.Terms{
		Principal:         dec("10000"),
		TermMonths:        6,
		AnnualRatePercent: dec("12.5"),
		StartDate:         loan.NewDate(2025, time.March, 14),
	})
	require.NoError(t, err)

	require.NoError(t, s.SaveSchedule(ctx, l.ID, sched))
	sched.Installments[0].PaidAmount = dec("100")
	sched.Installments[0].Status = loan.StatusPartiallyPaid
	require.NoError(t, s.SaveSchedule(ctx, l.ID, sched))

	got, err := s.LoadSchedule(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, got.Installments, 6)
	assert.True(t, got.Installments[0].PaidAmount.Equal(dec("100")))
}

func TestStore_LoadScheduleUnknownLoan(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadSchedule(context.Background(), 999)
	assert.ErrorIs(t, err, bank.ErrLoanNotFound)
}

func TestStore_LoadScheduleEmpty(t *testing.T) {
	// A loan with no installments saved yet yields an empty schedule value,
	// not an error. Interpreting emptiness is the caller's concern.
	s := newTestStore(t)
	ctx := context.Background()

	l := testLoan()
	require.NoError(t, s.CreateLoan(ctx, l))

	got, err := s.LoadSchedule(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Installments)
}

// =============================================================================
// PAYMENT TESTS
// =============================================================================

func TestStore_PaymentsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := testLoan()
	require.NoError(t, s.CreateLoan(ctx, l))

	p1 := &bank.Payment{
		LoanID:      l.ID,
		Amount:      dec("23653.36"),
		PenaltyPaid: decimal.Zero,
		PaidAt:      loan.NewDate(2025, time.July, 28),
	}
	p2 := &bank.Payment{
		LoanID:      l.ID,
		Amount:      dec("24000.00"),
		PenaltyPaid: dec("236.53"),
		PaidAt:      loan.NewDate(2025, time.September, 7),
	}
	require.NoError(t, s.RecordPayment(ctx, p1))
	require.NoError(t, s.RecordPayment(ctx, p2))
	assert.NotZero(t, p1.ID)
	assert.Greater(t, p2.ID, p1.ID)

	got, err := s.ListPayments(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].Amount.Equal(p1.Amount))
	assert.True(t, got[0].PenaltyPaid.IsZero())
	assert.True(t, got[0].PaidAt.Equal(p1.PaidAt))
	assert.True(t, got[1].PenaltyPaid.Equal(dec("236.53")))
}

func TestStore_ListPaymentsEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	l := testLoan()
	require.NoError(t, s.CreateLoan(ctx, l))

	got, err := s.ListPayments(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
