package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/bank"
	"github.com/warp/loan-engine/bank/store"
	"github.com/warp/loan-engine/loan"
)

func TestPenaltySweeper_Lifecycle(t *testing.T) {
	// Start is idempotent, Stop waits for the schedule to halt, and a
	// stopped sweeper can be started again.

	book := bank.NewBook(store.NewMemory(), nil)
	sweeper := api.NewPenaltySweeper(book, nil, "@hourly")

	require.NoError(t, sweeper.Start())
	require.NoError(t, sweeper.Start())
	sweeper.Stop()
	sweeper.Stop()

	require.NoError(t, sweeper.Start())
	sweeper.Stop()
}

func TestPenaltySweeper_DefaultSpec(t *testing.T) {
	book := bank.NewBook(store.NewMemory(), nil)
	sweeper := api.NewPenaltySweeper(book, nil, "")
	assert.Equal(t, "@hourly", sweeper.Spec)
}

func TestPenaltySweeper_StartRunsImmediateSweep(t *testing.T) {
	// GIVEN: A loan whose first installment is already overdue
	// WHEN: The sweeper starts
	// THEN: Penalties appear without waiting for the first cron tick

	mem := store.NewMemory()
	book := bank.NewBook(mem, nil)
	ctx := context.Background()

	start := loan.Today().AddMonths(-3)
	l, _, err := book.Open(ctx, bank.OpenRequest{
		Principal:         decimal.RequireFromString("120000"),
		TermMonths:        12,
		AnnualRatePercent: decimal.RequireFromString("12.5"),
		StartDate:         start,
	})
	require.NoError(t, err)

	sweeper := api.NewPenaltySweeper(book, nil, "@hourly")
	require.NoError(t, sweeper.Start())
	defer sweeper.Stop()

	// The initial sweep runs on its own goroutine.
	require.Eventually(t, func() bool {
		sched, err := mem.LoadSchedule(ctx, l.ID)
		if err != nil || len(sched.Installments) == 0 {
			return false
		}
		return sched.Installments[0].Penalty.IsPositive()
	}, 2*time.Second, 10*time.Millisecond)
}
