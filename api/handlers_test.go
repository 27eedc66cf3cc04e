package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/bank"
	"github.com/warp/loan-engine/bank/store"
	"github.com/warp/loan-engine/loan"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	book := bank.NewBook(store.NewMemory(), nil)
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(book, nil)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		// List endpoints return arrays; those tests decode on their own.
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

// createLoan opens a loan starting today so nothing is overdue yet.
func createLoan(t *testing.T, srv *httptest.Server, amount string, months int) int64 {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/loans", api.CreateLoanRequest{
		Amount:     amount,
		TermMonths: months,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return int64(body["id"].(float64))
}

// =============================================================================
// CREATE TESTS
// =============================================================================

func TestCreateLoan(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/loans", api.CreateLoanRequest{
		Amount:     "500000",
		TermMonths: 24,
		AnnualRate: "12.5",
		StartDate:  "2025-06-01",
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "500000.00", body["principal"])
	assert.Equal(t, float64(24), body["term_months"])
	assert.Equal(t, "12.5", body["annual_rate"])
	assert.Equal(t, "2025-06-01", body["start_date"])
	assert.Equal(t, "active", body["status"])
	assert.NotEmpty(t, body["monthly_payment"])
	assert.NotEmpty(t, body["total_amount"])
}

func TestCreateLoan_DefaultsApplied(t *testing.T) {
	// Omitted rate falls back to 12.5 and start date to today.
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/loans", api.CreateLoanRequest{
		Amount:     "100000",
		TermMonths: 12,
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "12.5", body["annual_rate"])
	assert.Equal(t, loan.Today().String(), body["start_date"])
}

func TestCreateLoan_Validation(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		req  api.CreateLoanRequest
	}{
		{"amount below minimum", api.CreateLoanRequest{Amount: "9999.99", TermMonths: 12}},
		{"amount above maximum", api.CreateLoanRequest{Amount: "5000000.01", TermMonths: 12}},
		{"amount not a number", api.CreateLoanRequest{Amount: "lots", TermMonths: 12}},
		{"term too short", api.CreateLoanRequest{Amount: "100000", TermMonths: 5}},
		{"term too long", api.CreateLoanRequest{Amount: "100000", TermMonths: 61}},
		{"bad rate", api.CreateLoanRequest{Amount: "100000", TermMonths: 12, AnnualRate: "high"}},
		{"bad start date", api.CreateLoanRequest{Amount: "100000", TermMonths: 12, StartDate: "01/06/2025"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/loans", tc.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}

	// Nothing was created by the rejected requests.
	listResp, err := http.Get(srv.URL + "/api/loans")
	require.NoError(t, err)
	defer listResp.Body.Close()
	var loans []api.LoanDTO
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&loans))
	assert.Empty(t, loans)
}

func TestCreateLoan_BoundaryValuesAccepted(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct {
		amount string
		months int
	}{
		{"10000", 6},
		{"5000000", 60},
	} {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/loans", api.CreateLoanRequest{
			Amount:     tc.amount,
			TermMonths: tc.months,
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode, "amount %s term %d", tc.amount, tc.months)
	}
}

// =============================================================================
// READ TESTS
// =============================================================================

func TestGetLoan_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/loans/42", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestGetLoan_BadID(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/loans/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSchedule(t *testing.T) {
	srv := newTestServer(t)
	id := createLoan(t, srv, "120000", 12)

	resp, err := http.Get(fmt.Sprintf("%s/api/loans/%d/schedule", srv.URL, id))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sched api.ScheduleResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sched))

	assert.Equal(t, id, sched.Loan.ID)
	require.Len(t, sched.Installments, 12)
	assert.False(t, sched.Settled)
	assert.NotEqual(t, "0.00", sched.Outstanding)

	for i, inst := range sched.Installments {
		assert.Equal(t, i+1, inst.Sequence)
		assert.Equal(t, "pending", inst.Status)
		assert.Equal(t, "0.00", inst.Penalty)
	}
}

// =============================================================================
// PAYMENT TESTS
// =============================================================================

func TestMakePayment_PartialAndConfirmation(t *testing.T) {
	srv := newTestServer(t)
	id := createLoan(t, srv, "120000", 12)

	resp, body := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/loans/%d/payments", srv.URL, id),
		api.MakePaymentRequest{Amount: "5000"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "5000.00", body["amount"])
	assert.Equal(t, "5000.00", body["applied"])
	assert.Equal(t, false, body["settled"])
	assert.Contains(t, body["message"], "paid toward installment #1")

	installments := body["installments"].([]any)
	require.Len(t, installments, 1)
	first := installments[0].(map[string]any)
	assert.Equal(t, "partially_paid", first["status"])
	assert.Equal(t, "5000.00", first["paid_amount"])
}

func TestMakePayment_SettlesInstallment(t *testing.T) {
	srv := newTestServer(t)
	id := createLoan(t, srv, "120000", 12)

	// Read the level payment off the created loan, pay exactly that.
	getResp, loanBody := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/loans/%d", srv.URL, id), nil)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	monthly := loanBody["monthly_payment"].(string)

	resp, body := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/loans/%d/payments", srv.URL, id),
		api.MakePaymentRequest{Amount: monthly})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["message"], "installment #1 settled in full")

	installments := body["installments"].([]any)
	require.Len(t, installments, 1)
	assert.Equal(t, "paid", installments[0].(map[string]any)["status"])
}

func TestMakePayment_Rejections(t *testing.T) {
	srv := newTestServer(t)
	id := createLoan(t, srv, "120000", 12)

	t.Run("non-positive amount", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/loans/%d/payments", srv.URL, id),
			api.MakePaymentRequest{Amount: "0"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("amount not a number", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/loans/%d/payments", srv.URL, id),
			api.MakePaymentRequest{Amount: "everything"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown loan", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/loans/999/payments",
			api.MakePaymentRequest{Amount: "100"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestListPayments_AuditLog(t *testing.T) {
	srv := newTestServer(t)
	id := createLoan(t, srv, "120000", 12)

	for _, amount := range []string{"3000", "2000"} {
		resp, _ := doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/loans/%d/payments", srv.URL, id),
			api.MakePaymentRequest{Amount: amount})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/loans/%d/payments", srv.URL, id))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []api.PaymentRecordDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 2)
	assert.Equal(t, "3000.00", records[0].Amount)
	assert.Equal(t, "2000.00", records[1].Amount)
	assert.Equal(t, loan.Today().String(), records[0].PaidAt)
}

// =============================================================================
// ADMIN TESTS
// =============================================================================

func TestTriggerSweep(t *testing.T) {
	srv := newTestServer(t)
	createLoan(t, srv, "120000", 12)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/admin/sweep", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, loan.Today().String(), body["as_of"])
	// Fresh loans have nothing overdue, so the sweep changes nothing.
	assert.Equal(t, float64(0), body["loans_changed"])
}
