package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flujo/internal/core"
	"flujo/internal/rates"
	"flujo/internal/storage"
)

type stubServices struct {
	defs        map[string]core.RecurringDefinition
	occurrences []core.PendingOccurrence
	confirmErr  error
	confirmed   core.RealizedTransaction
	summary     core.MonthlySummary
	summaryErr  error

	summaryYear  int
	summaryMonth int
}

func (s *stubServices) CreateDefinition(ctx context.Context, d core.RecurringDefinition) (core.RecurringDefinition, error) {
	d.ID = "def-new"
	s.defs[d.ID] = d
	return d, nil
}

func (s *stubServices) UpdateDefinition(ctx context.Context, d core.RecurringDefinition) error {
	if _, ok := s.defs[d.ID]; !ok {
		return core.ErrNotFound
	}
	s.defs[d.ID] = d
	return nil
}

func (s *stubServices) DeleteDefinition(ctx context.Context, id string) error {
	if _, ok := s.defs[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.defs, id)
	return nil
}

func (s *stubServices) GetDefinition(ctx context.Context, id string) (core.RecurringDefinition, error) {
	d, ok := s.defs[id]
	if !ok {
		return core.RecurringDefinition{}, core.ErrNotFound
	}
	return d, nil
}

func (s *stubServices) ListDefinitions(ctx context.Context) ([]core.RecurringDefinition, error) {
	var out []core.RecurringDefinition
	for _, d := range s.defs {
		out = append(out, d)
	}
	return out, nil
}

func (s *stubServices) List(ctx context.Context, f storage.OccurrenceFilter) ([]core.PendingOccurrence, error) {
	var out []core.PendingOccurrence
	for _, o := range s.occurrences {
		if f.Direction != "" && o.Direction != f.Direction {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *stubServices) Confirm(ctx context.Context, id string) (core.RealizedTransaction, error) {
	if s.confirmErr != nil {
		return core.RealizedTransaction{}, s.confirmErr
	}
	return s.confirmed, nil
}

func (s *stubServices) Reschedule(ctx context.Context, id string, newDueDate core.Date) (core.PendingOccurrence, error) {
	for _, o := range s.occurrences {
		if o.ID == id {
			o.DueDate = newDueDate
			o.Status = core.StatusRescheduled
			return o, nil
		}
	}
	return core.PendingOccurrence{}, core.ErrNotFound
}

func (s *stubServices) Cancel(ctx context.Context, id string) error {
	for _, o := range s.occurrences {
		if o.ID == id {
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *stubServices) CreateManual(ctx context.Context, t core.RealizedTransaction) (core.RealizedTransaction, error) {
	t.ID = "tx-new"
	return t, nil
}

func (s *stubServices) History(ctx context.Context) ([]core.DayGroup, error) {
	return nil, nil
}

func (s *stubServices) SummarizeMonth(ctx context.Context, year, month int, displayCurrency string) (core.MonthlySummary, error) {
	s.summaryYear, s.summaryMonth = year, month
	if s.summaryErr != nil {
		return core.MonthlySummary{}, s.summaryErr
	}
	return s.summary, nil
}

func (s *stubServices) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.ID = "acc-new"
	return a, nil
}

func (s *stubServices) ListAccounts(ctx context.Context) ([]core.Account, error) { return nil, nil }

func (s *stubServices) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = "cat-new"
	return c, nil
}

func (s *stubServices) ListCategories(ctx context.Context) ([]core.Category, error) { return nil, nil }

func (s *stubServices) Currencies(ctx context.Context) []rates.Currency {
	return []rates.Currency{{Code: "ARS", Name: "Argentine Peso"}, {Code: "USD", Name: "US Dollar"}}
}

func newTestServer(stub *stubServices) *Server {
	return NewServer(":0", stub, stub, stub, stub, stub, stub, time.UTC)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(&stubServices{defs: map[string]core.RecurringDefinition{}})
	defer s.rateLimiter.stop()

	assert.Equal(t, http.StatusOK, doRequest(t, s, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, s, http.MethodGet, "/readyz", "").Code)
}

func TestCreateDefinition(t *testing.T) {
	stub := &stubServices{defs: map[string]core.RecurringDefinition{}}
	s := newTestServer(stub)
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodPost, "/recurring-transactions", `{
		"name": "Rent",
		"description": "Monthly rent",
		"amount": "950.00",
		"direction": "expense",
		"accountId": "acc-1",
		"categoryId": "cat-1",
		"frequency": "monthly",
		"startDate": "2026-01-01"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got definitionJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "def-new", got.ID)
	assert.Equal(t, "950", got.Amount)
	assert.Equal(t, "monthly", got.Frequency)
}

func TestCreateDefinition_ValidationIs422(t *testing.T) {
	s := newTestServer(&stubServices{defs: map[string]core.RecurringDefinition{}})
	defer s.rateLimiter.stop()

	tests := []struct {
		name string
		body string
	}{
		{"negative amount", `{"name":"x","description":"y","amount":"-5","direction":"expense","accountId":"a","categoryId":"c","frequency":"monthly","startDate":"2026-01-01"}`},
		{"unknown frequency", `{"name":"x","description":"y","amount":"5","direction":"expense","accountId":"a","categoryId":"c","frequency":"hourly","startDate":"2026-01-01"}`},
		{"bad date", `{"name":"x","description":"y","amount":"5","direction":"expense","accountId":"a","categoryId":"c","frequency":"monthly","startDate":"January 1"}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/recurring-transactions", tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		})
	}
}

func TestGetDefinition_NotFoundIs404(t *testing.T) {
	s := newTestServer(&stubServices{defs: map[string]core.RecurringDefinition{}})
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodGet, "/recurring-transactions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirm_RateUnavailableIs409(t *testing.T) {
	stub := &stubServices{
		defs:       map[string]core.RecurringDefinition{},
		confirmErr: core.ErrRateUnavailable,
	}
	s := newTestServer(stub)
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodPost, "/pending-approval-transactions/occ-1/confirm", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	var body errorJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Retryable, "rate unavailable must be flagged retryable")
}

func TestConfirm_ReturnsTransaction(t *testing.T) {
	stub := &stubServices{
		defs: map[string]core.RecurringDefinition{},
		confirmed: core.RealizedTransaction{
			ID:                  "tx-1",
			Date:                time.Date(2026, 2, 13, 15, 0, 0, 0, time.UTC),
			Amount:              decimal.RequireFromString("100"),
			Direction:           core.Expense,
			Description:         "Rent",
			AccountCurrencyCode: "EUR",
			ExchangeRate:        decimal.NewNullDecimal(decimal.RequireFromString("1.08")),
		},
	}
	s := newTestServer(stub)
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodPost, "/pending-approval-transactions/occ-1/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got transactionJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.ExchangeRate)
	assert.Equal(t, "1.08", *got.ExchangeRate)
}

func TestReschedule(t *testing.T) {
	stub := &stubServices{
		defs: map[string]core.RecurringDefinition{},
		occurrences: []core.PendingOccurrence{{
			ID:        "occ-1",
			DueDate:   core.NewDate(2026, 2, 13),
			Status:    core.StatusPending,
			Direction: core.Expense,
			Amount:    decimal.RequireFromString("10"),
		}},
	}
	s := newTestServer(stub)
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodPost, "/pending-approval-transactions/occ-1/reschedule",
		`{"dueDate": "2026-03-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got occurrenceJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2026-03-01", got.DueDate)
	assert.Equal(t, "rescheduled", got.Status)

	rec = doRequest(t, s, http.MethodPost, "/pending-approval-transactions/occ-1/reschedule",
		`{"dueDate": "tomorrow"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListOccurrences_FilterValidation(t *testing.T) {
	s := newTestServer(&stubServices{defs: map[string]core.RecurringDefinition{}})
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodGet, "/pending-approval-transactions?direction=sideways", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/pending-approval-transactions?direction=expense", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMonthlySummary(t *testing.T) {
	stub := &stubServices{
		defs: map[string]core.RecurringDefinition{},
		summary: core.MonthlySummary{
			Year: 2026, Month: 2,
			TotalIncome:   decimal.RequireFromString("3000"),
			TotalSpending: decimal.RequireFromString("108"),
			Balance:       decimal.RequireFromString("2892"),
			CurrencyCode:  "USD",
		},
	}
	s := newTestServer(stub)
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodGet, "/reports/monthly-summary?year=2026&month=2&currency=USD", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got summaryJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "2892", got.Balance)
	assert.False(t, got.Approximate)

	rec = doRequest(t, s, http.MethodGet, "/reports/monthly-summary?month=notanumber", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMonthlySummaryDefaultsToConfiguredZone(t *testing.T) {
	stub := &stubServices{defs: map[string]core.RecurringDefinition{}}
	s := NewServer(":0", stub, stub, stub, stub, stub, stub, time.FixedZone("UTC+2", 2*60*60))
	defer s.rateLimiter.stop()

	// 23:30 UTC on Feb 28 is already March 1 in UTC+2, so the defaulted
	// window must be March, matching how the report engine buckets days.
	s.now = func() time.Time {
		return time.Date(2026, 2, 28, 23, 30, 0, 0, time.UTC)
	}

	rec := doRequest(t, s, http.MethodGet, "/reports/monthly-summary", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2026, stub.summaryYear)
	assert.Equal(t, 3, stub.summaryMonth)
}

func TestCreateTransaction(t *testing.T) {
	s := newTestServer(&stubServices{defs: map[string]core.RecurringDefinition{}})
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodPost, "/transactions", `{
		"amount": "12,50",
		"direction": "income",
		"description": "Refund",
		"accountId": "acc-1",
		"accountCurrencyCode": "usd",
		"categoryId": "cat-1"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got transactionJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "12.5", got.Amount, "decimal comma accepted")
	assert.Equal(t, "USD", got.AccountCurrencyCode, "currency code normalized")
}

func TestListCurrencies(t *testing.T) {
	s := newTestServer(&stubServices{defs: map[string]core.RecurringDefinition{}})
	defer s.rateLimiter.stop()

	rec := doRequest(t, s, http.MethodGet, "/currencies", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []rates.Currency
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "ARS", got[0].Code)
}
