// Package http exposes the JSON API: recurring definitions, the pending
// approval ledger, the realized ledger and its reports.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"flujo/internal/core"
	"flujo/internal/rates"
	"flujo/internal/storage"
)

// Narrow service interfaces, one per route group.
type (
	DefinitionStore interface {
		CreateDefinition(ctx context.Context, d core.RecurringDefinition) (core.RecurringDefinition, error)
		UpdateDefinition(ctx context.Context, d core.RecurringDefinition) error
		DeleteDefinition(ctx context.Context, id string) error
		GetDefinition(ctx context.Context, id string) (core.RecurringDefinition, error)
		ListDefinitions(ctx context.Context) ([]core.RecurringDefinition, error)
	}

	ApprovalLedger interface {
		List(ctx context.Context, f storage.OccurrenceFilter) ([]core.PendingOccurrence, error)
		Confirm(ctx context.Context, id string) (core.RealizedTransaction, error)
		Reschedule(ctx context.Context, id string, newDueDate core.Date) (core.PendingOccurrence, error)
		Cancel(ctx context.Context, id string) error
	}

	TransactionWriter interface {
		CreateManual(ctx context.Context, t core.RealizedTransaction) (core.RealizedTransaction, error)
	}

	Reporter interface {
		History(ctx context.Context) ([]core.DayGroup, error)
		SummarizeMonth(ctx context.Context, year, month int, displayCurrency string) (core.MonthlySummary, error)
	}

	CatalogStore interface {
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		ListAccounts(ctx context.Context) ([]core.Account, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	CurrencyLister interface {
		Currencies(ctx context.Context) []rates.Currency
	}
)

type Server struct {
	http.Server

	definitions  DefinitionStore
	ledger       ApprovalLedger
	transactions TransactionWriter
	reports      Reporter
	catalog      CatalogStore
	currencies   CurrencyLister

	// loc is the calendar zone for defaulted report windows; it must match
	// the location the aggregation engine groups by.
	loc *time.Location
	now func() time.Time

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

func NewServer(addr string, defs DefinitionStore, ledger ApprovalLedger, txs TransactionWriter, reports Reporter, catalog CatalogStore, currencies CurrencyLister, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		definitions:  defs,
		ledger:       ledger,
		transactions: txs,
		reports:      reports,
		catalog:      catalog,
		currencies:   currencies,
		loc:          loc,
		now:          time.Now,
		rateLimiter:  newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /recurring-transactions", s.guard(s.handleListDefinitions))
	mux.HandleFunc("POST /recurring-transactions", s.guard(s.handleCreateDefinition))
	mux.HandleFunc("GET /recurring-transactions/{id}", s.guard(s.handleGetDefinition))
	mux.HandleFunc("PUT /recurring-transactions/{id}", s.guard(s.handleUpdateDefinition))
	mux.HandleFunc("DELETE /recurring-transactions/{id}", s.guard(s.handleDeleteDefinition))

	mux.HandleFunc("GET /pending-approval-transactions", s.guard(s.handleListOccurrences))
	mux.HandleFunc("POST /pending-approval-transactions/{id}/confirm", s.guard(s.handleConfirm))
	mux.HandleFunc("POST /pending-approval-transactions/{id}/reschedule", s.guard(s.handleReschedule))
	mux.HandleFunc("POST /pending-approval-transactions/{id}/cancel", s.guard(s.handleCancel))

	mux.HandleFunc("GET /transactions", s.guard(s.handleListTransactions))
	mux.HandleFunc("POST /transactions", s.guard(s.handleCreateTransaction))
	mux.HandleFunc("GET /reports/monthly-summary", s.guard(s.handleMonthlySummary))

	mux.HandleFunc("GET /accounts", s.guard(s.handleListAccounts))
	mux.HandleFunc("POST /accounts", s.guard(s.handleCreateAccount))
	mux.HandleFunc("GET /categories", s.guard(s.handleListCategories))
	mux.HandleFunc("POST /categories", s.guard(s.handleCreateCategory))
	mux.HandleFunc("GET /currencies", s.guard(s.handleListCurrencies))

	return s
}

// guard wraps a handler with rate limiting, security headers and request
// logging.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)
		if !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP,
				"path", r.URL.Path)
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// Shutdown stops the rate limiter janitor and the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}
