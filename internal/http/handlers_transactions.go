package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"flujo/internal/core"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	groups, err := s.reports.History(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toDayGroupsJSON(groups))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date                string `json:"date"`
		Amount              string `json:"amount"`
		Direction           string `json:"direction"`
		Description         string `json:"description"`
		AccountID           string `json:"accountId"`
		AccountCurrencyCode string `json:"accountCurrencyCode"`
		CategoryID          string `json:"categoryId"`
		Icon                string `json:"icon"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		respondError(w, r, err)
		return
	}
	direction, err := core.ParseDirection(req.Direction)
	if err != nil {
		respondError(w, r, err)
		return
	}
	currency, err := core.ParseCurrencyCode(req.AccountCurrencyCode)
	if err != nil {
		respondError(w, r, err)
		return
	}

	t := core.RealizedTransaction{
		Amount:              amount,
		Direction:           direction,
		Description:         req.Description,
		AccountID:           req.AccountID,
		AccountCurrencyCode: currency,
		CategoryID:          req.CategoryID,
		Icon:                req.Icon,
	}
	if req.Date != "" {
		date, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			respondError(w, r, &core.ValidationError{Field: "date", Reason: "must be RFC 3339"})
			return
		}
		t.Date = date
	}

	created, err := s.transactions.CreateManual(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toTransactionJSON(created))
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	// Default to the current month in the configured calendar zone, the same
	// zone the report engine windows by.
	now := s.now().In(s.loc)
	year, month := now.Year(), int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, r, &core.ValidationError{Field: "year", Reason: "must be a number"})
			return
		}
		year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, r, &core.ValidationError{Field: "month", Reason: "must be a number"})
			return
		}
		month = m
	}

	currency := ""
	if v := strings.TrimSpace(r.URL.Query().Get("currency")); v != "" {
		code, err := core.ParseCurrencyCode(v)
		if err != nil {
			respondError(w, r, err)
			return
		}
		currency = code
	}

	summary, err := s.reports.SummarizeMonth(r.Context(), year, month, currency)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toSummaryJSON(summary))
}
