package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"flujo/internal/core"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.catalog.ListAccounts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]accountJSON, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountJSON(a))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		Balance      string `json:"balance"`
		CurrencyCode string `json:"currencyCode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if req.Name == "" {
		respondError(w, r, core.ErrEmptyName)
		return
	}
	currency, err := core.ParseCurrencyCode(req.CurrencyCode)
	if err != nil {
		respondError(w, r, err)
		return
	}

	a := core.Account{Name: req.Name, CurrencyCode: currency}
	if req.Balance != "" {
		// Unlike amounts, an opening balance may be zero or negative.
		balance, err := decimal.NewFromString(strings.ReplaceAll(req.Balance, ",", "."))
		if err != nil {
			respondError(w, r, &core.ValidationError{Field: "balance", Reason: "must be a decimal number"})
			return
		}
		a.Balance = balance
	}

	created, err := s.catalog.CreateAccount(r.Context(), a)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toAccountJSON(created))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]categoryJSON, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryJSON{ID: c.ID, Name: c.Name, Icon: c.Icon})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryJSON
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Name == "" {
		respondError(w, r, core.ErrEmptyName)
		return
	}

	created, err := s.catalog.CreateCategory(r.Context(), core.Category{Name: req.Name, Icon: req.Icon})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, categoryJSON{ID: created.ID, Name: created.Name, Icon: created.Icon})
}

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.currencies.Currencies(r.Context()))
}
