package http

import (
	"time"

	"flujo/internal/core"
)

// Wire representations. Amounts and rates travel as decimal strings so no
// precision is lost in JSON numbers.

type definitionJSON struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Amount          string `json:"amount"`
	Direction       string `json:"direction"`
	AccountID       string `json:"accountId"`
	CategoryID      string `json:"categoryId"`
	Frequency       string `json:"frequency"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate,omitempty"`
	LastGeneratedAt string `json:"lastGeneratedAt,omitempty"`
	Icon            string `json:"icon,omitempty"`
}

func toDefinitionJSON(d core.RecurringDefinition) definitionJSON {
	out := definitionJSON{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Amount:      d.Amount.String(),
		Direction:   string(d.Direction),
		AccountID:   d.AccountID,
		CategoryID:  d.CategoryID,
		Frequency:   string(d.Frequency),
		StartDate:   d.StartDate.String(),
		Icon:        d.Icon,
	}
	if !d.EndDate.IsZero() {
		out.EndDate = d.EndDate.String()
	}
	if !d.LastGeneratedAt.IsZero() {
		out.LastGeneratedAt = d.LastGeneratedAt.String()
	}
	return out
}

type definitionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Direction   string `json:"direction"`
	AccountID   string `json:"accountId"`
	CategoryID  string `json:"categoryId"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Icon        string `json:"icon"`
}

func (req definitionRequest) toDomain() (core.RecurringDefinition, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.RecurringDefinition{}, err
	}
	direction, err := core.ParseDirection(req.Direction)
	if err != nil {
		return core.RecurringDefinition{}, err
	}
	frequency, err := core.ParseFrequency(req.Frequency)
	if err != nil {
		// A bad frequency in a request is caller input, not stored state.
		return core.RecurringDefinition{}, &core.ValidationError{Field: "frequency", Reason: "unknown frequency"}
	}
	startDate, err := core.ParseDate(req.StartDate)
	if err != nil {
		return core.RecurringDefinition{}, &core.ValidationError{Field: "startDate", Reason: "must be YYYY-MM-DD"}
	}

	d := core.RecurringDefinition{
		Name:        req.Name,
		Description: req.Description,
		Amount:      amount,
		Direction:   direction,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Frequency:   frequency,
		StartDate:   startDate,
		Icon:        req.Icon,
	}
	if req.EndDate != "" {
		endDate, err := core.ParseDate(req.EndDate)
		if err != nil {
			return core.RecurringDefinition{}, &core.ValidationError{Field: "endDate", Reason: "must be YYYY-MM-DD"}
		}
		d.EndDate = endDate
	}
	if err := d.Validate(); err != nil {
		return core.RecurringDefinition{}, err
	}
	return d, nil
}

type occurrenceJSON struct {
	ID                    string `json:"id"`
	RecurringDefinitionID string `json:"recurringTransactionId"`
	DueDate               string `json:"dueDate"`
	Status                string `json:"status"`
	Description           string `json:"description"`
	Direction             string `json:"direction"`
	Amount                string `json:"amount"`
	AccountID             string `json:"accountId"`
	AccountCurrencyCode   string `json:"accountCurrencyCode"`
	CategoryID            string `json:"categoryId"`
	CategoryName          string `json:"categoryName,omitempty"`
	Icon                  string `json:"icon,omitempty"`
}

func toOccurrenceJSON(o core.PendingOccurrence) occurrenceJSON {
	return occurrenceJSON{
		ID:                    o.ID,
		RecurringDefinitionID: o.RecurringDefinitionID,
		DueDate:               o.DueDate.String(),
		Status:                string(o.Status),
		Description:           o.Description,
		Direction:             string(o.Direction),
		Amount:                o.Amount.String(),
		AccountID:             o.AccountID,
		AccountCurrencyCode:   o.AccountCurrencyCode,
		CategoryID:            o.CategoryID,
		CategoryName:          o.CategoryName,
		Icon:                  o.Icon,
	}
}

type transactionJSON struct {
	ID                  string  `json:"id"`
	Date                string  `json:"date"`
	Amount              string  `json:"amount"`
	Direction           string  `json:"direction"`
	Description         string  `json:"description"`
	AccountID           string  `json:"accountId"`
	AccountCurrencyCode string  `json:"accountCurrencyCode"`
	CategoryID          string  `json:"categoryId"`
	ExchangeRate        *string `json:"exchangeRate"`
	Icon                string  `json:"icon,omitempty"`
}

func toTransactionJSON(t core.RealizedTransaction) transactionJSON {
	out := transactionJSON{
		ID:                  t.ID,
		Date:                t.Date.UTC().Format(time.RFC3339),
		Amount:              t.Amount.String(),
		Direction:           string(t.Direction),
		Description:         t.Description,
		AccountID:           t.AccountID,
		AccountCurrencyCode: t.AccountCurrencyCode,
		CategoryID:          t.CategoryID,
		Icon:                t.Icon,
	}
	if t.ExchangeRate.Valid {
		rate := t.ExchangeRate.Decimal.String()
		out.ExchangeRate = &rate
	}
	return out
}

type dayGroupJSON struct {
	Date  string            `json:"date"`
	Items []transactionJSON `json:"items"`
}

func toDayGroupsJSON(groups []core.DayGroup) []dayGroupJSON {
	out := make([]dayGroupJSON, 0, len(groups))
	for _, g := range groups {
		items := make([]transactionJSON, 0, len(g.Items))
		for _, t := range g.Items {
			items = append(items, toTransactionJSON(t))
		}
		out = append(out, dayGroupJSON{Date: g.DateKey, Items: items})
	}
	return out
}

type summaryJSON struct {
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	TotalIncome   string `json:"totalIncome"`
	TotalSpending string `json:"totalSpending"`
	Balance       string `json:"balance"`
	CurrencyCode  string `json:"currencyCode"`
	Approximate   bool   `json:"approximate"`
}

func toSummaryJSON(s core.MonthlySummary) summaryJSON {
	return summaryJSON{
		Year:          s.Year,
		Month:         s.Month,
		TotalIncome:   s.TotalIncome.String(),
		TotalSpending: s.TotalSpending.String(),
		Balance:       s.Balance.String(),
		CurrencyCode:  s.CurrencyCode,
		Approximate:   s.Approximate,
	}
}

type accountJSON struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Balance      string `json:"balance"`
	CurrencyCode string `json:"currencyCode"`
}

func toAccountJSON(a core.Account) accountJSON {
	return accountJSON{
		ID:           a.ID,
		Name:         a.Name,
		Balance:      a.Balance.String(),
		CurrencyCode: a.CurrencyCode,
	}
}

type categoryJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}
