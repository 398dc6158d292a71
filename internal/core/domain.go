package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily     Frequency = "daily"
	Weekly    Frequency = "weekly"
	BiWeekly  Frequency = "biweekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

const (
	StatusPending     Status = "pending"
	StatusRescheduled Status = "rescheduled"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
)

type (
	// Frequency is the closed set of supported recurrence steps.
	Frequency string

	// Direction tells whether an amount is money coming in or going out.
	// The stored amount is always a positive magnitude; the sign lives here.
	Direction string

	// Status is the approval lifecycle state of a pending occurrence.
	Status string

	// Date is a calendar day with no time-of-day component.
	Date struct {
		time.Time
	}

	// RecurringDefinition is the generation rule for a stream of occurrences.
	RecurringDefinition struct {
		ID          string
		Name        string
		Description string
		Amount      decimal.Decimal
		Direction   Direction
		AccountID   string
		CategoryID  string
		Frequency   Frequency
		StartDate   Date
		EndDate     Date // zero = open-ended
		// LastGeneratedAt is the due date of the most recently materialized
		// occurrence. Zero means nothing was ever generated.
		LastGeneratedAt Date
		Icon            string
	}

	// PendingOccurrence is one dated obligation awaiting a user decision.
	// It references its definition weakly: deleting the definition leaves
	// already-materialized occurrences untouched.
	PendingOccurrence struct {
		ID                    string
		RecurringDefinitionID string
		DueDate               Date
		Status                Status
		Description           string
		Direction             Direction
		Amount                decimal.Decimal
		AccountID             string
		AccountCurrencyCode   string
		CategoryID            string
		CategoryName          string
		Icon                  string
	}

	// RealizedTransaction is a ledger entry produced by confirming an
	// occurrence or by direct manual entry. ExchangeRate is frozen at
	// creation time: invalid means the account currency already was the
	// base currency, valid is the account→base multiplicative rate.
	RealizedTransaction struct {
		ID                  string
		Date                time.Time
		Amount              decimal.Decimal
		Direction           Direction
		Description         string
		AccountID           string
		AccountCurrencyCode string
		CategoryID          string
		ExchangeRate        decimal.NullDecimal
		Icon                string
	}

	// Account is a user account holding a balance in one currency.
	Account struct {
		ID           string
		Name         string
		Balance      decimal.Decimal
		CurrencyCode string
	}

	// Category labels transactions for reporting.
	Category struct {
		ID   string
		Name string
		Icon string
	}

	// Profile holds per-user settings the engine needs; today that is only
	// the base accounting currency.
	Profile struct {
		UserID           string
		BaseCurrencyCode string
	}
)

// ParseFrequency validates a frequency string from storage or the API.
// Unknown values are a configuration problem, never silently defaulted.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case Daily, Weekly, BiWeekly, Monthly, Quarterly, Yearly:
		return f, nil
	default:
		return "", &ConfigurationError{Field: "frequency", Value: s}
	}
}

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Income, Expense:
		return d, nil
	default:
		return "", &ValidationError{Field: "direction", Reason: "must be income or expense"}
	}
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusRescheduled, StatusConfirmed, StatusCancelled:
		return st, nil
	default:
		return "", &ValidationError{Field: "status", Reason: "unknown status"}
	}
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its local calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD calendar date as used on the wire.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	return Date{Time: t}, nil
}

// String renders the wire format.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// AddStep advances a date by one frequency step.
func (d Date) AddStep(f Frequency) (Date, error) {
	switch f {
	case Daily:
		return Date{Time: d.AddDate(0, 0, 1)}, nil
	case Weekly:
		return Date{Time: d.AddDate(0, 0, 7)}, nil
	case BiWeekly:
		return Date{Time: d.AddDate(0, 0, 14)}, nil
	case Monthly:
		return Date{Time: d.AddDate(0, 1, 0)}, nil
	case Quarterly:
		return Date{Time: d.AddDate(0, 3, 0)}, nil
	case Yearly:
		return Date{Time: d.AddDate(1, 0, 0)}, nil
	default:
		return Date{}, &ConfigurationError{Field: "frequency", Value: string(f)}
	}
}

// Validate checks the definition invariants before it is stored.
func (d RecurringDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if len(d.Name) > 120 {
		return &ValidationError{Field: "name", Reason: "too long (max 120 characters)"}
	}
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if len(d.Description) > 200 {
		return &ValidationError{Field: "description", Reason: "too long (max 200 characters)"}
	}
	if !d.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, err := ParseDirection(string(d.Direction)); err != nil {
		return err
	}
	if _, err := ParseFrequency(string(d.Frequency)); err != nil {
		return err
	}
	if strings.TrimSpace(d.AccountID) == "" {
		return &ValidationError{Field: "accountId", Reason: "required"}
	}
	if strings.TrimSpace(d.CategoryID) == "" {
		return &ValidationError{Field: "categoryId", Reason: "required"}
	}
	if d.StartDate.IsZero() {
		return &ValidationError{Field: "startDate", Reason: "required"}
	}
	if !d.EndDate.IsZero() && d.EndDate.Before(d.StartDate.Time) {
		return &ValidationError{Field: "endDate", Reason: "must not be before startDate"}
	}
	return nil
}

// Validate checks a transaction before it is persisted.
func (t RealizedTransaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, err := ParseDirection(string(t.Direction)); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if t.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if t.ExchangeRate.Valid && !t.ExchangeRate.Decimal.IsPositive() {
		return &ValidationError{Field: "exchangeRate", Reason: "must be positive when set"}
	}
	return nil
}

// AmountInBase converts the stored magnitude to the base currency using the
// frozen rate. A missing rate means no conversion was needed.
func (t RealizedTransaction) AmountInBase() decimal.Decimal {
	if t.ExchangeRate.Valid {
		return t.Amount.Abs().Mul(t.ExchangeRate.Decimal)
	}
	return t.Amount.Abs()
}

// Signed applies the direction to the magnitude: income positive, expense
// negative. Used only when deriving balances, never for storage.
func Signed(amount decimal.Decimal, dir Direction) decimal.Decimal {
	if dir == Expense {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}
