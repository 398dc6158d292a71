package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flujo/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// BaseCurrency implements the profile lookup capability. When no profile row
// exists yet one is seeded with defaultCode.
func (r *SQLiteRepository) BaseCurrency(ctx context.Context, userID, defaultCode string) (string, error) {
	var code string
	err := r.db.QueryRowContext(ctx,
		`SELECT base_currency_code FROM profile WHERE user_id = ?`, userID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO profile (user_id, base_currency_code) VALUES (?, ?)`,
			userID, defaultCode); err != nil {
			return "", fmt.Errorf("seed profile: %w", err)
		}
		slog.InfoContext(ctx, "Seeded profile", "user_id", userID, "base_currency", defaultCode)
		return defaultCode, nil
	}
	if err != nil {
		return "", fmt.Errorf("get base currency: %w", err)
	}
	return code, nil
}

// SetBaseCurrency changes the user's base accounting currency. Historical
// transactions keep their frozen rates.
func (r *SQLiteRepository) SetBaseCurrency(ctx context.Context, userID, code string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE profile SET base_currency_code = ? WHERE user_id = ?`, code, userID)
	if err != nil {
		return fmt.Errorf("set base currency: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO profile (user_id, base_currency_code) VALUES (?, ?)`, userID, code)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
	}
	return nil
}

// CreateAccount stores a new account and returns it with its generated id.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, balance, currency_code) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.Balance.String(), a.CurrencyCode)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		"account_id", a.ID, "name", a.Name, "currency_code", a.CurrencyCode)
	return a, nil
}

// AccountCurrency implements the account-catalog lookup capability.
func (r *SQLiteRepository) AccountCurrency(ctx context.Context, accountID string) (string, error) {
	var code string
	err := r.db.QueryRowContext(ctx,
		`SELECT currency_code FROM accounts WHERE id = ?`, accountID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get account currency: %w", err)
	}
	return code, nil
}

// GetAccount returns one account by id.
func (r *SQLiteRepository) GetAccount(ctx context.Context, accountID string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, balance, currency_code FROM accounts WHERE id = ?`, accountID)
	return scanAccount(row)
}

// ListAccounts returns all accounts ordered by name.
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, balance, currency_code FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// CreateCategory stores a new category.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, icon) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.Icon)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// GetCategory returns one category by id.
func (r *SQLiteRepository) GetCategory(ctx context.Context, categoryID string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, icon FROM categories WHERE id = ?`, categoryID).
		Scan(&c.ID, &c.Name, &c.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", categoryID, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, icon FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a       core.Account
		balance string
	)
	err := row.Scan(&a.ID, &a.Name, &balance, &a.CurrencyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return core.Account{}, fmt.Errorf("parse account balance %q: %w", balance, err)
	}
	return a, nil
}

func parseNullableRate(raw sql.NullString) (decimal.NullDecimal, error) {
	if !raw.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw.String)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse exchange rate %q: %w", raw.String, err)
	}
	return decimal.NewNullDecimal(d), nil
}
