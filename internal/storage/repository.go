package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the record store. Every record query filters by both
// record id and owner id, so a foreign record is indistinguishable from a
// missing one.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
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

// ---- users and sessions ----

func (r *SQLiteRepository) CreateUser(ctx context.Context, name, email, passwordHash string) (core.User, error) {
	u := core.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.User{}, core.ErrEmailTaken
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, time.Now().UTC(), expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UserByToken resolves a bearer token to its user. Expired sessions are
// deleted on sight and reported as not found.
func (r *SQLiteRepository) UserByToken(ctx context.Context, token string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email, u.password_hash, u.created_at, s.expires_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ?`, token)

	var u core.User
	var expiresAt time.Time
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("query session: %w", err)
	}
	if time.Now().After(expiresAt) {
		_, _ = r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.ErrNotFound
		}
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// ---- income ----

func (r *SQLiteRepository) ListIncomes(ctx context.Context, userID string) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, description, date, created_at
		 FROM income WHERE user_id = ?
		 ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query income: %w", err)
	}
	defer rows.Close()

	incomes := []core.Income{}
	for rows.Next() {
		var (
			in     core.Income
			amount string
			desc   sql.NullString
		)
		if err := rows.Scan(&in.ID, &in.UserID, &amount, &desc, &in.Date, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		if in.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse income amount %q: %w", amount, err)
		}
		if desc.Valid {
			in.Description = &desc.String
		}
		incomes = append(incomes, in)
	}
	return incomes, rows.Err()
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, userID string, d core.RecordDraft) (core.Income, error) {
	in := core.Income{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      d.Amount,
		Description: d.Description,
		Date:        d.Date,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO income (id, user_id, amount, description, date, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.UserID, in.Amount.String(), nullable(in.Description), in.Date, in.CreatedAt)
	if err != nil {
		return core.Income{}, fmt.Errorf("insert income: %w", err)
	}
	return in, nil
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, userID, id string, d core.RecordDraft) (core.Income, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE income SET amount = ?, description = ?, date = ? WHERE id = ? AND user_id = ?`,
		d.Amount.String(), nullable(d.Description), d.Date, id, userID)
	if err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.Income{}, fmt.Errorf("update income rows: %w", err)
	} else if n == 0 {
		return core.Income{}, core.ErrNotFound
	}
	return r.getIncome(ctx, userID, id)
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, userID, id string) error {
	return r.deleteRecord(ctx, "income", userID, id)
}

func (r *SQLiteRepository) getIncome(ctx context.Context, userID, id string) (core.Income, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, description, date, created_at
		 FROM income WHERE id = ? AND user_id = ?`, id, userID)

	var (
		in     core.Income
		amount string
		desc   sql.NullString
	)
	if err := row.Scan(&in.ID, &in.UserID, &amount, &desc, &in.Date, &in.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Income{}, core.ErrNotFound
		}
		return core.Income{}, fmt.Errorf("scan income: %w", err)
	}
	var err error
	if in.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Income{}, fmt.Errorf("parse income amount %q: %w", amount, err)
	}
	if desc.Valid {
		in.Description = &desc.String
	}
	return in, nil
}

// ---- expenses ----

func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, category, description, date, created_at
		 FROM expenses WHERE user_id = ?
		 ORDER BY date DESC, created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		ex, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, ex)
	}
	return expenses, rows.Err()
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, userID string, d core.RecordDraft) (core.Expense, error) {
	ex := core.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      d.Amount,
		Category:    d.Category,
		Description: d.Description,
		Date:        d.Date,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, user_id, amount, category, description, date, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.UserID, ex.Amount.String(), ex.Category, nullable(ex.Description), ex.Date, ex.CreatedAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return ex, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, userID, id string, d core.RecordDraft) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, category = ?, description = ?, date = ? WHERE id = ? AND user_id = ?`,
		d.Amount.String(), d.Category, nullable(d.Description), d.Date, id, userID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.Expense{}, fmt.Errorf("update expense rows: %w", err)
	} else if n == 0 {
		return core.Expense{}, core.ErrNotFound
	}
	return r.getExpense(ctx, userID, id)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id string) error {
	return r.deleteRecord(ctx, "expenses", userID, id)
}

func (r *SQLiteRepository) getExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, category, description, date, created_at
		 FROM expenses WHERE id = ? AND user_id = ?`, id, userID)

	var (
		ex     core.Expense
		amount string
		desc   sql.NullString
	)
	if err := row.Scan(&ex.ID, &ex.UserID, &amount, &ex.Category, &desc, &ex.Date, &ex.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, core.ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	var err error
	if ex.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("parse expense amount %q: %w", amount, err)
	}
	if desc.Valid {
		ex.Description = &desc.String
	}
	return ex, nil
}

// deleteRecord removes a record scoped to its owner. Zero rows affected
// means the id is missing or foreign; both surface as ErrNotFound rather
// than silent success.
func (r *SQLiteRepository) deleteRecord(ctx context.Context, table, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows from %s: %w", table, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		ex     core.Expense
		amount string
		desc   sql.NullString
	)
	if err := s.Scan(&ex.ID, &ex.UserID, &amount, &ex.Category, &desc, &ex.Date, &ex.CreatedAt); err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	var err error
	if ex.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("parse expense amount %q: %w", amount, err)
	}
	if desc.Valid {
		ex.Description = &desc.String
	}
	return ex, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
