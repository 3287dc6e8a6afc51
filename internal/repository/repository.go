package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/adakita/loan-service/internal/models"
)

// ErrNotFound is returned when no row matches the lookup.
var ErrNotFound = errors.New("record not found")

const loanLimitColumns = "limit_id, user_id, limit_amount, available_amount, status, created_at, modified_at"

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanLoanLimit(row interface{ Scan(...any) error }) (*models.LoanLimit, error) {
	limit := &models.LoanLimit{}
	err := row.Scan(&limit.ID, &limit.UserID, &limit.LimitAmount, &limit.AvailableAmount,
		&limit.Status, &limit.CreatedAt, &limit.ModifiedAt)
	if err != nil {
		return nil, err
	}
	return limit, nil
}

// FindLoanLimitByID retrieves a loan limit by its id
func (r *Repository) FindLoanLimitByID(id int64) (*models.LoanLimit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM adakita.loan_limits
		WHERE limit_id = $1`, loanLimitColumns)
	limit, err := scanLoanLimit(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find loan limit %d: %w", id, err)
	}
	return limit, nil
}

// FindLoanLimitByUserID retrieves the loan limit owned by the given user
func (r *Repository) FindLoanLimitByUserID(userID int64) (*models.LoanLimit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM adakita.loan_limits
		WHERE user_id = $1`, loanLimitColumns)
	limit, err := scanLoanLimit(r.db.QueryRow(query, userID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find loan limit for user %d: %w", userID, err)
	}
	return limit, nil
}

// FindAllLoanLimits retrieves every loan limit record
func (r *Repository) FindAllLoanLimits() ([]*models.LoanLimit, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM adakita.loan_limits
		ORDER BY limit_id`, loanLimitColumns)
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list loan limits: %w", err)
	}
	defer rows.Close()

	var limits []*models.LoanLimit
	for rows.Next() {
		limit, err := scanLoanLimit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan limit: %w", err)
		}
		limits = append(limits, limit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loan limits: %w", err)
	}
	return limits, nil
}

// SaveLoanLimit persists an updated loan limit and returns the stored row
func (r *Repository) SaveLoanLimit(limit *models.LoanLimit) (*models.LoanLimit, error) {
	query := fmt.Sprintf(`
		UPDATE adakita.loan_limits
		SET limit_amount = $2, available_amount = $3, status = $4, modified_at = $5
		WHERE limit_id = $1
		RETURNING %s`, loanLimitColumns)
	saved, err := scanLoanLimit(r.db.QueryRow(query,
		limit.ID, limit.LimitAmount, limit.AvailableAmount, limit.Status, limit.ModifiedAt))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save loan limit %d: %w", limit.ID, err)
	}
	return saved, nil
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(user *models.User) error {
	query := `
		INSERT INTO adakita.users (username, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRow(query, user.Username, user.Email, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail retrieves a user by email
func (r *Repository) FindUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, role, created_at
		FROM adakita.users
		WHERE email = $1`
	err := r.db.QueryRow(query, email).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByID retrieves a user by id
func (r *Repository) FindUserByID(id int64) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, role, created_at
		FROM adakita.users
		WHERE id = $1`
	err := r.db.QueryRow(query, id).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %d: %w", id, err)
	}
	return user, nil
}
