package models

import "time"

// Loan limit lifecycle statuses.
const (
	StatusInactive  = "inactive"
	StatusSuggested = "suggested"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

// Roles known to the service. RoleUnauthenticated is the sentinel assigned
// to requests without a valid credential.
const (
	RoleUser            = "user"
	RoleAdmin           = "admin"
	RoleMaker           = "maker"
	RoleChecker         = "checker"
	RoleUnauthenticated = "unauthenticated"
)

// LoanLimit represents a user's loan limit record. The store owns the
// authoritative copy; the cache holds disposable JSON snapshots of it.
type LoanLimit struct {
	ID              int64     `json:"limit_id"`
	UserID          int64     `json:"user_id"`
	LimitAmount     float64   `json:"limit_amount"`
	AvailableAmount float64   `json:"available_amount"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	ModifiedAt      time.Time `json:"modified_at"`
}

// LoanLimitResponse is the read projection returned to callers. It is never
// persisted or cached.
type LoanLimitResponse struct {
	LoanLimitID     int64     `json:"loan_limit_id"`
	UserID          int64     `json:"user_id"`
	LimitAmount     float64   `json:"limit_amount"`
	AvailableAmount float64   `json:"available_amount"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	ModifiedAt      time.Time `json:"modified_at"`
}
