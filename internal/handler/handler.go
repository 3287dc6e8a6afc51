package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/adakita/loan-service/internal/middleware"
	"github.com/adakita/loan-service/internal/models"
	"github.com/adakita/loan-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// RateSource supplies the current benchmark lending rate.
type RateSource interface {
	GetKeyRate() (float64, error)
}

// Handler maps HTTP requests to service operations and enforces the
// per-operation role checks.
type Handler struct {
	svc   *service.Service
	rates RateSource
	log   *logrus.Logger
}

// NewHandler initializes a new handler. rates may be nil when the benchmark
// rate integration is not configured.
func NewHandler(svc *service.Service, rates RateSource, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, rates: rates, log: log}
}

type loanLimitUpdateRequest struct {
	LimitAmount *float64 `json:"limit_amount"`
	Status      *string  `json:"status"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}

// writeServiceError maps service failures to response codes without leaking
// internal detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var transition *service.TransitionError
	switch {
	case errors.Is(err, service.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.As(err, &transition):
		writeError(w, http.StatusBadRequest, transition.Reason)
	default:
		h.log.Errorf("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// GetLoanLimitByID returns a single loan limit. Admin only.
func (h *Handler) GetLoanLimitByID(w http.ResponseWriter, r *http.Request) {
	if middleware.RoleFromContext(r.Context()) != models.RoleAdmin {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan limit id")
		return
	}

	resp, err := h.svc.GetLoanLimitByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLoanLimit returns the caller's own loan limit for the user role, or
// every loan limit for the admin role.
func (h *Handler) GetLoanLimit(w http.ResponseWriter, r *http.Request) {
	switch middleware.RoleFromContext(r.Context()) {
	case models.RoleUser:
		resp, err := h.svc.GetLoanLimitByUserID(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case models.RoleAdmin:
		resp, err := h.svc.GetAllLoanLimits(r.Context())
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		w.WriteHeader(http.StatusForbidden)
	}
}

// UpdateLoanLimit applies a maker proposal or a checker decision to a loan
// limit. The wire payload is decoded into the matching change request here;
// the transition rules live in the service.
func (h *Handler) UpdateLoanLimit(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())
	if role != models.RoleMaker && role != models.RoleChecker {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan limit id")
		return
	}

	var body loanLimitUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var change service.LimitChange
	if role == models.RoleMaker {
		if body.LimitAmount == nil || *body.LimitAmount < 0 {
			writeError(w, http.StatusBadRequest, "Limit amount must be >= 0")
			return
		}
		change = service.ProposeAmount{Amount: *body.LimitAmount}
	} else {
		if body.Status == nil || (*body.Status != models.StatusApproved && *body.Status != models.StatusRejected) {
			writeError(w, http.StatusBadRequest, "Invalid status: should approved/rejected")
			return
		}
		change = service.ResolveProposal{Outcome: *body.Status}
	}

	resp, err := h.svc.UpdateLoanLimit(r.Context(), id, role, change)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Username == "" || body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	user, err := h.svc.Register(body.Username, body.Email, body.Password, body.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := h.svc.Login(body.Email, body.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GetBenchmarkRate returns the current benchmark lending rate
func (h *Handler) GetBenchmarkRate(w http.ResponseWriter, r *http.Request) {
	if h.rates == nil {
		writeError(w, http.StatusServiceUnavailable, "benchmark rate not configured")
		return
	}

	rate, err := h.rates.GetKeyRate()
	if err != nil {
		h.log.Errorf("Failed to get benchmark rate: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"key_rate": rate})
}
