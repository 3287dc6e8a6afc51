package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/adakita/loan-service/internal/cache"
	"github.com/adakita/loan-service/internal/config"
	"github.com/adakita/loan-service/internal/middleware"
	"github.com/adakita/loan-service/internal/models"
	"github.com/adakita/loan-service/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	mu     sync.Mutex
	limits map[int64]models.LoanLimit
	users  map[int64]models.User
}

func newStubStore() *stubStore {
	return &stubStore{
		limits: make(map[int64]models.LoanLimit),
		users:  make(map[int64]models.User),
	}
}

func (s *stubStore) FindLoanLimitByID(id int64) (*models.LoanLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit, ok := s.limits[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	return &limit, nil
}

func (s *stubStore) FindLoanLimitByUserID(userID int64) (*models.LoanLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, limit := range s.limits {
		if limit.UserID == userID {
			found := limit
			return &found, nil
		}
	}
	return nil, service.ErrNotFound
}

func (s *stubStore) FindAllLoanLimits() ([]*models.LoanLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var limits []*models.LoanLimit
	for _, limit := range s.limits {
		found := limit
		limits = append(limits, &found)
	}
	return limits, nil
}

func (s *stubStore) SaveLoanLimit(limit *models.LoanLimit) (*models.LoanLimit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.limits[limit.ID]; !ok {
		return nil, service.ErrNotFound
	}
	s.limits[limit.ID] = *limit
	saved := *limit
	return &saved, nil
}

func (s *stubStore) CreateUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = int64(len(s.users) + 1)
	s.users[user.ID] = *user
	return nil
}

func (s *stubStore) FindUserByEmail(email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, service.ErrNotFound
}

func (s *stubStore) FindUserByID(id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	found := user
	return &found, nil
}

type stubRates struct {
	rate float64
	err  error
}

func (s stubRates) GetKeyRate() (float64, error) {
	return s.rate, s.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestHandler(t *testing.T) (*Handler, *stubStore) {
	t.Helper()
	store := newStubStore()
	cfg := &config.Config{JWTSecret: "test-secret-key"}
	svc := service.NewService(store, store, cache.NewMemory(), nil, cfg, testLogger())
	return NewHandler(svc, stubRates{rate: 21.0}, testLogger()), store
}

func seedLimit(store *stubStore, id, userID int64, status string) {
	store.limits[id] = models.LoanLimit{
		ID:              id,
		UserID:          userID,
		LimitAmount:     1000,
		AvailableAmount: 1000,
		Status:          status,
		CreatedAt:       time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC),
		ModifiedAt:      time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func request(method, target, id string, role string, userID int64, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req = req.WithContext(middleware.WithIdentity(context.Background(), role, userID))
	if id != "" {
		req = mux.SetURLVars(req, map[string]string{"id": id})
	}
	return req
}

func TestGetLoanLimitByID_Unauthenticated(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusInactive)

	rec := httptest.NewRecorder()
	h.GetLoanLimitByID(rec, request(http.MethodGet, "/loan-limits/7", "7", models.RoleUnauthenticated, 0, ""))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestGetLoanLimitByID_ForbiddenForNonAdminRoles(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusInactive)

	for _, role := range []string{models.RoleUser, models.RoleMaker, models.RoleChecker} {
		rec := httptest.NewRecorder()
		h.GetLoanLimitByID(rec, request(http.MethodGet, "/loan-limits/7", "7", role, 1, ""))
		assert.Equal(t, http.StatusForbidden, rec.Code, role)
	}
}

func TestGetLoanLimitByID_AdminFound(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusApproved)

	rec := httptest.NewRecorder()
	h.GetLoanLimitByID(rec, request(http.MethodGet, "/loan-limits/7", "7", models.RoleAdmin, 1, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.LoanLimitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.LoanLimitID)
	assert.Equal(t, models.StatusApproved, resp.Status)
}

func TestGetLoanLimitByID_AdminNotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.GetLoanLimitByID(rec, request(http.MethodGet, "/loan-limits/404", "404", models.RoleAdmin, 1, ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestGetLoanLimit_UserSeesOwnRecord(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusInactive)

	rec := httptest.NewRecorder()
	h.GetLoanLimit(rec, request(http.MethodGet, "/loan-limits/me", "", models.RoleUser, 42, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.LoanLimitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.UserID)
}

func TestGetLoanLimit_AdminSeesAllRecords(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 1, 10, models.StatusInactive)
	seedLimit(store, 2, 20, models.StatusApproved)

	rec := httptest.NewRecorder()
	h.GetLoanLimit(rec, request(http.MethodGet, "/loan-limits/me", "", models.RoleAdmin, 1, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []models.LoanLimitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestGetLoanLimit_ForbiddenForOtherRoles(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, role := range []string{models.RoleMaker, models.RoleChecker, models.RoleUnauthenticated} {
		rec := httptest.NewRecorder()
		h.GetLoanLimit(rec, request(http.MethodGet, "/loan-limits/me", "", role, 1, ""))
		assert.Equal(t, http.StatusForbidden, rec.Code, role)
		assert.Zero(t, rec.Body.Len(), role)
	}
}

func TestUpdateLoanLimit_MakerNegativeAmount(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusInactive)

	rec := httptest.NewRecorder()
	h.UpdateLoanLimit(rec, request(http.MethodPut, "/loan-limits/7", "7", models.RoleMaker, 1, `{"limit_amount":-5}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Limit amount must be >= 0"}`, rec.Body.String())
}

func TestUpdateLoanLimit_MakerMissingAmount(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusInactive)

	rec := httptest.NewRecorder()
	h.UpdateLoanLimit(rec, request(http.MethodPut, "/loan-limits/7", "7", models.RoleMaker, 1, `{}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Limit amount must be >= 0"}`, rec.Body.String())
}

func TestUpdateLoanLimit_CheckerInvalidStatus(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusSuggested)

	for _, body := range []string{`{"status":"pending"}`, `{"status":"suggested"}`, `{}`} {
		rec := httptest.NewRecorder()
		h.UpdateLoanLimit(rec, request(http.MethodPut, "/loan-limits/7", "7", models.RoleChecker, 1, body))

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"Invalid status: should approved/rejected"}`, rec.Body.String(), body)
	}
}

func TestUpdateLoanLimit_ForbiddenRoles(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusInactive)

	for _, role := range []string{models.RoleUser, models.RoleAdmin, models.RoleUnauthenticated} {
		rec := httptest.NewRecorder()
		h.UpdateLoanLimit(rec, request(http.MethodPut, "/loan-limits/7", "7", role, 1, `{"limit_amount":100}`))
		assert.Equal(t, http.StatusForbidden, rec.Code, role)
		assert.Zero(t, rec.Body.Len(), role)
	}
}

func TestUpdateLoanLimit_MakerProposal(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusInactive)

	rec := httptest.NewRecorder()
	h.UpdateLoanLimit(rec, request(http.MethodPut, "/loan-limits/7", "7", models.RoleMaker, 1, `{"limit_amount":2500}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.LoanLimitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusSuggested, resp.Status)
	assert.Equal(t, 2500.0, resp.LimitAmount)
	assert.Equal(t, 2500.0, resp.AvailableAmount)
}

func TestUpdateLoanLimit_CheckerResolves(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusSuggested)

	rec := httptest.NewRecorder()
	h.UpdateLoanLimit(rec, request(http.MethodPut, "/loan-limits/7", "7", models.RoleChecker, 1, `{"status":"approved"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.LoanLimitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StatusApproved, resp.Status)
}

func TestUpdateLoanLimit_CheckerCannotResolveTwice(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusApproved)

	rec := httptest.NewRecorder()
	h.UpdateLoanLimit(rec, request(http.MethodPut, "/loan-limits/7", "7", models.RoleChecker, 1, `{"status":"rejected"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"approved/rejected status can only be set once"}`, rec.Body.String())
}

func TestUpdateLoanLimit_MakerCannotProposeWhilePending(t *testing.T) {
	h, store := newTestHandler(t)
	seedLimit(store, 7, 42, models.StatusSuggested)

	rec := httptest.NewRecorder()
	h.UpdateLoanLimit(rec, request(http.MethodPut, "/loan-limits/7", "7", models.RoleMaker, 1, `{"limit_amount":100}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"suggested status can only be set by checker once"}`, rec.Body.String())
}

func TestUpdateLoanLimit_UnknownRecord(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.UpdateLoanLimit(rec, request(http.MethodPut, "/loan-limits/404", "404", models.RoleMaker, 1, `{"limit_amount":100}`))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestRegisterAndLogin(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Register(rec, request(http.MethodPost, "/register", "", models.RoleUnauthenticated, 0,
		`{"username":"jdoe","email":"jdoe@example.com","password":"s3cret","role":"maker"}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.Login(rec, request(http.MethodPost, "/login", "", models.RoleUnauthenticated, 0,
		`{"email":"jdoe@example.com","password":"s3cret"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["token"])

	rec = httptest.NewRecorder()
	h.Login(rec, request(http.MethodPost, "/login", "", models.RoleUnauthenticated, 0,
		`{"email":"jdoe@example.com","password":"wrong"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetBenchmarkRate(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.GetBenchmarkRate(rec, httptest.NewRequest(http.MethodGet, "/benchmark-rate", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key_rate":21}`, rec.Body.String())
}

func TestGetBenchmarkRate_UpstreamFailure(t *testing.T) {
	store := newStubStore()
	cfg := &config.Config{JWTSecret: "test-secret-key"}
	svc := service.NewService(store, store, cache.NewMemory(), nil, cfg, testLogger())
	h := NewHandler(svc, stubRates{err: errors.New("upstream down")}, testLogger())

	rec := httptest.NewRecorder()
	h.GetBenchmarkRate(rec, httptest.NewRequest(http.MethodGet, "/benchmark-rate", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
