package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adakita/loan-service/internal/cache"
	"github.com/adakita/loan-service/internal/config"
	"github.com/adakita/loan-service/internal/models"
	"github.com/adakita/loan-service/internal/repository"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when no loan limit matches the lookup.
var ErrNotFound = repository.ErrNotFound

const cacheWriteTimeout = 3 * time.Second

// Store is the durable source of truth for loan limits.
type Store interface {
	FindLoanLimitByID(id int64) (*models.LoanLimit, error)
	FindLoanLimitByUserID(userID int64) (*models.LoanLimit, error)
	FindAllLoanLimits() ([]*models.LoanLimit, error)
	SaveLoanLimit(limit *models.LoanLimit) (*models.LoanLimit, error)
}

// UserStore provides user lookups for authentication and notification.
type UserStore interface {
	CreateUser(user *models.User) error
	FindUserByEmail(email string) (*models.User, error)
	FindUserByID(id int64) (*models.User, error)
}

// Notifier delivers emails about proposal decisions. The service only calls
// it from background goroutines, never on the request path.
type Notifier interface {
	SendDecisionNotification(to, username string, limit *models.LoanLimit) error
	SendPendingProposalReminder(to, username string, limit *models.LoanLimit) error
}

// Service handles business logic
type Service struct {
	store    Store
	users    UserStore
	cache    cache.Cache
	notifier Notifier
	config   *config.Config
	log      *logrus.Logger
}

// NewService initializes a new service. notifier may be nil when email
// delivery is not configured.
func NewService(store Store, users UserStore, c cache.Cache, notifier Notifier, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{store: store, users: users, cache: c, notifier: notifier, config: cfg, log: log}
}

func toResponse(limit *models.LoanLimit) *models.LoanLimitResponse {
	return &models.LoanLimitResponse{
		LoanLimitID:     limit.ID,
		UserID:          limit.UserID,
		LimitAmount:     limit.LimitAmount,
		AvailableAmount: limit.AvailableAmount,
		Status:          limit.Status,
		CreatedAt:       limit.CreatedAt,
		ModifiedAt:      limit.ModifiedAt,
	}
}

// GetLoanLimitByID returns the loan limit with the given id, preferring the
// cached snapshot. A corrupt or unavailable cache degrades to store-only.
func (s *Service) GetLoanLimitByID(ctx context.Context, id int64) (*models.LoanLimitResponse, error) {
	key := cache.LimitKey(id)
	snapshot, err := s.cache.Get(ctx, key)
	if err == nil {
		limit := &models.LoanLimit{}
		if jsonErr := json.Unmarshal([]byte(snapshot), limit); jsonErr != nil {
			// never surface a corrupt snapshot, fall through to the store
			s.log.Errorf("Corrupt cache entry %s: %v", key, jsonErr)
		} else {
			s.log.Debugf("Found loan limit %d in cache", id)
			return toResponse(limit), nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.Errorf("Cache read failed for %s: %v", key, err)
	}

	limit, err := s.store.FindLoanLimitByID(id)
	if err != nil {
		return nil, err
	}
	s.refreshCacheAsync(limit)
	return toResponse(limit), nil
}

// GetLoanLimitByUserID returns the loan limit owned by the given user. The
// cache is keyed by record id, so the lookup always goes to the store; the
// snapshot is still refreshed under the resolved id.
func (s *Service) GetLoanLimitByUserID(ctx context.Context, userID int64) (*models.LoanLimitResponse, error) {
	limit, err := s.store.FindLoanLimitByUserID(userID)
	if err != nil {
		return nil, err
	}
	s.refreshCacheAsync(limit)
	return toResponse(limit), nil
}

// GetAllLoanLimits returns every loan limit, refreshing the cached snapshot
// of each record on the way out.
func (s *Service) GetAllLoanLimits(ctx context.Context) ([]*models.LoanLimitResponse, error) {
	limits, err := s.store.FindAllLoanLimits()
	if err != nil {
		return nil, err
	}

	responses := make([]*models.LoanLimitResponse, 0, len(limits))
	for _, limit := range limits {
		s.refreshCacheAsync(limit)
		responses = append(responses, toResponse(limit))
	}
	return responses, nil
}

// UpdateLoanLimit loads the current record, runs the approval decision for
// the requested change and persists the result. The cache refresh and any
// decision notification happen off the request path.
func (s *Service) UpdateLoanLimit(ctx context.Context, id int64, role string, change LimitChange) (*models.LoanLimitResponse, error) {
	current, err := s.store.FindLoanLimitByID(id)
	if err != nil {
		return nil, err
	}

	updated, err := Decide(*current, role, change, time.Now())
	if err != nil {
		return nil, err
	}

	saved, err := s.store.SaveLoanLimit(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to save loan limit %d: %w", id, err)
	}

	s.refreshCacheAsync(saved)
	if _, resolved := change.(ResolveProposal); resolved {
		s.notifyDecisionAsync(saved)
	}

	s.log.Infof("Loan limit %d updated to status %s by %s", saved.ID, saved.Status, role)
	return toResponse(saved), nil
}

// RemindPendingProposals emails the owner of every record still waiting for
// a checker decision. Delivery failures are logged and skipped.
func (s *Service) RemindPendingProposals(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}

	limits, err := s.store.FindAllLoanLimits()
	if err != nil {
		return fmt.Errorf("failed to list loan limits for reminders: %w", err)
	}

	for _, limit := range limits {
		if limit.Status != models.StatusSuggested {
			continue
		}
		user, err := s.users.FindUserByID(limit.UserID)
		if err != nil {
			s.log.Errorf("Failed to resolve user %d for reminder: %v", limit.UserID, err)
			continue
		}
		if err := s.notifier.SendPendingProposalReminder(user.Email, user.Username, limit); err != nil {
			s.log.Errorf("Failed to send pending proposal reminder for loan limit %d: %v", limit.ID, err)
		}
	}
	return nil
}

// refreshCacheAsync writes the full entity snapshot to the cache without
// holding up the caller. Failures are logged and never reach the request
// that triggered the write.
func (s *Service) refreshCacheAsync(limit *models.LoanLimit) {
	payload, err := json.Marshal(limit)
	if err != nil {
		s.log.Errorf("Failed to serialize loan limit %d for cache: %v", limit.ID, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()
		if err := s.cache.Set(ctx, cache.LimitKey(limit.ID), string(payload), cache.SnapshotTTL); err != nil {
			s.log.Errorf("Failed to cache loan limit %d: %v", limit.ID, err)
		} else {
			s.log.Debugf("Cached loan limit %d", limit.ID)
		}
	}()
}

// notifyDecisionAsync emails the record owner about an approval decision.
func (s *Service) notifyDecisionAsync(limit *models.LoanLimit) {
	if s.notifier == nil {
		return
	}

	go func() {
		user, err := s.users.FindUserByID(limit.UserID)
		if err != nil {
			s.log.Errorf("Failed to resolve user %d for decision notification: %v", limit.UserID, err)
			return
		}
		if err := s.notifier.SendDecisionNotification(user.Email, user.Username, limit); err != nil {
			s.log.Errorf("Failed to send decision notification for loan limit %d: %v", limit.ID, err)
		}
	}()
}
