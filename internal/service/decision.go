package service

import (
	"time"

	"github.com/adakita/loan-service/internal/models"
)

// TransitionError reports a maker/checker request that is illegal for the
// record's current state or the actor's role. The reason is user-facing.
type TransitionError struct {
	Reason string
}

func (e *TransitionError) Error() string {
	return e.Reason
}

// LimitChange is a requested mutation of a loan limit. The handler decodes
// the wire payload into one of the two variants before the decision runs.
type LimitChange interface {
	isLimitChange()
}

// ProposeAmount is a maker's request to put a new limit amount up for review.
type ProposeAmount struct {
	Amount float64
}

// ResolveProposal is a checker's verdict on a pending proposal. Outcome is
// constrained by the handler to StatusApproved or StatusRejected.
type ResolveProposal struct {
	Outcome string
}

func (ProposeAmount) isLimitChange()   {}
func (ResolveProposal) isLimitChange() {}

// Decide applies the maker/checker approval rules to a copy of current and
// returns the updated record. A maker may propose an amount only while no
// proposal is pending; a checker may resolve only a pending proposal. Every
// other combination is rejected with a TransitionError.
func Decide(current models.LoanLimit, role string, change LimitChange, now time.Time) (models.LoanLimit, error) {
	switch c := change.(type) {
	case ProposeAmount:
		if role != models.RoleMaker {
			break
		}
		if current.Status == models.StatusSuggested {
			return models.LoanLimit{}, &TransitionError{Reason: "suggested status can only be set by checker once"}
		}
		current.LimitAmount = c.Amount
		current.AvailableAmount = c.Amount
		current.Status = models.StatusSuggested
		current.ModifiedAt = now
		return current, nil

	case ResolveProposal:
		if role != models.RoleChecker {
			break
		}
		if current.Status != models.StatusSuggested {
			return models.LoanLimit{}, &TransitionError{Reason: "approved/rejected status can only be set once"}
		}
		current.Status = c.Outcome
		current.ModifiedAt = now
		return current, nil
	}

	return models.LoanLimit{}, &TransitionError{Reason: "Invalid status transition or role"}
}
