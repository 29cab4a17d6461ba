package applications

import (
	"fmt"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
)

// transitions lists the allowed next states. Terminal states have no entry.
var transitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationPending: {
		models.ApplicationApproved,
		models.ApplicationRejected,
		models.ApplicationCancelled,
	},
}

// CanTransition reports whether an application may move from one status to another.
func CanTransition(from, to models.ApplicationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to models.ApplicationStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	if from == to {
		return apperror.InvalidState(fmt.Sprintf("application is already %s", from))
	}
	return apperror.InvalidState(fmt.Sprintf("cannot change application from %s to %s", from, to))
}

// ParseDecision validates an organization's requested status.
func ParseDecision(raw string) (models.ApplicationStatus, error) {
	switch s := models.ApplicationStatus(raw); s {
	case models.ApplicationApproved, models.ApplicationRejected:
		return s, nil
	}
	return "", apperror.InvalidInput("status must be approved or rejected")
}
