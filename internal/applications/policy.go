package applications

import (
	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
)

// Action is an operation subject to authorization.
type Action string

const (
	ActionApply          Action = "apply"
	ActionCancel         Action = "cancel"
	ActionDecide         Action = "decide"
	ActionView           Action = "view"
	ActionMarkRead       Action = "mark_read"
	ActionViewApplicants Action = "view_applicants"
	ActionAdminister     Action = "administer"
)

// Resource is what an action targets. Fields an action does not need may be nil.
type Resource struct {
	Application *models.Application
	Opportunity *models.Opportunity
}

// Decision is the outcome of Authorize. Kind and Reason are set on deny.
type Decision struct {
	Allowed bool
	Kind    apperror.Kind
	Reason  string
}

// Err returns the denial as an error, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperror.New(d.Kind, d.Reason)
}

func allow() Decision { return Decision{Allowed: true} }

func deny(kind apperror.Kind, reason string) Decision {
	return Decision{Kind: kind, Reason: reason}
}

// Authorize decides whether p may perform action on res.
func Authorize(p models.Principal, action Action, res Resource) Decision {
	if p.IsZero() {
		return deny(apperror.KindUnauthenticated, "authentication required")
	}
	switch action {
	case ActionApply:
		if p.Role != models.RoleVolunteer {
			return deny(apperror.KindUnauthorized, "only volunteers can apply")
		}
		return allow()

	case ActionCancel:
		if res.Application == nil {
			return deny(apperror.KindNotFound, "application not found")
		}
		if res.Application.ApplicantID != p.ID {
			return deny(apperror.KindForbidden, "only the applicant can cancel this application")
		}
		return allow()

	case ActionDecide:
		if p.Role != models.RoleOrg {
			return deny(apperror.KindUnauthorized, "only organizations can approve or reject applications")
		}
		if res.Opportunity == nil {
			return deny(apperror.KindNotFound, "opportunity not found")
		}
		if res.Opportunity.CreatedBy != p.ID {
			return deny(apperror.KindForbidden, "application belongs to another organization")
		}
		return allow()

	case ActionView, ActionMarkRead:
		if p.Role == models.RoleAdmin {
			return allow()
		}
		if res.Application != nil && res.Application.ApplicantID == p.ID {
			return allow()
		}
		if res.Opportunity != nil && res.Opportunity.CreatedBy == p.ID {
			return allow()
		}
		return deny(apperror.KindForbidden, "not allowed to access this application")

	case ActionViewApplicants:
		if p.Role == models.RoleAdmin {
			return allow()
		}
		if p.Role != models.RoleOrg {
			return deny(apperror.KindUnauthorized, "only organizations can view applicants")
		}
		if res.Opportunity == nil || res.Opportunity.CreatedBy != p.ID {
			return deny(apperror.KindForbidden, "opportunity belongs to another organization")
		}
		return allow()

	case ActionAdminister:
		if p.Role != models.RoleAdmin {
			return deny(apperror.KindUnauthorized, "admins only")
		}
		return allow()
	}
	return deny(apperror.KindForbidden, "unknown action")
}
