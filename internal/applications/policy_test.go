package applications

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
)

func TestAuthorize(t *testing.T) {
	volunteer := models.Principal{ID: uuid.New(), Role: models.RoleVolunteer}
	stranger := models.Principal{ID: uuid.New(), Role: models.RoleVolunteer}
	owner := models.Principal{ID: uuid.New(), Role: models.RoleOrg}
	rival := models.Principal{ID: uuid.New(), Role: models.RoleOrg}
	admin := models.Principal{ID: uuid.New(), Role: models.RoleAdmin}

	opp := &models.Opportunity{ID: uuid.New(), CreatedBy: owner.ID}
	app := &models.Application{ID: uuid.New(), OpportunityID: opp.ID, ApplicantID: volunteer.ID}
	both := Resource{Application: app, Opportunity: opp}

	tests := []struct {
		name   string
		p      models.Principal
		action Action
		res    Resource
		want   apperror.Kind // empty means allowed
	}{
		{"anonymous apply", models.Principal{}, ActionApply, Resource{}, apperror.KindUnauthenticated},
		{"volunteer apply", volunteer, ActionApply, Resource{}, ""},
		{"org apply", owner, ActionApply, Resource{}, apperror.KindUnauthorized},
		{"admin apply", admin, ActionApply, Resource{}, apperror.KindUnauthorized},

		{"applicant cancel", volunteer, ActionCancel, both, ""},
		{"stranger cancel", stranger, ActionCancel, both, apperror.KindForbidden},
		{"owner cancel", owner, ActionCancel, both, apperror.KindForbidden},
		{"cancel without application", volunteer, ActionCancel, Resource{}, apperror.KindNotFound},

		{"owner decide", owner, ActionDecide, both, ""},
		{"rival decide", rival, ActionDecide, both, apperror.KindForbidden},
		{"volunteer decide", volunteer, ActionDecide, both, apperror.KindUnauthorized},
		{"admin decide", admin, ActionDecide, both, apperror.KindUnauthorized},

		{"applicant view", volunteer, ActionView, Resource{Application: app}, ""},
		{"owner view", owner, ActionView, both, ""},
		{"admin view", admin, ActionView, Resource{Application: app}, ""},
		{"rival view", rival, ActionView, both, apperror.KindForbidden},
		{"stranger mark read", stranger, ActionMarkRead, both, apperror.KindForbidden},

		{"owner applicants", owner, ActionViewApplicants, Resource{Opportunity: opp}, ""},
		{"admin applicants", admin, ActionViewApplicants, Resource{Opportunity: opp}, ""},
		{"rival applicants", rival, ActionViewApplicants, Resource{Opportunity: opp}, apperror.KindForbidden},
		{"volunteer applicants", volunteer, ActionViewApplicants, Resource{Opportunity: opp}, apperror.KindUnauthorized},

		{"admin administer", admin, ActionAdminister, Resource{}, ""},
		{"org administer", owner, ActionAdminister, Resource{}, apperror.KindUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.p, tt.action, tt.res)
			if tt.want == "" {
				assert.True(t, d.Allowed)
				assert.NoError(t, d.Err())
				return
			}
			assert.False(t, d.Allowed)
			assert.Equal(t, tt.want, d.Kind)
			assert.Equal(t, tt.want, apperror.KindOf(d.Err()))
		})
	}
}
