package opportunities

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
)

func TestListWhere(t *testing.T) {
	where, args := listWhere(models.OpportunityFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	owner := uuid.New()
	where, args = listWhere(models.OpportunityFilter{
		Query:     " beach ",
		Skill:     "first aid",
		CreatedBy: &owner,
	})
	assert.Equal(t, " WHERE (title ILIKE $1 OR description ILIKE $1) AND EXISTS (SELECT 1 FROM unnest(skills) sk WHERE sk ILIKE $2) AND created_by = $3", where)
	assert.Equal(t, []interface{}{"%beach%", "first aid", owner}, args)

	where, args = listWhere(models.OpportunityFilter{Category: "Environment", Location: "Pune"})
	assert.Equal(t, " WHERE category ILIKE $1 AND location ILIKE $2", where)
	assert.Equal(t, []interface{}{"Environment", "%Pune%"}, args)
}

func TestParseDeadline(t *testing.T) {
	got, err := ParseDeadline("2025-06-01")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDeadline("2025-06-01T18:30:00+05:30")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), got)

	_, err = ParseDeadline("next friday")
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))
}
