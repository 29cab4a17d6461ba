package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "classified", err: Conflict("already applied"), want: KindConflict},
		{name: "wrapped classified", err: fmt.Errorf("create: %w", NotFound("opportunity not found")), want: KindNotFound},
		{name: "plain error", err: errors.New("connection reset"), want: KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessageOf_HidesUnclassifiedDetail(t *testing.T) {
	assert.Equal(t, "internal server error", MessageOf(errors.New("pq: password authentication failed")))
	assert.Equal(t, "application not found", MessageOf(NotFound("application not found")))
}

func TestWrap_Unwraps(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindInternal, "load application", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindInternal))
	assert.False(t, Is(nil, KindInternal))
}
