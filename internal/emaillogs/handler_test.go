package emaillogs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLimit(t *testing.T) {
	tests := map[string]int{
		"":     50,
		"abc":  50,
		"0":    50,
		"-3":   50,
		"20":   20,
		"500":  500,
		"9999": 500,
	}
	for raw, want := range tests {
		assert.Equal(t, want, parseLimit(raw), "limit=%q", raw)
	}
}
