package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo_ValidTransitions(t *testing.T) {
	for _, to := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		t.Run("downloading->"+string(to), func(t *testing.T) {
			assert.True(t, StatusDownloading.CanTransitionTo(to),
				"downloading should be able to transition to %s", to)
		})
	}
}

func TestCanTransitionTo_InvalidTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
	}{
		{StatusDownloading, StatusDownloading},
		{StatusCompleted, StatusDownloading}, // terminal
		{StatusFailed, StatusDownloading},    // no automatic restart
		{StatusCancelled, StatusCompleted},   // terminal
		{Status("bogus"), StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.False(t, tt.from.CanTransitionTo(tt.to),
				"%s should NOT be able to transition to %s", tt.from, tt.to)
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusDownloading.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, Status("bogus").IsTerminal())
}
