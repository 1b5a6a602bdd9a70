package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusOpen, StatusCompleted},
		{StatusCompleted, StatusSigned},
	}
	for _, tc := range allowed {
		got, err := Transition(tc.from, tc.to)
		require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.to, got)
	}

	denied := []struct{ from, to Status }{
		{StatusOpen, StatusSigned},
		{StatusCompleted, StatusOpen},
		{StatusSigned, StatusOpen},
		{StatusSigned, StatusCompleted},
		{StatusOpen, StatusOpen},
	}
	for _, tc := range denied {
		got, err := Transition(tc.from, tc.to)
		assert.ErrorIs(t, err, ErrInvalidWorkflowTransition, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, got)
	}
}
