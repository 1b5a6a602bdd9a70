package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusNewLead, StatusQuoteSent},
		{StatusNewLead, StatusViewed},
		{StatusQuoteSent, StatusViewed},
		{StatusViewed, StatusApproved},
		{StatusViewed, StatusRejected},
		{StatusApproved, StatusInvoiced},
		{StatusInvoiced, StatusPaid},
	}
	for _, tc := range allowed {
		got, err := Transition(tc.from, tc.to)
		require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.to, got)
	}

	denied := []struct{ from, to Status }{
		{StatusNewLead, StatusApproved},
		{StatusNewLead, StatusInvoiced},
		{StatusQuoteSent, StatusApproved},
		{StatusViewed, StatusPaid},
		{StatusApproved, StatusPaid},
		{StatusApproved, StatusRejected},
		{StatusRejected, StatusViewed},
		{StatusRejected, StatusApproved},
		{StatusPaid, StatusInvoiced},
		{StatusViewed, StatusNewLead},
		{StatusViewed, StatusViewed},
	}
	for _, tc := range denied {
		got, err := Transition(tc.from, tc.to)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
		assert.Equal(t, tc.from, got, "failed transition must not move the status")
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, IsTerminal(StatusRejected))
	assert.True(t, IsTerminal(StatusPaid))
	assert.False(t, IsTerminal(StatusNewLead))
	assert.False(t, IsTerminal(StatusInvoiced))
}

func TestNextStatuses(t *testing.T) {
	assert.ElementsMatch(t, []Status{StatusQuoteSent, StatusViewed}, NextStatuses(StatusNewLead))
	assert.Empty(t, NextStatuses(StatusPaid))
	assert.Empty(t, NextStatuses("bogus"))
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusNewLead, StatusQuoteSent, StatusViewed, StatusApproved, StatusRejected, StatusInvoiced, StatusPaid} {
		assert.True(t, ValidStatus(s), string(s))
	}
	assert.False(t, ValidStatus("draft"))
}
