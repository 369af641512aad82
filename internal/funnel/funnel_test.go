package funnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceForward(t *testing.T) {
	assert.Equal(t, StatusLead, Advance(StatusProspect, StatusLead))
	assert.Equal(t, StatusPartial, Advance(StatusLead, StatusPartial))
	assert.Equal(t, StatusCustomer, Advance(StatusPartial, StatusCustomer))
}

func TestAdvanceNeverDowngrades(t *testing.T) {
	// Re-submitting an earlier step must not revert status.
	assert.Equal(t, StatusPartial, Advance(StatusPartial, StatusLead))
	assert.Equal(t, StatusCustomer, Advance(StatusCustomer, StatusLead))
	assert.Equal(t, StatusCustomer, Advance(StatusCustomer, StatusPartial))
	assert.Equal(t, StatusLead, Advance(StatusLead, StatusLead))
}

func TestAdvanceSkippingStepsIsNoOp(t *testing.T) {
	assert.Equal(t, StatusProspect, Advance(StatusProspect, StatusPartial))
	assert.Equal(t, StatusProspect, Advance(StatusProspect, StatusCustomer))
	assert.Equal(t, StatusLead, Advance(StatusLead, StatusCustomer))
}

func TestDeclineTransitions(t *testing.T) {
	assert.Equal(t, StatusDeclined, Advance(StatusPartial, StatusDeclined))
	// Repeated declines stay declined.
	assert.Equal(t, StatusDeclined, Advance(StatusDeclined, StatusDeclined))
	// A retry can still convert a declined customer.
	assert.Equal(t, StatusCustomer, Advance(StatusDeclined, StatusCustomer))
	// A prospect has nothing to decline.
	assert.Equal(t, StatusProspect, Advance(StatusProspect, StatusDeclined))
}

func TestTerminalSideStates(t *testing.T) {
	assert.Equal(t, StatusCancelled, Advance(StatusCustomer, StatusCancelled))
	assert.Equal(t, StatusRefunded, Advance(StatusCustomer, StatusRefunded))
	assert.Equal(t, StatusCancelled, Advance(StatusPartial, StatusCancelled))
	assert.Equal(t, StatusLead, Advance(StatusLead, StatusRefunded))
}

func TestIsConverted(t *testing.T) {
	assert.True(t, IsConverted(StatusCustomer))
	assert.False(t, IsConverted(StatusPartial))
	assert.False(t, IsConverted(StatusDeclined))
}

func TestCanRetryPayment(t *testing.T) {
	assert.True(t, CanRetryPayment(StatusPartial))
	assert.True(t, CanRetryPayment(StatusDeclined))
	assert.False(t, CanRetryPayment(StatusLead))
	assert.False(t, CanRetryPayment(StatusCustomer))
}
