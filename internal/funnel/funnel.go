package funnel

// Status is a customer's stage in the checkout funnel.
type Status string

const (
	StatusProspect  Status = "PROSPECT"
	StatusLead      Status = "LEAD"
	StatusPartial   Status = "PARTIAL"
	StatusCustomer  Status = "CUSTOMER"
	StatusDeclined  Status = "DECLINED"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

// Statuses advance forward or sideways into a failure state, never
// backward. A lower-priority write against an already-advanced customer is
// a no-op, not an error.

// CanAdvance reports whether a transition from one status to another is a
// legal forward move.
func CanAdvance(from, to Status) bool {
	switch to {
	case StatusLead:
		return from == StatusProspect
	case StatusPartial:
		return from == StatusLead
	case StatusCustomer:
		// A retry charges from DECLINED without re-running the address step.
		return from == StatusPartial || from == StatusDeclined
	case StatusDeclined:
		return from == StatusPartial || from == StatusDeclined || from == StatusCustomer
	case StatusCancelled, StatusRefunded:
		return from == StatusPartial || from == StatusCustomer
	}
	return false
}

// Advance returns the status a customer should hold after a transition
// trigger. Illegal moves leave the current status unchanged.
func Advance(current, target Status) Status {
	if CanAdvance(current, target) {
		return target
	}
	return current
}

// IsConverted reports whether the customer has completed a purchase. A
// converted customer is protected: checkout steps must fail fast instead of
// mutating state.
func IsConverted(s Status) bool {
	return s == StatusCustomer
}

// CanRetryPayment reports whether a payment attempt is allowed for the
// current status. Declines are not terminal.
func CanRetryPayment(s Status) bool {
	return s == StatusPartial || s == StatusDeclined
}
