package domain

import "fmt"

// Action is a move a caller can request on an entity.
type Action string

const (
	ActionApprove        Action = "APPROVE"
	ActionReject         Action = "REJECT"
	ActionConfirm        Action = "CONFIRM"
	ActionCancel         Action = "CANCEL"
	ActionCustomerCancel Action = "CUSTOMER_CANCEL"
	ActionPay            Action = "PAY"
	ActionHide           Action = "HIDE"
	ActionEdit           Action = "EDIT"
	ActionRequestDelete  Action = "REQUEST_DELETE"
	ActionFinalizeDelete Action = "FINALIZE_DELETE"
	ActionResolve        Action = "RESOLVE"
	ActionRefund         Action = "REFUND"
)

func ParsePackageDecision(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionReject:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown package decision: %s", s)
	}
}

func ParseAgentDecision(s string) (Action, error) {
	switch Action(s) {
	case ActionApprove, ActionReject:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown agent decision: %s", s)
	}
}

func ParseAdminDecision(s string) (Action, error) {
	switch Action(s) {
	case ActionConfirm, ActionCancel:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown admin decision: %s", s)
	}
}

type bookingEdge struct {
	From   BookingStatus
	Action Action
	Role   Role
	To     BookingStatus
}

// bookingEdges is the complete booking state machine. Anything not listed is
// an invalid transition.
var bookingEdges = []bookingEdge{
	{BookingStatusPending, ActionApprove, RoleAgent, BookingStatusAgentApproved},
	{BookingStatusPending, ActionReject, RoleAgent, BookingStatusAgentRejected},
	{BookingStatusPending, ActionCustomerCancel, RoleCustomer, BookingStatusCancelledByCustomer},
	{BookingStatusAgentApproved, ActionConfirm, RoleAdmin, BookingStatusConfirmed},
	{BookingStatusAgentApproved, ActionCancel, RoleAdmin, BookingStatusCancelled},
	{BookingStatusConfirmed, ActionCancel, RoleAdmin, BookingStatusCancelled},
}

func bookingEdgesFrom(from BookingStatus) []bookingEdge {
	var out []bookingEdge
	for _, e := range bookingEdges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

// NextBookingStatus returns the status reached from `from` when role performs action.
func NextBookingStatus(from BookingStatus, action Action, role Role) (BookingStatus, bool) {
	for _, e := range bookingEdges {
		if e.From == from && e.Action == action && e.Role == role {
			return e.To, true
		}
	}
	return "", false
}

// BookingTarget returns the status an action lands on, independent of the
// starting status. Used to detect retries of an already applied decision.
func BookingTarget(action Action, role Role) (BookingStatus, bool) {
	for _, e := range bookingEdges {
		if e.Action == action && e.Role == role {
			return e.To, true
		}
	}
	return "", false
}

type packageEdge struct {
	From   PackageStatus
	Action Action
	Role   Role
	To     PackageStatus
}

// A FINALIZE_DELETE edge has an empty target: the record is removed. An
// EDIT always sends the package back for review.
var packageEdges = []packageEdge{
	{PackageStatusPending, ActionApprove, RoleAdmin, PackageStatusApproved},
	{PackageStatusPending, ActionReject, RoleAdmin, PackageStatusRejected},
	{PackageStatusPending, ActionEdit, RoleAgent, PackageStatusPending},
	{PackageStatusApproved, ActionEdit, RoleAgent, PackageStatusPending},
	{PackageStatusRejected, ActionEdit, RoleAgent, PackageStatusPending},
	{PackageStatusApproved, ActionRequestDelete, RoleAgent, PackageStatusPendingDelete},
	{PackageStatusPendingDelete, ActionFinalizeDelete, RoleAdmin, ""},
}

func NextPackageStatus(from PackageStatus, action Action, role Role) (PackageStatus, bool) {
	for _, e := range packageEdges {
		if e.From == from && e.Action == action && e.Role == role {
			return e.To, true
		}
	}
	return "", false
}

func PackageTarget(action Action, role Role) (PackageStatus, bool) {
	for _, e := range packageEdges {
		if e.Action == action && e.Role == role {
			return e.To, true
		}
	}
	return "", false
}

// BookingActions lists what role may do to b right now. Ownership is not
// checked here; the coordinator enforces it on the call itself. CONFIRM is
// listed for AGENT_APPROVED bookings even when payment is still outstanding.
func BookingActions(b Booking, role Role) []Action {
	var out []Action
	for _, e := range bookingEdgesFrom(b.Status) {
		if e.Role == role {
			out = append(out, e.Action)
		}
	}
	if role == RoleCustomer {
		if b.Status == BookingStatusAgentApproved {
			out = append(out, ActionPay)
		}
		if b.Status.Terminal() && !b.HiddenFromCustomer {
			out = append(out, ActionHide)
		}
	}
	return out
}

func PackageActions(p Package, role Role) []Action {
	var out []Action
	for _, e := range packageEdges {
		if e.From == p.Status && e.Role == role {
			out = append(out, e.Action)
		}
	}
	return out
}

func PaymentActions(p Payment, role Role) []Action {
	if role != RoleAdmin {
		return nil
	}
	switch p.Status {
	case PaymentStatusPending:
		return []Action{ActionResolve}
	case PaymentStatusSuccess:
		return []Action{ActionRefund}
	default:
		return nil
	}
}
