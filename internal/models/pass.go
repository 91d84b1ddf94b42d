package models

// PassStatus is the lifecycle state of a visitor pass. The backend owns transitions.
type PassStatus string

const (
	PassPending    PassStatus = "PENDING"
	PassApproved   PassStatus = "APPROVED"
	PassRejected   PassStatus = "REJECTED"
	PassCheckedIn  PassStatus = "CHECKED_IN"
	PassCheckedOut PassStatus = "CHECKED_OUT"
	PassExpired    PassStatus = "EXPIRED"
)

var passTransitions = map[PassStatus][]PassStatus{
	PassPending:   {PassApproved, PassRejected},
	PassApproved:  {PassCheckedIn},
	PassCheckedIn: {PassCheckedOut},
}

// CanTransition reports whether the backend accepts moving a pass from one status to another.
// Used to decide which actions a view offers; server calls are never blocked on it.
func CanTransition(from, to PassStatus) bool {
	for _, s := range passTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Action is a desk operation that moves a pass to a new status.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionCheckIn  Action = "check-in"
	ActionCheckOut Action = "check-out"
)

var actionTargets = map[Action]PassStatus{
	ActionApprove:  PassApproved,
	ActionReject:   PassRejected,
	ActionCheckIn:  PassCheckedIn,
	ActionCheckOut: PassCheckedOut,
}

// Allowed returns, in order, those of actions a pass in status can take.
func Allowed(status PassStatus, actions ...Action) []Action {
	var out []Action
	for _, a := range actions {
		if to, ok := actionTargets[a]; ok && CanTransition(status, to) {
			out = append(out, a)
		}
	}
	return out
}

// Pass is a visitor pass as returned by the pass and approval endpoints.
type Pass struct {
	ID                    int64      `json:"id"`
	TenantID              int64      `json:"tenantId"`
	VisitorName           string     `json:"visitorName"`
	VisitorEmail          string     `json:"visitorEmail,omitempty"`
	VisitorPhone          string     `json:"visitorPhone,omitempty"`
	Purpose               string     `json:"purpose,omitempty"`
	Status                PassStatus `json:"status"`
	PassCode              string     `json:"passCode,omitempty"`
	VisitDateTime         Timestamp  `json:"visitDateTime"`
	CreatedByEmployeeName string     `json:"createdByEmployeeName,omitempty"`
	ApprovedBy            string     `json:"approvedBy,omitempty"`
	RejectionReason       string     `json:"rejectionReason,omitempty"`
	// Actions is filled by the desk showing the pass, never by the backend.
	Actions []Action `json:"actions,omitempty"`
}

// CreatePassRequest is the body for POST /tenants/{id}/passes.
type CreatePassRequest struct {
	VisitorName   string    `json:"visitorName" validate:"required,max=100"`
	VisitorEmail  string    `json:"visitorEmail" validate:"required,email"`
	VisitorPhone  string    `json:"visitorPhone,omitempty" validate:"omitempty,max=20"`
	Purpose       string    `json:"purpose" validate:"required,max=255"`
	VisitDateTime Timestamp `json:"visitDateTime" validate:"required"`
}

// RejectPassRequest is the body for POST /tenants/{id}/approvals/{passId}/reject.
type RejectPassRequest struct {
	Reason string `json:"reason"`
}
