package desk

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/visitorpass/desk/internal/auth"
	"github.com/visitorpass/desk/internal/models"
)

// deskNamespace scopes session keys derived from bearer tokens.
var deskNamespace = uuid.MustParse("6f1c7a52-2f0e-4c38-9a43-0d9e3b9b8a11")

// SessionKey derives the stable desk id of a bearer token. The browser websocket uses the same
// token, so both ends agree on the room without sharing state.
func SessionKey(token string) string {
	return uuid.NewSHA1(deskNamespace, []byte(token)).String()
}

// Desk is the set of components of one signed-in operator. Components the role cannot use
// are nil.
type Desk struct {
	ID       string
	Email    string
	TenantID int64
	Role     models.Role

	Approvals *ApprovalQueue
	Pending   *PendingPanel
	Security  *SecurityDashboard
	Users     *UserList
	History   *PassHistory

	Deps Deps

	lastSeen atomic.Int64
}

func newDesk(id string, claims *auth.Claims, d Deps) *Desk {
	dk := &Desk{
		ID:       id,
		Email:    claims.Email(),
		TenantID: claims.TenantID,
		Role:     claims.Role,
		Deps:     d,
	}
	switch claims.Role {
	case models.RoleEmployee:
		dk.History = NewPassHistory(d)
	case models.RoleApprover:
		dk.Approvals = NewApprovalQueue(d)
		dk.Pending = NewPendingPanel(d)
		dk.History = NewPassHistory(d)
	case models.RoleSecurity:
		dk.Security = NewSecurityDashboard(d)
	case models.RoleTenantAdmin:
		dk.Users = NewUserList(d)
		dk.Approvals = NewApprovalQueue(d)
		dk.Pending = NewPendingPanel(d)
		dk.Security = NewSecurityDashboard(d)
		dk.History = NewPassHistory(d)
	}
	dk.touch()
	return dk
}

type component interface {
	Start()
	Stop()
}

func (dk *Desk) components() []component {
	var out []component
	if dk.Approvals != nil {
		out = append(out, dk.Approvals)
	}
	if dk.Pending != nil {
		out = append(out, dk.Pending)
	}
	if dk.Security != nil {
		out = append(out, dk.Security)
	}
	if dk.Users != nil {
		out = append(out, dk.Users)
	}
	if dk.History != nil {
		out = append(out, dk.History)
	}
	return out
}

// Start starts every component.
func (dk *Desk) Start() {
	for _, c := range dk.components() {
		c.Start()
	}
}

// Stop stops every component.
func (dk *Desk) Stop() {
	for _, c := range dk.components() {
		c.Stop()
	}
}

func (dk *Desk) touch() {
	dk.touchAt(time.Now())
}

func (dk *Desk) touchAt(t time.Time) {
	dk.lastSeen.Store(t.UnixNano())
}

// LastSeen is when the desk was last used.
func (dk *Desk) LastSeen() time.Time {
	return time.Unix(0, dk.lastSeen.Load())
}
