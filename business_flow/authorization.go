package businessflow

import (
	"net/http"

	"github.com/amirphl/simple-crm/models"
)

// Action is the intent a request carries toward a resource
type Action int

const (
	ActionRead Action = iota
	ActionWrite
)

func (a Action) String() string {
	if a == ActionWrite {
		return "write"
	}
	return "read"
}

// ActionForMethod maps an HTTP verb to the action it requires
func ActionForMethod(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionRead
	default:
		return ActionWrite
	}
}

// CheckCollectionAccess is the coarse gate for leads and categories.
// Reads pass for any authenticated caller; writes need staff or organizer.
func CheckCollectionAccess(caller *Caller, action Action) error {
	if caller == nil || caller.Account == nil {
		return ErrForbidden
	}
	if action == ActionRead {
		return nil
	}
	if caller.IsStaff() || caller.IsOrganizer() {
		return nil
	}
	recordDenial("collection", caller.Role())
	return ErrForbidden
}

// CanAccess is the object gate for a single lead.
// Organizers reach only the leads they own; agents may only read leads assigned to them.
func CanAccess(caller *Caller, lead *models.Lead, action Action) bool {
	allowed := canAccess(caller, lead, action)
	if !allowed {
		recordDenial("object", caller.Role())
	}
	return allowed
}

func canAccess(caller *Caller, lead *models.Lead, action Action) bool {
	if caller == nil || caller.Account == nil || lead == nil {
		return false
	}

	switch {
	case caller.IsStaff():
		return true
	case caller.IsOrganizer():
		return caller.Organizer != nil && lead.OrganizerID == caller.Organizer.ID
	case caller.IsAgent():
		if action != ActionRead {
			return false
		}
		return caller.Agent != nil && lead.AgentID != nil && *lead.AgentID == caller.Agent.ID
	default:
		return false
	}
}
