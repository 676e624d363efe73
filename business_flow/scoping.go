package businessflow

import "github.com/amirphl/simple-crm/models"

// ScopeLeads narrows the lead collection to what the caller may see
func ScopeLeads(caller *Caller) (models.LeadFilter, error) {
	switch {
	case caller.IsStaff():
		return models.LeadFilter{}, nil
	case caller.IsOrganizer() && caller.Organizer != nil:
		return models.LeadFilter{OrganizerID: &caller.Organizer.ID}, nil
	case caller.IsAgent() && caller.Agent != nil:
		return models.LeadFilter{AgentID: &caller.Agent.ID}, nil
	default:
		return models.LeadFilter{}, ErrNoRoleAssigned
	}
}

// ScopeCategories returns the category filter; categories are global for every role
func ScopeCategories(caller *Caller) (models.CategoryFilter, error) {
	if caller.IsStaff() || caller.IsOrganizer() || caller.IsAgent() {
		return models.CategoryFilter{}, nil
	}
	return models.CategoryFilter{}, ErrNoRoleAssigned
}

// mergeLeadFilters intersects client filters with the caller scope.
// Scope fields always win, so a client cannot widen its view.
func mergeLeadFilters(scope, requested models.LeadFilter) models.LeadFilter {
	merged := requested
	if scope.OrganizerID != nil {
		if requested.OrganizerID != nil && *requested.OrganizerID != *scope.OrganizerID {
			merged.ID = new(uint) // matches nothing
		}
		merged.OrganizerID = scope.OrganizerID
	}
	if scope.AgentID != nil {
		if requested.AgentID != nil && *requested.AgentID != *scope.AgentID {
			merged.ID = new(uint)
		}
		merged.AgentID = scope.AgentID
	}
	return merged
}
