package businessflow

import (
	"net/http"
	"testing"

	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callerWith(staff, organizer, agent bool, profileID uint) *Caller {
	c := &Caller{Account: &models.Account{ID: 1, IsStaff: staff, IsOrganizer: organizer, IsAgent: agent}}
	if organizer {
		c.Organizer = &models.OrganizerProfile{ID: profileID, AccountID: 1}
	}
	if agent {
		c.Agent = &models.AgentProfile{ID: profileID, AccountID: 1}
	}
	return c
}

func TestActionForMethod(t *testing.T) {
	assert.Equal(t, ActionRead, ActionForMethod(http.MethodGet))
	assert.Equal(t, ActionRead, ActionForMethod(http.MethodHead))
	assert.Equal(t, ActionWrite, ActionForMethod(http.MethodPut))
	assert.Equal(t, ActionWrite, ActionForMethod(http.MethodPatch))
	assert.Equal(t, ActionWrite, ActionForMethod(http.MethodDelete))
	assert.Equal(t, ActionWrite, ActionForMethod(http.MethodPost))
	assert.Equal(t, "read", ActionRead.String())
	assert.Equal(t, "write", ActionWrite.String())
}

func TestCheckCollectionAccess(t *testing.T) {
	tests := []struct {
		name   string
		caller *Caller
		action Action
		want   error
	}{
		{"staff write", callerWith(true, false, false, 0), ActionWrite, nil},
		{"organizer write", callerWith(false, true, false, 7), ActionWrite, nil},
		{"agent read", callerWith(false, false, true, 7), ActionRead, nil},
		{"agent write", callerWith(false, false, true, 7), ActionWrite, ErrForbidden},
		{"no role read", callerWith(false, false, false, 0), ActionRead, nil},
		{"no role write", callerWith(false, false, false, 0), ActionWrite, ErrForbidden},
		{"anonymous", nil, ActionRead, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckCollectionAccess(tt.caller, tt.action)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCanAccess(t *testing.T) {
	lead := &models.Lead{ID: 10, OrganizerID: 3, AgentID: utils.ToPtr(uint(5))}
	unassigned := &models.Lead{ID: 11, OrganizerID: 3}

	t.Run("StaffAlwaysAllowed", func(t *testing.T) {
		staff := callerWith(true, false, false, 0)
		assert.True(t, CanAccess(staff, lead, ActionRead))
		assert.True(t, CanAccess(staff, lead, ActionWrite))
	})

	t.Run("OrganizerOwnsLead", func(t *testing.T) {
		owner := callerWith(false, true, false, 3)
		other := callerWith(false, true, false, 4)
		assert.True(t, CanAccess(owner, lead, ActionWrite))
		assert.False(t, CanAccess(other, lead, ActionRead))
		assert.False(t, CanAccess(other, lead, ActionWrite))
	})

	t.Run("AgentReadsOnlyAssigned", func(t *testing.T) {
		assigned := callerWith(false, false, true, 5)
		stranger := callerWith(false, false, true, 6)
		assert.True(t, CanAccess(assigned, lead, ActionRead))
		assert.False(t, CanAccess(assigned, lead, ActionWrite))
		assert.False(t, CanAccess(stranger, lead, ActionRead))
		assert.False(t, CanAccess(assigned, unassigned, ActionRead))
	})

	t.Run("NoRoleDenied", func(t *testing.T) {
		assert.False(t, CanAccess(callerWith(false, false, false, 0), lead, ActionRead))
	})

	t.Run("NilArguments", func(t *testing.T) {
		assert.False(t, CanAccess(nil, lead, ActionRead))
		assert.False(t, CanAccess(callerWith(true, false, false, 0), nil, ActionRead))
	})
}

func TestScopeLeads(t *testing.T) {
	f, err := ScopeLeads(callerWith(true, false, false, 0))
	require.NoError(t, err)
	assert.Equal(t, models.LeadFilter{}, f)

	f, err = ScopeLeads(callerWith(false, true, false, 3))
	require.NoError(t, err)
	require.NotNil(t, f.OrganizerID)
	assert.Equal(t, uint(3), *f.OrganizerID)
	assert.Nil(t, f.AgentID)

	f, err = ScopeLeads(callerWith(false, false, true, 5))
	require.NoError(t, err)
	require.NotNil(t, f.AgentID)
	assert.Equal(t, uint(5), *f.AgentID)

	_, err = ScopeLeads(callerWith(false, false, false, 0))
	assert.ErrorIs(t, err, ErrNoRoleAssigned)
}

func TestScopeCategories(t *testing.T) {
	_, err := ScopeCategories(callerWith(false, false, true, 5))
	assert.NoError(t, err)

	_, err = ScopeCategories(callerWith(false, false, false, 0))
	assert.ErrorIs(t, err, ErrNoRoleAssigned)
}

func TestMergeLeadFilters(t *testing.T) {
	scope := models.LeadFilter{OrganizerID: utils.ToPtr(uint(3))}

	t.Run("ScopeOverridesMissingField", func(t *testing.T) {
		merged := mergeLeadFilters(scope, models.LeadFilter{CategoryID: utils.ToPtr(uint(2))})
		assert.Equal(t, uint(3), *merged.OrganizerID)
		assert.Equal(t, uint(2), *merged.CategoryID)
		assert.Nil(t, merged.ID)
	})

	t.Run("ConflictingRequestMatchesNothing", func(t *testing.T) {
		merged := mergeLeadFilters(scope, models.LeadFilter{OrganizerID: utils.ToPtr(uint(9))})
		assert.Equal(t, uint(3), *merged.OrganizerID)
		require.NotNil(t, merged.ID)
		assert.Equal(t, uint(0), *merged.ID)
	})

	t.Run("UnscopedKeepsRequest", func(t *testing.T) {
		merged := mergeLeadFilters(models.LeadFilter{}, models.LeadFilter{OrganizerID: utils.ToPtr(uint(9))})
		assert.Equal(t, uint(9), *merged.OrganizerID)
	})
}
