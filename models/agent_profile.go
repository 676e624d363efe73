package models

import "time"

// AgentProfile is the satellite record of an account holding the agent role.
// OrganizerID optionally points at the organizer managing this agent.
type AgentProfile struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	AccountID   uint              `gorm:"not null;uniqueIndex:uk_agent_profiles_account_id" json:"account_id"`
	Account     *Account          `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE" json:"account,omitempty"`
	OrganizerID *uint             `gorm:"index:idx_agent_profiles_organizer_id" json:"organizer_id,omitempty"`
	Organizer   *OrganizerProfile `gorm:"foreignKey:OrganizerID;references:ID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt   time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (AgentProfile) TableName() string {
	return "agent_profiles"
}

// AgentProfileFilter represents filter criteria for agent profile queries
type AgentProfileFilter struct {
	ID          *uint
	AccountID   *uint
	OrganizerID *uint
}
