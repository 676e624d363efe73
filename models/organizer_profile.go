package models

import "time"

// OrganizerProfile is the satellite record of an account holding the organizer role.
// Organizers own leads and may manage agents.
type OrganizerProfile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;uniqueIndex:uk_organizer_profiles_account_id" json:"account_id"`
	Account   *Account  `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE" json:"account,omitempty"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (OrganizerProfile) TableName() string {
	return "organizer_profiles"
}

// OrganizerProfileFilter represents filter criteria for organizer profile queries
type OrganizerProfileFilter struct {
	ID        *uint
	AccountID *uint
}
