package models

import "time"

type Lead struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	FirstName string `gorm:"size:40;not null" json:"first_name"`
	LastName  string `gorm:"size:40;not null" json:"last_name"`
	Age       int    `gorm:"not null;default:0" json:"age"`

	OrganizerID uint              `gorm:"not null;index:idx_leads_organizer_id" json:"organizer"`
	Organizer   *OrganizerProfile `gorm:"foreignKey:OrganizerID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	AgentID     *uint             `gorm:"index:idx_leads_agent_id" json:"agent"`
	Agent       *AgentProfile     `gorm:"foreignKey:AgentID;references:ID;constraint:OnDelete:SET NULL" json:"-"`
	CategoryID  *uint             `gorm:"index:idx_leads_category_id" json:"category"`
	Category    *Category         `gorm:"foreignKey:CategoryID;references:ID;constraint:OnDelete:SET NULL" json:"-"`

	Description   string     `gorm:"type:text;not null" json:"description"`
	DateAdded     time.Time  `gorm:"not null;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_leads_date_added" json:"date_added"`
	PhoneNumber   string     `gorm:"size:20;not null" json:"phone_number"`
	Email         string     `gorm:"size:254;not null" json:"email"`
	ConvertedDate *time.Time `json:"converted_date"`
}

func (Lead) TableName() string {
	return "leads"
}

// FullName is the display name used in notifications and exports
func (l *Lead) FullName() string {
	return l.FirstName + " " + l.LastName
}

// IsConverted reports whether the lead has a conversion timestamp
func (l *Lead) IsConverted() bool {
	return l.ConvertedDate != nil
}

// LeadFilter represents filter criteria for lead queries.
// Search matches description case-insensitively.
type LeadFilter struct {
	ID              *uint
	OrganizerID     *uint
	AgentID         *uint
	CategoryID      *uint
	Search          *string
	IsConverted     *bool
	DateAddedAfter  *time.Time // inclusive
	DateAddedBefore *time.Time // exclusive
}

// Lead orderings accepted by list queries, mapped to SQL
var LeadOrderings = map[string]string{
	"category":    "category_id ASC NULLS LAST, id ASC",
	"-category":   "category_id DESC NULLS LAST, id DESC",
	"date_added":  "date_added ASC, id ASC",
	"-date_added": "date_added DESC, id DESC",
}
