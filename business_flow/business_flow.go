package businessflow

import (
	"time"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/utils"
)

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToAccountDTO converts an account and its profiles to the wire form
func ToAccountDTO(account models.Account, organizer *models.OrganizerProfile, agent *models.AgentProfile) dto.AccountDTO {
	out := dto.AccountDTO{
		ID:          account.ID,
		UUID:        account.UUID.String(),
		Username:    account.Username,
		Email:       account.Email,
		FirstName:   account.FirstName,
		LastName:    account.LastName,
		IsStaff:     account.IsStaff,
		IsOrganizer: account.IsOrganizer,
		IsAgent:     account.IsAgent,
		Role:        account.Role(),
		IsActive:    utils.IsTrue(account.IsActive),
		CreatedAt:   account.CreatedAt.UTC().Format(time.RFC3339),
		LastLoginAt: utils.FormatRFC3339Ptr(account.LastLoginAt),
	}
	if organizer != nil {
		out.OrganizerProfile = &organizer.ID
	}
	if agent != nil {
		out.AgentProfile = &agent.ID
	}
	return out
}

// ToLeadDTO converts a lead; the organizer field is only exposed to staff
func ToLeadDTO(lead models.Lead, staffView bool) dto.LeadDTO {
	out := dto.LeadDTO{
		ID:            lead.ID,
		FirstName:     lead.FirstName,
		LastName:      lead.LastName,
		Age:           lead.Age,
		Agent:         lead.AgentID,
		Category:      lead.CategoryID,
		Description:   lead.Description,
		DateAdded:     lead.DateAdded.UTC().Format(time.RFC3339),
		PhoneNumber:   lead.PhoneNumber,
		Email:         lead.Email,
		ConvertedDate: utils.FormatRFC3339Ptr(lead.ConvertedDate),
	}
	if staffView {
		organizerID := lead.OrganizerID
		out.Organizer = &organizerID
	}
	return out
}

func ToCategoryDTO(category models.Category) dto.CategoryDTO {
	return dto.CategoryDTO{
		ID:    category.ID,
		Title: category.Title,
	}
}

// normalizePage applies defaults and bounds to page parameters and returns the row offset
func normalizePage(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = utils.DefaultPageSize
	}
	if pageSize > utils.MaxPageSize {
		pageSize = utils.MaxPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}
