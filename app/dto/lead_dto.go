package dto

import "time"

// LeadRequest is the full lead payload used by POST and PUT.
// Organizer is honoured only for staff callers.
type LeadRequest struct {
	FirstName     string     `json:"first_name" validate:"required,max=40" example:"John"`
	LastName      string     `json:"last_name" validate:"required,max=40" example:"Smith"`
	Age           int        `json:"age" validate:"min=0,max=150" example:"34"`
	Organizer     *uint      `json:"organizer,omitempty" example:"3"`
	Agent         *uint      `json:"agent" example:"5"`
	Category      *uint      `json:"category" example:"1"`
	Description   string     `json:"description" validate:"required" example:"Met at the expo, wants a demo"`
	PhoneNumber   string     `json:"phone_number" validate:"required,max=20" example:"+15551234567"`
	Email         string     `json:"email" validate:"required,email,max=254" example:"john@example.com"`
	ConvertedDate *time.Time `json:"converted_date" example:"2024-02-01T12:00:00Z"`
}

// PatchLeadRequest updates only the provided fields.
// Clear* flags null out the optional references, since a JSON null is indistinguishable from absence.
type PatchLeadRequest struct {
	FirstName          *string    `json:"first_name,omitempty" validate:"omitempty,min=1,max=40"`
	LastName           *string    `json:"last_name,omitempty" validate:"omitempty,min=1,max=40"`
	Age                *int       `json:"age,omitempty" validate:"omitempty,min=0,max=150"`
	Organizer          *uint      `json:"organizer,omitempty"`
	Agent              *uint      `json:"agent,omitempty"`
	ClearAgent         bool       `json:"clear_agent,omitempty"`
	Category           *uint      `json:"category,omitempty"`
	ClearCategory      bool       `json:"clear_category,omitempty"`
	Description        *string    `json:"description,omitempty" validate:"omitempty,min=1"`
	PhoneNumber        *string    `json:"phone_number,omitempty" validate:"omitempty,min=1,max=20"`
	Email              *string    `json:"email,omitempty" validate:"omitempty,email,max=254"`
	ConvertedDate      *time.Time `json:"converted_date,omitempty"`
	ClearConvertedDate bool       `json:"clear_converted_date,omitempty"`
}

// LeadDTO is the wire form of a lead. Organizer is omitted for non-staff callers.
type LeadDTO struct {
	ID            uint    `json:"id" example:"42"`
	FirstName     string  `json:"first_name" example:"John"`
	LastName      string  `json:"last_name" example:"Smith"`
	Age           int     `json:"age" example:"34"`
	Organizer     *uint   `json:"organizer,omitempty" example:"3"`
	Agent         *uint   `json:"agent" example:"5"`
	Category      *uint   `json:"category" example:"1"`
	Description   string  `json:"description"`
	DateAdded     string  `json:"date_added" example:"2024-01-15T10:30:00Z"`
	PhoneNumber   string  `json:"phone_number" example:"+15551234567"`
	Email         string  `json:"email" example:"john@example.com"`
	ConvertedDate *string `json:"converted_date" example:"2024-02-01T12:00:00Z"`
}

// ListLeadsRequest carries list filters parsed from the query string.
// Dates are YYYY-MM-DD in UTC; date_added_after includes that day, date_added_before excludes it.
type ListLeadsRequest struct {
	Category        *uint  `query:"category" validate:"omitempty,min=1"`
	Agent           *uint  `query:"agent" validate:"omitempty,min=1"`
	Organizer       *uint  `query:"organizer" validate:"omitempty,min=1"`
	Converted       *bool  `query:"converted"`
	DateAddedAfter  string `query:"date_added_after" validate:"omitempty,datetime=2006-01-02"`
	DateAddedBefore string `query:"date_added_before" validate:"omitempty,datetime=2006-01-02"`
	Search          string `query:"search" validate:"omitempty,max=200"`
	Ordering        string `query:"ordering" validate:"omitempty,oneof=category -category date_added -date_added"`
	Page            int    `query:"page" validate:"omitempty,min=1"`
	PageSize        int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListLeadsResponse is one page of visible leads
type ListLeadsResponse struct {
	Items      []LeadDTO      `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}
