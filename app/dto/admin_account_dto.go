package dto

// AdminListAccountsRequest filters the staff account listing
type AdminListAccountsRequest struct {
	Role     string `query:"role" validate:"omitempty,oneof=staff organizer agent none"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// AdminListAccountsResponse is one page of accounts
type AdminListAccountsResponse struct {
	Items      []AccountDTO   `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}

// UpdateAccountRolesRequest replaces the role flags of an account.
// ManagingOrganizer links an agent to the organizer profile that manages it.
type UpdateAccountRolesRequest struct {
	IsStaff           *bool `json:"is_staff,omitempty"`
	IsOrganizer       bool  `json:"is_organizer"`
	IsAgent           bool  `json:"is_agent"`
	ManagingOrganizer *uint `json:"managing_organizer,omitempty" validate:"omitempty,min=1"`
}
