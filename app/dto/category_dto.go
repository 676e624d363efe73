package dto

// CategoryRequest serves create, PUT and PATCH; title is the only writable field
type CategoryRequest struct {
	Title string `json:"title" validate:"required,max=30" example:"Contacted"`
}

// CategoryDTO is the wire form of a category
type CategoryDTO struct {
	ID    uint   `json:"id" example:"1"`
	Title string `json:"title" example:"Contacted"`
}

// ListCategoriesRequest carries pagination for category listing
type ListCategoriesRequest struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListCategoriesResponse is one page of categories
type ListCategoriesResponse struct {
	Items      []CategoryDTO  `json:"items"`
	Pagination PaginationInfo `json:"pagination"`
}
