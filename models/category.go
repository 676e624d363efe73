package models

// CategoryTitleMaxLength bounds Category.Title
const CategoryTitleMaxLength = 30

type Category struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Title string `gorm:"size:30;not null" json:"title"`
}

func (Category) TableName() string {
	return "categories"
}

// CategoryFilter represents filter criteria for category queries
type CategoryFilter struct {
	ID    *uint
	Title *string
}
