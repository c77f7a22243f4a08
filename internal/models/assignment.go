package models

import "time"

// Assignment is a gradable unit of work inside an assignment category.
type Assignment struct {
	ID         uint               `gorm:"primaryKey" json:"id"`
	CategoryID uint               `gorm:"not null;uniqueIndex:idx_assignment_category_name" json:"category_id"`
	Name       string             `gorm:"size:100;not null;uniqueIndex:idx_assignment_category_name" json:"name"`
	MaxPoints  float64            `gorm:"not null;default:0" json:"max_points"`
	Contents   string             `gorm:"type:text" json:"contents"`
	DueDate    time.Time          `gorm:"not null" json:"due_date"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Category   AssignmentCategory `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}
