package models

import "time"

// AssignmentCategory groups assignments of a class under a relative weight.
type AssignmentCategory struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	ClassID     uint         `gorm:"not null;uniqueIndex:idx_category_class_name" json:"class_id"`
	Name        string       `gorm:"size:100;not null;uniqueIndex:idx_category_class_name" json:"name"`
	Weight      float64      `gorm:"not null;default:0" json:"weight"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Class       Class        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Assignments []Assignment `gorm:"foreignKey:CategoryID" json:"assignments,omitempty"`
}
