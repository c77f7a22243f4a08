package models

import "time"

// Class is one offering of a course for a single semester.
type Class struct {
	ID         uint                 `gorm:"primaryKey" json:"id"`
	Subject    string               `gorm:"size:4;not null;index:idx_class_offering,unique" json:"subject"`
	Number     uint                 `gorm:"not null;index:idx_class_offering,unique" json:"number"`
	Season     string               `gorm:"size:10;not null;index:idx_class_offering,unique" json:"season"`
	Year       uint                 `gorm:"not null;index:idx_class_offering,unique" json:"year"`
	Location   string               `gorm:"size:100" json:"location"`
	TaughtBy   *uint                `json:"taught_by"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
	Categories []AssignmentCategory `json:"categories,omitempty"`
}
