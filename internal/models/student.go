package models

import "time"

// Student represents a learner that can enroll in classes and submit assignments.
type Student struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UID       string    `gorm:"size:16;uniqueIndex;not null" json:"uid"`
	FirstName string    `gorm:"size:100;not null" json:"first_name"`
	LastName  string    `gorm:"size:100;not null" json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
