package models

import "time"

// Submission is the single record a student holds for one assignment. Resubmitting replaces
// Contents and SubmittedAt in place; Score is only changed by grading.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"assignment_id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_submission_assignment_student" json:"student_id"`
	Score        float64    `gorm:"not null;default:0" json:"score"`
	Contents     string     `gorm:"type:text" json:"contents"`
	SubmittedAt  time.Time  `gorm:"not null" json:"submitted_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Assignment   Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student      Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
