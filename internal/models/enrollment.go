package models

import "time"

// Enrollment links a student to a class and carries the derived letter grade.
// Grade stays NULL until the first successful recalculation produces one.
type Enrollment struct {
	ClassID   uint      `gorm:"primaryKey;autoIncrement:false" json:"class_id"`
	StudentID uint      `gorm:"primaryKey;autoIncrement:false" json:"student_id"`
	Grade     *string   `gorm:"size:2" json:"grade"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Class     Class     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student   Student   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// HasGrade reports whether a grade has been computed for the enrollment.
func (e Enrollment) HasGrade() bool {
	return e.Grade != nil
}

// AllModels lists every model managed by AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Student{},
		&Class{},
		&AssignmentCategory{},
		&Assignment{},
		&Submission{},
		&Enrollment{},
	}
}
