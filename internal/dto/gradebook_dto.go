package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// UngradedPlaceholder is shown in place of a missing enrollment grade.
const UngradedPlaceholder = "--"

// CategoryCreateRequest creates an assignment category within a class.
type CategoryCreateRequest struct {
	Name   string  `json:"name" validate:"required,max=100"`
	Weight float64 `json:"weight" validate:"gte=0"`
}

// CategoryResponse is returned after a category is created.
type CategoryResponse struct {
	ID        uint      `json:"id"`
	ClassID   uint      `json:"class_id"`
	Name      string    `json:"name"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// NewCategoryResponse converts a category model into a DTO.
func NewCategoryResponse(model models.AssignmentCategory) CategoryResponse {
	return CategoryResponse{
		ID:        model.ID,
		ClassID:   model.ClassID,
		Name:      model.Name,
		Weight:    model.Weight,
		CreatedAt: model.CreatedAt,
	}
}

// AssignmentCreateRequest creates an assignment inside a category.
type AssignmentCreateRequest struct {
	Name      string    `json:"name" validate:"required,max=100"`
	MaxPoints float64   `json:"max_points" validate:"gte=0"`
	DueDate   time.Time `json:"due_date" validate:"required"`
	Contents  string    `json:"contents"`
}

// AssignmentResponse describes a created assignment and the grades it caused to be rewritten.
type AssignmentResponse struct {
	ID              uint      `json:"id"`
	CategoryID      uint      `json:"category_id"`
	ClassID         uint      `json:"class_id"`
	Name            string    `json:"name"`
	MaxPoints       float64   `json:"max_points"`
	DueDate         time.Time `json:"due_date"`
	Contents        string    `json:"contents"`
	RecalculatedFor int       `json:"recalculated_for"`
}

// NewAssignmentResponse converts an assignment model into a DTO.
func NewAssignmentResponse(model models.Assignment, classID uint, recalculated int) AssignmentResponse {
	return AssignmentResponse{
		ID:              model.ID,
		CategoryID:      model.CategoryID,
		ClassID:         classID,
		Name:            model.Name,
		MaxPoints:       model.MaxPoints,
		DueDate:         model.DueDate,
		Contents:        model.Contents,
		RecalculatedFor: recalculated,
	}
}

// SubmissionRequest submits or resubmits text contents for an assignment.
type SubmissionRequest struct {
	StudentID uint   `json:"student_id" validate:"required,gt=0"`
	Contents  string `json:"contents" validate:"required"`
}

// GradeSubmissionRequest sets the score of a submission.
type GradeSubmissionRequest struct {
	Score float64 `json:"score" validate:"gte=0"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID           uint      `json:"id"`
	AssignmentID uint      `json:"assignment_id"`
	StudentID    uint      `json:"student_id"`
	Score        float64   `json:"score"`
	Contents     string    `json:"contents"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Late         bool      `json:"late"`
	ClassGrade   *string   `json:"class_grade,omitempty"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		Score:        model.Score,
		Contents:     model.Contents,
		SubmittedAt:  model.SubmittedAt,
	}
}

// AssignmentSubmissionResponse is one row of a professor's view of an assignment's submissions.
type AssignmentSubmissionResponse struct {
	StudentID   uint      `json:"student_id"`
	UID         string    `json:"uid"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	SubmittedAt time.Time `json:"submitted_at"`
	Score       float64   `json:"score"`
	Late        bool      `json:"late"`
}

// StudentAssignmentResponse lists an assignment of a class together with the student's score.
// Score and SubmittedAt are null when the student has not submitted.
type StudentAssignmentResponse struct {
	AssignmentID uint       `json:"assignment_id"`
	Name         string     `json:"name"`
	Category     string     `json:"category"`
	DueDate      time.Time  `json:"due_date"`
	MaxPoints    float64    `json:"max_points"`
	Score        *float64   `json:"score"`
	SubmittedAt  *time.Time `json:"submitted_at"`
	Late         bool       `json:"late"`
}

// EnrollmentResponse reports a class enrollment and its derived grade.
type EnrollmentResponse struct {
	ClassID      uint    `json:"class_id"`
	StudentID    uint    `json:"student_id"`
	Grade        *string `json:"grade"`
	DisplayGrade string  `json:"display_grade"`
}

// NewEnrollmentResponse converts an Enrollment model into a DTO.
func NewEnrollmentResponse(model models.Enrollment) EnrollmentResponse {
	display := UngradedPlaceholder
	if model.Grade != nil {
		display = *model.Grade
	}

	return EnrollmentResponse{
		ClassID:      model.ClassID,
		StudentID:    model.StudentID,
		Grade:        model.Grade,
		DisplayGrade: display,
	}
}

// NewEnrollmentResponseSlice converts enrollment models into DTOs.
func NewEnrollmentResponseSlice(items []models.Enrollment) []EnrollmentResponse {
	responses := make([]EnrollmentResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewEnrollmentResponse(item))
	}
	return responses
}

// GPAResponse carries a student's GPA.
type GPAResponse struct {
	StudentID uint    `json:"student_id"`
	GPA       float64 `json:"gpa"`
}

// CategoryBreakdown is one category's contribution in a grade report.
type CategoryBreakdown struct {
	CategoryID  uint    `json:"category_id"`
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Assignments int     `json:"assignments"`
	Earned      float64 `json:"earned"`
	MaxPoints   float64 `json:"max_points"`
	Percentage  float64 `json:"percentage"`
	Included    bool    `json:"included"`
}

// ClassGradeResponse reports a student's computed grade for a class.
type ClassGradeResponse struct {
	ClassID     uint                `json:"class_id"`
	StudentID   uint                `json:"student_id"`
	Graded      bool                `json:"graded"`
	Percentage  *float64            `json:"percentage"`
	Letter      *string             `json:"letter"`
	StoredGrade *string             `json:"stored_grade,omitempty"`
	Categories  []CategoryBreakdown `json:"categories"`
}
