package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// GradebookRepository exposes the read side the grade aggregator consumes: the category weight
// table of a class, the assignments of a category and a student's submission for an assignment.
type GradebookRepository interface {
	ListCategories(ctx context.Context, classID uint) ([]models.AssignmentCategory, error)
	ListAssignments(ctx context.Context, categoryID uint) ([]models.Assignment, error)
	// GetSubmission returns gorm.ErrRecordNotFound when the student never submitted.
	GetSubmission(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
}

type gradebookRepository struct {
	db *gorm.DB
}

// NewGradebookRepository instantiates the GORM-backed gradebook reader.
func NewGradebookRepository(db *gorm.DB) GradebookRepository {
	return &gradebookRepository{db: db}
}

func (r *gradebookRepository) ListCategories(ctx context.Context, classID uint) ([]models.AssignmentCategory, error) {
	var categories []models.AssignmentCategory
	if err := conn(ctx, r.db).
		Where("class_id = ?", classID).
		Order("id ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *gradebookRepository) ListAssignments(ctx context.Context, categoryID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := conn(ctx, r.db).
		Where("category_id = ?", categoryID).
		Order("id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *gradebookRepository) GetSubmission(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := conn(ctx, r.db).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}
