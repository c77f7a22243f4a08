package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error)
	// Upsert inserts the submission or, when the student already submitted to the assignment,
	// replaces contents and submission time in place. The stored row is loaded back into submission.
	Upsert(ctx context.Context, submission *models.Submission) error
	UpdateScore(ctx context.Context, id uint, score float64) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := conn(ctx, r.db).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := conn(ctx, r.db).
		Preload("Student").
		Where("assignment_id = ?", assignmentID).
		Order("submitted_at ASC, id ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) Upsert(ctx context.Context, submission *models.Submission) error {
	db := conn(ctx, r.db)
	if err := db.Omit("Assignment", "Student").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"contents", "submitted_at", "updated_at"}),
		}).
		Create(submission).Error; err != nil {
		return err
	}

	stored, err := r.GetByAssignmentAndStudent(ctx, submission.AssignmentID, submission.StudentID)
	if err != nil {
		return err
	}
	*submission = stored
	return nil
}

func (r *submissionRepository) UpdateScore(ctx context.Context, id uint, score float64) error {
	result := conn(ctx, r.db).Model(&models.Submission{}).
		Where("id = ?", id).
		Update("score", score)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
