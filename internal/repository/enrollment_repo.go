package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// EnrollmentRepository manages enrollment rows and their derived grade column.
type EnrollmentRepository interface {
	Get(ctx context.Context, classID, studentID uint) (models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	ListStudentIDs(ctx context.Context, classID uint) ([]uint, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Enrollment, error)
	// WriteGrade stores the letter grade, or NULL when grade is nil. It returns
	// gorm.ErrRecordNotFound when the student is not enrolled in the class.
	WriteGrade(ctx context.Context, classID, studentID uint, grade *string) error
}

type enrollmentRepository struct {
	db *gorm.DB
}

// NewEnrollmentRepository constructs an enrollment repository.
func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) Get(ctx context.Context, classID, studentID uint) (models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := conn(ctx, r.db).
		Where("class_id = ?", classID).
		Where("student_id = ?", studentID).
		First(&enrollment).Error; err != nil {
		return models.Enrollment{}, err
	}

	return enrollment, nil
}

func (r *enrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	return conn(ctx, r.db).Omit("Class", "Student").Create(enrollment).Error
}

func (r *enrollmentRepository) ListStudentIDs(ctx context.Context, classID uint) ([]uint, error) {
	var ids []uint
	if err := conn(ctx, r.db).Model(&models.Enrollment{}).
		Where("class_id = ?", classID).
		Order("student_id ASC").
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *enrollmentRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	if err := conn(ctx, r.db).
		Where("student_id = ?", studentID).
		Order("class_id ASC").
		Find(&enrollments).Error; err != nil {
		return nil, err
	}

	return enrollments, nil
}

func (r *enrollmentRepository) WriteGrade(ctx context.Context, classID, studentID uint, grade *string) error {
	var value interface{}
	if grade != nil {
		value = *grade
	}

	result := conn(ctx, r.db).Model(&models.Enrollment{}).
		Where("class_id = ?", classID).
		Where("student_id = ?", studentID).
		Update("grade", value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
