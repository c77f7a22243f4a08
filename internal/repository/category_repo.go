package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// CategoryRepository persists assignment categories.
type CategoryRepository interface {
	GetByID(ctx context.Context, id uint) (models.AssignmentCategory, error)
	ExistsByName(ctx context.Context, classID uint, name string) (bool, error)
	Create(ctx context.Context, category *models.AssignmentCategory) error
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository constructs a category repository.
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint) (models.AssignmentCategory, error) {
	var category models.AssignmentCategory
	if err := conn(ctx, r.db).First(&category, id).Error; err != nil {
		return models.AssignmentCategory{}, err
	}

	return category, nil
}

func (r *categoryRepository) ExistsByName(ctx context.Context, classID uint, name string) (bool, error) {
	var category models.AssignmentCategory
	err := conn(ctx, r.db).
		Select("id").
		Where("class_id = ?", classID).
		Where("name = ?", name).
		First(&category).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.AssignmentCategory) error {
	return conn(ctx, r.db).Omit("Class", "Assignments").Create(category).Error
}
