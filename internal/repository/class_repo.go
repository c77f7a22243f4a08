package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// ClassRepository provides access to class offerings.
type ClassRepository interface {
	GetByID(ctx context.Context, id uint) (models.Class, error)
}

type classRepository struct {
	db *gorm.DB
}

// NewClassRepository constructs a class repository.
func NewClassRepository(db *gorm.DB) ClassRepository {
	return &classRepository{db: db}
}

func (r *classRepository) GetByID(ctx context.Context, id uint) (models.Class, error) {
	var class models.Class
	if err := conn(ctx, r.db).First(&class, id).Error; err != nil {
		return models.Class{}, err
	}

	return class, nil
}
