package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/screening-api/internal/models"
)

// QuestionRepository exposes read access to questionnaire questions.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Question, error)
}

// NewQuestionRepository constructs a question repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

type questionRepository struct {
	db *gorm.DB
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).
		Preload("Category").
		First(&question, id).Error
	if err != nil {
		return models.Question{}, err
	}
	return question, nil
}
