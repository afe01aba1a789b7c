package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/screening-api/internal/models"
)

// ResponseRepository persists applicant answers and their scores.
type ResponseRepository interface {
	GetByID(ctx context.Context, id uint) (models.Response, error)
	GetByApplicantQuestion(ctx context.Context, applicantID, questionID uint) (models.Response, error)
	ListUnscored(ctx context.Context) ([]models.Response, error)
	ListByApplicant(ctx context.Context, applicantID uint) ([]models.Response, error)
	UpdateScore(ctx context.Context, applicantID, questionID uint, score float64) (int64, error)
	UpdateScoreByID(ctx context.Context, id uint, score float64) (int64, error)
	ResetScores(ctx context.Context, applicantID uint) (int64, error)
}

// NewResponseRepository constructs a response repository.
func NewResponseRepository(db *gorm.DB) ResponseRepository {
	return &responseRepository{db: db}
}

type responseRepository struct {
	db *gorm.DB
}

func (r *responseRepository) GetByID(ctx context.Context, id uint) (models.Response, error) {
	var response models.Response
	err := r.db.WithContext(ctx).
		Preload("Question.Category").
		First(&response, id).Error
	if err != nil {
		return models.Response{}, err
	}
	return response, nil
}

func (r *responseRepository) GetByApplicantQuestion(ctx context.Context, applicantID, questionID uint) (models.Response, error) {
	var response models.Response
	err := r.db.WithContext(ctx).
		Preload("Question").
		Where("applicant_id = ? AND question_id = ?", applicantID, questionID).
		First(&response).Error
	if err != nil {
		return models.Response{}, err
	}
	return response, nil
}

// ListUnscored returns free-text responses to visible questions that have no
// score yet, oldest first.
func (r *responseRepository) ListUnscored(ctx context.Context) ([]models.Response, error) {
	var responses []models.Response
	err := r.db.WithContext(ctx).
		Joins("JOIN questions ON questions.id = responses.question_id").
		Where("questions.is_hidden = ?", false).
		Where("responses.score IS NULL").
		Where("responses.is_selection_response = ?", false).
		Preload("Question").
		Order("responses.created_at ASC").
		Order("responses.id ASC").
		Find(&responses).Error
	if err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *responseRepository) ListByApplicant(ctx context.Context, applicantID uint) ([]models.Response, error) {
	var responses []models.Response
	err := r.db.WithContext(ctx).
		Joins("JOIN questions ON questions.id = responses.question_id").
		Where("responses.applicant_id = ?", applicantID).
		Where("questions.is_hidden = ?", false).
		Preload("Question.Category").
		Order("responses.id ASC").
		Find(&responses).Error
	if err != nil {
		return nil, err
	}
	return responses, nil
}

func (r *responseRepository) UpdateScore(ctx context.Context, applicantID, questionID uint, score float64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Response{}).
		Where("applicant_id = ? AND question_id = ?", applicantID, questionID).
		Update("score", score)
	return result.RowsAffected, result.Error
}

func (r *responseRepository) UpdateScoreByID(ctx context.Context, id uint, score float64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Response{}).
		Where("id = ?", id).
		Update("score", score)
	return result.RowsAffected, result.Error
}

// ResetScores clears the scores of an applicant's free-text responses.
func (r *responseRepository) ResetScores(ctx context.Context, applicantID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Response{}).
		Where("applicant_id = ? AND is_selection_response = ?", applicantID, false).
		Update("score", gorm.Expr("NULL"))
	return result.RowsAffected, result.Error
}
