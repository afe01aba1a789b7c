package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/screening-api/internal/models"
)

// ApplicantRepository manages applicant records.
type ApplicantRepository interface {
	GetByID(ctx context.Context, id uint) (models.Applicant, error)
	DeleteWithResponses(ctx context.Context, id uint) error
}

// NewApplicantRepository constructs an applicant repository.
func NewApplicantRepository(db *gorm.DB) ApplicantRepository {
	return &applicantRepository{db: db}
}

type applicantRepository struct {
	db *gorm.DB
}

func (r *applicantRepository) GetByID(ctx context.Context, id uint) (models.Applicant, error) {
	var applicant models.Applicant
	if err := r.db.WithContext(ctx).First(&applicant, id).Error; err != nil {
		return models.Applicant{}, err
	}
	return applicant, nil
}

// DeleteWithResponses removes the applicant's responses and then the
// applicant in one transaction.
func (r *applicantRepository) DeleteWithResponses(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("applicant_id = ?", id).Delete(&models.Response{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Applicant{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
