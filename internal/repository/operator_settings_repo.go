package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/screening-api/internal/models"
)

// OperatorSettingsRepository looks up per-operator metadata.
type OperatorSettingsRepository interface {
	Get(ctx context.Context, operatorID uint) (models.OperatorSettings, error)
}

// NewOperatorSettingsRepository constructs an operator settings repository.
func NewOperatorSettingsRepository(db *gorm.DB) OperatorSettingsRepository {
	return &operatorSettingsRepository{db: db}
}

type operatorSettingsRepository struct {
	db *gorm.DB
}

func (r *operatorSettingsRepository) Get(ctx context.Context, operatorID uint) (models.OperatorSettings, error) {
	var settings models.OperatorSettings
	err := r.db.WithContext(ctx).
		Where("operator_id = ?", operatorID).
		First(&settings).Error
	if err != nil {
		return models.OperatorSettings{}, err
	}
	return settings, nil
}
