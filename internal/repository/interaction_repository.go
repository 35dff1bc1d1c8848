package repository

import (
	"context"

	"kbot_backend/internal/model"

	"gorm.io/gorm"
)

// InteractionRepository 交互流水的只读查询
// 写入发生在 SessionRepository.CommitInteraction 的事务内
type InteractionRepository struct {
	DB *gorm.DB
}

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{DB: db}
}

func (r *InteractionRepository) ListBySession(ctx context.Context, sessionID string, page, limit int) ([]model.TeachingInteraction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var total int64
	query := r.DB.WithContext(ctx).Model(&model.TeachingInteraction{}).Where("session_id = ?", sessionID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.TeachingInteraction
	err := query.Order("sequence ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&records).Error
	return records, total, err
}
