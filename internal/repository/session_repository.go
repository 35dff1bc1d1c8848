package repository

import (
	"context"
	"errors"

	"kbot_backend/internal/model"
	"kbot_backend/internal/util"

	"gorm.io/gorm"
)

// SessionRepository 教学会话持久化，实现 service.SessionStore
// CommitInteraction 以 last_sequence 为CAS条件，会话更新和交互流水
// 在同一事务内提交，这是跨进程串行化的最终防线
type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(ctx context.Context, sess *model.TeachingSession) error {
	return r.DB.WithContext(ctx).Create(sess).Error
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*model.TeachingSession, error) {
	var sess model.TeachingSession
	err := r.DB.WithContext(ctx).First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUnknownSession
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *SessionRepository) FindActive(ctx context.Context, userID, kbID string) (*model.TeachingSession, error) {
	var sess model.TeachingSession
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND knowledge_base_id = ? AND state NOT IN ?",
			userID, kbID, []string{model.StateComplete, model.StateAbandoned}).
		Order("last_active_at DESC").
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUnknownSession
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (r *SessionRepository) CommitInteraction(ctx context.Context, sess *model.TeachingSession, expectedLastSeq int64, rec *model.TeachingInteraction) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TeachingSession{}).
			Where("id = ? AND last_sequence = ?", sess.ID, expectedLastSeq).
			Select("*").
			Omit("id", "created_at").
			Updates(sess)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 序列号已被并发提交推进，或会话不存在
			var count int64
			if err := tx.Model(&model.TeachingSession{}).Where("id = ?", sess.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return util.ErrUnknownSession
			}
			return util.ErrSequenceConflict
		}
		if rec != nil {
			return tx.Create(rec).Error
		}
		return nil
	})
}

func (r *SessionRepository) SaveState(ctx context.Context, sess *model.TeachingSession) error {
	return r.DB.WithContext(ctx).Save(sess).Error
}

// CountActive 未结束会话数，启动时初始化监控指标用
func (r *SessionRepository) CountActive() (int64, error) {
	var count int64
	err := r.DB.Model(&model.TeachingSession{}).
		Where("state NOT IN ?", []string{model.StateComplete, model.StateAbandoned}).
		Count(&count).Error
	return count, err
}
