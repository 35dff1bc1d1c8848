package repository

import (
	"errors"

	"kbot_backend/internal/model"
	"kbot_backend/internal/util"

	"gorm.io/gorm"
)

// ModuleGraphRepository 教学图谱的持久化访问
// 图谱行在导入后只读，替换只通过 ReplaceGraph 的整体事务完成
type ModuleGraphRepository struct {
	DB *gorm.DB
}

func NewModuleGraphRepository(db *gorm.DB) *ModuleGraphRepository {
	return &ModuleGraphRepository{DB: db}
}

func (r *ModuleGraphRepository) FindKnowledgeBase(id string) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	err := r.DB.First(&kb, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUnknownKnowledgeBase
	}
	if err != nil {
		return nil, err
	}
	return &kb, nil
}

func (r *ModuleGraphRepository) ListModules(kbID string) ([]model.TeachingModule, error) {
	var modules []model.TeachingModule
	err := r.DB.Where("knowledge_base_id = ?", kbID).
		Order("sequence_order ASC").
		Find(&modules).Error
	return modules, err
}

func (r *ModuleGraphRepository) ListConcepts(moduleIDs []string) ([]model.TeachingConcept, error) {
	if len(moduleIDs) == 0 {
		return nil, nil
	}
	var concepts []model.TeachingConcept
	err := r.DB.Where("module_id IN ?", moduleIDs).
		Order("sequence_order ASC").
		Find(&concepts).Error
	return concepts, err
}

func (r *ModuleGraphRepository) ListCheckpoints(conceptIDs []string) ([]model.TeachingCheckpoint, error) {
	if len(conceptIDs) == 0 {
		return nil, nil
	}
	var checkpoints []model.TeachingCheckpoint
	err := r.DB.Where("concept_id IN ?", conceptIDs).
		Order("sequence_order ASC").
		Find(&checkpoints).Error
	return checkpoints, err
}

// ReplaceGraph 整体替换知识库的图谱并递增版本号，单事务内完成
// 旧行先物理删除再写入新行，避免软删除残留干扰唯一索引
func (r *ModuleGraphRepository) ReplaceGraph(kbID string, modules []model.TeachingModule, concepts []model.TeachingConcept, checkpoints []model.TeachingCheckpoint) (int, error) {
	var newVersion int

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var kb model.KnowledgeBase
		if err := tx.First(&kb, "id = ?", kbID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrUnknownKnowledgeBase
			}
			return err
		}

		var oldModules []model.TeachingModule
		if err := tx.Where("knowledge_base_id = ?", kbID).Find(&oldModules).Error; err != nil {
			return err
		}
		if len(oldModules) > 0 {
			moduleIDs := make([]string, len(oldModules))
			for i, m := range oldModules {
				moduleIDs[i] = m.ID
			}
			var oldConcepts []model.TeachingConcept
			if err := tx.Where("module_id IN ?", moduleIDs).Find(&oldConcepts).Error; err != nil {
				return err
			}
			if len(oldConcepts) > 0 {
				conceptIDs := make([]string, len(oldConcepts))
				for i, c := range oldConcepts {
					conceptIDs[i] = c.ID
				}
				if err := tx.Unscoped().Where("concept_id IN ?", conceptIDs).Delete(&model.TeachingCheckpoint{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Unscoped().Where("module_id IN ?", moduleIDs).Delete(&model.TeachingConcept{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("knowledge_base_id = ?", kbID).Delete(&model.TeachingModule{}).Error; err != nil {
				return err
			}
		}

		for i := range modules {
			if err := tx.Create(&modules[i]).Error; err != nil {
				return err
			}
		}
		for i := range concepts {
			if err := tx.Create(&concepts[i]).Error; err != nil {
				return err
			}
		}
		for i := range checkpoints {
			if err := tx.Create(&checkpoints[i]).Error; err != nil {
				return err
			}
		}

		newVersion = kb.GraphVersion + 1
		return tx.Model(&kb).Update("graph_version", newVersion).Error
	})

	return newVersion, err
}
