package database

import (
	"encoding/json"
	"fmt"
	"log"

	"kbot_backend/internal/config"
	"kbot_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.Charset,
		cfg.Database.ParseTime,
	)

	logMode := logger.Warn
	if cfg.Server.Mode == "debug" {
		logMode = logger.Info
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	// release 模式默认跳过迁移，除非显式传入 -migrate
	if cfg.Server.Mode != "release" || cfg.ForceMigrate {
		err = db.AutoMigrate(
			&model.KnowledgeBase{},
			&model.TeachingModule{},
			&model.TeachingConcept{},
			&model.TeachingCheckpoint{},
			&model.TeachingSession{},
			&model.TeachingInteraction{},
		)
		if err != nil {
			return nil, err
		}
		log.Println("Database migration completed")
	}

	seedDemoGraph(db)

	return db, nil
}

func mustJSON(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// seedDemoGraph 在空库时写入一个演示知识库，方便本地联调
func seedDemoGraph(db *gorm.DB) {
	var count int64
	db.Model(&model.KnowledgeBase{}).Count(&count)
	if count > 0 {
		return
	}

	kb := &model.KnowledgeBase{
		UUIDBase:     model.UUIDBase{ID: "kb-demo"},
		Name:         "学习方法入门",
		Description:  "演示用知识库：如何高效学习一份新材料",
		Status:       "ready",
		GraphVersion: 1,
	}
	if err := db.Create(kb).Error; err != nil {
		return
	}

	modules := []model.TeachingModule{
		{
			UUIDBase:           model.UUIDBase{ID: "m-recall"},
			KnowledgeBaseID:    kb.ID,
			Title:              "主动回忆",
			Description:       "为什么测试自己比重读更有效",
			SequenceOrder:      1,
			DifficultyLevel:    "beginner",
			EstimatedMinutes:   10,
			Prerequisites:      mustJSON([]string{}),
			LearningObjectives: mustJSON([]string{"解释主动回忆的原理", "设计一次自测"}),
		},
		{
			UUIDBase:           model.UUIDBase{ID: "m-spacing"},
			KnowledgeBaseID:    kb.ID,
			Title:              "间隔重复",
			Description:       "把复习分散到多天的记忆策略",
			SequenceOrder:      2,
			DifficultyLevel:    "beginner",
			EstimatedMinutes:   15,
			Prerequisites:      mustJSON([]string{"m-recall"}),
			LearningObjectives: mustJSON([]string{"说明遗忘曲线", "排出一周复习计划"}),
		},
	}
	for i := range modules {
		db.Create(&modules[i])
	}

	concepts := []model.TeachingConcept{
		{
			UUIDBase:              model.UUIDBase{ID: "c-recall-1"},
			ModuleID:              "m-recall",
			SequenceOrder:         1,
			Name:                  "检索练习",
			Explanation:           "主动回忆是指合上材料后凭记忆复述要点。检索本身会加深记忆痕迹，效果远好于重复阅读。",
			SimplifiedExplanation: "合上书，试着把刚学的内容讲出来，讲不出来的就是没学会的。",
			Keywords:              mustJSON([]string{"检索", "回忆", "记忆"}),
			Citations:             mustJSON([]interface{}{}),
		},
		{
			UUIDBase:      model.UUIDBase{ID: "c-spacing-1"},
			ModuleID:      "m-spacing",
			SequenceOrder: 1,
			Name:          "遗忘曲线",
			Explanation:   "记忆强度随时间指数衰减，在即将遗忘的节点复习收益最大。间隔重复就是围绕这条曲线安排复习。",
			Keywords:      mustJSON([]string{"遗忘曲线", "间隔", "复习"}),
			Citations:     mustJSON([]interface{}{}),
		},
	}
	for i := range concepts {
		db.Create(&concepts[i])
	}

	checkpoints := []model.TeachingCheckpoint{
		{
			UUIDBase:      model.UUIDBase{ID: "cp-recall-1"},
			ConceptID:     "c-recall-1",
			SequenceOrder: 1,
			Prompt:        "以下哪种做法属于主动回忆？",
			CorrectKey:    "B",
			Options: mustJSON([]map[string]string{
				{"key": "A", "text": "把课本重读三遍"},
				{"key": "B", "text": "合上课本默写要点"},
				{"key": "C", "text": "用荧光笔标出重点"},
			}),
			Keywords:  mustJSON([]string{}),
			Citations: mustJSON([]interface{}{}),
		},
	}
	for i := range checkpoints {
		db.Create(&checkpoints[i])
	}

	log.Println("Seeded demo teaching graph")
}
