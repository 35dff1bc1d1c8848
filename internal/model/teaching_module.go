package model

import "encoding/json"

// TeachingModule 教学模块，图谱中的主题级单元
// 导入后不可变，先修关系构成有向无环图
// swagger:model TeachingModule
type TeachingModule struct {
	UUIDBase
	KnowledgeBaseID    string          `gorm:"index;type:varchar(36);not null" json:"kbId"`
	Title              string          `gorm:"size:500;not null" json:"title"`
	Description        string          `gorm:"type:text" json:"description"`
	SequenceOrder      int             `gorm:"not null" json:"sequenceOrder"`
	DifficultyLevel    string          `gorm:"size:20" json:"difficultyLevel"` // beginner, intermediate, advanced
	EstimatedMinutes   int             `gorm:"default:0" json:"estimatedMinutes"`
	Prerequisites      json.RawMessage `gorm:"type:json" json:"prerequisites"`      // JSON: []string 模块ID
	LearningObjectives json.RawMessage `gorm:"type:json" json:"learningObjectives"` // JSON: []string
}

func (TeachingModule) TableName() string {
	return "teaching_modules"
}

// TeachingConcept 知识点，模块内最小教学单元
// 讲解内容带简化/进阶变体，缺失时回退到标准讲解
// swagger:model TeachingConcept
type TeachingConcept struct {
	UUIDBase
	ModuleID              string          `gorm:"index;type:varchar(36);not null" json:"moduleId"`
	SequenceOrder         int             `gorm:"not null" json:"sequenceOrder"`
	Name                  string          `gorm:"size:300;not null" json:"name"`
	Explanation           string          `gorm:"type:text;not null" json:"explanation"`
	SimplifiedExplanation string          `gorm:"type:text" json:"simplifiedExplanation"`
	AdvancedExplanation   string          `gorm:"type:text" json:"advancedExplanation"`
	Keywords              json.RawMessage `gorm:"type:json" json:"keywords"`  // JSON: []string
	Citations             json.RawMessage `gorm:"type:json" json:"citations"` // JSON: []Citation
}

func (TeachingConcept) TableName() string {
	return "teaching_concepts"
}

// TeachingCheckpoint 检查点问题，一个知识点可以有零个或多个
// swagger:model TeachingCheckpoint
type TeachingCheckpoint struct {
	UUIDBase
	ConceptID     string          `gorm:"index;type:varchar(36);not null" json:"conceptId"`
	SequenceOrder int             `gorm:"not null" json:"sequenceOrder"`
	Prompt        string          `gorm:"type:text;not null" json:"prompt"`
	CorrectKey    string          `gorm:"size:50" json:"correctKey"`    // 选择题的正确选项，空表示主观题
	Options       json.RawMessage `gorm:"type:json" json:"options"`     // JSON: []Option
	Keywords      json.RawMessage `gorm:"type:json" json:"keywords"`    // JSON: []string 主观题评分关键词
	PassThreshold float64         `gorm:"default:0" json:"passThreshold"` // 0 表示使用全局配置
	Citations     json.RawMessage `gorm:"type:json" json:"citations"`
}

func (TeachingCheckpoint) TableName() string {
	return "teaching_checkpoints"
}
