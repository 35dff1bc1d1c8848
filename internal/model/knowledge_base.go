package model

// KnowledgeBase 知识库，教学图谱的归属单位
// 文档解析和图谱构建由外部流程完成，这里只保存图谱版本号
// swagger:model KnowledgeBase
type KnowledgeBase struct {
	UUIDBase
	Name         string `gorm:"size:255;not null" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	Status       string `gorm:"size:50;default:ready" json:"status"`
	GraphVersion int    `gorm:"default:0" json:"graphVersion"` // 每次导入图谱时递增
}

func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}
