package model

// 交互类型
const (
	InteractionOptionChoice     = "option_choice"
	InteractionContinue         = "continue"
	InteractionElaboration      = "elaboration"
	InteractionBack             = "back"
	InteractionCheckpointAnswer = "checkpoint_answer"
	InteractionSummaryAck       = "summary_ack"
	InteractionTerminal         = "terminal"
	InteractionInvalid          = "invalid"
)

// TeachingInteraction 交互流水，追加写入后不再修改
// 用于审计、分析和序列号冲突排查
// swagger:model TeachingInteraction
type TeachingInteraction struct {
	UUIDBase
	SessionID         string `gorm:"uniqueIndex:idx_session_seq;type:varchar(36);not null" json:"sessionId"`
	Sequence          int64  `gorm:"uniqueIndex:idx_session_seq;not null" json:"sequence"`
	ModuleID          string `gorm:"type:varchar(36)" json:"moduleId"`
	ConceptID         string `gorm:"type:varchar(36)" json:"conceptId"`
	CheckpointID      string `gorm:"type:varchar(36)" json:"checkpointId"`
	Kind              string `gorm:"size:50;not null" json:"kind"`
	UserInput         string `gorm:"type:text" json:"userInput"`
	ResponseType      string `gorm:"size:50" json:"responseType"`
	CheckpointCorrect *bool  `json:"checkpointCorrect"`
}

func (TeachingInteraction) TableName() string {
	return "teaching_interactions"
}
