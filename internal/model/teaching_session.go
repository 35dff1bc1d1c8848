package model

import "time"

// 会话状态机各状态
const (
	StateAwaitingOptionChoice     = "AWAITING_OPTION_CHOICE"
	StatePresentingContent        = "PRESENTING_CONTENT"
	StateAwaitingCheckpointAnswer = "AWAITING_CHECKPOINT_ANSWER"
	StatePresentingSummary        = "PRESENTING_SUMMARY"
	StateComplete                 = "COMPLETE"
	StateAbandoned                = "ABANDONED"
)

// 自适应难度模式，只能沿 simplified <-> standard <-> advanced 逐级移动
const (
	ModeSimplified = "simplified"
	ModeStandard   = "standard"
	ModeAdvanced   = "advanced"
)

// SimplerMode 向简化方向移动一级
func SimplerMode(mode string) string {
	switch mode {
	case ModeAdvanced:
		return ModeStandard
	default:
		return ModeSimplified
	}
}

// HarderMode 向进阶方向移动一级
func HarderMode(mode string) string {
	switch mode {
	case ModeSimplified:
		return ModeStandard
	default:
		return ModeAdvanced
	}
}

// StringSet 会话里的集合型JSON字段（已完成知识点等）
type StringSet map[string]bool

func (s StringSet) Add(id string) {
	s[id] = true
}

func (s StringSet) Has(id string) bool {
	return s[id]
}

func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// StringList 有序的字符串JSON字段
type StringList []string

func (l StringList) Clone() StringList {
	out := make(StringList, len(l))
	copy(out, l)
	return out
}

func (l StringList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// RetryCounts 检查点ID到已答错次数的映射
type RetryCounts map[string]int

func (r RetryCounts) Clone() RetryCounts {
	out := make(RetryCounts, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// NavPosition 导航栈中的一个历史位置
type NavPosition struct {
	ModuleID     string `json:"moduleId"`
	ConceptID    string `json:"conceptId"`
	CheckpointID string `json:"checkpointId"`
	State        string `json:"state"`
}

// NavStack 有界导航栈，后进先出
type NavStack []NavPosition

// Push 压入位置，超出深度时丢弃最早的记录
func (n NavStack) Push(pos NavPosition, maxDepth int) NavStack {
	out := append(n, pos)
	if maxDepth > 0 && len(out) > maxDepth {
		out = out[len(out)-maxDepth:]
	}
	return out
}

// Pop 弹出最近的位置，栈为空时 ok 为 false
func (n NavStack) Pop() (NavStack, NavPosition, bool) {
	if len(n) == 0 {
		return n, NavPosition{}, false
	}
	return n[:len(n)-1], n[len(n)-1], true
}

func (n NavStack) Clone() NavStack {
	out := make(NavStack, len(n))
	copy(out, n)
	return out
}

// TeachingSession 教学会话，用户在某知识库图谱上的一次学习过程
// 位置状态只允许教学服务读写，LastResponse 缓存最近一次响应用于幂等重放
// swagger:model TeachingSession
type TeachingSession struct {
	UUIDBase
	UserID                string      `gorm:"index;type:varchar(36);not null" json:"userId"`
	KnowledgeBaseID       string      `gorm:"index;type:varchar(36);not null" json:"kbId"`
	GraphVersion          int         `gorm:"default:0" json:"graphVersion"`
	State                 string      `gorm:"size:40;not null" json:"state"`
	AdaptiveMode          string      `gorm:"size:20;default:standard" json:"adaptiveMode"`
	CurrentModuleID       string      `gorm:"type:varchar(36)" json:"currentModuleId"`
	CurrentConceptID      string      `gorm:"type:varchar(36)" json:"currentConceptId"`
	CurrentCheckpointID   string      `gorm:"type:varchar(36)" json:"currentCheckpointId"`
	LastSequence          int64       `gorm:"default:0" json:"lastSequence"`
	NavStack              NavStack    `gorm:"type:json;serializer:json" json:"-"`
	CompletedConcepts     StringSet   `gorm:"type:json;serializer:json" json:"-"`
	AnsweredCheckpoints   StringSet   `gorm:"type:json;serializer:json" json:"-"`
	UnresolvedCheckpoints StringList  `gorm:"type:json;serializer:json" json:"unresolvedCheckpoints"`
	CheckpointRetries     RetryCounts `gorm:"type:json;serializer:json" json:"-"`
	ModuleWrongCount      int         `gorm:"default:0" json:"moduleWrongCount"`
	ModuleFirstTry        bool        `gorm:"default:true" json:"-"`
	LastResponse          string      `gorm:"type:longtext" json:"-"`
	StartedAt             time.Time   `json:"startedAt"`
	LastActiveAt          time.Time   `json:"lastActiveAt"`
	CompletedAt           *time.Time  `json:"completedAt"`
}

func (TeachingSession) TableName() string {
	return "teaching_sessions"
}

// Terminal 会话是否已结束（完成或放弃）
func (s *TeachingSession) Terminal() bool {
	return s.State == StateComplete || s.State == StateAbandoned
}

// Clone 深拷贝，引擎先在副本上变更，提交成功后才对外可见
func (s *TeachingSession) Clone() *TeachingSession {
	out := *s
	out.NavStack = s.NavStack.Clone()
	out.CompletedConcepts = s.CompletedConcepts.Clone()
	out.AnsweredCheckpoints = s.AnsweredCheckpoints.Clone()
	out.UnresolvedCheckpoints = s.UnresolvedCheckpoints.Clone()
	out.CheckpointRetries = s.CheckpointRetries.Clone()
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
