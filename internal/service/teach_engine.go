package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"kbot_backend/internal/config"
	"kbot_backend/internal/model"
	"kbot_backend/internal/util"
	"kbot_backend/pkg/logger"
	"kbot_backend/pkg/monitoring"
	"kbot_backend/pkg/tracing"

	"go.uber.org/zap"
)

// GraphProvider 教学图谱端口，返回的快照只读
type GraphProvider interface {
	Snapshot(ctx context.Context, kbID string) (*ModuleGraph, error)
}

// ContentGenerator 内容生成端口，举例/简化讲解用
// 可能很慢且输出不确定，失败时引擎降级为静态讲解
type ContentGenerator interface {
	Elaborate(ctx context.Context, req ElaborationRequest) (string, error)
}

// InteractionLister 交互流水查询端口
type InteractionLister interface {
	ListBySession(ctx context.Context, sessionID string, page, limit int) ([]model.TeachingInteraction, int64, error)
}

// ElaborationRequest 一次内容生成请求
type ElaborationRequest struct {
	ConceptID   string
	ConceptName string
	Explanation string
	Mode        string
}

// 内容生成模式
const (
	ElaborateExample  = "example"
	ElaborateSimplify = "simplify"
)

// 响应类型
const (
	ResponseOptions    = "options"
	ResponseContent    = "content"
	ResponseCheckpoint = "checkpoint"
	ResponseSummary    = "summary"
	ResponseComplete   = "complete"
)

// 响应标注，可恢复的降级只以标注形式出现，不作为硬错误返回
const (
	AnnotationInvalidChoice          = "invalid_choice"
	AnnotationElaborationUnavailable = "elaboration_unavailable"
	AnnotationEvaluatorTimeout       = "evaluator_timeout"
	AnnotationRetryLimitReached      = "retry_limit_reached"
	AnnotationNavStackEmpty          = "nav_stack_empty"
	AnnotationGraphUpdated           = "graph_updated"
)

// 答错累计达到该值后，下个模块切换到更简单的讲解变体
const adaptiveWrongThreshold = 2

// Progress 进度对，每次响应都重新计算，从不单独存储
type Progress struct {
	Module  float64 `json:"module"`
	Overall float64 `json:"overall"`
}

// InteractionResponse 响应信封
type InteractionResponse struct {
	Type        string     `json:"type"`
	Content     string     `json:"content"`
	Options     []Option   `json:"options"`
	Citations   []Citation `json:"citations"`
	Progress    Progress   `json:"progress"`
	Sequence    int64      `json:"sequence"`
	Annotations []string   `json:"annotations,omitempty"`
}

// SessionProgress 会话进度摘要
type SessionProgress struct {
	SessionID             string     `json:"sessionId"`
	State                 string     `json:"state"`
	AdaptiveMode          string     `json:"adaptiveMode"`
	CurrentModuleID       string     `json:"currentModuleId,omitempty"`
	CurrentConceptID      string     `json:"currentConceptId,omitempty"`
	Progress              Progress   `json:"progress"`
	UnresolvedCheckpoints []string   `json:"unresolvedCheckpoints"`
	StartedAt             time.Time  `json:"startedAt"`
	LastActiveAt          time.Time  `json:"lastActiveAt"`
	CompletedAt           *time.Time `json:"completedAt,omitempty"`
}

// ModuleStatus 模块列表项，带解锁和完成标记
type ModuleStatus struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	DifficultyLevel  string `json:"difficultyLevel,omitempty"`
	EstimatedMinutes int    `json:"estimatedMinutes,omitempty"`
	ConceptCount     int    `json:"conceptCount"`
	Unlocked         bool   `json:"unlocked"`
	Completed        bool   `json:"completed"`
}

// TeachEngine 教学引擎，会话状态的唯一读写方
// 状态变更先在会话副本上进行，和交互流水一起原子提交，
// 提交失败或调用被取消时不留下任何部分写入
type TeachEngine struct {
	graphs    GraphProvider
	store     SessionStore
	audit     InteractionLister
	generator ContentGenerator
	evaluator *CheckpointEvaluator
	locks     *sessionLocks

	mu  sync.RWMutex
	cfg config.TeachConfig
}

func NewTeachEngine(graphs GraphProvider, store SessionStore, audit InteractionLister, generator ContentGenerator, judge SemanticJudge, cfg config.TeachConfig) *TeachEngine {
	return &TeachEngine{
		graphs:    graphs,
		store:     store,
		audit:     audit,
		generator: generator,
		evaluator: NewCheckpointEvaluator(judge),
		locks:     newSessionLocks(),
		cfg:       cfg,
	}
}

// UpdateConfig 热更新策略参数，配置文件变更时由回调触发
func (e *TeachEngine) UpdateConfig(cfg config.TeachConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *TeachEngine) policy() config.TeachConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// StartSession 创建会话，序列号从0开始
// resume 为真且存在未结束会话时直接返回该会话和缓存的最近响应
func (e *TeachEngine) StartSession(ctx context.Context, kbID, userID, moduleID string, resume bool) (*model.TeachingSession, *InteractionResponse, error) {
	if userID == "" {
		return nil, nil, util.ErrMissingUserID
	}

	graph, err := e.graphs.Snapshot(ctx, kbID)
	if err != nil {
		return nil, nil, err
	}

	if resume {
		existing, err := e.store.FindActive(ctx, userID, kbID)
		if err == nil {
			resp, err := unmarshalResponse(existing.LastResponse)
			if err == nil {
				return existing, resp, nil
			}
			logger.Log.Warn("Cached response unreadable, starting fresh session",
				zap.String("session", existing.ID), zap.Error(err))
		} else if !errors.Is(err, util.ErrUnknownSession) {
			return nil, nil, err
		}
	}

	now := time.Now()
	sess := &model.TeachingSession{
		UUIDBase:              model.UUIDBase{ID: model.GenerateUUID()},
		UserID:                userID,
		KnowledgeBaseID:       kbID,
		GraphVersion:          graph.Version,
		AdaptiveMode:          model.ModeStandard,
		ModuleFirstTry:        true,
		NavStack:              model.NavStack{},
		CompletedConcepts:     model.StringSet{},
		AnsweredCheckpoints:   model.StringSet{},
		UnresolvedCheckpoints: model.StringList{},
		CheckpointRetries:     model.RetryCounts{},
		StartedAt:             now,
		LastActiveAt:          now,
	}

	var resp *InteractionResponse
	if moduleID == "" {
		sess.State = model.StateAwaitingOptionChoice
		resp = e.optionsResponse(graph, sess, nil)
	} else {
		first := graph.FirstConcept(moduleID)
		if first == nil {
			return nil, nil, util.ErrInvalidModuleReference
		}
		sess.State = model.StatePresentingContent
		sess.CurrentModuleID = moduleID
		sess.CurrentConceptID = first.ID
		resp = e.contentResponse(graph, sess, first, "", nil)
	}

	sess.LastResponse = marshalResponse(resp)
	if err := e.store.Create(ctx, sess); err != nil {
		return nil, nil, err
	}
	monitoring.ActiveSessions.Inc()

	logger.Log.Info("Teaching session started",
		zap.String("session", sess.ID),
		zap.String("kb", kbID),
		zap.String("module", moduleID))

	return sess, resp, nil
}

// ProcessInteraction 处理一次交互
// expectedSeq 等于已处理的最后序列号时重放缓存响应；
// 既不是重放也不是下一个序列号时返回序列冲突，不做任何变更
func (e *TeachEngine) ProcessInteraction(ctx context.Context, sessionID, userID, input string, expectedSeq int64) (*InteractionResponse, error) {
	ctx, span := tracing.Tracer.Start(ctx, "TeachEngine.ProcessInteraction")
	defer span.End()

	lock := e.locks.acquire(sessionID)
	defer lock.Unlock()

	stored, err := e.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userID != "" && stored.UserID != userID {
		return nil, util.ErrUnknownSession
	}

	if expectedSeq == stored.LastSequence {
		return unmarshalResponse(stored.LastResponse)
	}
	if expectedSeq != stored.LastSequence+1 {
		return nil, util.ErrSequenceConflict
	}
	if stored.State == model.StateAbandoned {
		return nil, util.ErrSessionAbandoned
	}

	graph, err := e.graphs.Snapshot(ctx, stored.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}

	cfg := e.policy()
	sess := stored.Clone()
	sess.GraphVersion = graph.Version

	var resp *InteractionResponse
	var kind string
	var checkpointCorrect *bool

	// 图谱重新导入后当前位置可能已不存在，回到模块选择
	if sess.CurrentModuleID != "" && graph.Module(sess.CurrentModuleID) == nil && !sess.Terminal() {
		resp = e.resetForGraphChange(graph, sess)
		kind = model.InteractionInvalid
	} else {
		switch sess.State {
		case model.StateAwaitingOptionChoice:
			resp, kind = e.handleOptionChoice(graph, sess, input, cfg)
		case model.StatePresentingContent:
			resp, kind = e.handleContent(ctx, graph, sess, input, cfg)
		case model.StateAwaitingCheckpointAnswer:
			resp, kind, checkpointCorrect = e.handleCheckpointAnswer(ctx, graph, sess, input, cfg)
		case model.StatePresentingSummary:
			resp, kind = e.handleSummaryAck(graph, sess, cfg)
		case model.StateComplete:
			resp = e.completeResponse(graph, sess, nil)
			kind = model.InteractionTerminal
		default:
			return nil, fmt.Errorf("session %s in unexpected state %q", sess.ID, sess.State)
		}
	}

	resp.Sequence = expectedSeq
	sess.LastSequence = expectedSeq
	sess.LastActiveAt = time.Now()
	sess.LastResponse = marshalResponse(resp)

	rec := &model.TeachingInteraction{
		SessionID:         sess.ID,
		Sequence:          expectedSeq,
		ModuleID:          stored.CurrentModuleID,
		ConceptID:         stored.CurrentConceptID,
		CheckpointID:      stored.CurrentCheckpointID,
		Kind:              kind,
		UserInput:         input,
		ResponseType:      resp.Type,
		CheckpointCorrect: checkpointCorrect,
	}

	// 调用被取消时不提交，会话保持调用前的状态
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.store.CommitInteraction(ctx, sess, stored.LastSequence, rec); err != nil {
		return nil, err
	}

	monitoring.TeachInteractions.WithLabelValues(resp.Type, kind).Inc()
	if sess.State == model.StateComplete && stored.State != model.StateComplete {
		monitoring.ActiveSessions.Dec()
	}

	return resp, nil
}

// Progress 会话进度摘要，终态会话保留可查
func (e *TeachEngine) Progress(ctx context.Context, sessionID, userID string) (*SessionProgress, error) {
	sess, err := e.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userID != "" && sess.UserID != userID {
		return nil, util.ErrUnknownSession
	}

	graph, err := e.graphs.Snapshot(ctx, sess.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}

	return &SessionProgress{
		SessionID:             sess.ID,
		State:                 sess.State,
		AdaptiveMode:          sess.AdaptiveMode,
		CurrentModuleID:       sess.CurrentModuleID,
		CurrentConceptID:      sess.CurrentConceptID,
		Progress:              e.progress(graph, sess),
		UnresolvedCheckpoints: append([]string{}, sess.UnresolvedCheckpoints...),
		StartedAt:             sess.StartedAt,
		LastActiveAt:          sess.LastActiveAt,
		CompletedAt:           sess.CompletedAt,
	}, nil
}

// Interactions 分页返回会话的交互流水
func (e *TeachEngine) Interactions(ctx context.Context, sessionID, userID string, page, limit int) ([]model.TeachingInteraction, int64, error) {
	sess, err := e.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if userID != "" && sess.UserID != userID {
		return nil, 0, util.ErrUnknownSession
	}
	if e.audit == nil {
		return []model.TeachingInteraction{}, 0, nil
	}
	return e.audit.ListBySession(ctx, sessionID, page, limit)
}

// Abandon 将会话标记为放弃，终态会话保留不删除
func (e *TeachEngine) Abandon(ctx context.Context, sessionID, userID string) error {
	lock := e.locks.acquire(sessionID)
	defer lock.Unlock()

	sess, err := e.store.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if userID != "" && sess.UserID != userID {
		return util.ErrUnknownSession
	}
	if sess.Terminal() {
		return nil
	}

	sess.State = model.StateAbandoned
	sess.LastActiveAt = time.Now()
	if err := e.store.SaveState(ctx, sess); err != nil {
		return err
	}
	monitoring.ActiveSessions.Dec()
	return nil
}

// ModuleStatuses 模块列表，结合用户当前会话给出解锁/完成标记
func (e *TeachEngine) ModuleStatuses(ctx context.Context, kbID, userID string) ([]ModuleStatus, error) {
	graph, err := e.graphs.Snapshot(ctx, kbID)
	if err != nil {
		return nil, err
	}

	completed := model.StringSet{}
	if userID != "" {
		if sess, err := e.store.FindActive(ctx, userID, kbID); err == nil {
			completed = sess.CompletedConcepts
		}
	}

	done := graph.CompletedModules(completed)
	unlockedSet := make(map[string]bool)
	for _, m := range graph.UnlockedModules(completed) {
		unlockedSet[m.ID] = true
	}

	out := make([]ModuleStatus, 0, len(graph.Modules))
	for _, m := range graph.Modules {
		out = append(out, ModuleStatus{
			ID:               m.ID,
			Title:            m.Title,
			Description:      m.Description,
			DifficultyLevel:  m.DifficultyLevel,
			EstimatedMinutes: m.EstimatedMinutes,
			ConceptCount:     len(m.Concepts),
			Unlocked:         unlockedSet[m.ID],
			Completed:        done[m.ID],
		})
	}
	return out, nil
}

// ---- 状态分发 ----

func (e *TeachEngine) handleOptionChoice(graph *ModuleGraph, sess *model.TeachingSession, input string, cfg config.TeachConfig) (*InteractionResponse, string) {
	choice := strings.TrimSpace(input)

	var target *Module
	for _, m := range graph.UnlockedModules(sess.CompletedConcepts) {
		if strings.EqualFold(m.ID, choice) {
			target = m
			break
		}
	}
	// 未命中任何选项：重发选项并标注，状态不变但序列号照常前进
	if target == nil {
		return e.optionsResponse(graph, sess, []string{AnnotationInvalidChoice}), model.InteractionInvalid
	}

	sess.NavStack = sess.NavStack.Push(currentPosition(sess), cfg.NavStackDepth)
	first := graph.FirstConcept(target.ID)
	sess.CurrentModuleID = target.ID
	sess.CurrentConceptID = first.ID
	sess.CurrentCheckpointID = ""
	sess.ModuleWrongCount = 0
	sess.ModuleFirstTry = true
	sess.State = model.StatePresentingContent

	return e.contentResponse(graph, sess, first, "", nil), model.InteractionOptionChoice
}

func (e *TeachEngine) handleContent(ctx context.Context, graph *ModuleGraph, sess *model.TeachingSession, input string, cfg config.TeachConfig) (*InteractionResponse, string) {
	concept := graph.Concept(sess.CurrentConceptID)
	if concept == nil {
		return e.resetForGraphChange(graph, sess), model.InteractionInvalid
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "continue":
		return e.advance(graph, sess, cfg, nil), model.InteractionContinue
	case ElaborateExample, ElaborateSimplify:
		return e.handleElaboration(ctx, graph, sess, concept, strings.ToLower(strings.TrimSpace(input)), cfg), model.InteractionElaboration
	case "back":
		return e.handleBack(graph, sess, concept), model.InteractionBack
	default:
		return e.contentResponse(graph, sess, concept, "", []string{AnnotationInvalidChoice}), model.InteractionInvalid
	}
}

func (e *TeachEngine) handleCheckpointAnswer(ctx context.Context, graph *ModuleGraph, sess *model.TeachingSession, input string, cfg config.TeachConfig) (*InteractionResponse, string, *bool) {
	cp := graph.CheckpointByID(sess.CurrentCheckpointID)
	if cp == nil {
		return e.resetForGraphChange(graph, sess), model.InteractionInvalid, nil
	}

	eval := e.evaluator.Evaluate(ctx, cp, input, cfg)
	correct := eval.Verdict == VerdictCorrect

	var ann []string
	if eval.JudgeTimedOut {
		ann = append(ann, AnnotationEvaluatorTimeout)
	}
	ann = append(ann, eval.Feedback)

	if eval.Acceptable(cfg.AcceptPartial) {
		if sess.CheckpointRetries[cp.ID] > 0 {
			sess.ModuleFirstTry = false
		}
		delete(sess.CheckpointRetries, cp.ID)
		sess.AnsweredCheckpoints.Add(cp.ID)
		return e.advance(graph, sess, cfg, ann), model.InteractionCheckpointAnswer, &correct
	}

	sess.ModuleFirstTry = false
	sess.ModuleWrongCount++
	sess.CheckpointRetries[cp.ID]++

	// 重试次数用尽：强制通过并留作复习，会话不会卡死在一个检查点上
	if sess.CheckpointRetries[cp.ID] >= cfg.RetryLimit {
		sess.AnsweredCheckpoints.Add(cp.ID)
		if !sess.UnresolvedCheckpoints.Contains(cp.ID) {
			sess.UnresolvedCheckpoints = append(sess.UnresolvedCheckpoints, cp.ID)
		}
		ann = append(ann, AnnotationRetryLimitReached)
		return e.advance(graph, sess, cfg, ann), model.InteractionCheckpointAnswer, &correct
	}

	return e.checkpointResponse(graph, sess, cp, ann), model.InteractionCheckpointAnswer, &correct
}

func (e *TeachEngine) handleSummaryAck(graph *ModuleGraph, sess *model.TeachingSession, cfg config.TeachConfig) (*InteractionResponse, string) {
	// 离开模块，模块内计数清零
	sess.ModuleWrongCount = 0
	sess.ModuleFirstTry = true
	sess.CurrentCheckpointID = ""

	if graph.RemainingModules(sess.CompletedConcepts) {
		sess.NavStack = sess.NavStack.Push(currentPosition(sess), cfg.NavStackDepth)
		sess.CurrentModuleID = ""
		sess.CurrentConceptID = ""
		sess.State = model.StateAwaitingOptionChoice
		return e.optionsResponse(graph, sess, nil), model.InteractionSummaryAck
	}

	now := time.Now()
	sess.State = model.StateComplete
	sess.CompletedAt = &now
	return e.completeResponse(graph, sess, nil), model.InteractionSummaryAck
}

// advance 前进到下一项：未答的检查点、下一个知识点或模块小结
func (e *TeachEngine) advance(graph *ModuleGraph, sess *model.TeachingSession, cfg config.TeachConfig, ann []string) *InteractionResponse {
	concept := graph.Concept(sess.CurrentConceptID)
	if concept == nil {
		return e.resetForGraphChange(graph, sess)
	}

	if cp := nextUnansweredCheckpoint(concept, sess); cp != nil {
		sess.CurrentCheckpointID = cp.ID
		sess.State = model.StateAwaitingCheckpointAnswer
		return e.checkpointResponse(graph, sess, cp, ann)
	}

	// 知识点的检查点全部处理完（或本就没有），标记完成。完成集合只增不减
	sess.CompletedConcepts.Add(concept.ID)
	sess.CurrentCheckpointID = ""

	if next := graph.NextConcept(concept.ID); next != nil {
		// 回退目标是刚学完的知识点讲解，而不是已答完的检查点
		sess.NavStack = sess.NavStack.Push(model.NavPosition{
			ModuleID:  sess.CurrentModuleID,
			ConceptID: concept.ID,
			State:     model.StatePresentingContent,
		}, cfg.NavStackDepth)
		sess.CurrentConceptID = next.ID
		sess.State = model.StatePresentingContent
		return e.contentResponse(graph, sess, next, "", ann)
	}

	// 模块边界：先做自适应难度调整，再给小结
	e.applyAdaptiveShift(graph, sess)
	sess.State = model.StatePresentingSummary
	return e.summaryResponse(graph, sess, ann)
}

// applyAdaptiveShift 模块边界的难度调整，一次只移动一级
func (e *TeachEngine) applyAdaptiveShift(graph *ModuleGraph, sess *model.TeachingSession) {
	before := sess.AdaptiveMode
	switch {
	case sess.ModuleWrongCount >= adaptiveWrongThreshold:
		sess.AdaptiveMode = model.SimplerMode(sess.AdaptiveMode)
	case sess.ModuleFirstTry && moduleHasCheckpoints(graph, sess.CurrentModuleID):
		sess.AdaptiveMode = model.HarderMode(sess.AdaptiveMode)
	}
	if sess.AdaptiveMode != before {
		logger.Log.Info("Adaptive mode shifted",
			zap.String("session", sess.ID),
			zap.String("module", sess.CurrentModuleID),
			zap.String("from", before),
			zap.String("to", sess.AdaptiveMode),
			zap.Int("wrong_count", sess.ModuleWrongCount))
	}
}

func (e *TeachEngine) handleElaboration(ctx context.Context, graph *ModuleGraph, sess *model.TeachingSession, concept *Concept, mode string, cfg config.TeachConfig) *InteractionResponse {
	static := func() *InteractionResponse {
		monitoring.ElaborationFallbacks.Inc()
		return e.contentResponse(graph, sess, concept, "", []string{AnnotationElaborationUnavailable})
	}

	if e.generator == nil {
		return static()
	}

	genCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ElaborationTimeout)*time.Second)
	defer cancel()

	text, err := e.generator.Elaborate(genCtx, ElaborationRequest{
		ConceptID:   concept.ID,
		ConceptName: concept.Name,
		Explanation: concept.ExplanationFor(sess.AdaptiveMode),
		Mode:        mode,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Log.Warn("Elaboration degraded to static content",
			zap.String("concept", concept.ID),
			zap.String("mode", mode),
			zap.Error(err))
		return static()
	}

	// 生成内容原样透传，位置不前进，完成状态不变
	return e.contentResponse(graph, sess, concept, text, nil)
}

func (e *TeachEngine) handleBack(graph *ModuleGraph, sess *model.TeachingSession, concept *Concept) *InteractionResponse {
	stack, pos, ok := sess.NavStack.Pop()
	if !ok {
		return e.contentResponse(graph, sess, concept, "", []string{AnnotationNavStackEmpty})
	}
	sess.NavStack = stack
	sess.CurrentModuleID = pos.ModuleID
	sess.CurrentConceptID = pos.ConceptID
	sess.CurrentCheckpointID = pos.CheckpointID
	sess.State = pos.State

	// 回退只恢复位置，已完成的知识点保持完成
	switch pos.State {
	case model.StateAwaitingOptionChoice:
		return e.optionsResponse(graph, sess, nil)
	case model.StateAwaitingCheckpointAnswer:
		if cp := graph.CheckpointByID(pos.CheckpointID); cp != nil {
			return e.checkpointResponse(graph, sess, cp, nil)
		}
		return e.resetForGraphChange(graph, sess)
	default:
		prev := graph.Concept(pos.ConceptID)
		if prev == nil {
			return e.resetForGraphChange(graph, sess)
		}
		sess.State = model.StatePresentingContent
		return e.contentResponse(graph, sess, prev, "", nil)
	}
}

// resetForGraphChange 图谱变更导致位置失效时回到模块选择
func (e *TeachEngine) resetForGraphChange(graph *ModuleGraph, sess *model.TeachingSession) *InteractionResponse {
	sess.CurrentModuleID = ""
	sess.CurrentConceptID = ""
	sess.CurrentCheckpointID = ""
	sess.NavStack = model.NavStack{}
	sess.State = model.StateAwaitingOptionChoice
	return e.optionsResponse(graph, sess, []string{AnnotationGraphUpdated})
}

// ---- 响应构造 ----

func (e *TeachEngine) optionsResponse(graph *ModuleGraph, sess *model.TeachingSession, ann []string) *InteractionResponse {
	unlocked := graph.UnlockedModules(sess.CompletedConcepts)
	opts := make([]Option, 0, len(unlocked))
	for _, m := range unlocked {
		opts = append(opts, Option{Key: m.ID, Text: m.Title})
	}

	content := "请选择要学习的模块。"
	if len(opts) == 0 {
		content = "当前没有可学习的模块。"
	}

	return &InteractionResponse{
		Type:        ResponseOptions,
		Content:     content,
		Options:     opts,
		Citations:   []Citation{},
		Progress:    e.progress(graph, sess),
		Annotations: ann,
	}
}

func (e *TeachEngine) contentResponse(graph *ModuleGraph, sess *model.TeachingSession, concept *Concept, override string, ann []string) *InteractionResponse {
	content := override
	if content == "" {
		content = concept.ExplanationFor(sess.AdaptiveMode)
	}

	citations := concept.Citations
	if citations == nil {
		citations = []Citation{}
	}

	return &InteractionResponse{
		Type:    ResponseContent,
		Content: content,
		Options: []Option{
			{Key: "continue", Text: "继续"},
			{Key: ElaborateExample, Text: "举个例子"},
			{Key: ElaborateSimplify, Text: "再简单点"},
			{Key: "back", Text: "返回上一步"},
		},
		Citations:   citations,
		Progress:    e.progress(graph, sess),
		Annotations: ann,
	}
}

func (e *TeachEngine) checkpointResponse(graph *ModuleGraph, sess *model.TeachingSession, cp *Checkpoint, ann []string) *InteractionResponse {
	options := cp.Options
	if options == nil {
		options = []Option{}
	}
	citations := cp.Citations
	if citations == nil {
		citations = []Citation{}
	}

	return &InteractionResponse{
		Type:        ResponseCheckpoint,
		Content:     cp.Prompt,
		Options:     options,
		Citations:   citations,
		Progress:    e.progress(graph, sess),
		Annotations: ann,
	}
}

func (e *TeachEngine) summaryResponse(graph *ModuleGraph, sess *model.TeachingSession, ann []string) *InteractionResponse {
	m := graph.Module(sess.CurrentModuleID)
	title := sess.CurrentModuleID
	if m != nil {
		title = m.Title
	}

	var b strings.Builder
	fmt.Fprintf(&b, "「%s」学习完成。", title)
	if n := countUnresolvedInModule(graph, sess); n > 0 {
		fmt.Fprintf(&b, "有 %d 个检查点未完全掌握，已记录，建议之后复习。", n)
	}

	return &InteractionResponse{
		Type:        ResponseSummary,
		Content:     b.String(),
		Options:     []Option{{Key: "continue", Text: "继续"}},
		Citations:   []Citation{},
		Progress:    e.progress(graph, sess),
		Annotations: ann,
	}
}

func (e *TeachEngine) completeResponse(graph *ModuleGraph, sess *model.TeachingSession, ann []string) *InteractionResponse {
	var b strings.Builder
	b.WriteString("恭喜，已完成该知识库的全部模块。")
	if len(sess.UnresolvedCheckpoints) > 0 {
		fmt.Fprintf(&b, "共有 %d 个检查点未完全掌握，建议复习。", len(sess.UnresolvedCheckpoints))
	}

	return &InteractionResponse{
		Type:        ResponseComplete,
		Content:     b.String(),
		Options:     []Option{},
		Citations:   []Citation{},
		Progress:    e.progress(graph, sess),
		Annotations: ann,
	}
}

// progress 进度对，完成集合只统计仍在图谱内的节点
func (e *TeachEngine) progress(graph *ModuleGraph, sess *model.TeachingSession) Progress {
	var p Progress

	if total := graph.ConceptCount(); total > 0 {
		done := 0
		for id := range sess.CompletedConcepts {
			if graph.Concept(id) != nil {
				done++
			}
		}
		p.Overall = util.Round2(100 * float64(done) / float64(total))
	}

	if m := graph.Module(sess.CurrentModuleID); m != nil && len(m.Concepts) > 0 {
		done := 0
		for _, c := range m.Concepts {
			if sess.CompletedConcepts.Has(c.ID) {
				done++
			}
		}
		p.Module = util.Round2(100 * float64(done) / float64(len(m.Concepts)))
	}

	return p
}

// ---- 辅助 ----

func currentPosition(sess *model.TeachingSession) model.NavPosition {
	return model.NavPosition{
		ModuleID:     sess.CurrentModuleID,
		ConceptID:    sess.CurrentConceptID,
		CheckpointID: sess.CurrentCheckpointID,
		State:        sess.State,
	}
}

func nextUnansweredCheckpoint(concept *Concept, sess *model.TeachingSession) *Checkpoint {
	for _, cp := range concept.Checkpoints {
		if !sess.AnsweredCheckpoints.Has(cp.ID) {
			return cp
		}
	}
	return nil
}

func moduleHasCheckpoints(graph *ModuleGraph, moduleID string) bool {
	m := graph.Module(moduleID)
	if m == nil {
		return false
	}
	for _, c := range m.Concepts {
		if len(c.Checkpoints) > 0 {
			return true
		}
	}
	return false
}

func countUnresolvedInModule(graph *ModuleGraph, sess *model.TeachingSession) int {
	n := 0
	for _, id := range sess.UnresolvedCheckpoints {
		cp := graph.CheckpointByID(id)
		if cp == nil {
			continue
		}
		if c := graph.Concept(cp.ConceptID); c != nil && c.ModuleID == sess.CurrentModuleID {
			n++
		}
	}
	return n
}

func marshalResponse(resp *InteractionResponse) string {
	b, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Error("Failed to marshal interaction response", zap.Error(err))
		return ""
	}
	return string(b)
}

func unmarshalResponse(raw string) (*InteractionResponse, error) {
	if raw == "" {
		return nil, fmt.Errorf("no cached response")
	}
	var resp InteractionResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
