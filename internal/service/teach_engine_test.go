package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"kbot_backend/internal/model"
	"kbot_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticGraphProvider struct {
	graph *ModuleGraph
}

func (p *staticGraphProvider) Snapshot(ctx context.Context, kbID string) (*ModuleGraph, error) {
	if kbID != p.graph.KBID {
		return nil, util.ErrUnknownKnowledgeBase
	}
	return p.graph, nil
}

type mockGenerator struct {
	text    string
	err     error
	blockOn bool // 真时挂起直到超时，模拟慢协作方
	calls   int
}

func (m *mockGenerator) Elaborate(ctx context.Context, req ElaborationRequest) (string, error) {
	m.calls++
	if m.blockOn {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.text, m.err
}

// scenarioGraph 单模块M1，3个知识点各带1个选择题检查点，正确键都是A
func scenarioGraph(t *testing.T) *ModuleGraph {
	t.Helper()
	modules := []*Module{
		{
			ID: "M1", Title: "模块一", SequenceOrder: 1,
			Concepts: []*Concept{
				simpleConcept("c1", mcqCheckpoint("cp1")),
				simpleConcept("c2", mcqCheckpoint("cp2")),
				simpleConcept("c3", mcqCheckpoint("cp3")),
			},
		},
	}
	g, err := NewModuleGraph("kb1", 1, modules)
	require.NoError(t, err)
	return g
}

// twoModuleGraph M2 以 M1 为先修
func twoModuleGraph(t *testing.T) *ModuleGraph {
	t.Helper()
	modules := []*Module{
		{ID: "M1", Title: "模块一", SequenceOrder: 1,
			Concepts: []*Concept{simpleConcept("c1", mcqCheckpoint("cp1"))}},
		{ID: "M2", Title: "模块二", SequenceOrder: 2, Prerequisites: []string{"M1"},
			Concepts: []*Concept{simpleConcept("c2", mcqCheckpoint("cp2"))}},
	}
	g, err := NewModuleGraph("kb1", 1, modules)
	require.NoError(t, err)
	return g
}

func newTestEngine(g *ModuleGraph, store *MemorySessionStore, gen ContentGenerator, judge SemanticJudge) *TeachEngine {
	return NewTeachEngine(&staticGraphProvider{graph: g}, store, store, gen, judge, testPolicy())
}

// interact 按引擎当前序列号推进一步
func interact(t *testing.T, e *TeachEngine, store *MemorySessionStore, sessionID, input string) *InteractionResponse {
	t.Helper()
	sess, err := store.FindByID(context.Background(), sessionID)
	require.NoError(t, err)
	resp, err := e.ProcessInteraction(context.Background(), sessionID, sess.UserID, input, sess.LastSequence+1)
	require.NoError(t, err)
	return resp
}

func TestStartSessionWithModule(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, resp, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	assert.Equal(t, model.StatePresentingContent, sess.State)
	assert.Equal(t, "M1", sess.CurrentModuleID)
	assert.Equal(t, "c1", sess.CurrentConceptID)
	assert.EqualValues(t, 0, sess.LastSequence)
	assert.Equal(t, ResponseContent, resp.Type)
	assert.Equal(t, "explanation of c1", resp.Content)
	assert.Equal(t, Progress{}, resp.Progress)
}

func TestStartSessionWithoutModulePresentsMenu(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(twoModuleGraph(t), store, nil, nil)

	sess, resp, err := e.StartSession(context.Background(), "kb1", "u1", "", false)
	require.NoError(t, err)

	assert.Equal(t, model.StateAwaitingOptionChoice, sess.State)
	assert.Equal(t, ResponseOptions, resp.Type)
	// M2 被先修挡住，只有 M1 可选
	require.Len(t, resp.Options, 1)
	assert.Equal(t, "M1", resp.Options[0].Key)
}

func TestStartSessionErrors(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	_, _, err := e.StartSession(context.Background(), "kb1", "u1", "ghost", false)
	assert.ErrorIs(t, err, util.ErrInvalidModuleReference)

	_, _, err = e.StartSession(context.Background(), "nope", "u1", "", false)
	assert.ErrorIs(t, err, util.ErrUnknownKnowledgeBase)

	_, _, err = e.StartSession(context.Background(), "kb1", "", "", false)
	assert.ErrorIs(t, err, util.ErrMissingUserID)
}

func TestStartSessionResume(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess1, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", true)
	require.NoError(t, err)

	// 推进一步后再 resume，拿回同一个会话和缓存的最近响应
	advanced := interact(t, e, store, sess1.ID, "continue")

	sess2, resp2, err := e.StartSession(context.Background(), "kb1", "u1", "", true)
	require.NoError(t, err)
	assert.Equal(t, sess1.ID, sess2.ID)
	assert.Equal(t, advanced, resp2)

	// resume 关闭时创建新会话
	sess3, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)
	assert.NotEqual(t, sess1.ID, sess3.ID)
}

// 规格场景：答对cp1，cp2连错两次用尽重试，答对cp3
func TestRetryLimitScenario(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	resp := interact(t, e, store, sess.ID, "continue") // c1 -> cp1
	assert.Equal(t, ResponseCheckpoint, resp.Type)

	resp = interact(t, e, store, sess.ID, "A") // cp1 正确 -> c2
	assert.Equal(t, ResponseContent, resp.Type)
	assert.InDelta(t, 33.33, resp.Progress.Module, 0.01)

	resp = interact(t, e, store, sess.ID, "continue") // c2 -> cp2
	assert.Equal(t, ResponseCheckpoint, resp.Type)

	resp = interact(t, e, store, sess.ID, "B") // 第一次答错，重新出题
	assert.Equal(t, ResponseCheckpoint, resp.Type)

	resp = interact(t, e, store, sess.ID, "B") // 第二次答错，重试用尽，强制前进
	assert.Equal(t, ResponseContent, resp.Type)
	assert.Contains(t, resp.Annotations, AnnotationRetryLimitReached)

	resp = interact(t, e, store, sess.ID, "continue") // c3 -> cp3
	resp = interact(t, e, store, sess.ID, "A")        // cp3 正确 -> 模块小结

	assert.Equal(t, ResponseSummary, resp.Type)
	assert.EqualValues(t, 100, resp.Progress.Module)
	assert.EqualValues(t, 100, resp.Progress.Overall)

	final, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, final.ModuleWrongCount)
	// 重试用尽的知识点仍然标记完成，并记录待复习
	assert.True(t, final.CompletedConcepts.Has("c2"))
	assert.Equal(t, model.StringList{"cp2"}, final.UnresolvedCheckpoints)
	// 模块边界上难度降一级
	assert.Equal(t, model.ModeSimplified, final.AdaptiveMode)
}

func TestAdaptiveModeRelaxesOnPerfectModule(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		interact(t, e, store, sess.ID, "continue")
		interact(t, e, store, sess.ID, "A")
	}

	final, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePresentingSummary, final.State)
	// 全部一次答对，standard -> advanced，一次只动一级
	assert.Equal(t, model.ModeAdvanced, final.AdaptiveMode)
}

func TestAdaptiveModeNeverJumpsTwoSteps(t *testing.T) {
	assert.Equal(t, model.ModeStandard, model.SimplerMode(model.ModeAdvanced))
	assert.Equal(t, model.ModeSimplified, model.SimplerMode(model.ModeStandard))
	assert.Equal(t, model.ModeSimplified, model.SimplerMode(model.ModeSimplified))
	assert.Equal(t, model.ModeStandard, model.HarderMode(model.ModeSimplified))
	assert.Equal(t, model.ModeAdvanced, model.HarderMode(model.ModeStandard))
	assert.Equal(t, model.ModeAdvanced, model.HarderMode(model.ModeAdvanced))
}

func TestIdempotentReplay(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	first, err := e.ProcessInteraction(context.Background(), sess.ID, "u1", "continue", 1)
	require.NoError(t, err)

	recorded := len(store.Interactions(sess.ID))

	// 同一序列号重放：响应完全一致，不追加任何状态
	replay, err := e.ProcessInteraction(context.Background(), sess.ID, "u1", "continue", 1)
	require.NoError(t, err)
	assert.Equal(t, first, replay)
	assert.Len(t, store.Interactions(sess.ID), recorded)

	after, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, after.LastSequence)
}

func TestSequenceConflict(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	// N+1 先到：在 N 处理完成前必须报冲突，不允许悄悄重排
	_, err = e.ProcessInteraction(context.Background(), sess.ID, "u1", "continue", 2)
	assert.ErrorIs(t, err, util.ErrSequenceConflict)

	_, err = e.ProcessInteraction(context.Background(), sess.ID, "u1", "continue", 1)
	require.NoError(t, err)
	_, err = e.ProcessInteraction(context.Background(), sess.ID, "u1", "A", 2)
	require.NoError(t, err)
}

func TestInvalidOptionChoiceAdvancesSequence(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(twoModuleGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "", false)
	require.NoError(t, err)

	resp := interact(t, e, store, sess.ID, "not-a-module")
	assert.Equal(t, ResponseOptions, resp.Type)
	assert.Contains(t, resp.Annotations, AnnotationInvalidChoice)

	// 无效选择不改位置，但序列号照常前进
	after, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingOptionChoice, after.State)
	assert.EqualValues(t, 1, after.LastSequence)
}

func TestElaborationPassThrough(t *testing.T) {
	store := NewMemorySessionStore()
	gen := &mockGenerator{text: "一个生成的例子"}
	e := newTestEngine(scenarioGraph(t), store, gen, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	resp := interact(t, e, store, sess.ID, "example")
	assert.Equal(t, ResponseContent, resp.Type)
	assert.Equal(t, "一个生成的例子", resp.Content)
	assert.Equal(t, 1, gen.calls)

	// 位置不前进，完成集合不变
	after, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", after.CurrentConceptID)
	assert.Empty(t, after.CompletedConcepts)
}

func TestElaborationTimeoutDegradesToStatic(t *testing.T) {
	store := NewMemorySessionStore()
	gen := &mockGenerator{blockOn: true}
	e := newTestEngine(scenarioGraph(t), store, gen, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	start := time.Now()
	resp := interact(t, e, store, sess.ID, "example")
	assert.Less(t, time.Since(start), 3*time.Second)

	// 超时降级为静态讲解，带标注，位置不变
	assert.Equal(t, ResponseContent, resp.Type)
	assert.Equal(t, "explanation of c1", resp.Content)
	assert.Contains(t, resp.Annotations, AnnotationElaborationUnavailable)

	after, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", after.CurrentConceptID)
}

func TestBackNavigation(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	interact(t, e, store, sess.ID, "continue") // -> cp1
	interact(t, e, store, sess.ID, "A")        // -> c2

	resp := interact(t, e, store, sess.ID, "back")
	assert.Equal(t, ResponseContent, resp.Type)

	after, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", after.CurrentConceptID)
	// 回退不清除已完成标记
	assert.True(t, after.CompletedConcepts.Has("c1"))
}

func TestBackOnEmptyStack(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	resp := interact(t, e, store, sess.ID, "back")
	assert.Equal(t, ResponseContent, resp.Type)
	assert.Contains(t, resp.Annotations, AnnotationNavStackEmpty)
}

func TestFullTraversalToComplete(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(twoModuleGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "", false)
	require.NoError(t, err)

	interact(t, e, store, sess.ID, "M1")       // 选模块
	interact(t, e, store, sess.ID, "continue") // -> cp1
	resp := interact(t, e, store, sess.ID, "A")
	assert.Equal(t, ResponseSummary, resp.Type)

	resp = interact(t, e, store, sess.ID, "continue") // 小结 -> 菜单
	assert.Equal(t, ResponseOptions, resp.Type)
	require.Len(t, resp.Options, 1)
	assert.Equal(t, "M2", resp.Options[0].Key)

	interact(t, e, store, sess.ID, "M2")
	interact(t, e, store, sess.ID, "continue")
	interact(t, e, store, sess.ID, "A")
	resp = interact(t, e, store, sess.ID, "anything") // 小结 -> 完成

	assert.Equal(t, ResponseComplete, resp.Type)
	assert.EqualValues(t, 100, resp.Progress.Overall)

	final, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateComplete, final.State)
	require.NotNil(t, final.CompletedAt)

	// 终态后的任何输入都返回同样的结业摘要
	again := interact(t, e, store, sess.ID, "whatever")
	assert.Equal(t, ResponseComplete, again.Type)
	assert.Equal(t, resp.Content, again.Content)
}

func TestCompletedConceptsMonotone(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	inputs := []string{"continue", "A", "back", "continue", "B", "B", "continue", "A", "continue"}
	seen := 0
	lastOverall := 0.0
	for _, input := range inputs {
		resp := interact(t, e, store, sess.ID, input)

		assert.GreaterOrEqual(t, resp.Progress.Overall, 0.0)
		assert.LessOrEqual(t, resp.Progress.Overall, 100.0)

		after, err := store.FindByID(context.Background(), sess.ID)
		require.NoError(t, err)
		// 完成集合只增不减
		assert.GreaterOrEqual(t, len(after.CompletedConcepts), seen)
		seen = len(after.CompletedConcepts)
		// 总进度只在完成集合增长时上升
		assert.GreaterOrEqual(t, resp.Progress.Overall, lastOverall)
		lastOverall = resp.Progress.Overall
	}
}

func TestUnknownSessionAndOwnership(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	_, err := e.ProcessInteraction(context.Background(), "ghost", "u1", "continue", 1)
	assert.ErrorIs(t, err, util.ErrUnknownSession)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	// 别人的会话等同不存在
	_, err = e.ProcessInteraction(context.Background(), sess.ID, "u2", "continue", 1)
	assert.ErrorIs(t, err, util.ErrUnknownSession)
}

func TestAbandonSession(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	require.NoError(t, e.Abandon(context.Background(), sess.ID, "u1"))

	_, err = e.ProcessInteraction(context.Background(), sess.ID, "u1", "continue", 1)
	assert.ErrorIs(t, err, util.ErrSessionAbandoned)

	// 终态会话保留，进度仍可查
	progress, err := e.Progress(context.Background(), sess.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.StateAbandoned, progress.State)

	// 重复放弃是幂等的
	require.NoError(t, e.Abandon(context.Background(), sess.ID, "u1"))
}

func TestCancelledContextLeavesStateUntouched(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.ProcessInteraction(ctx, sess.ID, "u1", "continue", 1)
	require.Error(t, err)

	after, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, after.LastSequence)
	assert.Equal(t, model.StatePresentingContent, after.State)
	assert.Empty(t, store.Interactions(sess.ID))
}

func TestModuleStatuses(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(twoModuleGraph(t), store, nil, nil)

	statuses, err := e.ModuleStatuses(context.Background(), "kb1", "u1")
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Unlocked)
	assert.False(t, statuses[0].Completed)
	assert.False(t, statuses[1].Unlocked)
}

func TestInteractionAuditTrail(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	interact(t, e, store, sess.ID, "continue")
	interact(t, e, store, sess.ID, "B")
	interact(t, e, store, sess.ID, "A")

	records, total, err := e.Interactions(context.Background(), sess.ID, "u1", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, records, 3)

	for i, rec := range records {
		assert.EqualValues(t, i+1, rec.Sequence)
	}
	assert.Equal(t, model.InteractionContinue, records[0].Kind)
	require.NotNil(t, records[1].CheckpointCorrect)
	assert.False(t, *records[1].CheckpointCorrect)
	require.NotNil(t, records[2].CheckpointCorrect)
	assert.True(t, *records[2].CheckpointCorrect)
}

func TestConcurrentInteractionsSerialized(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	const workers = 8
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := e.ProcessInteraction(context.Background(), sess.ID, "u1", "continue", 1)
			errs <- err
		}()
	}

	succeeded := 0
	for i := 0; i < workers; i++ {
		if err := <-errs; err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, util.ErrSequenceConflict)
		}
	}

	// 引擎对同序列号的重复提交要么重放要么冲突，状态只推进一次
	assert.GreaterOrEqual(t, succeeded, 1)
	after, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, after.LastSequence)
	assert.Len(t, store.Interactions(sess.ID), 1)
}

func TestUnrecognizedContentInput(t *testing.T) {
	store := NewMemorySessionStore()
	e := newTestEngine(scenarioGraph(t), store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	resp := interact(t, e, store, sess.ID, "what is this")
	assert.Equal(t, ResponseContent, resp.Type)
	assert.Contains(t, resp.Annotations, AnnotationInvalidChoice)

	after, err := store.FindByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "c1", after.CurrentConceptID)
}

func TestSimplifiedVariantSelectedAfterShift(t *testing.T) {
	modules := []*Module{
		{ID: "M1", Title: "一", SequenceOrder: 1,
			Concepts: []*Concept{simpleConcept("c1", mcqCheckpoint("cp1"))}},
		{ID: "M2", Title: "二", SequenceOrder: 2,
			Concepts: []*Concept{{
				ID: "c2", Name: "c2",
				Explanation:           "standard text",
				SimplifiedExplanation: "simplified text",
			}}},
	}
	g, err := NewModuleGraph("kb1", 1, modules)
	require.NoError(t, err)

	store := NewMemorySessionStore()
	e := newTestEngine(g, store, nil, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	interact(t, e, store, sess.ID, "continue") // -> cp1
	interact(t, e, store, sess.ID, "B")        // 错1
	interact(t, e, store, sess.ID, "B")        // 错2，强制前进到小结
	interact(t, e, store, sess.ID, "continue") // 小结 -> 菜单
	resp := interact(t, e, store, sess.ID, "M2")

	// 下个模块用简化版讲解
	assert.Equal(t, "simplified text", resp.Content)
}

func TestMemoryStoreCAS(t *testing.T) {
	store := NewMemorySessionStore()
	sess := &model.TeachingSession{
		UUIDBase:            model.UUIDBase{ID: "s1"},
		UserID:              "u1",
		KnowledgeBaseID:     "kb1",
		State:               model.StatePresentingContent,
		CompletedConcepts:   model.StringSet{},
		AnsweredCheckpoints: model.StringSet{},
		CheckpointRetries:   model.RetryCounts{},
	}
	require.NoError(t, store.Create(context.Background(), sess))

	a := sess.Clone()
	a.LastSequence = 1
	b := sess.Clone()
	b.LastSequence = 1

	// 相同期望序列号的两次提交只允许一次成功
	err1 := store.CommitInteraction(context.Background(), a, 0, &model.TeachingInteraction{SessionID: "s1", Sequence: 1})
	err2 := store.CommitInteraction(context.Background(), b, 0, &model.TeachingInteraction{SessionID: "s1", Sequence: 1})

	require.NoError(t, err1)
	assert.ErrorIs(t, err2, util.ErrSequenceConflict)
	assert.Len(t, store.Interactions("s1"), 1)
}

func TestGeneratorErrorAnnotatedNotFatal(t *testing.T) {
	store := NewMemorySessionStore()
	gen := &mockGenerator{err: fmt.Errorf("model overloaded")}
	e := newTestEngine(scenarioGraph(t), store, gen, nil)

	sess, _, err := e.StartSession(context.Background(), "kb1", "u1", "M1", false)
	require.NoError(t, err)

	resp := interact(t, e, store, sess.ID, "simplify")
	assert.Equal(t, ResponseContent, resp.Type)
	assert.Contains(t, resp.Annotations, AnnotationElaborationUnavailable)
}
