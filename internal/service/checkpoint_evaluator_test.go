package service

import (
	"context"
	"fmt"
	"testing"

	"kbot_backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockJudge struct {
	verdict string
	err     error
	calls   int
}

func (m *mockJudge) Judge(ctx context.Context, cp *Checkpoint, answer string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.verdict, nil
}

func testPolicy() config.TeachConfig {
	return config.TeachConfig{
		RetryLimit:         2,
		PassThreshold:      0.6,
		PartialThreshold:   0.33,
		AcceptPartial:      true,
		NavStackDepth:      20,
		ElaborationTimeout: 1,
		JudgeTimeout:       1,
		SnapshotTTLMinutes: 10,
	}
}

func TestEvaluateMultipleChoice(t *testing.T) {
	cp := &Checkpoint{
		ID:         "cp1",
		Prompt:     "q",
		CorrectKey: "B",
		Options: []Option{
			{Key: "A", Text: "reread the chapter"},
			{Key: "B", Text: "recite from memory"},
		},
	}
	judge := &mockJudge{verdict: VerdictCorrect}
	e := NewCheckpointEvaluator(judge)

	tests := []struct {
		answer  string
		verdict string
	}{
		{"B", VerdictCorrect},
		{"b", VerdictCorrect},
		{"  B ", VerdictCorrect},
		{"recite from memory", VerdictCorrect},
		{"A", VerdictIncorrect},
		{"reread the chapter", VerdictIncorrect},
		{"something else", VerdictIncorrect},
	}
	for _, tt := range tests {
		result := e.Evaluate(context.Background(), cp, tt.answer, testPolicy())
		assert.Equal(t, tt.verdict, result.Verdict, "answer %q", tt.answer)
		assert.Equal(t, MethodCanonical, result.Method)
	}

	// 选择题总能下结论，语义评判永远不该被调用
	assert.Zero(t, judge.calls)
}

func TestEvaluateKeywordScoring(t *testing.T) {
	cp := &Checkpoint{
		ID:       "cp1",
		Prompt:   "q",
		Keywords: []string{"检索", "记忆", "遗忘"},
	}
	judge := &mockJudge{verdict: VerdictCorrect}
	e := NewCheckpointEvaluator(judge)

	// 3/3 命中，高于通过阈值
	result := e.Evaluate(context.Background(), cp, "通过检索加深记忆，对抗遗忘", testPolicy())
	assert.Equal(t, VerdictCorrect, result.Verdict)
	assert.Equal(t, MethodKeyword, result.Method)
	assert.Len(t, result.MatchedKeywords, 3)
	assert.Zero(t, judge.calls)

	// 0/3 命中，低于部分阈值，同样无需评判
	result = e.Evaluate(context.Background(), cp, "完全无关的回答", testPolicy())
	assert.Equal(t, VerdictIncorrect, result.Verdict)
	assert.Zero(t, judge.calls)
}

func TestEvaluateInconclusiveBandConsultsJudge(t *testing.T) {
	cp := &Checkpoint{
		ID:       "cp1",
		Prompt:   "q",
		Keywords: []string{"检索", "记忆", "遗忘"},
	}
	judge := &mockJudge{verdict: VerdictCorrect}
	e := NewCheckpointEvaluator(judge)

	// 1/3 命中落在 [partial, pass) 区间，交给语义评判
	result := e.Evaluate(context.Background(), cp, "跟记忆有关", testPolicy())
	assert.Equal(t, VerdictCorrect, result.Verdict)
	assert.Equal(t, MethodJudge, result.Method)
	assert.Equal(t, 1, judge.calls)
}

func TestEvaluateJudgeFailureKeepsKeywordVerdict(t *testing.T) {
	cp := &Checkpoint{
		ID:       "cp1",
		Prompt:   "q",
		Keywords: []string{"检索", "记忆", "遗忘"},
	}
	judge := &mockJudge{err: fmt.Errorf("judge unavailable")}
	e := NewCheckpointEvaluator(judge)

	result := e.Evaluate(context.Background(), cp, "跟记忆有关", testPolicy())
	assert.Equal(t, VerdictPartial, result.Verdict)
	assert.Equal(t, MethodKeyword, result.Method)
	assert.True(t, result.JudgeTimedOut)
}

func TestEvaluateNoSignalFallsBackToJudge(t *testing.T) {
	cp := &Checkpoint{ID: "cp1", Prompt: "q"}

	judge := &mockJudge{verdict: VerdictPartial}
	e := NewCheckpointEvaluator(judge)
	result := e.Evaluate(context.Background(), cp, "anything", testPolicy())
	assert.Equal(t, VerdictPartial, result.Verdict)
	assert.Equal(t, 1, judge.calls)

	// 评判不可用时降级为不正确，而不是报错
	broken := &mockJudge{err: fmt.Errorf("down")}
	e = NewCheckpointEvaluator(broken)
	result = e.Evaluate(context.Background(), cp, "anything", testPolicy())
	assert.Equal(t, VerdictIncorrect, result.Verdict)
	assert.True(t, result.JudgeTimedOut)
}

func TestEvaluateNilJudge(t *testing.T) {
	cp := &Checkpoint{ID: "cp1", Prompt: "q", Keywords: []string{"a", "b", "c"}}
	e := NewCheckpointEvaluator(nil)

	result := e.Evaluate(context.Background(), cp, "a only", testPolicy())
	assert.Equal(t, VerdictPartial, result.Verdict)
}

func TestEvaluatePerCheckpointThresholdOverride(t *testing.T) {
	cp := &Checkpoint{
		ID:            "cp1",
		Prompt:        "q",
		Keywords:      []string{"a", "b", "c"},
		PassThreshold: 0.3,
	}
	e := NewCheckpointEvaluator(&mockJudge{verdict: VerdictIncorrect})

	// 1/3 命中在全局阈值下进入待定区间，但检查点自带的阈值让它直接通过
	result := e.Evaluate(context.Background(), cp, "mentions a", testPolicy())
	assert.Equal(t, VerdictCorrect, result.Verdict)
	assert.Equal(t, MethodKeyword, result.Method)
}

func TestEvaluationAcceptable(t *testing.T) {
	require.True(t, (&Evaluation{Verdict: VerdictCorrect}).Acceptable(false))
	require.True(t, (&Evaluation{Verdict: VerdictPartial}).Acceptable(true))
	require.False(t, (&Evaluation{Verdict: VerdictPartial}).Acceptable(false))
	require.False(t, (&Evaluation{Verdict: VerdictIncorrect}).Acceptable(true))
}
