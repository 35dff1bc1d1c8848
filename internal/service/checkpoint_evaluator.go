package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kbot_backend/internal/config"
	"kbot_backend/pkg/logger"
	"kbot_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// 检查点判定结果
const (
	VerdictCorrect   = "correct"
	VerdictPartial   = "partial"
	VerdictIncorrect = "incorrect"
)

// 判定方法，打点用
const (
	MethodCanonical = "canonical"
	MethodKeyword   = "keyword"
	MethodJudge     = "judge"
)

// SemanticJudge 语义评判兜底，只在确定性评分无法下结论时调用
type SemanticJudge interface {
	Judge(ctx context.Context, checkpoint *Checkpoint, answer string) (string, error)
}

// Evaluation 一次检查点评分的结果
type Evaluation struct {
	Verdict         string   `json:"verdict"`
	MatchedKeywords []string `json:"matchedKeywords,omitempty"`
	Feedback        string   `json:"feedback"`
	Method          string   `json:"method"`
	JudgeTimedOut   bool     `json:"-"`
}

// Acceptable 该判定是否允许通过检查点
func (e *Evaluation) Acceptable(acceptPartial bool) bool {
	if e.Verdict == VerdictCorrect {
		return true
	}
	return acceptPartial && e.Verdict == VerdictPartial
}

// CheckpointEvaluator 检查点评分器
// 评分顺序固定：选择题先比对标准答案，主观题先做关键词重合度打分，
// 只有两者都无法下结论时才调用语义评判，超时降级为关键词结论
type CheckpointEvaluator struct {
	judge SemanticJudge
}

func NewCheckpointEvaluator(judge SemanticJudge) *CheckpointEvaluator {
	return &CheckpointEvaluator{judge: judge}
}

func (e *CheckpointEvaluator) Evaluate(ctx context.Context, cp *Checkpoint, answer string, cfg config.TeachConfig) *Evaluation {
	result := e.evaluate(ctx, cp, answer, cfg)
	monitoring.CheckpointVerdicts.WithLabelValues(result.Verdict, result.Method).Inc()
	return result
}

func (e *CheckpointEvaluator) evaluate(ctx context.Context, cp *Checkpoint, answer string, cfg config.TeachConfig) *Evaluation {
	trimmed := strings.TrimSpace(answer)

	// (a) 选择题：答案键或完整选项文本命中即为标准比对，总是可以下结论
	if cp.CorrectKey != "" {
		if matchesOption(cp, cp.CorrectKey, trimmed) {
			return &Evaluation{
				Verdict:  VerdictCorrect,
				Feedback: "回答正确。",
				Method:   MethodCanonical,
			}
		}
		return &Evaluation{
			Verdict:  VerdictIncorrect,
			Feedback: "回答不正确，再想想看。",
			Method:   MethodCanonical,
		}
	}

	// (b) 主观题：关键词重合度
	if len(cp.Keywords) > 0 {
		matched := matchKeywords(cp.Keywords, trimmed)
		score := float64(len(matched)) / float64(len(cp.Keywords))

		pass := cp.PassThreshold
		if pass <= 0 {
			pass = cfg.PassThreshold
		}

		if score >= pass {
			return &Evaluation{
				Verdict:         VerdictCorrect,
				MatchedKeywords: matched,
				Feedback:        fmt.Sprintf("回答正确，覆盖了要点：%s。", strings.Join(matched, "、")),
				Method:          MethodKeyword,
			}
		}
		if score < cfg.PartialThreshold {
			return &Evaluation{
				Verdict:         VerdictIncorrect,
				MatchedKeywords: matched,
				Feedback:        "回答没有覆盖到要点，建议回顾讲解后再试。",
				Method:          MethodKeyword,
			}
		}

		// 部分命中区间无法下结论，交给语义评判，失败则保留关键词结论
		keywordFallback := &Evaluation{
			Verdict:         VerdictPartial,
			MatchedKeywords: matched,
			Feedback:        fmt.Sprintf("回答覆盖了部分要点（%s），还可以更完整。", strings.Join(matched, "、")),
			Method:          MethodKeyword,
		}
		return e.consultJudge(ctx, cp, trimmed, cfg, keywordFallback)
	}

	// 既无标准答案也无关键词，只能依赖语义评判
	noSignal := &Evaluation{
		Verdict:  VerdictIncorrect,
		Feedback: "暂时无法判定这个回答，建议换一种表述再试。",
		Method:   MethodKeyword,
	}
	return e.consultJudge(ctx, cp, trimmed, cfg, noSignal)
}

// consultJudge 带超时调用语义评判，失败或超时返回降级结论
func (e *CheckpointEvaluator) consultJudge(ctx context.Context, cp *Checkpoint, answer string, cfg config.TeachConfig, fallback *Evaluation) *Evaluation {
	if e.judge == nil {
		return fallback
	}

	judgeCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.JudgeTimeout)*time.Second)
	defer cancel()

	verdict, err := e.judge.Judge(judgeCtx, cp, answer)
	if err != nil {
		logger.Log.Warn("Semantic judge unavailable, keeping keyword verdict",
			zap.String("checkpoint", cp.ID),
			zap.Error(err))
		out := *fallback
		out.JudgeTimedOut = true
		return &out
	}

	switch verdict {
	case VerdictCorrect:
		return &Evaluation{
			Verdict:         VerdictCorrect,
			MatchedKeywords: fallback.MatchedKeywords,
			Feedback:        "回答正确。",
			Method:          MethodJudge,
		}
	case VerdictPartial:
		return &Evaluation{
			Verdict:         VerdictPartial,
			MatchedKeywords: fallback.MatchedKeywords,
			Feedback:        "回答部分正确，还可以更完整。",
			Method:          MethodJudge,
		}
	default:
		return &Evaluation{
			Verdict:         VerdictIncorrect,
			MatchedKeywords: fallback.MatchedKeywords,
			Feedback:        "回答不正确，建议回顾讲解后再试。",
			Method:          MethodJudge,
		}
	}
}

// matchesOption 答案键或该选项的完整文本命中都算选中
func matchesOption(cp *Checkpoint, key, answer string) bool {
	if strings.EqualFold(strings.TrimSpace(answer), key) {
		return true
	}
	for _, o := range cp.Options {
		if strings.EqualFold(o.Key, key) && strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(o.Text)) {
			return true
		}
	}
	return false
}

// matchKeywords 关键词以子串形式出现即计入命中，中英文均适用
func matchKeywords(keywords []string, answer string) []string {
	lower := strings.ToLower(answer)
	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
