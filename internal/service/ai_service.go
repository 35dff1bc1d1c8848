package service

import (
	"context"
	"fmt"
	"strings"

	"kbot_backend/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// AIService OpenAI兼容的大模型协作方
// 同时充当内容生成器（举例/简化讲解）和检查点语义评判的兜底，
// 超时和降级策略由引擎与评分器控制，这里只负责调用
type AIService struct {
	client *openai.Client
	model  string
}

func NewAIService(cfg config.AIConfig) *AIService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &AIService{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Elaborate 生成讲解的变体内容，实现 ContentGenerator
func (s *AIService) Elaborate(ctx context.Context, req ElaborationRequest) (string, error) {
	var instruction string
	switch req.Mode {
	case ElaborateExample:
		instruction = "请针对下面的知识点给出一个具体、贴近生活的例子，帮助学习者理解。只输出例子本身。"
	case ElaborateSimplify:
		instruction = "请把下面的讲解改写得更简单易懂，避免术语，面向初学者。只输出改写后的讲解。"
	default:
		return "", fmt.Errorf("unknown elaboration mode %q", req.Mode)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "你是一个耐心的教学助教，用简体中文回答。",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("%s\n\n知识点：%s\n讲解：%s", instruction, req.ConceptName, req.Explanation),
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Judge 语义评判兜底，实现 SemanticJudge
// 只在确定性评分无法下结论时被评分器调用
func (s *AIService) Judge(ctx context.Context, cp *Checkpoint, answer string) (string, error) {
	prompt := fmt.Sprintf(
		"题目：%s\n参考要点：%s\n学习者回答：%s\n\n判断回答是否正确，只输出以下三个词之一：correct、partial、incorrect。",
		cp.Prompt, strings.Join(cp.Keywords, "、"), answer)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "你是一个严格的阅卷助教，只输出判定结果。",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("AI returned no choices")
	}

	verdict := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	switch {
	case strings.Contains(verdict, VerdictCorrect) && !strings.Contains(verdict, VerdictIncorrect):
		return VerdictCorrect, nil
	case strings.Contains(verdict, VerdictPartial):
		return VerdictPartial, nil
	default:
		return VerdictIncorrect, nil
	}
}
