package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kbot_backend/internal/config"
	"kbot_backend/internal/model"
	"kbot_backend/internal/repository"
	"kbot_backend/internal/util"
	"kbot_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// GraphService 提供教学图谱快照，实现 GraphProvider
// 快照按 (知识库, 版本) 缓存在Redis里，导入新图谱时版本号递增，
// 旧缓存键自然失效，不需要主动广播
type GraphService struct {
	repo *repository.ModuleGraphRepository
	rdb  *redis.Client
	ttl  time.Duration
}

func NewGraphService(repo *repository.ModuleGraphRepository, rdb *redis.Client, cfg config.TeachConfig) *GraphService {
	return &GraphService{
		repo: repo,
		rdb:  rdb,
		ttl:  time.Duration(cfg.SnapshotTTLMinutes) * time.Minute,
	}
}

func graphCacheKey(kbID string, version int) string {
	return fmt.Sprintf("teach:graph:%s:v%d", kbID, version)
}

// Snapshot 当前版本的图谱快照
func (s *GraphService) Snapshot(ctx context.Context, kbID string) (*ModuleGraph, error) {
	kb, err := s.repo.FindKnowledgeBase(kbID)
	if err != nil {
		return nil, err
	}
	if kb.GraphVersion == 0 {
		return nil, util.ErrGraphNotBuilt
	}

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, graphCacheKey(kbID, kb.GraphVersion)).Result(); err == nil {
			var modules []*Module
			if err := json.Unmarshal([]byte(cached), &modules); err == nil {
				if g, err := NewModuleGraph(kbID, kb.GraphVersion, modules); err == nil {
					return g, nil
				}
			}
			logger.Log.Warn("Discarding unreadable graph cache entry", zap.String("kb", kbID))
		}
	}

	graph, err := s.load(kb)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if payload, err := json.Marshal(graph.Modules); err == nil {
			if err := s.rdb.Set(ctx, graphCacheKey(kbID, kb.GraphVersion), payload, s.ttl).Err(); err != nil {
				logger.Log.Warn("Failed to cache graph snapshot", zap.String("kb", kbID), zap.Error(err))
			}
		}
	}

	return graph, nil
}

// Invalidate 删除指定版本的缓存，导入流程在替换图谱后调用
func (s *GraphService) Invalidate(ctx context.Context, kbID string, version int) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, graphCacheKey(kbID, version)).Err(); err != nil {
		logger.Log.Warn("Failed to invalidate graph cache", zap.String("kb", kbID), zap.Error(err))
	}
}

// load 从数据库读取图谱行并构建快照
func (s *GraphService) load(kb *model.KnowledgeBase) (*ModuleGraph, error) {
	rows, err := s.repo.ListModules(kb.ID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, util.ErrGraphNotBuilt
	}

	moduleIDs := make([]string, len(rows))
	modules := make([]*Module, len(rows))
	byModule := make(map[string]*Module, len(rows))
	for i, row := range rows {
		m := &Module{
			ID:               row.ID,
			Title:            row.Title,
			Description:      row.Description,
			SequenceOrder:    row.SequenceOrder,
			DifficultyLevel:  row.DifficultyLevel,
			EstimatedMinutes: row.EstimatedMinutes,
			Prerequisites:    decodeStrings(row.Prerequisites),
			Objectives:       decodeStrings(row.LearningObjectives),
		}
		modules[i] = m
		moduleIDs[i] = row.ID
		byModule[row.ID] = m
	}

	conceptRows, err := s.repo.ListConcepts(moduleIDs)
	if err != nil {
		return nil, err
	}
	conceptIDs := make([]string, len(conceptRows))
	byConcept := make(map[string]*Concept, len(conceptRows))
	for i, row := range conceptRows {
		c := &Concept{
			ID:                    row.ID,
			ModuleID:              row.ModuleID,
			Name:                  row.Name,
			Explanation:           row.Explanation,
			SimplifiedExplanation: row.SimplifiedExplanation,
			AdvancedExplanation:   row.AdvancedExplanation,
			Keywords:              decodeStrings(row.Keywords),
			Citations:             decodeCitations(row.Citations),
		}
		conceptIDs[i] = row.ID
		byConcept[row.ID] = c
		if m := byModule[row.ModuleID]; m != nil {
			m.Concepts = append(m.Concepts, c)
		}
	}

	checkpointRows, err := s.repo.ListCheckpoints(conceptIDs)
	if err != nil {
		return nil, err
	}
	for _, row := range checkpointRows {
		cp := &Checkpoint{
			ID:            row.ID,
			ConceptID:     row.ConceptID,
			Prompt:        row.Prompt,
			CorrectKey:    row.CorrectKey,
			Options:       decodeOptions(row.Options),
			Keywords:      decodeStrings(row.Keywords),
			PassThreshold: row.PassThreshold,
			Citations:     decodeCitations(row.Citations),
		}
		if c := byConcept[row.ConceptID]; c != nil {
			c.Checkpoints = append(c.Checkpoints, cp)
		}
	}

	return NewModuleGraph(kb.ID, kb.GraphVersion, modules)
}

func decodeStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeOptions(raw json.RawMessage) []Option {
	if len(raw) == 0 {
		return nil
	}
	var out []Option
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeCitations(raw json.RawMessage) []Citation {
	if len(raw) == 0 {
		return nil
	}
	var out []Citation
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
