package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kbot_backend/internal/model"
	"kbot_backend/internal/repository"
	"kbot_backend/internal/util"
	"kbot_backend/pkg/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// GraphArtifact 外部构建流程产出的图谱制品
// 支持JSON和YAML两种编码，结构与图谱快照一致
type GraphArtifact struct {
	Modules []*Module `json:"modules" yaml:"modules"`
}

// GraphImportService 图谱制品导入
// 先整体校验，校验失败不落任何行；导入成功后递增版本号并清掉旧缓存。
// 这里只接收已构建好的制品，不解析任何文档
type GraphImportService struct {
	repo    *repository.ModuleGraphRepository
	graphs  *GraphService
	storage *StorageService
}

func NewGraphImportService(repo *repository.ModuleGraphRepository, graphs *GraphService, storage *StorageService) *GraphImportService {
	return &GraphImportService{repo: repo, graphs: graphs, storage: storage}
}

// Import 导入制品内容，format 为 "json" 或 "yaml"
func (s *GraphImportService) Import(ctx context.Context, kbID string, data []byte, format string) (*ModuleGraph, error) {
	kb, err := s.repo.FindKnowledgeBase(kbID)
	if err != nil {
		return nil, err
	}

	artifact, err := decodeArtifact(data, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidArtifact, err)
	}
	if len(artifact.Modules) == 0 {
		return nil, fmt.Errorf("%w: artifact contains no modules", util.ErrInvalidArtifact)
	}

	// 结构校验在持久化之前，坏制品不落库
	graph, err := NewModuleGraph(kbID, kb.GraphVersion+1, artifact.Modules)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidArtifact, err)
	}

	modules, concepts, checkpoints := graphToRows(kbID, graph)
	newVersion, err := s.repo.ReplaceGraph(kbID, modules, concepts, checkpoints)
	if err != nil {
		return nil, err
	}
	graph.Version = newVersion

	s.graphs.Invalidate(ctx, kbID, kb.GraphVersion)

	logger.Log.Info("Teaching graph imported",
		zap.String("kb", kbID),
		zap.Int("version", newVersion),
		zap.Int("modules", len(modules)),
		zap.Int("concepts", len(concepts)),
		zap.Int("checkpoints", len(checkpoints)))

	return graph, nil
}

// ImportFromFile 从本地文件导入，-import-graph 启动参数用
func (s *GraphImportService) ImportFromFile(ctx context.Context, kbID, path string) (*ModuleGraph, error) {
	if !allowedArtifactName(path) {
		return nil, fmt.Errorf("%w: unsupported artifact extension %q", util.ErrInvalidArtifact, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, kbID, data, formatFromName(path))
}

// ImportFromStorage 从配置的存储后端按对象名取制品导入
func (s *GraphImportService) ImportFromStorage(ctx context.Context, kbID, objectName string) (*ModuleGraph, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("%w: no artifact storage configured", util.ErrInvalidArtifact)
	}
	if !allowedArtifactName(objectName) {
		return nil, fmt.Errorf("%w: unsupported artifact extension %q", util.ErrInvalidArtifact, filepath.Ext(objectName))
	}
	data, err := s.storage.Fetch(ctx, objectName)
	if err != nil {
		return nil, err
	}
	return s.Import(ctx, kbID, data, formatFromName(objectName))
}

func allowedArtifactName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range util.AllowedArtifactExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func decodeArtifact(data []byte, format string) (*GraphArtifact, error) {
	var artifact GraphArtifact
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &artifact); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &artifact); err != nil {
			return nil, err
		}
	}
	return &artifact, nil
}

func formatFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// graphToRows 快照转数据库行，JSON列在这里编码
func graphToRows(kbID string, graph *ModuleGraph) ([]model.TeachingModule, []model.TeachingConcept, []model.TeachingCheckpoint) {
	var modules []model.TeachingModule
	var concepts []model.TeachingConcept
	var checkpoints []model.TeachingCheckpoint

	for i, m := range graph.Modules {
		modules = append(modules, model.TeachingModule{
			UUIDBase:           model.UUIDBase{ID: m.ID},
			KnowledgeBaseID:    kbID,
			Title:              m.Title,
			Description:        m.Description,
			SequenceOrder:      orDefaultOrder(m.SequenceOrder, i),
			DifficultyLevel:    m.DifficultyLevel,
			EstimatedMinutes:   m.EstimatedMinutes,
			Prerequisites:      encodeJSON(m.Prerequisites),
			LearningObjectives: encodeJSON(m.Objectives),
		})
		for j, c := range m.Concepts {
			concepts = append(concepts, model.TeachingConcept{
				UUIDBase:              model.UUIDBase{ID: c.ID},
				ModuleID:              m.ID,
				SequenceOrder:         j + 1,
				Name:                  c.Name,
				Explanation:           c.Explanation,
				SimplifiedExplanation: c.SimplifiedExplanation,
				AdvancedExplanation:   c.AdvancedExplanation,
				Keywords:              encodeJSON(c.Keywords),
				Citations:             encodeJSON(c.Citations),
			})
			for k, cp := range c.Checkpoints {
				checkpoints = append(checkpoints, model.TeachingCheckpoint{
					UUIDBase:      model.UUIDBase{ID: cp.ID},
					ConceptID:     c.ID,
					SequenceOrder: k + 1,
					Prompt:        cp.Prompt,
					CorrectKey:    cp.CorrectKey,
					Options:       encodeJSON(cp.Options),
					Keywords:      encodeJSON(cp.Keywords),
					PassThreshold: cp.PassThreshold,
					Citations:     encodeJSON(cp.Citations),
				})
			}
		}
	}

	return modules, concepts, checkpoints
}

func orDefaultOrder(order, index int) int {
	if order > 0 {
		return order
	}
	return index + 1
}

func encodeJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
