package service

import (
	"fmt"
	"sort"
	"strings"
)

// Option 展示给用户的选项
type Option struct {
	Key  string `json:"key" yaml:"key"`
	Text string `json:"text" yaml:"text"`
}

// Citation 内容出处引用
type Citation struct {
	Source    string `json:"source" yaml:"source"`
	Location  string `json:"location,omitempty" yaml:"location,omitempty"`
	Highlight string `json:"highlight,omitempty" yaml:"highlight,omitempty"`
}

// Checkpoint 检查点快照
type Checkpoint struct {
	ID            string     `json:"id" yaml:"id"`
	ConceptID     string     `json:"conceptId" yaml:"-"`
	Prompt        string     `json:"prompt" yaml:"prompt"`
	CorrectKey    string     `json:"correctKey,omitempty" yaml:"correct_key,omitempty"`
	Options       []Option   `json:"options,omitempty" yaml:"options,omitempty"`
	Keywords      []string   `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	PassThreshold float64    `json:"passThreshold,omitempty" yaml:"pass_threshold,omitempty"`
	Citations     []Citation `json:"citations,omitempty" yaml:"citations,omitempty"`
}

// Concept 知识点快照，讲解内容带难度变体
type Concept struct {
	ID                    string        `json:"id" yaml:"id"`
	ModuleID              string        `json:"moduleId" yaml:"-"`
	Name                  string        `json:"name" yaml:"name"`
	Explanation           string        `json:"explanation" yaml:"explanation"`
	SimplifiedExplanation string        `json:"simplifiedExplanation,omitempty" yaml:"simplified_explanation,omitempty"`
	AdvancedExplanation   string        `json:"advancedExplanation,omitempty" yaml:"advanced_explanation,omitempty"`
	Keywords              []string      `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Citations             []Citation    `json:"citations,omitempty" yaml:"citations,omitempty"`
	Checkpoints           []*Checkpoint `json:"checkpoints,omitempty" yaml:"checkpoints,omitempty"`
}

// ExplanationFor 按自适应模式选择讲解变体，缺失时回退标准讲解
func (c *Concept) ExplanationFor(mode string) string {
	switch mode {
	case "simplified":
		if c.SimplifiedExplanation != "" {
			return c.SimplifiedExplanation
		}
	case "advanced":
		if c.AdvancedExplanation != "" {
			return c.AdvancedExplanation
		}
	}
	return c.Explanation
}

// Module 模块快照
type Module struct {
	ID               string     `json:"id" yaml:"id"`
	Title            string     `json:"title" yaml:"title"`
	Description      string     `json:"description,omitempty" yaml:"description,omitempty"`
	SequenceOrder    int        `json:"sequenceOrder" yaml:"sequence_order"`
	DifficultyLevel  string     `json:"difficultyLevel,omitempty" yaml:"difficulty_level,omitempty"`
	EstimatedMinutes int        `json:"estimatedMinutes,omitempty" yaml:"estimated_minutes,omitempty"`
	Prerequisites    []string   `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	Objectives       []string   `json:"objectives,omitempty" yaml:"objectives,omitempty"`
	Concepts         []*Concept `json:"concepts" yaml:"concepts"`
}

// ModuleGraph 知识库教学图谱的不可变快照
// 节点通过ID索引查找，先修关系只保存ID列表，不嵌入对象指针
type ModuleGraph struct {
	KBID    string
	Version int
	Modules []*Module

	byModule     map[string]*Module
	byConcept    map[string]*Concept
	byCheckpoint map[string]*Checkpoint
	topoOrder    []string
	conceptTotal int
}

// NewModuleGraph 构建快照索引并做结构校验
// 校验失败的图谱不允许进入服务
func NewModuleGraph(kbID string, version int, modules []*Module) (*ModuleGraph, error) {
	g := &ModuleGraph{
		KBID:         kbID,
		Version:      version,
		Modules:      modules,
		byModule:     make(map[string]*Module, len(modules)),
		byConcept:    make(map[string]*Concept),
		byCheckpoint: make(map[string]*Checkpoint),
	}

	sort.SliceStable(g.Modules, func(i, j int) bool {
		return g.Modules[i].SequenceOrder < g.Modules[j].SequenceOrder
	})

	if err := g.validate(); err != nil {
		return nil, err
	}

	for _, m := range g.Modules {
		g.byModule[m.ID] = m
		for _, c := range m.Concepts {
			c.ModuleID = m.ID
			g.byConcept[c.ID] = c
			g.conceptTotal++
			for _, cp := range c.Checkpoints {
				cp.ConceptID = c.ID
				g.byCheckpoint[cp.ID] = cp
			}
		}
	}

	g.topoOrder = g.topoSort()
	return g, nil
}

// validate 检查重复ID、悬空先修、环和空模块
func (g *ModuleGraph) validate() error {
	var errs []string

	moduleIDs := make(map[string]bool, len(g.Modules))
	nodeIDs := make(map[string]bool)
	for _, m := range g.Modules {
		if m.ID == "" {
			errs = append(errs, "module with empty id")
			continue
		}
		if moduleIDs[m.ID] {
			errs = append(errs, fmt.Sprintf("duplicate module id: %q", m.ID))
		}
		moduleIDs[m.ID] = true
		if len(m.Concepts) == 0 {
			errs = append(errs, fmt.Sprintf("module %q has no concepts", m.ID))
		}
		for _, c := range m.Concepts {
			if c.ID == "" {
				errs = append(errs, fmt.Sprintf("module %q contains a concept with empty id", m.ID))
				continue
			}
			if nodeIDs[c.ID] {
				errs = append(errs, fmt.Sprintf("duplicate concept id: %q", c.ID))
			}
			nodeIDs[c.ID] = true
			if c.Explanation == "" {
				errs = append(errs, fmt.Sprintf("concept %q has no explanation", c.ID))
			}
			for _, cp := range c.Checkpoints {
				if cp.ID == "" {
					errs = append(errs, fmt.Sprintf("concept %q contains a checkpoint with empty id", c.ID))
					continue
				}
				if nodeIDs[cp.ID] {
					errs = append(errs, fmt.Sprintf("duplicate checkpoint id: %q", cp.ID))
				}
				nodeIDs[cp.ID] = true
				if cp.Prompt == "" {
					errs = append(errs, fmt.Sprintf("checkpoint %q has no prompt", cp.ID))
				}
				if cp.CorrectKey == "" && len(cp.Keywords) == 0 {
					errs = append(errs, fmt.Sprintf("checkpoint %q has neither a correct key nor keywords", cp.ID))
				}
				if cp.CorrectKey != "" && !optionKeyExists(cp.Options, cp.CorrectKey) {
					errs = append(errs, fmt.Sprintf("checkpoint %q correct key %q not among options", cp.ID, cp.CorrectKey))
				}
			}
		}
	}

	// 悬空先修
	for _, m := range g.Modules {
		for _, pre := range m.Prerequisites {
			if !moduleIDs[pre] {
				errs = append(errs, fmt.Sprintf("module %q references nonexistent prerequisite %q", m.ID, pre))
			}
			if pre == m.ID {
				errs = append(errs, fmt.Sprintf("module %q lists itself as prerequisite", m.ID))
			}
		}
	}

	// Kahn 检环
	inDegree := make(map[string]int, len(g.Modules))
	adj := make(map[string][]string)
	for _, m := range g.Modules {
		inDegree[m.ID] = 0
	}
	for _, m := range g.Modules {
		for _, pre := range m.Prerequisites {
			if moduleIDs[pre] {
				inDegree[m.ID]++
				adj[pre] = append(adj[pre], m.ID)
			}
		}
	}
	var queue []string
	for _, m := range g.Modules {
		if inDegree[m.ID] == 0 {
			queue = append(queue, m.ID)
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited < len(g.Modules) {
		var cycleNodes []string
		for _, m := range g.Modules {
			if inDegree[m.ID] > 0 {
				cycleNodes = append(cycleNodes, m.ID)
			}
		}
		sort.Strings(cycleNodes)
		errs = append(errs, fmt.Sprintf("prerequisite cycle involving modules: %s", strings.Join(cycleNodes, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("teaching graph validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func optionKeyExists(options []Option, key string) bool {
	for _, o := range options {
		if strings.EqualFold(o.Key, key) {
			return true
		}
	}
	return false
}

// topoSort Kahn拓扑序，入度相同时按模块顺序号保证确定性
func (g *ModuleGraph) topoSort() []string {
	inDegree := make(map[string]int, len(g.Modules))
	adj := make(map[string][]string)
	for _, m := range g.Modules {
		inDegree[m.ID] = len(m.Prerequisites)
		for _, pre := range m.Prerequisites {
			adj[pre] = append(adj[pre], m.ID)
		}
	}

	var queue []string
	for _, m := range g.Modules {
		if inDegree[m.ID] == 0 {
			queue = append(queue, m.ID)
		}
	}

	order := make([]string, 0, len(g.Modules))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		next := append([]string(nil), adj[id]...)
		sort.Slice(next, func(i, j int) bool {
			return g.byModule[next[i]].SequenceOrder < g.byModule[next[j]].SequenceOrder
		})
		for _, n := range next {
			inDegree[n]--
			if inDegree[n] == 0 {
				queue = append(queue, n)
			}
		}
	}
	return order
}

// Module 按ID查模块，未找到返回nil
func (g *ModuleGraph) Module(id string) *Module {
	return g.byModule[id]
}

// Concept 按ID查知识点，未找到返回nil
func (g *ModuleGraph) Concept(id string) *Concept {
	return g.byConcept[id]
}

// CheckpointByID 按ID查检查点，未找到返回nil
func (g *ModuleGraph) CheckpointByID(id string) *Checkpoint {
	return g.byCheckpoint[id]
}

// FirstConcept 模块内顺序第一个知识点
func (g *ModuleGraph) FirstConcept(moduleID string) *Concept {
	m := g.byModule[moduleID]
	if m == nil || len(m.Concepts) == 0 {
		return nil
	}
	return m.Concepts[0]
}

// NextConcept 同模块内的下一个知识点，当前已是最后一个时返回nil
func (g *ModuleGraph) NextConcept(conceptID string) *Concept {
	c := g.byConcept[conceptID]
	if c == nil {
		return nil
	}
	m := g.byModule[c.ModuleID]
	for i, mc := range m.Concepts {
		if mc.ID == conceptID && i+1 < len(m.Concepts) {
			return m.Concepts[i+1]
		}
	}
	return nil
}

// ConceptCount 图谱内知识点总数
func (g *ModuleGraph) ConceptCount() int {
	return g.conceptTotal
}

// ModuleConceptCount 模块内知识点数
func (g *ModuleGraph) ModuleConceptCount(moduleID string) int {
	m := g.byModule[moduleID]
	if m == nil {
		return 0
	}
	return len(m.Concepts)
}

// ModuleCompleted 模块内所有知识点都在完成集合里
func (g *ModuleGraph) ModuleCompleted(moduleID string, completed map[string]bool) bool {
	m := g.byModule[moduleID]
	if m == nil {
		return false
	}
	for _, c := range m.Concepts {
		if !completed[c.ID] {
			return false
		}
	}
	return true
}

// CompletedModules 已全部完成的模块ID集合
func (g *ModuleGraph) CompletedModules(completed map[string]bool) map[string]bool {
	done := make(map[string]bool, len(g.Modules))
	for _, m := range g.Modules {
		if g.ModuleCompleted(m.ID, completed) {
			done[m.ID] = true
		}
	}
	return done
}

// UnlockedModules 先修全部完成且自身未完成的模块，按拓扑序返回
func (g *ModuleGraph) UnlockedModules(completed map[string]bool) []*Module {
	done := g.CompletedModules(completed)
	var out []*Module
	for _, id := range g.topoOrder {
		m := g.byModule[id]
		if done[m.ID] {
			continue
		}
		unlocked := true
		for _, pre := range m.Prerequisites {
			if !done[pre] {
				unlocked = false
				break
			}
		}
		if unlocked {
			out = append(out, m)
		}
	}
	return out
}

// RemainingModules 是否还有未完成的模块
func (g *ModuleGraph) RemainingModules(completed map[string]bool) bool {
	done := g.CompletedModules(completed)
	return len(done) < len(g.Modules)
}
