package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlArtifact = `
modules:
  - id: m1
    title: 记忆的科学
    sequence_order: 1
    concepts:
      - id: c1
        name: 检索练习
        explanation: 主动回忆比重复阅读更有效。
        keywords: ["检索", "回忆"]
        checkpoints:
          - id: cp1
            prompt: 哪种方式记得更牢？
            correct_key: A
            options:
              - key: A
                text: 主动回忆
              - key: B
                text: 反复阅读
`

const jsonArtifact = `{
  "modules": [
    {
      "id": "m1",
      "title": "记忆的科学",
      "concepts": [
        {"id": "c1", "name": "检索练习", "explanation": "主动回忆比重复阅读更有效。"}
      ]
    }
  ]
}`

func TestDecodeArtifactYAML(t *testing.T) {
	artifact, err := decodeArtifact([]byte(yamlArtifact), "yaml")
	require.NoError(t, err)
	require.Len(t, artifact.Modules, 1)

	m := artifact.Modules[0]
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, 1, m.SequenceOrder)
	require.Len(t, m.Concepts, 1)
	require.Len(t, m.Concepts[0].Checkpoints, 1)

	cp := m.Concepts[0].Checkpoints[0]
	assert.Equal(t, "A", cp.CorrectKey)
	require.Len(t, cp.Options, 2)
	assert.Equal(t, "主动回忆", cp.Options[0].Text)

	// 解码结果必须能通过图谱校验
	_, err = NewModuleGraph("kb1", 1, artifact.Modules)
	require.NoError(t, err)
}

func TestDecodeArtifactJSON(t *testing.T) {
	artifact, err := decodeArtifact([]byte(jsonArtifact), "json")
	require.NoError(t, err)
	require.Len(t, artifact.Modules, 1)
	assert.Equal(t, "检索练习", artifact.Modules[0].Concepts[0].Name)
}

func TestDecodeArtifactRejectsGarbage(t *testing.T) {
	_, err := decodeArtifact([]byte("{not valid"), "json")
	assert.Error(t, err)

	_, err = decodeArtifact([]byte("\t- broken yaml"), "yaml")
	assert.Error(t, err)
}

func TestAllowedArtifactName(t *testing.T) {
	assert.True(t, allowedArtifactName("graph.json"))
	assert.True(t, allowedArtifactName("graph.yaml"))
	assert.True(t, allowedArtifactName("builds/kb1/Graph.YML"))
	assert.False(t, allowedArtifactName("graph.exe"))
	assert.False(t, allowedArtifactName("graph"))
}

func TestGraphToRowsRoundTrip(t *testing.T) {
	artifact, err := decodeArtifact([]byte(yamlArtifact), "yaml")
	require.NoError(t, err)

	graph, err := NewModuleGraph("kb1", 2, artifact.Modules)
	require.NoError(t, err)

	modules, concepts, checkpoints := graphToRows("kb1", graph)
	require.Len(t, modules, 1)
	require.Len(t, concepts, 1)
	require.Len(t, checkpoints, 1)

	assert.Equal(t, "kb1", modules[0].KnowledgeBaseID)
	assert.Equal(t, "m1", concepts[0].ModuleID)
	assert.Equal(t, "c1", checkpoints[0].ConceptID)
	assert.Equal(t, 1, checkpoints[0].SequenceOrder)
	// JSON列已编码
	assert.JSONEq(t, `["检索","回忆"]`, string(concepts[0].Keywords))
}

func TestFormatFromName(t *testing.T) {
	assert.Equal(t, "yaml", formatFromName("a.yaml"))
	assert.Equal(t, "yaml", formatFromName("a.YML"))
	assert.Equal(t, "json", formatFromName("a.json"))
	assert.Equal(t, "json", formatFromName("a"))
}
