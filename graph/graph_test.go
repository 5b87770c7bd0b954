package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const editorJSON = `{
  "nodes": [
    {"id": "1", "type": "variable", "position": {"x": 0, "y": 0},
     "data": {"label": "setup", "variables": [{"name": "n", "type": "int", "value": "3"}]}},
    {"id": "2", "type": "loop", "position": {"x": 200, "y": 0},
     "data": {"indexVar": "i", "count": 5, "countVar": "n"}},
    {"id": "3", "type": "body", "position": {"x": 400, "y": 0},
     "data": {"body": "print(i)"}},
    {"id": "4", "type": "condition", "position": {"x": 600, "y": 0},
     "data": {"condition": "n > 2"}},
    {"id": "5", "type": "function", "position": {"x": 800, "y": 0},
     "data": {"name": "add", "params": [{"name": "a"}, {"name": "b", "type": "int", "default": 1}], "body": "return a + b"}}
  ],
  "edges": [
    {"id": "e1", "source": "1", "target": "2"},
    {"id": "e2", "source": "2", "target": "3", "sourceHandle": "body"},
    {"id": "e3", "source": "2", "target": "4", "sourceHandle": "next"}
  ]
}`

func TestParseJSON_EditorFormat(t *testing.T) {
	g, err := ParseJSON([]byte(editorJSON))
	require.NoError(t, err)
	require.Len(t, g.Nodes, 5)
	require.Len(t, g.Edges, 3)

	assert.Equal(t, KindVariable, g.Nodes[0].Kind())
	assert.Equal(t, "setup", g.Nodes[0].Label)

	loop, ok := g.Nodes[1].Data.(LoopData)
	require.True(t, ok)
	assert.Equal(t, "5", loop.Count)
	assert.Equal(t, "n", loop.CountExpr())
	assert.Equal(t, "i", loop.Index())

	assert.Equal(t, BodyData{Text: "print(i)"}, g.Nodes[2].Data)
	assert.Equal(t, RoleBody, g.Edges[1].Role)
	assert.Equal(t, RoleNone, g.Edges[0].Role)
	require.NoError(t, g.Validate())
}

func TestParseJSON_UnknownKind(t *testing.T) {
	_, err := ParseJSON([]byte(`{"nodes":[{"id":"x","type":"llm"}],"edges":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestGraph_JSONRoundTrip(t *testing.T) {
	g, err := ParseJSON([]byte(editorJSON))
	require.NoError(t, err)

	data, err := g.ToJSON()
	require.NoError(t, err)
	back, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, g, back)
}

func TestGraph_YAMLRoundTrip(t *testing.T) {
	g, err := ParseJSON([]byte(editorJSON))
	require.NoError(t, err)

	data, err := g.ToYAML()
	require.NoError(t, err)
	back, err := ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, g, back)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.yaml")
	yamlText := `
nodes:
  - id: a
    type: body
    position: {x: 0, y: 0}
    data:
      body: x = 1
edges: []
`
	require.NoError(t, os.WriteFile(path, []byte(yamlText), 0o600))

	g, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "x = 1", BlockText(g.Nodes[0]))

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	g := Graph{
		Nodes: []Node{
			{ID: "a", Data: BodyData{}},
			{ID: "a", Data: BodyData{}},
			{ID: "", Data: BodyData{}},
			{ID: "c"},
		},
		Edges: []Edge{{Source: "a", Target: "zzz", Role: "sideways"}},
	}
	err := g.Validate()
	require.ErrorIs(t, err, ErrInvalidGraph)
	assert.Contains(t, err.Error(), "duplicate id")
	assert.Contains(t, err.Error(), "empty id")
	assert.Contains(t, err.Error(), "missing data")
	assert.Contains(t, err.Error(), "unknown role")

	dangling := Graph{
		Nodes: []Node{{ID: "a", Data: BodyData{}}},
		Edges: []Edge{{Source: "a", Target: "ghost"}},
	}
	assert.NoError(t, dangling.Validate())
}

func TestNode_DisplayLabel(t *testing.T) {
	assert.Equal(t, "init", Node{ID: "1", Label: "init", Data: BodyData{}}.DisplayLabel())
	assert.Equal(t, "loop", Node{ID: "1", Data: LoopData{}}.DisplayLabel())
	assert.Equal(t, "1", Node{ID: "1"}.DisplayLabel())
}

func TestIndex_FirstWins(t *testing.T) {
	g := Graph{Nodes: []Node{
		{ID: "a", Label: "first", Data: BodyData{}},
		{ID: "a", Label: "second", Data: BodyData{}},
	}}
	assert.Equal(t, "first", g.Index()["a"].Label)
}
