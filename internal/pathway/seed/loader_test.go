package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validSeed = `
pathways:
  chest-pain:
    name: 胸痛分诊
    category: 急诊
    kind: primary
    nodes:
      - key: q1
        type: QUESTION
        title: 症状持续？
        isStart: true
        options:
          - label: 是
            valueKey: "yes"
            next: e1
          - label: 否
            valueKey: "no"
            actionKey: SELF_CARE
      - key: e1
        type: END
        title: 转急诊
        actionKey: REFER
`

func writeSeedFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSeedFile(t, dir, "triage.yaml", validSeed)

	loader := NewLibraryLoader()
	require.NoError(t, loader.LoadFromFile(path))

	pathways := loader.Pathways()
	require.Len(t, pathways, 1)

	p := pathways["chest-pain"]
	require.NotNil(t, p)
	require.Equal(t, "胸痛分诊", p.Name)
	require.Len(t, p.Nodes, 2)
	require.True(t, p.Nodes[0].IsStart)
	require.Equal(t, "e1", p.Nodes[0].Options[0].Next)
	require.Equal(t, "SELF_CARE", p.Nodes[0].Options[1].ActionKey)
}

func TestLoadRejectsDanglingReference(t *testing.T) {
	dir := t.TempDir()
	path := writeSeedFile(t, dir, "broken.yaml", `
pathways:
  broken:
    name: 断链路径
    nodes:
      - key: q1
        type: QUESTION
        title: 问题
        options:
          - label: 去哪
            next: no_such_node
`)

	loader := NewLibraryLoader()
	err := loader.LoadFromFile(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no_such_node")
}

func TestLoadRejectsDuplicateNodeKey(t *testing.T) {
	dir := t.TempDir()
	path := writeSeedFile(t, dir, "dup.yaml", `
pathways:
  dup:
    name: 重复键
    nodes:
      - key: n1
        type: INSTRUCTION
        title: 一
      - key: n1
        type: INSTRUCTION
        title: 二
`)

	loader := NewLibraryLoader()
	require.Error(t, loader.LoadFromFile(path))
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeSeedFile(t, dir, "a.yaml", validSeed)
	writeSeedFile(t, dir, "ignored.txt", "not yaml")

	loader := NewLibraryLoader()
	require.NoError(t, loader.LoadFromDirectory(dir))
	require.Len(t, loader.Pathways(), 1)
}
