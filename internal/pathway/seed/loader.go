package seed

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LibraryLoader 全局路径库加载器
type LibraryLoader struct {
	pathways map[string]*SeedPathway
}

// SeedPathway 种子文件中的一条路径定义
type SeedPathway struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Category    string       `yaml:"category"`
	Kind        string       `yaml:"kind"`
	Colour      string       `yaml:"colour"`
	Nodes       []*SeedNode  `yaml:"nodes"`
}

// SeedNode 种子路径中的一个节点，key 是文件内的符号引用名
type SeedNode struct {
	Key       string        `yaml:"key"`
	Type      string        `yaml:"type"`
	Title     string        `yaml:"title"`
	Body      string        `yaml:"body"`
	IsStart   bool          `yaml:"isStart"`
	ActionKey string        `yaml:"actionKey"`
	Options   []*SeedOption `yaml:"options"`
}

// SeedOption 节点出边，Next 引用同路径内其他节点的 key，为空表示终止分支
type SeedOption struct {
	Label     string `yaml:"label"`
	ValueKey  string `yaml:"valueKey"`
	Next      string `yaml:"next"`
	ActionKey string `yaml:"actionKey"`
}

// libraryFile 种子文件结构：路径按 slug 索引
type libraryFile struct {
	Pathways map[string]*SeedPathway `yaml:"pathways"`
}

// NewLibraryLoader 创建库加载器
func NewLibraryLoader() *LibraryLoader {
	return &LibraryLoader{
		pathways: make(map[string]*SeedPathway),
	}
}

// LoadFromFile 从单个 YAML 文件加载路径定义
func (l *LibraryLoader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取种子文件失败: %w", err)
	}

	var file libraryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("解析种子文件失败: %w", err)
	}

	for slug, p := range file.Pathways {
		if err := validateSeedPathway(slug, p); err != nil {
			return err
		}
		l.pathways[slug] = p
	}

	return nil
}

// LoadFromDirectory 加载目录下所有 *.yaml 种子文件
func (l *LibraryLoader) LoadFromDirectory(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("遍历种子目录失败: %w", err)
	}

	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
	}

	return nil
}

// Pathways 返回全部已加载的路径定义，按 slug 索引
func (l *LibraryLoader) Pathways() map[string]*SeedPathway {
	return l.pathways
}

// validateSeedPathway 校验一条种子路径定义的内部一致性
func validateSeedPathway(slug string, p *SeedPathway) error {
	if p.Name == "" {
		return fmt.Errorf("种子路径 %s 缺少名称", slug)
	}

	keys := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.Key == "" {
			return fmt.Errorf("种子路径 %s 存在缺少 key 的节点", slug)
		}
		if keys[n.Key] {
			return fmt.Errorf("种子路径 %s 节点 key 重复: %s", slug, n.Key)
		}
		keys[n.Key] = true
	}

	for _, n := range p.Nodes {
		for _, o := range n.Options {
			if o.Next != "" && !keys[o.Next] {
				return fmt.Errorf("种子路径 %s 节点 %s 的出边引用了不存在的节点: %s", slug, n.Key, o.Next)
			}
		}
	}

	return nil
}
