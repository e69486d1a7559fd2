package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
)

const treePrinterDescription = `Prints a directory tree rooted at a path, to a maximum depth.

Usage:
- Useful for getting oriented in an unfamiliar part of the workspace before drilling into individual files
- Skips the same VCS/build/dependency directories the list tool skips`

// TreePrinterTool renders an indented directory tree.
type TreePrinterTool struct {
	workDir string
}

func NewTreePrinterTool(workDir string) *TreePrinterTool {
	return &TreePrinterTool{workDir: workDir}
}

func (t *TreePrinterTool) ID() string          { return "tree_printer" }
func (t *TreePrinterTool) Description() string { return treePrinterDescription }

func (t *TreePrinterTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory to root the tree at. Defaults to the workspace root."},
			"max_depth": {"type": "integer", "description": "Maximum depth to descend. Defaults to 3."}
		}
	}`)
}

type treePrinterInput struct {
	Path     string `json:"path"`
	MaxDepth int    `json:"max_depth"`
}

func (t *TreePrinterTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var in treePrinterInput
	_ = json.Unmarshal(input, &in)

	root := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		root = toolCtx.WorkDir
	}
	if in.Path != "" {
		if filepath.IsAbs(in.Path) {
			root = in.Path
		} else {
			root = filepath.Join(root, in.Path)
		}
	}
	maxDepth := in.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}

	var sb strings.Builder
	sb.WriteString(filepath.Base(root) + "/\n")
	count := 0
	if err := walkTree(&sb, root, "", 0, maxDepth, &count); err != nil {
		return nil, fmt.Errorf("tree_printer: %w", err)
	}

	return &Result{
		Title:    "Directory tree",
		Output:   sb.String(),
		Metadata: map[string]any{"entries": count},
	}, nil
}

func walkTree(sb *strings.Builder, dir, prefix string, depth, maxDepth int, count *int) error {
	if depth >= maxDepth {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var kept []os.DirEntry
	for _, e := range entries {
		if shouldIgnoreTreeEntry(e.Name()) {
			continue
		}
		kept = append(kept, e)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].IsDir() != kept[j].IsDir() {
			return kept[i].IsDir()
		}
		return kept[i].Name() < kept[j].Name()
	})

	for i, e := range kept {
		last := i == len(kept)-1
		branch := "├── "
		nextPrefix := prefix + "│   "
		if last {
			branch = "└── "
			nextPrefix = prefix + "    "
		}

		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		sb.WriteString(prefix + branch + name + "\n")
		*count++

		if e.IsDir() {
			if err := walkTree(sb, filepath.Join(dir, e.Name()), nextPrefix, depth+1, maxDepth, count); err != nil {
				continue
			}
		}
	}
	return nil
}

func shouldIgnoreTreeEntry(name string) bool {
	for _, pattern := range defaultIgnorePatterns {
		trimmed := strings.TrimSuffix(pattern, "/")
		if name == trimmed {
			return true
		}
	}
	return false
}

func (t *TreePrinterTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }
