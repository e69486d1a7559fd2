package repomap

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codeglide/sidecar/pkg/types"
)

// defaultIgnores mirrors the glob tool's ignore list
// plus the usual VCS/build directories, so a workspace walk never
// descends into dependency trees.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/.venv/**",
	"**/dist/**",
	"**/build/**",
	"**/target/**",
	"**/_examples/**",
}

// RepoMap owns the per-workspace TagIndex and its staleness window. It
// is safe for concurrent reads; rebuilds take an exclusive lock.
type RepoMap struct {
	root       string
	ignores    []string
	maxAge     time.Duration
	mu         sync.RWMutex
	index      *types.TagIndex
	contents   map[string]string
	builtAt    time.Time
}

// New creates a RepoMap rooted at root. maxAge controls how stale the
// cached TagIndex is allowed to get before Ensure rebuilds it; the
// index is stale-tolerant: renderings and searches reuse it until it
// is older than maxAge.
func New(root string, maxAge time.Duration) *RepoMap {
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return &RepoMap{
		root:    root,
		ignores: append([]string(nil), defaultIgnores...),
		maxAge:  maxAge,
	}
}

// Invalidate drops the cached index so the next Ensure rebuilds, used
// when the checkout switches branches underneath the daemon.
func (m *RepoMap) Invalidate() {
	m.mu.Lock()
	m.index = nil
	m.mu.Unlock()
}

// Ensure returns a current TagIndex, rebuilding it if absent or stale.
func (m *RepoMap) Ensure() (*types.TagIndex, error) {
	m.mu.RLock()
	fresh := m.index != nil && time.Since(m.builtAt) < m.maxAge
	idx := m.index
	m.mu.RUnlock()

	if fresh {
		return idx, nil
	}
	return m.Rebuild()
}

// Rebuild forces a full re-walk and re-tag of the workspace.
func (m *RepoMap) Rebuild() (*types.TagIndex, error) {
	idx := types.NewTagIndex()
	contents := make(map[string]string)

	err := filepath.Walk(m.root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil // best-effort: skip unreadable entries
		}
		rel, relErr := filepath.Rel(m.root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if m.ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if m.ignored(rel) || !SupportedExtension(rel) {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		content := string(data)
		TagFile(idx, rel, content)
		contents[rel] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.index = idx
	m.contents = contents
	m.builtAt = time.Now()
	m.mu.Unlock()

	return idx, nil
}

func (m *RepoMap) ignored(rel string) bool {
	for _, pattern := range m.ignores {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// Also match the bare directory name so filepath.Walk can prune
		// it with SkipDir before descending (the pattern's "/**" suffix
		// only matches entries *inside* the directory, not the
		// directory node itself).
		if dirPattern := strings.TrimSuffix(pattern, "/**"); dirPattern != pattern {
			if ok, _ := doublestar.Match(dirPattern, rel); ok {
				return true
			}
		}
	}
	return false
}

// RenderOutline is the convenience entry point tying Ensure + Render
// together for the repo_map tool (internal/tool).
func (m *RepoMap) RenderOutline(budget int) (string, error) {
	idx, err := m.Ensure()
	if err != nil {
		return "", err
	}
	return Render(idx, budget), nil
}

// Search is the convenience entry point for the search_definitions
// tool.
func (m *RepoMap) Search(query string, fuzzy bool, mode SearchMode) ([]types.Tag, error) {
	idx, err := m.Ensure()
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	contents := m.contents
	m.mu.RUnlock()
	return SearchDefinitionsFlattenedWithContent(idx, contents, query, fuzzy, mode), nil
}
