package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// ignoreFileName is dits' equivalent of .gitignore.
const ignoreFileName = ".ditsignore"

// matcher pre-scans a working tree for .ditsignore files and compiles each
// into a pattern matcher, adapted from go-delta's pkg/compress gitignore
// matcher to key off .ditsignore instead of .gitignore.
type matcher struct {
	baseDir  string
	matchers map[string]*ignore.GitIgnore
}

func newMatcher(baseDir string) (*matcher, error) {
	baseDir = filepath.Clean(baseDir)
	m := &matcher{baseDir: baseDir, matchers: make(map[string]*ignore.GitIgnore)}

	err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".dits" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Base(path) != ignoreFileName {
			return nil
		}
		dir := filepath.Dir(path)
		relDir, err := filepath.Rel(baseDir, dir)
		if err != nil {
			return nil
		}
		if relDir == "." {
			relDir = ""
		}
		compiled, err := ignore.CompileIgnoreFile(path)
		if err != nil {
			return nil
		}
		m.matchers[filepath.ToSlash(relDir)] = compiled
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(m.matchers) == 0 {
		return nil, nil
	}
	return m, nil
}

// shouldIgnore reports whether relPath (slash-separated, relative to
// baseDir) matches an ignore pattern in its own or an ancestor
// .ditsignore file.
func (m *matcher) shouldIgnore(relPath string) bool {
	if m == nil || len(m.matchers) == 0 {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	for _, dir := range m.hierarchy(relPath) {
		compiled, ok := m.matchers[dir]
		if !ok {
			continue
		}
		pathToCheck := relPath
		if dir != "" {
			pathToCheck = strings.TrimPrefix(relPath, dir+"/")
		}
		if compiled.MatchesPath(pathToCheck) {
			return true
		}
	}
	return false
}

func (m *matcher) hierarchy(relPath string) []string {
	parent := filepath.ToSlash(filepath.Dir(relPath))
	if parent == "." {
		parent = ""
	}
	hierarchy := []string{""}
	if parent == "" {
		return hierarchy
	}
	parts := strings.Split(parent, "/")
	current := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		if current == "" {
			current = part
		} else {
			current = current + "/" + part
		}
		hierarchy = append(hierarchy, current)
	}
	sort.Slice(hierarchy, func(i, j int) bool { return len(hierarchy[i]) < len(hierarchy[j]) })
	return hierarchy
}
