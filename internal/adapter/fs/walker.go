package fs

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Walker collects ingestible files under a root, filtered by include and
// exclude glob patterns.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// FileInfo describes one matched file.
type FileInfo struct {
	Path string
	Size int64
}

// Walk returns the files under root matching the include patterns and none
// of the exclude patterns.
func (w *Walker) Walk(root string) ([]FileInfo, error) {
	var files []FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if w.shouldExclude(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, FileInfo{
				Path: path,
				Size: info.Size(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (w *Walker) shouldInclude(relPath string) bool {
	for _, pattern := range w.includes {
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(relPath)); ok {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(relPath string) bool {
	for _, pattern := range w.excludes {
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(relPath)); ok {
			return true
		}
	}
	return false
}

// ReadFile reads a file's content as a string.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
