package review

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quadratecode/zhlaw-sub000/corrstore"
	"github.com/quadratecode/zhlaw-sub000/element"
	"github.com/quadratecode/zhlaw-sub000/pathguard"
)

const streamSuffix = "-elements.json"

// FileSource serves element streams from a directory laid out as
// <dir>/<law>/<law>-<version>-elements.json. It implements batch.Source.
type FileSource struct {
	dir string
}

// NewFileSource creates a FileSource rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// List enumerates every (law, version) with an element stream, sorted.
func (s *FileSource) List() ([]corrstore.Key, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("review: list streams: %w", err)
	}

	var keys []corrstore.Key
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		lawID := e.Name()
		files, err := os.ReadDir(filepath.Join(s.dir, lawID))
		if err != nil {
			return nil, fmt.Errorf("review: list streams %s: %w", lawID, err)
		}
		for _, fe := range files {
			name := fe.Name()
			if fe.IsDir() || !strings.HasSuffix(name, streamSuffix) {
				continue
			}
			stem := strings.TrimSuffix(name, streamSuffix)
			version := strings.TrimPrefix(stem, lawID+"-")
			if version == stem || version == "" {
				continue
			}
			keys = append(keys, corrstore.Key{LawID: lawID, Version: version})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].LawID != keys[j].LawID {
			return keys[i].LawID < keys[j].LawID
		}
		return keys[i].Version < keys[j].Version
	})
	return keys, nil
}

// Stream loads the element stream for one key.
func (s *FileSource) Stream(k corrstore.Key) ([]element.Element, error) {
	path, err := pathguard.SafeJoin(s.dir, k.LawID, k.LawID+"-"+k.Version+streamSuffix)
	if err != nil {
		return nil, err
	}
	return element.LoadStream(path)
}
