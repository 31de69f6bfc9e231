package dump

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"callfuzz/internal/caller"
)

const caseExt = ".yaml"

// DirSink writes one YAML file per case under
// <root>/<key dir>/<key name>_<seq>.yaml.
type DirSink struct {
	root    string
	session string

	mu   sync.Mutex
	next map[string]int
}

// NewDirSink creates the root directory if needed.
func NewDirSink(root, session string) (*DirSink, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dump directory: %w", err)
	}
	return &DirSink{root: root, session: session, next: make(map[string]int)}, nil
}

// Root returns the dump directory.
func (d *DirSink) Root() string { return d.root }

func (d *DirSink) Store(c caller.Caller) (Ref, error) {
	cs := NewCase(d.session, c)
	key := c.Key()

	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Join(d.root, filepath.FromSlash(key.Dir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Ref{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	seq := d.next[cs.Key]
	var path string
	for {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", key.Name, seq, caseExt))
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return Ref{}, fmt.Errorf("failed to check %s: %w", path, err)
		}
		seq++
	}
	cs.Seq = seq

	data, err := cs.Marshal()
	if err != nil {
		return Ref{}, fmt.Errorf("failed to encode case: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Ref{}, fmt.Errorf("failed to write case: %w", err)
	}

	d.next[cs.Key] = seq + 1
	return Ref{Key: cs.Key, Seq: seq, Location: path}, nil
}

func (d *DirSink) Close() error { return nil }

// LoadDir reads every case file below root in lexical path order.
func LoadDir(root string) ([]Case, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && strings.HasSuffix(path, caseExt) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(paths)

	cases := make([]Case, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		cs, err := UnmarshalCase(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cases = append(cases, cs)
	}
	return cases, nil
}
