package core

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gobwas/glob"
	"pkt.systems/ffdebug/internal/rdp"
	"pkt.systems/ffdebug/schema"
)

// sourceTable maps local paths to the source actors the browser reported.
type sourceTable struct {
	ignore []glob.Glob

	mu      sync.Mutex
	byPath  map[string]rdp.Source
	waiters map[string][]chan rdp.Source
	err     error
}

func compileIgnore(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: ignore pattern %q: %v", schema.ErrConfiguration, pattern, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func newSourceTable(ignore []glob.Glob) *sourceTable {
	return &sourceTable{
		ignore:  ignore,
		byPath:  make(map[string]rdp.Source),
		waiters: make(map[string][]chan rdp.Source),
	}
}

func (t *sourceTable) ignored(src rdp.Source) bool {
	for _, g := range t.ignore {
		if g.Match(src.URL) || g.Match(filepath.ToSlash(src.Path)) {
			return true
		}
	}
	return false
}

// publish records src and wakes its waiters. It reports false for ignored
// sources.
func (t *sourceTable) publish(src rdp.Source) bool {
	if t.ignored(src) {
		return false
	}
	src.Path = filepath.Clean(src.Path)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return false
	}
	t.byPath[src.Path] = src
	for _, ch := range t.waiters[src.Path] {
		ch <- src
	}
	delete(t.waiters, src.Path)
	return true
}

func (t *sourceTable) lookup(path string) (rdp.Source, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	src, ok := t.byPath[filepath.Clean(path)]
	return src, ok
}

// resolve waits until a source for path is published.
func (t *sourceTable) resolve(ctx context.Context, path string) (rdp.Source, error) {
	path = filepath.Clean(path)
	t.mu.Lock()
	if t.err != nil {
		err := t.err
		t.mu.Unlock()
		return rdp.Source{}, err
	}
	if src, ok := t.byPath[path]; ok {
		t.mu.Unlock()
		return src, nil
	}
	ch := make(chan rdp.Source, 1)
	t.waiters[path] = append(t.waiters[path], ch)
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		t.drop(path, ch)
		return rdp.Source{}, ctx.Err()
	case src, ok := <-ch:
		if !ok {
			t.mu.Lock()
			err := t.err
			t.mu.Unlock()
			return rdp.Source{}, err
		}
		return src, nil
	}
}

func (t *sourceTable) drop(path string, ch chan rdp.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.waiters[path]
	for i, c := range list {
		if c == ch {
			t.waiters[path] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(t.waiters[path]) == 0 {
		delete(t.waiters, path)
	}
}

// fail rejects every pending and future resolve with err.
func (t *sourceTable) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	t.err = err
	for _, list := range t.waiters {
		for _, ch := range list {
			close(ch)
		}
	}
	t.waiters = make(map[string][]chan rdp.Source)
}
