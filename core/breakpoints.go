package core

import (
	"sync"

	"pkt.systems/ffdebug/internal/rdp"
	"pkt.systems/ffdebug/schema"
)

// placedBreakpoint is an editor breakpoint and the browser actor backing it.
// Actor is empty until the breakpoint is placed.
type placedBreakpoint struct {
	bp    schema.Breakpoint
	actor string
}

// breakpointSet tracks editor breakpoints per path.
type breakpointSet struct {
	mu      sync.Mutex
	nextID  int
	byPath  map[string][]*placedBreakpoint
	byActor map[string]*placedBreakpoint
	// gen counts edits per path so deferred placement can tell it went stale.
	gen map[string]int
}

func newBreakpointSet() *breakpointSet {
	return &breakpointSet{
		byPath:  make(map[string][]*placedBreakpoint),
		byActor: make(map[string]*placedBreakpoint),
		gen:     make(map[string]int),
	}
}

// begin starts an edit of path and returns its generation.
func (s *breakpointSet) begin(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen[path]++
	return s.gen[path]
}

func (s *breakpointSet) current(path string, gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[path] == gen
}

// take removes the breakpoints of path and returns their browser actors.
func (s *breakpointSet) take(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var actors []string
	for _, p := range s.byPath[path] {
		if p.actor != "" {
			actors = append(actors, p.actor)
			delete(s.byActor, p.actor)
		}
	}
	delete(s.byPath, path)
	return actors
}

// pending records unplaced breakpoints for path.
func (s *breakpointSet) pending(path string, lines []int, message string) []schema.Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*placedBreakpoint, 0, len(lines))
	out := make([]schema.Breakpoint, 0, len(lines))
	for _, line := range lines {
		s.nextID++
		p := &placedBreakpoint{bp: schema.Breakpoint{ID: s.nextID, Path: path, Line: line, Message: message}}
		list = append(list, p)
		out = append(out, p.bp)
	}
	s.byPath[path] = list
	return out
}

// ids returns the editor ids currently assigned to path, in order.
func (s *breakpointSet) ids(path string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for _, p := range s.byPath[path] {
		ids = append(ids, p.bp.ID)
	}
	return ids
}

// store records placement results for path. ids, when it has one entry per
// result, keeps the editor ids handed out earlier.
func (s *breakpointSet) store(path string, results []rdp.BreakpointResult, ids []int) []schema.Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*placedBreakpoint, 0, len(results))
	out := make([]schema.Breakpoint, 0, len(results))
	for i, res := range results {
		id := 0
		if len(ids) == len(results) {
			id = ids[i]
		} else {
			s.nextID++
			id = s.nextID
		}
		p := &placedBreakpoint{
			bp:    schema.Breakpoint{ID: id, Path: path, Line: res.Line, Verified: res.Verified},
			actor: res.ID,
		}
		if res.Err != nil {
			p.bp.Message = res.Err.Error()
		}
		if res.ID != "" {
			s.byActor[res.ID] = p
		}
		list = append(list, p)
		out = append(out, p.bp)
	}
	s.byPath[path] = list
	return out
}

// verify marks the pending breakpoints behind actors as verified at line and
// returns those that changed.
func (s *breakpointSet) verify(actors []string, line int) []schema.Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []schema.Breakpoint
	for _, actor := range actors {
		p := s.byActor[actor]
		if p == nil || p.bp.Verified {
			continue
		}
		p.bp.Verified = true
		if line > 0 {
			p.bp.Line = line
		}
		changed = append(changed, p.bp)
	}
	return changed
}
