package core

import "sync"

// handleTable hands out the integer references the editor uses for scopes
// and expandable values. References are valid until the thread resumes and
// are never reused within a session.
type handleTable struct {
	mu   sync.Mutex
	next int
	refs map[int]string
	ids  map[string]int
}

func newHandleTable() *handleTable {
	h := &handleTable{}
	h.reset()
	return h
}

func (h *handleTable) alloc(ref string) int {
	if ref == "" {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if id, ok := h.ids[ref]; ok {
		return id
	}
	h.next++
	h.refs[h.next] = ref
	h.ids[ref] = h.next
	return h.next
}

func (h *handleTable) lookup(id int) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ref, ok := h.refs[id]
	return ref, ok
}

func (h *handleTable) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs = make(map[int]string)
	h.ids = make(map[string]int)
}
