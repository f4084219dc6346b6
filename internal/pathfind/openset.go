package pathfind

import "github.com/zyedidia/generic/heap"

// openSet yields the node with the lowest f, breaking ties on lower h and
// then on first-insertion order.
type openSet interface {
	push(i int)
	// update re-keys a node already in the set after relaxation.
	update(i int)
	pop() (int, bool)
	contains(i int) bool
}

// linearOpen is an unindexed list scanned for the minimum on every pop.
// Removal keeps list order, so equal (f, h) nodes leave in insertion order.
type linearOpen struct {
	nodes []node
	items []int
}

func (s *linearOpen) push(i int) {
	s.items = append(s.items, i)
	s.nodes[i].inOpen = true
}

func (s *linearOpen) update(int) {}

func (s *linearOpen) pop() (int, bool) {
	if len(s.items) == 0 {
		return 0, false
	}
	best := 0
	for k := 1; k < len(s.items); k++ {
		a, b := &s.nodes[s.items[k]], &s.nodes[s.items[best]]
		if a.f() < b.f() || a.f() == b.f() && a.h < b.h {
			best = k
		}
	}
	i := s.items[best]
	s.items = append(s.items[:best], s.items[best+1:]...)
	s.nodes[i].inOpen = false
	return i, true
}

func (s *linearOpen) contains(i int) bool { return s.nodes[i].inOpen }

type heapEntry struct {
	idx     int
	f, h    float32
	seq     int
	version int
}

// heapOpen pushes a fresh entry on every update and drops stale ones at pop.
type heapOpen struct {
	nodes []node
	h     *heap.Heap[heapEntry]
	seq   int
}

func newHeapOpen(nodes []node) *heapOpen {
	return &heapOpen{
		nodes: nodes,
		h: heap.New(func(a, b heapEntry) bool {
			if a.f != b.f {
				return a.f < b.f
			}
			if a.h != b.h {
				return a.h < b.h
			}
			return a.seq < b.seq
		}),
	}
}

func (s *heapOpen) push(i int) {
	n := &s.nodes[i]
	n.inOpen = true
	n.seq = s.seq
	s.seq++
	s.update(i)
}

func (s *heapOpen) update(i int) {
	n := &s.nodes[i]
	n.version++
	s.h.Push(heapEntry{idx: i, f: n.f(), h: n.h, seq: n.seq, version: n.version})
}

func (s *heapOpen) pop() (int, bool) {
	for s.h.Size() > 0 {
		e, _ := s.h.Pop()
		n := &s.nodes[e.idx]
		if !n.inOpen || e.version != n.version {
			continue
		}
		n.inOpen = false
		return e.idx, true
	}
	return 0, false
}

func (s *heapOpen) contains(i int) bool { return s.nodes[i].inOpen }
