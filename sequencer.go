package outbuf

type link struct {
	prev, next FragmentID
}

// sequencer memegang urutan global fragment sebagai doubly linked list di atas
// arena: links[id] menyimpan tetangga id. Fragment tidak saling memiliki.
type sequencer struct {
	links      []link
	head, tail FragmentID
}

func newSequencer() sequencer {
	return sequencer{head: noFragment, tail: noFragment}
}

func (s *sequencer) len() int { return len(s.links) }

func (s *sequencer) has(id FragmentID) bool {
	return id >= 0 && int(id) < len(s.links)
}

// push appends a new id at the tail.
func (s *sequencer) push() FragmentID {
	id := FragmentID(len(s.links))
	s.links = append(s.links, link{prev: s.tail, next: noFragment})
	if s.tail == noFragment {
		s.head = id
	} else {
		s.links[s.tail].next = id
	}
	s.tail = id
	return id
}

// insertBefore splices a new id immediately before anchor. The anchor must
// exist.
func (s *sequencer) insertBefore(anchor FragmentID) FragmentID {
	id := FragmentID(len(s.links))
	prev := s.links[anchor].prev
	s.links = append(s.links, link{prev: prev, next: anchor})
	s.links[anchor].prev = id
	if prev == noFragment {
		s.head = id
	} else {
		s.links[prev].next = id
	}
	return id
}

// each walks the chain from head until fn returns false.
func (s *sequencer) each(fn func(FragmentID) bool) {
	for id := s.head; id != noFragment; id = s.links[id].next {
		if !fn(id) {
			return
		}
	}
}

// order returns the ids in final order.
func (s *sequencer) order() []FragmentID {
	ids := make([]FragmentID, 0, len(s.links))
	s.each(func(id FragmentID) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// positions resolves the offset of every id given its length.
func (s *sequencer) positions(length func(FragmentID) int64) map[FragmentID]int64 {
	pos := make(map[FragmentID]int64, len(s.links))
	var off int64
	s.each(func(id FragmentID) bool {
		pos[id] = off
		off += length(id)
		return true
	})
	return pos
}

// position resolves a single id, walking only the prefix before it.
func (s *sequencer) position(id FragmentID, length func(FragmentID) int64) int64 {
	var off int64
	s.each(func(cur FragmentID) bool {
		if cur == id {
			return false
		}
		off += length(cur)
		return true
	})
	return off
}
