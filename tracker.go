package outbuf

// PositionTracker membungkus OutputBuilder lain dan mencerminkan add/insert ke
// sequencer miliknya sendiri, sehingga PositionInfo dapat dihitung tanpa
// menyimpan byte. Hanya mencatat metadata; urutan dan isi tulisan tidak diubah.
type PositionTracker struct {
	inner   OutputBuilder
	seq     sequencer
	local   map[FragmentID]FragmentID // id inner -> id lokal
	ids     []FragmentID              // id lokal -> id inner
	lengths []int64                   // id lokal -> panjang
}

func NewPositionTracker(inner OutputBuilder) *PositionTracker {
	return &PositionTracker{
		inner: inner,
		seq:   newSequencer(),
		local: map[FragmentID]FragmentID{},
	}
}

// Unwrap returns the wrapped builder.
func (t *PositionTracker) Unwrap() OutputBuilder { return t.inner }

func (t *PositionTracker) record(id, lid FragmentID) FragmentID {
	t.local[id] = lid
	t.ids = append(t.ids, id)
	t.lengths = append(t.lengths, 0)
	return id
}

func (t *PositionTracker) AddFragment() FragmentID {
	id := t.inner.AddFragment()
	return t.record(id, t.seq.push())
}

func (t *PositionTracker) InsertFragmentBefore(anchor FragmentID) FragmentID {
	la, ok := t.local[anchor]
	if !ok {
		violation("insert before", anchor, ErrUnknownFragment)
	}
	id := t.inner.InsertFragmentBefore(anchor)
	return t.record(id, t.seq.insertBefore(la))
}

func (t *PositionTracker) Write(id FragmentID, p []byte) error {
	if err := t.inner.Write(id, p); err != nil {
		return err
	}
	if lid, ok := t.local[id]; ok {
		t.lengths[lid] += int64(len(p))
	}
	return nil
}

func (t *PositionTracker) FinishFragment(id FragmentID) error {
	return t.inner.FinishFragment(id)
}

// PositionInfo returns the offsets computed from the mirrored order, keyed by
// the wrapped builder's ids.
func (t *PositionTracker) PositionInfo() map[FragmentID]int64 {
	local := t.seq.positions(func(lid FragmentID) int64 { return t.lengths[lid] })
	pos := make(map[FragmentID]int64, len(local))
	for lid, off := range local {
		pos[t.ids[lid]] = off
	}
	return pos
}

func (t *PositionTracker) SupportsPositionInfo() bool { return true }

func (t *PositionTracker) Close() error { return t.inner.Close() }
