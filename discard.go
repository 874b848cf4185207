package outbuf

// Discard adalah OutputBuilder yang membuang semua data. Dipakai untuk dry-run
// ketika hanya struktur yang dibutuhkan. Discard tidak pernah gagal, tidak
// pernah panic, dan tidak menyimpan data; setiap fragment berada di posisi 0.
type Discard struct {
	next FragmentID
}

func (d *Discard) AddFragment() FragmentID {
	id := d.next
	d.next++
	return id
}

func (d *Discard) InsertFragmentBefore(FragmentID) FragmentID { return d.AddFragment() }

func (d *Discard) Write(FragmentID, []byte) error { return nil }

func (d *Discard) FinishFragment(FragmentID) error { return nil }

func (d *Discard) PositionInfo() map[FragmentID]int64 {
	pos := make(map[FragmentID]int64, int(d.next))
	for id := FragmentID(0); id < d.next; id++ {
		pos[id] = 0
	}
	return pos
}

func (d *Discard) SupportsPositionInfo() bool { return true }

func (d *Discard) Close() error { return nil }
