package outbuf

// Stats menyimpan statistik satu Builder.
type Stats struct {
	Fragments    int   // fragment yang pernah dibuat
	Spilled      int   // fragment yang di-spill ke scratch
	Trimmed      int   // fragment yang di-trim saat finish
	Blocks       int64 // blok scratch yang dialokasikan
	MemoryInUse  int64 // kapasitas buffer fragment in-memory saat ini
	PeakMemory   int64 // nilai tertinggi MemoryInUse
	BytesWritten int64 // total byte yang diterima Write
}

// GetStats mengambil snapshot statistik.
func (b *Builder) GetStats() Stats {
	st := Stats{
		Fragments:    b.seq.len(),
		Spilled:      b.spilledCount,
		Trimmed:      b.trimmedCount,
		MemoryInUse:  b.mem.inUse,
		PeakMemory:   b.mem.peak,
		Blocks:       b.blocks,
		BytesWritten: b.written,
	}
	return st
}

// Len mengembalikan panjang fragment id saat ini.
func (b *Builder) Len(id FragmentID) int64 {
	return b.live("len", id).length
}

// BlockSize mengembalikan ukuran blok scratch.
func (b *Builder) BlockSize() int { return b.opts.BlockSize }
