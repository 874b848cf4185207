package outbuf

// budget adalah anggaran memori bersama untuk semua fragment in-memory.
// inUse menghitung kapasitas buffer (bukan panjang), sehingga tidak pernah
// melebihi global.
type budget struct {
	perFragment int
	global      int64
	threshold   int
	inUse       int64
	peak        int64
}

func newBudget(opts Options) budget {
	return budget{
		perFragment: opts.PerFragmentCap,
		global:      opts.GlobalCap,
		threshold:   opts.SpillThreshold,
	}
}

// admit reports whether a fragment of the given length may keep incoming
// more bytes in memory.
func (b *budget) admit(length int64, incoming int) bool {
	return length+int64(incoming) < int64(b.perFragment) &&
		b.inUse+int64(b.perFragment) <= b.global
}

// grownCap returns the capacity for a buffer that must hold need bytes.
// Capacity doubles but never passes the per-fragment cap.
func (b *budget) grownCap(oldCap, need int) int {
	c := 2 * oldCap
	if c < 64 {
		c = 64
	}
	if c < need {
		c = need
	}
	if c > b.perFragment {
		c = b.perFragment
	}
	return c
}

func (b *budget) reserve(n int) {
	b.inUse += int64(n)
	if b.inUse > b.peak {
		b.peak = b.inUse
	}
}

func (b *budget) release(n int) {
	b.inUse -= int64(n)
}

// keepOnFinish reports whether a finished in-memory fragment of this length is
// trimmed rather than spilled.
func (b *budget) keepOnFinish(length int64) bool {
	return length < int64(b.threshold)
}
