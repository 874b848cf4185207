package outbuf

// storageKind is the tag of a fragment's storage state.
type storageKind uint8

const (
	inMemory storageKind = iota
	spilled
)

func (k storageKind) String() string {
	switch k {
	case inMemory:
		return "memory"
	case spilled:
		return "spilled"
	default:
		return "unknown"
	}
}

// fragment adalah satu unit output berurutan.
//
// Saat kind == inMemory hanya buf yang terisi; saat kind == spilled hanya
// blocks dan lastUsed yang terisi. Transisi inMemory -> spilled terjadi paling
// banyak sekali (lihat spill) dan tidak pernah kembali.
type fragment struct {
	length   int64
	kind     storageKind
	buf      []byte  // inMemory
	blocks   []int64 // spilled: indeks blok scratch, berurutan
	lastUsed int     // spilled: byte terpakai di blok terakhir
	finished bool
}

// spill switches the fragment to the spilled state and hands back its buffer.
func (f *fragment) spill(blocks []int64, lastUsed int) []byte {
	if f.kind != inMemory {
		panic("outbuf: fragment spilled twice")
	}
	buf := f.buf
	f.kind = spilled
	f.buf = nil
	f.blocks = blocks
	f.lastUsed = lastUsed
	return buf
}

// release drops whatever the fragment holds after it has been emitted.
func (f *fragment) release() {
	f.buf = nil
	f.blocks = nil
}
