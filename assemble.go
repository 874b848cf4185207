package outbuf

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
)

func (b *Builder) fragLen(id FragmentID) int64 { return b.frags[id].length }

// PositionInfo mengembalikan offset absolut byte pertama setiap fragment dalam
// urutan akhir. Nilai untuk suatu fragment hanya akurat bila tidak ada lagi
// InsertFragmentBefore yang menargetkan anchor di atau sebelum fragment itu.
func (b *Builder) PositionInfo() map[FragmentID]int64 {
	if b.closed {
		violation("position info", noFragment, ErrClosed)
	}
	return b.seq.positions(b.fragLen)
}

// Position resolves the offset of a single fragment, walking only the
// fragments before it.
func (b *Builder) Position(id FragmentID) int64 {
	b.live("position", id)
	return b.seq.position(id, b.fragLen)
}

// Close menggabungkan semua fragment ke sink sesuai urutan, mem-flush sink bila
// sink punya Flush() error, lalu melepas scratch storage dan semua buffer.
// Scratch storage selalu dilepas, juga bila penulisan ke sink gagal. Close
// kedua tidak melakukan apa pun dan mengembalikan nil. Menutup sink adalah
// tanggung jawab pemanggil.
func (b *Builder) Close() (err error) {
	if b.closed {
		return nil
	}
	b.closed = true
	mBuildersOpen.Dec()

	defer func() {
		if rerr := b.release(); rerr != nil {
			b.log.Warn().Err(rerr).Msg("Failed to release scratch storage")
			err = multierr.Append(err, rerr)
		}
	}()

	start := time.Now()
	n, err := b.assemble()
	mAssembledBytes.Add(float64(n))
	if err != nil {
		return fmt.Errorf("assemble output at byte %d: %w", n, err)
	}
	if f, ok := b.sink.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush sink: %w", err)
		}
	}

	dur := time.Since(start)
	mAssembleDuration.Set(dur.Seconds())
	st := b.GetStats()
	b.log.Info().
		Int("fragments", st.Fragments).
		Int("spilled", st.Spilled).
		Int64("blocks", st.Blocks).
		Str("size", humanize.IBytes(uint64(n))).
		Str("peak-memory", humanize.IBytes(uint64(st.PeakMemory))).
		Dur("duration", dur).
		Msg("Output assembled")
	return nil
}

// assemble walks the sequencer and emits every fragment. At most one block
// buffer is live while spilled fragments are read back.
func (b *Builder) assemble() (int64, error) {
	var written int64
	if b.seg != nil {
		if a, ok := b.seg.store.(sequentialAdvisor); ok {
			if err := a.adviseSequential(); err != nil {
				b.log.Debug().Err(err).Msg("Sequential advice failed")
			}
		}
	}

	var blockBuf *[]byte
	defer func() {
		if blockBuf != nil {
			b.returnBufToPool(blockBuf)
		}
	}()

	var err error
	b.seq.each(func(id FragmentID) bool {
		f := &b.frags[id]
		switch f.kind {
		case inMemory:
			var n int
			n, err = b.sink.Write(f.buf)
			written += int64(n)
			if err != nil {
				err = fmt.Errorf("fragment %d: %w", id, err)
				return false
			}
			b.mem.release(cap(f.buf))

		case spilled:
			if blockBuf == nil {
				blockBuf = b.getBufFromPool()
			}
			for i, idx := range f.blocks {
				used := b.opts.BlockSize
				if i == len(f.blocks)-1 {
					used = f.lastUsed
				}
				var data []byte
				data, err = b.seg.read(idx, used, *blockBuf)
				if err != nil {
					err = fmt.Errorf("fragment %d: %w", id, err)
					return false
				}
				var n int
				n, err = b.sink.Write(data)
				written += int64(n)
				if err != nil {
					err = fmt.Errorf("fragment %d: %w", id, err)
					return false
				}
			}
		}
		f.release()
		return true
	})
	return written, err
}

// release melepas scratch storage dan semua fragment.
func (b *Builder) release() error {
	b.frags = nil
	b.mem.inUse = 0
	if b.seg == nil {
		return nil
	}
	seg := b.seg
	b.seg = nil
	if err := seg.close(); err != nil {
		return fmt.Errorf("release scratch storage: %w", err)
	}
	return nil
}
