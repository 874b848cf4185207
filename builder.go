package outbuf

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Builder menyediakan output builder berbasis fragment dengan spill ke scratch
// storage berbasis blok.
//
// Fragment ditulis dalam urutan bebas; byte-nya digabungkan ke sink sesuai
// urutan sequencer saat Close. Builder tidak aman untuk goroutine.
type Builder struct {
	sink    io.Writer
	opts    Options
	log     zerolog.Logger
	seq     sequencer
	frags   []fragment
	mem     budget
	seg     *segments  // dibuat saat spill pertama
	bufPool *sync.Pool // dipakai bersama builder lain dengan BlockSize sama
	closed  bool

	spilledCount int
	trimmedCount int
	blocks       int64
	written      int64
}

// NewBuilder membuat builder dengan opsi default (lihat DefaultOptions).
func NewBuilder(sink io.Writer) (*Builder, error) {
	return NewBuilderWithOptions(sink, DefaultOptions())
}

// NewBuilderWithOptions membuat builder dengan opsi kustom.
func NewBuilderWithOptions(sink io.Writer, opts Options) (*Builder, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink must not be nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	mBuildersOpen.Inc()
	return &Builder{
		sink:    sink,
		opts:    opts,
		log:     log.With().Str("module", "outbuf").Logger(),
		seq:     newSequencer(),
		mem:     newBudget(opts),
		bufPool: blockPool(opts.BlockSize),
	}, nil
}

// live returns the fragment for id, panicking on contract violations.
func (b *Builder) live(op string, id FragmentID) *fragment {
	if b.closed {
		violation(op, id, ErrClosed)
	}
	if !b.seq.has(id) {
		violation(op, id, ErrUnknownFragment)
	}
	return &b.frags[id]
}

// AddFragment menambah fragment kosong di ujung urutan.
func (b *Builder) AddFragment() FragmentID {
	if b.closed {
		violation("add", noFragment, ErrClosed)
	}
	id := b.seq.push()
	b.frags = append(b.frags, fragment{})
	mFragments.Inc()
	return id
}

// InsertFragmentBefore menyisipkan fragment kosong tepat sebelum anchor.
// Anchor boleh sudah di-finish.
func (b *Builder) InsertFragmentBefore(anchor FragmentID) FragmentID {
	b.live("insert before", anchor)
	id := b.seq.insertBefore(anchor)
	b.frags = append(b.frags, fragment{})
	mFragments.Inc()
	return id
}

// Fragment returns an io.Writer that appends to fragment id.
func (b *Builder) Fragment(id FragmentID) io.Writer {
	b.live("writer", id)
	return fragmentWriter{b, id}
}

type fragmentWriter struct {
	b  *Builder
	id FragmentID
}

func (w fragmentWriter) Write(p []byte) (int, error) {
	if err := w.b.Write(w.id, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Write menambahkan p ke fragment id. Data disimpan di memori selama fragment
// masih di bawah PerFragmentCap dan anggaran global masih cukup; selain itu
// fragment di-spill ke scratch storage.
func (b *Builder) Write(id FragmentID, p []byte) error {
	f := b.live("write", id)
	if f.finished {
		violation("write", id, ErrFragmentFinished)
	}
	if len(p) == 0 {
		return nil
	}

	if f.kind == inMemory {
		if b.mem.admit(f.length, len(p)) {
			b.appendMemory(f, p)
			return nil
		}
		if err := b.spill(id, f); err != nil {
			return err
		}
	}

	blocks, lastUsed, err := b.writeBlocks(f.blocks, f.lastUsed, p)
	if err != nil {
		return fmt.Errorf("write fragment %d: %w", id, err)
	}
	f.blocks, f.lastUsed = blocks, lastUsed
	f.length += int64(len(p))
	b.written += int64(len(p))
	return nil
}

func (b *Builder) appendMemory(f *fragment, p []byte) {
	need := len(f.buf) + len(p)
	if need > cap(f.buf) {
		c := b.mem.grownCap(cap(f.buf), need)
		buf := make([]byte, len(f.buf), c)
		copy(buf, f.buf)
		b.mem.reserve(c - cap(f.buf))
		f.buf = buf
	}
	f.buf = append(f.buf, p...)
	f.length += int64(len(p))
	b.written += int64(len(p))
}

// spill memindahkan seluruh buffer fragment ke scratch storage dan melepas
// reservasinya dari anggaran global.
func (b *Builder) spill(id FragmentID, f *fragment) error {
	blocks, lastUsed, err := b.writeBlocks(nil, 0, f.buf)
	if err != nil {
		return fmt.Errorf("spill fragment %d: %w", id, err)
	}
	buf := f.spill(blocks, lastUsed)
	b.mem.release(cap(buf))
	b.spilledCount++
	mSpills.Inc()
	b.log.Debug().Int("fragment", int(id)).Int64("length", f.length).Int("blocks", len(blocks)).Msg("Fragment spilled")
	return nil
}

// writeBlocks appends p after lastUsed bytes of the last block, allocating new
// blocks as needed. It returns the updated block list; the caller commits it
// only on success.
func (b *Builder) writeBlocks(blocks []int64, lastUsed int, p []byte) (_ []int64, _ int, err error) {
	if len(p) == 0 {
		return blocks, lastUsed, nil
	}
	seg, err := b.segments()
	if err != nil {
		return blocks, lastUsed, err
	}
	bs := b.opts.BlockSize
	// checksum blok ekor hanya boleh mencakup byte yang tercatat di fragment
	if len(blocks) > 0 && lastUsed < bs {
		tail := blocks[len(blocks)-1]
		sum := seg.checksum(tail)
		defer func() {
			if err != nil {
				seg.restore(tail, sum)
			}
		}()
	}
	for len(p) > 0 {
		if len(blocks) == 0 || lastUsed == bs {
			blocks = append(blocks, seg.alloc())
			lastUsed = 0
			b.blocks++
			mBlocksWritten.Inc()
		}
		n := bs - lastUsed
		if n > len(p) {
			n = len(p)
		}
		if err = seg.write(blocks[len(blocks)-1], lastUsed, p[:n]); err != nil {
			return blocks, lastUsed, err
		}
		lastUsed += n
		p = p[n:]
	}
	return blocks, lastUsed, nil
}

// segments membuat scratch storage secara lazy.
func (b *Builder) segments() (*segments, error) {
	if b.seg != nil {
		return b.seg, nil
	}
	var store BlockStore
	var err error
	switch {
	case b.opts.NewStore != nil:
		store, err = b.opts.NewStore(b.opts.ScratchDir, b.opts.BlockSize)
	case b.opts.UseMmap:
		store, err = newMmapStore(b.opts.ScratchDir, b.opts.BlockSize, b.opts.MmapRegionBlocks)
	default:
		store, err = newFileStore(b.opts.ScratchDir, b.opts.BlockSize)
	}
	if err != nil {
		return nil, err
	}
	b.seg = newSegments(store, b.opts.BlockSize)
	b.log.Debug().Int("block-size", b.opts.BlockSize).Bool("mmap", b.opts.UseMmap).Msg("Scratch storage created")
	return b.seg, nil
}

// FinishFragment menyegel fragment. Fragment in-memory yang lebih kecil dari
// SpillThreshold di-trim ke panjang pasti; yang lebih besar di-spill. Memanggil
// dua kali tidak mengubah apa pun.
func (b *Builder) FinishFragment(id FragmentID) error {
	f := b.live("finish", id)
	if f.finished {
		return nil
	}
	if f.kind == inMemory {
		if b.mem.keepOnFinish(f.length) {
			b.trim(id, f)
		} else if err := b.spill(id, f); err != nil {
			return err
		}
	}
	f.finished = true
	return nil
}

func (b *Builder) trim(id FragmentID, f *fragment) {
	slack := cap(f.buf) - len(f.buf)
	if slack == 0 {
		return
	}
	var buf []byte
	if len(f.buf) > 0 {
		buf = make([]byte, len(f.buf))
		copy(buf, f.buf)
	}
	f.buf = buf
	b.mem.release(slack)
	b.trimmedCount++
	mTrims.Inc()
	b.log.Debug().Int("fragment", int(id)).Int64("length", f.length).Int("released", slack).Msg("Fragment trimmed")
}

// SupportsPositionInfo is always true for Builder.
func (b *Builder) SupportsPositionInfo() bool { return true }
