package outbuf

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// region merepresentasikan satu bagian scratch file yang di-mmap.
//
// Setiap region memuat rentang blok berurutan; first adalah indeks blok
// pertama di region ini. Ukuran region selalu kelipatan page size agar offset
// mmap region berikutnya tetap sejajar page.
type region struct {
	mmap  []byte
	first int64
}

// mmapStore is a BlockStore whose scratch file is mapped region by region,
// growing the file as blocks are allocated.
type mmapStore struct {
	file         *os.File
	path         string
	blockSize    int
	regionBlocks int64
	regions      []*region
}

func newMmapStore(dir string, blockSize, regionBlocks int) (*mmapStore, error) {
	page := os.Getpagesize()
	// round regionBlocks up so that regionBlocks*blockSize is page aligned
	step := page / gcd(blockSize, page)
	if regionBlocks < step {
		regionBlocks = step
	} else if r := regionBlocks % step; r != 0 {
		regionBlocks += step - r
	}

	f, err := os.CreateTemp(dir, "outbuf-*.scratch")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	return &mmapStore{
		file:         f,
		path:         f.Name(),
		blockSize:    blockSize,
		regionBlocks: int64(regionBlocks),
	}, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (s *mmapStore) regionSize() int64 { return s.regionBlocks * int64(s.blockSize) }

// findRegion menentukan region yang berisi blok index, memetakan region baru
// bila perlu. Mengembalikan region dan offset byte blok di dalam region.
func (s *mmapStore) findRegion(index int64) (*region, int, error) {
	want := index / s.regionBlocks
	for int64(len(s.regions)) <= want {
		n := int64(len(s.regions))
		size := s.regionSize()
		if err := s.file.Truncate((n + 1) * size); err != nil {
			return nil, 0, fmt.Errorf("gagal mengalokasikan region %d: %w", n, err)
		}
		m, err := unix.Mmap(int(s.file.Fd()), n*size, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return nil, 0, fmt.Errorf("gagal mmap region %d: %w", n, err)
		}
		s.regions = append(s.regions, &region{mmap: m, first: n * s.regionBlocks})
	}
	r := s.regions[want]
	return r, int(index-r.first) * s.blockSize, nil
}

func (s *mmapStore) WriteBlock(index int64, off int, p []byte) error {
	if off+len(p) > s.blockSize {
		return fmt.Errorf("write past end of block %d: %d+%d > %d", index, off, len(p), s.blockSize)
	}
	r, base, err := s.findRegion(index)
	if err != nil {
		return err
	}
	copy(r.mmap[base+off:], p)
	return nil
}

func (s *mmapStore) ReadBlock(index int64, buf []byte) error {
	if index/s.regionBlocks >= int64(len(s.regions)) {
		return fmt.Errorf("read block %d: not allocated", index)
	}
	r, base, err := s.findRegion(index)
	if err != nil {
		return err
	}
	copy(buf[:s.blockSize], r.mmap[base:base+s.blockSize])
	return nil
}

func (s *mmapStore) adviseSequential() error {
	for i, r := range s.regions {
		if err := unix.Madvise(r.mmap, unix.MADV_SEQUENTIAL); err != nil {
			return fmt.Errorf("madvise region %d: %w", i, err)
		}
	}
	return nil
}

// Close melepas semua mmap, menutup, lalu menghapus scratch file.
func (s *mmapStore) Close() error {
	var err error
	for i, r := range s.regions {
		if uerr := unix.Munmap(r.mmap); uerr != nil {
			err = multierr.Append(err, fmt.Errorf("gagal unmap region %d: %w", i, uerr))
		}
	}
	s.regions = nil
	if cerr := s.file.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("gagal menutup scratch file: %w", cerr))
	}
	if rerr := os.Remove(s.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		err = multierr.Append(err, fmt.Errorf("remove scratch file: %w", rerr))
	}
	return err
}
