package outbuf

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"go.uber.org/multierr"
)

// BlockStore adalah scratch storage berbasis blok berukuran tetap.
//
// WriteBlock menulis p ke blok index mulai dari off; pemanggil tidak pernah
// menulis ulang byte yang sudah ditulis, hanya menambah di belakangnya.
// ReadBlock mengisi buf (panjang = ukuran blok) dengan isi blok. Close
// menghapus storage di belakangnya.
type BlockStore interface {
	WriteBlock(index int64, off int, p []byte) error
	ReadBlock(index int64, buf []byte) error
	Close() error
}

// sequentialAdvisor is implemented by stores that can prepare for a forward
// read-back pass.
type sequentialAdvisor interface {
	adviseSequential() error
}

// fileStore stores block i at byte offset i*blockSize of a temporary file.
type fileStore struct {
	file      *os.File
	path      string
	blockSize int
}

func newFileStore(dir string, blockSize int) (*fileStore, error) {
	f, err := os.CreateTemp(dir, "outbuf-*.scratch")
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	return &fileStore{file: f, path: f.Name(), blockSize: blockSize}, nil
}

func (s *fileStore) offset(index int64, off int) int64 {
	return index*int64(s.blockSize) + int64(off)
}

func (s *fileStore) WriteBlock(index int64, off int, p []byte) error {
	if off+len(p) > s.blockSize {
		return fmt.Errorf("write past end of block %d: %d+%d > %d", index, off, len(p), s.blockSize)
	}
	if _, err := s.file.WriteAt(p, s.offset(index, off)); err != nil {
		return fmt.Errorf("write block %d: %w", index, err)
	}
	return nil
}

func (s *fileStore) ReadBlock(index int64, buf []byte) error {
	// Blok terakhir boleh pendek di disk; sisanya tidak pernah dibaca.
	_, err := s.file.ReadAt(buf[:s.blockSize], s.offset(index, 0))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read block %d: %w", index, err)
	}
	return nil
}

// Close menutup dan menghapus scratch file.
func (s *fileStore) Close() error {
	err := s.file.Close()
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = multierr.Append(err, fmt.Errorf("remove scratch file: %w", rmErr))
	}
	return err
}

// segments mengalokasikan indeks blok secara monoton dan mencatat CRC32
// berjalan setiap blok, diverifikasi saat dibaca kembali.
type segments struct {
	store     BlockStore
	blockSize int
	next      int64
	sums      []uint32
}

func newSegments(store BlockStore, blockSize int) *segments {
	return &segments{store: store, blockSize: blockSize}
}

func (s *segments) alloc() int64 {
	idx := s.next
	s.next++
	s.sums = append(s.sums, 0)
	return idx
}

func (s *segments) write(index int64, off int, p []byte) error {
	if err := s.store.WriteBlock(index, off, p); err != nil {
		return err
	}
	s.sums[index] = crc32.Update(s.sums[index], crc32.IEEETable, p)
	return nil
}

// read fills buf with the first used bytes of block index and verifies them.
func (s *segments) read(index int64, used int, buf []byte) ([]byte, error) {
	if err := s.store.ReadBlock(index, buf); err != nil {
		return nil, err
	}
	data := buf[:used]
	if crc32.ChecksumIEEE(data) != s.sums[index] {
		return nil, fmt.Errorf("block %d: %w", index, ErrCorruptBlock)
	}
	return data, nil
}

func (s *segments) checksum(index int64) uint32 { return s.sums[index] }

// restore resets the running checksum of block index to sum.
func (s *segments) restore(index int64, sum uint32) { s.sums[index] = sum }

func (s *segments) close() error {
	return s.store.Close()
}
