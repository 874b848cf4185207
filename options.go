package outbuf

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Options menyediakan opsi konfigurasi untuk Builder.
//
//   - PerFragmentCap: byte maksimal satu fragment di memori sebelum spill
//   - GlobalCap:      batas total byte di memori untuk semua fragment
//   - SpillThreshold: fragment selesai yang lebih kecil dari ini di-trim, bukan di-spill
//   - BlockSize:      ukuran blok scratch storage
//   - UseMmap:        gunakan memory-mapping untuk scratch file
//
// Semua bidang bersifat opsi; nilai 0 artinya gunakan default.
// Lihat DefaultOptions() untuk nilai bawaan.
type Options struct {
	PerFragmentCap int   // default 8 KiB
	GlobalCap      int64 // default 2 MiB
	SpillThreshold int   // default 1 KiB
	BlockSize      int   // default 8 KiB

	ScratchDir       string // direktori scratch file ("" = os.TempDir())
	UseMmap          bool   // map scratch file ke memori
	MmapRegionBlocks int    // jumlah blok per region mmap (dibulatkan ke kelipatan page)

	// Logger menerima event debug (spill, trim, scratch) dan ringkasan Close.
	Logger *zerolog.Logger

	// NewStore menggantikan scratch storage bawaan. Dipanggil paling banyak
	// sekali, saat fragment pertama harus di-spill.
	NewStore func(dir string, blockSize int) (BlockStore, error)
}

const (
	defaultPerFragmentCap   = 8 << 10
	defaultGlobalCap        = 2 << 20
	defaultSpillThreshold   = 1 << 10
	defaultBlockSize        = 8 << 10
	defaultMmapRegionBlocks = 256
)

// DefaultOptions mengembalikan konfigurasi default yang digunakan NewBuilder.
func DefaultOptions() Options {
	return Options{
		PerFragmentCap:   defaultPerFragmentCap,
		GlobalCap:        defaultGlobalCap,
		SpillThreshold:   defaultSpillThreshold,
		BlockSize:        defaultBlockSize,
		MmapRegionBlocks: defaultMmapRegionBlocks,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.PerFragmentCap == 0 {
		o.PerFragmentCap = d.PerFragmentCap
	}
	if o.GlobalCap == 0 {
		o.GlobalCap = d.GlobalCap
	}
	if o.SpillThreshold == 0 {
		o.SpillThreshold = d.SpillThreshold
	}
	if o.BlockSize == 0 {
		o.BlockSize = d.BlockSize
	}
	if o.MmapRegionBlocks == 0 {
		o.MmapRegionBlocks = d.MmapRegionBlocks
	}
	return o
}

// Validate memeriksa opsi setelah default diterapkan.
func (o Options) Validate() error {
	o = o.withDefaults()
	switch {
	case o.PerFragmentCap < 0:
		return fmt.Errorf("per-fragment cap must not be negative: %d", o.PerFragmentCap)
	case o.GlobalCap < 0:
		return fmt.Errorf("global cap must not be negative: %d", o.GlobalCap)
	case o.SpillThreshold < 0:
		return fmt.Errorf("spill threshold must not be negative: %d", o.SpillThreshold)
	case o.BlockSize < 0:
		return fmt.Errorf("block size must not be negative: %d", o.BlockSize)
	case o.MmapRegionBlocks < 0:
		return fmt.Errorf("mmap region blocks must not be negative: %d", o.MmapRegionBlocks)
	case int64(o.PerFragmentCap) > o.GlobalCap:
		return fmt.Errorf("per-fragment cap %d exceeds global cap %d", o.PerFragmentCap, o.GlobalCap)
	}
	return nil
}
