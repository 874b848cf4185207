package outbuf

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// fileOptions captures the subset of Options that can be set from a file.
// Sizes accept plain integers or human strings such as "8 KiB" or "2MiB".
type fileOptions struct {
	PerFragmentCap   byteSize `json:"per-fragment-cap" toml:"per-fragment-cap" yaml:"per-fragment-cap"`
	GlobalCap        byteSize `json:"global-cap" toml:"global-cap" yaml:"global-cap"`
	SpillThreshold   byteSize `json:"spill-threshold" toml:"spill-threshold" yaml:"spill-threshold"`
	BlockSize        byteSize `json:"block-size" toml:"block-size" yaml:"block-size"`
	ScratchDir       string   `json:"scratch-dir" toml:"scratch-dir" yaml:"scratch-dir"`
	UseMmap          bool     `json:"use-mmap" toml:"use-mmap" yaml:"use-mmap"`
	MmapRegionBlocks int      `json:"mmap-region-blocks" toml:"mmap-region-blocks" yaml:"mmap-region-blocks"`
}

type byteSize int64

func (s *byteSize) UnmarshalText(b []byte) error {
	v, err := humanize.ParseBytes(string(b))
	if err != nil {
		return fmt.Errorf("parse size %q: %w", b, err)
	}
	*s = byteSize(v)
	return nil
}

// UnmarshalJSON accepts both numbers and strings.
func (s *byteSize) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case float64:
		*s = byteSize(v)
		return nil
	case string:
		return s.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("invalid size %s", b)
	}
}

func (f fileOptions) apply(opts *Options) {
	if f.PerFragmentCap != 0 {
		opts.PerFragmentCap = int(f.PerFragmentCap)
	}
	if f.GlobalCap != 0 {
		opts.GlobalCap = int64(f.GlobalCap)
	}
	if f.SpillThreshold != 0 {
		opts.SpillThreshold = int(f.SpillThreshold)
	}
	if f.BlockSize != 0 {
		opts.BlockSize = int(f.BlockSize)
	}
	if f.ScratchDir != "" {
		opts.ScratchDir = f.ScratchDir
	}
	if f.UseMmap {
		opts.UseMmap = true
	}
	if f.MmapRegionBlocks != 0 {
		opts.MmapRegionBlocks = f.MmapRegionBlocks
	}
}

// LoadOptions membaca opsi dari file .toml, .yaml/.yml, atau .json. Field yang
// tidak ada di file memakai DefaultOptions().
func LoadOptions(path string) (Options, error) {
	return LoadOptionsFS(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// LoadOptionsFS is LoadOptions over an fs.FS.
func LoadOptionsFS(fsys fs.FS, file string) (Options, error) {
	var format func([]byte, any) error
	switch s := filepath.Ext(file); s {
	case ".toml", ".tml":
		format = toml.Unmarshal
	case ".yaml", ".yml":
		format = yaml.Unmarshal
	case ".json":
		format = json.Unmarshal
	default:
		return Options{}, fmt.Errorf("unknown options file type %q", s)
	}

	f, err := fsys.Open(file)
	if err != nil {
		return Options{}, fmt.Errorf("open options file: %w", err)
	}
	defer func() { _ = f.Close() }()

	b, err := io.ReadAll(f)
	if err != nil {
		return Options{}, fmt.Errorf("read options file: %w", err)
	}

	var fo fileOptions
	if err := format(b, &fo); err != nil {
		return Options{}, fmt.Errorf("decode options file %s: %w", file, err)
	}

	opts := DefaultOptions()
	fo.apply(&opts)
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
