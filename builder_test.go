package outbuf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// helper to create a builder whose scratch lives in a temporary directory
func newTestBuilder(t *testing.T, sink *bytes.Buffer, opts Options) (*Builder, string) {
	t.Helper()
	dir := t.TempDir()
	opts.ScratchDir = dir
	b, err := NewBuilderWithOptions(sink, opts)
	require.NoError(t, err)
	return b, dir
}

func smallOptions() Options {
	opts := DefaultOptions()
	opts.PerFragmentCap = 64
	opts.GlobalCap = 256
	opts.SpillThreshold = 16
	opts.BlockSize = 32
	return opts
}

func requireViolation(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a contract violation")
		err, ok := r.(error)
		require.True(t, ok, "panic value is %T, not an error", r)
		var ce *ContractError
		require.ErrorAs(t, err, &ce)
		require.ErrorIs(t, err, target)
	}()
	fn()
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "scratch storage was not released")
}

func TestInsertBeforeScenario(t *testing.T) {
	out := new(bytes.Buffer)
	b, dir := newTestBuilder(t, out, DefaultOptions())

	a := b.AddFragment()
	require.Equal(t, FragmentID(0), a)
	require.NoError(t, b.Write(a, []byte("HELLO")))

	w := b.InsertFragmentBefore(a)
	require.Equal(t, FragmentID(1), w)
	require.NoError(t, b.Write(w, []byte("WORLD")))

	pos := b.PositionInfo()
	require.Equal(t, map[FragmentID]int64{w: 0, a: 5}, pos)
	require.Equal(t, int64(5), b.Position(a))

	require.NoError(t, b.Close())
	require.Equal(t, "WORLDHELLO", out.String())
	requireEmptyDir(t, dir)
}

func TestSpillAfterCapExceeded(t *testing.T) {
	opts := DefaultOptions()
	opts.PerFragmentCap = 4
	out := new(bytes.Buffer)
	b, _ := newTestBuilder(t, out, opts)

	id := b.AddFragment()
	require.NoError(t, b.Write(id, []byte("01234")))
	require.Equal(t, spilled, b.frags[id].kind)
	require.Equal(t, 1, b.GetStats().Spilled)
	require.NoError(t, b.Write(id, []byte("56789")))
	require.Equal(t, int64(10), b.Len(id))

	require.NoError(t, b.Close())
	require.Equal(t, "0123456789", out.String())
}

func TestRandomOrderAgainstModel(t *testing.T) {
	for _, mmap := range []bool{false, true} {
		t.Run(fmt.Sprintf("mmap=%v", mmap), func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			opts := smallOptions()
			opts.UseMmap = mmap
			out := new(bytes.Buffer)
			b, dir := newTestBuilder(t, out, opts)

			var order []FragmentID
			content := map[FragmentID][]byte{}
			finished := map[FragmentID]bool{}

			order = append(order, b.AddFragment())
			for i := 0; i < 2000; i++ {
				switch op := rng.Intn(10); {
				case op == 0:
					order = append(order, b.AddFragment())
				case op == 1:
					at := rng.Intn(len(order))
					id := b.InsertFragmentBefore(order[at])
					order = append(order[:at], append([]FragmentID{id}, order[at:]...)...)
				case op == 2:
					id := order[rng.Intn(len(order))]
					require.NoError(t, b.FinishFragment(id))
					finished[id] = true
				default:
					id := order[rng.Intn(len(order))]
					if finished[id] {
						continue
					}
					p := make([]byte, rng.Intn(100))
					rng.Read(p)
					require.NoError(t, b.Write(id, p))
					content[id] = append(content[id], p...)
				}
				require.LessOrEqual(t, b.mem.inUse, opts.GlobalCap)
			}

			require.Equal(t, order, b.seq.order())

			var want []byte
			wantPos := map[FragmentID]int64{}
			for _, id := range order {
				wantPos[id] = int64(len(want))
				want = append(want, content[id]...)
			}
			require.Equal(t, wantPos, b.PositionInfo())
			require.NotZero(t, b.GetStats().Spilled)

			require.NoError(t, b.Close())
			require.True(t, bytes.Equal(want, out.Bytes()), "assembled output differs from model")
			requireEmptyDir(t, dir)
		})
	}
}

func TestSpillTransparency(t *testing.T) {
	for _, size := range []int{0, 1, 31, 32, 33, 63, 64, 65, 1000, 4096} {
		out := new(bytes.Buffer)
		b, _ := newTestBuilder(t, out, smallOptions())

		payload := make([]byte, size)
		rand.Read(payload)
		id := b.AddFragment()
		for p := payload; len(p) > 0; {
			n := 7
			if n > len(p) {
				n = len(p)
			}
			require.NoError(t, b.Write(id, p[:n]))
			p = p[n:]
		}
		require.NoError(t, b.FinishFragment(id))
		require.NoError(t, b.Close())
		require.True(t, bytes.Equal(payload, out.Bytes()), "size %d", size)
	}
}

func TestMemoryBudget(t *testing.T) {
	opts := smallOptions()
	opts.GlobalCap = 128
	b, _ := newTestBuilder(t, new(bytes.Buffer), opts)

	f1, f2, f3 := b.AddFragment(), b.AddFragment(), b.AddFragment()
	require.NoError(t, b.Write(f1, []byte("0123456789")))
	require.NoError(t, b.Write(f2, []byte("0123456789")))
	require.Equal(t, int64(128), b.mem.inUse)

	// The budget is exhausted, so the third fragment goes straight to scratch.
	require.NoError(t, b.Write(f3, []byte("abc")))
	require.Equal(t, inMemory, b.frags[f1].kind)
	require.Equal(t, inMemory, b.frags[f2].kind)
	require.Equal(t, spilled, b.frags[f3].kind)
	require.LessOrEqual(t, b.GetStats().PeakMemory, opts.GlobalCap)
	require.NoError(t, b.Close())
}

func TestFinishTrimsOrSpills(t *testing.T) {
	b, _ := newTestBuilder(t, new(bytes.Buffer), smallOptions())

	small := b.AddFragment()
	require.NoError(t, b.Write(small, []byte("tiny")))
	large := b.AddFragment()
	require.NoError(t, b.Write(large, bytes.Repeat([]byte{'x'}, 40)))
	empty := b.AddFragment()

	require.NoError(t, b.FinishFragment(small))
	require.NoError(t, b.FinishFragment(large))
	require.NoError(t, b.FinishFragment(empty))

	require.Equal(t, inMemory, b.frags[small].kind)
	require.Equal(t, 4, cap(b.frags[small].buf))
	require.Equal(t, spilled, b.frags[large].kind)
	require.Equal(t, inMemory, b.frags[empty].kind)
	require.Equal(t, int64(4), b.mem.inUse)
	require.NoError(t, b.Close())
}

func TestFinishIsIdempotent(t *testing.T) {
	once := new(bytes.Buffer)
	twice := new(bytes.Buffer)
	for i, out := range []*bytes.Buffer{once, twice} {
		b, _ := newTestBuilder(t, out, smallOptions())
		id := b.AddFragment()
		require.NoError(t, b.Write(id, []byte("finish me")))
		for j := 0; j <= i; j++ {
			require.NoError(t, b.FinishFragment(id))
		}
		require.NoError(t, b.Close())
	}
	require.Equal(t, once.String(), twice.String())
}

func TestContractViolations(t *testing.T) {
	b, _ := newTestBuilder(t, new(bytes.Buffer), DefaultOptions())
	id := b.AddFragment()
	require.NoError(t, b.FinishFragment(id))

	requireViolation(t, ErrUnknownFragment, func() { _ = b.Write(7, []byte("x")) })
	requireViolation(t, ErrUnknownFragment, func() { b.InsertFragmentBefore(7) })
	requireViolation(t, ErrUnknownFragment, func() { _ = b.FinishFragment(-1) })
	requireViolation(t, ErrFragmentFinished, func() { _ = b.Write(id, []byte("x")) })

	// Inserting before a finished fragment is fine.
	b.InsertFragmentBefore(id)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "second close is a no-op")
	requireViolation(t, ErrClosed, func() { b.AddFragment() })
	requireViolation(t, ErrClosed, func() { _ = b.Write(id, nil) })
	requireViolation(t, ErrClosed, func() { b.PositionInfo() })
}

func TestScratchCreatedLazily(t *testing.T) {
	b, dir := newTestBuilder(t, new(bytes.Buffer), smallOptions())
	id := b.AddFragment()
	require.NoError(t, b.Write(id, []byte("fits in memory")))
	requireEmptyDir(t, dir)

	require.NoError(t, b.Write(id, bytes.Repeat([]byte{'y'}, 100)))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, b.Close())
	requireEmptyDir(t, dir)
}

type failingWriter struct {
	limit int
	n     int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > w.limit {
		n := w.limit - w.n
		w.n = w.limit
		return n, errors.New("disk full")
	}
	w.n += len(p)
	return len(p), nil
}

func TestCloseReleasesScratchOnSinkError(t *testing.T) {
	dir := t.TempDir()
	opts := smallOptions()
	opts.ScratchDir = dir
	sink := &failingWriter{limit: 50}
	b, err := NewBuilderWithOptions(sink, opts)
	require.NoError(t, err)

	id := b.AddFragment()
	require.NoError(t, b.Write(id, bytes.Repeat([]byte{'z'}, 200)))

	err = b.Close()
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
	requireEmptyDir(t, dir)
	require.NoError(t, b.Close())
}

// corruptingStore flips the first byte of every block read back.
type corruptingStore struct {
	BlockStore
}

func (s corruptingStore) ReadBlock(index int64, buf []byte) error {
	if err := s.BlockStore.ReadBlock(index, buf); err != nil {
		return err
	}
	buf[0] ^= 0xFF
	return nil
}

func TestCorruptBlockDetected(t *testing.T) {
	opts := smallOptions()
	opts.NewStore = func(dir string, blockSize int) (BlockStore, error) {
		s, err := newFileStore(dir, blockSize)
		if err != nil {
			return nil, err
		}
		return corruptingStore{s}, nil
	}
	b, dir := newTestBuilder(t, new(bytes.Buffer), opts)
	id := b.AddFragment()
	require.NoError(t, b.Write(id, bytes.Repeat([]byte{'c'}, 100)))

	err := b.Close()
	require.ErrorIs(t, err, ErrCorruptBlock)
	requireEmptyDir(t, dir)
}

// flakyStore fails every write to a block at or past failFrom while failing
// is set.
type flakyStore struct {
	BlockStore
	failFrom int64
	failing  *bool
}

var errTransient = errors.New("transient EIO")

func (s flakyStore) WriteBlock(index int64, off int, p []byte) error {
	if *s.failing && index >= s.failFrom {
		return errTransient
	}
	return s.BlockStore.WriteBlock(index, off, p)
}

func TestSpilledWriteRetryAfterFailure(t *testing.T) {
	failing := false
	opts := smallOptions()
	opts.NewStore = func(dir string, blockSize int) (BlockStore, error) {
		s, err := newFileStore(dir, blockSize)
		if err != nil {
			return nil, err
		}
		return flakyStore{BlockStore: s, failFrom: 3, failing: &failing}, nil
	}
	var out bytes.Buffer
	b, dir := newTestBuilder(t, &out, opts)

	id := b.AddFragment()
	first := bytes.Repeat([]byte{'a'}, 70) // blocks 0..2, 6 bytes in block 2
	require.NoError(t, b.Write(id, first))

	// fills the tail of block 2, then fails on block 3
	more := bytes.Repeat([]byte{'c'}, 40)
	failing = true
	require.ErrorIs(t, b.Write(id, more), errTransient)
	require.Equal(t, int64(70), b.Len(id))

	failing = false
	require.NoError(t, b.Write(id, more))
	require.NoError(t, b.FinishFragment(id))
	require.NoError(t, b.Close())

	require.Equal(t, string(first)+string(more), out.String())
	requireEmptyDir(t, dir)
}

func TestBlockPoolSharedBySize(t *testing.T) {
	require.Same(t, blockPool(32), blockPool(32))
	require.NotSame(t, blockPool(32), blockPool(64))

	var out bytes.Buffer
	b, _ := newTestBuilder(t, &out, smallOptions())
	buf := b.getBufFromPool()
	require.Len(t, *buf, 32)
	b.returnBufToPool(buf)
	require.NoError(t, b.Close())
}

func TestFragmentWriterAndFlush(t *testing.T) {
	var out bytes.Buffer
	sink := bufio.NewWriter(&out)
	b, err := NewBuilderWithOptions(sink, Options{ScratchDir: t.TempDir()})
	require.NoError(t, err)

	body := b.AddFragment()
	fmt.Fprintf(b.Fragment(body), "BT /F1 %d Tf ET", 12)
	hdr := b.InsertFragmentBefore(body)
	fmt.Fprintf(b.Fragment(hdr), "<< /Length %d >>\n", b.Len(body))

	require.NoError(t, b.Close())
	require.Equal(t, "<< /Length 15 >>\nBT /F1 12 Tf ET", out.String())
}

func TestStatsAndMetrics(t *testing.T) {
	spillsBefore := testutil.ToFloat64(mSpills)
	fragsBefore := testutil.ToFloat64(mFragments)

	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	opts := smallOptions()
	opts.Logger = &logger
	b, _ := newTestBuilder(t, new(bytes.Buffer), opts)

	id := b.AddFragment()
	require.NoError(t, b.Write(id, bytes.Repeat([]byte{'m'}, 100)))
	st := b.GetStats()
	require.Equal(t, 1, st.Fragments)
	require.Equal(t, 1, st.Spilled)
	require.Equal(t, int64(4), st.Blocks)
	require.Equal(t, int64(100), st.BytesWritten)

	require.Equal(t, spillsBefore+1, testutil.ToFloat64(mSpills))
	require.Equal(t, fragsBefore+1, testutil.ToFloat64(mFragments))

	require.NoError(t, b.Close())
	require.Contains(t, logs.String(), "Fragment spilled")
	require.Contains(t, logs.String(), "Output assembled")
}
