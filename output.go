package outbuf

// FragmentID identifies a fragment within one builder. IDs are assigned
// sequentially from 0 and are never reused.
type FragmentID int

// noFragment terminates the sequencer links.
const noFragment FragmentID = -1

// OutputBuilder is implemented by Builder, the degenerate builders, and the
// observing decorators.
//
// PositionInfo is only accurate for a fragment once no further
// InsertFragmentBefore call will target an anchor at or before it. This is a
// caller discipline and is not checked.
type OutputBuilder interface {
	AddFragment() FragmentID
	InsertFragmentBefore(anchor FragmentID) FragmentID
	Write(id FragmentID, p []byte) error
	FinishFragment(id FragmentID) error
	PositionInfo() map[FragmentID]int64
	SupportsPositionInfo() bool
	Close() error
}

var (
	_ OutputBuilder = (*Builder)(nil)
	_ OutputBuilder = (*Discard)(nil)
	_ OutputBuilder = (*PassThrough)(nil)
	_ OutputBuilder = (*PositionTracker)(nil)
	_ OutputBuilder = (*LengthMeasurer)(nil)
)

// flusher is satisfied by bufio.Writer and similar sinks.
type flusher interface {
	Flush() error
}
