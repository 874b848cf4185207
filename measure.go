package outbuf

// LengthMeasurer wraps another OutputBuilder and counts the bytes written
// through it, independent of fragment identity.
type LengthMeasurer struct {
	inner OutputBuilder
	total int64
}

func NewLengthMeasurer(inner OutputBuilder) *LengthMeasurer {
	return &LengthMeasurer{inner: inner}
}

// Len returns the number of bytes written so far.
func (m *LengthMeasurer) Len() int64 { return m.total }

// Unwrap returns the wrapped builder.
func (m *LengthMeasurer) Unwrap() OutputBuilder { return m.inner }

func (m *LengthMeasurer) AddFragment() FragmentID { return m.inner.AddFragment() }

func (m *LengthMeasurer) InsertFragmentBefore(anchor FragmentID) FragmentID {
	return m.inner.InsertFragmentBefore(anchor)
}

func (m *LengthMeasurer) Write(id FragmentID, p []byte) error {
	if err := m.inner.Write(id, p); err != nil {
		return err
	}
	m.total += int64(len(p))
	return nil
}

func (m *LengthMeasurer) FinishFragment(id FragmentID) error { return m.inner.FinishFragment(id) }

func (m *LengthMeasurer) PositionInfo() map[FragmentID]int64 { return m.inner.PositionInfo() }

func (m *LengthMeasurer) SupportsPositionInfo() bool { return m.inner.SupportsPositionInfo() }

func (m *LengthMeasurer) Close() error { return m.inner.Close() }
