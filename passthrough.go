package outbuf

import (
	"fmt"
	"io"
)

// PassThrough writes every Write straight to the sink, in call order. It only
// keeps fragment ids and finished flags, so it cannot reorder anything: the
// caller must issue writes in final output order. It reports no positions;
// wrap it in a PositionTracker for that.
type PassThrough struct {
	sink     io.Writer
	finished []bool
	closed   bool
}

func NewPassThrough(sink io.Writer) *PassThrough {
	return &PassThrough{sink: sink}
}

func (p *PassThrough) check(op string, id FragmentID) {
	if p.closed {
		violation(op, id, ErrClosed)
	}
	if id < 0 || int(id) >= len(p.finished) {
		violation(op, id, ErrUnknownFragment)
	}
}

func (p *PassThrough) AddFragment() FragmentID {
	if p.closed {
		violation("add", noFragment, ErrClosed)
	}
	p.finished = append(p.finished, false)
	return FragmentID(len(p.finished) - 1)
}

func (p *PassThrough) InsertFragmentBefore(anchor FragmentID) FragmentID {
	p.check("insert before", anchor)
	p.finished = append(p.finished, false)
	return FragmentID(len(p.finished) - 1)
}

func (p *PassThrough) Write(id FragmentID, b []byte) error {
	p.check("write", id)
	if p.finished[id] {
		violation("write", id, ErrFragmentFinished)
	}
	if _, err := p.sink.Write(b); err != nil {
		return fmt.Errorf("write fragment %d: %w", id, err)
	}
	return nil
}

func (p *PassThrough) FinishFragment(id FragmentID) error {
	p.check("finish", id)
	p.finished[id] = true
	return nil
}

// PositionInfo always returns an empty map.
func (p *PassThrough) PositionInfo() map[FragmentID]int64 {
	return map[FragmentID]int64{}
}

func (p *PassThrough) SupportsPositionInfo() bool { return false }

// Close flushes the sink if it has Flush() error. A second Close is a no-op.
func (p *PassThrough) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if f, ok := p.sink.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush sink: %w", err)
		}
	}
	return nil
}
