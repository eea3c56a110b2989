package ingestion

// Ticket identifies one read started against a Slot.
type Ticket uint64

// Slot holds at most one ingested file and arbitrates between overlapping
// reads: only the most recently begun ticket may write. Slot is not safe for
// concurrent use; it is owned by a single session event loop.
type Slot struct {
	latest  Ticket
	file    *File
	lastErr error
	closed  bool
}

// Begin starts a read and supersedes any read still in flight.
func (s *Slot) Begin() (Ticket, error) {
	if s.closed {
		return 0, ErrSlotClosed
	}
	s.latest++
	return s.latest, nil
}

// Complete stores f if t is still the latest ticket. It reports whether the
// file was accepted.
func (s *Slot) Complete(t Ticket, f *File) bool {
	if s.closed || t != s.latest {
		return false
	}
	s.file = f
	s.lastErr = nil
	return true
}

// Fail records err for the latest ticket without touching the stored file.
func (s *Slot) Fail(t Ticket, err error) bool {
	if s.closed || t != s.latest {
		return false
	}
	s.lastErr = err
	return true
}

// Clear drops the stored file and supersedes in-flight reads.
func (s *Slot) Clear() error {
	if s.closed {
		return ErrSlotClosed
	}
	s.latest++
	s.file = nil
	s.lastErr = nil
	return nil
}

// Close freezes the slot. The stored file is kept; later completions are
// discarded.
func (s *Slot) Close() { s.closed = true }

func (s *Slot) File() *File { return s.file }

func (s *Slot) Err() error { return s.lastErr }

func (s *Slot) Closed() bool { return s.closed }

func (s *Slot) Latest() Ticket { return s.latest }
