package builder

import "io"

// HitSource is a sequential reader over the time-sorted hit store.
// Next returns io.EOF at the end of the stream.
type HitSource interface {
	Next() (Hit, error)
}

// Counter is implemented by sources that know their total entry count,
// enabling percent-complete progress reporting.
type Counter interface {
	Count() (int64, error)
}

// SliceSource serves hits from memory. Used in tests and by the replay path.
type SliceSource struct {
	hits []Hit
	pos  int
}

func NewSliceSource(hits []Hit) *SliceSource {
	return &SliceSource{hits: hits}
}

func (s *SliceSource) Next() (Hit, error) {
	if s.pos >= len(s.hits) {
		return Hit{}, io.EOF
	}
	h := s.hits[s.pos]
	s.pos++
	return h, nil
}

func (s *SliceSource) Count() (int64, error) {
	return int64(len(s.hits)), nil
}
