package logging

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/sb2root/sbcore/internal/errx"
)

// JSONLSink appends one JSON object per line to w. An external
// post-processor reading this stream greps Summary for the stable
// "pass:"/"mapped:"/"disabled:" lines without needing to parse anything
// else in the record.
type JSONLSink struct {
	mu sync.Mutex
	w  io.WriteCloser
}

func NewJSONLSink(w io.WriteCloser) *JSONLSink {
	return &JSONLSink{w: w}
}

func (s *JSONLSink) Write(event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(event)
	if err != nil {
		return errx.Wrap(ErrMarshalEvent, err)
	}
	b = append(b, '\n')
	if _, err := s.w.Write(b); err != nil {
		return errx.Wrap(ErrWriteEvent, err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Close(); err != nil {
		return errx.Wrap(ErrCloseWriter, err)
	}
	return nil
}
