package utils

import (
	"bytes"
	"io"
	"strconv"
	"sync"
	"time"
)

// StampWriter prefixes every complete line with a sequence number and a timestamp
// before passing it to the target. A trailing partial line is held until the next
// newline or Close.
type StampWriter struct {
	mu      sync.Mutex
	target  io.Writer
	seq     uint64
	pending bytes.Buffer
	now     func() time.Time
}

func NewStampWriter(target io.Writer) *StampWriter {
	return &StampWriter{target: target, now: time.Now}
}

// Write always reports len(p) on success so callers never see a short write.
func (w *StampWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending.Write(p)
	for {
		line, err := w.pending.ReadBytes('\n')
		if err != nil {
			// incomplete line, put it back
			w.pending.Write(bytes.Clone(line))
			break
		}
		if err := w.stamp(bytes.TrimRight(line, "\r\n")); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *StampWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending.Len() == 0 {
		return nil
	}
	rest := bytes.Clone(w.pending.Bytes())
	w.pending.Reset()
	return w.stamp(rest)
}

func (w *StampWriter) stamp(line []byte) error {
	w.seq++
	buf := make([]byte, 0, len(line)+64)
	buf = append(buf, "line="...)
	buf = strconv.AppendUint(buf, w.seq, 10)
	buf = append(buf, " time="...)
	buf = w.now().AppendFormat(buf, time.RFC3339)
	buf = append(buf, ' ')
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_, err := w.target.Write(buf)
	return err
}
