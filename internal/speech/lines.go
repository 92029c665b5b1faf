package speech

import "bytes"

// lineWriter splits a byte stream into newline-terminated lines.
type lineWriter struct {
	buf    []byte
	handle func([]byte)
}

func newLineWriter(handle func([]byte)) *lineWriter {
	return &lineWriter{handle: handle}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		w.handle(w.buf[:idx])
		w.buf = w.buf[idx+1:]
	}
	return len(p), nil
}

// Flush delivers a trailing line without a newline.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.handle(w.buf)
		w.buf = nil
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	data  []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = append([]byte(nil), b.data[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
