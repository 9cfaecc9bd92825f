package blockpress

import "fmt"

// ReadBuffer is a read-only view over a caller-owned byte slice.  Step
// calls consume from the front and advance the cursor in place, so after
// a call the view covers only the unconsumed remainder.
type ReadBuffer struct {
	buf []byte
	off int
}

// NewReadBuffer returns a view over p.  The view borrows p; the caller
// must not mutate p while the view is in use.
func NewReadBuffer(p []byte) *ReadBuffer {
	return &ReadBuffer{buf: p}
}

// Len returns the number of unconsumed bytes.
func (b *ReadBuffer) Len() int {
	return len(b.buf) - b.off
}

// Bytes returns the unconsumed remainder of the view.
func (b *ReadBuffer) Bytes() []byte {
	return b.buf[b.off:]
}

// Consumed returns the number of bytes consumed since the view was created.
func (b *ReadBuffer) Consumed() int {
	return b.off
}

func (b *ReadBuffer) advance(n int) {
	if n < 0 || n > b.Len() {
		panic(fmt.Sprintf("read cursor advance %d out of range %d", n, b.Len()))
	}
	b.off += n
}

// WriteBuffer is a write-only view over a caller-owned byte slice.  Step
// calls fill it from the front and advance the cursor in place, so after
// a call the unfilled remainder is Free and the filled prefix is Bytes.
type WriteBuffer struct {
	buf []byte
	off int
}

// NewWriteBuffer returns a view over p.
func NewWriteBuffer(p []byte) *WriteBuffer {
	return &WriteBuffer{buf: p}
}

// Len returns the number of bytes written into the view so far.
func (b *WriteBuffer) Len() int {
	return b.off
}

// Bytes returns the written prefix of the view.
func (b *WriteBuffer) Bytes() []byte {
	return b.buf[:b.off]
}

// Free returns the remaining capacity of the view.
func (b *WriteBuffer) Free() int {
	return len(b.buf) - b.off
}

func (b *WriteBuffer) write(p []byte) int {
	if len(p) > b.Free() {
		panic(fmt.Sprintf("write of %d beyond remaining capacity %d", len(p), b.Free()))
	}
	n := copy(b.buf[b.off:], p)
	b.off += n
	return n
}
