// Package httpio implements the connection-local input and output buffers
// described in spec.md §4.4/§4.5: a bounded input buffer fed by
// level-triggered or edge-triggered reads, and a two-segment gather-write
// output buffer driven by mmap or sendfile. Grounded on the raw epoll/read
// loop shape in
// other_examples/d6f88aa8_anamulislamshamim-go_raw_epoll_http_server__main.go.go
// and other_examples/9c88e704_socket515-gaio__watcher.go.go, reimplemented
// against golang.org/x/sys/unix instead of the stdlib syscall package the
// demo uses.
package httpio

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrBufferOverflow is returned by ReadFrom when the buffer is full and
// cannot accept more bytes (spec.md §4.4).
var ErrBufferOverflow = errors.New("httpio: input buffer overflow")

// ErrPeerClosed is returned when recv observes an orderly peer shutdown
// (0-byte read).
var ErrPeerClosed = errors.New("httpio: peer closed connection")

// ErrConnReset is returned on ECONNRESET, a quiet terminal condition
// (spec.md §7 "silent terminal close").
var ErrConnReset = errors.New("httpio: connection reset by peer")

// InputBuffer is a fixed-capacity byte region plus a write index. 0 <=
// writeIdx <= cap(buf) always holds (spec.md §3 Input buffer invariant).
type InputBuffer struct {
	buf     []byte
	writeIdx int
}

// NewInputBuffer returns an empty buffer of the given fixed capacity.
func NewInputBuffer(capacity int) *InputBuffer {
	return &InputBuffer{buf: make([]byte, capacity)}
}

// ReadableLen returns the number of unconsumed bytes.
func (b *InputBuffer) ReadableLen() int { return b.writeIdx }

// WritableLen returns the free space remaining.
func (b *InputBuffer) WritableLen() int { return len(b.buf) - b.writeIdx }

// Readable returns the unconsumed prefix. The slice is only valid until the
// next mutating call.
func (b *InputBuffer) Readable() []byte { return b.buf[:b.writeIdx] }

// AdvanceWrite records that n more bytes were written into the region
// previously returned by writable space.
func (b *InputBuffer) AdvanceWrite(n int) { b.writeIdx += n }

// Retrieve drops n bytes from the front and compacts with a single move,
// per spec.md §4.4.
func (b *InputBuffer) Retrieve(n int) {
	if n <= 0 {
		return
	}
	if n >= b.writeIdx {
		b.writeIdx = 0
		return
	}
	copy(b.buf, b.buf[n:b.writeIdx])
	b.writeIdx -= n
}

// Clear empties the buffer in place, for connection reuse on keep-alive.
func (b *InputBuffer) Clear() {
	b.writeIdx = 0
}

// ReadResult is the outcome of one ReadFrom call.
type ReadResult int

const (
	// ReadOK: zero or more bytes were appended; caller should feed the
	// parser and, if it wants more, re-arm READ interest.
	ReadOK ReadResult = iota
	ReadPeerClosed
	ReadReset
	ReadOverflow
	ReadError
)

// ReadFrom drains fd into the buffer's free region.
//
// Level-triggered: one recv call; EAGAIN/EWOULDBLOCK or a positive read
// both count as ReadOK.
//
// Edge-triggered: loop recv until EAGAIN/EWOULDBLOCK, since a readiness
// edge is only delivered once per state change (spec.md §4.4).
func (b *InputBuffer) ReadFrom(fd int, edgeTriggered bool) (ReadResult, error) {
	for {
		if b.WritableLen() == 0 {
			return ReadOverflow, ErrBufferOverflow
		}

		n, err := unix.Read(fd, b.buf[b.writeIdx:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				return ReadOK, nil
			}
			if err == unix.ECONNRESET {
				return ReadReset, ErrConnReset
			}
			return ReadError, err
		}
		if n == 0 {
			return ReadPeerClosed, ErrPeerClosed
		}
		b.AdvanceWrite(n)

		if !edgeTriggered {
			return ReadOK, nil
		}
		// Edge-triggered: keep draining until EAGAIN.
	}
}
