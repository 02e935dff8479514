package httpio

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Mode selects how the file segment of an OutputBuffer is emitted (spec.md
// §4.5).
type Mode int

const (
	ModeNone Mode = iota
	ModeMMAP
	ModeSendfile
)

// WriteResult is the outcome of one WriteTo call.
type WriteResult int

const (
	// WriteSuccess: every byte has been written.
	WriteSuccess WriteResult = iota
	// WriteContinue: a non-fatal short write; re-arm WRITE and retry on the
	// next readiness edge.
	WriteContinue
	// WriteError: a fatal write error (quiet on EPIPE/ECONNRESET).
	WriteError
)

var pageSize = os.Getpagesize()

// OutputBuffer is the two-segment gather vector described in spec.md §3:
// segment 0 is response headers (plus inline body when there is no file
// payload), segment 1 is the file payload, transferred via mmap+writev or
// sendfile. Exactly one of the mmap or sendfile resources is owned at a
// time, released on Reset.
type OutputBuffer struct {
	mode   Mode
	header []byte

	// mmap mode
	mmapRegion []byte // the full page-aligned kernel mapping, for munmap
	mmapView   []byte // the unaligned slice within mmapRegion holding [start,start+length)

	// sendfile mode
	file          *os.File
	fileOffset    int64
	fileRemaining int64

	bytesSent      int64
	bytesRemaining int64
	closeOnDone    bool
}

// SetInline installs an inline (no file) response: header already contains
// the whole serialized response.
func (o *OutputBuffer) SetInline(wire []byte, closeOnDone bool) {
	o.mode = ModeNone
	o.header = wire
	o.bytesSent = 0
	o.bytesRemaining = int64(len(wire))
	o.closeOnDone = closeOnDone
}

// SetMmap maps [fileOffset, fileOffset+fileLength) of the file at path
// read-only and installs it as segment 1, to be emitted via a two-iovec
// writev alongside header.
func (o *OutputBuffer) SetMmap(header []byte, path string, fileOffset, fileLength int64, closeOnDone bool) error {
	o.Reset()
	o.mode = ModeMMAP
	o.header = header
	o.closeOnDone = closeOnDone

	if fileLength == 0 {
		o.bytesRemaining = int64(len(header))
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	aligned := fileOffset &^ int64(pageSize-1)
	diff := fileOffset - aligned
	mapSize := diff + fileLength

	region, err := unix.Mmap(int(f.Fd()), aligned, int(mapSize), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	o.mmapRegion = region
	o.mmapView = region[diff : diff+fileLength]
	o.bytesRemaining = int64(len(header)) + fileLength
	return nil
}

// SetSendfile installs a virtual segment 1 (an open file descriptor,
// offset, and remaining length) emitted through sendfile(2) once the
// header has drained via plain write(2).
func (o *OutputBuffer) SetSendfile(header []byte, path string, fileOffset, fileLength int64, closeOnDone bool) error {
	o.Reset()
	o.mode = ModeSendfile
	o.header = header
	o.closeOnDone = closeOnDone
	o.bytesRemaining = int64(len(header)) + fileLength

	if fileLength == 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	o.file = f
	o.fileOffset = fileOffset
	o.fileRemaining = fileLength
	return nil
}

// WriteTo performs exactly one gathering syscall (mmap mode: one writev
// covering header+file; sendfile mode: one write while header remains,
// else one sendfile call) and interprets the result, per spec.md §4.3's
// "one syscall per event" rule.
func (o *OutputBuffer) WriteTo(fd int) (WriteResult, error) {
	switch o.mode {
	case ModeMMAP, ModeNone:
		return o.writeGather(fd)
	case ModeSendfile:
		return o.writeSendfile(fd)
	default:
		return WriteSuccess, nil
	}
}

func (o *OutputBuffer) writeGather(fd int) (WriteResult, error) {
	headerLen := int64(len(o.header))
	var iovs [][]byte
	if o.bytesSent < headerLen {
		iovs = append(iovs, o.header[o.bytesSent:])
		if len(o.mmapView) > 0 {
			iovs = append(iovs, o.mmapView)
		}
	} else if len(o.mmapView) > 0 {
		off := o.bytesSent - headerLen
		iovs = append(iovs, o.mmapView[off:])
	} else {
		return WriteSuccess, nil
	}

	n, err := unix.Writev(fd, iovs)
	if n > 0 {
		o.bytesSent += int64(n)
		o.bytesRemaining -= int64(n)
	}
	return classifyWriteErr(o, err)
}

func (o *OutputBuffer) writeSendfile(fd int) (WriteResult, error) {
	headerLen := int64(len(o.header))
	if o.bytesSent < headerLen {
		n, err := unix.Write(fd, o.header[o.bytesSent:])
		if n > 0 {
			o.bytesSent += int64(n)
			o.bytesRemaining -= int64(n)
		}
		return classifyWriteErr(o, err)
	}

	if o.fileRemaining == 0 {
		return WriteSuccess, nil
	}

	n, err := unix.Sendfile(fd, int(o.file.Fd()), &o.fileOffset, int(o.fileRemaining))
	if n > 0 {
		o.fileRemaining -= int64(n)
		o.bytesSent += int64(n)
		o.bytesRemaining -= int64(n)
	}
	return classifyWriteErr(o, err)
}

func classifyWriteErr(o *OutputBuffer, err error) (WriteResult, error) {
	if err == nil {
		if o.bytesRemaining == 0 {
			return WriteSuccess, nil
		}
		return WriteContinue, nil
	}
	if errors.Is(err, unix.EAGAIN) {
		return WriteContinue, nil
	}
	if errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) {
		return WriteError, err
	}
	return WriteError, err
}

// CloseOnDone reports whether the connection should close after a
// WriteSuccess (spec.md §3 "close_on_done").
func (o *OutputBuffer) CloseOnDone() bool { return o.closeOnDone }

// Mode reports which output path is installed, for metrics accounting.
func (o *OutputBuffer) Mode() Mode { return o.mode }

// BytesSent reports how many bytes this buffer has written so far.
func (o *OutputBuffer) BytesSent() int64 { return o.bytesSent }

// Reset releases any mmap region or open file descriptor and clears the
// buffer in place for reuse. Per spec.md §9 Open Question 2, the sendfile
// file descriptor is only released here, and WriteTo never calls Reset: a
// WriteContinue keeps the descriptor open. The connection calls Reset after
// WriteSuccess, after WriteError, and when it is closed.
func (o *OutputBuffer) Reset() {
	if o.mmapRegion != nil {
		unix.Munmap(o.mmapRegion)
		o.mmapRegion = nil
		o.mmapView = nil
	}
	if o.file != nil {
		o.file.Close()
		o.file = nil
	}
	o.mode = ModeNone
	o.header = nil
	o.fileOffset = 0
	o.fileRemaining = 0
	o.bytesSent = 0
	o.bytesRemaining = 0
	o.closeOnDone = false
}
