package reactor

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/badu/webserver/internal/httpio"
	"github.com/badu/webserver/internal/httpmsg"
	"github.com/badu/webserver/internal/httpparse"
	"github.com/badu/webserver/internal/taskpool"
)

const defaultInputCapacity = 64 * 1024

// Handler produces a response for a fully-parsed request. It is the
// connection's only hook into application logic (the SubReactor passes the
// router's Dispatch, which runs inline or, when a task pool is configured,
// inside the job handed to the pool).
type Handler func(req *httpmsg.Request, resp *httpmsg.Response)

// Connection is the per-fd state machine of spec.md §4.3. Exactly one
// SubReactor owns it at a time and it is never touched concurrently
// (spec.md §3 Connection invariant).
type Connection struct {
	fd            int
	remoteAddr    string
	edgeTriggered bool
	useSendfile   bool

	input  *httpio.InputBuffer
	output httpio.OutputBuffer
	parser *httpparse.Parser
	req    *httpmsg.Request
	resp   *httpmsg.Response

	closing bool
}

// NewConnection wraps an already-accepted, already-nonblocking fd.
func NewConnection(fd int, remoteAddr string, edgeTriggered, useSendfile bool) *Connection {
	return &Connection{
		fd:            fd,
		remoteAddr:    remoteAddr,
		edgeTriggered: edgeTriggered,
		useSendfile:   useSendfile,
		input:         httpio.NewInputBuffer(defaultInputCapacity),
		parser:        httpparse.NewParser(),
		req:           httpmsg.NewRequest(),
		resp:          httpmsg.NewResponse(),
	}
}

// FD returns the underlying file descriptor.
func (c *Connection) FD() int { return c.fd }

// RemoteAddr returns the peer address captured at accept time.
func (c *Connection) RemoteAddr() string { return c.remoteAddr }

// PhaseOutcome is what a read/write phase tells the SubReactor to do next.
type PhaseOutcome struct {
	Rearm Interest // InterestNone means the connection is terminal; do not re-arm
	Quiet bool     // true if Err should not be logged at error level (EPIPE/ECONNRESET)
	Err   error

	// Set on a successful write completion, for metrics accounting.
	WriteDone bool
	OutMode   httpio.Mode
	BytesSent int64
	RequestOK bool // set on a successfully dispatched read phase
}

// ReadPhase drives spec.md §4.3's read phase: drain the socket, feed the
// parser, and on a complete (or malformed) request call process to produce
// a response, then install it into the output buffer.
func (c *Connection) ReadPhase(process Handler) PhaseOutcome {
	result, err := c.input.ReadFrom(c.fd, c.edgeTriggered)
	switch result {
	case httpio.ReadOK:
		// fall through to parse
	case httpio.ReadPeerClosed:
		return PhaseOutcome{Rearm: InterestNone, Quiet: true, Err: err}
	case httpio.ReadReset:
		return PhaseOutcome{Rearm: InterestNone, Quiet: true, Err: err}
	case httpio.ReadOverflow:
		return PhaseOutcome{Rearm: InterestNone, Err: err}
	default: // httpio.ReadError
		return PhaseOutcome{Rearm: InterestNone, Err: err}
	}

	data := c.input.Readable()
	pr, consumed := c.parser.Parse(data, c.req)

	switch pr {
	case httpparse.Incomplete:
		return PhaseOutcome{Rearm: InterestRead}
	case httpparse.BadRequest:
		c.input.Clear()
	case httpparse.OK:
		c.input.Retrieve(consumed)
	}

	return c.finishRequest(pr, process)
}

// ReadPhaseAsync behaves like ReadPhase up through parsing, but when pool
// is non-nil and a request was fully parsed (or rejected as malformed) it
// offloads finishRequest to the pool and reports async=true instead of
// returning a usable outcome. onDone runs on the pool's worker goroutine
// once finishRequest completes; the SubReactor must not touch this
// connection's fd again until that callback fires (spec.md §4.10: "must
// not directly mutate epoll state").
func (c *Connection) ReadPhaseAsync(pool *taskpool.Pool, process Handler, onDone func(PhaseOutcome)) (outcome PhaseOutcome, async bool) {
	if pool == nil {
		return c.ReadPhase(process), false
	}

	result, err := c.input.ReadFrom(c.fd, c.edgeTriggered)
	switch result {
	case httpio.ReadOK:
		// fall through to parse
	case httpio.ReadPeerClosed, httpio.ReadReset:
		return PhaseOutcome{Rearm: InterestNone, Quiet: true, Err: err}, false
	default:
		return PhaseOutcome{Rearm: InterestNone, Err: err}, false
	}

	data := c.input.Readable()
	pr, consumed := c.parser.Parse(data, c.req)

	switch pr {
	case httpparse.Incomplete:
		return PhaseOutcome{Rearm: InterestRead}, false
	case httpparse.BadRequest:
		c.input.Clear()
	case httpparse.OK:
		c.input.Retrieve(consumed)
	}

	pool.Submit(func() {
		onDone(c.finishRequest(pr, process))
	})
	return PhaseOutcome{}, true
}

// finishRequest runs the part of the read phase that may be offloaded:
// dispatch (for a well-formed request) or error-page population (for a
// malformed one), followed by Finalize and installing the response into
// the output buffer.
func (c *Connection) finishRequest(pr httpparse.Result, process Handler) PhaseOutcome {
	var requestOK bool
	if pr == httpparse.BadRequest {
		c.req.KeepAlive = false
		c.resp.SetErrorPage(httpmsg.StatusBadRequest)
	} else {
		c.resp.SetKeepAlive(c.req.KeepAlive)
		process(c.req, c.resp)
		if !c.resp.Handled {
			c.resp.SetErrorPage(httpmsg.StatusNotFound)
		}
		requestOK = true
	}

	if err := c.resp.Finalize(); err != nil {
		return PhaseOutcome{Rearm: InterestNone, Err: err}
	}
	if err := c.installResponse(); err != nil {
		return PhaseOutcome{Rearm: InterestNone, Err: err}
	}
	return PhaseOutcome{Rearm: InterestWrite, RequestOK: requestOK}
}

func (c *Connection) installResponse() error {
	closeOnDone := c.resp.CloseOnDone
	if !c.resp.HasFile() {
		c.output.SetInline(c.resp.Serialized, closeOnDone)
		return nil
	}
	if c.useSendfile {
		return c.output.SetSendfile(c.resp.Serialized, c.resp.FilePath, c.resp.FileStart, c.resp.FileLength, closeOnDone)
	}
	return c.output.SetMmap(c.resp.Serialized, c.resp.FilePath, c.resp.FileStart, c.resp.FileLength, closeOnDone)
}

// WritePhase drives spec.md §4.3's write phase: one write_to call per
// readiness event.
func (c *Connection) WritePhase() PhaseOutcome {
	result, err := c.output.WriteTo(c.fd)
	switch result {
	case httpio.WriteSuccess:
		mode, bytesSent := c.output.Mode(), c.output.BytesSent()
		if c.output.CloseOnDone() {
			c.output.Reset()
			return PhaseOutcome{Rearm: InterestNone, WriteDone: true, OutMode: mode, BytesSent: bytesSent}
		}
		c.resetForKeepAlive()
		return PhaseOutcome{Rearm: InterestRead, WriteDone: true, OutMode: mode, BytesSent: bytesSent}
	case httpio.WriteContinue:
		return PhaseOutcome{Rearm: InterestWrite}
	default: // httpio.WriteError
		quiet := errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET)
		c.output.Reset()
		return PhaseOutcome{Rearm: InterestNone, Quiet: quiet, Err: err}
	}
}

// resetForKeepAlive implements the KeepAliveReset state: buffers, parser,
// and response are reset in place rather than the connection being
// destroyed (spec.md §3, §4.3 state 4).
func (c *Connection) resetForKeepAlive() {
	c.output.Reset()
	c.input.Clear()
	c.parser.Reset()
	c.req.Reset()
	c.resp.Reset()
}

// Close releases the connection's socket. The caller (SubReactor) is
// responsible for deregistering from epoll and the connection table first.
func (c *Connection) Close() error {
	if c.closing {
		return nil
	}
	c.closing = true
	c.output.Reset()
	return unix.Close(c.fd)
}
