// Package httpparse implements the streaming, resumable HTTP/1.1 request
// parser described in spec.md §4.6. A Parser is connection-local: it is fed
// the connection's entire readable input-buffer prefix on every read event
// and reports how many bytes it consumed so the caller can retire them.
package httpparse

import (
	"strconv"
	"strings"

	"github.com/badu/webserver/internal/hdr"
	"github.com/badu/webserver/internal/httpmsg"
)

// Cursor is the parser's resumable state, spec.md §3 "Parser state".
type Cursor int

const (
	CursorRequestLine Cursor = iota
	CursorHeaders
	CursorBody
	CursorDone
	CursorInvalid
)

// Result is the outcome of one Parse call.
type Result int

const (
	// Incomplete: wait for more bytes, do not retire any of the input.
	Incomplete Result = iota
	// OK: a full request was parsed; Consumed bytes may be retired.
	OK
	// BadRequest: malformed request line, method, version, or Content-Length.
	BadRequest
)

// Parser holds the resumable cursor across Parse calls on the same
// connection. Reset returns it to its just-constructed state.
type Parser struct {
	cursor    Cursor
	scanPos   int // offset into the current buffer already scanned
	bodyStart int // offset where the body begins, valid once cursor >= CursorBody
}

// NewParser returns a parser positioned at the start of a request line.
func NewParser() *Parser {
	return &Parser{}
}

// Reset returns the parser to its initial state, for the next request on a
// kept-alive connection (spec.md §3 Connection invariant).
func (p *Parser) Reset() {
	p.cursor = CursorRequestLine
	p.scanPos = 0
	p.bodyStart = 0
}

// Parse advances req's fields using data (the connection's entire readable
// input-buffer prefix, always starting at the same logical offset 0 across
// calls until the caller retires Consumed bytes and calls Reset). It
// returns the outcome and, when it is OK, the number of bytes belonging to
// the completed request.
func (p *Parser) Parse(data []byte, req *httpmsg.Request) (Result, int) {
	for {
		switch p.cursor {
		case CursorRequestLine:
			idx := indexCRLF(data[p.scanPos:])
			if idx < 0 {
				// Don't retire a trailing lone '\r': it may be the first half
				// of a CRLF split across reads, and indexCRLF needs to see it
				// again paired with the '\n' that follows.
				if len(data) > p.scanPos && data[len(data)-1] == '\r' {
					p.scanPos = len(data) - 1
				} else {
					p.scanPos = len(data)
				}
				return Incomplete, 0
			}
			// The request line always starts at offset 0; scanPos only
			// marks how far a previous call already searched for its CRLF.
			line := data[:p.scanPos+idx]
			if !parseRequestLine(line, req) {
				p.cursor = CursorInvalid
				return BadRequest, 0
			}
			p.scanPos += idx + 2
			p.cursor = CursorHeaders
		case CursorHeaders:
			for {
				idx := indexCRLF(data[p.scanPos:])
				if idx < 0 {
					return Incomplete, 0
				}
				if idx == 0 {
					// blank line: headers are done
					p.scanPos += 2
					p.bodyStart = p.scanPos
					if req.ContentLength == 0 {
						p.cursor = CursorDone
					} else {
						p.cursor = CursorBody
					}
					break
				}
				line := data[p.scanPos : p.scanPos+idx]
				if !applyHeaderLine(line, req) {
					p.cursor = CursorInvalid
					return BadRequest, 0
				}
				p.scanPos += idx + 2
			}
		case CursorBody:
			available := len(data) - p.bodyStart
			if int64(available) < req.ContentLength {
				return Incomplete, 0
			}
			end := p.bodyStart + int(req.ContentLength)
			req.Body = append(req.Body[:0], data[p.bodyStart:end]...)
			if req.Header.Get(hdr.ContentType) == "application/x-www-form-urlencoded" {
				mergeForm(req.Form, decodeForm(string(req.Body)))
			}
			p.cursor = CursorDone
			return OK, end
		case CursorDone:
			// Body-less request: consumed bytes run through bodyStart.
			if req.ContentLength == 0 {
				return OK, p.bodyStart
			}
			return OK, p.bodyStart + int(req.ContentLength)
		case CursorInvalid:
			return BadRequest, 0
		}
	}
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

func parseRequestLine(line []byte, req *httpmsg.Request) bool {
	parts := strings.Split(string(line), " ")
	if len(parts) != 3 {
		return false
	}
	method := strings.ToUpper(parts[0])
	if method != "GET" && method != "POST" {
		return false
	}
	target := parts[1]
	version := parts[2]
	if version != "HTTP/1.1" {
		return false
	}

	if strings.HasPrefix(target, "http://") {
		target = stripSchemeAuthority(target, len("http://"))
	} else if strings.HasPrefix(target, "https://") {
		target = stripSchemeAuthority(target, len("https://"))
	}

	path := target
	query := ""
	if i := strings.IndexByte(target, '?'); i >= 0 {
		path = target[:i]
		query = target[i+1:]
	}
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		return false
	}

	req.Method = method
	req.Path = path
	req.Query = query
	req.Version = version

	if method == "GET" && query != "" {
		mergeForm(req.Form, decodeForm(query))
	}
	return true
}

func stripSchemeAuthority(target string, schemeLen int) string {
	rest := target[schemeLen:]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[i:]
	}
	return "/"
}

func applyHeaderLine(line []byte, req *httpmsg.Request) bool {
	idx := indexByte(line, ':')
	if idx < 0 {
		return false
	}
	key := hdr.TrimString(string(line[:idx]))
	value := hdr.TrimString(string(line[idx+1:]))
	if key == "" {
		return false
	}

	req.Header.Set(key, value)

	switch hdr.CanonicalKey(key) {
	case hdr.Connection:
		switch strings.ToLower(value) {
		case "keep-alive":
			req.KeepAlive = true
		case "close":
			req.KeepAlive = false
		}
	case hdr.ContentLength:
		n, err := strconv.ParseUint(value, 10, 63)
		if err != nil {
			return false
		}
		req.ContentLength = int64(n)
	case hdr.Host:
		req.Host = value
	}
	return true
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func mergeForm(dst, src map[string][]string) {
	for k, vs := range src {
		dst[k] = append(dst[k], vs...)
	}
}
