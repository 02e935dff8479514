// Package metrics holds the process-wide atomic counters exposed at
// /debug/vars (spec.md §11.6 in SPEC_FULL.md). Counters, not histograms or
// a registry: there is no suitable pack library for this narrow a surface
// (see DESIGN.md), so it is plain sync/atomic, matching the original's
// own lightweight counters in webserver.cpp rather than pulling in a
// metrics framework for four numbers.
package metrics

import (
	"encoding/json"
	"sync/atomic"

	"github.com/badu/webserver/internal/httpmsg"
)

// Registry is the set of counters updated by the reactor and read by the
// /debug/vars handler.
type Registry struct {
	activeConnections int64
	requestsServed    int64
	bytesSentMmap     int64
	bytesSentSendfile int64
}

// New returns a zeroed registry.
func New() *Registry {
	return &Registry{}
}

func (r *Registry) ConnectionOpened()            { atomic.AddInt64(&r.activeConnections, 1) }
func (r *Registry) ConnectionClosed()            { atomic.AddInt64(&r.activeConnections, -1) }
func (r *Registry) RequestServed()               { atomic.AddInt64(&r.requestsServed, 1) }
func (r *Registry) BytesSentMmap(n int64)         { atomic.AddInt64(&r.bytesSentMmap, n) }
func (r *Registry) BytesSentSendfile(n int64)     { atomic.AddInt64(&r.bytesSentSendfile, n) }

type snapshot struct {
	ActiveConnections int64 `json:"active_connections"`
	RequestsServed    int64 `json:"requests_served"`
	BytesSentMmap     int64 `json:"bytes_sent_mmap"`
	BytesSentSendfile int64 `json:"bytes_sent_sendfile"`
}

func (r *Registry) snapshot() snapshot {
	return snapshot{
		ActiveConnections: atomic.LoadInt64(&r.activeConnections),
		RequestsServed:    atomic.LoadInt64(&r.requestsServed),
		BytesSentMmap:     atomic.LoadInt64(&r.bytesSentMmap),
		BytesSentSendfile: atomic.LoadInt64(&r.bytesSentSendfile),
	}
}

// Handler serves the current snapshot as JSON at GET /debug/vars.
func (r *Registry) Handler(req *httpmsg.Request, resp *httpmsg.Response) {
	body, err := json.Marshal(r.snapshot())
	if err != nil {
		resp.SetErrorPage(httpmsg.StatusInternalServerError)
		return
	}
	resp.AddHeader("Content-Type", "application/json")
	resp.SetBody(body)
	resp.Handled = true
}
