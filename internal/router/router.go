// Package router implements the application routing table described in
// spec.md §4.8: exact + prefix + suffix pattern matching, separate GET/POST
// handlers per pattern, and ordered pre/post middleware chains. The
// registration surface is built once at startup and shared read-only among
// SubReactors (spec.md §9).
package router

import (
	"strings"
	"sync"

	"github.com/badu/webserver/internal/httpmsg"
)

// Handler produces a Response for a Request.
type Handler func(req *httpmsg.Request, resp *httpmsg.Response)

// Middleware runs before or after routing. A pre-handler that calls
// resp.SetErrorPage (or otherwise sets resp.Handled) stops the pre-handler
// chain and skips routing (spec.md §4.8).
type Middleware func(req *httpmsg.Request, resp *httpmsg.Response)

type patternKind int

const (
	kindExact patternKind = iota
	kindPrefix
	kindSuffix
)

type entry struct {
	pattern string
	kind    patternKind
	get     Handler
	post    Handler
}

// Router is built once at startup via Handle/AddPreHandler/AddPostHandler
// and then only read from (Dispatch) by every SubReactor, so the mutex below
// guards registration-time mutation only; Dispatch takes the read lock.
type Router struct {
	mu      sync.RWMutex
	exact   map[string]*entry
	globs   []*entry // suffix/prefix patterns, tried in insertion order
	pre     []Middleware
	post    []Middleware
}

// New returns an empty router.
func New() *Router {
	return &Router{exact: make(map[string]*entry)}
}

func classify(pattern string) (patternKind, string) {
	switch {
	case strings.HasPrefix(pattern, "*"):
		return kindSuffix, pattern[1:]
	case strings.HasSuffix(pattern, "*"):
		return kindPrefix, strings.TrimSuffix(pattern, "*")
	default:
		return kindExact, pattern
	}
}

func (r *Router) entryFor(pattern string) *entry {
	kind, _ := classify(pattern)
	if kind == kindExact {
		e, ok := r.exact[pattern]
		if !ok {
			e = &entry{pattern: pattern, kind: kindExact}
			r.exact[pattern] = e
		}
		return e
	}
	for _, e := range r.globs {
		if e.pattern == pattern {
			return e
		}
	}
	e := &entry{pattern: pattern, kind: kind}
	r.globs = append(r.globs, e)
	return e
}

// HandleGet registers handler for GET requests matching pattern.
func (r *Router) HandleGet(pattern string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryFor(pattern).get = handler
}

// HandlePost registers handler for POST requests matching pattern.
func (r *Router) HandlePost(pattern string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryFor(pattern).post = handler
}

// AddPreHandler appends mw to the pre-handler chain, run before routing in
// registration order.
func (r *Router) AddPreHandler(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pre = append(r.pre, mw)
}

// AddPostHandler appends mw to the post-handler chain, always run after
// routing regardless of match outcome.
//
// spec.md §9 Open Question 1: the original appended to the pre-handler
// list here, which looks like a bug (mirrored symmetry with AddPreHandler
// broken). This implementation does the correct thing instead of
// reproducing the bug.
func (r *Router) AddPostHandler(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.post = append(r.post, mw)
}

// Dispatch runs the full pre-handler / route / post-handler sequence for
// one request (spec.md §4.3 read phase, §4.8 Router).
func (r *Router) Dispatch(req *httpmsg.Request, resp *httpmsg.Response) {
	r.mu.RLock()
	pre := r.pre
	post := r.post
	r.mu.RUnlock()

	for _, mw := range pre {
		mw(req, resp)
		if resp.Handled {
			break
		}
	}

	if !resp.Handled {
		r.route(req, resp)
	}

	for _, mw := range post {
		mw(req, resp)
	}
}

func (r *Router) route(req *httpmsg.Request, resp *httpmsg.Response) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.exact[req.Path]; ok {
		invokeOrMethodNotAllowed(e, req, resp)
		return
	}

	for _, e := range r.globs {
		if matches(e, req.Path) {
			invokeOrMethodNotAllowed(e, req, resp)
			return
		}
	}
	// Unhandled: caller (connection read phase) defaults to 404.
}

func matches(e *entry, path string) bool {
	switch e.kind {
	case kindSuffix:
		return strings.HasSuffix(path, e.pattern)
	case kindPrefix:
		return strings.HasPrefix(path, e.pattern)
	default:
		return false
	}
}

func invokeOrMethodNotAllowed(e *entry, req *httpmsg.Request, resp *httpmsg.Response) {
	var h Handler
	switch req.Method {
	case "GET":
		h = e.get
	case "POST":
		h = e.post
	}
	if h == nil {
		resp.SetErrorPage(httpmsg.StatusMethodNotAllowed)
		return
	}
	h(req, resp)
	resp.Handled = true
}
