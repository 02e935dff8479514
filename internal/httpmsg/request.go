/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package httpmsg holds the connection-local Request and Response value
// types and Response.Finalize, the core's only serialization step (spec.md
// §3 "Request"/"Response", §4.7 "HTTP response").
package httpmsg

import "github.com/badu/webserver/internal/hdr"

// Request is populated in place by the streaming parser (internal/httpparse)
// and reset (not reallocated) on keep-alive.
type Request struct {
	Method        string // "GET" or "POST"
	Path          string // URI path, no query
	Query         string // raw query string, if any
	Version       string // "HTTP/1.1"
	Host          string
	Header        *hdr.Map
	Form          map[string][]string // decoded form fields (query or urlencoded body)
	Body          []byte              // raw request body
	KeepAlive     bool
	ContentLength int64
}

// NewRequest returns a zero Request ready for the parser to fill in.
func NewRequest() *Request {
	return &Request{
		Header:    hdr.NewMap(),
		Form:      make(map[string][]string),
		KeepAlive: true,
	}
}

// FormValue returns the first value for key, or "" if absent.
func (r *Request) FormValue(key string) string {
	vs := r.Form[key]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Reset clears the request in place for connection reuse (spec.md §3
// Connection invariant: "reset in place ... rather than destroyed").
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.Query = ""
	r.Version = ""
	r.Host = ""
	r.Header.Reset()
	for k := range r.Form {
		delete(r.Form, k)
	}
	r.Body = r.Body[:0]
	r.KeepAlive = true
	r.ContentLength = 0
}
