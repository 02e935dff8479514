/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpmsg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/badu/webserver/internal/hdr"
)

const serverHeaderValue = "badu-webserver"

// Response is built by pre/post-handlers and the router, then serialized in
// place by Finalize. After Finalize succeeds, Serialized holds either the
// entire wire response (inline body) or just the header block (file body),
// per spec.md §3's Response invariant.
type Response struct {
	StatusCode  int
	Reason      string
	Header      *hdr.Map
	Body        []byte
	FilePath    string
	FileStart   int64
	FileLength  int64
	hasFile     bool
	Handled     bool
	CloseOnDone bool

	Serialized []byte
}

// NewResponse returns a zero Response ready for handlers to populate.
func NewResponse() *Response {
	return &Response{Header: hdr.NewMap(), StatusCode: StatusOK}
}

// Reset clears the response in place for connection reuse.
func (r *Response) Reset() {
	r.StatusCode = StatusOK
	r.Reason = ""
	r.Header.Reset()
	r.Body = r.Body[:0]
	r.FilePath = ""
	r.FileStart = 0
	r.FileLength = 0
	r.hasFile = false
	r.Handled = false
	r.CloseOnDone = false
	r.Serialized = r.Serialized[:0]
}

func (r *Response) SetStatus(code int) {
	r.StatusCode = code
	r.Reason = ReasonPhrase(code)
}

func (r *Response) AddHeader(key, value string) {
	r.Header.Set(key, value)
}

func (r *Response) SetBody(body []byte) {
	r.Body = body
	r.hasFile = false
}

// SetFile serves the whole file.
func (r *Response) SetFile(path string, length int64) {
	r.FilePath = path
	r.FileStart = 0
	r.FileLength = length
	r.hasFile = true
}

// SetFileWithRange serves [start, start+length) of path (spec.md §4.7).
func (r *Response) SetFileWithRange(path string, start, length int64) {
	r.FilePath = path
	r.FileStart = start
	r.FileLength = length
	r.hasFile = true
}

func (r *Response) SetKeepAlive(keepAlive bool) {
	r.CloseOnDone = !keepAlive
}

// HasFile reports whether a file payload is attached (post-Finalize, also
// implies the serialized buffer holds only headers).
func (r *Response) HasFile() bool {
	return r.hasFile
}

// errorPage is the canned HTML body for a given status (spec.md §4.7
// "set_error_page").
func errorPage(code int) []byte {
	reason := ReasonPhrase(code)
	return []byte(fmt.Sprintf(
		"<!DOCTYPE html><html><head><title>%d %s</title></head><body><h1>%d %s</h1></body></html>",
		code, reason, code, reason))
}

// SetErrorPage populates a canned HTML error body for code (400/403/404/
// 405/416/500) and marks the response handled.
func (r *Response) SetErrorPage(code int) {
	r.SetStatus(code)
	r.SetBody(errorPage(code))
	r.Header.Set(hdr.ContentType, "text/html; charset=utf-8")
	r.Handled = true
}

// Finalize implements spec.md §4.7's five-step contract. It must be called
// exactly once per response before installing it into the output buffer.
func (r *Response) Finalize() error {
	if r.hasFile {
		info, err := os.Stat(r.FilePath)
		if err != nil || !info.Mode().IsRegular() {
			r.hasFile = false
			r.FilePath = ""
			r.SetErrorPage(StatusNotFound)
		}
	}

	if r.Reason == "" {
		r.Reason = ReasonPhrase(r.StatusCode)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("HTTP/1.1 %d %s\r\n", r.StatusCode, r.Reason))

	if !r.Header.Has(hdr.ContentLength) {
		if r.hasFile {
			r.Header.Set(hdr.ContentLength, strconv.FormatInt(r.FileLength, 10))
		} else {
			r.Header.Set(hdr.ContentLength, strconv.Itoa(len(r.Body)))
		}
	}
	if !r.Header.Has(hdr.Connection) {
		if r.CloseOnDone {
			r.Header.Set(hdr.Connection, "close")
		} else {
			r.Header.Set(hdr.Connection, "keep-alive")
		}
	}
	if !r.Header.Has(hdr.ServerHeader) {
		r.Header.Set(hdr.ServerHeader, serverHeaderValue)
	}
	if !r.Header.Has(hdr.Date) {
		r.Header.Set(hdr.Date, time.Now().UTC().Format(hdr.TimeFormat))
	}
	if !r.Header.Has(hdr.ContentType) {
		if r.hasFile {
			r.Header.Set(hdr.ContentType, MIMETypeByExtension(extOf(r.FilePath)))
		} else if looksLikeHTML(r.Body) {
			r.Header.Set(hdr.ContentType, "text/html; charset=utf-8")
		} else {
			r.Header.Set(hdr.ContentType, "text/plain; charset=utf-8")
		}
	}

	for _, k := range r.Header.Keys() {
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(r.Header.Get(k))
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")

	r.Serialized = append(r.Serialized[:0], sb.String()...)
	if !r.hasFile {
		r.Serialized = append(r.Serialized, r.Body...)
	}
	return nil
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
		if path[i] == '/' {
			break
		}
	}
	return ""
}

func looksLikeHTML(body []byte) bool {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	upper := strings.ToUpper(trimmed)
	return strings.HasPrefix(upper, "<!DOCTYPE HTML") || strings.HasPrefix(upper, "<HTML")
}
