/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package hdr provides HTTP header-field canonicalization shared by the
// request parser and the response builder.
package hdr

import "time"

// Well-known header names, canonical form.
const (
	Accept          = "Accept"
	AcceptRanges    = "Accept-Ranges"
	CacheControl    = "Cache-Control"
	Connection      = "Connection"
	ContentLength   = "Content-Length"
	ContentRange    = "Content-Range"
	ContentType     = "Content-Type"
	Date            = "Date"
	Etag            = "Etag"
	Host            = "Host"
	IfModifiedSince = "If-Modified-Since"
	IfNoneMatch     = "If-None-Match"
	LastModified    = "Last-Modified"
	Location        = "Location"
	Range           = "Range"
	ServerHeader    = "Server"
	UserAgent       = "User-Agent"

	TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
)

var timeFormats = []string{
	TimeFormat,
	time.RFC850,
	time.ANSIC,
}

// ParseTime parses a time header (such as Last-Modified), trying each of
// the three formats allowed by HTTP/1.1.
func ParseTime(text string) (time.Time, error) {
	var t time.Time
	var err error
	for _, layout := range timeFormats {
		t, err = time.Parse(layout, text)
		if err == nil {
			return t, nil
		}
	}
	return t, err
}
