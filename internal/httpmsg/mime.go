/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package httpmsg

import "strings"

// mimeTable is the fixed extension->content-type table spec.md §4.7 step 3
// names, adapted from badu-http/mime's MIMETypeByExtension idea but kept
// static here (no dependency on the system mime.types file, for
// reproducible Content-Type across hosts).
var mimeTable = map[string]string{
	".html": "text/html; charset=utf-8",
	".htm":  "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".woff": "font/woff",
	".woff2": "font/woff2",
	".pdf":  "application/pdf",
	".xml":  "application/xml; charset=utf-8",
}

const defaultMIME = "application/octet-stream"

// MIMETypeByExtension returns the Content-Type for a file extension
// (including the leading dot), falling back to a generic octet-stream.
func MIMETypeByExtension(ext string) string {
	if t, ok := mimeTable[strings.ToLower(ext)]; ok {
		return t
	}
	return defaultMIME
}
