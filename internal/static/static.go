// Package static implements the document-root static file handler of
// spec.md §4.7: path canonicalization with directory-traversal rejection,
// Range requests, and conditional GET via Last-Modified/ETag. Grounded on
// original_source/src/webserver/static_file_controller.cpp's
// serveStaticFile/handleRangeRequest, reimplemented against
// internal/httpmsg.Response's set_file/set_file_with_range contract instead
// of the original's in-memory mmap wrapper.
package static

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/badu/webserver/internal/hdr"
	"github.com/badu/webserver/internal/httpmsg"
)

// Handler serves files rooted at docRoot. internal/server registers it for
// the "/static/*" prefix and, through a path rewrite, for the index page.
type Handler struct {
	docRoot string
}

// New returns a handler rooted at docRoot, cleaned with filepath.Clean. A
// relative docRoot is resolved against the process working directory.
func New(docRoot string) *Handler {
	return &Handler{docRoot: filepath.Clean(docRoot)}
}

// ServeGET implements router.Handler.
func (h *Handler) ServeGET(req *httpmsg.Request, resp *httpmsg.Response) {
	full, ok := h.resolve(req.Path)
	if !ok {
		resp.SetErrorPage(httpmsg.StatusForbidden)
		return
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		resp.SetErrorPage(httpmsg.StatusNotFound)
		return
	}

	mimeType := httpmsg.MIMETypeByExtension(filepath.Ext(full))
	size := info.Size()
	etag := generateETag(info.ModTime().Unix(), size)

	if inm := req.Header.Get(hdr.IfNoneMatch); inm != "" && inm == etag {
		resp.SetStatus(httpmsg.StatusNotModified)
		resp.Handled = true
		return
	}
	if ims := req.Header.Get(hdr.IfModifiedSince); ims != "" {
		if t, err := hdr.ParseTime(ims); err == nil && !info.ModTime().Truncate(time.Second).After(t) {
			resp.SetStatus(httpmsg.StatusNotModified)
			resp.Handled = true
			return
		}
	}

	resp.AddHeader(hdr.LastModified, info.ModTime().UTC().Format(hdr.TimeFormat))
	resp.AddHeader(hdr.Etag, etag)
	resp.AddHeader(hdr.CacheControl, "public, max-age=3600")
	resp.AddHeader(hdr.AcceptRanges, "bytes")
	resp.AddHeader(hdr.ContentType, mimeType)

	if rangeHeader := req.Header.Get(hdr.Range); rangeHeader != "" {
		h.serveRange(rangeHeader, full, size, resp)
		return
	}

	resp.SetFile(full, size)
	resp.Handled = true
}

func (h *Handler) serveRange(rangeHeader string, full string, size int64, resp *httpmsg.Response) {
	start, end, ok := parseRange(rangeHeader, size)
	if !ok {
		resp.SetStatus(httpmsg.StatusRangeNotSatisfiable)
		resp.AddHeader(hdr.ContentRange, fmt.Sprintf("bytes */%d", size))
		resp.Handled = true
		return
	}

	length := end - start + 1
	resp.SetStatus(httpmsg.StatusPartialContent)
	resp.AddHeader(hdr.ContentRange, fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	resp.SetFileWithRange(full, start, length)
	resp.Handled = true
}

// parseRange accepts a single range in the "bytes=start-end",
// "bytes=start-" or suffix "bytes=-N" form; multi-range requests fall
// through to the non-satisfiable path.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, false
	}
	spec := header[len(prefix):]
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	if parts[0] == "" {
		// Suffix range "-N": last N bytes.
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || s < 0 {
		return 0, 0, false
	}
	e := size - 1
	if parts[1] != "" {
		e, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, false
		}
	}
	if s >= size || e >= size || s > e {
		return 0, 0, false
	}
	return s, e, true
}

func generateETag(modTimeUnix, size int64) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%d-%d", modTimeUnix, size))
}

// resolve joins reqPath onto the document root and rejects any result that
// escapes it after cleaning, the directory-traversal guard of
// static_file_controller.cpp's std::filesystem::canonical check.
func (h *Handler) resolve(reqPath string) (string, bool) {
	full := filepath.Join(h.docRoot, reqPath)
	if full != h.docRoot && !strings.HasPrefix(full, h.docRoot+string(filepath.Separator)) {
		return "", false
	}
	return full, true
}
