package static

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/webserver/internal/hdr"
	"github.com/badu/webserver/internal/httpmsg"
)

func newDocRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func newReq(path string) *httpmsg.Request {
	req := httpmsg.NewRequest()
	req.Method = "GET"
	req.Path = path
	return req
}

func TestServeGETServesWholeFile(t *testing.T) {
	root := newDocRoot(t, map[string]string{"index.html": "<html>hi</html>"})
	h := New(root)

	req, resp := newReq("/index.html"), httpmsg.NewResponse()
	h.ServeGET(req, resp)

	require.True(t, resp.Handled)
	require.True(t, resp.HasFile())
	assert.Equal(t, int64(len("<html>hi</html>")), resp.FileLength)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get(hdr.ContentType))
}

func TestServeGETMissingFileIs404(t *testing.T) {
	root := newDocRoot(t, nil)
	h := New(root)

	req, resp := newReq("/missing.html"), httpmsg.NewResponse()
	h.ServeGET(req, resp)

	assert.Equal(t, httpmsg.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.HasFile())
}

func TestServeGETRejectsDirectoryTraversal(t *testing.T) {
	root := newDocRoot(t, map[string]string{"secret.txt": "nope"})
	h := New(root)

	req, resp := newReq("/../secret.txt"), httpmsg.NewResponse()
	h.ServeGET(req, resp)

	assert.Equal(t, httpmsg.StatusForbidden, resp.StatusCode)
}

func TestServeGETIfNoneMatchReturns304(t *testing.T) {
	root := newDocRoot(t, map[string]string{"a.txt": "content"})
	h := New(root)

	req, resp := newReq("/a.txt"), httpmsg.NewResponse()
	h.ServeGET(req, resp)
	require.True(t, resp.HasFile())
	etag := resp.Header.Get(hdr.Etag)
	require.NotEmpty(t, etag)

	req2, resp2 := newReq("/a.txt"), httpmsg.NewResponse()
	req2.Header.Set(hdr.IfNoneMatch, etag)
	h.ServeGET(req2, resp2)

	assert.Equal(t, httpmsg.StatusNotModified, resp2.StatusCode)
	assert.False(t, resp2.HasFile())
}

func TestServeGETRangeRequestReturns206(t *testing.T) {
	root := newDocRoot(t, map[string]string{"a.txt": "0123456789"})
	h := New(root)

	req, resp := newReq("/a.txt"), httpmsg.NewResponse()
	req.Header.Set(hdr.Range, "bytes=2-5")
	h.ServeGET(req, resp)

	require.True(t, resp.HasFile())
	assert.Equal(t, httpmsg.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, int64(2), resp.FileStart)
	assert.Equal(t, int64(4), resp.FileLength)
	assert.Equal(t, "bytes 2-5/10", resp.Header.Get(hdr.ContentRange))
}

func TestServeGETSuffixRangeRequest(t *testing.T) {
	root := newDocRoot(t, map[string]string{"a.txt": "0123456789"})
	h := New(root)

	req, resp := newReq("/a.txt"), httpmsg.NewResponse()
	req.Header.Set(hdr.Range, "bytes=-3")
	h.ServeGET(req, resp)

	require.True(t, resp.HasFile())
	assert.Equal(t, int64(7), resp.FileStart)
	assert.Equal(t, int64(3), resp.FileLength)
}

func TestServeGETMultiRangeIsUnsatisfiable(t *testing.T) {
	root := newDocRoot(t, map[string]string{"a.txt": "0123456789"})
	h := New(root)

	req, resp := newReq("/a.txt"), httpmsg.NewResponse()
	req.Header.Set(hdr.Range, "bytes=0-1,3-4")
	h.ServeGET(req, resp)

	assert.Equal(t, httpmsg.StatusRangeNotSatisfiable, resp.StatusCode)
	assert.False(t, resp.HasFile())
}

func TestParseRangeRejectsOutOfBounds(t *testing.T) {
	_, _, ok := parseRange("bytes=50-60", 10)
	assert.False(t, ok)
}
