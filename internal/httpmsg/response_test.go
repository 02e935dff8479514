package httpmsg

import (
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/webserver/internal/hdr"
)

func TestFinalizeInlineBodySetsDefaultHeaders(t *testing.T) {
	resp := NewResponse()
	resp.SetStatus(StatusOK)
	resp.SetBody([]byte("<!DOCTYPE html><html></html>"))

	require.NoError(t, resp.Finalize())

	wire := string(resp.Serialized)
	assert.True(t, strings.HasPrefix(wire, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, wire, "Content-Length: "+strconv.Itoa(len(resp.Body))+"\r\n")
	assert.Contains(t, wire, "Connection: keep-alive\r\n")
	assert.Contains(t, wire, "Content-Type: text/html; charset=utf-8\r\n")
	assert.True(t, strings.HasSuffix(wire, "\r\n\r\n<!DOCTYPE html><html></html>"))
}

func TestFinalizeRespectsCallerSuppliedHeaders(t *testing.T) {
	resp := NewResponse()
	resp.SetStatus(StatusOK)
	resp.SetBody([]byte("hi"))
	resp.AddHeader(hdr.ContentType, "application/json")

	require.NoError(t, resp.Finalize())

	assert.Contains(t, string(resp.Serialized), "Content-Type: application/json\r\n")
}

func TestFinalizeCloseOnDoneSetsConnectionClose(t *testing.T) {
	resp := NewResponse()
	resp.SetKeepAlive(false)
	resp.SetBody([]byte("bye"))

	require.NoError(t, resp.Finalize())

	assert.Contains(t, string(resp.Serialized), "Connection: close\r\n")
}

func TestFinalizeFileResponseOmitsBodyFromSerialized(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "finalize-*")
	require.NoError(t, err)
	_, err = f.WriteString("file contents")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	resp := NewResponse()
	resp.SetFile(f.Name(), 13)

	require.NoError(t, resp.Finalize())

	assert.True(t, resp.HasFile())
	assert.NotContains(t, string(resp.Serialized), "file contents")
	assert.Contains(t, string(resp.Serialized), "Content-Length: 13\r\n")
}

func TestFinalizeMissingFileDowngradesTo404(t *testing.T) {
	resp := NewResponse()
	resp.SetFile("/no/such/file", 100)

	require.NoError(t, resp.Finalize())

	assert.False(t, resp.HasFile())
	assert.Equal(t, StatusNotFound, resp.StatusCode)
}

func TestSetErrorPageMarksHandled(t *testing.T) {
	resp := NewResponse()
	resp.SetErrorPage(StatusForbidden)

	assert.True(t, resp.Handled)
	assert.Equal(t, StatusForbidden, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "403")
}

func TestResponseResetClearsState(t *testing.T) {
	resp := NewResponse()
	resp.SetStatus(StatusNotFound)
	resp.SetBody([]byte("x"))
	resp.AddHeader(hdr.ContentType, "text/plain")
	resp.Handled = true
	require.NoError(t, resp.Finalize())

	resp.Reset()

	assert.Equal(t, StatusOK, resp.StatusCode)
	assert.False(t, resp.Handled)
	assert.False(t, resp.HasFile())
	assert.Empty(t, resp.Header.Keys())
	assert.Empty(t, resp.Serialized)
}
