package handlers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/webserver/internal/httpmsg"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

func newReq(method string) *httpmsg.Request {
	req := httpmsg.NewRequest()
	req.Method = method
	return req
}

func TestRegisterGETServesFormFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "register.html"), []byte("<form></form>"), 0o644))

	a := NewAuth(nil, nopLogger{}, root)
	req, resp := newReq("GET"), httpmsg.NewResponse()
	a.Register(req, resp)

	require.True(t, resp.HasFile())
	assert.Equal(t, int64(len("<form></form>")), resp.FileLength)
}

func TestRegisterPOSTMissingFieldsIsBadRequest(t *testing.T) {
	a := NewAuth(nil, nopLogger{}, t.TempDir())
	req, resp := newReq("POST"), httpmsg.NewResponse()
	req.Body = []byte("user=bob")

	a.Register(req, resp)

	assert.Equal(t, httpmsg.StatusBadRequest, resp.StatusCode)
	assert.False(t, resp.HasFile())
}

func TestLoginGETServesFormFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "login.html"), []byte("<form></form>"), 0o644))

	a := NewAuth(nil, nopLogger{}, root)
	req, resp := newReq("GET"), httpmsg.NewResponse()
	a.Login(req, resp)

	require.True(t, resp.HasFile())
	assert.Equal(t, int64(len("<form></form>")), resp.FileLength)
}

func TestLoginPOSTMissingFieldsIsBadRequest(t *testing.T) {
	a := NewAuth(nil, nopLogger{}, t.TempDir())
	req, resp := newReq("POST"), httpmsg.NewResponse()
	req.Body = []byte("password=secret")

	a.Login(req, resp)

	assert.Equal(t, httpmsg.StatusBadRequest, resp.StatusCode)
	assert.False(t, resp.HasFile())
}
