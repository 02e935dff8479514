package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badu/webserver/internal/httpmsg"
)

func newReq(method, path string) *httpmsg.Request {
	req := httpmsg.NewRequest()
	req.Method = method
	req.Path = path
	return req
}

func TestDispatchExactMatchWinsOverGlobs(t *testing.T) {
	r := New()
	r.HandleGet("/static/*", func(req *httpmsg.Request, resp *httpmsg.Response) {
		resp.SetBody([]byte("glob"))
	})
	r.HandleGet("/static/special", func(req *httpmsg.Request, resp *httpmsg.Response) {
		resp.SetBody([]byte("exact"))
	})

	req, resp := newReq("GET", "/static/special"), httpmsg.NewResponse()
	r.Dispatch(req, resp)

	assert.Equal(t, "exact", string(resp.Body))
	assert.True(t, resp.Handled)
}

func TestDispatchSuffixGlob(t *testing.T) {
	r := New()
	r.HandleGet("*.css", func(req *httpmsg.Request, resp *httpmsg.Response) {
		resp.SetBody([]byte("css"))
	})

	req, resp := newReq("GET", "/assets/site.css"), httpmsg.NewResponse()
	r.Dispatch(req, resp)

	assert.Equal(t, "css", string(resp.Body))
}

func TestDispatchPrefixGlob(t *testing.T) {
	r := New()
	r.HandleGet("/static/*", func(req *httpmsg.Request, resp *httpmsg.Response) {
		resp.SetBody([]byte("prefix"))
	})

	req, resp := newReq("GET", "/static/img/a.png"), httpmsg.NewResponse()
	r.Dispatch(req, resp)

	assert.Equal(t, "prefix", string(resp.Body))
}

func TestDispatchGlobsTriedInInsertionOrder(t *testing.T) {
	r := New()
	r.HandleGet("/api/*", func(req *httpmsg.Request, resp *httpmsg.Response) {
		resp.SetBody([]byte("first"))
	})
	r.HandleGet("/api/v1/*", func(req *httpmsg.Request, resp *httpmsg.Response) {
		resp.SetBody([]byte("second"))
	})

	req, resp := newReq("GET", "/api/v1/users"), httpmsg.NewResponse()
	r.Dispatch(req, resp)

	assert.Equal(t, "first", string(resp.Body))
}

func TestDispatchUnmatchedLeavesUnhandled(t *testing.T) {
	r := New()
	req, resp := newReq("GET", "/nope"), httpmsg.NewResponse()
	r.Dispatch(req, resp)

	assert.False(t, resp.Handled)
}

func TestDispatchWrongMethodGivesMethodNotAllowed(t *testing.T) {
	r := New()
	r.HandleGet("/only-get", func(req *httpmsg.Request, resp *httpmsg.Response) {})

	req, resp := newReq("POST", "/only-get"), httpmsg.NewResponse()
	r.Dispatch(req, resp)

	assert.Equal(t, httpmsg.StatusMethodNotAllowed, resp.StatusCode)
}

func TestDispatchPreHandlerShortCircuitsRouting(t *testing.T) {
	r := New()
	routed := false
	r.AddPreHandler(func(req *httpmsg.Request, resp *httpmsg.Response) {
		resp.SetErrorPage(httpmsg.StatusBadRequest)
	})
	r.HandleGet("/x", func(req *httpmsg.Request, resp *httpmsg.Response) {
		routed = true
	})

	req, resp := newReq("GET", "/x"), httpmsg.NewResponse()
	r.Dispatch(req, resp)

	assert.False(t, routed)
	assert.Equal(t, httpmsg.StatusBadRequest, resp.StatusCode)
}

func TestDispatchPostHandlerAlwaysRuns(t *testing.T) {
	r := New()
	postRan := false
	r.AddPreHandler(func(req *httpmsg.Request, resp *httpmsg.Response) {
		resp.SetErrorPage(httpmsg.StatusBadRequest)
	})
	r.AddPostHandler(func(req *httpmsg.Request, resp *httpmsg.Response) {
		postRan = true
	})

	req, resp := newReq("GET", "/whatever"), httpmsg.NewResponse()
	r.Dispatch(req, resp)

	require.True(t, postRan)
}
