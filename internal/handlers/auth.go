// Package handlers implements the /register and /login application
// routes. Grounded on
// original_source/src/webserver/http_controller.cpp's handleRegister/
// handleLogin: GET serves the form page, POST validates the submitted
// fields and calls into the user service.
package handlers

import (
	"errors"

	"github.com/badu/webserver/internal/db"
	"github.com/badu/webserver/internal/hdr"
	"github.com/badu/webserver/internal/httpmsg"
	"github.com/badu/webserver/internal/logging"
)

// Auth wires /register and /login against a user service and the static
// page files served on GET.
type Auth struct {
	users   *db.Users
	log     logging.Logger
	docRoot string
}

// NewAuth returns handlers rooted at docRoot (for the GET form pages) and
// backed by users.
func NewAuth(users *db.Users, log logging.Logger, docRoot string) *Auth {
	return &Auth{users: users, log: log, docRoot: docRoot}
}

// Register handles GET /register (serve the form) and POST /register
// (create the account).
func (a *Auth) Register(req *httpmsg.Request, resp *httpmsg.Response) {
	if req.Method == "GET" {
		resp.SetFile(a.docRoot+"/register.html", fileSize(a.docRoot+"/register.html"))
		return
	}

	username := req.FormValue("user")
	password := req.FormValue("password")
	if username == "" || password == "" {
		resp.SetStatus(httpmsg.StatusBadRequest)
		resp.SetBody([]byte("Username and password are required"))
		return
	}

	err := a.users.Register(username, password)
	switch {
	case err == nil:
		resp.SetStatus(httpmsg.StatusFound)
		resp.AddHeader(hdr.Location, "/login")
	case errors.Is(err, db.ErrUserExists):
		resp.SetFile(a.docRoot+"/registerError.html", fileSize(a.docRoot+"/registerError.html"))
	default:
		a.log.Errorf("handlers: register %q: %v", username, err)
		resp.SetStatus(httpmsg.StatusInternalServerError)
		resp.SetBody([]byte("Registration failed"))
	}
}

// Login handles GET /login (serve the form) and POST /login (verify
// credentials).
func (a *Auth) Login(req *httpmsg.Request, resp *httpmsg.Response) {
	if req.Method == "GET" {
		resp.SetFile(a.docRoot+"/login.html", fileSize(a.docRoot+"/login.html"))
		return
	}

	username := req.FormValue("user")
	password := req.FormValue("password")
	if username == "" || password == "" {
		resp.SetStatus(httpmsg.StatusBadRequest)
		resp.SetBody([]byte("Username and password are required"))
		return
	}

	err := a.users.Verify(username, password)
	switch {
	case err == nil:
		resp.SetStatus(httpmsg.StatusFound)
		resp.AddHeader(hdr.Location, "/welcome")
	case errors.Is(err, db.ErrInvalidCredentials):
		resp.SetFile(a.docRoot+"/loginError.html", fileSize(a.docRoot+"/loginError.html"))
	default:
		a.log.Errorf("handlers: login %q: %v", username, err)
		resp.SetStatus(httpmsg.StatusInternalServerError)
		resp.SetBody([]byte("Login failed"))
	}
}
