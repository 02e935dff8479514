// Package server wires configuration, logging, the database, the router,
// and the reactor together into one runnable process. Grounded on
// EpollServer's init* sequence in
// original_source/src/webserver/webserver.cpp (initLogger/initUserService/
// initEpoll/initRouter/initHttpPreHandlers/initHttpPostHandlers) and
// HttpRouter::RegisterRoutes in
// original_source/src/webserver/http_router.cpp for the concrete route
// table.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/badu/webserver/internal/config"
	"github.com/badu/webserver/internal/db"
	"github.com/badu/webserver/internal/handlers"
	"github.com/badu/webserver/internal/httpmsg"
	"github.com/badu/webserver/internal/logging"
	"github.com/badu/webserver/internal/metrics"
	"github.com/badu/webserver/internal/reactor"
	"github.com/badu/webserver/internal/router"
	"github.com/badu/webserver/internal/static"
	"github.com/badu/webserver/internal/taskpool"
)

// Run loads no further configuration itself (cfg is already validated by
// config.Load) and blocks until SIGINT/SIGTERM, then shuts down in order:
// stop accepting, stop every SubReactor (which cancels its timers before
// freeing its connections), close the database pool, flush the logger
// (spec.md §5).
func Run(cfg *config.Config) error {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Path)
	if err != nil {
		return fmt.Errorf("server: logging: %w", err)
	}
	defer log.Close()
	log.Infof("server: starting, doc_root=%s sub_reactors=%d", cfg.DocRoot, cfg.Server.NumSubReactors)

	dbPool, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("server: db: %w", err)
	}
	defer dbPool.Close()
	users := db.NewUsers(dbPool)

	reg := metrics.New()
	rt := buildRouter(cfg, users, log, reg)

	var taskPool *taskpool.Pool
	if cfg.Server.UseThreadPool {
		taskPool = taskpool.New(cfg.Server.ThreadPoolSize, cfg.Server.ThreadPoolQueue)
		log.Infof("server: task pool enabled, workers=%d queue=%d", cfg.Server.ThreadPoolSize, cfg.Server.ThreadPoolQueue)
	}

	idleTimeout := time.Duration(cfg.Server.TimeoutMS) * time.Millisecond
	mr, err := reactor.NewMainReactor(cfg.Server.Host, int(cfg.Server.Port), cfg.Server.NumSubReactors, rt, log, reg, taskPool, cfg.Server.UseSendfile, idleTimeout)
	if err != nil {
		return fmt.Errorf("server: reactor: %w", err)
	}

	mr.Start()
	log.Infof("server: listening on %s:%d", cfg.Server.Host, cfg.Server.Port)

	waitForSignal()
	log.Infof("server: shutting down")
	mr.Stop()
	if taskPool != nil {
		taskPool.Stop()
	}
	log.Infof("server: stopped")
	return nil
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
}

// buildRouter reproduces RegisterRoutes's table plus the pre/post-handler
// chain from initHttpPreHandlers/initHttpPostHandlers.
func buildRouter(cfg *config.Config, users *db.Users, log logging.Logger, reg *metrics.Registry) *router.Router {
	rt := router.New()

	rt.AddPreHandler(func(req *httpmsg.Request, resp *httpmsg.Response) {
		if req.Host == "" {
			resp.SetStatus(httpmsg.StatusBadRequest)
			resp.SetBody([]byte("Host header is required"))
			resp.Handled = true
		}
	})

	rt.AddPostHandler(func(req *httpmsg.Request, resp *httpmsg.Response) {
		log.Debugf("%s %s -> %d", req.Method, req.Path, resp.StatusCode)
	})

	auth := handlers.NewAuth(users, log, cfg.DocRoot)
	rt.HandleGet("/register", auth.Register)
	rt.HandlePost("/register", auth.Register)
	rt.HandleGet("/login", auth.Login)
	rt.HandlePost("/login", auth.Login)

	staticHandler := static.New(cfg.DocRoot)
	rt.HandleGet("/static/*", staticHandler.ServeGET)

	indexHandler := func(req *httpmsg.Request, resp *httpmsg.Response) {
		staticHandler.ServeGET(indexRequest(req), resp)
	}
	rt.HandleGet("/", indexHandler)
	rt.HandleGet("/index", indexHandler)
	rt.HandleGet("/index.html", indexHandler)

	rt.HandleGet("/debug/vars", reg.Handler)

	return rt
}

// indexRequest rewrites a "/" or "/index" request's path to "/index.html"
// so it can be served through the same static handler as everything else,
// instead of giving the home page its own code path.
func indexRequest(req *httpmsg.Request) *httpmsg.Request {
	rewritten := *req
	rewritten.Path = "/index.html"
	return &rewritten
}
