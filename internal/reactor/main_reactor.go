package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/badu/webserver/internal/logging"
	"github.com/badu/webserver/internal/metrics"
	"github.com/badu/webserver/internal/router"
	"github.com/badu/webserver/internal/taskpool"
)

// MainReactor is the acceptor of spec.md §4.1: one listening socket, one
// thread accepting in a loop and handing each new connection off to a
// SubReactor chosen by round-robin, never touching the connection
// again afterward.
type MainReactor struct {
	listenFd int
	subs     []*SubReactor
	log      logging.Logger
	next     int // round-robin cursor over subs, touched only by acceptLoop

	stop chan struct{}
	done chan struct{}
}

// NewMainReactor binds and listens on host:port and builds numSubReactors
// SubReactors sharing rt. idleTimeout is the per-connection eviction bound
// (spec.md §4.9); useSendfile selects the zero-copy output mode. pool may
// be nil, in which case every SubReactor processes requests inline
// (spec.md §4.10's default); when non-nil, all SubReactors share it, and
// the caller retains ownership — Stop does not close it.
func NewMainReactor(host string, port int, numSubReactors int, rt *router.Router, log logging.Logger, reg *metrics.Registry, pool *taskpool.Pool, useSendfile bool, idleTimeout time.Duration) (*MainReactor, error) {
	if numSubReactors <= 0 {
		numSubReactors = 1
	}

	listenFd, err := bindListen(host, port)
	if err != nil {
		return nil, err
	}

	subs := make([]*SubReactor, 0, numSubReactors)
	for i := 0; i < numSubReactors; i++ {
		sr, err := NewSubReactor(i, rt, log, reg, pool, useSendfile, idleTimeout)
		if err != nil {
			for _, started := range subs {
				started.Stop()
			}
			unix.Close(listenFd)
			return nil, fmt.Errorf("reactor: starting sub-reactor %d: %w", i, err)
		}
		subs = append(subs, sr)
	}

	return &MainReactor{
		listenFd: listenFd,
		subs:     subs,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func bindListen(host string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}

	addr := &unix.SockaddrInet4{Port: port}
	ip, err := resolveIPv4(host)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	addr.Addr = ip

	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

func resolveIPv4(host string) ([4]byte, error) {
	var ip [4]byte
	if host == "" || host == "0.0.0.0" {
		return ip, nil
	}
	var a, b, c, d int
	n, err := fmt.Sscanf(host, "%d.%d.%d.%d", &a, &b, &c, &d)
	if err != nil || n != 4 {
		return ip, fmt.Errorf("reactor: unsupported bind host %q (dotted-quad IPv4 only)", host)
	}
	ip[0], ip[1], ip[2], ip[3] = byte(a), byte(b), byte(c), byte(d)
	return ip, nil
}

// Start launches every SubReactor's event loop and the accept loop, each on
// its own goroutine. It returns immediately; call Stop to shut down.
func (m *MainReactor) Start() {
	for _, sr := range m.subs {
		go sr.Run()
	}
	go m.acceptLoop()
}

// Stop closes the listening socket, stops the accept loop, and stops every
// SubReactor in turn — cancelling its timers before freeing its connections
// (spec.md §5).
func (m *MainReactor) Stop() {
	close(m.stop)
	unix.Close(m.listenFd)
	<-m.done
	for _, sr := range m.subs {
		sr.Stop()
	}
}

func (m *MainReactor) acceptLoop() {
	defer close(m.done)

	poller, err := newEpoller()
	if err != nil {
		m.log.Errorf("main_reactor: %v", err)
		return
	}
	defer poller.close()
	if err := poller.add(m.listenFd, InterestRead); err != nil {
		m.log.Errorf("main_reactor: register listen fd: %v", err)
		return
	}

	events := make([]unix.EpollEvent, 16)
	for {
		select {
		case <-m.stop:
			return
		default:
		}

		n, err := poller.wait(events, 1000)
		if err != nil {
			m.log.Errorf("main_reactor: epoll_wait: %v", err)
			continue
		}
		for i := 0; i < n; i++ {
			m.acceptAll()
		}
		if n > 0 {
			if err := poller.rearm(m.listenFd, InterestRead); err != nil {
				m.log.Errorf("main_reactor: rearm listen fd: %v", err)
			}
		}
	}
}

// acceptAll drains the accept queue (edge-triggered listen fd) and hands
// each connection to the next SubReactor in round-robin order.
func (m *MainReactor) acceptAll() {
	for {
		fd, sa, err := unix.Accept4(m.listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if err == unix.EMFILE || err == unix.ENFILE {
				// Out of file descriptors: spec.md §4.1 back-pressure — stop
				// accepting this round rather than spinning.
				m.log.Warnf("main_reactor: accept: %v (file descriptor limit)", err)
				return
			}
			if err == unix.ECONNABORTED || err == unix.EINTR {
				continue
			}
			m.log.Errorf("main_reactor: accept: %v", err)
			return
		}

		addr := formatSockaddr(sa)
		m.dispatch(fd, addr)
	}
}

// dispatch hands fd to the next SubReactor in round-robin order. It only
// ever runs on the acceptLoop goroutine, and never reads a SubReactor's own
// state — each SubReactor remains the sole mutator of its connection table
// (spec.md §4.2, §5).
func (m *MainReactor) dispatch(fd int, addr string) {
	sr := m.subs[m.next]
	m.next = (m.next + 1) % len(m.subs)
	sr.Enqueue(fd, addr)
}

func formatSockaddr(sa unix.Sockaddr) string {
	if v4, ok := sa.(*unix.SockaddrInet4); ok {
		a := v4.Addr
		return fmt.Sprintf("%d.%d.%d.%d:%d", a[0], a[1], a[2], a[3], v4.Port)
	}
	return "unknown"
}
