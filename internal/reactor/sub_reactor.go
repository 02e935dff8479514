package reactor

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/badu/webserver/internal/httpio"
	"github.com/badu/webserver/internal/logging"
	"github.com/badu/webserver/internal/metrics"
	"github.com/badu/webserver/internal/router"
	"github.com/badu/webserver/internal/taskpool"
	"github.com/badu/webserver/internal/timerwheel"
)

const (
	maxEvents = 1024
	// wakeupFdInterest is the epoll interest registered on the wakeup pipe's
	// read end, written to by Enqueue so epoll_wait returns promptly when a
	// new connection arrives rather than waiting out the timer wheel's tick
	// bound. A self-pipe stands in for the eventfd of
	// original_source/src/webserver/include/sub_reactor.h's wakeup_fd_ — same
	// purpose, built from the syscall x/sys/unix already exposes here.
	wakeupFdInterest = InterestRead
)

// SubReactor owns one epoll instance, one timer wheel, and a private table
// of connections, all touched only by its own goroutine — the concurrency
// model of spec.md §4.1/§4.2 (no locks on the hot path).
type SubReactor struct {
	id          int
	poller      *epoller
	wheel       *timerwheel.Wheel
	router      *router.Router
	log         logging.Logger
	metrics     *metrics.Registry // nil is valid: metrics are then a no-op
	useSendfile bool
	idleTimeout time.Duration

	pool *taskpool.Pool // nil means process requests inline on this goroutine

	wakeupR, wakeupW int // pipe fds used to cross the goroutine boundary safely

	conns       map[int]*connState
	pending     chan pendingConn
	completions chan completion

	stop chan struct{}
	done chan struct{}
}

type connState struct {
	conn     *Connection
	handle   timerwheel.Handle
	inFlight bool // true while an async task-pool job owns this fd
}

type pendingConn struct {
	fd   int
	addr string
}

// completion carries a PhaseOutcome computed off-goroutine by the task pool
// back to the SubReactor that owns fd, for applyOutcome to act on.
type completion struct {
	fd      int
	outcome PhaseOutcome
}

// NewSubReactor builds reactor id. The returned SubReactor does nothing
// until Run is called on its own goroutine. pool may be nil, in which case
// every request is processed inline on the reactor goroutine (spec.md
// §4.10's default).
func NewSubReactor(id int, rt *router.Router, log logging.Logger, reg *metrics.Registry, pool *taskpool.Pool, useSendfile bool, idleTimeout time.Duration) (*SubReactor, error) {
	poller, err := newEpoller()
	if err != nil {
		return nil, err
	}
	r, w, err := pipe2NonBlock()
	if err != nil {
		poller.close()
		return nil, err
	}
	sr := &SubReactor{
		id:          id,
		poller:      poller,
		wheel:       timerwheel.New(timerwheel.DefaultSlots, timerwheel.DefaultTick),
		router:      rt,
		log:         log,
		metrics:     reg,
		pool:        pool,
		useSendfile: useSendfile,
		idleTimeout: idleTimeout,
		wakeupR:     r,
		wakeupW:     w,
		conns:       make(map[int]*connState),
		pending:     make(chan pendingConn, 256),
		completions: make(chan completion, 256),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	if err := poller.add(r, wakeupFdInterest); err != nil {
		sr.closeFds()
		return nil, err
	}
	return sr, nil
}

func pipe2NonBlock() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

// Enqueue hands a freshly accepted fd to this reactor. Safe to call from
// the MainReactor goroutine; the SubReactor goroutine picks it up on its
// next epoll_wait wakeup (spec.md §4.1 "hand off, never touch again").
func (sr *SubReactor) Enqueue(fd int, addr string) {
	sr.pending <- pendingConn{fd: fd, addr: addr}
	var b [1]byte
	unix.Write(sr.wakeupW, b[:])
}

// Run is the reactor's event loop (spec.md §4.2). It must run on its own
// goroutine for the lifetime of the reactor; it returns once Stop has been
// called and all connections drained.
func (sr *SubReactor) Run() {
	defer close(sr.done)
	events := make([]unix.EpollEvent, maxEvents)

	for {
		select {
		case <-sr.stop:
			sr.shutdown()
			return
		default:
		}

		timeout := sr.wheel.NextTimeoutMs()
		n, err := sr.poller.wait(events, timeout)
		if err != nil {
			sr.log.Errorf("sub_reactor[%d]: epoll_wait: %v", sr.id, err)
			continue
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)
			if fd == sr.wakeupR {
				sr.drainWakeup()
				sr.acceptPending()
				sr.drainCompletions()
				if err := sr.poller.rearm(sr.wakeupR, InterestRead); err != nil {
					sr.log.Errorf("sub_reactor[%d]: rearm wakeup fd: %v", sr.id, err)
				}
				continue
			}
			sr.handleEvent(fd, ev.Events)
		}

		sr.wheel.Tick()
	}
}

// Stop signals the loop to exit after this iteration and blocks until it
// has shut down every connection (spec.md §5 "shutdown").
func (sr *SubReactor) Stop() {
	close(sr.stop)
	<-sr.done
}

func (sr *SubReactor) drainWakeup() {
	var buf [64]byte
	for {
		n, err := unix.Read(sr.wakeupR, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (sr *SubReactor) acceptPending() {
	for {
		select {
		case p := <-sr.pending:
			sr.addConnection(p.fd, p.addr)
		default:
			return
		}
	}
}

// drainCompletions applies every PhaseOutcome a task-pool worker has
// finished computing since the last wakeup. This is the only place an
// async result touches epoll state, and it runs on the reactor's own
// goroutine (spec.md §4.10).
func (sr *SubReactor) drainCompletions() {
	for {
		select {
		case c := <-sr.completions:
			cs, ok := sr.conns[c.fd]
			if !ok {
				continue
			}
			cs.inFlight = false
			sr.applyOutcome(c.fd, cs, c.outcome)
		default:
			return
		}
	}
}

func (sr *SubReactor) addConnection(fd int, addr string) {
	conn := NewConnection(fd, addr, true, sr.useSendfile)
	cs := &connState{conn: conn}
	if err := sr.poller.add(fd, InterestRead); err != nil {
		sr.log.Errorf("sub_reactor[%d]: register fd %d: %v", sr.id, fd, err)
		conn.Close()
		return
	}
	cs.handle = sr.armIdleTimer(fd)
	sr.conns[fd] = cs
	if sr.metrics != nil {
		sr.metrics.ConnectionOpened()
	}
}

func (sr *SubReactor) armIdleTimer(fd int) timerwheel.Handle {
	return sr.wheel.Insert(sr.idleTimeout, false, func() {
		sr.evict(fd)
	})
}

// evict runs as a timer-wheel callback on the reactor's own goroutine
// (Tick is only ever called from Run), so it may safely touch sr.conns.
func (sr *SubReactor) evict(fd int) {
	cs, ok := sr.conns[fd]
	if !ok {
		return
	}
	if cs.inFlight {
		// A task-pool worker owns this connection's state right now; closing
		// the fd out from under it would race with its finishRequest call.
		// Re-arm and let the next idle check catch it once the job completes.
		cs.handle = sr.wheel.Insert(sr.idleTimeout, false, func() { sr.evict(fd) })
		return
	}
	sr.log.Debugf("sub_reactor[%d]: idle timeout, closing fd %d", sr.id, fd)
	sr.destroy(fd, cs)
}

func (sr *SubReactor) handleEvent(fd int, events uint32) {
	cs, ok := sr.conns[fd]
	if !ok || cs.inFlight {
		return
	}

	if events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		sr.destroy(fd, cs)
		return
	}

	if events&unix.EPOLLOUT != 0 {
		sr.applyOutcome(fd, cs, cs.conn.WritePhase())
		return
	}

	outcome, async := cs.conn.ReadPhaseAsync(sr.pool, sr.router.Dispatch, func(o PhaseOutcome) {
		sr.completions <- completion{fd: fd, outcome: o}
		var b [1]byte
		unix.Write(sr.wakeupW, b[:])
	})
	if async {
		cs.inFlight = true
		return
	}
	sr.applyOutcome(fd, cs, outcome)
}

func (sr *SubReactor) applyOutcome(fd int, cs *connState, outcome PhaseOutcome) {
	if outcome.Err != nil && !outcome.Quiet {
		sr.log.Warnf("sub_reactor[%d]: fd %d: %v", sr.id, fd, outcome.Err)
	}
	if sr.metrics != nil {
		if outcome.RequestOK {
			sr.metrics.RequestServed()
		}
		if outcome.WriteDone {
			switch outcome.OutMode {
			case httpio.ModeMMAP:
				sr.metrics.BytesSentMmap(outcome.BytesSent)
			case httpio.ModeSendfile:
				sr.metrics.BytesSentSendfile(outcome.BytesSent)
			}
		}
	}
	if outcome.Rearm == InterestNone {
		sr.destroy(fd, cs)
		return
	}
	if err := sr.poller.rearm(fd, outcome.Rearm); err != nil {
		sr.log.Errorf("sub_reactor[%d]: rearm fd %d: %v", sr.id, fd, err)
		sr.destroy(fd, cs)
		return
	}
	cs.handle = sr.wheel.Refresh(cs.handle, sr.idleTimeout, false, func() { sr.evict(fd) })
}

func (sr *SubReactor) destroy(fd int, cs *connState) {
	sr.wheel.Cancel(cs.handle)
	sr.poller.remove(fd)
	cs.conn.Close()
	delete(sr.conns, fd)
	if sr.metrics != nil {
		sr.metrics.ConnectionClosed()
	}
}

func (sr *SubReactor) shutdown() {
	sr.wheel.CancelAll()
	for fd, cs := range sr.conns {
		sr.poller.remove(fd)
		cs.conn.Close()
		delete(sr.conns, fd)
	}
	sr.poller.remove(sr.wakeupR)
	sr.closeFds()
}

func (sr *SubReactor) closeFds() {
	unix.Close(sr.wakeupR)
	unix.Close(sr.wakeupW)
	sr.poller.close()
}
