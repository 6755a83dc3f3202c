package sss

import (
	"context"
	"net"
	"time"

	"github.com/networkupstools/nutd/internal/logging"
	"github.com/networkupstools/nutd/internal/metrics"
	"github.com/networkupstools/nutd/pkg/nutproto"
)

// ConnFailInterval bounds how often a failed connection attempt is
// retried, SS_CONNFAIL_INT in the original — the rate limit that turns a
// persistently unreachable driver into one log line per 15 seconds
// instead of a tight reconnect loop.
const ConnFailInterval = 15 * time.Second

// MaxReadBytes bounds how much is read from a shadow's socket per tick,
// SS_MAX_READ (16) in the original: the server spreads reading across many
// UPSes evenly rather than let one chatty driver starve the others.
const MaxReadBytes = 16

// TickInterval is how often Supervisor.Run wakes to drive every shadow's
// connect/read/ping/timeout state machine.
const TickInterval = 1 * time.Second

var log = logging.Named("sss")

// Supervisor owns every configured UPS's Shadow and drives their
// connection lifecycle on a ticker, grounded on the teacher's
// watchdog.Runner (daemon/services/watchdog/runner.go): a ticker loop
// wrapped in defer recover(), exiting on context cancellation.
type Supervisor struct {
	shadows []*Shadow
	maxAge  time.Duration
}

// NewSupervisor creates a Supervisor for the given shadows. maxAge is the
// per-UPS staleness threshold (default 15s, matching the original's
// MAXAGE): a shadow not heard from within maxAge is considered dead; PING
// is sent at maxAge/3.
func NewSupervisor(shadows []*Shadow, maxAge time.Duration) *Supervisor {
	return &Supervisor{shadows: shadows, maxAge: maxAge}
}

// Run drives every shadow until ctx is canceled.
func (sv *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	sv.tick()

	for {
		select {
		case <-ctx.Done():
			log.Info("supervisor stopped")
			return
		case <-ticker.C:
			sv.tick()
		}
	}
}

func (sv *Supervisor) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Error("PANIC in tick: %v", r)
		}
	}()
	for _, s := range sv.shadows {
		sv.tickShadow(s)
	}
}

func (sv *Supervisor) tickShadow(s *Shadow) {
	now := time.Now()

	s.mu.Lock()
	conn := s.conn
	lastConnFail := s.lastConnFail
	lastHeard := s.lastHeard
	lastPing := s.lastPing
	s.mu.Unlock()

	if conn == nil {
		if now.Sub(lastConnFail) < ConnFailInterval {
			return
		}
		sv.connect(s)
		return
	}

	if now.Sub(lastHeard) >= sv.maxAge {
		log.Warning("UPS [%s] data stale - check driver", s.Name)
		metrics.ShadowLiveness.WithLabelValues(s.Name).Set(0)
		s.store.DataStale()
	} else {
		metrics.ShadowLiveness.WithLabelValues(s.Name).Set(1)
	}

	if now.Sub(lastPing) >= sv.maxAge/3 {
		sv.ping(s)
	}

	sv.read(s)
}

// connect opens the shadow's driver socket, primes it with DUMPALL, and
// resets local state so the replay starts from a clean slate — the Go
// shape of sstate_connect.
func (sv *Supervisor) connect(s *Shadow) {
	nc, err := net.DialTimeout("unix", s.SocketPath, 2*time.Second)
	if err != nil {
		s.mu.Lock()
		s.lastConnFail = time.Now()
		s.mu.Unlock()
		log.Error("can't connect to UPS [%s] (%s): %v", s.Name, s.SocketPath, err)
		return
	}

	if _, err := nc.Write([]byte(nutproto.Join("DUMPALL"))); err != nil {
		nc.Close()
		s.mu.Lock()
		s.lastConnFail = time.Now()
		s.mu.Unlock()
		log.Error("initial write to UPS [%s] failed: %v", s.Name, err)
		return
	}

	s.store.Reset()
	s.store.SetInfo("ups.status", "WAIT")

	now := time.Now()
	s.mu.Lock()
	s.conn = nc
	s.dumpDone = false
	s.fsd = false
	s.lastHeard = now
	s.lastPing = now
	s.mu.Unlock()

	log.Success("connected to UPS [%s]: %s", s.Name, s.SocketPath)
}

func (sv *Supervisor) disconnect(s *Shadow) {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.dumpDone = false
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.store.DataStale()
}

func (sv *Supervisor) ping(s *Shadow) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	if _, err := conn.Write([]byte(nutproto.Join("PING"))); err != nil {
		log.Warning("send ping to UPS [%s] failed: %v", s.Name, err)
		sv.disconnect(s)
		return
	}
	s.mu.Lock()
	s.lastPing = time.Now()
	s.mu.Unlock()
}

// read pulls up to MaxReadBytes from the shadow's socket and feeds them
// through the shared line parser, the Go shape of sstate_sock_read.
func (sv *Supervisor) read(s *Shadow) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	buf := make([]byte, MaxReadBytes)
	n, err := conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return
		}
		log.Warning("read from UPS [%s] failed: %v", s.Name, err)
		sv.disconnect(s)
		return
	}
	if n == 0 {
		return
	}

	s.feed(buf[:n])

	s.mu.Lock()
	s.lastHeard = time.Now()
	s.mu.Unlock()
}
