// Package sss implements Server-Side Shadow State (spec.md section 4.C):
// one outbound connection per configured UPS, mirroring the driver's own
// state tree into a local copy the Network Protocol Engine can answer
// client queries from without ever touching the driver socket directly.
//
// It is grounded on server/sstate.c (parse_args, sstate_connect,
// sstate_sock_read, sendping) reshaped around a Shadow per UPS and a
// Supervisor that polls every Shadow on a ticker, the same pattern the
// teacher's watchdog.Runner uses for periodic health checks
// (daemon/services/watchdog/runner.go) repurposed here for driver
// liveness instead of probe execution.
package sss

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/networkupstools/nutd/internal/statetree"
)

// ErrNotConnected is returned by SendCommand when the shadow has no live
// connection to its driver, the Go shape of a missing upstype_t->fd in the
// original's sstate_sendline.
var ErrNotConnected = errors.New("sss: not connected to driver")

// Shadow mirrors one driver's state tree over a persistent connection to
// its DSP socket, the Go shape of struct upstype_t in include/upstype.h.
type Shadow struct {
	Name       string // e.g. "ups1" — the server-assigned UPS identifier
	SocketPath string

	mu           sync.Mutex
	conn         net.Conn
	store        *statetree.Store
	lastHeard    time.Time
	lastPing     time.Time
	lastConnFail time.Time
	dumpDone     bool
	fsd          bool
	readBuf      []byte
}

// NewShadow creates a Shadow for the given UPS name and driver socket
// path. The Shadow starts disconnected; Supervisor.Run drives connection
// attempts and reads.
func NewShadow(name, socketPath string) *Shadow {
	return &Shadow{
		Name:       name,
		SocketPath: socketPath,
		store:      statetree.NewStore(statetree.NopSink{}),
	}
}

// Store returns the Shadow's local state tree for read access by
// internal/npe. Mutation happens only from the Supervisor's own goroutine
// as driver data arrives; statetree.Store's internal locking is what makes
// concurrent LIST/GET reads from NPE connection goroutines safe.
func (s *Shadow) Store() *statetree.Store { return s.store }

// Connected reports whether the Shadow currently has a live connection to
// its driver.
func (s *Shadow) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// DumpDone reports whether the initial post-connect DUMPALL has completed,
// the condition spec.md section 5 property 5 gates "ups.status reports
// WAIT" on.
func (s *Shadow) DumpDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dumpDone
}

// LastHeard returns the timestamp of the most recent successfully parsed
// line from the driver, used by Supervisor.tick to compute staleness.
func (s *Shadow) LastHeard() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeard
}

// ForceShutdown sets the forced-shutdown display flag: every subsequent
// read of ups.status (GetInfo, LIST VAR) returns "FSD <value>" instead of
// the bare value until the shadow reconnects, spec.md section 4.C's FSD
// projection (scenario S6). internal/npe calls this in response to a
// client's FSD <ups> command; it is a display-only rewrite; the
// underlying raw value stored in the tree is untouched.
func (s *Shadow) ForceShutdown() {
	s.mu.Lock()
	s.fsd = true
	s.mu.Unlock()
}

// GetInfo returns a variable's current value, applying the FSD projection
// to ups.status when active. Every other variable passes through to the
// underlying Store unchanged.
func (s *Shadow) GetInfo(name string) (string, bool) {
	value, ok := s.store.GetInfo(name)
	if !ok {
		return "", false
	}
	s.mu.Lock()
	fsd := s.fsd
	s.mu.Unlock()
	if fsd && strings.EqualFold(name, "ups.status") {
		return "FSD " + value, true
	}
	return value, true
}

// SendCommand writes a pre-formatted line (SET/INSTCMD, built by
// internal/npe with pkg/nutproto.Join) to the driver over the same
// connection Supervisor uses for DUMPALL/PING, the write half of
// sstate_sendline. It returns ErrNotConnected if the shadow currently has
// no live connection.
func (s *Shadow) SendCommand(line string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	_, err := conn.Write([]byte(line))
	return err
}
