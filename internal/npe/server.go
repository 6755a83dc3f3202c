// Package npe implements the Network Protocol Engine (spec.md section
// 4.D): a TCP listener answering the line-oriented client protocol against
// the union of internal/sss shadow replicas, forwarding SET/INSTCMD/FSD
// back through a shadow's driver connection. It is grounded on
// server/netlist.c for the LIST response framing conventions and on
// internal/dsp's listener/connection shape for the goroutine-per-connection
// accept loop, since the original's net.c for this layer was not present
// in the retrieved source.
package npe

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/networkupstools/nutd/internal/audit"
	"github.com/networkupstools/nutd/internal/logging"
	"github.com/networkupstools/nutd/internal/metrics"
	"github.com/networkupstools/nutd/internal/sss"
	"github.com/networkupstools/nutd/internal/users"
)

// ProtocolVersion is the constant NETVER reply, NUT's network protocol
// revision rather than any specific server release.
const ProtocolVersion = "1.2"

// DaemonVersion is the constant VER reply.
const DaemonVersion = "Network UPS Tools nutd 1.0"

// DefaultIdleTimeout disconnects a client that sends nothing for this long,
// spec.md section 5's idle-timeout cancellation policy.
const DefaultIdleTimeout = 2 * time.Minute

// UPSEntry is one configured UPS the server exposes to clients: its shadow
// state and the description reported by LIST UPS / GET UPSDESC.
type UPSEntry struct {
	Name        string
	Description string
	Shadow      *sss.Shadow
}

// Server owns the registry of configured UPSes and answers every accepted
// client connection's session against it.
type Server struct {
	order []string // lowercase keys, configuration order, for stable LIST UPS
	ups   map[string]*UPSEntry

	users       *users.Store
	audit       *audit.Hub
	idleTimeout time.Duration

	loginsMu sync.Mutex
	logins   map[string]map[*session]struct{} // ups key -> sessions LOGGED_IN to it
}

// NewServer creates a Server. idleTimeout of zero uses DefaultIdleTimeout.
func NewServer(entries []UPSEntry, userStore *users.Store, auditHub *audit.Hub, idleTimeout time.Duration) *Server {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	s := &Server{
		ups:         make(map[string]*UPSEntry),
		users:       userStore,
		audit:       auditHub,
		idleTimeout: idleTimeout,
		logins:      make(map[string]map[*session]struct{}),
	}
	for i := range entries {
		e := entries[i]
		key := lower(e.Name)
		s.ups[key] = &e
		s.order = append(s.order, key)
	}
	return s
}

// ListenAndServe accepts TCP connections on addr until ctx is canceled,
// spawning one session goroutine per connection, mirroring the accept loop
// shape of internal/dsp.Listen.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logging.Success("npe: listening on %s", addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.Warning("npe: accept failed: %v", err)
			continue
		}
		sess := newSession(nc, s)
		go sess.serve()
	}
}

func (s *Server) lookupUPS(name string) (*UPSEntry, bool) {
	e, ok := s.ups[lower(name)]
	return e, ok
}

func (s *Server) addLogin(upsKey string, sess *session) {
	s.loginsMu.Lock()
	defer s.loginsMu.Unlock()
	set, ok := s.logins[upsKey]
	if !ok {
		set = make(map[*session]struct{})
		s.logins[upsKey] = set
	}
	set[sess] = struct{}{}
}

func (s *Server) removeAllLogins(sess *session) {
	s.loginsMu.Lock()
	defer s.loginsMu.Unlock()
	for key, set := range s.logins {
		delete(set, sess)
		metrics.NPESessions.WithLabelValues(key).Set(float64(len(set)))
	}
}

// numLogins returns the count of sessions currently LOGGED_IN to upsKey,
// GET NUMLOGINS's answer.
func (s *Server) numLogins(upsKey string) int {
	s.loginsMu.Lock()
	defer s.loginsMu.Unlock()
	return len(s.logins[upsKey])
}

// loggedInAddrs returns the remote address of every session LOGGED_IN to
// upsKey, LIST CLIENT's answer.
func (s *Server) loggedInAddrs(upsKey string) []string {
	s.loginsMu.Lock()
	defer s.loginsMu.Unlock()
	var out []string
	for sess := range s.logins[upsKey] {
		out = append(out, sess.remoteAddr)
	}
	return out
}
