package npe

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/networkupstools/nutd/internal/audit"
	"github.com/networkupstools/nutd/internal/logging"
	"github.com/networkupstools/nutd/internal/metrics"
	"github.com/networkupstools/nutd/pkg/nutproto"
)

// session is one accepted client connection and its place in the
// FRESH -> NAMED -> AUTHED -> LOGGED_IN(ups) state machine of spec.md
// section 4.D. LOGGED_IN is tracked per UPS (loggedIn), since a client may
// log in to several.
type session struct {
	nc         net.Conn
	srv        *Server
	remoteAddr string

	username string
	named    bool
	authed   bool
	loggedIn map[string]bool // ups key -> true

	errCode ErrCode // last error code written during the current dispatch, for metrics
}

func newSession(nc net.Conn, srv *Server) *session {
	return &session{
		nc:         nc,
		srv:        srv,
		remoteAddr: nc.RemoteAddr().String(),
		loggedIn:   make(map[string]bool),
	}
}

// serve runs the session's read loop until the client disconnects, the
// connection errors, or the idle timeout elapses.
func (s *session) serve() {
	defer s.nc.Close()
	defer s.srv.removeAllLogins(s)

	scanner := bufio.NewScanner(s.nc)
	for {
		s.nc.SetReadDeadline(time.Now().Add(s.srv.idleTimeout))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logging.Debug("npe: %s: read error: %v", s.remoteAddr, err)
			}
			return
		}

		args, err := nutproto.Tokenize(scanner.Text())
		if err != nil {
			logging.Info("npe: %s: parse error: %v", s.remoteAddr, err)
			s.writeErr(ErrInvalidArgument)
			continue
		}
		if len(args) == 0 {
			continue
		}

		if s.dispatch(args) == errLogout {
			return
		}
	}
}

// sentinel returned by dispatch to tell serve to close the connection
// after LOGOUT, without using an error value for ordinary control flow.
type controlSignal int

const errLogout controlSignal = 1

func (s *session) dispatch(args []string) controlSignal {
	verb := strings.ToUpper(args[0])
	s.errCode = ""

	switch verb {
	case "USERNAME":
		s.handleUsername(args)
	case "PASSWORD":
		s.handlePassword(args)
	case "LOGIN":
		s.handleLogin(args)
	case "LOGOUT":
		s.writeLine("OK Goodbye")
		return errLogout
	case "HELP":
		s.writeLine(fmt.Sprintf("Commands: %s", strings.Join(knownVerbs, " ")))
	case "VER":
		s.writeLine(DaemonVersion)
	case "NETVER":
		s.writeLine(ProtocolVersion)
	case "LIST":
		s.handleList(args[1:])
	case "GET":
		s.handleGet(args[1:])
	case "SET":
		s.handleSet(args[1:])
	case "INSTCMD":
		s.handleInstCmd(args[1:])
	case "FSD":
		s.handleFSD(args[1:])
	case "STARTTLS":
		s.writeErr(ErrFeatureNotConfigured)
	default:
		logging.Info("npe: %s: unknown command: %v", s.remoteAddr, args)
		s.writeErr(ErrInvalidArgument)
	}

	outcome := "ok"
	if s.errCode != "" {
		outcome = string(s.errCode)
	}
	metrics.NPECommandsTotal.WithLabelValues(verb, outcome).Inc()
	return 0
}

var knownVerbs = []string{
	"USERNAME", "PASSWORD", "LOGIN", "LOGOUT", "HELP", "VER", "NETVER",
	"LIST", "GET", "SET", "INSTCMD", "FSD",
}

func (s *session) handleUsername(args []string) {
	if len(args) != 2 {
		s.writeErr(ErrInvalidArgument)
		return
	}
	if s.named {
		s.writeErr(ErrInvalidArgument)
		return
	}
	s.username = args[1]
	s.named = true
	s.writeLine("OK")
}

func (s *session) handlePassword(args []string) {
	if len(args) != 2 {
		s.writeErr(ErrInvalidArgument)
		return
	}
	if !s.named {
		s.writeErr(ErrUsernameRequired)
		return
	}
	if !s.srv.users.Authenticate(s.username, args[1]) {
		s.writeErr(ErrAccessDenied)
		return
	}
	s.authed = true
	s.writeLine("OK")
}

func (s *session) handleLogin(args []string) {
	if len(args) != 2 {
		s.writeErr(ErrInvalidArgument)
		return
	}
	if !s.authed {
		s.writeErr(ErrAccessDenied)
		return
	}
	upsName := args[1]
	entry, ok := s.srv.lookupUPS(upsName)
	if !ok {
		s.writeErr(ErrUnknownUPS)
		return
	}
	key := lower(entry.Name)
	if s.loggedIn[key] {
		s.writeErr(ErrAlreadyLoggedIn)
		return
	}
	s.loggedIn[key] = true
	s.srv.addLogin(key, s)
	metrics.NPESessions.WithLabelValues(key).Set(float64(s.srv.numLogins(key)))
	s.srv.publishAudit(audit.Event{Verb: "LOGIN", Username: s.username, UPS: entry.Name, Outcome: "ok"})
	s.writeLine("OK")
}

func (s *session) writeLine(line string) {
	s.nc.Write([]byte(line + "\n"))
}

func (s *session) writeErr(code ErrCode) {
	s.errCode = code
	s.nc.Write([]byte(nutproto.Join("ERR", string(code))))
}

// publishAudit is a thin Server convenience so handlers in other files
// don't need to reach into srv.audit directly.
func (s *Server) publishAudit(ev audit.Event) {
	if s.audit == nil {
		return
	}
	ev.Time = time.Now()
	s.audit.Publish(ev)
}
