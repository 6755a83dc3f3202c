package npe

import (
	"github.com/networkupstools/nutd/internal/audit"
	"github.com/networkupstools/nutd/pkg/nutproto"
)

// handleInstCmd implements INSTCMD <ups> <cmd> [<arg>]. The acknowledgement
// is sent immediately after a successful dispatch to the driver, not after
// any driver-side confirmation — spec.md section 8's Open Question (3)
// resolution, since pre-TRACKING servers have no reliable signal for the
// latter.
func (s *session) handleInstCmd(args []string) {
	if len(args) < 2 {
		s.writeErr(ErrInvalidArgument)
		return
	}
	if !s.authed {
		s.writeErr(ErrAccessDenied)
		return
	}

	upsName, cmdName := args[0], args[1]
	entry, ok := s.srv.lookupUPS(upsName)
	if !ok {
		s.writeErr(ErrUnknownUPS)
		return
	}
	if !s.srv.users.AuthorizeInstCmd(s.username, cmdName) {
		s.writeErr(ErrAccessDenied)
		return
	}
	if !entry.Shadow.Store().HasCmd(cmdName) {
		s.writeErr(ErrCmdNotSupported)
		return
	}
	if !entry.Shadow.Connected() {
		s.writeErr(ErrDriverNotConnected)
		return
	}

	line := nutproto.Join("INSTCMD", cmdName)
	if len(args) > 2 {
		line = nutproto.Join("INSTCMD", cmdName, args[2])
	}
	if err := entry.Shadow.SendCommand(line); err != nil {
		s.srv.publishAudit(audit.Event{Verb: "INSTCMD", Username: s.username, UPS: entry.Name, Detail: "cmd=" + cmdName, Outcome: "INSTCMD-FAILED"})
		s.writeErr(ErrInstCmdFailed)
		return
	}

	s.srv.publishAudit(audit.Event{Verb: "INSTCMD", Username: s.username, UPS: entry.Name, Detail: "cmd=" + cmdName, Outcome: "ok"})
	s.writeLine("OK")
}
