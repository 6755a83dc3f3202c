package npe

import "github.com/networkupstools/nutd/internal/audit"

// handleFSD implements FSD <ups>: forces the named UPS's ups.status to
// display the FSD token for every subsequent read, spec.md scenario S6.
// It is a local, display-only flag on the shadow (internal/sss.Shadow.
// ForceShutdown) — it is not written back to the driver, mirroring the
// original's upsd-local fsd bit on upstype_t rather than a wire command.
func (s *session) handleFSD(args []string) {
	if len(args) < 1 {
		s.writeErr(ErrInvalidArgument)
		return
	}
	if !s.authed || !s.srv.users.AuthorizeFSD(s.username) {
		s.writeErr(ErrAccessDenied)
		return
	}

	entry, ok := s.srv.lookupUPS(args[0])
	if !ok {
		s.writeErr(ErrUnknownUPS)
		return
	}

	entry.Shadow.ForceShutdown()
	s.srv.publishAudit(audit.Event{Verb: "FSD", Username: s.username, UPS: entry.Name, Outcome: "ok"})
	s.writeLine("OK")
}
