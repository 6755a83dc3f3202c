package npe

import (
	"strconv"

	"github.com/networkupstools/nutd/internal/audit"
	"github.com/networkupstools/nutd/internal/statetree"
	"github.com/networkupstools/nutd/pkg/nutproto"
)

// handleSet implements SET VAR <ups> <var> <value>: existence, RW, and
// enum/range validation happen here before anything reaches the driver,
// spec.md property P6 — a rejected SET never generates a SET line on the
// DSP connection.
func (s *session) handleSet(args []string) {
	if len(args) < 4 || lower(args[0]) != "var" {
		s.writeErr(ErrInvalidArgument)
		return
	}
	if !s.authed || !s.srv.users.AuthorizeSet(s.username) {
		s.writeErr(ErrAccessDenied)
		return
	}

	upsName, varName, value := args[1], args[2], args[3]
	entry, ok := s.srv.lookupUPS(upsName)
	if !ok {
		s.writeErr(ErrUnknownUPS)
		return
	}

	if len(value) > maxValueLen {
		s.writeErr(ErrTooLong)
		return
	}

	v, ok := entry.Shadow.Store().GetVariable(varName)
	if !ok {
		s.writeErr(ErrVarNotSupported)
		return
	}
	if v.Flags&statetree.FlagRW == 0 {
		s.writeErr(ErrReadonly)
		return
	}
	if !validateValue(v, value) {
		s.writeErr(ErrInvalidArgument)
		return
	}

	if !entry.Shadow.Connected() {
		s.writeErr(ErrDriverNotConnected)
		return
	}
	if err := entry.Shadow.SendCommand(nutproto.Join("SET", v.Name, value)); err != nil {
		s.srv.publishAudit(audit.Event{Verb: "SET", Username: s.username, UPS: entry.Name, Detail: "var=" + v.Name, Outcome: "SET-FAILED"})
		s.writeErr(ErrSetFailed)
		return
	}

	s.srv.publishAudit(audit.Event{Verb: "SET", Username: s.username, UPS: entry.Name, Detail: "var=" + v.Name + " value=" + value, Outcome: "ok"})
	s.writeLine("OK")
}

// validateValue enforces enum_list and range_list membership when either
// is configured for v, spec.md section 4.D's "satisfies enum_list/
// range_list/length limits" SET precondition. A variable with neither
// constraint configured accepts any value up to maxValueLen.
func validateValue(v statetree.Variable, value string) bool {
	if len(v.EnumList) > 0 {
		safe := nutproto.Encode(value)
		for _, e := range v.EnumList {
			if e == safe {
				return true
			}
		}
		return false
	}
	if len(v.RangeList) > 0 {
		n, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		for _, r := range v.RangeList {
			if r.Contains(n) {
				return true
			}
		}
		return false
	}
	return true
}
