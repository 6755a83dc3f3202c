package npe

import (
	"fmt"

	"github.com/networkupstools/nutd/internal/statetree"
)

// handleGet dispatches GET VAR/TYPE/DESC/CMDDESC/NUMLOGINS/UPSDESC, each a
// single-value query answered without the BEGIN/END framing LIST uses.
func (s *session) handleGet(args []string) {
	if len(args) < 2 {
		s.writeErr(ErrInvalidArgument)
		return
	}
	typ, upsName := args[0], args[1]

	entry, ok := s.srv.lookupUPS(upsName)
	if !ok {
		s.writeErr(ErrUnknownUPS)
		return
	}

	switch lower(typ) {
	case "var":
		if len(args) < 3 {
			s.writeErr(ErrInvalidArgument)
			return
		}
		s.getVar(entry, args[2])
	case "type":
		if len(args) < 3 {
			s.writeErr(ErrInvalidArgument)
			return
		}
		s.getType(entry, args[2])
	case "desc":
		if len(args) < 3 {
			s.writeErr(ErrInvalidArgument)
			return
		}
		s.getDesc(entry, args[2])
	case "cmddesc":
		if len(args) < 3 {
			s.writeErr(ErrInvalidArgument)
			return
		}
		s.getCmdDesc(entry, args[2])
	case "numlogins":
		s.writeLine(fmt.Sprintf("NUMLOGINS %s %d", entry.Name, s.srv.numLogins(lower(entry.Name))))
	case "upsdesc":
		desc := entry.Description
		if desc == "" {
			desc = "Description unavailable"
		}
		s.writeLine(fmt.Sprintf("UPSDESC %s \"%s\"", entry.Name, escapeQuoted(desc)))
	default:
		s.writeErr(ErrInvalidArgument)
	}
}

func (s *session) getVar(entry *UPSEntry, varName string) {
	if entry.Shadow.Store().IsStale() {
		s.writeErr(ErrDataStale)
		return
	}
	value, ok := entry.Shadow.GetInfo(varName)
	if !ok {
		s.writeErr(ErrVarNotSupported)
		return
	}
	s.writeRaw("VAR", entry.Name, varName, value)
}

func (s *session) getType(entry *UPSEntry, varName string) {
	v, ok := entry.Shadow.Store().GetVariable(varName)
	if !ok {
		s.writeErr(ErrVarNotSupported)
		return
	}
	typeStr := v.Flags.String()
	if v.Flags&statetree.FlagString != 0 && v.Aux != nil {
		typeStr = fmt.Sprintf("%s:%d", typeStr, *v.Aux)
	}
	s.writeLine(fmt.Sprintf("TYPE %s %s %s", entry.Name, varName, typeStr))
}

// getDesc and getCmdDesc answer with a constant placeholder: the
// human-readable variable/command description tables are a static docs
// artifact (docs/nut-names.txt in the original) out of this spec's scope,
// the same "no description configured" fallback list_ups uses for a UPS
// with no desc.
func (s *session) getDesc(entry *UPSEntry, varName string) {
	if _, ok := entry.Shadow.Store().GetVariable(varName); !ok {
		s.writeErr(ErrVarNotSupported)
		return
	}
	s.writeLine(fmt.Sprintf("DESC %s %s \"Description unavailable\"", entry.Name, varName))
}

func (s *session) getCmdDesc(entry *UPSEntry, cmdName string) {
	if !entry.Shadow.Store().HasCmd(cmdName) {
		s.writeErr(ErrCmdNotSupported)
		return
	}
	s.writeLine(fmt.Sprintf("CMDDESC %s %s \"Description unavailable\"", entry.Name, cmdName))
}
