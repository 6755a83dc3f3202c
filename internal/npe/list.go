package npe

import (
	"fmt"

	"github.com/networkupstools/nutd/internal/statetree"
)

// handleList dispatches every LIST subcommand, framing each response as
// BEGIN LIST ... / END LIST ... per spec.md section 4.D, grounded on
// server/netlist.c's net_list/list_var/list_rw/list_cmd/list_enum/
// list_range/list_ups/list_clients family.
func (s *session) handleList(args []string) {
	if len(args) < 1 {
		s.writeErr(ErrInvalidArgument)
		return
	}
	typ := args[0]

	if lower(typ) == "ups" {
		s.listUPS()
		return
	}

	if len(args) < 2 {
		s.writeErr(ErrInvalidArgument)
		return
	}
	upsName := args[1]
	entry, ok := s.srv.lookupUPS(upsName)
	if !ok {
		s.writeErr(ErrUnknownUPS)
		return
	}

	switch lower(typ) {
	case "var":
		s.listVar(entry, false)
	case "rw":
		s.listVar(entry, true)
	case "cmd":
		s.listCmd(entry)
	case "client":
		s.listClient(entry)
	case "enum":
		if len(args) < 3 {
			s.writeErr(ErrInvalidArgument)
			return
		}
		s.listEnum(entry, args[2])
	case "range":
		if len(args) < 3 {
			s.writeErr(ErrInvalidArgument)
			return
		}
		s.listRange(entry, args[2])
	default:
		s.writeErr(ErrInvalidArgument)
	}
}

func (s *session) listUPS() {
	s.writeLine("BEGIN LIST UPS")
	for _, key := range s.srv.order {
		e := s.srv.ups[key]
		desc := e.Description
		if desc == "" {
			desc = "Description unavailable"
		}
		s.writeLine(fmt.Sprintf("UPS %s \"%s\"", e.Name, escapeQuoted(desc)))
	}
	s.writeLine("END LIST UPS")
}

func (s *session) listVar(entry *UPSEntry, rwOnly bool) {
	verb := "LIST VAR " + entry.Name
	if rwOnly {
		verb = "LIST RW " + entry.Name
	}
	s.writeLine("BEGIN " + verb)

	for _, v := range entry.Shadow.Store().Enumerate() {
		if rwOnly && v.Flags&statetree.FlagRW == 0 {
			continue
		}
		value := v.RawValue
		if fsdValue, ok := entry.Shadow.GetInfo(v.Name); ok {
			value = fsdValue
		}
		tag := "VAR"
		if rwOnly {
			tag = "RW"
		}
		s.writeRaw(tag, entry.Name, v.Name, value)
	}
	s.writeLine("END " + verb)
}

func (s *session) listCmd(entry *UPSEntry) {
	s.writeLine("BEGIN LIST CMD " + entry.Name)
	for _, cmd := range entry.Shadow.Store().EnumerateCmds() {
		s.writeLine(fmt.Sprintf("CMD %s %s", entry.Name, cmd))
	}
	s.writeLine("END LIST CMD " + entry.Name)
}

func (s *session) listClient(entry *UPSEntry) {
	key := lower(entry.Name)
	s.writeLine("BEGIN LIST CLIENT " + entry.Name)
	for _, addr := range s.srv.loggedInAddrs(key) {
		s.writeLine(fmt.Sprintf("CLIENT %s %s", entry.Name, addr))
	}
	s.writeLine("END LIST CLIENT " + entry.Name)
}

func (s *session) listEnum(entry *UPSEntry, varName string) {
	v, ok := entry.Shadow.Store().GetVariable(varName)
	if !ok {
		s.writeErr(ErrVarNotSupported)
		return
	}
	verb := fmt.Sprintf("LIST ENUM %s %s", entry.Name, varName)
	s.writeLine("BEGIN " + verb)
	for _, e := range v.EnumList {
		s.writeRaw("ENUM", entry.Name, varName, e)
	}
	s.writeLine("END " + verb)
}

func (s *session) listRange(entry *UPSEntry, varName string) {
	v, ok := entry.Shadow.Store().GetVariable(varName)
	if !ok {
		s.writeErr(ErrVarNotSupported)
		return
	}
	verb := fmt.Sprintf("LIST RANGE %s %s", entry.Name, varName)
	s.writeLine("BEGIN " + verb)
	for _, r := range v.RangeList {
		s.writeLine(fmt.Sprintf("RANGE %s %s \"%d\" \"%d\"", entry.Name, varName, r.Min, r.Max))
	}
	s.writeLine("END " + verb)
}

// writeRaw writes "<tag> <ups> <var> <quoted value>", the shape shared by
// VAR/RW/ENUM lines in server/netlist.c's sendback calls.
func (s *session) writeRaw(tag, ups, varName, rawValue string) {
	s.writeLine(fmt.Sprintf("%s %s %s \"%s\"", tag, ups, varName, escapeQuoted(rawValue)))
}

// escapeQuoted escapes embedded backslashes and double quotes for a value
// that is always wrapped in quotes regardless of whether it needs them
// (several netlist.c lines always quote, unlike nutproto.Encode which
// quotes only when necessary).
func escapeQuoted(raw string) string {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == '"' || raw[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, raw[i])
	}
	return string(out)
}
