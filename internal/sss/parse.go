package sss

import (
	"strconv"
	"strings"

	"github.com/networkupstools/nutd/internal/logging"
	"github.com/networkupstools/nutd/internal/statetree"
	"github.com/networkupstools/nutd/pkg/nutproto"
)

// feed appends newly read bytes to the shadow's line buffer and parses
// every complete line found, the Go shape of sstate_sock_read's
// byte-at-a-time pconf_char loop reworked around bufio-style buffering
// instead: Go's net.Conn has no natural "parse one char at a time"
// primitive, and accumulating then splitting on '\n' is the idiomatic
// substitute while preserving the same externally observable behavior
// (each line is still applied to the tree in the order it arrived).
func (s *Shadow) feed(data []byte) {
	s.mu.Lock()
	s.readBuf = append(s.readBuf, data...)
	buf := s.readBuf
	s.mu.Unlock()

	for {
		idx := indexByte(buf, '\n')
		if idx < 0 {
			break
		}
		line := string(buf[:idx])
		buf = buf[idx+1:]
		s.applyLine(line)
	}

	s.mu.Lock()
	s.readBuf = append([]byte(nil), buf...)
	s.mu.Unlock()
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// applyLine parses one line of driver output and applies it to the
// shadow's local tree, mirroring parse_args in server/sstate.c.
func (s *Shadow) applyLine(line string) {
	args, err := nutproto.Tokenize(line)
	if err != nil {
		logging.Info("sss: UPS [%s]: parse error: %v", s.Name, err)
		return
	}
	if len(args) < 1 {
		return
	}

	verb := strings.ToUpper(args[0])
	store := s.store

	switch verb {
	case "PONG":
		logging.Debug("sss: UPS [%s]: got PONG", s.Name)

	case "DUMPDONE":
		s.mu.Lock()
		s.dumpDone = true
		s.mu.Unlock()
		logging.Debug("sss: UPS [%s]: dump is done", s.Name)

	case "DATASTALE":
		store.DataStale()

	case "DATAOK":
		store.DataOK()

	case "ADDCMD":
		if len(args) < 2 {
			return
		}
		store.AddCmd(args[1])

	case "DELCMD":
		if len(args) < 2 {
			return
		}
		_ = store.DelCmd(args[1])

	case "DELINFO":
		if len(args) < 2 {
			return
		}
		_ = store.DelInfo(args[1])

	case "SETFLAGS":
		if len(args) < 3 {
			return
		}
		flags, unknown := statetree.ParseFlags(args[2:])
		for _, tok := range unknown {
			logging.Debug("sss: UPS [%s]: unrecognized flag %q on %s", s.Name, tok, args[1])
		}
		_ = store.SetFlags(args[1], flags)

	case "SETINFO":
		if len(args) < 3 {
			return
		}
		store.SetInfo(args[1], args[2])

	case "ADDENUM":
		if len(args) < 3 {
			return
		}
		_ = store.AddEnum(args[1], args[2])

	case "DELENUM":
		if len(args) < 3 {
			return
		}
		_ = store.DelEnum(args[1], args[2])

	case "ADDRANGE":
		if len(args) < 4 {
			return
		}
		min, err1 := strconv.Atoi(args[2])
		max, err2 := strconv.Atoi(args[3])
		if err1 != nil || err2 != nil {
			return
		}
		_ = store.AddRange(args[1], statetree.Range{Min: min, Max: max})

	case "DELRANGE":
		if len(args) < 4 {
			return
		}
		min, err1 := strconv.Atoi(args[2])
		max, err2 := strconv.Atoi(args[3])
		if err1 != nil || err2 != nil {
			return
		}
		_ = store.DelRange(args[1], statetree.Range{Min: min, Max: max})

	case "SETAUX":
		if len(args) < 3 {
			return
		}
		aux, err := strconv.Atoi(args[2])
		if err != nil {
			return
		}
		_ = store.SetAux(args[1], aux)

	default:
		logging.Info("sss: UPS [%s]: unknown command from driver: %v", s.Name, args)
	}
}
