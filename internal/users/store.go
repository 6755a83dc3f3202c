// Package users implements the upsd users database: per-client credentials
// and ACLs loaded from an ini.v1-backed file, one section per username,
// grounded on the teacher's daemon/lib/parser.go (ini.Load + section/key
// walk) and reshaped around the password/actions/instcmds/upsmon shape
// spec.md section 4.D describes.
//
// A users file looks like:
//
//	[admin]
//	password = secret
//	actions = SET FSD
//	instcmds = ALL
//	upsmon = primary
//
//	[monuser]
//	password = something
//	upsmon = secondary
package users

import (
	"strings"
	"sync"

	"gopkg.in/ini.v1"
)

// Role is a user's upsmon role. The original accepts the legacy aliases
// master/slave on read; this package normalizes them to primary/secondary
// at load time so the rest of the program only ever sees the two
// canonical values.
type Role string

const (
	RoleNone      Role = ""
	RolePrimary   Role = "primary"
	RoleSecondary Role = "secondary"
)

func normalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "primary", "master":
		return RolePrimary
	case "secondary", "slave":
		return RoleSecondary
	default:
		return RoleNone
	}
}

// User is one upsd.users entry.
type User struct {
	Name     string
	Password string
	Actions  map[string]struct{} // e.g. "SET", "FSD"
	InstCmds map[string]struct{} // "ALL" or a whitelist of command names
	Role     Role
}

func (u *User) hasAction(action string) bool {
	_, ok := u.Actions[strings.ToUpper(action)]
	return ok
}

func (u *User) canInstCmd(cmd string) bool {
	if _, ok := u.InstCmds["ALL"]; ok {
		return true
	}
	_, ok := u.InstCmds[strings.ToUpper(cmd)]
	return ok
}

// Store holds the loaded users database and answers authentication and
// authorization queries. It is safe for concurrent use; Watcher replaces
// the whole snapshot under lock on every reload.
type Store struct {
	mu    sync.RWMutex
	users map[string]*User // lowercase username -> User
}

// NewStore returns an empty Store. Use Load to populate it.
func NewStore() *Store {
	return &Store{users: make(map[string]*User)}
}

// Load parses path and replaces the Store's contents atomically. A
// malformed file leaves the previous snapshot in place and returns the
// parse error, so a bad hot-reload edit never locks every client out.
func (s *Store) Load(path string) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}

	users := make(map[string]*User)
	for _, sec := range cfg.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		u := &User{
			Name:     sec.Name(),
			Password: sec.Key("password").String(),
			Actions:  toSet(sec.Key("actions").String()),
			InstCmds: toSet(sec.Key("instcmds").String()),
			Role:     normalizeRole(sec.Key("upsmon").String()),
		}
		users[strings.ToLower(u.Name)] = u
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	return nil
}

func toSet(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(raw) {
		tok = strings.ToUpper(tok)
		out[tok] = struct{}{}
	}
	return out
}

// Authenticate reports whether username/password matches a configured
// user, the NAMED->AUTHED transition of spec.md section 4.D.
func (s *Store) Authenticate(username, password string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(username)]
	return ok && u.Password == password
}

// AuthorizeSet reports whether username is permitted to issue SET VAR.
func (s *Store) AuthorizeSet(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(username)]
	return ok && u.hasAction("SET")
}

// AuthorizeFSD reports whether username is permitted to issue FSD.
func (s *Store) AuthorizeFSD(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(username)]
	return ok && u.hasAction("FSD")
}

// AuthorizeInstCmd reports whether username may issue the named instant
// command.
func (s *Store) AuthorizeInstCmd(username, cmd string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(username)]
	return ok && u.canInstCmd(cmd)
}

// Role returns the configured upsmon role for username, RoleNone if the
// user does not exist or has none set.
func (s *Store) Role(username string) Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return RoleNone
	}
	return u.Role
}
