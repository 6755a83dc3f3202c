package users

import (
	"os"
	"path/filepath"
	"testing"
)

func writeUsersFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upsd.users")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndAuthenticate(t *testing.T) {
	path := writeUsersFile(t, `
[admin]
password = secret
actions = SET FSD
instcmds = ALL
upsmon = primary

[monuser]
password = watch
upsmon = secondary
`)

	s := NewStore()
	if err := s.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !s.Authenticate("admin", "secret") {
		t.Error("expected admin/secret to authenticate")
	}
	if s.Authenticate("admin", "wrong") {
		t.Error("expected wrong password to fail")
	}
	if s.Authenticate("nobody", "x") {
		t.Error("expected unknown user to fail")
	}
}

func TestAuthorizeSetAndFSD(t *testing.T) {
	path := writeUsersFile(t, `
[admin]
password = secret
actions = SET FSD

[monuser]
password = watch
`)
	s := NewStore()
	if err := s.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !s.AuthorizeSet("admin") {
		t.Error("admin should be authorized for SET")
	}
	if s.AuthorizeSet("monuser") {
		t.Error("monuser should not be authorized for SET")
	}
	if !s.AuthorizeFSD("admin") {
		t.Error("admin should be authorized for FSD")
	}
}

func TestAuthorizeInstCmdAllVsWhitelist(t *testing.T) {
	path := writeUsersFile(t, `
[admin]
password = secret
instcmds = ALL

[limited]
password = x
instcmds = test.battery.start.quick
`)
	s := NewStore()
	if err := s.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !s.AuthorizeInstCmd("admin", "anything.at.all") {
		t.Error("ALL should authorize any instcmd")
	}
	if !s.AuthorizeInstCmd("limited", "test.battery.start.quick") {
		t.Error("whitelisted instcmd should be authorized")
	}
	if s.AuthorizeInstCmd("limited", "other.cmd") {
		t.Error("non-whitelisted instcmd should be denied")
	}
}

func TestRoleNormalizesLegacyAliases(t *testing.T) {
	path := writeUsersFile(t, `
[a]
password = x
upsmon = master

[b]
password = x
upsmon = slave

[c]
password = x
upsmon = primary
`)
	s := NewStore()
	if err := s.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Role("a"); got != RolePrimary {
		t.Errorf("Role(a) = %q, want primary (legacy master alias)", got)
	}
	if got := s.Role("b"); got != RoleSecondary {
		t.Errorf("Role(b) = %q, want secondary (legacy slave alias)", got)
	}
	if got := s.Role("c"); got != RolePrimary {
		t.Errorf("Role(c) = %q, want primary", got)
	}
}

func TestLoadMalformedFileLeavesPreviousSnapshot(t *testing.T) {
	path := writeUsersFile(t, `
[admin]
password = secret
`)
	s := NewStore()
	if err := s.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// ini.v1 is forgiving about most malformed input, so exercise the
	// documented contract directly: loading a nonexistent path must fail
	// and must not clear the existing snapshot.
	if err := s.Load(filepath.Join(t.TempDir(), "missing.users")); err == nil {
		t.Fatal("expected error loading a nonexistent file")
	}
	if !s.Authenticate("admin", "secret") {
		t.Error("previous snapshot should survive a failed reload")
	}
}
