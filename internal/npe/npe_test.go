package npe

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/networkupstools/nutd/internal/dsp"
	"github.com/networkupstools/nutd/internal/sss"
	"github.com/networkupstools/nutd/internal/statetree"
	"github.com/networkupstools/nutd/internal/users"
)

// testStack wires a real dsp.Driver, sss.Shadow+Supervisor, and npe.Server
// together over a Unix socket and a TCP listener, exercising the full
// driver -> shadow -> protocol path the way a real nutd deployment would.
type testStack struct {
	driver *dsp.Driver
	shadow *sss.Shadow
	srv    *Server
	addr   string
	stop   func()
}

func startStack(t *testing.T, npeAddr string) *testStack {
	t.Helper()
	dir := t.TempDir()
	sockPath := filepath.Join(dir, "dummy-0")

	driver := dsp.New("dummy", dsp.NoopHandler{})
	ctx, cancel := context.WithCancel(context.Background())

	dspErrCh := make(chan error, 1)
	go func() { dspErrCh <- driver.Listen(ctx, sockPath) }()

	waitFor(t, func() bool {
		_, err := os.Stat(sockPath)
		return err == nil
	})

	driver.SetInfo("ups.status", "OL")
	driver.SetInfo("battery.charge", "90")
	driver.SetInfo("input.transfer.low", "90")
	driver.SetFlags("input.transfer.low", statetree.FlagRW|statetree.FlagNumber)
	driver.AddRange("input.transfer.low", statetree.Range{Min: 85, Max: 95})
	driver.SetInfo("input.sensitivity", "normal")
	driver.SetFlags("input.sensitivity", statetree.FlagRW|statetree.FlagString)
	driver.AddEnum("input.sensitivity", "normal")
	driver.AddEnum("input.sensitivity", "reduced")
	driver.AddEnum("input.sensitivity", "low")
	driver.AddCmd("test.battery.start.quick")
	driver.DataOK()

	shadow := sss.NewShadow("ups1", sockPath)
	supervisor := sss.NewSupervisor([]*sss.Shadow{shadow}, 15*time.Second)
	go supervisor.Run(ctx)

	waitFor(t, func() bool { return shadow.DumpDone() })

	usersPath := filepath.Join(dir, "upsd.users")
	if err := os.WriteFile(usersPath, []byte(`
[admin]
password = secret
actions = SET FSD
instcmds = ALL

[readonly]
password = watch
`), 0600); err != nil {
		t.Fatal(err)
	}
	userStore := users.NewStore()
	if err := userStore.Load(usersPath); err != nil {
		t.Fatalf("load users: %v", err)
	}

	srv := NewServer([]UPSEntry{{Name: "ups1", Description: "Test UPS", Shadow: shadow}}, userStore, nil, 2*time.Second)

	npeErrCh := make(chan error, 1)
	npeCtx, npeCancel := context.WithCancel(ctx)
	go func() { npeErrCh <- srv.ListenAndServe(npeCtx, npeAddr) }()
	waitFor(t, func() bool {
		nc, err := net.DialTimeout("tcp", npeAddr, 50*time.Millisecond)
		if err != nil {
			return false
		}
		nc.Close()
		return true
	})

	return &testStack{
		driver: driver,
		shadow: shadow,
		srv:    srv,
		addr:   npeAddr,
		stop: func() {
			npeCancel()
			<-npeErrCh
			cancel()
			<-dspErrCh
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

// client is a tiny line-oriented test client.
type client struct {
	t  *testing.T
	nc net.Conn
	r  *bufio.Scanner
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	nc, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return &client{t: t, nc: nc, r: bufio.NewScanner(nc)}
}

func (c *client) send(line string) {
	c.t.Helper()
	if _, err := c.nc.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *client) read() string {
	c.t.Helper()
	c.nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	if !c.r.Scan() {
		c.t.Fatalf("read: %v", c.r.Err())
	}
	return c.r.Text()
}

func (c *client) login(username, password, ups string) {
	c.t.Helper()
	c.send("USERNAME " + username)
	if got := c.read(); got != "OK" {
		c.t.Fatalf("USERNAME: got %q", got)
	}
	c.send("PASSWORD " + password)
	if got := c.read(); got != "OK" {
		c.t.Fatalf("PASSWORD: got %q", got)
	}
	c.send("LOGIN " + ups)
	if got := c.read(); got != "OK" {
		c.t.Fatalf("LOGIN: got %q", got)
	}
}

func TestLoginFlowAndGetVar(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34931")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()
	c.login("admin", "secret", "ups1")

	c.send("GET VAR ups1 ups.status")
	if got, want := c.read(), `VAR ups1 ups.status "OL"`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPasswordMismatchDeniesAccess(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34932")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()
	c.send("USERNAME admin")
	c.read()
	c.send("PASSWORD wrong")
	if got, want := c.read(), "ERR ACCESS-DENIED"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestListVarFraming(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34933")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()

	c.send("LIST VAR ups1")
	if got, want := c.read(), "BEGIN LIST VAR ups1"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	var lines []string
	for {
		line := c.read()
		if line == "END LIST VAR ups1" {
			break
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		t.Error("expected at least one VAR line")
	}
}

func TestSetRWVariableWithinRange(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34934")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()
	c.login("admin", "secret", "ups1")

	c.send("SET VAR ups1 input.transfer.low 92")
	if got, want := c.read(), "OK"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSetRejectsOutOfRange(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34935")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()
	c.login("admin", "secret", "ups1")

	c.send("SET VAR ups1 input.transfer.low 999")
	if got, want := c.read(), "ERR INVALID-ARGUMENT"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSetRejectsEnumViolation(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34936")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()
	c.login("admin", "secret", "ups1")

	c.send("SET VAR ups1 input.sensitivity high")
	if got, want := c.read(), "ERR INVALID-ARGUMENT"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSetDeniedWithoutSetAction(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34937")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()
	c.login("readonly", "watch", "ups1")

	c.send("SET VAR ups1 input.transfer.low 92")
	if got, want := c.read(), "ERR ACCESS-DENIED"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInstCmdDispatchesThroughShadow(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34938")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()
	c.login("admin", "secret", "ups1")

	c.send("INSTCMD ups1 test.battery.start.quick")
	if got, want := c.read(), "OK"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestInstCmdUnsupportedCommand(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34939")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()
	c.login("admin", "secret", "ups1")

	c.send("INSTCMD ups1 no.such.command")
	if got, want := c.read(), "ERR CMD-NOT-SUPPORTED"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFSDProjection(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34940")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()
	c.login("admin", "secret", "ups1")

	c.send("FSD ups1")
	if got, want := c.read(), "OK"; got != want {
		t.Fatalf("FSD: got %q, want %q", got, want)
	}

	c.send("GET VAR ups1 ups.status")
	if got, want := c.read(), `VAR ups1 ups.status "FSD OL"`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUnknownUPS(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34941")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()

	c.send("GET VAR nosuchups ups.status")
	if got, want := c.read(), "ERR UNKNOWN-UPS"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAlreadyLoggedIn(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34942")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()
	c.login("admin", "secret", "ups1")

	c.send("LOGIN ups1")
	if got, want := c.read(), "ERR ALREADY-LOGGED-IN"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNetVerAndVer(t *testing.T) {
	stack := startStack(t, "127.0.0.1:34943")
	defer stack.stop()

	c := dial(t, stack.addr)
	defer c.nc.Close()

	c.send("NETVER")
	if got := c.read(); got != ProtocolVersion {
		t.Errorf("NETVER got %q, want %q", got, ProtocolVersion)
	}
	c.send("VER")
	if got := c.read(); got != DaemonVersion {
		t.Errorf("VER got %q, want %q", got, DaemonVersion)
	}
}
