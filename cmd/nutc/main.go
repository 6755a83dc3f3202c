// Command nutc is a line-protocol client (the upsc/upscmd equivalent): it
// dials a running nutd, authenticates if needed, and issues one protocol
// request per invocation.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/alecthomas/kong"
)

// cliContext is threaded through every subcommand's Run, the teacher's
// cmd.Boot-style "Run(ctx) error" shape generalized to carry connection
// parameters instead of a domain.Context.
type cliContext struct {
	conn *protoConn
}

var cli struct {
	Host     string `default:"127.0.0.1" help:"nutd host"`
	Port     int    `default:"3493" help:"nutd port"`
	Username string `help:"username for LOGIN-gated commands (SET, INSTCMD, FSD)"`
	Password string `help:"password for LOGIN-gated commands"`
	Timeout  int    `default:"5" help:"connection and read timeout in seconds"`

	List List `cmd:"" help:"list variables, commands, or connected UPSes"`
	Get  Get  `cmd:"" help:"get a single variable's value"`
	Set  Set  `cmd:"" help:"set a variable (requires --username/--password)"`
	Cmd  Cmd  `cmd:"" help:"dispatch an instant command (requires --username/--password)"`
}

func main() {
	ktx := kong.Parse(&cli)

	pc, err := dial(cli.Host, cli.Port, time.Duration(cli.Timeout)*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nutc: %v\n", err)
		os.Exit(1)
	}
	defer pc.Close()

	if err := ktx.Run(&cliContext{conn: pc}); err != nil {
		fmt.Fprintf(os.Stderr, "nutc: %v\n", err)
		os.Exit(1)
	}
}

// protoConn is a thin line-oriented wrapper over the TCP connection,
// sharing the read-a-line/write-a-line shape internal/npe's session uses
// on the server side.
type protoConn struct {
	nc      net.Conn
	scanner *bufio.Scanner
	timeout time.Duration
}

func dial(host string, port int, timeout time.Duration) (*protoConn, error) {
	nc, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s:%d: %w", host, port, err)
	}
	return &protoConn{nc: nc, scanner: bufio.NewScanner(nc), timeout: timeout}, nil
}

func (p *protoConn) Close() error { return p.nc.Close() }

func (p *protoConn) send(line string) error {
	_, err := p.nc.Write([]byte(line + "\n"))
	return err
}

func (p *protoConn) readLine() (string, error) {
	p.nc.SetReadDeadline(time.Now().Add(p.timeout))
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("connection closed by server")
	}
	return p.scanner.Text(), nil
}

// request sends line and returns the single reply line, surfacing an
// ERR reply as a Go error.
func (p *protoConn) request(line string) (string, error) {
	if err := p.send(line); err != nil {
		return "", err
	}
	reply, err := p.readLine()
	if err != nil {
		return "", err
	}
	if len(reply) >= 4 && reply[:4] == "ERR " {
		return "", fmt.Errorf("%s", reply[4:])
	}
	return reply, nil
}

// readUntilEnd collects lines up to (not including) the first line
// starting with "END ", the framing every LIST response closes with.
func (p *protoConn) readUntilEnd() ([]string, error) {
	var lines []string
	for {
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}
		if len(line) >= 4 && line[:4] == "END " {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// login authenticates if credentials were supplied; SET/INSTCMD/FSD fail
// against the server's own ACL check otherwise.
func login(p *protoConn, ups string) error {
	if cli.Username == "" {
		return nil
	}
	if _, err := p.request("USERNAME " + cli.Username); err != nil {
		return err
	}
	if _, err := p.request("PASSWORD " + cli.Password); err != nil {
		return err
	}
	if ups != "" {
		if _, err := p.request("LOGIN " + ups); err != nil {
			return err
		}
	}
	return nil
}
