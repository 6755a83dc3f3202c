package dsp

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/networkupstools/nutd/internal/logging"
	"github.com/networkupstools/nutd/internal/metrics"
	"github.com/networkupstools/nutd/internal/statetree"
	"github.com/networkupstools/nutd/pkg/nutproto"
)

// conn is one accepted DSP socket connection. It runs a reader goroutine
// (parses inbound lines, dispatches DUMPALL/PING/INSTCMD/SET) and a writer
// goroutine (drains the bounded outbound channel Driver.broadcast and
// DUMPALL both feed), mirroring struct conn_t plus sock_read/sock_arg/
// send_to_one from drivers/dstate.c without the cooperative select loop:
// each connection gets its own pair of goroutines instead of being
// multiplexed by hand over one fd_set.
type conn struct {
	nc     net.Conn
	driver *Driver
	out    chan string
	quit   chan struct{}

	closeOnce sync.Once
}

func newConn(nc net.Conn, d *Driver) *conn {
	return &conn{
		nc:     nc,
		driver: d,
		out:    make(chan string, outboundBuffer),
		quit:   make(chan struct{}),
	}
}

// serve runs both the reader and writer loop and blocks until the
// connection closes, for either reason.
func (c *conn) serve() {
	c.driver.addConn(c)

	done := make(chan struct{})
	go func() {
		c.writeLoop()
		close(done)
	}()

	c.readLoop()

	c.closeLocked()
	<-done
	c.driver.removeConn(c)
}

func (c *conn) writeLoop() {
	for {
		select {
		case line := <-c.out:
			if _, err := c.nc.Write([]byte(line)); err != nil {
				logging.Debug("dsp: write to %s failed: %v", c.nc.RemoteAddr(), err)
				c.closeLocked()
				return
			}
		case <-c.quit:
			return
		}
	}
}

func (c *conn) readLoop() {
	scanner := bufio.NewScanner(c.nc)
	for scanner.Scan() {
		args, err := nutproto.Tokenize(scanner.Text())
		if err != nil {
			logging.Info("dsp: parse error on socket: %v", err)
			return
		}
		if len(args) == 0 {
			continue
		}
		c.dispatch(args)
	}
}

// dispatch is sock_arg: DUMPALL, PING, INSTCMD <cmd> [value], SET <var>
// <value>. An unrecognized line is logged at notice level, matching
// "Unknown command on socket", and otherwise ignored.
func (c *conn) dispatch(args []string) {
	verb := strings.ToUpper(args[0])

	switch verb {
	case "DUMPALL":
		c.dumpAll()

	case "PING":
		c.send(nutproto.Join("PONG"))

	case "INSTCMD":
		if len(args) < 2 {
			logging.Info("dsp: malformed INSTCMD on socket: %v", args)
			return
		}
		var arg *string
		if len(args) > 2 {
			arg = &args[2]
		}
		if err := c.driver.handler.InstCmd(args[1], arg); err != nil {
			logging.Info("dsp: INSTCMD %s: %v", args[1], err)
		}

	case "SET":
		if len(args) < 3 {
			logging.Info("dsp: malformed SET on socket: %v", args)
			return
		}
		if err := c.driver.handler.SetVar(args[1], args[2]); err != nil {
			logging.Info("dsp: SET %s: %v", args[1], err)
		}

	default:
		logging.Info("dsp: unknown command on socket: %v", args)
	}
}

// dumpAll replies with the full DATASTALE/SETINFO/ADDENUM/SETAUX/
// SETFLAGS/ADDCMD/DATAOK/DUMPDONE sequence of spec.md scenario S1. It holds
// the driver's mutation lock for the whole reply, so no concurrent mutation
// can change the tree mid-dump or interleave its broadcast line into it.
func (c *conn) dumpAll() {
	c.driver.mu.Lock()
	defer c.driver.mu.Unlock()

	stale := c.driver.store.IsStale()
	if stale {
		c.send(nutproto.Join("DATASTALE"))
	}

	c.driver.store.Dump(func(v statetree.Variable) {
		c.send(nutproto.Join("SETINFO", v.Name, v.SafeValue))
		for _, e := range v.EnumList {
			c.send(nutproto.Join("ADDENUM", v.Name, e))
		}
		if v.Aux != nil {
			c.send(nutproto.Join("SETAUX", v.Name, fmt.Sprint(*v.Aux)))
		}
		if v.Flags != 0 {
			c.send(nutproto.Join("SETFLAGS", v.Name, v.Flags.String()))
		}
		for _, r := range v.RangeList {
			c.send(nutproto.Join("ADDRANGE", v.Name, fmt.Sprint(r.Min), fmt.Sprint(r.Max)))
		}
	})

	for _, cmd := range c.driver.store.EnumerateCmds() {
		c.send(nutproto.Join("ADDCMD", cmd))
	}

	if !stale {
		c.send(nutproto.Join("DATAOK"))
	}
	c.send(nutproto.Join("DUMPDONE"))
}

func (c *conn) send(line string) {
	select {
	case c.out <- line:
	default:
		logging.Debug("dsp: dropping slow connection during DUMPALL, outbound buffer full")
		metrics.DSPBroadcastDrops.WithLabelValues(c.driver.name).Inc()
		c.closeLocked()
	}
}

// closeLocked closes the underlying connection and signals quit, which
// unblocks readLoop (scanner hits EOF/closed-fd) and writeLoop (the quit
// case fires) without ever closing c.out — closing a channel that
// broadcast or dumpAll might still be sending on concurrently would panic.
func (c *conn) closeLocked() {
	c.closeOnce.Do(func() {
		_ = c.nc.Close()
		close(c.quit)
	})
}
