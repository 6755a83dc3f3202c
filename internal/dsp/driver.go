// Package dsp implements the Driver-Side State Publisher (spec.md section
// 4.B): a driver process owns one statetree.Store and serves it over a
// Unix-domain socket, broadcasting every mutation to every connected
// reader (the NPE-to-driver bridge in internal/sss, or any other local
// client of the socket) and relaying client-initiated SET/INSTCMD back to the
// embedding driver program through a Handler.
//
// It is grounded on drivers/dstate.c: sock_open/sock_fail/sock_connect
// become Listen's net.Listener setup, send_to_all/send_to_one become a
// Driver broadcasting to per-connection outbound channels instead of
// iterating a connhead linked list, and sock_arg/sock_read become a
// per-connection reader goroutine built on pkg/nutproto.
package dsp

import (
	"fmt"
	"sync"

	"github.com/networkupstools/nutd/internal/logging"
	"github.com/networkupstools/nutd/internal/metrics"
	"github.com/networkupstools/nutd/internal/statetree"
	"github.com/networkupstools/nutd/pkg/nutproto"
)

// outboundBuffer bounds how much unread broadcast data a Driver will queue
// for a single slow connection before giving up on it (spec.md section 5:
// "an implementation may instead buffer up to a bounded amount of outbound
// data per connection, but it must bound it"). The original achieves the
// same effect implicitly: a short write anywhere in send_to_all tears the
// connection down immediately.
const outboundBuffer = 256

// Driver owns one state tree and command list and answers DUMPALL/PING/
// INSTCMD/SET over every connection accepted on its socket.
type Driver struct {
	name    string
	handler Handler

	// mu serializes every exported mutation method with the broadcast
	// it triggers, so two goroutines calling SetInfo concurrently can
	// never have their OnSetInfo broadcasts interleaved out of the
	// order the mutations themselves were applied in (spec.md section
	// 5's per-connection ordering guarantee).
	mu          sync.Mutex
	store       *statetree.Store
	alarmActive bool

	connsMu sync.Mutex
	conns   map[*conn]struct{}
}

// New creates a Driver named name (used only for logging) whose client
// SET/INSTCMD requests are relayed to handler. Pass dsp.NoopHandler{} for
// a driver that does not support either.
func New(name string, handler Handler) *Driver {
	d := &Driver{
		name:    name,
		handler: handler,
		conns:   make(map[*conn]struct{}),
	}
	d.store = statetree.NewStore(d)
	return d
}

// SetInfo creates or updates a variable and broadcasts SETINFO to every
// connection.
func (d *Driver) SetInfo(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.SetInfo(name, value)
}

// SetInfof is the fmt.Sprintf-driven convenience dstate_setinfo offered in
// the original, used heavily by status_commit/alarm_commit.
func (d *Driver) SetInfof(name, format string, args ...any) {
	d.SetInfo(name, fmt.Sprintf(format, args...))
}

// DelInfo removes a variable. A missing variable is logged, not treated as
// a caller error: drivers occasionally race a poll against their own
// teardown path (section 7 class 1, protocol/input error, notice level).
func (d *Driver) DelInfo(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.DelInfo(name); err != nil {
		logging.Info("%s: DelInfo %s: %v", d.name, name, err)
	}
}

// AddEnum appends an enumerated value to a variable's legal set.
func (d *Driver) AddEnum(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.AddEnum(name, value); err != nil {
		logging.Info("%s: AddEnum %s: %v", d.name, name, err)
	}
}

// DelEnum removes an enumerated value from a variable's legal set.
func (d *Driver) DelEnum(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.DelEnum(name, value); err != nil {
		logging.Info("%s: DelEnum %s: %v", d.name, name, err)
	}
}

// AddRange appends a numeric bound to a variable's legal range.
func (d *Driver) AddRange(name string, r statetree.Range) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.AddRange(name, r); err != nil {
		logging.Info("%s: AddRange %s: %v", d.name, name, err)
	}
}

// DelRange removes a numeric bound from a variable's legal range.
func (d *Driver) DelRange(name string, r statetree.Range) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.DelRange(name, r); err != nil {
		logging.Info("%s: DelRange %s: %v", d.name, name, err)
	}
}

// SetAux records the auxiliary integer for a variable.
func (d *Driver) SetAux(name string, aux int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.SetAux(name, aux); err != nil {
		logging.Info("%s: SetAux %s: %v", d.name, name, err)
	}
}

// SetFlags overwrites a variable's flag mask.
func (d *Driver) SetFlags(name string, flags statetree.Flag) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.SetFlags(name, flags); err != nil {
		logging.Info("%s: SetFlags %s: %v", d.name, name, err)
	}
}

// AddCmd registers an instant command.
func (d *Driver) AddCmd(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.AddCmd(name)
}

// DelCmd removes an instant command.
func (d *Driver) DelCmd(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.DelCmd(name); err != nil {
		logging.Info("%s: DelCmd %s: %v", d.name, name, err)
	}
}

// DataOK marks the tree fresh (a successful poll landed).
func (d *Driver) DataOK() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.DataOK()
}

// DataStale marks the tree stale (the most recent poll failed).
func (d *Driver) DataStale() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.DataStale()
}

// Status returns a fresh StatusBuilder for assembling the next ups.status
// commit.
func (d *Driver) Status() *StatusBuilder { return &StatusBuilder{} }

// Alarm returns a fresh AlarmBuilder for assembling the next ups.alarm
// commit.
func (d *Driver) Alarm() *AlarmBuilder { return &AlarmBuilder{} }

// --- statetree.EventSink ---
//
// These are invoked by Store synchronously from inside the exported
// methods above, while d.mu is still held, which is what gives broadcast
// order the same serialization as mutation order.

func (d *Driver) OnSetInfo(name, safeValue string) {
	d.broadcast(nutproto.Join("SETINFO", name, safeValue))
}

func (d *Driver) OnDelInfo(name string) {
	d.broadcast(nutproto.Join("DELINFO", name))
}

func (d *Driver) OnAddEnum(name, safeValue string) {
	d.broadcast(nutproto.Join("ADDENUM", name, safeValue))
}

func (d *Driver) OnDelEnum(name, safeValue string) {
	d.broadcast(nutproto.Join("DELENUM", name, safeValue))
}

func (d *Driver) OnAddRange(name string, r statetree.Range) {
	d.broadcast(nutproto.Join("ADDRANGE", name, fmt.Sprint(r.Min), fmt.Sprint(r.Max)))
}

func (d *Driver) OnDelRange(name string, r statetree.Range) {
	d.broadcast(nutproto.Join("DELRANGE", name, fmt.Sprint(r.Min), fmt.Sprint(r.Max)))
}

func (d *Driver) OnSetAux(name string, aux int) {
	d.broadcast(nutproto.Join("SETAUX", name, fmt.Sprint(aux)))
}

func (d *Driver) OnSetFlags(name string, flags statetree.Flag) {
	d.broadcast(nutproto.Join("SETFLAGS", name, flags.String()))
}

func (d *Driver) OnAddCmd(name string) {
	d.broadcast(nutproto.Join("ADDCMD", name))
}

func (d *Driver) OnDelCmd(name string) {
	d.broadcast(nutproto.Join("DELCMD", name))
}

func (d *Driver) OnDataOK() {
	d.broadcast(nutproto.Join("DATAOK"))
}

func (d *Driver) OnDataStale() {
	d.broadcast(nutproto.Join("DATASTALE"))
}

// broadcast is the Go rendering of send_to_all: every connection gets the
// line queued on its outbound channel; a connection whose channel is
// already full is dropped rather than allowed to stall the driver, the
// same outcome the original gets from a short write.
func (d *Driver) broadcast(line string) {
	d.connsMu.Lock()
	defer d.connsMu.Unlock()
	for c := range d.conns {
		select {
		case c.out <- line:
		default:
			logging.Debug("%s: dropping slow connection, outbound buffer full", d.name)
			metrics.DSPBroadcastDrops.WithLabelValues(d.name).Inc()
			c.closeLocked()
			delete(d.conns, c)
		}
	}
}

// setInfoLocked and delInfoLocked are the StatusBuilder/AlarmBuilder
// entry points: callers must already hold d.mu, letting a status or alarm
// commit read-then-write d.alarmActive atomically with the SetInfo/DelInfo
// call it accompanies.
func (d *Driver) setInfoLocked(name, value string) { d.store.SetInfo(name, value) }

func (d *Driver) delInfoLocked(name string) {
	if err := d.store.DelInfo(name); err != nil {
		logging.Info("%s: DelInfo %s: %v", d.name, name, err)
	}
}

func (d *Driver) addConn(c *conn) {
	d.connsMu.Lock()
	d.conns[c] = struct{}{}
	d.connsMu.Unlock()
	metrics.DSPConnections.WithLabelValues(d.name).Inc()
}

func (d *Driver) removeConn(c *conn) {
	d.connsMu.Lock()
	delete(d.conns, c)
	d.connsMu.Unlock()
	metrics.DSPConnections.WithLabelValues(d.name).Dec()
}
