// Package audit publishes a record of every privileged client action the
// Network Protocol Engine processes (SET, INSTCMD, FSD, LOGIN) onto a
// cskr/pubsub hub, decoupling protocol handling from whatever consumes the
// audit trail, the same separation the teacher draws between its
// collectors and the API/MQTT consumers of domain.Context.Hub
// (daemon/domain/context.go).
package audit

import (
	"time"

	"github.com/cskr/pubsub"

	"github.com/networkupstools/nutd/internal/logging"
)

// Topic is the single pubsub topic every audit Event is published on.
// internal/npe has no reason to fan events out across multiple topics: a
// subscriber that only cares about INSTCMDs filters on Event.Verb itself.
const Topic = "audit"

// hubCapacity bounds how many buffered messages a slow subscriber can fall
// behind by before Pub starts blocking the publishing goroutine.
const hubCapacity = 64

// Event records one privileged action taken by a client connection.
type Event struct {
	Time     time.Time
	Verb     string // "SET", "INSTCMD", "FSD", "LOGIN"
	Username string
	UPS      string
	Detail   string // e.g. "var=input.transfer.low value=92", "cmd=test.battery.start.quick"
	Outcome  string // "ok" or an ERR code
}

// Hub wraps a pubsub.PubSub scoped to audit events.
type Hub struct {
	ps *pubsub.PubSub
}

// NewHub creates a Hub and starts a logging subscriber on it.
func NewHub() *Hub {
	h := &Hub{ps: pubsub.New(hubCapacity)}
	go h.logSubscriber()
	return h
}

// Publish sends ev to every subscriber. Publish never blocks the caller
// for longer than the hub's buffer allows; a subscriber that falls behind
// does not stall the Network Protocol Engine connection that triggered ev.
func (h *Hub) Publish(ev Event) {
	h.ps.Pub(ev, Topic)
}

// Subscribe returns a channel receiving every future Event.
func (h *Hub) Subscribe() chan interface{} {
	return h.ps.Sub(Topic)
}

// Unsubscribe removes ch and closes it.
func (h *Hub) Unsubscribe(ch chan interface{}) {
	h.ps.Unsub(ch, Topic)
}

// Shutdown closes every subscriber channel and stops the hub.
func (h *Hub) Shutdown() {
	h.ps.Shutdown()
}

// logSubscriber is the hub's built-in consumer: every audit event is
// logged at info level regardless of whether anything else is listening.
func (h *Hub) logSubscriber() {
	ch := h.ps.Sub(Topic)
	for msg := range ch {
		ev, ok := msg.(Event)
		if !ok {
			continue
		}
		logging.Info("audit: %s user=%s ups=%s outcome=%s %s",
			ev.Verb, ev.Username, ev.UPS, ev.Outcome, ev.Detail)
	}
}
