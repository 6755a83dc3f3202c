package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/networkupstools/nutd/internal/logging"
)

// dummyHandler implements dsp.Handler for the simulated UPS: SET just
// logs and accepts (there's no real hardware register to write to),
// and test.battery.start.quick/test.battery.stop flip an in-memory flag
// pollLoop reads back into ups.status.
type dummyHandler struct {
	mu           sync.Mutex
	testRunning  bool
	testStopTime time.Time
}

func newDummyHandler() *dummyHandler {
	return &dummyHandler{}
}

func (h *dummyHandler) SetVar(name, value string) error {
	logging.Info("nutdrv-dummy: SET %s = %q", name, value)
	return nil
}

func (h *dummyHandler) InstCmd(name string, arg *string) error {
	logging.Info("nutdrv-dummy: INSTCMD %s", name)
	switch name {
	case "test.battery.start.quick":
		h.mu.Lock()
		h.testRunning = true
		h.testStopTime = time.Now().Add(10 * time.Second)
		h.mu.Unlock()
		return nil
	case "test.battery.stop":
		h.mu.Lock()
		h.testRunning = false
		h.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("nutdrv-dummy: unsupported command %q", name)
	}
}

func (h *dummyHandler) batteryTestRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.testRunning && time.Now().After(h.testStopTime) {
		h.testRunning = false
	}
	return h.testRunning
}
