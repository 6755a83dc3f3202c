package dsp

import "strings"

// StatusBuilder assembles the next ups.status value from space-separated
// tokens, the Go shape of status_init/status_set/status_commit in
// drivers/dstate.c. A zero-value StatusBuilder is ready to use; Driver.Status
// exists only for symmetry with AlarmBuilder and discoverability.
type StatusBuilder struct {
	tokens []string
}

// Add appends a status token (e.g. "OL", "LB", "CHRG").
func (b *StatusBuilder) Add(token string) {
	b.tokens = append(b.tokens, token)
}

// Commit writes the assembled tokens to ups.status, prefixed with ALARM if
// the driver's most recent AlarmBuilder.Commit left an alarm active
// (spec.md section 3: "the non-empty alarm string causes ups.status to be
// emitted as ALARM <status-tokens> instead of bare <status-tokens>").
func (b *StatusBuilder) Commit(d *Driver) {
	joined := strings.Join(b.tokens, " ")

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.alarmActive {
		d.setInfoLocked("ups.status", "ALARM "+joined)
	} else {
		d.setInfoLocked("ups.status", joined)
	}
}

// AlarmBuilder assembles the next ups.alarm value the same way
// StatusBuilder assembles ups.status, mirroring alarm_init/alarm_set/
// alarm_commit.
type AlarmBuilder struct {
	tokens []string
}

// Add appends an alarm token (e.g. "Replace battery").
func (b *AlarmBuilder) Add(token string) {
	b.tokens = append(b.tokens, token)
}

// Commit writes the assembled tokens to ups.alarm and records the alarm
// as active for the next StatusBuilder.Commit, or — if no tokens were
// added — removes ups.alarm entirely and clears the active flag
// (spec.md section 3: "Empty alarm commit removes ups.alarm entirely").
func (b *AlarmBuilder) Commit(d *Driver) {
	joined := strings.Join(b.tokens, " ")

	d.mu.Lock()
	defer d.mu.Unlock()
	if joined == "" {
		d.delInfoLocked("ups.alarm")
		d.alarmActive = false
		return
	}
	d.setInfoLocked("ups.alarm", joined)
	d.alarmActive = true
}
