// Package statetree implements the State Tree and Command List of spec.md
// section 4.A: a case-insensitive, enumerable, typed variable store keyed
// by dotted names such as ups.status or battery.charge. It is grounded on
// common/state.c and include/state.h, reshaped from that file's linked-list
// st_tree_t/cmdlist_t plus free-standing state_setinfo()/state_addcmd()
// function family into a single Go type, Store, with methods.
//
// A Store never performs I/O and knows nothing about sockets or wire
// framing; it reports every successful mutation to an injected EventSink
// instead. internal/dsp and internal/sss both wrap a Store to give it a
// socket on one side and a sink on the other.
package statetree

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/networkupstools/nutd/pkg/nutproto"
)

// ErrNotFound is returned by operations that require an existing variable
// or command and did not find one.
var ErrNotFound = errors.New("statetree: not found")

// Store holds one State Tree and its associated Command List, plus the
// "data is fresh" flag STAT_DATAOK/STAT_DATASTALE toggles in the original.
//
// Lookups are case-insensitive: NUT drivers have never been fully
// consistent about the casing of variable names across releases, and
// spec.md's design notes standardize on case-insensitive equality
// everywhere rather than perpetuating the original's mixed strcmp /
// strcasecmp call sites. The casing a name is first SETINFO'd or ADDCMD'd
// with is preserved for display and is what later gets sent back out on
// the wire.
//
// A Store is safe for concurrent use: internal/sss dereferences a shadow's
// Store from the NPE goroutines serving LIST/GET while the shadow's own
// supervisor goroutine concurrently mutates it as driver data arrives.
// internal/dsp additionally relies on Dump taking a read lock across the
// whole snapshot so a DUMPALL reply can never observe a mutation applied
// mid-dump (spec.md section 5's DUMPALL self-consistency property).
type Store struct {
	mu sync.RWMutex

	varOrder []string // lowercase keys, insertion order
	vars     map[string]*Variable

	cmdOrder []string          // lowercase keys, insertion order
	cmds     map[string]string // lowercase -> original casing

	stale bool
	sink  EventSink
}

// NewStore returns an empty Store reporting mutations to sink. Pass
// NopSink{} if mutations should not be broadcast anywhere. A freshly
// created Store starts in the stale state, matching dstate.c's dstate_init
// which leaves DATAOK unset until the driver explicitly calls
// dstate_dataok() after its first successful poll.
func NewStore(sink EventSink) *Store {
	if sink == nil {
		sink = NopSink{}
	}
	return &Store{
		vars:  make(map[string]*Variable),
		cmds:  make(map[string]string),
		stale: true,
		sink:  sink,
	}
}

// SetInfo creates or updates a variable's value. A duplicate write (the new
// value equals the old) leaves flags, aux, and enum/range metadata
// untouched and is still reported to the sink, matching dstate.c's
// state_setinfo: every SETINFO call is forwarded to connected sockets
// regardless of whether the value actually changed, since a client's
// UPS_DATA cache is refreshed by the presence of the message, not by
// a delta.
func (s *Store) SetInfo(name, value string) {
	key := strings.ToLower(name)
	safe := nutproto.Encode(value)

	s.mu.Lock()
	v, ok := s.vars[key]
	if !ok {
		v = &Variable{Name: name}
		s.vars[key] = v
		s.varOrder = append(s.varOrder, key)
	}
	v.RawValue = value
	v.SafeValue = safe
	s.mu.Unlock()

	s.sink.OnSetInfo(v.Name, safe)
}

// DelInfo removes a variable entirely, including its enum and range lists.
func (s *Store) DelInfo(name string) error {
	key := strings.ToLower(name)

	s.mu.Lock()
	v, ok := s.vars[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("statetree: del_info %q: %w", name, ErrNotFound)
	}
	delete(s.vars, key)
	s.varOrder = removeString(s.varOrder, key)
	s.mu.Unlock()

	s.sink.OnDelInfo(v.Name)
	return nil
}

// GetInfo returns the current raw value of a variable.
func (s *Store) GetInfo(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return v.RawValue, true
}

// GetVariable returns a copy of the full variable record, including its
// flags, aux, and enum/range lists.
func (s *Store) GetVariable(name string) (Variable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[strings.ToLower(name)]
	if !ok {
		return Variable{}, false
	}
	return v.clone(), true
}

// AddEnum appends a value to a variable's enumeration list if it is not
// already present. The variable must already exist (state_addenum in the
// original silently no-ops on a missing node; this Store reports an error
// instead, since internal/dsp treats a malformed driver stream as a
// protocol-level input error per spec.md section 7).
func (s *Store) AddEnum(name, value string) error {
	safe := nutproto.Encode(value)
	key := strings.ToLower(name)

	s.mu.Lock()
	v, ok := s.vars[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("statetree: add_enum %q: %w", name, ErrNotFound)
	}
	for _, e := range v.EnumList {
		if e == safe {
			s.mu.Unlock()
			return nil
		}
	}
	v.EnumList = append(v.EnumList, safe)
	s.mu.Unlock()

	s.sink.OnAddEnum(v.Name, safe)
	return nil
}

// DelEnum removes a value from a variable's enumeration list.
func (s *Store) DelEnum(name, value string) error {
	safe := nutproto.Encode(value)
	key := strings.ToLower(name)

	s.mu.Lock()
	v, ok := s.vars[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("statetree: del_enum %q: %w", name, ErrNotFound)
	}
	idx := -1
	for i, e := range v.EnumList {
		if e == safe {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	v.EnumList = append(v.EnumList[:idx], v.EnumList[idx+1:]...)
	s.mu.Unlock()

	s.sink.OnDelEnum(v.Name, safe)
	return nil
}

// AddRange appends a numeric bound to a variable's range list.
func (s *Store) AddRange(name string, r Range) error {
	key := strings.ToLower(name)

	s.mu.Lock()
	v, ok := s.vars[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("statetree: add_range %q: %w", name, ErrNotFound)
	}
	for _, existing := range v.RangeList {
		if existing == r {
			s.mu.Unlock()
			return nil
		}
	}
	v.RangeList = append(v.RangeList, r)
	s.mu.Unlock()

	s.sink.OnAddRange(v.Name, r)
	return nil
}

// DelRange removes a numeric bound from a variable's range list.
func (s *Store) DelRange(name string, r Range) error {
	key := strings.ToLower(name)

	s.mu.Lock()
	v, ok := s.vars[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("statetree: del_range %q: %w", name, ErrNotFound)
	}
	idx := -1
	for i, existing := range v.RangeList {
		if existing == r {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	v.RangeList = append(v.RangeList[:idx], v.RangeList[idx+1:]...)
	s.mu.Unlock()

	s.sink.OnDelRange(v.Name, r)
	return nil
}

// SetFlags replaces a variable's flag mask outright, mirroring
// state_setflags' full overwrite (as opposed to an OR-in) semantics.
func (s *Store) SetFlags(name string, flags Flag) error {
	key := strings.ToLower(name)

	s.mu.Lock()
	v, ok := s.vars[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("statetree: set_flags %q: %w", name, ErrNotFound)
	}
	v.Flags = flags
	s.mu.Unlock()

	s.sink.OnSetFlags(v.Name, flags)
	return nil
}

// SetAux records the auxiliary integer NUT drivers use for things like
// the maximum length of a STRING variable, which GET TYPE reports as
// STRING:<aux>.
func (s *Store) SetAux(name string, aux int) error {
	key := strings.ToLower(name)

	s.mu.Lock()
	v, ok := s.vars[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("statetree: set_aux %q: %w", name, ErrNotFound)
	}
	v.Aux = &aux
	s.mu.Unlock()

	s.sink.OnSetAux(v.Name, aux)
	return nil
}

// AddCmd registers an instant command name. Duplicates (case-insensitive)
// are silently ignored, matching state_addcmd.
func (s *Store) AddCmd(name string) {
	key := strings.ToLower(name)

	s.mu.Lock()
	if _, exists := s.cmds[key]; exists {
		s.mu.Unlock()
		return
	}
	s.cmds[key] = name
	s.cmdOrder = append(s.cmdOrder, key)
	s.mu.Unlock()

	s.sink.OnAddCmd(name)
}

// DelCmd removes an instant command name.
func (s *Store) DelCmd(name string) error {
	key := strings.ToLower(name)

	s.mu.Lock()
	original, ok := s.cmds[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("statetree: del_cmd %q: %w", name, ErrNotFound)
	}
	delete(s.cmds, key)
	s.cmdOrder = removeString(s.cmdOrder, key)
	s.mu.Unlock()

	s.sink.OnDelCmd(original)
	return nil
}

// HasCmd reports whether an instant command is registered.
func (s *Store) HasCmd(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cmds[strings.ToLower(name)]
	return ok
}

// DataOK marks the tree as carrying fresh driver data (spec.md section 4.B
// DATAOK, dstate_dataok in the original).
func (s *Store) DataOK() {
	s.mu.Lock()
	s.stale = false
	s.mu.Unlock()
	s.sink.OnDataOK()
}

// DataStale marks the tree as stale, the state a fresh connection starts
// in and a driver falls back to between polls that fail (DATASTALE,
// dstate_datastale).
func (s *Store) DataStale() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
	s.sink.OnDataStale()
}

// IsStale reports the current DATAOK/DATASTALE state.
func (s *Store) IsStale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// Enumerate returns every variable in insertion order. The slice and the
// Variables within it are independent copies safe to use after the call
// returns.
func (s *Store) Enumerate() []Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Variable, 0, len(s.varOrder))
	for _, key := range s.varOrder {
		out = append(out, s.vars[key].clone())
	}
	return out
}

// EnumerateCmds returns every instant command name in insertion order,
// in its originally registered casing.
func (s *Store) EnumerateCmds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.cmdOrder))
	for _, key := range s.cmdOrder {
		out = append(out, s.cmds[key])
	}
	return out
}

// Dump invokes fn once per variable, holding a single read lock across the
// entire pass, so a concurrent mutation cannot be interleaved partway
// through — the property a DUMPALL reply depends on (spec.md section 5).
func (s *Store) Dump(fn func(Variable)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.varOrder {
		fn(s.vars[key].clone())
	}
}

// Reset clears every variable and command, used by internal/sss when a
// shadow reconnects to its driver and must discard stale state before the
// replayed DUMPALL repopulates it.
func (s *Store) Reset() {
	s.mu.Lock()
	s.vars = make(map[string]*Variable)
	s.varOrder = nil
	s.cmds = make(map[string]string)
	s.cmdOrder = nil
	s.stale = true
	s.mu.Unlock()
}

func removeString(list []string, target string) []string {
	for i, v := range list {
		if v == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
