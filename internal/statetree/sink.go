package statetree

// EventSink receives one call for every successful mutation a Store
// applies, mirroring the send_to_all() call sites scattered through
// drivers/dstate.c: every function in there that changes dtree_root or
// cmdhead also immediately fans the same change out to every connected
// socket. Store plays that role generically — a mutation is applied once
// under lock, then reported to the sink after the lock is released.
//
// Method names carry an On prefix to keep them visually distinct from the
// identically-purposed Store methods (Store.SetInfo triggers
// EventSink.OnSetInfo, not the other way around).
//
// internal/dsp implements EventSink to turn tree mutations into DSP wire
// events for every connection accepted on the driver socket.
// internal/sss uses NopSink: a shadow's mutations are themselves driven by
// parsing the driver's wire stream, so re-announcing them would be an echo,
// not a notification.
type EventSink interface {
	OnSetInfo(name, safeValue string)
	OnDelInfo(name string)
	OnAddEnum(name, safeValue string)
	OnDelEnum(name, safeValue string)
	OnAddRange(name string, r Range)
	OnDelRange(name string, r Range)
	OnSetAux(name string, aux int)
	OnSetFlags(name string, flags Flag)
	OnAddCmd(name string)
	OnDelCmd(name string)
	OnDataOK()
	OnDataStale()
}

// NopSink discards every event. It is the zero value callers reach for
// when a Store's mutations must not be broadcast anywhere.
type NopSink struct{}

func (NopSink) OnSetInfo(string, string) {}
func (NopSink) OnDelInfo(string)         {}
func (NopSink) OnAddEnum(string, string) {}
func (NopSink) OnDelEnum(string, string) {}
func (NopSink) OnAddRange(string, Range) {}
func (NopSink) OnDelRange(string, Range) {}
func (NopSink) OnSetAux(string, int)     {}
func (NopSink) OnSetFlags(string, Flag)  {}
func (NopSink) OnAddCmd(string)          {}
func (NopSink) OnDelCmd(string)          {}
func (NopSink) OnDataOK()                {}
func (NopSink) OnDataStale()             {}
