package statetree

// Range is one inclusive [Min, Max] bound accepted by SET for a numeric
// RW variable, mirroring struct range_t in include/state.h.
type Range struct {
	Min int
	Max int
}

// Contains reports whether v falls within the inclusive bound.
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}
