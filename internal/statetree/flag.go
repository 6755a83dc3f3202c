package statetree

import "strings"

// Flag is a bitmask of the per-variable attributes carried by SETFLAGS
// (spec.md section 4.A). It mirrors the ST_FLAG_* constants of
// include/state.h.
type Flag uint8

const (
	// FlagRW marks a variable settable by a client via SET (ST_FLAG_RW).
	FlagRW Flag = 1 << iota
	// FlagString marks a variable whose value is free-form text (ST_FLAG_STRING).
	FlagString
	// FlagNumber marks a variable whose value is numeric (ST_FLAG_NUMBER).
	FlagNumber
)

var flagNames = []struct {
	bit  Flag
	name string
}{
	{FlagRW, "RW"},
	{FlagString, "STRING"},
	{FlagNumber, "NUMBER"},
}

// String renders flags in the order the wire protocol lists them.
func (f Flag) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.bit != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, " ")
}

// ParseFlags recognizes the tokens of a SETFLAGS argument list, returning
// the resulting mask plus any tokens it did not recognize. Unrecognized
// tokens are not an error: a driver newer than this server may send flag
// names this build does not know about yet, and section 7's forward
// compatibility note says those get ignored with a debug log, not rejected.
func ParseFlags(tokens []string) (Flag, []string) {
	var f Flag
	var unknown []string
	for _, tok := range tokens {
		matched := false
		for _, fn := range flagNames {
			if strings.EqualFold(tok, fn.name) {
				f |= fn.bit
				matched = true
				break
			}
		}
		if !matched {
			unknown = append(unknown, tok)
		}
	}
	return f, unknown
}
