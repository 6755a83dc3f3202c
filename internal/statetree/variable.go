package statetree

// Variable is one named entry of a State Tree (spec.md section 4.A),
// equivalent to struct st_tree_t in common/state.c. Name keeps the casing
// it was first SETINFO'd with; lookups against a Store are case-insensitive
// (see Store's doc comment for the reasoning).
type Variable struct {
	Name      string
	RawValue  string
	SafeValue string
	Flags     Flag
	Aux       *int
	EnumList  []string
	RangeList []Range
}

// clone returns a value copy safe to hand to a caller outside the Store's
// lock, including independent backing arrays for EnumList/RangeList.
func (v *Variable) clone() Variable {
	out := *v
	if v.Aux != nil {
		aux := *v.Aux
		out.Aux = &aux
	}
	if v.EnumList != nil {
		out.EnumList = append([]string(nil), v.EnumList...)
	}
	if v.RangeList != nil {
		out.RangeList = append([]Range(nil), v.RangeList...)
	}
	return out
}
