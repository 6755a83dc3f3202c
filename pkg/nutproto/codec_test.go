package nutproto

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"OL",
		"Smart-UPS 1500",
		`hello "world"`,
		`back\slash`,
		"normal",
		"a=b",
		"",
	}

	for _, raw := range cases {
		wire := Encode(raw)
		got := Decode(wire)
		if got != raw {
			t.Errorf("Decode(Encode(%q)) = %q, want %q", raw, got, raw)
		}
	}
}

func TestEncodeNoQuotingWhenUnnecessary(t *testing.T) {
	if got := Encode("87"); got != "87" {
		t.Errorf("Encode(87) = %q, want unquoted 87", got)
	}
	if got := Encode("OL"); got != "OL" {
		t.Errorf("Encode(OL) = %q, want unquoted OL", got)
	}
}

func TestEncodeQuotesOnWhitespace(t *testing.T) {
	got := Encode("Smart-UPS 1500")
	want := `"Smart-UPS 1500"`
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestEncodeEscapesQuotesAndBackslashes(t *testing.T) {
	got := Encode(`hello "world"`)
	want := `"hello \"world\""`
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestEncodeQuotesOnEquals(t *testing.T) {
	got := Encode("a=b")
	want := `"a=b"`
	if got != want {
		t.Errorf("Encode(a=b) = %q, want %q", got, want)
	}
}
