package sss

import (
	"net"
	"testing"

	"github.com/networkupstools/nutd/pkg/nutproto"
)

func TestApplyLineSetInfoAndDataOK(t *testing.T) {
	s := NewShadow("ups1", "/tmp/unused")
	s.feed([]byte(nutproto.Join("SETINFO", "ups.status", "OL")))
	s.feed([]byte(nutproto.Join("DATAOK")))

	value, ok := s.GetInfo("ups.status")
	if !ok || value != "OL" {
		t.Fatalf("GetInfo = %q, %v", value, ok)
	}
	if s.Store().IsStale() {
		t.Error("expected store to be fresh after DATAOK")
	}
}

func TestApplyLineAcrossPartialReads(t *testing.T) {
	s := NewShadow("ups1", "/tmp/unused")
	full := nutproto.Join("SETINFO", "battery.charge", "90")
	s.feed([]byte(full[:5]))
	s.feed([]byte(full[5:]))

	value, ok := s.GetInfo("battery.charge")
	if !ok || value != "90" {
		t.Fatalf("GetInfo = %q, %v", value, ok)
	}
}

func TestApplyLineDumpDone(t *testing.T) {
	s := NewShadow("ups1", "/tmp/unused")
	if s.DumpDone() {
		t.Fatal("expected DumpDone false before DUMPDONE")
	}
	s.feed([]byte(nutproto.Join("DUMPDONE")))
	if !s.DumpDone() {
		t.Error("expected DumpDone true after DUMPDONE")
	}
}

func TestApplyLineDataStale(t *testing.T) {
	s := NewShadow("ups1", "/tmp/unused")
	s.feed([]byte(nutproto.Join("DATAOK")))
	s.feed([]byte(nutproto.Join("DATASTALE")))
	if !s.Store().IsStale() {
		t.Error("expected store stale after DATASTALE")
	}
}

func TestApplyLineUnknownVerbIgnored(t *testing.T) {
	s := NewShadow("ups1", "/tmp/unused")
	s.feed([]byte("BOGUS foo bar\n"))
	if _, ok := s.GetInfo("foo"); ok {
		t.Error("expected unknown verb to have no effect")
	}
}

func TestForceShutdownProjectsStatusOnly(t *testing.T) {
	s := NewShadow("ups1", "/tmp/unused")
	s.feed([]byte(nutproto.Join("SETINFO", "ups.status", "OL")))
	s.feed([]byte(nutproto.Join("SETINFO", "battery.charge", "90")))
	s.ForceShutdown()

	status, _ := s.GetInfo("ups.status")
	if status != "FSD OL" {
		t.Errorf("ups.status = %q, want %q", status, "FSD OL")
	}
	charge, _ := s.GetInfo("battery.charge")
	if charge != "90" {
		t.Errorf("battery.charge = %q, want unaffected by FSD", charge)
	}
}

func TestSendCommandErrorsWhenNotConnected(t *testing.T) {
	s := NewShadow("ups1", "/tmp/unused")
	if err := s.SendCommand("SET foo bar\n"); err != ErrNotConnected {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestSendCommandWritesToConn(t *testing.T) {
	s := NewShadow("ups1", "/tmp/unused")
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	s.conn = client

	done := make(chan string, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		done <- string(buf[:n])
	}()

	if err := s.SendCommand(nutproto.Join("SET", "ups.test", "1")); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	if got, want := <-done, "SET ups.test 1\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
