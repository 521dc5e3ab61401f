package sample

import (
	"testing"
	"time"
)

func TestTimestampRoundTrip(t *testing.T) {
	tm := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	ts := FromTime(tm)
	if got := ts.Time(); !got.Equal(tm) {
		t.Errorf("FromTime(%v).Time() = %v, want %v", tm, got, tm)
	}
}

func TestTimestampSub(t *testing.T) {
	a := Timestamp(100)
	b := Timestamp(70)
	if got := a.Sub(b); got != 30 {
		t.Errorf("Sub: got %d, want 30", got)
	}
}

func TestUnknownTimestamp(t *testing.T) {
	if UnknownTimestamp.Valid() {
		t.Errorf("UnknownTimestamp.Valid() = true, want false")
	}
	if Timestamp(0).String() == "<unknown>" {
		t.Errorf("Timestamp(0) should not be unknown")
	}
}

func TestPoolAddAndResolve(t *testing.T) {
	p := NewPool()
	e := &LogEntry{Time: 100, Pid: 42}
	p.Add(e, "ml1.cluster", "alice", "python3")
	if got := p.Host(e); got != "ml1.cluster" {
		t.Errorf("Host = %q, want ml1.cluster", got)
	}
	if got := p.User(e); got != "alice" {
		t.Errorf("User = %q, want alice", got)
	}
	if got := p.Command(e); got != "python3" {
		t.Errorf("Command = %q, want python3", got)
	}
	if len(p.Entries) != 1 || p.Entries[0] != e {
		t.Errorf("Entries = %v, want [e]", p.Entries)
	}
}

func TestKeyOfDistinguishesArtifacts(t *testing.T) {
	p := NewPool()
	e1 := &LogEntry{Pid: 1}
	e2 := &LogEntry{Pid: 2}
	p.Add(e1, "h", "u", "c")
	p.Add(e2, "h", "u", "c")
	if KeyOf(e1) == KeyOf(e2) {
		t.Errorf("KeyOf(e1) == KeyOf(e2), want distinct for different pids")
	}
}

func TestStreamKeyAndBounds(t *testing.T) {
	p := NewPool()
	e1 := &LogEntry{Pid: 1, Time: 10}
	e2 := &LogEntry{Pid: 1, Time: 20}
	p.Add(e1, "h", "u", "c")
	p.Add(e2, "h", "u", "c")
	s := Stream{e1, e2}
	if s.Key() != KeyOf(e1) {
		t.Errorf("Stream.Key() = %v, want %v", s.Key(), KeyOf(e1))
	}
	if s.First() != e1 || s.Last() != e2 {
		t.Errorf("First/Last mismatch")
	}
}

func TestBoundsMerge(t *testing.T) {
	p := NewPool()
	h := p.Bank.Intern("h1")
	a := Bounds{h: {Earliest: 10, Latest: 20}}
	b := Bounds{h: {Earliest: 5, Latest: 30}}
	merged := a.Merge(b)
	got := merged[h]
	if got.Earliest != 5 || got.Latest != 30 {
		t.Errorf("Merge = %+v, want {5 30}", got)
	}
}

func TestRollupBitDoesNotCollideWithPid(t *testing.T) {
	const maxLinuxPid = 1 << 22 // conservative upper bound on /proc/sys/kernel/pid_max
	if uint32(maxLinuxPid)&RollupBit != 0 {
		t.Errorf("RollupBit overlaps a plausible pid range")
	}
}
