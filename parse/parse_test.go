package parse

import (
	"strings"
	"testing"

	"github.com/hpctrace/clustertrace/gpuset"
	"github.com/hpctrace/clustertrace/sample"
)

func TestSplitFieldsQuoted(t *testing.T) {
	got, err := splitFields(`a,"b,c","d""e",`)
	if err != nil {
		t.Fatalf("splitFields: %v", err)
	}
	want := []string{"a", "b,c", `d"e`, ""}
	if len(got) != len(want) {
		t.Fatalf("splitFields = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitFieldsUnterminatedQuote(t *testing.T) {
	if _, err := splitFields(`a,"b`); err == nil {
		t.Errorf("splitFields(unterminated quote) = nil error, want error")
	}
}

func TestParseTaggedRecord(t *testing.T) {
	pool := sample.NewPool()
	line := "v=0.7.1,time=2024-01-01T00:00:00Z,host=ml1.cluster,user=alice,cmd=python3,pid=100,job=42,cores=16,cpu%=50.0,cputime_sec=120.5,\"gpus=0,1\",gpu%=10,gpumem%=5,rolledup=0\n"
	discarded, err := Parse(strings.NewReader(line), pool)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if discarded != 0 {
		t.Fatalf("discarded = %d, want 0", discarded)
	}
	if len(pool.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(pool.Entries))
	}
	e := pool.Entries[0]
	if pool.Host(e) != "ml1.cluster" || pool.User(e) != "alice" || pool.Command(e) != "python3" {
		t.Errorf("identity fields wrong: host=%q user=%q cmd=%q", pool.Host(e), pool.User(e), pool.Command(e))
	}
	if e.Pid != 100 || e.JobID != 42 || e.NumCores != 16 {
		t.Errorf("pid/job/cores = %d/%d/%d, want 100/42/16", e.Pid, e.JobID, e.NumCores)
	}
	if e.CPUPct != 50.0 || e.CPUTimeSec != 120.5 {
		t.Errorf("cpu%%/cputime = %v/%v, want 50/120.5", e.CPUPct, e.CPUTimeSec)
	}
	if want, _ := gpuset.Parse("0,1"); e.GPUs.String() != want.String() {
		t.Errorf("gpus = %v, want %v", e.GPUs, want)
	}
}

func TestParseUnknownTagIgnored(t *testing.T) {
	pool := sample.NewPool()
	line := "v=0.7.1,time=2024-01-01T00:00:00Z,host=ml1,user=alice,cmd=py,future_tag=xyz\n"
	discarded, err := Parse(strings.NewReader(line), pool)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if discarded != 0 || len(pool.Entries) != 1 {
		t.Errorf("discarded=%d entries=%d, want 0/1", discarded, len(pool.Entries))
	}
}

func TestParseMalformedFieldDropsLine(t *testing.T) {
	pool := sample.NewPool()
	line := "v=0.7.1,time=2024-01-01T00:00:00Z,host=ml1,user=alice,cmd=py,cores=not-a-number\n"
	discarded, err := Parse(strings.NewReader(line), pool)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if discarded != 1 || len(pool.Entries) != 0 {
		t.Errorf("discarded=%d entries=%d, want 1/0", discarded, len(pool.Entries))
	}
}

func TestParseMissingMandatoryFieldDropsLine(t *testing.T) {
	pool := sample.NewPool()
	line := "v=0.7.1,time=2024-01-01T00:00:00Z,host=ml1\n"
	discarded, _ := Parse(strings.NewReader(line), pool)
	if discarded != 1 || len(pool.Entries) != 0 {
		t.Errorf("discarded=%d entries=%d, want 1/0", discarded, len(pool.Entries))
	}
}

func TestParseBlankLineDiscarded(t *testing.T) {
	pool := sample.NewPool()
	discarded, _ := Parse(strings.NewReader("\n"), pool)
	if discarded != 1 {
		t.Errorf("discarded = %d, want 1", discarded)
	}
}

func TestParseUntaggedEightColumn(t *testing.T) {
	pool := sample.NewPool()
	line := "2024-01-01T00:00:00Z,ml1.cluster,8,alice,42,python3,50.0,1048576\n"
	discarded, err := Parse(strings.NewReader(line), pool)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if discarded != 0 || len(pool.Entries) != 1 {
		t.Fatalf("discarded=%d entries=%d, want 0/1", discarded, len(pool.Entries))
	}
	e := pool.Entries[0]
	if e.Version != sample.UntaggedVersion {
		t.Errorf("version = %v, want %v", e.Version, sample.UntaggedVersion)
	}
	if e.Pid != 42 || e.JobID != 42 {
		t.Errorf("pid/job = %d/%d, want 42/42 (untagged pid derives from job id)", e.Pid, e.JobID)
	}
	if e.MemGB != 1.0 {
		t.Errorf("mem_gb = %v, want 1.0 (1048576 KiB = 1 GiB)", e.MemGB)
	}
}

func TestParseUntaggedWrongColumnCountDropped(t *testing.T) {
	pool := sample.NewPool()
	line := "2024-01-01T00:00:00Z,ml1.cluster,8,alice,42,python3,50.0,1048576,0\n"
	discarded, _ := Parse(strings.NewReader(line), pool)
	if discarded != 1 {
		t.Errorf("discarded = %d, want 1 (9 untagged columns is not 8/12/13)", discarded)
	}
}

func TestParseMixedTaggedAndUntaggedLines(t *testing.T) {
	pool := sample.NewPool()
	input := "v=0.7.1,time=2024-01-01T00:00:00Z,host=ml1,user=alice,cmd=py\n" +
		"2024-01-01T00:01:00Z,ml2.cluster,4,bob,7,sleep,10.0,2097152\n"
	discarded, err := Parse(strings.NewReader(input), pool)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if discarded != 0 || len(pool.Entries) != 2 {
		t.Fatalf("discarded=%d entries=%d, want 0/2", discarded, len(pool.Entries))
	}
}
