package fold

import (
	"testing"
	"time"

	"github.com/hpctrace/clustertrace/gpuset"
	"github.com/hpctrace/clustertrace/sample"
)

func ts(s string) sample.Timestamp {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return sample.FromTime(t)
}

// TestFoldHourly is spec.md §8 end-to-end scenario 4: four records at
// 10:00, 10:30, 11:00, 11:30, each cpu_pct=50. Expect two folded records at
// 10:00 and 11:00, each with cpu_pct=50 (average of 2 samples per bucket).
func TestFoldHourly(t *testing.T) {
	s := sample.Stream{
		{Time: ts("2024-01-01T10:00:00Z"), CPUPct: 50, GPUs: gpuset.Empty()},
		{Time: ts("2024-01-01T10:30:00Z"), CPUPct: 50, GPUs: gpuset.Empty()},
		{Time: ts("2024-01-01T11:00:00Z"), CPUPct: 50, GPUs: gpuset.Empty()},
		{Time: ts("2024-01-01T11:30:00Z"), CPUPct: 50, GPUs: gpuset.Empty()},
	}
	out := Fold(s, Hour)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0].Time != ts("2024-01-01T10:00:00Z") || out[0].CPUPct != 50 {
		t.Errorf("out[0] = {%v %v}, want {10:00 50}", out[0].Time, out[0].CPUPct)
	}
	if out[1].Time != ts("2024-01-01T11:00:00Z") || out[1].CPUPct != 50 {
		t.Errorf("out[1] = {%v %v}, want {11:00 50}", out[1].Time, out[1].CPUPct)
	}
}

func TestFoldHalfHour(t *testing.T) {
	s := sample.Stream{
		{Time: ts("2024-01-01T10:05:00Z"), CPUPct: 10, GPUs: gpuset.Empty()},
		{Time: ts("2024-01-01T10:45:00Z"), CPUPct: 90, GPUs: gpuset.Empty()},
	}
	out := Fold(s, HalfHour)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
	if out[0].Time != ts("2024-01-01T10:00:00Z") {
		t.Errorf("out[0].Time = %v, want 10:00", out[0].Time)
	}
	if out[1].Time != ts("2024-01-01T10:30:00Z") {
		t.Errorf("out[1].Time = %v, want 10:30", out[1].Time)
	}
}

func TestFoldDayAndWeek(t *testing.T) {
	// 2024-01-01 is a Monday.
	s := sample.Stream{
		{Time: ts("2024-01-03T23:00:00Z"), CPUPct: 20, GPUs: gpuset.Empty()},
	}
	day := Fold(s, Day)
	if day[0].Time != ts("2024-01-03T00:00:00Z") {
		t.Errorf("Day bucket = %v, want 2024-01-03T00:00:00Z", day[0].Time)
	}
	week := Fold(s, Week)
	if week[0].Time != ts("2024-01-01T00:00:00Z") {
		t.Errorf("Week bucket = %v, want 2024-01-01T00:00:00Z (Monday)", week[0].Time)
	}
}

func TestFoldGPUUnion(t *testing.T) {
	gA, _ := gpuset.Singleton(0)
	gB, _ := gpuset.Singleton(1)
	s := sample.Stream{
		{Time: ts("2024-01-01T10:00:00Z"), GPUs: gA},
		{Time: ts("2024-01-01T10:05:00Z"), GPUs: gB},
	}
	out := Fold(s, Hour)
	if out[0].GPUs.String() != "0,1" {
		t.Errorf("GPUs = %v, want 0,1", out[0].GPUs)
	}
}
