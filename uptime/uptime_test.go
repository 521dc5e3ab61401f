package uptime

import (
	"testing"

	"github.com/hpctrace/clustertrace/gpuset"
	"github.com/hpctrace/clustertrace/sample"
)

func entry(pool *sample.Pool, host string, t sample.Timestamp, status gpuset.Status) *sample.LogEntry {
	e := &sample.LogEntry{Time: t, GPUs: gpuset.Empty(), GPUStatus: status}
	pool.Add(e, host, "u", "c")
	return e
}

// TestInferDetectsMidGap is spec.md §8 end-to-end scenario 5: records at
// t=0 and t=5 minutes apart (300s), sampling interval 1 minute (cutoff
// 120s). The 300s gap exceeds cutoff, so a down window should appear
// between the two up windows.
func TestInferDetectsMidGap(t *testing.T) {
	pool := sample.NewPool()
	entries := []*sample.LogEntry{
		entry(pool, "ml1", 0, gpuset.Ok),
		entry(pool, "ml1", 300, gpuset.Ok),
	}
	out := Infer(pool, entries, Params{IntervalMinutes: 1, From: 0, To: 301})

	var states []State
	for _, r := range out {
		if r.Device == DeviceHost {
			states = append(states, r.State)
		}
	}
	if len(states) != 3 || states[0] != Up || states[1] != Down || states[2] != Up {
		t.Fatalf("host states = %v, want [up down up]", states)
	}
}

func TestInferDownAtStartAndEnd(t *testing.T) {
	pool := sample.NewPool()
	entries := []*sample.LogEntry{
		entry(pool, "ml1", 1000, gpuset.Ok),
		entry(pool, "ml1", 1010, gpuset.Ok),
	}
	out := Infer(pool, entries, Params{IntervalMinutes: 1, From: 0, To: 2000})

	var hostStates []State
	for _, r := range out {
		if r.Device == DeviceHost {
			hostStates = append(hostStates, r.State)
		}
	}
	if len(hostStates) != 3 || hostStates[0] != Down || hostStates[1] != Up || hostStates[2] != Down {
		t.Fatalf("host states = %v, want [down up down]", hostStates)
	}
}

func TestInferGPUTransitions(t *testing.T) {
	pool := sample.NewPool()
	entries := []*sample.LogEntry{
		entry(pool, "ml1", 0, gpuset.Ok),
		entry(pool, "ml1", 10, gpuset.Ok),
		entry(pool, "ml1", 20, gpuset.UnknownFailure),
		entry(pool, "ml1", 30, gpuset.Ok),
	}
	out := Infer(pool, entries, Params{IntervalMinutes: 5, From: 0, To: 31})

	var gpuStates []State
	for _, r := range out {
		if r.Device == DeviceGPU {
			gpuStates = append(gpuStates, r.State)
		}
	}
	if len(gpuStates) != 3 || gpuStates[0] != Up || gpuStates[1] != Down || gpuStates[2] != Up {
		t.Fatalf("gpu states = %v, want [up down up]", gpuStates)
	}
}

func TestInferMultipleHostsSortedOutput(t *testing.T) {
	pool := sample.NewPool()
	entries := []*sample.LogEntry{
		entry(pool, "zulu", 0, gpuset.Ok),
		entry(pool, "zulu", 10, gpuset.Ok),
		entry(pool, "alpha", 0, gpuset.Ok),
		entry(pool, "alpha", 10, gpuset.Ok),
	}
	out := Infer(pool, entries, Params{IntervalMinutes: 5, From: 0, To: 10})
	if len(out) == 0 {
		t.Fatalf("expected reports")
	}
	if out[0].Host != "alpha" {
		t.Errorf("out[0].Host = %q, want alpha (sorted first)", out[0].Host)
	}
}

func TestInferOnlyUpSuppressesDownReports(t *testing.T) {
	pool := sample.NewPool()
	entries := []*sample.LogEntry{
		entry(pool, "ml1", 0, gpuset.Ok),
		entry(pool, "ml1", 300, gpuset.Ok),
	}
	out := Infer(pool, entries, Params{IntervalMinutes: 1, From: 0, To: 300, OnlyUp: true})
	for _, r := range out {
		if r.State == Down {
			t.Fatalf("OnlyUp set but got a down report: %+v", r)
		}
	}
}

func TestInferIncludeFiltersHosts(t *testing.T) {
	pool := sample.NewPool()
	entries := []*sample.LogEntry{
		entry(pool, "ml1", 0, gpuset.Ok),
		entry(pool, "ml1", 10, gpuset.Ok),
		entry(pool, "ml2", 0, gpuset.Ok),
		entry(pool, "ml2", 10, gpuset.Ok),
	}
	out := Infer(pool, entries, Params{IntervalMinutes: 5, From: 0, To: 10, Include: func(h string) bool { return h == "ml1" }})
	for _, r := range out {
		if r.Host != "ml1" {
			t.Errorf("got report for host %q, want only ml1", r.Host)
		}
	}
}
