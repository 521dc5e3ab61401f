// Package uptime implements the uptime inferencer of spec.md §4.7: given
// raw (pre-reconstruction) samples for a set of hosts and a time window of
// interest, infer when each host -- and each host's GPU set -- was up or
// down, from gaps in the sampling timeline.
//
// Grounded directly on
// original_source/code/sonalyze/src/uptime.rs's aggregate_and_print_uptime:
// sort by (host, timestamp), scan each host's run for gaps exceeding a
// cutoff derived from the sampling interval, then re-scan each resulting
// "up" window for gpu_status transitions. The teacher's analysis package
// uses the same sort-then-scan shape for its window detectors
// (analysis/sched_windows.go), which this mirrors in Go idiom (explicit
// index cursors, no recursion).
package uptime

import (
	"sort"

	"github.com/hpctrace/clustertrace/gpuset"
	"github.com/hpctrace/clustertrace/sample"
)

// Device names a device class a Report describes.
type Device string

const (
	DeviceHost Device = "host"
	DeviceGPU  Device = "gpu"
)

// State is a Report's up/down classification.
type State string

const (
	Up   State = "up"
	Down State = "down"
)

// Report is one row of the uptime timeline, per spec.md §4.7. Start is
// inclusive, End is exclusive; a host's consecutive Reports overlap (one's
// End equals the next's Start), and so do a GPU's within its host's up
// window.
type Report struct {
	Device Device
	Host   string
	State  State
	Start  sample.Timestamp
	End    sample.Timestamp
}

// Params configures Infer, per spec.md §4.7.
type Params struct {
	// IntervalMinutes is the sampling interval; cutoff = 2*IntervalMinutes
	// minutes, per spec.md §4.7.
	IntervalMinutes int
	From, To        sample.Timestamp // [From,To) window of interest
	// Include, if non-nil, restricts the scan to hosts for which it
	// returns true.
	Include func(host string) bool
	// OnlyUp/OnlyDown suppress the opposite state's reports; both false
	// emits everything.
	OnlyUp, OnlyDown bool
}

// Infer runs the uptime inferencer over entries (which need not be
// reconstructed or partitioned by stream -- any raw samples for the hosts
// of interest suffice) and returns Reports sorted by (host, start), per
// spec.md §4.7.
func Infer(pool *sample.Pool, entries []*sample.LogEntry, p Params) []Report {
	if len(entries) == 0 {
		return nil
	}
	sorted := append([]*sample.LogEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		hi, hj := pool.Host(sorted[i]), pool.Host(sorted[j])
		if hi != hj {
			return hi < hj
		}
		return sorted[i].Time < sorted[j].Time
	})

	cutoff := sample.Timestamp(int64(p.IntervalMinutes) * 60 * 2)
	var reports []Report
	var hostUpWindows [][2]int
	n := len(sorted)

	i := 0
	for i < n {
		for i < n && sorted[i].Time < p.From {
			i++
		}
		if i == n {
			break
		}
		hostStart := i
		hostEnd := i
		hostName := pool.Host(sorted[hostStart])

		i++
		for i < n && pool.Host(sorted[i]) == hostName {
			if sorted[i].Time < p.To {
				hostEnd = i
			}
			i++
		}

		if p.Include != nil && !p.Include(hostName) {
			continue
		}

		first := sorted[hostStart]
		if first.Time-p.From > cutoff {
			reports = appendReport(reports, p, Report{Device: DeviceHost, Host: hostName, State: Down, Start: p.From, End: first.Time})
		}

		last := sorted[hostEnd]
		if p.To-last.Time > cutoff {
			reports = appendReport(reports, p, Report{Device: DeviceHost, Host: hostName, State: Down, Start: last.Time, End: p.To})
		}

		windowStart := hostStart
		for {
			prevTimestamp := sorted[windowStart].Time
			j := windowStart + 1
			for j <= hostEnd && sorted[j].Time-prevTimestamp <= cutoff {
				prevTimestamp = sorted[j].Time
				j++
			}
			reports = appendReport(reports, p, Report{Device: DeviceHost, Host: hostName, State: Up, Start: sorted[windowStart].Time, End: sorted[j-1].Time})
			hostUpWindows = append(hostUpWindows, [2]int{windowStart, j - 1})

			if j > hostEnd {
				break
			}
			reports = appendReport(reports, p, Report{Device: DeviceHost, Host: hostName, State: Down, Start: prevTimestamp, End: sorted[j].Time})
			windowStart = j
		}
	}

	for _, w := range hostUpWindows {
		start, end := w[0], w[1]
		hostName := pool.Host(sorted[start])
		k := start
		for k <= end {
			gpuUp := sorted[k].GPUStatus == gpuset.Ok
			runStart := k
			for k <= end && (sorted[k].GPUStatus == gpuset.Ok) == gpuUp {
				k++
			}
			state := Down
			if gpuUp {
				state = Up
			}
			endIdx := end
			if k < endIdx {
				endIdx = k
			}
			reports = appendReport(reports, p, Report{Device: DeviceGPU, Host: hostName, State: state, Start: sorted[runStart].Time, End: sorted[endIdx].Time})
		}
	}

	sort.Slice(reports, func(a, b int) bool {
		if reports[a].Host != reports[b].Host {
			return reports[a].Host < reports[b].Host
		}
		return reports[a].Start < reports[b].Start
	})
	return reports
}

func appendReport(reports []Report, p Params, r Report) []Report {
	if r.State == Up && p.OnlyDown {
		return reports
	}
	if r.State == Down && p.OnlyUp {
		return reports
	}
	return append(reports, r)
}
