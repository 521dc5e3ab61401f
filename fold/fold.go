// Package fold implements the temporal folders of spec.md §4.5: bucket a
// synthesized stream into fixed wall-clock grid cells (hour, half-hour,
// day, half-day, week) and emit one record per bucket using the same
// reconstruction-sum semantics as the mergers, divided by the bucket's
// sample count.
//
// Grounded on original_source/code/sonarlog/src/synthesize.rs's
// fold-by-truncated-timestamp logic, mirroring merge's windowed-reconstruction
// sum rules (merge's synthesizeRecord is unexported, so fold recomputes the
// same sum/union/fold rules directly over each bucket -- a bucket has no
// cursor/window structure to speak of, every record in it is summed
// unconditionally).
package fold

import (
	"sort"
	"time"

	"github.com/hpctrace/clustertrace/gpuset"
	"github.com/hpctrace/clustertrace/sample"
)

// Granularity is a temporal folding bucket width, per spec.md §4.5.
type Granularity int

const (
	Hour Granularity = iota
	HalfHour
	Day
	HalfDay
	Week
)

// Fold buckets s by g (wall-clock truncation in UTC) and returns one
// synthesized record per non-empty bucket, in ascending bucket order.
// Fold does not set Host, User or Command: they stay the zero ID, which
// resolves to "" in any Pool. Records carrying the "_merged_" user and
// command exist only if the caller interns that string into its own Pool and
// assigns it to those fields.
func Fold(s sample.Stream, g Granularity) sample.Stream {
	buckets := make(map[sample.Timestamp][]*sample.LogEntry)
	var order []sample.Timestamp
	for _, e := range s {
		t := truncate(e.Time, g)
		if _, ok := buckets[t]; !ok {
			order = append(order, t)
		}
		buckets[t] = append(buckets[t], e)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make(sample.Stream, 0, len(order))
	for _, t := range order {
		out = append(out, foldBucket(t, buckets[t]))
	}
	return out
}

// foldBucket implements spec.md §4.5's per-bucket aggregation: the
// reconstruction sum (as in the mergers' windowed algorithm) divided by the
// bucket's sample count for every scalar metric; gpus/gpu_status use
// union/fold, not division.
func foldBucket(t sample.Timestamp, entries []*sample.LogEntry) *sample.LogEntry {
	n := float64(len(entries))
	rec := &sample.LogEntry{
		Version: sample.SyntheticVersion,
		Time:    t,
		GPUs:    gpuset.Empty(),
	}
	rolledupGroup := uint32(0)
	for i, e := range entries {
		rec.CPUPct += e.CPUPct
		rec.MemGB += e.MemGB
		rec.RSSAnonGB += e.RSSAnonGB
		rec.GPUPct += e.GPUPct
		rec.GPUMemPct += e.GPUMemPct
		rec.GPUMemGB += e.GPUMemGB
		rec.CPUTimeSec += e.CPUTimeSec
		rec.CPUUtilPct += e.CPUUtilPct
		rec.GPUs = gpuset.Union(rec.GPUs, e.GPUs)
		if i == 0 {
			rec.GPUStatus = e.GPUStatus
		} else {
			rec.GPUStatus = gpuset.MergeStatus(rec.GPUStatus, e.GPUStatus)
		}
		rolledupGroup += e.RolledUp + 1
	}
	rec.CPUPct /= n
	rec.MemGB /= n
	rec.RSSAnonGB /= n
	rec.GPUPct /= n
	rec.GPUMemPct /= n
	rec.GPUMemGB /= n
	rec.CPUTimeSec /= n
	rec.CPUUtilPct /= n
	if rolledupGroup > 0 {
		rec.RolledUp = rolledupGroup - 1
	}
	return rec
}

// truncate rounds t down to the start of its g-bucket, in UTC wall-clock
// terms.
func truncate(t sample.Timestamp, g Granularity) sample.Timestamp {
	tm := t.Time()
	switch g {
	case Hour:
		return sample.FromTime(time.Date(tm.Year(), tm.Month(), tm.Day(), tm.Hour(), 0, 0, 0, time.UTC))
	case HalfHour:
		minute := 0
		if tm.Minute() >= 30 {
			minute = 30
		}
		return sample.FromTime(time.Date(tm.Year(), tm.Month(), tm.Day(), tm.Hour(), minute, 0, 0, time.UTC))
	case Day:
		return sample.FromTime(time.Date(tm.Year(), tm.Month(), tm.Day(), 0, 0, 0, 0, time.UTC))
	case HalfDay:
		hour := 0
		if tm.Hour() >= 12 {
			hour = 12
		}
		return sample.FromTime(time.Date(tm.Year(), tm.Month(), tm.Day(), hour, 0, 0, 0, time.UTC))
	case Week:
		day := time.Date(tm.Year(), tm.Month(), tm.Day(), 0, 0, 0, 0, time.UTC)
		// ISO-ish week start: Monday. time.Weekday Sunday==0.
		offset := (int(day.Weekday()) + 6) % 7
		return sample.FromTime(day.AddDate(0, 0, -offset))
	default:
		return t
	}
}
