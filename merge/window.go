// Package merge implements the windowed "current-value reconstruction"
// algorithm of spec.md §4.4.5 and the four mergers built on it (§4.4.1-4).
//
// Grounded on the synthesize-across-streams shape of
// original_source/code/sonarlog/src/synthesize.rs, and on the cursor/linear
// scan discipline of analysis/sched_elementary_intervals.go in the teacher
// repo (a single forward pass advancing per-series cursors to a common time
// axis, rather than a sort-merge-join).
package merge

import (
	"github.com/hpctrace/clustertrace/gpuset"
	"github.com/hpctrace/clustertrace/sample"
)

// The three asymmetric time thresholds of spec.md §4.4.5 (seconds).
const (
	window   = 10
	nearPast = 30
	deepPast = 60
)

// cursor tracks one input stream's position through the windowed
// reconstruction algorithm: idx is the next not-yet-finally-consumed
// record, and exhausted marks a stream whose one deep-past catch-up
// opportunity has already been spent.
type cursor struct {
	stream    sample.Stream
	idx       int
	exhausted bool
}

func (c *cursor) hasCurrent() bool { return c.idx < len(c.stream) }
func (c *cursor) current() *sample.LogEntry {
	return c.stream[c.idx]
}
func (c *cursor) previous() *sample.LogEntry {
	return c.stream[c.idx-1]
}

// reconstructWindow runs spec.md §4.4.5 over streams, returning the
// synthesized records in ascending timestamp order. It leaves Host, User,
// Command, and JobID unset on each result: callers (the four merger
// variants) fill those in according to their own grouping semantics.
func reconstructWindow(streams []sample.Stream) []*sample.LogEntry {
	cursors := make([]*cursor, 0, len(streams))
	for _, s := range streams {
		if len(s) > 0 {
			cursors = append(cursors, &cursor{stream: s})
		}
	}

	var out []*sample.LogEntry
	for {
		tMin, ok := minCurrentTimestamp(cursors)
		if !ok {
			break
		}

		var participants []*sample.LogEntry
		for _, c := range cursors {
			if p, advances := participantFor(c, tMin); p != nil {
				participants = append(participants, p)
				if advances {
					c.idx++
				}
			}
		}
		out = append(out, synthesizeRecord(tMin, participants))
	}
	return out
}

// minCurrentTimestamp returns the minimum timestamp among cursors that
// still have a current (not yet consumed) record.
func minCurrentTimestamp(cursors []*cursor) (sample.Timestamp, bool) {
	var min sample.Timestamp
	found := false
	for _, c := range cursors {
		if !c.hasCurrent() {
			continue
		}
		t := c.current().Time
		if !found || t < min {
			min = t
			found = true
		}
	}
	return min, found
}

// participantFor evaluates the three rules of spec.md §4.4.5 step 2 for one
// stream at this round's t_min. It returns the participating record (nil if
// none) and whether the cursor's idx should advance.
func participantFor(c *cursor, tMin sample.Timestamp) (*sample.LogEntry, bool) {
	if c.hasCurrent() {
		t := c.current().Time
		if t >= tMin && t < tMin+window {
			return c.current(), true
		}
	}
	if c.idx > 0 {
		prev := c.previous()
		if prev.Time >= tMin-nearPast && prev.Time < tMin && c.hasCurrent() {
			return prev, false
		}
	}
	if !c.hasCurrent() && !c.exhausted && c.idx > 0 {
		last := c.previous()
		if last.Time >= tMin-deepPast && last.Time < tMin {
			c.exhausted = true
			return last, false
		}
	}
	return nil, false
}

// synthesizeRecord implements spec.md §4.4.5 step 3: sum scalar metrics,
// union GPU sets, fold GPU status, and preserve the rolledup invariant.
func synthesizeRecord(t sample.Timestamp, participants []*sample.LogEntry) *sample.LogEntry {
	rec := &sample.LogEntry{
		Version: sample.SyntheticVersion,
		Time:    t,
		GPUs:    gpuset.Empty(),
	}
	rolledupGroup := uint32(0)
	for i, p := range participants {
		rec.CPUPct += p.CPUPct
		rec.MemGB += p.MemGB
		rec.RSSAnonGB += p.RSSAnonGB
		rec.GPUPct += p.GPUPct
		rec.GPUMemPct += p.GPUMemPct
		rec.GPUMemGB += p.GPUMemGB
		rec.CPUTimeSec += p.CPUTimeSec
		rec.CPUUtilPct += p.CPUUtilPct
		rec.GPUs = gpuset.Union(rec.GPUs, p.GPUs)
		if i == 0 {
			rec.GPUStatus = p.GPUStatus
		} else {
			rec.GPUStatus = gpuset.MergeStatus(rec.GPUStatus, p.GPUStatus)
		}
		rolledupGroup += p.RolledUp + 1
	}
	if rolledupGroup > 0 {
		rec.RolledUp = rolledupGroup - 1
	}
	return rec
}
