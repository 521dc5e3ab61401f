// Package sample holds the telemetry data model of spec.md §3: the
// Timestamp, LogEntry, and sample-stream key types shared by every stage of
// the pipeline (parse -> ingest -> reconstruct -> merge/fold -> jobs/uptime).
//
// Field layout and the interned-string design follow analysis/sched_types.go
// and tracedata/trace_event.go in the teacher repo: small value types with
// a String() method, and high-repetition identity fields (host, user,
// command) stored as stringbank.ID handles rather than strings, resolved
// through the owning Pool -- the same shape as the teacher's
// Collection.LookupCommand(stringID) resolving a Thread's command.
package sample

import (
	"fmt"
	"time"

	"github.com/hpctrace/clustertrace/gpuset"
	"github.com/hpctrace/clustertrace/stringbank"
)

// Timestamp is an absolute UTC instant at 1-second resolution, per spec.md
// §3.
type Timestamp int64

// UnknownTimestamp represents an unspecified or not-yet-known instant.
const UnknownTimestamp Timestamp = -1

// Valid reports whether t is a real timestamp, not UnknownTimestamp.
func (t Timestamp) Valid() bool { return t != UnknownTimestamp }

// Time converts t to a time.Time in UTC.
func (t Timestamp) Time() time.Time { return time.Unix(int64(t), 0).UTC() }

// FromTime truncates tm to 1-second resolution and converts to a Timestamp.
func FromTime(tm time.Time) Timestamp { return Timestamp(tm.Unix()) }

// Sub returns t-u in whole seconds.
func (t Timestamp) Sub(u Timestamp) int64 { return int64(t) - int64(u) }

// Add returns t advanced by secs seconds.
func (t Timestamp) Add(secs int64) Timestamp { return Timestamp(int64(t) + secs) }

func (t Timestamp) String() string {
	if !t.Valid() {
		return "<unknown>"
	}
	return t.Time().Format(time.RFC3339)
}

// Version is the collector's major.minor.bugfix version, per spec.md §4.1.
type Version struct {
	Major, Minor, Bugfix uint16
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Bugfix)
}

// UntaggedVersion is the version implicitly assigned to untagged (legacy)
// records, per spec.md §4.1.
var UntaggedVersion = Version{Major: 0, Minor: 6, Bugfix: 0}

// SyntheticVersion is the version stamped on every record synthesized by a
// merger or folder, per spec.md §4.4.
var SyntheticVersion = Version{}

// RollupBit is the high-order sentinel bit a rolled-up record's job_id is
// OR'd with to produce its artifact ID, per spec.md §3. Bit 31 cannot
// collide with a real Linux pid, which fits in 31 bits (see spec.md §9).
const RollupBit uint32 = 1 << 31

// LogEntry is one sample record, per spec.md §3. String identity fields are
// interned handles into the owning Pool's stringbank.Bank.
type LogEntry struct {
	Version Version
	Time    Timestamp
	Host    stringbank.ID
	User    stringbank.ID
	// Pid is the record's artifact identity. For a single-process record
	// this is the OS pid; for a rolled-up record (RolledUp >= 1) the
	// stream reconstructor rewrites it to JobID|RollupBit (spec.md §4.3
	// step 1).
	Pid     uint32
	JobID   uint32
	Command stringbank.ID

	// Node facts. Zero means unknown.
	NumCores   uint16
	MemTotalGB float64

	// Per-process metrics.
	CPUPct     float64
	MemGB      float64
	RSSAnonGB  float64
	CPUTimeSec float64

	// Per-process GPU metrics.
	GPUs      gpuset.Set
	GPUPct    float64
	GPUMemPct float64
	GPUMemGB  float64
	GPUStatus gpuset.Status

	// RolledUp is the count of additional processes folded into this
	// record; the group size is RolledUp+1.
	RolledUp uint32

	// CPUUtilPct is derived by the stream reconstructor (spec.md §4.3
	// step 4); zero until postprocess runs.
	CPUUtilPct float64
}

// IsRollup reports whether e represents a rolled-up group of processes.
func (e *LogEntry) IsRollup() bool { return e.RolledUp >= 1 }

// Key is the sample-stream key of spec.md §3: (host, artifact-id, command).
// Artifact is e.Pid after the stream reconstructor's rollup rewrite.
type Key struct {
	Host     stringbank.ID
	Artifact uint32
	Command  stringbank.ID
}

// KeyOf returns e's stream key. It is only meaningful after the stream
// reconstructor has rewritten rolled-up pids (spec.md §4.3 step 1); prior to
// that, rolled-up records still carry Pid==0 and KeyOf would incorrectly key
// them all together.
func KeyOf(e *LogEntry) Key {
	return Key{Host: e.Host, Artifact: e.Pid, Command: e.Command}
}

// Bound is a host's observed time range, per spec.md §3.
type Bound struct {
	Earliest, Latest Timestamp
}

// Bounds maps host (interned) to its observed Bound. Defined only for hosts
// with >=1 ingested record.
type Bounds map[stringbank.ID]Bound

// Merge returns the elementwise union of two Bounds maps: for any host
// present in both, the earliest of the earliests and the latest of the
// latests; hosts present in only one pass through unchanged.
func (b Bounds) Merge(other Bounds) Bounds {
	out := make(Bounds, len(b)+len(other))
	for h, bound := range b {
		out[h] = bound
	}
	for h, bound := range other {
		if existing, ok := out[h]; ok {
			out[h] = Bound{
				Earliest: minTimestamp(existing.Earliest, bound.Earliest),
				Latest:   maxTimestamp(existing.Latest, bound.Latest),
			}
		} else {
			out[h] = bound
		}
	}
	return out
}

func minTimestamp(a, b Timestamp) Timestamp {
	if a < b {
		return a
	}
	return b
}

func maxTimestamp(a, b Timestamp) Timestamp {
	if a > b {
		return a
	}
	return b
}
