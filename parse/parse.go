package parse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hpctrace/clustertrace/errs"
	"github.com/hpctrace/clustertrace/gpuset"
	"github.com/hpctrace/clustertrace/sample"
)

// maxLineBytes bounds a single record line, guarding against a runaway
// unterminated quoted field or a corrupt file consuming unbounded memory.
const maxLineBytes = 1 << 20

// format classifies a line's record shape, detected from whether its first
// field contains '=' (tagged) or not (untagged), per spec.md §4.1.
type format int

const (
	formatUnknown format = iota
	formatTagged
	formatUntagged
)

// Parse reads every record line from r, appending each successfully decoded
// LogEntry to pool, and returns the count of lines silently discarded for
// malformed content. An error return means the underlying reader failed;
// per spec.md §4.1 that aborts the file, discarding no further progress
// already made (entries already appended to pool remain).
func Parse(r io.Reader, pool *sample.Pool) (discarded int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if !parseLine(line, pool) {
			discarded++
		}
	}
	if err := scanner.Err(); err != nil {
		return discarded, errs.IO("reading record stream: %v", err)
	}
	return discarded, nil
}

// parseLine decodes one line, appending a LogEntry to pool on success.
// Returns false if the line was discarded (malformed field, missing
// mandatory field, or a wrong untagged column count).
func parseLine(line string, pool *sample.Pool) bool {
	fields, err := splitFields(line)
	if err != nil {
		return false
	}

	var rec lineFields
	shape := formatUnknown
	untaggedPos := 0
	for _, field := range fields {
		key, value, tagged := fieldKeyValue(field)
		if shape == formatUnknown {
			if tagged {
				shape = formatTagged
			} else {
				shape = formatUntagged
			}
		}
		switch shape {
		case formatTagged:
			if !tagged {
				// A non-tagged field in an otherwise tagged record is a
				// structural error; spec.md §4.1 drops the whole line.
				return false
			}
			if !rec.applyTag(key, value) {
				return false
			}
		case formatUntagged:
			if !rec.applyUntagged(untaggedPos, field) {
				return false
			}
			untaggedPos++
		}
	}

	if shape == formatUntagged && untaggedPos != 8 && untaggedPos != 12 && untaggedPos != 13 {
		return false
	}
	if shape == formatUntagged {
		rec.version = &sample.UntaggedVersion
	}
	if rec.version == nil || rec.timestamp == nil || rec.host == nil || rec.user == nil || rec.command == nil {
		return false
	}

	entry := rec.build()
	pool.Add(entry, *rec.host, *rec.user, *rec.command)
	return true
}

// lineFields accumulates the optional values recognized from one line,
// mirroring logfile.rs's per-line locals; a nil pointer means "not seen".
type lineFields struct {
	version    *sample.Version
	timestamp  *sample.Timestamp
	host       *string
	numCores   *uint16
	memTotalGB *float64
	user       *string
	pid        *uint32
	jobID      *uint32
	command    *string
	cpuPct     *float64
	memGB      *float64
	rssAnonGB  *float64
	gpus       *gpuset.Set
	gpuPct     *float64
	gpuMemPct  *float64
	gpuMemGB   *float64
	gpuStatus  *gpuset.Status
	cpuTimeSec *float64
	rolledUp   *uint32
}

// applyTag decodes one "key=value" tagged field per spec.md §4.1's tag
// table. Unknown keys are ignored (forward compatibility, per spec.md §6).
// Returns false if key is recognized but value is malformed.
func (r *lineFields) applyTag(key, value string) bool {
	switch key {
	case "v":
		v, err := parseVersion(value)
		if err != nil {
			return false
		}
		r.version = &v
	case "time":
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return false
		}
		ts := sample.FromTime(t)
		r.timestamp = &ts
	case "host":
		r.host = &value
	case "cores":
		n, err := parseU16(value)
		if err != nil {
			return false
		}
		r.numCores = &n
	case "memtotalkib":
		f, err := parseF64(value)
		if err != nil {
			return false
		}
		g := kibToGiB(f)
		r.memTotalGB = &g
	case "user":
		r.user = &value
	case "cmd":
		r.command = &value
	case "pid":
		n, err := parseU32(value)
		if err != nil {
			return false
		}
		r.pid = &n
	case "job":
		n, err := parseU32(value)
		if err != nil {
			return false
		}
		r.jobID = &n
	case "cpu%":
		f, err := parseF64(value)
		if err != nil {
			return false
		}
		r.cpuPct = &f
	case "cpukib":
		f, err := parseF64(value)
		if err != nil {
			return false
		}
		g := kibToGiB(f)
		r.memGB = &g
	case "rssanonkib":
		f, err := parseF64(value)
		if err != nil {
			return false
		}
		g := kibToGiB(f)
		r.rssAnonGB = &g
	case "gpus":
		s, err := gpuset.Parse(value)
		if err != nil {
			return false
		}
		r.gpus = &s
	case "gpu%":
		f, err := parseF64(value)
		if err != nil {
			return false
		}
		r.gpuPct = &f
	case "gpumem%":
		f, err := parseF64(value)
		if err != nil {
			return false
		}
		r.gpuMemPct = &f
	case "gpukib":
		f, err := parseF64(value)
		if err != nil {
			return false
		}
		g := kibToGiB(f)
		r.gpuMemGB = &g
	case "gpufail":
		s, err := gpuset.ParseStatus(value)
		if err != nil {
			return false
		}
		r.gpuStatus = &s
	case "cputime_sec":
		f, err := parseF64(value)
		if err != nil {
			return false
		}
		r.cpuTimeSec = &f
	case "rolledup":
		n, err := parseU32(value)
		if err != nil {
			return false
		}
		r.rolledUp = &n
	}
	return true
}

// applyUntagged decodes one positional field of a legacy untagged record,
// per the column layout documented in spec.md §4.1 (derived from
// original_source/code/sonarlog/src/logfile.rs's untagged_position match).
func (r *lineFields) applyUntagged(pos int, field string) bool {
	switch pos {
	case 0:
		t, err := time.Parse(time.RFC3339, field)
		if err != nil {
			return false
		}
		ts := sample.FromTime(t)
		r.timestamp = &ts
	case 1:
		r.host = &field
	case 2:
		n, err := parseU16(field)
		if err != nil {
			return false
		}
		r.numCores = &n
	case 3:
		r.user = &field
	case 4:
		n, err := parseU32(field)
		if err != nil {
			return false
		}
		r.jobID = &n
		r.pid = &n
	case 5:
		r.command = &field
	case 6:
		f, err := parseF64(field)
		if err != nil {
			return false
		}
		r.cpuPct = &f
	case 7:
		f, err := parseF64(field)
		if err != nil {
			return false
		}
		g := kibToGiB(f)
		r.memGB = &g
	case 8:
		s, err := gpuset.ParseBitvector(field)
		if err != nil {
			return false
		}
		r.gpus = &s
	case 9:
		f, err := parseF64(field)
		if err != nil {
			return false
		}
		r.gpuPct = &f
	case 10:
		f, err := parseF64(field)
		if err != nil {
			return false
		}
		r.gpuMemPct = &f
	case 11:
		f, err := parseF64(field)
		if err != nil {
			return false
		}
		g := kibToGiB(f)
		r.gpuMemGB = &g
	case 12:
		f, err := parseF64(field)
		if err != nil {
			return false
		}
		r.cpuTimeSec = &f
	default:
		// Unrecognized trailing column: ignore, matching the original's
		// "we may learn about it later" policy.
	}
	return true
}

// build assembles a LogEntry from the recognized fields, defaulting every
// optional field not seen on the line. Mandatory fields are guaranteed
// present by the caller's check in parseLine.
func (r *lineFields) build() *sample.LogEntry {
	e := &sample.LogEntry{
		Version: *r.version,
		Time:    *r.timestamp,
	}
	if r.numCores != nil {
		e.NumCores = *r.numCores
	}
	if r.memTotalGB != nil {
		e.MemTotalGB = *r.memTotalGB
	}
	if r.pid != nil {
		e.Pid = *r.pid
	}
	if r.jobID != nil {
		e.JobID = *r.jobID
	}
	if r.cpuPct != nil {
		e.CPUPct = *r.cpuPct
	}
	if r.memGB != nil {
		e.MemGB = *r.memGB
	}
	if r.rssAnonGB != nil {
		e.RSSAnonGB = *r.rssAnonGB
	}
	if r.gpus != nil {
		e.GPUs = *r.gpus
	} else {
		e.GPUs = gpuset.Empty()
	}
	if r.gpuPct != nil {
		e.GPUPct = *r.gpuPct
	}
	if r.gpuMemPct != nil {
		e.GPUMemPct = *r.gpuMemPct
	}
	if r.gpuMemGB != nil {
		e.GPUMemGB = *r.gpuMemGB
	}
	if r.gpuStatus != nil {
		e.GPUStatus = *r.gpuStatus
	}
	if r.cpuTimeSec != nil {
		e.CPUTimeSec = *r.cpuTimeSec
	}
	if r.rolledUp != nil {
		e.RolledUp = *r.rolledUp
	}
	return e
}

func kibToGiB(kib float64) float64 { return kib / (1024.0 * 1024.0) }

func parseVersion(s string) (sample.Version, error) {
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return sample.Version{}, errs.InvalidConfig("malformed version %q", s)
	}
	var nums [3]uint16
	for i, p := range parts {
		n, err := parseU16(p)
		if err != nil {
			return sample.Version{}, err
		}
		nums[i] = n
	}
	return sample.Version{Major: nums[0], Minor: nums[1], Bugfix: nums[2]}, nil
}

func parseU16(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, errs.InvalidConfig("malformed integer %q: %v", s, err)
	}
	return uint16(n), nil
}

func parseU32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errs.InvalidConfig("malformed integer %q: %v", s, err)
	}
	return uint32(n), nil
}

func parseF64(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errs.InvalidConfig("malformed number %q: %v", s, err)
	}
	return f, nil
}
