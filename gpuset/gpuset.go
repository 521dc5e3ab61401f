// Package gpuset implements the three-valued GPU-set lattice of spec.md §3:
// a sample's GPU usage is exactly one of empty, a known finite set of device
// indices, or unknown. Adapted from the compact bitmask representation in
// original_source/code/attic/rustutils/src/gpuset.rs (Option<u32>), and from
// the merge-law style of analysis/sched_types.go's mergeState/mergeCPU in the
// teacher repo (paired values merge to a third, deterministic value).
package gpuset

import (
	"strconv"
	"strings"

	"github.com/hpctrace/clustertrace/errs"
)

// MaxDevice is the largest device index a Set can represent (exclusive). A
// device index at or beyond this bound cannot be encoded in the bitmask and
// fails parsing, per spec.md §3's invariant.
const MaxDevice = 32

// Set is the three-valued lattice described in spec.md §3:
//   - the zero Set{} is the empty set (known to use no GPU),
//   - Set{bits: b} with b != 0 is a known finite set of device indices,
//   - Set{unknown: true} is the unknown state; bits is meaningless then.
//
// There is no "partly known" state: once unknown, a Set stays unknown
// through any Union.
type Set struct {
	bits    uint32
	unknown bool
}

// Empty returns the GPU set known to use no device.
func Empty() Set { return Set{} }

// Unknown returns the GPU set with at least one unrepresentable device.
func Unknown() Set { return Set{unknown: true} }

// Singleton returns the GPU set containing exactly device.
func Singleton(device int) (Set, error) {
	var s Set
	if err := s.Adjoin(device); err != nil {
		return Set{}, err
	}
	return s, nil
}

// Adjoin adds device to s in place. Returns an error if device is out of
// range; has no effect (device indices are meaningless) if s is unknown.
func (s *Set) Adjoin(device int) error {
	if device < 0 || device >= MaxDevice {
		return errs.InvalidConfig("gpu device index %d out of range [0,%d)", device, MaxDevice)
	}
	if s.unknown {
		return nil
	}
	s.bits |= 1 << uint(device)
	return nil
}

// IsEmpty reports whether s is the known-empty set.
func (s Set) IsEmpty() bool { return !s.unknown && s.bits == 0 }

// IsUnknown reports whether s is the unknown set.
func (s Set) IsUnknown() bool { return s.unknown }

// Devices returns the sorted device indices in s, or nil if s is empty or
// unknown.
func (s Set) Devices() []int {
	if s.unknown || s.bits == 0 {
		return nil
	}
	var devices []int
	for i := 0; i < MaxDevice; i++ {
		if s.bits&(1<<uint(i)) != 0 {
			devices = append(devices, i)
		}
	}
	return devices
}

// Union returns the union of a and b: monotone toward Unknown, per spec.md
// §3 ("unknown ∪ x = unknown; otherwise set union").
func Union(a, b Set) Set {
	if a.unknown || b.unknown {
		return Unknown()
	}
	return Set{bits: a.bits | b.bits}
}

// String renders s in the textual form of spec.md §6: "unknown", "none", or
// an ascending comma-separated decimal device list.
func (s Set) String() string {
	if s.unknown {
		return "unknown"
	}
	if s.bits == 0 {
		return "none"
	}
	devices := s.Devices()
	parts := make([]string, len(devices))
	for i, d := range devices {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// Parse decodes the textual form accepted on input per spec.md §6: "unknown",
// "none", or a comma-separated ascending decimal device list. Malformed
// input (an unparseable or out-of-range entry) is reported as an error,
// which the caller (the parser, per spec.md §4.1) treats as a dropped
// record.
func Parse(s string) (Set, error) {
	switch s {
	case "unknown":
		return Unknown(), nil
	case "none", "":
		return Empty(), nil
	}
	var set Set
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		n, err := strconv.Atoi(tok)
		if err != nil {
			return Set{}, errs.InvalidConfig("malformed gpu set entry %q: %v", tok, err)
		}
		if err := set.Adjoin(n); err != nil {
			return Set{}, err
		}
	}
	return set, nil
}

// ParseBitvector decodes the legacy untagged column 8 form: a binary string
// of '0'/'1' characters, bit i set meaning device i is in use.
func ParseBitvector(s string) (Set, error) {
	if s == "" {
		return Empty(), nil
	}
	var set Set
	for i, c := range s {
		switch c {
		case '0':
		case '1':
			if err := set.Adjoin(i); err != nil {
				return Set{}, err
			}
		default:
			return Set{}, errs.InvalidConfig("malformed gpu bitvector %q", s)
		}
	}
	return set, nil
}

// Status is the per-record GPU health enum of spec.md §3.
type Status int8

const (
	// Ok means the GPU subsystem reported cleanly.
	Ok Status = iota
	// UnknownFailure means the collector observed a GPU error it could not
	// classify further.
	UnknownFailure
)

func (s Status) String() string {
	if s == Ok {
		return "ok"
	}
	return "unknown-failure"
}

// MergeStatus folds two GpuStatus values per spec.md §3's merge law:
// Ok ∘ x = x; x ∘ x = x; otherwise UnknownFailure.
func MergeStatus(a, b Status) Status {
	if a == Ok {
		return b
	}
	if b == Ok || a == b {
		return a
	}
	return UnknownFailure
}

// ParseStatus decodes the gpufail tag: "0" means Ok, any other integer means
// UnknownFailure, and a non-integer value is an error.
func ParseStatus(s string) (Status, error) {
	if s == "0" {
		return Ok, nil
	}
	if _, err := strconv.Atoi(s); err != nil {
		return Ok, errs.InvalidConfig("malformed gpufail value %q: %v", s, err)
	}
	return UnknownFailure, nil
}
