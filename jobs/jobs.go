// Package jobs implements the job aggregator of spec.md §4.6: per-job
// summary statistics (duration, peak/avg CPU/GPU/RAM/GPU-mem, absolute and
// capacity-relative), LIVE_AT_START/LIVE_AT_END classification, and the
// aggregate filter used to select a subset of jobs.
//
// Grounded on original_source/code/sonalyze/src/uptime.rs's sibling
// aggregator (jobs.rs is listed in _INDEX.md but not retrieved in full;
// the per-job summary shape here follows spec.md §4.6 directly) and on the
// teacher's per-collection summary-statistics pass in
// analysis/sched_metrics.go (single forward scan accumulating sum/max while
// walking a time-ordered record sequence).
package jobs

import (
	"math"
	"strings"

	"github.com/hpctrace/clustertrace/config"
	"github.com/hpctrace/clustertrace/gpuset"
	"github.com/hpctrace/clustertrace/merge"
	"github.com/hpctrace/clustertrace/reconstruct"
	"github.com/hpctrace/clustertrace/sample"
)

// Classification is the bitmask of spec.md §4.6.
type Classification uint8

const (
	LiveAtStart Classification = 1 << iota
	LiveAtEnd
)

// Duration is a job's run length re-expressed as (days, hours, minutes),
// per spec.md §4.6.
type Duration struct {
	Seconds int64
	Days    int
	Hours   int
	Minutes int
}

func durationOf(seconds int64) Duration {
	minutes := int64(math.Round(float64(seconds) / 60))
	return Duration{
		Seconds: seconds,
		Days:    int(minutes / (24 * 60)),
		Hours:   int((minutes / 60) % 24),
		Minutes: int(minutes % 60),
	}
}

// Summary is one job's aggregate record, per spec.md §4.6's contract
// `JobSummary {records, aggregate, breakdown?}`. Breakdown (a per-record
// detail view) is left to the caller, which already has Records.
type Summary struct {
	Host    string
	JobID   uint32
	User    string
	Command string
	Records sample.Stream

	First, Last    sample.Timestamp
	Duration       Duration
	UsesGPU        bool
	GPUStatus      gpuset.Status
	Classification Classification

	CPUUtilAvg, CPUUtilPeak       float64
	GPUPctAvg, GPUPctPeak         float64
	MemGBAvg, MemGBPeak           float64
	RSSAnonGBAvg, RSSAnonGBPeak   float64
	GPUMemGBAvg, GPUMemGBPeak     float64
	RelativeAvailable             bool
	CPUUtilRelAvg, CPUUtilRelPeak float64
	GPUPctRelAvg, GPUPctRelPeak   float64
	MemPctAvg, MemPctPeak         float64
	RSSAnonPctAvg, RSSAnonPctPeak float64
	GPUMemPctAvg, GPUMemPctPeak   float64
}

// Params configures the job aggregator's preparation phase, per spec.md
// §4.6.
type Params struct {
	// Batch requests cross-node job merging (spec.md's --batch).
	Batch bool
	// MinSamples discards any stream shorter than this before
	// aggregation; 0 means the spec's default of 2.
	MinSamples int
	Filter     Filter
}

// Aggregate runs the job aggregator's full pipeline: optional batch
// preparation, the sample-count gate, per-job summary computation, and the
// aggregate filter, per spec.md §4.6.
func Aggregate(pool *sample.Pool, streams reconstruct.Streams, bounds sample.Bounds, cfg config.ClusterConfig, params Params) []Summary {
	minSamples := params.MinSamples
	if minSamples == 0 {
		minSamples = 2
	}

	// A single cache serves every host lookup for this aggregation pass:
	// prepare's per-stream partition check and summarize's per-job relative-
	// metrics lookup both repeatedly re-resolve the same handful of
	// hostnames while folding over the pool.
	var cache *config.Cache
	if cfg != nil {
		cache = config.NewCache(cfg, 0)
	}

	prepared, preparedBounds := prepare(pool, streams, bounds, cache, params.Batch)

	var summaries []Summary
	for _, s := range prepared {
		if len(s) < minSamples {
			continue
		}
		summary := summarize(pool, s, preparedBounds, cache)
		if params.Filter == nil || params.Filter(&summary) {
			summaries = append(summaries, summary)
		}
	}
	return summaries
}

// prepare implements spec.md §4.6's preparation phase.
func prepare(pool *sample.Pool, streams reconstruct.Streams, bounds sample.Bounds, cache *config.Cache, batch bool) (reconstruct.Streams, sample.Bounds) {
	if !batch {
		return streams, bounds
	}

	byHostJob := merge.MergeByHostJob(pool, streams)

	if cache == nil {
		// "when config is absent, batch-mode merges by job-id across all
		// hosts unconditionally" (spec.md §9).
		return merge.MergeByJobAcrossHosts(pool, byHostJob, bounds)
	}

	crossNode := make(reconstruct.Streams)
	local := make(reconstruct.Streams)
	for key, s := range byHostJob {
		host, ok := cache.Lookup(pool.Host(s.First()))
		if ok && host.CrossNodeJobs {
			crossNode[key] = s
		} else {
			local[key] = s
		}
	}

	mergedCrossNode, newBounds := merge.MergeByJobAcrossHosts(pool, crossNode, bounds)
	reunited := make(reconstruct.Streams, len(local)+len(mergedCrossNode))
	for k, s := range local {
		reunited[k] = s
	}
	for k, s := range mergedCrossNode {
		reunited[k] = s
	}
	return reunited, newBounds
}

// summarize computes one job's Summary from its final stream, per spec.md
// §4.6's per-job aggregate fields.
func summarize(pool *sample.Pool, s sample.Stream, bounds sample.Bounds, cache *config.Cache) Summary {
	first, last := s.First(), s.Last()
	sum := Summary{
		Host:     pool.Host(first),
		JobID:    first.JobID,
		User:     pool.User(first),
		Command:  pool.Command(first),
		Records:  s,
		First:    first.Time,
		Last:     last.Time,
		Duration: durationOf(last.Time.Sub(first.Time)),
	}

	var cpuSum, gpuSum, memSum, rssSum, gpuMemSum float64
	for i, e := range s {
		if !e.GPUs.IsEmpty() {
			sum.UsesGPU = true
		}
		if i == 0 {
			sum.GPUStatus = e.GPUStatus
		} else {
			sum.GPUStatus = gpuset.MergeStatus(sum.GPUStatus, e.GPUStatus)
		}
		cpuSum += e.CPUUtilPct
		gpuSum += e.GPUPct
		memSum += e.MemGB
		rssSum += e.RSSAnonGB
		gpuMemSum += e.GPUMemGB
		sum.CPUUtilPeak = math.Max(sum.CPUUtilPeak, e.CPUUtilPct)
		sum.GPUPctPeak = math.Max(sum.GPUPctPeak, e.GPUPct)
		sum.MemGBPeak = math.Max(sum.MemGBPeak, e.MemGB)
		sum.RSSAnonGBPeak = math.Max(sum.RSSAnonGBPeak, e.RSSAnonGB)
		sum.GPUMemGBPeak = math.Max(sum.GPUMemGBPeak, e.GPUMemGB)
	}
	n := float64(len(s))
	sum.CPUUtilAvg = cpuSum / n
	sum.GPUPctAvg = gpuSum / n
	sum.MemGBAvg = memSum / n
	sum.RSSAnonGBAvg = rssSum / n
	sum.GPUMemGBAvg = gpuMemSum / n

	if bound, ok := bounds[first.Host]; ok {
		if sum.First == bound.Earliest {
			sum.Classification |= LiveAtStart
		}
		if sum.Last == bound.Latest {
			sum.Classification |= LiveAtEnd
		}
	}

	if cache != nil {
		if host, ok := cache.Lookup(sum.Host); ok {
			applyRelativeMetrics(&sum, host)
		}
	}

	ceilAll(&sum)
	return sum
}

// applyRelativeMetrics implements spec.md §4.6's capacity-relative
// averages/peaks: CPU and GPU values divide by the host's core/card
// counts; memory values convert to a percentage of host capacity.
func applyRelativeMetrics(sum *Summary, host config.HostConfig) {
	sum.RelativeAvailable = true
	if host.CPUCores > 0 {
		cores := float64(host.CPUCores)
		sum.CPUUtilRelAvg = sum.CPUUtilAvg / cores
		sum.CPUUtilRelPeak = sum.CPUUtilPeak / cores
	}
	if host.GPUCards > 0 {
		cards := float64(host.GPUCards)
		sum.GPUPctRelAvg = sum.GPUPctAvg / cards
		sum.GPUPctRelPeak = sum.GPUPctPeak / cards
	}
	if host.MemGB > 0 {
		capacity := float64(host.MemGB)
		sum.MemPctAvg = 100 * sum.MemGBAvg / capacity
		sum.MemPctPeak = 100 * sum.MemGBPeak / capacity
		sum.RSSAnonPctAvg = 100 * sum.RSSAnonGBAvg / capacity
		sum.RSSAnonPctPeak = 100 * sum.RSSAnonGBPeak / capacity
	}
	if host.GPUMemGB > 0 {
		capacity := float64(host.GPUMemGB)
		sum.GPUMemPctAvg = 100 * sum.GPUMemGBAvg / capacity
		sum.GPUMemPctPeak = 100 * sum.GPUMemGBPeak / capacity
	}
}

// ceilAll rounds every averaged/peak numeric field up to an integer-like
// representation, per spec.md §4.6's "all numeric outputs are ceiled".
func ceilAll(s *Summary) {
	for _, f := range []*float64{
		&s.CPUUtilAvg, &s.CPUUtilPeak, &s.GPUPctAvg, &s.GPUPctPeak,
		&s.MemGBAvg, &s.MemGBPeak, &s.RSSAnonGBAvg, &s.RSSAnonGBPeak,
		&s.GPUMemGBAvg, &s.GPUMemGBPeak,
		&s.CPUUtilRelAvg, &s.CPUUtilRelPeak, &s.GPUPctRelAvg, &s.GPUPctRelPeak,
		&s.MemPctAvg, &s.MemPctPeak, &s.RSSAnonPctAvg, &s.RSSAnonPctPeak,
		&s.GPUMemPctAvg, &s.GPUMemPctPeak,
	} {
		*f = math.Ceil(*f)
	}
}

// IsZombie reports whether any record in the job's final stream looks like
// a leftover process: command containing "<defunct>" or a user name
// starting with "_zombie_", per spec.md §4.6.
func (s *Summary) IsZombie(pool *sample.Pool) bool {
	if strings.HasPrefix(s.User, "_zombie_") {
		return true
	}
	for _, e := range s.Records {
		if strings.Contains(pool.Command(e), "<defunct>") {
			return true
		}
	}
	return false
}

// Range is an inclusive [Min,Max] bound on a numeric summary field; the zero
// Range (Min==Max==0), like any Range with Unset set, matches everything.
type Range struct {
	Min, Max float64
	Unset    bool
}

func (r Range) matches(v float64) bool {
	if r.Unset || r == (Range{}) {
		return true
	}
	return v >= r.Min && v <= r.Max
}

// Filter is a pure predicate over a job Summary, per spec.md §9 ("the
// aggregate-level filter... a pure function from an aggregate to bool").
type Filter func(*Summary) bool

// FilterParams composes the aggregate filter of spec.md §4.6: range
// predicates on every *_avg/*_peak field, a minimum duration, and five
// boolean modes. Build with NewFilter; relative-field ranges are silently
// vacuous when the cluster config has no entry for a job's host (Summary's
// RelativeAvailable is false).
type FilterParams struct {
	CPUUtilAvg, CPUUtilPeak         Range
	GPUPctAvg, GPUPctPeak           Range
	MemGBAvg, MemGBPeak             Range
	RSSAnonGBAvg, RSSAnonGBPeak     Range
	GPUMemGBAvg, GPUMemGBPeak       Range
	CPUUtilRelAvg, CPUUtilRelPeak   Range
	GPUPctRelAvg, GPUPctRelPeak     Range
	MemPctAvg, MemPctPeak           Range
	RSSAnonPctAvg, RSSAnonPctPeak   Range
	GPUMemPctAvg, GPUMemPctPeak     Range
	MinRuntimeSec                   int64
	NoGPU, SomeGPU                  bool
	Completed, Running              bool
	Zombie                          bool
}

// NewFilter returns a Filter implementing p's composed predicate, per
// spec.md §4.6. pool resolves Summary.Records' command/user for the zombie
// predicate.
func NewFilter(p FilterParams, pool *sample.Pool) Filter {
	return func(s *Summary) bool {
		if !p.CPUUtilAvg.matches(s.CPUUtilAvg) || !p.CPUUtilPeak.matches(s.CPUUtilPeak) {
			return false
		}
		if !p.GPUPctAvg.matches(s.GPUPctAvg) || !p.GPUPctPeak.matches(s.GPUPctPeak) {
			return false
		}
		if !p.MemGBAvg.matches(s.MemGBAvg) || !p.MemGBPeak.matches(s.MemGBPeak) {
			return false
		}
		if !p.RSSAnonGBAvg.matches(s.RSSAnonGBAvg) || !p.RSSAnonGBPeak.matches(s.RSSAnonGBPeak) {
			return false
		}
		if !p.GPUMemGBAvg.matches(s.GPUMemGBAvg) || !p.GPUMemGBPeak.matches(s.GPUMemGBPeak) {
			return false
		}
		if s.RelativeAvailable {
			if !p.CPUUtilRelAvg.matches(s.CPUUtilRelAvg) || !p.CPUUtilRelPeak.matches(s.CPUUtilRelPeak) {
				return false
			}
			if !p.GPUPctRelAvg.matches(s.GPUPctRelAvg) || !p.GPUPctRelPeak.matches(s.GPUPctRelPeak) {
				return false
			}
			if !p.MemPctAvg.matches(s.MemPctAvg) || !p.MemPctPeak.matches(s.MemPctPeak) {
				return false
			}
			if !p.RSSAnonPctAvg.matches(s.RSSAnonPctAvg) || !p.RSSAnonPctPeak.matches(s.RSSAnonPctPeak) {
				return false
			}
			if !p.GPUMemPctAvg.matches(s.GPUMemPctAvg) || !p.GPUMemPctPeak.matches(s.GPUMemPctPeak) {
				return false
			}
		}
		if p.MinRuntimeSec > 0 && s.Duration.Seconds < p.MinRuntimeSec {
			return false
		}
		if p.NoGPU && s.UsesGPU {
			return false
		}
		if p.SomeGPU && !s.UsesGPU {
			return false
		}
		if p.Completed && s.Classification&LiveAtEnd != 0 {
			return false
		}
		if p.Running && s.Classification&LiveAtEnd == 0 {
			return false
		}
		if p.Zombie && !s.IsZombie(pool) {
			return false
		}
		return true
	}
}
