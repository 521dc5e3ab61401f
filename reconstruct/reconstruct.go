// Package reconstruct implements the stream reconstructor of spec.md §4.3:
// postprocess partitions a record pool into per-artifact sample streams,
// establishes the strictly-increasing-timestamp invariant, derives
// cpu_util_pct, and normalizes GPU memory against host capacity.
//
// Grounded on the partition/sort/derive shape of
// original_source/code/sonarlog/src/synthesize.rs (the Rust postprocess
// equivalent) and on the teacher's per-collection derived-metric passes in
// analysis/sched_metrics.go (single forward scan computing a running
// derived value from consecutive records).
package reconstruct

import (
	"sort"

	"github.com/hpctrace/clustertrace/config"
	"github.com/hpctrace/clustertrace/errs"
	"github.com/hpctrace/clustertrace/sample"
	"github.com/hpctrace/clustertrace/stringbank"
)

// Filter is a record-level predicate applied as the final postprocess step,
// per spec.md §4.3 step 6 and §9 ("record-level filter... a pure function
// from a record to bool").
type Filter func(*sample.LogEntry) bool

// Streams maps a sample-stream key to its reconstructed Stream.
type Streams map[sample.Key]sample.Stream

// Postprocess runs the full stream reconstructor over pool's entries, per
// spec.md §4.3. cfg is optional; when nil, GPU memory is left as ingested
// and no capacity normalization occurs.
func Postprocess(pool *sample.Pool, filter Filter, cfg config.ClusterConfig) (Streams, error) {
	if err := rewriteRollupIDs(pool); err != nil {
		return nil, err
	}

	// One cache serves every host lookup for this postprocess pass: every
	// record in every bucket re-resolves the same handful of hostnames in
	// normalizeGPUMemory.
	var cache *config.Cache
	if cfg != nil {
		cache = config.NewCache(cfg, 0)
	}

	buckets := partition(pool.Entries)
	streams := make(Streams, len(buckets))
	for key, entries := range buckets {
		entries = sortAndDedup(entries)
		deriveCPUUtilPct(entries)
		if cache != nil {
			normalizeGPUMemory(pool, entries, cache)
		}
		if filter != nil {
			entries = applyFilter(entries, filter)
		}
		if len(entries) == 0 {
			continue
		}
		streams[key] = sample.Stream(entries)
	}
	return streams, nil
}

// rewriteRollupIDs implements spec.md §4.3 step 1: every rolled-up record's
// pid becomes job_id|ROLLUP_BIT. It fails if that rewrite would collide with
// a genuine (non-rolled-up) pid already present for the same (host,
// command) -- in practice precluded by the sentinel bit, but checked since
// the corpus is untrusted input.
func rewriteRollupIDs(pool *sample.Pool) error {
	type identity struct {
		host    stringbank.ID
		command stringbank.ID
		pid     uint32
	}
	realPids := make(map[identity]bool)
	for _, e := range pool.Entries {
		if e.RolledUp == 0 {
			if e.Pid&sample.RollupBit != 0 {
				return errs.Internal(
					"record pid %d on host %s already carries the rollup sentinel bit",
					e.Pid, pool.Host(e))
			}
			realPids[identity{e.Host, e.Command, e.Pid}] = true
		}
	}
	for _, e := range pool.Entries {
		if e.RolledUp == 0 {
			continue
		}
		rewritten := e.JobID | sample.RollupBit
		if realPids[identity{e.Host, e.Command, rewritten}] {
			return errs.Internal(
				"rollup rewrite for job %d on host %s collides with an existing pid",
				e.JobID, pool.Host(e))
		}
		e.Pid = rewritten
	}
	return nil
}

// partition implements spec.md §4.3 step 2: bucket by (host, pid, command).
func partition(entries []*sample.LogEntry) map[sample.Key][]*sample.LogEntry {
	buckets := make(map[sample.Key][]*sample.LogEntry)
	for _, e := range entries {
		key := sample.KeyOf(e)
		buckets[key] = append(buckets[key], e)
	}
	return buckets
}

// sortAndDedup implements spec.md §4.3 step 3: ascending sort by timestamp,
// then drop all but the first of any run of equal timestamps.
func sortAndDedup(entries []*sample.LogEntry) []*sample.LogEntry {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Time < entries[j].Time })
	out := entries[:0]
	var lastTime sample.Timestamp
	first := true
	for _, e := range entries {
		if !first && e.Time == lastTime {
			continue
		}
		out = append(out, e)
		lastTime = e.Time
		first = false
	}
	return out
}

// deriveCPUUtilPct implements spec.md §4.3 step 4.
func deriveCPUUtilPct(entries []*sample.LogEntry) {
	for i, e := range entries {
		if i == 0 {
			e.CPUUtilPct = e.CPUPct
			continue
		}
		prev := entries[i-1]
		dt := e.Time.Sub(prev.Time)
		dc := e.CPUTimeSec - prev.CPUTimeSec
		if dt <= 0 || dc < 0 {
			e.CPUUtilPct = e.CPUPct
			continue
		}
		e.CPUUtilPct = 100 * dc / float64(dt)
	}
}

// normalizeGPUMemory implements spec.md §4.3 step 5.
func normalizeGPUMemory(pool *sample.Pool, entries []*sample.LogEntry, cache *config.Cache) {
	for _, e := range entries {
		host, ok := cache.Lookup(pool.Host(e))
		if !ok || host.GPUMemGB == 0 {
			continue
		}
		capacity := float64(host.GPUMemGB)
		if host.GPUMemPctFlag {
			e.GPUMemGB = e.GPUMemPct / 100 * capacity
		} else {
			e.GPUMemPct = 100 * e.GPUMemGB / capacity
		}
	}
}

// applyFilter implements spec.md §4.3 step 6.
func applyFilter(entries []*sample.LogEntry, filter Filter) []*sample.LogEntry {
	out := entries[:0]
	for _, e := range entries {
		if filter(e) {
			out = append(out, e)
		}
	}
	return out
}
