package queryserver

import (
	"github.com/Workiva/go-datastructures/augmentedtree"

	"github.com/hpctrace/clustertrace/jobs"
	"github.com/hpctrace/clustertrace/sample"
)

// jobInterval adapts a jobs.Summary to augmentedtree.Interval, so a host's
// jobs can be range-queried by [First,Last] overlap. Grounded on
// analysis/sched_thread_span.go's threadSpan, the teacher's own
// augmentedtree.Interval adapter over a time-bounded record.
type jobInterval struct {
	summary *jobs.Summary
	id      uint64
}

func (ji *jobInterval) LowAtDimension(d uint64) int64  { return int64(ji.summary.First) }
func (ji *jobInterval) HighAtDimension(d uint64) int64 { return int64(ji.summary.Last) }

func (ji *jobInterval) OverlapsAtDimension(j augmentedtree.Interval, d uint64) bool {
	return ji.HighAtDimension(d) >= j.LowAtDimension(d) &&
		j.HighAtDimension(d) >= ji.LowAtDimension(d)
}

func (ji *jobInterval) ID() uint64 { return ji.id }

// queryID is the reserved interval ID used for ad hoc range queries, never
// assigned to an indexed job.
const queryID uint64 = 0

// HostJobIndex is a per-host interval index over a collection's job
// summaries, answering "which jobs were active during [from,to]" in
// O(log n + k) rather than a linear scan of every job on the host.
type HostJobIndex struct {
	trees map[string]augmentedtree.Tree
}

// NewHostJobIndex builds an index from summaries, bucketed by Host.
func NewHostJobIndex(summaries []jobs.Summary) *HostJobIndex {
	idx := &HostJobIndex{trees: make(map[string]augmentedtree.Tree)}
	for i := range summaries {
		s := &summaries[i]
		tree, ok := idx.trees[s.Host]
		if !ok {
			tree = augmentedtree.New(1)
			idx.trees[s.Host] = tree
		}
		tree.Add(&jobInterval{summary: s, id: uint64(i + 1)})
	}
	return idx
}

// Query returns every job summary on host overlapping [from,to].
func (idx *HostJobIndex) Query(host string, from, to int64) []*jobs.Summary {
	tree, ok := idx.trees[host]
	if !ok {
		return nil
	}
	results := tree.Query(&jobInterval{
		summary: &jobs.Summary{First: sample.Timestamp(from), Last: sample.Timestamp(to)},
		id:      queryID,
	})
	out := make([]*jobs.Summary, 0, len(results))
	for _, r := range results {
		out = append(out, r.(*jobInterval).summary)
	}
	return out
}
