package merge

import (
	"sort"
	"strings"

	"github.com/hpctrace/clustertrace/reconstruct"
	"github.com/hpctrace/clustertrace/sample"
	"github.com/hpctrace/clustertrace/stringbank"
)

// mergedIdentity string, interned once into every pool a merger runs
// against, per spec.md §4.4.3/4.4.4's "_merged_" convention.
const mergedIdentity = "_merged_"

// MergeByHostJob implements spec.md §4.4.1: group streams by (host,
// job_id); job_id==0 passes through unchanged since it conventionally means
// "no job". command is the sorted comma-join of distinct contributing
// commands; user is any contributor's user (all streams for one job share
// one user).
func MergeByHostJob(pool *sample.Pool, in reconstruct.Streams) reconstruct.Streams {
	type hostJobKey struct {
		host stringbank.ID
		job  uint32
	}
	groups := make(map[hostJobKey][]sample.Stream)
	out := make(reconstruct.Streams, len(in))

	for key, s := range in {
		job := s.First().JobID
		if job == 0 {
			out[key] = s
			continue
		}
		hjk := hostJobKey{host: s.First().Host, job: job}
		groups[hjk] = append(groups[hjk], s)
	}

	for hjk, group := range groups {
		records := reconstructWindow(group)
		if len(records) == 0 {
			continue
		}
		cmdID := pool.Bank.Intern(joinedCommands(pool, group))
		userID := group[0].First().User
		for _, r := range records {
			r.Host = hjk.host
			r.JobID = hjk.job
			r.Command = cmdID
			r.User = userID
		}
		out[sample.Key{Host: hjk.host, Artifact: hjk.job, Command: cmdID}] = sample.Stream(records)
	}
	return out
}

// MergeByJobAcrossHosts implements spec.md §4.4.2: group solely by job_id;
// job_id==0 passes through unchanged. The synthesized hostname is the
// compressed textual union of contributing hostnames, and bounds gains a
// fresh entry for that synthesized hostname spanning the contributors'
// elementwise min-earliest/max-latest.
func MergeByJobAcrossHosts(pool *sample.Pool, in reconstruct.Streams, bounds sample.Bounds) (reconstruct.Streams, sample.Bounds) {
	groups := make(map[uint32][]sample.Stream)
	out := make(reconstruct.Streams, len(in))
	outBounds := bounds

	for key, s := range in {
		job := s.First().JobID
		if job == 0 {
			out[key] = s
			continue
		}
		groups[job] = append(groups[job], s)
	}

	for job, group := range groups {
		records := reconstructWindow(group)
		if len(records) == 0 {
			continue
		}
		hostnames := contributingHostnames(pool, group)
		hostID := pool.Bank.Intern(CompressHostnames(hostnames))
		cmdID := pool.Bank.Intern(joinedCommands(pool, group))
		userID := group[0].First().User

		for _, r := range records {
			r.Host = hostID
			r.JobID = job
			r.Command = cmdID
			r.User = userID
		}
		out[sample.Key{Host: hostID, Artifact: job, Command: cmdID}] = sample.Stream(records)

		bound, ok := unionBounds(bounds, group, pool)
		if ok {
			if outBounds == nil {
				outBounds = make(sample.Bounds, len(bounds)+1)
				for h, b := range bounds {
					outBounds[h] = b
				}
			}
			outBounds[hostID] = bound
		}
	}
	return out, outBounds
}

// MergeByHostAcrossJobs implements spec.md §4.4.3: group by hostname,
// folding every job on a host into one stream for host-load views.
func MergeByHostAcrossJobs(pool *sample.Pool, in reconstruct.Streams) reconstruct.Streams {
	groups := make(map[stringbank.ID][]sample.Stream)
	for _, s := range in {
		host := s.First().Host
		groups[host] = append(groups[host], s)
	}

	mergedID := pool.Bank.Intern(mergedIdentity)
	out := make(reconstruct.Streams, len(groups))
	for host, group := range groups {
		records := reconstructWindow(group)
		if len(records) == 0 {
			continue
		}
		for _, r := range records {
			r.Host = host
			r.JobID = 0
			r.Command = mergedID
			r.User = mergedID
		}
		out[sample.Key{Host: host, Artifact: 0, Command: mergedID}] = sample.Stream(records)
	}
	return out
}

// MergeAcrossHostsByTime implements spec.md §4.4.4: operates on already
// one-per-host merged streams (typically MergeByHostAcrossJobs's output),
// producing at most one synthesized stream covering every contributing
// host. Hostname is compressed over all contributors.
func MergeAcrossHostsByTime(pool *sample.Pool, in reconstruct.Streams) reconstruct.Streams {
	if len(in) == 0 {
		return reconstruct.Streams{}
	}
	group := make([]sample.Stream, 0, len(in))
	for _, s := range in {
		group = append(group, s)
	}

	records := reconstructWindow(group)
	out := make(reconstruct.Streams, 1)
	if len(records) == 0 {
		return out
	}
	hostnames := contributingHostnames(pool, group)
	hostID := pool.Bank.Intern(CompressHostnames(hostnames))
	mergedID := pool.Bank.Intern(mergedIdentity)
	for _, r := range records {
		r.Host = hostID
		r.JobID = 0
		r.Command = mergedID
		r.User = mergedID
	}
	out[sample.Key{Host: hostID, Artifact: 0, Command: mergedID}] = sample.Stream(records)
	return out
}

func joinedCommands(pool *sample.Pool, group []sample.Stream) string {
	seen := make(map[string]bool)
	for _, s := range group {
		seen[pool.Command(s.First())] = true
	}
	cmds := make([]string, 0, len(seen))
	for c := range seen {
		cmds = append(cmds, c)
	}
	sort.Strings(cmds)
	return strings.Join(cmds, ",")
}

func contributingHostnames(pool *sample.Pool, group []sample.Stream) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, s := range group {
		h := pool.Host(s.First())
		if !seen[h] {
			seen[h] = true
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// unionBounds computes the elementwise (min earliest, max latest) over the
// input bounds of every host contributing to group.
func unionBounds(bounds sample.Bounds, group []sample.Stream, pool *sample.Pool) (sample.Bound, bool) {
	var result sample.Bound
	found := false
	for _, s := range group {
		b, ok := bounds[s.First().Host]
		if !ok {
			continue
		}
		if !found {
			result = b
			found = true
			continue
		}
		if b.Earliest < result.Earliest {
			result.Earliest = b.Earliest
		}
		if b.Latest > result.Latest {
			result.Latest = b.Latest
		}
	}
	return result, found
}
