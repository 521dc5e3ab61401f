// Package config loads the cluster configuration of spec.md §3 and §6: a
// JSON document describing, per host, its CPU core count, memory, and GPU
// capacity, consumed by the stream reconstructor (GPU memory normalization)
// and the job aggregator (capacity-relative metrics). The uptime inferencer
// does not use it; its sampling interval is caller-supplied.
//
// Grounded on original_source/code/sonarlog/src/configs.rs's read_from_json,
// which keeps an absent optional field distinguishable from a present zero.
// Here that is one encoding/json decode into a struct whose optional fields
// are pointers (rawHost), followed by per-field checks. Hostname glob/range expansion
// (original_source's expand_hostname) is out of scope per spec.md §1; a
// caller-supplied HostMatcher takes its place.
package config

import (
	"encoding/json"
	"io"

	lru "github.com/golang/groupcache/lru"

	"github.com/hpctrace/clustertrace/errs"
)

// HostConfig is one node's capacity facts, per spec.md §3's cluster
// configuration map value.
type HostConfig struct {
	Hostname      string
	Description   string
	CPUCores      int
	MemGB         int
	GPUCards      int
	GPUMemGB      int
	GPUMemPctFlag bool
	CrossNodeJobs bool
}

// ClusterConfig maps hostname to HostConfig. Absent from this map means
// "unavailable" per spec.md §3: capacity-relative metrics are reported as
// zero.
type ClusterConfig map[string]HostConfig

// HostMatcher expands a hostname pattern from a config file entry into the
// literal hostnames it denotes. Out of scope per spec.md §1 ("the
// host-pattern matcher, a glob/range DSL"); nil means every hostname field
// is used literally, unexpanded.
type HostMatcher interface {
	Expand(pattern string) ([]string, error)
}

// rawHost mirrors the JSON shape documented in spec.md §6, with pointer
// fields so an absent optional key is distinguishable from an explicit
// zero/false, the same distinction configs.rs's grab_usize_opt/grab_bool_opt
// make by matching on serde_json::Value presence.
type rawHost struct {
	Hostname      string  `json:"hostname"`
	Description   *string `json:"description"`
	CPUCores      *int    `json:"cpu_cores"`
	MemGB         *int    `json:"mem_gb"`
	GPUCards      *int    `json:"gpu_cards"`
	GPUMemGB      *int    `json:"gpumem_gb"`
	GPUMemPct     *bool   `json:"gpumem_pct"`
	CrossNodeJobs *bool   `json:"cross_node_jobs"`
}

// Load decodes a cluster configuration document from r: a JSON array of
// host objects, per spec.md §6. matcher expands each entry's hostname field
// into one or more literal hostnames; pass nil to use hostname fields
// literally.
func Load(r io.Reader, matcher HostMatcher) (ClusterConfig, error) {
	var raws []rawHost
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, errs.InvalidConfig("decoding cluster config: %v", err)
	}

	cfg := make(ClusterConfig, len(raws))
	for _, raw := range raws {
		if raw.Hostname == "" {
			return nil, errs.InvalidConfig("config entry missing required 'hostname' field")
		}
		if raw.CPUCores == nil {
			return nil, errs.InvalidConfig("host %s: missing required 'cpu_cores' field", raw.Hostname)
		}
		if raw.MemGB == nil {
			return nil, errs.InvalidConfig("host %s: missing required 'mem_gb' field", raw.Hostname)
		}
		if raw.GPUCards == nil && (raw.GPUMemGB != nil || raw.GPUMemPct != nil) {
			return nil, errs.InvalidConfig("host %s: gpumem_gb/gpumem_pct present without gpu_cards", raw.Hostname)
		}

		host := HostConfig{
			CPUCores: *raw.CPUCores,
			MemGB:    *raw.MemGB,
		}
		if raw.Description != nil {
			host.Description = *raw.Description
		}
		if raw.GPUCards != nil {
			host.GPUCards = *raw.GPUCards
		}
		if raw.GPUMemGB != nil {
			host.GPUMemGB = *raw.GPUMemGB
		}
		if raw.GPUMemPct != nil {
			host.GPUMemPctFlag = *raw.GPUMemPct
		}
		if raw.CrossNodeJobs != nil {
			host.CrossNodeJobs = *raw.CrossNodeJobs
		}

		names := []string{raw.Hostname}
		if matcher != nil {
			expanded, err := matcher.Expand(raw.Hostname)
			if err != nil {
				return nil, errs.InvalidConfig("expanding hostname %q: %v", raw.Hostname, err)
			}
			names = expanded
		}
		for _, name := range names {
			if _, dup := cfg[name]; dup {
				return nil, errs.InvalidConfig("host %s defined more than once", name)
			}
			entry := host
			entry.Hostname = name
			cfg[name] = entry
		}
	}
	return cfg, nil
}

// Cache fronts a ClusterConfig with a bounded LRU of recent lookups. The job
// aggregator and stream reconstructor both repeatedly re-resolve the same
// handful of hostnames while folding over a large record pool; Lookup
// answers repeated hosts from the LRU and consults the ClusterConfig map
// only on a miss. Grounded on the teacher's
// CachedCollection pattern (server/storage_service.go), using
// github.com/golang/groupcache/lru for the eviction policy per the domain
// stack.
type Cache struct {
	cfg   ClusterConfig
	cache *lru.Cache
}

// NewCache wraps cfg with an LRU of the given size. A size of 0 means
// unbounded (groupcache/lru's convention).
func NewCache(cfg ClusterConfig, size int) *Cache {
	return &Cache{cfg: cfg, cache: lru.New(size)}
}

// Lookup returns host's HostConfig and whether it is present in the
// underlying ClusterConfig.
func (c *Cache) Lookup(host string) (HostConfig, bool) {
	if v, ok := c.cache.Get(host); ok {
		return v.(HostConfig), true
	}
	hc, ok := c.cfg[host]
	if !ok {
		return HostConfig{}, false
	}
	c.cache.Add(host, hc)
	return hc, true
}
