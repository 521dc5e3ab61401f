package config

import (
	"strings"
	"testing"
)

func TestLoadBasic(t *testing.T) {
	doc := `[
		{"hostname": "ml1.cluster", "cpu_cores": 16, "mem_gb": 128, "gpu_cards": 2, "gpumem_gb": 80, "gpumem_pct": true, "cross_node_jobs": true},
		{"hostname": "ml2.cluster", "cpu_cores": 8, "mem_gb": 64}
	]`
	cfg, err := Load(strings.NewReader(doc), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ml1, ok := cfg["ml1.cluster"]
	if !ok {
		t.Fatalf("missing ml1.cluster")
	}
	if ml1.CPUCores != 16 || ml1.GPUCards != 2 || ml1.GPUMemGB != 80 || !ml1.GPUMemPctFlag || !ml1.CrossNodeJobs {
		t.Errorf("ml1 = %+v, unexpected", ml1)
	}
	ml2, ok := cfg["ml2.cluster"]
	if !ok {
		t.Fatalf("missing ml2.cluster")
	}
	if ml2.GPUCards != 0 || ml2.CrossNodeJobs {
		t.Errorf("ml2 = %+v, want zero GPU facts and no cross-node flag", ml2)
	}
}

func TestLoadMissingRequiredField(t *testing.T) {
	doc := `[{"hostname": "ml1", "mem_gb": 64}]`
	if _, err := Load(strings.NewReader(doc), nil); err == nil {
		t.Errorf("Load(missing cpu_cores) = nil error, want error")
	}
}

func TestLoadGPUMemWithoutGPUCards(t *testing.T) {
	doc := `[{"hostname": "ml1", "cpu_cores": 8, "mem_gb": 64, "gpumem_gb": 40}]`
	if _, err := Load(strings.NewReader(doc), nil); err == nil {
		t.Errorf("Load(gpumem_gb without gpu_cards) = nil error, want error")
	}
}

func TestLoadDuplicateHost(t *testing.T) {
	doc := `[
		{"hostname": "ml1", "cpu_cores": 8, "mem_gb": 64},
		{"hostname": "ml1", "cpu_cores": 8, "mem_gb": 64}
	]`
	if _, err := Load(strings.NewReader(doc), nil); err == nil {
		t.Errorf("Load(duplicate host) = nil error, want error")
	}
}

type fixedMatcher struct{ expansions []string }

func (m fixedMatcher) Expand(pattern string) ([]string, error) { return m.expansions, nil }

func TestLoadWithHostMatcher(t *testing.T) {
	doc := `[{"hostname": "a[1-2].fox", "cpu_cores": 8, "mem_gb": 64}]`
	cfg, err := Load(strings.NewReader(doc), fixedMatcher{expansions: []string{"a1.fox", "a2.fox"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg) != 2 {
		t.Fatalf("len(cfg) = %d, want 2", len(cfg))
	}
	if _, ok := cfg["a1.fox"]; !ok {
		t.Errorf("missing a1.fox")
	}
	if _, ok := cfg["a2.fox"]; !ok {
		t.Errorf("missing a2.fox")
	}
}

func TestCacheLookup(t *testing.T) {
	cfg := ClusterConfig{"ml1": {Hostname: "ml1", CPUCores: 16}}
	cache := NewCache(cfg, 8)
	hc, ok := cache.Lookup("ml1")
	if !ok || hc.CPUCores != 16 {
		t.Errorf("Lookup(ml1) = %+v, %v, want CPUCores=16, true", hc, ok)
	}
	// Second lookup exercises the cache-hit path.
	hc2, ok := cache.Lookup("ml1")
	if !ok || hc2.CPUCores != 16 {
		t.Errorf("second Lookup(ml1) = %+v, %v, want CPUCores=16, true", hc2, ok)
	}
	if _, ok := cache.Lookup("ml9"); ok {
		t.Errorf("Lookup(ml9) ok = true, want false")
	}
}
