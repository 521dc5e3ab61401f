// Package queryserver exposes the ingestor, reconstructor, mergers, job
// aggregator and uptime inferencer behind an HTTP API: upload raw log
// files under a collection name, then query jobs and uptime against the
// ingested and reconstructed result.
//
// Grounded on server/storage_service.go's storageBase/CachedCollection: an
// LRU of lazily-populated, ready-channel-gated entries, adapted here to
// cache *Collection (a Pool plus its per-key reconstructed streams and
// bounds) instead of a sched.Collection.
package queryserver

import (
	"context"
	"sync"

	"github.com/hashicorp/golang-lru/simplelru"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hpctrace/clustertrace/config"
	"github.com/hpctrace/clustertrace/reconstruct"
	"github.com/hpctrace/clustertrace/sample"
)

// Collection is one ingested-and-reconstructed unit of telemetry, cached
// under the name it was uploaded as.
type Collection struct {
	Pool    *sample.Pool
	Streams reconstruct.Streams
	Bounds  sample.Bounds
	Config  config.ClusterConfig

	ready chan struct{}
	err   error
}

func newCollection() *Collection {
	return &Collection{ready: make(chan struct{})}
}

// wait blocks until release has been called, or ctx ends.
func (c *Collection) wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release unblocks wait, which must not be called again after.
func (c *Collection) release() {
	close(c.ready)
}

// Cache is an LRU of named Collections, safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	lru   *simplelru.LRU
	stats struct{ adds, evictions int }
}

// NewCache returns a Cache holding at most size collections at once.
func NewCache(size int) (*Cache, error) {
	lru, err := simplelru.NewLRU(size, nil)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "creating collection cache: %v", err)
	}
	return &Cache{lru: lru}, nil
}

// GetOrLoad returns the named collection, loading it via load if it is not
// already cached. Concurrent calls for the same name that race the load
// block on the same in-flight Collection rather than loading twice.
func (c *Cache) GetOrLoad(ctx context.Context, name string, load func(ctx context.Context) (*sample.Pool, reconstruct.Streams, sample.Bounds, config.ClusterConfig, error)) (*Collection, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(name); ok {
		c.mu.Unlock()
		collection := v.(*Collection)
		if err := collection.wait(ctx); err != nil {
			return nil, err
		}
		return collection, nil
	}
	collection := newCollection()
	evicted := c.lru.Add(name, collection)
	c.stats.adds++
	if evicted {
		c.stats.evictions++
	}
	c.mu.Unlock()

	pool, streams, bounds, cfg, err := load(ctx)
	collection.Pool, collection.Streams, collection.Bounds, collection.Config = pool, streams, bounds, cfg
	collection.err = err
	collection.release()
	if err != nil {
		return nil, err
	}
	return collection, nil
}

// Evict removes name from the cache, if present.
func (c *Cache) Evict(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(name)
}

// Stats returns cumulative add/eviction counts, for diagnostics.
func (c *Cache) Stats() (adds, evictions int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.adds, c.stats.evictions
}
