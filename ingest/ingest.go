// Package ingest implements the ingestor of spec.md §4.2: read a list of
// file paths, accumulate LogEntry records via the parser, and compute
// per-host time bounds in a single pass over the accumulated pool.
//
// Per spec.md §5, "the ingestor may parse multiple files in parallel;
// each file yields an independent record vector that is concatenated
// afterwards" -- grounded on the teacher's fan-out-then-join pattern for
// independent per-file work (server/storage_service.go's per-collection
// goroutines), implemented here with golang.org/x/sync/errgroup the way the
// rest of the example pack uses it for embarrassingly-parallel I/O.
package ingest

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/hpctrace/clustertrace/errs"
	"github.com/hpctrace/clustertrace/parse"
	"github.com/hpctrace/clustertrace/sample"
)

// Result is the ingestor's output: the record pool, the accumulated
// discard count, and the per-host time bounds computed over it.
type Result struct {
	Pool      *sample.Pool
	Discarded int
	Bounds    sample.Bounds
}

// Ingest reads every path in paths, parsing the files concurrently, then
// accumulates their records into one shared Pool in listed path order, and
// returns the discard count and time bounds.
//
// ctx is checked before each file is opened, per spec.md §5's cancellation
// discipline; a file already being parsed runs to completion, and Ingest
// returns the cancellation error if any file saw it.
func Ingest(ctx context.Context, paths []string) (*Result, error) {
	pool := sample.NewPool()

	// Each file parses into its own temporary pool (so concurrent parses
	// never contend on the shared Bank's write lock except at merge time),
	// then results are concatenated in path order for determinism.
	type fileResult struct {
		pool      *sample.Pool
		discarded int
	}
	results := make([]fileResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			filePool := sample.NewPool()
			f, err := os.Open(path)
			if err != nil {
				return errs.IO("opening %s: %v", path, err)
			}
			defer f.Close()
			discarded, err := parse.Parse(f, filePool)
			if err != nil {
				return errs.IO("reading %s: %v", path, err)
			}
			results[i] = fileResult{pool: filePool, discarded: discarded}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	discarded := 0
	for _, r := range results {
		discarded += r.discarded
		for _, e := range r.pool.Entries {
			pool.Add(e, r.pool.Host(e), r.pool.User(e), r.pool.Command(e))
		}
	}

	return &Result{
		Pool:      pool,
		Discarded: discarded,
		Bounds:    computeBounds(pool),
	}, nil
}

// computeBounds scans pool's entries once, computing the min/max timestamp
// per host, per spec.md §4.2 and §3.
func computeBounds(pool *sample.Pool) sample.Bounds {
	bounds := make(sample.Bounds)
	for _, e := range pool.Entries {
		b, ok := bounds[e.Host]
		if !ok {
			bounds[e.Host] = sample.Bound{Earliest: e.Time, Latest: e.Time}
			continue
		}
		if e.Time < b.Earliest {
			b.Earliest = e.Time
		}
		if e.Time > b.Latest {
			b.Latest = e.Time
		}
		bounds[e.Host] = b
	}
	return bounds
}
