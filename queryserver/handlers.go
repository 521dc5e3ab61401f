package queryserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"

	log "github.com/golang/glog"

	"github.com/hpctrace/clustertrace/config"
	"github.com/hpctrace/clustertrace/ingest"
	"github.com/hpctrace/clustertrace/jobs"
	"github.com/hpctrace/clustertrace/reconstruct"
	"github.com/hpctrace/clustertrace/sample"
	"github.com/hpctrace/clustertrace/uptime"
)

const uploadMemoryLimitBytes = 1 << 25 // 32MB, matching server/server.go's upload limit.

// handleIngest accepts a multipart upload of one or more raw log files
// (form field "file", repeatable) plus a "collectionName" form field,
// ingests and reconstructs them, and caches the result under that name.
// Grounded on server/server.go's handleUpload: parse multipart form,
// stream each part to a temp file, then hand the temp paths to the
// ingestion pipeline.
func (s *Server) handleIngest(w http.ResponseWriter, req *http.Request) {
	reqID := requestID(req.Context())
	if err := req.ParseMultipartForm(uploadMemoryLimitBytes); err != nil {
		log.Errorf("[%s] parsing multipart form: %v", reqID, err)
		http.Error(w, "malformed upload", http.StatusBadRequest)
		return
	}
	collectionName := req.FormValue("collectionName")
	if collectionName == "" {
		http.Error(w, "collectionName is required", http.StatusBadRequest)
		return
	}
	files := req.MultipartForm.File["file"]
	if len(files) == 0 {
		http.Error(w, "at least one file part is required", http.StatusBadRequest)
		return
	}

	var paths []string
	for _, fh := range files {
		path, err := spoolToTemp(fh)
		if err != nil {
			log.Errorf("[%s] spooling upload %q: %v", reqID, fh.Filename, err)
			http.Error(w, "failed to stage upload", http.StatusInternalServerError)
			return
		}
		defer os.Remove(path)
		paths = append(paths, path)
	}

	result, err := ingest.Ingest(req.Context(), paths)
	if err != nil {
		log.Errorf("[%s] ingesting %q: %v", reqID, collectionName, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	streams, err := reconstruct.Postprocess(result.Pool, nil, s.Config)
	if err != nil {
		log.Errorf("[%s] reconstructing %q: %v", reqID, collectionName, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// A re-upload under an existing name replaces it outright rather than
	// merging with the cached version.
	s.Cache.Evict(collectionName)
	cfg := s.Config
	if _, err := s.Cache.GetOrLoad(req.Context(), collectionName, func(context.Context) (*sample.Pool, reconstruct.Streams, sample.Bounds, config.ClusterConfig, error) {
		return result.Pool, streams, result.Bounds, cfg, nil
	}); err != nil {
		log.Errorf("[%s] caching %q: %v", reqID, collectionName, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, IngestResponse{
		CollectionName:  collectionName,
		RecordsIngested: len(result.Pool.Entries),
		RecordsDropped:  result.Discarded,
	})
}

// handleJobQuery runs the job aggregator over a cached collection, per
// spec.md §4.6.
func (s *Server) handleJobQuery(w http.ResponseWriter, req *http.Request) {
	var q JobQueryRequest
	if !decodeJSON(w, req, &q) {
		return
	}
	collection, err := s.lookup(req, q.CollectionName)
	if err != nil {
		writeError(w, err)
		return
	}

	var filter jobs.Filter
	if q.NoGPU || q.SomeGPU || q.Completed || q.Running || q.Zombie || q.MinRuntimeSec > 0 {
		filter = jobs.NewFilter(jobs.FilterParams{
			MinRuntimeSec: q.MinRuntimeSec,
			NoGPU:         q.NoGPU,
			SomeGPU:       q.SomeGPU,
			Completed:     q.Completed,
			Running:       q.Running,
			Zombie:        q.Zombie,
		}, collection.Pool)
	}
	summaries := jobs.Aggregate(collection.Pool, collection.Streams, collection.Bounds, collection.Config, jobs.Params{
		Batch:      q.Batch,
		MinSamples: q.MinSamples,
		Filter:     filter,
	})

	if q.Host != "" {
		filtered := summaries[:0]
		for _, sum := range summaries {
			if sum.Host == q.Host {
				filtered = append(filtered, sum)
			}
		}
		summaries = filtered
	}
	if q.FromUnix != 0 && q.ToUnix != 0 {
		idx := NewHostJobIndex(summaries)
		var windowed []jobs.Summary
		seen := make(map[*jobs.Summary]bool)
		for host := range idx.trees {
			for _, sum := range idx.Query(host, q.FromUnix, q.ToUnix) {
				if !seen[sum] {
					seen[sum] = true
					windowed = append(windowed, *sum)
				}
			}
		}
		summaries = windowed
	}

	views := make([]JobSummaryView, 0, len(summaries))
	for _, sum := range summaries {
		views = append(views, JobSummaryView{
			Host:          sum.Host,
			JobID:         sum.JobID,
			User:          sum.User,
			Command:       sum.Command,
			First:         int64(sum.First),
			Last:          int64(sum.Last),
			DurationDays:  sum.Duration.Days,
			DurationHours: sum.Duration.Hours,
			DurationMins:  sum.Duration.Minutes,
			UsesGPU:       sum.UsesGPU,
			LiveAtStart:   sum.Classification&jobs.LiveAtStart != 0,
			LiveAtEnd:     sum.Classification&jobs.LiveAtEnd != 0,
			CPUUtilAvg:    sum.CPUUtilAvg,
			CPUUtilPeak:   sum.CPUUtilPeak,
			GPUPctAvg:     sum.GPUPctAvg,
			GPUPctPeak:    sum.GPUPctPeak,
			MemGBAvg:      sum.MemGBAvg,
			MemGBPeak:     sum.MemGBPeak,
		})
	}
	writeJSON(w, http.StatusOK, JobQueryResponse{CollectionName: q.CollectionName, Jobs: views})
}

// handleUptimeQuery runs the uptime inferencer over a cached collection's
// raw entries, per spec.md §4.7.
func (s *Server) handleUptimeQuery(w http.ResponseWriter, req *http.Request) {
	var q UptimeQueryRequest
	if !decodeJSON(w, req, &q) {
		return
	}
	collection, err := s.lookup(req, q.CollectionName)
	if err != nil {
		writeError(w, err)
		return
	}

	reports := uptime.Infer(collection.Pool, collection.Pool.Entries, uptime.Params{
		IntervalMinutes: q.IntervalMinutes,
		From:            sampleTimestampFromUnix(q.FromUnix),
		To:              sampleTimestampFromUnix(q.ToUnix),
		OnlyUp:          q.OnlyUp,
		OnlyDown:        q.OnlyDown,
	})

	views := make([]UptimeReportView, 0, len(reports))
	for _, r := range reports {
		views = append(views, UptimeReportView{
			Device: string(r.Device),
			Host:   r.Host,
			State:  string(r.State),
			Start:  int64(r.Start),
			End:    int64(r.End),
		})
	}
	writeJSON(w, http.StatusOK, UptimeQueryResponse{CollectionName: q.CollectionName, Reports: views})
}

func decodeJSON(w http.ResponseWriter, req *http.Request, v interface{}) bool {
	defer req.Body.Close()
	if err := json.NewDecoder(req.Body).Decode(v); err != nil && err != io.EOF {
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
