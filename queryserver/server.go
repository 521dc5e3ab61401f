package queryserver

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	log "github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/hpctrace/clustertrace/config"
	"github.com/hpctrace/clustertrace/errs"
	"github.com/hpctrace/clustertrace/reconstruct"
	"github.com/hpctrace/clustertrace/sample"
)

type requestIDKey struct{}

// requestID returns the correlation ID withLogging stamped onto req's
// context, or "-" outside a request (e.g. in tests that call a handler
// directly without going through NewRouter).
func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return "-"
}

// Server holds the dependencies shared by every handler: the collection
// cache and the cluster configuration used for capacity-relative metrics.
// Grounded on server/server.go's package-level storageService var, turned
// into an explicit struct so NewRouter has no hidden global state.
type Server struct {
	Cache  *Cache
	Config config.ClusterConfig
}

// NewRouter builds the HTTP surface over s: /ingest, /jobs, /uptime. Every
// route is wrapped by a logging middleware that stamps a request ID, in
// the manner server/server.go wraps its handlers with httpUser lookup.
func NewRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ingest", withLogging(s.handleIngest)).Methods(http.MethodPost)
	r.HandleFunc("/jobs", withLogging(s.handleJobQuery)).Methods(http.MethodPost)
	r.HandleFunc("/uptime", withLogging(s.handleUptimeQuery)).Methods(http.MethodPost)
	return r
}

func withLogging(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := uuid.NewString()
		log.Infof("[%s] %s %s", id, req.Method, req.URL.Path)
		h(w, req.WithContext(context.WithValue(req.Context(), requestIDKey{}, id)))
	}
}

// lookup resolves a cached collection by name, returning a
// errs.ContradictoryRequest-flavored error if it was never ingested (the
// collection cache never lazily ingests -- that only happens via
// handleIngest).
func (s *Server) lookup(req *http.Request, name string) (*Collection, error) {
	if name == "" {
		return nil, errs.ContradictoryRequest("collectionName is required")
	}
	collection, err := s.Cache.GetOrLoad(req.Context(), name, func(context.Context) (*sample.Pool, reconstruct.Streams, sample.Bounds, config.ClusterConfig, error) {
		return nil, nil, nil, nil, errs.ContradictoryRequest("collection %q was never ingested", name)
	})
	return collection, err
}

func sampleTimestampFromUnix(v int64) sample.Timestamp { return sample.Timestamp(v) }

// spoolToTemp copies one multipart file part to a private temp file and
// returns its path, mirroring server/server.go's handleUpload staging
// step (there it streams straight into storage; here ingest.Ingest wants
// real file paths to parallelize over, so a temp file stands in).
func spoolToTemp(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", errs.IO("opening upload part %q: %v", fh.Filename, err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "clustertrace-upload-*.log")
	if err != nil {
		return "", errs.IO("creating temp file: %v", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", errs.IO("staging upload part %q: %v", fh.Filename, err)
	}
	return dst.Name(), nil
}
