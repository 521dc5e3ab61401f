package queryserver

// IngestRequest names the collection a set of uploaded log files should be
// ingested under. The files themselves travel as multipart form parts
// named "file" (see handleIngest), mirroring server/fs_upload_file.go's
// upload shape.
type IngestRequest struct {
	CollectionName string `json:"collectionName"`
}

// IngestResponse reports the outcome of an ingest, per spec.md §5's
// ingestion-diagnostics requirement.
type IngestResponse struct {
	CollectionName  string `json:"collectionName"`
	RecordsIngested int    `json:"recordsIngested"`
	RecordsDropped  int    `json:"recordsDropped"`
}

// JobQueryRequest requests job summaries for a collection, per spec.md
// §4.6.
type JobQueryRequest struct {
	CollectionName string `json:"collectionName"`
	Host           string `json:"host"` // optional; empty means all hosts
	Batch          bool   `json:"batch"`
	MinSamples     int    `json:"minSamples"`
	MinRuntimeSec  int64  `json:"minRuntimeSec"`
	NoGPU          bool   `json:"noGpu"`
	SomeGPU        bool   `json:"someGpu"`
	Completed      bool   `json:"completed"`
	Running        bool   `json:"running"`
	Zombie         bool   `json:"zombie"`
	// FromUnix/ToUnix, if both nonzero, restrict results to jobs
	// overlapping [from,to] via the collection's per-host interval index.
	FromUnix int64 `json:"fromUnix"`
	ToUnix   int64 `json:"toUnix"`
}

// JobSummaryView is the wire form of a jobs.Summary.
type JobSummaryView struct {
	Host          string  `json:"host"`
	JobID         uint32  `json:"jobId"`
	User          string  `json:"user"`
	Command       string  `json:"command"`
	First         int64   `json:"first"`
	Last          int64   `json:"last"`
	DurationDays  int     `json:"durationDays"`
	DurationHours int     `json:"durationHours"`
	DurationMins  int     `json:"durationMinutes"`
	UsesGPU       bool    `json:"usesGpu"`
	LiveAtStart   bool    `json:"liveAtStart"`
	LiveAtEnd     bool    `json:"liveAtEnd"`
	CPUUtilAvg    float64 `json:"cpuUtilAvg"`
	CPUUtilPeak   float64 `json:"cpuUtilPeak"`
	GPUPctAvg     float64 `json:"gpuPctAvg"`
	GPUPctPeak    float64 `json:"gpuPctPeak"`
	MemGBAvg      float64 `json:"memGbAvg"`
	MemGBPeak     float64 `json:"memGbPeak"`
}

// JobQueryResponse is the job aggregator's HTTP response.
type JobQueryResponse struct {
	CollectionName string           `json:"collectionName"`
	Jobs           []JobSummaryView `json:"jobs"`
}

// UptimeQueryRequest requests an uptime timeline for a collection, per
// spec.md §4.7.
type UptimeQueryRequest struct {
	CollectionName  string `json:"collectionName"`
	IntervalMinutes int    `json:"intervalMinutes"`
	FromUnix        int64  `json:"fromUnix"`
	ToUnix          int64  `json:"toUnix"`
	OnlyUp          bool   `json:"onlyUp"`
	OnlyDown        bool   `json:"onlyDown"`
}

// UptimeReportView is the wire form of an uptime.Report.
type UptimeReportView struct {
	Device string `json:"device"`
	Host   string `json:"host"`
	State  string `json:"state"`
	Start  int64  `json:"start"`
	End    int64  `json:"end"`
}

// UptimeQueryResponse is the uptime inferencer's HTTP response.
type UptimeQueryResponse struct {
	CollectionName string             `json:"collectionName"`
	Reports        []UptimeReportView `json:"reports"`
}
