package ipc

import "time"

// ServiceName is the JSON-RPC service prefix.
const ServiceName = "MusicForge"

// StopRequest stops the watch daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// ActiveJob is a job currently being processed.
type ActiveJob struct {
	ID         int64   `json:"id"`
	Source     string  `json:"source"`
	Output     string  `json:"output"`
	Percent    float64 `json:"percent"`
	ETASeconds float64 `json:"eta_seconds"`
}

// StatusResponse represents combined daemon/dispatcher status information.
type StatusResponse struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	StartedAt     time.Time      `json:"started_at"`
	WatchDir      string         `json:"watch_dir"`
	OutputDir     string         `json:"output_dir"`
	BatchID       string         `json:"batch_id"`
	Ingested      int            `json:"ingested"`
	Counts        map[string]int `json:"counts"`
	Active        []ActiveJob    `json:"active"`
	MetricsAddr   string         `json:"metrics_addr"`
	LockPath      string         `json:"lock_path"`
	HistoryDBPath string         `json:"history_db_path"`
}
