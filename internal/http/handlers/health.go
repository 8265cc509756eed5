package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"gorm.io/gorm"

	"github.com/tgrayson/streamtv/internal/broadcast"
	"github.com/tgrayson/streamtv/internal/repository"
)

// HealthHandler handles health and status endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *gorm.DB
	channels  repository.ChannelRepository
	manager   *broadcast.Manager
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}
}

// WithDB sets the database connection for health checks.
func (h *HealthHandler) WithDB(db *gorm.DB) *HealthHandler {
	h.db = db
	return h
}

// WithChannels sets the channel repository for status counts.
func (h *HealthHandler) WithChannels(channels repository.ChannelRepository) *HealthHandler {
	h.channels = channels
	return h
}

// WithManager sets the broadcast manager for playout state reporting.
func (h *HealthHandler) WithManager(manager *broadcast.Manager) *HealthHandler {
	h.manager = manager
	return h
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Description: "Returns service liveness and database reachability",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getStatus",
		Method:      "GET",
		Path:        "/api/v1/status",
		Summary:     "Service status",
		Description: "Returns system metrics and per-channel playout state",
		Tags:        []string{"System"},
	}, h.GetStatus)
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	now := time.Now()

	dbStatus := "unknown"
	status := "healthy"
	if h.db != nil {
		dbStatus = "ok"
		if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
			status = "degraded"
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:    status,
			Timestamp: now.UTC().Format(time.RFC3339),
			Version:   h.version,
			Uptime:    now.Sub(h.startTime).Round(time.Second).String(),
			Checks: map[string]string{
				"database": dbStatus,
			},
		},
	}, nil
}

// CPUInfo reports load averages relative to core count.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo reports system and process memory in MB.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	UsedMemoryMB      float64 `json:"used_memory_mb"`
	AvailableMemoryMB float64 `json:"available_memory_mb"`
	ProcessMemoryMB   float64 `json:"process_memory_mb"`
	ChildProcessCount int     `json:"child_process_count"`
	ChildProcessesMB  float64 `json:"child_processes_mb"`
}

// StatusResponse is the body of the status endpoint.
type StatusResponse struct {
	Version        string            `json:"version"`
	Uptime         string            `json:"uptime"`
	UptimeSeconds  float64           `json:"uptime_seconds"`
	CPU            CPUInfo           `json:"cpu"`
	Memory         MemoryInfo        `json:"memory"`
	ChannelCount   int64             `json:"channel_count"`
	PlayoutStates  map[string]string `json:"playout_states,omitempty"`
	ActivePlayouts int               `json:"active_playouts"`
	GoroutineCount int               `json:"goroutine_count"`
}

// StatusOutput is the output for the status endpoint.
type StatusOutput struct {
	Body StatusResponse
}

// GetStatus returns system metrics and playout state.
func (h *HealthHandler) GetStatus(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	uptime := time.Since(h.startTime)

	resp := StatusResponse{
		Version:        h.version,
		Uptime:         uptime.Round(time.Second).String(),
		UptimeSeconds:  uptime.Seconds(),
		CPU:            collectCPUInfo(),
		Memory:         collectMemoryInfo(),
		GoroutineCount: runtime.NumGoroutine(),
	}

	if h.channels != nil {
		if count, err := h.channels.Count(ctx); err == nil {
			resp.ChannelCount = count
		}
	}

	if h.manager != nil {
		states := h.manager.BroadcasterStates()
		resp.PlayoutStates = make(map[string]string, len(states))
		for number, state := range states {
			resp.PlayoutStates[number] = state.String()
			if state == broadcast.StateRunning {
				resp.ActivePlayouts++
			}
		}
	}

	return &StatusOutput{Body: resp}, nil
}

func collectCPUInfo() CPUInfo {
	cores := runtime.NumCPU()
	info := CPUInfo{Cores: cores}

	if loadAvg, err := load.Avg(); err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15
		if cores > 0 {
			info.LoadPercentage1Min = (loadAvg.Load1 / float64(cores)) * 100
		}
	}
	return info
}

func collectMemoryInfo() MemoryInfo {
	info := MemoryInfo{}

	if vmStat, err := mem.VirtualMemory(); err == nil && vmStat != nil {
		info.TotalMemoryMB = float64(vmStat.Total) / 1024 / 1024
		info.UsedMemoryMB = float64(vmStat.Used) / 1024 / 1024
		info.AvailableMemoryMB = float64(vmStat.Available) / 1024 / 1024
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		info.ProcessMemoryMB = float64(memInfo.RSS) / 1024 / 1024
	}
	// Children are the FFmpeg transcodes.
	if children, err := proc.Children(); err == nil {
		info.ChildProcessCount = len(children)
		for _, child := range children {
			if childMem, err := child.MemoryInfo(); err == nil && childMem != nil {
				info.ChildProcessesMB += float64(childMem.RSS) / 1024 / 1024
			}
		}
	}
	return info
}
