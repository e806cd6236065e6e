// Package tools exposes the session supervision engine over MCP. Handlers
// are thin: they validate inputs, call into the registry or the findings
// index, and marshal snapshots.
package tools

import (
	"github.com/mkonda/probemux/internal/config"
	"github.com/mkonda/probemux/internal/logger"
	"github.com/mkonda/probemux/internal/monitoring"
	"github.com/mkonda/probemux/internal/session"
	"github.com/mkonda/probemux/internal/store"
)

// SupervisorTools bundles the dependencies the MCP handlers need
type SupervisorTools struct {
	registry *session.Registry
	index    *store.Store // may be nil when the store is disabled
	monitor  *monitoring.ResourceMonitor
	logger   *logger.Logger
	config   *config.Config
}

// NewSupervisorTools creates the MCP tool surface
func NewSupervisorTools(registry *session.Registry, index *store.Store, monitor *monitoring.ResourceMonitor, log *logger.Logger, cfg *config.Config) *SupervisorTools {
	return &SupervisorTools{
		registry: registry,
		index:    index,
		monitor:  monitor,
		logger:   log,
		config:   cfg,
	}
}

// StartSessionArgs are the arguments for start_session
type StartSessionArgs struct {
	Client string   `json:"client"`
	Argv   []string `json:"argv"`
}

// StartSessionResult is the result of start_session
type StartSessionResult struct {
	SessionID string `json:"session_id"`
	Client    string `json:"client"`
	ProcessID int    `json:"process_id"`
	StartedAt string `json:"started_at"`
	Message   string `json:"message"`
}

// StopSessionArgs are the arguments for stop_session
type StopSessionArgs struct {
	SessionID string `json:"session_id"`
}

// StopSessionResult is the result of stop_session
type StopSessionResult struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// GetSessionArgs are the arguments for get_session
type GetSessionArgs struct {
	SessionID string `json:"session_id"`
}

// GetSessionResult is the result of get_session
type GetSessionResult struct {
	Session session.Snapshot `json:"session"`
}

// ListSessionsArgs are the arguments for list_sessions
type ListSessionsArgs struct{}

// ListSessionsResult is the result of list_sessions
type ListSessionsResult struct {
	Sessions map[string]session.Snapshot `json:"sessions"`
	Count    int                         `json:"count"`
	Running  int                         `json:"running"`
}

// SearchFindingsArgs are the arguments for search_findings
type SearchFindingsArgs struct {
	SessionID string `json:"session_id,omitempty"`
	Client    string `json:"client,omitempty"`
	Plugin    string `json:"plugin,omitempty"`
	Target    string `json:"target,omitempty"`
	Data      string `json:"data,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// SearchFindingsResult is the result of search_findings
type SearchFindingsResult struct {
	Findings []store.FindingRecord `json:"findings"`
	Count    int                   `json:"count"`
}

// ResourceStatusArgs are the arguments for get_resource_status
type ResourceStatusArgs struct {
	ForceGC        bool `json:"force_gc,omitempty"`
	LeakThreshold  int  `json:"leak_threshold,omitempty"`
	IncludeHistory bool `json:"include_history,omitempty"`
}

// ResourceStatusResult is the result of get_resource_status
type ResourceStatusResult struct {
	Current monitoring.ResourceMetrics   `json:"current"`
	Leaks   monitoring.LeakReport        `json:"leaks"`
	History []monitoring.ResourceMetrics `json:"history,omitempty"`
}
