package rest

import (
	"yqhp/distcalc/internal/master"
	"yqhp/distcalc/pkg/types"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// WorkersResponse lists the registry.
type WorkersResponse struct {
	Workers []types.Worker `json:"workers"`
	Total   int            `json:"total"`
	Alive   int            `json:"alive"`
}

// StatsResponse wraps the coordinator counters.
type StatsResponse struct {
	master.StatsSnapshot
}

// DiscoveryResponse reports an on-demand discovery pass.
type DiscoveryResponse struct {
	Workers int `json:"workers"`
}

// IntegrateRequest asks for one integration.
type IntegrateRequest = types.IntegrationRequest

// IntegrateResponse carries the integration result.
type IntegrateResponse struct {
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Result    float64 `json:"result"`
	ElapsedMs int64   `json:"elapsed_ms"`
}

// KillRequest asks for kill directives.
type KillRequest struct {
	Count int `json:"count"`
	Sleep int `json:"sleep"`
}

// KillResponse reports how many workers accepted a kill directive.
type KillResponse struct {
	Requested int `json:"requested"`
	Killed    int `json:"killed"`
}
