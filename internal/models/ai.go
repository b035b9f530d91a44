package models

import "time"

// AIResponse records a completed generation.
type AIResponse struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Model     string    `json:"model"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
}

// AIModel is an entry of the model catalog.
type AIModel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Provider    string `json:"provider"`
}

// Model health states reported by ai_status.
const (
	ModelAvailable = "available"
	ModelBusy      = "busy"
	ModelError     = "error"
)

// AIModelStatus aggregates the requests sent to one provider and model
// since start or the last reset.
type AIModelStatus struct {
	Provider           string     `json:"provider"`
	Model              string     `json:"model"`
	TotalRequests      int        `json:"total_requests"`
	SuccessfulRequests int        `json:"successful_requests"`
	FailedRequests     int        `json:"failed_requests"`
	FallbackRequests   int        `json:"fallback_requests"`
	AverageLatencyMs   float64    `json:"average_latency_ms"`
	MinLatencyMs       float64    `json:"min_latency_ms"`
	MaxLatencyMs       float64    `json:"max_latency_ms"`
	ErrorRate          float64    `json:"error_rate"`
	HealthScore        float64    `json:"health_score"`
	Status             string     `json:"status"`
	LastError          string     `json:"last_error,omitempty"`
	LastRequestAt      *time.Time `json:"last_request_at"`
}
