package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

type HealthChecker struct {
	mu           sync.RWMutex
	lastAnalysis time.Time
	lastTrade    time.Time
	lastPrice    float64
	isConnected  bool
	errors       []string
}

type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	LastAnalysis time.Time `json:"last_analysis"`
	LastTrade    time.Time `json:"last_trade"`
	LastPrice    float64   `json:"last_price"`
	IsConnected  bool      `json:"is_connected"`
	Uptime       string    `json:"uptime"`
	Errors       []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0),
	}
}

// SetConnected marks whether the exchange connection is alive.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// RecordAnalysis marks one completed analysis pass.
func (h *HealthChecker) RecordAnalysis(price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastAnalysis = time.Now()
	h.lastPrice = price
	h.errors = h.errors[:0]
}

// RecordTrade marks one executed plan.
func (h *HealthChecker) RecordTrade() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTrade = time.Now()
}

// RecordError keeps the most recent errors for the health report.
func (h *HealthChecker) RecordError(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, message)
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	// Hourly passes are the heartbeat; a long silence means the scheduler or
	// the market data path is stuck.
	if !h.isConnected || (!h.lastAnalysis.IsZero() && time.Since(h.lastAnalysis) > 3*time.Hour) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:       status,
		Timestamp:    time.Now(),
		LastAnalysis: h.lastAnalysis,
		LastTrade:    h.lastTrade,
		LastPrice:    h.lastPrice,
		IsConnected:  h.isConnected,
		Uptime:       time.Since(startTime).String(),
		Errors:       h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
