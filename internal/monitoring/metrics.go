package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	analysisPassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_bot_analysis_passes_total",
			Help: "Total number of analysis passes by timeframe and outcome",
		},
		[]string{"timeframe", "status"},
	)

	analysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "futures_bot_analysis_duration_seconds",
			Help:    "Duration of one analysis pass",
			Buckets: []float64{1, 5, 10, 30, 60, 90, 120},
		},
		[]string{"timeframe"},
	)

	// Trading metrics
	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_bot_trades_total",
			Help: "Total number of executed plans",
		},
		[]string{"symbol", "side"},
	)

	orderActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_bot_order_actions_total",
			Help: "Total number of executed plan actions",
		},
		[]string{"action", "status"},
	)

	signalsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_bot_signals_rejected_total",
			Help: "Total number of signals refused by the policy",
		},
		[]string{"reason"},
	)

	// Market data metrics
	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "futures_bot_current_price",
			Help: "Current price of trading symbol",
		},
		[]string{"symbol"},
	)

	advisorConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "futures_bot_advisor_confidence",
			Help: "Latest advisor confidence per timeframe",
		},
		[]string{"timeframe"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "futures_bot_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(analysisPassesTotal)
	prometheus.MustRegister(analysisDuration)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(orderActionsTotal)
	prometheus.MustRegister(signalsRejectedTotal)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(advisorConfidence)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordAnalysisPass records one finished analysis pass
func RecordAnalysisPass(timeframe, status string, seconds float64) {
	analysisPassesTotal.WithLabelValues(timeframe, status).Inc()
	analysisDuration.WithLabelValues(timeframe).Observe(seconds)
}

// RecordTrade records one executed plan
func RecordTrade(symbol, side string) {
	tradesTotal.WithLabelValues(symbol, side).Inc()
}

// RecordOrderAction records one executed plan action
func RecordOrderAction(action, status string) {
	orderActionsTotal.WithLabelValues(action, status).Inc()
}

// RecordSignalRejected records one policy refusal
func RecordSignalRejected(reason string) {
	signalsRejectedTotal.WithLabelValues(reason).Inc()
}

// UpdatePrice updates the current price metric
func UpdatePrice(symbol string, price float64) {
	currentPrice.WithLabelValues(symbol).Set(price)
}

// UpdateAdvisorConfidence updates the advisor confidence metric
func UpdateAdvisorConfidence(timeframe string, confidence float64) {
	advisorConfidence.WithLabelValues(timeframe).Set(confidence)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
