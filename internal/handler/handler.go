// Package handler provides the HTTP and websocket handlers of the tasklist
// server.
package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/tasklist/internal/events"
)

// Route names. Each registered route carries one, and request logs and
// metrics are labelled with it.
const (
	OpHealth      = "health"
	OpReady       = "ready"
	OpMetrics     = "metrics"
	OpListItems   = "list_items"
	OpCreateItem  = "create_item"
	OpUpdateItems = "update_items"
	OpDeleteItem  = "delete_item"
	OpWatchEvents = "watch_events"
)

// QuietOperations are the routes polled by infrastructure rather than list
// clients.
var QuietOperations = []string{OpHealth, OpReady, OpMetrics}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}

// Domain metrics.
var (
	domainEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasklist",
			Name:      "domain_events_total",
			Help:      "Domain events published, by type",
		},
		[]string{"type"},
	)

	itemsUpdatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tasklist",
			Name:      "items_updated_total",
			Help:      "Items written by bulk update calls",
		},
	)
)

// CountEvent is an events.Handler that records e in the domain event counter.
func CountEvent(e events.Event) {
	domainEventsTotal.WithLabelValues(string(e.Type)).Inc()
}
