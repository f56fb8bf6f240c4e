// Package middleware provides HTTP middleware for the tasklist server.
//
// Request logs and metrics are keyed by the name of the matched route (one
// per list operation) and carry the list and item the request addressed.
package middleware

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/tasklist/internal/model"
)

type contextKey string

// RequestIDKey is the context key for request ID.
const RequestIDKey contextKey = "request_id"

// RequestIDHeader is the HTTP header name for request ID.
const RequestIDHeader = "X-Request-ID"

// OwnerHeader echoes the owner a request acted for.
const OwnerHeader = "X-Tasklist-Owner"

// unmatched labels requests that reached no named route.
const unmatched = "unmatched"

var (
	listRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tasklist",
			Name:      "http_requests_total",
			Help:      "HTTP requests by list operation and status",
		},
		[]string{"operation", "status"},
	)

	listRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tasklist",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by list operation",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	listRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tasklist",
			Name:      "http_requests_in_flight",
			Help:      "List operations currently being served",
		},
	)
)

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// statusRecorder remembers the first status written. It passes Hijack and
// Flush through so the event stream can upgrade behind it.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.status = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		// the upgrade answers 101 on the raw connection
		rw.status, rw.written = http.StatusSwitchingProtocols, true
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Operation returns the name of the route r matched, or "unmatched".
func Operation(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return unmatched
}

// requestFields describes which list and item r addressed.
func requestFields(r *http.Request) []zap.Field {
	fields := []zap.Field{
		zap.String("operation", Operation(r)),
		zap.String("request_id", r.Header.Get(RequestIDHeader)),
	}
	vars := mux.Vars(r)
	if listID := vars["listID"]; listID != "" {
		fields = append(fields, zap.String("list_id", listID))
	} else if listID := r.URL.Query().Get("list"); listID != "" {
		fields = append(fields, zap.String("list_id", listID))
	}
	if itemID := vars["id"]; itemID != "" {
		fields = append(fields, zap.String("item_id", itemID))
	}
	return fields
}

// Logging logs one line per request. Operations named in quiet are logged at
// Debug, server errors at Error, and the rest at Info. The owner is taken
// from OwnerHeader, which Auth sets on the response.
func Logging(logger *zap.Logger, quiet ...string) Middleware {
	quietOps := make(map[string]bool, len(quiet))
	for _, op := range quiet {
		quietOps[op] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newStatusRecorder(w)

			next.ServeHTTP(rw, r)

			fields := append(requestFields(r),
				zap.String("method", r.Method),
				zap.Int("status", rw.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
			if owner := rw.Header().Get(OwnerHeader); owner != "" {
				fields = append(fields, zap.String("owner_id", owner))
			}

			switch {
			case quietOps[Operation(r)]:
				logger.Debug("list request", fields...)
			case rw.status >= http.StatusInternalServerError:
				logger.Error("list request", fields...)
			default:
				logger.Info("list request", fields...)
			}
		})
	}
}

// Recovery turns a panic in a handler into a 500 error envelope.
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", append(requestFields(r),
						zap.Any("error", err),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
					)...)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(model.ErrorResponse{
						Code:    http.StatusInternalServerError,
						Message: "internal server error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID keeps the caller's X-Request-ID or assigns a new one, and
// echoes it on the response and in the request context.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			w.Header().Set(RequestIDHeader, requestID)
			r.Header.Set(RequestIDHeader, requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Metrics counts requests and their duration per list operation. Labels use
// the route name, so list and item ids never reach a label.
func Metrics() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newStatusRecorder(w)

			listRequestsInFlight.Inc()
			defer listRequestsInFlight.Dec()

			next.ServeHTTP(rw, r)

			op := Operation(r)
			listRequestsTotal.WithLabelValues(op, strconv.Itoa(rw.status)).Inc()
			listRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		})
	}
}
