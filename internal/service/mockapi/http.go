package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/secpi-console/internal/alarmdata"
	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/logger"
	"github.com/oshokin/secpi-console/internal/repository/records"
)

// maxRequestBytes bounds a single request body.
const maxRequestBytes = 1 << 20

// MetricsPath serves the Prometheus metrics of the mock API.
const MetricsPath = "/metrics"

var errPayloadNotObject = errors.New("payload must be a JSON object")

// envelope is the JSON body of every endpoint reply.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// requestMetrics counts served requests.
type requestMetrics struct {
	requests *prometheus.CounterVec
}

func newRequestMetrics(reg prometheus.Registerer) *requestMetrics {
	m := &requestMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secpi_mockapi_requests_total",
				Help: "Total HTTP requests served by the mock API by route and status code.",
			},
			[]string{"route", "code"},
		),
	}

	reg.MustRegister(m.requests)

	return m
}

// middleware records one sample per request after it was served.
func (m *requestMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

// NewHandler serves a service backed by repository over HTTP.
// A nil repository keeps records in memory only.
func NewHandler(
	ctx context.Context,
	repository records.Repository,
	reg *prometheus.Registry,
	opts ...Option,
) (http.Handler, error) {
	svc, err := newService(ctx, repository, opts...)
	if err != nil {
		return nil, err
	}

	return newRouter(svc, reg), nil
}

// newRouter exposes the service over HTTP: every endpoint is a POST taking
// a JSON object and answering with the status envelope. Alarm files are
// downloaded with a plain GET.
func newRouter(svc *service, reg *prometheus.Registry) http.Handler {
	metrics := newRequestMetrics(reg)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.middleware)

	r.Post(entity.ActivatePath, svc.serveHTTP)
	r.Post(entity.DeactivatePath, svc.serveHTTP)
	r.Post("/{collection}/{operation}", svc.serveHTTP)
	r.Get(alarmdata.DownloadPath, svc.serveAlarmFile)
	r.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}

// requestLogger attaches a request-scoped logger to the context.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithKV(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		ctx = logger.WithKV(ctx, "path", r.URL.Path)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// serveHTTP decodes the payload and dispatches the call.
func (s *service) serveHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := s.route(r.URL.Path); !ok {
		logger.DebugKV(ctx, "Unknown endpoint requested")
		http.NotFound(w, r)

		return
	}

	payload, err := decodePayload(r.Body)
	if err != nil {
		logger.WarnKV(ctx, "Rejected request payload", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	reply := s.Dispatch(ctx, r.URL.Path, payload)

	writeJSON(ctx, w, envelope{
		Status:  reply.Status,
		Data:    reply.Data,
		Message: reply.Message,
	})
}

// decodePayload reads a JSON object; an empty body is an empty object.
func decodePayload(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(io.LimitReader(body, maxRequestBytes))
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return map[string]any{}, nil
	}

	var payload any
	if err = json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	switch p := payload.(type) {
	case map[string]any:
		return p, nil
	case nil:
		return map[string]any{}, nil
	default:
		return nil, errPayloadNotObject
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf(ctx, "Failed to encode reply: %v", err)
	}
}
