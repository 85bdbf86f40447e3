package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	actorKey   contextKey = "actor"
	traceIDKey contextKey = "traceID"
)

// Headers read or written by the middleware stack.
const (
	UserIDHeader    = "X-User-ID"
	UserRoleHeader  = "X-User-Role"
	RequestIDHeader = "X-Request-ID"
	TraceIDHeader   = "X-Trace-ID"
)

var tracer = otel.Tracer("heron-api")

// Actor is the caller as declared by headers or query parameters. It scopes
// listings and is recorded as the actor of state changes; it is not authenticated.
type Actor struct {
	UserID string
	Role   domain.Role
}

// ActorMiddleware reads X-User-ID and X-User-Role, falling back to the userId and
// role query parameters. An unknown role is treated as no role.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := Actor{
			UserID: firstNonEmpty(r.Header.Get(UserIDHeader), r.URL.Query().Get("userId")),
		}
		actor.Role, _ = domain.ParseRole(firstNonEmpty(r.Header.Get(UserRoleHeader), r.URL.Query().Get("role")))

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
	})
}

// TracingMiddleware wraps the request in a span and echoes the request and trace
// ids. With no tracer provider installed the span is a no-op and the request id
// doubles as the trace id. It expects middleware.RequestID to run first.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())

		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
				attribute.String("request.id", requestID),
			),
		)
		defer span.End()

		traceID := requestID
		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}
		w.Header().Set(RequestIDHeader, requestID)
		w.Header().Set(TraceIDHeader, traceID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(context.WithValue(ctx, traceIDKey, traceID)))

		span.SetAttributes(attribute.Int("http.status_code", ww.Status()))
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

// LoggingMiddleware logs each request once it completes and records the HTTP
// collectors. Server errors log at error level and client errors at warn.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPLatency.WithLabelValues(r.Method).Observe(float64(elapsed.Microseconds()) / 1000)

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		actor := GetActor(r.Context())

		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", elapsed.Milliseconds(),
			"user_id", actor.UserID,
			"role", string(actor.Role),
			"request_id", middleware.GetReqID(r.Context()),
			"trace_id", GetTraceID(r.Context()),
		)
	})
}

var corsHeaders = map[string]string{
	"Access-Control-Allow-Methods":  "GET, POST, PATCH, DELETE, OPTIONS",
	"Access-Control-Allow-Headers":  "Content-Type, X-User-ID, X-User-Role, X-Request-ID, X-Trace-ID",
	"Access-Control-Expose-Headers": "X-Request-ID, X-Trace-ID",
	"Access-Control-Max-Age":        "86400",
}

// CORSMiddleware lets the portal call the API from another origin. Requests
// with an Origin get it echoed back; others are left alone. Preflights end here.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		for k, v := range corsHeaders {
			h.Set(k, v)
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecoverMiddleware turns a handler panic into a logged stack and a JSON 500.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			slog.Error("handler panicked",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", middleware.GetReqID(r.Context()),
				"stack", string(debug.Stack()),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"message": "An unexpected error occurred.",
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// GetActor returns the caller recorded by ActorMiddleware.
func GetActor(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorKey).(Actor)
	return actor
}

// GetTraceID returns the trace id recorded by TracingMiddleware.
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
