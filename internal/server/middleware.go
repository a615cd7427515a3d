package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/marketsignal/internal/common"
	"github.com/ternarybob/marketsignal/internal/handlers"
)

const requestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// requestID returns the id assigned by loggingMiddleware, or "" outside the chain
func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withMiddleware wraps the router with the middleware chain.
// Executed outermost first: logging, CORS, recovery.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	handler = s.recoveryMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	return handler
}

// withConditionalMiddleware applies the chain to API routes. The /ws upgrade only gets
// CORS headers; the websocket handler logs its own connections.
func (s *Server) withConditionalMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			s.setCORSHeaders(w, r)
			handler.ServeHTTP(w, r)
			return
		}
		s.withMiddleware(handler).ServeHTTP(w, r)
	})
}

// loggingMiddleware assigns a request id and logs each request once it completes.
// Requests under /api/analysis are tagged with the current run id.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		event := s.logEventFor(rw.statusCode).
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Int("bytes", rw.bytes).
			Dur("duration", time.Since(start))

		if r.URL.RawQuery != "" {
			event = event.Str("query", r.URL.RawQuery)
		}
		if strings.HasPrefix(r.URL.Path, "/api/analysis") && s.app.Orchestrator != nil {
			if runID := s.app.Orchestrator.Snapshot().RunID; runID != "" {
				event = event.Str("run_id", runID)
			}
		}

		event.Msg("HTTP request")
	})
}

func (s *Server) logEventFor(status int) arbor.ILogEvent {
	switch {
	case status >= 500:
		return s.app.Logger.Error()
	case status >= 400:
		return s.app.Logger.Warn()
	default:
		return s.app.Logger.Debug()
	}
}

// corsMiddleware sets CORS headers for the configured origins and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	origin := allowedOrigin(s.app.Config.Server.AllowedOrigins, r.Header.Get("Origin"))
	if origin == "" {
		return
	}
	if origin != "*" {
		w.Header().Add("Vary", "Origin")
	}

	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
	// The PDF download filename is read from Content-Disposition
	w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, "+requestIDHeader)
}

// allowedOrigin returns the Access-Control-Allow-Origin value for origin, or "" when it is not allowed
func allowedOrigin(allowed []string, origin string) string {
	for _, a := range allowed {
		if a == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(a, origin) {
			return origin
		}
	}
	return ""
}

// recoveryMiddleware turns a handler panic into a JSON 500 carrying the request id
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			id := requestID(r.Context())
			s.app.Logger.Error().
				Str("request_id", id).
				Str("panic", fmt.Sprintf("%v", rec)).
				Str("path", r.URL.Path).
				Str("stack", common.GetStackTrace()).
				Msg("Recovered from panic in HTTP handler")

			if rw, ok := w.(*responseWriter); ok && rw.wroteHeader {
				return
			}
			handlers.WriteJSON(w, http.StatusInternalServerError, map[string]string{
				"status":     "error",
				"error":      "Internal server error",
				"request_id": id,
			})
		}()

		next.ServeHTTP(w, r)
	})
}

// responseWriter records the status and body size for the request log
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	bytes       int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Hijack lets the websocket upgrader take over the connection
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("responseWriter does not implement http.Hijacker")
}
