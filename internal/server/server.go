package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/career-coach/internal/logx"
	"github.com/jonathan/career-coach/internal/pipeline"
	"github.com/jonathan/career-coach/internal/sanitize"
	"github.com/jonathan/career-coach/internal/server/middleware"
	"github.com/jonathan/career-coach/internal/server/ratelimit"
	"github.com/jonathan/career-coach/internal/types"
)

// ToolRunner executes one validated tool invocation and streams its events.
type ToolRunner interface {
	Run(ctx context.Context, req pipeline.Request, emit pipeline.Emitter) error
}

// Store is the read side the API serves directly.
type Store interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	GetToolResult(ctx context.Context, userID, id uuid.UUID) (*types.ToolResult, error)
}

// Options configures the HTTP server. Runner, Store, Known and Auth are required.
type Options struct {
	Port           int
	Runner         ToolRunner
	Store          Store
	Known          func(toolID string) bool
	Auth           middleware.TokenValidator
	Limiter        ratelimit.Limiter
	RateLimit      int
	RateWindow     time.Duration
	AllowedOrigins []string
	MaxInputChars  int
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	opts       Options
	limiter    ratelimit.Limiter
	origins    map[string]struct{}
	handler    http.Handler
	now        func() time.Time
}

// New creates a new server instance. It does not open connections; callers
// own the store and the limiter's backing client.
func New(opts Options) (*Server, error) {
	switch {
	case opts.Runner == nil:
		return nil, fmt.Errorf("server: runner is required")
	case opts.Store == nil:
		return nil, fmt.Errorf("server: store is required")
	case opts.Known == nil:
		return nil, fmt.Errorf("server: tool lookup is required")
	case opts.Auth == nil:
		return nil, fmt.Errorf("server: token validator is required")
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = sanitize.DefaultMaxChars
	}

	s := &Server{
		opts:    opts,
		limiter: opts.Limiter,
		origins: make(map[string]struct{}, len(opts.AllowedOrigins)),
		now:     time.Now,
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NoopLimiter{}
	}
	for _, o := range opts.AllowedOrigins {
		if o != "" {
			s.origins[o] = struct{}{}
		}
	}

	auth := middleware.AuthMiddleware(opts.Auth)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("POST /tools/run", auth(s.withRateLimit(http.HandlerFunc(s.handleRunTool))))
	mux.Handle("GET /results/{id}", auth(http.HandlerFunc(s.handleGetResult)))
	mux.Handle("GET /tokens/balance", auth(http.HandlerFunc(s.handleBalance)))

	s.handler = s.withLogging(s.withCORS(mux))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // a stream can span two 60s model calls
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens until SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-stop:
	}
	logx.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops accepting requests and waits for open streams to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := s.limiter.Close(); err != nil {
		logx.Warn().Err(err).Msg("rate limiter close failed")
	}
	logx.Info().Msg("server stopped")
	return nil
}

// withCORS reflects allow-listed origins. Preflight requests end here.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		if origin := r.Header.Get("Origin"); origin != "" {
			if _, ok := s.origins[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies the per-caller window. It must run after auth.
// Limiter failures let the request through.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.GetUserID(r)
		if err != nil {
			s.writeError(w, &ErrUnauthorized{})
			return
		}

		info, err := s.limiter.Allow(r.Context(), userID.String(), s.opts.RateLimit, s.opts.RateWindow)
		if err != nil {
			logx.Warn().Err(err).Str("user_id", userID.String()).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		setRateLimitHeaders(w, info)
		if !info.Allowed {
			logx.Info().Str("user_id", userID.String()).Int("limit", info.Limit).
				Time("reset", info.ResetTime).Msg("rate limit exceeded")
			if info.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(info.RetryAfter.Round(time.Second).Seconds())))
			}
			s.writeError(w, &ErrRateLimited{RetryAfter: info.RetryAfter})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// statusRecorder captures the status code for the access log. It forwards
// Flush so streaming handlers still see an http.Flusher.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		logx.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logx.Error().Err(err).Msg("error encoding JSON response")
	}
}

// writeError maps err to its status and writes {"error": message}.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logx.Error().Err(err).Msg("request failed")
	}
	s.jsonResponse(w, status, map[string]string{"error": publicMessage(err)})
}
