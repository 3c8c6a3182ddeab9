package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
)

// RecordStore is the owner-scoped record surface the handlers require.
// *services.RecordService satisfies it.
type RecordStore interface {
	GetIncomes(ctx context.Context, userID string) ([]core.Income, error)
	CreateIncome(ctx context.Context, userID string, d core.RecordDraft) (core.Income, error)
	UpdateIncome(ctx context.Context, userID, id string, d core.RecordDraft) (core.Income, error)
	DeleteIncome(ctx context.Context, userID, id string) error

	GetExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	CreateExpense(ctx context.Context, userID string, d core.RecordDraft) (core.Expense, error)
	UpdateExpense(ctx context.Context, userID, id string, d core.RecordDraft) (core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id string) error
}

// AuthProvider handles account creation and session tokens. *auth.Service
// satisfies it.
type AuthProvider interface {
	SignUp(ctx context.Context, name, email, password string) (core.User, error)
	SignIn(ctx context.Context, email, password string) (string, core.User, error)
	VerifyToken(ctx context.Context, token string) (core.User, error)
}

type Server struct {
	http.Server
	records     RecordStore
	auth        AuthProvider
	rateLimiter *rateLimiter

	// LRU cache for report summaries with eviction policy
	summaryCache *cache.LRU[summary]

	// Per-user version stamps folded into summary cache keys. Bumping a
	// user's version on mutation orphans every cached summary of that
	// user; orphans age out through the LRU and TTL.
	versionMu sync.Mutex
	versions  map[string]uint64

	// Cache cleanup management
	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. rateLimit requests per rateWindow are allowed per client on
// the collection endpoints.
func NewServer(addr string, records RecordStore, ap AuthProvider, rateLimit int, rateWindow time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		records:          records,
		auth:             ap,
		rateLimiter:      newRateLimiter(rateLimit, rateWindow),
		summaryCache:     newSummaryCache(),
		versions:         make(map[string]uint64),
		stopCacheCleanup: make(chan struct{}),
	}

	// Start periodic cache cleanup
	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/auth/signup", s.withLogging(s.handleSignUp))
	mux.HandleFunc("POST /api/auth/login", s.withLogging(s.handleSignIn))

	mux.HandleFunc("GET /api/incomes", s.withLogging(s.withRateLimit(s.withAuth(s.handleListIncomes))))
	mux.HandleFunc("POST /api/incomes", s.withLogging(s.withRateLimit(s.withAuth(s.handleCreateIncome))))
	mux.HandleFunc("PUT /api/incomes/{id}", s.withLogging(s.withAuth(s.handleUpdateIncome)))
	mux.HandleFunc("DELETE /api/incomes/{id}", s.withLogging(s.withAuth(s.handleDeleteIncome)))

	mux.HandleFunc("GET /api/expenses", s.withLogging(s.withRateLimit(s.withAuth(s.handleListExpenses))))
	mux.HandleFunc("POST /api/expenses", s.withLogging(s.withRateLimit(s.withAuth(s.handleCreateExpense))))
	mux.HandleFunc("PUT /api/expenses/{id}", s.withLogging(s.withAuth(s.handleUpdateExpense)))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.withLogging(s.withAuth(s.handleDeleteExpense)))

	mux.HandleFunc("GET /api/reports/summary", s.withLogging(s.withAuth(s.handleReportSummary)))

	return s
}

func newSummaryCache() *cache.LRU[summary] {
	return cache.NewLRU[summary](200, 5*time.Minute)
}

// startCacheCleanup runs periodic cleanup for the summary cache.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.summaryCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "summary_entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}

		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

type contextKey string

const userContextKey contextKey = "user"

// userFrom returns the authenticated user stored by withAuth.
func userFrom(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey).(core.User)
	return u, ok
}

// withLogging adds a request id and request/response logging.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), contextKey("request_id"), requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP(r))

		w.Header().Set("X-Content-Type-Options", "nosniff")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	}
}

// withRateLimit rejects clients that exhausted the current window.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.rateLimiter.allow(ip) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", ip, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(s.rateLimiter.window/time.Second)))
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(w, r)
	}
}

// withAuth resolves the bearer token to a user and stores it on the context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.auth.VerifyToken(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// summaryKey builds the version-stamped cache key for a user's month summary.
func (s *Server) summaryKey(userID, month string) string {
	s.versionMu.Lock()
	v := s.versions[userID]
	s.versionMu.Unlock()
	return userID + "|" + month + "|" + strconv.FormatUint(v, 10)
}

// bumpVersion invalidates every cached summary of the user.
func (s *Server) bumpVersion(userID string) {
	s.versionMu.Lock()
	s.versions[userID]++
	s.versionMu.Unlock()
}
