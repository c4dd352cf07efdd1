package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	ledgerlog "recettes/internal/log"
	"recettes/internal/services"
)

// DefaultOwnerHeader carries the owner every /api request is scoped to.
const DefaultOwnerHeader = "X-Owner-ID"

type ownerKey struct{}

// Options configures NewServer. Every field is optional.
type Options struct {
	OwnerHeader string
	Logger      *ledgerlog.Logger
	// Ready reports whether the backing store can serve requests.
	Ready func(ctx context.Context) error
	// RateLimit is the number of mutating requests allowed per client and
	// minute.
	RateLimit int
}

type Server struct {
	http.Server
	ledger      *services.Ledger
	ownerHeader string
	logger      *ledgerlog.Logger
	httpLog     *ledgerlog.StructuredLogger
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	ready       func(ctx context.Context) error
	startedAt   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, ledger *services.Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = ledgerlog.New(ledgerlog.DefaultConfig())
	}
	logger = logger.WithComponent(ledgerlog.ComponentHTTP)

	ownerHeader := opts.OwnerHeader
	if ownerHeader == "" {
		ownerHeader = DefaultOwnerHeader
	}

	s := &Server{
		ledger:      ledger,
		ownerHeader: ownerHeader,
		logger:      logger,
		httpLog:     ledgerlog.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(opts.RateLimit),
		metrics:     &securityMetrics{},
		ready:       opts.Ready,
		startedAt:   time.Now(),
	}
	s.Server = http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(ledgerlog.Middleware(s.logger))
	r.Use(ledgerlog.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(s.withRequestLog)
	r.Use(s.withSecurity)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed here")
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireOwner)

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Post("/reconcile", s.handleReconcileAll)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSource)
				r.Patch("/", s.handleUpdateSource)
				r.Delete("/", s.handleDeleteSource)
				r.Post("/close", s.handleCloseSource)
				r.Get("/balance", s.handleSourceBalance)
			})
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", s.handleListExpenses)
			r.Post("/", s.handleCreateExpense)
			r.Get("/{id}", s.handleGetExpense)
			r.Patch("/{id}", s.handleUpdateExpense)
			r.Delete("/{id}", s.handleDeleteExpense)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", s.handleListTransfers)
			r.Post("/", s.handleCreateTransfer)
			r.Get("/{id}", s.handleGetTransfer)
			r.Delete("/{id}", s.handleDeleteTransfer)
		})

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", s.handleListBudgetMonths)
			r.Post("/", s.handleGetOrCreateBudgetMonth)
			r.Get("/overview", s.handleMonthOverviewFor)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleMonthOverview)
				r.Get("/line-items", s.handleListLineItems)
				r.Post("/line-items", s.handleCreateLineItem)
				r.Get("/movements", s.handleListMonthMovements)
			})
		})

		r.Route("/line-items/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetLineItem)
			r.Patch("/", s.handleUpdateLineItem)
			r.Delete("/", s.handleDeleteLineItem)
			r.Get("/movements", s.handleListLineItemMovements)
			r.Post("/movements", s.handleAddMovement)
		})

		r.Route("/movements/{id}", func(r chi.Router) {
			r.Patch("/", s.handleUpdateMovement)
			r.Delete("/", s.handleDeleteMovement)
		})
	})

	return r
}

// withRequestLog logs every completed request with its status and duration.
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.httpLog.LogHTTPEnd(r.Context(), r, status, time.Since(start).Milliseconds(), extractClientIP(r))
	})
}

// withSecurity sets security headers, flags suspicious requests and rate
// limits mutating methods per client IP.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		clientIP := extractClientIP(r)

		if detectSuspiciousRequest(r, s.metrics) {
			ledgerlog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request detected",
				ledgerlog.FieldClientIP, clientIP,
				ledgerlog.FieldMethod, r.Method,
				ledgerlog.FieldPath, r.URL.Path,
				ledgerlog.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			ledgerlog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				ledgerlog.FieldClientIP, clientIP,
				ledgerlog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireOwner scopes the request to the owner named in the owner header.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := sanitizeInput(r.Header.Get(s.ownerHeader))
		if owner == "" {
			s.metrics.countMissingOwner()
			writeJSONError(w, http.StatusUnauthorized, "missing_owner", s.ownerHeader+" header is required")
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey{}, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerFrom(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey{}).(string)
	return owner
}

func isMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
