// Package http serves the JSON API the dashboard views are built on, plus
// a server-sent event stream of bus signals.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cassa/internal/auth"
	"cassa/internal/bus"
	"cassa/internal/cache"
	"cassa/internal/log"
	"cassa/internal/middleware/ratelimit"
	"cassa/internal/middleware/security"
	"cassa/internal/middleware/trace"
	"cassa/internal/services"
	"cassa/internal/storage"
)

const (
	defaultSessionTTL  = 24 * time.Hour
	maxFilterSessions  = 4096
	defaultRateLimit   = 60
	readHeaderTimeout  = 10 * time.Second
	signalStreamBuffer = 32
)

// Options configures the server. Zero values get defaults.
type Options struct {
	Addr            string
	Location        *time.Location
	InvoiceBaseURL  string
	RateLimitPerMin int
	SessionTTL      time.Duration
	Logger          *log.Logger
}

type Server struct {
	http.Server

	repo         *storage.SQLiteRepository
	bus          *bus.Bus
	tokens       *auth.TokenService
	capabilities auth.Capabilities
	validator    *Validator
	logger       *log.Logger

	expenses   *services.ExpenseService
	incomes    *services.IncomeService
	wallets    *services.WalletService
	categories *services.CategoryService
	vendors    *services.VendorService
	users      *services.UserService
	calendar   *services.CalendarService
	dashboard  *services.DashboardService

	filters        *FilterStore
	location       *time.Location
	invoiceBaseURL string

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware

	unsubscribe  func()
	shutdownOnce sync.Once
}

// NewServer wires the services over repo and b and mounts every route.
func NewServer(opts Options, repo *storage.SQLiteRepository, b *bus.Bus, tokens *auth.TokenService, caps auth.Capabilities) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.RateLimitPerMin <= 0 {
		opts.RateLimitPerMin = defaultRateLimit
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	rlCfg := ratelimit.DefaultConfig()
	rlCfg.RequestsPerMinute = opts.RateLimitPerMin

	s := &Server{
		repo:           repo,
		bus:            b,
		tokens:         tokens,
		capabilities:   caps,
		validator:      NewValidator(),
		logger:         logger,
		expenses:       services.NewExpenseService(repo, b),
		incomes:        services.NewIncomeService(repo, b),
		wallets:        services.NewWalletService(repo),
		categories:     services.NewCategoryService(repo, b),
		vendors:        services.NewVendorService(repo, b),
		users:          services.NewUserService(repo, b),
		calendar:       services.NewCalendarService(repo, b),
		dashboard:      services.NewDashboardService(repo),
		filters:        NewFilterStore(maxFilterSessions, opts.SessionTTL, opts.Location),
		location:       opts.Location,
		invoiceBaseURL: opts.InvoiceBaseURL,
		rateLimiter:    ratelimit.NewLimiter(rlCfg),
		detector:       security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ClientIP)
	s.unsubscribe = s.dashboard.Subscribe(b)

	api := http.NewServeMux()
	s.routes(api)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/", s.withSecurityHeaders(api))

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           root,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/me", s.authenticate(s.handleMe))
	mux.HandleFunc("GET /api/filter", s.authenticate(s.handleGetFilter))
	mux.HandleFunc("PUT /api/filter", s.authenticate(s.handlePutFilter))

	mux.HandleFunc("GET /api/dashboard/summary", s.require(auth.CapDashboard, s.handleSummary))

	mux.HandleFunc("GET /api/expenses", s.require(auth.CapIncomeExpense, s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.require(auth.CapIncomeExpense, s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/export", s.require(auth.CapIncomeExpense, s.handleExportExpenses))
	mux.HandleFunc("PUT /api/expenses/{id}", s.require(auth.CapIncomeExpense, s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.require(auth.CapIncomeExpense, s.handleDeleteExpense))

	mux.HandleFunc("GET /api/approvals", s.require(auth.CapApprovals, s.handleListApprovals))
	mux.HandleFunc("GET /api/approvals/count", s.require(auth.CapApprovals, s.handleCountApprovals))
	mux.HandleFunc("POST /api/approvals/{id}/approve", s.require(auth.CapApprovals, s.handleApprove))
	mux.HandleFunc("POST /api/approvals/{id}/reject", s.require(auth.CapApprovals, s.handleReject))

	mux.HandleFunc("GET /api/income", s.require(auth.CapIncome, s.handleListIncome))
	mux.HandleFunc("POST /api/income", s.require(auth.CapIncome, s.handleCreateIncome))
	mux.HandleFunc("DELETE /api/income/{id}", s.require(auth.CapIncome, s.handleDeleteIncome))

	mux.HandleFunc("GET /api/wallet", s.require(auth.CapWallet, s.handleWallet))
	mux.HandleFunc("GET /api/wallet/{userID}", s.require(auth.CapWallet, s.handleWallet))

	mux.HandleFunc("GET /api/calendar", s.require(auth.CapCalendar, s.handleListEvents))
	mux.HandleFunc("POST /api/calendar", s.require(auth.CapCalendar, s.handleCreateEvent))
	mux.HandleFunc("GET /api/calendar/occurrences", s.require(auth.CapCalendar, s.handleOccurrences))
	mux.HandleFunc("PUT /api/calendar/{id}", s.require(auth.CapCalendar, s.handleUpdateEvent))
	mux.HandleFunc("DELETE /api/calendar/{id}", s.require(auth.CapCalendar, s.handleDeleteEvent))

	mux.HandleFunc("GET /api/categories", s.authenticate(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.require(auth.CapSettings, s.handleCreateCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.require(auth.CapSettings, s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.require(auth.CapSettings, s.handleDeleteCategory))
	mux.HandleFunc("GET /api/vendors", s.authenticate(s.handleListVendors))
	mux.HandleFunc("POST /api/vendors", s.require(auth.CapSettings, s.handleCreateVendor))
	mux.HandleFunc("GET /api/users", s.require(auth.CapSettings, s.handleListUsers))
	mux.HandleFunc("POST /api/users", s.require(auth.CapSettings, s.handleCreateUser))

	mux.HandleFunc("GET /api/signals/stream", s.authenticate(s.handleSignalStream))
	mux.HandleFunc("POST /api/signals/{signal}", s.authenticate(s.handlePublishSignal))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, "")
	})
}

// withSecurityHeaders adds tracing, security headers, probe detection and
// rate limiting of writes in front of h.
func (s *Server) withSecurityHeaders(h http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			"client_ip", s.detector.ClientIP(r),
			"method", r.Method,
			"path", r.URL.Path)
		Error(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
	})(h)

	writesLimited := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			h.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})

	return s.tracer.Middleware(
		security.Headers(security.DefaultHeadersConfig())(
			s.detector.Middleware(writesLimited)))
}

// Caches returns the in-memory caches owned by the server so they can be
// swept by a cache.Manager.
func (s *Server) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.filters.Cache(), s.dashboard.Cache()}
}

// Shutdown stops accepting requests, then releases the limiter and the bus
// subscription. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
		s.rateLimiter.Stop()
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}
