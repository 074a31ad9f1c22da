package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"invoicer/internal/assist"
	"invoicer/internal/cache"
	applog "invoicer/internal/log"
	"invoicer/internal/middleware/ratelimit"
	"invoicer/internal/middleware/security"
	"invoicer/internal/middleware/trace"
	"invoicer/internal/store"
)

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
	cacheCleanupEvery = 10 * time.Minute
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Store  *store.Store
	Assist *assist.Client
	Logger *applog.Logger
	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready func(context.Context) error
	// Now overrides time.Now for defaults and reports.
	Now func() time.Time
	// RateLimit configures the per-IP limit on mutating requests.
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	store     *store.Store
	assist    *assist.Client
	logger    *applog.Logger
	ready     func(context.Context) error
	now       func() time.Time
	startedAt time.Time

	ipResolver  *security.IPResolver
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	caches      *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Assist == nil {
		deps.Assist = assist.New(nil)
	}

	s := &Server{
		store:       deps.Store,
		assist:      deps.Assist,
		logger:      deps.Logger.WithComponent(applog.ComponentHTTP),
		ready:       deps.Ready,
		now:         deps.Now,
		startedAt:   deps.Now(),
		ipResolver:  security.NewIPResolver(),
		rateLimiter: ratelimit.NewLimiter(deps.RateLimit),
		caches:      cache.NewManager(),
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.ipResolver.ClientIP)

	s.caches.Register(s.assist.Cache())
	s.caches.StartCleanup(cacheCleanupEvery)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.StrictSlash(true)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.rateLimiter.Middleware(s.ipResolver.ClientIP, ratelimit.MutatingOnly, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.ipResolver.ClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldRequestID, trace.GetRequestID(r.Context()))
		TooManyRequestsError().Write(w)
	}))

	api.HandleFunc("/invoices", s.handleListInvoices).Methods(http.MethodGet)
	api.HandleFunc("/invoices", s.handleCreateInvoice).Methods(http.MethodPost)
	api.HandleFunc("/invoices/new", s.handleNewInvoice).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id}", s.handleGetInvoice).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id}", s.handleUpdateInvoice).Methods(http.MethodPut)
	api.HandleFunc("/invoices/{id}", s.handleDeleteInvoice).Methods(http.MethodDelete)
	api.HandleFunc("/invoices/{id}/status", s.handleSetInvoiceStatus).Methods(http.MethodPost)
	api.Handle("/invoices/{id}/pdf", security.NoStore(http.HandlerFunc(s.handleInvoicePDF))).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id}/email-draft", s.handleEmailDraft).Methods(http.MethodGet, http.MethodPost)

	api.HandleFunc("/customers", s.handleListCustomers).Methods(http.MethodGet)
	api.HandleFunc("/customers", s.handleCreateCustomer).Methods(http.MethodPost)
	api.HandleFunc("/customers/{id}", s.handleGetCustomer).Methods(http.MethodGet)
	api.HandleFunc("/customers/{id}", s.handleUpdateCustomer).Methods(http.MethodPut)
	api.HandleFunc("/customers/{id}", s.handleDeleteCustomer).Methods(http.MethodDelete)

	api.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	api.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}", s.handleGetUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}", s.handleUpdateUser).Methods(http.MethodPut)
	api.HandleFunc("/users/{id}", s.handleDeleteUser).Methods(http.MethodDelete)

	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleSaveSettings).Methods(http.MethodPut)

	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/reports", s.handleReport).Methods(http.MethodGet)
	api.Handle("/reports.xlsx", security.NoStore(http.HandlerFunc(s.handleReportXLSX))).Methods(http.MethodGet)

	api.HandleFunc("/assist/items", s.handleSuggestItems).Methods(http.MethodPost)

	api.HandleFunc("/notifications", s.handleListNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications", s.handleClearNotifications).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	return s.tracer.Middleware(headers.Middleware(r))
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
