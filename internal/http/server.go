package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"carteira/internal/analytics"
	"carteira/internal/auth"
	"carteira/internal/budget"
	"carteira/internal/cache"
	"carteira/internal/config"
	"carteira/internal/ledger"
	applog "carteira/internal/log"
	"carteira/internal/middleware/ratelimit"
	"carteira/internal/middleware/security"
	"carteira/internal/middleware/trace"
	"carteira/internal/services"
	appweb "carteira/web"
)

// staticMaxAge is the browser cache lifetime of embedded assets, in seconds.
const staticMaxAge = 3600

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Store    ledger.Store
	Services *services.Services
	Engine   *analytics.Engine
	Budgets  *budget.Evaluator
	Logger   *applog.Logger
}

type Server struct {
	http.Server
	templates *template.Template

	store    ledger.Store
	svc      *services.Services
	engine   *analytics.Engine
	budgets  *budget.Evaluator
	verifier *auth.Verifier
	logger   *applog.Logger

	requestTimeout time.Duration

	// Per-user response cache for read-heavy analytics endpoints
	responses    *cache.LRUCache[any]
	cacheManager *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	now          func() time.Time
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. It fails only when the embedded
// templates cannot be parsed.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"brl": formatBRL,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 7 * time.Second
	}

	s := &Server{
		templates:      tmpl,
		store:          deps.Store,
		svc:            deps.Services,
		engine:         deps.Engine,
		budgets:        deps.Budgets,
		verifier:       auth.NewVerifier(cfg.JWTSecret, auth.WithIssuer(cfg.JWTIssuer), auth.WithLeeway(30*time.Second)),
		logger:         logger,
		requestTimeout: timeout,
		responses:      cache.NewLRUCache[any](cfg.CacheSize, cfg.CacheTTL),
		cacheManager:   cache.NewManager(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit,
			Burst:             cfg.RateBurst,
		}),
		detector:  security.NewDetector(),
		now:       time.Now,
		startedAt: time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	s.cacheManager.Register(s.responses)
	if cfg.CacheTTL > 0 {
		s.cacheManager.StartCleanup(cfg.CacheTTL)
	}

	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("GET /api/analytics/overview", s.handleOverview)
	api.HandleFunc("GET /api/analytics/by-category", s.handleByCategory)
	api.HandleFunc("GET /api/analytics/by-card", s.handleByCard)
	api.HandleFunc("GET /api/analytics/cashflow", s.handleCashflow)
	api.HandleFunc("GET /api/analytics/cashflow.png", s.handleCashflowChart)

	api.HandleFunc("GET /api/budgets/progress", s.handleAllBudgetsProgress)
	api.HandleFunc("GET /api/budgets/{id}/progress", s.handleBudgetProgress)
	api.HandleFunc("GET /api/budgets", s.handleListBudgets)
	api.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	api.HandleFunc("GET /api/budgets/{id}", s.handleGetBudget)
	api.HandleFunc("PUT /api/budgets/{id}", s.handleUpdateBudget)
	api.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)

	api.HandleFunc("GET /api/accounts", s.handleListAccounts)
	api.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	api.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	api.HandleFunc("PUT /api/accounts/{id}", s.handleUpdateAccount)
	api.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	api.HandleFunc("GET /api/accounts/{id}/balance", s.handleAccountBalance)

	api.HandleFunc("GET /api/cards", s.handleListCards)
	api.HandleFunc("POST /api/cards", s.handleCreateCard)
	api.HandleFunc("GET /api/cards/{id}", s.handleGetCard)
	api.HandleFunc("PUT /api/cards/{id}", s.handleUpdateCard)
	api.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard)
	api.HandleFunc("GET /api/cards/{id}/invoice", s.handleCardInvoice)

	api.HandleFunc("GET /api/categories", s.handleListCategories)
	api.HandleFunc("POST /api/categories", s.handleCreateCategory)
	api.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	api.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	api.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	api.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	api.HandleFunc("POST /api/transactions/{id}/reconcile", s.handleReconcileTransaction)

	api.HandleFunc("GET /api/recurring-rules", s.handleListRecurringRules)
	api.HandleFunc("POST /api/recurring-rules", s.handleCreateRecurringRule)
	api.HandleFunc("DELETE /api/recurring-rules/{id}", s.handleDeleteRecurringRule)

	limited := s.limiter.Middleware(userID, s.onRateLimited)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.requireAuth(limited(api)))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /ui/overview", s.requireAuth(limited(http.HandlerFunc(s.handleOverviewPartial))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	if static, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		files := http.StripPrefix("/static/", http.FileServer(http.FS(static)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(files))
	}

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	withLogger := applog.Middleware(s.logger)
	return s.detector.Middleware(headers.Middleware(withLogger(s.tracer.Middleware(mux))))
}

// requireAuth verifies the bearer token and stores the caller in the context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.verifier.FromHeader(r.Header.Get("Authorization"))
		if err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Authentication failed",
				applog.FieldError, err,
				applog.FieldErrorType, applog.ErrorTypeAuth,
				applog.FieldPath, r.URL.Path)
			UnauthorizedError(err.Error()).Write(w)
			return
		}
		ctx := auth.WithUserID(r.Context(), uid)
		ctx = applog.WithLogger(ctx, applog.FromContext(ctx).With(applog.FieldUserID, uid))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
		WarnContext(r.Context(), "Rate limit exceeded", applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// requestContext bounds the ledger work of one request.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

// cached serves a read from the per-user cache, computing and storing it on
// a miss. Errors are never cached.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, compute func(ctx context.Context) (any, error)) {
	s.cachedAs(w, r, cacheKey(r), compute)
}

// cachedAs is cached under an explicit key, for handlers whose result
// depends on more than the request URL.
func (s *Server) cachedAs(w http.ResponseWriter, r *http.Request, key string, compute func(ctx context.Context) (any, error)) {
	if v, ok := s.responses.Get(key); ok {
		NewResponse().Data(v).Header("X-Cache", "HIT").Write(w)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	v, err := compute(ctx)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	s.responses.Set(key, v)
	NewResponse().Data(v).Header("X-Cache", "MISS").Write(w)
}

// invalidate drops every cached response of the user after a write.
func (s *Server) invalidate(r *http.Request) {
	if n := s.responses.DeletePrefix(userPrefix(userID(r))); n > 0 {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentCache).
			DebugContext(r.Context(), "Response cache invalidated", "entries", n)
	}
}

// Shutdown gracefully shuts down the server and cleans up resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
	})
	return s.Server.Shutdown(ctx)
}
