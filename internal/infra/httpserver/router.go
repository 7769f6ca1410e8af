package httpserver

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	"github.com/bryanwahyu/palmview/internal/application/analysis"
	"github.com/bryanwahyu/palmview/internal/domain/history"
	"github.com/bryanwahyu/palmview/internal/domain/property"
	"github.com/bryanwahyu/palmview/internal/domain/session"
	"github.com/bryanwahyu/palmview/internal/middleware"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexPage = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"score": func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) },
}).ParseFS(templateFS, "templates/index.html"))

// Options wires the router to the application.
type Options struct {
	Controller *analysis.Controller
	History    history.Repository // nil disables /v1/analyses
	Checkers   map[string]middleware.HealthChecker

	AdminKeys      map[string]string
	CookieTTL      time.Duration
	SecureCookies  bool
	RateLimit      int
	RateWindow     time.Duration
	AllowedOrigins []string
}

type Router struct {
	ctrl    *analysis.Controller
	history history.Repository
}

func NewRouter(opts Options) http.Handler {
	r := &Router{ctrl: opts.Controller, history: opts.History}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/health", middleware.HealthHandler(opts.Checkers))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler(opts.Checkers))

	limit := rateLimiter(opts.RateLimit, opts.RateWindow)
	admin := middleware.APIKeyAuth(opts.AdminKeys)
	corsMw := cors.Handler(corsOptions(opts.AllowedOrigins))

	mux.With(admin).Get("/metrics", middleware.MetricsHandler)

	// browser surface, bound to the session cookie
	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.Session(opts.CookieTTL, opts.SecureCookies))

		rt.Get("/", r.wrap(r.handlePage))
		rt.With(limit).Post("/analyze", r.wrap(r.handleFormAnalyze))
		rt.Post("/reset", r.wrap(r.handleFormReset))

		rt.Route("/api", func(api chi.Router) {
			api.Use(corsMw)
			api.Get("/state", r.wrap(r.handleState))
			api.With(limit).Post("/analyze", r.wrap(r.handleSubmit))
			api.Post("/reset", r.wrap(r.handleReset))
		})
	})

	mux.Route("/v1", func(v1 chi.Router) {
		v1.Use(corsMw)
		v1.With(limit).Post("/analyze", r.wrap(r.handleAnalyze))
		v1.With(admin).Get("/analyses", r.wrap(r.handleList))
	})

	return mux
}

// corsOptions allows credentials only for an explicit origin list. Browsers
// refuse cookies on a wildcard origin, so "*" serves anonymous callers only.
func corsOptions(origins []string) cors.Options {
	wildcard := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	}
}

func rateLimiter(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 || window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
			middleware.WriteError(w, req, http.StatusTooManyRequests, "rate_limited", "too many analyze requests, slow down")
		}),
	)
}

// httpError carries a status and code through wrap.
type httpError struct {
	status int
	code   string
	detail string
}

func (e *httpError) Error() string { return e.detail }

var errURLRequired = &httpError{status: http.StatusBadRequest, code: "url_required", detail: "url is required"}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var he *httpError
		switch {
		case errors.As(err, &he):
			middleware.WriteError(w, req, he.status, he.code, he.detail)
		case errors.Is(err, property.ErrQuotaExceeded):
			middleware.WriteError(w, req, http.StatusTooManyRequests, "quota_exceeded", analysis.QuotaNotice)
		case errors.Is(err, property.ErrExtractionFailed):
			middleware.WriteError(w, req, http.StatusBadGateway, "extraction_failed", err.Error())
		default:
			log.Printf("request failed path=%s request_id=%s err=%v", req.URL.Path, chimw.GetReqID(req.Context()), err)
			middleware.WriteError(w, req, http.StatusInternalServerError, "internal", "internal server error")
		}
	}
}

func sessionID(req *http.Request) string {
	return middleware.GetSessionFromContext(req.Context())
}

type pageData struct {
	State session.ViewState
	Error string
}

// GET /
func (r *Router) handlePage(w http.ResponseWriter, req *http.Request) error {
	st, err := r.ctrl.State(req.Context(), sessionID(req))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	return indexPage.Execute(w, pageData{State: st, Error: st.ErrorMessage()})
}

// POST /analyze (form field "url")
func (r *Router) handleFormAnalyze(w http.ResponseWriter, req *http.Request) error {
	if err := req.ParseForm(); err != nil {
		return &httpError{status: http.StatusBadRequest, code: "invalid_form", detail: err.Error()}
	}
	if _, err := r.ctrl.Submit(req.Context(), sessionID(req), middleware.SanitizeString(req.PostFormValue("url"))); err != nil {
		return err
	}
	http.Redirect(w, req, "/", http.StatusSeeOther)
	return nil
}

// POST /reset
func (r *Router) handleFormReset(w http.ResponseWriter, req *http.Request) error {
	if _, err := r.ctrl.Reset(req.Context(), sessionID(req)); err != nil {
		return err
	}
	http.Redirect(w, req, "/", http.StatusSeeOther)
	return nil
}

// GET /api/state
func (r *Router) handleState(w http.ResponseWriter, req *http.Request) error {
	st, err := r.ctrl.State(req.Context(), sessionID(req))
	if err != nil {
		return err
	}
	render.JSON(w, req, st)
	return nil
}

type analyzeRequest struct {
	URL string `json:"url"`
}

func decodeAnalyze(w http.ResponseWriter, req *http.Request) (string, error) {
	var body analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16)).Decode(&body); err != nil {
		return "", &httpError{status: http.StatusBadRequest, code: "invalid_body", detail: err.Error()}
	}
	return middleware.SanitizeString(body.URL), nil
}

// POST /api/analyze
// Body: {"url": "<listing url>"}
// Answers 202 with the state right after submission; poll /api/state for the result.
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	url, err := decodeAnalyze(w, req)
	if err != nil {
		return err
	}
	st, err := r.ctrl.Submit(req.Context(), sessionID(req), url)
	if err != nil {
		return err
	}
	render.Status(req, http.StatusAccepted)
	render.JSON(w, req, st)
	return nil
}

// POST /api/reset
func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) error {
	st, err := r.ctrl.Reset(req.Context(), sessionID(req))
	if err != nil {
		return err
	}
	render.JSON(w, req, st)
	return nil
}

// POST /v1/analyze
// Body: {"url": "<listing url>"}; waits for the provider and returns the details.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	url, err := decodeAnalyze(w, req)
	if err != nil {
		return err
	}
	if url == "" {
		return errURLRequired
	}
	d, err := r.ctrl.Analyze(req.Context(), url)
	if err != nil {
		return err
	}
	render.JSON(w, req, d)
	return nil
}

// GET /v1/analyses?page=&page_size=
// GET /v1/analyses?url=<listing url> answers the newest record for that listing.
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	if r.history == nil {
		return &httpError{status: http.StatusNotFound, code: "history_disabled", detail: "history storage is not configured"}
	}
	client := middleware.GetClientFromContext(req.Context())

	if listing := middleware.SanitizeString(req.URL.Query().Get("url")); listing != "" {
		rec, err := r.history.LatestByURL(req.Context(), listing)
		if err != nil {
			return err
		}
		if rec == nil {
			return &httpError{status: http.StatusNotFound, code: "not_found", detail: "no analysis recorded for this url"}
		}
		log.Printf("history lookup client=%s url=%s id=%s", client, listing, rec.ID)
		render.JSON(w, req, rec)
		return nil
	}

	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))
	page, size = middleware.ValidatePage(page), middleware.ValidateLimit(size)

	list, err := r.history.Paginate(req.Context(), page, size)
	if err != nil {
		return err
	}
	total, err := r.history.Count(req.Context())
	if err != nil {
		return err
	}
	log.Printf("history listed client=%s page=%d page_size=%d total=%d", client, page, size, total)
	render.JSON(w, req, history.NewPaginatedResult(list, page, size, total))
	return nil
}
