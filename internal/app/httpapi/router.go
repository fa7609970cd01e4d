// Package httpapi exposes the studio services over HTTP.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/studio_layer/internal/app"
	"github.com/R3E-Network/studio_layer/internal/app/domain/client"
	"github.com/R3E-Network/studio_layer/internal/app/metrics"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/internal/httputil"
	"github.com/R3E-Network/studio_layer/internal/middleware"
	"github.com/R3E-Network/studio_layer/pkg/logger"
	sb "github.com/R3E-Network/studio_layer/supabase/client"
)

// Options configures the HTTP surface.
type Options struct {
	Version     string
	CORSOrigins []string
	// RateLimiter is optional. Its janitor must be attached to the
	// application lifecycle by the caller.
	RateLimiter *middleware.RateLimiter
	Audit       *AuditLog
	// Upstream reports retry and circuit breaker state for the Supabase
	// backend. Nil for the other backends.
	Upstream    UpstreamStats
	Log         *logger.Logger
	// Now overrides the wall clock. Defaults to time.Now.
	Now func() time.Time
}

// UpstreamStats is implemented by the resilient Supabase transport.
type UpstreamStats interface {
	Stats() sb.Stats
	CircuitState() sb.CircuitState
}

type handler struct {
	app     *app.Application
	log     *logger.Logger
	audit   *AuditLog
	version string
	origins []string
	cors    *middleware.CORSMiddleware
	stats   UpstreamStats
	started time.Time
	now     func() time.Time
}

// NewHandler builds the router and wraps it in the middleware chain.
func NewHandler(application *app.Application, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = logger.NewDefault("httpapi")
	}
	if opts.Audit == nil {
		opts.Audit = NewAuditLog(0, nil)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &handler{
		app:     application,
		log:     opts.Log,
		audit:   opts.Audit,
		version: opts.Version,
		origins: opts.CORSOrigins,
		cors:    middleware.NewCORSMiddleware(opts.CORSOrigins),
		stats:   opts.Upstream,
		started: time.Now(),
		now:     opts.Now,
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteError(w, req, apperrors.NotFound("Ruta no encontrada."))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteErrorResponse(w, req, http.StatusMethodNotAllowed, string(apperrors.CodeBadRequest), "Método no permitido.", nil)
	})
	r.Use(h.auditMiddleware)
	h.registerSystem(r)

	s := r.PathPrefix("/studios/{studio}").Subrouter()
	s.Use(h.tenant)
	h.registerAuth(s)
	h.registerBooking(s)
	h.registerClients(s)
	h.registerInventory(s)
	h.registerFlash(s)
	h.registerConsents(s)
	h.registerMedical(s)
	h.registerReviews(s)
	h.registerDashboard(s)
	h.registerAI(s)
	h.registerStudioTools(s)

	var out http.Handler = r
	if opts.RateLimiter != nil {
		out = opts.RateLimiter.Handler(out)
	}
	out = middleware.NewAuthMiddleware(application.Auth.Tokens(), opts.Log.Named("auth")).Handler(out)
	out = h.cors.Handler(out)
	out = middleware.NewTracingMiddleware(opts.Log.Named("http")).Handler(out)
	return metrics.InstrumentHandler(out)
}

var (
	adminOnly = middleware.RequireRole(client.RoleAdmin)
	signedIn  = middleware.RequireAuth
)

func public(fn http.HandlerFunc) http.Handler { return fn }

func admin(fn http.HandlerFunc) http.Handler { return adminOnly(fn) }

func authed(fn http.HandlerFunc) http.Handler { return signedIn(fn) }

// studioID returns the tenant resolved by the tenant middleware.
func studioID(r *http.Request) string {
	return logger.GetStudio(r.Context())
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// session returns the caller's claims. Routes behind authed or admin always
// have them.
func session(r *http.Request) (username, role string) {
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		return c.Username, c.Role
	}
	return "", ""
}

func isAdmin(r *http.Request) bool {
	_, role := session(r)
	return role == client.RoleAdmin
}

// tenant rejects unknown studios and sessions issued for another studio.
func (h *handler) tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := pathVar(r, "studio")
		if _, ok := h.app.Studios.Studio(id); !ok {
			httputil.WriteError(w, r, apperrors.NotFound("Estudio no encontrado."))
			return
		}
		if c, ok := middleware.ClaimsFromContext(r.Context()); ok && c.Studio != id {
			httputil.WriteError(w, r, apperrors.Forbidden("La sesión pertenece a otro estudio."))
			return
		}
		next.ServeHTTP(w, r.WithContext(logger.WithStudio(r.Context(), id)))
	})
}

// fail maps store sentinels onto service errors and writes the response.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		err = apperrors.NotFound("Registro no encontrado.")
	case errors.Is(err, storage.ErrConflict):
		err = apperrors.Conflict("El registro ya existe.")
	}
	if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	httputil.WriteError(w, r, err)
}

func (h *handler) ok(w http.ResponseWriter, data any) {
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (h *handler) created(w http.ResponseWriter, data any) {
	httputil.WriteJSON(w, http.StatusCreated, data)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(w, r, dst); err != nil {
		h.fail(w, r, err)
		return false
	}
	return true
}
