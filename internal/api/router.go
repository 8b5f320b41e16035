package api

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"ximoveis/internal/config"
	"ximoveis/internal/middleware"
	"ximoveis/internal/models"
	"ximoveis/internal/rate"
	"ximoveis/internal/service"
	"ximoveis/internal/util"
	"ximoveis/internal/version"
)

type Handlers struct {
	cfg     config.Config
	svc     *service.Service
	limiter *rate.Limiter
	log     *logrus.Logger
}

func NewRouter(cfg config.Config, svc *service.Service, logger *logrus.Logger) http.Handler {
	h := &Handlers{
		cfg:     cfg,
		svc:     svc,
		limiter: rate.NewLimiter(),
		log:     logger,
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger(logger, cfg.TrustProxy))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimw.StripSlashes)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, map[string]any{"status": "ok", "build": version.Current()})
	})
	r.Get("/health/ready", h.Ready)

	r.Route("/auth", func(r chi.Router) {
		login := middleware.RateLimit(h.limiter, "login", 20, time.Minute, cfg.TrustProxy)
		register := middleware.RateLimit(h.limiter, "register", 10, time.Minute, cfg.TrustProxy)
		r.With(login).Post("/login", h.Login)
		r.With(register).Post("/register", h.Register)
		r.With(login).Post("/usuarios/login", h.Login)
		r.With(register).Post("/usuarios/cadastrar", h.Register)
	})

	r.Route("/properties", h.propertyRoutes)
	r.Route("/imoveis", h.propertyRoutes)
	r.With(middleware.OptionalAuthn(h.svc)).Get("/imovel/{id}", h.GetProperty)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Authn(h.svc))
		r.Use(middleware.AdminOnly)
		r.Get("/properties/pending", h.AdminPending)
		r.Get("/properties", h.AdminList)
		r.Get("/properties/{id}", h.AdminGet)
		r.Put("/properties/{id}", h.AdminEdit)
		r.Get("/properties/{id}/photos", h.AdminPhotos)
		r.Post("/properties/{id}/cover", h.SetCover)
		r.Post("/properties/{id}/approve", h.AdminApprove)
		r.Post("/properties/{id}/reject", h.AdminReject)
		r.Post("/properties/{id}/notes", h.AdminAnnotate)
		r.Get("/certidao/{id}", h.AdminCertificate)
		r.Get("/users", h.AdminUsers)

		r.Get("/imoveis-pendentes", h.AdminPending)
		r.Get("/imovel/{id}", h.AdminGet)
		r.Put("/imovel/{id}", h.AdminEdit)
		r.Put("/aprovar/{id}", h.AdminApprove)
		r.Put("/rejeitar/{id}", h.AdminReject)
		r.Post("/aprovar/{id}", h.AdminApprove)
		r.Post("/rejeitar/{id}", h.AdminReject)
		r.Post("/anotacao/{id}", h.AdminAnnotate)
		r.Post("/capa/{id}", h.SetCover)
	})

	r.Get("/files/{name}", h.ServeFile)

	return r
}

func (h *Handlers) propertyRoutes(r chi.Router) {
	r.Get("/", h.ListProperties)
	r.Get("/map", h.MapProperties)
	r.With(middleware.OptionalAuthn(h.svc)).Get("/{id}", h.GetProperty)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authn(h.svc))
		r.Get("/mine", h.ListMine)
		r.Get("/mine/list", h.ListMine)
		r.Get("/meus", h.ListMine)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleBroker, models.RoleAgency))
			r.Post("/", h.CreateProperty)
			r.Post("/cadastrar", h.CreateProperty)
		})
		r.Put("/{id}", h.EditProperty)
		r.Delete("/{id}", h.DeleteProperty)
		r.Get("/{id}/certidao", h.OwnerCertificate)
		r.Post("/{id}/cover", h.SetCover)
	})
}

func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ready := map[string]any{
		"checked_at": time.Now().UTC().Format(time.RFC3339),
	}
	comps := map[string]any{}
	ready["components"] = comps

	ok := true
	if err := h.svc.Store().Ping(r.Context()); err != nil {
		ok = false
		comps["database"] = map[string]any{"ok": false, "error": err.Error()}
	} else {
		comps["database"] = map[string]any{"ok": true, "dialect": h.svc.Store().Dialect().Name()}
	}
	if _, err := os.Stat(h.svc.Files().Dir()); err != nil {
		ok = false
		comps["uploads"] = map[string]any{"ok": false, "error": err.Error()}
	} else {
		comps["uploads"] = map[string]any{"ok": true}
	}

	if ok {
		ready["status"] = "ready"
		util.WriteJSON(w, 200, ready)
		return
	}
	ready["status"] = "degraded"
	util.WriteJSON(w, 503, ready)
}
