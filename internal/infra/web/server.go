package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"saas-billing/internal/infra/ws"
	"saas-billing/internal/usecase"
)

type Server struct {
	lifecycleUC usecase.LifecycleUseCase
	planUC      usecase.PlanUseCase
	hub         *ws.Hub
	auth        *AuthManager
	log         *zerolog.Logger
}

func NewServer(
	lifecycleUC usecase.LifecycleUseCase,
	planUC usecase.PlanUseCase,
	hub *ws.Hub,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		lifecycleUC: lifecycleUC,
		planUC:      planUC,
		hub:         hub,
		auth:        auth,
		log:         logger,
	}
}

// Router builds the admin API. Every route under /api/admin requires a valid
// admin token; health and metrics stay open for probes and scrapers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(TraceID(s.log))
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(RequireAdmin(s.auth))

		r.Get("/plans", plansListHandler(s.planUC))
		r.Get("/plans/{planID}/features", planFeaturesHandler(s.planUC))

		r.Route("/user-subscriptions", func(r chi.Router) {
			r.Get("/ws", s.handleWS)

			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", detailHandler(s.lifecycleUC))
				r.Get("/history", historyHandler(s.lifecycleUC))
				r.Post("/upgrade", upgradeHandler(s.lifecycleUC))
				r.Post("/extend", extendHandler(s.lifecycleUC))
				r.Post("/adjust-quota", adjustQuotaHandler(s.lifecycleUC))
				r.Post("/reset-quota", resetQuotaHandler(s.lifecycleUC))
				r.Post("/pause", pauseHandler(s.lifecycleUC))
				r.Post("/resume", resumeHandler(s.lifecycleUC))
				r.Post("/cancel", cancelHandler(s.lifecycleUC))
				r.Post("/gift", giftHandler(s.lifecycleUC))
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "", map[string]any{
		"status":   "ok",
		"sessions": s.hub.SessionCount(),
	})
}

// handleWS attaches a live session for the user named in the query string.
// The admin console subscribes on behalf of the user view it has open.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	s.hub.ServeUser(w, r, userID)
}
