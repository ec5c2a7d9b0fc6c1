package handlers

import (
	"net/http"
	"strings"
	"time"

	"cashless/internal/config"
	"cashless/internal/middleware"
	"cashless/internal/models"
	"cashless/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Handler struct {
	cfg        config.Config
	log        zerolog.Logger
	accounts   AccountService
	transfers  TransferService
	requests   RequestService
	ledger     LedgerStore
	reconciler Reconciler
	audit      AuditStore
	fees       FeeStore
	hub        *websocket.Hub
}

func New(cfg config.Config, log zerolog.Logger, accounts AccountService, transfers TransferService, requests RequestService, ledger LedgerStore, reconciler Reconciler, audit AuditStore, fees FeeStore, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:        cfg,
		log:        log,
		accounts:   accounts,
		transfers:  transfers,
		requests:   requests,
		ledger:     ledger,
		reconciler: reconciler,
		audit:      audit,
		fees:       fees,
		hub:        hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authn := middleware.Auth(h.cfg.JWTSecret)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authn).Get("/me", h.Me)
	})
	router.Route("/accounts/me", func(r chi.Router) {
		r.Use(authn)
		r.Get("/balance", h.GetBalance)
		r.Get("/self-check", h.SelfCheck)
	})
	router.Route("/transfers", func(r chi.Router) {
		r.Use(authn)
		r.Post("/", h.Transfer)
		r.Get("/", h.ListTransfers)
	})
	router.Route("/requests", func(r chi.Router) {
		r.Use(authn)
		r.Post("/{direction}", h.CreateRequest)
		r.Get("/{direction}", h.ListRequests)
		r.With(middleware.RequireRole(models.RoleAgent)).Post("/{requestID}/approve", h.ApproveRequest)
		r.With(middleware.RequireRole(models.RoleAgent)).Post("/{requestID}/reject", h.RejectRequest)
	})
	router.Route("/admin", func(r chi.Router) {
		r.Use(authn)
		r.Use(middleware.RequireRole(models.RoleAdmin))
		r.Get("/accounts", h.AdminListAccounts)
		r.Post("/accounts/{id}/status", h.AdminSetStatus)
		r.Get("/reconcile", h.Reconcile)
		r.Get("/audit", h.ListAuditLogs)
		r.Get("/fees", h.TotalFees)
	})
	router.Get("/ws/balances", h.WSBalances)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	return router
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
