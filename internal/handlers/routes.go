// Package handlers exposes the faucet over HTTP. Handlers stay thin: they
// translate requests into orchestrator calls and map the error taxonomy onto
// deliberately generic responses.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ConcealNetwork/conceal-faucet-api/config"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/claim"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/clientip"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/faucet"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/storage"
	"github.com/ConcealNetwork/conceal-faucet-api/internal/util"
)

// Handler bundles the dependencies of the HTTP surface.
type Handler struct {
	cfg          *config.Config
	orchestrator *claim.Orchestrator
	resolver     *clientip.Resolver
	wallet       claim.Wallet
	store        storage.Store
	validate     *validator.Validate
	logger       *slog.Logger
}

func New(
	cfg *config.Config,
	orchestrator *claim.Orchestrator,
	resolver *clientip.Resolver,
	wallet claim.Wallet,
	store storage.Store,
	logger *slog.Logger,
) *Handler {
	v := validator.New()
	payout := cfg.Payout
	v.RegisterValidation("ccx_address", func(fl validator.FieldLevel) bool {
		return faucet.ValidAddress(fl.Field().String(), payout.AddressPrefix, payout.AddressLength)
	})

	return &Handler{
		cfg:          cfg,
		orchestrator: orchestrator,
		resolver:     resolver,
		wallet:       wallet,
		store:        store,
		validate:     v,
		logger:       logger,
	}
}

// Routes builds the chi router for the faucet API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		util.JSONResponse(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		util.JSONResponse(w, http.StatusMethodNotAllowed, map[string]any{"message": "Method Not Allowed"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session", h.StartSession)
		r.Post("/claim", h.Claim)
		r.Get("/status", h.Status)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
