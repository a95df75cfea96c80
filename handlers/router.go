package handlers

import (
	"net/http"

	"github.com/ferreirogomes/artshare/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterConfig reúne as dependências do roteador HTTP.
type RouterConfig struct {
	Service    *services.MarketplaceService
	Auth       Authenticator
	Logger     *zap.Logger
	CORSOrigin string
}

// NewRouter monta as rotas do marketplace.
func NewRouter(cfg RouterConfig) http.Handler {
	artworkHandler := NewArtworkHandler(cfg.Service, cfg.Logger)
	offerHandler := NewOfferHandler(cfg.Service, cfg.Logger)
	userHandler := NewUserHandler(cfg.Service, cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.CORSOrigin != "" {
		r.Use(CORS(cfg.CORSOrigin))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(Sessions(cfg.Auth, cfg.Logger))

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := cfg.Service.PlatformStats(r.Context())
			if err != nil {
				writeError(w, r, cfg.Logger, err)
				return
			}
			writeOK(w, http.StatusOK, stats)
		})

		r.Route("/artworks", func(r chi.Router) {
			r.Get("/", artworkHandler.ListArtworks)
			r.Post("/", artworkHandler.CreateArtwork)
			r.Get("/{id}", artworkHandler.GetArtwork)
			r.Get("/{id}/stats", artworkHandler.GetStats)
			r.Get("/{id}/owners", artworkHandler.GetOwners)
			r.Get("/{id}/quote", artworkHandler.GetQuote)
			r.Get("/{id}/payments", artworkHandler.GetPayments)
			r.Post("/{id}/purchase", artworkHandler.Purchase)
			r.Post("/{id}/verify", artworkHandler.Verify)
		})

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", offerHandler.ListOffers)
			r.Post("/", offerHandler.CreateOffer)
			r.Post("/{id}/accept", offerHandler.AcceptOffer)
			r.Post("/{id}/cancel", offerHandler.CancelOffer)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.CreateUser)
			r.Get("/me", userHandler.GetMe)
			r.Get("/{principal}", userHandler.GetUser)
			r.Get("/{principal}/holdings", userHandler.GetHoldings)
			r.Get("/{principal}/portfolio", userHandler.GetPortfolio)
			r.Post("/{principal}/verify", userHandler.Verify)
		})
	})

	return r
}
