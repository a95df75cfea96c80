package handlers

import (
	"net/http"

	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/services"
	"github.com/ferreirogomes/artshare/session"
	"go.uber.org/zap"
)

// OfferHandler lida com requisições HTTP relacionadas a ofertas entre usuários.
type OfferHandler struct {
	Service *services.MarketplaceService
	Logger  *zap.Logger
}

// NewOfferHandler cria uma nova instância do handler de ofertas.
func NewOfferHandler(service *services.MarketplaceService, logger *zap.Logger) *OfferHandler {
	return &OfferHandler{Service: service, Logger: logger}
}

// ListOffers lista as ofertas ativas.
// GET /offers?artwork_id=
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	artworkID, ok, err := queryInt(r, "artwork_id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	var filter *int64
	if ok {
		filter = &artworkID
	}
	offers, err := h.Service.ActiveOffers(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusOK, offers)
}

// CreateOffer coloca tokens à venda. O preço pode vir em e8s
// (price_per_token) ou em unidades de exibição (price, ex. "0.0011").
// POST /offers
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	key, err := idempotencyKey(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	var requestBody struct {
		ArtworkID     int64  `json:"artwork_id"`
		TokensForSale int64  `json:"tokens_for_sale"`
		PricePerToken int64  `json:"price_per_token"`
		Price         string `json:"price"`
	}
	if err := decodeJSON(r, &requestBody); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	price := requestBody.PricePerToken
	if requestBody.Price != "" {
		if price != 0 {
			writeError(w, r, h.Logger, ledger.Invalid("informe price ou price_per_token, não ambos"))
			return
		}
		if price, err = ledger.ParseUnits(requestBody.Price); err != nil {
			writeError(w, r, h.Logger, err)
			return
		}
	}

	offer, err := h.Service.CreateTradeOffer(r.Context(), session.FromContext(r.Context()), key,
		requestBody.ArtworkID, requestBody.TokensForSale, price)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusCreated, offer)
}

// AcceptOffer liquida uma oferta para o usuário da sessão.
// POST /offers/{id}/accept
func (h *OfferHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	key, err := idempotencyKey(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	receipt, err := h.Service.AcceptTradeOffer(r.Context(), session.FromContext(r.Context()), key, id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusOK, receipt)
}

// CancelOffer cancela uma oferta do usuário da sessão.
// POST /offers/{id}/cancel
func (h *OfferHandler) CancelOffer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	key, err := idempotencyKey(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	offer, err := h.Service.CancelTradeOffer(r.Context(), session.FromContext(r.Context()), key, id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusOK, offer)
}
