package handlers

import (
	"net/http"

	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/models"
	"github.com/ferreirogomes/artshare/services"
	"github.com/ferreirogomes/artshare/session"
	"go.uber.org/zap"
)

// ArtworkHandler lida com requisições HTTP relacionadas a obras.
type ArtworkHandler struct {
	Service *services.MarketplaceService
	Logger  *zap.Logger
}

// NewArtworkHandler cria uma nova instância do handler de obras.
func NewArtworkHandler(service *services.MarketplaceService, logger *zap.Logger) *ArtworkHandler {
	return &ArtworkHandler{Service: service, Logger: logger}
}

// ListArtworks lista o catálogo.
// GET /artworks?search=&sort=
func (h *ArtworkHandler) ListArtworks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	arts, err := h.Service.ListArtworks(r.Context(), q.Get("search"), ledger.ParseSortKey(q.Get("sort")))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusOK, arts)
}

// CreateArtwork tokeniza uma nova obra.
// POST /artworks
func (h *ArtworkHandler) CreateArtwork(w http.ResponseWriter, r *http.Request) {
	key, err := idempotencyKey(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	var req models.NewArtwork
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	art, err := h.Service.CreateArtwork(r.Context(), session.FromContext(r.Context()), key, req)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusCreated, art)
}

// GetArtwork obtém uma obra pelo id.
// GET /artworks/{id}
func (h *ArtworkHandler) GetArtwork(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	art, found, err := h.Service.GetArtwork(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if !found {
		writeError(w, r, h.Logger, ledger.Errorf(ledger.KindArtworkNotFound, "obra %d não encontrada", id))
		return
	}
	writeOK(w, http.StatusOK, art)
}

// GetStats resume a distribuição de uma obra.
// GET /artworks/{id}/stats
func (h *ArtworkHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	stats, found, err := h.Service.ArtworkStats(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if !found {
		writeError(w, r, h.Logger, ledger.Errorf(ledger.KindArtworkNotFound, "obra %d não encontrada", id))
		return
	}
	writeOK(w, http.StatusOK, stats)
}

// GetOwners lista a distribuição de propriedade.
// GET /artworks/{id}/owners
func (h *ArtworkHandler) GetOwners(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	owners, found, err := h.Service.OwnershipDistribution(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if !found {
		writeError(w, r, h.Logger, ledger.Errorf(ledger.KindArtworkNotFound, "obra %d não encontrada", id))
		return
	}
	writeOK(w, http.StatusOK, owners)
}

// GetQuote simula uma compra.
// GET /artworks/{id}/quote?tokens=
func (h *ArtworkHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	tokens, ok, err := queryInt(r, "tokens")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if !ok {
		writeError(w, r, h.Logger, ledger.Invalid("tokens é obrigatório"))
		return
	}
	quote, err := h.Service.Quote(r.Context(), id, tokens)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusOK, quote)
}

// GetPayments lista as liquidações da obra.
// GET /artworks/{id}/payments
func (h *ArtworkHandler) GetPayments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	payments, found, err := h.Service.PaymentHistory(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if !found {
		writeError(w, r, h.Logger, ledger.Errorf(ledger.KindArtworkNotFound, "obra %d não encontrada", id))
		return
	}
	writeOK(w, http.StatusOK, payments)
}

// Purchase compra tokens da oferta primária.
// POST /artworks/{id}/purchase
func (h *ArtworkHandler) Purchase(w http.ResponseWriter, r *http.Request) {
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
	var requestBody struct {
		Tokens int64 `json:"tokens"`
	}
	if err := decodeJSON(r, &requestBody); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	receipt, err := h.Service.PurchaseTokens(r.Context(), session.FromContext(r.Context()), key, id, requestBody.Tokens)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusOK, receipt)
}

// Verify marca a obra como verificada.
// POST /artworks/{id}/verify
func (h *ArtworkHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	art, err := h.Service.VerifyArtPiece(r.Context(), session.FromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeOK(w, http.StatusOK, art)
}
