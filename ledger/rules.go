package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/ferreirogomes/artshare/models"
	"github.com/google/uuid"
)

// As funções deste arquivo são as transições do ledger. Não fazem I/O:
// recebem o estado lido dentro da transação e devolvem o novo estado,
// que a camada de storage persiste de uma vez. Contabilidade de oferta
// usa apenas inteiros; porcentagens existem só para exibição.

// ValidateNewArtwork aplica as únicas validações exigidas sobre os metadados.
func ValidateNewArtwork(req models.NewArtwork) error {
	fields := map[string]string{
		"title":       req.Title,
		"artist":      req.Artist,
		"description": req.Description,
		"image_url":   req.ImageURL,
	}
	for _, name := range []string{"title", "artist", "description", "image_url"} {
		if strings.TrimSpace(fields[name]) == "" {
			return Invalid("%s é obrigatório", name)
		}
	}
	if req.TotalTokens < 1 {
		return Invalid("total_tokens deve ser ao menos 1")
	}
	if req.PricePerToken < 1 {
		return Invalid("price_per_token deve ser ao menos 1")
	}
	if _, err := MulUnits(req.TotalTokens, req.PricePerToken); err != nil {
		return err
	}
	return nil
}

// NewListing cria a obra ainda não verificada, sem tokens vendidos.
func NewListing(req models.NewArtwork, creator string, now time.Time) (models.Artwork, error) {
	if creator == "" {
		return models.Artwork{}, ErrUnauthenticated
	}
	if err := ValidateNewArtwork(req); err != nil {
		return models.Artwork{}, err
	}
	return models.Artwork{
		Title:         strings.TrimSpace(req.Title),
		Artist:        strings.TrimSpace(req.Artist),
		Description:   strings.TrimSpace(req.Description),
		ImageURL:      strings.TrimSpace(req.ImageURL),
		TotalTokens:   req.TotalTokens,
		PricePerToken: req.PricePerToken,
		Creator:       creator,
		CreatedAt:     now,
	}, nil
}

// PurchaseResult é o estado após uma compra primária.
type PurchaseResult struct {
	Artwork  models.Artwork
	Holding  models.TokenHolding
	NewOwner bool
	Cost     int64
	Payment  models.Payment
}

// ApplyPurchase vende tokenAmount tokens da oferta primária para buyer.
// current é a posição atual do comprador nessa obra, ou nil.
func ApplyPurchase(art models.Artwork, current *models.TokenHolding, buyer string, tokenAmount int64, now time.Time) (PurchaseResult, error) {
	if buyer == "" {
		return PurchaseResult{}, ErrUnauthenticated
	}
	if tokenAmount <= 0 {
		return PurchaseResult{}, Invalid("quantidade de tokens deve ser positiva")
	}
	if tokenAmount > art.TokensAvailable() {
		return PurchaseResult{}, Errorf(KindInsufficientSupply,
			"solicitados %d tokens, disponíveis %d", tokenAmount, art.TokensAvailable())
	}
	cost, err := MulUnits(tokenAmount, art.PricePerToken)
	if err != nil {
		return PurchaseResult{}, err
	}

	newOwner := current == nil || current.TokensOwned == 0
	var holding models.TokenHolding
	if current != nil {
		holding = *current
		basis, err := AddUnits(holding.PurchasePrice, cost)
		if err != nil {
			return PurchaseResult{}, err
		}
		holding.TokensOwned += tokenAmount
		holding.PurchasePrice = basis
	} else {
		holding = models.TokenHolding{
			ArtworkID:     art.ID,
			Owner:         buyer,
			TokensOwned:   tokenAmount,
			PurchasePrice: cost,
			PurchaseDate:  now,
		}
	}

	art.TokensSold += tokenAmount
	if newOwner {
		art.OwnerCount++
	}

	return PurchaseResult{
		Artwork:  art,
		Holding:  holding,
		NewOwner: newOwner,
		Cost:     cost,
		Payment: models.Payment{
			ID:        uuid.NewString(),
			Kind:      models.PaymentPrimarySale,
			ArtworkID: art.ID,
			Payer:     buyer,
			Payee:     art.Creator,
			Amount:    cost,
			CreatedAt: now,
		},
	}, nil
}

// ReserveOffer cria uma oferta e reserva os tokens na posição do vendedor.
// Os tokens continuam contados em TokensOwned até a aceitação, mas a soma
// das ofertas ativas nunca passa do que o vendedor possui.
func ReserveOffer(holding *models.TokenHolding, seller string, artworkID, tokensForSale, pricePerToken int64, now time.Time) (models.TokenHolding, models.TradeOffer, error) {
	if seller == "" {
		return models.TokenHolding{}, models.TradeOffer{}, ErrUnauthenticated
	}
	if tokensForSale <= 0 {
		return models.TokenHolding{}, models.TradeOffer{}, Invalid("tokens_for_sale deve ser positivo")
	}
	if pricePerToken <= 0 {
		return models.TokenHolding{}, models.TradeOffer{}, Invalid("price_per_token deve ser positivo")
	}
	if holding == nil {
		return models.TokenHolding{}, models.TradeOffer{}, Errorf(KindInsufficientHolding,
			"nenhum token da obra %d em posse do vendedor", artworkID)
	}
	if holding.AvailableTokens() < tokensForSale {
		return models.TokenHolding{}, models.TradeOffer{}, Errorf(KindInsufficientHolding,
			"oferta de %d tokens, livres %d (possui %d, reservados %d)",
			tokensForSale, holding.AvailableTokens(), holding.TokensOwned, holding.TokensReserved)
	}
	if _, err := MulUnits(tokensForSale, pricePerToken); err != nil {
		return models.TokenHolding{}, models.TradeOffer{}, err
	}

	h := *holding
	h.TokensReserved += tokensForSale
	offer := models.TradeOffer{
		ArtworkID:     artworkID,
		Seller:        seller,
		TokensForSale: tokensForSale,
		PricePerToken: pricePerToken,
		CreatedAt:     now,
		Active:        true,
	}
	return h, offer, nil
}

// Settlement é o resultado completo de uma oferta aceita. Deve ser
// persistido inteiro ou não ser persistido.
type Settlement struct {
	Artwork      models.Artwork
	Offer        models.TradeOffer
	Seller       models.TokenHolding
	SellerExited bool // posição do vendedor zerada; o registro deve ser removido
	Buyer        models.TokenHolding
	BuyerIsNew   bool
	Payment      models.Payment
}

// SettleOffer transfere os tokens da oferta do vendedor para buyer.
func SettleOffer(art models.Artwork, offer models.TradeOffer, seller, buyerHolding *models.TokenHolding, buyer string, now time.Time) (Settlement, error) {
	if buyer == "" {
		return Settlement{}, ErrUnauthenticated
	}
	if !offer.Active {
		return Settlement{}, ErrOfferInactive
	}
	if offer.Seller == buyer {
		return Settlement{}, ErrSelfTrade
	}
	n := offer.TokensForSale
	if seller == nil || seller.TokensOwned < n || seller.TokensReserved < n {
		return Settlement{}, fmt.Errorf("reserva inconsistente para a oferta %d", offer.ID)
	}
	total, err := MulUnits(n, offer.PricePerToken)
	if err != nil {
		return Settlement{}, err
	}

	s := *seller
	s.TokensOwned -= n
	s.TokensReserved -= n
	exited := s.TokensOwned == 0

	buyerIsNew := buyerHolding == nil || buyerHolding.TokensOwned == 0
	var b models.TokenHolding
	if buyerHolding != nil {
		b = *buyerHolding
		basis, err := AddUnits(b.PurchasePrice, total)
		if err != nil {
			return Settlement{}, err
		}
		b.TokensOwned += n
		b.PurchasePrice = basis
	} else {
		b = models.TokenHolding{
			ArtworkID:     offer.ArtworkID,
			Owner:         buyer,
			TokensOwned:   n,
			PurchasePrice: total,
			PurchaseDate:  now,
		}
	}

	if buyerIsNew {
		art.OwnerCount++
	}
	if exited {
		art.OwnerCount--
	}
	offer.Active = false

	offerID := offer.ID
	return Settlement{
		Artwork:      art,
		Offer:        offer,
		Seller:       s,
		SellerExited: exited,
		Buyer:        b,
		BuyerIsNew:   buyerIsNew,
		Payment: models.Payment{
			ID:        uuid.NewString(),
			Kind:      models.PaymentTrade,
			ArtworkID: offer.ArtworkID,
			OfferID:   &offerID,
			Payer:     buyer,
			Payee:     offer.Seller,
			Amount:    total,
			CreatedAt: now,
		},
	}, nil
}

// CancelOffer desativa a oferta e libera a reserva. TokensOwned não muda.
// Uma oferta ativa sempre tem a reserva correspondente na posição do
// vendedor; sem ela o erro é interno, nunca corrigido em silêncio.
func CancelOffer(offer models.TradeOffer, seller *models.TokenHolding, caller string) (models.TradeOffer, models.TokenHolding, error) {
	if caller == "" {
		return models.TradeOffer{}, models.TokenHolding{}, ErrUnauthenticated
	}
	if caller != offer.Seller {
		return models.TradeOffer{}, models.TokenHolding{}, ErrNotOwner
	}
	if !offer.Active {
		return models.TradeOffer{}, models.TokenHolding{}, ErrOfferInactive
	}
	if seller == nil || seller.TokensReserved < offer.TokensForSale {
		return models.TradeOffer{}, models.TokenHolding{}, fmt.Errorf("reserva inconsistente para a oferta %d", offer.ID)
	}
	offer.Active = false
	h := *seller
	h.TokensReserved -= offer.TokensForSale
	return offer, h, nil
}

// QuotePurchase simula o custo de uma compra sem alterar nada.
func QuotePurchase(art models.Artwork, tokens int64) (models.Quote, error) {
	if tokens <= 0 {
		return models.Quote{}, Invalid("quantidade de tokens deve ser positiva")
	}
	if tokens > art.TokensAvailable() {
		return models.Quote{}, Errorf(KindInsufficientSupply,
			"solicitados %d tokens, disponíveis %d", tokens, art.TokensAvailable())
	}
	cost, err := MulUnits(tokens, art.PricePerToken)
	if err != nil {
		return models.Quote{}, err
	}
	return models.Quote{
		ArtworkID:        art.ID,
		Tokens:           tokens,
		Cost:             cost,
		CostDisplay:      FormatUnits(cost, 6),
		OwnershipPercent: float64(tokens) / float64(art.TotalTokens) * 100,
		TokensAvailable:  art.TokensAvailable(),
	}, nil
}
