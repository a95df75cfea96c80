package ledger_test

import (
	"testing"
	"time"

	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func digitalRenaissance() models.Artwork {
	return models.Artwork{
		ID:            1,
		Title:         "Digital Renaissance",
		Artist:        "CryptoArtist",
		TotalTokens:   1000,
		PricePerToken: 100_000,
		Creator:       "creator",
		CreatedAt:     now,
	}
}

func TestApplyPurchaseNewOwner(t *testing.T) {
	res, err := ledger.ApplyPurchase(digitalRenaissance(), nil, "alice", 50, now)
	require.NoError(t, err)

	assert.Equal(t, int64(50), res.Artwork.TokensSold)
	assert.Equal(t, int64(1), res.Artwork.OwnerCount)
	assert.True(t, res.NewOwner)
	assert.Equal(t, int64(5_000_000), res.Cost)
	assert.Equal(t, models.TokenHolding{
		ArtworkID: 1, Owner: "alice", TokensOwned: 50, PurchasePrice: 5_000_000, PurchaseDate: now,
	}, res.Holding)
	assert.Equal(t, models.PaymentPrimarySale, res.Payment.Kind)
	assert.Equal(t, "alice", res.Payment.Payer)
	assert.Equal(t, "creator", res.Payment.Payee)
	assert.Equal(t, int64(5_000_000), res.Payment.Amount)
	assert.NotEmpty(t, res.Payment.ID)
}

func TestApplyPurchaseAugmentsExistingHolding(t *testing.T) {
	art := digitalRenaissance()
	art.TokensSold = 50
	art.OwnerCount = 1
	earlier := now.Add(-time.Hour)
	current := &models.TokenHolding{ArtworkID: 1, Owner: "alice", TokensOwned: 50, PurchasePrice: 5_000_000, PurchaseDate: earlier}

	res, err := ledger.ApplyPurchase(art, current, "alice", 10, now)
	require.NoError(t, err)

	assert.False(t, res.NewOwner)
	assert.Equal(t, int64(1), res.Artwork.OwnerCount)
	assert.Equal(t, int64(60), res.Holding.TokensOwned)
	assert.Equal(t, int64(6_000_000), res.Holding.PurchasePrice)
	assert.Equal(t, earlier, res.Holding.PurchaseDate)
	assert.Equal(t, int64(50), current.TokensOwned, "entrada não deve ser alterada")
}

func TestApplyPurchaseDrainsSupplyExactly(t *testing.T) {
	art := digitalRenaissance()
	art.TokensSold = 990

	res, err := ledger.ApplyPurchase(art, nil, "bob", 10, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Artwork.TokensAvailable())

	_, err = ledger.ApplyPurchase(res.Artwork, &res.Holding, "bob", 1, now)
	assert.ErrorIs(t, err, ledger.ErrInsufficientSupply)
}

func TestApplyPurchaseRejections(t *testing.T) {
	art := digitalRenaissance()

	_, err := ledger.ApplyPurchase(art, nil, "", 1, now)
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)

	_, err = ledger.ApplyPurchase(art, nil, "alice", 0, now)
	assert.ErrorIs(t, err, ledger.ErrInvalidRequest)

	_, err = ledger.ApplyPurchase(art, nil, "alice", 1001, now)
	assert.ErrorIs(t, err, ledger.ErrInsufficientSupply)

	art.PricePerToken = 1 << 62
	_, err = ledger.ApplyPurchase(art, nil, "alice", 4, now)
	assert.ErrorIs(t, err, ledger.ErrAmountOverflow)
}

func TestReserveOffer(t *testing.T) {
	holding := &models.TokenHolding{ArtworkID: 1, Owner: "seller", TokensOwned: 30, PurchasePrice: 3_000_000}

	h, offer, err := ledger.ReserveOffer(holding, "seller", 1, 20, 110_000, now)
	require.NoError(t, err)
	assert.Equal(t, int64(20), h.TokensReserved)
	assert.Equal(t, int64(30), h.TokensOwned)
	assert.True(t, offer.Active)
	assert.Equal(t, int64(20), offer.TokensForSale)
	assert.Equal(t, "seller", offer.Seller)

	// A segunda oferta somada à primeira passaria do saldo.
	_, _, err = ledger.ReserveOffer(&h, "seller", 1, 11, 110_000, now)
	assert.ErrorIs(t, err, ledger.ErrInsufficientHolding)

	h2, _, err := ledger.ReserveOffer(&h, "seller", 1, 10, 120_000, now)
	require.NoError(t, err)
	assert.Equal(t, int64(30), h2.TokensReserved)
}

func TestReserveOfferMoreThanHeldLeavesHoldingUnchanged(t *testing.T) {
	holding := &models.TokenHolding{ArtworkID: 1, Owner: "seller", TokensOwned: 5}
	before := *holding

	_, _, err := ledger.ReserveOffer(holding, "seller", 1, 6, 100_000, now)
	assert.ErrorIs(t, err, ledger.ErrInsufficientHolding)
	assert.Equal(t, before, *holding)

	_, _, err = ledger.ReserveOffer(nil, "seller", 1, 1, 100_000, now)
	assert.ErrorIs(t, err, ledger.ErrInsufficientHolding)

	_, _, err = ledger.ReserveOffer(holding, "seller", 1, 1, 0, now)
	assert.ErrorIs(t, err, ledger.ErrInvalidRequest)
}

func TestSettleOffer(t *testing.T) {
	art := digitalRenaissance()
	art.TokensSold = 80
	art.OwnerCount = 2
	offer := models.TradeOffer{ID: 7, ArtworkID: 1, Seller: "seller", TokensForSale: 10, PricePerToken: 110_000, Active: true}
	seller := &models.TokenHolding{ArtworkID: 1, Owner: "seller", TokensOwned: 50, TokensReserved: 10, PurchasePrice: 5_000_000}
	buyer := &models.TokenHolding{ArtworkID: 1, Owner: "buyer", TokensOwned: 30, PurchasePrice: 3_000_000}

	s, err := ledger.SettleOffer(art, offer, seller, buyer, "buyer", now)
	require.NoError(t, err)

	assert.Equal(t, int64(40), s.Seller.TokensOwned)
	assert.Equal(t, int64(0), s.Seller.TokensReserved)
	assert.False(t, s.SellerExited)
	assert.Equal(t, int64(40), s.Buyer.TokensOwned)
	assert.Equal(t, int64(3_000_000+1_100_000), s.Buyer.PurchasePrice)
	assert.False(t, s.BuyerIsNew)
	assert.False(t, s.Offer.Active)
	assert.Equal(t, int64(80), s.Artwork.TokensSold)
	assert.Equal(t, int64(2), s.Artwork.OwnerCount)
	assert.Equal(t, int64(1_100_000), s.Payment.Amount)
	assert.Equal(t, "buyer", s.Payment.Payer)
	assert.Equal(t, "seller", s.Payment.Payee)
	require.NotNil(t, s.Payment.OfferID)
	assert.Equal(t, int64(7), *s.Payment.OfferID)

	_, err = ledger.SettleOffer(s.Artwork, s.Offer, &s.Seller, &s.Buyer, "buyer", now)
	assert.ErrorIs(t, err, ledger.ErrOfferInactive)
}

func TestSettleOfferSellerExitsAndBuyerJoins(t *testing.T) {
	art := digitalRenaissance()
	art.TokensSold = 10
	art.OwnerCount = 1
	offer := models.TradeOffer{ID: 1, ArtworkID: 1, Seller: "seller", TokensForSale: 10, PricePerToken: 100_000, Active: true}
	seller := &models.TokenHolding{ArtworkID: 1, Owner: "seller", TokensOwned: 10, TokensReserved: 10}

	s, err := ledger.SettleOffer(art, offer, seller, nil, "buyer", now)
	require.NoError(t, err)
	assert.True(t, s.SellerExited)
	assert.True(t, s.BuyerIsNew)
	assert.Equal(t, int64(1), s.Artwork.OwnerCount)
	assert.Equal(t, now, s.Buyer.PurchaseDate)
	assert.Equal(t, int64(1_000_000), s.Buyer.PurchasePrice)
}

func TestSettleOfferRejections(t *testing.T) {
	art := digitalRenaissance()
	offer := models.TradeOffer{ID: 1, ArtworkID: 1, Seller: "seller", TokensForSale: 10, PricePerToken: 100_000, Active: true}
	seller := &models.TokenHolding{ArtworkID: 1, Owner: "seller", TokensOwned: 10, TokensReserved: 10}

	_, err := ledger.SettleOffer(art, offer, seller, nil, "", now)
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)

	_, err = ledger.SettleOffer(art, offer, seller, nil, "seller", now)
	assert.ErrorIs(t, err, ledger.ErrSelfTrade)

	_, err = ledger.SettleOffer(art, offer, nil, nil, "buyer", now)
	assert.Error(t, err)
	_, isLedger := ledger.AsError(err)
	assert.False(t, isLedger, "reserva inconsistente não é erro de regra de negócio")
}

func TestCancelOffer(t *testing.T) {
	offer := models.TradeOffer{ID: 3, ArtworkID: 1, Seller: "seller", TokensForSale: 10, Active: true}
	seller := &models.TokenHolding{ArtworkID: 1, Owner: "seller", TokensOwned: 25, TokensReserved: 15}

	_, _, err := ledger.CancelOffer(offer, seller, "mallory")
	assert.ErrorIs(t, err, ledger.ErrNotOwner)

	cancelled, h, err := ledger.CancelOffer(offer, seller, "seller")
	require.NoError(t, err)
	assert.False(t, cancelled.Active)
	assert.Equal(t, int64(25), h.TokensOwned)
	assert.Equal(t, int64(5), h.TokensReserved)

	_, _, err = ledger.CancelOffer(cancelled, &h, "seller")
	assert.ErrorIs(t, err, ledger.ErrOfferInactive)

	_, _, err = ledger.CancelOffer(offer, seller, "")
	assert.ErrorIs(t, err, ledger.ErrUnauthenticated)
}

func TestCancelOfferRejectsBrokenReservation(t *testing.T) {
	offer := models.TradeOffer{ID: 4, ArtworkID: 1, Seller: "seller", TokensForSale: 10, Active: true}

	short := &models.TokenHolding{ArtworkID: 1, Owner: "seller", TokensOwned: 25, TokensReserved: 3}
	_, _, err := ledger.CancelOffer(offer, short, "seller")
	require.Error(t, err)
	_, isLedger := ledger.AsError(err)
	assert.False(t, isLedger, "reserva quebrada é erro interno")

	_, _, err = ledger.CancelOffer(offer, nil, "seller")
	require.Error(t, err)
	_, isLedger = ledger.AsError(err)
	assert.False(t, isLedger)
}

// Aplica uma sequência de compras e trocas e confere que a soma das
// posições sempre bate com TokensSold.
func TestSupplyInvariantAcrossSequence(t *testing.T) {
	art := digitalRenaissance()
	art.TotalTokens = 100
	holdings := map[string]*models.TokenHolding{}
	offers := map[int64]models.TradeOffer{}

	check := func() {
		var sum int64
		for _, h := range holdings {
			sum += h.TokensOwned
		}
		assert.Equal(t, art.TokensSold, sum)
		assert.GreaterOrEqual(t, art.TokensSold, int64(0))
		assert.LessOrEqual(t, art.TokensSold, art.TotalTokens)
		assert.Equal(t, int64(len(holdings)), art.OwnerCount)
	}

	buy := func(who string, n int64) error {
		res, err := ledger.ApplyPurchase(art, holdings[who], who, n, now)
		if err != nil {
			return err
		}
		art = res.Artwork
		h := res.Holding
		holdings[who] = &h
		return nil
	}

	require.NoError(t, buy("alice", 40))
	check()
	require.NoError(t, buy("bob", 35))
	check()
	assert.ErrorIs(t, buy("carol", 26), ledger.ErrInsufficientSupply)
	check()

	h, offer, err := ledger.ReserveOffer(holdings["alice"], "alice", art.ID, 40, 120_000, now)
	require.NoError(t, err)
	offer.ID = 1
	holdings["alice"] = &h
	offers[1] = offer

	s, err := ledger.SettleOffer(art, offers[1], holdings["alice"], holdings["carol"], "carol", now)
	require.NoError(t, err)
	art = s.Artwork
	offers[1] = s.Offer
	if s.SellerExited {
		delete(holdings, "alice")
	}
	buyer := s.Buyer
	holdings["carol"] = &buyer
	check()

	require.NoError(t, buy("carol", 25))
	check()
	assert.Equal(t, int64(0), art.TokensAvailable())
}

func TestValidateNewArtwork(t *testing.T) {
	ok := models.NewArtwork{Title: "t", Artist: "a", Description: "d", ImageURL: "u", TotalTokens: 1, PricePerToken: 1}
	assert.NoError(t, ledger.ValidateNewArtwork(ok))

	cases := map[string]func(*models.NewArtwork){
		"título vazio":    func(r *models.NewArtwork) { r.Title = "  " },
		"artista vazio":   func(r *models.NewArtwork) { r.Artist = "" },
		"sem descrição":   func(r *models.NewArtwork) { r.Description = "" },
		"sem imagem":      func(r *models.NewArtwork) { r.ImageURL = "" },
		"zero tokens":     func(r *models.NewArtwork) { r.TotalTokens = 0 },
		"preço zero":      func(r *models.NewArtwork) { r.PricePerToken = 0 },
		"valor estourado": func(r *models.NewArtwork) { r.TotalTokens, r.PricePerToken = 1<<40, 1<<40 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := ok
			mutate(&req)
			assert.Error(t, ledger.ValidateNewArtwork(req))
		})
	}
}

func TestQuotePurchase(t *testing.T) {
	q, err := ledger.QuotePurchase(digitalRenaissance(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), q.Cost)
	assert.Equal(t, "0.010000", q.CostDisplay)
	assert.InDelta(t, 1.0, q.OwnershipPercent, 1e-9)

	_, err = ledger.QuotePurchase(digitalRenaissance(), 1001)
	assert.ErrorIs(t, err, ledger.ErrInsufficientSupply)
}
