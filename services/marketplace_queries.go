package services

import (
	"context"

	"github.com/ferreirogomes/artshare/cache"
	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/models"
	"github.com/ferreirogomes/artshare/session"
)

// As consultas nunca alteram estado. Cada projeção vem de uma única
// leitura do banco e pode ser servida do cache até a próxima mutação.

// ListArtworks retorna o catálogo filtrado e ordenado.
func (s *MarketplaceService) ListArtworks(ctx context.Context, search string, sort ledger.SortKey) ([]models.Artwork, error) {
	all, err := s.allArtworks(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.FilterAndSort(all, search, sort), nil
}

func (s *MarketplaceService) allArtworks(ctx context.Context) ([]models.Artwork, error) {
	if arts, ok := cache.Lookup[[]models.Artwork](s.Cache, cache.KeyArtworks); ok {
		return arts, nil
	}
	gen := cache.Generation(s.Cache)
	arts, err := s.DB.ListArtworks(ctx)
	if err != nil {
		return nil, err
	}
	cache.Store(s.Cache, gen, cache.KeyArtworks, arts)
	return arts, nil
}

// GetArtwork busca uma obra; found é false se o id não existe.
func (s *MarketplaceService) GetArtwork(ctx context.Context, id int64) (models.Artwork, bool, error) {
	if art, ok := cache.Lookup[models.Artwork](s.Cache, cache.ArtworkKey(id)); ok {
		return art, true, nil
	}
	gen := cache.Generation(s.Cache)
	art, found, err := s.DB.GetArtwork(ctx, id)
	if err != nil || !found {
		return models.Artwork{}, found, err
	}
	cache.Store(s.Cache, gen, cache.ArtworkKey(id), art)
	return art, true, nil
}

// ArtworkStats resume a distribuição de uma obra.
func (s *MarketplaceService) ArtworkStats(ctx context.Context, id int64) (models.ArtworkStats, bool, error) {
	art, found, err := s.GetArtwork(ctx, id)
	if err != nil || !found {
		return models.ArtworkStats{}, found, err
	}
	return models.StatsFor(art), true, nil
}

// OwnershipDistribution lista os proprietários de uma obra, do maior para o menor.
func (s *MarketplaceService) OwnershipDistribution(ctx context.Context, id int64) ([]models.HoldingView, bool, error) {
	if views, ok := cache.Lookup[[]models.HoldingView](s.Cache, cache.DistributionKey(id)); ok {
		return views, true, nil
	}
	gen := cache.Generation(s.Cache)
	art, found, err := s.DB.GetArtwork(ctx, id)
	if err != nil || !found {
		return nil, found, err
	}
	holdings, err := s.DB.HoldingsByArtwork(ctx, id)
	if err != nil {
		return nil, false, err
	}
	portfolio := ledger.BuildPortfolio("", holdings, map[int64]models.Artwork{id: art})
	cache.Store(s.Cache, gen, cache.DistributionKey(id), portfolio.Holdings)
	return portfolio.Holdings, true, nil
}

// Quote simula uma compra sem reservar nada.
func (s *MarketplaceService) Quote(ctx context.Context, id, tokens int64) (models.Quote, error) {
	art, found, err := s.GetArtwork(ctx, id)
	if err != nil {
		return models.Quote{}, err
	}
	if !found {
		return models.Quote{}, ledger.Errorf(ledger.KindArtworkNotFound, "obra %d não encontrada", id)
	}
	return ledger.QuotePurchase(art, tokens)
}

// UserHoldings lista as posições de um proprietário.
func (s *MarketplaceService) UserHoldings(ctx context.Context, owner string) ([]models.TokenHolding, error) {
	if hs, ok := cache.Lookup[[]models.TokenHolding](s.Cache, cache.HoldingsKey(owner)); ok {
		return hs, nil
	}
	gen := cache.Generation(s.Cache)
	hs, err := s.DB.HoldingsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	cache.Store(s.Cache, gen, cache.HoldingsKey(owner), hs)
	return hs, nil
}

// Portfolio avalia as posições de um proprietário ao preço atual.
func (s *MarketplaceService) Portfolio(ctx context.Context, owner string) (models.Portfolio, error) {
	holdings, err := s.UserHoldings(ctx, owner)
	if err != nil {
		return models.Portfolio{}, err
	}
	arts, err := s.allArtworks(ctx)
	if err != nil {
		return models.Portfolio{}, err
	}
	byID := make(map[int64]models.Artwork, len(arts))
	for _, a := range arts {
		byID[a.ID] = a
	}
	return ledger.BuildPortfolio(owner, holdings, byID), nil
}

// GetUserProfile busca o perfil de principal; vazio significa o da sessão.
func (s *MarketplaceService) GetUserProfile(ctx context.Context, sess session.Session, principal string) (models.UserAccount, bool, error) {
	if principal == "" {
		if !sess.Authenticated() {
			return models.UserAccount{}, false, ledger.ErrUnauthenticated
		}
		principal = sess.Principal()
	}
	return s.DB.GetUser(ctx, principal)
}

// ActiveOffers lista as ofertas ativas, opcionalmente de uma obra.
func (s *MarketplaceService) ActiveOffers(ctx context.Context, artworkID *int64) ([]models.TradeOffer, error) {
	if artworkID != nil {
		return s.DB.ActiveOffers(ctx, artworkID)
	}
	if offers, ok := cache.Lookup[[]models.TradeOffer](s.Cache, cache.KeyActiveOffers); ok {
		return offers, nil
	}
	gen := cache.Generation(s.Cache)
	offers, err := s.DB.ActiveOffers(ctx, nil)
	if err != nil {
		return nil, err
	}
	cache.Store(s.Cache, gen, cache.KeyActiveOffers, offers)
	return offers, nil
}

// PlatformStats retorna os agregados da plataforma.
func (s *MarketplaceService) PlatformStats(ctx context.Context) (models.PlatformStats, error) {
	if stats, ok := cache.Lookup[models.PlatformStats](s.Cache, cache.KeyPlatformStats); ok {
		return stats, nil
	}
	gen := cache.Generation(s.Cache)
	stats, err := s.DB.PlatformStats(ctx)
	if err != nil {
		return models.PlatformStats{}, err
	}
	cache.Store(s.Cache, gen, cache.KeyPlatformStats, stats)
	return stats, nil
}

// PaymentHistory lista as liquidações de uma obra.
func (s *MarketplaceService) PaymentHistory(ctx context.Context, artworkID int64) ([]models.Payment, bool, error) {
	_, found, err := s.GetArtwork(ctx, artworkID)
	if err != nil || !found {
		return nil, found, err
	}
	payments, err := s.DB.PaymentsByArtwork(ctx, artworkID)
	if err != nil {
		return nil, false, err
	}
	return payments, true, nil
}
