package services

import (
	"context"
	"time"

	"github.com/ferreirogomes/artshare/models"
	"github.com/ferreirogomes/artshare/storage"
	"go.uber.org/zap"
)

// PlatformPrincipal é o criador das obras do catálogo inicial.
const PlatformPrincipal = "platform"

type seedArtwork struct {
	art models.Artwork
	age time.Duration
}

var seedCatalog = []seedArtwork{
	{
		art: models.Artwork{
			Title:         "Digital Renaissance",
			Artist:        "CryptoArtist",
			Description:   "A stunning digital artwork representing the fusion of classical art with blockchain technology.",
			ImageURL:      "https://images.unsplash.com/photo-1541961017774-22349e4a1262?w=800",
			TotalTokens:   1000,
			PricePerToken: 100_000,
			Verified:      true,
		},
	},
	{
		art: models.Artwork{
			Title:         "Neon Dreams",
			Artist:        "DigitalVision",
			Description:   "Vibrant neon-inspired artwork exploring the intersection of technology and human emotion.",
			ImageURL:      "https://images.unsplash.com/photo-1578662996442-48f60103fc96?w=800",
			TotalTokens:   500,
			PricePerToken: 200_000,
			Verified:      true,
		},
		age: 24 * time.Hour,
	},
	{
		art: models.Artwork{
			Title:         "Abstract Harmony",
			Artist:        "ModernMaster",
			Description:   "An exploration of color, form, and digital expression in the modern age.",
			ImageURL:      "https://images.unsplash.com/photo-1549490349-8643362247b5?w=800",
			TotalTokens:   750,
			PricePerToken: 150_000,
		},
		age: 48 * time.Hour,
	},
}

// SeedCatalog insere o catálogo inicial quando o banco não tem nenhuma obra.
// Retorna quantas obras foram inseridas.
func (s *MarketplaceService) SeedCatalog(ctx context.Context) (int, error) {
	existing, err := s.DB.ListArtworks(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		s.Logger.Debug("catálogo já populado", zap.Int("artworks", len(existing)))
		return 0, nil
	}

	now := s.Now()
	err = s.DB.InTx(ctx, func(tx *storage.Tx) error {
		// Mais antigas primeiro, para que os ids sigam a ordem de criação.
		for i := len(seedCatalog) - 1; i >= 0; i-- {
			art := seedCatalog[i].art
			art.Creator = PlatformPrincipal
			art.CreatedAt = now.Add(-seedCatalog[i].age)
			if _, err := tx.InsertArtwork(ctx, art); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if s.Cache != nil {
		s.Cache.Invalidate()
	}
	s.Logger.Info("catálogo inicial inserido", zap.Int("artworks", len(seedCatalog)))
	return len(seedCatalog), nil
}
