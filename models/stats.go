package models

// ArtworkStats resume a distribuição de uma obra.
type ArtworkStats struct {
	ArtworkID         int64   `json:"artwork_id"`
	TotalTokens       int64   `json:"total_tokens"`
	TokensSold        int64   `json:"tokens_sold"`
	TokensAvailable   int64   `json:"tokens_available"`
	OwnerCount        int64   `json:"owner_count"`
	MarketValue       int64   `json:"market_value"`
	CompletionPercent float64 `json:"completion_percent"`
}

// StatsFor calcula as estatísticas a partir da própria obra.
func StatsFor(a Artwork) ArtworkStats {
	return ArtworkStats{
		ArtworkID:         a.ID,
		TotalTokens:       a.TotalTokens,
		TokensSold:        a.TokensSold,
		TokensAvailable:   a.TokensAvailable(),
		OwnerCount:        a.OwnerCount,
		MarketValue:       a.MarketValue(),
		CompletionPercent: a.CompletionPercent(),
	}
}

// PlatformStats são os agregados da plataforma inteira. TotalValue satura
// em math.MaxInt64.
type PlatformStats struct {
	TotalArtworks     int64 `json:"total_artworks" db:"total_artworks"`
	TotalTokensIssued int64 `json:"total_tokens_issued" db:"total_tokens_issued"`
	TotalValue        int64 `json:"total_value" db:"total_value"`
	TotalUsers        int64 `json:"total_users" db:"total_users"`
	TotalOffers       int64 `json:"total_offers" db:"total_offers"`
	ActiveOffers      int64 `json:"active_offers" db:"active_offers"`
}

// Quote é a simulação de compra exibida antes da confirmação.
type Quote struct {
	ArtworkID        int64   `json:"artwork_id"`
	Tokens           int64   `json:"tokens"`
	Cost             int64   `json:"cost"`
	CostDisplay      string  `json:"cost_display"`
	OwnershipPercent float64 `json:"ownership_percent"`
	TokensAvailable  int64   `json:"tokens_available"`
}
