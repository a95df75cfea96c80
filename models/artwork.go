package models

import "time"

// Artwork representa uma obra de arte tokenizada em frações.
type Artwork struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Artist        string    `json:"artist"`
	Description   string    `json:"description"`
	ImageURL      string    `json:"image_url"`
	TotalTokens   int64     `json:"total_tokens"`    // Fixo após a criação
	TokensSold    int64     `json:"tokens_sold"`     // Nunca excede TotalTokens
	PricePerToken int64     `json:"price_per_token"` // Em e8s (1 unidade = 100_000_000 e8s)
	OwnerCount    int64     `json:"owner_count"`
	Creator       string    `json:"creator"` // Principal que submeteu a obra
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// TokensAvailable retorna quantos tokens ainda podem ser comprados.
func (a Artwork) TokensAvailable() int64 {
	return a.TotalTokens - a.TokensSold
}

// CompletionPercent é apenas para exibição; nunca usar na contabilidade de oferta.
func (a Artwork) CompletionPercent() float64 {
	if a.TotalTokens == 0 {
		return 0
	}
	return float64(a.TokensSold) / float64(a.TotalTokens) * 100
}

// MarketValue é o valor implícito da obra inteira ao preço atual.
func (a Artwork) MarketValue() int64 {
	return a.TotalTokens * a.PricePerToken
}

// NewArtwork contém os metadados enviados pelo usuário para tokenizar uma obra.
type NewArtwork struct {
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	Description   string `json:"description"`
	ImageURL      string `json:"image_url"`
	TotalTokens   int64  `json:"total_tokens"`
	PricePerToken int64  `json:"price_per_token"`
}
