package models

import "time"

// TokenHolding representa a posição de um proprietário em uma obra.
// A chave é o par (ArtworkID, Owner).
type TokenHolding struct {
	ArtworkID      int64     `json:"artwork_id"`
	Owner          string    `json:"owner"`
	TokensOwned    int64     `json:"tokens_owned"`
	TokensReserved int64     `json:"tokens_reserved"` // Tokens comprometidos em ofertas ativas
	PurchasePrice  int64     `json:"purchase_price"`  // Custo total pago, em e8s
	PurchaseDate   time.Time `json:"purchase_date"`
}

// AvailableTokens retorna os tokens que ainda podem ser colocados em oferta.
func (h TokenHolding) AvailableTokens() int64 {
	return h.TokensOwned - h.TokensReserved
}

// OwnershipPercent retorna a fração da obra detida, em porcentagem.
func (h TokenHolding) OwnershipPercent(art Artwork) float64 {
	if art.TotalTokens == 0 {
		return 0
	}
	return float64(h.TokensOwned) / float64(art.TotalTokens) * 100
}

// CurrentValue avalia a posição ao preço atual do token.
func (h TokenHolding) CurrentValue(art Artwork) int64 {
	return h.TokensOwned * art.PricePerToken
}

// ProfitLoss é o valor atual menos o custo pago.
func (h TokenHolding) ProfitLoss(art Artwork) int64 {
	return h.CurrentValue(art) - h.PurchasePrice
}

// HoldingView é a projeção de uma posição com os valores derivados já calculados.
type HoldingView struct {
	TokenHolding
	ArtworkTitle     string  `json:"artwork_title"`
	OwnershipPercent float64 `json:"ownership_percent"`
	CurrentValue     int64   `json:"current_value"`
	ProfitLoss       int64   `json:"profit_loss"`
}

// Portfolio agrega as posições de um usuário.
type Portfolio struct {
	Owner         string        `json:"owner"`
	Holdings      []HoldingView `json:"holdings"`
	TotalValue    int64         `json:"total_value"`
	TotalInvested int64         `json:"total_invested"`
	ProfitLoss    int64         `json:"profit_loss"`
}
