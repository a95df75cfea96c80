package models

import "time"

// TradeOffer é uma oferta de venda de tokens entre usuários.
type TradeOffer struct {
	ID            int64     `json:"id"`
	ArtworkID     int64     `json:"artwork_id"`
	Seller        string    `json:"seller"`
	TokensForSale int64     `json:"tokens_for_sale"`
	PricePerToken int64     `json:"price_per_token"`
	CreatedAt     time.Time `json:"created_at"`
	Active        bool      `json:"active"`
}

// Total é o valor que o comprador paga ao aceitar a oferta.
func (o TradeOffer) Total() int64 {
	return o.TokensForSale * o.PricePerToken
}
