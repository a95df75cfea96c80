package models

import "time"

type PaymentKind string

const (
	PaymentPrimarySale PaymentKind = "primary_sale"
	PaymentTrade       PaymentKind = "trade"
)

// Payment registra a liquidação de uma compra ou de uma oferta aceita.
type Payment struct {
	ID        string      `json:"id"`
	Kind      PaymentKind `json:"kind"`
	ArtworkID int64       `json:"artwork_id"`
	OfferID   *int64      `json:"offer_id,omitempty"`
	Payer     string      `json:"payer"`
	Payee     string      `json:"payee"`
	Amount    int64       `json:"amount"`
	CreatedAt time.Time   `json:"created_at"`
}
