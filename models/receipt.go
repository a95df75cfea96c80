package models

// PurchaseReceipt é o resultado de uma compra primária confirmada.
type PurchaseReceipt struct {
	Artwork   Artwork      `json:"artwork"`
	Holding   TokenHolding `json:"holding"`
	Cost      int64        `json:"cost"`
	PaymentID string       `json:"payment_id"`
}

// TradeReceipt é o resultado de uma oferta aceita.
type TradeReceipt struct {
	Offer     TradeOffer   `json:"offer"`
	Holding   TokenHolding `json:"holding"` // posição do comprador após a troca
	Amount    int64        `json:"amount"`
	PaymentID string       `json:"payment_id"`
}
