package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifica a mutação do ledger que originou o evento.
type Type string

const (
	ProfileCreated  Type = "profile_created"
	ArtworkListed   Type = "artwork_listed"
	TokensPurchased Type = "tokens_purchased"
	OfferCreated    Type = "offer_created"
	OfferAccepted   Type = "offer_accepted"
	OfferCancelled  Type = "offer_cancelled"
	ArtworkVerified Type = "artwork_verified"
	UserVerified    Type = "user_verified"
)

// LedgerEvent descreve uma mutação já confirmada no banco.
type LedgerEvent struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	ArtworkID    int64     `json:"artwork_id,omitempty"`
	OfferID      int64     `json:"offer_id,omitempty"`
	Principal    string    `json:"principal"`
	Counterparty string    `json:"counterparty,omitempty"`
	Tokens       int64     `json:"tokens,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	At           time.Time `json:"at"`
}

// New preenche o id do evento.
func New(t Type, principal string, at time.Time) LedgerEvent {
	return LedgerEvent{ID: uuid.NewString(), Type: t, Principal: principal, At: at}
}

// Publisher entrega eventos para consumidores externos.
type Publisher interface {
	Publish(ctx context.Context, ev LedgerEvent) error
}

// NopPublisher descarta eventos; usado quando Kafka não está configurado.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, LedgerEvent) error { return nil }
