package storage

import (
	"database/sql"
	"time"

	"github.com/ferreirogomes/artshare/models"
)

// Os timestamps ficam gravados como nanossegundos unix (BIGINT) para que
// os dois dialetos usem a mesma representação.

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

type artworkRow struct {
	ID            int64  `db:"id"`
	Title         string `db:"title"`
	Artist        string `db:"artist"`
	Description   string `db:"description"`
	ImageURL      string `db:"image_url"`
	TotalTokens   int64  `db:"total_tokens"`
	TokensSold    int64  `db:"tokens_sold"`
	PricePerToken int64  `db:"price_per_token"`
	OwnerCount    int64  `db:"owner_count"`
	Creator       string `db:"creator"`
	Verified      bool   `db:"verified"`
	CreatedAt     int64  `db:"created_at"`
}

func (r artworkRow) model() models.Artwork {
	return models.Artwork{
		ID:            r.ID,
		Title:         r.Title,
		Artist:        r.Artist,
		Description:   r.Description,
		ImageURL:      r.ImageURL,
		TotalTokens:   r.TotalTokens,
		TokensSold:    r.TokensSold,
		PricePerToken: r.PricePerToken,
		OwnerCount:    r.OwnerCount,
		Creator:       r.Creator,
		Verified:      r.Verified,
		CreatedAt:     fromNanos(r.CreatedAt),
	}
}

type holdingRow struct {
	ArtworkID      int64  `db:"artwork_id"`
	Owner          string `db:"owner"`
	TokensOwned    int64  `db:"tokens_owned"`
	TokensReserved int64  `db:"tokens_reserved"`
	PurchasePrice  int64  `db:"purchase_price"`
	PurchaseDate   int64  `db:"purchase_date"`
}

func (r holdingRow) model() models.TokenHolding {
	return models.TokenHolding{
		ArtworkID:      r.ArtworkID,
		Owner:          r.Owner,
		TokensOwned:    r.TokensOwned,
		TokensReserved: r.TokensReserved,
		PurchasePrice:  r.PurchasePrice,
		PurchaseDate:   fromNanos(r.PurchaseDate),
	}
}

type offerRow struct {
	ID            int64  `db:"id"`
	ArtworkID     int64  `db:"artwork_id"`
	Seller        string `db:"seller"`
	TokensForSale int64  `db:"tokens_for_sale"`
	PricePerToken int64  `db:"price_per_token"`
	CreatedAt     int64  `db:"created_at"`
	Active        bool   `db:"active"`
}

func (r offerRow) model() models.TradeOffer {
	return models.TradeOffer{
		ID:            r.ID,
		ArtworkID:     r.ArtworkID,
		Seller:        r.Seller,
		TokensForSale: r.TokensForSale,
		PricePerToken: r.PricePerToken,
		CreatedAt:     fromNanos(r.CreatedAt),
		Active:        r.Active,
	}
}

type userRow struct {
	Principal     string `db:"principal"`
	Username      string `db:"username"`
	Email         string `db:"email"`
	CreatedAt     int64  `db:"created_at"`
	TotalInvested int64  `db:"total_invested"`
	Verified      bool   `db:"verified"`
}

func (r userRow) model() models.UserAccount {
	return models.UserAccount{
		Principal:     r.Principal,
		Username:      r.Username,
		Email:         r.Email,
		CreatedAt:     fromNanos(r.CreatedAt),
		TotalInvested: r.TotalInvested,
		Verified:      r.Verified,
	}
}

type paymentRow struct {
	ID        string        `db:"id"`
	Kind      string        `db:"kind"`
	ArtworkID int64         `db:"artwork_id"`
	OfferID   sql.NullInt64 `db:"offer_id"`
	Payer     string        `db:"payer"`
	Payee     string        `db:"payee"`
	Amount    int64         `db:"amount"`
	CreatedAt int64         `db:"created_at"`
}

func (r paymentRow) model() models.Payment {
	p := models.Payment{
		ID:        r.ID,
		Kind:      models.PaymentKind(r.Kind),
		ArtworkID: r.ArtworkID,
		Payer:     r.Payer,
		Payee:     r.Payee,
		Amount:    r.Amount,
		CreatedAt: fromNanos(r.CreatedAt),
	}
	if r.OfferID.Valid {
		id := r.OfferID.Int64
		p.OfferID = &id
	}
	return p
}

type supplyRow struct {
	TotalTokens   int64 `db:"total_tokens"`
	PricePerToken int64 `db:"price_per_token"`
}

// IdempotencyRecord é a resposta gravada de uma mutação já concluída.
type IdempotencyRecord struct {
	Key         string `db:"idem_key"`
	Principal   string `db:"principal"`
	Operation   string `db:"operation"`
	Fingerprint string `db:"fingerprint"`
	Response    string `db:"response"`
	CreatedAt   int64  `db:"created_at"`
}

const (
	artworkColumns = "id, title, artist, description, image_url, total_tokens, tokens_sold, price_per_token, owner_count, creator, verified, created_at"
	holdingColumns = "artwork_id, owner, tokens_owned, tokens_reserved, purchase_price, purchase_date"
	offerColumns   = "id, artwork_id, seller, tokens_for_sale, price_per_token, created_at, active"
	userColumns    = "principal, username, email, created_at, total_invested, verified"
	paymentColumns = "id, kind, artwork_id, offer_id, payer, payee, amount, created_at"
)
