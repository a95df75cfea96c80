package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ferreirogomes/artshare/models"
	"github.com/jmoiron/sqlx"
)

// Tx agrupa as escritas de uma mutação do ledger. As leituras "ForUpdate"
// bloqueiam a linha até o commit no Postgres; toda mutação trava a obra
// primeiro para manter uma ordem única de bloqueio.
type Tx struct {
	tx      *sqlx.Tx
	dialect Dialect
}

func (t *Tx) rebind(query string) string { return t.tx.Rebind(query) }

// ArtworkForUpdate lê e trava uma obra.
func (t *Tx) ArtworkForUpdate(ctx context.Context, id int64) (models.Artwork, bool, error) {
	var row artworkRow
	query := t.rebind("SELECT " + artworkColumns + " FROM artworks WHERE id = ?" + t.dialect.forUpdate())
	if err := t.tx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Artwork{}, false, nil
		}
		return models.Artwork{}, false, fmt.Errorf("falha ao travar obra %d: %w", id, err)
	}
	return row.model(), true, nil
}

// OfferForUpdate lê e trava uma oferta.
func (t *Tx) OfferForUpdate(ctx context.Context, id int64) (models.TradeOffer, bool, error) {
	var row offerRow
	query := t.rebind("SELECT " + offerColumns + " FROM trade_offers WHERE id = ?" + t.dialect.forUpdate())
	if err := t.tx.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TradeOffer{}, false, nil
		}
		return models.TradeOffer{}, false, fmt.Errorf("falha ao travar oferta %d: %w", id, err)
	}
	return row.model(), true, nil
}

// HoldingForUpdate lê e trava a posição (artworkID, owner).
func (t *Tx) HoldingForUpdate(ctx context.Context, artworkID int64, owner string) (models.TokenHolding, bool, error) {
	var row holdingRow
	query := t.rebind("SELECT " + holdingColumns + " FROM holdings WHERE artwork_id = ? AND owner = ?" + t.dialect.forUpdate())
	if err := t.tx.GetContext(ctx, &row, query, artworkID, owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TokenHolding{}, false, nil
		}
		return models.TokenHolding{}, false, fmt.Errorf("falha ao travar posição de %s na obra %d: %w", owner, artworkID, err)
	}
	return row.model(), true, nil
}

// UserForUpdate lê e trava um perfil.
func (t *Tx) UserForUpdate(ctx context.Context, principal string) (models.UserAccount, bool, error) {
	var row userRow
	query := t.rebind("SELECT " + userColumns + " FROM users WHERE principal = ?" + t.dialect.forUpdate())
	if err := t.tx.GetContext(ctx, &row, query, principal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserAccount{}, false, nil
		}
		return models.UserAccount{}, false, fmt.Errorf("falha ao travar usuário %s: %w", principal, err)
	}
	return row.model(), true, nil
}

// InsertArtwork grava uma nova obra e retorna o id atribuído.
func (t *Tx) InsertArtwork(ctx context.Context, a models.Artwork) (int64, error) {
	var id int64
	query := t.rebind(`INSERT INTO artworks
		(title, artist, description, image_url, total_tokens, tokens_sold, price_per_token, owner_count, creator, verified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	err := t.tx.GetContext(ctx, &id, query,
		a.Title, a.Artist, a.Description, a.ImageURL, a.TotalTokens, a.TokensSold,
		a.PricePerToken, a.OwnerCount, a.Creator, a.Verified, nanos(a.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("falha ao inserir obra: %w", err)
	}
	return id, nil
}

// UpdateArtwork grava os campos mutáveis de uma obra.
func (t *Tx) UpdateArtwork(ctx context.Context, a models.Artwork) error {
	query := t.rebind("UPDATE artworks SET tokens_sold = ?, owner_count = ?, verified = ? WHERE id = ?")
	if _, err := t.tx.ExecContext(ctx, query, a.TokensSold, a.OwnerCount, a.Verified, a.ID); err != nil {
		return fmt.Errorf("falha ao atualizar obra %d: %w", a.ID, err)
	}
	return nil
}

// UpsertHolding cria ou substitui a posição (ArtworkID, Owner).
func (t *Tx) UpsertHolding(ctx context.Context, h models.TokenHolding) error {
	query := t.rebind(`INSERT INTO holdings
		(artwork_id, owner, tokens_owned, tokens_reserved, purchase_price, purchase_date)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (artwork_id, owner) DO UPDATE SET
			tokens_owned = excluded.tokens_owned,
			tokens_reserved = excluded.tokens_reserved,
			purchase_price = excluded.purchase_price,
			purchase_date = excluded.purchase_date`)
	_, err := t.tx.ExecContext(ctx, query,
		h.ArtworkID, h.Owner, h.TokensOwned, h.TokensReserved, h.PurchasePrice, nanos(h.PurchaseDate))
	if err != nil {
		return fmt.Errorf("falha ao gravar posição de %s na obra %d: %w", h.Owner, h.ArtworkID, err)
	}
	return nil
}

// DeleteHolding remove uma posição zerada.
func (t *Tx) DeleteHolding(ctx context.Context, artworkID int64, owner string) error {
	query := t.rebind("DELETE FROM holdings WHERE artwork_id = ? AND owner = ?")
	if _, err := t.tx.ExecContext(ctx, query, artworkID, owner); err != nil {
		return fmt.Errorf("falha ao remover posição de %s na obra %d: %w", owner, artworkID, err)
	}
	return nil
}

// InsertOffer grava uma nova oferta e retorna o id atribuído.
func (t *Tx) InsertOffer(ctx context.Context, o models.TradeOffer) (int64, error) {
	var id int64
	query := t.rebind(`INSERT INTO trade_offers
		(artwork_id, seller, tokens_for_sale, price_per_token, created_at, active)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	err := t.tx.GetContext(ctx, &id, query,
		o.ArtworkID, o.Seller, o.TokensForSale, o.PricePerToken, nanos(o.CreatedAt), o.Active)
	if err != nil {
		return 0, fmt.Errorf("falha ao inserir oferta: %w", err)
	}
	return id, nil
}

// UpdateOfferActive altera o estado de uma oferta.
func (t *Tx) UpdateOfferActive(ctx context.Context, id int64, active bool) error {
	query := t.rebind("UPDATE trade_offers SET active = ? WHERE id = ?")
	if _, err := t.tx.ExecContext(ctx, query, active, id); err != nil {
		return fmt.Errorf("falha ao atualizar oferta %d: %w", id, err)
	}
	return nil
}

// InsertUser grava um perfil novo. Um principal repetido resulta em
// violação de chave única (ver IsUniqueViolation).
func (t *Tx) InsertUser(ctx context.Context, u models.UserAccount) error {
	query := t.rebind(`INSERT INTO users
		(principal, username, email, created_at, total_invested, verified)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := t.tx.ExecContext(ctx, query,
		u.Principal, u.Username, u.Email, nanos(u.CreatedAt), u.TotalInvested, u.Verified)
	if err != nil {
		return fmt.Errorf("falha ao inserir usuário %s: %w", u.Principal, err)
	}
	return nil
}

// SetUserVerified marca o perfil como verificado.
func (t *Tx) SetUserVerified(ctx context.Context, principal string, verified bool) error {
	query := t.rebind("UPDATE users SET verified = ? WHERE principal = ?")
	if _, err := t.tx.ExecContext(ctx, query, verified, principal); err != nil {
		return fmt.Errorf("falha ao verificar usuário %s: %w", principal, err)
	}
	return nil
}

// SetInvestment grava o total investido de um perfil.
func (t *Tx) SetInvestment(ctx context.Context, principal string, total int64) error {
	query := t.rebind("UPDATE users SET total_invested = ? WHERE principal = ?")
	if _, err := t.tx.ExecContext(ctx, query, total, principal); err != nil {
		return fmt.Errorf("falha ao atualizar investimento de %s: %w", principal, err)
	}
	return nil
}

// InsertPayment registra uma liquidação.
func (t *Tx) InsertPayment(ctx context.Context, p models.Payment) error {
	var offerID sql.NullInt64
	if p.OfferID != nil {
		offerID = sql.NullInt64{Int64: *p.OfferID, Valid: true}
	}
	query := t.rebind(`INSERT INTO payments
		(id, kind, artwork_id, offer_id, payer, payee, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := t.tx.ExecContext(ctx, query,
		p.ID, string(p.Kind), p.ArtworkID, offerID, p.Payer, p.Payee, p.Amount, nanos(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("falha ao registrar pagamento: %w", err)
	}
	return nil
}

// ClaimIdempotency reserva (key, principal) para esta transação, gravando a
// impressão digital da requisição. Retorna false quando outra requisição já
// reservou a mesma chave.
func (t *Tx) ClaimIdempotency(ctx context.Context, key, principal, operation, fingerprint string, at time.Time) (bool, error) {
	query := t.rebind(`INSERT INTO idempotency_keys (idem_key, principal, operation, fingerprint, response, created_at)
		VALUES (?, ?, ?, ?, '', ?)
		ON CONFLICT (idem_key, principal) DO NOTHING`)
	res, err := t.tx.ExecContext(ctx, query, key, principal, operation, fingerprint, nanos(at))
	if err != nil {
		return false, fmt.Errorf("falha ao reservar chave de idempotência: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("falha ao reservar chave de idempotência: %w", err)
	}
	return n == 1, nil
}

// CompleteIdempotency grava a resposta a ser repetida nas próximas tentativas.
func (t *Tx) CompleteIdempotency(ctx context.Context, key, principal, response string) error {
	query := t.rebind("UPDATE idempotency_keys SET response = ? WHERE idem_key = ? AND principal = ?")
	if _, err := t.tx.ExecContext(ctx, query, response, key, principal); err != nil {
		return fmt.Errorf("falha ao gravar resposta idempotente: %w", err)
	}
	return nil
}

// OfferArtwork lê, sem travar, a obra de uma oferta. O vínculo nunca muda,
// então serve para travar a obra antes da própria oferta.
func (t *Tx) OfferArtwork(ctx context.Context, offerID int64) (int64, bool, error) {
	var artworkID int64
	query := t.rebind("SELECT artwork_id FROM trade_offers WHERE id = ?")
	if err := t.tx.GetContext(ctx, &artworkID, query, offerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("falha ao buscar obra da oferta %d: %w", offerID, err)
	}
	return artworkID, true, nil
}
