package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/ferreirogomes/artshare/models"
	"github.com/shopspring/decimal"
)

// ListArtworks retorna todas as obras em ordem de criação.
func (d *DB) ListArtworks(ctx context.Context) ([]models.Artwork, error) {
	var rows []artworkRow
	query := "SELECT " + artworkColumns + " FROM artworks ORDER BY id"
	if err := d.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("falha ao listar obras: %w", err)
	}
	artworks := make([]models.Artwork, 0, len(rows))
	for _, r := range rows {
		artworks = append(artworks, r.model())
	}
	return artworks, nil
}

// GetArtwork busca uma obra pelo id.
func (d *DB) GetArtwork(ctx context.Context, id int64) (models.Artwork, bool, error) {
	var row artworkRow
	query := d.Rebind("SELECT " + artworkColumns + " FROM artworks WHERE id = ?")
	if err := d.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Artwork{}, false, nil
		}
		return models.Artwork{}, false, fmt.Errorf("falha ao buscar obra %d: %w", id, err)
	}
	return row.model(), true, nil
}

// HoldingsByOwner retorna as posições de um proprietário.
func (d *DB) HoldingsByOwner(ctx context.Context, owner string) ([]models.TokenHolding, error) {
	var rows []holdingRow
	query := d.Rebind("SELECT " + holdingColumns + " FROM holdings WHERE owner = ? ORDER BY artwork_id")
	if err := d.SelectContext(ctx, &rows, query, owner); err != nil {
		return nil, fmt.Errorf("falha ao listar posições de %s: %w", owner, err)
	}
	return holdingModels(rows), nil
}

// HoldingsByArtwork retorna a distribuição de propriedade de uma obra.
func (d *DB) HoldingsByArtwork(ctx context.Context, artworkID int64) ([]models.TokenHolding, error) {
	var rows []holdingRow
	query := d.Rebind("SELECT " + holdingColumns + " FROM holdings WHERE artwork_id = ? ORDER BY tokens_owned DESC, owner")
	if err := d.SelectContext(ctx, &rows, query, artworkID); err != nil {
		return nil, fmt.Errorf("falha ao listar posições da obra %d: %w", artworkID, err)
	}
	return holdingModels(rows), nil
}

func holdingModels(rows []holdingRow) []models.TokenHolding {
	holdings := make([]models.TokenHolding, 0, len(rows))
	for _, r := range rows {
		holdings = append(holdings, r.model())
	}
	return holdings
}

// ActiveOffers lista as ofertas ativas, opcionalmente filtradas por obra.
func (d *DB) ActiveOffers(ctx context.Context, artworkID *int64) ([]models.TradeOffer, error) {
	var (
		rows []offerRow
		err  error
	)
	if artworkID != nil {
		query := d.Rebind("SELECT " + offerColumns + " FROM trade_offers WHERE active = TRUE AND artwork_id = ? ORDER BY id")
		err = d.SelectContext(ctx, &rows, query, *artworkID)
	} else {
		query := "SELECT " + offerColumns + " FROM trade_offers WHERE active = TRUE ORDER BY id"
		err = d.SelectContext(ctx, &rows, query)
	}
	if err != nil {
		return nil, fmt.Errorf("falha ao listar ofertas ativas: %w", err)
	}
	offers := make([]models.TradeOffer, 0, len(rows))
	for _, r := range rows {
		offers = append(offers, r.model())
	}
	return offers, nil
}

// GetOffer busca uma oferta pelo id, ativa ou não.
func (d *DB) GetOffer(ctx context.Context, id int64) (models.TradeOffer, bool, error) {
	var row offerRow
	query := d.Rebind("SELECT " + offerColumns + " FROM trade_offers WHERE id = ?")
	if err := d.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TradeOffer{}, false, nil
		}
		return models.TradeOffer{}, false, fmt.Errorf("falha ao buscar oferta %d: %w", id, err)
	}
	return row.model(), true, nil
}

// GetUser busca um perfil pelo principal.
func (d *DB) GetUser(ctx context.Context, principal string) (models.UserAccount, bool, error) {
	var row userRow
	query := d.Rebind("SELECT " + userColumns + " FROM users WHERE principal = ?")
	if err := d.GetContext(ctx, &row, query, principal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserAccount{}, false, nil
		}
		return models.UserAccount{}, false, fmt.Errorf("falha ao buscar usuário %s: %w", principal, err)
	}
	return row.model(), true, nil
}

// PlatformStats calcula os agregados sobre um único snapshot. O valor de
// mercado é somado em decimal e satura em math.MaxInt64, já que cada obra
// cabe em int64 mas a soma de várias pode não caber.
func (d *DB) PlatformStats(ctx context.Context) (models.PlatformStats, error) {
	var opts *sql.TxOptions
	if d.dialect == Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := d.BeginTxx(ctx, opts)
	if err != nil {
		return models.PlatformStats{}, fmt.Errorf("falha ao iniciar leitura de estatísticas: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var stats models.PlatformStats
	query := `SELECT
		(SELECT COUNT(*) FROM artworks) AS total_artworks,
		(SELECT COUNT(*) FROM users) AS total_users,
		(SELECT COUNT(*) FROM trade_offers) AS total_offers,
		(SELECT COUNT(*) FROM trade_offers WHERE active = TRUE) AS active_offers`
	if err := tx.GetContext(ctx, &stats, query); err != nil {
		return models.PlatformStats{}, fmt.Errorf("falha ao calcular estatísticas: %w", err)
	}

	var supply []supplyRow
	if err := tx.SelectContext(ctx, &supply, "SELECT total_tokens, price_per_token FROM artworks"); err != nil {
		return models.PlatformStats{}, fmt.Errorf("falha ao somar oferta da plataforma: %w", err)
	}
	issued, value := decimal.Zero, decimal.Zero
	for _, r := range supply {
		tokens := decimal.NewFromInt(r.TotalTokens)
		issued = issued.Add(tokens)
		value = value.Add(tokens.Mul(decimal.NewFromInt(r.PricePerToken)))
	}
	stats.TotalTokensIssued = saturate(issued)
	stats.TotalValue = saturate(value)
	return stats, nil
}

// PaymentsByArtwork retorna o histórico de liquidações de uma obra na
// ordem em que foram gravadas.
func (d *DB) PaymentsByArtwork(ctx context.Context, artworkID int64) ([]models.Payment, error) {
	var rows []paymentRow
	query := d.Rebind("SELECT " + paymentColumns + " FROM payments WHERE artwork_id = ? ORDER BY seq")
	if err := d.SelectContext(ctx, &rows, query, artworkID); err != nil {
		return nil, fmt.Errorf("falha ao listar pagamentos da obra %d: %w", artworkID, err)
	}
	payments := make([]models.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.model())
	}
	return payments, nil
}

// LookupIdempotency busca a resposta gravada para (key, principal).
func (d *DB) LookupIdempotency(ctx context.Context, key, principal string) (IdempotencyRecord, bool, error) {
	var rec IdempotencyRecord
	query := d.Rebind("SELECT idem_key, principal, operation, fingerprint, response, created_at FROM idempotency_keys WHERE idem_key = ? AND principal = ?")
	if err := d.GetContext(ctx, &rec, query, key, principal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return IdempotencyRecord{}, false, nil
		}
		return IdempotencyRecord{}, false, fmt.Errorf("falha ao buscar chave de idempotência: %w", err)
	}
	return rec, true, nil
}

var maxInt64 = decimal.NewFromInt(math.MaxInt64)

func saturate(d decimal.Decimal) int64 {
	if d.GreaterThan(maxInt64) {
		return math.MaxInt64
	}
	return d.IntPart()
}
