package services

import (
	"context"
	"strings"
	"time"

	"github.com/ferreirogomes/artshare/cache"
	"github.com/ferreirogomes/artshare/events"
	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/models"
	"github.com/ferreirogomes/artshare/session"
	"github.com/ferreirogomes/artshare/storage"
	"go.uber.org/zap"
)

// MarketplaceService orquestra as operações do ledger: verifica a sessão,
// aplica as regras dentro de uma transação, invalida as projeções em cache
// e publica o evento depois do commit.
type MarketplaceService struct {
	DB     *storage.DB
	Cache  *cache.Projections
	Events events.Publisher
	Logger *zap.Logger
	Now    func() time.Time
}

// NewMarketplaceService cria uma nova instância do serviço.
func NewMarketplaceService(db *storage.DB, projections *cache.Projections, publisher events.Publisher, logger *zap.Logger) *MarketplaceService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &MarketplaceService{
		DB:     db,
		Cache:  projections,
		Events: publisher,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// committed roda após uma mutação confirmada. Falha na publicação não
// desfaz nada: o estado já está no banco.
func (s *MarketplaceService) committed(ctx context.Context, ev events.LedgerEvent) {
	if s.Cache != nil {
		s.Cache.Invalidate()
	}
	if err := s.Events.Publish(ctx, ev); err != nil {
		s.Logger.Error("falha ao publicar evento do ledger",
			zap.String("type", string(ev.Type)), zap.String("id", ev.ID), zap.Error(err))
	}
}

func requireSession(sess session.Session) error {
	if !sess.Authenticated() {
		return ledger.ErrUnauthenticated
	}
	return nil
}

// CreateUserProfile cria o perfil do principal da sessão.
func (s *MarketplaceService) CreateUserProfile(ctx context.Context, sess session.Session, idemKey, username, email string) (models.UserAccount, error) {
	if err := requireSession(sess); err != nil {
		return models.UserAccount{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return models.UserAccount{}, ledger.Invalid("username é obrigatório")
	}

	user, replayed, err := runMutation(ctx, s, sess, idemKey, newRequest("create_profile", username, strings.TrimSpace(email)), func(tx *storage.Tx) (models.UserAccount, error) {
		_, exists, err := tx.UserForUpdate(ctx, sess.Principal())
		if err != nil {
			return models.UserAccount{}, err
		}
		if exists {
			return models.UserAccount{}, ledger.ErrProfileExists
		}
		u := models.UserAccount{
			Principal: sess.Principal(),
			Username:  username,
			Email:     strings.TrimSpace(email),
			CreatedAt: s.Now(),
		}
		if err := tx.InsertUser(ctx, u); err != nil {
			if storage.IsUniqueViolation(err) {
				return models.UserAccount{}, ledger.ErrProfileExists
			}
			return models.UserAccount{}, err
		}
		return u, nil
	})
	if err != nil || replayed {
		return user, err
	}

	s.Logger.Info("perfil criado", zap.String("principal", user.Principal))
	s.committed(ctx, events.New(events.ProfileCreated, user.Principal, user.CreatedAt))
	return user, nil
}

// CreateArtwork tokeniza uma nova obra submetida pelo principal da sessão.
func (s *MarketplaceService) CreateArtwork(ctx context.Context, sess session.Session, idemKey string, req models.NewArtwork) (models.Artwork, error) {
	if err := requireSession(sess); err != nil {
		return models.Artwork{}, err
	}
	if err := ledger.ValidateNewArtwork(req); err != nil {
		return models.Artwork{}, err
	}

	art, replayed, err := runMutation(ctx, s, sess, idemKey, newRequest("create_artwork", req), func(tx *storage.Tx) (models.Artwork, error) {
		art, err := ledger.NewListing(req, sess.Principal(), s.Now())
		if err != nil {
			return models.Artwork{}, err
		}
		id, err := tx.InsertArtwork(ctx, art)
		if err != nil {
			return models.Artwork{}, err
		}
		art.ID = id
		return art, nil
	})
	if err != nil || replayed {
		return art, err
	}

	s.Logger.Info("obra listada",
		zap.Int64("artwork_id", art.ID), zap.String("creator", art.Creator), zap.Int64("total_tokens", art.TotalTokens))
	ev := events.New(events.ArtworkListed, art.Creator, art.CreatedAt)
	ev.ArtworkID = art.ID
	ev.Tokens = art.TotalTokens
	s.committed(ctx, ev)
	return art, nil
}

// PurchaseTokens vende tokens da oferta primária ao principal da sessão.
func (s *MarketplaceService) PurchaseTokens(ctx context.Context, sess session.Session, idemKey string, artworkID, tokenAmount int64) (models.PurchaseReceipt, error) {
	if err := requireSession(sess); err != nil {
		return models.PurchaseReceipt{}, err
	}
	if tokenAmount <= 0 {
		return models.PurchaseReceipt{}, ledger.Invalid("quantidade de tokens deve ser positiva")
	}
	buyer := sess.Principal()

	receipt, replayed, err := runMutation(ctx, s, sess, idemKey, newRequest("purchase", artworkID, tokenAmount), func(tx *storage.Tx) (models.PurchaseReceipt, error) {
		art, found, err := tx.ArtworkForUpdate(ctx, artworkID)
		if err != nil {
			return models.PurchaseReceipt{}, err
		}
		if !found {
			return models.PurchaseReceipt{}, ledger.Errorf(ledger.KindArtworkNotFound, "obra %d não encontrada", artworkID)
		}
		current, err := holdingRef(ctx, tx, artworkID, buyer)
		if err != nil {
			return models.PurchaseReceipt{}, err
		}

		res, err := ledger.ApplyPurchase(art, current, buyer, tokenAmount, s.Now())
		if err != nil {
			return models.PurchaseReceipt{}, err
		}
		if err := tx.UpdateArtwork(ctx, res.Artwork); err != nil {
			return models.PurchaseReceipt{}, err
		}
		if err := tx.UpsertHolding(ctx, res.Holding); err != nil {
			return models.PurchaseReceipt{}, err
		}
		if err := tx.InsertPayment(ctx, res.Payment); err != nil {
			return models.PurchaseReceipt{}, err
		}
		if err := addInvestment(ctx, tx, buyer, res.Cost); err != nil {
			return models.PurchaseReceipt{}, err
		}
		return models.PurchaseReceipt{
			Artwork:   res.Artwork,
			Holding:   res.Holding,
			Cost:      res.Cost,
			PaymentID: res.Payment.ID,
		}, nil
	})
	if err != nil || replayed {
		return receipt, err
	}

	s.Logger.Info("tokens comprados",
		zap.Int64("artwork_id", artworkID), zap.String("principal", buyer),
		zap.Int64("tokens", tokenAmount), zap.Int64("amount", receipt.Cost))
	ev := events.New(events.TokensPurchased, buyer, s.Now())
	ev.ArtworkID = artworkID
	ev.Counterparty = receipt.Artwork.Creator
	ev.Tokens = tokenAmount
	ev.Amount = receipt.Cost
	s.committed(ctx, ev)
	return receipt, nil
}

// CreateTradeOffer coloca à venda tokens do principal da sessão,
// reservando-os na posição até a aceitação ou o cancelamento.
func (s *MarketplaceService) CreateTradeOffer(ctx context.Context, sess session.Session, idemKey string, artworkID, tokensForSale, pricePerToken int64) (models.TradeOffer, error) {
	if err := requireSession(sess); err != nil {
		return models.TradeOffer{}, err
	}
	seller := sess.Principal()

	offer, replayed, err := runMutation(ctx, s, sess, idemKey, newRequest("create_offer", artworkID, tokensForSale, pricePerToken), func(tx *storage.Tx) (models.TradeOffer, error) {
		_, found, err := tx.ArtworkForUpdate(ctx, artworkID)
		if err != nil {
			return models.TradeOffer{}, err
		}
		if !found {
			return models.TradeOffer{}, ledger.Errorf(ledger.KindArtworkNotFound, "obra %d não encontrada", artworkID)
		}
		current, err := holdingRef(ctx, tx, artworkID, seller)
		if err != nil {
			return models.TradeOffer{}, err
		}

		holding, offer, err := ledger.ReserveOffer(current, seller, artworkID, tokensForSale, pricePerToken, s.Now())
		if err != nil {
			return models.TradeOffer{}, err
		}
		if err := tx.UpsertHolding(ctx, holding); err != nil {
			return models.TradeOffer{}, err
		}
		id, err := tx.InsertOffer(ctx, offer)
		if err != nil {
			return models.TradeOffer{}, err
		}
		offer.ID = id
		return offer, nil
	})
	if err != nil || replayed {
		return offer, err
	}

	s.Logger.Info("oferta criada",
		zap.Int64("offer_id", offer.ID), zap.Int64("artwork_id", artworkID), zap.String("principal", seller),
		zap.Int64("tokens", tokensForSale), zap.Int64("price_per_token", pricePerToken))
	ev := events.New(events.OfferCreated, seller, offer.CreatedAt)
	ev.ArtworkID = artworkID
	ev.OfferID = offer.ID
	ev.Tokens = tokensForSale
	ev.Amount = offer.Total()
	s.committed(ctx, ev)
	return offer, nil
}

// AcceptTradeOffer liquida a oferta para o principal da sessão: tokens,
// pagamento e desativação da oferta são gravados juntos ou não são gravados.
func (s *MarketplaceService) AcceptTradeOffer(ctx context.Context, sess session.Session, idemKey string, offerID int64) (models.TradeReceipt, error) {
	if err := requireSession(sess); err != nil {
		return models.TradeReceipt{}, err
	}
	buyer := sess.Principal()

	receipt, replayed, err := runMutation(ctx, s, sess, idemKey, newRequest("accept_offer", offerID), func(tx *storage.Tx) (models.TradeReceipt, error) {
		offer, art, err := lockOffer(ctx, tx, offerID)
		if err != nil {
			return models.TradeReceipt{}, err
		}
		seller, err := holdingRef(ctx, tx, offer.ArtworkID, offer.Seller)
		if err != nil {
			return models.TradeReceipt{}, err
		}
		var current *models.TokenHolding
		if buyer != offer.Seller {
			if current, err = holdingRef(ctx, tx, offer.ArtworkID, buyer); err != nil {
				return models.TradeReceipt{}, err
			}
		}

		st, err := ledger.SettleOffer(art, offer, seller, current, buyer, s.Now())
		if err != nil {
			return models.TradeReceipt{}, err
		}
		if err := tx.UpdateArtwork(ctx, st.Artwork); err != nil {
			return models.TradeReceipt{}, err
		}
		if err := tx.UpdateOfferActive(ctx, st.Offer.ID, false); err != nil {
			return models.TradeReceipt{}, err
		}
		if st.SellerExited {
			err = tx.DeleteHolding(ctx, st.Seller.ArtworkID, st.Seller.Owner)
		} else {
			err = tx.UpsertHolding(ctx, st.Seller)
		}
		if err != nil {
			return models.TradeReceipt{}, err
		}
		if err := tx.UpsertHolding(ctx, st.Buyer); err != nil {
			return models.TradeReceipt{}, err
		}
		if err := tx.InsertPayment(ctx, st.Payment); err != nil {
			return models.TradeReceipt{}, err
		}
		if err := addInvestment(ctx, tx, buyer, st.Payment.Amount); err != nil {
			return models.TradeReceipt{}, err
		}
		return models.TradeReceipt{
			Offer:     st.Offer,
			Holding:   st.Buyer,
			Amount:    st.Payment.Amount,
			PaymentID: st.Payment.ID,
		}, nil
	})
	if err != nil || replayed {
		return receipt, err
	}

	s.Logger.Info("oferta aceita",
		zap.Int64("offer_id", offerID), zap.Int64("artwork_id", receipt.Offer.ArtworkID),
		zap.String("principal", buyer), zap.String("seller", receipt.Offer.Seller),
		zap.Int64("tokens", receipt.Offer.TokensForSale), zap.Int64("amount", receipt.Amount))
	ev := events.New(events.OfferAccepted, buyer, s.Now())
	ev.ArtworkID = receipt.Offer.ArtworkID
	ev.OfferID = offerID
	ev.Counterparty = receipt.Offer.Seller
	ev.Tokens = receipt.Offer.TokensForSale
	ev.Amount = receipt.Amount
	s.committed(ctx, ev)
	return receipt, nil
}

// CancelTradeOffer desativa uma oferta do principal da sessão e libera a
// reserva. Nenhum saldo muda.
func (s *MarketplaceService) CancelTradeOffer(ctx context.Context, sess session.Session, idemKey string, offerID int64) (models.TradeOffer, error) {
	if err := requireSession(sess); err != nil {
		return models.TradeOffer{}, err
	}
	caller := sess.Principal()

	offer, replayed, err := runMutation(ctx, s, sess, idemKey, newRequest("cancel_offer", offerID), func(tx *storage.Tx) (models.TradeOffer, error) {
		offer, _, err := lockOffer(ctx, tx, offerID)
		if err != nil {
			return models.TradeOffer{}, err
		}
		seller, err := holdingRef(ctx, tx, offer.ArtworkID, offer.Seller)
		if err != nil {
			return models.TradeOffer{}, err
		}

		cancelled, released, err := ledger.CancelOffer(offer, seller, caller)
		if err != nil {
			return models.TradeOffer{}, err
		}
		if err := tx.UpdateOfferActive(ctx, cancelled.ID, false); err != nil {
			return models.TradeOffer{}, err
		}
		if err := tx.UpsertHolding(ctx, released); err != nil {
			return models.TradeOffer{}, err
		}
		return cancelled, nil
	})
	if err != nil || replayed {
		return offer, err
	}

	s.Logger.Info("oferta cancelada", zap.Int64("offer_id", offerID), zap.String("principal", caller))
	ev := events.New(events.OfferCancelled, caller, s.Now())
	ev.ArtworkID = offer.ArtworkID
	ev.OfferID = offer.ID
	ev.Tokens = offer.TokensForSale
	s.committed(ctx, ev)
	return offer, nil
}

// VerifyArtPiece marca a obra como verificada. Exige a capacidade de curadoria.
func (s *MarketplaceService) VerifyArtPiece(ctx context.Context, sess session.Session, artworkID int64) (models.Artwork, error) {
	if err := requireCurator(sess); err != nil {
		return models.Artwork{}, err
	}

	art, _, err := runMutation(ctx, s, sess, "", newRequest("verify_artwork", artworkID), func(tx *storage.Tx) (models.Artwork, error) {
		art, found, err := tx.ArtworkForUpdate(ctx, artworkID)
		if err != nil {
			return models.Artwork{}, err
		}
		if !found {
			return models.Artwork{}, ledger.Errorf(ledger.KindArtworkNotFound, "obra %d não encontrada", artworkID)
		}
		art.Verified = true
		return art, tx.UpdateArtwork(ctx, art)
	})
	if err != nil {
		return models.Artwork{}, err
	}

	s.Logger.Info("obra verificada", zap.Int64("artwork_id", artworkID), zap.String("curator", sess.Principal()))
	ev := events.New(events.ArtworkVerified, sess.Principal(), s.Now())
	ev.ArtworkID = artworkID
	s.committed(ctx, ev)
	return art, nil
}

// VerifyUser marca o perfil como verificado. Exige a capacidade de curadoria.
func (s *MarketplaceService) VerifyUser(ctx context.Context, sess session.Session, principal string) (models.UserAccount, error) {
	if err := requireCurator(sess); err != nil {
		return models.UserAccount{}, err
	}

	user, _, err := runMutation(ctx, s, sess, "", newRequest("verify_user", principal), func(tx *storage.Tx) (models.UserAccount, error) {
		user, found, err := tx.UserForUpdate(ctx, principal)
		if err != nil {
			return models.UserAccount{}, err
		}
		if !found {
			return models.UserAccount{}, ledger.Errorf(ledger.KindUserNotFound, "usuário %s não encontrado", principal)
		}
		user.Verified = true
		return user, tx.SetUserVerified(ctx, principal, true)
	})
	if err != nil {
		return models.UserAccount{}, err
	}

	s.Logger.Info("usuário verificado", zap.String("principal", principal), zap.String("curator", sess.Principal()))
	ev := events.New(events.UserVerified, sess.Principal(), s.Now())
	ev.Counterparty = principal
	s.committed(ctx, ev)
	return user, nil
}

func requireCurator(sess session.Session) error {
	if !sess.Authenticated() {
		return ledger.ErrUnauthenticated
	}
	if !sess.Can(session.CapVerify) {
		return ledger.Errorf(ledger.KindNotAuthorized, "%s não pode verificar", sess.Principal())
	}
	return nil
}

// lockOffer trava a obra e depois a oferta, na ordem usada por todas as mutações.
func lockOffer(ctx context.Context, tx *storage.Tx, offerID int64) (models.TradeOffer, models.Artwork, error) {
	artworkID, found, err := tx.OfferArtwork(ctx, offerID)
	if err != nil {
		return models.TradeOffer{}, models.Artwork{}, err
	}
	if !found {
		return models.TradeOffer{}, models.Artwork{}, ledger.Errorf(ledger.KindOfferNotFound, "oferta %d não encontrada", offerID)
	}
	art, found, err := tx.ArtworkForUpdate(ctx, artworkID)
	if err != nil {
		return models.TradeOffer{}, models.Artwork{}, err
	}
	if !found {
		return models.TradeOffer{}, models.Artwork{}, ledger.Errorf(ledger.KindArtworkNotFound, "obra %d não encontrada", artworkID)
	}
	offer, _, err := tx.OfferForUpdate(ctx, offerID)
	if err != nil {
		return models.TradeOffer{}, models.Artwork{}, err
	}
	return offer, art, nil
}

// holdingRef retorna a posição travada, ou nil se não existir.
func holdingRef(ctx context.Context, tx *storage.Tx, artworkID int64, owner string) (*models.TokenHolding, error) {
	h, found, err := tx.HoldingForUpdate(ctx, artworkID, owner)
	if err != nil || !found {
		return nil, err
	}
	return &h, nil
}

// addInvestment soma amount ao total investido, se o principal tiver perfil.
func addInvestment(ctx context.Context, tx *storage.Tx, principal string, amount int64) error {
	user, found, err := tx.UserForUpdate(ctx, principal)
	if err != nil || !found {
		return err
	}
	total, err := ledger.AddUnits(user.TotalInvested, amount)
	if err != nil {
		return err
	}
	return tx.SetInvestment(ctx, principal, total)
}
