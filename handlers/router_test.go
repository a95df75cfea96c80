package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ferreirogomes/artshare/cache"
	"github.com/ferreirogomes/artshare/events"
	"github.com/ferreirogomes/artshare/handlers"
	"github.com/ferreirogomes/artshare/services"
	"github.com/ferreirogomes/artshare/session"
	"github.com/ferreirogomes/artshare/storage"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	t       *testing.T
	router  http.Handler
	curator solana.PrivateKey
	now     time.Time
	signed  int
}

// signAt avança um milissegundo por assinatura; carteiras reais assinam
// cada envio com um timestamp novo.
func (e *testEnv) signAt() time.Time {
	e.signed++
	return e.now.Add(time.Duration(e.signed) * time.Millisecond)
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.NewDB("sqlite", filepath.Join(t.TempDir(), "ledger.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	projections, err := cache.New(1<<20, time.Minute)
	require.NoError(t, err)
	t.Cleanup(projections.Close)

	curator, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	now := time.Now()
	auth, err := session.NewWalletAuthenticator([]string{curator.PublicKey().String()}, 2*time.Minute)
	require.NoError(t, err)
	auth.SetClock(func() time.Time { return now })

	svc := services.NewMarketplaceService(db, projections, events.NopPublisher{}, zap.NewNop())
	router := handlers.NewRouter(handlers.RouterConfig{
		Service:    svc,
		Auth:       auth,
		Logger:     zap.NewNop(),
		CORSOrigin: "*",
	})
	return &testEnv{t: t, router: router, curator: curator, now: now}
}

func newWallet(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

type envelope struct {
	Ok  json.RawMessage `json:"ok"`
	Err *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"err"`
}

// do executa a requisição; key nil envia sem assinatura, idem vazio omite o cabeçalho.
func (e *testEnv) do(method, path string, key solana.PrivateKey, idem string, body any) (*httptest.ResponseRecorder, envelope) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if idem != "" {
		req.Header.Set(handlers.IdempotencyHeader, idem)
	}
	if key != nil {
		require.NoError(e.t, session.SignRequest(req, key, e.signAt()))
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)

	var env envelope
	require.NoError(e.t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr, env
}

func decodeOk[T any](t *testing.T, env envelope) T {
	t.Helper()
	require.Nil(t, env.Err)
	var v T
	require.NoError(t, json.Unmarshal(env.Ok, &v))
	return v
}

var newArtwork = map[string]any{
	"title":           "Neon Dreams",
	"artist":          "DigitalVision",
	"description":     "Vibrant neon-inspired artwork",
	"image_url":       "https://example.com/neon.png",
	"total_tokens":    500,
	"price_per_token": 200000,
}

func TestHealth(t *testing.T) {
	env := newEnv(t)
	rr, body := env.do(http.MethodGet, "/health", nil, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(body.Ok))
}

func TestCreateArtworkRequiresSession(t *testing.T) {
	env := newEnv(t)

	rr, body := env.do(http.MethodPost, "/artworks", nil, uuid.NewString(), newArtwork)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	require.NotNil(t, body.Err)
	assert.Equal(t, "Unauthenticated", body.Err.Kind)
}

func TestCreateArtworkRequiresIdempotencyKey(t *testing.T) {
	env := newEnv(t)
	rr, body := env.do(http.MethodPost, "/artworks", newWallet(t), "", newArtwork)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "InvalidRequest", body.Err.Kind)

	rr, _ = env.do(http.MethodPost, "/artworks", newWallet(t), "not-a-uuid", newArtwork)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestBadSignatureIsRejected(t *testing.T) {
	env := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	require.NoError(t, session.SignRequest(req, newWallet(t), env.now))
	req.Header.Set(session.HeaderSignature, "1111")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCapturedSignatureCannotBeReplayed(t *testing.T) {
	env := newEnv(t)
	victim := newWallet(t)
	rr, body := env.do(http.MethodPost, "/artworks", newWallet(t), uuid.NewString(), newArtwork)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	art := decodeOk[struct {
		ID int64 `json:"id"`
	}](t, body)
	path := "/artworks/" + strconv.FormatInt(art.ID, 10) + "/purchase"

	send := func(headers http.Header, idem, payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		for _, h := range []string{session.HeaderAddress, session.HeaderTimestamp, session.HeaderSignature} {
			req.Header.Set(h, headers.Get(h))
		}
		req.Header.Set(handlers.IdempotencyHeader, idem)
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, req)
		return rr
	}

	original := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"tokens":1}`))
	key := uuid.NewString()
	original.Header.Set(handlers.IdempotencyHeader, key)
	require.NoError(t, session.SignRequest(original, victim, env.signAt()))
	captured := original.Header.Clone()

	rr = send(captured, key, `{"tokens":1}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Outro corpo, outra chave ou a mesma requisição reenviada: todos recusados.
	assert.Equal(t, http.StatusUnauthorized, send(captured, uuid.NewString(), `{"tokens":400}`).Code)
	assert.Equal(t, http.StatusUnauthorized, send(captured, key, `{"tokens":400}`).Code)
	assert.Equal(t, http.StatusUnauthorized, send(captured, key, `{"tokens":1}`).Code)

	rr, body = env.do(http.MethodGet, "/artworks/"+strconv.FormatInt(art.ID, 10), nil, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeOk[struct {
		TokensSold int64 `json:"tokens_sold"`
	}](t, body)
	assert.Equal(t, int64(1), got.TokensSold)

	rr, body = env.do(http.MethodGet, "/users/"+victim.PublicKey().String()+"/holdings", nil, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	holdings := decodeOk[[]struct {
		TokensOwned int64 `json:"tokens_owned"`
	}](t, body)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(1), holdings[0].TokensOwned)
}

func TestPurchaseAndTradeFlow(t *testing.T) {
	env := newEnv(t)
	creator, seller, buyer := newWallet(t), newWallet(t), newWallet(t)

	rr, body := env.do(http.MethodPost, "/artworks", creator, uuid.NewString(), newArtwork)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	art := decodeOk[struct {
		ID int64 `json:"id"`
	}](t, body)
	base := "/artworks/" + strconv.FormatInt(art.ID, 10)

	rr, body = env.do(http.MethodGet, base+"/quote?tokens=10", nil, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	quote := decodeOk[struct {
		Cost        int64  `json:"cost"`
		CostDisplay string `json:"cost_display"`
	}](t, body)
	assert.Equal(t, int64(2_000_000), quote.Cost)
	assert.Equal(t, "0.020000", quote.CostDisplay)

	purchaseKey := uuid.NewString()
	rr, body = env.do(http.MethodPost, base+"/purchase", seller, purchaseKey, map[string]int64{"tokens": 30})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decodeOk[struct {
		PaymentID string `json:"payment_id"`
	}](t, body)

	// Reenvio com a mesma chave repete a resposta sem comprar de novo.
	rr, body = env.do(http.MethodPost, base+"/purchase", seller, purchaseKey, map[string]int64{"tokens": 30})
	require.Equal(t, http.StatusOK, rr.Code)
	again := decodeOk[struct {
		PaymentID string `json:"payment_id"`
	}](t, body)
	assert.Equal(t, first.PaymentID, again.PaymentID)

	rr, body = env.do(http.MethodGet, base+"/stats", nil, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decodeOk[struct {
		TokensSold int64 `json:"tokens_sold"`
		OwnerCount int64 `json:"owner_count"`
	}](t, body)
	assert.Equal(t, int64(30), stats.TokensSold)
	assert.Equal(t, int64(1), stats.OwnerCount)

	rr, body = env.do(http.MethodPost, "/offers", seller, uuid.NewString(), map[string]any{
		"artwork_id": art.ID, "tokens_for_sale": 10, "price": "0.0011",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	offer := decodeOk[struct {
		ID            int64 `json:"id"`
		PricePerToken int64 `json:"price_per_token"`
	}](t, body)
	assert.Equal(t, int64(110_000), offer.PricePerToken)

	rr, body = env.do(http.MethodPost, "/offers", seller, uuid.NewString(), map[string]any{
		"artwork_id": art.ID, "tokens_for_sale": 21, "price_per_token": 1,
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "InsufficientHolding", body.Err.Kind)

	rr, body = env.do(http.MethodGet, "/offers?artwork_id="+strconv.FormatInt(art.ID, 10), nil, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeOk[[]json.RawMessage](t, body), 1)

	offerPath := "/offers/" + strconv.FormatInt(offer.ID, 10)
	rr, body = env.do(http.MethodPost, offerPath+"/accept", seller, uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "SelfTrade", body.Err.Kind)

	rr, body = env.do(http.MethodPost, offerPath+"/accept", buyer, uuid.NewString(), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	trade := decodeOk[struct {
		Amount int64 `json:"amount"`
	}](t, body)
	assert.Equal(t, int64(1_100_000), trade.Amount)

	rr, body = env.do(http.MethodPost, offerPath+"/accept", newWallet(t), uuid.NewString(), nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "OfferInactive", body.Err.Kind)

	rr, body = env.do(http.MethodPost, offerPath+"/cancel", buyer, uuid.NewString(), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "NotOwner", body.Err.Kind)

	rr, body = env.do(http.MethodGet, "/users/"+buyer.PublicKey().String()+"/portfolio", nil, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	portfolio := decodeOk[struct {
		TotalValue    int64 `json:"total_value"`
		TotalInvested int64 `json:"total_invested"`
		ProfitLoss    int64 `json:"profit_loss"`
	}](t, body)
	assert.Equal(t, int64(2_000_000), portfolio.TotalValue)
	assert.Equal(t, int64(1_100_000), portfolio.TotalInvested)
	assert.Equal(t, int64(900_000), portfolio.ProfitLoss)

	rr, body = env.do(http.MethodGet, base+"/payments", nil, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeOk[[]json.RawMessage](t, body), 2)

	rr, body = env.do(http.MethodGet, base+"/owners", nil, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeOk[[]json.RawMessage](t, body), 2)
}

func TestVerificationNeedsCurator(t *testing.T) {
	env := newEnv(t)
	creator := newWallet(t)
	rr, body := env.do(http.MethodPost, "/artworks", creator, uuid.NewString(), newArtwork)
	require.Equal(t, http.StatusCreated, rr.Code)
	art := decodeOk[struct {
		ID int64 `json:"id"`
	}](t, body)
	path := "/artworks/" + strconv.FormatInt(art.ID, 10) + "/verify"

	rr, body = env.do(http.MethodPost, path, creator, "", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "NotAuthorized", body.Err.Kind)

	rr, body = env.do(http.MethodPost, path, env.curator, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	verified := decodeOk[struct {
		Verified bool `json:"verified"`
	}](t, body)
	assert.True(t, verified.Verified)
}

func TestUserProfileRoutes(t *testing.T) {
	env := newEnv(t)
	wallet := newWallet(t)

	rr, body := env.do(http.MethodGet, "/users/me", nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, body = env.do(http.MethodGet, "/users/me", wallet, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "UserNotFound", body.Err.Kind)

	rr, _ = env.do(http.MethodPost, "/users", wallet, uuid.NewString(), map[string]string{"username": "ArtLover123", "email": "artlover@example.com"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr, body = env.do(http.MethodPost, "/users", wallet, uuid.NewString(), map[string]string{"username": "again"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ProfileExists", body.Err.Kind)

	rr, body = env.do(http.MethodGet, "/users/me", wallet, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decodeOk[struct {
		Principal string `json:"principal"`
		Username  string `json:"username"`
	}](t, body)
	assert.Equal(t, wallet.PublicKey().String(), me.Principal)
	assert.Equal(t, "ArtLover123", me.Username)

	rr, _ = env.do(http.MethodPost, "/users/"+me.Principal+"/verify", env.curator, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, body = env.do(http.MethodGet, "/stats", nil, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decodeOk[struct {
		TotalUsers int64 `json:"total_users"`
	}](t, body)
	assert.Equal(t, int64(1), stats.TotalUsers)
}

func TestInvalidInput(t *testing.T) {
	env := newEnv(t)

	rr, body := env.do(http.MethodGet, "/artworks/abc", nil, "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "InvalidRequest", body.Err.Kind)

	rr, body = env.do(http.MethodGet, "/artworks/7", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "ArtworkNotFound", body.Err.Kind)

	rr, _ = env.do(http.MethodPost, "/artworks", newWallet(t), uuid.NewString(), map[string]any{"unknown": true})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestListArtworksSorted(t *testing.T) {
	env := newEnv(t)
	wallet := newWallet(t)
	for _, price := range []int{100000, 200000, 150000} {
		art := map[string]any{}
		for k, v := range newArtwork {
			art[k] = v
		}
		art["price_per_token"] = price
		rr, _ := env.do(http.MethodPost, "/artworks", wallet, uuid.NewString(), art)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr, body := env.do(http.MethodGet, "/artworks?sort=price-low&search=neon", nil, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	arts := decodeOk[[]struct {
		PricePerToken int64 `json:"price_per_token"`
	}](t, body)
	require.Len(t, arts, 3)
	assert.Equal(t, int64(100000), arts[0].PricePerToken)
	assert.Equal(t, int64(150000), arts[1].PricePerToken)
	assert.Equal(t, int64(200000), arts[2].PricePerToken)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, handlers.StatusFor("Outro"))
	assert.Equal(t, http.StatusNotFound, handlers.StatusFor("OfferNotFound"))
}
