package session

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	HeaderAddress     = "X-Wallet-Address"
	HeaderTimestamp   = "X-Wallet-Timestamp"
	HeaderSignature   = "X-Wallet-Signature"
	HeaderIdempotency = "Idempotency-Key"

	// MaxBodyBytes limita o corpo lido para assinatura e decodificação.
	MaxBodyBytes = 1 << 20
)

var (
	ErrBadAddress   = errors.New("endereço de carteira inválido")
	ErrBadSignature = errors.New("assinatura da requisição inválida")
	ErrStale        = errors.New("timestamp da assinatura fora da janela permitida")
	ErrReplayed     = errors.New("assinatura já utilizada")
	ErrBodyTooLarge = errors.New("corpo da requisição excede o limite")
)

// WalletAuthenticator autentica requisições assinadas por uma carteira
// Solana. O principal da sessão é o endereço base58 da carteira.
type WalletAuthenticator struct {
	curators map[string]bool
	maxSkew  time.Duration
	now      func() time.Time
	used     *usedSignatures
}

// NewWalletAuthenticator cria o autenticador. Carteiras em curators
// recebem CapVerify.
func NewWalletAuthenticator(curators []string, maxSkew time.Duration) (*WalletAuthenticator, error) {
	set := make(map[string]bool, len(curators))
	for _, c := range curators {
		pk, err := solana.PublicKeyFromBase58(c)
		if err != nil {
			return nil, fmt.Errorf("curador %q: %w", c, ErrBadAddress)
		}
		set[pk.String()] = true
	}
	return &WalletAuthenticator{
		curators: set,
		maxSkew:  maxSkew,
		now:      time.Now,
		used:     &usedSignatures{seen: make(map[string]time.Time)},
	}, nil
}

// SetClock substitui o relógio (usado nos testes).
func (a *WalletAuthenticator) SetClock(now func() time.Time) { a.now = now }

// SigningMessage é a mensagem que a carteira assina para uma requisição:
// método, caminho, timestamp em milissegundos, chave de idempotência e o
// sha256 do corpo em hexadecimal, separados por quebra de linha.
func SigningMessage(method, path string, tsMillis int64, idemKey string, body []byte) []byte {
	sum := sha256.Sum256(body)
	return []byte(method + "\n" + path + "\n" + strconv.FormatInt(tsMillis, 10) + "\n" +
		idemKey + "\n" + hex.EncodeToString(sum[:]))
}

// Authenticate retorna a sessão da requisição. Sem cabeçalhos de carteira
// a sessão é anônima; cabeçalhos presentes e inválidos geram erro. A
// assinatura de uma mutação vale uma única vez.
func (a *WalletAuthenticator) Authenticate(r *http.Request) (Session, error) {
	addr := r.Header.Get(HeaderAddress)
	if addr == "" {
		return Anonymous(), nil
	}
	pk, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return Session{}, ErrBadAddress
	}
	ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return Session{}, ErrStale
	}
	now := a.now()
	signedAt := time.UnixMilli(ts)
	skew := now.Sub(signedAt)
	if skew < 0 {
		skew = -skew
	}
	if skew > a.maxSkew {
		return Session{}, ErrStale
	}
	sig, err := solana.SignatureFromBase58(r.Header.Get(HeaderSignature))
	if err != nil {
		return Session{}, ErrBadSignature
	}
	body, err := readBody(r)
	if err != nil {
		return Session{}, err
	}
	msg := SigningMessage(r.Method, r.URL.Path, ts, r.Header.Get(HeaderIdempotency), body)
	if !sig.Verify(pk, msg) {
		return Session{}, ErrBadSignature
	}

	principal := pk.String()
	if mutating(r.Method) && !a.used.claim(principal+":"+sig.String(), now, signedAt.Add(a.maxSkew)) {
		return Session{}, ErrReplayed
	}
	if a.curators[principal] {
		return New(principal, CapVerify), nil
	}
	return New(principal), nil
}

// SignRequest adiciona os cabeçalhos de carteira a uma requisição. O
// cabeçalho de idempotência e o corpo precisam estar definidos antes.
func SignRequest(r *http.Request, key solana.PrivateKey, at time.Time) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	ts := at.UnixMilli()
	sig, err := key.Sign(SigningMessage(r.Method, r.URL.Path, ts, r.Header.Get(HeaderIdempotency), body))
	if err != nil {
		return fmt.Errorf("falha ao assinar requisição: %w", err)
	}
	r.Header.Set(HeaderAddress, key.PublicKey().String())
	r.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	r.Header.Set(HeaderSignature, sig.String())
	return nil
}

// readBody lê o corpo inteiro e o recoloca na requisição.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	r.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("falha ao ler corpo da requisição: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	return body, nil
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// usedSignatures guarda as assinaturas de mutações aceitas até saírem da
// janela de validade, quando o timestamp já as rejeitaria.
type usedSignatures struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	lastPrune time.Time
}

func (u *usedSignatures) claim(id string, now, expires time.Time) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if now.Sub(u.lastPrune) >= time.Second {
		for k, exp := range u.seen {
			if exp.Before(now) {
				delete(u.seen, k)
			}
		}
		u.lastPrune = now
	}
	if _, ok := u.seen[id]; ok {
		return false
	}
	u.seen[id] = expires
	return true
}
