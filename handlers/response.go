package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdempotencyHeader carrega a chave gerada pelo cliente para uma mutação.
const IdempotencyHeader = session.HeaderIdempotency

// Envelope é a resposta de toda rota: exatamente um de Ok ou Err.
type Envelope struct {
	Ok  any        `json:"ok,omitempty"`
	Err *ErrorBody `json:"err,omitempty"`
}

type ErrorBody struct {
	Kind    ledger.Kind `json:"kind"`
	Message string      `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, Envelope{Ok: payload})
}

// writeError converte o erro no envelope de falha. Erros de regra de
// negócio vão com a mensagem original; qualquer outro erro é interno e
// o cliente recebe só uma mensagem genérica.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	}
	if e, ok := ledger.AsError(err); ok {
		logger.Warn("requisição rejeitada", append(fields, zap.String("kind", string(e.Kind)), zap.String("message", e.Message))...)
		writeJSON(w, StatusFor(e.Kind), Envelope{Err: &ErrorBody{Kind: e.Kind, Message: e.Message}})
		return
	}
	logger.Error("falha interna", append(fields, zap.Error(err))...)
	writeJSON(w, http.StatusInternalServerError, Envelope{Err: &ErrorBody{Kind: "Internal", Message: "erro interno do servidor"}})
}

// StatusFor mapeia o tipo de erro para o status HTTP.
func StatusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindUnauthenticated:
		return http.StatusUnauthorized
	case ledger.KindNotAuthorized, ledger.KindNotOwner:
		return http.StatusForbidden
	case ledger.KindArtworkNotFound, ledger.KindOfferNotFound, ledger.KindUserNotFound:
		return http.StatusNotFound
	case ledger.KindInsufficientSupply, ledger.KindInsufficientHolding, ledger.KindOfferInactive,
		ledger.KindProfileExists, ledger.KindIdempotencyConflict:
		return http.StatusConflict
	case ledger.KindInvalidRequest, ledger.KindSelfTrade, ledger.KindAmountOverflow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON lê o corpo da requisição rejeitando campos desconhecidos.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, session.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ledger.Invalid("corpo da requisição vazio")
		}
		return ledger.Invalid("corpo da requisição inválido: %v", err)
	}
	return nil
}

// pathID lê um parâmetro numérico da rota.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, ledger.Invalid("%s inválido", name)
	}
	return id, nil
}

// queryInt lê um inteiro opcional da query string.
func queryInt(r *http.Request, name string) (int64, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, ledger.Invalid("%s inválido", name)
	}
	return v, true, nil
}

// idempotencyKey exige um UUID no cabeçalho Idempotency-Key.
func idempotencyKey(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if raw == "" {
		return "", ledger.Invalid("cabeçalho %s é obrigatório", IdempotencyHeader)
	}
	key, err := uuid.Parse(raw)
	if err != nil {
		return "", ledger.Invalid("cabeçalho %s deve ser um UUID", IdempotencyHeader)
	}
	return key.String(), nil
}
