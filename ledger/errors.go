package ledger

import (
	"errors"
	"fmt"
)

// Kind identifica a categoria de uma falha de regra de negócio.
type Kind string

const (
	KindUnauthenticated     Kind = "Unauthenticated"
	KindNotAuthorized       Kind = "NotAuthorized"
	KindInsufficientSupply  Kind = "InsufficientSupply"
	KindInsufficientHolding Kind = "InsufficientHolding"
	KindOfferInactive       Kind = "OfferInactive"
	KindOfferNotFound       Kind = "OfferNotFound"
	KindNotOwner            Kind = "NotOwner"
	KindArtworkNotFound     Kind = "ArtworkNotFound"
	KindUserNotFound        Kind = "UserNotFound"
	KindProfileExists       Kind = "ProfileExists"
	KindSelfTrade           Kind = "SelfTrade"
	KindInvalidRequest      Kind = "InvalidRequest"
	KindIdempotencyConflict Kind = "IdempotencyConflict"
	KindAmountOverflow      Kind = "AmountOverflow"
)

// Error é uma falha esperada do ledger. Nunca carrega estado interno,
// apenas o tipo e uma mensagem que pode ser exibida ao usuário.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is compara apenas o Kind, para que errors.Is funcione com os sentinelas
// mesmo quando a mensagem foi personalizada.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Errorf cria um erro do tipo informado com mensagem formatada.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrUnauthenticated     = &Error{Kind: KindUnauthenticated, Message: "operação exige uma identidade autenticada"}
	ErrNotAuthorized       = &Error{Kind: KindNotAuthorized, Message: "capacidade de verificação ausente"}
	ErrInsufficientSupply  = &Error{Kind: KindInsufficientSupply, Message: "tokens insuficientes disponíveis"}
	ErrInsufficientHolding = &Error{Kind: KindInsufficientHolding, Message: "saldo de tokens insuficiente para a oferta"}
	ErrOfferInactive       = &Error{Kind: KindOfferInactive, Message: "oferta não está mais ativa"}
	ErrOfferNotFound       = &Error{Kind: KindOfferNotFound, Message: "oferta não encontrada"}
	ErrNotOwner            = &Error{Kind: KindNotOwner, Message: "somente o vendedor pode cancelar a oferta"}
	ErrArtworkNotFound     = &Error{Kind: KindArtworkNotFound, Message: "obra não encontrada"}
	ErrUserNotFound        = &Error{Kind: KindUserNotFound, Message: "usuário não encontrado"}
	ErrProfileExists       = &Error{Kind: KindProfileExists, Message: "perfil de usuário já existe"}
	ErrSelfTrade           = &Error{Kind: KindSelfTrade, Message: "não é possível aceitar a própria oferta"}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest, Message: "requisição inválida"}
	ErrIdempotencyConflict = &Error{Kind: KindIdempotencyConflict, Message: "chave de idempotência já usada em outra operação"}
	ErrAmountOverflow      = &Error{Kind: KindAmountOverflow, Message: "valor excede o limite representável"}
)

// Invalid cria um erro de validação com mensagem específica.
func Invalid(format string, args ...any) *Error {
	return Errorf(KindInvalidRequest, format, args...)
}

// AsError extrai o *Error de uma cadeia de erros, se houver.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
