package session

import "context"

// Capability é uma permissão delegada pela autoridade externa.
type Capability uint8

const (
	// CapVerify permite verificar obras e usuários.
	CapVerify Capability = 1 << iota
)

// Session identifica quem executa uma operação. É passada explicitamente
// para cada operação do serviço; não existe sessão global.
type Session struct {
	principal string
	caps      Capability
}

// Anonymous retorna a sessão sem identidade, usada para leituras.
func Anonymous() Session {
	return Session{}
}

// New cria uma sessão para o principal com as capacidades informadas.
func New(principal string, caps ...Capability) Session {
	s := Session{principal: principal}
	for _, c := range caps {
		s.caps |= c
	}
	return s
}

// Principal retorna o identificador opaco do usuário ("" quando anônimo).
func (s Session) Principal() string { return s.principal }

// Authenticated indica se há uma identidade presente.
func (s Session) Authenticated() bool { return s.principal != "" }

// Can verifica se a sessão possui a capacidade.
func (s Session) Can(c Capability) bool {
	return s.Authenticated() && s.caps&c == c
}

type ctxKey struct{}

// WithSession anexa a sessão ao contexto da requisição.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext retorna a sessão do contexto, ou a anônima.
func FromContext(ctx context.Context) Session {
	s, ok := ctx.Value(ctxKey{}).(Session)
	if !ok {
		return Anonymous()
	}
	return s
}
