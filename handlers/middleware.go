package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/session"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Authenticator resolve a sessão de uma requisição.
type Authenticator interface {
	Authenticate(r *http.Request) (session.Session, error)
}

// Sessions anexa a sessão ao contexto. Credenciais presentes e inválidas
// encerram a requisição com Unauthenticated; ausentes viram sessão anônima.
func Sessions(auth Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := auth.Authenticate(r)
			if errors.Is(err, session.ErrBodyTooLarge) {
				writeError(w, r, logger, ledger.Invalid("%v", err))
				return
			}
			if err != nil {
				writeError(w, r, logger, ledger.Errorf(ledger.KindUnauthenticated, "%v", err))
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
		})
	}
}

// RequestLogger registra cada requisição com zap.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("requisição",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Duration("latency", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// CORS libera o frontend configurado e os cabeçalhos de carteira.
func CORS(origin string) func(http.Handler) http.Handler {
	allowHeaders := "Content-Type, " + IdempotencyHeader + ", " +
		session.HeaderAddress + ", " + session.HeaderTimestamp + ", " + session.HeaderSignature
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
