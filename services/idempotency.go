package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/session"
	"github.com/ferreirogomes/artshare/storage"
	"go.uber.org/zap"
)

var errKeyTaken = errors.New("chave de idempotência reservada por outra requisição")

// request identifica uma mutação e seus argumentos. A impressão digital
// distingue duas requisições diferentes enviadas com a mesma chave.
type request struct {
	operation   string
	fingerprint string
}

func newRequest(operation string, args ...any) request {
	body, err := json.Marshal(append([]any{operation}, args...))
	if err != nil {
		// Argumentos são escalares e structs simples; não falha na prática.
		body = []byte(fmt.Sprintf("%s%v", operation, args))
	}
	sum := sha256.Sum256(body)
	return request{operation: operation, fingerprint: hex.EncodeToString(sum[:])}
}

// runMutation executa fn em uma transação. Com uma chave de idempotência,
// a chave é reservada na mesma transação e a resposta de sucesso fica
// gravada com as alterações; uma nova tentativa com a mesma chave e os
// mesmos argumentos recebe a resposta gravada sem reaplicar a mutação.
// Falhas desfazem tudo, inclusive a reserva da chave. replayed indica uma
// resposta repetida.
func runMutation[T any](ctx context.Context, s *MarketplaceService, sess session.Session, key string, req request, fn func(tx *storage.Tx) (T, error)) (result T, replayed bool, err error) {
	if key == "" {
		err = s.DB.InTx(ctx, func(tx *storage.Tx) error {
			var fnErr error
			result, fnErr = fn(tx)
			return fnErr
		})
		return result, false, err
	}

	principal := sess.Principal()
	if result, found, err := replay[T](ctx, s, key, principal, req); found || err != nil {
		return result, found, err
	}

	err = s.DB.InTx(ctx, func(tx *storage.Tx) error {
		claimed, err := tx.ClaimIdempotency(ctx, key, principal, req.operation, req.fingerprint, s.Now())
		if err != nil {
			return err
		}
		if !claimed {
			return errKeyTaken
		}
		result, err = fn(tx)
		if err != nil {
			return err
		}
		body, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("falha ao serializar resposta idempotente: %w", err)
		}
		return tx.CompleteIdempotency(ctx, key, principal, string(body))
	})
	if errors.Is(err, errKeyTaken) {
		// A outra requisição já confirmou; sua resposta agora está visível.
		result, found, err := replay[T](ctx, s, key, principal, req)
		if err == nil && !found {
			err = ledger.Errorf(ledger.KindIdempotencyConflict, "chave de idempotência %s em uso", key)
		}
		return result, found, err
	}
	return result, false, err
}

func replay[T any](ctx context.Context, s *MarketplaceService, key, principal string, req request) (T, bool, error) {
	var result T
	rec, found, err := s.DB.LookupIdempotency(ctx, key, principal)
	if err != nil || !found {
		return result, false, err
	}
	if rec.Operation != req.operation {
		return result, false, ledger.Errorf(ledger.KindIdempotencyConflict,
			"chave de idempotência %s já usada em %s", key, rec.Operation)
	}
	if rec.Fingerprint != req.fingerprint {
		return result, false, ledger.Errorf(ledger.KindIdempotencyConflict,
			"chave de idempotência %s já usada com outros argumentos", key)
	}
	if err := json.Unmarshal([]byte(rec.Response), &result); err != nil {
		return result, false, fmt.Errorf("resposta idempotente corrompida para %s: %w", key, err)
	}
	s.Logger.Info("resposta idempotente repetida",
		zap.String("operation", req.operation), zap.String("principal", principal))
	return result, true, nil
}
