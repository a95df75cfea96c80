package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ferreirogomes/artshare/ledger"
	"github.com/ferreirogomes/artshare/models"
	"github.com/ferreirogomes/artshare/session"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AuthorityPrincipal identifica a autoridade externa de verificação nas
// sessões abertas pelo listener.
const AuthorityPrincipal = "verification-authority"

// Verifier aplica as decisões de verificação no ledger.
type Verifier interface {
	VerifyArtPiece(ctx context.Context, sess session.Session, artworkID int64) (models.Artwork, error)
	VerifyUser(ctx context.Context, sess session.Session, principal string) (models.UserAccount, error)
}

// MessageReader é a parte de *kafka.Reader usada pelo listener. O offset
// só é confirmado depois que a decisão foi tratada.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

// Decision é uma decisão publicada pela autoridade de curadoria.
type Decision struct {
	Kind      string `json:"kind"` // "artwork" ou "user"
	ArtworkID int64  `json:"artwork_id,omitempty"`
	Principal string `json:"principal,omitempty"`
}

// VerificationListener consome decisões de verificação de um tópico Kafka
// e as aplica com uma sessão de curador.
type VerificationListener struct {
	Reader   MessageReader
	Verifier Verifier
	Logger   *zap.Logger
	// RetryBackoff é a primeira espera antes de reaplicar uma decisão que
	// falhou por erro de infraestrutura; dobra a cada tentativa.
	RetryBackoff time.Duration
	session      session.Session
}

// NewKafkaReader monta o reader do tópico de verificação.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 1e6,
		MaxWait:  500 * time.Millisecond,
	})
}

// NewVerificationListener cria uma nova instância do listener.
func NewVerificationListener(reader MessageReader, verifier Verifier, logger *zap.Logger) *VerificationListener {
	return &VerificationListener{
		Reader:       reader,
		Verifier:     verifier,
		Logger:       logger,
		RetryBackoff: defaultRetryBackoff,
		session:      session.New(AuthorityPrincipal, session.CapVerify),
	}
}

// Run lê decisões até o contexto ser cancelado. Mensagens inválidas e
// decisões rejeitadas pelo ledger são registradas e confirmadas; falhas de
// infraestrutura são repetidas e a mensagem só é confirmada quando aplicada.
func (l *VerificationListener) Run(ctx context.Context) error {
	defer l.Reader.Close()
	l.Logger.Info("listener de verificação iniciado")
	for {
		m, err := l.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.Logger.Info("listener de verificação encerrado")
				return nil
			}
			return fmt.Errorf("falha ao ler decisão de verificação: %w", err)
		}
		if err := l.handleMessage(ctx, m); err != nil {
			l.Logger.Info("listener de verificação encerrado", zap.Int64("pending_offset", m.Offset))
			return nil
		}
		if err := l.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("falha ao confirmar offset %d: %w", m.Offset, err)
		}
	}
}

// handleMessage retorna erro apenas quando o contexto é cancelado antes de
// a decisão ser aplicada.
func (l *VerificationListener) handleMessage(ctx context.Context, m kafka.Message) error {
	var d Decision
	if err := json.Unmarshal(m.Value, &d); err != nil {
		l.Logger.Warn("decisão de verificação inválida", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	for {
		err := l.Apply(ctx, d)
		if err == nil {
			return nil
		}
		var lerr *ledger.Error
		if errors.As(err, &lerr) {
			l.Logger.Warn("decisão de verificação rejeitada",
				zap.String("kind", d.Kind), zap.String("reason", string(lerr.Kind)), zap.Int64("offset", m.Offset))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.Logger.Error("falha ao aplicar decisão de verificação",
			zap.Int64("offset", m.Offset), zap.Duration("retry_in", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}

// Apply aplica uma decisão.
func (l *VerificationListener) Apply(ctx context.Context, d Decision) error {
	switch d.Kind {
	case "artwork":
		if d.ArtworkID <= 0 {
			return ledger.Invalid("artwork_id ausente")
		}
		_, err := l.Verifier.VerifyArtPiece(ctx, l.session, d.ArtworkID)
		return err
	case "user":
		if d.Principal == "" {
			return ledger.Invalid("principal ausente")
		}
		_, err := l.Verifier.VerifyUser(ctx, l.session, d.Principal)
		return err
	default:
		return ledger.Invalid("tipo de decisão desconhecido: %q", d.Kind)
	}
}
